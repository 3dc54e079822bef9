// Package collyfetcher implements advisory.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/volcanic-ash-alert/internal/advisory"
)

const defaultUserAgent = "ashalert/1.0 (+https://github.com/JakeFAU/volcanic-ash-alert)"

// Config controls collector behavior.
type Config struct {
	UserAgent string
	// Timeout bounds each request. Zero leaves the http.Client default (no timeout).
	Timeout time.Duration
	Proxy   ProxyConfig
}

// Fetcher implements advisory.Fetcher using the Colly collector. Fetch decodes a
// declared charset to UTF-8 for the index page; Assets returns the byte-exact
// variant used for the image and data downloads.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponseHeaders(colly.ResponseHeadersCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. It fails when a configured proxy URL is invalid.
func New(cfg Config) (*Fetcher, error) {
	proxy, err := cfg.Proxy.proxyFunc()
	if err != nil {
		return nil, err
	}

	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	if proxy != nil {
		c.SetProxyFunc(colly.ProxyFunc(proxy))
	}
	c.UserAgent = cfg.UserAgent
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	// The index URL is fetched again on every run.
	c.AllowURLRevisit = true
	// Asset bodies are not truncated.
	c.MaxBodySize = 0
	if cfg.Timeout > 0 {
		c.SetRequestTimeout(cfg.Timeout)
	}

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}, nil
}

// Fetch executes a single HTTP GET. Transport errors and non-2xx responses are
// returned as errors.
func (f *Fetcher) Fetch(ctx context.Context, url string) (advisory.Response, error) {
	return f.fetch(ctx, url, false)
}

// Assets returns a fetcher whose response bodies are exactly the bytes served.
func (f *Fetcher) Assets() advisory.Fetcher {
	return assetFetcher{f: f}
}

type assetFetcher struct {
	f *Fetcher
}

func (a assetFetcher) Fetch(ctx context.Context, url string) (advisory.Response, error) {
	return a.f.fetch(ctx, url, true)
}

func (f *Fetcher) fetch(ctx context.Context, url string, raw bool) (advisory.Response, error) {
	var (
		result   advisory.Response
		fetchErr error
	)
	collector := f.baseCollector.Clone()
	f.configureCollectorHooks(collector, time.Now(), raw, &result, &fetchErr)

	if err := f.runCollector(ctx, collector, url, &fetchErr); err != nil {
		return advisory.Response{}, err
	}
	return result, nil
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	start time.Time,
	raw bool,
	result *advisory.Response,
	fetchErr *error,
) {
	if raw {
		// colly re-encodes the body when Content-Type names a charset.
		hooks.OnResponseHeaders(func(r *colly.Response) {
			if r.Headers != nil {
				stripCharset(*r.Headers)
			}
		})
	}

	hooks.OnResponse(func(r *colly.Response) {
		*result = advisory.Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
		if r.Headers != nil {
			result.ContentType = r.Headers.Get("Content-Type")
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			*fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

// stripCharset reduces Content-Type to its bare media type.
func stripCharset(h http.Header) {
	mediaType, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil {
		h.Del("Content-Type")
		return
	}
	h.Set("Content-Type", mediaType)
}
