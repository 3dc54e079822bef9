package collyfetcher

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ProxyConfig selects an outbound proxy per URL scheme. Empty values mean a direct
// connection unless FromEnvironment is set, in which case HTTP_PROXY/HTTPS_PROXY/NO_PROXY
// are honored.
type ProxyConfig struct {
	HTTP            string
	HTTPS           string
	FromEnvironment bool
}

type proxyFunc func(*http.Request) (*url.URL, error)

// newHTTPTransport builds the collector transport. The proxy is installed
// afterwards through colly's SetProxyFunc.
func newHTTPTransport() *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}

func (c ProxyConfig) proxyFunc() (proxyFunc, error) {
	httpProxy, err := parseProxyURL("http", c.HTTP)
	if err != nil {
		return nil, err
	}
	httpsProxy, err := parseProxyURL("https", c.HTTPS)
	if err != nil {
		return nil, err
	}
	if httpProxy == nil && httpsProxy == nil {
		if c.FromEnvironment {
			return http.ProxyFromEnvironment, nil
		}
		return nil, nil
	}
	return func(req *http.Request) (*url.URL, error) {
		switch req.URL.Scheme {
		case "http":
			return httpProxy, nil
		case "https":
			return httpsProxy, nil
		default:
			return nil, nil
		}
	}, nil
}

func parseProxyURL(scheme, raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s proxy url: %w", scheme, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid %s proxy url %q: scheme and host are required", scheme, raw)
	}
	return u, nil
}
