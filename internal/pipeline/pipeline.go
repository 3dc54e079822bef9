// Package pipeline runs one alerter pass: list, select, render, download, notify.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/JakeFAU/volcanic-ash-alert/internal/advisory"
	"github.com/JakeFAU/volcanic-ash-alert/internal/download"
	"github.com/JakeFAU/volcanic-ash-alert/internal/metrics"
	"github.com/JakeFAU/volcanic-ash-alert/internal/page"
)

// Notification channels reported in metrics.
const (
	ChannelEmail  = "email"
	ChannelPubSub = "pubsub"
)

// Config holds the values the pipeline reads on every run.
type Config struct {
	BaseURL         string
	Subject         string
	ArchivePrefix   string
	MetricsTextfile string
}

// Deps are the collaborators of a Pipeline. Archive and Publisher are optional.
type Deps struct {
	Fetcher    advisory.Fetcher
	Renderer   *page.Renderer
	Downloader *download.Downloader
	Ledger     advisory.Ledger
	Notifier   advisory.Notifier
	Publisher  advisory.Publisher
	Archive    advisory.BlobStore
	FS         afero.Fs
	Clock      advisory.Clock
	IDs        advisory.IDGenerator
	Metrics    *metrics.Recorder
	Logger     *zap.Logger
}

// Report summarizes a finished run.
type Report struct {
	RunID     string
	Outcome   string
	Selection *advisory.Selection
	PagePath  string
	Assets    []download.Asset
	Event     *advisory.Event
}

// Pipeline executes runs against a fixed set of collaborators.
type Pipeline struct {
	cfg  Config
	deps Deps
}

// New validates deps and returns a Pipeline.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, fmt.Errorf("fetcher is required")
	case deps.Renderer == nil:
		return nil, fmt.Errorf("renderer is required")
	case deps.Downloader == nil:
		return nil, fmt.Errorf("downloader is required")
	case deps.Ledger == nil:
		return nil, fmt.Errorf("ledger is required")
	case deps.Notifier == nil:
		return nil, fmt.Errorf("notifier is required")
	case deps.FS == nil:
		return nil, fmt.Errorf("filesystem is required")
	case deps.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	case deps.IDs == nil:
		return nil, fmt.Errorf("id generator is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, deps: deps}, nil
}

// Run performs one pass. A listing that cannot be fetched is not an error: the
// fallback page is written and the run ends. Everything up to and including the
// email is fatal on failure; archive and event publishing are best effort.
func (p *Pipeline) Run(ctx context.Context) (report Report, err error) {
	log := p.deps.Logger
	report.RunID, err = p.deps.IDs.NewID()
	if err != nil {
		return report, fmt.Errorf("generate run id: %w", err)
	}
	log = log.With(zap.String("run_id", report.RunID))

	defer func() {
		if err != nil {
			report.Outcome = metrics.OutcomeFailed
		}
		p.deps.Metrics.ObserveRun(report.Outcome)
		if werr := p.deps.Metrics.WriteTextfile(p.cfg.MetricsTextfile); werr != nil {
			log.Warn("metrics textfile not written", zap.Error(werr))
		}
	}()

	started := p.deps.Clock.Now()
	indexURL := advisory.IndexURL(p.cfg.BaseURL, started.Year())

	listing, ok := p.fetchListing(ctx, log, indexURL)
	if !ok {
		report.PagePath, err = p.deps.Renderer.Write(nil)
		if err != nil {
			return report, err
		}
		report.Outcome = metrics.OutcomeFallback
		return report, nil
	}

	latest, err := advisory.Latest(listing)
	if err != nil {
		log.Error("no advisory entries on index page",
			zap.String("url", indexURL),
			zap.Int("links", listing.Links),
			zap.Error(err),
		)
		return report, err
	}
	sel := advisory.NewSelection(indexURL, latest)
	report.Selection = &sel
	p.deps.Metrics.SetLatest(latest.Timestamp)
	log.Info("latest advisory selected",
		zap.String("advisory_title", sel.Title),
		zap.Time("timestamp", latest.Timestamp),
	)

	report.PagePath, err = p.deps.Renderer.Write(&sel)
	if err != nil {
		return report, err
	}

	res, err := p.deps.Downloader.Download(ctx, &sel)
	if err != nil {
		return report, err
	}
	if res.Skipped {
		report.Outcome = metrics.OutcomeSkipped
		return report, nil
	}
	report.Assets = res.Assets
	for _, a := range res.Assets {
		p.deps.Metrics.ObserveDownload(a.Kind, a.Bytes)
	}

	attachments := append(res.Paths(), report.PagePath)
	err = p.deps.Notifier.Notify(ctx, advisory.Message{
		Subject:     p.cfg.Subject,
		Body:        messageBody(&sel),
		Attachments: attachments,
	})
	p.deps.Metrics.ObserveNotification(ChannelEmail, err)
	if err != nil {
		return report, fmt.Errorf("notify: %w", err)
	}

	event := advisory.Event{
		RunID:      report.RunID,
		Title:      sel.Title,
		IssuedAt:   latest.Timestamp,
		ImageURL:   sel.ImageURL,
		DataURL:    sel.DataURL,
		TextURL:    sel.TextURL,
		Digests:    make(map[string]string, len(res.Assets)),
		DetectedAt: started.UTC(),
	}
	for _, a := range res.Assets {
		event.Digests[a.Kind] = a.Digest
	}
	event.ArchiveURI = p.archive(ctx, log, &sel, report.RunID, res.Assets, report.PagePath)
	p.publish(ctx, log, event)
	report.Event = &event

	if merr := p.deps.Ledger.Mark(ctx, sel.ImageName); merr != nil {
		log.Error("advisory delivered but not recorded in ledger",
			zap.String("key", sel.ImageName),
			zap.Error(merr),
		)
	}
	report.Outcome = metrics.OutcomeDelivered
	return report, nil
}

func (p *Pipeline) fetchListing(ctx context.Context, log *zap.Logger, indexURL string) (advisory.Listing, bool) {
	resp, err := p.deps.Fetcher.Fetch(ctx, indexURL)
	if err != nil {
		log.Error("unable to fetch advisory index", zap.String("url", indexURL), zap.Error(err))
		return advisory.Listing{}, false
	}
	p.deps.Metrics.ObserveFetch(indexURL, resp.Duration)

	listing, err := advisory.ParseListing(resp.Body)
	if err != nil {
		log.Error("unable to parse advisory index", zap.String("url", indexURL), zap.Error(err))
		return advisory.Listing{}, false
	}
	p.deps.Metrics.ObserveListing(listing.Links, listing.Skipped)
	log.Info("advisory index parsed",
		zap.String("url", indexURL),
		zap.Int("links", listing.Links),
		zap.Int("entries", len(listing.Entries)),
		zap.Int("skipped", listing.Skipped),
	)
	return listing, true
}

// Metadata keys attached to archived objects.
const (
	MetaEntry  = "advisory-entry"
	MetaTitle  = "advisory-title"
	MetaRunID  = "run-id"
	MetaDigest = "digest"
)

// archive uploads the downloaded assets and the rendered page. An asset whose
// working-directory copy no longer matches its download digest is not uploaded.
func (p *Pipeline) archive(
	ctx context.Context,
	log *zap.Logger,
	sel *advisory.Selection,
	runID string,
	assets []download.Asset,
	pagePath string,
) map[string]string {
	if p.deps.Archive == nil {
		return nil
	}
	uris := make(map[string]string, len(assets)+1)
	upload := func(file, ct, digest string, data []byte) {
		name := filepath.Base(file)
		if ct == "" {
			ct = contentType(name)
		}
		meta := map[string]string{
			MetaEntry: strings.Trim(sel.Entry.Name, "/"),
			MetaTitle: sel.Title,
			MetaRunID: runID,
		}
		if digest != "" {
			meta[MetaDigest] = digest
		}
		key := p.archivePath(sel, name)
		uri, err := p.deps.Archive.PutObject(ctx, advisory.Object{
			Path:        key,
			ContentType: ct,
			Metadata:    meta,
			Body:        bytes.NewReader(data),
		})
		if err != nil {
			p.deps.Metrics.ObserveArchiveFailure()
			log.Warn("archive upload failed", zap.String("path", key), zap.Error(err))
			return
		}
		uris[name] = uri
	}

	for _, a := range assets {
		data, err := afero.ReadFile(p.deps.FS, a.Path)
		if err == nil {
			err = p.deps.Downloader.Verify(a, data)
		}
		if err != nil {
			p.deps.Metrics.ObserveArchiveFailure()
			log.Warn("asset not archived", zap.String("file", a.Path), zap.Error(err))
			continue
		}
		upload(a.Path, a.ContentType, a.Digest, data)
	}

	data, err := afero.ReadFile(p.deps.FS, pagePath)
	if err != nil {
		p.deps.Metrics.ObserveArchiveFailure()
		log.Warn("archive read failed", zap.String("file", pagePath), zap.Error(err))
		return uris
	}
	upload(pagePath, "", "", data)
	return uris
}

// archivePath returns <prefix>/<year>/<entry>/<file>.
func (p *Pipeline) archivePath(sel *advisory.Selection, name string) string {
	parts := []string{
		strconv.Itoa(sel.Entry.Timestamp.Year()),
		strings.Trim(sel.Entry.Name, "/"),
		name,
	}
	if prefix := strings.Trim(p.cfg.ArchivePrefix, "/"); prefix != "" {
		parts = append([]string{prefix}, parts...)
	}
	return path.Join(parts...)
}

func (p *Pipeline) publish(ctx context.Context, log *zap.Logger, event advisory.Event) {
	if p.deps.Publisher == nil {
		return
	}
	id, err := p.deps.Publisher.Publish(ctx, event)
	p.deps.Metrics.ObserveNotification(ChannelPubSub, err)
	if err != nil {
		log.Warn("event publish failed", zap.String("advisory_title", event.Title), zap.Error(err))
		return
	}
	log.Info("event published", zap.String("message_id", id))
}

func messageBody(sel *advisory.Selection) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Latest volcanic ash advisory: %s\n", sel.Title)
	fmt.Fprintf(&b, "Issued: %s\n", sel.Entry.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Advisory text: %s\n", sel.TextURL)
	return b.String()
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
