// Package download retrieves the image and data file of a selected advisory and
// commits them to the working directory.
package download

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/JakeFAU/volcanic-ash-alert/internal/advisory"
	"github.com/JakeFAU/volcanic-ash-alert/internal/fsx"
)

// Asset kinds.
const (
	KindImage = "image"
	KindData  = "data"
)

// Asset is one committed file.
type Asset struct {
	Kind   string
	URL    string
	Path   string
	Digest string
	Bytes  int
	// ContentType is the media type the server declared, if any.
	ContentType string
}

// Result describes the outcome of Download.
type Result struct {
	// Skipped is set when the ledger already knew the selection; nothing was fetched.
	Skipped bool
	Assets  []Asset
}

// Paths returns the committed file paths in image, data order.
func (r Result) Paths() []string {
	out := make([]string, 0, len(r.Assets))
	for _, a := range r.Assets {
		out = append(out, a.Path)
	}
	return out
}

// Downloader fetches both assets before writing either of them.
type Downloader struct {
	fetcher advisory.Fetcher
	ledger  advisory.Ledger
	fs      afero.Fs
	hasher  advisory.Hasher
	logger  *zap.Logger
}

// New constructs a Downloader.
func New(fetcher advisory.Fetcher, ledger advisory.Ledger, fs afero.Fs, hasher advisory.Hasher, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{fetcher: fetcher, ledger: ledger, fs: fs, hasher: hasher, logger: logger}
}

type pending struct {
	asset Asset
	body  []byte
}

// Download fetches the image then the data file of sel. The image name is the
// idempotency key: when the ledger has seen it no request is made.
func (d *Downloader) Download(ctx context.Context, sel *advisory.Selection) (Result, error) {
	if sel == nil {
		return Result{}, advisory.ErrNoSelection
	}

	seen, err := d.ledger.Seen(ctx, sel.ImageName)
	if err != nil {
		return Result{}, fmt.Errorf("check ledger: %w", err)
	}
	if seen {
		d.logger.Warn("file already exists", zap.String("file", sel.ImageName))
		return Result{Skipped: true}, nil
	}

	image, err := d.fetch(ctx, KindImage, sel.ImageURL, sel.ImageName)
	if err != nil {
		return Result{}, err
	}
	data, err := d.fetch(ctx, KindData, sel.DataURL, sel.DataName)
	if err != nil {
		return Result{}, err
	}

	// The image is committed last so its presence implies the data file exists.
	for _, p := range []pending{data, image} {
		if err := fsx.WriteFileAtomic(d.fs, "", p.asset.Path, p.body); err != nil {
			return Result{}, fmt.Errorf("write %s: %w", p.asset.Path, err)
		}
	}

	d.logger.Info("advisory downloaded",
		zap.String("advisory_title", sel.Title),
		zap.Time("timestamp", sel.Entry.Timestamp),
		zap.String("image_url", sel.ImageURL),
		zap.String("image_name", sel.ImageName),
		zap.String("advisory_csv", sel.DataURL),
		zap.String("csv_name", sel.DataName),
		zap.String("advisory_text", sel.TextURL),
		zap.String("info_json", sel.InfoURL),
		zap.String("metas_json", sel.MetasURL),
	)
	return Result{Assets: []Asset{image.asset, data.asset}}, nil
}

func (d *Downloader) fetch(ctx context.Context, kind, url, name string) (pending, error) {
	resp, err := d.fetcher.Fetch(ctx, url)
	if err != nil {
		d.logger.Error("download failed", zap.String("kind", kind), zap.String("url", url), zap.Error(err))
		return pending{}, fmt.Errorf("download %s: %w", kind, err)
	}
	digest, err := d.hasher.Hash(resp.Body)
	if err != nil {
		return pending{}, fmt.Errorf("hash %s: %w", kind, err)
	}
	d.logger.Debug("asset fetched",
		zap.String("kind", kind),
		zap.String("url", url),
		zap.Int("bytes", len(resp.Body)),
		zap.Duration("duration", resp.Duration),
	)
	return pending{
		asset: Asset{
			Kind:        kind,
			URL:         url,
			Path:        name,
			Digest:      digest,
			Bytes:       len(resp.Body),
			ContentType: resp.ContentType,
		},
		body:  resp.Body,
	}, nil
}

// Verify checks that data is still the content committed for a.
func (d *Downloader) Verify(a Asset, data []byte) error {
	if err := d.hasher.Verify(data, a.Digest); err != nil {
		return fmt.Errorf("verify %s: %w", a.Path, err)
	}
	return nil
}
