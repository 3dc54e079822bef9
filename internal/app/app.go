// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/JakeFAU/volcanic-ash-alert/internal/advisory"
	"github.com/JakeFAU/volcanic-ash-alert/internal/clock/system"
	"github.com/JakeFAU/volcanic-ash-alert/internal/config"
	"github.com/JakeFAU/volcanic-ash-alert/internal/download"
	collyfetcher "github.com/JakeFAU/volcanic-ash-alert/internal/fetcher/colly"
	"github.com/JakeFAU/volcanic-ash-alert/internal/hash/sha256"
	"github.com/JakeFAU/volcanic-ash-alert/internal/id/uuid"
	fileledger "github.com/JakeFAU/volcanic-ash-alert/internal/ledger/file"
	memoryledger "github.com/JakeFAU/volcanic-ash-alert/internal/ledger/memory"
	pgledger "github.com/JakeFAU/volcanic-ash-alert/internal/ledger/postgres"
	redisledger "github.com/JakeFAU/volcanic-ash-alert/internal/ledger/redis"
	"github.com/JakeFAU/volcanic-ash-alert/internal/ledger/workdir"
	"github.com/JakeFAU/volcanic-ash-alert/internal/metrics"
	pubsubnotify "github.com/JakeFAU/volcanic-ash-alert/internal/notify/pubsub"
	"github.com/JakeFAU/volcanic-ash-alert/internal/notify/smtp"
	"github.com/JakeFAU/volcanic-ash-alert/internal/page"
	"github.com/JakeFAU/volcanic-ash-alert/internal/pipeline"
	"github.com/JakeFAU/volcanic-ash-alert/internal/storage/gcs"
	"github.com/JakeFAU/volcanic-ash-alert/internal/storage/local"
	storagememory "github.com/JakeFAU/volcanic-ash-alert/internal/storage/memory"
)

// App holds all the shared, long-lived services for one invocation. It is built once
// at startup from a validated Config.
type App struct {
	logger   *zap.Logger
	fs       afero.Fs
	pipeline *pipeline.Pipeline
	closers  []func() error
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// FS returns the working directory filesystem artifacts are written to.
func (a *App) FS() afero.Fs {
	return a.fs
}

// Pipeline returns the configured run pipeline.
func (a *App) Pipeline() *pipeline.Pipeline {
	return a.pipeline
}

// Run executes one pipeline pass.
func (a *App) Run(ctx context.Context) (pipeline.Report, error) {
	return a.pipeline.Run(ctx)
}

// New wires every component from cfg. It fails fast when a configured backend
// cannot be reached.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{logger: logger}

	dir, err := filepath.Abs(cfg.Output.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}
	osFS := afero.NewOsFs()
	if err := osFS.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	a.fs = afero.NewBasePathFs(osFS, dir)
	logger.Info("initializing application services", zap.String("output_dir", dir))

	fetcher, err := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.Timeout(),
		Proxy: collyfetcher.ProxyConfig{
			HTTP:            cfg.HTTP.Proxy.HTTP,
			HTTPS:           cfg.HTTP.Proxy.HTTPS,
			FromEnvironment: cfg.HTTP.Proxy.FromEnvironment,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize fetcher: %w", err)
	}

	ledger, err := a.newLedger(ctx, cfg.Ledger)
	if err != nil {
		a.Close()
		return nil, err
	}

	notifier, err := smtp.New(smtp.Config{
		Sender:        cfg.Mail.Sender,
		Recipients:    cfg.Mail.Recipients,
		RelayHost:     cfg.Mail.RelayHost,
		RelayPort:     cfg.Mail.RelayPort,
		Username:      cfg.Mail.Username,
		Password:      cfg.Mail.Password,
		SkipTLSVerify: cfg.Mail.SkipTLSVerify,
	}, a.fs, logger.Named("smtp"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize notifier: %w", err)
	}

	archive, err := a.newArchive(ctx, cfg.Archive)
	if err != nil {
		a.Close()
		return nil, err
	}

	var publisher advisory.Publisher
	if cfg.PubSub.Enabled() {
		logger.Info("connecting to GCP Pub/Sub", zap.String("topic", cfg.PubSub.Topic))
		pub, err := pubsubnotify.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.Topic)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize publisher: %w", err)
		}
		a.closers = append(a.closers, pub.Close)
		publisher = pub
	}

	a.pipeline, err = pipeline.New(pipeline.Config{
		BaseURL:         cfg.Source.BaseURL,
		Subject:         cfg.Mail.Subject,
		ArchivePrefix:   cfg.Archive.Prefix,
		MetricsTextfile: cfg.Metrics.Textfile,
	}, pipeline.Deps{
		Fetcher:    fetcher,
		Renderer:   page.NewRenderer(a.fs, cfg.Output.PageName, logger.Named("page")),
		Downloader: download.New(fetcher.Assets(), ledger, a.fs, sha256.New(), logger.Named("download")),
		Ledger:     ledger,
		Notifier:   notifier,
		Publisher:  publisher,
		Archive:    archive,
		FS:         a.fs,
		Clock:      system.New(),
		IDs:        uuid.New(),
		Metrics:    metrics.New(),
		Logger:     logger.Named("pipeline"),
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	logger.Info("application services initialized",
		zap.String("ledger", cfg.Ledger.Backend),
		zap.String("archive", cfg.Archive.Provider),
		zap.Bool("pubsub", publisher != nil),
	)
	return a, nil
}

func (a *App) newLedger(ctx context.Context, cfg config.LedgerConfig) (advisory.Ledger, error) {
	switch cfg.Backend {
	case config.LedgerWorkdir, "":
		return workdir.New(a.fs), nil
	case config.LedgerFile:
		return fileledger.New(a.fs, cfg.Path), nil
	case config.LedgerMemory:
		a.logger.Warn("using in-memory ledger; every run will notify")
		return memoryledger.New(), nil
	case config.LedgerRedis:
		l, err := redisledger.New(ctx, cfg.RedisURL, cfg.RedisKey)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis ledger: %w", err)
		}
		a.closers = append(a.closers, l.Close)
		return l, nil
	case config.LedgerPostgres:
		l, err := pgledger.New(ctx, pgledger.Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres ledger: %w", err)
		}
		a.closers = append(a.closers, func() error { l.Close(); return nil })
		return l, nil
	default:
		return nil, fmt.Errorf("unknown ledger backend: %s", cfg.Backend)
	}
}

func (a *App) newArchive(ctx context.Context, cfg config.ArchiveConfig) (advisory.BlobStore, error) {
	switch cfg.Provider {
	case config.ArchiveNone, "":
		return nil, nil
	case config.ArchiveMemory:
		return storagememory.NewBlobStore(), nil
	case config.ArchiveLocal:
		store, err := local.New(afero.NewOsFs(), local.Config{BaseDir: cfg.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local archive: %w", err)
		}
		return store, nil
	case config.ArchiveGCS:
		a.logger.Info("using GCS archive", zap.String("bucket", cfg.Bucket))
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCS client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Bucket})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize gcs archive: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown archive provider: %s", cfg.Provider)
	}
}

// Close releases every backend client in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	a.closers = nil
}
