package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/volcanic-ash-alert/internal/app"
	"github.com/JakeFAU/volcanic-ash-alert/internal/config"
	"github.com/JakeFAU/volcanic-ash-alert/internal/logging"
	"github.com/JakeFAU/volcanic-ash-alert/internal/pipeline"
)

// runner is the part of *app.App the command drives. Tests swap in a fake.
type runner interface {
	Run(ctx context.Context) (pipeline.Report, error)
	Close()
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (runner, error) {
	return app.New(ctx, cfg, logger)
}

type rootOptions struct {
	configFile string
	workdir    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "ashalert",
		Short: "Email the latest volcanic ash advisory from the VAAC index.",
		Long: `ashalert fetches this year's VAAC advisory index, renders volcano.html for the
newest entry, downloads its graphic and data file, and emails all three to the
configured recipients. An advisory that was already delivered is not sent again.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.configFile, "config", "", "config file (default is ./ashalert.yaml when present)")
	cmd.Flags().StringVar(&opts.workdir, "workdir", "", "working directory (default is the executable's directory)")
	return cmd
}

func run(ctx context.Context, opts *rootOptions) error {
	dir, err := resolveWorkdir(opts.workdir)
	if err != nil {
		return err
	}
	if err := os.Chdir(dir); err != nil {
		return fmt.Errorf("change to working directory: %w", err)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	zap.ReplaceGlobals(logger)
	logger.Info("ashalert starting", zap.String("workdir", dir), zap.String("source", cfg.Source.BaseURL))

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize application services", zap.Error(err))
		return err
	}
	defer a.Close()

	report, err := a.Run(ctx)
	if err != nil {
		logger.Error("run failed", zap.String("run_id", report.RunID), zap.Error(err))
		return err
	}
	logger.Info("run finished", zap.String("run_id", report.RunID), zap.String("outcome", report.Outcome))
	return nil
}

func resolveWorkdir(flagValue string) (string, error) {
	if flagValue != "" {
		return filepath.Abs(flagValue)
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}
