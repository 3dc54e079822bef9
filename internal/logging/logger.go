// Package logging provides zap logger helpers.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls console output and the optional rotating log file.
type Config struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
}

// New builds a zap.Logger configured for development or production. When cfg.File
// is set, every entry is also written as JSON to a size-rotated file.
func New(cfg Config) (*zap.Logger, error) {
	var (
		zcfg  zap.Config
		level zapcore.Level
	)
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		level = zapcore.DebugLevel
	} else {
		zcfg = zap.NewProductionConfig()
		zcfg.DisableStacktrace = false
		level = zapcore.InfoLevel
	}
	zcfg.EncoderConfig.TimeKey = "ts"

	var opts []zap.Option
	if cfg.File != "" {
		fileCore := newFileCore(cfg, level)
		opts = append(opts, zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
	}

	logger, err := zcfg.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

func newFileCore(cfg Config, level zapcore.Level) zapcore.Core {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	sink := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	return zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(sink), level)
}
