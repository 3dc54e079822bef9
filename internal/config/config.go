// Package config loads and validates alerter configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/volcanic-ash-alert/internal/logging"
)

// EnvPrefix is prepended to every environment override, e.g. ASHALERT_MAIL_SENDER.
const EnvPrefix = "ASHALERT"

// Ledger backends.
const (
	LedgerWorkdir  = "workdir"
	LedgerFile     = "file"
	LedgerRedis    = "redis"
	LedgerPostgres = "postgres"
	LedgerMemory   = "memory"
)

// Archive providers.
const (
	ArchiveNone   = "none"
	ArchiveLocal  = "local"
	ArchiveGCS    = "gcs"
	ArchiveMemory = "memory"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Source  SourceConfig   `mapstructure:"source"`
	HTTP    HTTPConfig     `mapstructure:"http"`
	Output  OutputConfig   `mapstructure:"output"`
	Mail    MailConfig     `mapstructure:"mail"`
	Ledger  LedgerConfig   `mapstructure:"ledger"`
	Archive ArchiveConfig  `mapstructure:"archive"`
	PubSub  PubSubConfig   `mapstructure:"pubsub"`
	Metrics MetricsConfig  `mapstructure:"metrics"`
	Logging logging.Config `mapstructure:"logging"`
}

// SourceConfig locates the advisory index.
type SourceConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// HTTPConfig configures the outbound HTTP client.
type HTTPConfig struct {
	TimeoutSeconds int         `mapstructure:"timeout_seconds"`
	UserAgent      string      `mapstructure:"user_agent"`
	Proxy          ProxyConfig `mapstructure:"proxy"`
}

// ProxyConfig holds per-scheme proxy URLs. Empty means direct.
type ProxyConfig struct {
	HTTP            string `mapstructure:"http"`
	HTTPS           string `mapstructure:"https"`
	FromEnvironment bool   `mapstructure:"from_environment"`
}

// OutputConfig sets where artifacts are written.
type OutputConfig struct {
	Dir      string `mapstructure:"dir"`
	PageName string `mapstructure:"page_name"`
}

// MailConfig describes the relay and the fixed envelope.
type MailConfig struct {
	Sender        string   `mapstructure:"sender"`
	RelayHost     string   `mapstructure:"relay_host"`
	RelayPort     int      `mapstructure:"relay_port"`
	Recipients    []string `mapstructure:"recipients"`
	Subject       string   `mapstructure:"subject"`
	Username      string   `mapstructure:"username"`
	Password      string   `mapstructure:"password"`
	SkipTLSVerify bool     `mapstructure:"skip_tls_verify"`
}

// LedgerConfig selects and configures the idempotency store.
type LedgerConfig struct {
	Backend  string `mapstructure:"backend"`
	Path     string `mapstructure:"path"`
	RedisURL string `mapstructure:"redis_url"`
	RedisKey string `mapstructure:"redis_key"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
}

// ArchiveConfig selects where delivered artifacts are copied.
type ArchiveConfig struct {
	Provider string `mapstructure:"provider"`
	BaseDir  string `mapstructure:"base_dir"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Enabled reports whether events should be published.
func (p PubSubConfig) Enabled() bool {
	return p.ProjectID != "" && p.Topic != ""
}

// MetricsConfig points at a node-exporter textfile collector target.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// Load builds a Config from disk/environment. With an empty path an optional
// ashalert.{yaml,json,toml} in the working directory is used when present.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("ashalert")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.base_url", "https://vaac.meteo.fr/advisory")
	v.SetDefault("http.timeout_seconds", 60)
	v.SetDefault("http.user_agent", "")
	v.SetDefault("http.proxy.http", "")
	v.SetDefault("http.proxy.https", "")
	v.SetDefault("http.proxy.from_environment", false)
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.page_name", "volcano.html")
	v.SetDefault("mail.sender", "")
	v.SetDefault("mail.relay_host", "localhost")
	v.SetDefault("mail.relay_port", 25)
	v.SetDefault("mail.recipients", []string{})
	v.SetDefault("mail.subject", "Volcanic Ash Alert")
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.skip_tls_verify", false)
	v.SetDefault("ledger.backend", LedgerWorkdir)
	v.SetDefault("ledger.path", "processed.yaml")
	v.SetDefault("ledger.redis_url", "")
	v.SetDefault("ledger.redis_key", "ashalert:processed")
	v.SetDefault("ledger.dsn", "")
	v.SetDefault("ledger.table", "processed_advisories")
	v.SetDefault("archive.provider", ArchiveNone)
	v.SetDefault("archive.base_dir", "archive")
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.prefix", "advisories")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.file", "volcano.log")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	u, err := url.Parse(c.Source.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("source.base_url must be an absolute http(s) URL")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Output.PageName == "" || strings.ContainsAny(c.Output.PageName, `/\`) {
		return fmt.Errorf("output.page_name must be a bare file name")
	}
	if err := c.Mail.validate(); err != nil {
		return err
	}
	if err := c.Ledger.validate(); err != nil {
		return err
	}
	if err := c.Archive.validate(); err != nil {
		return err
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.Topic == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic must be set together")
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		return fmt.Errorf("logging rotation limits must be >= 0")
	}
	return nil
}

func (m MailConfig) validate() error {
	if strings.TrimSpace(m.Sender) == "" {
		return fmt.Errorf("mail.sender is required")
	}
	if strings.TrimSpace(m.RelayHost) == "" {
		return fmt.Errorf("mail.relay_host is required")
	}
	if m.RelayPort <= 0 || m.RelayPort > 65535 {
		return fmt.Errorf("mail.relay_port must be between 1 and 65535")
	}
	if len(m.Recipients) == 0 {
		return fmt.Errorf("mail.recipients must list at least one address")
	}
	return nil
}

func (l LedgerConfig) validate() error {
	switch l.Backend {
	case LedgerWorkdir, LedgerMemory:
	case LedgerFile:
		if l.Path == "" {
			return fmt.Errorf("ledger.path is required for the file backend")
		}
	case LedgerRedis:
		if l.RedisURL == "" {
			return fmt.Errorf("ledger.redis_url is required for the redis backend")
		}
	case LedgerPostgres:
		if l.DSN == "" {
			return fmt.Errorf("ledger.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("ledger.backend %q is not supported", l.Backend)
	}
	return nil
}

func (a ArchiveConfig) validate() error {
	switch a.Provider {
	case ArchiveNone, ArchiveMemory:
	case ArchiveLocal:
		if a.BaseDir == "" {
			return fmt.Errorf("archive.base_dir is required for the local provider")
		}
	case ArchiveGCS:
		if a.Bucket == "" {
			return fmt.Errorf("archive.bucket is required for the gcs provider")
		}
	default:
		return fmt.Errorf("archive.provider %q is not supported", a.Provider)
	}
	return nil
}

// Timeout converts the HTTP timeout into a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
