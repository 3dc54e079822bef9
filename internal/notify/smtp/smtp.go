// Package smtp delivers advisory messages by email through a fixed relay.
package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/JakeFAU/volcanic-ash-alert/internal/advisory"
)

const attachmentContentType = "application/octet-stream"

// Config identifies the relay and the fixed envelope of every message.
type Config struct {
	Sender     string
	Recipients []string
	RelayHost  string
	RelayPort  int
	// Username and Password enable SMTP AUTH when Username is set.
	Username string
	Password string
	// SkipTLSVerify accepts self-signed certificates when the relay offers STARTTLS.
	SkipTLSVerify bool
}

// dialSender opens a relay session, submits messages, and closes it.
type dialSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Notifier implements advisory.Notifier over SMTP.
type Notifier struct {
	cfg    Config
	fs     afero.Fs
	dialer dialSender
	logger *zap.Logger
}

// New validates cfg and returns a Notifier reading attachments from fs.
func New(cfg Config, fs afero.Fs, logger *zap.Logger) (*Notifier, error) {
	if strings.TrimSpace(cfg.Sender) == "" {
		return nil, fmt.Errorf("sender is required")
	}
	if len(cfg.Recipients) == 0 {
		return nil, fmt.Errorf("at least one recipient is required")
	}
	if strings.TrimSpace(cfg.RelayHost) == "" {
		return nil, fmt.Errorf("relay host is required")
	}
	if cfg.RelayPort <= 0 || cfg.RelayPort > 65535 {
		return nil, fmt.Errorf("relay port %d out of range", cfg.RelayPort)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := gomail.NewDialer(cfg.RelayHost, cfg.RelayPort, cfg.Username, cfg.Password)
	if cfg.SkipTLSVerify {
		// #nosec G402 -- opt-in for internal relays with self-signed certificates.
		d.TLSConfig = &tls.Config{ServerName: cfg.RelayHost, InsecureSkipVerify: true}
	}
	return newWithDialer(cfg, fs, d, logger), nil
}

func newWithDialer(cfg Config, fs afero.Fs, d dialSender, logger *zap.Logger) *Notifier {
	return &Notifier{cfg: cfg, fs: fs, dialer: d, logger: logger}
}

// Notify composes msg and submits it to every recipient. All attachments are read
// before the relay is contacted, so an unreadable file aborts the send entirely.
func (n *Notifier) Notify(ctx context.Context, msg advisory.Message) error {
	m, err := n.compose(msg)
	if err != nil {
		n.logger.Error("unable to open one of the attachments", zap.Error(err))
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	if err := n.dialer.DialAndSend(m); err != nil {
		n.logger.Error("unable to send the email",
			zap.String("relay", fmt.Sprintf("%s:%d", n.cfg.RelayHost, n.cfg.RelayPort)),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}
	n.logger.Info("email sent",
		zap.Strings("recipients", n.cfg.Recipients),
		zap.Int("attachments", len(msg.Attachments)),
	)
	return nil
}

func (n *Notifier) compose(msg advisory.Message) (*gomail.Message, error) {
	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.Sender)
	m.SetHeader("To", n.cfg.Recipients...)
	m.SetHeader("Subject", msg.Subject)
	if msg.Body != "" {
		m.SetBody("text/plain", msg.Body)
	}

	for _, path := range msg.Attachments {
		data, err := afero.ReadFile(n.fs, path)
		if err != nil {
			return nil, fmt.Errorf("read attachment %q: %w", path, err)
		}
		name := filepath.Base(path)
		m.Attach(name,
			gomail.SetHeader(map[string][]string{
				"Content-Type": {fmt.Sprintf("%s; name=%q", attachmentContentType, name)},
			}),
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
		)
	}
	return m, nil
}
