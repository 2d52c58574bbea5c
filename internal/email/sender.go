// AngelaMos | 2026
// sender.go

package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-mail/mail"

	"github.com/carterperez-dev/templates/go-auth/internal/config"
)

const smtpTimeout = 10 * time.Second

type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPSender struct {
	host     string
	port     int
	user     string
	password string
	from     string
	tlsMode  string
	logger   *slog.Logger
}

func NewSMTPSender(cfg config.EmailConfig, logger *slog.Logger) *SMTPSender {
	tlsMode := cfg.TLSMode
	if tlsMode == "" {
		tlsMode = "auto"
	}

	return &SMTPSender{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     cfg.From,
		tlsMode:  tlsMode,
		logger:   logger.With("component", "smtp_sender", "host", cfg.SMTPHost),
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	m := mail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)

	switch {
	case msg.Text != "" && msg.HTML != "":
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		m.SetBody("text/html", msg.HTML)
	default:
		m.SetBody("text/plain", msg.Text)
	}

	d := mail.NewDialer(s.host, s.port, s.user, s.password)
	d.Timeout = smtpTimeout
	d.TLSConfig = &tls.Config{ServerName: s.host, MinVersion: tls.VersionTLS12}

	switch s.tlsMode {
	case "ssl":
		d.SSL = true
	case "starttls":
		d.StartTLSPolicy = mail.MandatoryStartTLS
	case "none":
		d.StartTLSPolicy = mail.NoStartTLS
	}

	if err := d.DialAndSend(m); err != nil {
		s.logger.ErrorContext(ctx, "smtp send failed", "error", err)
		return fmt.Errorf("smtp send: %w", err)
	}

	s.logger.InfoContext(ctx, "email sent", "subject", msg.Subject)
	return nil
}

// LogSender records messages instead of delivering them. Used when no
// SMTP host is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger.With("component", "log_sender")}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "email not delivered, no smtp host configured",
		"subject", msg.Subject,
	)
	return nil
}

// NewSender picks SMTP delivery when a host is configured.
func NewSender(cfg config.EmailConfig, logger *slog.Logger) Sender {
	if cfg.SMTPHost == "" {
		return NewLogSender(logger)
	}
	return NewSMTPSender(cfg, logger)
}
