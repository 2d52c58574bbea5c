// AngelaMos | 2026
// mailer.go

package email

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/carterperez-dev/templates/go-auth/internal/config"
)

const (
	verifyPath = "/verify-email"
	resetPath  = "/reset-password"
)

// Mailer renders and sends the one-time token emails.
type Mailer struct {
	sender          Sender
	baseURL         string
	verificationTTL time.Duration
	resetTTL        time.Duration
}

func NewMailer(sender Sender, cfg config.EmailConfig) *Mailer {
	return &Mailer{
		sender:          sender,
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		verificationTTL: cfg.VerificationTTL,
		resetTTL:        cfg.ResetTTL,
	}
}

func (m *Mailer) SendVerification(ctx context.Context, to, name, token string) error {
	msg, err := verificationTemplate.render(to, linkVars{
		Name: displayName(name, to),
		Link: m.link(verifyPath, token),
		TTL:  humanDuration(m.verificationTTL),
	})
	if err != nil {
		return err
	}

	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}

func (m *Mailer) SendPasswordReset(ctx context.Context, to, name, token string) error {
	msg, err := resetTemplate.render(to, linkVars{
		Name: displayName(name, to),
		Link: m.link(resetPath, token),
		TTL:  humanDuration(m.resetTTL),
	})
	if err != nil {
		return err
	}

	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send password reset email: %w", err)
	}
	return nil
}

func (m *Mailer) link(path, token string) string {
	return m.baseURL + path + "?token=" + url.QueryEscape(token)
}

func displayName(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}

func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "a short while"
	case d%(24*time.Hour) == 0:
		days := int(d / (24 * time.Hour))
		if days == 1 {
			return "24 hours"
		}
		return fmt.Sprintf("%d days", days)
	case d%time.Hour == 0:
		hours := int(d / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	default:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
}
