// AngelaMos | 2026
// manager.go

package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/carterperez-dev/templates/go-auth/internal/config"
	"github.com/carterperez-dev/templates/go-auth/internal/core"
	"github.com/carterperez-dev/templates/go-auth/internal/session"
)

const (
	DefaultHeaderName = "X-CSRF-Token"
	DefaultTTL        = 24 * time.Hour

	nonceBytes = 16
)

type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Manager issues stateless double-submit tokens of the form
// nonce.expiry.signature, signed with the session secret.
type Manager struct {
	key        []byte
	headerName string
	cookieName string
	ttl        time.Duration
	cookie     config.CookieConfig
	now        func() time.Time
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func NewManager(
	sessionKey string,
	cfg config.CSRFConfig,
	cookie config.CookieConfig,
	opts ...Option,
) *Manager {
	headerName := strings.TrimSpace(cfg.HeaderName)
	if headerName == "" {
		headerName = DefaultHeaderName
	}
	baseName := strings.TrimSpace(cfg.CookieName)
	if baseName == "" {
		baseName = "csrf_token"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	m := &Manager{
		key:        []byte(sessionKey),
		headerName: headerName,
		cookieName: session.CookieName(baseName, cookie.Secure, cookie.Domain, "/"),
		ttl:        ttl,
		cookie:     cookie,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) HeaderName() string {
	return m.headerName
}

func (m *Manager) CookieName() string {
	return m.cookieName
}

func (m *Manager) Issue() (Token, error) {
	nonce := make([]byte, nonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return Token{}, fmt.Errorf("generate csrf nonce: %w", err)
	}

	expiresAt := m.now().Add(m.ttl).Truncate(time.Second)
	payload := base64.RawURLEncoding.EncodeToString(nonce) + "." +
		strconv.FormatInt(expiresAt.Unix(), 10)

	return Token{
		Value:     payload + "." + m.sign(payload),
		ExpiresAt: expiresAt,
	}, nil
}

// Validate requires the cookie and header to carry the same, correctly
// signed, unexpired token.
func (m *Manager) Validate(cookieValue, headerValue string) error {
	cookieValue = strings.TrimSpace(cookieValue)
	headerValue = strings.TrimSpace(headerValue)

	if cookieValue == "" || headerValue == "" {
		return fmt.Errorf("csrf token missing: %w", core.ErrCSRFInvalid)
	}

	if subtle.ConstantTimeCompare([]byte(cookieValue), []byte(headerValue)) != 1 {
		return fmt.Errorf("csrf token mismatch: %w", core.ErrCSRFInvalid)
	}

	parts := strings.Split(headerValue, ".")
	if len(parts) != 3 {
		return fmt.Errorf("csrf token malformed: %w", core.ErrCSRFInvalid)
	}

	payload := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(parts[2]), []byte(m.sign(payload))) {
		return fmt.Errorf("csrf token signature: %w", core.ErrCSRFInvalid)
	}

	expiry, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return fmt.Errorf("csrf token expiry: %w", core.ErrCSRFInvalid)
	}

	if !m.now().Before(time.Unix(expiry, 0)) {
		return fmt.Errorf("csrf token expired: %w", core.ErrCSRFInvalid)
	}

	return nil
}

func (m *Manager) ValidateRequest(r *http.Request) error {
	var cookieValue string
	if c, err := r.Cookie(m.cookieName); err == nil {
		cookieValue = c.Value
	}
	return m.Validate(cookieValue, r.Header.Get(m.headerName))
}

// SetCookie stores the token in a script-readable cookie so the client
// can echo it in the header.
func (m *Manager) SetCookie(w http.ResponseWriter, token Token) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token.Value,
		Path:     "/",
		Domain:   m.cookieDomain(),
		Expires:  token.ExpiresAt.UTC(),
		MaxAge:   int(token.ExpiresAt.Sub(m.now()).Seconds()),
		Secure:   m.cookie.Secure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
}

func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		Domain:   m.cookieDomain(),
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		Secure:   m.cookie.Secure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
}

func (m *Manager) sign(payload string) string {
	mac := hmac.New(sha256.New, m.key)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (m *Manager) cookieDomain() string {
	if strings.HasPrefix(m.cookieName, "__Host-") {
		return ""
	}
	return m.cookie.Domain
}
