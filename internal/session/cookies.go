// AngelaMos | 2026
// cookies.go

package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/carterperez-dev/templates/go-auth/internal/config"
)

const (
	RefreshTokenHeader = "X-Refresh-Token"

	hostPrefix   = "__Host-"
	securePrefix = "__Secure-"
)

// Transport moves access and refresh tokens between responses and
// requests as HttpOnly cookies.
type Transport struct {
	cfg         config.CookieConfig
	accessName  string
	refreshName string
	now         func() time.Time
}

func NewTransport(cfg config.CookieConfig) *Transport {
	if cfg.RefreshPath == "" {
		cfg.RefreshPath = "/"
	}

	return &Transport{
		cfg:         cfg,
		accessName:  CookieName(cfg.AccessName, cfg.Secure, cfg.Domain, "/"),
		refreshName: CookieName(cfg.RefreshName, cfg.Secure, cfg.Domain, cfg.RefreshPath),
		now:         time.Now,
	}
}

// CookieName applies the strongest prefix the cookie attributes allow.
func CookieName(base string, secure bool, domain, path string) string {
	if !secure {
		return base
	}
	if domain == "" && path == "/" {
		return hostPrefix + base
	}
	return securePrefix + base
}

// SetAuthCookies writes both token cookies. Non-persistent sessions get
// browser-session cookies with no Max-Age or Expires.
func (t *Transport) SetAuthCookies(
	w http.ResponseWriter,
	accessToken, refreshToken string,
	accessExpiresAt, refreshExpiresAt time.Time,
	persistent bool,
) {
	http.SetCookie(w, t.build(t.accessName, accessToken, "/", accessExpiresAt, persistent))
	http.SetCookie(w, t.build(t.refreshName, refreshToken, t.cfg.RefreshPath, refreshExpiresAt, persistent))
}

func (t *Transport) ClearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, t.expired(t.accessName, "/"))
	http.SetCookie(w, t.expired(t.refreshName, t.cfg.RefreshPath))
}

func (t *Transport) RefreshTokenFromRequest(r *http.Request) (string, bool) {
	if c, err := r.Cookie(t.refreshName); err == nil && c.Value != "" {
		return c.Value, true
	}

	if h := strings.TrimSpace(r.Header.Get(RefreshTokenHeader)); h != "" {
		return h, true
	}

	return "", false
}

func (t *Transport) AccessTokenFromRequest(r *http.Request) (string, bool) {
	if c, err := r.Cookie(t.accessName); err == nil && c.Value != "" {
		return c.Value, true
	}

	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		if token := strings.TrimSpace(parts[1]); token != "" {
			return token, true
		}
	}

	return "", false
}

func (t *Transport) build(
	name, value, path string,
	expiresAt time.Time,
	persistent bool,
) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   t.cookieDomain(name),
		Secure:   t.cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}

	if persistent {
		maxAge := int(expiresAt.Sub(t.now()).Seconds())
		if maxAge < 1 {
			maxAge = 1
		}
		c.MaxAge = maxAge
		c.Expires = expiresAt.UTC()
	}

	return c
}

func (t *Transport) expired(name, path string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Domain:   t.cookieDomain(name),
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		Secure:   t.cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

func (t *Transport) cookieDomain(name string) string {
	if strings.HasPrefix(name, hostPrefix) {
		return ""
	}
	return t.cfg.Domain
}
