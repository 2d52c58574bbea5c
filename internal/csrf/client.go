// AngelaMos | 2026
// client.go

package csrf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	TokenPath        = "/csrf-token"
	invalidErrorCode = "CSRF_INVALID"
	maxErrorBody     = 64 << 10
)

// Cache is the client-side view of the current CSRF token.
type Cache struct {
	Token     string
	ExpiresAt time.Time
}

func (c Cache) Valid(now time.Time) bool {
	return c.Token != "" && now.Before(c.ExpiresAt)
}

func Invalidate(Cache) Cache {
	return Cache{}
}

// Client fetches and caches CSRF tokens for a cookie-based API client.
// The underlying http.Client must carry a cookie jar so the token cookie
// travels with later requests.
type Client struct {
	httpClient *http.Client
	endpoint   string
	headerName string
	ttl        time.Duration
	now        func() time.Time

	mu    sync.Mutex
	cache Cache
}

type ClientOption func(*Client)

func WithClientClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

func WithHeaderName(name string) ClientOption {
	return func(c *Client) {
		c.headerName = name
	}
}

func NewClient(baseURL string, httpClient *http.Client, opts ...ClientOption) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	c := &Client{
		httpClient: httpClient,
		endpoint:   strings.TrimRight(baseURL, "/") + TokenPath,
		headerName: DefaultHeaderName,
		ttl:        DefaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the cached token while it is unexpired, fetching a fresh
// one otherwise.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cache.Valid(c.now()) {
		return c.cache.Token, nil
	}

	token, err := c.fetch(ctx)
	if err != nil {
		return "", err
	}

	c.cache = Cache{Token: token, ExpiresAt: c.now().Add(c.ttl)}
	return token, nil
}

func (c *Client) Headers(ctx context.Context) (http.Header, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	h := make(http.Header)
	h.Set(c.headerName, token)
	return h, nil
}

// Observe drops the cached token when the server rejected it. The body
// is restored for the caller.
func (c *Client) Observe(resp *http.Response) {
	if resp == nil || resp.StatusCode != http.StatusForbidden || resp.Body == nil {
		return
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close() //nolint:errcheck // replaced below
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return
	}

	var envelope struct {
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) != nil || envelope.Error == nil {
		return
	}

	if envelope.Error.Code == invalidErrorCode {
		c.Clear()
	}
}

func (c *Client) Clear() {
	c.mu.Lock()
	c.cache = Invalidate(c.cache)
	c.mu.Unlock()
}

func (c *Client) Cached() Cache {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache
}

func (c *Client) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build csrf request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch csrf token: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch csrf token: unexpected status %d", resp.StatusCode)
	}

	var envelope struct {
		Data TokenResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", fmt.Errorf("decode csrf token: %w", err)
	}

	if envelope.Data.CSRFToken == "" {
		return "", fmt.Errorf("decode csrf token: empty token")
	}

	return envelope.Data.CSRFToken, nil
}
