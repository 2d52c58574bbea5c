// AngelaMos | 2026
// ratelimit_test.go

package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableRedis forces every limiter onto the in-process fallback.
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()

	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func hit(h http.Handler, path, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.RemoteAddr = ip + ":5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_FallbackEnforcesBurst(t *testing.T) {
	rl := NewRateLimiter(unreachableRedis(t), RateLimitConfig{
		Name:  "test",
		Limit: PerMinute(1, 2),
	}, quietLogger())
	h := rl.Handler(okHandler())

	assert.Equal(t, http.StatusOK, hit(h, "/auth/login", "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, hit(h, "/auth/login", "10.0.0.1").Code)

	rec := hit(h, "/auth/login", "10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "RATE_LIMITED", errorCode(t, rec))

	assert.Equal(t, http.StatusOK, hit(h, "/auth/login", "10.0.0.2").Code)
}

func TestRateLimiter_PerEndpointBudgets(t *testing.T) {
	rl := NewRateLimiter(unreachableRedis(t), RateLimitConfig{
		Name:    "credentials",
		Limit:   PerMinute(1, 1),
		KeyFunc: KeyByIPAndEndpoint,
	}, quietLogger())
	h := rl.Handler(okHandler())

	assert.Equal(t, http.StatusOK, hit(h, "/auth/login", "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "/auth/login", "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, hit(h, "/auth/refresh", "10.0.0.1").Code)
}

func TestRateLimiter_Bypass(t *testing.T) {
	rl := NewRateLimiter(unreachableRedis(t), RateLimitConfig{
		Limit: PerMinute(1, 1),
		BypassFunc: func(r *http.Request) bool {
			return r.URL.Path != "/auth/forgot-password"
		},
	}, quietLogger())
	h := rl.Handler(okHandler())

	for range 5 {
		assert.Equal(t, http.StatusOK, hit(h, "/auth/login", "10.0.0.1").Code)
	}

	assert.Equal(t, http.StatusOK, hit(h, "/auth/forgot-password", "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "/auth/forgot-password", "10.0.0.1").Code)
}

func TestRateLimiter_OnLimited(t *testing.T) {
	rl := NewRateLimiter(unreachableRedis(t), RateLimitConfig{
		Limit: PerMinute(1, 1),
		OnLimited: func(w http.ResponseWriter, _ *http.Request, _ *redis_rate.Result) {
			w.WriteHeader(http.StatusTeapot)
		},
	}, quietLogger())
	h := rl.Handler(okHandler())

	hit(h, "/", "10.0.0.1")
	assert.Equal(t, http.StatusTeapot, hit(h, "/", "10.0.0.1").Code)
}

func TestKeyByIPAndEndpoint(t *testing.T) {
	req := httptest.NewRequest(
		http.MethodDelete,
		"/auth/sessions/3f2504e0-4f89-11d3-9a0c-0305e82c3301",
		nil,
	)
	req.RemoteAddr = "10.0.0.9:1234"

	assert.Equal(t, "ip:10.0.0.9:endpoint:/auth/sessions/{id}", KeyByIPAndEndpoint(req))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:4000"
	assert.Equal(t, "192.0.2.1", ClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 198.51.100.2")
	assert.Equal(t, "198.51.100.2", ClientIP(req))
}

func TestPerWindow(t *testing.T) {
	limit := PerWindow(100, 20, 0)
	assert.Equal(t, time.Minute, limit.Period)
	assert.Equal(t, 100, limit.Rate)
	assert.Equal(t, 20, limit.Burst)

	assert.Equal(t, 30*time.Second, PerWindow(5, 5, 30*time.Second).Period)
}
