// AngelaMos | 2026
// handler_test.go

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func healthy() Checker {
	return pingFunc(func(context.Context) error { return nil })
}

func failing() Checker {
	return pingFunc(func(context.Context) error { return errors.New("connection refused") })
}

func get(t *testing.T, h *Handler, path string) (*httptest.ResponseRecorder, ReadinessResponse) {
	t.Helper()

	r := chi.NewRouter()
	h.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestLiveness(t *testing.T) {
	h := NewHandler()

	for _, path := range []string{"/healthz", "/livez"} {
		rec, body := get(t, h, path)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "ok", body.Status, path)
		assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))
	}

	h.SetShutdown(true)
	rec, body := get(t, h, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "shutting_down", body.Status)
}

func TestReadiness_AllHealthy(t *testing.T) {
	h := NewHandler(
		Dependency{Name: "postgres", Checker: healthy()},
		Dependency{Name: "redis", Checker: healthy()},
	)

	rec, body := get(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body.Status)
	require.Len(t, body.Checks, 2)
	assert.Equal(t, "postgres", body.Checks[0].Name)
	assert.Equal(t, "redis", body.Checks[1].Name)
	assert.True(t, body.Checks[0].Healthy)
	assert.NotEmpty(t, body.Checks[0].Latency)
}

func TestReadiness_Degraded(t *testing.T) {
	h := NewHandler(
		Dependency{Name: "postgres", Checker: healthy()},
		Dependency{Name: "redis", Checker: failing()},
		Dependency{Name: "smtp"},
	)

	rec, body := get(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", body.Status)
	require.Len(t, body.Checks, 3)

	assert.True(t, body.Checks[0].Healthy)
	assert.False(t, body.Checks[1].Healthy)
	assert.Equal(t, "ping failed", body.Checks[1].Message)
	assert.NotContains(t, rec.Body.String(), "connection refused")
	assert.False(t, body.Checks[2].Healthy)
	assert.Equal(t, "not configured", body.Checks[2].Message)
}

func TestReadiness_NotReadyAndShutdown(t *testing.T) {
	h := NewHandler(Dependency{Name: "postgres", Checker: healthy()})

	h.SetReady(false)
	rec, body := get(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not_ready", body.Status)

	h.SetReady(true)
	h.SetShutdown(true)
	rec, body = get(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "shutting_down", body.Status)
}
