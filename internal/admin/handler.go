// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/templates/go-auth/internal/core"
	"github.com/carterperez-dev/templates/go-auth/internal/user"
)

type UserStats interface {
	Stats(ctx context.Context) (*user.Stats, error)
}

type SessionRevoker interface {
	RevokeUserSessions(ctx context.Context, userID string) (int64, error)
}

type HandlerConfig struct {
	DBStats    func() sql.DBStats
	DBPing     func(ctx context.Context) error
	RedisStats func() *redis.PoolStats
	RedisPing  func(ctx context.Context) error
	Users      UserStats
	Sessions   SessionRevoker
}

type Handler struct {
	cfg HandlerConfig
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{cfg: cfg}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/stats", h.GetStats)
		r.Delete("/sessions/{userID}", h.RevokeUserSessions)
	})
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := StatsResponse{
		Database: ComponentStatus{Healthy: ping(ctx, h.cfg.DBPing)},
		Redis:    ComponentStatus{Healthy: ping(ctx, h.cfg.RedisPing)},
		Runtime:  readRuntime(),
	}

	if h.cfg.DBStats != nil {
		s := h.cfg.DBStats()
		resp.Database.Pool = &PoolStats{
			Open:    s.OpenConnections,
			InUse:   s.InUse,
			Idle:    s.Idle,
			Waits:   s.WaitCount,
			WaitFor: s.WaitDuration.String(),
		}
	}

	if h.cfg.RedisStats != nil {
		s := h.cfg.RedisStats()
		resp.Redis.Pool = &PoolStats{
			Open:     int(s.TotalConns),
			Idle:     int(s.IdleConns),
			Hits:     s.Hits,
			Misses:   s.Misses,
			Timeouts: s.Timeouts,
		}
	}

	if h.cfg.Users != nil {
		stats, err := h.cfg.Users.Stats(ctx)
		if err != nil {
			core.InternalServerError(w, r, err)
			return
		}
		resp.Users = stats
	}

	core.OK(w, resp)
}

func (h *Handler) RevokeUserSessions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		core.BadRequest(w, "user ID required")
		return
	}

	revoked, err := h.cfg.Sessions.RevokeUserSessions(r.Context(), userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "user")
			return
		}
		core.InternalServerError(w, r, err)
		return
	}

	core.OK(w, RevokeResponse{Revoked: revoked})
}

func ping(ctx context.Context, fn func(context.Context) error) bool {
	return fn != nil && fn(ctx) == nil
}

func readRuntime() RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return RuntimeStats{
		GoVersion:  runtime.Version(),
		Goroutines: runtime.NumGoroutine(),
		CPUs:       runtime.NumCPU(),
		HeapAlloc:  mem.HeapAlloc,
		Sys:        mem.Sys,
		NumGC:      mem.NumGC,
	}
}

type StatsResponse struct {
	Users    *user.Stats     `json:"users,omitempty"`
	Database ComponentStatus `json:"database"`
	Redis    ComponentStatus `json:"redis"`
	Runtime  RuntimeStats    `json:"runtime"`
}

type ComponentStatus struct {
	Healthy bool       `json:"healthy"`
	Pool    *PoolStats `json:"pool,omitempty"`
}

type PoolStats struct {
	Open     int    `json:"open"`
	InUse    int    `json:"inUse,omitempty"`
	Idle     int    `json:"idle"`
	Waits    int64  `json:"waits,omitempty"`
	WaitFor  string `json:"waitFor,omitempty"`
	Hits     uint32 `json:"hits,omitempty"`
	Misses   uint32 `json:"misses,omitempty"`
	Timeouts uint32 `json:"timeouts,omitempty"`
}

type RuntimeStats struct {
	GoVersion  string `json:"goVersion"`
	Goroutines int    `json:"goroutines"`
	CPUs       int    `json:"cpus"`
	HeapAlloc  uint64 `json:"heapAllocBytes"`
	Sys        uint64 `json:"sysBytes"`
	NumGC      uint32 `json:"numGC"`
}

type RevokeResponse struct {
	Revoked int64 `json:"revoked"`
}
