// AngelaMos | 2026
// server.go

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/carterperez-dev/templates/go-auth/internal/config"
	"github.com/carterperez-dev/templates/go-auth/internal/core"
)

// Lifecycle is told when the server starts draining so readiness checks
// fail before connections close.
type Lifecycle interface {
	SetReady(ready bool)
	SetShutdown(shutdown bool)
}

type Config struct {
	ServerConfig  config.ServerConfig
	HealthHandler Lifecycle
	Logger        *slog.Logger
}

type Server struct {
	router *chi.Mux
	http   *http.Server
	health Lifecycle
	logger *slog.Logger
}

func New(cfg Config) *Server {
	router := chi.NewRouter()

	if cfg.ServerConfig.RequestTimeout > 0 {
		router.Use(chimw.Timeout(cfg.ServerConfig.RequestTimeout))
	}

	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		core.NotFound(w, "route")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		core.JSONError(w, core.NewAppError(
			core.ErrValidation,
			"method not allowed",
			http.StatusMethodNotAllowed,
			"METHOD_NOT_ALLOWED",
		))
	})

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		router: router,
		health: cfg.HealthHandler,
		logger: logger,
		http: &http.Server{
			Addr:              cfg.ServerConfig.Address(),
			Handler:           router,
			ReadTimeout:       cfg.ServerConfig.ReadTimeout,
			ReadHeaderTimeout: cfg.ServerConfig.ReadTimeout,
			WriteTimeout:      cfg.ServerConfig.WriteTimeout,
			IdleTimeout:       cfg.ServerConfig.IdleTimeout,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
		},
	}
}

func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start blocks until the server stops. A graceful shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)

	if err := s.http.ListenAndServe(); err != nil &&
		!errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown flips health to draining, waits drainDelay for load balancers
// to notice, then closes idle connections and waits for active ones.
func (s *Server) Shutdown(ctx context.Context, drainDelay time.Duration) error {
	if s.health != nil {
		s.health.SetShutdown(true)
		s.health.SetReady(false)
	}

	if drainDelay > 0 {
		s.logger.Info("draining before shutdown", "delay", drainDelay)
		timer := time.NewTimer(drainDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	s.logger.Info("http server stopped")
	return nil
}
