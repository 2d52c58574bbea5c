// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/carterperez-dev/templates/go-auth/internal/admin"
	"github.com/carterperez-dev/templates/go-auth/internal/auth"
	"github.com/carterperez-dev/templates/go-auth/internal/company"
	"github.com/carterperez-dev/templates/go-auth/internal/config"
	"github.com/carterperez-dev/templates/go-auth/internal/core"
	"github.com/carterperez-dev/templates/go-auth/internal/csrf"
	"github.com/carterperez-dev/templates/go-auth/internal/email"
	"github.com/carterperez-dev/templates/go-auth/internal/health"
	"github.com/carterperez-dev/templates/go-auth/internal/middleware"
	"github.com/carterperez-dev/templates/go-auth/internal/server"
	"github.com/carterperez-dev/templates/go-auth/internal/session"
	"github.com/carterperez-dev/templates/go-auth/internal/user"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	envFile := flag.String("env", ".env", "path to dotenv file")
	flag.Parse()

	if err := run(*configPath, *envFile); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath, envFile string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath, config.LookupEnvFile(envFile))
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	for _, w := range cfg.Warnings {
		logger.Warn("config warning", "detail", w)
	}

	telemetry, err := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
	if err != nil {
		logger.Warn("failed to initialize telemetry", "error", err)
	} else if cfg.Otel.Enabled {
		logger.Info("OpenTelemetry tracer initialized",
			"endpoint", cfg.Otel.Endpoint,
		)
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if cfg.Database.MigrateOnStart {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := core.NewAuthMetrics(registry)
	if err != nil {
		return err
	}

	codec, err := auth.NewTokenCodec(cfg.Secrets, cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("token codec initialized",
		"algorithm", "HS256",
		"access_ttl", codec.AccessTokenTTL(),
		"refresh_ttl", codec.RefreshTokenTTL(),
	)

	transport := session.NewTransport(cfg.Cookie)
	csrfManager := csrf.NewManager(cfg.Secrets.SessionKey, cfg.CSRF, cfg.Cookie)

	mailer := email.NewMailer(email.NewSender(cfg.Email, logger), cfg.Email)

	companySvc := company.NewService(company.NewRepository(db.DB))
	userSvc := user.NewService(
		user.NewRepository(db.DB),
		user.WithCompanies(companySvc),
	)

	ledger := auth.NewLedger(auth.NewRepository(db.DB), codec, logger)
	authSvc := auth.NewService(auth.ServiceConfig{
		Ledger:          ledger,
		Codec:           codec,
		Users:           userSvc,
		Companies:       companySvc,
		Mailer:          mailer,
		Metrics:         metrics,
		Logger:          logger,
		VerificationTTL: cfg.Email.VerificationTTL,
		ResetTTL:        cfg.Email.ResetTTL,
	})
	userSvc.SetSessionRevoker(authSvc)

	authHandler := auth.NewHandler(authSvc, transport, csrfManager)
	userHandler := user.NewHandler(userSvc)
	csrfHandler := csrf.NewHandler(csrfManager)

	healthHandler := health.NewHandler(
		health.Dependency{Name: "database", Checker: db},
		health.Dependency{Name: "redis", Checker: redis},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:    db.Stats,
		DBPing:     db.Ping,
		RedisStats: redis.PoolStats,
		RedisPing:  redis.Ping,
		Users:      userSvc,
		Sessions:   authSvc,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Tracing)
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recoverer(logger))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.PerWindow(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
				cfg.RateLimit.Window,
			),
			FailOpen: true,
		}, logger).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	if cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	authenticator := middleware.Authenticator(codec, transport.AccessTokenFromRequest)
	adminOnly := middleware.RequireRole(user.RoleAdmin)

	credentialLimiter := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Name:     "credentials",
		Limit:    middleware.PerMinute(10, 5),
		KeyFunc:  middleware.KeyByIPAndEndpoint,
		FailOpen: true,
		BypassFunc: func(r *http.Request) bool {
			return !isCredentialRoute(r.URL.Path)
		},
	}, logger)
	recoveryLimiter := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Name:     "recovery",
		Limit:    middleware.PerHour(5, 5),
		KeyFunc:  middleware.KeyByIPAndEndpoint,
		FailOpen: true,
		BypassFunc: func(r *http.Request) bool {
			return r.URL.Path != "/auth/forgot-password"
		},
	}, logger)

	router.Group(func(r chi.Router) {
		r.Use(middleware.CSRF(csrfManager))
		r.Use(credentialLimiter.Handler)
		r.Use(recoveryLimiter.Handler)

		csrfHandler.RegisterRoutes(r)
		authHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		adminHandler.RegisterRoutes(r, authenticator, adminOnly)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown error", "error", err)
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func isCredentialRoute(path string) bool {
	switch path {
	case "/auth/login", "/auth/register", "/auth/refresh",
		"/auth/reset-password", "/auth/verify-email", "/auth/change-password":
		return true
	default:
		return false
	}
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
