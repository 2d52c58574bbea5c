// AngelaMos | 2026
// config.go

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Secrets   SecretsConfig   `koanf:"secrets"`
	JWT       JWTConfig       `koanf:"jwt"`
	Cookie    CookieConfig    `koanf:"cookie"`
	CSRF      CSRFConfig      `koanf:"csrf"`
	Email     EmailConfig     `koanf:"email"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
	Metrics   MetricsConfig   `koanf:"metrics"`

	// Warnings collects non-fatal findings from validation, such as
	// low-entropy secrets, for the caller to log once a logger exists.
	Warnings []string `koanf:"-"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	MigrateOnStart  bool          `koanf:"migrate_on_start"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

// SecretsConfig holds the keys every request path depends on. They are
// checked once at boot by SecretsConfig.Validate.
type SecretsConfig struct {
	AccessTokenKey string `koanf:"access_token_key"`
	SessionKey     string `koanf:"session_key"`
	TokenHashKey   string `koanf:"token_hash_key"`
}

type JWTConfig struct {
	AccessTokenExpire  time.Duration `koanf:"access_token_expire"`
	RefreshTokenExpire time.Duration `koanf:"refresh_token_expire"`
	Issuer             string        `koanf:"issuer"`
	Audience           string        `koanf:"audience"`
}

type CookieConfig struct {
	Domain      string `koanf:"domain"`
	Secure      bool   `koanf:"secure"`
	AccessName  string `koanf:"access_name"`
	RefreshName string `koanf:"refresh_name"`
	RefreshPath string `koanf:"refresh_path"`
}

type CSRFConfig struct {
	HeaderName string        `koanf:"header_name"`
	CookieName string        `koanf:"cookie_name"`
	TTL        time.Duration `koanf:"ttl"`
}

type EmailConfig struct {
	SMTPHost        string        `koanf:"smtp_host"`
	SMTPPort        int           `koanf:"smtp_port"`
	SMTPUser        string        `koanf:"smtp_user"`
	SMTPPassword    string        `koanf:"smtp_password"`
	From            string        `koanf:"from"`
	TLSMode         string        `koanf:"tls_mode"`
	BaseURL         string        `koanf:"base_url"`
	VerificationTTL time.Duration `koanf:"verification_ttl"`
	ResetTTL        time.Duration `koanf:"reset_ttl"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
	Burst    int           `koanf:"burst"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// Load builds a Config from defaults, an optional YAML file, an optional
// .env file and the process environment, in that order of precedence.
func Load(configPath, envFile string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "Go Auth",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",
		"server.request_timeout":  "15s",

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",
		"database.migrate_on_start":   true,

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"jwt.access_token_expire":  "1h",
		"jwt.refresh_token_expire": "168h",
		"jwt.issuer":               "go-auth",
		"jwt.audience":             "go-auth-api",

		"cookie.secure":       true,
		"cookie.access_name":  "access_token",
		"cookie.refresh_name": "refresh_token",
		"cookie.refresh_path": "/auth",

		"csrf.header_name": "X-CSRF-Token",
		"csrf.cookie_name": "csrf_token",
		"csrf.ttl":         "24h",

		"email.smtp_port":        587,
		"email.tls_mode":         "auto",
		"email.from":             "no-reply@localhost",
		"email.base_url":         "http://localhost:3000",
		"email.verification_ttl": "24h",
		"email.reset_ttl":        "1h",

		"rate_limit.requests": 100,
		"rate_limit.window":   "1m",
		"rate_limit.burst":    20,

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
			"X-CSRF-Token",
			"X-Refresh-Token",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "go-auth",

		"metrics.enabled": true,
		"metrics.path":    "/metrics",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                "database.url",
	"DATABASE_MIGRATE_ON_START":   "database.migrate_on_start",
	"REDIS_URL":                   "redis.url",
	"ENVIRONMENT":                 "app.environment",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"ACCESS_TOKEN_SECRET":         "secrets.access_token_key",
	"SESSION_SECRET":              "secrets.session_key",
	"TOKEN_HASH_SECRET":           "secrets.token_hash_key",
	"JWT_ACCESS_TOKEN_EXPIRE":     "jwt.access_token_expire",
	"JWT_REFRESH_TOKEN_EXPIRE":    "jwt.refresh_token_expire",
	"JWT_ISSUER":                  "jwt.issuer",
	"JWT_AUDIENCE":                "jwt.audience",
	"COOKIE_DOMAIN":               "cookie.domain",
	"COOKIE_SECURE":               "cookie.secure",
	"COOKIE_REFRESH_PATH":         "cookie.refresh_path",
	"CSRF_TTL":                    "csrf.ttl",
	"SMTP_HOST":                   "email.smtp_host",
	"SMTP_PORT":                   "email.smtp_port",
	"SMTP_USER":                   "email.smtp_user",
	"SMTP_PASSWORD":               "email.smtp_password",
	"SMTP_TLS_MODE":               "email.tls_mode",
	"EMAIL_FROM":                  "email.from",
	"APP_BASE_URL":                "email.base_url",
	"CORS_ALLOWED_ORIGINS":        "cors.allowed_origins",
	"RATE_LIMIT_REQUESTS":         "rate_limit.requests",
	"RATE_LIMIT_WINDOW":           "rate_limit.window",
	"RATE_LIMIT_BURST":            "rate_limit.burst",
	"OTEL_ENDPOINT":               "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",
	"METRICS_ENABLED":             "metrics.enabled",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

func validate(c *Config) error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	warnings, err := c.Secrets.Validate()
	if err != nil {
		return err
	}
	c.Warnings = append(c.Warnings, warnings...)

	if c.JWT.AccessTokenExpire <= 0 {
		return fmt.Errorf("jwt.access_token_expire must be positive")
	}

	if c.JWT.RefreshTokenExpire <= c.JWT.AccessTokenExpire {
		return fmt.Errorf(
			"jwt.refresh_token_expire must be longer than jwt.access_token_expire",
		)
	}

	if c.CSRF.TTL <= 0 {
		return fmt.Errorf("csrf.ttl must be positive")
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
		if !c.Cookie.Secure {
			return fmt.Errorf("COOKIE_SECURE must be true in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LookupEnvFile returns path when it exists, otherwise "".
func LookupEnvFile(path string) string {
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
