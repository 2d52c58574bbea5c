// AngelaMos | 2026
// redis.go

package core

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/templates/go-auth/internal/config"
)

const (
	redisPoolTimeout = 30 * time.Second
	redisIdleTimeout = 5 * time.Minute
	redisPingTimeout = 5 * time.Second
)

// Redis holds the rate limiter's counters. Sessions never live here, so
// losing it degrades limiting only.
type Redis struct {
	Client *redis.Client
}

func redisOptions(cfg config.RedisConfig) (*redis.Options, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	opts.PoolTimeout = redisPoolTimeout
	opts.ConnMaxIdleTime = redisIdleTimeout

	return opts, nil
}

// NewRedis connects and pings once. A client that cannot reach the
// server is closed before returning.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}

	r := &Redis{Client: redis.NewClient(opts)}
	if err := r.Ping(ctx); err != nil {
		_ = r.Client.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("connect redis at %s: %w", opts.Addr, err)
	}

	return r, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if err := r.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (r *Redis) PoolStats() *redis.PoolStats {
	return r.Client.PoolStats()
}

func (r *Redis) Close() error {
	if r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
