package queueaccess

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lintfix/internal/config"
	"lintfix/internal/queue"
	"lintfix/internal/queue/redisstore"
	"lintfix/internal/queue/sqlitestore"
)

// Open returns the queue.Store selected by cfg.Store.Backend.
func Open(ctx context.Context, cfg *config.Config) (queue.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("open queue store: config is required")
	}
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		store, err := sqlitestore.Open(ctx, cfg.SQLite.Path, SQLiteOptions(cfg))
		if err != nil {
			return nil, fmt.Errorf("open sqlite queue: %w", err)
		}
		return store, nil
	case config.BackendRedis:
		store, err := redisstore.Connect(ctx, RedisOptions(cfg), redisstore.Options{KeyPrefix: cfg.Redis.KeyPrefix})
		if err != nil {
			return nil, fmt.Errorf("open redis queue: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("open queue store: unknown backend %q", cfg.Store.Backend)
	}
}

// SQLiteOptions maps the [sqlite] section onto store options.
func SQLiteOptions(cfg *config.Config) sqlitestore.Options {
	return sqlitestore.Options{
		BusyTimeout: time.Duration(cfg.SQLite.BusyTimeoutMS) * time.Millisecond,
	}
}

// RedisOptions maps the [redis] section onto client options. More than one
// address selects a cluster client.
func RedisOptions(cfg *config.Config) *redis.UniversalOptions {
	return &redis.UniversalOptions{
		Addrs:       append([]string(nil), cfg.Redis.Addrs...),
		Username:    cfg.Redis.Username,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: time.Duration(cfg.Redis.DialTimeout) * time.Second,
	}
}

// Describe summarizes where the configured queue lives, for CLI output.
func Describe(cfg *config.Config) string {
	switch cfg.Store.Backend {
	case config.BackendRedis:
		return fmt.Sprintf("redis %v prefix %s", cfg.Redis.Addrs, cfg.Redis.KeyPrefix)
	default:
		return "sqlite " + cfg.SQLite.Path
	}
}
