package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yukikurage/project-management-api/internal/config"
	applog "github.com/yukikurage/project-management-api/internal/logger"
)

// RedisOptions builds client options from REDIS_URL, or from host and port when it is unset.
func RedisOptions(cfg *config.Config) (*redis.Options, error) {
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: cfg.RedisHost + ":" + cfg.RedisPort}, nil
}

// ConnectRedis opens a Redis client and checks that the server answers.
func ConnectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	opts, err := RedisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	applog.Log.WithField("addr", opts.Addr).Info("Redis connection established")
	return client, nil
}
