// Package redis provides the Redis connection and Redis-backed rate limiting.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/config"
)

// DefaultKeyPrefix namespaces keys when no prefix is configured.
const DefaultKeyPrefix = "winking-owl:"

// Client is a Redis connection whose keys live under one prefix.
type Client struct {
	rdb    *redis.Client
	prefix string
}

// NewClient dials Redis and fails unless it answers a PING within the dial timeout.
// Zero pool and timeout settings keep the go-redis defaults.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.IOTimeout,
		WriteTimeout: cfg.IOTimeout,
	})

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address(), err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Client{rdb: rdb, prefix: prefix}, nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping serves as the /readyz check for Redis.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Key returns key under the client prefix.
func (c *Client) Key(key string) string {
	return c.prefix + key
}

// Redis exposes the go-redis client for pipelines and scripts.
func (c *Client) Redis() *redis.Client {
	return c.rdb
}
