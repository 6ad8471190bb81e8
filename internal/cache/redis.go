// Package cache holds the per-entity record collections and the Redis
// storage behind them: snapshot mirrors, auth contexts and rate limits.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps the shared Redis client.
type Cache struct {
	client *redis.Client
}

// Option adjusts the Redis client before it connects.
type Option func(*redis.Options)

// WithPoolSize caps open connections. Zero keeps the default.
func WithPoolSize(n int) Option {
	return func(o *redis.Options) {
		if n > 0 {
			o.PoolSize = n
		}
	}
}

// WithMinIdleConns keeps n warm connections.
func WithMinIdleConns(n int) Option {
	return func(o *redis.Options) {
		if n >= 0 {
			o.MinIdleConns = n
		}
	}
}

const pingTimeout = 3 * time.Second

// New connects to redisURL and pings it once.
func New(ctx context.Context, redisURL string, opts ...Option) (*Cache, error) {
	o, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	o.PoolSize = 10
	o.MinIdleConns = 2
	o.PoolTimeout = 4 * time.Second
	o.ConnMaxIdleTime = 5 * time.Minute
	for _, opt := range opts {
		opt(o)
	}

	c := &Cache{client: redis.NewClient(o)}
	if err := c.Ping(ctx); err != nil {
		_ = c.client.Close()
		return nil, err
	}
	return c, nil
}

// Ping reports whether Redis answers within a few seconds.
func (c *Cache) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// Client is shared with the activity stream.
func (c *Cache) Client() *redis.Client {
	return c.client
}
