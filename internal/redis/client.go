package redis

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/numbrly/portal/internal/config"
	ierr "github.com/numbrly/portal/internal/errors"
	"github.com/numbrly/portal/internal/logger"
	"github.com/redis/go-redis/v9"
)

// Client wraps the go-redis client with health checking
type Client struct {
	*redis.Client
	prefix string
}

// New creates a Redis client and pings it. Returns nil when no host is configured.
func New(cfg *config.Configuration, log *logger.Logger) (*Client, error) {
	if cfg.Redis.Host == "" {
		return nil, nil
	}

	opts := &redis.Options{
		Addr:         cfg.Redis.GetAddress(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	}
	if cfg.Redis.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, ierr.WithError(err).
			WithHint("Redis is unreachable").
			WithReportableDetails(map[string]any{"address": opts.Addr}).
			Mark(ierr.ErrSystem)
	}

	log.Infow("connected to redis", "address", opts.Addr, "db", cfg.Redis.DB)
	return &Client{Client: client, prefix: cfg.Redis.KeyPrefix}, nil
}

// Key applies the configured key prefix
func (c *Client) Key(key string) string {
	return c.prefix + key
}

// Health checks if the Redis connection is healthy
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.Client.Close()
}
