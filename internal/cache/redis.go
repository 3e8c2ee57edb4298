package cache

import (
	"context"
	"errors"
	"time"

	"github.com/numbrly/portal/internal/logger"
	"github.com/numbrly/portal/internal/redis"
	goredis "github.com/redis/go-redis/v9"
)

// RedisCache shares cached responses between api replicas. Redis errors
// degrade to a cache miss.
type RedisCache struct {
	client *redis.Client
	logger *logger.Logger
}

func NewRedisCache(client *redis.Client, log *logger.Logger) *RedisCache {
	return &RedisCache{client: client, logger: log}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	span := StartCacheSpan(ctx, "redis", "get", map[string]interface{}{"key": key})
	defer FinishSpan(span)

	b, err := c.client.Get(ctx, c.client.Key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false
	}
	if err != nil {
		SetSpanError(span, err)
		c.logger.Warnw("redis cache get failed", "key", key, "error", err)
		return nil, false
	}
	SetSpanSuccess(span)
	return b, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) {
	span := StartCacheSpan(ctx, "redis", "set", map[string]interface{}{"key": key})
	defer FinishSpan(span)

	if expiration == 0 {
		expiration = DefaultExpiration
	}
	if err := c.client.Set(ctx, c.client.Key(key), value, expiration).Err(); err != nil {
		SetSpanError(span, err)
		c.logger.Warnw("redis cache set failed", "key", key, "error", err)
	}
}

func (c *RedisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.client.Key(key)).Err(); err != nil {
		c.logger.Warnw("redis cache delete failed", "key", key, "error", err)
	}
}
