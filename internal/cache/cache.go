package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/numbrly/portal/internal/config"
	"github.com/numbrly/portal/internal/logger"
	"github.com/numbrly/portal/internal/redis"
	"github.com/numbrly/portal/internal/types"
)

// Cache defines the interface for caching operations. Values are opaque bytes
// so that the in-memory and redis drivers behave the same.
type Cache interface {
	// Get retrieves a value from the cache
	// Returns the value and a boolean indicating whether the key was found
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set adds a value to the cache with the specified expiration
	// If expiration is 0, the driver default applies
	Set(ctx context.Context, key string, value []byte, expiration time.Duration)

	// Delete removes a key from the cache
	Delete(ctx context.Context, key string)
}

// Predefined cache key prefixes for different entity types
const (
	PrefixTopUp = "topup:v1:"
)

// GenerateKey creates a cache key from a prefix and a set of parameters
// It joins all parameters with a colon and appends them to the prefix
func GenerateKey(prefix string, params ...interface{}) string {
	parts := make([]string, len(params)+1)
	parts[0] = prefix

	for i, param := range params {
		parts[i+1] = fmt.Sprintf("%v", param)
	}

	return strings.Join(parts, ":")
}

// NewCache returns the configured driver. A disabled cache is a no-op so
// callers never branch on configuration.
func NewCache(cfg *config.Configuration, client *redis.Client, log *logger.Logger) Cache {
	if !cfg.Cache.Enabled {
		log.Info("cache is disabled")
		return noopCache{}
	}

	if cfg.Cache.Driver == types.CacheDriverRedis {
		if client == nil {
			log.Warn("cache driver is redis but redis is not configured, falling back to memory")
			return NewInMemoryCache()
		}
		return NewRedisCache(client, log)
	}
	return NewInMemoryCache()
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) ([]byte, bool)         { return nil, false }
func (noopCache) Set(context.Context, string, []byte, time.Duration) {}
func (noopCache) Delete(context.Context, string)                     {}
