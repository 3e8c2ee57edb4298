package cache

import (
	"context"
	"testing"
	"time"

	"github.com/numbrly/portal/internal/config"
	"github.com/numbrly/portal/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKey(t *testing.T) {
	assert.Equal(t, "topup:v1::usr_1:key-1", GenerateKey(PrefixTopUp, "usr_1", "key-1"))
}

func TestInMemoryCacheJSON(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	type payload struct {
		Balance int64 `json:"balance"`
	}

	var out payload
	assert.False(t, GetJSON(ctx, c, "missing", &out))

	SetJSON(ctx, c, "k", payload{Balance: 1500}, time.Minute)
	require.True(t, GetJSON(ctx, c, "k", &out))
	assert.Equal(t, int64(1500), out.Balance)

	c.Delete(ctx, "k")
	assert.False(t, GetJSON(ctx, c, "k", &out))
}

func TestInMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	c.Set(ctx, "short", []byte("v"), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	_, ok := c.Get(ctx, "short")
	assert.False(t, ok)
}

func TestNewCacheDisabledIsNoop(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Cache.Enabled = false

	c := NewCache(cfg, nil, logger.NewNoopLogger())
	c.Set(context.Background(), "k", []byte("v"), time.Minute)
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestNewCacheRedisWithoutClientFallsBack(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Cache.Enabled = true
	cfg.Cache.Driver = "redis"

	c := NewCache(cfg, nil, logger.NewNoopLogger())
	_, isMemory := c.(*InMemoryCache)
	assert.True(t, isMemory)
}
