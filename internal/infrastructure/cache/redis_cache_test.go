package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	cache := NewRedisCache(&redis.Options{Addr: mr.Addr()}, "helpdesk-test")
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestRedisCacheRoundTripWithPrefix(t *testing.T) {
	cache, mr := setupRedisCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Ping(ctx))
	require.NoError(t, cache.Set(ctx, "session:user", `{"documentId":"u1"}`, 0))

	raw, err := mr.Get("helpdesk-test:session:user")
	require.NoError(t, err)
	assert.Equal(t, `{"documentId":"u1"}`, raw)

	value, found, err := cache.Get(ctx, "session:user")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"documentId":"u1"}`, value)

	require.NoError(t, cache.Delete(ctx, "session:user"))
	_, found, err = cache.Get(ctx, "session:user")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisCacheTTL(t *testing.T) {
	cache, mr := setupRedisCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "otp:u1", "4242", time.Minute))
	mr.FastForward(2 * time.Minute)

	_, found, err := cache.Get(ctx, "otp:u1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisCacheTransportError(t *testing.T) {
	cache, mr := setupRedisCache(t)
	mr.Close()

	_, _, err := cache.Get(context.Background(), "session:token")
	assert.Error(t, err)
}
