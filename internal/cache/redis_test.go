package cache

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reconciler-service/internal/domain"
)

// setupTestRedis creates a miniredis server and returns a RedisCache instance
func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := NewRedisCache(client)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return cache, mr, cleanup
}

func TestGet_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	key := domain.InventoryKey{ProductID: "P1", VariantKey: "size-m"}
	record := &domain.InventoryRecord{
		ProductID:    "P1",
		VariantKey:   "size-m",
		ProductName:  "Plain Tee (M)",
		CurrentStock: 7,
	}

	// Manually set data in miniredis
	data, _ := json.Marshal(record)
	mr.Set(cacheKey(key), string(data))

	result, err := cache.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "P1", result.ProductID)
	assert.Equal(t, 7, result.CurrentStock)
}

func TestGet_CacheMiss(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	result, err := cache.Get(context.Background(), domain.InventoryKey{ProductID: "nonexistent"})
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, result)
}

func TestGet_InvalidJSON(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	key := domain.InventoryKey{ProductID: "P1"}
	mr.Set(cacheKey(key), "not-json")

	result, err := cache.Get(context.Background(), key)
	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestSet_RoundTrip(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	key := domain.InventoryKey{ProductID: "P2"}
	record := &domain.InventoryRecord{ProductID: "P2", CurrentStock: 3}

	err := cache.Set(context.Background(), key, record)
	require.NoError(t, err)
	assert.True(t, mr.Exists(cacheKey(key)))

	result, err := cache.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 3, result.CurrentStock)

	// TTL set with jitter on top of the base
	ttl := mr.TTL(cacheKey(key))
	assert.GreaterOrEqual(t, ttl, cache.baseTTL)
}

func TestDelete_RemovesKey(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	key := domain.InventoryKey{ProductID: "P3"}
	require.NoError(t, cache.Set(context.Background(), key, &domain.InventoryRecord{ProductID: "P3"}))

	require.NoError(t, cache.Delete(context.Background(), key))
	assert.False(t, mr.Exists(cacheKey(key)))
}

func TestDelete_MissingKeyIsNoError(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	assert.NoError(t, cache.Delete(context.Background(), domain.InventoryKey{ProductID: "ghost"}))
}
