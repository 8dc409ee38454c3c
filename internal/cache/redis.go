package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"reconciler-service/internal/domain"
)

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 5 * time.Minute,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r RedisCache) Get(ctx context.Context, key domain.InventoryKey) (*domain.InventoryRecord, error) {
	data, err := r.client.Get(ctx, cacheKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var record domain.InventoryRecord
	if err2 := json.Unmarshal(data, &record); err2 != nil {
		return nil, fmt.Errorf("unmarshal stock record failed: %w", err2)
	}

	return &record, nil
}

func (r RedisCache) Set(ctx context.Context, key domain.InventoryKey, record *domain.InventoryRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal stock record failed: %w", err)
	}

	// Jitter spreads expiry so hot products don't refill in lockstep.
	jitter := time.Duration(rand.Intn(30)) * time.Second
	ttl := r.baseTTL + jitter
	if ret := r.client.Set(ctx, cacheKey(key), string(data), ttl); ret.Err() != nil {
		return fmt.Errorf("redis set failed: %w", ret.Err())
	}
	return nil
}

func (r RedisCache) Delete(ctx context.Context, key domain.InventoryKey) error {
	if err := r.client.Del(ctx, cacheKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(key domain.InventoryKey) string {
	return fmt.Sprintf("stock:%s", key)
}
