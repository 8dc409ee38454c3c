package cache

import (
	"context"
	"errors"

	"reconciler-service/internal/domain"
)

type StockCache interface {
	Get(ctx context.Context, key domain.InventoryKey) (*domain.InventoryRecord, error)
	Set(ctx context.Context, key domain.InventoryKey, record *domain.InventoryRecord) error
	Delete(ctx context.Context, key domain.InventoryKey) error
}

var ErrCacheMiss = errors.New("cache miss")
