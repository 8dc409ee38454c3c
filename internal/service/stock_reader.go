package service

import (
	"context"
	"errors"
	"log"

	"golang.org/x/sync/singleflight"

	"reconciler-service/internal/cache"
	"reconciler-service/internal/domain"
	"reconciler-service/internal/repository"
)

// StockReader is the storefront-facing read path: cached stock lookups with
// stampede protection. Reconciliation invalidates the cached key on every
// applied decrement, so reads converge quickly after a sale.
type StockReader struct {
	inventory repository.InventoryRepository
	cache     cache.StockCache
	sfg       singleflight.Group // Prevents cache stampede
}

func NewStockReader(inventory repository.InventoryRepository, stockCache cache.StockCache) *StockReader {
	return &StockReader{
		inventory: inventory,
		cache:     stockCache,
	}
}

func (s *StockReader) GetStock(ctx context.Context, key domain.InventoryKey) (*domain.InventoryRecord, error) {
	v, err, _ := s.sfg.Do(key.String(), func() (interface{}, error) {

		record, err := s.cache.Get(ctx, key)
		if err == nil {
			return record, nil
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("cache get error: %v", err) // log cache error but continue
		}

		record, errGet := s.inventory.GetStock(ctx, key)
		if errGet != nil {
			return nil, errGet
		}

		go func() {
			if errSet := s.cache.Set(context.Background(), key, record); errSet != nil {
				log.Printf("cache set error: %v", errSet)
			}
		}()

		return record, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.InventoryRecord), nil
}
