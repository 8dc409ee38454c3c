package service

import (
	"context"
	"sync"
	"time"

	"reconciler-service/internal/cache"
	"reconciler-service/internal/domain"
	"reconciler-service/internal/repository"
)

// mockCache implements cache.StockCache for testing
type mockCache struct {
	mu      sync.Mutex
	records map[domain.InventoryKey]*domain.InventoryRecord
	deleted []domain.InventoryKey
	getErr  error
	setErr  error
}

func newMockCache() *mockCache {
	return &mockCache{records: make(map[domain.InventoryKey]*domain.InventoryRecord)}
}

func (m *mockCache) Get(_ context.Context, key domain.InventoryKey) (*domain.InventoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	record, exists := m.records[key]
	if !exists {
		return nil, cache.ErrCacheMiss
	}
	return record, nil
}

func (m *mockCache) Set(_ context.Context, key domain.InventoryKey, record *domain.InventoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.records[key] = record
	return nil
}

func (m *mockCache) Delete(_ context.Context, key domain.InventoryKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	delete(m.records, key)
	return nil
}

func (m *mockCache) deletedKeys() []domain.InventoryKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.InventoryKey(nil), m.deleted...)
}

// failingInventory wraps a real InventoryRepository and injects infrastructure
// failures for chosen item keys.
type failingInventory struct {
	inner   repository.InventoryRepository
	mu      sync.Mutex
	failFor map[domain.InventoryKey]error
}

func newFailingInventory(inner repository.InventoryRepository) *failingInventory {
	return &failingInventory{inner: inner, failFor: make(map[domain.InventoryKey]error)}
}

func (f *failingInventory) failOn(key domain.InventoryKey, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFor[key] = err
}

func (f *failingInventory) recover(key domain.InventoryKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failFor, key)
}

func (f *failingInventory) ApplyDecrement(ctx context.Context, orderID string, item domain.LineItem) (*domain.StockChange, error) {
	f.mu.Lock()
	err := f.failFor[item.Key()]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.inner.ApplyDecrement(ctx, orderID, item)
}

func (f *failingInventory) GetStock(ctx context.Context, key domain.InventoryKey) (*domain.InventoryRecord, error) {
	return f.inner.GetStock(ctx, key)
}

// failingOrders wraps a real OrderRepository and injects a finalization error.
type failingOrders struct {
	inner       repository.OrderRepository
	finalizeErr error
}

func (f *failingOrders) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return f.inner.GetOrder(ctx, orderID)
}

func (f *failingOrders) FinalizeOrder(ctx context.Context, orderID string, status domain.OrderStatus, results []domain.ItemResult, reason string, at time.Time) error {
	if f.finalizeErr != nil {
		return f.finalizeErr
	}
	return f.inner.FinalizeOrder(ctx, orderID, status, results, reason, at)
}
