package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"reconciler-service/internal/domain"
	"reconciler-service/internal/repository"
)

// MemoryStore implements the order and inventory repositories with in-memory
// storage. Used by tests and STORE_BACKEND=memory local runs.
type MemoryStore struct {
	mu      sync.Mutex
	orders  map[string]*domain.Order
	stocks  map[domain.InventoryKey]*domain.InventoryRecord
	logs    []domain.AuditLogEntry
	applied map[string]*domain.StockChange // orderID + item key -> committed change
	sales   map[string]int                 // productID -> units sold
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:  make(map[string]*domain.Order),
		stocks:  make(map[domain.InventoryKey]*domain.InventoryRecord),
		applied: make(map[string]*domain.StockChange),
		sales:   make(map[string]int),
	}
}

func (s *MemoryStore) GetOrder(_ context.Context, orderID string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, exists := s.orders[orderID]
	if !exists {
		return nil, repository.ErrOrderNotFound
	}
	copied := *order
	copied.Items = append([]domain.LineItem(nil), order.Items...)
	copied.ItemResults = append([]domain.ItemResult(nil), order.ItemResults...)
	return &copied, nil
}

func (s *MemoryStore) FinalizeOrder(_ context.Context, orderID string, status domain.OrderStatus, results []domain.ItemResult, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, exists := s.orders[orderID]
	if !exists {
		return repository.ErrOrderNotFound
	}
	if order.Status != domain.OrderStatusPending {
		return repository.ErrAlreadyFinalized
	}

	order.Status = status
	order.ItemResults = append([]domain.ItemResult(nil), results...)
	order.FailReason = reason
	reconciledAt := at
	order.ReconciledAt = &reconciledAt
	order.UpdatedAt = at
	return nil
}

func (s *MemoryStore) ApplyDecrement(_ context.Context, orderID string, item domain.LineItem) (*domain.StockChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	appliedKey := orderID + "|" + item.Key().String()
	if change, exists := s.applied[appliedKey]; exists {
		copied := *change
		copied.Reapplied = true
		return &copied, nil
	}

	record, exists := s.stocks[item.Key()]
	if !exists {
		record = s.findByName(item.DisplayNameHint)
		if record == nil {
			return nil, repository.ErrRecordNotFound
		}
	}
	if record.CurrentStock < item.Quantity {
		return nil, repository.ErrInsufficientStock
	}

	now := time.Now()
	previous := record.CurrentStock
	record.CurrentStock -= item.Quantity
	record.UpdatedAt = now
	s.sales[item.ProductID] += item.Quantity

	s.logs = append(s.logs, domain.AuditLogEntry{
		ID:            uuid.New().String(),
		OrderID:       orderID,
		ProductID:     item.ProductID,
		VariantKey:    item.VariantKey,
		ProductName:   record.ProductName,
		QuantityDelta: -item.Quantity,
		ReasonCode:    domain.ReasonSale,
		PreviousStock: previous,
		NewStock:      record.CurrentStock,
		Timestamp:     now,
	})

	change := &domain.StockChange{
		Key:           item.Key(),
		Quantity:      item.Quantity,
		PreviousStock: previous,
		NewStock:      record.CurrentStock,
	}
	s.applied[appliedKey] = change

	copied := *change
	return &copied, nil
}

func (s *MemoryStore) GetStock(_ context.Context, key domain.InventoryKey) (*domain.InventoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.stocks[key]
	if !exists {
		return nil, repository.ErrRecordNotFound
	}
	copied := *record
	return &copied, nil
}

// findByName is the legacy display-name resolution path. Caller holds the lock.
func (s *MemoryStore) findByName(name string) *domain.InventoryRecord {
	if name == "" {
		return nil
	}
	for _, record := range s.stocks {
		if record.ProductName == name {
			return record
		}
	}
	return nil
}

// SeedOrder populates an order directly; bootstrap and test helper.
func (s *MemoryStore) SeedOrder(order *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *order
	s.orders[order.ID] = &copied
}

// SeedStock populates an inventory record directly.
func (s *MemoryStore) SeedStock(record domain.InventoryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.UpdatedAt = time.Now()
	copied := record
	s.stocks[record.Key()] = &copied
}

// AuditEntries returns a snapshot of the audit log.
func (s *MemoryStore) AuditEntries() []domain.AuditLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditLogEntry(nil), s.logs...)
}

// SalesCount returns the units sold for a product.
func (s *MemoryStore) SalesCount(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sales[productID]
}
