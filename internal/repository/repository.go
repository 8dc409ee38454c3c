package repository

import (
	"context"
	"errors"
	"time"

	"reconciler-service/internal/domain"
)

// Common errors returned by the stores
var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrRecordNotFound    = errors.New("inventory record not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrAlreadyFinalized  = errors.New("order already finalized")
)

// OrderRepository defines the order-document operations the engine needs.
// Consumers define this interface, not the MongoDB implementation.
type OrderRepository interface {
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// FinalizeOrder writes the terminal status and per-item results.
	// The write only applies while the order is still Pending; if another
	// invocation finalized it first, ErrAlreadyFinalized is returned.
	FinalizeOrder(ctx context.Context, orderID string, status domain.OrderStatus, results []domain.ItemResult, reason string, at time.Time) error
}

// InventoryRepository defines the stock-side operations.
type InventoryRepository interface {
	// ApplyDecrement atomically decrements stock for one line item,
	// increments the product's sales counter and appends the audit entry.
	// Either all three commit or none do.
	//
	// The decrement is applied at most once per (orderID, item key): a
	// repeated call for the same pair returns the originally recorded
	// change with Reapplied set, without touching stock again.
	//
	// Returns ErrRecordNotFound when no inventory record matches the item,
	// ErrInsufficientStock when stock is lower than the requested quantity.
	ApplyDecrement(ctx context.Context, orderID string, item domain.LineItem) (*domain.StockChange, error)

	GetStock(ctx context.Context, key domain.InventoryKey) (*domain.InventoryRecord, error)
}
