package domain

import (
	"fmt"
	"time"
)

// InventoryKey identifies one inventory record: a product plus an optional
// variant (size, colour). Stable identifiers, not display names.
type InventoryKey struct {
	ProductID  string
	VariantKey string
}

func (k InventoryKey) String() string {
	if k.VariantKey == "" {
		return k.ProductID
	}
	return fmt.Sprintf("%s:%s", k.ProductID, k.VariantKey)
}

type InventoryRecord struct {
	ProductID    string    `bson:"product_id" json:"product_id"`
	VariantKey   string    `bson:"variant_key,omitempty" json:"variant_key,omitempty"`
	ProductName  string    `bson:"product_name,omitempty" json:"product_name,omitempty"`
	CurrentStock int       `bson:"current_stock" json:"current_stock"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

func (r InventoryRecord) Key() InventoryKey {
	return InventoryKey{ProductID: r.ProductID, VariantKey: r.VariantKey}
}

// ReasonSale is the only reason code this service writes. Restocks and
// manual corrections are recorded by other tooling against the same log.
const ReasonSale = "sale"

// AuditLogEntry is an immutable record of one stock change. Entries are
// append-only; nothing in this service updates or deletes them.
type AuditLogEntry struct {
	ID            string    `bson:"_id" json:"id"`
	OrderID       string    `bson:"order_id" json:"order_id"`
	ProductID     string    `bson:"product_id" json:"product_id"`
	VariantKey    string    `bson:"variant_key,omitempty" json:"variant_key,omitempty"`
	ProductName   string    `bson:"product_name,omitempty" json:"product_name,omitempty"`
	QuantityDelta int       `bson:"quantity_delta" json:"quantity_delta"`
	ReasonCode    string    `bson:"reason_code" json:"reason_code"`
	PreviousStock int       `bson:"previous_stock" json:"previous_stock"`
	NewStock      int       `bson:"new_stock" json:"new_stock"`
	Timestamp     time.Time `bson:"timestamp" json:"timestamp"`
}

// StockChange is the result of one applied compare-and-decrement.
// Reapplied is set when the change had already been committed by an earlier
// invocation for the same order and no new decrement happened.
type StockChange struct {
	Key           InventoryKey
	Quantity      int
	PreviousStock int
	NewStock      int
	Reapplied     bool
}
