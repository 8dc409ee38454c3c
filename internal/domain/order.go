package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "Pending"
	OrderStatusReconciled      OrderStatus = "Reconciled"
	OrderStatusPartiallyFailed OrderStatus = "PartiallyFailed"
	OrderStatusFailed          OrderStatus = "Failed"
)

// Terminal reports whether reconciliation has already run for an order in
// this status. Re-invocations on terminal orders are no-ops.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusReconciled, OrderStatusPartiallyFailed, OrderStatusFailed:
		return true
	}
	return false
}

// LineItem is one product+quantity entry within an order.
// DisplayNameHint carries the human-readable product name older storefront
// clients send; it is only used as a legacy inventory lookup fallback.
type LineItem struct {
	ProductID       string  `bson:"product_id" json:"product_id"`
	VariantKey      string  `bson:"variant_key,omitempty" json:"variant_key,omitempty"`
	Quantity        int     `bson:"quantity" json:"quantity"`
	UnitPrice       float64 `bson:"unit_price" json:"unit_price"`
	DisplayNameHint string  `bson:"display_name_hint,omitempty" json:"display_name_hint,omitempty"`
}

// Valid checks the minimal item shape required for reconciliation.
func (i LineItem) Valid() bool {
	return i.ProductID != "" && i.Quantity > 0
}

func (i LineItem) Key() InventoryKey {
	return InventoryKey{ProductID: i.ProductID, VariantKey: i.VariantKey}
}

type ItemOutcome string

const (
	OutcomeApplied           ItemOutcome = "applied"
	OutcomeInsufficientStock ItemOutcome = "insufficientStock"
	OutcomeRecordNotFound    ItemOutcome = "recordNotFound"
)

// ItemResult records the per-item outcome of a reconciliation attempt.
// Failed results stay attached to the order for manual review.
type ItemResult struct {
	ProductID  string      `bson:"product_id" json:"product_id"`
	VariantKey string      `bson:"variant_key,omitempty" json:"variant_key,omitempty"`
	Quantity   int         `bson:"quantity" json:"quantity"`
	Outcome    ItemOutcome `bson:"outcome" json:"outcome"`
}

type Order struct {
	ID           string       `bson:"_id" json:"id"`
	UserID       string       `bson:"user_id,omitempty" json:"user_id,omitempty"`
	Items        []LineItem   `bson:"items" json:"items"`
	Status       OrderStatus  `bson:"status" json:"status"`
	ItemResults  []ItemResult `bson:"item_results,omitempty" json:"item_results,omitempty"`
	FailReason   string       `bson:"fail_reason,omitempty" json:"fail_reason,omitempty"`
	ReconciledAt *time.Time   `bson:"reconciled_at,omitempty" json:"reconciled_at,omitempty"`
	CreatedAt    time.Time    `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `bson:"updated_at" json:"updated_at"`
}
