package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"reconciler-service/internal/cache"
	"reconciler-service/internal/domain"
	"reconciler-service/internal/metrics"
	"reconciler-service/internal/repository"
)

// Reconciler converts a pending order into committed inventory changes, audit
// records and a terminal order status. It is the sole writer of stock levels,
// sales counters, audit entries and terminal order statuses.
//
// Invocations are safe to repeat: a finalized order short-circuits, and each
// per-item decrement applies at most once per order.
type Reconciler struct {
	orders    repository.OrderRepository
	inventory repository.InventoryRepository
	cache     cache.StockCache
}

func NewReconciler(orders repository.OrderRepository, inventory repository.InventoryRepository, stockCache cache.StockCache) *Reconciler {
	return &Reconciler{
		orders:    orders,
		inventory: inventory,
		cache:     stockCache,
	}
}

// Reconcile runs one reconciliation invocation to a terminal state.
//
// Business failures (missing record, insufficient stock, malformed order) are
// absorbed into the order's terminal status and never returned. Any returned
// error is a TransientError: the caller should redeliver the trigger.
func (r *Reconciler) Reconcile(ctx context.Context, orderID string) error {
	start := time.Now()

	order, err := r.orders.GetOrder(ctx, orderID)
	if err != nil {
		// A missing order usually means the trigger outran replication
		// of the order document, so that is retryable too.
		return transient("order load", err)
	}

	if order.Status.Terminal() {
		log.Printf("order %s already %s, skipping", order.ID, order.Status)
		return nil
	}

	if reason := malformedReason(order.Items); reason != "" {
		log.Printf("order %s is malformed: %s", order.ID, reason)
		return r.finalize(ctx, order.ID, domain.OrderStatusFailed, nil, reason, 0, start)
	}

	// Per-item processing: a failing item never aborts the batch. Physical
	// stock correctness per item beats batch atomicity across unrelated
	// products, so the engine makes maximal partial progress.
	results := make([]domain.ItemResult, 0, len(order.Items))
	applied := 0
	for _, item := range order.Items {
		change, decErr := r.inventory.ApplyDecrement(ctx, order.ID, item)

		var outcome domain.ItemOutcome
		switch {
		case decErr == nil:
			outcome = domain.OutcomeApplied
			applied++
			if change.Reapplied {
				log.Printf("order %s item %s already applied by an earlier invocation", order.ID, change.Key)
			}
			r.invalidateStock(change.Key)
		case errors.Is(decErr, repository.ErrInsufficientStock):
			outcome = domain.OutcomeInsufficientStock
		case errors.Is(decErr, repository.ErrRecordNotFound):
			outcome = domain.OutcomeRecordNotFound
		default:
			metrics.TransientFailuresTotal.Inc()
			return transient(fmt.Sprintf("decrement for item %s", item.Key()), decErr)
		}

		metrics.ItemOutcomesTotal.WithLabelValues(string(outcome)).Inc()
		results = append(results, domain.ItemResult{
			ProductID:  item.ProductID,
			VariantKey: item.VariantKey,
			Quantity:   item.Quantity,
			Outcome:    outcome,
		})
	}

	var status domain.OrderStatus
	switch {
	case applied == len(results):
		status = domain.OrderStatusReconciled
	case applied == 0:
		status = domain.OrderStatusFailed
	default:
		status = domain.OrderStatusPartiallyFailed
	}

	return r.finalize(ctx, order.ID, status, results, "", applied, start)
}

func (r *Reconciler) finalize(ctx context.Context, orderID string, status domain.OrderStatus, results []domain.ItemResult, reason string, applied int, start time.Time) error {
	err := r.orders.FinalizeOrder(ctx, orderID, status, results, reason, time.Now())
	if errors.Is(err, repository.ErrAlreadyFinalized) {
		// Another invocation won the race; its terminal state stands.
		log.Printf("order %s finalized concurrently, skipping", orderID)
		return nil
	}
	if err != nil {
		metrics.TransientFailuresTotal.Inc()
		return transient("order finalization", err)
	}

	metrics.OrdersReconciledTotal.WithLabelValues(string(status)).Inc()
	metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	log.Printf("order %s finalized as %s (%d/%d items applied)", orderID, status, applied, len(results))
	return nil
}

func (r *Reconciler) invalidateStock(key domain.InventoryKey) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.cache.Delete(ctx, key); err != nil {
		log.Printf("cache invalidate error for %s: %v", key, err)
	}
}

func malformedReason(items []domain.LineItem) string {
	if len(items) == 0 {
		return "no items"
	}
	for _, item := range items {
		if !item.Valid() {
			return fmt.Sprintf("invalid line item %q quantity %d", item.ProductID, item.Quantity)
		}
	}
	return ""
}
