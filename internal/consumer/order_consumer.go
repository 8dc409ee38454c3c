package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"reconciler-service/internal/metrics"
	"reconciler-service/internal/service"
)

// eventItem mirrors the order-created payload item shape published by the
// storefront. The order document is the source of truth; items ride along
// only for logging.
type eventItem struct {
	ProductID       string  `json:"product_id"`
	VariantKey      string  `json:"variant_key,omitempty"`
	Quantity        int     `json:"quantity"`
	UnitPrice       float64 `json:"unit_price,omitempty"`
	DisplayNameHint string  `json:"display_name_hint,omitempty"`
}

type OrderCreatedEvent struct {
	OrderID string      `json:"order_id"`
	Items   []eventItem `json:"items"`
}

// Engine is the reconciliation entry point the consumer drives.
type Engine interface {
	Reconcile(ctx context.Context, orderID string) error
}

type Consumer struct {
	engine Engine
	reader *kafka.Reader
}

const (
	maxAttempts  = 3
	retryBackoff = 2 * time.Second
)

func NewConsumer(engine Engine, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    "order-created",
		GroupID:  "reconciler-service",
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{engine, reader}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		log.Printf("error closing kafka reader: %v", err)
	}
}

// processMessage fetches one trigger event and commits the offset only once
// reconciliation reached a terminal state. A transient store failure leaves
// the offset uncommitted so the event redelivers — safe, because a repeated
// invocation is a no-op past the idempotency guards.
func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Printf("error fetching message: %v", err)
		return
	}

	var event OrderCreatedEvent
	if err := json.Unmarshal(m.Value, &event); err != nil || event.OrderID == "" {
		// Poison messages must not wedge the partition.
		log.Printf("skipping malformed trigger event at offset %d: %v", m.Offset, err)
		metrics.EventsSkippedTotal.Inc()
		c.commit(ctx, m)
		return
	}

	log.Printf("order-created event for %s (%d items)", event.OrderID, len(event.Items))

	if err := c.reconcileWithRetry(ctx, event.OrderID); err != nil {
		log.Printf("leaving order %s uncommitted for redelivery: %v", event.OrderID, err)
		return
	}

	c.commit(ctx, m)
}

func (c *Consumer) reconcileWithRetry(ctx context.Context, orderID string) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = c.engine.Reconcile(ctx, orderID)
		if err == nil {
			return nil
		}
		if !service.IsTransient(err) {
			return err
		}
		log.Printf("transient failure reconciling order %s (attempt %d/%d): %v", orderID, attempt, maxAttempts, err)
		if attempt < maxAttempts {
			select {
			case <-time.After(retryBackoff * time.Duration(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return err
}

func (c *Consumer) commit(ctx context.Context, m kafka.Message) {
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		log.Printf("error committing offset %d: %v", m.Offset, err)
	}
}
