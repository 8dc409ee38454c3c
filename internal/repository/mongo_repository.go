package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"reconciler-service/internal/domain"
)

// Collection layout mirrors the storefront's document database: orders,
// inventory_items, inventory_logs, and products (which carries the per-product
// sales_count).
type mongoStore struct {
	client    *mongo.Client
	orders    *mongo.Collection
	inventory *mongo.Collection
	logs      *mongo.Collection
	products  *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *mongoStore {
	return &mongoStore{
		client:    db.Client(),
		orders:    db.Collection("orders"),
		inventory: db.Collection("inventory_items"),
		logs:      db.Collection("inventory_logs"),
		products:  db.Collection("products"),
	}
}

func (s *mongoStore) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var order domain.Order
	err := s.orders.FindOne(ctx, bson.M{"_id": orderID}).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

func (s *mongoStore) FinalizeOrder(ctx context.Context, orderID string, status domain.OrderStatus, results []domain.ItemResult, reason string, at time.Time) error {
	// Guarded on status so only the first finalization wins; a lost race
	// means another invocation already wrote the terminal state.
	filter := bson.M{"_id": orderID, "status": domain.OrderStatusPending}
	set := bson.M{
		"status":        status,
		"reconciled_at": at,
		"updated_at":    at,
	}
	if len(results) > 0 {
		set["item_results"] = results
	}
	if reason != "" {
		set["fail_reason"] = reason
	}

	res, err := s.orders.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to finalize order: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrAlreadyFinalized
	}
	return nil
}

func (s *mongoStore) GetStock(ctx context.Context, key domain.InventoryKey) (*domain.InventoryRecord, error) {
	filter := bson.M{"product_id": key.ProductID, "variant_key": variantFilter(key.VariantKey)}

	var record domain.InventoryRecord
	err := s.inventory.FindOne(ctx, filter).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get stock: %w", err)
	}
	return &record, nil
}

// ApplyDecrement runs the per-item unit of work in a single MongoDB
// transaction: guarded stock decrement, product sales_count increment and
// audit entry commit together or not at all.
func (s *mongoStore) ApplyDecrement(ctx context.Context, orderID string, item domain.LineItem) (*domain.StockChange, error) {
	session, err := s.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return s.applyDecrementTxn(sc, orderID, item)
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.StockChange), nil
}

func (s *mongoStore) applyDecrementTxn(sc mongo.SessionContext, orderID string, item domain.LineItem) (*domain.StockChange, error) {
	now := time.Now()

	// The audit log doubles as the per-item idempotency record: one entry
	// per (order, item). A redelivered invocation that already committed
	// this item returns the recorded change instead of decrementing again.
	priorFilter := bson.M{
		"order_id":    orderID,
		"product_id":  item.ProductID,
		"variant_key": variantFilter(item.VariantKey),
	}
	var prior domain.AuditLogEntry
	err := s.logs.FindOne(sc, priorFilter).Decode(&prior)
	if err == nil {
		return &domain.StockChange{
			Key:           item.Key(),
			Quantity:      -prior.QuantityDelta,
			PreviousStock: prior.PreviousStock,
			NewStock:      prior.NewStock,
			Reapplied:     true,
		}, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to check audit log: %w", err)
	}

	// Compare-and-decrement: the $gte guard in the filter makes the stock
	// check and the write one atomic step, so concurrent orders cannot
	// both take the last units.
	keyFilter := bson.M{
		"product_id":  item.ProductID,
		"variant_key": variantFilter(item.VariantKey),
	}
	guarded := bson.M{
		"product_id":    item.ProductID,
		"variant_key":   variantFilter(item.VariantKey),
		"current_stock": bson.M{"$gte": item.Quantity},
	}
	update := bson.M{
		"$inc": bson.M{"current_stock": -item.Quantity},
		"$set": bson.M{"updated_at": now},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)

	var before domain.InventoryRecord
	err = s.inventory.FindOneAndUpdate(sc, guarded, update, opts).Decode(&before)
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, cntErr := s.inventory.CountDocuments(sc, keyFilter)
		if cntErr != nil {
			return nil, fmt.Errorf("failed to classify decrement miss: %w", cntErr)
		}
		if n > 0 {
			return nil, ErrInsufficientStock
		}
		before, err = s.legacyNameDecrement(sc, item, update, now)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to decrement stock: %w", err)
	}

	productFilter := bson.M{"_id": item.ProductID}
	counter := bson.M{
		"$inc": bson.M{"sales_count": item.Quantity},
		"$set": bson.M{"updated_at": now},
	}
	if _, err := s.products.UpdateOne(sc, productFilter, counter, options.Update().SetUpsert(true)); err != nil {
		return nil, fmt.Errorf("failed to increment sales counter: %w", err)
	}

	entry := domain.AuditLogEntry{
		ID:            uuid.New().String(),
		OrderID:       orderID,
		ProductID:     item.ProductID,
		VariantKey:    item.VariantKey,
		ProductName:   before.ProductName,
		QuantityDelta: -item.Quantity,
		ReasonCode:    domain.ReasonSale,
		PreviousStock: before.CurrentStock,
		NewStock:      before.CurrentStock - item.Quantity,
		Timestamp:     now,
	}
	if _, err := s.logs.InsertOne(sc, entry); err != nil {
		return nil, fmt.Errorf("failed to append audit entry: %w", err)
	}

	return &domain.StockChange{
		Key:           item.Key(),
		Quantity:      item.Quantity,
		PreviousStock: entry.PreviousStock,
		NewStock:      entry.NewStock,
	}, nil
}

// legacyNameDecrement resolves inventory records created before stable
// product IDs existed: the storefront used the human-readable product name as
// the lookup key. Only consulted when the stable key finds nothing and the
// event carries a display-name hint.
func (s *mongoStore) legacyNameDecrement(sc mongo.SessionContext, item domain.LineItem, update bson.M, now time.Time) (domain.InventoryRecord, error) {
	var before domain.InventoryRecord
	if item.DisplayNameHint == "" {
		return before, ErrRecordNotFound
	}

	guarded := bson.M{
		"product_name":  item.DisplayNameHint,
		"current_stock": bson.M{"$gte": item.Quantity},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)
	err := s.inventory.FindOneAndUpdate(sc, guarded, update, opts).Decode(&before)
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, cntErr := s.inventory.CountDocuments(sc, bson.M{"product_name": item.DisplayNameHint})
		if cntErr != nil {
			return before, fmt.Errorf("failed to classify legacy decrement miss: %w", cntErr)
		}
		if n > 0 {
			return before, ErrInsufficientStock
		}
		return before, ErrRecordNotFound
	}
	if err != nil {
		return before, fmt.Errorf("failed to decrement stock by name: %w", err)
	}

	log.Printf("inventory for %s resolved by legacy product name %q", item.Key(), item.DisplayNameHint)
	return before, nil
}

func (s *mongoStore) CreateIndexes(ctx context.Context) error {
	inventoryIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "product_id", Value: 1}, {Key: "variant_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "product_name", Value: 1}},
		},
	}
	if _, err := s.inventory.Indexes().CreateMany(ctx, inventoryIndexes); err != nil {
		return fmt.Errorf("failed to create inventory indexes: %w", err)
	}

	// One audit entry per (order, item) — the backstop for the idempotent
	// decrement when two invocations race past the pre-check.
	logIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "order_id", Value: 1},
				{Key: "product_id", Value: 1},
				{Key: "variant_key", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := s.logs.Indexes().CreateMany(ctx, logIndexes); err != nil {
		return fmt.Errorf("failed to create audit log indexes: %w", err)
	}

	orderIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "status", Value: 1}},
		},
	}
	if _, err := s.orders.Indexes().CreateMany(ctx, orderIndexes); err != nil {
		return fmt.Errorf("failed to create order indexes: %w", err)
	}

	return nil
}

// variantFilter matches records whether the variant field is empty or absent;
// variant-less products are stored both ways by older admin tooling.
func variantFilter(variantKey string) interface{} {
	if variantKey == "" {
		return bson.M{"$in": bson.A{"", nil}}
	}
	return variantKey
}
