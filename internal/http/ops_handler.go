package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"reconciler-service/internal/domain"
	"reconciler-service/internal/repository"
	"reconciler-service/internal/service"
)

// OpsHandler exposes the review surface: terminal order state for operators
// triaging PartiallyFailed/Failed orders, plus storefront stock reads.
type OpsHandler struct {
	orders  repository.OrderRepository
	stocks  *service.StockReader
	timeout time.Duration
}

func NewOpsHandler(orders repository.OrderRepository, stocks *service.StockReader, timeout time.Duration) *OpsHandler {
	return &OpsHandler{
		orders:  orders,
		stocks:  stocks,
		timeout: timeout,
	}
}

func (h *OpsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", h.Health)
	r.Get("/orders/{orderID}", h.GetOrder)
	r.Get("/stock/{productID}", h.GetStock)
	return r
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

type OrderItemResultDTO struct {
	ProductID  string `json:"product_id"`
	VariantKey string `json:"variant_key,omitempty"`
	Quantity   int    `json:"quantity"`
	Outcome    string `json:"outcome"`
}

type OrderResponseDTO struct {
	ID           string               `json:"id"`
	Status       string               `json:"status"`
	FailReason   string               `json:"fail_reason,omitempty"`
	ItemResults  []OrderItemResultDTO `json:"item_results"`
	ReconciledAt string               `json:"reconciled_at,omitempty"`
}

type StockResponseDTO struct {
	ProductID    string `json:"product_id"`
	VariantKey   string `json:"variant_key,omitempty"`
	ProductName  string `json:"product_name,omitempty"`
	CurrentStock int    `json:"current_stock"`
}

func (h *OpsHandler) Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /orders/{orderID}
func (h *OpsHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID := chi.URLParam(r, "orderID")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "missing_order_id", "order id is required")
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			respondError(w, http.StatusNotFound, "order_not_found", "no order with this id")
			return
		}
		log.Printf("failed to load order %s: %v", orderID, err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondJSON(w, http.StatusOK, convertOrder(order))
}

// GET /stock/{productID}?variant=...
func (h *OpsHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	key := domain.InventoryKey{
		ProductID:  chi.URLParam(r, "productID"),
		VariantKey: r.URL.Query().Get("variant"),
	}
	if key.ProductID == "" {
		respondError(w, http.StatusBadRequest, "missing_product_id", "product id is required")
		return
	}

	record, err := h.stocks.GetStock(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "stock_not_found", "no inventory record for this product")
			return
		}
		log.Printf("failed to load stock for %s: %v", key, err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondJSON(w, http.StatusOK, StockResponseDTO{
		ProductID:    record.ProductID,
		VariantKey:   record.VariantKey,
		ProductName:  record.ProductName,
		CurrentStock: record.CurrentStock,
	})
}

func convertOrder(order *domain.Order) OrderResponseDTO {
	results := make([]OrderItemResultDTO, 0, len(order.ItemResults))
	for _, res := range order.ItemResults {
		results = append(results, OrderItemResultDTO{
			ProductID:  res.ProductID,
			VariantKey: res.VariantKey,
			Quantity:   res.Quantity,
			Outcome:    string(res.Outcome),
		})
	}

	dto := OrderResponseDTO{
		ID:          order.ID,
		Status:      string(order.Status),
		FailReason:  order.FailReason,
		ItemResults: results,
	}
	if order.ReconciledAt != nil {
		dto.ReconciledAt = order.ReconciledAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
