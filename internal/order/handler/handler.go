// Package handler is the thin HTTP layer over the order service. It delegates
// to the service without embedding business logic so transport concerns stay
// isolated.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"orderflow/internal/order/models"
	"orderflow/internal/order/service"
	"orderflow/pkg/platform/sentinel"
)

// idempotencyKeyHeader carries the caller-supplied retry token. Requests
// without it run unprotected.
const idempotencyKeyHeader = "Idempotency-Key"

// Service is the order use-case contract consumed by this handler.
type Service interface {
	CreateOrder(ctx context.Context, cmd service.CreateOrderCommand) (service.CreateOrderResult, error)
	GetOrder(ctx context.Context, query service.GetOrderQuery) (service.OrderView, error)
	UpdateOrderStatus(ctx context.Context, cmd service.UpdateOrderStatusCommand) (service.UpdateOrderStatusResult, error)
}

// Handler handles order endpoints.
type Handler struct {
	orders Service
	logger *slog.Logger
}

// New creates an order Handler.
func New(orders Service, logger *slog.Logger) *Handler {
	return &Handler{orders: orders, logger: logger}
}

// Register registers the order routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/orders", h.handleCreateOrder)
	r.Get("/orders/{orderID}", h.handleGetOrder)
	r.Patch("/orders/{orderID}/status", h.handleUpdateStatus)
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CustomerID string             `json:"customerId"`
		Lines      []models.OrderLine `json:"lines"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.orders.CreateOrder(r.Context(), service.CreateOrderCommand{
		Key:        r.Header.Get(idempotencyKeyHeader),
		CustomerID: body.CustomerID,
		Lines:      body.Lines,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, res.ResponseStatus(), res)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	view, err := h.orders.GetOrder(r.Context(), service.GetOrderQuery{
		OrderID: chi.URLParam(r, "orderID"),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status models.OrderStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.orders.UpdateOrderStatus(r.Context(), service.UpdateOrderStatusCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Status:  body.Status,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// writeError translates sentinel errors into distinct, discriminable HTTP
// failures. Duplicate in-flight requests are deliberately visible: the caller
// should retry later, not treat it as a bug.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, sentinel.ErrInProgress):
		writeJSONError(w, http.StatusConflict, "request already in progress")
	case errors.Is(err, sentinel.ErrInvalidState):
		writeJSONError(w, http.StatusUnprocessableEntity, "invalid status transition")
	default:
		h.logger.Error("order request failed", "error", err)
		writeJSONError(w, http.StatusBadRequest, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
