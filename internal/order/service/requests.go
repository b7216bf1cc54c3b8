package service

import (
	"encoding/json"
	"net/http"
	"time"

	"orderflow/internal/order/models"
	"orderflow/internal/outbound"
)

// CreateOrderCommand places a new order. Key is the caller-supplied
// idempotency token (e.g. the Idempotency-Key header); empty disables
// protection.
type CreateOrderCommand struct {
	Key        string             `json:"-"`
	CustomerID string             `json:"customerId"`
	Lines      []models.OrderLine `json:"lines"`
}

func (c CreateOrderCommand) IdempotencyKey() string { return c.Key }

func (c CreateOrderCommand) InvalidatesCacheKeys() []string {
	return []string{"order:customer:" + c.CustomerID + ":*"}
}

// CreateOrderResult is the command response; it carries the order-created
// event for the publish behavior.
type CreateOrderResult struct {
	OrderID    string             `json:"orderId"`
	CustomerID string             `json:"customerId"`
	Status     models.OrderStatus `json:"status"`
	TotalCents int64              `json:"totalCents"`
	CreatedAt  time.Time          `json:"createdAt"`
}

func (r CreateOrderResult) ResponseStatus() int { return http.StatusCreated }

// OutboundEvent exposes the order-created envelope for broker delivery.
func (r CreateOrderResult) OutboundEvent() (outbound.Envelope, bool) {
	payload, err := json.Marshal(models.OrderCreated{
		OrderID:    r.OrderID,
		CustomerID: r.CustomerID,
		TotalCents: r.TotalCents,
		OccurredAt: r.CreatedAt,
	})
	if err != nil {
		return outbound.Envelope{}, false
	}
	return outbound.Envelope{
		EntityID: r.OrderID,
		Kind:     models.EventKindOrderCreated,
		Payload:  payload,
	}, true
}

// GetOrderQuery reads one order; responses are cacheable.
type GetOrderQuery struct {
	OrderID string
}

func (q GetOrderQuery) CacheKey() string        { return "order:id:" + q.OrderID }
func (q GetOrderQuery) CacheTTL() time.Duration { return 10 * time.Minute }

// OrderView is the read model returned by GetOrderQuery.
type OrderView struct {
	OrderID    string             `json:"orderId"`
	CustomerID string             `json:"customerId"`
	Lines      []models.OrderLine `json:"lines"`
	Status     models.OrderStatus `json:"status"`
	TotalCents int64              `json:"totalCents"`
	CreatedAt  time.Time          `json:"createdAt"`
}

// UpdateOrderStatusCommand transitions an order and drops its cached view.
type UpdateOrderStatusCommand struct {
	OrderID string             `json:"-"`
	Status  models.OrderStatus `json:"status"`
}

func (c UpdateOrderStatusCommand) InvalidatesCacheKeys() []string {
	return []string{"order:id:" + c.OrderID}
}

// UpdateOrderStatusResult reports the applied transition. It is deliberately
// not publishable; status changes stay in-process.
type UpdateOrderStatusResult struct {
	OrderID string             `json:"orderId"`
	Status  models.OrderStatus `json:"status"`
}
