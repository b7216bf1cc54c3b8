package models

import "time"

// Event kinds double as broker topics.
const (
	EventKindOrderCreated       = "order.created"
	EventKindOrderStatusChanged = "order.status_changed"
)

// OrderCreated is raised once when an order is placed.
type OrderCreated struct {
	OrderID    string    `json:"orderId"`
	CustomerID string    `json:"customerId"`
	TotalCents int64     `json:"totalCents"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (OrderCreated) Kind() string       { return EventKindOrderCreated }
func (e OrderCreated) EntityID() string { return e.OrderID }

// OrderStatusChanged is raised on every status transition.
type OrderStatusChanged struct {
	OrderID    string      `json:"orderId"`
	From       OrderStatus `json:"from"`
	To         OrderStatus `json:"to"`
	OccurredAt time.Time   `json:"occurredAt"`
}

func (OrderStatusChanged) Kind() string       { return EventKindOrderStatusChanged }
func (e OrderStatusChanged) EntityID() string { return e.OrderID }
