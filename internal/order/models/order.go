// Package models holds the order aggregate and the domain events it raises.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"orderflow/internal/domain"
	"orderflow/pkg/platform/sentinel"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPlaced    OrderStatus = "placed"
	StatusPaid      OrderStatus = "paid"
	StatusShipped   OrderStatus = "shipped"
	StatusCancelled OrderStatus = "cancelled"
)

// validTransitions lists the allowed status changes.
var validTransitions = map[OrderStatus][]OrderStatus{
	StatusPlaced: {StatusPaid, StatusCancelled},
	StatusPaid:   {StatusShipped, StatusCancelled},
}

// OrderLine is one product position on an order.
type OrderLine struct {
	ProductID      string `json:"productId"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
}

// Order is the aggregate exercised by the request pipeline. It records domain
// events while mutating; the pipeline collects and clears them after a
// successful unit of work.
type Order struct {
	domain.Recorder `json:"-"`

	ID         uuid.UUID   `json:"id"`
	CustomerID string      `json:"customerId"`
	Lines      []OrderLine `json:"lines"`
	Status     OrderStatus `json:"status"`
	TotalCents int64       `json:"totalCents"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// NewOrder validates the input, creates a placed order and records the
// OrderCreated event.
func NewOrder(customerID string, lines []OrderLine) (*Order, error) {
	if customerID == "" {
		return nil, fmt.Errorf("customer id is required")
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("order needs at least one line")
	}

	var total int64
	for i, line := range lines {
		if line.ProductID == "" {
			return nil, fmt.Errorf("line %d: product id is required", i)
		}
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("line %d: quantity must be positive", i)
		}
		if line.UnitPriceCents < 0 {
			return nil, fmt.Errorf("line %d: unit price must not be negative", i)
		}
		total += int64(line.Quantity) * line.UnitPriceCents
	}

	order := &Order{
		ID:         uuid.New(),
		CustomerID: customerID,
		Lines:      lines,
		Status:     StatusPlaced,
		TotalCents: total,
		CreatedAt:  time.Now().UTC(),
	}
	order.Record(OrderCreated{
		OrderID:    order.ID.String(),
		CustomerID: customerID,
		TotalCents: total,
		OccurredAt: order.CreatedAt,
	})
	return order, nil
}

// ChangeStatus moves the order to the next status and records the
// OrderStatusChanged event. Illegal transitions fail with
// sentinel.ErrInvalidState.
func (o *Order) ChangeStatus(next OrderStatus) error {
	for _, allowed := range validTransitions[o.Status] {
		if next == allowed {
			from := o.Status
			o.Status = next
			o.Record(OrderStatusChanged{
				OrderID:    o.ID.String(),
				From:       from,
				To:         next,
				OccurredAt: time.Now().UTC(),
			})
			return nil
		}
	}
	return fmt.Errorf("order %s: %s -> %s: %w", o.ID, o.Status, next, sentinel.ErrInvalidState)
}
