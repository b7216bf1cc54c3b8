package service

import (
	"time"

	"orderflow/internal/domain"
	"orderflow/internal/notify"
	"orderflow/internal/order/models"
)

// Notification kinds for the in-process bus.
const (
	NotificationOrderCreated       = "notification.order.created"
	NotificationOrderStatusChanged = "notification.order.status_changed"
)

// OrderCreatedNotification is dispatched in-process when an order was placed.
type OrderCreatedNotification struct {
	OrderID    string
	CustomerID string
	TotalCents int64
	OccurredAt time.Time
}

func (OrderCreatedNotification) NotificationKind() string { return NotificationOrderCreated }

// OrderStatusChangedNotification is dispatched on every status transition.
type OrderStatusChangedNotification struct {
	OrderID string
	From    models.OrderStatus
	To      models.OrderStatus
}

func (OrderStatusChangedNotification) NotificationKind() string {
	return NotificationOrderStatusChanged
}

// RegisterNotifications maps the order domain events onto their notification
// types. Event kinds without a registration are dropped by the pipeline.
func RegisterNotifications(bus *notify.Bus) {
	bus.RegisterConverter(models.EventKindOrderCreated, func(event domain.Event) (notify.Notification, bool) {
		created, ok := event.(models.OrderCreated)
		if !ok {
			return nil, false
		}
		return OrderCreatedNotification{
			OrderID:    created.OrderID,
			CustomerID: created.CustomerID,
			TotalCents: created.TotalCents,
			OccurredAt: created.OccurredAt,
		}, true
	})
	bus.RegisterConverter(models.EventKindOrderStatusChanged, func(event domain.Event) (notify.Notification, bool) {
		changed, ok := event.(models.OrderStatusChanged)
		if !ok {
			return nil, false
		}
		return OrderStatusChangedNotification{
			OrderID: changed.OrderID,
			From:    changed.From,
			To:      changed.To,
		}, true
	})
}
