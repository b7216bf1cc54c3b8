// Package notify is the in-process notification fabric: domain events are
// converted to notifications through a registry and dispatched to subscribed
// handlers, fire-and-continue.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"orderflow/internal/domain"
)

// Notification is an in-process message derived from a domain event.
type Notification interface {
	NotificationKind() string
}

// Handler consumes one notification. Errors are logged and never propagate to
// the publishing request.
type Handler func(ctx context.Context, n Notification) error

// Converter maps a domain event to its notification. Returning false drops the
// event; unmapped event kinds are not an error.
type Converter func(event domain.Event) (Notification, bool)

// Bus couples the converter registry with handler dispatch. New event kinds
// are supported by registration, not by editing a central switch.
type Bus struct {
	mu         sync.RWMutex
	handlers   map[string][]Handler
	converters map[string]Converter

	logger    *slog.Logger
	errorHits prometheus.Counter
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithErrorCounter counts handler failures, which are otherwise only logged.
func WithErrorCounter(c prometheus.Counter) BusOption {
	return func(b *Bus) { b.errorHits = c }
}

// NewBus creates an empty notification bus.
func NewBus(logger *slog.Logger, opts ...BusOption) *Bus {
	bus := &Bus{
		handlers:   make(map[string][]Handler),
		converters: make(map[string]Converter),
		logger:     logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(bus)
		}
	}
	return bus
}

// RegisterConverter maps an event kind to its notification converter.
func (b *Bus) RegisterConverter(eventKind string, c Converter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.converters[eventKind] = c
}

// RegisterHandler subscribes a handler to a notification kind.
func (b *Bus) RegisterHandler(kind string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
}

// Convert maps a domain event to its notification, reporting false when no
// converter is registered for the event's kind.
func (b *Bus) Convert(event domain.Event) (Notification, bool) {
	b.mu.RLock()
	converter, ok := b.converters[event.Kind()]
	b.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return converter(event)
}

// Publish dispatches a notification to every subscribed handler. A failing
// handler does not stop the remaining handlers and never fails the caller.
func (b *Bus) Publish(ctx context.Context, n Notification) {
	b.mu.RLock()
	handlers := b.handlers[n.NotificationKind()]
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, n); err != nil {
			if b.errorHits != nil {
				b.errorHits.Inc()
			}
			b.logger.Warn("notification handler failed",
				"kind", n.NotificationKind(),
				"error", err)
		}
	}
}
