// Package service assembles the order use cases and wraps each in the
// canonical behavior chain: idempotency, caching, domain-event dispatch,
// outbound publication.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"orderflow/internal/cache"
	"orderflow/internal/domain"
	"orderflow/internal/idempotency"
	"orderflow/internal/notify"
	"orderflow/internal/order/models"
	"orderflow/internal/pipeline"
	"orderflow/internal/platform/metrics"
)

// Gateway is the persistence contract the service consumes. The storage
// engine behind it is out of scope.
type Gateway interface {
	Save(ctx context.Context, order *models.Order) error
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	domain.UnitOfWork
}

// Deps carries the cross-cutting infrastructure for the behavior chain.
type Deps struct {
	Cache       cache.Store
	Idempotency idempotency.Store
	Publisher   pipeline.TryPublisher
	Queue       pipeline.Enqueuer
	Bus         *notify.Bus
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

// Service exposes the order use cases, each pre-wrapped in its pipeline.
type Service struct {
	gateway Gateway

	createOrder  pipeline.Handler[CreateOrderCommand, CreateOrderResult]
	getOrder     pipeline.Handler[GetOrderQuery, OrderView]
	updateStatus pipeline.Handler[UpdateOrderStatusCommand, UpdateOrderStatusResult]
}

// New wires the use cases. Behavior order is fixed: idempotency outermost so
// replays skip all other work, then caching, then domain-event dispatch, with
// outbound publication closest to the handler.
func New(gateway Gateway, deps Deps) *Service {
	s := &Service{gateway: gateway}

	s.createOrder = pipeline.Chain(s.handleCreateOrder,
		pipeline.Idempotency[CreateOrderCommand, CreateOrderResult](deps.Idempotency, deps.Logger, deps.Metrics),
		pipeline.Caching[CreateOrderCommand, CreateOrderResult](deps.Cache, deps.Logger, deps.Metrics),
		pipeline.DomainEvents[CreateOrderCommand, CreateOrderResult](gateway, deps.Bus, deps.Logger),
		pipeline.PublishOutbound[CreateOrderCommand, CreateOrderResult](deps.Publisher, deps.Queue, deps.Logger),
	)
	s.getOrder = pipeline.Chain(s.handleGetOrder,
		pipeline.Caching[GetOrderQuery, OrderView](deps.Cache, deps.Logger, deps.Metrics),
	)
	s.updateStatus = pipeline.Chain(s.handleUpdateStatus,
		pipeline.Caching[UpdateOrderStatusCommand, UpdateOrderStatusResult](deps.Cache, deps.Logger, deps.Metrics),
		pipeline.DomainEvents[UpdateOrderStatusCommand, UpdateOrderStatusResult](gateway, deps.Bus, deps.Logger),
	)
	return s
}

// CreateOrder places an order through the full behavior chain.
func (s *Service) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (CreateOrderResult, error) {
	return s.createOrder(ctx, cmd)
}

// GetOrder serves a read model, from cache when possible.
func (s *Service) GetOrder(ctx context.Context, query GetOrderQuery) (OrderView, error) {
	return s.getOrder(ctx, query)
}

// UpdateOrderStatus transitions an order and invalidates its cached view.
func (s *Service) UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (UpdateOrderStatusResult, error) {
	return s.updateStatus(ctx, cmd)
}

func (s *Service) handleCreateOrder(ctx context.Context, cmd CreateOrderCommand) (CreateOrderResult, error) {
	order, err := models.NewOrder(cmd.CustomerID, cmd.Lines)
	if err != nil {
		return CreateOrderResult{}, err
	}
	if err := s.gateway.Save(ctx, order); err != nil {
		return CreateOrderResult{}, fmt.Errorf("save order: %w", err)
	}
	if _, err := s.gateway.SaveChanges(ctx); err != nil {
		return CreateOrderResult{}, fmt.Errorf("commit order: %w", err)
	}
	return CreateOrderResult{
		OrderID:    order.ID.String(),
		CustomerID: order.CustomerID,
		Status:     order.Status,
		TotalCents: order.TotalCents,
		CreatedAt:  order.CreatedAt,
	}, nil
}

func (s *Service) handleGetOrder(ctx context.Context, query GetOrderQuery) (OrderView, error) {
	id, err := uuid.Parse(query.OrderID)
	if err != nil {
		return OrderView{}, fmt.Errorf("invalid order id %q", query.OrderID)
	}
	order, err := s.gateway.Get(ctx, id)
	if err != nil {
		return OrderView{}, err
	}
	return OrderView{
		OrderID:    order.ID.String(),
		CustomerID: order.CustomerID,
		Lines:      order.Lines,
		Status:     order.Status,
		TotalCents: order.TotalCents,
		CreatedAt:  order.CreatedAt,
	}, nil
}

func (s *Service) handleUpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (UpdateOrderStatusResult, error) {
	id, err := uuid.Parse(cmd.OrderID)
	if err != nil {
		return UpdateOrderStatusResult{}, fmt.Errorf("invalid order id %q", cmd.OrderID)
	}
	order, err := s.gateway.Get(ctx, id)
	if err != nil {
		return UpdateOrderStatusResult{}, err
	}
	if err := order.ChangeStatus(cmd.Status); err != nil {
		return UpdateOrderStatusResult{}, err
	}
	if err := s.gateway.Save(ctx, order); err != nil {
		return UpdateOrderStatusResult{}, fmt.Errorf("save order: %w", err)
	}
	if _, err := s.gateway.SaveChanges(ctx); err != nil {
		return UpdateOrderStatusResult{}, fmt.Errorf("commit order: %w", err)
	}
	return UpdateOrderStatusResult{OrderID: cmd.OrderID, Status: order.Status}, nil
}
