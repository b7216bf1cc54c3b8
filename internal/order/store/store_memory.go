// Package store provides the order persistence gateway. The real storage
// engine is out of scope; this in-memory implementation stages writes in the
// request's session until SaveChanges commits them, mirroring how an ORM unit
// of work behaves.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"orderflow/internal/domain"
	"orderflow/internal/order/models"
	"orderflow/pkg/platform/sentinel"
)

// InMemoryStore keeps committed orders in a map. Writes stage in the calling
// request's session; a caller without a session stages on the store itself.
// Reads see committed state only.
type InMemoryStore struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*models.Order
	staged []*models.Order

	// saveChangesCalls supports tests asserting how many persistence writes
	// a request caused.
	saveChangesCalls int
}

// NewInMemoryStore creates an empty order store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{orders: make(map[uuid.UUID]*models.Order)}
}

// Save stages an order for the next SaveChanges of the same unit of work.
func (s *InMemoryStore) Save(ctx context.Context, order *models.Order) error {
	if session := domain.SessionFrom(ctx); session != nil {
		session.Stage(order)
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = append(s.staged, order)
	return nil
}

// Get returns a committed order.
func (s *InMemoryStore) Get(_ context.Context, id uuid.UUID) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, sentinel.ErrNotFound)
	}
	return order, nil
}

// SaveChanges commits the calling request's staged writes and reports how many
// entities changed. Writes staged by other sessions stay untouched.
func (s *InMemoryStore) SaveChanges(ctx context.Context) (int, error) {
	if session := domain.SessionFrom(ctx); session != nil {
		staged := session.TakeStaged()
		s.mu.Lock()
		for _, source := range staged {
			order := source.(*models.Order)
			s.orders[order.ID] = order
		}
		s.saveChangesCalls++
		s.mu.Unlock()
		session.MarkFlushed(staged...)
		return len(staged), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	count := len(s.staged)
	for _, order := range s.staged {
		s.orders[order.ID] = order
	}
	s.staged = nil
	s.saveChangesCalls++
	return count, nil
}

// EntitiesWithPendingEvents returns the entities committed by the calling
// request's unit of work. Without a session it falls back to scanning the
// committed orders, for callers that own the store alone.
func (s *InMemoryStore) EntitiesWithPendingEvents(ctx context.Context) []domain.EventSource {
	if session := domain.SessionFrom(ctx); session != nil {
		return session.Flushed()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var sources []domain.EventSource
	for _, order := range s.orders {
		if len(order.PendingEvents()) > 0 {
			sources = append(sources, order)
		}
	}
	return sources
}

// SaveChangesCalls reports how many times SaveChanges ran.
func (s *InMemoryStore) SaveChangesCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveChangesCalls
}
