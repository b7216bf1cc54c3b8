package idempotency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"orderflow/pkg/platform/sentinel"
)

// InMemoryStore keeps idempotency records in a process-local map. Suitable for
// single-node deployments and tests; shared deployments use PostgresStore.
type InMemoryStore struct {
	mu        sync.Mutex
	records   map[string]Record
	retention time.Duration
}

// InMemoryStoreOption configures an InMemoryStore.
type InMemoryStoreOption func(*InMemoryStore)

// WithRetention overrides DefaultRetention.
func WithRetention(d time.Duration) InMemoryStoreOption {
	return func(s *InMemoryStore) { s.retention = d }
}

// NewInMemoryStore creates an empty in-process idempotency store.
func NewInMemoryStore(opts ...InMemoryStoreOption) *InMemoryStore {
	store := &InMemoryStore{
		records:   make(map[string]Record),
		retention: DefaultRetention,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

func (s *InMemoryStore) GetByKey(_ context.Context, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	if s.expired(record) {
		delete(s.records, key)
		return nil, nil
	}
	out := record
	return &out, nil
}

func (s *InMemoryStore) Add(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[record.Key]; ok && !s.expired(existing) {
		return fmt.Errorf("idempotency key %q: %w", record.Key, sentinel.ErrConflict)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	s.records[record.Key] = record
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[record.Key]
	if !ok || s.expired(existing) {
		return fmt.Errorf("idempotency key %q: %w", record.Key, sentinel.ErrNotFound)
	}
	record.CreatedAt = existing.CreatedAt
	s.records[record.Key] = record
	return nil
}

func (s *InMemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key)
	return nil
}

func (s *InMemoryStore) expired(record Record) bool {
	return time.Since(record.CreatedAt) > s.retention
}
