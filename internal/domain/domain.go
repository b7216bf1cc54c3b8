// Package domain defines the event-raising contract shared by entities and the
// request pipeline, plus the narrow persistence gateway the pipeline consumes.
// The storage engine behind the gateway is deliberately out of scope.
package domain

import (
	"context"
	"sync"
)

// Event is a fact raised by an entity during a mutation. Kind identifies the
// event type (also used as broker routing key, e.g. "order.created") and
// EntityID names the aggregate the event belongs to.
type Event interface {
	Kind() string
	EntityID() string
}

// EventSource is implemented by entities that record events while mutating.
type EventSource interface {
	PendingEvents() []Event
	ClearEvents()
	TakeEvents() []Event
}

// Recorder is an embeddable EventSource implementation. Entities embed it by
// pointer-receiver and call Record inside their mutating methods. All methods
// are safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Record appends an event to the pending list.
func (r *Recorder) Record(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// PendingEvents returns a copy of the recorded events in raise order.
func (r *Recorder) PendingEvents() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// ClearEvents drops all pending events.
func (r *Recorder) ClearEvents() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// TakeEvents returns the pending events and clears them in one step, so two
// collectors can never dispatch the same event twice.
func (r *Recorder) TakeEvents() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := r.events
	r.events = nil
	return events
}

type sessionKey struct{}

// Session scopes one request's unit of work. The gateway stages writes into
// the session until SaveChanges commits them, at which point they move to the
// flushed set the pipeline collects events from. Writes staged by other
// requests never appear in this session.
type Session struct {
	mu      sync.Mutex
	staged  []EventSource
	flushed []EventSource
}

// Begin attaches a fresh Session to the context, shadowing any outer one.
func Begin(ctx context.Context) (context.Context, *Session) {
	session := &Session{}
	return context.WithValue(ctx, sessionKey{}, session), session
}

// SessionFrom returns the context's session, or nil when none was begun.
func SessionFrom(ctx context.Context) *Session {
	session, _ := ctx.Value(sessionKey{}).(*Session)
	return session
}

// Stage records an entity written in this unit of work.
func (s *Session) Stage(source EventSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = append(s.staged, source)
}

// TakeStaged drains and returns the staged entities, in write order.
func (s *Session) TakeStaged() []EventSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	staged := s.staged
	s.staged = nil
	return staged
}

// MarkFlushed records entities committed by SaveChanges.
func (s *Session) MarkFlushed(sources ...EventSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushed = append(s.flushed, sources...)
}

// Flushed returns a copy of the entities committed in this unit of work.
func (s *Session) Flushed() []EventSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]EventSource(nil), s.flushed...)
}

// UnitOfWork is the persistence gateway consumed by the pipeline. SaveChanges
// flushes the calling request's pending writes and reports how many entities
// changed; EntitiesWithPendingEvents exposes the entities committed within
// that same unit of work.
type UnitOfWork interface {
	SaveChanges(ctx context.Context) (int, error)
	EntitiesWithPendingEvents(ctx context.Context) []EventSource
}
