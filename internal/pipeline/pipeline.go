// Package pipeline wraps every application use case in an ordered chain of
// cross-cutting behaviors: idempotency, caching, domain-event dispatch and
// outbound publication. Behaviors degrade gracefully when their own
// infrastructure fails; only the handler's business errors reach the caller.
package pipeline

import (
	"context"
	"time"

	"orderflow/internal/outbound"
)

// Handler executes one use case.
type Handler[Req, Res any] func(ctx context.Context, req Req) (Res, error)

// Middleware is a composable behavior around a Handler.
type Middleware[Req, Res any] func(next Handler[Req, Res]) Handler[Req, Res]

// Chain wraps handler with middlewares; the first middleware is outermost.
// The canonical order is Idempotency, Caching, DomainEvents, PublishOutbound —
// idempotency must run before any work (even cache population) happens for a
// duplicate request.
func Chain[Req, Res any](handler Handler[Req, Res], mws ...Middleware[Req, Res]) Handler[Req, Res] {
	for i := len(mws) - 1; i >= 0; i-- {
		handler = mws[i](handler)
	}
	return handler
}

// Idempotent marks requests protected by an idempotency key. An empty key
// disables protection for that request.
type Idempotent interface {
	IdempotencyKey() string
}

// CacheableQuery marks read requests whose response may be served from cache.
type CacheableQuery interface {
	CacheKey() string
	CacheTTL() time.Duration
}

// CacheInvalidator marks write requests that declare the cache keys (or glob
// patterns, containing '*') to drop after a successful execution.
type CacheInvalidator interface {
	InvalidatesCacheKeys() []string
}

// Publishable marks responses that carry an outbound event. The second return
// reports whether this particular response has one.
type Publishable interface {
	OutboundEvent() (outbound.Envelope, bool)
}

// TryPublisher is the publisher slice the publish behavior needs.
type TryPublisher interface {
	TryPublish(ctx context.Context, env outbound.Envelope) bool
}

// Enqueuer is the retry queue slice the publish behavior needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, env outbound.Envelope)
}
