package outbound

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const (
	queueKey = "outbound:retry:queue"
	idSetKey = "outbound:retry:ids"
)

// RetryQueue is a durable FIFO of not-yet-confirmed envelopes, deduplicated by
// entity id through a companion id-set. With a Redis client it is shared
// across instances; without one (or whenever a Redis operation fails) it runs
// on an in-process queue so the subsystem keeps working in degraded
// environments, just without cross-process durability.
//
// Enqueue never fails: the in-process path is the terminal fallback and cannot
// error. Dedup means enqueueing an entity id already queued is a silent no-op,
// so callers submit unconditionally after every successful write.
type RetryQueue struct {
	client *redis.Client
	logger *slog.Logger

	// mu guards fifo and ids as one atomic unit.
	mu   sync.Mutex
	fifo []Envelope
	ids  map[string]struct{}

	accepted prometheus.Counter
}

// RetryQueueOption configures a RetryQueue.
type RetryQueueOption func(*RetryQueue)

// WithAcceptedCounter counts envelopes actually queued (dedup skips excluded).
func WithAcceptedCounter(c prometheus.Counter) RetryQueueOption {
	return func(q *RetryQueue) { q.accepted = c }
}

// NewRetryQueue constructs a retry queue. A nil client selects the in-process
// implementation outright.
func NewRetryQueue(client *redis.Client, logger *slog.Logger, opts ...RetryQueueOption) *RetryQueue {
	q := &RetryQueue{
		client: client,
		logger: logger,
		ids:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(q)
		}
	}
	return q
}

// Enqueue adds an envelope unless one for the same entity id is already
// queued.
func (q *RetryQueue) Enqueue(ctx context.Context, env Envelope) {
	if q.client != nil && q.enqueueRedis(ctx, env) {
		return
	}
	q.enqueueLocal(env)
}

// enqueueRedis reports whether the shared backend handled the envelope
// (including a dedup skip). False sends the caller to the local fallback.
func (q *RetryQueue) enqueueRedis(ctx context.Context, env Envelope) bool {
	added, err := q.client.SAdd(ctx, idSetKey, env.EntityID).Result()
	if err != nil {
		q.logger.Warn("retry queue dedup check failed, using local queue", "error", err)
		return false
	}
	if added == 0 {
		return true // already queued for this entity
	}

	body, err := json.Marshal(env)
	if err != nil {
		q.logger.Error("marshal retry envelope, dropping", "entityId", env.EntityID, "error", err)
		// Release the claimed id so later enqueues for this entity are not
		// blocked by an envelope that was never stored.
		if remErr := q.client.SRem(ctx, idSetKey, env.EntityID).Err(); remErr != nil {
			q.logger.Warn("retry queue id release failed", "entityId", env.EntityID, "error", remErr)
		}
		return true // nothing sane to store, locally or shared
	}
	if err := q.client.RPush(ctx, queueKey, body).Err(); err != nil {
		q.logger.Warn("retry queue push failed, using local queue", "error", err)
		// Release the claimed id so a later enqueue can try again.
		if remErr := q.client.SRem(ctx, idSetKey, env.EntityID).Err(); remErr != nil {
			q.logger.Warn("retry queue id release failed", "error", remErr)
		}
		return false
	}
	q.countAccepted()
	return true
}

func (q *RetryQueue) enqueueLocal(env Envelope) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, dup := q.ids[env.EntityID]; dup {
		return
	}
	q.ids[env.EntityID] = struct{}{}
	q.fifo = append(q.fifo, env)
	q.countAccepted()
}

// Dequeue pops the oldest envelope, draining the shared backend before the
// local fallback. Popping releases the entity id for future enqueues.
func (q *RetryQueue) Dequeue(ctx context.Context) (Envelope, bool) {
	if q.client != nil {
		if env, ok := q.dequeueRedis(ctx); ok {
			return env, true
		}
	}
	return q.dequeueLocal()
}

func (q *RetryQueue) dequeueRedis(ctx context.Context) (Envelope, bool) {
	body, err := q.client.LPop(ctx, queueKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return Envelope{}, false
	}
	if err != nil {
		q.logger.Warn("retry queue pop failed, using local queue", "error", err)
		return Envelope{}, false
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		// The entity id is unreadable, so it cannot be released from the
		// dedup set; that entity stays blocked until the set is cleaned up.
		q.logger.Error("unmarshal retry envelope, dropping; entity id stays claimed",
			"error", err, "body", string(body))
		return Envelope{}, false
	}
	if err := q.client.SRem(ctx, idSetKey, env.EntityID).Err(); err != nil {
		q.logger.Warn("retry queue id release failed", "entityId", env.EntityID, "error", err)
	}
	return env, true
}

func (q *RetryQueue) dequeueLocal() (Envelope, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.fifo) == 0 {
		return Envelope{}, false
	}
	env := q.fifo[0]
	q.fifo = q.fifo[1:]
	delete(q.ids, env.EntityID)
	return env, true
}

func (q *RetryQueue) countAccepted() {
	if q.accepted != nil {
		q.accepted.Inc()
	}
}
