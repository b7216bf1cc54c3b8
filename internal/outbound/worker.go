package outbound

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TryPublisher is the slice of Publisher the worker needs; tests swap in a
// fake.
type TryPublisher interface {
	TryPublish(ctx context.Context, env Envelope) bool
}

// Worker drains the retry queue in the background, independent of any request
// lifetime. It polls at a fixed interval rather than being woken by enqueues:
// bounded latency in exchange for simplicity. One worker runs per process.
type Worker struct {
	queue     *RetryQueue
	publisher TryPublisher
	interval  time.Duration
	logger    *slog.Logger

	drained prometheus.Counter
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithDrainCounter counts successfully republished envelopes.
func WithDrainCounter(c prometheus.Counter) WorkerOption {
	return func(w *Worker) { w.drained = c }
}

// NewWorker constructs a retry worker polling at the given interval.
func NewWorker(queue *RetryQueue, publisher TryPublisher, interval time.Duration, logger *slog.Logger, opts ...WorkerOption) *Worker {
	w := &Worker{
		queue:     queue,
		publisher: publisher,
		interval:  interval,
		logger:    logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Run loops until ctx is cancelled. A successful publish moves straight to the
// next envelope; a failure or an empty queue waits one interval. A failed
// envelope is re-enqueued (its id was released on dequeue) so it is retried on
// a later pass. In-flight publish attempts are never aborted, only not
// retried after cancellation.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("retry worker started", "interval", w.interval)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if env, ok := w.queue.Dequeue(ctx); ok {
			if w.publisher.TryPublish(ctx, env) {
				if w.drained != nil {
					w.drained.Inc()
				}
				continue
			}
			w.logger.Warn("retry publish failed, requeueing",
				"kind", env.Kind, "entityId", env.EntityID)
			w.queue.Enqueue(ctx, env)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.interval):
		}
	}
}
