package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	IdempotentReplays  prometheus.Counter
	IdempotentRejects  prometheus.Counter
	EventsPublished    prometheus.Counter
	PublishFailures    prometheus.Counter
	EventsEnqueued     prometheus.Counter
	RetriesDrained     prometheus.Counter
	NotificationErrors prometheus.Counter
}

// New creates all metrics and registers them with the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics with a caller-supplied registerer. Tests pass a
// fresh registry so repeated construction does not collide.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "orderflow_cache_hits_total",
			Help: "Total number of pipeline cache hits",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "orderflow_cache_misses_total",
			Help: "Total number of pipeline cache misses",
		}),
		IdempotentReplays: factory.NewCounter(prometheus.CounterOpts{
			Name: "orderflow_idempotent_replays_total",
			Help: "Requests answered from a completed idempotency record",
		}),
		IdempotentRejects: factory.NewCounter(prometheus.CounterOpts{
			Name: "orderflow_idempotent_rejects_total",
			Help: "Requests rejected because the idempotency key was in flight",
		}),
		EventsPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "orderflow_events_published_total",
			Help: "Outbound events delivered to the broker",
		}),
		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "orderflow_publish_failures_total",
			Help: "Outbound publish attempts that failed",
		}),
		EventsEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "orderflow_retry_enqueued_total",
			Help: "Events accepted by the retry queue (dedup skips excluded)",
		}),
		RetriesDrained: factory.NewCounter(prometheus.CounterOpts{
			Name: "orderflow_retry_drained_total",
			Help: "Events republished by the retry worker",
		}),
		NotificationErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "orderflow_notification_errors_total",
			Help: "Notification handler failures (logged, never fatal)",
		}),
	}
}
