package outbound

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"orderflow/internal/platform/config"
)

// producer is the slice of the kgo client the publisher needs; tests swap in
// a fake.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// clientRef boxes the producer so the publisher can hold it in an atomic
// pointer.
type clientRef struct {
	producer
}

// Publisher sends envelopes to Kafka over a single, lazily established
// connection. Neither Publish nor TryPublish ever returns an error to the
// caller: broker trouble is logged and, for TryPublish, reported as false so
// the retry queue can take over.
type Publisher struct {
	connect func(ctx context.Context) (producer, error)
	logger  *slog.Logger

	// client holds the healthy connection so steady-state publishes skip the
	// lock; mu serializes connecting and closing.
	mu     sync.Mutex
	client atomic.Pointer[clientRef]

	published prometheus.Counter
	failed    prometheus.Counter
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithPublishCounters wires delivery/failure counters.
func WithPublishCounters(published, failed prometheus.Counter) PublisherOption {
	return func(p *Publisher) {
		p.published = published
		p.failed = failed
	}
}

// withConnect replaces the dial function; used by tests.
func withConnect(connect func(ctx context.Context) (producer, error)) PublisherOption {
	return func(p *Publisher) { p.connect = connect }
}

// NewPublisher constructs a Kafka publisher. No connection is opened until the
// first publish attempt.
func NewPublisher(cfg config.KafkaConfig, logger *slog.Logger, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		connect: func(ctx context.Context) (producer, error) {
			return dial(ctx, cfg, logger)
		},
		logger: logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// dial opens the client and declares the configured topics so events are not
// dropped when no consumer has created the topology yet.
func dial(ctx context.Context, cfg config.KafkaConfig, logger *slog.Logger) (producer, error) {
	if len(cfg.Seeds) == 0 {
		return nil, errors.New("no kafka seed brokers configured")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Seeds...),
		kgo.AllowAutoTopicCreation(),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, err
	}

	if len(cfg.DeclareTopics) > 0 {
		partitions := cfg.Partitions
		if partitions <= 0 {
			partitions = 1
		}
		declareCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		responses, err := kadm.NewClient(client).CreateTopics(declareCtx, partitions, 1, nil, cfg.DeclareTopics...)
		if err != nil {
			// Declaration trouble is not fatal: auto topic creation still
			// covers the happy path.
			logger.Warn("declare topics failed", "error", err)
		}
		for _, res := range responses.Sorted() {
			if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
				logger.Warn("declare topic failed", "topic", res.Topic, "error", res.Err)
			}
		}
	}
	return client, nil
}

// ensureClient returns the shared client, connecting on first use. The lock is
// only taken while no healthy client exists; concurrent callers cannot race to
// open duplicate connections.
func (p *Publisher) ensureClient(ctx context.Context) (producer, bool) {
	if ref := p.client.Load(); ref != nil {
		return ref.producer, true
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if ref := p.client.Load(); ref != nil {
		return ref.producer, true
	}

	client, err := p.connect(ctx)
	if err != nil {
		p.logger.Warn("broker connect failed", "error", err)
		return nil, false
	}
	p.client.Store(&clientRef{client})
	return client, true
}

// TryPublish attempts immediate delivery and reports whether it succeeded.
func (p *Publisher) TryPublish(ctx context.Context, env Envelope) bool {
	client, ok := p.ensureClient(ctx)
	if !ok {
		p.countFailure()
		return false
	}

	body, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("marshal envelope", "kind", env.Kind, "entityId", env.EntityID, "error", err)
		p.countFailure()
		return false
	}

	record := &kgo.Record{
		Topic: env.Kind,
		Key:   []byte(env.EntityID),
		Value: body,
	}
	if err := client.ProduceSync(ctx, record).FirstErr(); err != nil {
		p.logger.Warn("publish failed", "kind", env.Kind, "entityId", env.EntityID, "error", err)
		p.countFailure()
		return false
	}

	if p.published != nil {
		p.published.Inc()
	}
	return true
}

// Publish is the fire-and-forget variant: delivery failures are logged and
// otherwise invisible to the caller.
func (p *Publisher) Publish(ctx context.Context, env Envelope) {
	p.TryPublish(ctx, env)
}

// Close releases the broker connection if one was opened. Publishes racing
// Close see either the old client or none at all, never a half-closed state.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ref := p.client.Swap(nil); ref != nil {
		ref.producer.Close()
	}
}

func (p *Publisher) countFailure() {
	if p.failed != nil {
		p.failed.Inc()
	}
}
