package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/outbound"
)

type publishableRes struct {
	ID string `json:"id"`
}

func (r publishableRes) OutboundEvent() (outbound.Envelope, bool) {
	return outbound.Envelope{
		EntityID: r.ID,
		Kind:     "order.created",
		Payload:  []byte(`{"orderId":"` + r.ID + `"}`),
	}, true
}

type recordingPublisher struct {
	mu   sync.Mutex
	ok   bool
	seen []outbound.Envelope
}

func (p *recordingPublisher) TryPublish(_ context.Context, env outbound.Envelope) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, env)
	return p.ok
}

type recordingQueue struct {
	mu   sync.Mutex
	seen []outbound.Envelope
}

func (q *recordingQueue) Enqueue(_ context.Context, env outbound.Envelope) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seen = append(q.seen, env)
}

func TestPublishOutbound_PublishesAndEnqueues(t *testing.T) {
	publisher := &recordingPublisher{ok: true}
	queue := &recordingQueue{}

	handler := Chain(func(context.Context, writeCmd) (publishableRes, error) {
		return publishableRes{ID: "o-1"}, nil
	}, PublishOutbound[writeCmd, publishableRes](publisher, queue, testLogger()))

	_, err := handler(context.Background(), writeCmd{})
	require.NoError(t, err)

	require.Len(t, publisher.seen, 1)
	assert.Equal(t, "o-1", publisher.seen[0].EntityID)
	// The queue submit is unconditional; dedup in the queue makes it a no-op
	// when the event is already pending.
	require.Len(t, queue.seen, 1)
	assert.Equal(t, publisher.seen[0], queue.seen[0])
}

func TestPublishOutbound_EnqueuesEvenWhenPublishFails(t *testing.T) {
	publisher := &recordingPublisher{ok: false}
	queue := &recordingQueue{}

	handler := Chain(func(context.Context, writeCmd) (publishableRes, error) {
		return publishableRes{ID: "o-1"}, nil
	}, PublishOutbound[writeCmd, publishableRes](publisher, queue, testLogger()))

	res, err := handler(context.Background(), writeCmd{})
	require.NoError(t, err, "broker failure must be invisible to the caller")
	assert.Equal(t, "o-1", res.ID)
	require.Len(t, queue.seen, 1, "failed publish must still reach the retry queue")
}

func TestPublishOutbound_SkipsNonPublishableResponses(t *testing.T) {
	publisher := &recordingPublisher{ok: true}
	queue := &recordingQueue{}

	handler := Chain(func(context.Context, writeCmd) (plainRes, error) {
		return plainRes{Value: "done"}, nil
	}, PublishOutbound[writeCmd, plainRes](publisher, queue, testLogger()))

	_, err := handler(context.Background(), writeCmd{})
	require.NoError(t, err)
	assert.Empty(t, publisher.seen)
	assert.Empty(t, queue.seen)
}

func TestPublishOutbound_SkipsOnHandlerError(t *testing.T) {
	publisher := &recordingPublisher{ok: true}
	queue := &recordingQueue{}

	handler := Chain(func(context.Context, writeCmd) (publishableRes, error) {
		return publishableRes{}, assert.AnError
	}, PublishOutbound[writeCmd, publishableRes](publisher, queue, testLogger()))

	_, err := handler(context.Background(), writeCmd{})
	require.Error(t, err)
	assert.Empty(t, publisher.seen)
	assert.Empty(t, queue.seen)
}
