package outbound

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePublisher records publish attempts and answers from a scripted outcome
// list (last outcome repeats).
type fakePublisher struct {
	mu       sync.Mutex
	outcomes []bool
	seen     []Envelope
}

func (f *fakePublisher) TryPublish(_ context.Context, env Envelope) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, env)
	if len(f.outcomes) == 0 {
		return true
	}
	out := f.outcomes[0]
	if len(f.outcomes) > 1 {
		f.outcomes = f.outcomes[1:]
	}
	return out
}

func (f *fakePublisher) attempts() []Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Envelope(nil), f.seen...)
}

func TestWorker_DrainsQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := NewRetryQueue(nil, testLogger())
	queue.Enqueue(ctx, envelopeFor("a"))
	queue.Enqueue(ctx, envelopeFor("b"))

	pub := &fakePublisher{}
	worker := NewWorker(queue, pub, 10*time.Millisecond, testLogger())

	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(pub.attempts()) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)

	attempts := pub.attempts()
	assert.Equal(t, "a", attempts[0].EntityID)
	assert.Equal(t, "b", attempts[1].EntityID)

	_, ok := queue.Dequeue(context.Background())
	assert.False(t, ok, "queue must be empty after drain")
}

func TestWorker_RequeuesOnPublishFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := NewRetryQueue(nil, testLogger())
	queue.Enqueue(ctx, envelopeFor("a"))

	// First attempt fails, second succeeds after one polling interval.
	pub := &fakePublisher{outcomes: []bool{false, true}}
	worker := NewWorker(queue, pub, 5*time.Millisecond, testLogger())

	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(pub.attempts()) >= 2
	}, time.Second, 2*time.Millisecond)

	cancel()
	<-done

	_, ok := queue.Dequeue(context.Background())
	assert.False(t, ok, "envelope must leave the queue once published")
}

func TestWorker_StopsDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	queue := NewRetryQueue(nil, testLogger())
	worker := NewWorker(queue, &fakePublisher{}, time.Hour, testLogger())

	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	// The interval is an hour; cancellation must interrupt the wait.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not observe cancellation during wait")
	}
}
