package domain

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noteEvent struct {
	id string
}

func (e noteEvent) Kind() string     { return "note.raised" }
func (e noteEvent) EntityID() string { return e.id }

type noteEntity struct {
	Recorder
}

func TestRecorder_TakeEventsIsExactlyOnce(t *testing.T) {
	entity := &noteEntity{}
	for i := 0; i < 100; i++ {
		entity.Record(noteEvent{id: strconv.Itoa(i)})
	}

	var mu sync.Mutex
	var taken []Event
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			events := entity.TakeEvents()
			mu.Lock()
			taken = append(taken, events...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, taken, 100, "concurrent takes must hand out each event exactly once")
	assert.Empty(t, entity.PendingEvents())
}

func TestSession_StageTakeFlush(t *testing.T) {
	ctx, session := Begin(context.Background())
	assert.Same(t, session, SessionFrom(ctx))

	entity := &noteEntity{}
	session.Stage(entity)
	assert.Empty(t, session.Flushed(), "staged entities are not flushed yet")

	staged := session.TakeStaged()
	require.Len(t, staged, 1)
	assert.Empty(t, session.TakeStaged(), "taking drains the staged set")

	session.MarkFlushed(staged...)
	require.Len(t, session.Flushed(), 1)
	assert.Same(t, entity, session.Flushed()[0])
}

func TestSession_BeginShadowsOuterSession(t *testing.T) {
	ctx, outer := Begin(context.Background())
	innerCtx, inner := Begin(ctx)

	assert.NotSame(t, outer, inner)
	assert.Same(t, inner, SessionFrom(innerCtx))
}

func TestSessionFrom_NoSession(t *testing.T) {
	assert.Nil(t, SessionFrom(context.Background()))
}
