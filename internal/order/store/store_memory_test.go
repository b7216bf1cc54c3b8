package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/domain"
	"orderflow/internal/order/models"
	"orderflow/pkg/platform/sentinel"
)

func placedOrder(t *testing.T) *models.Order {
	t.Helper()
	order, err := models.NewOrder("c-1", []models.OrderLine{
		{ProductID: "p-1", Quantity: 1, UnitPriceCents: 100},
	})
	require.NoError(t, err)
	return order
}

func TestInMemoryStore_StagedWritesInvisibleUntilCommit(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	order := placedOrder(t)

	require.NoError(t, s.Save(ctx, order))
	_, err := s.Get(ctx, order.ID)
	require.ErrorIs(t, err, sentinel.ErrNotFound, "reads see committed state only")

	count, err := s.SaveChanges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := s.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
}

func TestInMemoryStore_EntitiesWithPendingEvents(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	order := placedOrder(t)

	require.NoError(t, s.Save(ctx, order))
	_, err := s.SaveChanges(ctx)
	require.NoError(t, err)

	sources := s.EntitiesWithPendingEvents(ctx)
	require.Len(t, sources, 1)

	sources[0].ClearEvents()
	assert.Empty(t, s.EntitiesWithPendingEvents(ctx), "cleared entities drop out of the pending set")
}

func TestInMemoryStore_SessionScopesUnitOfWork(t *testing.T) {
	s := NewInMemoryStore()

	// One request stages without committing.
	inflightCtx, _ := domain.Begin(context.Background())
	inflight := placedOrder(t)
	require.NoError(t, s.Save(inflightCtx, inflight))

	// Another request stages and commits its own unit of work.
	ctx, _ := domain.Begin(context.Background())
	order := placedOrder(t)
	require.NoError(t, s.Save(ctx, order))
	count, err := s.SaveChanges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "only this session's writes commit")

	sources := s.EntitiesWithPendingEvents(ctx)
	require.Len(t, sources, 1)
	assert.Same(t, order, sources[0].(*models.Order))

	// The in-flight request's order stays uncommitted and uncollected.
	assert.Empty(t, s.EntitiesWithPendingEvents(inflightCtx))
	_, err = s.Get(ctx, inflight.ID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
