package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"orderflow/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) TestReserveThenComplete() {
	s.Require().NoError(s.store.Add(s.ctx, Record{Key: "idem-1"}))

	record, err := s.store.GetByKey(s.ctx, "idem-1")
	s.Require().NoError(err)
	s.Require().NotNil(record)
	s.False(record.Completed(), "fresh reservation must carry no response")

	record.Response = []byte(`{"orderId":"o-1"}`)
	record.Status = 201
	s.Require().NoError(s.store.Update(s.ctx, *record))

	record, err = s.store.GetByKey(s.ctx, "idem-1")
	s.Require().NoError(err)
	s.Require().NotNil(record)
	s.True(record.Completed())
	s.Equal(201, record.Status)
	s.Equal([]byte(`{"orderId":"o-1"}`), record.Response)
}

func (s *InMemoryStoreSuite) TestAddConflictsOnLiveKey() {
	s.Require().NoError(s.store.Add(s.ctx, Record{Key: "idem-1"}))

	err := s.store.Add(s.ctx, Record{Key: "idem-1"})
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *InMemoryStoreSuite) TestUpdateMissingKey() {
	err := s.store.Update(s.ctx, Record{Key: "idem-absent", Response: []byte("x")})
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestRemoveReleasesKey() {
	s.Require().NoError(s.store.Add(s.ctx, Record{Key: "idem-1"}))
	s.Require().NoError(s.store.Remove(s.ctx, "idem-1"))

	record, err := s.store.GetByKey(s.ctx, "idem-1")
	s.Require().NoError(err)
	s.Nil(record)

	s.Require().NoError(s.store.Add(s.ctx, Record{Key: "idem-1"}))
}

func (s *InMemoryStoreSuite) TestRetentionExpiry() {
	store := NewInMemoryStore(WithRetention(10 * time.Millisecond))

	s.Require().NoError(store.Add(s.ctx, Record{Key: "idem-1", Response: []byte("x"), Status: 200}))
	time.Sleep(25 * time.Millisecond)

	record, err := store.GetByKey(s.ctx, "idem-1")
	s.Require().NoError(err)
	s.Nil(record, "expired record must read as absent")

	s.Require().NoError(store.Add(s.ctx, Record{Key: "idem-1"}),
		"expired key must be reservable again")
}
