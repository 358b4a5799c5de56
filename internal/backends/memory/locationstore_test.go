package memory

import (
	"context"
	"scootspot/internal/types"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type LocationStoreSuite struct {
	suite.Suite

	store *LocationStore
	ctx   context.Context
}

func TestLocationStoreSuite(t *testing.T) {
	suite.Run(t, new(LocationStoreSuite))
}

func (s *LocationStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewLocationStore()
	s.store.SetNowFn(func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) })
}

func (s *LocationStoreSuite) TestGetMissing() {
	_, err := s.store.Get(s.ctx, "nope")
	s.ErrorIs(err, types.ErrNotFound)
}

func (s *LocationStoreSuite) TestPutAndGet() {
	err := s.store.Put(s.ctx, types.Location{LocationID: "L1", LocationName: "Main St", TotalSpots: types.IntPtr(10), Count: types.IntPtr(0)})
	s.NoError(err)

	loc, err := s.store.Get(s.ctx, "L1")
	s.NoError(err)
	s.Equal("Main St", loc.LocationName)
	s.Equal(10, *loc.TotalSpots)
	s.Equal("2025-03-01T12:00:00Z", loc.LastUpdated)
}

func (s *LocationStoreSuite) TestPutIfAbsent() {
	s.NoError(s.store.PutIfAbsent(s.ctx, types.Location{LocationID: "L1", LocationName: "A", TotalSpots: types.IntPtr(1)}))
	err := s.store.PutIfAbsent(s.ctx, types.Location{LocationID: "L1", LocationName: "B", TotalSpots: types.IntPtr(2)})
	s.ErrorIs(err, types.ErrAlreadyExists)

	loc, err := s.store.Get(s.ctx, "L1")
	s.NoError(err)
	s.Equal("A", loc.LocationName)
}

func (s *LocationStoreSuite) TestUpdateDoesNotCreate() {
	_, err := s.store.UpdateCount(s.ctx, "ghost", 3)
	s.ErrorIs(err, types.ErrNotFound)
	_, err = s.store.UpdateTotalSpots(s.ctx, "ghost", 3)
	s.ErrorIs(err, types.ErrNotFound)

	all, err := s.store.Scan(s.ctx)
	s.NoError(err)
	s.Empty(all)
}

func (s *LocationStoreSuite) TestUpdateFields() {
	s.NoError(s.store.Put(s.ctx, types.Location{LocationID: "L1", LocationName: "A", TotalSpots: types.IntPtr(10)}))

	loc, err := s.store.UpdateCount(s.ctx, "L1", 4)
	s.NoError(err)
	s.Equal(4, *loc.Count)
	s.Equal(10, *loc.TotalSpots)

	loc, err = s.store.UpdateTotalSpots(s.ctx, "L1", 15)
	s.NoError(err)
	s.Equal(4, *loc.Count)
	s.Equal(15, *loc.TotalSpots)
}

func (s *LocationStoreSuite) TestReturnedValuesAreCopies() {
	s.NoError(s.store.Put(s.ctx, types.Location{LocationID: "L1", LocationName: "A", TotalSpots: types.IntPtr(10)}))
	loc, err := s.store.Get(s.ctx, "L1")
	s.NoError(err)
	*loc.TotalSpots = 99

	again, err := s.store.Get(s.ctx, "L1")
	s.NoError(err)
	s.Equal(10, *again.TotalSpots)
}
