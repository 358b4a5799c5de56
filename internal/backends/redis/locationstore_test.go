package redis

import (
	"context"
	"os"
	"scootspot/internal/types"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

// LocationStoreSuite requires a local Redis reachable at TEST_REDIS_ADDR.
type LocationStoreSuite struct {
	suite.Suite

	ctx   context.Context
	store *LocationStore
}

func TestLocationStoreSuite(t *testing.T) {
	if os.Getenv("TEST_REDIS_ADDR") == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	suite.Run(t, new(LocationStoreSuite))
}

func (s *LocationStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.store = NewLocationStore(redis.NewClient(&redis.Options{
		Addr: os.Getenv("TEST_REDIS_ADDR"),
		DB:   0,
	}))
}

func (s *LocationStoreSuite) SetupTest() {
	s.Require().NoError(s.store.ClearAll(s.ctx))
}

func (s *LocationStoreSuite) TestPutGetScan() {
	s.NoError(s.store.Put(s.ctx, types.Location{LocationID: "L1", LocationName: "Main St", TotalSpots: types.IntPtr(10), Count: types.IntPtr(0)}))
	s.NoError(s.store.Put(s.ctx, types.Location{LocationID: "L2", LocationName: "Legacy"}))

	loc, err := s.store.Get(s.ctx, "L1")
	s.NoError(err)
	s.Equal(10, *loc.TotalSpots)

	loc, err = s.store.Get(s.ctx, "L2")
	s.NoError(err)
	s.Nil(loc.TotalSpots)
	s.Nil(loc.Count)

	all, err := s.store.Scan(s.ctx)
	s.NoError(err)
	s.Len(all, 2)

	_, err = s.store.Get(s.ctx, "missing")
	s.ErrorIs(err, types.ErrNotFound)
}

func (s *LocationStoreSuite) TestPutReplacesWholeRecord() {
	s.NoError(s.store.Put(s.ctx, types.Location{LocationID: "L1", LocationName: "A", TotalSpots: types.IntPtr(10), Count: types.IntPtr(7)}))
	s.NoError(s.store.Put(s.ctx, types.Location{LocationID: "L1", LocationName: "B", TotalSpots: types.IntPtr(5)}))

	loc, err := s.store.Get(s.ctx, "L1")
	s.NoError(err)
	s.Equal("B", loc.LocationName)
	s.Nil(loc.Count)
}

func (s *LocationStoreSuite) TestPutIfAbsent() {
	loc := types.Location{LocationID: "L1", LocationName: "A", TotalSpots: types.IntPtr(1)}
	s.NoError(s.store.PutIfAbsent(s.ctx, loc))
	s.ErrorIs(s.store.PutIfAbsent(s.ctx, loc), types.ErrAlreadyExists)
}

func (s *LocationStoreSuite) TestUpdates() {
	_, err := s.store.UpdateCount(s.ctx, "ghost", 1)
	s.ErrorIs(err, types.ErrNotFound)

	s.NoError(s.store.Put(s.ctx, types.Location{LocationID: "L1", LocationName: "A", TotalSpots: types.IntPtr(10)}))
	loc, err := s.store.UpdateCount(s.ctx, "L1", 3)
	s.NoError(err)
	s.Equal(3, *loc.Count)

	loc, err = s.store.UpdateTotalSpots(s.ctx, "L1", 12)
	s.NoError(err)
	s.Equal(12, *loc.TotalSpots)
	s.Equal(3, *loc.Count)
}

func (s *LocationStoreSuite) TestConcurrentUpdatesSettleOnOneValue() {
	s.NoError(s.store.Put(s.ctx, types.Location{LocationID: "L1", LocationName: "A", TotalSpots: types.IntPtr(10)}))

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _ = s.store.UpdateCount(s.ctx, "L1", n)
		}(i)
	}
	wg.Wait()

	loc, err := s.store.Get(s.ctx, "L1")
	s.NoError(err)
	s.GreaterOrEqual(*loc.Count, 1)
	s.LessOrEqual(*loc.Count, 8)
}
