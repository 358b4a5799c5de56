// Package memory holds an in-process LocationStore for local development and tests.
package memory

import (
	"context"
	"scootspot/internal/types"
	"sync"
	"time"
)

type LocationStore struct {
	mu   sync.RWMutex
	data map[string]types.Location
	now  func() time.Time
}

func NewLocationStore() *LocationStore {
	return &LocationStore{data: make(map[string]types.Location), now: time.Now}
}

// SetNowFn overrides the clock used for last_updated.
func (s *LocationStore) SetNowFn(f func() time.Time) {
	s.mu.Lock()
	s.now = f
	s.mu.Unlock()
}

func (s *LocationStore) Get(_ context.Context, locationID string) (types.Location, error) {
	s.mu.RLock()
	loc, ok := s.data[locationID]
	s.mu.RUnlock()
	if !ok {
		return types.Location{}, types.ErrNotFound
	}
	return clone(loc), nil
}

func (s *LocationStore) Scan(_ context.Context) ([]types.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Location, 0, len(s.data))
	for _, loc := range s.data {
		out = append(out, clone(loc))
	}
	return out, nil
}

func (s *LocationStore) Put(_ context.Context, loc types.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	loc.LastUpdated = types.Timestamp(s.now())
	s.data[loc.LocationID] = clone(loc)
	return nil
}

func (s *LocationStore) PutIfAbsent(_ context.Context, loc types.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[loc.LocationID]; ok {
		return types.ErrAlreadyExists
	}
	loc.LastUpdated = types.Timestamp(s.now())
	s.data[loc.LocationID] = clone(loc)
	return nil
}

func (s *LocationStore) UpdateCount(_ context.Context, locationID string, count int) (types.Location, error) {
	return s.update(locationID, func(loc *types.Location) { loc.Count = types.IntPtr(count) })
}

func (s *LocationStore) UpdateTotalSpots(_ context.Context, locationID string, totalSpots int) (types.Location, error) {
	return s.update(locationID, func(loc *types.Location) { loc.TotalSpots = types.IntPtr(totalSpots) })
}

func (s *LocationStore) update(locationID string, fn func(loc *types.Location)) (types.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loc, ok := s.data[locationID]
	if !ok {
		return types.Location{}, types.ErrNotFound
	}
	fn(&loc)
	loc.LastUpdated = types.Timestamp(s.now())
	s.data[locationID] = loc
	return clone(loc), nil
}

// ClearAll removes every location.
func (s *LocationStore) ClearAll(_ context.Context) error {
	s.mu.Lock()
	s.data = make(map[string]types.Location)
	s.mu.Unlock()
	return nil
}

// clone copies the pointer fields so callers can't mutate stored state.
func clone(loc types.Location) types.Location {
	if loc.TotalSpots != nil {
		loc.TotalSpots = types.IntPtr(*loc.TotalSpots)
	}
	if loc.Count != nil {
		loc.Count = types.IntPtr(*loc.Count)
	}
	return loc
}
