package occupancy

import (
	"context"
	"errors"
	"scootspot/internal/backends/memory"
	"scootspot/internal/types"
	"sync"
)

type fakeDetector struct {
	mu     sync.Mutex
	counts types.Counts
	err    error
	calls  int
}

func (d *fakeDetector) Detect(_ context.Context, _ []byte) (types.Counts, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	out := types.NewCounts()
	for k, v := range d.counts {
		out[k] = v
	}
	return out, nil
}

type fakeArchiver struct {
	keys map[string][]byte
	err  error
}

func (a *fakeArchiver) Archive(_ context.Context, locationID string, image []byte) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	key := "uploads/location_" + locationID + "/20250101_000000.jpg"
	if a.keys == nil {
		a.keys = map[string][]byte{}
	}
	a.keys[key] = image
	return key, nil
}

type fakePublisher struct {
	events []types.OccupancyEvent
	arns   []string
	err    error
}

func (p *fakePublisher) PublishOccupancy(_ context.Context, arn string, event types.OccupancyEvent) error {
	p.arns = append(p.arns, arn)
	p.events = append(p.events, event)
	return p.err
}

var errBackendDown = errors.New("backend down")

// flakyStore fails selected operations on top of the in-memory store.
type flakyStore struct {
	*memory.LocationStore
	failScan   bool
	failUpdate bool
	failPut    bool
}

func (s *flakyStore) Scan(ctx context.Context) ([]types.Location, error) {
	if s.failScan {
		return nil, errBackendDown
	}
	return s.LocationStore.Scan(ctx)
}

func (s *flakyStore) UpdateCount(ctx context.Context, id string, n int) (types.Location, error) {
	if s.failUpdate {
		return types.Location{}, errBackendDown
	}
	return s.LocationStore.UpdateCount(ctx, id, n)
}

func (s *flakyStore) Put(ctx context.Context, loc types.Location) error {
	if s.failPut {
		return errBackendDown
	}
	return s.LocationStore.Put(ctx, loc)
}
