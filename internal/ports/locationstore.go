package ports

import (
	"context"
	"scootspot/internal/types"
)

// LocationStore persists one occupancy record per location_id.
// Update methods replace a single field with the caller's final value; they never create rows.
type LocationStore interface {
	// Get returns the location. MUST return types.ErrNotFound if it does not exist.
	Get(ctx context.Context, locationID string) (types.Location, error)

	// Scan returns every location in store order. Implementations MUST follow pagination
	// until the full set has been read.
	Scan(ctx context.Context) ([]types.Location, error)

	// Put creates or overwrites the location unconditionally.
	Put(ctx context.Context, loc types.Location) error

	// PutIfAbsent creates the location; MUST return types.ErrAlreadyExists if the id is taken.
	PutIfAbsent(ctx context.Context, loc types.Location) error

	// UpdateCount sets count on an existing location and returns the updated record.
	// MUST return types.ErrNotFound if the location does not exist.
	UpdateCount(ctx context.Context, locationID string, count int) (types.Location, error)

	// UpdateTotalSpots sets total_spots on an existing location and returns the updated record.
	// MUST return types.ErrNotFound if the location does not exist.
	UpdateTotalSpots(ctx context.Context, locationID string, totalSpots int) (types.Location, error)
}
