package ports

import (
	"context"
	"scootspot/internal/types"
)

// Publisher fans out occupancy changes to subscribers.
type Publisher interface {
	PublishOccupancy(ctx context.Context, arn string, event types.OccupancyEvent) error
}
