// Package occupancy converts detections and admin edits into durable per-location occupancy records.
//
// Counts are written as final values, never deltas: concurrent ingests for the same location
// resolve last-writer-wins in store commit order.
package occupancy

import (
	"context"
	"errors"
	"scootspot/internal/ports"
	"scootspot/internal/types"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// RegisterMode selects how RegisterLocation treats an id that already exists.
type RegisterMode int

const (
	// Upsert overwrites an existing location, resetting its count.
	Upsert RegisterMode = iota
	// CreateIfAbsent refuses to touch an existing location.
	CreateIfAbsent
)

// Service holds the process-lifetime handles every operation needs. It keeps no mutable state
// of its own and is safe for concurrent use.
type Service struct {
	store     ports.LocationStore
	detector  ports.Detector
	archiver  ports.Archiver
	publisher ports.Publisher
	topicArn  string
	now       func() time.Time
}

type Option func(*Service)

// WithPublisher announces every committed ingest on the given topic.
func WithPublisher(p ports.Publisher, topicArn string) Option {
	return func(s *Service) {
		if p != nil && topicArn != "" {
			s.publisher = p
			s.topicArn = topicArn
		}
	}
}

func WithNowFn(f func() time.Time) Option {
	return func(s *Service) { s.now = f }
}

// NewService wires the service. archiver may be nil, in which case ingests that ask for
// archiving fail with types.ErrArchive.
func NewService(store ports.LocationStore, detector ports.Detector, archiver ports.Archiver, opts ...Option) *Service {
	s := &Service{
		store:    store,
		detector: detector,
		archiver: archiver,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// IngestResult describes a committed ingest.
type IngestResult struct {
	LocationID  string
	Count       int
	Counts      types.Counts
	ArchivedKey string
}

// Ingest runs detection over image and stores the summed count for locationID. When archive is
// set the image is written to blob storage first, and an archive failure aborts before the
// count is touched. Unknown locations are never created.
func (s *Service) Ingest(ctx context.Context, locationID string, image []byte, archive bool) (IngestResult, error) {
	if err := types.ValidateLocationID(locationID); err != nil {
		return IngestResult{}, err
	}
	if len(image) == 0 {
		return IngestResult{}, types.Validation("image body is required")
	}
	res := IngestResult{LocationID: locationID}

	if archive {
		if s.archiver == nil {
			return IngestResult{}, types.Err(types.ErrArchive, nil, "archiving is not configured")
		}
		key, err := s.archiver.Archive(ctx, locationID, image)
		if err != nil {
			return IngestResult{}, wrap(types.ErrArchive, err, "archive upload for %s", locationID)
		}
		res.ArchivedKey = key
	}

	counts, err := s.detect(ctx, image)
	if err != nil {
		return IngestResult{}, err
	}
	res.Counts = counts
	res.Count = counts.Total()

	loc, err := s.store.UpdateCount(ctx, locationID, res.Count)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return IngestResult{}, types.Err(types.ErrUnknownLocation, nil, "location %s is not registered", locationID)
		}
		return IngestResult{}, wrap(types.ErrStore, err, "update count for %s", locationID)
	}

	log.WithFields(log.Fields{
		"location_id":  locationID,
		"count":        res.Count,
		"archived_key": res.ArchivedKey,
	}).Info("Occupancy updated")

	s.announce(ctx, loc, res)
	return res, nil
}

// Count runs detection only. Nothing is stored.
func (s *Service) Count(ctx context.Context, image []byte) (types.Counts, error) {
	if len(image) == 0 {
		return nil, types.Validation("image is required")
	}
	return s.detect(ctx, image)
}

func (s *Service) detect(ctx context.Context, image []byte) (types.Counts, error) {
	counts, err := s.detector.Detect(ctx, image)
	if err != nil {
		if errors.Is(err, types.ErrImageDecode) {
			return nil, err
		}
		return nil, wrap(types.ErrDetector, err, "")
	}
	if counts == nil {
		counts = types.NewCounts()
	}
	return counts, nil
}

// announce publishes the committed count. The count is already durable, so failures are only logged.
func (s *Service) announce(ctx context.Context, loc types.Location, res IngestResult) {
	if s.publisher == nil {
		return
	}
	v := loc.View()
	err := s.publisher.PublishOccupancy(ctx, s.topicArn, types.OccupancyEvent{
		LocationID:     res.LocationID,
		Count:          res.Count,
		Counts:         res.Counts,
		TotalSpots:     v.TotalSpots,
		AvailableSpots: v.AvailableSpots,
		ArchivedKey:    res.ArchivedKey,
		ObservedAt:     s.now().Unix(),
	})
	if err != nil {
		log.WithError(err).WithField("location_id", res.LocationID).Warn("Failed to publish occupancy event")
	}
}

// ListLocations returns every location with derived availability, in store order.
func (s *Service) ListLocations(ctx context.Context) ([]types.LocationView, error) {
	locations, err := s.store.Scan(ctx)
	if err != nil {
		return nil, wrap(types.ErrStore, err, "list locations")
	}
	views := make([]types.LocationView, 0, len(locations))
	for _, loc := range locations {
		views = append(views, loc.View())
	}
	return views, nil
}

// AdjustCapacity replaces total_spots of an existing location.
func (s *Service) AdjustCapacity(ctx context.Context, locationID string, totalSpots int) (types.Location, error) {
	if err := types.ValidateLocationID(locationID); err != nil {
		return types.Location{}, err
	}
	if totalSpots < 0 {
		return types.Location{}, types.Validation("new_total_spots must be non-negative")
	}
	loc, err := s.store.UpdateTotalSpots(ctx, locationID, totalSpots)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return types.Location{}, types.Err(types.ErrUnknownLocation, nil, "location %s is not registered", locationID)
		}
		return types.Location{}, wrap(types.ErrStore, err, "update total_spots for %s", locationID)
	}
	log.WithFields(log.Fields{
		"location_id": locationID,
		"total_spots": totalSpots,
	}).Info("Capacity adjusted")
	return loc, nil
}

// Registration is the input of RegisterLocation.
type Registration struct {
	LocationID   string
	LocationName string
	TotalSpots   int
	InitialCount int
}

// RegisterLocation writes a new location. With Upsert an existing record under the same id is
// replaced wholesale, including its count.
func (s *Service) RegisterLocation(ctx context.Context, r Registration, mode RegisterMode) (types.Location, error) {
	loc := types.Location{
		LocationID:   r.LocationID,
		LocationName: r.LocationName,
		TotalSpots:   types.IntPtr(r.TotalSpots),
		Count:        types.IntPtr(r.InitialCount),
	}
	if err := loc.Validate(); err != nil {
		return types.Location{}, err
	}

	var err error
	switch mode {
	case CreateIfAbsent:
		err = s.store.PutIfAbsent(ctx, loc)
	default:
		err = s.store.Put(ctx, loc)
	}
	if err != nil {
		if errors.Is(err, types.ErrAlreadyExists) {
			return types.Location{}, types.Err(types.ErrAlreadyExists, nil, "location %s already exists", r.LocationID)
		}
		return types.Location{}, wrap(types.ErrStore, err, "register location %s", r.LocationID)
	}
	log.WithFields(log.Fields{
		"location_id": loc.LocationID,
		"total_spots": r.TotalSpots,
		"count":       r.InitialCount,
		"if_absent":   mode == CreateIfAbsent,
	}).Info("Location registered")
	return loc, nil
}

// ParseInt parses a request parameter as an integer, reporting failures as validation errors.
func ParseInt(name, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, types.Validation("%s is required", name)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, types.Validation("%s must be an integer, got %q", name, raw)
	}
	return n, nil
}

// wrap tags err with typed unless it already carries it.
func wrap(typed error, err error, msgTemplate string, args ...any) error {
	if errors.Is(err, typed) {
		return err
	}
	return types.Err(typed, err, msgTemplate, args...)
}
