package types

import (
	"strings"
	"time"
)

const (
	// DefaultTotalSpots is assumed for a location whose total_spots attribute is missing.
	DefaultTotalSpots = 20

	LocationIDMaxLength = 128

	// LastUpdatedLayout is the format of Location.LastUpdated.
	LastUpdatedLayout = time.RFC3339
)

// Location is the persisted occupancy record of a physical site. TotalSpots and Count are pointers
// because legacy rows may lack either attribute; View applies the defaults.
type Location struct {
	LocationID   string `json:"location_id" dynamodbav:"location_id" yaml:"location_id"`
	LocationName string `json:"location_name" dynamodbav:"location_name" yaml:"location_name"`
	TotalSpots   *int   `json:"total_spots,omitempty" dynamodbav:"total_spots,omitempty" yaml:"total_spots"`
	Count        *int   `json:"count,omitempty" dynamodbav:"count,omitempty" yaml:"count"`
	LastUpdated  string `json:"last_updated,omitempty" dynamodbav:"last_updated,omitempty" yaml:"-"`
}

// LocationView is the read model returned by listings. AvailableSpots is derived and never stored;
// it goes negative when more objects were observed than the location holds.
type LocationView struct {
	LocationID     string `json:"location_id"`
	LocationName   string `json:"location_name"`
	Count          int    `json:"count"`
	TotalSpots     int    `json:"total_spots"`
	AvailableSpots int    `json:"available_spots"`
	LastUpdated    string `json:"last_updated,omitempty"`
}

func (l Location) View() LocationView {
	total := DefaultTotalSpots
	if l.TotalSpots != nil {
		total = *l.TotalSpots
	}
	count := 0
	if l.Count != nil {
		count = *l.Count
	}
	return LocationView{
		LocationID:     l.LocationID,
		LocationName:   l.LocationName,
		Count:          count,
		TotalSpots:     total,
		AvailableSpots: total - count,
		LastUpdated:    l.LastUpdated,
	}
}

// Validate checks a location before it is written by a registration.
func (l Location) Validate() error {
	if err := ValidateLocationID(l.LocationID); err != nil {
		return err
	}
	if strings.TrimSpace(l.LocationName) == "" {
		return Validation("location_name is required")
	}
	if l.TotalSpots == nil {
		return Validation("total_spots is required")
	}
	if *l.TotalSpots < 0 {
		return Validation("total_spots must be non-negative")
	}
	if l.Count != nil && *l.Count < 0 {
		return Validation("initial_count must be non-negative")
	}
	return nil
}

func ValidateLocationID(id string) error {
	if strings.TrimSpace(id) == "" {
		return Validation("location_id is required")
	}
	if len(id) > LocationIDMaxLength {
		return Validation("location_id must be at most %d characters", LocationIDMaxLength)
	}
	// The id becomes one segment of an archive key.
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return Validation("location_id must not contain path separators or '..'")
	}
	return nil
}

// IntPtr returns a pointer to a copy of i.
func IntPtr(i int) *int { return &i }

// Timestamp formats t the way stores record LastUpdated.
func Timestamp(t time.Time) string { return t.UTC().Format(LastUpdatedLayout) }
