package types

const (
	ClassElectricScooter = "electric_scooter"
	ClassBicycle         = "bicycle"

	// MinConfidence is the score below which detections are discarded.
	MinConfidence = 0.5
)

// RecognizedClasses lists the labels that contribute to an occupancy count. Everything else the
// model reports is ignored.
var RecognizedClasses = []string{ClassElectricScooter, ClassBicycle}

func IsRecognizedClass(label string) bool {
	for _, c := range RecognizedClasses {
		if c == label {
			return true
		}
	}
	return false
}

// Counts is the number of detections per recognized class for one image.
type Counts map[string]int

// NewCounts returns Counts with every recognized class present at zero.
func NewCounts() Counts {
	c := make(Counts, len(RecognizedClasses))
	for _, cls := range RecognizedClasses {
		c[cls] = 0
	}
	return c
}

// Add records n detections of label. Unrecognized labels are dropped.
func (c Counts) Add(label string, n int) {
	if !IsRecognizedClass(label) || n <= 0 {
		return
	}
	c[label] += n
}

// Total sums the recognized classes into a single occupancy count.
func (c Counts) Total() int {
	total := 0
	for _, cls := range RecognizedClasses {
		total += c[cls]
	}
	return total
}

// OccupancyEvent is published after an ingest commits a new count.
type OccupancyEvent struct {
	LocationID     string `json:"location_id"`
	Count          int    `json:"count"`
	Counts         Counts `json:"counts"`
	TotalSpots     int    `json:"total_spots"`
	AvailableSpots int    `json:"available_spots"`
	ArchivedKey    string `json:"archived_key,omitempty"`
	ObservedAt     int64  `json:"observed_at"`
}
