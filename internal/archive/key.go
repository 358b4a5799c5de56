// Package archive stores raw uploads in blob storage under a per-location, per-second key.
package archive

import (
	"fmt"
	"time"
)

const keyTimeLayout = "20060102_150405"

// Key returns the object key for an upload to locationID at t. Two uploads for the same
// location within the same UTC second share a key; the later one overwrites the earlier.
func Key(locationID string, t time.Time) string {
	return fmt.Sprintf("uploads/location_%s/%s.jpg", locationID, t.UTC().Format(keyTimeLayout))
}
