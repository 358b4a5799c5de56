package cmds

import (
	"context"
	"fmt"
	"io"
	"os"
	"scootspot/internal/occupancy"
	"scootspot/internal/ports"
	"scootspot/internal/types"

	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
	log "github.com/sirupsen/logrus"
)

// LocationsFile is the YAML document accepted by put-locations.
type LocationsFile struct {
	IfAbsent  bool             `yaml:"if_absent"`
	Locations []types.Location `yaml:"locations"`
}

func ReadLocationsFile(path string) (LocationsFile, error) {
	var f LocationsFile
	b, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(b, &f); err != nil {
		return f, types.Err(types.ErrValidation, err, "parse %s", path)
	}
	if len(f.Locations) == 0 {
		return f, types.Validation("%s lists no locations", path)
	}
	return f, nil
}

// PutLocations registers every location in the YAML file at path. It stops at the first failure;
// locations before it stay written.
func PutLocations(ctx context.Context, svc *occupancy.Service, path string) error {
	f, err := ReadLocationsFile(path)
	if err != nil {
		return err
	}
	mode := occupancy.Upsert
	if f.IfAbsent {
		mode = occupancy.CreateIfAbsent
	}
	for i, l := range f.Locations {
		r := occupancy.Registration{
			LocationID:   l.LocationID,
			LocationName: l.LocationName,
		}
		if l.TotalSpots == nil {
			return types.Validation("locations[%d]: total_spots is required", i)
		}
		r.TotalSpots = *l.TotalSpots
		if l.Count != nil {
			r.InitialCount = *l.Count
		}
		if _, err := svc.RegisterLocation(ctx, r, mode); err != nil {
			return fmt.Errorf("locations[%d] (%s): %w", i, l.LocationID, err)
		}
	}
	log.Infof("Registered %d locations from %s", len(f.Locations), path)
	return nil
}

func GetLocation(ctx context.Context, store ports.LocationStore, locationID string, w io.Writer) error {
	loc, err := store.Get(ctx, locationID)
	if err != nil {
		return err
	}
	return printJSON(w, loc.View())
}

func ListLocations(ctx context.Context, svc *occupancy.Service, w io.Writer) error {
	views, err := svc.ListLocations(ctx)
	if err != nil {
		return err
	}
	return printJSON(w, views)
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
