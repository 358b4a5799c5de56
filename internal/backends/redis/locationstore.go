package redis

import (
	"context"
	"errors"
	"fmt"
	"scootspot/internal/types"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	locationKeyNameTemplate = "_scootspot_loc_%s"
	locationIndexKeyName    = "_scootspot_locs"

	fieldLocationID   = "location_id"
	fieldLocationName = "location_name"
	fieldTotalSpots   = "total_spots"
	fieldCount        = "count"
	fieldLastUpdated  = "last_updated"

	maxTxRetries = 3
)

// LocationStore implements ports.LocationStore with one hash per location and a set of known ids.
type LocationStore struct {
	cli *redis.Client
	now func() time.Time
}

func NewLocationStore(cli *redis.Client) *LocationStore {
	return &LocationStore{cli: cli, now: time.Now}
}

func (s *LocationStore) Get(ctx context.Context, locationID string) (types.Location, error) {
	out := s.cli.HGetAll(ctx, getLocationKey(locationID))
	if out.Err() != nil {
		if errors.Is(out.Err(), redis.Nil) {
			return types.Location{}, types.ErrNotFound
		}
		return types.Location{}, types.Err(types.ErrStore, out.Err(), "get location %s", locationID)
	}
	m := out.Val()
	if len(m) == 0 {
		return types.Location{}, types.ErrNotFound
	}
	return decodeLocation(m)
}

// Scan reads the id index and fetches every hash in one pipeline. Ids whose hash has vanished
// in the meantime are skipped.
func (s *LocationStore) Scan(ctx context.Context) ([]types.Location, error) {
	ids, err := s.cli.SMembers(ctx, locationIndexKeyName).Result()
	if err != nil {
		return nil, types.Err(types.ErrStore, err, "read location index")
	}
	if len(ids) == 0 {
		return []types.Location{}, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.cli.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, getLocationKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, types.Err(types.ErrStore, err, "scan locations")
	}
	locations := make([]types.Location, 0, len(ids))
	for i, cmd := range cmds {
		m := cmd.Val()
		if len(m) == 0 {
			log.WithField("location_id", ids[i]).Warn("Location indexed but missing")
			continue
		}
		loc, err := decodeLocation(m)
		if err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, nil
}

func (s *LocationStore) Put(ctx context.Context, loc types.Location) error {
	key := getLocationKey(loc.LocationID)
	_, err := s.cli.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key, s.encodeLocation(loc))
		p.SAdd(ctx, locationIndexKeyName, loc.LocationID)
		return nil
	})
	if err != nil {
		return types.Err(types.ErrStore, err, "put location %s", loc.LocationID)
	}
	return nil
}

func (s *LocationStore) PutIfAbsent(ctx context.Context, loc types.Location) error {
	key := getLocationKey(loc.LocationID)
	return s.watch(ctx, key, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return types.ErrAlreadyExists
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, key, s.encodeLocation(loc))
			p.SAdd(ctx, locationIndexKeyName, loc.LocationID)
			return nil
		})
		return err
	})
}

func (s *LocationStore) UpdateCount(ctx context.Context, locationID string, count int) (types.Location, error) {
	return s.setInt(ctx, locationID, fieldCount, count)
}

func (s *LocationStore) UpdateTotalSpots(ctx context.Context, locationID string, totalSpots int) (types.Location, error) {
	return s.setInt(ctx, locationID, fieldTotalSpots, totalSpots)
}

// setInt overwrites one field of an existing hash. The WATCH makes the existence check and
// the write atomic so a concurrent delete cannot leave a partial hash behind.
func (s *LocationStore) setInt(ctx context.Context, locationID, field string, v int) (types.Location, error) {
	key := getLocationKey(locationID)
	var loc types.Location
	err := s.watch(ctx, key, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return types.ErrNotFound
		}
		var all *redis.MapStringStringCmd
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, key, field, v, fieldLastUpdated, types.Timestamp(s.now()))
			all = p.HGetAll(ctx, key)
			return nil
		})
		if err != nil {
			return err
		}
		loc, err = decodeLocation(all.Val())
		return err
	})
	if err != nil {
		return types.Location{}, err
	}
	return loc, nil
}

// watch runs fn in an optimistic transaction on key, retrying a few times when the key changes
// underneath. Domain errors from fn are returned as-is; everything else becomes ErrStore.
func (s *LocationStore) watch(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	var err error
	for i := 0; i < maxTxRetries; i++ {
		err = s.cli.Watch(ctx, fn, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrAlreadyExists) || errors.Is(err, types.ErrStore) {
			return err
		}
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	return types.Err(types.ErrStore, err, "transaction on %s", key)
}

// ClearAll removes every location. Used in tests only.
func (s *LocationStore) ClearAll(ctx context.Context) error {
	ids, err := s.cli.SMembers(ctx, locationIndexKeyName).Result()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, getLocationKey(id))
	}
	keys = append(keys, locationIndexKeyName)
	return s.cli.Del(ctx, keys...).Err()
}

func (s *LocationStore) encodeLocation(loc types.Location) map[string]any {
	m := map[string]any{
		fieldLocationID:   loc.LocationID,
		fieldLocationName: loc.LocationName,
		fieldLastUpdated:  types.Timestamp(s.now()),
	}
	if loc.TotalSpots != nil {
		m[fieldTotalSpots] = *loc.TotalSpots
	}
	if loc.Count != nil {
		m[fieldCount] = *loc.Count
	}
	return m
}

func decodeLocation(m map[string]string) (types.Location, error) {
	loc := types.Location{
		LocationID:   m[fieldLocationID],
		LocationName: m[fieldLocationName],
		LastUpdated:  m[fieldLastUpdated],
	}
	if v, ok := m[fieldTotalSpots]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return types.Location{}, types.Err(types.ErrStore, err, "invalid total_spots for %s", loc.LocationID)
		}
		loc.TotalSpots = &n
	}
	if v, ok := m[fieldCount]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return types.Location{}, types.Err(types.ErrStore, err, "invalid count for %s", loc.LocationID)
		}
		loc.Count = &n
	}
	return loc, nil
}

func getLocationKey(id string) string {
	return fmt.Sprintf(locationKeyNameTemplate, id)
}
