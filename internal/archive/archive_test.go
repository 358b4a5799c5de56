package archive

import (
	"context"
	"os"
	"path/filepath"
	"scootspot/internal/types"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyFormat(t *testing.T) {
	ts := time.Date(2025, 6, 7, 8, 9, 10, 999, time.UTC)
	assert.Equal(t, "uploads/location_L1/20250607_080910.jpg", Key("L1", ts))
}

func TestKeyUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	ts := time.Date(2025, 6, 7, 1, 0, 0, 0, loc)
	assert.Equal(t, "uploads/location_L1/20250606_230000.jpg", Key("L1", ts))
}

func TestKeySameSecondCollides(t *testing.T) {
	a := time.Date(2025, 1, 1, 0, 0, 0, 100, time.UTC)
	b := time.Date(2025, 1, 1, 0, 0, 0, 900_000_000, time.UTC)
	assert.Equal(t, Key("L1", a), Key("L1", b))
	assert.NotEqual(t, Key("L1", a), Key("L2", a))
}

func TestLocalArchiver(t *testing.T) {
	dir := t.TempDir()
	a := NewLocalArchiver(dir)
	a.SetNowFn(func() time.Time { return time.Date(2025, 6, 7, 8, 9, 10, 0, time.UTC) })

	key, err := a.Archive(context.Background(), "L1", []byte("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "uploads/location_L1/20250607_080910.jpg", key)

	b, err := os.ReadFile(filepath.Join(dir, "uploads", "location_L1", "20250607_080910.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(b))
}

func TestLocalArchiverFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "uploads")
	require.NoError(t, os.WriteFile(blocker, []byte("not a dir"), 0o644))

	_, err := NewLocalArchiver(dir).Archive(context.Background(), "L1", []byte("x"))
	assert.ErrorIs(t, err, types.ErrArchive)
}

func TestLocalArchiverStaysUnderBaseDir(t *testing.T) {
	root := t.TempDir()
	base := filepath.Join(root, "archive")
	a := NewLocalArchiver(base)
	a.SetNowFn(func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) })

	_, err := a.Archive(context.Background(), "x/../../../escaped", []byte("x"))
	assert.ErrorIs(t, err, types.ErrArchive)

	_, statErr := os.Stat(filepath.Join(root, "escaped"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(root, "escaped", "20250101_000000.jpg"))
	assert.True(t, os.IsNotExist(statErr))
}
