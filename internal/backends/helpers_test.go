package backends

import (
	"context"
	"scootspot/internal/archive"
	"scootspot/internal/backends/memory"
	"scootspot/internal/detector"
	"scootspot/internal/types"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetenv(t *testing.T) {
	t.Setenv("SCOOTSPOT_TEST_KEY", "")
	assert.Equal(t, "def", getenv("SCOOTSPOT_TEST_KEY", "def"))
	t.Setenv("SCOOTSPOT_TEST_KEY", "set")
	assert.Equal(t, "set", getenv("SCOOTSPOT_TEST_KEY", "def"))
}

func TestParseBoolean(t *testing.T) {
	assert.True(t, parseBoolean("true"))
	assert.True(t, parseBoolean("1"))
	assert.False(t, parseBoolean("nope"))
	assert.False(t, parseBoolean(""))
}

func TestLocationBackendMemory(t *testing.T) {
	t.Setenv(StoreBackendEnvKey, BackendMemory)
	store, err := LocationBackendFromEnv(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &memory.LocationStore{}, store)
}

func TestLocationBackendInvalid(t *testing.T) {
	t.Setenv(StoreBackendEnvKey, "cassandra")
	_, err := LocationBackendFromEnv(context.Background())
	assert.ErrorIs(t, err, types.ErrInvalidBackend)
}

func TestArchiverFromEnv(t *testing.T) {
	ctx := context.Background()

	t.Setenv(ArchiveBackendEnvKey, ArchiveLocal)
	t.Setenv(ArchiveDirKey, t.TempDir())
	a, err := ArchiverFromEnv(ctx)
	require.NoError(t, err)
	assert.IsType(t, &archive.LocalArchiver{}, a)

	t.Setenv(ArchiveBackendEnvKey, ArchiveS3)
	t.Setenv(S3BucketKey, "")
	a, err = ArchiverFromEnv(ctx)
	require.NoError(t, err)
	assert.Nil(t, a)

	t.Setenv(ArchiveBackendEnvKey, "ftp")
	_, err = ArchiverFromEnv(ctx)
	assert.ErrorIs(t, err, types.ErrInvalidBackend)
}

func TestDetectorFromEnv(t *testing.T) {
	t.Setenv(DetectorURLKey, "")
	t.Setenv(DetectorLabelsExprKey, "")
	t.Setenv(DetectorMinConfidenceKey, "")
	t.Setenv(DetectorTimeoutKey, "")
	d, err := DetectorFromEnv()
	require.NoError(t, err)
	assert.Equal(t, detector.CounterCountsExpr, d.LabelsExpr())

	t.Setenv(DetectorMinConfidenceKey, "0.7")
	t.Setenv(DetectorTimeoutKey, "5s")
	d, err = DetectorFromEnv()
	require.NoError(t, err)
	assert.Equal(t, detector.DetectionsExpr(0.7), d.LabelsExpr())

	t.Setenv(DetectorLabelsExprKey, "labels")
	d, err = DetectorFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "labels", d.LabelsExpr())

	t.Setenv(DetectorMinConfidenceKey, "1.5")
	_, err = DetectorFromEnv()
	assert.Error(t, err)

	t.Setenv(DetectorMinConfidenceKey, "")
	t.Setenv(DetectorTimeoutKey, "soon")
	_, err = DetectorFromEnv()
	assert.Error(t, err)
}

func TestPublisherFromEnvDisabled(t *testing.T) {
	t.Setenv(TopicArnKey, "")
	p, arn, err := PublisherFromEnv(context.Background())
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Empty(t, arn)
}
