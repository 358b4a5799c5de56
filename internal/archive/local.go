package archive

import (
	"context"
	"os"
	"path/filepath"
	"scootspot/internal/types"
	"time"
)

// LocalArchiver implements ports.Archiver on the local filesystem.
// Useful for development and testing.
type LocalArchiver struct {
	BaseDir string
	now     func() time.Time
}

func NewLocalArchiver(baseDir string) *LocalArchiver {
	return &LocalArchiver{BaseDir: baseDir, now: time.Now}
}

// SetNowFn overrides the clock used to derive keys.
func (a *LocalArchiver) SetNowFn(f func() time.Time) { a.now = f }

func (a *LocalArchiver) Archive(_ context.Context, locationID string, image []byte) (string, error) {
	key := Key(locationID, a.now())
	path, err := a.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", types.Err(types.ErrArchive, err, "create directory for %s", key)
	}
	if err := os.WriteFile(path, image, 0o644); err != nil {
		return "", types.Err(types.ErrArchive, err, "write %s", key)
	}
	return key, nil
}

// resolve maps key to a path under BaseDir, refusing keys that would land outside it.
func (a *LocalArchiver) resolve(key string) (string, error) {
	base, err := filepath.Abs(a.BaseDir)
	if err != nil {
		return "", types.Err(types.ErrArchive, err, "resolve %s", a.BaseDir)
	}
	path := filepath.Join(base, filepath.FromSlash(key))
	rel, err := filepath.Rel(base, path)
	if err != nil || !filepath.IsLocal(rel) {
		return "", types.Err(types.ErrArchive, nil, "key %q escapes the archive directory", key)
	}
	return path, nil
}
