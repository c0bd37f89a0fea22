package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"web-dlp/constant"
)

var ErrObjectNotFound = errors.New("stored object not found")

// Object is an opened artifact. The caller must close it.
type Object struct {
	io.ReadCloser
	Size    int64
	ModTime time.Time
}

// Store keeps finished job artifacts. A ref is whatever Put returned.
type Store interface {
	// WorkDir is where downloads are written before Put.
	WorkDir() string
	Put(ctx context.Context, jobID string, localPath string) (string, error)
	Open(ctx context.Context, ref string) (*Object, error)
	// Remove tolerates refs that no longer exist.
	Remove(ctx context.Context, ref string) error
	// SweepOrphans deletes artifacts and work files last modified before
	// olderThan unless they belong to a job id in live.
	SweepOrphans(ctx context.Context, olderThan time.Time, live map[string]bool) (int, error)
}

func contentType(name string) string {
	return constant.Format(strings.TrimPrefix(filepath.Ext(name), ".")).ContentType()
}

// jobId extracts the owning job id from a file or object name of the form
// <id>.<ext>[.part].
func jobId(name string) string {
	id, _, _ := strings.Cut(path.Base(filepath.ToSlash(name)), ".")
	return id
}
