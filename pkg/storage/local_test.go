package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_PutInPlace(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	p := filepath.Join(s.WorkDir(), "job-1.mp3")
	require.NoError(t, os.WriteFile(p, []byte("audio"), 0o644))

	ref, err := s.Put(ctx, "job-1", p)
	require.NoError(t, err)
	assert.Equal(t, "job-1.mp3", ref)

	obj, err := s.Open(ctx, ref)
	require.NoError(t, err)
	defer obj.Close()
	data, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, "audio", string(data))
	assert.Equal(t, int64(5), obj.Size)
}

func TestLocalStorage_PutMovesForeignFile(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "job-2.mp4")
	require.NoError(t, os.WriteFile(src, []byte("video"), 0o644))

	ref, err := s.Put(ctx, "job-2", src)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(s.WorkDir(), ref))
	assert.NoFileExists(t, src)
}

func TestLocalStorage_PutMissingFile(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Put(context.Background(), "job", filepath.Join(s.WorkDir(), "nope.mp3"))
	assert.Error(t, err)
}

func TestLocalStorage_OpenMissing(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Open(context.Background(), "nope.mp3")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalStorage_RemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	p := filepath.Join(s.WorkDir(), "job.mp3")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))

	require.NoError(t, s.Remove(ctx, "job.mp3"))
	require.NoError(t, s.Remove(ctx, "job.mp3"))
	require.NoError(t, s.Remove(ctx, ""))
	assert.NoFileExists(t, p)
}

func TestLocalStorage_RefCannotEscapeBaseDir(t *testing.T) {
	ctx := context.Background()
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.mp3")
	require.NoError(t, os.WriteFile(secret, []byte("x"), 0o644))

	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Open(ctx, filepath.Join("..", filepath.Base(outside), "secret.mp3"))
	assert.ErrorIs(t, err, ErrObjectNotFound)
	require.NoError(t, s.Remove(ctx, secret))
	assert.FileExists(t, secret)
}

func TestLocalStorage_SweepOrphans(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	old := time.Now().Add(-time.Hour)
	for _, name := range []string{"orphan.mp3", "kept.mp3", "kept.f137.mp4.part", "fresh.mp4"} {
		p := filepath.Join(s.WorkDir(), name)
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
		if name != "fresh.mp4" {
			require.NoError(t, os.Chtimes(p, old, old))
		}
	}

	removed, err := s.SweepOrphans(ctx, time.Now().Add(-10*time.Minute), map[string]bool{"kept": true})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, filepath.Join(s.WorkDir(), "orphan.mp3"))
	assert.FileExists(t, filepath.Join(s.WorkDir(), "kept.mp3"))
	assert.FileExists(t, filepath.Join(s.WorkDir(), "kept.f137.mp4.part"))
	assert.FileExists(t, filepath.Join(s.WorkDir(), "fresh.mp4"))
}

func TestJobId(t *testing.T) {
	assert.Equal(t, "abc", jobId("abc.mp3"))
	assert.Equal(t, "abc", jobId("results/abc.f251.webm.part"))
	assert.Equal(t, "abc", jobId("abc"))
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "a.mp3", objectKey("", "a.mp3"))
	assert.Equal(t, "results/a.mp3", objectKey("results", "a.mp3"))
	assert.Equal(t, "results/", objectKey("results", ""))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "audio/mpeg", contentType("x/job.mp3"))
	assert.Equal(t, "video/mp4", contentType("job.mp4"))
}
