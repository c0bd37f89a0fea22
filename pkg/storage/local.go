package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

type LocalStorage struct {
	baseDir string
}

func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", baseDir, err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

func (s *LocalStorage) WorkDir() string {
	return s.baseDir
}

// Put keeps the file under the base directory and returns its name as ref.
func (s *LocalStorage) Put(ctx context.Context, jobID string, localPath string) (string, error) {
	ref := filepath.Base(localPath)
	target := s.path(ref)

	if filepath.Clean(localPath) != target {
		if err := os.Rename(localPath, target); err != nil {
			return "", fmt.Errorf("failed to move %s into storage: %w", localPath, err)
		}
	}
	if _, err := os.Stat(target); err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", target, err)
	}
	return ref, nil
}

func (s *LocalStorage) Open(ctx context.Context, ref string) (*Object, error) {
	f, err := os.Open(s.path(ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Object{ReadCloser: f, Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (s *LocalStorage) Remove(ctx context.Context, ref string) error {
	if ref == "" {
		return nil
	}
	err := os.Remove(s.path(ref))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStorage) SweepOrphans(ctx context.Context, olderThan time.Time, live map[string]bool) (int, error) {
	return sweepDir(s.baseDir, olderThan, live)
}

func (s *LocalStorage) path(ref string) string {
	return filepath.Join(s.baseDir, filepath.Base(ref))
}

func sweepDir(dir string, olderThan time.Time, live map[string]bool) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || live[jobId(entry.Name())] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(olderThan) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
