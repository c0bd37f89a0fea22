package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
)

// MinIOStorage uploads artifacts to a bucket and serves them from there.
// Downloads land in a local work directory first.
type MinIOStorage struct {
	client  *minio.Client
	bucket  string
	prefix  string
	workDir string
}

func NewMinIOStorage(ctx context.Context, client *minio.Client, bucket, prefix, workDir string) (*MinIOStorage, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work directory %s: %w", workDir, err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}

	return &MinIOStorage{
		client:  client,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		workDir: workDir,
	}, nil
}

func (s *MinIOStorage) WorkDir() string {
	return s.workDir
}

func (s *MinIOStorage) Put(ctx context.Context, jobID string, localPath string) (string, error) {
	objectName := objectKey(s.prefix, filepath.Base(localPath))

	_, err := s.client.FPutObject(ctx, s.bucket, objectName, localPath, minio.PutObjectOptions{
		ContentType: contentType(localPath),
		UserMetadata: map[string]string{
			"job-id": jobID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", objectName, err)
	}

	if err := os.Remove(localPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return objectName, fmt.Errorf("uploaded %s but failed to remove local copy: %w", objectName, err)
	}
	return objectName, nil
}

func (s *MinIOStorage) Open(ctx context.Context, ref string) (*Object, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, ref, minio.GetObjectOptions{})
	if err != nil {
		return nil, translate(err)
	}

	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, translate(err)
	}
	return &Object{ReadCloser: obj, Size: info.Size, ModTime: info.LastModified}, nil
}

func (s *MinIOStorage) Remove(ctx context.Context, ref string) error {
	if ref == "" {
		return nil
	}
	err := s.client.RemoveObject(ctx, s.bucket, ref, minio.RemoveObjectOptions{})
	if err != nil && !errors.Is(translate(err), ErrObjectNotFound) {
		return err
	}
	return nil
}

// SweepOrphans sweeps both the bucket prefix and leftovers in the work directory.
func (s *MinIOStorage) SweepOrphans(ctx context.Context, olderThan time.Time, live map[string]bool) (int, error) {
	removed, err := sweepDir(s.workDir, olderThan, live)

	var errs []error
	if err != nil {
		errs = append(errs, err)
	}

	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    objectKey(s.prefix, ""),
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			errs = append(errs, obj.Err)
			break
		}
		if live[jobId(obj.Key)] || !obj.LastModified.Before(olderThan) {
			continue
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func objectKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	if name == "" {
		return prefix + "/"
	}
	return path.Join(prefix, name)
}

func translate(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return errors.Join(ErrObjectNotFound, err)
	}
	return err
}
