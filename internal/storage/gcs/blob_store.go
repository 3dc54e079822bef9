// Package gcs provides a BlobStore backed by Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"maps"
	"path"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/volcanic-ash-alert/internal/advisory"
)

// Advisory assets never change once issued.
const cacheControl = "public, max-age=31536000, immutable"

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
}

// BlobStore writes artifacts to a configured GCS bucket.
type BlobStore struct {
	client *storage.Client
	bucket string
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// PutObject uploads an advisory asset and returns its gs:// URI. The object is
// served inline under its advisory file name and carries obj.Metadata.
func (s *BlobStore) PutObject(ctx context.Context, obj advisory.Object) (string, error) {
	if strings.TrimSpace(obj.Path) == "" {
		return "", fmt.Errorf("path is required")
	}
	if obj.Body == nil {
		return "", fmt.Errorf("body is required")
	}
	key := strings.TrimPrefix(obj.Path, "/")
	writer := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	writer.ObjectAttrs = objectAttrs(key, obj)

	if _, err := io.Copy(writer, obj.Body); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy %s: %w (close writer: %v)", key, err, closeErr)
		}
		return "", fmt.Errorf("copy %s: %w", key, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer for %s: %w", key, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, key), nil
}

func objectAttrs(key string, obj advisory.Object) storage.ObjectAttrs {
	attrs := storage.ObjectAttrs{
		Name:               key,
		ContentType:        obj.ContentType,
		ContentDisposition: fmt.Sprintf("inline; filename=%q", path.Base(key)),
		CacheControl:       cacheControl,
	}
	if len(obj.Metadata) > 0 {
		attrs.Metadata = maps.Clone(obj.Metadata)
	}
	return attrs
}
