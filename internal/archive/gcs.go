package archive

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// ObjectStore provides the cloud storage operations the archive needs.
// This interface enables mocking and testing of storage functionality.
type ObjectStore interface {
	// Put writes data to bucket/object, replacing any existing object.
	Put(ctx context.Context, bucket, object, contentType string, data []byte) error

	// Get reads the bytes of bucket/object.
	Get(ctx context.Context, bucket, object string) ([]byte, error)
}

// GCSObjectStore is the ObjectStore backed by Google Cloud Storage. It
// assumes Application Default Credentials are configured.
type GCSObjectStore struct {
	client *storage.Client
}

// NewGCSObjectStore creates a storage client.
func NewGCSObjectStore(ctx context.Context) (*GCSObjectStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSObjectStore: create storage client: %w", err)
	}
	return &GCSObjectStore{client: client}, nil
}

// Close closes the storage client.
func (s *GCSObjectStore) Close() error {
	return s.client.Close()
}

// Put implements ObjectStore.
func (s *GCSObjectStore) Put(ctx context.Context, bucket, object, contentType string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write to GCS writer: %w", err)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}

// Get implements ObjectStore.
func (s *GCSObjectStore) Get(ctx context.Context, bucket, object string) ([]byte, error) {
	r, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open GCS object reader %s/%s: %w", bucket, object, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read GCS object: %w", err)
	}
	return data, nil
}

// ParseGCSURI splits gs://bucket/path/to/object into bucket and object.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// FilenameFromGCSURI returns the last path element of a GCS URI.
// e.g., "gs://bucket/closings/2024/03/2024-03-05.json" → "2024-03-05.json"
func FilenameFromGCSURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}

var _ ObjectStore = (*GCSObjectStore)(nil)
