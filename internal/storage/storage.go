// Package storage provides object storage for user avatars behind a single
// interface with Google Cloud Storage and MinIO backends.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/accounthub/apiserver/config"
)

// ObjectStore defines the object operations the avatar service needs.
type ObjectStore interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// NewFromConfig builds the configured backend. An empty backend disables
// avatar storage: the returned store is nil and callers must skip wiring the
// avatar surface.
func NewFromConfig(ctx context.Context, cfg config.StorageConfig) (ObjectStore, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "gcs":
		return NewGCSStore(ctx, cfg.GCS)
	case "minio":
		return NewMinioStore(cfg.Minio)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
