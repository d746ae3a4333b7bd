package storage

import (
	"context"
	"fmt"

	"github.com/andresuchdata/gcs-media-sync/internal/config"
	"github.com/andresuchdata/gcs-media-sync/internal/domain"
)

// GCSBaseURL is the public endpoint objects are served from.
const GCSBaseURL = "https://storage.googleapis.com"

// PutOptions controls how an object is written.
type PutOptions struct {
	PublicRead  bool
	ContentType string
}

// ObjectStorage captures the object store operations the sync engine needs.
type ObjectStorage interface {
	PutObject(ctx context.Context, key string, data []byte, opts PutOptions) error
	ObjectExists(ctx context.Context, key string) (bool, error)
	DeleteObject(ctx context.Context, key string) error
	PublicURL(key string) string
	Close() error
}

// Opener constructs a store client. The engine calls it once per batch and
// closes the result when the batch ends.
type Opener func(ctx context.Context) (ObjectStorage, error)

// NewOpener returns an Opener for the configured provider.
func NewOpener(cfg config.SyncConfig) (Opener, error) {
	switch cfg.Provider {
	case "gcs", "":
		return func(ctx context.Context) (ObjectStorage, error) {
			return NewGCSClient(ctx, GCSConfig{Bucket: cfg.Bucket, CredentialsJSON: cfg.CredentialsJSON})
		}, nil
	case "s3":
		return func(ctx context.Context) (ObjectStorage, error) {
			return NewS3Client(ctx, S3Config{
				Bucket:    cfg.Bucket,
				Region:    cfg.S3.Region,
				Endpoint:  cfg.S3.Endpoint,
				AccessKey: cfg.S3.AccessKey,
				SecretKey: cfg.S3.SecretKey,
			})
		}, nil
	case "sevalla", "minio":
		return func(ctx context.Context) (ObjectStorage, error) {
			return NewSevallaClient(SevallaConfig{
				Endpoint:  cfg.S3.Endpoint,
				AccessKey: cfg.S3.AccessKey,
				SecretKey: cfg.S3.SecretKey,
				Bucket:    cfg.Bucket,
				Region:    cfg.S3.Region,
				UseSSL:    cfg.S3.UseSSL,
			})
		}, nil
	default:
		return nil, domain.ConfigError("unknown storage provider %q", cfg.Provider)
	}
}

func storeErr(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &domain.StoreError{Op: op, Key: key, Err: fmt.Errorf("%s %s: %w", op, key, err)}
}
