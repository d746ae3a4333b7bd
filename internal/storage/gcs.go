package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/andresuchdata/gcs-media-sync/internal/objectkey"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gcs "google.golang.org/api/storage/v1"
)

// GCSConfig holds the bucket and service account used for Google Cloud Storage.
type GCSConfig struct {
	Bucket string
	// CredentialsJSON is a service account key. When empty, application
	// default credentials are used.
	CredentialsJSON string
}

// GCSClient implements ObjectStorage on the Cloud Storage JSON API.
type GCSClient struct {
	srv    *gcs.Service
	bucket string
}

func NewGCSClient(ctx context.Context, cfg GCSConfig) (*GCSClient, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket must be provided")
	}

	var opts []option.ClientOption
	if cfg.CredentialsJSON != "" {
		jwt, err := google.JWTConfigFromJSON([]byte(cfg.CredentialsJSON), gcs.DevstorageReadWriteScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account json: %w", err)
		}
		opts = append(opts, option.WithHTTPClient(jwt.Client(ctx)))
	} else {
		opts = append(opts, option.WithScopes(gcs.DevstorageReadWriteScope))
	}

	srv, err := gcs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create storage client: %w", err)
	}

	return &GCSClient{srv: srv, bucket: cfg.Bucket}, nil
}

func (c *GCSClient) PutObject(ctx context.Context, key string, data []byte, opts PutOptions) error {
	obj := &gcs.Object{Name: key, ContentType: opts.ContentType}
	call := c.srv.Objects.Insert(c.bucket, obj).
		Media(bytes.NewReader(data)).
		Context(ctx)
	if opts.PublicRead {
		call = call.PredefinedAcl("publicRead")
	}
	_, err := call.Do()
	return storeErr("put", key, err)
}

func (c *GCSClient) ObjectExists(ctx context.Context, key string) (bool, error) {
	_, err := c.srv.Objects.Get(c.bucket, key).Fields("name").Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			return false, nil
		}
		return false, storeErr("stat", key, err)
	}
	return true, nil
}

func (c *GCSClient) DeleteObject(ctx context.Context, key string) error {
	err := c.srv.Objects.Delete(c.bucket, key).Context(ctx).Do()
	return storeErr("delete", key, err)
}

func (c *GCSClient) PublicURL(key string) string {
	return objectkey.PublicURL(GCSBaseURL, c.bucket, key)
}

// Close drops the service handle; the HTTP transport has nothing to release.
func (c *GCSClient) Close() error {
	c.srv = nil
	return nil
}

var _ ObjectStorage = (*GCSClient)(nil)
