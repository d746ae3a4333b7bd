package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/andresuchdata/gcs-media-sync/internal/objectkey"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// SevallaConfig encapsulates the connection info for Sevalla (S3-compatible) storage.
type SevallaConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// SevallaClient implements ObjectStorage for Sevalla / S3-compatible services.
type SevallaClient struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

func NewSevallaClient(cfg SevallaConfig) (*SevallaClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("sevalla endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("sevalla credentials must be provided")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("sevalla bucket must be provided")
	}

	useSSL := cfg.UseSSL
	host := strings.TrimPrefix(cfg.Endpoint, "//")
	switch {
	case strings.HasPrefix(host, "https://"):
		host, useSSL = strings.TrimPrefix(host, "https://"), true
	case strings.HasPrefix(host, "http://"):
		host, useSSL = strings.TrimPrefix(host, "http://"), false
	}
	host = strings.TrimSuffix(host, "/")

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(host, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       useSSL,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("sevalla client: %w", err)
	}

	scheme := "https"
	if !useSSL {
		scheme = "http"
	}

	return &SevallaClient{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: scheme + "://" + host,
	}, nil
}

func (c *SevallaClient) PutObject(ctx context.Context, key string, data []byte, opts PutOptions) error {
	putOpts := minio.PutObjectOptions{ContentType: opts.ContentType}
	if opts.PublicRead {
		putOpts.UserMetadata = map[string]string{"x-amz-acl": "public-read"}
	}
	_, err := c.client.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)), putOpts)
	return storeErr("put", key, err)
}

func (c *SevallaClient) ObjectExists(ctx context.Context, key string) (bool, error) {
	_, err := c.client.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, storeErr("stat", key, err)
	}
	return true, nil
}

func (c *SevallaClient) DeleteObject(ctx context.Context, key string) error {
	err := c.client.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{})
	return storeErr("delete", key, err)
}

func (c *SevallaClient) PublicURL(key string) string {
	return objectkey.PublicURL(c.baseURL, c.bucket, key)
}

func (c *SevallaClient) Close() error {
	return nil
}

var _ ObjectStorage = (*SevallaClient)(nil)
