package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds the S3-compatible endpoint settings. The store counts as
// configured only when endpoint, bucket, and both credentials are present.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Prefix    string
	UseSSL    bool
}

func (c MinioConfig) IsConfigured() bool {
	return c.Endpoint != "" && c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// MinioStore persists audio objects in any S3-compatible bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	if !cfg.IsConfigured() {
		return nil, &StoreError{Op: "init", Err: fmt.Errorf("object storage is not configured")}
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, &StoreError{Op: "init", Err: err}
	}

	exists, err := client.BucketExists(context.Background(), cfg.Bucket)
	if err != nil {
		return nil, &StoreError{Op: "init", Err: fmt.Errorf("check bucket: %w", err)}
	}
	if !exists {
		return nil, &StoreError{Op: "init", Err: fmt.Errorf("bucket %q does not exist", cfg.Bucket)}
	}

	return &MinioStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (s *MinioStore) IsConfigured() bool { return true }

func (s *MinioStore) Store(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	finalKey := s.applyPrefix(key)

	_, err := s.client.PutObject(ctx, s.bucket, finalKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", &StoreError{Op: "store", Err: err}
	}
	return finalKey, nil
}

func (s *MinioStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, &StoreError{Op: "fetch", Err: err}
	}
	defer func() { _ = obj.Close() }()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, &StoreError{Op: "fetch", Err: err}
	}
	return data, nil
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return &StoreError{Op: "delete", Err: err}
	}
	return nil
}

func (s *MinioStore) applyPrefix(key string) string {
	key = strings.TrimPrefix(key, "/")
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}
