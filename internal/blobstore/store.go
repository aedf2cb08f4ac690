// Package blobstore wraps an S3-compatible object store for photo bytes
// (§4.1). Buckets are created idempotently on startup; keys are always
// sanitized storage filenames, never user-controlled input.
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/photoflow-io/photoflow/internal/config"
)

// Bucket names for the two object-store buckets this system uses (§6).
const (
	BucketPhotos     = "photos"
	BucketThumbnails = "thumbnails"
)

// Store puts, gets, and deletes blobs in named buckets. The ingest path
// always calls Put with a full in-memory buffer (never a stream bound to
// the request handler) so uploads are safe to run on a worker pool
// independent of the request-reading goroutine (§4.1, §9 "Parallel-upload
// correctness").
type Store interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Delete(ctx context.Context, bucket, key string) error
}

// MinioStore is a Store backed by an S3-compatible MinIO (or any
// S3-compatible) endpoint. Grounded on storj-storj's minio-go dependency —
// the pack's only S3-compatible client — and on the
// other_examples upload worker pool's MinIOService, which this adapts into
// a named-bucket-scoped interface instead of a single-service façade.
type MinioStore struct {
	client *minio.Client
}

// NewMinioStore connects to cfg's endpoint and idempotently ensures both
// named buckets exist.
func NewMinioStore(ctx context.Context, cfg config.ObjectStore) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	s := &MinioStore{client: client}
	for _, bucket := range []string{cfg.PhotosBucket, cfg.ThumbnailBucket} {
		if err := s.ensureBucket(ctx, bucket); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ensureBucket creates bucket if it does not already exist, tolerating
// "already owned by you" races the same way the queue producer tolerates
// "group already exists" (§4.5, §7 tier 1).
func (s *MinioStore) ensureBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %q: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		exists, existsErr := s.client.BucketExists(ctx, bucket)
		if existsErr == nil && exists {
			return nil
		}
		return fmt.Errorf("creating bucket %q: %w", bucket, err)
	}
	return nil
}

// Put uploads data under key in bucket. Failures are retriable from the
// ingest pipeline's perspective (§4.1, §7 tier 1) — this method itself does
// not retry.
func (s *MinioStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("blobstore put %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Get retrieves the full byte contents of key in bucket, byte-for-byte
// (§6 "Object store").
func (s *MinioStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("blobstore get %s/%s: %w", bucket, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		var errResp minio.ErrorResponse
		if errors.As(err, &errResp) && errResp.Code == "NoSuchKey" {
			return nil, fmt.Errorf("blobstore get %s/%s: %w", bucket, key, ErrNotFound)
		}
		return nil, fmt.Errorf("blobstore get %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Delete removes key from bucket. Not called on ingest failure by design —
// an orphaned blob after a failed metadata commit is tolerated (§4.1, §9).
func (s *MinioStore) Delete(ctx context.Context, bucket, key string) error {
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("blobstore delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

// ErrNotFound is returned (wrapped) when a key does not exist.
var ErrNotFound = errors.New("object not found")

// Health checks object-store reachability by confirming the photos bucket
// is visible, mirroring dbx.Health's ping-and-report shape (§4.1, SPEC_FULL.md
// "a /healthz endpoint reporting DB, Redis, and object-store reachability").
func (s *MinioStore) Health(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, BucketPhotos)
	if err != nil {
		return fmt.Errorf("object store unreachable: %w", err)
	}
	if !exists {
		return fmt.Errorf("object store bucket %q missing", BucketPhotos)
	}
	return nil
}
