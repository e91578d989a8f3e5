package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore implements BlobStore against an S3-compatible object store.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to the object store and ensures the bucket exists.
func NewMinioStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}

	return &MinioStore{client: client, bucket: bucket}, nil
}

// Upload stores the blob under folder with a random key, keeping the original
// file extension so the provider can content-type it on direct fetches.
func (s *MinioStore) Upload(ctx context.Context, r io.Reader, size int64, folder, name, contentType string) (*UploadResult, error) {
	key := fmt.Sprintf("%s/%s%s", folder, uuid.NewString(), path.Ext(path.Base(name)))
	opts := minio.PutObjectOptions{ContentType: contentType}
	if opts.ContentType == "" {
		opts.ContentType = "application/octet-stream"
	}
	if _, err := s.client.PutObject(ctx, s.bucket, key, r, size, opts); err != nil {
		return nil, fmt.Errorf("upload %s: %w", key, err)
	}
	return &UploadResult{
		BlobID:  key,
		BlobURL: fmt.Sprintf("%s/%s/%s", s.client.EndpointURL(), s.bucket, key),
	}, nil
}

// Remove deletes the blob from the bucket.
func (s *MinioStore) Remove(ctx context.Context, blobID string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, blobID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", blobID, err)
	}
	return nil
}

// SignedURL presigns a GET for the blob. Image blobs are served with their
// stored content type; raw blobs get a download disposition carrying the
// display name so the browser keeps the original filename.
func (s *MinioStore) SignedURL(ctx context.Context, blobID, displayName string, kind ResourceKind, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultSignedURLTTL
	}
	reqParams := make(url.Values)
	if displayName != "" && kind != ResourceImage {
		reqParams.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", displayName))
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, blobID, ttl, reqParams)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", blobID, err)
	}
	return u.String(), nil
}
