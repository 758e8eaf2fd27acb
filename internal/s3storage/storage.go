package s3storage

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/gramvault/gramvault/internal/config"
)

// Storage wraps MinIO/S3 interactions for finished archives in the
// queue-driven deployment.
type Storage struct {
	client *minio.Client
	bucket string
	region string
}

// New creates a MinIO client from the Config.
func New(cfg *config.Config) (*Storage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{
		client: client,
		bucket: cfg.ArchiveBucket,
		region: cfg.S3Region,
	}, nil
}

// EnsureBucket makes sure the archive bucket exists before use.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// UploadArchive uploads the finished ZIP from disk into the bucket.
func (s *Storage) UploadArchive(ctx context.Context, objectKey, path string) error {
	opts := minio.PutObjectOptions{ContentType: "application/zip"}
	if _, err := s.client.FPutObject(ctx, s.bucket, objectKey, path, opts); err != nil {
		return fmt.Errorf("upload archive object: %w", err)
	}
	return nil
}

// PresignArchiveURL returns a signed GET URL for the archive, valid for ttl.
func (s *Storage) PresignArchiveURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign archive object: %w", err)
	}
	return u.String(), nil
}

// RemoveArchive deletes the archive object from the bucket.
func (s *Storage) RemoveArchive(ctx context.Context, objectKey string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove archive object: %w", err)
	}
	return nil
}
