package storage

import (
	"context"
	"io"
	"log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"glb-optimizer/internal/config"
)

// ObjectStore stores optimized GLB files.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

// NewMinioClient initializes a MinIO client and ensures the bucket exists.
func NewMinioClient(cfg *config.Config) (*minio.Client, error) {
	minioClient, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not create minio client")
	}
	// Ensure the bucket exists (create if not present)
	ctx := context.Background()
	exists, errBucket := minioClient.BucketExists(ctx, cfg.MinioBucket)
	if errBucket != nil {
		return nil, errors.Wrapf(errBucket, "could not check bucket %s", cfg.MinioBucket)
	}
	if !exists {
		err = minioClient.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: ""})
		if err != nil {
			return nil, errors.Wrapf(err, "could not create bucket %s", cfg.MinioBucket)
		}
		log.Printf("Created bucket %s\n", cfg.MinioBucket)
	}
	return minioClient, nil
}

// MinioStore is an ObjectStore backed by a single MinIO bucket.
type MinioStore struct {
	Client *minio.Client
	Bucket string
}

// NewMinioStore creates a MinioStore for bucket.
func NewMinioStore(client *minio.Client, bucket string) *MinioStore {
	return &MinioStore{Client: client, Bucket: bucket}
}

// Put uploads r under key.
func (s *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.Client.PutObject(ctx, s.Bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return errors.Wrap(err, "failed to upload to MinIO")
	}
	return nil
}

// Get opens the object stored under key.
func (s *MinioStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.Client.GetObject(ctx, s.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "unable to retrieve file")
	}
	// GetObject is lazy; Stat surfaces a missing key before the caller starts streaming.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, errors.Wrap(err, "unable to retrieve file")
	}
	return obj, nil
}

// Remove deletes the object stored under key.
func (s *MinioStore) Remove(ctx context.Context, key string) error {
	if err := s.Client.RemoveObject(ctx, s.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrap(err, "failed to remove from MinIO")
	}
	return nil
}
