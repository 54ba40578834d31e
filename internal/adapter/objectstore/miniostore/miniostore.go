// Package miniostore uploads result images to S3-compatible storage so the
// upload_images markdown rewrite can point at public URLs instead of paths
// on the shared volume.
package miniostore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// objectUploader is the slice of the minio client the store uses.
type objectUploader interface {
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

// Store implements domain.ObjectStore on top of a MinIO/S3 bucket.
type Store struct {
	client    objectUploader
	bucket    string
	publicURL string
}

// Options configures the connection.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the externally reachable base for returned links. When
	// empty, links are built from the endpoint.
	PublicURL string
}

// New connects to the object store and ensures the bucket exists.
func New(ctx context.Context, opts Options) (*Store, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("op=miniostore.New: %w", err)
	}
	publicURL := opts.PublicURL
	if publicURL == "" {
		scheme := "http"
		if opts.UseSSL {
			scheme = "https"
		}
		publicURL = scheme + "://" + opts.Endpoint
	}
	s := &Store{client: client, bucket: opts.Bucket, publicURL: strings.TrimRight(publicURL, "/")}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("op=miniostore.ensureBucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		// A concurrent worker may have created it first.
		if exists, checkErr := s.client.BucketExists(ctx, s.bucket); checkErr == nil && exists {
			return nil
		}
		return fmt.Errorf("op=miniostore.ensureBucket: %w", err)
	}
	return nil
}

// UploadFile pushes localPath to the bucket under objectName and returns the
// public URL. Transient failures are retried with exponential backoff.
func (s *Store) UploadFile(ctx context.Context, localPath, objectName string) (string, error) {
	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(localPath); err == nil {
		contentType = mt.String()
	}

	op := func() error {
		_, err := s.client.FPutObject(ctx, s.bucket, objectName, localPath, minio.PutObjectOptions{
			ContentType: contentType,
		})
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return "", fmt.Errorf("op=miniostore.UploadFile: %s: %w", objectName, err)
	}
	return s.objectURL(objectName), nil
}

func (s *Store) objectURL(objectName string) string {
	parts := strings.Split(objectName, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, strings.Join(parts, "/"))
}
