package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"bleemsworker/logger"
	"bleemsworker/pkg/errors"
)

// Store is the object storage collaborator. The worker hands it encoded CSV
// partitions and image payloads under deterministic keys; the store owns
// nothing about record shape.
type Store interface {
	// Put uploads one object
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// S3Store implements Store against an S3 bucket.
type S3Store struct {
	client *s3.Client
	bucket string
	log    *logger.Logger
}

// NewS3Store creates an S3 store using the default credential chain
// (environment variables in CI).
func NewS3Store(ctx context.Context, bucket, region string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.NewConfiguration("load AWS configuration", err)
	}

	return &S3Store{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		log:    logger.ForStorage(),
	}, nil
}

// Put uploads one object to the bucket.
func (s *S3Store) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return errors.NewStorage(key, "s3 upload failed", err)
	}

	s.log.Info().Str("key", key).Int("bytes", len(body)).Msg("Uploaded")
	return nil
}

// LocalStore implements Store on the local filesystem, mirroring the bucket
// key layout. Used for development runs and tests.
type LocalStore struct {
	root string
	log  *logger.Logger
}

// NewLocalStore creates a local store rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{
		root: dir,
		log:  logger.ForStorage(),
	}
}

// Put writes one object under the root directory.
func (s *LocalStore) Put(_ context.Context, key string, body []byte, _ string) error {
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewStorage(key, "create output directory", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return errors.NewStorage(key, "write output file", err)
	}

	s.log.Info().Str("path", path).Int("bytes", len(body)).Msg("Wrote")
	return nil
}
