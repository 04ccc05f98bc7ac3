package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// =============================================================================
// R2Store Implementation
// =============================================================================

// R2Store implements ContentStore using Cloudflare R2. R2 is S3-compatible,
// so we use the AWS SDK v2 with custom endpoint configuration. Category
// directories become key prefixes.
type R2Store struct {
	client     *s3.Client
	bucketName string
	logger     *slog.Logger
}

// NewR2Store creates an R2Store. The endpoint URL is constructed from the
// account ID.
func NewR2Store(cfg R2Config, logger *slog.Logger) (*R2Store, error) {
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	// Format: https://{account_id}.r2.cloudflarestorage.com
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)

	creds := credentials.NewStaticCredentialsProvider(
		cfg.AccessKeyID,
		cfg.SecretAccessKey,
		"", // session token not needed for R2
	)

	customResolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:           endpoint,
				SigningRegion: region,
			}, nil
		},
	)

	awsCfg := aws.Config{
		Region:                      region,
		Credentials:                 creds,
		EndpointResolverWithOptions: customResolver,
	}

	client := s3.NewFromConfig(awsCfg)

	logger.Info("initialized R2 content store",
		"bucket", cfg.BucketName,
		"endpoint", endpoint,
	)

	return &R2Store{
		client:     client,
		bucketName: cfg.BucketName,
		logger:     logger,
	}, nil
}

// =============================================================================
// Interface Implementation
// =============================================================================

// EnsureRoot is a no-op for object storage; key prefixes need no creation.
func (s *R2Store) EnsureRoot(ctx context.Context, category string) error {
	if _, err := s.key(category, ""); err != nil {
		return &StorageError{Op: "EnsureRoot", Key: category, Err: err}
	}
	return nil
}

// Write stores the encoded bytes and returns the size of the stored object
// as reported by the bucket.
func (s *R2Store) Write(ctx context.Context, category, filename string, data []byte) (int64, error) {
	key, err := s.key(category, filename)
	if err != nil {
		return 0, &StorageError{Op: "Write", Key: DisplayPath(category, filename), Err: err}
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentTypeForFilename(filename)),
	})
	if err != nil {
		return 0, &StorageError{Op: "Write", Key: key, Err: s.wrapS3Error(err)}
	}

	// Measure from the stored object rather than trusting the buffer.
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		_, _ = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucketName),
			Key:    aws.String(key),
		})
		return 0, &StorageError{Op: "Write", Key: key, Err: s.wrapS3Error(err)}
	}

	size := aws.ToInt64(head.ContentLength)

	s.logger.Debug("stored object in R2", "key", key, "size", size)

	return size, nil
}

// Delete removes the object. S3 deletes are idempotent, so a missing object
// is not an error.
func (s *R2Store) Delete(ctx context.Context, category, filename string) error {
	key, err := s.key(category, filename)
	if err != nil {
		return &StorageError{Op: "Delete", Key: DisplayPath(category, filename), Err: err}
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return &StorageError{Op: "Delete", Key: key, Err: s.wrapS3Error(err)}
	}

	s.logger.Debug("deleted object from R2", "key", key)

	return nil
}

// Exists checks object presence with HeadObject.
func (s *R2Store) Exists(ctx context.Context, category, filename string) (bool, error) {
	key, err := s.key(category, filename)
	if err != nil {
		return false, &StorageError{Op: "Exists", Key: DisplayPath(category, filename), Err: err}
	}

	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		wrapped := s.wrapS3Error(err)
		if errors.Is(wrapped, ErrNotFound) {
			return false, nil
		}
		return false, &StorageError{Op: "Exists", Key: key, Err: wrapped}
	}
	return true, nil
}

// =============================================================================
// Internal Helpers
// =============================================================================

// key joins category and filename into an object key, rejecting traversal
// attempts and separators inside the filename.
func (s *R2Store) key(category, filename string) (string, error) {
	if category == "" || strings.Contains(category, "..") {
		return "", ErrInvalidKey
	}
	if strings.ContainsAny(filename, "/\\") || strings.Contains(filename, "..") {
		return "", ErrInvalidKey
	}
	if filename == "" {
		return category, nil
	}
	return category + "/" + filename, nil
}

// wrapS3Error converts S3 SDK errors to storage sentinels.
func (s *R2Store) wrapS3Error(err error) error {
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return ErrNotFound
	}

	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return ErrNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return ErrNotFound
		case "AccessDenied", "Forbidden":
			return ErrAccessDenied
		}

		if httpErr, ok := err.(interface{ HTTPStatusCode() int }); ok {
			switch httpErr.HTTPStatusCode() {
			case http.StatusNotFound:
				return ErrNotFound
			case http.StatusForbidden:
				return ErrAccessDenied
			}
		}
	}

	return fmt.Errorf("R2 operation failed: %w", err)
}
