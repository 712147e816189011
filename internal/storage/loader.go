// Package storage provides the template loading capability backed by S3.
// Email templates live under the templates/emails/ prefix; objects may be
// stored gzip-compressed at rest and are decompressed transparently on load.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/klauspost/compress/gzip"

	"mailroom/internal/types"
)

// templateKeyPrefix is prepended to every template key before the object
// lookup. Producers reference templates by bare key (e.g. "welcome").
const templateKeyPrefix = "templates/emails/"

// TemplateLoader is the capability contract for fetching raw template bodies.
type TemplateLoader interface {
	// Load returns the template body for the given bare key, or a
	// template_not_found error when no such template exists.
	Load(ctx context.Context, key string) ([]byte, error)
}

// S3API defines the subset of the S3 client used by S3TemplateLoader.
// Extracted for testability — tests can provide a mock implementation.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3TemplateLoaderConfig holds the configuration for creating an S3TemplateLoader.
type S3TemplateLoaderConfig struct {
	// Bucket is the S3 bucket holding template objects. Required.
	Bucket string
	// Logger for load operations.
	Logger *slog.Logger
}

// S3TemplateLoader implements TemplateLoader against an S3 bucket.
type S3TemplateLoader struct {
	api    S3API
	bucket string
	logger *slog.Logger
}

// NewS3TemplateLoader creates an S3TemplateLoader from an AWS config.
func NewS3TemplateLoader(awsCfg aws.Config, cfg S3TemplateLoaderConfig) *S3TemplateLoader {
	return newS3TemplateLoader(s3.NewFromConfig(awsCfg), cfg)
}

// NewS3TemplateLoaderWithAPI creates an S3TemplateLoader with a pre-configured
// S3API. Useful for testing with a mock interface.
func NewS3TemplateLoaderWithAPI(api S3API, cfg S3TemplateLoaderConfig) *S3TemplateLoader {
	return newS3TemplateLoader(api, cfg)
}

func newS3TemplateLoader(api S3API, cfg S3TemplateLoaderConfig) *S3TemplateLoader {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &S3TemplateLoader{
		api:    api,
		bucket: cfg.Bucket,
		logger: logger,
	}
}

// Load fetches the object at templates/emails/{key} and returns its body.
// Gzip-compressed objects are detected by their magic bytes and decompressed.
//
// Error mapping:
//   - NoSuchKey → template_not_found
//   - other     → upstream_unavailable
func (l *S3TemplateLoader) Load(ctx context.Context, key string) ([]byte, error) {
	objectKey := templateKeyPrefix + key

	out, err := l.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, types.NewAppError(
				types.ErrCodeTemplateNotFound,
				fmt.Sprintf("template '%s' does not exist", key),
				err,
			)
		}
		return nil, types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("failed to load template '%s' from s3://%s/%s", key, l.bucket, objectKey),
			err,
		)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("failed to read template '%s' body", key),
			err,
		)
	}

	if isGzip(body) {
		body, err = gunzip(body)
		if err != nil {
			return nil, types.NewAppError(
				types.ErrCodeUpstreamUnavailable,
				fmt.Sprintf("failed to decompress template '%s'", key),
				err,
			)
		}
	}

	l.logger.InfoContext(ctx, "template loaded",
		"key", key,
		"bytes", len(body),
	)

	return body, nil
}

// Ping verifies the template bucket is reachable. Used by the health endpoint.
func (l *S3TemplateLoader) Ping(ctx context.Context) error {
	_, err := l.api.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(l.bucket),
	})
	if err != nil {
		return fmt.Errorf("template bucket %s unreachable: %w", l.bucket, err)
	}
	return nil
}

// isGzip reports whether data starts with the gzip magic bytes.
func isGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}

// gunzip decompresses a gzip-compressed byte slice.
func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Compile-time assertion that S3TemplateLoader satisfies TemplateLoader.
var _ TemplateLoader = (*S3TemplateLoader)(nil)
