package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/klauspost/compress/gzip"

	"mailroom/internal/types"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockS3API struct {
	getObjectFunc  func(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	headBucketFunc func(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

func (m *mockS3API) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return m.getObjectFunc(ctx, params, optFns...)
}

func (m *mockS3API) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return m.headBucketFunc(ctx, params, optFns...)
}

func objectOutput(body []byte) *s3.GetObjectOutput {
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}
}

func gzipped(t *testing.T, body []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(body); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

func TestLoad_PlainBody(t *testing.T) {
	var capturedKey, capturedBucket string
	api := &mockS3API{
		getObjectFunc: func(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
			capturedBucket = *params.Bucket
			capturedKey = *params.Key
			return objectOutput([]byte("<p>Hello {{name}}</p>")), nil
		},
	}
	loader := NewS3TemplateLoaderWithAPI(api, S3TemplateLoaderConfig{Bucket: "mail-templates"})

	body, err := loader.Load(context.Background(), "welcome")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "<p>Hello {{name}}</p>" {
		t.Errorf("body = %q", body)
	}
	if capturedBucket != "mail-templates" {
		t.Errorf("bucket = %q", capturedBucket)
	}
	if capturedKey != "templates/emails/welcome" {
		t.Errorf("key = %q, want templates/emails/welcome", capturedKey)
	}
}

func TestLoad_GzipBodyDecompressed(t *testing.T) {
	plain := []byte("<h1>Compressed template {{code}}</h1>")
	api := &mockS3API{
		getObjectFunc: func(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
			return objectOutput(gzipped(t, plain)), nil
		},
	}
	loader := NewS3TemplateLoaderWithAPI(api, S3TemplateLoaderConfig{Bucket: "b"})

	body, err := loader.Load(context.Background(), "compressed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(body, plain) {
		t.Errorf("body = %q, want %q", body, plain)
	}
}

func TestLoad_MissingTemplate(t *testing.T) {
	api := &mockS3API{
		getObjectFunc: func(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
			return nil, &s3types.NoSuchKey{}
		},
	}
	loader := NewS3TemplateLoaderWithAPI(api, S3TemplateLoaderConfig{Bucket: "b"})

	_, err := loader.Load(context.Background(), "ghost")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeTemplateNotFound {
		t.Errorf("code = %q, want %q", appErr.Code, types.ErrCodeTemplateNotFound)
	}
}

func TestLoad_TransportFailure(t *testing.T) {
	api := &mockS3API{
		getObjectFunc: func(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
			return nil, errors.New("connection reset")
		},
	}
	loader := NewS3TemplateLoaderWithAPI(api, S3TemplateLoaderConfig{Bucket: "b"})

	_, err := loader.Load(context.Background(), "welcome")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if code := types.CodeOf(err); code != types.ErrCodeUpstreamUnavailable {
		t.Errorf("code = %q, want %q", code, types.ErrCodeUpstreamUnavailable)
	}
}

func TestLoad_CorruptGzip(t *testing.T) {
	// Gzip magic bytes followed by garbage.
	api := &mockS3API{
		getObjectFunc: func(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
			return objectOutput([]byte{0x1f, 0x8b, 0xff, 0xff}), nil
		},
	}
	loader := NewS3TemplateLoaderWithAPI(api, S3TemplateLoaderConfig{Bucket: "b"})

	_, err := loader.Load(context.Background(), "broken")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if code := types.CodeOf(err); code != types.ErrCodeUpstreamUnavailable {
		t.Errorf("code = %q, want %q", code, types.ErrCodeUpstreamUnavailable)
	}
}

// ---------------------------------------------------------------------------
// Ping
// ---------------------------------------------------------------------------

func TestPing(t *testing.T) {
	api := &mockS3API{
		headBucketFunc: func(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
			if *params.Bucket != "mail-templates" {
				t.Errorf("bucket = %q", *params.Bucket)
			}
			return &s3.HeadBucketOutput{}, nil
		},
	}
	loader := NewS3TemplateLoaderWithAPI(api, S3TemplateLoaderConfig{Bucket: "mail-templates"})

	if err := loader.Ping(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPing_Failure(t *testing.T) {
	api := &mockS3API{
		headBucketFunc: func(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
			return nil, errors.New("forbidden")
		},
	}
	loader := NewS3TemplateLoaderWithAPI(api, S3TemplateLoaderConfig{Bucket: "b"})

	if err := loader.Ping(context.Background()); err == nil {
		t.Error("expected error, got nil")
	}
}
