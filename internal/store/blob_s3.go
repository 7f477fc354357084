package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Blob stores blobs in one S3-compatible bucket (AWS S3 or MinIO).
type S3Blob struct {
	client *s3.Client
	bucket string
}

// S3Config holds explicit construction parameters, mostly for tests; prod
// deployments configure via environment.
type S3Config struct {
	Region    string
	Bucket    string
	Endpoint  string // optional, enables MinIO-style custom endpoints
	PathStyle bool
}

// Environment variables:
//
//	PAVSSV_BLOB_S3_BUCKET=<bucket> (required)
//	PAVSSV_BLOB_S3_REGION=<region> (default us-east-1)
//	PAVSSV_BLOB_S3_ENDPOINT=<url> (optional, for MinIO)
//	PAVSSV_BLOB_S3_PATH_STYLE=true|false (default false)
//	AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY (default credentials chain)
func OpenS3BlobFromEnv(ctx context.Context) (*S3Blob, error) {
	bucket := os.Getenv("PAVSSV_BLOB_S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("PAVSSV_BLOB_S3_BUCKET required for s3 driver")
	}
	return NewS3Blob(ctx, S3Config{
		Bucket:    bucket,
		Region:    os.Getenv("PAVSSV_BLOB_S3_REGION"),
		Endpoint:  os.Getenv("PAVSSV_BLOB_S3_ENDPOINT"),
		PathStyle: strings.EqualFold(os.Getenv("PAVSSV_BLOB_S3_PATH_STYLE"), "true"),
	})
}

func NewS3Blob(ctx context.Context, cfg S3Config) (*S3Blob, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3Blob{client: client, bucket: cfg.Bucket}, nil
}

func (s *S3Blob) Driver() BlobDriver { return BlobS3 }

func (s *S3Blob) Put(ctx context.Context, key string, data []byte, contentType string) error {
	input := &s3.PutObjectInput{Bucket: &s.bucket, Key: &key, Body: bytes.NewReader(data)}
	if contentType != "" {
		input.ContentType = &contentType
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (s *S3Blob) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()
	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return b, nil
}

func (s *S3Blob) Delete(ctx context.Context, key string) error {
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &key}); err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}
