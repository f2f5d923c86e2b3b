package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config holds the configuration for S3 storage.
type S3Config struct {
	// SourceBucket holds uploaded source videos and chapter files.
	SourceBucket string
	// DestBucket receives the prepared exports.
	DestBucket      string
	Region          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
}

// S3Storage implements Storage with two buckets: downloads read from the
// source bucket and uploads write to the destination bucket.
type S3Storage struct {
	client       *s3.Client
	sourceBucket string
	destBucket   string
}

// NewS3Storage creates a new S3Storage instance.
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Storage{
		client:       s3.NewFromConfig(awsCfg, clientOpts...),
		sourceBucket: cfg.SourceBucket,
		destBucket:   cfg.DestBucket,
	}, nil
}

// Download fetches key from the source bucket into dst.
func (s *S3Storage) Download(ctx context.Context, key, dst string) error {
	if err := validKey(key); err != nil {
		return err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.sourceBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return fmt.Errorf("%w: s3://%s/%s", ErrNotFound, s.sourceBucket, key)
		}
		return fmt.Errorf("download s3://%s/%s: %w", s.sourceBucket, key, err)
	}
	defer func() { _ = out.Body.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0750); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}
	f, err := os.Create(dst) // #nosec G304 - dst is provided by trusted internal code
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(f, out.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("download s3://%s/%s: %w", s.sourceBucket, key, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}

// Upload stores src under key in the destination bucket.
func (s *S3Storage) Upload(ctx context.Context, key, src, contentType string) error {
	if err := validKey(key); err != nil {
		return err
	}

	f, err := os.Open(src) // #nosec G304 - src is provided by trusted internal code
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = f.Close() }()

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.destBucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("upload to S3: %w", err)
	}
	return nil
}

