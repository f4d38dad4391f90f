// Package s3 uploads finished output files to an S3 bucket.
package s3

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI is the slice of the S3 client the uploader needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader puts local files into S3.
type Uploader struct {
	client PutObjectAPI
	logger *slog.Logger
}

// NewUploader builds an S3 client from the default AWS config chain.
func NewUploader(ctx context.Context, region string, logger *slog.Logger) (*Uploader, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewUploaderWithClient(s3.NewFromConfig(cfg), logger), nil
}

// NewUploaderWithClient wraps an existing client.
func NewUploaderWithClient(client PutObjectAPI, logger *slog.Logger) *Uploader {
	return &Uploader{client: client, logger: logger}
}

// Upload puts the file at path under bucket/key. An empty key uses the file's base name.
func (u *Uploader) Upload(ctx context.Context, bucket, key, path string) error {
	if key == "" {
		key = filepath.Base(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat upload: %w", err)
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType(path)),
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", bucket, key, err)
	}

	u.logger.Info("output uploaded", "bucket", bucket, "key", key, "bytes", info.Size())
	return nil
}

func contentType(path string) string {
	switch filepath.Ext(path) {
	case ".csv":
		return "text/csv"
	case ".parquet":
		return "application/vnd.apache.parquet"
	default:
		return "application/octet-stream"
	}
}
