package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hyperjump/docscan/internal/config"
	"go.uber.org/zap"
)

// putObjectAPI is the subset of the S3 client used for uploads.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader puts files into a bucket under a key prefix.
type S3Uploader struct {
	client putObjectAPI
	bucket string
	prefix string
	logger *zap.Logger
}

// NewS3Uploader builds an S3 client from the default AWS credential chain.
// A custom endpoint switches to path-style addressing for S3-compatible stores.
func NewS3Uploader(ctx context.Context, cfg config.S3Config, logger *zap.Logger) (*S3Uploader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Uploader(client, cfg, logger), nil
}

func newS3Uploader(client putObjectAPI, cfg config.S3Config, logger *zap.Logger) *S3Uploader {
	return &S3Uploader{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, logger: logger}
}

// Key returns the object key for localPath.
func (u *S3Uploader) Key(localPath string) string {
	return u.prefix + filepath.Base(localPath)
}

// Upload puts localPath into the bucket.
func (u *S3Uploader) Upload(ctx context.Context, localPath string) error {
	if err := u.upload(ctx, localPath); err != nil {
		u.logger.Error("s3 upload failed", zap.String("path", localPath), zap.String("bucket", u.bucket), zap.Error(err))
		return &TransferError{Path: localPath, Err: err}
	}
	u.logger.Info("uploaded", zap.String("path", localPath), zap.String("bucket", u.bucket), zap.String("key", u.Key(localPath)))
	return nil
}

func (u *S3Uploader) upload(ctx context.Context, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open local file: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat local file: %w", err)
	}
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(u.Key(localPath)),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}
