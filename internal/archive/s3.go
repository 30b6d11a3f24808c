package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Options configures an S3Provider. Endpoint is set for S3-compatible
// stores and switches to path-style addressing. Without static keys the
// default AWS credential chain is used.
type S3Options struct {
	Bucket          string
	Region          string
	Prefix          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Provider uploads artifacts to an S3 bucket.
type S3Provider struct {
	bucket   string
	prefix   string
	uploader *manager.Uploader
}

// NewS3Provider loads AWS configuration and builds an uploader.
func NewS3Provider(ctx context.Context, opts S3Options) (*S3Provider, error) {
	if opts.Bucket == "" || opts.Region == "" {
		return nil, errors.New("s3 bucket and region are required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Provider{
		bucket:   opts.Bucket,
		prefix:   opts.Prefix,
		uploader: manager.NewUploader(client),
	}, nil
}

func (s *S3Provider) Name() string { return "s3" }

// Upload sends localPath to s3://bucket/prefix/key.
func (s *S3Provider) Upload(ctx context.Context, localPath, key string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open source: %w", err)
	}
	defer f.Close()

	objectKey := path.Join(s.prefix, key)
	if _, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
		Body:   f,
	}); err != nil {
		return "", fmt.Errorf("uploading to s3://%s/%s: %w", s.bucket, objectKey, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, objectKey), nil
}
