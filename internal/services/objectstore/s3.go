package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"reelforge/internal/config"
	"reelforge/internal/services"
)

// PutObjectAPI is the subset of the S3 client the uploader needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads artifacts to an S3-compatible bucket.
type S3 struct {
	client    PutObjectAPI
	bucket    string
	prefix    string
	publicURL string
}

// NewS3 builds an uploader from the storage section. Static credentials are
// used when configured; otherwise the default AWS credential chain applies.
func NewS3(ctx context.Context, cfg config.Storage) (*S3, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "s3", "bucket required", nil)
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "s3", "load aws config", err)
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewS3WithClient(client, cfg), nil
}

// NewS3WithClient wires an existing client (primarily for tests).
func NewS3WithClient(client PutObjectAPI, cfg config.Storage) *S3 {
	return &S3{
		client:    client,
		bucket:    cfg.Bucket,
		prefix:    cfg.Prefix,
		publicURL: publicBase(cfg),
	}
}

// publicBase works out the URL prefix objects are reachable under.
func publicBase(cfg config.Storage) string {
	if base := strings.TrimSpace(cfg.PublicURL); base != "" {
		return strings.TrimRight(base, "/")
	}
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		if cfg.UsePathStyle {
			return strings.TrimRight(endpoint, "/") + "/" + cfg.Bucket
		}
		if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
			return fmt.Sprintf("%s://%s.%s", u.Scheme, cfg.Bucket, u.Host)
		}
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, region)
}

// Upload streams localPath to bucket/prefix/key.
func (s *S3) Upload(ctx context.Context, localPath, key string) (string, error) {
	objKey, err := objectKey(s.prefix, key)
	if err != nil {
		return "", err
	}
	file, err := os.Open(localPath)
	if err != nil {
		return "", services.Wrap(services.ErrCollaborator, "storage", "upload", "open artifact", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return "", services.Wrap(services.ErrCollaborator, "storage", "upload", "stat artifact", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objKey),
		Body:          file,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType(localPath)),
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", services.Wrap(services.ErrCancelled, "storage", "upload", "", err)
		}
		return "", services.Wrap(services.ErrCollaborator, "storage", "upload", fmt.Sprintf("put s3://%s/%s", s.bucket, objKey), err)
	}
	return joinURL(s.publicURL, objKey), nil
}
