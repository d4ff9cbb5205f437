package media

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectClient is the part of *s3.Client the resolver uses.
type ObjectClient interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string // MinIO or other S3 compatible endpoint, empty for AWS
	AccessKey string
	SecretKey string
	Prefix    string

	// PublicBaseURL prefixes object keys in returned URLs. Defaults to
	// Endpoint/Bucket.
	PublicBaseURL string
}

// S3 uploads to a bucket and returns the object's public URL.
type S3 struct {
	client  ObjectClient
	bucket  string
	prefix  string
	baseURL string
}

var _ Resolver = (*S3)(nil)

// NewS3 builds a client from static credentials when given, otherwise from
// the default AWS credential chain.
func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("media: load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3WithClient(client, opts), nil
}

func NewS3WithClient(client ObjectClient, opts S3Options) *S3 {
	base := opts.PublicBaseURL
	if base == "" {
		if opts.Endpoint != "" {
			base = joinURL(opts.Endpoint, opts.Bucket)
		} else {
			base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
		}
	}
	return &S3{client: client, bucket: opts.Bucket, prefix: opts.Prefix, baseURL: base}
}

func (r *S3) Resolve(ctx context.Context, localPath string) (string, error) {
	const op = "media.S3.Resolve"
	if localPath == "" {
		return "", ErrEmptyPath
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer f.Close()

	key := objectKey(r.prefix, localPath, time.Now().UTC())
	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(localPath)),
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return joinURL(r.baseURL, key), nil
}

// Remove deletes the object behind url. S3 reports success for missing keys.
func (r *S3) Remove(ctx context.Context, url string) error {
	key, ok := keyOf(r.baseURL, url)
	if !ok {
		return nil
	}
	_, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("media.S3.Remove: %w", err)
	}
	return nil
}
