// Package avatars issues presigned S3 upload URLs for profile pictures.
package avatars

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
)

// Options configures the bucket and credentials. BaseEndpoint is optional;
// when set (MinIO, localstack) path-style addressing is used.
type Options struct {
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	Bucket       string
	Expiry       time.Duration
}

// Upload is a presigned PUT for a single avatar object.
type Upload struct {
	Key       string
	URL       string
	ExpiresAt time.Time
}

type Presigner struct {
	client *s3.PresignClient
	bucket string
	expiry time.Duration
	now    func() time.Time
}

func NewPresigner(ctx context.Context, o Options) (*Presigner, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(o.Region)}
	if o.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, "")))
	}

	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(so *s3.Options) {
		if o.BaseEndpoint != "" {
			so.BaseEndpoint = aws.String(o.BaseEndpoint)
			so.UsePathStyle = true
		}
	})

	return &Presigner{
		client: newS3PresignClient(client),
		bucket: o.Bucket,
		expiry: o.Expiry,
		now:    time.Now,
	}, nil
}

// ObjectKey builds a unique key under the user's avatar prefix.
func ObjectKey(userID string, now time.Time) string {
	return fmt.Sprintf("avatars/%s/%d/%d/%d/%v", userID, now.Year(), now.Month(), now.Day(), uuid.New())
}

func (p *Presigner) UploadURL(ctx context.Context, userID string) (*Upload, error) {
	now := p.now()
	key := ObjectKey(userID, now)

	req, err := presignPutObject(p.client, ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(p.expiry))
	if err != nil {
		return nil, fmt.Errorf("presign avatar upload: %w", err)
	}

	return &Upload{Key: key, URL: req.URL, ExpiresAt: now.Add(p.expiry)}, nil
}
