package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archiver keeps a copy of raw webhook payloads outside the database.
type Archiver interface {
	Archive(ctx context.Context, kind, id string, body []byte) error
}

type NopArchiver struct{}

func (NopArchiver) Archive(context.Context, string, string, []byte) error { return nil }

type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Archiver struct {
	client ObjectPutter
	bucket string
	now    func() time.Time
}

type Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	KeyID     string
	SecretKey string
}

// NewS3 builds an archiver for S3 or any S3-compatible store (R2, MinIO)
// when Endpoint is set.
func NewS3(ctx context.Context, opts Options) (*S3Archiver, error) {
	loaders := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.KeyID != "" {
		loaders = append(loaders, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.KeyID, opts.SecretKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("load archive config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3Archiver(client, opts.Bucket), nil
}

func NewS3Archiver(client ObjectPutter, bucket string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, now: time.Now}
}

// Key lays objects out as kind/YYYY/MM/DD/id-unixnano.json so repeated
// deliveries of the same order do not overwrite each other.
func (a *S3Archiver) Key(kind, id string, at time.Time) string {
	at = at.UTC()
	return path.Join(kind, at.Format("2006/01/02"), fmt.Sprintf("%s-%d.json", id, at.UnixNano()))
}

func (a *S3Archiver) Archive(ctx context.Context, kind, id string, body []byte) error {
	key := a.Key(kind, id, a.now())
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive %s: %w", key, err)
	}
	return nil
}
