// Package s3 stores evidence files in an S3 bucket.
package s3

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"homeward/internal/domain"
	"homeward/internal/ports"
)

type putter interface {
	PutObject(ctx context.Context, in *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
}

type presigner interface {
	PresignGetObject(ctx context.Context, in *awss3.GetObjectInput, optFns ...func(*awss3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Options configures the S3 client. Endpoint is set for S3-compatible
// stores such as MinIO or LocalStack and switches to path-style addressing.
type Options struct {
	Bucket   string
	Region   string
	Endpoint string
}

type Storage struct {
	bucket  string
	put     putter
	presign presigner
	newKey  func(in ports.UploadInput) string
}

// New loads the default AWS configuration and builds the storage.
func New(ctx context.Context, opts Options) (*Storage, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 storage: bucket is required")
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.Endpoint != "" {
		// Local S3-compatible stores do not validate credentials, but the SDK requires them.
		loadOpts = append(loadOpts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("local", "local", "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3 storage: load aws config: %w", err)
	}
	client := awss3.NewFromConfig(cfg, func(o *awss3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newStorage(opts.Bucket, client, awss3.NewPresignClient(client)), nil
}

func newStorage(bucket string, put putter, presign presigner) *Storage {
	return &Storage{bucket: bucket, put: put, presign: presign, newKey: objectKey}
}

func objectKey(in ports.UploadInput) string {
	return path.Join("cases", in.CaseID, in.EvidenceTypeID, uuid.NewString()+path.Ext(in.FileName))
}

func (s *Storage) Upload(ctx context.Context, in ports.UploadInput) (string, error) {
	if in.Body == nil {
		return "", domain.Validation("upload body is required")
	}
	key := s.newKey(in)
	put := &awss3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		Body:     in.Body,
		Metadata: map[string]string{"case-id": in.CaseID, "evidence-type-id": in.EvidenceTypeID, "file-name": in.FileName},
	}
	if in.ContentType != "" {
		put.ContentType = aws.String(in.ContentType)
	}
	if in.Size > 0 {
		put.ContentLength = aws.Int64(in.Size)
	}
	if _, err := s.put.PutObject(ctx, put); err != nil {
		return "", fmt.Errorf("s3 storage: put %s: %w", key, err)
	}
	return key, nil
}

func (s *Storage) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, awss3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("s3 storage: presign %s: %w", key, err)
	}
	return req.URL, nil
}
