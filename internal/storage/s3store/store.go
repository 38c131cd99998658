// Package s3store is a storage.Adapter over S3-compatible object storage
// (AWS S3, MinIO). All logical buckets share one physical bucket; an object
// bucket/path is stored under the key "bucket/path".
package s3store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/academyhub/internal/storage"
)

// ObjectAPI is the part of *s3.Client used by Store.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Presigner is the part of *s3.PresignClient used by Store.
type Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Options configure the connection.
type Options struct {
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
	Bucket    string
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type Store struct {
	api      ObjectAPI
	presign  Presigner
	bucket   string
	endpoint string
}

var _ storage.Adapter = (*Store)(nil)

// New builds a Store with static credentials against opts.Endpoint using
// path-style addressing.
func New(ctx context.Context, opts Options) (*Store, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey,
			opts.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(opts.Endpoint)
		o.UsePathStyle = true
	})

	return NewWithClient(client, s3.NewPresignClient(client), opts.Bucket, opts.Endpoint), nil
}

// NewWithClient assembles a Store from prepared clients.
func NewWithClient(api ObjectAPI, presign Presigner, bucket, endpoint string) *Store {
	return &Store{
		api:      api,
		presign:  presign,
		bucket:   bucket,
		endpoint: strings.TrimRight(endpoint, "/"),
	}
}

// Key returns the object key of bucket/p.
func Key(bucket, p string) string {
	return bucket + "/" + p
}

func (s *Store) URL(bucket, p string) string {
	return s.endpoint + "/" + s.bucket + "/" + Key(bucket, p)
}

func (s *Store) Upload(ctx context.Context, bucket, p string, r io.Reader) (*storage.UploadResult, error) {
	if err := storage.ValidateKey(bucket, p); err != nil {
		return nil, err
	}

	// Signing over plain HTTP needs a seekable body.
	body, ok := r.(io.ReadSeeker)
	if !ok {
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		body = bytes.NewReader(b)
	}

	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(Key(bucket, p)),
		Body:   body,
	}
	if ct := mime.TypeByExtension(path.Ext(p)); ct != "" {
		in.ContentType = aws.String(ct)
	}

	if _, err := s.api.PutObject(ctx, in); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrUploadFailed, err)
	}

	return &storage.UploadResult{Path: p, URL: s.URL(bucket, p)}, nil
}

func (s *Store) Remove(ctx context.Context, bucket, p string) error {
	if err := storage.ValidateKey(bucket, p); err != nil {
		return err
	}

	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(Key(bucket, p)),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrRemoveFailed, err)
	}
	return nil
}

// PresignGet returns a time-limited download URL for bucket/p.
func (s *Store) PresignGet(ctx context.Context, bucket, p string, ttl time.Duration) (string, error) {
	if err := storage.ValidateKey(bucket, p); err != nil {
		return "", err
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(Key(bucket, p)),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
