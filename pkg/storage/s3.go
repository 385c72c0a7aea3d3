package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/DrSkyle/bridgestore/pkg/config"
	"github.com/DrSkyle/bridgestore/pkg/datastore"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// readChunk is the buffer step used while draining object bodies.
const readChunk = 32 * 1024

// S3Store implements datastore.Backend for an S3-compatible bucket.
type S3Store struct {
	client S3API
	bucket string
	logger *slog.Logger
}

// NewS3Store builds the S3 backend. It reports ok == false, without error,
// when the access key, secret, region or bucket is missing.
func NewS3Store(cfg config.AWS, opts ...Option) (*S3Store, bool) {
	if !cfg.S3Configured() {
		return nil, false
	}
	o := buildOptions(opts)

	client := o.s3Client
	if client == nil {
		awsCfg := NewAWSConfig(cfg, o.verbose, o.logger)
		client = s3.NewFromConfig(awsCfg, func(so *s3.Options) {
			so.UsePathStyle = cfg.UsePathStyle
		})
	}

	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		logger: o.logger.With("bucket", cfg.Bucket),
	}, true
}

var _ datastore.Backend = (*S3Store)(nil)

// Bucket returns the target bucket name.
func (s *S3Store) Bucket() string { return s.bucket }

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, normalizeAWSError(err)
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if out.ContentLength != nil && *out.ContentLength > 0 {
		buf.Grow(int(*out.ContentLength))
	}
	chunk := make([]byte, readChunk)
	for {
		n, rerr := out.Body.Read(chunk)
		buf.Write(chunk[:n])
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			return nil, normalizeAWSError(rerr)
		}
	}
	if buf.Len() == 0 {
		return []byte{}, nil
	}
	return buf.Bytes(), nil
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return normalizeAWSError(err)
	}
	return nil
}

// List pages through the bucket PageSize keys at a time. Any page failure
// discards what was gathered so far.
func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		MaxKeys: aws.Int32(datastore.PageSize),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	keys := []string{}
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, normalizeAWSError(err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				s.logger.Warn("Listing entry has no key, using placeholder", "prefix", prefix, "placeholder", datastore.PlaceholderKey)
				keys = append(keys, datastore.PlaceholderKey)
				continue
			}
			keys = append(keys, *obj.Key)
		}
	}
	return keys, nil
}
