// Package archive uploads an observer's audit trail when it disconnects.
//
// One JSON document is written per observer, keyed by its ID:
//
//	<prefix><id>.json
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	s3aws "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/vango-dev/urlobserver/internal/errors"
	"github.com/vango-dev/urlobserver/pkg/entrylist"
)

// S3Client is the subset of the S3 API used by S3.
type S3Client interface {
	PutObject(ctx context.Context, params *s3aws.PutObjectInput, optFns ...func(*s3aws.Options)) (*s3aws.PutObjectOutput, error)
}

// Config selects the destination bucket.
type Config struct {
	Bucket string
	Prefix string
	Region string
}

// Document is the uploaded JSON body.
type Document struct {
	ObserverID string            `json:"observerId"`
	ArchivedAt time.Time         `json:"archivedAt"`
	Entries    []entrylist.Entry `json:"entries"`
}

// Option configures S3.
type Option func(*options)

type options struct {
	client        S3Client
	configOptions []func(*config.LoadOptions) error
	uploadTimeout time.Duration
	now           func() time.Time
}

// WithS3Client sets a pre-configured client. Primarily used for testing.
func WithS3Client(client S3Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithConfigOption adds an AWS config load option.
func WithConfigOption(opt func(*config.LoadOptions) error) Option {
	return func(o *options) {
		o.configOptions = append(o.configOptions, opt)
	}
}

// WithUploadTimeout bounds each upload. Without it the caller's context
// deadline applies.
func WithUploadTimeout(d time.Duration) Option {
	return func(o *options) {
		o.uploadTimeout = d
	}
}

// WithClock sets the time source for ArchivedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// S3 archives audit trails to a bucket. It is safe for concurrent use.
type S3 struct {
	client        S3Client
	bucket        string
	prefix        string
	uploadTimeout time.Duration
	now           func() time.Time
}

// NewS3 returns an archiver for cfg. Unless a client is supplied, the AWS
// default credential chain is loaded.
func NewS3(ctx context.Context, cfg Config, opts ...Option) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("E102").WithDetail("archive.bucket is empty")
	}

	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	client := o.client
	if client == nil {
		loadOpts := o.configOptions
		if cfg.Region != "" {
			loadOpts = append([]func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}, loadOpts...)
		}
		awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, errors.New("E400").WithDetail("load AWS config").Wrap(err)
		}
		client = s3aws.NewFromConfig(awsCfg)
	}

	return &S3{
		client:        client,
		bucket:        cfg.Bucket,
		prefix:        cfg.Prefix,
		uploadTimeout: o.uploadTimeout,
		now:           o.now,
	}, nil
}

// Key returns the object key for an observer ID.
func (s *S3) Key(id string) string {
	return s.prefix + id + ".json"
}

// Archive uploads entries as one JSON document.
func (s *S3) Archive(ctx context.Context, id string, entries []entrylist.Entry) error {
	if id == "" {
		return errors.New("E400").WithDetail("observer has no ID")
	}
	if entries == nil {
		entries = []entrylist.Entry{}
	}
	body, err := json.Marshal(Document{
		ObserverID: id,
		ArchivedAt: s.now().UTC(),
		Entries:    entries,
	})
	if err != nil {
		return errors.New("E400").Wrap(err)
	}

	if s.uploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.uploadTimeout)
		defer cancel()
	}

	key := s.Key(id)
	_, err = s.client.PutObject(ctx, &s3aws.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return classify(err, s.bucket, key)
	}
	return nil
}

// classify keeps the S3 error code in the detail so logs show
// NoSuchBucket or AccessDenied rather than a transport dump.
func classify(err error, bucket, key string) error {
	e := errors.New("E400").Wrap(err)
	var apiErr smithy.APIError
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		e.WithDetail("s3://%s/%s: timed out", bucket, key)
	case stderrors.As(err, &apiErr):
		e.WithDetail("s3://%s/%s: %s", bucket, key, apiErr.ErrorCode())
	default:
		e.WithDetail("s3://%s/%s", bucket, key)
	}
	return e
}
