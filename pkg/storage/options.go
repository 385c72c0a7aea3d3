package storage

import (
	"log/slog"

	"github.com/DrSkyle/bridgestore/pkg/logging"
)

type options struct {
	logger  *slog.Logger
	verbose bool

	s3Client     S3API
	dynamoClient DynamoAPI
}

// Option configures a backend constructor.
type Option func(*options)

// WithLogger sets the logger used for backend warnings and verbose API logs.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithVerbose logs every AWS API call at debug level.
func WithVerbose(v bool) Option {
	return func(o *options) { o.verbose = v }
}

// WithS3Client replaces the SDK client, typically with a test double.
func WithS3Client(c S3API) Option {
	return func(o *options) { o.s3Client = c }
}

// WithDynamoClient replaces the SDK client, typically with a test double.
func WithDynamoClient(c DynamoAPI) Option {
	return func(o *options) { o.dynamoClient = c }
}

func buildOptions(opts []Option) options {
	o := options{logger: logging.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
