package datastore

import (
	"context"
	"io"
	"log/slog"
	"unicode/utf8"

	"github.com/DrSkyle/bridgestore/pkg/compress"
)

// Store implements Driver on top of a raw Backend. All fields are read-only
// after construction, so a Store may be shared by concurrent callers.
type Store struct {
	name    string
	backend Backend
	level   int
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCompressionLevel sets the zstd level used by UploadCompressedObject.
// Zero keeps the default.
func WithCompressionLevel(level int) Option {
	return func(s *Store) {
		if level != 0 {
			s.level = level
		}
	}
}

// NewStore binds a backend to the driver policy. name identifies the backend
// variant in logs and telemetry.
func NewStore(name string, backend Backend, opts ...Option) *Store {
	s := &Store{
		name:    name,
		backend: backend,
		level:   compress.DefaultLevel,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("backend", name)
	return s
}

var _ Driver = (*Store)(nil)

// Name returns the backend variant name.
func (s *Store) Name() string { return s.name }

// Backend returns the raw backend.
func (s *Store) Backend() Backend { return s.backend }

// CompressionLevel returns the level used for compressed uploads.
func (s *Store) CompressionLevel() int { return s.level }

// Close releases the backend when it holds resources (an open database).
func (s *Store) Close() error {
	if c, ok := s.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *Store) ListObjects(ctx context.Context, path string) ([]string, error) {
	prefix := ListPrefix(path)

	keys, err := s.backend.List(ctx, prefix)
	if err != nil {
		s.logger.Error("Unable to list objects", "prefix", prefix, "error", err)
		return nil, annotate(err, OpListObjects, prefix, "unable to list objects")
	}

	s.logger.Debug("Listed objects", "prefix", prefix, "count", len(keys))
	return keys, nil
}

func (s *Store) FetchObject(ctx context.Context, name, path string) (string, error) {
	key := DeriveKey(path, name)

	data, err := s.backend.Get(ctx, key)
	if err != nil {
		return "", annotate(err, OpFetchObject, key, "failed to get object")
	}

	if !utf8.Valid(data) {
		return "", &Error{
			Kind:    KindCorrupt,
			Op:      OpFetchObject,
			Key:     key,
			Code:    "InvalidUTF8",
			Message: "failed to decode object as UTF-8",
		}
	}

	s.logger.Debug("Fetched object", "key", key, "bytes", len(data))
	return string(data), nil
}

func (s *Store) UploadObject(ctx context.Context, name, contents, path string) (int, error) {
	key := DeriveKey(path, name)

	// FetchObject could never return it, so refuse it here.
	if !utf8.ValidString(contents) {
		return 0, &Error{
			Kind:    KindCorrupt,
			Op:      OpUploadObject,
			Key:     key,
			Code:    "InvalidUTF8",
			Message: "contents are not valid UTF-8",
		}
	}

	if err := s.backend.Put(ctx, key, []byte(contents)); err != nil {
		return 0, annotate(err, OpUploadObject, key, "failed to save object")
	}

	s.logger.Debug("Uploaded object", "key", key, "bytes", len(contents))
	return len(contents), nil
}

func (s *Store) FetchCompressedObject(ctx context.Context, name, path string) ([]byte, int, error) {
	key := DeriveKey(path, name)

	raw, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, 0, annotate(err, OpFetchCompressedObject, key, "failed to get object")
	}

	data, err := compress.Decompress(raw)
	if err != nil {
		return nil, 0, &Error{
			Kind:    KindCorrupt,
			Op:      OpFetchCompressedObject,
			Key:     key,
			Code:    "DecompressFailed",
			Message: "failed to decompress object",
			Err:     err,
		}
	}

	s.logger.Debug("Fetched compressed object", "key", key, "bytes", len(raw), "decompressed", len(data))
	return data, len(raw), nil
}

func (s *Store) UploadCompressedObject(ctx context.Context, name string, contents []byte, path string) (int, error) {
	key := DeriveKey(path, name)

	packed, err := compress.Compress(contents, s.level)
	if err != nil {
		return 0, &Error{
			Kind:    KindCorrupt,
			Op:      OpUploadCompressedObject,
			Key:     key,
			Code:    "CompressFailed",
			Message: "failed to compress object",
			Err:     err,
		}
	}

	if err := s.backend.Put(ctx, key, packed); err != nil {
		return 0, annotate(err, OpUploadCompressedObject, key, "failed to save object")
	}

	s.logger.Debug("Uploaded compressed object", "key", key, "bytes", len(packed), "raw", len(contents))
	return len(packed), nil
}
