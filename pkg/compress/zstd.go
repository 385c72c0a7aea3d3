// Package compress wraps zstd framing for payloads stored by the data store driver.
package compress

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

const (
	// DefaultLevel is the zstd level used when none is configured.
	DefaultLevel = 3
	// MinLevel and MaxLevel bound the accepted zstd levels.
	MinLevel = 1
	MaxLevel = 22

	// maxDecodedSize caps a single decompressed payload.
	maxDecodedSize = 1 << 30
)

// ErrEmptyPayload is returned when Decompress is handed zero bytes. Every
// frame produced by Compress is non-empty, even for empty input.
var ErrEmptyPayload = errors.New("compress: empty payload is not a zstd frame")

var (
	encoders sync.Map // zstd.EncoderLevel -> *zstd.Encoder

	decoderOnce sync.Once
	decoder     *zstd.Decoder
	decoderErr  error
)

// Compress encodes data as a single zstd frame at the given level.
func Compress(data []byte, level int) ([]byte, error) {
	if level < MinLevel || level > MaxLevel {
		return nil, fmt.Errorf("compress: level %d out of range [%d, %d]", level, MinLevel, MaxLevel)
	}

	enc, err := encoderFor(zstd.EncoderLevelFromZstd(level))
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2+16)), nil
}

// Decompress decodes a payload produced by Compress at any level.
func Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}

	decoderOnce.Do(func() {
		decoder, decoderErr = zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(0),
			zstd.WithDecoderMaxMemory(maxDecodedSize),
		)
	})
	if decoderErr != nil {
		return nil, fmt.Errorf("compress: init decoder: %w", decoderErr)
	}

	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("compress: decode: %w", err)
	}
	if out == nil {
		out = []byte{}
	}
	return out, nil
}

// encoderFor returns a shared encoder for level. EncodeAll is safe for
// concurrent use on a single encoder.
func encoderFor(level zstd.EncoderLevel) (*zstd.Encoder, error) {
	if enc, ok := encoders.Load(level); ok {
		return enc.(*zstd.Encoder), nil
	}

	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(level),
		zstd.WithZeroFrames(true),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("compress: init encoder: %w", err)
	}

	actual, loaded := encoders.LoadOrStore(level, enc)
	if loaded {
		enc.Close()
	}
	return actual.(*zstd.Encoder), nil
}
