// Package compress applies the optional payload codec used before chunking.
package compress

import (
	"fmt"
	"slices"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/meigma/dataanchor/core"
)

// MaxDecodedSize bounds decompressed payloads. A full chunk set of maximum
// size cannot legitimately expand beyond this.
const MaxDecodedSize = 256 << 20

var (
	encoderOnce sync.Once
	encoder     *zstd.Encoder
	encoderErr  error

	decoderOnce sync.Once
	decoder     *zstd.Decoder
	decoderErr  error
)

func zstdEncoder() (*zstd.Encoder, error) {
	encoderOnce.Do(func() {
		encoder, encoderErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	})
	return encoder, encoderErr
}

func zstdDecoder() (*zstd.Decoder, error) {
	decoderOnce.Do(func() {
		decoder, decoderErr = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxDecodedSize))
	})
	return decoder, decoderErr
}

// Encode compresses payload with codec.
func Encode(codec core.Compression, payload []byte) ([]byte, error) {
	switch codec {
	case core.CompressionNone:
		return payload, nil
	case core.CompressionZstd:
		enc, err := zstdEncoder()
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		return enc.EncodeAll(payload, nil), nil
	default:
		return nil, fmt.Errorf("unsupported compression %s", codec)
	}
}

// Decode reverses Encode. Malformed input returns core.ErrDecode.
func Decode(codec core.Compression, data []byte) ([]byte, error) {
	switch codec {
	case core.CompressionNone:
		return slices.Clone(data), nil
	case core.CompressionZstd:
		dec, err := zstdDecoder()
		if err != nil {
			return nil, fmt.Errorf("create zstd decoder: %w", err)
		}
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", core.ErrDecode, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported compression %s", core.ErrDecode, codec)
	}
}
