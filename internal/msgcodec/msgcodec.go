// Package msgcodec compresses and decompresses large outbound payloads
// (ROWS batches, SERVERS peer lists) before they are framed onto the
// wire. Carried over from the teacher's internal/hub/msgcodec package
// nearly unchanged; only the payload type differs (this gateway has no
// protobuf schema to compress a oneof body for — see SPEC_FULL.md §11.6
// — so Compress/Decompress work directly on raw bytes).
package msgcodec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Compression identifies which (if any) algorithm was used to compress
// a payload, so the peer can reverse it.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionZstd
)

var (
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	var err error
	encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(fmt.Sprintf("msgcodec: init zstd encoder: %v", err))
	}
	decoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("msgcodec: init zstd decoder: %v", err))
	}
}

// Compress compresses data with zstd, whatever its size; it applies no
// minimum-size threshold, and package wire calls it for every frame
// when zstd is enabled.
func Compress(data []byte) ([]byte, Compression) {
	compressed := encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
	return compressed, CompressionZstd
}

// Decompress reverses Compress according to the given Compression
// value.
func Decompress(data []byte, compression Compression) ([]byte, error) {
	switch compression {
	case CompressionZstd:
		return decoder.DecodeAll(data, nil)
	case CompressionNone:
		return data, nil
	default:
		return nil, fmt.Errorf("msgcodec: unsupported compression: %v", compression)
	}
}
