package layer

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// newCompressor returns a zstd encoder for the given compression level, or
// nil when level disables compression. The encoder belongs to a single
// writer; it is not shared.
func newCompressor(level int) (*zstd.Encoder, error) {
	if level <= 0 {
		return nil, nil
	}
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder (level %d): %w", level, err)
	}
	return enc, nil
}

// decompress inflates a zstd-compressed blob. The decoder is constructed
// fresh per call so no decompression state is ever shared between
// concurrent readers.
func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer dec.Close()

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress blob: %w", err)
	}
	return out, nil
}
