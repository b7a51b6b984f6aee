// Package compression provides the shared zstd codec used by payload
// stores. Encoding is opportunistic: payloads that are tiny or that do not
// shrink are passed through raw, and Decode tells the two apart by the
// zstd frame magic.
package compression

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Level selects the encoder speed/ratio trade-off.
type Level int

const (
	Fastest Level = iota + 1
	Default
	Better
)

// minEncodeSize is the payload size below which encoding is skipped;
// smaller payloads never win back the frame overhead.
const minEncodeSize = 128

var frameMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Codec compresses and decompresses payload bytes. Safe for concurrent use.
type Codec struct {
	enc     *zstd.Encoder
	dec     *zstd.Decoder
	enabled bool
}

// New creates a codec. A disabled codec never encodes, but still decodes
// frames written while compression was on.
func New(level Level, enabled bool) (*Codec, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}
	if !enabled {
		return &Codec{dec: dec}, nil
	}

	var encLevel zstd.EncoderLevel
	switch level {
	case Fastest:
		encLevel = zstd.SpeedFastest
	case Better:
		encLevel = zstd.SpeedBetterCompression
	default:
		encLevel = zstd.SpeedDefault
	}

	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(encLevel),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("create encoder: %w", err)
	}

	return &Codec{enc: enc, dec: dec, enabled: true}, nil
}

// Encode compresses data, returning it unchanged when the codec is
// disabled, the payload is below minEncodeSize, or compression does not
// shrink it.
func (c *Codec) Encode(data []byte) []byte {
	if !c.enabled || len(data) < minEncodeSize {
		return data
	}
	compressed := c.enc.EncodeAll(data, make([]byte, 0, len(data)))
	if len(compressed) >= len(data) {
		return data
	}
	return compressed
}

// Decode reverses Encode. Bytes without a zstd frame header are returned
// as-is, so raw pass-through payloads decode to themselves even on an
// enabled codec.
func (c *Codec) Decode(data []byte) ([]byte, error) {
	if !IsCompressed(data) {
		return data, nil
	}
	out, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	return out, nil
}

// IsCompressed reports whether data starts with a zstd frame.
func IsCompressed(data []byte) bool {
	return len(data) >= len(frameMagic) && bytes.Equal(data[:len(frameMagic)], frameMagic)
}

// Close releases encoder and decoder resources.
func (c *Codec) Close() {
	if c.enc != nil {
		c.enc.Close()
	}
	if c.dec != nil {
		c.dec.Close()
	}
}
