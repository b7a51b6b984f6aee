package oci

import (
	"bytes"
	"io"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/types"

	"github.com/offloadkit/offload/internal/compression"
)

// payloadLayer implements v1.Layer over an already-encoded payload blob.
// The bytes are uploaded exactly as given; the digest addressing the blob
// is the digest of those bytes.
type payloadLayer struct {
	data []byte
}

func newPayloadLayer(data []byte) *payloadLayer {
	return &payloadLayer{data: data}
}

func (l *payloadLayer) Digest() (v1.Hash, error) {
	h, _, err := v1.SHA256(bytes.NewReader(l.data))
	return h, err
}

func (l *payloadLayer) DiffID() (v1.Hash, error) {
	return l.Digest()
}

func (l *payloadLayer) Compressed() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(l.data)), nil
}

func (l *payloadLayer) Uncompressed() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(l.data)), nil
}

func (l *payloadLayer) Size() (int64, error) { return int64(len(l.data)), nil }

// MediaType reports the actual encoding of the bytes: the codec passes
// small or incompressible payloads through as raw frames.
func (l *payloadLayer) MediaType() (types.MediaType, error) {
	if compression.IsCompressed(l.data) {
		return types.OCILayerZStd, nil
	}
	return types.OCIUncompressedLayer, nil
}
