// Package inline implements a store that keeps the payload inside the
// token itself, encoded as a base64 data URI (optionally zstd-compressed).
// Nothing is written anywhere: the reference carries its own payload, which
// makes this the natural last-resort store for payloads small enough to
// still fit the invocation limit after encoding.
//
// Token shape: "data:application/json;base64,..." or
// "data:application/json+zstd;base64,...".
package inline

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/offloadkit/offload"
	"github.com/offloadkit/offload/internal/compression"
)

// Name identifies this store.
const Name = "inline"

const (
	prefixPlain = "data:application/json;base64,"
	prefixZstd  = "data:application/json+zstd;base64,"

	// discriminator is the data-URI media type this store owns. A token
	// starting with it but matching neither full prefix is malformed.
	discriminator = "data:application/json"
)

// Store embeds payloads into their own tokens.
type Store struct {
	maxSize int64
	codec   *compression.Codec
}

// Options configures an inline Store.
type Options struct {
	// MaxSize caps the serialized payload size CanStore accepts. Since the
	// encoded token replaces the payload in place, it must itself fit the
	// invocation limit; the default cap is the state machine ceiling.
	MaxSize int64
	// Compression toggles zstd before base64.
	Compression      bool
	CompressionLevel compression.Level
}

// Option is a functional option for configuring New.
type Option func(*Options)

// WithMaxSize caps the payload size this store accepts.
func WithMaxSize(n int64) Option {
	return func(o *Options) { o.MaxSize = n }
}

// WithCompression toggles zstd compression of the embedded payload.
func WithCompression(enabled bool) Option {
	return func(o *Options) { o.Compression = enabled }
}

// WithCompressionLevel sets the zstd level used when compression is on.
func WithCompressionLevel(level compression.Level) Option {
	return func(o *Options) { o.CompressionLevel = level }
}

// New creates an inline Store.
func New(opts ...Option) (*Store, error) {
	o := &Options{
		MaxSize:          offload.SizeStateMachine,
		Compression:      true,
		CompressionLevel: compression.Default,
	}
	for _, opt := range opts {
		opt(o)
	}

	codec, err := compression.New(o.CompressionLevel, o.Compression)
	if err != nil {
		return nil, fmt.Errorf("create codec: %w", err)
	}
	return &Store{maxSize: o.MaxSize, codec: codec}, nil
}

func (s *Store) Name() string { return Name }

// CanStore accepts payloads whose worst-case encoded token (no compression
// win assumed) fits the configured cap. Pure check, no encoding performed.
func (s *Store) CanStore(args offload.StoreArgs) bool {
	if s.maxSize == 0 {
		return true
	}
	encoded := int64(len(prefixPlain)) + int64(base64.StdEncoding.EncodedLen(int(args.ByteSize)))
	return encoded <= s.maxSize
}

// Store encodes the payload into its token.
func (s *Store) Store(ctx context.Context, args offload.StoreArgs) (any, error) {
	data, err := json.Marshal(args.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	encoded := s.codec.Encode(data)
	prefix := prefixPlain
	if compression.IsCompressed(encoded) {
		prefix = prefixZstd
	}
	return prefix + base64.StdEncoding.EncodeToString(encoded), nil
}

// CanLoad claims string tokens carrying this store's data-URI media type.
// A token with the right media type but an unrecognized encoding is an
// error, not a miss.
func (s *Store) CanLoad(args offload.LoadArgs) (bool, error) {
	token, ok := args.Reference.(string)
	if !ok || !strings.HasPrefix(token, discriminator) {
		return false, nil
	}
	if !strings.HasPrefix(token, prefixPlain) && !strings.HasPrefix(token, prefixZstd) {
		return false, fmt.Errorf("inline: unsupported data reference %q", truncate(token, 48))
	}
	return true, nil
}

// Load decodes the payload back out of the token.
func (s *Store) Load(ctx context.Context, args offload.LoadArgs) (any, error) {
	token := args.Reference.(string)

	var body string
	switch {
	case strings.HasPrefix(token, prefixPlain):
		body = token[len(prefixPlain):]
	case strings.HasPrefix(token, prefixZstd):
		body = token[len(prefixZstd):]
	}

	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("inline: decode base64: %w", err)
	}
	data, err := s.codec.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("inline: %w", err)
	}

	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("inline: decode payload: %w", err)
	}
	return payload, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
