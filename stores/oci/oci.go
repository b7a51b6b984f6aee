// Package oci implements a payload store backed by an OCI registry.
// Each payload is pushed as a single zstd-compressed blob and addressed by
// digest, which makes references shareable across accounts and regions
// wherever the registry is reachable.
//
// Token shape: {"store": "oci", "repository": "<host>/<repo>", "digest": "sha256:<hex>"}.
package oci

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"

	"github.com/offloadkit/offload"
	"github.com/offloadkit/offload/internal/compression"
)

// Name is the token discriminator for this store.
const Name = "oci"

// Token is the reference token this store produces and resolves.
type Token struct {
	Store      string `json:"store" mapstructure:"store"`
	Repository string `json:"repository" mapstructure:"repository"`
	Digest     string `json:"digest" mapstructure:"digest"`
}

// Authenticator provides credentials for a registry. The zero configuration
// falls back to the system keychain, like a container CLI would.
type Authenticator interface {
	Authenticate(registry string) (username, password string, err error)
}

// Store pushes payloads to an OCI registry repository.
type Store struct {
	repo    name.Repository
	auth    Authenticator
	maxSize int64
	codec   *compression.Codec
}

// Options configures an OCI Store.
type Options struct {
	// Auth overrides the default keychain lookup.
	Auth Authenticator
	// MaxSize caps the serialized payload size CanStore accepts; zero
	// means unlimited.
	MaxSize int64
	// CompressionLevel sets the zstd level for blob transfer.
	CompressionLevel compression.Level
}

// Option is a functional option for configuring New.
type Option func(*Options)

// WithAuth sets custom registry authentication.
func WithAuth(auth Authenticator) Option {
	return func(o *Options) { o.Auth = auth }
}

// WithMaxSize caps the payload size this store accepts.
func WithMaxSize(n int64) Option {
	return func(o *Options) { o.MaxSize = n }
}

// WithCompressionLevel sets the zstd level for blob transfer.
func WithCompressionLevel(level compression.Level) Option {
	return func(o *Options) { o.CompressionLevel = level }
}

// New creates a Store pushing to the given repository
// (e.g. "ttl.sh/myorg/payloads").
func New(repository string, opts ...Option) (*Store, error) {
	o := &Options{CompressionLevel: compression.Default}
	for _, opt := range opts {
		opt(o)
	}

	repo, err := name.NewRepository(repository)
	if err != nil {
		return nil, fmt.Errorf("invalid repository %q: %w", repository, err)
	}
	codec, err := compression.New(o.CompressionLevel, true)
	if err != nil {
		return nil, fmt.Errorf("create codec: %w", err)
	}

	return &Store{repo: repo, auth: o.Auth, maxSize: o.MaxSize, codec: codec}, nil
}

func (s *Store) Name() string { return Name }

// CanStore accepts any payload within the configured size cap.
func (s *Store) CanStore(args offload.StoreArgs) bool {
	return s.maxSize == 0 || args.ByteSize <= s.maxSize
}

// Store uploads the payload as a registry blob and returns its digest token.
func (s *Store) Store(ctx context.Context, args offload.StoreArgs) (any, error) {
	data, err := json.Marshal(args.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	layer := newPayloadLayer(s.codec.Encode(data))
	digest, err := layer.Digest()
	if err != nil {
		return nil, fmt.Errorf("digest payload: %w", err)
	}

	_, err = retry(ctx, 3, func() (struct{}, error) {
		return struct{}{}, remote.WriteLayer(s.repo, layer, s.remoteOptions(ctx)...)
	})
	if err != nil {
		return nil, fmt.Errorf("push blob to %s: %w", s.repo.String(), err)
	}

	return Token{Store: Name, Repository: s.repo.String(), Digest: digest.String()}, nil
}

// CanLoad claims tokens carrying this store's discriminator. A claimed
// token missing its repository or digest is an error, not a miss.
func (s *Store) CanLoad(args offload.LoadArgs) (bool, error) {
	tok, ok := decodeToken(args.Reference)
	if !ok || tok.Store != Name {
		return false, nil
	}
	if tok.Repository == "" || tok.Digest == "" {
		return false, fmt.Errorf("oci: token missing repository or digest")
	}
	return true, nil
}

// Load fetches the blob by digest and decodes it back into its JSON value.
// The token's own repository is used, so references minted against other
// repositories on reachable registries resolve too.
func (s *Store) Load(ctx context.Context, args offload.LoadArgs) (any, error) {
	tok, _ := decodeToken(args.Reference)

	ref, err := name.NewDigest(tok.Repository + "@" + tok.Digest)
	if err != nil {
		return nil, fmt.Errorf("oci: invalid token digest: %w", err)
	}

	layer, err := retry(ctx, 3, func() (io.ReadCloser, error) {
		l, err := remote.Layer(ref, s.remoteOptions(ctx)...)
		if err != nil {
			return nil, err
		}
		return l.Compressed()
	})
	if err != nil {
		return nil, fmt.Errorf("fetch blob %s: %w", tok.Digest, err)
	}

	stored, err := io.ReadAll(layer)
	if cerr := layer.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", tok.Digest, err)
	}

	data, err := s.codec.Decode(stored)
	if err != nil {
		return nil, fmt.Errorf("decode blob %s: %w", tok.Digest, err)
	}

	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode payload %s: %w", tok.Digest, err)
	}
	return payload, nil
}

func (s *Store) remoteOptions(ctx context.Context) []remote.Option {
	opts := []remote.Option{remote.WithContext(ctx)}
	if s.auth != nil {
		username, password, err := s.auth.Authenticate(s.repo.RegistryStr())
		if err == nil && username != "" {
			return append(opts, remote.WithAuth(&authn.Basic{
				Username: username,
				Password: password,
			}))
		}
	}
	return append(opts, remote.WithAuthFromKeychain(authn.DefaultKeychain))
}

func decodeToken(ref any) (Token, bool) {
	switch t := ref.(type) {
	case Token:
		return t, true
	case *Token:
		return *t, true
	case map[string]any:
		var tok Token
		if err := mapstructure.Decode(t, &tok); err != nil {
			return Token{}, false
		}
		return tok, tok.Store != ""
	}
	return Token{}, false
}

func retry[T any](ctx context.Context, maxAttempts int, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for i := range maxAttempts {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if i < maxAttempts-1 {
			delay := time.Duration(1<<i) * 500 * time.Millisecond // 500ms, 1s, 2s
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return zero, lastErr
}
