// Package local implements a filesystem-backed payload store. Payloads are
// stored content-addressed under a sharded directory layout, zstd-compressed
// at rest, with a small in-memory read cache.
//
// Token shape: {"store": "local", "key": "sha256:<hex>"}.
package local

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/offloadkit/offload"
	"github.com/offloadkit/offload/internal/compression"
)

// Name is the token discriminator for this store.
const Name = "local"

const keyPrefix = "sha256:"

// ErrNotFound is returned when a token addresses an object that does not
// exist on disk.
var ErrNotFound = errors.New("local: object not found")

// Token is the reference token this store produces and resolves. It also
// decodes from the map shape tokens take after a JSON round trip.
type Token struct {
	Store string `json:"store" mapstructure:"store"`
	Key   string `json:"key" mapstructure:"key"`
}

// Store is a filesystem payload store.
//
// Storage layout (git-style sharding):
//
//	dir/objects/ab/cdef123...
type Store struct {
	dir     string
	maxSize int64
	cache   *lruCache
	codec   *compression.Codec
}

// Options configures a local Store.
type Options struct {
	// MaxSize is the largest serialized payload CanStore accepts; zero
	// means unlimited.
	MaxSize int64
	// CacheEntries bounds the in-memory read cache.
	CacheEntries int
	// Compression toggles zstd for objects at rest.
	Compression      bool
	CompressionLevel compression.Level
}

// Option is a functional option for configuring New.
type Option func(*Options)

// WithMaxSize caps the payload size this store accepts.
func WithMaxSize(n int64) Option {
	return func(o *Options) { o.MaxSize = n }
}

// WithCacheEntries sets the read cache capacity.
func WithCacheEntries(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.CacheEntries = n
		}
	}
}

// WithCompression toggles zstd compression for stored objects.
func WithCompression(enabled bool) Option {
	return func(o *Options) { o.Compression = enabled }
}

// WithCompressionLevel sets the zstd level used when compression is on.
func WithCompressionLevel(level compression.Level) Option {
	return func(o *Options) { o.CompressionLevel = level }
}

// New creates a Store rooted at dir, creating the object directory as needed.
func New(dir string, opts ...Option) (*Store, error) {
	o := &Options{
		CacheEntries:     256,
		Compression:      true,
		CompressionLevel: compression.Default,
	}
	for _, opt := range opts {
		opt(o)
	}

	if err := os.MkdirAll(filepath.Join(dir, "objects"), 0o755); err != nil {
		return nil, fmt.Errorf("create object dir: %w", err)
	}

	codec, err := compression.New(o.CompressionLevel, o.Compression)
	if err != nil {
		return nil, fmt.Errorf("create codec: %w", err)
	}

	return &Store{
		dir:     dir,
		maxSize: o.MaxSize,
		cache:   newLRUCache(o.CacheEntries),
		codec:   codec,
	}, nil
}

func (s *Store) Name() string { return Name }

// CanStore accepts any payload within the configured size cap. Pure check,
// no I/O.
func (s *Store) CanStore(args offload.StoreArgs) bool {
	return s.maxSize == 0 || args.ByteSize <= s.maxSize
}

// Store writes the payload's JSON encoding content-addressed to disk and
// returns its token. Writing an object that already exists is a no-op.
func (s *Store) Store(ctx context.Context, args offload.StoreArgs) (any, error) {
	data, err := json.Marshal(args.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	sum := sha256.Sum256(data)
	key := keyPrefix + hex.EncodeToString(sum[:])

	path := s.objectPath(key)
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat object: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create shard dir: %w", err)
		}
		if err := os.WriteFile(path, s.codec.Encode(data), 0o644); err != nil {
			return nil, fmt.Errorf("write object: %w", err)
		}
	}

	s.cache.add(key, data)
	return Token{Store: Name, Key: key}, nil
}

// CanLoad claims tokens carrying this store's discriminator. A token with
// the right discriminator but a missing or malformed key is an error, not a
// miss: no other store can resolve it either.
func (s *Store) CanLoad(args offload.LoadArgs) (bool, error) {
	tok, ok := decodeToken(args.Reference)
	if !ok || tok.Store != Name {
		return false, nil
	}
	if !strings.HasPrefix(tok.Key, keyPrefix) || len(tok.Key) == len(keyPrefix) {
		return false, fmt.Errorf("local: malformed token key %q", tok.Key)
	}
	return true, nil
}

// Load reads the object back and decodes it into its JSON value.
func (s *Store) Load(ctx context.Context, args offload.LoadArgs) (any, error) {
	tok, _ := decodeToken(args.Reference)

	data, ok := s.cache.get(tok.Key)
	if !ok {
		stored, err := os.ReadFile(s.objectPath(tok.Key))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, tok.Key)
			}
			return nil, fmt.Errorf("read object: %w", err)
		}
		data, err = s.codec.Decode(stored)
		if err != nil {
			return nil, fmt.Errorf("decode object %s: %w", tok.Key, err)
		}
		s.cache.add(tok.Key, data)
	}

	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode payload %s: %w", tok.Key, err)
	}
	return payload, nil
}

// CanDelete mirrors CanLoad without the malformed-token escalation.
func (s *Store) CanDelete(args offload.LoadArgs) bool {
	tok, ok := decodeToken(args.Reference)
	return ok && tok.Store == Name && strings.HasPrefix(tok.Key, keyPrefix)
}

// Delete removes the object from disk and cache. Deleting a missing object
// is not an error.
func (s *Store) Delete(ctx context.Context, args offload.LoadArgs) error {
	tok, _ := decodeToken(args.Reference)
	s.cache.remove(tok.Key)
	if err := os.Remove(s.objectPath(tok.Key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

// objectPath shards objects by the first two hash characters.
func (s *Store) objectPath(key string) string {
	hash := strings.TrimPrefix(key, keyPrefix)
	if len(hash) < 2 {
		return filepath.Join(s.dir, "objects", hash)
	}
	return filepath.Join(s.dir, "objects", hash[:2], hash[2:])
}

// decodeToken accepts the typed token or the map shape it takes after a
// JSON round trip.
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
