package oci

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/google/go-containerregistry/pkg/registry"
	"github.com/google/go-containerregistry/pkg/v1/types"

	"github.com/offloadkit/offload"
	"github.com/offloadkit/offload/internal/compression"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()

	srv := httptest.NewServer(registry.New())
	t.Cleanup(srv.Close)

	repo := strings.TrimPrefix(srv.URL, "http://") + "/payloads"
	s, err := New(repo, opts...)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return s
}

func storeArgs(t *testing.T, payload any) offload.StoreArgs {
	t.Helper()
	size, err := offload.ByteSize(payload)
	if err != nil {
		t.Fatalf("ByteSize returned error: %v", err)
	}
	return offload.StoreArgs{Payload: payload, ByteSize: size}
}

func TestStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	payload := map[string]any{
		"records": []any{map[string]any{"id": 1.0}, map[string]any{"id": 2.0}},
		"blob":    strings.Repeat("registry bound ", 100),
	}
	token, err := s.Store(ctx, storeArgs(t, payload))
	if err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	tok := token.(Token)
	if tok.Store != Name || !strings.HasPrefix(tok.Digest, "sha256:") {
		t.Fatalf("token = %+v, want oci sha256 token", tok)
	}

	ok, err := s.CanLoad(offload.LoadArgs{Reference: token})
	if err != nil || !ok {
		t.Fatalf("CanLoad = %v, %v, want true, nil", ok, err)
	}
	got, err := s.Load(ctx, offload.LoadArgs{Reference: token})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !reflect.DeepEqual(got, payload) {
		t.Errorf("Load = %v, want %v", got, payload)
	}
}

func TestStore_LoadFromJSONRoundTrippedToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	token, err := s.Store(ctx, storeArgs(t, "payload"))
	if err != nil {
		t.Fatalf("Store returned error: %v", err)
	}
	wire, err := json.Marshal(token)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	var mapToken any
	if err := json.Unmarshal(wire, &mapToken); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}

	got, err := s.Load(ctx, offload.LoadArgs{Reference: mapToken})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got != "payload" {
		t.Errorf("Load = %v, want payload", got)
	}
}

func TestStore_CanLoad(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name    string
		ref     any
		want    bool
		wantErr bool
	}{
		{"own token", Token{Store: Name, Repository: "r", Digest: "sha256:abc"}, true, false},
		{"foreign discriminator", map[string]any{"store": "local", "key": "sha256:abc"}, false, false},
		{"string token", "data:application/json;base64,e30=", false, false},
		{"missing digest", map[string]any{"store": Name, "repository": "r"}, false, true},
		{"missing repository", map[string]any{"store": Name, "digest": "sha256:abc"}, false, true},
	}

	for _, tt := range tests {
		got, err := s.CanLoad(offload.LoadArgs{Reference: tt.ref})
		if got != tt.want {
			t.Errorf("%s: CanLoad = %v, want %v", tt.name, got, tt.want)
		}
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: CanLoad error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestStore_CanStoreSizeCap(t *testing.T) {
	s := newTestStore(t, WithMaxSize(offload.SizeLambdaSync))

	if !s.CanStore(offload.StoreArgs{ByteSize: offload.SizeLambdaSync}) {
		t.Error("CanStore rejected payload at the cap")
	}
	if s.CanStore(offload.StoreArgs{ByteSize: offload.SizeLambdaSync + 1}) {
		t.Error("CanStore accepted payload over the cap")
	}
}

func TestPayloadLayer_MediaTypeMatchesEncoding(t *testing.T) {
	codec, err := compression.New(compression.Default, true)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer codec.Close()

	compressed := newPayloadLayer(codec.Encode(bytes.Repeat([]byte("payload data "), 100)))
	if mt, err := compressed.MediaType(); err != nil || mt != types.OCILayerZStd {
		t.Errorf("MediaType = %v, %v, want %v for a zstd frame", mt, err, types.OCILayerZStd)
	}

	// Small payloads skip compression and travel as raw bytes.
	raw := newPayloadLayer(codec.Encode([]byte("tiny")))
	if mt, err := raw.MediaType(); err != nil || mt != types.OCIUncompressedLayer {
		t.Errorf("MediaType = %v, %v, want %v for raw bytes", mt, err, types.OCIUncompressedLayer)
	}
}

func TestStore_LoadInvalidDigest(t *testing.T) {
	s := newTestStore(t)
	ref := Token{Store: Name, Repository: "example.com/repo", Digest: "not-a-digest"}

	if _, err := s.Load(context.Background(), offload.LoadArgs{Reference: ref}); err == nil {
		t.Error("Load of invalid digest succeeded")
	}
}
