package local

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/offloadkit/offload"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := New(t.TempDir(), opts...)
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

	payload := map[string]any{"items": []any{"a", "b"}, "n": 3.0}
	token, err := s.Store(ctx, storeArgs(t, payload))
	if err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	tok := token.(Token)
	if tok.Store != Name || !strings.HasPrefix(tok.Key, "sha256:") {
		t.Fatalf("token = %+v, want local sha256 token", tok)
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
	// Tokens travel inside payloads and come back as plain maps.
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

	ok, err := s.CanLoad(offload.LoadArgs{Reference: mapToken})
	if err != nil || !ok {
		t.Fatalf("CanLoad(map token) = %v, %v, want true, nil", ok, err)
	}
	got, err := s.Load(ctx, offload.LoadArgs{Reference: mapToken})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got != "payload" {
		t.Errorf("Load = %v, want payload", got)
	}
}

func TestStore_StoreIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t1, err := s.Store(ctx, storeArgs(t, "same"))
	if err != nil {
		t.Fatalf("Store returned error: %v", err)
	}
	t2, err := s.Store(ctx, storeArgs(t, "same"))
	if err != nil {
		t.Fatalf("Store returned error: %v", err)
	}
	if t1 != t2 {
		t.Errorf("same payload produced different tokens: %v, %v", t1, t2)
	}
}

func TestStore_CanLoadRejectsForeignTokens(t *testing.T) {
	s := newTestStore(t)

	for _, ref := range []any{
		"not a token",
		map[string]any{"store": "oci", "digest": "sha256:abc"},
		map[string]any{"bucket": "b", "key": "k"},
		nil,
		42.0,
	} {
		ok, err := s.CanLoad(offload.LoadArgs{Reference: ref})
		if ok || err != nil {
			t.Errorf("CanLoad(%v) = %v, %v, want false, nil", ref, ok, err)
		}
	}
}

func TestStore_CanLoadFailsOnMalformedOwnToken(t *testing.T) {
	s := newTestStore(t)

	for _, ref := range []any{
		map[string]any{"store": Name},
		map[string]any{"store": Name, "key": ""},
		map[string]any{"store": Name, "key": "md5:abc"},
		map[string]any{"store": Name, "key": "sha256:"},
	} {
		if _, err := s.CanLoad(offload.LoadArgs{Reference: ref}); err == nil {
			t.Errorf("CanLoad(%v) succeeded, want malformed-token error", ref)
		}
	}
}

func TestStore_LoadMissingObject(t *testing.T) {
	s := newTestStore(t)
	ref := Token{Store: Name, Key: "sha256:" + strings.Repeat("ab", 32)}

	if _, err := s.Load(context.Background(), offload.LoadArgs{Reference: ref}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load error = %v, want ErrNotFound", err)
	}
}

func TestStore_CanStoreSizeCap(t *testing.T) {
	s := newTestStore(t, WithMaxSize(100))

	if !s.CanStore(offload.StoreArgs{Payload: "x", ByteSize: 100}) {
		t.Error("CanStore rejected payload at the cap")
	}
	if s.CanStore(offload.StoreArgs{Payload: "x", ByteSize: 101}) {
		t.Error("CanStore accepted payload over the cap")
	}

	unlimited := newTestStore(t)
	if !unlimited.CanStore(offload.StoreArgs{Payload: "x", ByteSize: 1 << 30}) {
		t.Error("CanStore with no cap rejected a payload")
	}
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	token, err := s.Store(ctx, storeArgs(t, map[string]any{"big": true}))
	if err != nil {
		t.Fatalf("Store returned error: %v", err)
	}
	args := offload.LoadArgs{Reference: token}

	if !s.CanDelete(args) {
		t.Fatal("CanDelete = false for own token")
	}
	if err := s.Delete(ctx, args); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := s.Load(ctx, args); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load after delete error = %v, want ErrNotFound", err)
	}

	// Deleting again is a no-op.
	if err := s.Delete(ctx, args); err != nil {
		t.Fatalf("second Delete returned error: %v", err)
	}
}

func TestStore_ImplementsCapabilities(t *testing.T) {
	var s any = newTestStore(t)
	if _, ok := s.(offload.Store); !ok {
		t.Error("Store does not implement offload.Store")
	}
	if _, ok := s.(offload.Deleter); !ok {
		t.Error("Store does not implement offload.Deleter")
	}
}
