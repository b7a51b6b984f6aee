package offload

import (
	"errors"
	"strings"
	"testing"
)

func TestByteSize(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int64
	}{
		{"empty string", "", 0},
		{"ascii string", "hello", 5},
		{"multibyte string", "héllo", 6}, // UTF-8 bytes, not runes
		{"long string", strings.Repeat("x", 1024), 1024},
		{"nil", nil, 4},  // null
		{"bool", true, 4},
		{"number", 42.0, 2},
		{"object", map[string]any{"a": 1}, 7},  // {"a":1}
		{"array", []any{1, 2, 3}, 7},           // [1,2,3]
		{"empty object", map[string]any{}, 2},
	}

	for _, tt := range tests {
		got, err := ByteSize(tt.in)
		if err != nil {
			t.Errorf("%s: ByteSize returned error: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: ByteSize = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestByteSize_UnsupportedType(t *testing.T) {
	for _, in := range []any{make(chan int), func() {}, map[string]any{"f": func() {}}} {
		if _, err := ByteSize(in); !errors.Is(err, ErrUnsupportedType) {
			t.Errorf("ByteSize(%T) error = %v, want ErrUnsupportedType", in, err)
		}
	}
}
