package offload

import (
	"encoding/json"
	"fmt"
	"math"
)

// Size thresholds for the MinSize gate, in bytes. SizeStateMachine and
// SizeLambdaSync are the payload ceilings of state machine transitions and
// synchronous function invocations.
const (
	SizeAlways       int64 = 0
	SizeStateMachine int64 = 256 * 1024
	SizeLambdaSync   int64 = 6 * 1024 * 1024
	SizeNever        int64 = math.MaxInt64
)

// ByteSize returns the serialized size of v in bytes: for strings the UTF-8
// length, for everything else the length of its JSON encoding. Values that
// cannot be JSON-encoded (functions, channels, cycles) fail with
// ErrUnsupportedType; that is a programming error, not a runtime condition.
func ByteSize(v any) (int64, error) {
	if s, ok := v.(string); ok {
		return int64(len(s)), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}
	return int64(len(data)), nil
}
