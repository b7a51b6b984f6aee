package offload

import "sort"

// MarkerKey is the reserved property name identifying a reference to an
// offloaded payload. It must match exactly between the configuration that
// wrote a payload and every configuration that reads it.
const MarkerKey = "@offload-ref"

// FoundReference is one reference occurrence located by FindReferences.
type FoundReference struct {
	Token any
	Path  Path
}

// IsReference reports whether v is a reference wrapper. Any map carrying
// MarkerKey counts; extra keys are tolerated but not expected.
func IsReference(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	_, ok = m[MarkerKey]
	return ok
}

// NewReference wraps an opaque store token into a reference.
func NewReference(token any) map[string]any {
	return map[string]any{MarkerKey: token}
}

// TokenOf unwraps a reference, returning the token it carries.
func TokenOf(v any) (any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	token, ok := m[MarkerKey]
	return token, ok
}

// FindReferences walks v depth-first and returns every reference occurrence
// with the path addressing it, in visit order: pre-order, map keys sorted,
// slice indices ascending. Tokens are opaque and never scanned themselves,
// so a token that happens to contain MarkerKey is not a nested reference.
func FindReferences(v any) []FoundReference {
	var found []FoundReference
	scanReferences(v, nil, &found)
	return found
}

func scanReferences(v any, p Path, found *[]FoundReference) {
	switch val := v.(type) {
	case map[string]any:
		if token, ok := val[MarkerKey]; ok {
			*found = append(*found, FoundReference{Token: token, Path: p.clone()})
			return
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			scanReferences(val[k], append(p, Key(k)), found)
		}
	case []any:
		for i, elem := range val {
			scanReferences(elem, append(p, Index(i)), found)
		}
	}
}
