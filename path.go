package offload

import (
	"fmt"
	"strconv"
	"strings"
)

type segmentKind int

const (
	segKey segmentKind = iota
	segIndex
	segWildcard
)

// Segment is a single hop in a Path: a property name, an array index, or a
// single-level wildcard over an array.
type Segment struct {
	kind  segmentKind
	key   string
	index int
}

// Key returns a property-name segment.
func Key(name string) Segment { return Segment{kind: segKey, key: name} }

// Index returns an array-index segment.
func Index(i int) Segment { return Segment{kind: segIndex, index: i} }

// Wildcard returns a segment matching every element of the array at its position.
func Wildcard() Segment { return Segment{kind: segWildcard} }

// Path addresses one location in a decoded JSON tree. The empty path is the
// root itself.
type Path []Segment

// ParsePath parses the dotted-and-bracket path grammar: segments separated
// by ".", each a property name optionally followed by "[n]" or "[*]"
// suffixes. A bare "*" segment is equivalent to "[*]". The empty string is
// the root path.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return Path{}, nil
	}

	var p Path
	for _, part := range strings.Split(s, ".") {
		if part == "" {
			return nil, fmt.Errorf("path %q: empty segment", s)
		}
		if part == "*" {
			p = append(p, Wildcard())
			continue
		}

		name, brackets, _ := strings.Cut(part, "[")
		if name != "" {
			if strings.ContainsAny(name, "]*") {
				return nil, fmt.Errorf("path %q: invalid segment %q", s, part)
			}
			p = append(p, Key(name))
		}
		if brackets == "" && strings.Contains(part, "[") {
			return nil, fmt.Errorf("path %q: unclosed bracket in %q", s, part)
		}

		for brackets != "" {
			inner, rest, ok := strings.Cut(brackets, "]")
			if !ok {
				return nil, fmt.Errorf("path %q: unclosed bracket in %q", s, part)
			}
			switch {
			case inner == "*":
				p = append(p, Wildcard())
			default:
				i, err := strconv.Atoi(inner)
				if err != nil || i < 0 {
					return nil, fmt.Errorf("path %q: invalid index %q", s, inner)
				}
				p = append(p, Index(i))
			}
			switch {
			case rest == "":
				brackets = ""
			case strings.HasPrefix(rest, "["):
				brackets = rest[1:]
			default:
				return nil, fmt.Errorf("path %q: trailing %q after bracket", s, rest)
			}
		}
	}
	return p, nil
}

// String renders the canonical form of the path. The root path renders as "".
func (p Path) String() string {
	var b strings.Builder
	for i, seg := range p {
		switch seg.kind {
		case segKey:
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(seg.key)
		case segIndex:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(seg.index))
			b.WriteByte(']')
		case segWildcard:
			b.WriteString("[*]")
		}
	}
	return b.String()
}

// wildcardPrefix returns the concrete segments before the first wildcard,
// or the whole path when there is none.
func (p Path) wildcardPrefix() Path {
	for i, seg := range p {
		if seg.kind == segWildcard {
			return p[:i]
		}
	}
	return p
}

func (p Path) clone() Path {
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// Get returns the value at a concrete (wildcard-free) path. The second
// return is false when any hop along the way is absent; an absent location
// is not an error.
func Get(root any, p Path) (any, bool) {
	cur := root
	for _, seg := range p {
		switch seg.kind {
		case segKey:
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			cur, ok = m[seg.key]
			if !ok {
				return nil, false
			}
		case segIndex:
			s, ok := cur.([]any)
			if !ok || seg.index >= len(s) {
				return nil, false
			}
			cur = s[seg.index]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Set writes v at a concrete path, creating intermediate containers as
// needed: maps for name segments, slices (grown with nils) for index
// segments. The empty path replaces the root, so callers must use the
// returned value. Existing maps are mutated in place; slices may be
// reallocated when grown.
func Set(root any, p Path, v any) any {
	if len(p) == 0 {
		return v
	}

	seg := p[0]
	switch seg.kind {
	case segKey:
		m, ok := root.(map[string]any)
		if !ok || m == nil {
			m = make(map[string]any)
		}
		m[seg.key] = Set(m[seg.key], p[1:], v)
		return m
	case segIndex:
		s, ok := root.([]any)
		if !ok {
			s = nil
		}
		for len(s) <= seg.index {
			s = append(s, nil)
		}
		s[seg.index] = Set(s[seg.index], p[1:], v)
		return s
	default:
		// Wildcards address zero-or-more locations; Set requires exactly one.
		return root
	}
}

// Expand resolves a selector into the ordered list of concrete paths it
// addresses in root. A wildcard-free selector yields exactly itself,
// whether or not a value currently exists there. Each wildcard expands over
// the existing indices of the array at its position, ascending; an absent,
// empty, or non-array location yields zero paths for that branch.
func Expand(root any, p Path) []Path {
	wc := -1
	for i, seg := range p {
		if seg.kind == segWildcard {
			wc = i
			break
		}
	}
	if wc < 0 {
		return []Path{p.clone()}
	}

	val, ok := Get(root, p[:wc])
	if !ok {
		return nil
	}
	arr, ok := val.([]any)
	if !ok {
		return nil
	}

	var out []Path
	for i := range arr {
		concrete := append(p[:wc:wc].clone(), Index(i))
		for _, tail := range Expand(arr[i], p[wc+1:]) {
			out = append(out, append(concrete.clone(), tail...))
		}
	}
	return out
}
