package types

import (
	"strconv"
	"strings"
)

// PathSeparator separates path segments.
const PathSeparator = '.'

// WildcardToken is the segment text that denotes a wildcard.
const WildcardToken = "*"

// SegmentKind identifies what a path segment addresses.
type SegmentKind uint8

// Segment kinds.
const (
	// SegmentKey addresses a map entry by name.
	SegmentKey SegmentKind = iota
	// SegmentIndex addresses a list element, or a map entry whose key is
	// the decimal form of the index.
	SegmentIndex
	// SegmentWildcard addresses every child of a list or map.
	SegmentWildcard
)

// Segment is one step of a Path.
type Segment struct {
	Kind  SegmentKind
	Key   string
	Index int
}

// KeySegment returns a segment addressing the map entry k.
func KeySegment(k string) Segment { return Segment{Kind: SegmentKey, Key: k} }

// IndexSegment returns a segment addressing position i.
func IndexSegment(i int) Segment {
	return Segment{Kind: SegmentIndex, Key: strconv.Itoa(i), Index: i}
}

// WildcardSegment returns a wildcard segment.
func WildcardSegment() Segment { return Segment{Kind: SegmentWildcard, Key: WildcardToken} }

// String returns the segment as written in a path.
func (s Segment) String() string {
	switch s.Kind {
	case SegmentWildcard:
		return WildcardToken
	case SegmentIndex:
		return strconv.Itoa(s.Index)
	}
	return strings.ReplaceAll(s.Key, ".", `\.`)
}

// Path is an immutable sequence of segments addressing a location in nested
// data.
type Path struct {
	segments []Segment
}

// NewPath builds a path from segments.
func NewPath(segs ...Segment) Path {
	return Path{segments: append([]Segment(nil), segs...)}
}

// ParsePath parses a dotted path such as "orders.*.items.0.sku".
//
// A bare "*" segment is a wildcard and an all-digit segment (optionally
// negative) is an index. A backslash escapes a literal dot inside a key.
// Malformed paths yield a PathSyntax error.
func ParsePath(s string) (Path, error) {
	if strings.TrimSpace(s) == "" {
		return Path{}, NewError(ErrEmptyPath, "path is empty", -1).WithToken(s)
	}
	var (
		segs    []Segment
		cur     strings.Builder
		start   int
		escaped bool
	)
	flush := func(pos int) error {
		raw := cur.String()
		cur.Reset()
		if raw == "" {
			return NewError(ErrEmptySegment, "empty path segment", pos).WithToken(s)
		}
		segs = append(segs, classifySegment(raw, escaped))
		escaped = false
		return nil
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '\\' && i+1 < len(s) && s[i+1] == '.':
			cur.WriteByte('.')
			escaped = true
			i++
		case ch == PathSeparator:
			if err := flush(start); err != nil {
				return Path{}, err
			}
			start = i + 1
		case isIllegalPathChar(ch):
			return Path{}, NewError(ErrInvalidPathChar, "invalid character "+strconv.QuoteRune(rune(ch))+" in path", i).WithToken(s)
		default:
			cur.WriteByte(ch)
		}
	}
	if err := flush(start); err != nil {
		return Path{}, err
	}
	return Path{segments: segs}, nil
}

// MustParsePath is like ParsePath but panics on error.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

func isIllegalPathChar(ch byte) bool {
	switch ch {
	case ' ', '\t', '\n', '\r', '{', '}', '|', '[', ']':
		return true
	}
	return false
}

func classifySegment(raw string, escaped bool) Segment {
	if escaped {
		return KeySegment(raw)
	}
	if raw == WildcardToken {
		return WildcardSegment()
	}
	digits := raw
	if strings.HasPrefix(digits, "-") {
		digits = digits[1:]
	}
	if digits != "" && strings.Trim(digits, "0123456789") == "" {
		if i, err := strconv.Atoi(raw); err == nil {
			return Segment{Kind: SegmentIndex, Key: raw, Index: i}
		}
	}
	return KeySegment(raw)
}

// Len returns the number of segments.
func (p Path) Len() int { return len(p.segments) }

// IsEmpty reports whether p has no segments (the root).
func (p Path) IsEmpty() bool { return len(p.segments) == 0 }

// At returns the segment at i.
func (p Path) At(i int) Segment { return p.segments[i] }

// Segments returns a copy of the segments.
func (p Path) Segments() []Segment { return append([]Segment(nil), p.segments...) }

// HasWildcard reports whether any segment is a wildcard.
func (p Path) HasWildcard() bool { return p.FirstWildcard() >= 0 }

// FirstWildcard returns the index of the first wildcard segment, or -1.
func (p Path) FirstWildcard() int {
	for i, s := range p.segments {
		if s.Kind == SegmentWildcard {
			return i
		}
	}
	return -1
}

// Wildcards returns the number of wildcard segments.
func (p Path) Wildcards() int {
	n := 0
	for _, s := range p.segments {
		if s.Kind == SegmentWildcard {
			n++
		}
	}
	return n
}

// Prefix returns the first n segments.
func (p Path) Prefix(n int) Path {
	if n >= len(p.segments) {
		return p
	}
	if n < 0 {
		n = 0
	}
	return Path{segments: p.segments[:n:n]}
}

// Suffix returns the segments from n on.
func (p Path) Suffix(n int) Path {
	if n >= len(p.segments) {
		return Path{}
	}
	return Path{segments: p.segments[n:]}
}

// Append returns a new path with segs added.
func (p Path) Append(segs ...Segment) Path {
	out := make([]Segment, 0, len(p.segments)+len(segs))
	out = append(out, p.segments...)
	out = append(out, segs...)
	return Path{segments: out}
}

// Concat returns p followed by q.
func (p Path) Concat(q Path) Path { return p.Append(q.segments...) }

// HasPrefix reports whether q is a prefix of p, comparing segments by
// their written form.
func (p Path) HasPrefix(q Path) bool {
	if q.Len() > p.Len() {
		return false
	}
	for i, s := range q.segments {
		if !sameSegment(p.segments[i], s) {
			return false
		}
	}
	return true
}

// Equal reports whether both paths have the same segments.
func (p Path) Equal(q Path) bool {
	return p.Len() == q.Len() && p.HasPrefix(q)
}

func sameSegment(a, b Segment) bool {
	if a.Kind == SegmentWildcard || b.Kind == SegmentWildcard {
		return a.Kind == b.Kind
	}
	return a.Key == b.Key
}

// String returns the dotted form of p.
func (p Path) String() string {
	parts := make([]string, len(p.segments))
	for i, s := range p.segments {
		parts[i] = s.String()
	}
	return strings.Join(parts, string(PathSeparator))
}
