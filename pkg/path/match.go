package path

import "github.com/sandrolain/gomapper/pkg/types"

// MatchPattern reports whether the concrete path matches pattern. Wildcard
// segments of the pattern match any single segment; keys and indexes match
// when their written forms are equal.
func MatchPattern(pattern, concrete types.Path) bool {
	if pattern.Len() != concrete.Len() {
		return false
	}
	for i := 0; i < pattern.Len(); i++ {
		ps, cs := pattern.At(i), concrete.At(i)
		if ps.Kind == types.SegmentWildcard {
			continue
		}
		if cs.Kind == types.SegmentWildcard || ps.Key != cs.Key {
			return false
		}
	}
	return true
}

// Substitute replaces the wildcards of p, in order, with segs. Wildcards
// beyond len(segs) are kept.
func Substitute(p types.Path, segs []types.Segment) types.Path {
	out := make([]types.Segment, 0, p.Len())
	n := 0
	for _, s := range p.Segments() {
		if s.Kind == types.SegmentWildcard && n < len(segs) {
			out = append(out, segs[n])
			n++
			continue
		}
		out = append(out, s)
	}
	return types.NewPath(out...)
}
