// Package path resolves, reads and writes dotted paths over nested Values.
//
// Resolution expands wildcard segments depth-first and reports every
// matching concrete path together with the ordinal taken at each wildcard.
// The mutator creates missing intermediate containers and broadcasts
// wildcard writes.
//
// # Example
//
//	p := types.MustParsePath("orders.*.total")
//	matches, err := path.Resolve(data, p)
//	for _, m := range matches {
//	    fmt.Println(m.Path, m.Value)
//	}
package path

import (
	"strconv"

	"github.com/sandrolain/gomapper/pkg/types"
)

// Match is one result of a resolution.
type Match struct {
	// Path is the concrete path of the value, without wildcards.
	Path types.Path
	// Value is the value found at Path.
	Value types.Value
	// Positions holds the ordinal taken at each wildcard segment, in order.
	Positions []int
}

// Options configures resolution.
type Options struct {
	// Strict turns a missing key or index into a resolution error instead of
	// an empty result.
	Strict bool
}

// Option configures resolution behavior.
type Option func(*Options)

// WithStrict enables or disables strict resolution.
func WithStrict(strict bool) Option {
	return func(opts *Options) {
		opts.Strict = strict
	}
}

// Resolve returns every location of container addressed by p, in document
// order. Resolution never mutates container.
func Resolve(container types.Value, p types.Path, opts ...Option) ([]Match, error) {
	var options Options
	for _, opt := range opts {
		opt(&options)
	}
	r := resolver{path: p, strict: options.Strict}
	if err := r.walk(container, 0, make([]types.Segment, 0, p.Len()), nil); err != nil {
		return nil, err
	}
	return r.out, nil
}

type resolver struct {
	path   types.Path
	strict bool
	out    []Match
}

func (r *resolver) walk(cur types.Value, depth int, concrete []types.Segment, positions []int) error {
	if depth == r.path.Len() {
		r.out = append(r.out, Match{
			Path:      types.NewPath(concrete...),
			Value:     cur,
			Positions: append([]int(nil), positions...),
		})
		return nil
	}

	seg := r.path.At(depth)
	switch seg.Kind {
	case types.SegmentWildcard:
		switch cur.Kind() {
		case types.KindList:
			for i, item := range cur.List().Items() {
				if err := r.walk(item, depth+1, append(concrete, types.IndexSegment(i)), append(positions, i)); err != nil {
					return err
				}
			}
			return nil
		case types.KindMap:
			m := cur.Map()
			for i, k := range m.Keys() {
				item, _ := m.Get(k)
				if err := r.walk(item, depth+1, append(concrete, types.KeySegment(k)), append(positions, i)); err != nil {
					return err
				}
			}
			return nil
		}
		return r.missing(depth)
	default:
		child, next, ok := Child(cur, seg)
		if !ok {
			return r.missing(depth)
		}
		return r.walk(child, depth+1, append(concrete, next), positions)
	}
}

func (r *resolver) missing(depth int) error {
	if !r.strict {
		return nil
	}
	return types.Errorf(types.ErrPathNotFound, "no value at %q", r.path.Prefix(depth+1).String()).
		WithPath(r.path.String())
}

// Child returns the child of cur addressed by a key or index segment, along
// with the concrete segment that reached it. Index segments address lists
// (negative indexes count from the end) or map keys with the same decimal
// form.
func Child(cur types.Value, seg types.Segment) (types.Value, types.Segment, bool) {
	switch cur.Kind() {
	case types.KindMap:
		v, ok := cur.Map().Get(seg.Key)
		return v, types.KeySegment(seg.Key), ok
	case types.KindList:
		idx := seg.Index
		if seg.Kind == types.SegmentKey {
			i, err := strconv.Atoi(seg.Key)
			if err != nil {
				return types.Value{}, seg, false
			}
			idx = i
		}
		l := cur.List()
		if idx < 0 {
			idx += l.Len()
		}
		if idx < 0 || idx >= l.Len() {
			return types.Value{}, seg, false
		}
		return l.At(idx), types.IndexSegment(idx), true
	}
	return types.Value{}, seg, false
}
