package evaluator

import (
	"github.com/sandrolain/gomapper/pkg/path"
	"github.com/sandrolain/gomapper/pkg/query"
	"github.com/sandrolain/gomapper/pkg/types"
)

// Scope holds the root data and the rows bound by enclosing operator
// blocks, innermost first through the parent chain.
type Scope struct {
	root   types.Value
	parent *Scope
	row    *query.Row
	depth  int
	strict bool
}

// NewScope creates the root scope of a pass.
func NewScope(root types.Value, strict bool) *Scope {
	return &Scope{root: root, strict: strict}
}

// Child returns a scope binding row.
func (s *Scope) Child(row query.Row) *Scope {
	return &Scope{
		root:   s.root,
		parent: s,
		row:    &row,
		depth:  s.depth + 1,
		strict: s.strict,
	}
}

// Root returns the root data.
func (s *Scope) Root() types.Value { return s.root }

// Depth returns the number of enclosing rows.
func (s *Scope) Depth() int { return s.depth }

// Row returns the row bound by this scope, if any.
func (s *Scope) Row() (query.Row, bool) {
	if s.row == nil {
		return query.Row{}, false
	}
	return *s.row, true
}

// binding finds the innermost row binding a prefix of p.
func (s *Scope) binding(p types.Path) (*query.Row, int) {
	for sc := s; sc != nil; sc = sc.parent {
		if sc.row == nil {
			continue
		}
		if i := sc.row.Binding(p); i >= 0 {
			return sc.row, i
		}
	}
	return nil, -1
}

// BoundLen returns the length of the longest prefix of p bound in scope.
func (s *Scope) BoundLen(p types.Path) int {
	row, i := s.binding(p)
	if row == nil {
		return 0
	}
	return row.Prefixes[i].Len()
}

// UnboundPrefix returns p up to and including its first wildcard not bound
// by the scope.
func (s *Scope) UnboundPrefix(p types.Path) (types.Path, bool) {
	for i := s.BoundLen(p); i < p.Len(); i++ {
		if p.At(i).Kind == types.SegmentWildcard {
			return p.Prefix(i + 1), true
		}
	}
	return types.Path{}, false
}

func (s *Scope) pathOptions() []path.Option {
	if s.strict {
		return []path.Option{path.WithStrict(true)}
	}
	return nil
}

// Get reads p. Bound prefixes are read from the row elements; unbound
// wildcards yield a list.
func (s *Scope) Get(p types.Path) (types.Value, error) {
	if row, i := s.binding(p); row != nil {
		rest := p.Suffix(row.Prefixes[i].Len())
		if rest.IsEmpty() {
			return row.Elements[i], nil
		}
		return path.Get(row.Elements[i], rest, s.pathOptions()...)
	}
	return path.Get(s.root, p, s.pathOptions()...)
}

// Resolve expands p into matches with concrete paths from the root.
func (s *Scope) Resolve(p types.Path) ([]path.Match, error) {
	row, i := s.binding(p)
	if row == nil {
		return path.Resolve(s.root, p, s.pathOptions()...)
	}
	matches, err := path.Resolve(row.Elements[i], p.Suffix(row.Prefixes[i].Len()), s.pathOptions()...)
	if err != nil {
		return nil, err
	}
	base := row.Paths[i]
	for j := range matches {
		matches[j].Path = base.Concat(matches[j].Path)
	}
	return matches, nil
}

// Concrete replaces the bound wildcards of p by the positions they took.
func (s *Scope) Concrete(p types.Path) types.Path {
	if row, _ := s.binding(p); row != nil {
		return row.Concrete(p)
	}
	return p
}
