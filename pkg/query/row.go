// Package query evaluates the stages of an operator block over a row set.
//
// A row is one lock-step binding of the wildcard prefixes referenced by a
// block: row i binds the i-th element of every prefix. Stages filter,
// reorder, group and slice the row set; they never mutate source data.
package query

import (
	"context"
	"strconv"

	"github.com/sandrolain/gomapper/pkg/path"
	"github.com/sandrolain/gomapper/pkg/types"
)

// Row is one element of a row set.
type Row struct {
	// Ordinal is the position of the row in the zipped input.
	Ordinal int
	// Prefixes are the wildcard prefixes bound by the row set, for example
	// "products.*". The slice is shared by every row of a set.
	Prefixes []types.Path
	// Elements holds the element bound to each prefix.
	Elements []types.Value
	// Paths holds the concrete path of each bound element.
	Paths []types.Path
	// Aggregates holds aggregate values of a group row; nil otherwise.
	Aggregates *types.Map
	// Members are the rows folded into a group row.
	Members []Row
}

// Primary returns the element bound to the first prefix.
func (r Row) Primary() types.Value {
	if len(r.Elements) == 0 {
		return types.Null()
	}
	return r.Elements[0]
}

// Aggregate returns the aggregate stored under alias.
func (r Row) Aggregate(alias string) (types.Value, bool) {
	return r.Aggregates.Get(alias)
}

// Binding returns the index of the longest prefix of p bound by the row.
func (r Row) Binding(p types.Path) int {
	best, bestLen := -1, -1
	for i, q := range r.Prefixes {
		if q.Len() > bestLen && p.HasPrefix(q) {
			best, bestLen = i, q.Len()
		}
	}
	return best
}

// Lookup resolves p through the row bindings. It reports false when no
// bound prefix covers p.
func (r Row) Lookup(p types.Path) (types.Value, bool, error) {
	i := r.Binding(p)
	if i < 0 {
		return types.Null(), false, nil
	}
	rest := p.Suffix(r.Prefixes[i].Len())
	if rest.IsEmpty() {
		return r.Elements[i], true, nil
	}
	v, err := path.Get(r.Elements[i], rest)
	return v, true, err
}

// Concrete substitutes the row bindings into p, replacing each bound
// wildcard by the ordinal it took.
func (r Row) Concrete(p types.Path) types.Path {
	i := r.Binding(p)
	if i < 0 {
		return p
	}
	return r.Paths[i].Concat(p.Suffix(r.Prefixes[i].Len()))
}

// Resolver evaluates operands against a row.
type Resolver interface {
	Resolve(ctx context.Context, op types.Operand, row Row) (types.Value, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, op types.Operand, row Row) (types.Value, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(ctx context.Context, op types.Operand, row Row) (types.Value, error) {
	return f(ctx, op, row)
}

// RowResolver resolves operands from the row alone: literals as is, field
// operands as aggregate aliases or paths below the primary element, and
// expression paths through the row bindings. Filter chains are not applied.
type RowResolver struct{}

// Resolve implements Resolver.
func (RowResolver) Resolve(_ context.Context, op types.Operand, row Row) (types.Value, error) {
	switch op.Kind {
	case types.OperandLiteral:
		return op.Literal, nil
	case types.OperandField:
		return ResolveField(op.Field, row)
	}
	v, _, err := row.Lookup(op.Expr.Path)
	return v, err
}

// ResolveField resolves a bare name: a single-segment aggregate alias wins,
// otherwise the path is read below the primary element.
func ResolveField(p types.Path, row Row) (types.Value, error) {
	if p.Len() == 1 {
		if v, ok := row.Aggregate(p.At(0).Key); ok {
			return v, nil
		}
	}
	return path.Get(row.Primary(), p)
}

// Rows builds a row set from per-prefix matches, zipping positionally up to
// the shortest sequence.
func Rows(prefixes []types.Path, matches [][]path.Match) []Row {
	n := -1
	for _, m := range matches {
		if n < 0 || len(m) < n {
			n = len(m)
		}
	}
	if n <= 0 {
		return nil
	}
	rows := make([]Row, n)
	for i := range rows {
		row := Row{
			Ordinal:  i,
			Prefixes: prefixes,
			Elements: make([]types.Value, len(matches)),
			Paths:    make([]types.Path, len(matches)),
		}
		for j, m := range matches {
			row.Elements[j] = m[i].Value
			row.Paths[j] = m[i].Path
		}
		rows[i] = row
	}
	return rows
}

// Key returns the key the primary element was bound under: its list index
// or map key.
func (r Row) Key() string {
	if len(r.Paths) == 0 || r.Paths[0].IsEmpty() {
		return strconv.Itoa(r.Ordinal)
	}
	p := r.Paths[0]
	return p.At(p.Len() - 1).Key
}
