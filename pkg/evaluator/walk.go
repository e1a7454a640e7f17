package evaluator

import (
	"context"
	"strconv"

	"github.com/sandrolain/gomapper/pkg/filters"
	"github.com/sandrolain/gomapper/pkg/path"
	"github.com/sandrolain/gomapper/pkg/query"
	"github.com/sandrolain/gomapper/pkg/types"
)

// Site locates a value produced by the walk.
type Site struct {
	// Path is the target key path, with list positions resolved.
	Path types.Path
	// Expr is the expression producing the value; nil for literals and
	// containers.
	Expr *types.Expr
	// Source is the concrete source path read by Expr.
	Source types.Path
}

// SourcePath returns the concrete source path as a string, or "".
func (s Site) SourcePath() string {
	if s.Expr == nil {
		return ""
	}
	return s.Source.String()
}

// Emitter receives the leaves of a walk.
//
// Before sees the resolved value ahead of the filter chain and After the
// transformed one; either can replace it or drop the key by returning
// false. Write stores a value at its site. Recover decides what happens to
// an error raised at a site: returning nil omits the key and continues,
// returning an error aborts the walk.
type Emitter interface {
	Before(ctx context.Context, site Site, v types.Value) (types.Value, bool, error)
	After(ctx context.Context, site Site, v types.Value) (types.Value, bool, error)
	Write(site Site, v types.Value) error
	Recover(site Site, err error) error
}

// WalkOptions configures a walk.
type WalkOptions struct {
	// Reindex numbers operator block output 0..n-1. When false, each item
	// keeps the key its primary element was bound under.
	Reindex bool
}

// TargetEmitter writes every value into a target through the mutator and
// aborts on the first error.
type TargetEmitter struct {
	target types.Value
}

// NewTargetEmitter returns an emitter writing into target.
func NewTargetEmitter(target types.Value) *TargetEmitter {
	return &TargetEmitter{target: target}
}

// Target returns the value built so far.
func (t *TargetEmitter) Target() types.Value { return t.target }

// Before implements Emitter.
func (t *TargetEmitter) Before(_ context.Context, _ Site, v types.Value) (types.Value, bool, error) {
	return v, true, nil
}

// After implements Emitter.
func (t *TargetEmitter) After(_ context.Context, _ Site, v types.Value) (types.Value, bool, error) {
	return v, true, nil
}

// Write implements Emitter.
func (t *TargetEmitter) Write(site Site, v types.Value) error {
	return path.Set(&t.target, site.Path, v)
}

// Recover implements Emitter.
func (t *TargetEmitter) Recover(_ Site, err error) error { return err }

// Walk evaluates tpl against root and hands every produced value to em.
func (e *Engine) Walk(ctx context.Context, tpl *types.Template, root types.Value, em Emitter, opts WalkOptions) error {
	if err := e.Validate(tpl); err != nil {
		return err
	}
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}
	w := &walker{
		eng:  e,
		em:   em,
		opts: opts,
	}
	return w.node(ctx, tpl.Root(), NewScope(root, e.opts.Strict), types.Path{})
}

type walker struct {
	eng    *Engine
	em     Emitter
	opts   WalkOptions
	writes int
	held   *[]heldWrite
}

func (w *walker) write(site Site, v types.Value) error {
	if w.held != nil {
		*w.held = append(*w.held, heldWrite{site: site, v: v})
		w.writes++
		return nil
	}
	if err := w.em.Write(site, v); err != nil {
		return w.em.Recover(site, err)
	}
	w.writes++
	return nil
}

func (w *walker) node(ctx context.Context, n *types.Node, sc *Scope, at types.Path) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch n.Kind {
	case types.NodeLiteral:
		return w.leaf(ctx, Site{Path: at}, n.Value)

	case types.NodeExpression:
		site := Site{Path: at, Expr: n.Expr, Source: sc.Concrete(n.Expr.Path)}
		raw, err := sc.Get(n.Expr.Path)
		if err != nil {
			return w.em.Recover(site, err)
		}
		return w.leaf(ctx, site, raw)

	case types.NodeMap:
		if len(n.Fields) == 0 {
			return w.write(Site{Path: at}, types.MapValue(types.NewMap()))
		}
		for _, f := range n.Fields {
			if err := w.node(ctx, f.Node, sc, at.Append(types.KeySegment(f.Key))); err != nil {
				return err
			}
		}
		return nil

	case types.NodeList:
		if len(n.Items) == 0 {
			return w.write(Site{Path: at}, types.ListValue(types.NewList()))
		}
		pos := 0
		for _, item := range n.Items {
			before := w.writes
			if err := w.node(ctx, item, sc, at.Append(types.IndexSegment(pos))); err != nil {
				return err
			}
			if w.writes > before {
				pos++
			}
		}
		return nil

	case types.NodeOperator:
		return w.block(ctx, n.Block, sc, at)
	}
	return nil
}

// leaf runs a value through Before, the filter chain and After, then
// writes it.
func (w *walker) leaf(ctx context.Context, site Site, v types.Value) error {
	v, keep, err := w.em.Before(ctx, site, v)
	if err != nil {
		return w.em.Recover(site, err)
	}
	if !keep {
		return nil
	}
	if site.Expr != nil && site.Expr.HasFilters() {
		v, err = filters.Chain(ctx, v, site.Expr.Filters, w.eng.reg.Filter)
		if err != nil {
			return w.em.Recover(site, withSite(err, site))
		}
	}
	v, keep, err = w.em.After(ctx, site, v)
	if err != nil {
		return w.em.Recover(site, err)
	}
	if !keep {
		return nil
	}
	return w.write(site, v)
}

func (w *walker) block(ctx context.Context, b *types.OperatorBlock, sc *Scope, at types.Path) error {
	site := Site{Path: at}
	if limit := w.eng.opts.MaxDepth; limit > 0 && sc.Depth() >= limit {
		return w.em.Recover(site, types.Errorf(types.ErrDepthExceeded, "operator blocks nested deeper than %d", limit).WithPath(at.String()))
	}

	rows, err := w.eng.rows(ctx, b, sc, at)
	if err != nil {
		return w.em.Recover(site, withSite(err, site))
	}
	if len(rows) == 0 {
		return w.write(site, types.ListValue(types.NewList()))
	}

	if w.opts.Reindex && !mapKeyed(rows) {
		pos := 0
		for _, row := range rows {
			if err := ctx.Err(); err != nil {
				return err
			}
			before := w.writes
			if err := w.node(ctx, b.Item, sc.Child(row), at.Append(types.IndexSegment(pos))); err != nil {
				return err
			}
			if w.writes > before {
				pos++
			}
		}
		return nil
	}
	return w.keyedBlock(ctx, b, sc, at, rows)
}

// keyedBlock writes each row under the key its primary element was bound
// to. Writes are held back until every row ran: rows from a list whose
// surviving keys are still 0..n-1 in order are then written as a list,
// anything else as a map keyed by the original keys.
func (w *walker) keyedBlock(ctx context.Context, b *types.OperatorBlock, sc *Scope, at types.Path, rows []query.Row) error {
	outer := w.held
	var held []heldWrite
	w.held = &held
	var kept []string
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			w.held = outer
			return err
		}
		key := row.Key()
		before := w.writes
		if err := w.node(ctx, b.Item, sc.Child(row), at.Append(types.KeySegment(key))); err != nil {
			w.held = outer
			return err
		}
		if w.writes > before {
			kept = append(kept, key)
		}
	}
	w.held = outer

	asList := !mapKeyed(rows) && identityKeys(kept)
	depth := at.Len()
	for _, hw := range held {
		site := hw.site
		if asList {
			segs := site.Path.Segments()
			n, _ := strconv.Atoi(segs[depth].Key)
			segs[depth] = types.IndexSegment(n)
			site.Path = types.NewPath(segs...)
		}
		if err := w.write(site, hw.v); err != nil {
			return err
		}
	}
	return nil
}

// heldWrite is a write postponed until its operator block has decided
// how to key its items.
type heldWrite struct {
	site Site
	v    types.Value
}

func withSite(err error, site Site) error {
	if e, ok := err.(*types.Error); ok && e.Path == "" {
		return e.WithPath(site.Path.String())
	}
	return err
}

// identityKeys reports whether keys are the list positions 0..n-1 in
// order.
func identityKeys(keys []string) bool {
	for i, k := range keys {
		if k != strconv.Itoa(i) {
			return false
		}
	}
	return true
}

// mapKeyed reports whether every row is an ungrouped element bound from a
// map, so its key is a map key rather than a list position.
func mapKeyed(rows []query.Row) bool {
	for _, r := range rows {
		if r.Members != nil || len(r.Paths) == 0 || r.Paths[0].IsEmpty() {
			return false
		}
		p := r.Paths[0]
		if p.At(p.Len()-1).Kind != types.SegmentKey {
			return false
		}
	}
	return len(rows) > 0
}
