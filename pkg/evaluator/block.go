package evaluator

import (
	"context"
	"log/slog"

	"github.com/davecgh/go-spew/spew"

	"github.com/sandrolain/gomapper/pkg/filters"
	"github.com/sandrolain/gomapper/pkg/path"
	"github.com/sandrolain/gomapper/pkg/query"
	"github.com/sandrolain/gomapper/pkg/types"
)

// rows binds the wildcard prefixes referenced by b and runs its stages.
func (e *Engine) rows(ctx context.Context, b *types.OperatorBlock, sc *Scope, at types.Path) ([]query.Row, error) {
	prefixes := referencedPrefixes(sc, append(b.Item.DirectExpressions(), b.StageExpressions()...))
	if len(prefixes) == 0 {
		prefixes = referencedPrefixes(sc, b.Expressions())
	}
	if len(prefixes) == 0 {
		return nil, types.Errorf(types.ErrNoWildcard, "operator block references no unbound wildcard").WithPath(at.String())
	}

	matches := make([][]path.Match, len(prefixes))
	for i, p := range prefixes {
		m, err := sc.Resolve(p)
		if err != nil {
			return nil, err
		}
		matches[i] = m
	}
	if e.opts.StrictZip {
		for i := 1; i < len(matches); i++ {
			if len(matches[i]) != len(matches[0]) {
				return nil, types.Errorf(types.ErrZipLength,
					"%s has %d elements but %s has %d",
					prefixes[0], len(matches[0]), prefixes[i], len(matches[i])).WithPath(at.String())
			}
		}
	}

	rows := query.Rows(prefixes, matches)
	if !b.HasStages() {
		return rows, nil
	}

	env := query.Env{
		Resolver: e.resolver(sc),
		Operator: e.reg.Operator,
		Sources:  sc.Root(),
		Observe: func(st types.Stage, in, out int) {
			e.opts.Metrics.ObserveStage(st.Label(), in, out)
			e.logger.Debug("stage applied",
				slog.String("path", at.String()),
				slog.String("stage", st.Label()),
				slog.Int("in", in),
				slog.Int("out", out))
		},
	}
	if e.opts.Debug {
		e.logger.Debug("row set", slog.String("path", at.String()), slog.String("dump", spew.Sdump(rows)))
	}
	out, err := query.Run(ctx, rows, b.Stages, env)
	if err != nil {
		return nil, err
	}
	if e.opts.Debug {
		e.logger.Debug("row set after stages", slog.String("path", at.String()), slog.String("dump", spew.Sdump(out)))
	}
	return out, nil
}

// referencedPrefixes returns, in first-use order, the prefixes of exprs up
// to their first wildcard not bound by sc.
func referencedPrefixes(sc *Scope, exprs []*types.Expr) []types.Path {
	var out []types.Path
	seen := make(map[string]bool)
	for _, expr := range exprs {
		p, ok := sc.UnboundPrefix(expr.Path)
		if !ok {
			continue
		}
		key := p.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

// resolver evaluates stage operands. Expression operands see the row
// bindings on top of the enclosing scope and run their filter chain.
func (e *Engine) resolver(sc *Scope) query.Resolver {
	return query.ResolverFunc(func(ctx context.Context, op types.Operand, row query.Row) (types.Value, error) {
		switch op.Kind {
		case types.OperandLiteral:
			return op.Literal, nil
		case types.OperandField:
			return query.ResolveField(op.Field, row)
		}
		v, err := sc.Child(row).Get(op.Expr.Path)
		if err != nil {
			return types.Null(), err
		}
		if !op.Expr.HasFilters() {
			return v, nil
		}
		return filters.Chain(ctx, v, op.Expr.Filters, e.reg.Filter)
	})
}
