package mapper

import (
	"context"
	"log/slog"
	"time"

	"github.com/sandrolain/gomapper/pkg/metrics"
	"github.com/sandrolain/gomapper/pkg/path"
	"github.com/sandrolain/gomapper/pkg/types"
)

// binding pairs a target key pattern with the source path that fed it.
// Wildcards of target stand for operator block positions; they bind the
// wildcards of source in order.
type binding struct {
	target types.Path
	source types.Path
}

// Reverse rebuilds a source shape from data produced by tpl.
//
// Only filter-free expressions outside operator blocks with stages are
// invertible; literals, filtered values and filtered or reshaped block
// output are ignored. Keys missing from data are not written.
func (m *Mapper) Reverse(ctx context.Context, tpl *types.Template, data types.Value) (types.Value, error) {
	start := time.Now()
	out, err := m.reverse(ctx, tpl, data)
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeError
		m.opts.Metrics.ObserveError(err)
	}
	m.opts.Metrics.ObservePass(DirectionReverse, outcome, time.Since(start))
	return out, err
}

func (m *Mapper) reverse(ctx context.Context, tpl *types.Template, data types.Value) (types.Value, error) {
	if tpl == nil || tpl.Root() == nil {
		return types.Null(), types.Errorf(types.ErrInvalidConfig, "template is nil")
	}
	var bindings []binding
	collectBindings(tpl.Root(), types.Path{}, &bindings)

	out := types.Null()
	for _, b := range bindings {
		if err := ctx.Err(); err != nil {
			return types.Null(), err
		}
		matches, err := path.Resolve(data, b.target)
		if err != nil {
			return types.Null(), err
		}
		for _, mt := range matches {
			src := path.Substitute(b.source, boundSegments(b.target, mt.Path))
			if err := path.Set(&out, src, mt.Value.Clone()); err != nil {
				return types.Null(), err
			}
		}
	}
	m.logger.Debug("reverse pass finished", slog.Int("bindings", len(bindings)))
	return out, nil
}

func collectBindings(n *types.Node, at types.Path, out *[]binding) {
	switch n.Kind {
	case types.NodeExpression:
		if !n.Expr.HasFilters() {
			*out = append(*out, binding{target: at, source: n.Expr.Path})
		}
	case types.NodeMap:
		for _, f := range n.Fields {
			collectBindings(f.Node, at.Append(types.KeySegment(f.Key)), out)
		}
	case types.NodeList:
		for i, item := range n.Items {
			collectBindings(item, at.Append(types.IndexSegment(i)), out)
		}
	case types.NodeOperator:
		if !n.Block.HasStages() {
			collectBindings(n.Block.Item, at.Append(types.WildcardSegment()), out)
		}
	}
}

// boundSegments returns the segments of concrete at the wildcard positions
// of pattern. They keep the kind the data used: list positions stay
// indexes and map keys stay keys, digits included.
func boundSegments(pattern, concrete types.Path) []types.Segment {
	var segs []types.Segment
	for i := 0; i < pattern.Len(); i++ {
		if pattern.At(i).Kind == types.SegmentWildcard {
			segs = append(segs, concrete.At(i))
		}
	}
	return segs
}
