package query

import (
	"context"
	"sort"

	"github.com/goccy/go-json"

	"github.com/sandrolain/gomapper/pkg/types"
)

// Match evaluates pred for row. AND and OR short-circuit left to right.
func Match(ctx context.Context, pred *types.Predicate, row Row, res Resolver) (bool, error) {
	if pred == nil {
		return true, nil
	}
	switch pred.Kind {
	case types.PredAnd:
		for _, c := range pred.Children {
			ok, err := Match(ctx, c, row, res)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case types.PredOr:
		for _, c := range pred.Children {
			ok, err := Match(ctx, c, row, res)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}

	left, err := res.Resolve(ctx, pred.Left, row)
	if err != nil {
		return false, err
	}
	if pred.Pattern != nil && (pred.Op == types.OpLike || pred.Op == types.OpNotLike) {
		if left.IsNull() {
			return false, nil
		}
		return MatchLike(pred.Pattern, left.Text(), pred.CaseSensitive) == (pred.Op == types.OpLike), nil
	}
	var right types.Value
	if !pred.Op.Unary() {
		right, err = res.Resolve(ctx, pred.Right, row)
		if err != nil {
			return false, err
		}
	}
	return Test(left, pred.Op, right, pred.CaseSensitive)
}

// Where keeps the rows matching pred, preserving their order.
func Where(ctx context.Context, rows []Row, pred *types.Predicate, res Resolver) ([]Row, error) {
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := Match(ctx, pred, row, res)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}

// OrderBy sorts rows by keys. The sort is stable, sort keys are evaluated
// once per row and nulls sort last in both directions.
func OrderBy(ctx context.Context, rows []Row, keys []types.OrderKey, res Resolver) ([]Row, error) {
	type keyed struct {
		row  Row
		keys []types.Value
	}
	items := make([]keyed, len(rows))
	for i, row := range rows {
		vals := make([]types.Value, len(keys))
		for j, k := range keys {
			v, err := res.Resolve(ctx, k.Operand, row)
			if err != nil {
				return nil, err
			}
			vals[j] = v
		}
		items[i] = keyed{row: row, keys: vals}
	}

	sort.SliceStable(items, func(a, b int) bool {
		for j, k := range keys {
			va, vb := items[a].keys[j], items[b].keys[j]
			if va.IsNull() != vb.IsNull() {
				return vb.IsNull()
			}
			c := Compare(va, vb)
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})

	out := make([]Row, len(items))
	for i, it := range items {
		out[i] = it.row
	}
	return out, nil
}

// Distinct keeps the first row for each distinct value of field, or of the
// whole row binding when field is nil.
func Distinct(ctx context.Context, rows []Row, field *types.Operand, res Resolver) ([]Row, error) {
	seen := make(map[string]struct{}, len(rows))
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		var (
			key []byte
			err error
		)
		if field == nil {
			key, err = json.Marshal(row.Elements)
		} else {
			var v types.Value
			v, err = res.Resolve(ctx, *field, row)
			if err == nil {
				key, err = json.Marshal(v)
			}
		}
		if err != nil {
			return nil, err
		}
		if _, dup := seen[string(key)]; dup {
			continue
		}
		seen[string(key)] = struct{}{}
		out = append(out, row)
	}
	return out, nil
}

// Paginate skips offset rows and keeps at most limit of the rest. A negative
// limit keeps everything.
func Paginate(rows []Row, offset, limit int) []Row {
	if offset >= len(rows) {
		return nil
	}
	if offset > 0 {
		rows = rows[offset:]
	}
	if limit >= 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
