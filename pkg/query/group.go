package query

import (
	"context"
	"strings"

	"github.com/goccy/go-json"

	"github.com/sandrolain/gomapper/pkg/types"
)

const groupKeySeparator = "\x1f"

// GroupBy partitions rows by the values of spec.Keys, in first-seen order.
//
// Each group becomes one row carrying the bindings of its first member.
// Aggregates are stored on the row and merged into every Map element, so an
// item template reads them like any other field. The optional HAVING of the
// spec filters the group rows afterwards.
func GroupBy(ctx context.Context, rows []Row, spec *types.GroupSpec, res Resolver) ([]Row, error) {
	var (
		order  []string
		groups = make(map[string][]Row)
	)
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		parts := make([]string, len(spec.Keys))
		for i, k := range spec.Keys {
			v, err := res.Resolve(ctx, k, row)
			if err != nil {
				return nil, err
			}
			b, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			parts[i] = string(b)
		}
		key := strings.Join(parts, groupKeySeparator)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], row)
	}

	out := make([]Row, 0, len(order))
	for _, key := range order {
		members := groups[key]
		aggs := types.NewMap()
		for _, a := range spec.Aggregations {
			v, err := Aggregate(ctx, a, members, res)
			if err != nil {
				return nil, err
			}
			aggs.Set(a.Alias, v)
		}
		out = append(out, groupRow(members, aggs))
	}

	if spec.Having != nil {
		return Where(ctx, out, spec.Having, res)
	}
	return out, nil
}

func groupRow(members []Row, aggs *types.Map) Row {
	first := members[0]
	row := Row{
		Ordinal:    first.Ordinal,
		Prefixes:   first.Prefixes,
		Paths:      first.Paths,
		Elements:   make([]types.Value, len(first.Elements)),
		Aggregates: aggs,
		Members:    members,
	}
	for i, el := range first.Elements {
		if el.Kind() != types.KindMap || aggs.Len() == 0 {
			row.Elements[i] = el
			continue
		}
		merged := el.Clone()
		for _, alias := range aggs.Keys() {
			v, _ := aggs.Get(alias)
			merged.Map().Set(alias, v)
		}
		row.Elements[i] = merged
	}
	return row
}

// Aggregate computes one aggregation over the members of a group.
//
// Numeric aggregations coerce values to numbers and skip those that do not
// coerce. SUM stays an integer while every contribution is one and the
// total fits in an int64, and yields 0
// for an empty set; AVG, MIN and MAX yield null instead.
func Aggregate(ctx context.Context, a types.Aggregation, members []Row, res Resolver) (types.Value, error) {
	if a.Func == types.AggCount {
		return types.Int(int64(len(members))), nil
	}
	if a.Source == nil {
		return types.Null(), types.Errorf(types.ErrInvalidStage, "aggregation %s for %q needs a source", a.Func, a.Alias)
	}
	vals := make([]types.Value, len(members))
	for i, m := range members {
		v, err := res.Resolve(ctx, *a.Source, m)
		if err != nil {
			return types.Null(), err
		}
		vals[i] = v
	}

	switch a.Func {
	case types.AggSum, types.AggAvg:
		var (
			isum   int64
			fsum   float64
			n      int
			allInt = true
		)
		for _, v := range vals {
			f, ok := v.Number()
			if !ok {
				continue
			}
			n++
			if v.Kind() == types.KindInt && allInt {
				x := v.Int()
				next := isum + x
				if (x > 0 && next < isum) || (x < 0 && next > isum) {
					// int64 overflow, fall back to the float sum
					allInt = false
				}
				isum = next
			} else if v.Kind() != types.KindInt {
				allInt = false
			}
			fsum += f
		}
		if a.Func == types.AggSum {
			if allInt {
				return types.Int(isum), nil
			}
			return types.Float(fsum), nil
		}
		if n == 0 {
			return types.Null(), nil
		}
		return types.Float(fsum / float64(n)), nil

	case types.AggMin, types.AggMax:
		var (
			best  types.Value
			bestF float64
			found bool
		)
		for _, v := range vals {
			f, ok := v.Number()
			if !ok {
				continue
			}
			if !found || (a.Func == types.AggMin && f < bestF) || (a.Func == types.AggMax && f > bestF) {
				best, bestF, found = v, f, true
			}
		}
		if !found {
			return types.Null(), nil
		}
		if best.Kind() == types.KindString {
			return types.Float(bestF), nil
		}
		return best, nil

	case types.AggFirst:
		return vals[0], nil
	case types.AggLast:
		return vals[len(vals)-1], nil

	case types.AggCollect:
		return types.ListOf(vals...), nil

	case types.AggConcat:
		parts := make([]string, 0, len(vals))
		for _, v := range vals {
			if !v.IsNull() {
				parts = append(parts, v.Text())
			}
		}
		return types.String(strings.Join(parts, a.Separator)), nil
	}
	return types.Null(), types.Errorf(types.ErrUnknownAggregation, "unknown aggregation %q", string(a.Func))
}
