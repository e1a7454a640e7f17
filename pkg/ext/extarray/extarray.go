// Package extarray provides list filters: slicing, flattening, chunking,
// sorting and set operations.
package extarray

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sandrolain/gomapper/pkg/ext/extutil"
	"github.com/sandrolain/gomapper/pkg/filters"
	"github.com/sandrolain/gomapper/pkg/query"
	"github.com/sandrolain/gomapper/pkg/types"
)

// All returns every filter of the pack.
func All() []filters.Def {
	return []filters.Def{
		Take(),
		Skip(),
		Slice(),
		Flatten(),
		Chunk(),
		Compact(),
		Sort(),
		Union(),
		Intersection(),
		Difference(),
		Range(),
	}
}

// listFilter wraps fn so that null passes through and a scalar input is
// treated as a one-item list.
func listFilter(name string, minArgs, maxArgs int, fn func(items []types.Value, args []types.Value) (types.Value, error)) filters.Def {
	return filters.Def{
		Name:    name,
		MinArgs: minArgs,
		MaxArgs: maxArgs,
		Fn: func(_ context.Context, in types.Value, args ...types.Value) (types.Value, error) {
			switch in.Kind() {
			case types.KindNull:
				return in, nil
			case types.KindList:
				return fn(in.List().Items(), args)
			case types.KindMap:
				return types.Null(), fmt.Errorf("%s expects a list, got a map", name)
			}
			return fn([]types.Value{in}, args)
		},
	}
}

// bounds clamps [lo, hi) to n, counting negative indices from the end.
func bounds(lo, hi, n int) (int, int) {
	if lo < 0 {
		lo += n
	}
	if hi < 0 {
		hi += n
	}
	lo = max(0, min(lo, n))
	hi = max(lo, min(hi, n))
	return lo, hi
}

// Take returns the definition for take:n, the first n items.
func Take() filters.Def {
	return listFilter("take", 1, 1, func(items []types.Value, args []types.Value) (types.Value, error) {
		n, err := extutil.Int(args, 0, 0)
		if err != nil {
			return types.Null(), err
		}
		_, hi := bounds(0, max(n, 0), len(items))
		return types.ListOf(items[:hi]...), nil
	})
}

// Skip returns the definition for skip:n, everything after the first n
// items.
func Skip() filters.Def {
	return listFilter("skip", 1, 1, func(items []types.Value, args []types.Value) (types.Value, error) {
		n, err := extutil.Int(args, 0, 0)
		if err != nil {
			return types.Null(), err
		}
		lo, _ := bounds(max(n, 0), len(items), len(items))
		return types.ListOf(items[lo:]...), nil
	})
}

// Slice returns the definition for slice:start[:end]. Negative indices
// count from the end.
func Slice() filters.Def {
	return listFilter("slice", 1, 2, func(items []types.Value, args []types.Value) (types.Value, error) {
		start, err := extutil.Int(args, 0, 0)
		if err != nil {
			return types.Null(), err
		}
		end, err := extutil.Int(args, 1, len(items))
		if err != nil {
			return types.Null(), err
		}
		lo, hi := bounds(start, end, len(items))
		return types.ListOf(items[lo:hi]...), nil
	})
}

// Flatten returns the definition for flatten[:depth]. The default depth
// flattens completely.
func Flatten() filters.Def {
	return listFilter("flatten", 0, 1, func(items []types.Value, args []types.Value) (types.Value, error) {
		depth, err := extutil.Int(args, 0, -1)
		if err != nil {
			return types.Null(), err
		}
		out := types.NewList()
		flatten(out, items, depth)
		return types.ListValue(out), nil
	})
}

func flatten(out *types.List, items []types.Value, depth int) {
	for _, item := range items {
		if item.Kind() == types.KindList && depth != 0 {
			flatten(out, item.List().Items(), depth-1)
			continue
		}
		out.Append(item)
	}
}

// Chunk returns the definition for chunk:size, splitting the list into
// lists of at most size items.
func Chunk() filters.Def {
	return listFilter("chunk", 1, 1, func(items []types.Value, args []types.Value) (types.Value, error) {
		size, err := extutil.Int(args, 0, 0)
		if err != nil {
			return types.Null(), err
		}
		if size <= 0 {
			return types.Null(), fmt.Errorf("chunk size must be positive, got %d", size)
		}
		out := types.NewList()
		for i := 0; i < len(items); i += size {
			out.Append(types.ListOf(items[i:min(i+size, len(items))]...))
		}
		return types.ListValue(out), nil
	})
}

// Compact returns the definition for compact, removing null items.
func Compact() filters.Def {
	return listFilter("compact", 0, 0, func(items []types.Value, _ []types.Value) (types.Value, error) {
		out := types.NewList()
		for _, item := range items {
			if !item.IsNull() {
				out.Append(item)
			}
		}
		return types.ListValue(out), nil
	})
}

// Sort returns the definition for sort[:desc]. Items are ordered the same
// way ORDER BY orders values; nulls stay last in both directions.
func Sort() filters.Def {
	return listFilter("sort", 0, 1, func(items []types.Value, args []types.Value) (types.Value, error) {
		desc := false
		switch dir := strings.ToLower(extutil.String(args, 0, "asc")); dir {
		case "asc":
		case "desc":
			desc = true
		default:
			return types.Null(), fmt.Errorf("sort direction must be asc or desc, got %q", dir)
		}
		out := append([]types.Value(nil), items...)
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i], out[j]
			if a.IsNull() || b.IsNull() {
				return !a.IsNull() && b.IsNull()
			}
			c := query.Compare(a, b)
			if desc {
				return c > 0
			}
			return c < 0
		})
		return types.ListOf(out...), nil
	})
}

func setOp(name string, keep func(inOther bool) bool, appendOther bool) filters.Def {
	return listFilter(name, 1, 1, func(items []types.Value, args []types.Value) (types.Value, error) {
		other, err := extutil.List(args[0])
		if err != nil {
			return types.Null(), fmt.Errorf("%s: %w", name, err)
		}
		inOther := make(map[string]struct{}, len(other))
		for _, v := range other {
			inOther[v.String()] = struct{}{}
		}
		seen := make(map[string]struct{})
		out := types.NewList()
		add := func(v types.Value) {
			k := v.String()
			if _, dup := seen[k]; dup {
				return
			}
			seen[k] = struct{}{}
			out.Append(v)
		}
		for _, v := range items {
			if _, ok := inOther[v.String()]; keep(ok) {
				add(v)
			}
		}
		if appendOther {
			for _, v := range other {
				add(v)
			}
		}
		return types.ListValue(out), nil
	})
}

// Union returns the definition for union:other, the distinct items of
// both lists in order of appearance.
func Union() filters.Def {
	return setOp("union", func(bool) bool { return true }, true)
}

// Intersection returns the definition for intersection:other.
func Intersection() filters.Def {
	return setOp("intersection", func(in bool) bool { return in }, false)
}

// Difference returns the definition for difference:other, the items not
// present in other.
func Difference() filters.Def {
	return setOp("difference", func(in bool) bool { return !in }, false)
}

// Range returns the definition for range[:start[:step]]. The input is the
// number of integers to produce.
//
//	{{ page.count | range:1 }}
func Range() filters.Def {
	return filters.Def{
		Name:    "range",
		MaxArgs: 2,
		Fn: func(_ context.Context, in types.Value, args ...types.Value) (types.Value, error) {
			if in.IsNull() {
				return in, nil
			}
			n, err := extutil.Int([]types.Value{in}, 0, 0)
			if err != nil {
				return types.Null(), err
			}
			start, err := extutil.Int(args, 0, 0)
			if err != nil {
				return types.Null(), err
			}
			step, err := extutil.Int(args, 1, 1)
			if err != nil {
				return types.Null(), err
			}
			if n < 0 || n > 1_000_000 {
				return types.Null(), fmt.Errorf("range length %d is out of bounds", n)
			}
			out := make([]types.Value, n)
			for i := range out {
				out[i] = types.Int(int64(start + i*step))
			}
			return types.ListOf(out...), nil
		},
	}
}
