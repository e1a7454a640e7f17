// Package extobject provides map filters.
package extobject

import (
	"context"
	"fmt"

	"github.com/sandrolain/gomapper/pkg/ext/extutil"
	"github.com/sandrolain/gomapper/pkg/filters"
	"github.com/sandrolain/gomapper/pkg/types"
)

// All returns every filter of the pack.
func All() []filters.Def {
	return []filters.Def{
		Pick(),
		Omit(),
		Rename(),
		Merge(),
		Invert(),
		Pairs(),
		FromPairs(),
		Size(),
	}
}

func mapFilter(name string, minArgs, maxArgs int, fn func(m *types.Map, args []types.Value) (types.Value, error)) filters.Def {
	return filters.Def{
		Name:    name,
		MinArgs: minArgs,
		MaxArgs: maxArgs,
		Fn: func(_ context.Context, in types.Value, args ...types.Value) (types.Value, error) {
			if in.IsNull() {
				return in, nil
			}
			m, err := extutil.Map(in)
			if err != nil {
				return types.Null(), fmt.Errorf("%s: %w", name, err)
			}
			return fn(m, args)
		},
	}
}

func keySet(args []types.Value) map[string]bool {
	set := make(map[string]bool, len(args))
	for _, a := range args {
		if items, err := extutil.List(a); err == nil {
			for _, k := range items {
				set[k.Text()] = true
			}
			continue
		}
		set[a.Text()] = true
	}
	return set
}

func filterKeys(m *types.Map, keep func(string) bool) types.Value {
	out := types.NewMap()
	for _, k := range m.Keys() {
		if keep(k) {
			v, _ := m.Get(k)
			out.Set(k, v)
		}
	}
	return types.MapValue(out)
}

// Pick returns the definition for pick:key..., keeping only the named
// keys. A JSON list argument names several keys.
func Pick() filters.Def {
	return mapFilter("pick", 1, -1, func(m *types.Map, args []types.Value) (types.Value, error) {
		set := keySet(args)
		return filterKeys(m, func(k string) bool { return set[k] }), nil
	})
}

// Omit returns the definition for omit:key..., dropping the named keys.
func Omit() filters.Def {
	return mapFilter("omit", 1, -1, func(m *types.Map, args []types.Value) (types.Value, error) {
		set := keySet(args)
		return filterKeys(m, func(k string) bool { return !set[k] }), nil
	})
}

// Rename returns the definition for rename:old:new. The renamed entry keeps
// its position.
func Rename() filters.Def {
	return mapFilter("rename", 2, 2, func(m *types.Map, args []types.Value) (types.Value, error) {
		from, to := args[0].Text(), args[1].Text()
		out := types.NewMap()
		for _, k := range m.Keys() {
			v, _ := m.Get(k)
			switch k {
			case from:
				out.Set(to, v)
			case to:
				if !m.Has(from) {
					out.Set(k, v)
				}
			default:
				out.Set(k, v)
			}
		}
		return types.MapValue(out), nil
	})
}

// Merge returns the definition for merge:other, a deep merge where entries
// of other win. Nested maps are merged recursively.
func Merge() filters.Def {
	return mapFilter("merge", 1, 1, func(m *types.Map, args []types.Value) (types.Value, error) {
		if args[0].IsNull() {
			return types.MapValue(m).Clone(), nil
		}
		other, err := extutil.Map(args[0])
		if err != nil {
			return types.Null(), fmt.Errorf("merge: %w", err)
		}
		return deepMerge(types.MapValue(m), types.MapValue(other)), nil
	})
}

func deepMerge(a, b types.Value) types.Value {
	if a.Kind() != types.KindMap || b.Kind() != types.KindMap {
		return b.Clone()
	}
	out := a.Clone()
	dst := out.Map()
	src := b.Map()
	for _, k := range src.Keys() {
		bv, _ := src.Get(k)
		if av, ok := dst.Get(k); ok {
			dst.Set(k, deepMerge(av, bv))
			continue
		}
		dst.Set(k, bv.Clone())
	}
	return out
}

// Invert returns the definition for invert, swapping keys and the text of
// their values. On duplicate values the last key wins.
func Invert() filters.Def {
	return mapFilter("invert", 0, 0, func(m *types.Map, _ []types.Value) (types.Value, error) {
		out := types.NewMap()
		for _, k := range m.Keys() {
			v, _ := m.Get(k)
			if v.IsContainer() {
				return types.Null(), fmt.Errorf("invert: value of %q is a %s", k, v.Kind())
			}
			out.Set(v.Text(), types.String(k))
		}
		return types.MapValue(out), nil
	})
}

// Pairs returns the definition for pairs: a list of [key, value] lists.
func Pairs() filters.Def {
	return mapFilter("pairs", 0, 0, func(m *types.Map, _ []types.Value) (types.Value, error) {
		out := types.NewList()
		for _, k := range m.Keys() {
			v, _ := m.Get(k)
			out.Append(types.ListOf(types.String(k), v))
		}
		return types.ListValue(out), nil
	})
}

// FromPairs returns the definition for from_pairs, the inverse of pairs.
func FromPairs() filters.Def {
	return filters.Simple("from_pairs", func(in types.Value) (types.Value, error) {
		if in.IsNull() {
			return in, nil
		}
		items, err := extutil.List(in)
		if err != nil {
			return types.Null(), fmt.Errorf("from_pairs: %w", err)
		}
		out := types.NewMap()
		for i, item := range items {
			if item.Kind() != types.KindList || item.List().Len() != 2 {
				return types.Null(), fmt.Errorf("from_pairs: item %d is not a [key, value] pair", i)
			}
			out.Set(item.List().At(0).Text(), item.List().At(1))
		}
		return types.MapValue(out), nil
	})
}

// Size returns the definition for size, the number of entries.
func Size() filters.Def {
	return mapFilter("size", 0, 0, func(m *types.Map, _ []types.Value) (types.Value, error) {
		return types.Int(int64(m.Len())), nil
	})
}
