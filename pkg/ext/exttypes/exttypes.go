// Package exttypes provides type inspection filters.
package exttypes

import (
	"github.com/sandrolain/gomapper/pkg/filters"
	"github.com/sandrolain/gomapper/pkg/types"
)

// All returns every filter of the pack.
func All() []filters.Def {
	return []filters.Def{
		Type(),
		is("is_null", types.KindNull),
		is("is_bool", types.KindBool),
		is("is_string", types.KindString),
		is("is_list", types.KindList),
		is("is_map", types.KindMap),
		IsNumber(),
		IsEmpty(),
	}
}

// Type returns the definition for type: one of null, bool, int, float,
// string, list, map.
func Type() filters.Def {
	return filters.Simple("type", func(in types.Value) (types.Value, error) {
		return types.String(in.Kind().String()), nil
	})
}

func is(name string, kind types.Kind) filters.Def {
	return filters.Simple(name, func(in types.Value) (types.Value, error) {
		return types.Bool(in.Kind() == kind), nil
	})
}

// IsNumber returns the definition for is_number. Numeric strings are not
// numbers.
func IsNumber() filters.Def {
	return filters.Simple("is_number", func(in types.Value) (types.Value, error) {
		return types.Bool(in.IsNumber()), nil
	})
}

// IsEmpty returns the definition for is_empty: true for null, the empty
// string, an empty list and an empty map.
func IsEmpty() filters.Def {
	return filters.Simple("is_empty", func(in types.Value) (types.Value, error) {
		switch in.Kind() {
		case types.KindNull:
			return types.Bool(true), nil
		case types.KindString:
			return types.Bool(in.Str() == ""), nil
		case types.KindList:
			return types.Bool(in.List().Len() == 0), nil
		case types.KindMap:
			return types.Bool(in.Map().Len() == 0), nil
		}
		return types.Bool(false), nil
	})
}
