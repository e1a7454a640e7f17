// Package extutil provides argument and value helpers shared by the ext
// filter packs.
package extutil

import (
	"fmt"
	"math"
	"strings"

	"github.com/sandrolain/gomapper/pkg/types"
)

// String returns args[i] as text, or def when the argument is absent.
func String(args []types.Value, i int, def string) string {
	if i >= len(args) || args[i].IsNull() {
		return def
	}
	return args[i].Text()
}

// Int returns args[i] as an integer, or def when the argument is absent.
func Int(args []types.Value, i int, def int) (int, error) {
	if i >= len(args) || args[i].IsNull() {
		return def, nil
	}
	f, ok := args[i].Number()
	if !ok || f != math.Trunc(f) {
		return 0, fmt.Errorf("argument %d must be an integer, got %s", i+1, args[i].String())
	}
	return int(f), nil
}

// Float returns args[i] as a number, or def when the argument is absent.
func Float(args []types.Value, i int, def float64) (float64, error) {
	if i >= len(args) || args[i].IsNull() {
		return def, nil
	}
	f, ok := args[i].Number()
	if !ok {
		return 0, fmt.Errorf("argument %d must be a number, got %s", i+1, args[i].String())
	}
	return f, nil
}

// Strings returns every argument as text.
func Strings(args []types.Value) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = a.Text()
	}
	return out
}

// Decode returns v with a JSON string argument decoded. Filter arguments
// are scalars, so list and map arguments are written as quoted JSON:
//
//	{{ tags | union:'["a", "b"]' }}
func Decode(v types.Value) (types.Value, error) {
	if v.Kind() != types.KindString {
		return v, nil
	}
	s := strings.TrimSpace(v.Str())
	if !strings.HasPrefix(s, "[") && !strings.HasPrefix(s, "{") {
		return v, nil
	}
	return types.ParseJSON([]byte(s))
}

// List returns the items of v, or an error when v is not a list.
func List(v types.Value) ([]types.Value, error) {
	v, err := Decode(v)
	if err != nil {
		return nil, err
	}
	if v.Kind() != types.KindList {
		return nil, fmt.Errorf("expected a list, got %s", v.Kind())
	}
	return v.List().Items(), nil
}

// Map returns v as a map, or an error when v is not one.
func Map(v types.Value) (*types.Map, error) {
	v, err := Decode(v)
	if err != nil {
		return nil, err
	}
	if v.Kind() != types.KindMap {
		return nil, fmt.Errorf("expected a map, got %s", v.Kind())
	}
	return v.Map(), nil
}

// Numbers returns the numeric items of a list. Nulls and values that do not
// coerce to numbers are skipped.
func Numbers(v types.Value) ([]float64, error) {
	items, err := List(v)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(items))
	for _, item := range items {
		if f, ok := item.Number(); ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// Number returns a float as an Int when it has no fractional part.
func Number(f float64) types.Value {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return types.Int(int64(f))
	}
	return types.Float(f)
}
