// Package filters defines value filters applied by template expressions.
//
// A filter transforms the value produced by the previous step of a chain:
//
//	{{ user.name | trim | default:"anonymous" | upper }}
//
// Users can add their own filters by registering a [Def] on a registry.
//
// # Example
//
//	reg := registry.New(registry.WithFilters(filters.Def{
//	    Name: "greet",
//	    Fn: func(_ context.Context, in types.Value, _ ...types.Value) (types.Value, error) {
//	        return types.String("Hello, " + in.Text() + "!"), nil
//	    },
//	}))
package filters

import (
	"context"
	"fmt"

	"github.com/sandrolain/gomapper/pkg/types"
)

// Func is the signature of a filter. in is the current value of the chain,
// args the arguments written after the filter name.
type Func func(ctx context.Context, in types.Value, args ...types.Value) (types.Value, error)

// Def describes a filter together with its accepted number of arguments.
type Def struct {
	// Name is the filter name as written in expressions.
	Name string
	// MinArgs is the minimum number of arguments.
	MinArgs int
	// MaxArgs is the maximum number of arguments; negative means unbounded.
	MaxArgs int
	// Fn is the implementation.
	Fn Func
}

// Call checks the arity and invokes the filter. Errors that are not already
// coded become type coercion errors.
func (d Def) Call(ctx context.Context, in types.Value, args ...types.Value) (types.Value, error) {
	if len(args) < d.MinArgs || (d.MaxArgs >= 0 && len(args) > d.MaxArgs) {
		return types.Null(), types.Errorf(types.ErrFilterArguments, "filter %q: %s", d.Name, arity(d.MinArgs, d.MaxArgs, len(args))).
			WithToken(d.Name)
	}
	out, err := d.Fn(ctx, in, args...)
	if err != nil {
		if types.CodeOf(err) != "" {
			return types.Null(), err
		}
		return types.Null(), types.Errorf(types.ErrCannotCoerce, "filter %q", d.Name).WithToken(d.Name).WithCause(err)
	}
	return out, nil
}

func arity(lo, hi, got int) string {
	switch {
	case hi < 0:
		return fmt.Sprintf("expects at least %d arguments, got %d", lo, got)
	case lo == hi:
		return fmt.Sprintf("expects %d arguments, got %d", lo, got)
	}
	return fmt.Sprintf("expects %d to %d arguments, got %d", lo, hi, got)
}

// Simple wraps a one-value function with no arguments.
func Simple(name string, fn func(types.Value) (types.Value, error)) Def {
	return Def{
		Name: name,
		Fn: func(_ context.Context, in types.Value, _ ...types.Value) (types.Value, error) {
			return fn(in)
		},
	}
}

// StringFilter wraps a string function. Null passes through unchanged and
// non-string scalars are converted with Text first.
func StringFilter(name string, fn func(string) string) Def {
	return Simple(name, func(in types.Value) (types.Value, error) {
		if in.IsNull() {
			return in, nil
		}
		if in.IsContainer() {
			return types.Null(), fmt.Errorf("cannot apply to a %s", in.Kind())
		}
		return types.String(fn(in.Text())), nil
	})
}

// Chain applies calls left to right, resolving each name with lookup.
func Chain(ctx context.Context, in types.Value, calls []types.FilterCall, lookup func(string) (Def, bool)) (types.Value, error) {
	cur := in
	for _, c := range calls {
		def, ok := lookup(c.Name)
		if !ok {
			return types.Null(), types.Errorf(types.ErrUnknownName, "unknown filter %q", c.Name).WithToken(c.Name)
		}
		out, err := def.Call(ctx, cur, c.Args...)
		if err != nil {
			return types.Null(), err
		}
		cur = out
	}
	return cur, nil
}
