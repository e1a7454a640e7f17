package filters_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandrolain/gomapper/pkg/filters"
	"github.com/sandrolain/gomapper/pkg/types"
)

func lookup() func(string) (filters.Def, bool) {
	defs := make(map[string]filters.Def)
	for _, d := range filters.Builtins() {
		defs[d.Name] = d
	}
	return func(name string) (filters.Def, bool) {
		d, ok := defs[name]
		return d, ok
	}
}

func call(name string, args ...types.Value) types.FilterCall {
	return types.FilterCall{Name: name, Args: args}
}

func TestBuiltins(t *testing.T) {
	tests := []struct {
		name  string
		in    types.Value
		calls []types.FilterCall
		want  types.Value
	}{
		{"trim", types.String("  Alice "), []types.FilterCall{call("trim")}, types.String("Alice")},
		{"ltrim", types.String("  a "), []types.FilterCall{call("ltrim")}, types.String("a ")},
		{"upper", types.String("straße"), []types.FilterCall{call("upper")}, types.String("STRASSE")},
		{"lower", types.String("ÀB"), []types.FilterCall{call("lower")}, types.String("àb")},
		{"title", types.String("hello world"), []types.FilterCall{call("title")}, types.String("Hello World")},
		{"ucfirst", types.String("émile"), []types.FilterCall{call("ucfirst")}, types.String("Émile")},
		{"null passes", types.Null(), []types.FilterCall{call("trim"), call("upper")}, types.Null()},
		{"default on null", types.Null(), []types.FilterCall{call("default", types.String("n/a"))}, types.String("n/a")},
		{"default on empty", types.String(""), []types.FilterCall{call("default", types.Int(0))}, types.Int(0)},
		{"default keeps", types.String("x"), []types.FilterCall{call("default", types.String("n/a"))}, types.String("x")},
		{"int from string", types.String(" 42 "), []types.FilterCall{call("int")}, types.Int(42)},
		{"int from float", types.Float(3.9), []types.FilterCall{call("int")}, types.Int(3)},
		{"float", types.String("2.5"), []types.FilterCall{call("float")}, types.Float(2.5)},
		{"bool", types.String("yes"), []types.FilterCall{call("bool")}, types.Bool(true)},
		{"round", types.Float(2.346), []types.FilterCall{call("round", types.Int(2))}, types.Float(2.35)},
		{"round int", types.Float(2.5), []types.FilterCall{call("round")}, types.Int(3)},
		{"abs", types.Int(-4), []types.FilterCall{call("abs")}, types.Int(4)},
		{"join", types.ListOf(types.String("a"), types.Null(), types.Int(1)), []types.FilterCall{call("join", types.String(","))}, types.String("a,1")},
		{"split", types.String("a,b"), []types.FilterCall{call("split", types.String(","))}, types.ListOf(types.String("a"), types.String("b"))},
		{"replace", types.String("a-b-c"), []types.FilterCall{call("replace", types.String("-"), types.String("+"))}, types.String("a+b+c")},
		{"truncate", types.String("abcdef"), []types.FilterCall{call("truncate", types.Int(3), types.String("..."))}, types.String("abc...")},
		{"count", types.ListOf(types.Int(1), types.Int(2)), []types.FilterCall{call("count")}, types.Int(2)},
		{"first", types.ListOf(types.Int(1), types.Int(2)), []types.FilterCall{call("first")}, types.Int(1)},
		{"last", types.ListOf(types.Int(1), types.Int(2)), []types.FilterCall{call("last")}, types.Int(2)},
		{"reverse", types.ListOf(types.Int(1), types.Int(2)), []types.FilterCall{call("reverse")}, types.ListOf(types.Int(2), types.Int(1))},
		{"unique", types.ListOf(types.Int(1), types.Int(1), types.Int(2)), []types.FilterCall{call("unique")}, types.ListOf(types.Int(1), types.Int(2))},
		{"json", types.MustParseJSON(`{"b":1,"a":[true]}`), []types.FilterCall{call("json")}, types.String(`{"b":1,"a":[true]}`)},
		{"keys", types.MustParseJSON(`{"b":1,"a":2}`), []types.FilterCall{call("keys")}, types.ListOf(types.String("b"), types.String("a"))},
		{"chain", types.String("  bob  "), []types.FilterCall{call("trim"), call("ucfirst"), call("replace", types.String("b"), types.String("p"))}, types.String("Bop")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := filters.Chain(context.Background(), tt.in, tt.calls, lookup())
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestChain_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := filters.Chain(ctx, types.String("x"), []types.FilterCall{call("nope")}, lookup())
	assert.Equal(t, types.ErrUnknownName, types.CodeOf(err))

	_, err = filters.Chain(ctx, types.String("x"), []types.FilterCall{call("default")}, lookup())
	assert.Equal(t, types.ErrFilterArguments, types.CodeOf(err))

	_, err = filters.Chain(ctx, types.String("abc"), []types.FilterCall{call("int")}, lookup())
	require.Error(t, err)
	assert.Equal(t, types.ErrCannotCoerce, types.CodeOf(err))
	assert.True(t, errors.Is(err, types.ErrTypeCoercion))
}

func TestCustomDef(t *testing.T) {
	greet := filters.Def{
		Name:    "greet",
		MaxArgs: 1,
		Fn: func(_ context.Context, in types.Value, args ...types.Value) (types.Value, error) {
			punct := "!"
			if len(args) == 1 {
				punct = args[0].Text()
			}
			return types.String("Hello, " + in.Text() + punct), nil
		},
	}
	out, err := greet.Call(context.Background(), types.String("World"), types.String("?"))
	require.NoError(t, err)
	assert.Equal(t, "Hello, World?", out.Str())
}
