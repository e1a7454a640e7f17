// Package gomapper maps nested data declaratively.
//
// A template is a JSON or YAML document shaped like the desired output.
// String leaves written as {{ path | filter:arg }} are replaced by values
// read from the source; maps with a "*" key iterate wildcard matches and may
// carry query stages (WHERE, LIKE, ORDER BY, GROUP BY, HAVING, LIMIT,
// OFFSET, DISTINCT and custom operators) applied in declaration order.
//
// # Quick Start
//
//	out, err := gomapper.MapJSON(
//	    []byte(`{"names": {"*": "{{ users.*.name | upper }}", "WHERE": {"{{ users.*.age }}": [">", 30]}}}`),
//	    []byte(`{"users": [{"name": "ada", "age": 36}, {"name": "bo", "age": 20}]}`),
//	)
//	// {"names": ["ADA"]}
//
//	// Compile once, map many times
//	tpl, err := gomapper.CompileJSON(doc)
//	m := mapper.New(mapper.WithFlags(mapper.Flags{SkipNull: true}))
//	out1, _ := m.Map(ctx, tpl, source1)
//	out2, _ := m.Map(ctx, tpl, source2)
//
// # More Information
//
//   - Paths: github.com/sandrolain/gomapper/pkg/path
//   - Templates: github.com/sandrolain/gomapper/pkg/parser
//   - Query stages: github.com/sandrolain/gomapper/pkg/query
//   - Passes, hooks and flags: github.com/sandrolain/gomapper/pkg/mapper
//   - Extra filters: github.com/sandrolain/gomapper/pkg/ext
package gomapper

import (
	"context"
	"fmt"
	"time"

	"github.com/sandrolain/gomapper/pkg/evaluator"
	"github.com/sandrolain/gomapper/pkg/mapper"
	"github.com/sandrolain/gomapper/pkg/parser"
	"github.com/sandrolain/gomapper/pkg/types"
)

// Version returns the current version of gomapper.
func Version() string {
	return "v0.1.0-dev"
}

// Compile compiles a template held as a Value.
func Compile(raw types.Value, opts ...parser.CompileOption) (*types.Template, error) {
	return parser.Compile(raw, opts...)
}

// CompileJSON compiles a JSON template document.
func CompileJSON(doc []byte, opts ...parser.CompileOption) (*types.Template, error) {
	return parser.CompileJSON(doc, opts...)
}

// CompileYAML compiles a YAML template document.
func CompileYAML(doc []byte, opts ...parser.CompileOption) (*types.Template, error) {
	return parser.CompileYAML(doc, opts...)
}

// MustCompile is like CompileJSON but panics if the template cannot be
// compiled. It simplifies safe initialization of global variables.
func MustCompile(doc string) *types.Template {
	tpl, err := CompileJSON([]byte(doc))
	if err != nil {
		panic(fmt.Sprintf("gomapper: Compile(%q): %v", doc, err))
	}
	return tpl
}

// Map runs a forward pass of tpl over source with a 30 second timeout.
//
// For repeated passes, build a mapper.Mapper once and reuse it.
func Map(tpl *types.Template, source types.Value, opts ...mapper.Option) (types.Value, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return mapper.New(opts...).Map(ctx, tpl, source)
}

// MapWithContext runs a forward pass of tpl over source.
func MapWithContext(ctx context.Context, tpl *types.Template, source types.Value, opts ...mapper.Option) (types.Value, error) {
	return mapper.New(opts...).Map(ctx, tpl, source)
}

// MapJSON compiles a JSON template, maps a JSON source and returns the
// JSON encoding of the result.
func MapJSON(templateDoc, sourceDoc []byte, opts ...mapper.Option) ([]byte, error) {
	tpl, err := CompileJSON(templateDoc)
	if err != nil {
		return nil, err
	}
	source, err := types.ParseJSON(sourceDoc)
	if err != nil {
		return nil, err
	}
	out, err := Map(tpl, source, opts...)
	if err != nil {
		return nil, err
	}
	return out.MarshalJSON()
}

// Reverse rebuilds a source shape from data produced by tpl.
func Reverse(ctx context.Context, tpl *types.Template, data types.Value, opts ...mapper.Option) (types.Value, error) {
	return mapper.New(opts...).Reverse(ctx, tpl, data)
}

// Evaluate evaluates tpl against named sources without the pass machinery:
// no hooks, no flags, errors abort.
func Evaluate(ctx context.Context, tpl *types.Template, sources map[string]types.Value, opts ...evaluator.EvalOption) (types.Value, error) {
	return evaluator.New(opts...).Evaluate(ctx, tpl, sources)
}
