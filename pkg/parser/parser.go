// Package parser compiles mapping templates into immutable trees.
//
// A template is a nested map/list document. String leaves written as
// "{{ path | filter:arg }}" become expressions; other leaves are literals.
// A map holding a "*" key is an operator block: "*" is the item template and
// every other key is a stage (WHERE, LIKE, GROUP BY, HAVING, ORDER BY,
// DISTINCT, LIMIT, OFFSET or a custom operator name).
//
// # Example
//
//	tpl, err := parser.CompileJSON([]byte(`{
//	    "names": {
//	        "*": "{{ users.*.name | trim }}",
//	        "WHERE": {"{{ users.*.active }}": true},
//	        "ORDER BY": {"{{ users.*.name }}": "ASC"}
//	    }
//	}`))
//	if err != nil {
//	    log.Fatal(err)
//	}
package parser

import (
	"github.com/sandrolain/gomapper/pkg/types"
)

// Compile parses a template document held in a Value.
//
// Stage order inside an operator block follows the declaration order of the
// map. Maps converted from Go map values carry no order; their stages run in
// canonical order (WHERE, LIKE, GROUP BY, HAVING, ORDER BY, DISTINCT, custom
// operators alphabetically, OFFSET, LIMIT).
func Compile(raw types.Value, opts ...CompileOption) (*types.Template, error) {
	p := NewParser(opts...)
	return p.Parse(raw, raw.String())
}

// CompileJSON parses a JSON template document.
func CompileJSON(data []byte, opts ...CompileOption) (*types.Template, error) {
	raw, err := types.ParseJSON(data)
	if err != nil {
		return nil, types.Errorf(types.ErrInvalidConfig, "template is not valid JSON").WithCause(err)
	}
	return NewParser(opts...).Parse(raw, string(data))
}

// CompileYAML parses a YAML template document.
func CompileYAML(data []byte, opts ...CompileOption) (*types.Template, error) {
	raw, err := types.ParseYAML(data)
	if err != nil {
		return nil, types.Errorf(types.ErrInvalidConfig, "template is not valid YAML").WithCause(err)
	}
	return NewParser(opts...).Parse(raw, string(data))
}

// CompileNative parses a template built from Go values.
func CompileNative(x any, opts ...CompileOption) (*types.Template, error) {
	raw, err := types.FromNative(x)
	if err != nil {
		return nil, types.Errorf(types.ErrInvalidConfig, "unsupported template value").WithCause(err)
	}
	return Compile(raw, opts...)
}

// CompileOption configures compilation behavior.
type CompileOption func(*CompileOptions)

// CompileOptions holds parser configuration.
type CompileOptions struct {
	// MaxDepth limits the nesting depth of the template document.
	MaxDepth int
}

// WithMaxDepth sets the maximum template nesting depth.
func WithMaxDepth(depth int) CompileOption {
	return func(opts *CompileOptions) {
		opts.MaxDepth = depth
	}
}
