// Package types defines the data model shared by the mapping packages.
//
// This package contains type definitions for:
//   - Value: the tagged union every traversal operates on, with JSON, YAML
//     and native Go adapters
//   - Path: parsed dotted paths with wildcard segments
//   - Node, Expr, Predicate, OperatorBlock: the parsed template tree
//   - Template: an immutable, parsed template
//   - Error types: structured errors with codes and classes
package types

// Template is a parsed mapping template.
//
// A Template is immutable once built and can be evaluated any number of
// times against different sources. It is safe for concurrent use by
// multiple goroutines.
type Template struct {
	root   *Node
	source string
}

// NewTemplate creates a Template from a parsed tree.
func NewTemplate(root *Node, source string) *Template {
	return &Template{
		root:   root,
		source: source,
	}
}

// Root returns the root node of the template tree.
func (t *Template) Root() *Node {
	return t.root
}

// Source returns the original template document, when known.
func (t *Template) Source() string {
	return t.source
}

// String returns the template source.
func (t *Template) String() string {
	return t.source
}
