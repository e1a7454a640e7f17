package parser

import (
	"strconv"
	"strings"

	"github.com/sandrolain/gomapper/pkg/types"
)

// Parser turns a template document into a tree of nodes.
type Parser struct {
	opts  CompileOptions
	depth int
}

// NewParser creates a parser with the given options.
func NewParser(opts ...CompileOption) *Parser {
	options := CompileOptions{
		MaxDepth: 100,
	}

	for _, opt := range opts {
		opt(&options)
	}

	return &Parser{
		opts: options,
	}
}

// Parse compiles raw. source is kept on the template for diagnostics.
func (p *Parser) Parse(raw types.Value, source string) (*types.Template, error) {
	p.depth = 0
	root, err := p.parseNode(raw, types.Path{})
	if err != nil {
		return nil, err
	}
	return types.NewTemplate(root, source), nil
}

func (p *Parser) parseNode(v types.Value, at types.Path) (*types.Node, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.opts.MaxDepth > 0 && p.depth > p.opts.MaxDepth {
		return nil, types.Errorf(types.ErrDepthExceeded, "template nesting exceeds %d levels", p.opts.MaxDepth).
			WithPath(at.String())
	}

	switch v.Kind() {
	case types.KindString:
		body, ok, err := splitExpression(v.Str())
		if err != nil {
			return nil, withPath(err, at)
		}
		if !ok {
			return &types.Node{Kind: types.NodeLiteral, Value: v}, nil
		}
		expr, err := ParseExpression(body)
		if err != nil {
			return nil, withPath(err, at)
		}
		return &types.Node{Kind: types.NodeExpression, Expr: expr}, nil

	case types.KindList:
		items := v.List().Items()
		node := &types.Node{Kind: types.NodeList, Items: make([]*types.Node, 0, len(items))}
		for i, item := range items {
			child, err := p.parseNode(item, at.Append(types.IndexSegment(i)))
			if err != nil {
				return nil, err
			}
			node.Items = append(node.Items, child)
		}
		return node, nil

	case types.KindMap:
		m := v.Map()
		if m.Has(types.WildcardToken) {
			return p.parseBlock(m, at)
		}
		node := &types.Node{Kind: types.NodeMap, Fields: make([]types.Field, 0, m.Len())}
		for _, key := range m.Keys() {
			if isReservedKey(key) {
				return nil, types.Errorf(types.ErrMisplacedStage, "%s requires a sibling %q key", key, types.WildcardToken).
					WithPath(at.String())
			}
			raw, _ := m.Get(key)
			child, err := p.parseNode(raw, at.Append(types.KeySegment(key)))
			if err != nil {
				return nil, err
			}
			node.Fields = append(node.Fields, types.Field{Key: key, Node: child})
		}
		return node, nil
	}

	return &types.Node{Kind: types.NodeLiteral, Value: v}, nil
}

// splitExpression reports whether s is a single "{{ ... }}" expression and
// returns its trimmed body. Strings that merely contain expressions are
// literals. Braces inside quoted filter arguments do not close the
// expression.
func splitExpression(s string) (string, bool, error) {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "{{") {
		return "", false, nil
	}
	end, nested, err := closingBraces(t, 2)
	if err != nil {
		return "", false, err.WithToken(s)
	}
	if nested || end+2 != len(t) {
		return "", false, nil
	}
	return strings.TrimSpace(t[2:end]), true, nil
}

// closingBraces returns the index of the first "}}" at or after from that
// is outside a quoted argument. nested reports an unquoted "{{" before it.
func closingBraces(t string, from int) (end int, nested bool, err *types.Error) {
	var quote byte
	for i := from; i < len(t); i++ {
		c := t[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '{' && i+1 < len(t) && t[i+1] == '{':
			nested = true
			i++
		case c == '}' && i+1 < len(t) && t[i+1] == '}':
			return i, nested, nil
		}
	}
	if quote != 0 {
		return -1, nested, types.NewError(types.ErrStringNotClosed, "quoted argument is missing its closing quote", len(t))
	}
	return -1, nested, types.NewError(types.ErrExprNotClosed, "expression is missing its closing braces", 0)
}

// IsExpression reports whether s is written as a "{{ ... }}" expression.
func IsExpression(s string) bool {
	_, ok, err := splitExpression(s)
	return ok && err == nil
}

// ParseExpression parses an expression. s may be the bare body
// ("user.name | trim") or the braced form ("{{ user.name | trim }}").
func ParseExpression(s string) (*types.Expr, error) {
	body, ok, err := splitExpression(s)
	if err != nil {
		return nil, err
	}
	if !ok {
		body = strings.TrimSpace(s)
	}

	toks, err := tokenize(body)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, types.NewError(types.ErrEmptyExpression, "expression is empty", 0).WithToken(s)
	}
	if toks[0].Type != TokenWord {
		return nil, unexpected(toks[0], body)
	}
	path, err := types.ParsePath(toks[0].Value)
	if err != nil {
		return nil, err
	}

	expr := &types.Expr{Source: body, Path: path}
	i := 1
	for i < len(toks) {
		if toks[i].Type != TokenPipe {
			return nil, unexpected(toks[i], body)
		}
		i++
		if i >= len(toks) || toks[i].Type != TokenWord {
			return nil, types.NewError(types.ErrExprSyntax, "expected a filter name after '|'", len(body)).WithToken(body)
		}
		call := types.FilterCall{Name: toks[i].Value}
		i++
		for i < len(toks) && toks[i].Type == TokenColon {
			i++
			if i >= len(toks) {
				return nil, types.NewError(types.ErrExprSyntax, "expected an argument after ':'", len(body)).WithToken(body)
			}
			switch toks[i].Type {
			case TokenWord:
				call.Args = append(call.Args, wordValue(toks[i].Value))
			case TokenString:
				call.Args = append(call.Args, types.String(unquote(toks[i].Value)))
			default:
				return nil, unexpected(toks[i], body)
			}
			i++
		}
		expr.Filters = append(expr.Filters, call)
	}
	return expr, nil
}

func tokenize(body string) ([]Token, error) {
	lx := NewLexer(body)
	var toks []Token
	for {
		tok := lx.Next()
		switch tok.Type {
		case TokenEOF:
			return toks, nil
		case TokenError:
			return nil, lx.Error()
		}
		toks = append(toks, tok)
	}
}

func unexpected(tok Token, body string) error {
	return types.NewError(types.ErrUnexpectedToken, "unexpected "+tok.String(), tok.Position).WithToken(body)
}

// wordValue interprets an unquoted filter argument.
func wordValue(w string) types.Value {
	switch w {
	case "true":
		return types.Bool(true)
	case "false":
		return types.Bool(false)
	case "null":
		return types.Null()
	}
	if i, err := strconv.ParseInt(w, 10, 64); err == nil {
		return types.Int(i)
	}
	if f, err := strconv.ParseFloat(w, 64); err == nil {
		return types.Float(f)
	}
	return types.String(w)
}

func withPath(err error, at types.Path) error {
	if e, ok := err.(*types.Error); ok && e.Path == "" {
		return e.WithPath(at.String())
	}
	return err
}
