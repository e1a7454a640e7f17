package types

import (
	"regexp"
	"strings"
)

// NodeKind identifies the type of a template node.
type NodeKind uint8

// Template node kinds.
const (
	NodeLiteral NodeKind = iota
	NodeExpression
	NodeMap
	NodeList
	NodeOperator
)

// Node is an element of a parsed template tree.
type Node struct {
	Kind   NodeKind
	Value  Value          // NodeLiteral
	Expr   *Expr          // NodeExpression
	Fields []Field        // NodeMap, in declaration order
	Items  []*Node        // NodeList
	Block  *OperatorBlock // NodeOperator
}

// Field is a key of a map node and the template producing its value.
type Field struct {
	Key  string
	Node *Node
}

// FilterCall is one step of a filter chain.
type FilterCall struct {
	Name string
	Args []Value
}

// Expr is a path expression with an optional filter chain, written in a
// template as "{{ path | filter:arg | ... }}".
type Expr struct {
	Source  string
	Path    Path
	Filters []FilterCall
}

// HasFilters reports whether the expression carries a filter chain.
func (e *Expr) HasFilters() bool { return len(e.Filters) > 0 }

// String returns the expression source.
func (e *Expr) String() string { return e.Source }

// OperandKind identifies what an operand refers to.
type OperandKind uint8

// Operand kinds.
const (
	// OperandLiteral is a constant value.
	OperandLiteral OperandKind = iota
	// OperandExpr is a "{{ path }}" expression resolved against the sources
	// with the current wildcard bindings.
	OperandExpr
	// OperandField is a bare name: an aggregate alias on group rows,
	// otherwise a path relative to the row's primary element.
	OperandField
)

// Operand is one side of a comparison, a sort key, a group key or an
// aggregation source.
type Operand struct {
	Kind    OperandKind
	Literal Value
	Expr    *Expr
	Field   Path
}

// LiteralOperand returns a constant operand.
func LiteralOperand(v Value) Operand { return Operand{Kind: OperandLiteral, Literal: v} }

// ExprOperand returns an expression operand.
func ExprOperand(e *Expr) Operand { return Operand{Kind: OperandExpr, Expr: e} }

// FieldOperand returns a field operand.
func FieldOperand(p Path) Operand { return Operand{Kind: OperandField, Field: p} }

// String returns a readable form of the operand.
func (o Operand) String() string {
	switch o.Kind {
	case OperandExpr:
		return "{{ " + o.Expr.Source + " }}"
	case OperandField:
		return o.Field.String()
	}
	return o.Literal.String()
}

// CompareOp is a predicate leaf operator.
type CompareOp string

// Comparison operators.
const (
	OpEq         CompareOp = "="
	OpNe         CompareOp = "!="
	OpLt         CompareOp = "<"
	OpLe         CompareOp = "<="
	OpGt         CompareOp = ">"
	OpGe         CompareOp = ">="
	OpLike       CompareOp = "LIKE"
	OpNotLike    CompareOp = "NOT LIKE"
	OpIn         CompareOp = "IN"
	OpNotIn      CompareOp = "NOT IN"
	OpBetween    CompareOp = "BETWEEN"
	OpNotBetween CompareOp = "NOT BETWEEN"
	OpIsNull     CompareOp = "IS NULL"
	OpIsNotNull  CompareOp = "IS NOT NULL"
)

// ParseCompareOp normalizes an operator as written in a template. "<>" is a
// synonym of "!=" and "==" of "="; keywords are case-insensitive.
func ParseCompareOp(s string) (CompareOp, bool) {
	norm := strings.Join(strings.Fields(strings.ToUpper(s)), " ")
	switch norm {
	case "=", "==":
		return OpEq, true
	case "!=", "<>":
		return OpNe, true
	case "<", "<=", ">", ">=", "LIKE", "NOT LIKE", "IN", "NOT IN", "BETWEEN", "NOT BETWEEN", "IS NULL", "IS NOT NULL":
		return CompareOp(norm), true
	}
	return "", false
}

// Unary reports whether the operator takes no right operand.
func (op CompareOp) Unary() bool { return op == OpIsNull || op == OpIsNotNull }

// PredicateKind identifies a predicate node.
type PredicateKind uint8

// Predicate kinds.
const (
	PredLeaf PredicateKind = iota
	PredAnd
	PredOr
)

// Predicate is a boolean condition tree over rows.
type Predicate struct {
	Kind          PredicateKind
	Left          Operand
	Op            CompareOp
	Right         Operand
	CaseSensitive bool
	Children      []*Predicate
	// Pattern is the compiled literal pattern of a LIKE leaf; nil when the
	// pattern is resolved per row.
	Pattern *regexp.Regexp
}

// And combines predicates with a short-circuit AND. A single predicate is
// returned as is.
func And(children ...*Predicate) *Predicate {
	if len(children) == 1 {
		return children[0]
	}
	return &Predicate{Kind: PredAnd, Children: children}
}

// Or combines predicates with a short-circuit OR.
func Or(children ...*Predicate) *Predicate {
	if len(children) == 1 {
		return children[0]
	}
	return &Predicate{Kind: PredOr, Children: children}
}

// Leaf returns a comparison predicate.
func Leaf(left Operand, op CompareOp, right Operand) *Predicate {
	return &Predicate{Kind: PredLeaf, Left: left, Op: op, Right: right}
}

// OrderKey is one ORDER BY key.
type OrderKey struct {
	Operand Operand
	Desc    bool
}

// AggregateFunc names an aggregation.
type AggregateFunc string

// Aggregation functions.
const (
	AggCount   AggregateFunc = "COUNT"
	AggSum     AggregateFunc = "SUM"
	AggAvg     AggregateFunc = "AVG"
	AggMin     AggregateFunc = "MIN"
	AggMax     AggregateFunc = "MAX"
	AggFirst   AggregateFunc = "FIRST"
	AggLast    AggregateFunc = "LAST"
	AggCollect AggregateFunc = "COLLECT"
	AggConcat  AggregateFunc = "CONCAT"
)

// ParseAggregateFunc normalizes an aggregation name. AVERAGE is accepted
// for AVG.
func ParseAggregateFunc(s string) (AggregateFunc, bool) {
	switch f := AggregateFunc(strings.ToUpper(strings.TrimSpace(s))); f {
	case AggCount, AggSum, AggAvg, AggMin, AggMax, AggFirst, AggLast, AggCollect, AggConcat:
		return f, true
	case "AVERAGE":
		return AggAvg, true
	}
	return "", false
}

// Aggregation computes one value per group under Alias.
type Aggregation struct {
	Alias     string
	Func      AggregateFunc
	Source    *Operand
	Separator string
}

// GroupSpec describes a GROUP BY stage.
type GroupSpec struct {
	Keys         []Operand
	Aggregations []Aggregation
	Having       *Predicate
}

// StageKind identifies an operator block stage.
type StageKind uint8

// Stage kinds.
const (
	StageWhere StageKind = iota
	StageLike
	StageGroupBy
	StageHaving
	StageOrderBy
	StageDistinct
	StageCustom
	StagePaginate
)

var stageNames = [...]string{
	StageWhere:    "WHERE",
	StageLike:     "LIKE",
	StageGroupBy:  "GROUP BY",
	StageHaving:   "HAVING",
	StageOrderBy:  "ORDER BY",
	StageDistinct: "DISTINCT",
	StageCustom:   "CUSTOM",
	StagePaginate: "PAGINATE",
}

// String returns the stage keyword.
func (k StageKind) String() string {
	if int(k) < len(stageNames) {
		return stageNames[k]
	}
	return "UNKNOWN"
}

// Stage is one step of an operator block.
type Stage struct {
	Kind      StageKind
	Predicate *Predicate // WHERE, LIKE, HAVING
	Order     []OrderKey // ORDER BY
	Group     *GroupSpec // GROUP BY
	Distinct  *Operand   // DISTINCT; nil compares whole rows
	Offset    int        // PAGINATE
	Limit     int        // PAGINATE; negative means unlimited
	Name      string     // CUSTOM, uppercase
	Config    Value      // CUSTOM
}

// Label returns the stage keyword, or the operator name for custom stages.
func (s Stage) Label() string {
	if s.Kind == StageCustom {
		return s.Name
	}
	return s.Kind.String()
}

// OperatorBlock selects, orders and shapes the rows bound to a wildcard
// position. Item is evaluated once per surviving row.
type OperatorBlock struct {
	Stages []Stage
	Item   *Node
}

// HasStages reports whether the block declares any stage.
func (b *OperatorBlock) HasStages() bool { return len(b.Stages) > 0 }

// Expressions returns every expression of the node subtree in template
// order, including stage operands of nested blocks.
func (n *Node) Expressions() []*Expr {
	var out []*Expr
	n.collect(&out, true)
	return out
}

// DirectExpressions returns the expressions of the subtree that are not
// inside a nested operator block.
func (n *Node) DirectExpressions() []*Expr {
	var out []*Expr
	n.collect(&out, false)
	return out
}

func (n *Node) collect(out *[]*Expr, nested bool) {
	if n == nil {
		return
	}
	switch n.Kind {
	case NodeExpression:
		*out = append(*out, n.Expr)
	case NodeMap:
		for _, f := range n.Fields {
			f.Node.collect(out, nested)
		}
	case NodeList:
		for _, item := range n.Items {
			item.collect(out, nested)
		}
	case NodeOperator:
		if nested {
			*out = append(*out, n.Block.Expressions()...)
		}
	}
}

// Expressions returns the expressions referenced by the block: stage
// operands first, then the item template.
func (b *OperatorBlock) Expressions() []*Expr {
	var out []*Expr
	for _, st := range b.Stages {
		out = append(out, st.expressions()...)
	}
	return append(out, b.Item.Expressions()...)
}

// StageExpressions returns the expressions used by the block's stages.
func (b *OperatorBlock) StageExpressions() []*Expr {
	var out []*Expr
	for _, st := range b.Stages {
		out = append(out, st.expressions()...)
	}
	return out
}

func (s Stage) expressions() []*Expr {
	var out []*Expr
	add := func(o *Operand) {
		if o != nil && o.Kind == OperandExpr {
			out = append(out, o.Expr)
		}
	}
	var walk func(p *Predicate)
	walk = func(p *Predicate) {
		if p == nil {
			return
		}
		if p.Kind == PredLeaf {
			add(&p.Left)
			add(&p.Right)
			return
		}
		for _, c := range p.Children {
			walk(c)
		}
	}
	walk(s.Predicate)
	for i := range s.Order {
		add(&s.Order[i].Operand)
	}
	if s.Group != nil {
		for i := range s.Group.Keys {
			add(&s.Group.Keys[i])
		}
		for _, a := range s.Group.Aggregations {
			add(a.Source)
		}
		walk(s.Group.Having)
	}
	add(s.Distinct)
	return out
}
