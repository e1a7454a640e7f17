package parser_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandrolain/gomapper/pkg/parser"
	"github.com/sandrolain/gomapper/pkg/types"
)

func TestLexer(t *testing.T) {
	lx := parser.NewLexer(`user.name | default:"n/a" | round:2`)
	var got []parser.TokenType
	for {
		tok := lx.Next()
		if tok.Type == parser.TokenEOF {
			break
		}
		require.NotEqual(t, parser.TokenError, tok.Type, "lexer error: %v", lx.Error())
		got = append(got, tok.Type)
	}
	assert.Equal(t, []parser.TokenType{
		parser.TokenWord, parser.TokenPipe, parser.TokenWord, parser.TokenColon, parser.TokenString,
		parser.TokenPipe, parser.TokenWord, parser.TokenColon, parser.TokenWord,
	}, got)
}

func TestLexer_UnterminatedString(t *testing.T) {
	lx := parser.NewLexer(`a | default:"oops`)
	for {
		tok := lx.Next()
		if tok.Type == parser.TokenEOF {
			t.Fatal("expected an error token")
		}
		if tok.Type == parser.TokenError {
			break
		}
	}
	assert.Equal(t, types.ErrStringNotClosed, types.CodeOf(lx.Error()))
}

func TestParseExpression(t *testing.T) {
	expr, err := parser.ParseExpression(`{{ user.name | trim | default:'n/a' | replace:"a":"b" | round:2 }}`)
	require.NoError(t, err)
	assert.Equal(t, "user.name", expr.Path.String())
	require.Len(t, expr.Filters, 4)
	assert.Equal(t, "trim", expr.Filters[0].Name)
	assert.Empty(t, expr.Filters[0].Args)
	assert.Equal(t, []types.Value{types.String("n/a")}, expr.Filters[1].Args)
	assert.Equal(t, []types.Value{types.String("a"), types.String("b")}, expr.Filters[2].Args)
	assert.Equal(t, []types.Value{types.Int(2)}, expr.Filters[3].Args)
}

func TestParseExpression_Errors(t *testing.T) {
	tests := []struct {
		in   string
		code types.ErrorCode
	}{
		{"{{ }}", types.ErrEmptyExpression},
		{"{{ user.name", types.ErrExprNotClosed},
		{"{{ a | }}", types.ErrExprSyntax},
		{"{{ a b }}", types.ErrUnexpectedToken},
		{"{{ a | f: }}", types.ErrExprSyntax},
		{"{{ a..b }}", types.ErrEmptySegment},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := parser.ParseExpression(tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.code, types.CodeOf(err))
		})
	}
}

func TestIsExpression(t *testing.T) {
	assert.True(t, parser.IsExpression("{{ a.b }}"))
	assert.True(t, parser.IsExpression("  {{a}}  "))
	assert.False(t, parser.IsExpression("hello {{ a }}"))
	assert.False(t, parser.IsExpression("{{ a }} and {{ b }}"))
	assert.False(t, parser.IsExpression("plain"))
	assert.True(t, parser.IsExpression(`{{ o | merge:'{"b": {"y": 2}}' }}`))
	assert.True(t, parser.IsExpression(`{{ s | replace:"}}":"{{" }}`))
	assert.False(t, parser.IsExpression(`{{ a }} '}}'`))
}

func TestParseExpression_QuotedBraces(t *testing.T) {
	expr, err := parser.ParseExpression(`{{ o | merge:'{"b": {"y": 2}}' }}`)
	require.NoError(t, err)
	assert.Equal(t, "o", expr.Path.String())
	require.Len(t, expr.Filters, 1)
	assert.Equal(t, []types.Value{types.String(`{"b": {"y": 2}}`)}, expr.Filters[0].Args)

	tpl, err := parser.CompileJSON([]byte(`{"v": "{{ o | merge:'{\"b\": 1}' }}"}`))
	require.NoError(t, err)
	assert.Equal(t, types.NodeExpression, tpl.Root().Fields[0].Node.Kind)

	_, err = parser.ParseExpression(`{{ o | merge:'{"b": 1} }}`)
	assert.Equal(t, types.ErrStringNotClosed, types.CodeOf(err))
}

func TestCompile_Tree(t *testing.T) {
	tpl, err := parser.CompileJSON([]byte(`{
		"name": "{{ user.name }}",
		"kind": "person",
		"tags": ["{{ user.tags.0 }}", 3]
	}`))
	require.NoError(t, err)
	root := tpl.Root()
	require.Equal(t, types.NodeMap, root.Kind)
	require.Len(t, root.Fields, 3)
	assert.Equal(t, "name", root.Fields[0].Key)
	assert.Equal(t, types.NodeExpression, root.Fields[0].Node.Kind)
	assert.Equal(t, types.NodeLiteral, root.Fields[1].Node.Kind)
	assert.Equal(t, types.NodeList, root.Fields[2].Node.Kind)
	assert.Len(t, root.Expressions(), 2)
}

func TestCompile_StageDeclarationOrder(t *testing.T) {
	tpl, err := parser.CompileJSON([]byte(`{
		"out": {
			"*": "{{ items.*.name }}",
			"LIMIT": 2,
			"WHERE": {"{{ items.*.active }}": true},
			"order_by": {"{{ items.*.name }}": "desc"}
		}
	}`))
	require.NoError(t, err)
	block := tpl.Root().Fields[0].Node.Block
	require.Len(t, block.Stages, 3)
	assert.Equal(t, types.StagePaginate, block.Stages[0].Kind)
	assert.Equal(t, 2, block.Stages[0].Limit)
	assert.Equal(t, types.StageWhere, block.Stages[1].Kind)
	assert.Equal(t, types.StageOrderBy, block.Stages[2].Kind)
	assert.True(t, block.Stages[2].Order[0].Desc)
}

func TestCompile_CanonicalOrderForUnorderedMaps(t *testing.T) {
	tpl, err := parser.CompileNative(map[string]any{
		"out": map[string]any{
			"*":        "{{ items.*.name }}",
			"LIMIT":    1,
			"OFFSET":   1,
			"ORDER BY": "{{ items.*.name }} DESC",
			"WHERE":    map[string]any{"{{ items.*.active }}": true},
		},
	})
	require.NoError(t, err)
	stages := tpl.Root().Fields[0].Node.Block.Stages
	require.Len(t, stages, 3)
	assert.Equal(t, types.StageWhere, stages[0].Kind)
	assert.Equal(t, types.StageOrderBy, stages[1].Kind)
	assert.Equal(t, types.StagePaginate, stages[2].Kind)
	assert.Equal(t, 1, stages[2].Offset)
	assert.Equal(t, 1, stages[2].Limit)
}

func TestCompile_PaginationCoalescing(t *testing.T) {
	tpl, err := parser.CompileJSON([]byte(`{"out": {
		"*": "{{ a.* }}", "LIMIT": 5, "OFFSET": 2, "WHERE": {"{{ a.* }}": [">", 0]}, "LIMIT ": 1
	}}`))
	require.NoError(t, err)
	stages := tpl.Root().Fields[0].Node.Block.Stages
	require.Len(t, stages, 3)
	assert.Equal(t, types.StagePaginate, stages[0].Kind)
	assert.Equal(t, 2, stages[0].Offset)
	assert.Equal(t, 5, stages[0].Limit)
	assert.Equal(t, types.StagePaginate, stages[2].Kind)
	assert.Equal(t, 0, stages[2].Offset)
	assert.Equal(t, 1, stages[2].Limit)
}

func TestCompile_Conditions(t *testing.T) {
	tpl, err := parser.CompileJSON([]byte(`{"out": {
		"*": "{{ p.*.name }}",
		"WHERE": {
			"{{ p.*.age }}": ["BETWEEN", 18, 65],
			"OR": [
				{"{{ p.*.role }}": ["admin", "owner"]},
				{"{{ p.*.email }}": "IS NOT NULL"}
			],
			"{{ p.*.name }}": ["like", "a%", true]
		}
	}}`))
	require.NoError(t, err)
	pred := tpl.Root().Fields[0].Node.Block.Stages[0].Predicate
	require.Equal(t, types.PredAnd, pred.Kind)
	require.Len(t, pred.Children, 3)

	between := pred.Children[0]
	assert.Equal(t, types.OpBetween, between.Op)
	assert.Equal(t, 2, between.Right.Literal.List().Len())

	or := pred.Children[1]
	require.Equal(t, types.PredOr, or.Kind)
	assert.Equal(t, types.OpIn, or.Children[0].Op)
	assert.Equal(t, types.OpIsNotNull, or.Children[1].Op)

	like := pred.Children[2]
	assert.Equal(t, types.OpLike, like.Op)
	assert.True(t, like.CaseSensitive)
	require.NotNil(t, like.Pattern)
	assert.True(t, like.Pattern.MatchString("alice"))
}

func TestCompile_GroupBy(t *testing.T) {
	tpl, err := parser.CompileJSON([]byte(`{"out": {
		"*": {"cat": "{{ items.*.cat }}"},
		"GROUP BY": {
			"field": "{{ items.*.cat }}",
			"aggregations": {
				"count": "COUNT",
				"total": ["SUM", "{{ items.*.price }}"],
				"names": {"function": "concat", "field": "{{ items.*.name }}", "separator": ", "},
				"avg": "AVERAGE(price)"
			}
		},
		"HAVING": {"count": [">", 1]}
	}}`))
	require.NoError(t, err)
	stages := tpl.Root().Fields[0].Node.Block.Stages
	require.Len(t, stages, 2)
	group := stages[0].Group
	require.Len(t, group.Keys, 1)
	require.Len(t, group.Aggregations, 4)
	assert.Equal(t, types.AggCount, group.Aggregations[0].Func)
	assert.Nil(t, group.Aggregations[0].Source)
	assert.Equal(t, types.AggSum, group.Aggregations[1].Func)
	assert.Equal(t, types.AggConcat, group.Aggregations[2].Func)
	assert.Equal(t, ", ", group.Aggregations[2].Separator)
	assert.Equal(t, types.AggAvg, group.Aggregations[3].Func)
	assert.Equal(t, types.OperandField, group.Aggregations[3].Source.Kind)

	having := stages[1]
	assert.Equal(t, types.StageHaving, having.Kind)
	assert.Equal(t, types.OperandField, having.Predicate.Left.Kind)
}

func TestCompile_CustomStage(t *testing.T) {
	tpl, err := parser.CompileJSON([]byte(`{"out": {"*": "{{ a.* }}", "sample": {"n": 2}}}`))
	require.NoError(t, err)
	st := tpl.Root().Fields[0].Node.Block.Stages[0]
	assert.Equal(t, types.StageCustom, st.Kind)
	assert.Equal(t, "SAMPLE", st.Name)
	n, ok := st.Config.Map().Get("n")
	require.True(t, ok)
	assert.Equal(t, int64(2), n.Int())
}

func TestCompile_DistinctFalseIsDropped(t *testing.T) {
	tpl, err := parser.CompileJSON([]byte(`{"out": {"*": "{{ a.* }}", "DISTINCT": false}}`))
	require.NoError(t, err)
	assert.Empty(t, tpl.Root().Fields[0].Node.Block.Stages)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		code types.ErrorCode
	}{
		{"having without group", `{"o": {"*": "{{ a.* }}", "HAVING": {"n": 1}}}`, types.ErrHavingWithoutGroupBy},
		{"unknown operator", `{"o": {"*": "{{ a.* }}", "WHERE": {"{{ a.* }}": ["=~", 1]}}}`, types.ErrUnknownComparison},
		{"bad direction", `{"o": {"*": "{{ a.* }}", "ORDER BY": {"{{ a.* }}": "UP"}}}`, types.ErrInvalidDirection},
		{"negative limit", `{"o": {"*": "{{ a.* }}", "LIMIT": -1}}`, types.ErrInvalidPagination},
		{"fractional offset", `{"o": {"*": "{{ a.* }}", "OFFSET": 1.5}}`, types.ErrInvalidPagination},
		{"unknown aggregation", `{"o": {"*": "{{ a.* }}", "GROUP BY": {"field": "{{ a.* }}", "aggregations": {"x": "MEDIAN"}}}}`, types.ErrUnknownAggregation},
		{"no wildcard", `{"o": {"*": "{{ a.b }}"}}`, types.ErrNoWildcard},
		{"misplaced stage", `{"o": {"WHERE": {"a": 1}, "x": 1}}`, types.ErrMisplacedStage},
		{"unclosed expression", `{"o": "{{ a.b"}`, types.ErrExprNotClosed},
		{"bad path", `{"o": "{{ a..b }}"}`, types.ErrEmptySegment},
		{"invalid json", `{"o": `, types.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.CompileJSON([]byte(tt.doc))
			require.Error(t, err)
			assert.Equal(t, tt.code, types.CodeOf(err))
		})
	}
}

func TestCompile_LowercaseReservedKeyIsOutput(t *testing.T) {
	tpl, err := parser.CompileJSON([]byte(`{"limit": "{{ page.size }}"}`))
	require.NoError(t, err)
	assert.Equal(t, "limit", tpl.Root().Fields[0].Key)
}

func TestCompile_ErrorPathAndClass(t *testing.T) {
	_, err := parser.CompileJSON([]byte(`{"a": {"b": "{{ x | }}"}}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrSyntax))
	var e *types.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "a.b", e.Path)
}

func TestCompile_MaxDepth(t *testing.T) {
	_, err := parser.CompileJSON([]byte(`{"a": {"b": {"c": 1}}}`), parser.WithMaxDepth(2))
	require.Error(t, err)
	assert.Equal(t, types.ErrDepthExceeded, types.CodeOf(err))
}

func TestCompileYAML(t *testing.T) {
	tpl, err := parser.CompileYAML([]byte(`
names:
  "*": "{{ users.*.name }}"
  WHERE:
    "{{ users.*.active }}": true
`))
	require.NoError(t, err)
	block := tpl.Root().Fields[0].Node.Block
	require.NotNil(t, block)
	assert.Equal(t, types.StageWhere, block.Stages[0].Kind)
}
