package query_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandrolain/gomapper/pkg/path"
	"github.com/sandrolain/gomapper/pkg/query"
	"github.com/sandrolain/gomapper/pkg/types"
)

func rowsOf(t *testing.T, doc string, prefixes ...string) []query.Row {
	t.Helper()
	data := types.MustParseJSON(doc)
	ps := make([]types.Path, len(prefixes))
	ms := make([][]path.Match, len(prefixes))
	for i, p := range prefixes {
		ps[i] = types.MustParsePath(p)
		m, err := path.Resolve(data, ps[i])
		require.NoError(t, err)
		ms[i] = m
	}
	return query.Rows(ps, ms)
}

func expr(p string) types.Operand {
	return types.ExprOperand(&types.Expr{Source: p, Path: types.MustParsePath(p)})
}

func lit(v types.Value) types.Operand { return types.LiteralOperand(v) }

func field(p string) types.Operand { return types.FieldOperand(types.MustParsePath(p)) }

func primaries(rows []query.Row, key string) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		v, _ := r.Primary().Map().Get(key)
		out[i] = v.Text()
	}
	return out
}

const products = `{"products": [
	{"name": "pen", "cat": "A", "price": 10},
	{"name": "ink", "cat": "A", "price": 20},
	{"name": "cup", "cat": "B", "price": 5},
	{"name": "mug", "cat": "B", "price": null}
]}`

func TestRows_LockStepZip(t *testing.T) {
	rows := rowsOf(t, `{"a": [1, 2, 3], "b": [10, 20]}`, "a.*", "b.*")
	require.Len(t, rows, 2)
	assert.Equal(t, int64(2), rows[1].Elements[0].Int())
	assert.Equal(t, int64(20), rows[1].Elements[1].Int())

	v, bound, err := rows[0].Lookup(types.MustParsePath("b.*"))
	require.NoError(t, err)
	assert.True(t, bound)
	assert.Equal(t, int64(10), v.Int())
	assert.Equal(t, "b.1", rows[1].Concrete(types.MustParsePath("b.*")).String())
}

func TestTest(t *testing.T) {
	tests := []struct {
		name  string
		left  types.Value
		op    types.CompareOp
		right types.Value
		want  bool
	}{
		{"numeric eq", types.Int(10), types.OpEq, types.Float(10), true},
		{"numeric string eq", types.String("10"), types.OpEq, types.Int(10), true},
		{"string eq", types.String("a"), types.OpEq, types.String("a"), true},
		{"null eq null", types.Null(), types.OpEq, types.Null(), true},
		{"value eq null", types.Int(0), types.OpEq, types.Null(), false},
		{"ne null", types.Int(0), types.OpNe, types.Null(), true},
		{"gt numeric", types.String("9"), types.OpGt, types.String("10"), false},
		{"gt text", types.String("b"), types.OpGt, types.String("a"), true},
		{"lt null", types.Null(), types.OpLt, types.Int(1), false},
		{"le", types.Int(2), types.OpLe, types.Int(2), true},
		{"in", types.String("x"), types.OpIn, types.ListOf(types.String("y"), types.String("x")), true},
		{"not in", types.Int(1), types.OpNotIn, types.ListOf(types.Int(2)), true},
		{"between", types.Int(5), types.OpBetween, types.ListOf(types.Int(1), types.Int(5)), true},
		{"not between", types.Int(6), types.OpNotBetween, types.ListOf(types.Int(1), types.Int(5)), true},
		{"is null", types.Null(), types.OpIsNull, types.Null(), true},
		{"is not null", types.Bool(false), types.OpIsNotNull, types.Null(), true},
		{"bool eq", types.Bool(true), types.OpEq, types.Bool(true), true},
		{"bool eq bool text", types.Bool(true), types.OpEq, types.String("true"), true},
		{"bool ne other text", types.Bool(true), types.OpEq, types.String("yes"), false},
		{"bool ne number", types.Bool(true), types.OpEq, types.Int(1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := query.Test(tt.left, tt.op, tt.right, false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLike(t *testing.T) {
	tests := []struct {
		s, pattern string
		cs         bool
		want       bool
	}{
		{"Alice", "a%", false, true},
		{"Alice", "a%", true, false},
		{"Alice", "_lice", false, true},
		{"Alice", "A_ice%", true, true},
		{"Alice", "lic", false, false},
		{"a.b", "a.b", false, true},
		{"axb", "a.b", false, false},
		{"STRASSE", "straße", false, true},
		{"line\nbreak", "line%", false, true},
	}
	for _, tt := range tests {
		got, err := query.Like(tt.s, tt.pattern, tt.cs)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%q LIKE %q (cs=%v)", tt.s, tt.pattern, tt.cs)
	}
}

func TestWhere_BoolMatchesText(t *testing.T) {
	rows := rowsOf(t, `{"p": [{"id": 1, "x": true}, {"id": 2, "x": "true"}, {"id": 3, "x": false}]}`, "p.*")
	pred := &types.Predicate{Left: expr("p.*.x"), Op: types.OpEq, Right: lit(types.String("true"))}
	out, err := query.Where(context.Background(), rows, pred, query.RowResolver{})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, primaries(out, "id"))
}

func TestMatch_CompiledLikePattern(t *testing.T) {
	rows := rowsOf(t, products, "products.*")
	re, err := query.LikePattern("P%", false)
	require.NoError(t, err)
	pred := &types.Predicate{Left: expr("products.*.name"), Op: types.OpLike, Right: lit(types.String("unused")), Pattern: re}
	out, err := query.Where(context.Background(), rows, pred, query.RowResolver{})
	require.NoError(t, err)
	assert.Equal(t, []string{"pen"}, primaries(out, "name"))

	pred.Op = types.OpNotLike
	out, err = query.Where(context.Background(), rows, pred, query.RowResolver{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ink", "cup", "mug"}, primaries(out, "name"))

	assert.True(t, query.MatchLike(re, "PEN", false))
	assert.False(t, query.MatchLike(re, "cup", false))
}

func TestWhere_AndOr(t *testing.T) {
	ctx := context.Background()
	rows := rowsOf(t, products, "products.*")
	pred := types.Or(
		types.And(
			types.Leaf(expr("products.*.cat"), types.OpEq, lit(types.String("A"))),
			types.Leaf(expr("products.*.price"), types.OpGt, lit(types.Int(15))),
		),
		types.Leaf(expr("products.*.price"), types.OpIsNull, types.Operand{}),
	)
	out, err := query.Where(ctx, rows, pred, query.RowResolver{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ink", "mug"}, primaries(out, "name"))
}

func TestWhere_Idempotent(t *testing.T) {
	ctx := context.Background()
	rows := rowsOf(t, products, "products.*")
	pred := types.Leaf(field("price"), types.OpGe, lit(types.Int(10)))
	once, err := query.Where(ctx, rows, pred, query.RowResolver{})
	require.NoError(t, err)
	twice, err := query.Where(ctx, once, pred, query.RowResolver{})
	require.NoError(t, err)
	assert.Equal(t, primaries(once, "name"), primaries(twice, "name"))
}

func TestWhere_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := query.Where(ctx, rowsOf(t, products, "products.*"), nil, query.RowResolver{})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestOrderBy_StableNullsLast(t *testing.T) {
	ctx := context.Background()
	rows := rowsOf(t, products, "products.*")

	out, err := query.OrderBy(ctx, rows, []types.OrderKey{{Operand: field("cat"), Desc: true}}, query.RowResolver{})
	require.NoError(t, err)
	assert.Equal(t, []string{"cup", "mug", "pen", "ink"}, primaries(out, "name"))

	out, err = query.OrderBy(ctx, rows, []types.OrderKey{{Operand: field("price")}}, query.RowResolver{})
	require.NoError(t, err)
	assert.Equal(t, []string{"cup", "pen", "ink", "mug"}, primaries(out, "name"))

	out, err = query.OrderBy(ctx, rows, []types.OrderKey{{Operand: field("price"), Desc: true}}, query.RowResolver{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ink", "pen", "cup", "mug"}, primaries(out, "name"))
}

func TestGroupBy_Having(t *testing.T) {
	ctx := context.Background()
	rows := rowsOf(t, `{"items": [
		{"cat": "A", "price": 10},
		{"cat": "A", "price": 20},
		{"cat": "B", "price": 5}
	]}`, "items.*")
	price := expr("items.*.price")
	spec := &types.GroupSpec{
		Keys: []types.Operand{expr("items.*.cat")},
		Aggregations: []types.Aggregation{
			{Alias: "count", Func: types.AggCount},
			{Alias: "total", Func: types.AggSum, Source: &price},
			{Alias: "avg", Func: types.AggAvg, Source: &price},
		},
		Having: types.Leaf(field("count"), types.OpGt, lit(types.Int(1))),
	}
	out, err := query.GroupBy(ctx, rows, spec, query.RowResolver{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	g := out[0]
	assert.Len(t, g.Members, 2)
	assert.Equal(t, "A", primaries(out, "cat")[0])
	count, _ := g.Aggregate("count")
	assert.Equal(t, int64(2), count.Int())
	total, _ := g.Aggregate("total")
	assert.Equal(t, types.KindInt, total.Kind())
	assert.Equal(t, int64(30), total.Int())
	avg, _ := g.Aggregate("avg")
	assert.Equal(t, 15.0, avg.Float())

	merged, _ := g.Primary().Map().Get("count")
	assert.Equal(t, int64(2), merged.Int())
	// source element untouched
	orig, _ := rows[0].Primary().Map().Get("count")
	assert.True(t, orig.IsNull())
}

func TestAggregate(t *testing.T) {
	ctx := context.Background()
	rows := rowsOf(t, `{"v": [3, "x", 1.5, null, "2"]}`, "v.*")
	src := expr("v.*")
	run := func(f types.AggregateFunc, sep string) types.Value {
		v, err := query.Aggregate(ctx, types.Aggregation{Alias: "a", Func: f, Source: &src, Separator: sep}, rows, query.RowResolver{})
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, 6.5, run(types.AggSum, "").Float())
	assert.Equal(t, 1.5, run(types.AggMin, "").Float())
	assert.Equal(t, int64(3), run(types.AggMax, "").Int())
	assert.Equal(t, int64(3), run(types.AggFirst, "").Int())
	assert.Equal(t, "2", run(types.AggLast, "").Str())
	assert.Equal(t, 5, run(types.AggCollect, "").List().Len())
	assert.Equal(t, "3|x|1.5|2", run(types.AggConcat, "|").Str())

	empty := rowsOf(t, `{"v": ["x"]}`, "v.*")
	v, err := query.Aggregate(ctx, types.Aggregation{Alias: "a", Func: types.AggSum, Source: &src}, empty, query.RowResolver{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), v.Int())
	v, err = query.Aggregate(ctx, types.Aggregation{Alias: "a", Func: types.AggAvg, Source: &src}, empty, query.RowResolver{})
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestAggregate_SumOverflow(t *testing.T) {
	ctx := context.Background()
	src := expr("v.*")
	sum := func(doc string) types.Value {
		v, err := query.Aggregate(ctx, types.Aggregation{Alias: "a", Func: types.AggSum, Source: &src}, rowsOf(t, doc, "v.*"), query.RowResolver{})
		require.NoError(t, err)
		return v
	}

	v := sum(`{"v": [5, 7]}`)
	assert.Equal(t, types.KindInt, v.Kind())
	assert.Equal(t, int64(12), v.Int())

	v = sum(`{"v": [9223372036854775807, 1]}`)
	assert.Equal(t, types.KindFloat, v.Kind())
	assert.InDelta(t, 9.223372036854775808e18, v.Float(), 1e4)

	v = sum(`{"v": [-9223372036854775808, -1]}`)
	assert.Equal(t, types.KindFloat, v.Kind())
	assert.Less(t, v.Float(), 0.0)
}

func TestDistinct(t *testing.T) {
	ctx := context.Background()
	rows := rowsOf(t, products, "products.*")
	cat := field("cat")
	out, err := query.Distinct(ctx, rows, &cat, query.RowResolver{})
	require.NoError(t, err)
	assert.Equal(t, []string{"pen", "cup"}, primaries(out, "name"))

	dup := rowsOf(t, `{"a": [1, 2, 1, 2, 3]}`, "a.*")
	out, err = query.Distinct(ctx, dup, nil, query.RowResolver{})
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestPaginate(t *testing.T) {
	rows := rowsOf(t, `{"a": [1, 2, 3, 4, 5]}`, "a.*")
	assert.Len(t, query.Paginate(rows, 1, 2), 2)
	assert.Equal(t, int64(2), query.Paginate(rows, 1, 2)[0].Primary().Int())
	assert.Len(t, query.Paginate(rows, 3, -1), 2)
	assert.Empty(t, query.Paginate(rows, 9, -1))
	assert.Empty(t, query.Paginate(rows, 0, 0))
}

func TestRun_DeclarationOrder(t *testing.T) {
	ctx := context.Background()
	rows := rowsOf(t, `{"a": [1, 5, 2, 6, 3]}`, "a.*")
	where := types.Stage{Kind: types.StageWhere, Predicate: types.Leaf(expr("a.*"), types.OpGt, lit(types.Int(2)))}
	limit := types.Stage{Kind: types.StagePaginate, Limit: 2}

	out, err := query.Run(ctx, rows, []types.Stage{where, limit}, query.Env{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(5), out[0].Primary().Int())
	assert.Equal(t, int64(6), out[1].Primary().Int())

	out, err = query.Run(ctx, rows, []types.Stage{limit, where}, query.Env{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(5), out[0].Primary().Int())
}

func TestRun_CustomOperator(t *testing.T) {
	ctx := context.Background()
	rows := rowsOf(t, `{"a": [1, 2, 3, 4]}`, "a.*")
	everyOther := func(_ context.Context, call query.OperatorCall) ([]query.Row, error) {
		var out []query.Row
		for i, r := range call.Rows {
			if i%2 == 0 {
				out = append(out, r)
			}
		}
		return out, nil
	}
	var observed []int
	env := query.Env{
		Operator: func(name string) (query.OperatorFunc, bool) {
			return everyOther, name == "EVERY_OTHER"
		},
		Observe: func(_ types.Stage, in, out int) { observed = append(observed, in, out) },
	}
	out, err := query.Run(ctx, rows, []types.Stage{{Kind: types.StageCustom, Name: "EVERY_OTHER"}}, env)
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, []int{4, 2}, observed)

	_, err = query.Run(ctx, rows, []types.Stage{{Kind: types.StageCustom, Name: "MISSING"}}, env)
	assert.Equal(t, types.ErrUnknownName, types.CodeOf(err))
}

func TestInvoke_RecoversPanics(t *testing.T) {
	boom := func(context.Context, query.OperatorCall) ([]query.Row, error) { panic("boom") }
	_, err := query.Invoke(context.Background(), boom, query.OperatorCall{Name: "BOOM"})
	require.Error(t, err)
	assert.Equal(t, types.ErrOperatorFailed, types.CodeOf(err))
	assert.True(t, errors.Is(err, types.ErrCallback))

	failing := func(context.Context, query.OperatorCall) ([]query.Row, error) { return nil, errors.New("nope") }
	_, err = query.Invoke(context.Background(), failing, query.OperatorCall{Name: "FAIL"})
	assert.ErrorContains(t, err, "nope")
}
