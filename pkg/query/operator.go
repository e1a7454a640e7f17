package query

import (
	"context"
	"fmt"

	"github.com/sandrolain/gomapper/pkg/types"
)

// OperatorCall is the input of a custom operator stage.
type OperatorCall struct {
	// Name is the uppercase stage name.
	Name string
	// Rows is the current row set.
	Rows []Row
	// Config is the stage value written in the template.
	Config types.Value
	// Sources is the root of the evaluation.
	Sources types.Value
}

// OperatorFunc implements a custom operator stage. It returns the new row
// set; it may drop, reorder or duplicate rows but should not build new ones.
type OperatorFunc func(ctx context.Context, call OperatorCall) ([]Row, error)

// Invoke calls fn, turning errors and panics into callback errors.
func Invoke(ctx context.Context, fn OperatorFunc, call OperatorCall) (rows []Row, err error) {
	defer func() {
		if r := recover(); r != nil {
			rows = nil
			err = types.Errorf(types.ErrOperatorFailed, "operator %s panicked: %v", call.Name, r).WithToken(call.Name)
		}
	}()
	rows, err = fn(ctx, call)
	if err != nil {
		if types.CodeOf(err) == types.ErrOperatorFailed {
			return nil, err
		}
		return nil, types.Errorf(types.ErrOperatorFailed, "operator %s failed", call.Name).WithToken(call.Name).WithCause(err)
	}
	return rows, nil
}

// Env carries what stage execution needs beyond the rows.
type Env struct {
	// Resolver evaluates operands. Defaults to RowResolver.
	Resolver Resolver
	// Operator looks up custom operators by uppercase name.
	Operator func(name string) (OperatorFunc, bool)
	// Sources is passed to custom operators.
	Sources types.Value
	// Observe, when set, is called after every stage with the row counts.
	Observe func(st types.Stage, in, out int)
}

// Run applies stages to rows in order.
func Run(ctx context.Context, rows []Row, stages []types.Stage, env Env) ([]Row, error) {
	res := env.Resolver
	if res == nil {
		res = RowResolver{}
	}
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		in := len(rows)
		var err error
		switch st.Kind {
		case types.StageWhere, types.StageLike, types.StageHaving:
			rows, err = Where(ctx, rows, st.Predicate, res)
		case types.StageGroupBy:
			rows, err = GroupBy(ctx, rows, st.Group, res)
		case types.StageOrderBy:
			rows, err = OrderBy(ctx, rows, st.Order, res)
		case types.StageDistinct:
			rows, err = Distinct(ctx, rows, st.Distinct, res)
		case types.StagePaginate:
			rows = Paginate(rows, st.Offset, st.Limit)
		case types.StageCustom:
			var fn OperatorFunc
			ok := false
			if env.Operator != nil {
				fn, ok = env.Operator(st.Name)
			}
			if !ok {
				return nil, types.Errorf(types.ErrUnknownName, "unknown operator %q", st.Name).WithToken(st.Name)
			}
			rows, err = Invoke(ctx, fn, OperatorCall{Name: st.Name, Rows: rows, Config: st.Config, Sources: env.Sources})
		default:
			err = fmt.Errorf("unsupported stage kind %d", st.Kind)
		}
		if err != nil {
			return nil, err
		}
		if env.Observe != nil {
			env.Observe(st, in, len(rows))
		}
	}
	return rows, nil
}
