package query

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"github.com/sandrolain/gomapper/pkg/types"
)

// Test applies a comparison operator to resolved operands. For BETWEEN the
// right operand is a two-element list; for IN a list of candidates.
func Test(left types.Value, op types.CompareOp, right types.Value, caseSensitive bool) (bool, error) {
	switch op {
	case types.OpEq:
		return equals(left, right), nil
	case types.OpNe:
		return !equals(left, right), nil
	case types.OpLt, types.OpLe, types.OpGt, types.OpGe:
		if left.IsNull() || right.IsNull() {
			return false, nil
		}
		c := Compare(left, right)
		switch op {
		case types.OpLt:
			return c < 0, nil
		case types.OpLe:
			return c <= 0, nil
		case types.OpGt:
			return c > 0, nil
		}
		return c >= 0, nil
	case types.OpLike, types.OpNotLike:
		if left.IsNull() || right.IsNull() {
			return false, nil
		}
		ok, err := Like(left.Text(), right.Text(), caseSensitive)
		if err != nil {
			return false, err
		}
		return ok == (op == types.OpLike), nil
	case types.OpIn, types.OpNotIn:
		in := false
		for _, candidate := range candidates(right) {
			if equals(left, candidate) {
				in = true
				break
			}
		}
		return in == (op == types.OpIn), nil
	case types.OpBetween, types.OpNotBetween:
		bounds := right.List()
		if bounds.Len() != 2 {
			return false, types.Errorf(types.ErrInvalidStage, "%s expects two bounds, got %s", op, right.String())
		}
		if left.IsNull() {
			return false, nil
		}
		inside := Compare(left, bounds.At(0)) >= 0 && Compare(left, bounds.At(1)) <= 0
		return inside == (op == types.OpBetween), nil
	case types.OpIsNull:
		return left.IsNull(), nil
	case types.OpIsNotNull:
		return !left.IsNull(), nil
	}
	return false, types.Errorf(types.ErrUnknownComparison, "unknown comparison operator %q", string(op))
}

func candidates(v types.Value) []types.Value {
	if v.Kind() == types.KindList {
		return v.List().Items()
	}
	return []types.Value{v}
}

// equals compares for "=": null matches null or absent, numbers compare
// numerically (numeric strings included), containers deeply, everything
// else by text, so true equals "true".
func equals(a, b types.Value) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	if a.IsContainer() || b.IsContainer() {
		return a.Equal(b)
	}
	if x, ok := a.Number(); ok {
		if y, ok := b.Number(); ok {
			return x == y
		}
	}
	return a.Text() == b.Text()
}

// Compare orders two values: numerically when both coerce to numbers,
// otherwise by their text. Null sorts before everything.
func Compare(a, b types.Value) int {
	switch {
	case a.IsNull() && b.IsNull():
		return 0
	case a.IsNull():
		return -1
	case b.IsNull():
		return 1
	}
	if x, ok := a.Number(); ok {
		if y, ok := b.Number(); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(a.Text(), b.Text())
}

// Like matches s against a SQL LIKE pattern: "%" matches any run of
// characters and "_" exactly one. The match is anchored. Unless
// caseSensitive is set both sides are case folded first.
func Like(s, pattern string, caseSensitive bool) (bool, error) {
	re, err := LikePattern(pattern, caseSensitive)
	if err != nil {
		return false, err
	}
	return MatchLike(re, s, caseSensitive), nil
}

// LikePattern compiles a LIKE pattern. A pattern compiled without
// caseSensitive must be matched with MatchLike using the same setting.
func LikePattern(pattern string, caseSensitive bool) (*regexp.Regexp, error) {
	if !caseSensitive {
		pattern = cases.Fold().String(pattern)
	}
	var b strings.Builder
	b.WriteString(`(?s)\A`)
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteByte('.')
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString(`\z`)
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, types.Errorf(types.ErrInvalidStage, "invalid LIKE pattern %q", pattern).WithCause(err)
	}
	return re, nil
}

// MatchLike matches s against a pattern compiled by LikePattern.
func MatchLike(re *regexp.Regexp, s string, caseSensitive bool) bool {
	if !caseSensitive {
		s = cases.Fold().String(s)
	}
	return re.MatchString(s)
}
