// Package extnumeric provides numeric and statistical filters.
//
// Scalar filters pass null through. Statistical filters take a list and
// ignore its non-numeric items; on an empty list they return null.
package extnumeric

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/sandrolain/gomapper/pkg/ext/extutil"
	"github.com/sandrolain/gomapper/pkg/filters"
	"github.com/sandrolain/gomapper/pkg/types"
)

// All returns every filter of the pack.
func All() []filters.Def {
	return []filters.Def{
		Sign(),
		Trunc(),
		Clamp(),
		Log(),
		Pow(),
		Sqrt(),
		Sum(),
		Avg(),
		Min(),
		Max(),
		Median(),
		Variance(),
		Stddev(),
		Percentile(),
		Mode(),
	}
}

func number(in types.Value) (float64, error) {
	f, ok := in.Number()
	if !ok {
		return 0, fmt.Errorf("%s is not a number", in.String())
	}
	return f, nil
}

func scalar(name string, minArgs, maxArgs int, fn func(x float64, args []types.Value) (float64, error)) filters.Def {
	return filters.Def{
		Name:    name,
		MinArgs: minArgs,
		MaxArgs: maxArgs,
		Fn: func(_ context.Context, in types.Value, args ...types.Value) (types.Value, error) {
			if in.IsNull() {
				return in, nil
			}
			x, err := number(in)
			if err != nil {
				return types.Null(), err
			}
			out, err := fn(x, args)
			if err != nil {
				return types.Null(), err
			}
			if math.IsNaN(out) || math.IsInf(out, 0) {
				return types.Null(), fmt.Errorf("%s of %s is not a finite number", name, in.String())
			}
			return extutil.Number(out), nil
		},
	}
}

// Sign returns the definition for sign: -1, 0 or 1.
func Sign() filters.Def {
	return scalar("sign", 0, 0, func(x float64, _ []types.Value) (float64, error) {
		switch {
		case x > 0:
			return 1, nil
		case x < 0:
			return -1, nil
		}
		return 0, nil
	})
}

// Trunc returns the definition for trunc, dropping the fractional part.
func Trunc() filters.Def {
	return scalar("trunc", 0, 0, func(x float64, _ []types.Value) (float64, error) {
		return math.Trunc(x), nil
	})
}

// Clamp returns the definition for clamp:lo:hi.
func Clamp() filters.Def {
	return scalar("clamp", 2, 2, func(x float64, args []types.Value) (float64, error) {
		lo, err := extutil.Float(args, 0, 0)
		if err != nil {
			return 0, err
		}
		hi, err := extutil.Float(args, 1, 0)
		if err != nil {
			return 0, err
		}
		if lo > hi {
			return 0, fmt.Errorf("clamp bounds are inverted: %v > %v", lo, hi)
		}
		return math.Max(lo, math.Min(hi, x)), nil
	})
}

// Log returns the definition for log[:base]. Without a base it is the
// natural logarithm.
func Log() filters.Def {
	return scalar("log", 0, 1, func(x float64, args []types.Value) (float64, error) {
		if x <= 0 {
			return 0, errors.New("log is only defined for positive numbers")
		}
		base, err := extutil.Float(args, 0, 0)
		if err != nil {
			return 0, err
		}
		if base == 0 {
			return math.Log(x), nil
		}
		if base <= 0 || base == 1 {
			return 0, fmt.Errorf("invalid logarithm base %v", base)
		}
		return math.Log(x) / math.Log(base), nil
	})
}

// Pow returns the definition for pow:exponent.
func Pow() filters.Def {
	return scalar("pow", 1, 1, func(x float64, args []types.Value) (float64, error) {
		e, err := extutil.Float(args, 0, 1)
		if err != nil {
			return 0, err
		}
		return math.Pow(x, e), nil
	})
}

// Sqrt returns the definition for sqrt.
func Sqrt() filters.Def {
	return scalar("sqrt", 0, 0, func(x float64, _ []types.Value) (float64, error) {
		if x < 0 {
			return 0, errors.New("sqrt of a negative number")
		}
		return math.Sqrt(x), nil
	})
}

func stat(name string, maxArgs int, fn func(xs []float64, args []types.Value) (float64, error)) filters.Def {
	return filters.Def{
		Name:    name,
		MaxArgs: maxArgs,
		Fn: func(_ context.Context, in types.Value, args ...types.Value) (types.Value, error) {
			if in.IsNull() {
				return in, nil
			}
			xs, err := extutil.Numbers(in)
			if err != nil {
				return types.Null(), err
			}
			if len(xs) == 0 {
				return types.Null(), nil
			}
			out, err := fn(xs, args)
			if err != nil {
				return types.Null(), err
			}
			return extutil.Number(out), nil
		},
	}
}

func sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}

func mean(xs []float64) float64 { return sum(xs) / float64(len(xs)) }

// Sum returns the definition for sum.
func Sum() filters.Def {
	return stat("sum", 0, func(xs []float64, _ []types.Value) (float64, error) { return sum(xs), nil })
}

// Avg returns the definition for avg.
func Avg() filters.Def {
	return stat("avg", 0, func(xs []float64, _ []types.Value) (float64, error) { return mean(xs), nil })
}

// Min returns the definition for min.
func Min() filters.Def {
	return stat("min", 0, func(xs []float64, _ []types.Value) (float64, error) {
		m := xs[0]
		for _, x := range xs[1:] {
			m = math.Min(m, x)
		}
		return m, nil
	})
}

// Max returns the definition for max.
func Max() filters.Def {
	return stat("max", 0, func(xs []float64, _ []types.Value) (float64, error) {
		m := xs[0]
		for _, x := range xs[1:] {
			m = math.Max(m, x)
		}
		return m, nil
	})
}

func sorted(xs []float64) []float64 {
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	return s
}

// Median returns the definition for median.
func Median() filters.Def {
	return stat("median", 0, func(xs []float64, _ []types.Value) (float64, error) {
		s := sorted(xs)
		mid := len(s) / 2
		if len(s)%2 == 0 {
			return (s[mid-1] + s[mid]) / 2, nil
		}
		return s[mid], nil
	})
}

func variance(xs []float64) float64 {
	m := mean(xs)
	var acc float64
	for _, x := range xs {
		acc += (x - m) * (x - m)
	}
	return acc / float64(len(xs))
}

// Variance returns the definition for variance (population variance).
func Variance() filters.Def {
	return stat("variance", 0, func(xs []float64, _ []types.Value) (float64, error) { return variance(xs), nil })
}

// Stddev returns the definition for stddev (population standard deviation).
func Stddev() filters.Def {
	return stat("stddev", 0, func(xs []float64, _ []types.Value) (float64, error) {
		return math.Sqrt(variance(xs)), nil
	})
}

// Percentile returns the definition for percentile:p with p in [0, 100],
// using linear interpolation between closest ranks.
func Percentile() filters.Def {
	d := stat("percentile", 1, func(xs []float64, args []types.Value) (float64, error) {
		p, err := extutil.Float(args, 0, 0)
		if err != nil {
			return 0, err
		}
		if p < 0 || p > 100 {
			return 0, fmt.Errorf("percentile %v is outside [0, 100]", p)
		}
		s := sorted(xs)
		rank := p / 100 * float64(len(s)-1)
		lo := int(math.Floor(rank))
		hi := int(math.Ceil(rank))
		return s[lo] + (s[hi]-s[lo])*(rank-float64(lo)), nil
	})
	d.MinArgs = 1
	return d
}

// Mode returns the definition for mode, the most frequent number. Among
// equally frequent numbers the one that reached that count first wins.
func Mode() filters.Def {
	return stat("mode", 0, func(xs []float64, _ []types.Value) (float64, error) {
		counts := make(map[float64]int, len(xs))
		best, bestN := xs[0], 0
		for _, x := range xs {
			counts[x]++
			if counts[x] > bestN {
				best, bestN = x, counts[x]
			}
		}
		return best, nil
	})
}
