package filters

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sandrolain/gomapper/pkg/types"
)

// Builtins returns the filters every registry starts with.
func Builtins() []Def {
	return []Def{
		StringFilter("trim", strings.TrimSpace),
		StringFilter("ltrim", func(s string) string { return strings.TrimLeftFunc(s, unicode.IsSpace) }),
		StringFilter("rtrim", func(s string) string { return strings.TrimRightFunc(s, unicode.IsSpace) }),
		StringFilter("lower", func(s string) string { return cases.Lower(language.Und).String(s) }),
		StringFilter("upper", func(s string) string { return cases.Upper(language.Und).String(s) }),
		StringFilter("title", func(s string) string { return cases.Title(language.Und).String(s) }),
		StringFilter("ucfirst", ucfirst),
		Default(),
		Simple("int", toInt),
		Simple("float", toFloat),
		Simple("bool", toBool),
		Simple("string", func(in types.Value) (types.Value, error) {
			if in.IsNull() {
				return in, nil
			}
			return types.String(in.Text()), nil
		}),
		Round(),
		Simple("abs", abs),
		Join(),
		Split(),
		Replace(),
		Truncate(),
		Simple("count", count),
		Simple("first", func(in types.Value) (types.Value, error) { return pick(in, 0) }),
		Simple("last", func(in types.Value) (types.Value, error) { return pick(in, -1) }),
		Simple("reverse", reverse),
		Simple("unique", unique),
		Simple("keys", keys),
		Simple("values", values),
		Simple("json", func(in types.Value) (types.Value, error) {
			b, err := in.MarshalJSON()
			if err != nil {
				return types.Null(), err
			}
			return types.String(string(b)), nil
		}),
	}
}

func ucfirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Default returns the definition for default:fallback. The fallback replaces
// null and empty strings.
func Default() Def {
	return Def{
		Name:    "default",
		MinArgs: 1,
		MaxArgs: 1,
		Fn: func(_ context.Context, in types.Value, args ...types.Value) (types.Value, error) {
			if in.IsNull() || (in.Kind() == types.KindString && in.Str() == "") {
				return args[0], nil
			}
			return in, nil
		},
	}
}

// Round returns the definition for round[:precision].
func Round() Def {
	return Def{
		Name:    "round",
		MaxArgs: 1,
		Fn: func(_ context.Context, in types.Value, args ...types.Value) (types.Value, error) {
			if in.IsNull() {
				return in, nil
			}
			f, ok := in.Number()
			if !ok {
				return types.Null(), fmt.Errorf("%s is not a number", in.String())
			}
			prec := 0
			if len(args) == 1 {
				prec = int(args[0].Int())
			}
			if prec <= 0 {
				return types.Int(int64(math.Round(f))), nil
			}
			p := math.Pow(10, float64(prec))
			return types.Float(math.Round(f*p) / p), nil
		},
	}
}

// Join returns the definition for join[:separator].
func Join() Def {
	return Def{
		Name:    "join",
		MaxArgs: 1,
		Fn: func(_ context.Context, in types.Value, args ...types.Value) (types.Value, error) {
			if in.Kind() != types.KindList {
				return in, nil
			}
			sep := ""
			if len(args) == 1 {
				sep = args[0].Text()
			}
			items := in.List().Items()
			parts := make([]string, 0, len(items))
			for _, v := range items {
				if !v.IsNull() {
					parts = append(parts, v.Text())
				}
			}
			return types.String(strings.Join(parts, sep)), nil
		},
	}
}

// Split returns the definition for split:separator.
func Split() Def {
	return Def{
		Name:    "split",
		MinArgs: 1,
		MaxArgs: 1,
		Fn: func(_ context.Context, in types.Value, args ...types.Value) (types.Value, error) {
			if in.IsNull() {
				return in, nil
			}
			if in.Kind() != types.KindString {
				return types.Null(), fmt.Errorf("cannot split a %s", in.Kind())
			}
			parts := strings.Split(in.Str(), args[0].Text())
			out := types.NewList()
			for _, p := range parts {
				out.Append(types.String(p))
			}
			return types.ListValue(out), nil
		},
	}
}

// Replace returns the definition for replace:old:new.
func Replace() Def {
	return Def{
		Name:    "replace",
		MinArgs: 2,
		MaxArgs: 2,
		Fn: func(_ context.Context, in types.Value, args ...types.Value) (types.Value, error) {
			if in.IsNull() {
				return in, nil
			}
			return types.String(strings.ReplaceAll(in.Text(), args[0].Text(), args[1].Text())), nil
		},
	}
}

// Truncate returns the definition for truncate:length[:suffix]. Length
// counts runes and excludes the suffix.
func Truncate() Def {
	return Def{
		Name:    "truncate",
		MinArgs: 1,
		MaxArgs: 2,
		Fn: func(_ context.Context, in types.Value, args ...types.Value) (types.Value, error) {
			if in.IsNull() {
				return in, nil
			}
			n := int(args[0].Int())
			if n < 0 {
				return types.Null(), fmt.Errorf("length must not be negative")
			}
			runes := []rune(in.Text())
			if len(runes) <= n {
				return types.String(string(runes)), nil
			}
			suffix := ""
			if len(args) == 2 {
				suffix = args[1].Text()
			}
			return types.String(string(runes[:n]) + suffix), nil
		},
	}
}

func toInt(in types.Value) (types.Value, error) {
	switch in.Kind() {
	case types.KindNull:
		return in, nil
	case types.KindInt:
		return in, nil
	case types.KindBool:
		if in.Bool() {
			return types.Int(1), nil
		}
		return types.Int(0), nil
	case types.KindString:
		if i, err := strconv.ParseInt(strings.TrimSpace(in.Str()), 10, 64); err == nil {
			return types.Int(i), nil
		}
	}
	f, ok := in.Number()
	if !ok || math.IsInf(f, 0) {
		return types.Null(), fmt.Errorf("cannot convert %s to int", in.String())
	}
	return types.Int(int64(f)), nil
}

func toFloat(in types.Value) (types.Value, error) {
	if in.IsNull() {
		return in, nil
	}
	if in.Kind() == types.KindBool {
		if in.Bool() {
			return types.Float(1), nil
		}
		return types.Float(0), nil
	}
	f, ok := in.Number()
	if !ok {
		return types.Null(), fmt.Errorf("cannot convert %s to float", in.String())
	}
	return types.Float(f), nil
}

func toBool(in types.Value) (types.Value, error) {
	switch in.Kind() {
	case types.KindNull:
		return types.Bool(false), nil
	case types.KindBool:
		return in, nil
	case types.KindInt, types.KindFloat:
		return types.Bool(in.Float() != 0), nil
	case types.KindString:
		switch strings.ToLower(strings.TrimSpace(in.Str())) {
		case "", "0", "false", "no", "off", "n":
			return types.Bool(false), nil
		case "1", "true", "yes", "on", "y":
			return types.Bool(true), nil
		}
		return types.Null(), fmt.Errorf("cannot convert %q to bool", in.Str())
	case types.KindList:
		return types.Bool(in.List().Len() > 0), nil
	}
	return types.Bool(in.Map().Len() > 0), nil
}

func abs(in types.Value) (types.Value, error) {
	switch in.Kind() {
	case types.KindNull:
		return in, nil
	case types.KindInt:
		if in.Int() < 0 {
			return types.Int(-in.Int()), nil
		}
		return in, nil
	}
	f, ok := in.Number()
	if !ok {
		return types.Null(), fmt.Errorf("%s is not a number", in.String())
	}
	return types.Float(math.Abs(f)), nil
}

func count(in types.Value) (types.Value, error) {
	switch in.Kind() {
	case types.KindNull:
		return types.Int(0), nil
	case types.KindList:
		return types.Int(int64(in.List().Len())), nil
	case types.KindMap:
		return types.Int(int64(in.Map().Len())), nil
	case types.KindString:
		return types.Int(int64(utf8.RuneCountInString(in.Str()))), nil
	}
	return types.Int(1), nil
}

func pick(in types.Value, i int) (types.Value, error) {
	switch in.Kind() {
	case types.KindList:
		l := in.List()
		if i < 0 {
			i += l.Len()
		}
		return l.At(i), nil
	case types.KindString:
		r := []rune(in.Str())
		if len(r) == 0 {
			return types.Null(), nil
		}
		if i < 0 {
			i += len(r)
		}
		return types.String(string(r[i])), nil
	}
	return in, nil
}

func reverse(in types.Value) (types.Value, error) {
	switch in.Kind() {
	case types.KindList:
		items := in.List().Items()
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
		return types.ListOf(items...), nil
	case types.KindString:
		r := []rune(in.Str())
		for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
			r[i], r[j] = r[j], r[i]
		}
		return types.String(string(r)), nil
	}
	return in, nil
}

func unique(in types.Value) (types.Value, error) {
	if in.Kind() != types.KindList {
		return in, nil
	}
	seen := make(map[string]struct{})
	out := types.NewList()
	for _, v := range in.List().Items() {
		k := v.String()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out.Append(v)
	}
	return types.ListValue(out), nil
}

func keys(in types.Value) (types.Value, error) {
	if in.Kind() != types.KindMap {
		return types.Null(), fmt.Errorf("cannot list keys of a %s", in.Kind())
	}
	out := types.NewList()
	for _, k := range in.Map().Keys() {
		out.Append(types.String(k))
	}
	return types.ListValue(out), nil
}

func values(in types.Value) (types.Value, error) {
	if in.Kind() != types.KindMap {
		return types.Null(), fmt.Errorf("cannot list values of a %s", in.Kind())
	}
	m := in.Map()
	out := types.NewList()
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		out.Append(v)
	}
	return types.ListValue(out), nil
}
