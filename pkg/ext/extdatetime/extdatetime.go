// Package extdatetime provides date and time filters.
//
// A date value is either an RFC 3339 string (a bare 2006-01-02 date is also
// accepted) or a number of milliseconds since the Unix epoch. Filters that
// return a date keep the representation of their input. All arithmetic is
// done in UTC.
package extdatetime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sandrolain/gomapper/pkg/ext/extutil"
	"github.com/sandrolain/gomapper/pkg/filters"
	"github.com/sandrolain/gomapper/pkg/types"
)

// All returns every filter of the pack.
func All() []filters.Def {
	return []filters.Def{
		DateFormat(),
		Millis(),
		DateAdd(),
		DateDiff(),
		DateParts(),
		DateStartOf(),
		DateEndOf(),
	}
}

var layouts = map[string]string{
	"rfc3339":  time.RFC3339,
	"date":     time.DateOnly,
	"time":     time.TimeOnly,
	"datetime": time.DateTime,
	"rfc1123":  time.RFC1123,
	"kitchen":  time.Kitchen,
}

// DateFormat returns the definition for date_format[:layout]. The layout is
// a Go reference layout or one of rfc3339, date, time, datetime, rfc1123,
// kitchen; it defaults to rfc3339.
//
//	{{ order.created | date_format:"date" }}
func DateFormat() filters.Def {
	return filters.Def{
		Name:    "date_format",
		MaxArgs: 1,
		Fn: func(_ context.Context, in types.Value, args ...types.Value) (types.Value, error) {
			if in.IsNull() {
				return in, nil
			}
			t, _, err := parse(in)
			if err != nil {
				return types.Null(), err
			}
			layout := extutil.String(args, 0, "rfc3339")
			if named, ok := layouts[strings.ToLower(layout)]; ok {
				layout = named
			}
			return types.String(t.Format(layout)), nil
		},
	}
}

// Millis returns the definition for millis: the date as milliseconds since
// the Unix epoch.
func Millis() filters.Def {
	return filters.Simple("millis", func(in types.Value) (types.Value, error) {
		if in.IsNull() {
			return in, nil
		}
		t, _, err := parse(in)
		if err != nil {
			return types.Null(), err
		}
		return types.Int(t.UnixMilli()), nil
	})
}

// DateAdd returns the definition for date_add:amount:unit. A negative
// amount subtracts. Units are year, month, day, hour, minute, second and
// millisecond.
func DateAdd() filters.Def {
	return filters.Def{
		Name:    "date_add",
		MinArgs: 2,
		MaxArgs: 2,
		Fn: func(_ context.Context, in types.Value, args ...types.Value) (types.Value, error) {
			if in.IsNull() {
				return in, nil
			}
			t, numeric, err := parse(in)
			if err != nil {
				return types.Null(), err
			}
			n, err := extutil.Int(args, 0, 0)
			if err != nil {
				return types.Null(), err
			}
			switch strings.ToLower(args[1].Text()) {
			case "year":
				t = t.AddDate(n, 0, 0)
			case "month":
				t = t.AddDate(0, n, 0)
			case "day":
				t = t.AddDate(0, 0, n)
			case "hour":
				t = t.Add(time.Duration(n) * time.Hour)
			case "minute":
				t = t.Add(time.Duration(n) * time.Minute)
			case "second":
				t = t.Add(time.Duration(n) * time.Second)
			case "millisecond":
				t = t.Add(time.Duration(n) * time.Millisecond)
			default:
				return types.Null(), unsupportedUnit(args[1])
			}
			return render(t, numeric), nil
		},
	}
}

// DateDiff returns the definition for date_diff:other:unit, the number of
// whole units from the input to other.
func DateDiff() filters.Def {
	return filters.Def{
		Name:    "date_diff",
		MinArgs: 2,
		MaxArgs: 2,
		Fn: func(_ context.Context, in types.Value, args ...types.Value) (types.Value, error) {
			if in.IsNull() || args[0].IsNull() {
				return types.Null(), nil
			}
			from, _, err := parse(in)
			if err != nil {
				return types.Null(), err
			}
			to, _, err := parse(args[0])
			if err != nil {
				return types.Null(), err
			}
			d := to.Sub(from)
			switch strings.ToLower(args[1].Text()) {
			case "millisecond":
				return types.Int(d.Milliseconds()), nil
			case "second":
				return types.Int(int64(d / time.Second)), nil
			case "minute":
				return types.Int(int64(d / time.Minute)), nil
			case "hour":
				return types.Int(int64(d / time.Hour)), nil
			case "day":
				return types.Int(int64(d / (24 * time.Hour))), nil
			case "month":
				return types.Int(int64(months(from, to))), nil
			case "year":
				return types.Int(int64(months(from, to) / 12)), nil
			}
			return types.Null(), unsupportedUnit(args[1])
		},
	}
}

// DateParts returns the definition for date_parts: a map with the year,
// month, day, hour, minute, second, millisecond and weekday of the date.
// Weekday 0 is Sunday.
func DateParts() filters.Def {
	return filters.Simple("date_parts", func(in types.Value) (types.Value, error) {
		if in.IsNull() {
			return in, nil
		}
		t, _, err := parse(in)
		if err != nil {
			return types.Null(), err
		}
		m := types.NewMap()
		m.Set("year", types.Int(int64(t.Year())))
		m.Set("month", types.Int(int64(t.Month())))
		m.Set("day", types.Int(int64(t.Day())))
		m.Set("hour", types.Int(int64(t.Hour())))
		m.Set("minute", types.Int(int64(t.Minute())))
		m.Set("second", types.Int(int64(t.Second())))
		m.Set("millisecond", types.Int(int64(t.Nanosecond()/1e6)))
		m.Set("weekday", types.Int(int64(t.Weekday())))
		return types.MapValue(m), nil
	})
}

// DateStartOf returns the definition for date_start_of:unit.
func DateStartOf() filters.Def {
	return boundary("date_start_of", func(t time.Time, unit string) (time.Time, bool) {
		return startOf(t, unit)
	})
}

// DateEndOf returns the definition for date_end_of:unit, the last
// millisecond of the unit containing the date.
func DateEndOf() filters.Def {
	return boundary("date_end_of", func(t time.Time, unit string) (time.Time, bool) {
		start, ok := startOf(t, unit)
		if !ok {
			return t, false
		}
		var next time.Time
		switch unit {
		case "year":
			next = start.AddDate(1, 0, 0)
		case "month":
			next = start.AddDate(0, 1, 0)
		case "day":
			next = start.AddDate(0, 0, 1)
		case "hour":
			next = start.Add(time.Hour)
		case "minute":
			next = start.Add(time.Minute)
		default:
			next = start.Add(time.Second)
		}
		return next.Add(-time.Millisecond), true
	})
}

func boundary(name string, fn func(time.Time, string) (time.Time, bool)) filters.Def {
	return filters.Def{
		Name:    name,
		MinArgs: 1,
		MaxArgs: 1,
		Fn: func(_ context.Context, in types.Value, args ...types.Value) (types.Value, error) {
			if in.IsNull() {
				return in, nil
			}
			t, numeric, err := parse(in)
			if err != nil {
				return types.Null(), err
			}
			out, ok := fn(t, strings.ToLower(args[0].Text()))
			if !ok {
				return types.Null(), unsupportedUnit(args[0])
			}
			return render(out, numeric), nil
		},
	}
}

func startOf(t time.Time, unit string) (time.Time, bool) {
	switch unit {
	case "year":
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC), true
	case "month":
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC), true
	case "day":
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	case "hour":
		return t.Truncate(time.Hour), true
	case "minute":
		return t.Truncate(time.Minute), true
	case "second":
		return t.Truncate(time.Second), true
	}
	return t, false
}

// parse reads a date value. numeric reports whether it was given as
// epoch milliseconds.
func parse(v types.Value) (t time.Time, numeric bool, err error) {
	if ms, ok := v.Number(); ok && v.IsNumber() {
		return time.UnixMilli(int64(ms)).UTC(), true, nil
	}
	if v.Kind() != types.KindString {
		return time.Time{}, false, fmt.Errorf("expected a date, got %s", v.Kind())
	}
	s := strings.TrimSpace(v.Str())
	for _, layout := range []string{time.RFC3339Nano, time.DateTime, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), false, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("cannot parse %q as a date", s)
}

func render(t time.Time, numeric bool) types.Value {
	if numeric {
		return types.Int(t.UnixMilli())
	}
	return types.String(t.Format(time.RFC3339Nano))
}

// months counts whole calendar months from a to b.
func months(a, b time.Time) int {
	sign := 1
	if b.Before(a) {
		a, b, sign = b, a, -1
	}
	n := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if b.Day() < a.Day() {
		n--
	}
	return sign * n
}

func unsupportedUnit(v types.Value) error {
	return fmt.Errorf("unsupported unit %q; use year, month, day, hour, minute, second or millisecond", v.Text())
}
