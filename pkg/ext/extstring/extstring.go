// Package extstring provides extra string filters: case conversions,
// slugs, predicates and interpolation. Register them with
// registry.WithFilters(extstring.All()...) or ext.WithString().
package extstring

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sandrolain/gomapper/pkg/ext/extutil"
	"github.com/sandrolain/gomapper/pkg/filters"
	"github.com/sandrolain/gomapper/pkg/path"
	"github.com/sandrolain/gomapper/pkg/types"
)

// All returns every string filter of the pack.
func All() []filters.Def {
	return []filters.Def{
		Capitalize(),
		CamelCase(),
		SnakeCase(),
		KebabCase(),
		Slug(),
		Words(),
		Repeat(),
		StartsWith(),
		EndsWith(),
		Contains(),
		IndexOf(),
		Format(),
	}
}

var lower = cases.Lower(language.Und)

// Capitalize returns the definition for capitalize: first letter upper,
// the rest lower.
func Capitalize() filters.Def {
	return filters.StringFilter("capitalize", func(s string) string {
		r := []rune(lower.String(s))
		if len(r) > 0 {
			r[0] = unicode.ToUpper(r[0])
		}
		return string(r)
	})
}

var splitWordsRe = regexp.MustCompile(`[_\-\s.]+|([\p{Ll}\d])(\p{Lu})`)

// splitWords splits camelCase, snake_case, kebab-case and spaced text.
func splitWords(s string) []string {
	expanded := splitWordsRe.ReplaceAllString(s, "$1 $2")
	return strings.Fields(expanded)
}

// CamelCase returns the definition for camel.
func CamelCase() filters.Def {
	return filters.StringFilter("camel", func(s string) string {
		words := splitWords(s)
		var b strings.Builder
		for i, w := range words {
			r := []rune(lower.String(w))
			if i > 0 {
				r[0] = unicode.ToUpper(r[0])
			}
			b.WriteString(string(r))
		}
		return b.String()
	})
}

// SnakeCase returns the definition for snake.
func SnakeCase() filters.Def {
	return filters.StringFilter("snake", func(s string) string { return joinLower(splitWords(s), "_") })
}

// KebabCase returns the definition for kebab.
func KebabCase() filters.Def {
	return filters.StringFilter("kebab", func(s string) string { return joinLower(splitWords(s), "-") })
}

func joinLower(words []string, sep string) string {
	for i, w := range words {
		words[i] = lower.String(w)
	}
	return strings.Join(words, sep)
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug returns the definition for slug: accents removed, lowercase ASCII
// letters and digits joined by dashes.
func Slug() filters.Def {
	return filters.Def{
		Name: "slug",
		Fn: func(_ context.Context, in types.Value, _ ...types.Value) (types.Value, error) {
			if in.IsNull() {
				return in, nil
			}
			t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
			plain, _, err := transform.String(t, in.Text())
			if err != nil {
				return types.Null(), err
			}
			s := slugRe.ReplaceAllString(lower.String(plain), "-")
			return types.String(strings.Trim(s, "-")), nil
		},
	}
}

// Words returns the definition for words: the whitespace separated words
// of a string as a list.
func Words() filters.Def {
	return filters.Simple("words", func(in types.Value) (types.Value, error) {
		if in.IsNull() {
			return in, nil
		}
		parts := strings.Fields(in.Text())
		out := make([]types.Value, len(parts))
		for i, p := range parts {
			out[i] = types.String(p)
		}
		return types.ListOf(out...), nil
	})
}

// Repeat returns the definition for repeat:n.
func Repeat() filters.Def {
	return filters.Def{
		Name:    "repeat",
		MinArgs: 1,
		MaxArgs: 1,
		Fn: func(_ context.Context, in types.Value, args ...types.Value) (types.Value, error) {
			n, err := extutil.Int(args, 0, 0)
			if err != nil {
				return types.Null(), err
			}
			if n < 0 {
				return types.Null(), fmt.Errorf("repeat count must not be negative")
			}
			return types.String(strings.Repeat(in.Text(), n)), nil
		},
	}
}

func predicate(name string, fn func(s, arg string) bool) filters.Def {
	return filters.Def{
		Name:    name,
		MinArgs: 1,
		MaxArgs: 1,
		Fn: func(_ context.Context, in types.Value, args ...types.Value) (types.Value, error) {
			if in.IsNull() {
				return types.Bool(false), nil
			}
			return types.Bool(fn(in.Text(), args[0].Text())), nil
		},
	}
}

// StartsWith returns the definition for starts_with:prefix.
func StartsWith() filters.Def { return predicate("starts_with", strings.HasPrefix) }

// EndsWith returns the definition for ends_with:suffix.
func EndsWith() filters.Def { return predicate("ends_with", strings.HasSuffix) }

// Contains returns the definition for contains:needle.
func Contains() filters.Def { return predicate("contains", strings.Contains) }

// IndexOf returns the definition for index_of:needle. The result counts
// runes; -1 means not found.
func IndexOf() filters.Def {
	return filters.Def{
		Name:    "index_of",
		MinArgs: 1,
		MaxArgs: 1,
		Fn: func(_ context.Context, in types.Value, args ...types.Value) (types.Value, error) {
			s := in.Text()
			i := strings.Index(s, args[0].Text())
			if i < 0 {
				return types.Int(-1), nil
			}
			return types.Int(int64(len([]rune(s[:i])))), nil
		},
	}
}

var placeholderRe = regexp.MustCompile(`\$\{([^{}]+)\}`)

// Format returns the definition for format:pattern. Each ${path} of the
// pattern is replaced by the text of that path read from the input map;
// unknown placeholders are left as written.
//
//	{{ user | format:"${first} ${last}" }}
func Format() filters.Def {
	return filters.Def{
		Name:    "format",
		MinArgs: 1,
		MaxArgs: 1,
		Fn: func(_ context.Context, in types.Value, args ...types.Value) (types.Value, error) {
			var failed error
			out := placeholderRe.ReplaceAllStringFunc(args[0].Text(), func(m string) string {
				p, err := types.ParsePath(strings.TrimSpace(m[2 : len(m)-1]))
				if err != nil {
					failed = err
					return m
				}
				if !path.Exists(in, p) {
					return m
				}
				v, err := path.Get(in, p)
				if err != nil {
					failed = err
					return m
				}
				return v.Text()
			})
			if failed != nil {
				return types.Null(), failed
			}
			return types.String(out), nil
		},
	}
}
