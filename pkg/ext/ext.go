// Package ext provides optional filter packs that go beyond the built-in
// filters of every registry.
//
// The filters live in sub-packages grouped by category:
//   - extstring   – capitalize, camel, snake, kebab, slug, format, …
//   - extnumeric  – sign, trunc, clamp, log, sum, avg, median, percentile, …
//   - extarray    – take, skip, slice, flatten, chunk, sort, set operations, …
//   - extobject   – pick, omit, rename, merge, pairs, from_pairs, …
//   - exttypes    – type, is_string, is_list, is_empty, …
//   - extdatetime – date_format, date_add, date_diff, date_start_of, …
//   - extcrypto   – hash, hmac, uuid, uuid5, base64
//
// # Integration – all packs at once
//
//	import "github.com/sandrolain/gomapper/pkg/ext"
//
//	reg := registry.New(ext.WithAll())
//
// # Integration – by category
//
//	reg := registry.New(ext.WithString(), ext.WithDateTime())
//
// # Integration – single filter from a sub-package
//
//	reg := registry.New(registry.WithFilters(extstring.Slug()))
package ext

import (
	"github.com/sandrolain/gomapper/pkg/ext/extarray"
	"github.com/sandrolain/gomapper/pkg/ext/extcrypto"
	"github.com/sandrolain/gomapper/pkg/ext/extdatetime"
	"github.com/sandrolain/gomapper/pkg/ext/extnumeric"
	"github.com/sandrolain/gomapper/pkg/ext/extobject"
	"github.com/sandrolain/gomapper/pkg/ext/extstring"
	"github.com/sandrolain/gomapper/pkg/ext/exttypes"
	"github.com/sandrolain/gomapper/pkg/filters"
	"github.com/sandrolain/gomapper/pkg/registry"
)

// All returns the filters of every pack.
func All() []filters.Def {
	var all []filters.Def
	all = append(all, extstring.All()...)
	all = append(all, extnumeric.All()...)
	all = append(all, extarray.All()...)
	all = append(all, extobject.All()...)
	all = append(all, exttypes.All()...)
	all = append(all, extdatetime.All()...)
	all = append(all, extcrypto.All()...)
	return all
}

// WithAll returns a registry option that registers every pack.
func WithAll() registry.Option {
	return registry.WithFilters(All()...)
}

// WithString returns a registry option for the string filters.
func WithString() registry.Option {
	return registry.WithFilters(extstring.All()...)
}

// WithNumeric returns a registry option for the numeric filters.
func WithNumeric() registry.Option {
	return registry.WithFilters(extnumeric.All()...)
}

// WithArray returns a registry option for the list filters.
func WithArray() registry.Option {
	return registry.WithFilters(extarray.All()...)
}

// WithObject returns a registry option for the map filters.
func WithObject() registry.Option {
	return registry.WithFilters(extobject.All()...)
}

// WithTypes returns a registry option for the type inspection filters.
func WithTypes() registry.Option {
	return registry.WithFilters(exttypes.All()...)
}

// WithDateTime returns a registry option for the date and time filters.
func WithDateTime() registry.Option {
	return registry.WithFilters(extdatetime.All()...)
}

// WithCrypto returns a registry option for the hashing, encoding and UUID
// filters.
func WithCrypto() registry.Option {
	return registry.WithFilters(extcrypto.All()...)
}
