// Package registry holds the named extensions a mapping engine can use:
// custom operator stages, filters and hooks.
//
// A Registry is an explicit value passed to the engine; there is no global
// state. It is safe for concurrent use and meant to be read-mostly.
package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/sandrolain/gomapper/pkg/filters"
	"github.com/sandrolain/gomapper/pkg/hook"
	"github.com/sandrolain/gomapper/pkg/parser"
	"github.com/sandrolain/gomapper/pkg/query"
	"github.com/sandrolain/gomapper/pkg/types"
)

// Registry stores operators, filters and hooks.
type Registry struct {
	mu        sync.RWMutex
	operators map[string]query.OperatorFunc
	filters   map[string]filters.Def
	hooks     []hook.Hook
}

// Option configures a registry at construction.
type Option func(*Registry)

// WithFilters registers filter definitions, replacing built-ins of the
// same name.
func WithFilters(defs ...filters.Def) Option {
	return func(r *Registry) {
		for _, d := range defs {
			r.filters[d.Name] = d
		}
	}
}

// WithOperator registers a custom operator. Invalid names are ignored; use
// RegisterOperator to observe the error.
func WithOperator(name string, fn query.OperatorFunc) Option {
	return func(r *Registry) {
		_ = r.registerOperator(name, fn)
	}
}

// WithHooks adds hooks in order.
func WithHooks(hooks ...hook.Hook) Option {
	return func(r *Registry) {
		r.hooks = append(r.hooks, hooks...)
	}
}

// New returns a registry holding the built-in filters.
func New(opts ...Option) *Registry {
	r := &Registry{
		operators: make(map[string]query.OperatorFunc),
		filters:   make(map[string]filters.Def),
	}
	for _, d := range filters.Builtins() {
		r.filters[d.Name] = d
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Clone returns an independent copy of r.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := &Registry{
		operators: make(map[string]query.OperatorFunc, len(r.operators)),
		filters:   make(map[string]filters.Def, len(r.filters)),
		hooks:     append([]hook.Hook(nil), r.hooks...),
	}
	for k, v := range r.operators {
		c.operators[k] = v
	}
	for k, v := range r.filters {
		c.filters[k] = v
	}
	return c
}

// RegisterOperator registers fn under the uppercase form of name,
// replacing a previous registration. Built-in stage names, "*" and the
// AND/OR connectives are reserved.
func (r *Registry) RegisterOperator(name string, fn query.OperatorFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerOperator(name, fn)
}

func (r *Registry) registerOperator(name string, fn query.OperatorFunc) error {
	key := strings.ToUpper(strings.TrimSpace(name))
	switch {
	case key == "":
		return types.Errorf(types.ErrInvalidConfig, "operator name is empty")
	case fn == nil:
		return types.Errorf(types.ErrInvalidConfig, "operator %q has no implementation", key)
	case isReserved(key):
		return types.Errorf(types.ErrReservedName, "%q is a reserved stage name", key).WithToken(name)
	}
	r.operators[key] = fn
	return nil
}

func isReserved(key string) bool {
	switch key {
	case types.WildcardToken, "AND", "OR":
		return true
	}
	return parser.IsReservedStage(key)
}

// UnregisterOperator removes an operator and reports whether it existed.
func (r *Registry) UnregisterOperator(name string) bool {
	key := strings.ToUpper(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.operators[key]
	delete(r.operators, key)
	return ok
}

// Operator returns the operator registered under name, case-insensitively.
func (r *Registry) Operator(name string) (query.OperatorFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.operators[strings.ToUpper(name)]
	return fn, ok
}

// OperatorNames returns the registered operator names, sorted.
func (r *Registry) OperatorNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.operators)
}

// RegisterFilter registers def, replacing a filter of the same name.
func (r *Registry) RegisterFilter(def filters.Def) error {
	if strings.TrimSpace(def.Name) == "" {
		return types.Errorf(types.ErrInvalidConfig, "filter name is empty")
	}
	if def.Fn == nil {
		return types.Errorf(types.ErrInvalidConfig, "filter %q has no implementation", def.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters[def.Name] = def
	return nil
}

// Filter returns the filter registered under name.
func (r *Registry) Filter(name string) (filters.Def, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.filters[name]
	return d, ok
}

// FilterNames returns the registered filter names, sorted.
func (r *Registry) FilterNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.filters)
}

// AddHook appends a hook. Hooks of a stage run in the order they were
// added.
func (r *Registry) AddHook(h hook.Hook) error {
	if h.Fn == nil {
		return types.Errorf(types.ErrInvalidConfig, "hook %q has no implementation", h.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, h)
	return nil
}

// Hooks returns the hooks of stage, in registration order.
func (r *Registry) Hooks(stage hook.Stage) []hook.Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []hook.Hook
	for _, h := range r.hooks {
		if h.Stage == stage {
			out = append(out, h)
		}
	}
	return out
}

// UnknownFilter returns the configuration error for a missing filter.
func (r *Registry) UnknownFilter(name string) error {
	return unknown("filter", name, r.FilterNames())
}

// UnknownOperator returns the configuration error for a missing operator.
func (r *Registry) UnknownOperator(name string) error {
	return unknown("operator", name, r.OperatorNames())
}

func unknown(kind, name string, known []string) error {
	err := types.Errorf(types.ErrUnknownName, "unknown %s %q", kind, name).WithToken(name)
	if s := Suggest(name, known); s != "" {
		err.Message += ", did you mean " + `"` + s + `"?`
	}
	return err
}

// Suggest returns the candidate closest to name, or "" when none is close.
func Suggest(name string, candidates []string) string {
	if len(candidates) == 0 || name == "" {
		return ""
	}
	ranks := fuzzy.RankFindNormalizedFold(name, candidates)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}
	best, bestDist := "", 3
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(strings.ToLower(name), strings.ToLower(c)); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
