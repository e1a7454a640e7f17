// Package mapper runs templates as mapping passes.
//
// A pass evaluates a template against a source and writes every produced
// value into a target through the mutator. Around the evaluation it runs
// the hook pipeline (BeforeAll, BeforeTransform, AfterTransform, AfterAll),
// applies the forward flags and decides what an error does: abort the pass,
// or, in collect mode, drop the failing key and carry on.
//
// # Example
//
//	m := mapper.New(mapper.WithFlags(mapper.Flags{TrimValues: true, SkipNull: true, ReindexWildcard: true}))
//	tpl, err := m.CompileJSON(doc)
//	if err != nil {
//	    return err
//	}
//	out, err := m.Map(ctx, tpl, source)
//
// Reverse replays the invertible part of a template to rebuild a source
// shape from mapped data.
package mapper

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sandrolain/gomapper/pkg/cache"
	"github.com/sandrolain/gomapper/pkg/evaluator"
	"github.com/sandrolain/gomapper/pkg/hook"
	"github.com/sandrolain/gomapper/pkg/metrics"
	"github.com/sandrolain/gomapper/pkg/parser"
	"github.com/sandrolain/gomapper/pkg/registry"
	"github.com/sandrolain/gomapper/pkg/types"
)

// Pass directions, used as metric labels.
const (
	DirectionForward = "forward"
	DirectionReverse = "reverse"
)

// Flags tune a forward pass.
type Flags struct {
	// SkipNull omits keys whose final value is null.
	SkipNull bool `yaml:"skip_null" json:"skip_null"`
	// TrimValues trims surrounding whitespace from string leaves, including
	// strings nested in list or map values.
	TrimValues bool `yaml:"trim_values" json:"trim_values"`
	// ReindexWildcard numbers operator block output 0..n-1. When false, the
	// output keeps the original keys: a list when they are still 0..n-1 in
	// order, a map keyed by the original key otherwise.
	ReindexWildcard bool `yaml:"reindex_wildcard" json:"reindex_wildcard"`
	// CollectErrors records recoverable errors, omits the failing keys and
	// completes the pass.
	CollectErrors bool `yaml:"collect_errors" json:"collect_errors"`
}

// DefaultFlags returns the flags used when none are given.
func DefaultFlags() Flags {
	return Flags{ReindexWildcard: true}
}

// Options configures a Mapper.
type Options struct {
	// Registry provides filters, operators and hooks.
	Registry *registry.Registry
	// Logger for structured logging.
	Logger *slog.Logger
	// Flags for forward passes.
	Flags Flags
	// Hooks run in addition to the registry hooks, after them.
	Hooks []hook.Hook
	// Metrics records passes, errors and stages when set.
	Metrics *metrics.Collector
	// Engine holds extra evaluator options.
	Engine []evaluator.EvalOption
	// Cache stores templates compiled through the mapper.
	Cache *cache.Cache
}

// Option configures a Mapper.
type Option func(*Options)

// WithRegistry sets the registry.
func WithRegistry(r *registry.Registry) Option {
	return func(opts *Options) {
		opts.Registry = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithFlags replaces the forward flags.
func WithFlags(f Flags) Option {
	return func(opts *Options) {
		opts.Flags = f
	}
}

// WithHooks appends hooks.
func WithHooks(hooks ...hook.Hook) Option {
	return func(opts *Options) {
		opts.Hooks = append(opts.Hooks, hooks...)
	}
}

// WithMetrics records pass metrics on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(opts *Options) {
		opts.Metrics = c
	}
}

// WithEngineOptions passes options to the evaluator.
func WithEngineOptions(eo ...evaluator.EvalOption) Option {
	return func(opts *Options) {
		opts.Engine = append(opts.Engine, eo...)
	}
}

// WithCache sets the template cache.
func WithCache(c *cache.Cache) Option {
	return func(opts *Options) {
		opts.Cache = c
	}
}

// Mapper runs mapping passes. It is safe for concurrent use; every pass
// keeps its state to itself.
type Mapper struct {
	opts   Options
	logger *slog.Logger
	reg    *registry.Registry
	eng    *evaluator.Engine
}

// New creates a mapper.
func New(opts ...Option) *Mapper {
	options := Options{Flags: DefaultFlags()}
	for _, opt := range opts {
		opt(&options)
	}
	return build(options)
}

func build(options Options) *Mapper {
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Registry == nil {
		options.Registry = registry.New()
	}
	if options.Cache == nil {
		options.Cache = cache.New(cache.DefaultCapacity)
	}
	engOpts := append([]evaluator.EvalOption{
		evaluator.WithRegistry(options.Registry),
		evaluator.WithLogger(options.Logger),
		evaluator.WithMetrics(options.Metrics),
	}, options.Engine...)

	return &Mapper{
		opts:   options,
		logger: options.Logger,
		reg:    options.Registry,
		eng:    evaluator.New(engOpts...),
	}
}

// With returns a mapper sharing m's configuration with opts applied on
// top, for example different flags for one call site.
func (m *Mapper) With(opts ...Option) *Mapper {
	options := m.opts
	options.Hooks = append([]hook.Hook(nil), m.opts.Hooks...)
	options.Engine = append([]evaluator.EvalOption(nil), m.opts.Engine...)
	for _, opt := range opts {
		opt(&options)
	}
	return build(options)
}

// Flags returns the forward flags.
func (m *Mapper) Flags() Flags { return m.opts.Flags }

// Registry returns the registry.
func (m *Mapper) Registry() *registry.Registry { return m.reg }

// Engine returns the evaluator.
func (m *Mapper) Engine() *evaluator.Engine { return m.eng }

// CompileJSON compiles a JSON template document through the cache.
func (m *Mapper) CompileJSON(doc []byte) (*types.Template, error) {
	return m.opts.Cache.GetOrCompile(cache.Key("json", doc), func() (*types.Template, error) {
		return parser.CompileJSON(doc)
	})
}

// CompileYAML compiles a YAML template document through the cache.
func (m *Mapper) CompileYAML(doc []byte) (*types.Template, error) {
	return m.opts.Cache.GetOrCompile(cache.Key("yaml", doc), func() (*types.Template, error) {
		return parser.CompileYAML(doc)
	})
}

// Map runs a forward pass into a fresh target.
//
// In collect mode the best-effort target is returned together with an
// *types.AggregateError when anything failed.
func (m *Mapper) Map(ctx context.Context, tpl *types.Template, source types.Value) (types.Value, error) {
	target := types.Null()
	err := m.MapInto(ctx, tpl, source, &target)
	return target, err
}

// MapSources runs a forward pass over named sources; template paths start
// with a source name.
func (m *Mapper) MapSources(ctx context.Context, tpl *types.Template, sources map[string]types.Value) (types.Value, error) {
	return m.Map(ctx, tpl, evaluator.SourcesRoot(sources))
}

// MapInto runs a forward pass writing into an existing target. target is
// left untouched when the pass aborts or is skipped by a hook.
func (m *Mapper) MapInto(ctx context.Context, tpl *types.Template, source types.Value, target *types.Value) error {
	start := time.Now()
	p := m.newPass(source, target.Clone())

	outcome, err := p.run(ctx, tpl)
	switch outcome {
	case metrics.OutcomeOK, metrics.OutcomePartial:
		*target = p.target
	}

	elapsed := time.Since(start)
	m.opts.Metrics.ObservePass(DirectionForward, outcome, elapsed)
	p.logger.Debug("mapping pass finished",
		slog.String("outcome", outcome),
		slog.Int("errors", len(p.errs)),
		slog.Duration("elapsed", elapsed))
	return err
}

func (m *Mapper) newPass(source, target types.Value) *pass {
	runID := uuid.NewString()
	hooks := make(map[hook.Stage][]hook.Hook, len(hook.Stages))
	for _, st := range hook.Stages {
		hooks[st] = m.reg.Hooks(st)
	}
	for _, h := range m.opts.Hooks {
		hooks[h.Stage] = append(hooks[h.Stage], h)
	}
	return &pass{
		m:      m,
		runID:  runID,
		logger: m.logger.With(slog.String("run_id", runID)),
		flags:  m.opts.Flags,
		hooks:  hooks,
		source: source,
		target: target,
	}
}
