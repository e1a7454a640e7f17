// Package evaluator evaluates compiled templates against source data.
//
// The engine walks the template tree once per pass. Expressions resolve
// their path in the current scope and run their filter chain; operator
// blocks bind the wildcard prefixes they reference in lock step, run their
// stages in declaration order and evaluate the item template once per
// surviving row.
//
// # Example
//
//	eng := evaluator.New(evaluator.WithLogger(logger))
//	out, err := eng.EvaluateRoot(ctx, tpl, data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Walk is the write-through form: every leaf is handed to an [Emitter],
// which decides how values are transformed, written and how failures are
// handled. The mapper package builds its hook pipeline on it.
package evaluator

import (
	"context"
	"log/slog"
	"time"

	"github.com/sandrolain/gomapper/pkg/metrics"
	"github.com/sandrolain/gomapper/pkg/registry"
	"github.com/sandrolain/gomapper/pkg/types"
)

// Engine evaluates templates. It holds no per-pass state and is safe for
// concurrent use.
type Engine struct {
	opts   EvalOptions
	logger *slog.Logger
	reg    *registry.Registry
}

// EvalOptions configures engine behavior.
type EvalOptions struct {
	// Registry provides filters and custom operators. Defaults to a registry
	// holding the built-in filters.
	Registry *registry.Registry
	// Logger for structured logging.
	Logger *slog.Logger
	// Debug logs a dump of the row set before and after the stages of every
	// operator block.
	Debug bool
	// Strict turns a missing key or index into a resolution error.
	Strict bool
	// StrictZip turns wildcard sequences of different lengths into an error
	// instead of truncating to the shortest.
	StrictZip bool
	// MaxDepth limits the nesting of operator blocks.
	MaxDepth int
	// Timeout bounds a pass. Zero disables it.
	Timeout time.Duration
	// Metrics records stage row counts when set.
	Metrics *metrics.Collector
}

// EvalOption configures evaluation behavior.
type EvalOption func(*EvalOptions)

// WithRegistry sets the registry of filters and operators.
func WithRegistry(r *registry.Registry) EvalOption {
	return func(opts *EvalOptions) {
		opts.Registry = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) EvalOption {
	return func(opts *EvalOptions) {
		opts.Logger = logger
	}
}

// WithDebug enables row set dumps.
func WithDebug(enabled bool) EvalOption {
	return func(opts *EvalOptions) {
		opts.Debug = enabled
	}
}

// WithStrict enables strict path resolution.
func WithStrict(enabled bool) EvalOption {
	return func(opts *EvalOptions) {
		opts.Strict = enabled
	}
}

// WithStrictZip rejects wildcard sequences of different lengths.
func WithStrictZip(enabled bool) EvalOption {
	return func(opts *EvalOptions) {
		opts.StrictZip = enabled
	}
}

// WithMaxDepth sets the maximum operator block nesting.
func WithMaxDepth(depth int) EvalOption {
	return func(opts *EvalOptions) {
		opts.MaxDepth = depth
	}
}

// WithTimeout sets the pass timeout.
func WithTimeout(timeout time.Duration) EvalOption {
	return func(opts *EvalOptions) {
		opts.Timeout = timeout
	}
}

// WithMetrics records stage metrics on c.
func WithMetrics(c *metrics.Collector) EvalOption {
	return func(opts *EvalOptions) {
		opts.Metrics = c
	}
}

// New creates an engine.
func New(opts ...EvalOption) *Engine {
	options := EvalOptions{
		MaxDepth: 100,
		Timeout:  30 * time.Second,
	}

	for _, opt := range opts {
		opt(&options)
	}

	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Registry == nil {
		options.Registry = registry.New()
	}

	return &Engine{
		opts:   options,
		logger: options.Logger,
		reg:    options.Registry,
	}
}

// Registry returns the registry used by the engine.
func (e *Engine) Registry() *registry.Registry {
	return e.reg
}

// Options returns a copy of the engine options.
func (e *Engine) Options() EvalOptions {
	return e.opts
}

// Evaluate evaluates tpl with the named sources as root, so expressions
// start with a source name ("order.id").
func (e *Engine) Evaluate(ctx context.Context, tpl *types.Template, sources map[string]types.Value) (types.Value, error) {
	return e.EvaluateRoot(ctx, tpl, SourcesRoot(sources))
}

// EvaluateRoot evaluates tpl against a single root value.
func (e *Engine) EvaluateRoot(ctx context.Context, tpl *types.Template, root types.Value) (types.Value, error) {
	em := NewTargetEmitter(types.Null())
	if err := e.Walk(ctx, tpl, root, em, WalkOptions{Reindex: true}); err != nil {
		return types.Null(), err
	}
	return em.Target(), nil
}

// SourcesRoot builds the root map of named sources, in sorted name order.
func SourcesRoot(sources map[string]types.Value) types.Value {
	v, _ := types.FromNative(sourcesAny(sources))
	return v
}

func sourcesAny(sources map[string]types.Value) map[string]any {
	out := make(map[string]any, len(sources))
	for k, v := range sources {
		out[k] = v
	}
	return out
}

// Validate checks that every filter and custom operator named by tpl is
// registered. It touches no data.
func (e *Engine) Validate(tpl *types.Template) error {
	if tpl == nil || tpl.Root() == nil {
		return types.Errorf(types.ErrInvalidConfig, "template is nil")
	}
	return e.validateNode(tpl.Root())
}

func (e *Engine) validateNode(n *types.Node) error {
	switch n.Kind {
	case types.NodeExpression:
		return e.validateExpr(n.Expr)
	case types.NodeMap:
		for _, f := range n.Fields {
			if err := e.validateNode(f.Node); err != nil {
				return err
			}
		}
	case types.NodeList:
		for _, item := range n.Items {
			if err := e.validateNode(item); err != nil {
				return err
			}
		}
	case types.NodeOperator:
		for _, st := range n.Block.Stages {
			if st.Kind == types.StageCustom {
				if _, ok := e.reg.Operator(st.Name); !ok {
					return e.reg.UnknownOperator(st.Name)
				}
			}
		}
		for _, expr := range n.Block.StageExpressions() {
			if err := e.validateExpr(expr); err != nil {
				return err
			}
		}
		return e.validateNode(n.Block.Item)
	}
	return nil
}

func (e *Engine) validateExpr(expr *types.Expr) error {
	for _, f := range expr.Filters {
		if _, ok := e.reg.Filter(f.Name); !ok {
			return e.reg.UnknownFilter(f.Name)
		}
	}
	return nil
}
