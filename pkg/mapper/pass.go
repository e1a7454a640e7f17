package mapper

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sandrolain/gomapper/pkg/evaluator"
	"github.com/sandrolain/gomapper/pkg/hook"
	"github.com/sandrolain/gomapper/pkg/metrics"
	"github.com/sandrolain/gomapper/pkg/path"
	"github.com/sandrolain/gomapper/pkg/types"
)

// pass is the state of one forward pass. It is the evaluator.Emitter of
// the walk.
type pass struct {
	m      *Mapper
	runID  string
	logger *slog.Logger
	flags  Flags
	hooks  map[hook.Stage][]hook.Hook
	source types.Value
	target types.Value
	errs   []error
}

var _ evaluator.Emitter = (*pass)(nil)

func (p *pass) snapshot(stage hook.Stage, site evaluator.Site, v types.Value) hook.Snapshot {
	return hook.Snapshot{
		Stage:      stage,
		RunID:      p.runID,
		Source:     p.source,
		Target:     p.target,
		Path:       site.Path,
		SourcePath: site.SourcePath(),
		Value:      v,
	}
}

// run executes the pipeline and reports the outcome label.
func (p *pass) run(ctx context.Context, tpl *types.Template) (string, error) {
	p.logger.Debug("mapping pass started", slog.Bool("collect", p.flags.CollectErrors))

	if hooks := p.hooks[hook.BeforeAll]; len(hooks) > 0 {
		r, err := hook.Run(ctx, hooks, p.snapshot(hook.BeforeAll, evaluator.Site{}, p.source))
		if err != nil {
			return p.abort(err)
		}
		switch r.Action() {
		case hook.ActionSkip:
			p.logger.Debug("pass skipped by before_all hook")
			return metrics.OutcomeSkipped, nil
		case hook.ActionReplace:
			p.source = r.Value()
		}
	}

	opts := evaluator.WalkOptions{Reindex: p.flags.ReindexWildcard}
	if err := p.m.eng.Walk(ctx, tpl, p.source, p, opts); err != nil {
		return p.abort(err)
	}

	if hooks := p.hooks[hook.AfterAll]; len(hooks) > 0 {
		r, err := hook.Run(ctx, hooks, p.snapshot(hook.AfterAll, evaluator.Site{}, p.target))
		if err != nil {
			return p.abort(err)
		}
		switch r.Action() {
		case hook.ActionSkip:
			p.logger.Debug("output discarded by after_all hook")
			return metrics.OutcomeSkipped, nil
		case hook.ActionReplace:
			p.target = r.Value()
		}
	}

	if len(p.errs) > 0 {
		return metrics.OutcomePartial, types.NewAggregateError(p.errs)
	}
	return metrics.OutcomeOK, nil
}

func (p *pass) abort(err error) (string, error) {
	p.m.opts.Metrics.ObserveError(err)
	p.logger.Warn("mapping pass aborted", slog.Any("error", err))
	return metrics.OutcomeError, err
}

// Before implements evaluator.Emitter.
func (p *pass) Before(ctx context.Context, site evaluator.Site, v types.Value) (types.Value, bool, error) {
	return p.transform(ctx, hook.BeforeTransform, site, v)
}

// After implements evaluator.Emitter. The value goes through the
// AfterTransform hooks, then trimming, then the null check.
func (p *pass) After(ctx context.Context, site evaluator.Site, v types.Value) (types.Value, bool, error) {
	v, keep, err := p.transform(ctx, hook.AfterTransform, site, v)
	if err != nil || !keep {
		return v, keep, err
	}
	if p.flags.TrimValues {
		v = trimDeep(v)
	}
	if p.flags.SkipNull && v.IsNull() {
		return v, false, nil
	}
	return v, true, nil
}

func (p *pass) transform(ctx context.Context, stage hook.Stage, site evaluator.Site, v types.Value) (types.Value, bool, error) {
	hooks := p.hooks[stage]
	if len(hooks) == 0 {
		return v, true, nil
	}
	r, err := hook.Run(ctx, hooks, p.snapshot(stage, site, v))
	if err != nil {
		return v, false, err
	}
	switch r.Action() {
	case hook.ActionSkip:
		return v, false, nil
	case hook.ActionReplace:
		return r.Value(), true, nil
	}
	return v, true, nil
}

// Write implements evaluator.Emitter.
func (p *pass) Write(site evaluator.Site, v types.Value) error {
	return path.Set(&p.target, site.Path, v)
}

// Recover implements evaluator.Emitter.
func (p *pass) Recover(site evaluator.Site, err error) error {
	if !p.flags.CollectErrors || types.IsFatal(err) {
		return err
	}
	p.m.opts.Metrics.ObserveError(err)
	p.logger.Debug("error collected",
		slog.String("path", site.Path.String()),
		slog.String("code", string(types.CodeOf(err))),
		slog.Any("error", err))
	p.errs = append(p.errs, err)
	return nil
}

// trimDeep trims every string in v. Containers are copied, never changed
// in place.
func trimDeep(v types.Value) types.Value {
	switch v.Kind() {
	case types.KindString:
		return types.String(strings.TrimSpace(v.Str()))
	case types.KindList:
		items := v.List().Items()
		out := make([]types.Value, len(items))
		for i, item := range items {
			out[i] = trimDeep(item)
		}
		return types.ListOf(out...)
	case types.KindMap:
		m := types.NewMap()
		for _, k := range v.Map().Keys() {
			item, _ := v.Map().Get(k)
			m.Set(k, trimDeep(item))
		}
		return types.MapValue(m)
	}
	return v
}
