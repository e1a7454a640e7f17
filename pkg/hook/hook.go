// Package hook defines the callbacks run around a mapping pass.
//
// Hooks observe an immutable [Context] and answer with a [Result]: keep the
// value, replace it, skip the key (or the whole pass for BeforeAll) or fail.
package hook

import (
	"context"
	"fmt"

	"github.com/sandrolain/gomapper/pkg/path"
	"github.com/sandrolain/gomapper/pkg/types"
)

// Stage identifies when a hook runs.
type Stage uint8

// Hook stages, in pipeline order.
const (
	BeforeAll Stage = iota
	BeforeTransform
	AfterTransform
	AfterAll
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{BeforeAll, BeforeTransform, AfterTransform, AfterAll}

func (s Stage) String() string {
	switch s {
	case BeforeAll:
		return "before_all"
	case BeforeTransform:
		return "before_transform"
	case AfterTransform:
		return "after_transform"
	case AfterAll:
		return "after_all"
	}
	return fmt.Sprintf("stage(%d)", s)
}

// Action is the outcome chosen by a hook.
type Action uint8

// Hook actions.
const (
	ActionKeep Action = iota
	ActionReplace
	ActionSkip
	ActionFail
)

// Result is returned by a hook.
type Result struct {
	action Action
	value  types.Value
	err    error
}

// Keep leaves the value unchanged.
func Keep() Result { return Result{action: ActionKeep} }

// Replace substitutes v for the value.
func Replace(v types.Value) Result { return Result{action: ActionReplace, value: v} }

// Skip omits the key. Returned from BeforeAll it skips the pass; from
// AfterAll it discards the output.
func Skip() Result { return Result{action: ActionSkip} }

// Fail aborts with err, or records it in collect mode.
func Fail(err error) Result { return Result{action: ActionFail, err: err} }

// Action returns the chosen action.
func (r Result) Action() Action { return r.action }

// Value returns the replacement value.
func (r Result) Value() types.Value { return r.value }

// Err returns the failure cause.
func (r Result) Err() error { return r.err }

// Func is the signature of a hook.
type Func func(ctx context.Context, hc *Context) Result

// Hook binds a function to a stage, optionally scoped to target key paths.
type Hook struct {
	// Name identifies the hook in errors and logs.
	Name string
	// Stage selects when the hook runs.
	Stage Stage
	// Pattern limits BeforeTransform and AfterTransform hooks to target
	// paths it matches; "*" segments match any key. Empty matches all.
	Pattern types.Path
	// Fn is the implementation.
	Fn Func
}

// On returns a hook running fn at stage.
func On(stage Stage, fn Func) Hook {
	return Hook{Stage: stage, Fn: fn}
}

// Named returns a copy of h with the given name.
func (h Hook) Named(name string) Hook {
	h.Name = name
	return h
}

// Matching returns a copy of h scoped to target paths matching pattern.
// It panics when pattern is not a valid path.
func (h Hook) Matching(pattern string) Hook {
	h.Pattern = types.MustParsePath(pattern)
	return h
}

// Applies reports whether h runs for the target path p.
func (h Hook) Applies(p types.Path) bool {
	return h.Pattern.IsEmpty() || path.MatchPattern(h.Pattern, p)
}

func (h Hook) label() string {
	if h.Name != "" {
		return h.Name
	}
	return h.Stage.String()
}

// Run calls the hooks applying to snap.Path in order. A Replace feeds the
// new value to the following hooks; Skip stops the chain. The returned
// result is Keep, Replace with the final value, or Skip. Failures and panics
// become callback errors.
func Run(ctx context.Context, hooks []Hook, snap Snapshot) (Result, error) {
	replaced := false
	for _, h := range hooks {
		if h.Stage != snap.Stage || !h.Applies(snap.Path) {
			continue
		}
		r, err := call(ctx, h, NewContext(snap))
		if err != nil {
			return Fail(err), err
		}
		switch r.action {
		case ActionReplace:
			snap.Value = r.value
			replaced = true
		case ActionSkip:
			return r, nil
		case ActionFail:
			err := types.Errorf(types.ErrHookFailed, "hook %s failed at %s", h.label(), snap.Path.String()).
				WithPath(snap.Path.String()).WithCause(r.err)
			return Fail(err), err
		}
	}
	if replaced {
		return Replace(snap.Value), nil
	}
	return Keep(), nil
}

func call(ctx context.Context, h Hook, hc *Context) (r Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = types.Errorf(types.ErrHookFailed, "hook %s panicked: %v", h.label(), p).WithPath(hc.Path().String())
		}
	}()
	return h.Fn(ctx, hc), nil
}
