// Package wasmop runs custom operator stages implemented as WASI modules.
//
// The module is a command (a wasip1 program with a _start export). For every
// stage evaluation it is instantiated once, receives a request on stdin and
// answers on stdout:
//
//	stdin:  {"operator": "SAMPLE", "config": <stage value>, "prefixes": ["items.*"],
//	         "rows": [{"ordinal": 0, "paths": ["items.0"], "elements": [...], "aggregates": null}]}
//	stdout: {"select": [2, 0]}        indices into rows, in output order
//	        {"error": "<message>"}    on failure
//
// A module built from Go:
//
//	GOOS=wasip1 GOARCH=wasm go build -o sample.wasm ./sample
//
// Registering it:
//
//	op, err := wasmop.Compile(ctx, "SAMPLE", wasmBytes)
//	if err != nil { ... }
//	defer op.Close(ctx)
//	err = op.Register(reg)
package wasmop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"github.com/sandrolain/gomapper/pkg/query"
	"github.com/sandrolain/gomapper/pkg/registry"
	"github.com/sandrolain/gomapper/pkg/types"
)

// DefaultMemoryLimitPages caps module memory at 64 MiB.
const DefaultMemoryLimitPages = 1024

// Options configures an Operator.
type Options struct {
	Logger           *slog.Logger
	MemoryLimitPages uint32
}

// Option configures an Operator.
type Option func(*Options)

// WithLogger sets the logger used for module stderr and diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithMemoryLimitPages sets the maximum memory of a module in 64 KiB pages.
func WithMemoryLimitPages(pages uint32) Option {
	return func(o *Options) { o.MemoryLimitPages = pages }
}

// Operator is a compiled WASI operator module. It is safe for concurrent
// use; every call runs in a fresh module instance.
type Operator struct {
	name     string
	opts     Options
	logger   *slog.Logger
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
}

// Compile compiles wasm as the operator name. Close the operator to release
// the runtime.
func Compile(ctx context.Context, name string, wasm []byte, opts ...Option) (*Operator, error) {
	o := Options{MemoryLimitPages: DefaultMemoryLimitPages}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return nil, types.Errorf(types.ErrInvalidConfig, "operator name is empty")
	}

	cfg := wazero.NewRuntimeConfig().
		WithCloseOnContextDone(true).
		WithMemoryLimitPages(o.MemoryLimitPages)
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("instantiate wasi: %w", err)
	}
	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, types.Errorf(types.ErrInvalidConfig, "operator %s: invalid module", name).WithToken(name).WithCause(err)
	}
	return &Operator{
		name:     name,
		opts:     o,
		logger:   o.Logger.With("operator", name),
		runtime:  rt,
		compiled: compiled,
	}, nil
}

// Name returns the uppercase operator name.
func (op *Operator) Name() string { return op.name }

// Close releases the runtime and the compiled module.
func (op *Operator) Close(ctx context.Context) error {
	return op.runtime.Close(ctx)
}

// Register registers the operator on reg under its name.
func (op *Operator) Register(reg *registry.Registry) error {
	return reg.RegisterOperator(op.name, op.Func())
}

// Func returns the operator as a stage implementation.
func (op *Operator) Func() query.OperatorFunc {
	return op.call
}

type wireRow struct {
	Ordinal    int           `json:"ordinal"`
	Paths      []string      `json:"paths"`
	Elements   []types.Value `json:"elements"`
	Aggregates types.Value   `json:"aggregates"`
}

type request struct {
	Operator string      `json:"operator"`
	Config   types.Value `json:"config"`
	Prefixes []string    `json:"prefixes"`
	Rows     []wireRow   `json:"rows"`
}

type response struct {
	Select []int  `json:"select"`
	Error  string `json:"error"`
}

func newRequest(call query.OperatorCall) request {
	req := request{Operator: call.Name, Config: call.Config, Rows: make([]wireRow, len(call.Rows))}
	if len(call.Rows) > 0 {
		for _, p := range call.Rows[0].Prefixes {
			req.Prefixes = append(req.Prefixes, p.String())
		}
	}
	for i, r := range call.Rows {
		w := wireRow{Ordinal: r.Ordinal, Elements: r.Elements}
		for _, p := range r.Paths {
			w.Paths = append(w.Paths, p.String())
		}
		if r.Aggregates != nil {
			w.Aggregates = types.MapValue(r.Aggregates)
		}
		req.Rows[i] = w
	}
	return req
}

func (op *Operator) call(ctx context.Context, call query.OperatorCall) ([]query.Row, error) {
	in, err := json.Marshal(newRequest(call))
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cfg := wazero.NewModuleConfig().
		WithName("").
		WithArgs(strings.ToLower(op.name)).
		WithStdin(bytes.NewReader(in)).
		WithStdout(&stdout).
		WithStderr(&stderr)

	mod, err := op.runtime.InstantiateModule(ctx, op.compiled, cfg)
	if mod != nil {
		defer mod.Close(ctx)
	}
	if stderr.Len() > 0 {
		op.logger.Debug("operator stderr", "output", strings.TrimSpace(stderr.String()))
	}
	if err != nil {
		var exit *sys.ExitError
		if !errors.As(err, &exit) || exit.ExitCode() != 0 {
			if msg := failure(stdout.Bytes()); msg != "" {
				return nil, errors.New(msg)
			}
			return nil, fmt.Errorf("run module: %w", err)
		}
	}

	return selectRows(call.Rows, stdout.Bytes())
}

// failure extracts the error message of a response, if any.
func failure(out []byte) string {
	var resp response
	if json.Unmarshal(bytes.TrimSpace(out), &resp) != nil {
		return ""
	}
	return resp.Error
}

func selectRows(rows []query.Row, out []byte) ([]query.Row, error) {
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return nil, errors.New("module produced no response")
	}
	var resp response
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}
	selected := make([]query.Row, 0, len(resp.Select))
	for _, i := range resp.Select {
		if i < 0 || i >= len(rows) {
			return nil, fmt.Errorf("selected row %d is out of range [0, %d)", i, len(rows))
		}
		selected = append(selected, rows[i])
	}
	return selected, nil
}
