//go:build wasip1

// Command gomapper-wasm-wasi is the WASI (wasip1) entrypoint for use from any
// language that supports the WebAssembly System Interface.
//
// Protocol: single JSON object on stdin → single JSON object on stdout.
//
//	stdin:  { "template": <template>, "source": <any JSON value>,
//	          "flags": { "skip_null": true, "trim_values": true, ... },
//	          "reverse": false }
//	stdout: { "result": <any JSON value> }    on success
//	        { "error":  "<message>"       }    on failure (exit code 1)
//
// Build:
//
//	GOOS=wasip1 GOARCH=wasm go build -o gomapper.wasm ./cmd/wasm/wasi/
//
// Usage with wasmtime CLI:
//
//	echo '{"template":{"n":"{{ name }}"},"source":{"name":"Alice"}}' | wasmtime gomapper.wasm
package main

import (
	"context"
	"os"

	json "github.com/goccy/go-json"

	"github.com/sandrolain/gomapper/pkg/ext"
	"github.com/sandrolain/gomapper/pkg/mapper"
	"github.com/sandrolain/gomapper/pkg/parser"
	"github.com/sandrolain/gomapper/pkg/registry"
	"github.com/sandrolain/gomapper/pkg/types"
)

type request struct {
	Template types.Value   `json:"template"`
	Source   types.Value   `json:"source"`
	Flags    *mapper.Flags `json:"flags"`
	Reverse  bool          `json:"reverse"`
}

type response struct {
	Result *types.Value `json:"result,omitempty"`
	Error  string       `json:"error,omitempty"`
}

func writeResponse(r response, exitCode int) {
	_ = json.NewEncoder(os.Stdout).Encode(r)
	os.Exit(exitCode)
}

func main() {
	var req request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(response{Error: "invalid request JSON: " + err.Error()}, 1)
	}

	tpl, err := parser.Compile(req.Template)
	if err != nil {
		writeResponse(response{Error: err.Error()}, 1)
	}

	flags := mapper.DefaultFlags()
	if req.Flags != nil {
		flags = *req.Flags
	}
	m := mapper.New(
		mapper.WithRegistry(registry.New(ext.WithAll())),
		mapper.WithFlags(flags),
	)

	ctx := context.Background()
	var out types.Value
	if req.Reverse {
		out, err = m.Reverse(ctx, tpl, req.Source)
	} else {
		out, err = m.Map(ctx, tpl, req.Source)
	}
	if err != nil {
		writeResponse(response{Error: err.Error()}, 1)
	}

	writeResponse(response{Result: &out}, 0)
}
