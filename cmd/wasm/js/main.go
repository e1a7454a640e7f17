//go:build js && wasm

// Command gomapper-wasm-js is the WebAssembly entrypoint for browser and Node.js.
//
// It exposes a global `gomapper` object with the following API:
//
//	gomapper.version()                                 → string
//	gomapper.map(templateJSON, sourceJSON, flagsJSON?) → resultJSON  (throws on error)
//	gomapper.reverse(templateJSON, dataJSON)           → resultJSON  (throws on error)
//	gomapper.compile(templateJSON)                     → { map(sourceJSON) → resultJSON }  (throws on error)
//
// Build:
//
//	GOOS=js GOARCH=wasm go build -o gomapper.wasm ./cmd/wasm/js/
//
// Usage in Node.js:
//
//	require('./wasm_exec.js')
//	// ... instantiate gomapper.wasm with new Go().importObject, then:
//	const out = gomapper.map('{"n": "{{ name }}"}', JSON.stringify({name: 'Alice'}))
//	console.log(JSON.parse(out)) // { n: 'Alice' }
package main

import (
	"context"
	"fmt"
	"syscall/js"

	json "github.com/goccy/go-json"

	"github.com/sandrolain/gomapper"
	"github.com/sandrolain/gomapper/pkg/ext"
	"github.com/sandrolain/gomapper/pkg/mapper"
	"github.com/sandrolain/gomapper/pkg/registry"
	"github.com/sandrolain/gomapper/pkg/types"
)

var reg = registry.New(ext.WithAll())

// jsThrow panics with a JS Error so the caller receives a thrown exception.
func jsThrow(msg string) {
	panic(js.Global().Get("Error").New(msg))
}

func newMapper(flagsJSON string) *mapper.Mapper {
	flags := mapper.DefaultFlags()
	if flagsJSON != "" {
		if err := json.Unmarshal([]byte(flagsJSON), &flags); err != nil {
			jsThrow(fmt.Sprintf("gomapper: invalid flags JSON: %v", err))
		}
	}
	return mapper.New(mapper.WithRegistry(reg), mapper.WithFlags(flags))
}

func compile(fn, doc string) *types.Template {
	tpl, err := gomapper.CompileJSON([]byte(doc))
	if err != nil {
		jsThrow(fmt.Sprintf("gomapper.%s: %v", fn, err))
	}
	return tpl
}

func source(fn, doc string) types.Value {
	v, err := types.ParseJSON([]byte(doc))
	if err != nil {
		jsThrow(fmt.Sprintf("gomapper.%s: invalid data JSON: %v", fn, err))
	}
	return v
}

func encode(fn string, v types.Value, err error) any {
	if err != nil {
		jsThrow(fmt.Sprintf("gomapper.%s: %v", fn, err))
	}
	out, err := v.MarshalJSON()
	if err != nil {
		jsThrow(fmt.Sprintf("gomapper.%s: marshal result: %v", fn, err))
	}
	return string(out)
}

// jsMap implements gomapper.map(templateJSON, sourceJSON, flagsJSON?).
func jsMap(_ js.Value, args []js.Value) any {
	if len(args) < 2 {
		jsThrow("gomapper.map requires 2 arguments: template (JSON string) and source (JSON string)")
	}
	flags := ""
	if len(args) > 2 && args[2].Type() == js.TypeString {
		flags = args[2].String()
	}
	tpl := compile("map", args[0].String())
	out, err := newMapper(flags).Map(context.Background(), tpl, source("map", args[1].String()))
	return encode("map", out, err)
}

// jsReverse implements gomapper.reverse(templateJSON, dataJSON).
func jsReverse(_ js.Value, args []js.Value) any {
	if len(args) < 2 {
		jsThrow("gomapper.reverse requires 2 arguments: template (JSON string) and data (JSON string)")
	}
	tpl := compile("reverse", args[0].String())
	out, err := newMapper("").Reverse(context.Background(), tpl, source("reverse", args[1].String()))
	return encode("reverse", out, err)
}

// jsCompile implements gomapper.compile(templateJSON) → { map(sourceJSON) }.
func jsCompile(_ js.Value, args []js.Value) any {
	if len(args) < 1 {
		jsThrow("gomapper.compile requires 1 argument: template (JSON string)")
	}
	tpl := compile("compile", args[0].String())
	m := newMapper("")

	mapFn := js.FuncOf(func(_ js.Value, inner []js.Value) any {
		if len(inner) < 1 {
			jsThrow("compiled.map requires 1 argument: source (JSON string)")
		}
		out, err := m.Map(context.Background(), tpl, source("map", inner[0].String()))
		return encode("map", out, err)
	})
	return js.ValueOf(map[string]any{"map": mapFn})
}

func main() {
	api := map[string]any{
		"map":     js.FuncOf(jsMap),
		"reverse": js.FuncOf(jsReverse),
		"compile": js.FuncOf(jsCompile),
		"version": js.FuncOf(func(_ js.Value, _ []js.Value) any {
			return gomapper.Version()
		}),
	}
	js.Global().Set("gomapper", js.ValueOf(api))

	// Block forever; the JS event loop owns execution from here.
	select {}
}
