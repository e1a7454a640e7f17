package wasmop_test

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandrolain/gomapper/pkg/mapper"
	"github.com/sandrolain/gomapper/pkg/query"
	"github.com/sandrolain/gomapper/pkg/registry"
	"github.com/sandrolain/gomapper/pkg/types"
	"github.com/sandrolain/gomapper/pkg/wasmop"
)

// Hand-assembled WASI commands. respond writes a fixed payload to stdout,
// exit calls proc_exit.

var wasmHeader = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func uleb(n int) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func section(id byte, content ...byte) []byte {
	return append(append([]byte{id}, uleb(len(content))...), content...)
}

func name(s string) []byte {
	return append(uleb(len(s)), s...)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func importFunc(fn string, typeIdx byte) []byte {
	return section(2, concat([]byte{1}, name("wasi_snapshot_preview1"), name(fn), []byte{0x00, typeIdx})...)
}

func respond(payload string) []byte {
	data := make([]byte, 8, 8+len(payload))
	binary.LittleEndian.PutUint32(data[0:], 8)
	binary.LittleEndian.PutUint32(data[4:], uint32(len(payload)))
	data = append(data, payload...)

	body := []byte{
		0x00,             // no locals
		0x41, 0x01,       // fd 1
		0x41, 0x00,       // iovs
		0x41, 0x01,       // iovs_len
		0x41, 0x80, 0x20, // nwritten at 4096
		0x10, 0x00,       // call fd_write
		0x1a,             // drop errno
		0x0b,
	}
	return concat(
		wasmHeader,
		section(1, 0x02, 0x60, 0x04, 0x7f, 0x7f, 0x7f, 0x7f, 0x01, 0x7f, 0x60, 0x00, 0x00),
		importFunc("fd_write", 0),
		section(3, 0x01, 0x01),
		section(5, 0x01, 0x00, 0x01),
		section(7, concat([]byte{2}, name("_start"), []byte{0x00, 0x01}, name("memory"), []byte{0x02, 0x00})...),
		section(10, concat([]byte{1}, uleb(len(body)), body)...),
		section(11, concat([]byte{1, 0x00, 0x41, 0x00, 0x0b}, uleb(len(data)), data)...),
	)
}

func exit(code byte) []byte {
	body := []byte{0x00, 0x41, code, 0x10, 0x00, 0x0b}
	return concat(
		wasmHeader,
		section(1, 0x02, 0x60, 0x01, 0x7f, 0x00, 0x60, 0x00, 0x00),
		importFunc("proc_exit", 0),
		section(3, 0x01, 0x01),
		section(7, concat([]byte{1}, name("_start"), []byte{0x00, 0x01})...),
		section(10, concat([]byte{1}, uleb(len(body)), body)...),
	)
}

func compile(t *testing.T, name string, wasm []byte) *wasmop.Operator {
	t.Helper()
	ctx := context.Background()
	op, err := wasmop.Compile(ctx, name, wasm)
	require.NoError(t, err)
	t.Cleanup(func() { _ = op.Close(ctx) })
	return op
}

func mapWith(t *testing.T, op *wasmop.Operator, tpl, src string) (types.Value, error) {
	t.Helper()
	reg := registry.New()
	require.NoError(t, op.Register(reg))
	m := mapper.New(mapper.WithRegistry(reg))
	compiled, err := m.CompileJSON([]byte(tpl))
	require.NoError(t, err)
	return m.Map(context.Background(), compiled, types.MustParseJSON(src))
}

func TestOperator_Select(t *testing.T) {
	op := compile(t, "pick", respond(`{"select": [2, 0]}`))
	assert.Equal(t, "PICK", op.Name())

	out, err := mapWith(t, op, `{"o": {"*": "{{ n.* }}", "PICK": {"seed": 1}}}`, `{"n": [10, 20, 30]}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"o": [30, 10]}`, out.String())
}

func TestOperator_ErrorResponse(t *testing.T) {
	op := compile(t, "PICK", respond(`{"error": "bad seed"}`))
	_, err := mapWith(t, op, `{"o": {"*": "{{ n.* }}", "PICK": true}}`, `{"n": [1]}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrCallback)
	assert.Contains(t, err.Error(), "bad seed")
}

func TestOperator_Failures(t *testing.T) {
	tests := []struct {
		name string
		wasm []byte
		want string
	}{
		{"out of range", respond(`{"select": [5]}`), "out of range"},
		{"garbage", respond(`not json`), "decode response"},
		{"exit code", exit(3), "run module"},
		{"clean exit without output", exit(0), "no response"},
		{"no entrypoint", wasmHeader, "no response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := compile(t, "PICK", tt.wasm)
			rows := []query.Row{{Ordinal: 0, Elements: []types.Value{types.Int(1)}}}
			_, err := op.Func()(context.Background(), query.OperatorCall{Name: "PICK", Rows: rows})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestOperator_EmptySelection(t *testing.T) {
	op := compile(t, "NONE", respond(`{"select": []}`))
	out, err := mapWith(t, op, `{"o": {"*": "{{ n.* }}", "NONE": true}}`, `{"n": [1, 2]}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"o": []}`, out.String())
}

func TestCompile_Errors(t *testing.T) {
	ctx := context.Background()
	_, err := wasmop.Compile(ctx, "BAD", []byte("not wasm"))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConfiguration)

	_, err = wasmop.Compile(ctx, " ", wasmHeader)
	assert.ErrorIs(t, err, types.ErrConfiguration)

	op := compile(t, "where", wasmHeader)
	assert.Error(t, op.Register(registry.New()), "reserved stage names cannot be registered")
}
