package mapper_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandrolain/gomapper/pkg/hook"
	"github.com/sandrolain/gomapper/pkg/mapper"
	"github.com/sandrolain/gomapper/pkg/metrics"
	"github.com/sandrolain/gomapper/pkg/registry"
	"github.com/sandrolain/gomapper/pkg/types"
)

const profileTemplate = `{"profile": {
	"name": "{{ user.name }}",
	"nick": "{{ user.nick }}",
	"contacts": {"*": "{{ user.emails.* }}"}
}}`

const profileSource = `{"user": {"name": " Alice ", "emails": ["a@work", "a@home"]}}`

func mapJSON(t *testing.T, m *mapper.Mapper, tpl, src string) (types.Value, error) {
	t.Helper()
	compiled, err := m.CompileJSON([]byte(tpl))
	require.NoError(t, err)
	return m.Map(context.Background(), compiled, types.MustParseJSON(src))
}

func TestMap_TrimAndSkipNull(t *testing.T) {
	m := mapper.New(mapper.WithFlags(mapper.Flags{TrimValues: true, SkipNull: true, ReindexWildcard: true}))
	out, err := mapJSON(t, m, profileTemplate, profileSource)
	require.NoError(t, err)
	assert.JSONEq(t, `{"profile": {"name": "Alice", "contacts": ["a@work", "a@home"]}}`, out.String())
}

func TestMap_DefaultFlagsKeepNulls(t *testing.T) {
	out, err := mapJSON(t, mapper.New(), profileTemplate, profileSource)
	require.NoError(t, err)
	assert.JSONEq(t, `{"profile": {"name": " Alice ", "nick": null, "contacts": ["a@work", "a@home"]}}`, out.String())
}

func TestMap_TrimNestedValues(t *testing.T) {
	m := mapper.New(mapper.WithFlags(mapper.Flags{TrimValues: true}))
	out, err := mapJSON(t, m, `{"tags": "{{ tags }}"}`, `{"tags": [" a", {"b": " c "}]}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tags": ["a", {"b": "c"}]}`, out.String())
}

func TestMap_SkipHook(t *testing.T) {
	skipName := hook.On(hook.BeforeTransform, func(context.Context, *hook.Context) hook.Result {
		return hook.Skip()
	}).Matching("profile.name")

	m := mapper.New(mapper.WithHooks(skipName))
	out, err := mapJSON(t, m, profileTemplate, profileSource)
	require.NoError(t, err)
	_, has := out.Map().Get("profile")
	require.True(t, has)
	profile, _ := out.Map().Get("profile")
	assert.False(t, profile.Map().Has("name"))
	assert.True(t, profile.Map().Has("contacts"))
}

func TestMap_ReplaceHooks(t *testing.T) {
	var paths []string
	upper := hook.On(hook.AfterTransform, func(_ context.Context, hc *hook.Context) hook.Result {
		paths = append(paths, hc.Path().String()+"<-"+hc.SourcePath())
		return hook.Replace(types.String(strings.ToUpper(hc.Value().Str())))
	}).Matching("profile.contacts.*")

	m := mapper.New(mapper.WithHooks(upper))
	out, err := mapJSON(t, m, profileTemplate, profileSource)
	require.NoError(t, err)
	contacts, err := pathGet(out, "profile.contacts")
	require.NoError(t, err)
	assert.JSONEq(t, `["A@WORK", "A@HOME"]`, contacts.String())
	assert.Equal(t, []string{"profile.contacts.0<-user.emails.0", "profile.contacts.1<-user.emails.1"}, paths)
}

func TestMap_BeforeAllSkipLeavesTarget(t *testing.T) {
	skip := hook.On(hook.BeforeAll, func(context.Context, *hook.Context) hook.Result { return hook.Skip() })
	m := mapper.New(mapper.WithHooks(skip))
	tpl, err := m.CompileJSON([]byte(`{"a": "{{ a }}"}`))
	require.NoError(t, err)

	target := types.MustParseJSON(`{"keep": true}`)
	require.NoError(t, m.MapInto(context.Background(), tpl, types.MustParseJSON(`{"a": 1}`), &target))
	assert.JSONEq(t, `{"keep": true}`, target.String())
}

func TestMap_BeforeAllReplacesSource(t *testing.T) {
	swap := hook.On(hook.BeforeAll, func(context.Context, *hook.Context) hook.Result {
		return hook.Replace(types.MustParseJSON(`{"a": "swapped"}`))
	})
	out, err := mapJSON(t, mapper.New(mapper.WithHooks(swap)), `{"a": "{{ a }}"}`, `{"a": "orig"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": "swapped"}`, out.String())
}

func TestMap_AfterAll(t *testing.T) {
	wrap := hook.On(hook.AfterAll, func(_ context.Context, hc *hook.Context) hook.Result {
		m := types.NewMap()
		m.Set("data", hc.Value())
		return hook.Replace(types.MapValue(m))
	})
	out, err := mapJSON(t, mapper.New(mapper.WithHooks(wrap)), `{"a": "{{ a }}"}`, `{"a": 1}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data": {"a": 1}}`, out.String())

	discard := hook.On(hook.AfterAll, func(context.Context, *hook.Context) hook.Result { return hook.Skip() })
	out, err = mapJSON(t, mapper.New(mapper.WithHooks(discard)), `{"a": "{{ a }}"}`, `{"a": 1}`)
	require.NoError(t, err)
	assert.True(t, out.IsNull())
}

func TestMap_HookFailureAborts(t *testing.T) {
	cause := errors.New("rejected")
	fail := hook.On(hook.BeforeTransform, func(context.Context, *hook.Context) hook.Result {
		return hook.Fail(cause)
	}).Named("reject").Matching("b")

	m := mapper.New(mapper.WithHooks(fail))
	tpl, err := m.CompileJSON([]byte(`{"a": "{{ a }}", "b": "{{ b }}"}`))
	require.NoError(t, err)

	target := types.MustParseJSON(`{"old": 1}`)
	err = m.MapInto(context.Background(), tpl, types.MustParseJSON(`{"a": 1, "b": 2}`), &target)
	require.Error(t, err)
	assert.Equal(t, types.ErrHookFailed, types.CodeOf(err))
	assert.ErrorIs(t, err, cause)
	assert.JSONEq(t, `{"old": 1}`, target.String(), "aborted pass leaves the target untouched")
}

func TestMap_CollectErrors(t *testing.T) {
	m := mapper.New(mapper.WithFlags(mapper.Flags{CollectErrors: true, ReindexWildcard: true}))
	out, err := mapJSON(t, m,
		`{"a": "{{ x | int }}", "b": "{{ y }}", "c": "{{ z | int }}", "d": "{{ w | int }}"}`,
		`{"x": "abc", "y": 1, "z": "2", "w": [1]}`)
	require.Error(t, err)
	assert.JSONEq(t, `{"b": 1, "c": 2}`, out.String())

	var agg *types.AggregateError
	require.True(t, errors.As(err, &agg))
	assert.Len(t, agg.Errors, 2)
	assert.ErrorIs(t, err, types.ErrTypeCoercion)
}

func TestMap_CollectKeepsTemplateErrorsFatal(t *testing.T) {
	m := mapper.New(mapper.WithFlags(mapper.Flags{CollectErrors: true}))
	out, err := mapJSON(t, m, `{"a": "{{ a | nosuch }}"}`, `{"a": 1}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConfiguration)
	assert.True(t, out.IsNull())
}

func TestMap_ReindexDisabled(t *testing.T) {
	m := mapper.New().With(mapper.WithFlags(mapper.Flags{}))
	out, err := mapJSON(t, m,
		`{"big": {"*": "{{ n.* }}", "WHERE": {"{{ n.* }}": [">", 1]}}}`, `{"n": [1, 2, 3]}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"big": {"1": 2, "2": 3}}`, out.String())
}

func TestMap_RegistryHooksAndRunID(t *testing.T) {
	var ids []string
	record := func(_ context.Context, hc *hook.Context) hook.Result {
		ids = append(ids, hc.RunID())
		return hook.Keep()
	}
	reg := registry.New(registry.WithHooks(
		hook.On(hook.BeforeAll, record),
		hook.On(hook.AfterTransform, record),
	))
	m := mapper.New(mapper.WithRegistry(reg))
	_, err := mapJSON(t, m, `{"a": "{{ a }}"}`, `{"a": 1}`)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.NotEmpty(t, ids[0])
	assert.Equal(t, ids[0], ids[1])

	_, err = mapJSON(t, m, `{"a": "{{ a }}"}`, `{"a": 1}`)
	require.NoError(t, err)
	require.Len(t, ids, 4)
	assert.NotEqual(t, ids[0], ids[2], "every pass gets its own run id")
}

func TestMap_HookContextIsReadOnly(t *testing.T) {
	mutate := hook.On(hook.BeforeTransform, func(_ context.Context, hc *hook.Context) hook.Result {
		hc.Source().Map().Set("a", types.Int(99))
		return hook.Keep()
	})
	out, err := mapJSON(t, mapper.New(mapper.WithHooks(mutate)), `{"a": "{{ a }}", "b": "{{ a }}"}`, `{"a": 1}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 1, "b": 1}`, out.String())
}

func TestMapSources(t *testing.T) {
	m := mapper.New()
	tpl, err := m.CompileJSON([]byte(`{"id": "{{ order.id }}", "name": "{{ customer.name }}"}`))
	require.NoError(t, err)
	out, err := m.MapSources(context.Background(), tpl, map[string]types.Value{
		"order":    types.MustParseJSON(`{"id": 1}`),
		"customer": types.MustParseJSON(`{"name": "Bo"}`),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": 1, "name": "Bo"}`, out.String())
}

func TestMap_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := mapper.New(mapper.WithMetrics(metrics.NewCollector(reg)))
	_, err := mapJSON(t, m, `{"o": {"*": "{{ n.* }}", "LIMIT": 1}}`, `{"n": [1, 2, 3]}`)
	require.NoError(t, err)
	_, err = mapJSON(t, m, `{"a": "{{ a | int }}"}`, `{"a": "x"}`)
	require.Error(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["gomapper_passes_total"])
	assert.True(t, names["gomapper_errors_total"])
	assert.True(t, names["gomapper_stage_dropped_rows_total"])
}

func TestCompileJSON_Cached(t *testing.T) {
	m := mapper.New()
	doc := []byte(`{"a": "{{ a }}"}`)
	first, err := m.CompileJSON(doc)
	require.NoError(t, err)
	second, err := m.CompileJSON(doc)
	require.NoError(t, err)
	assert.Same(t, first, second)

	yamlTpl, err := m.CompileYAML([]byte("a: '{{ a }}'\n"))
	require.NoError(t, err)
	assert.NotSame(t, first, yamlTpl)
}

func pathGet(v types.Value, p string) (types.Value, error) {
	cur := v
	for _, k := range strings.Split(p, ".") {
		next, ok := cur.Map().Get(k)
		if !ok {
			return types.Null(), errors.New("missing " + k)
		}
		cur = next
	}
	return cur, nil
}
