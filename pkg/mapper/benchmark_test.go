package mapper_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/sandrolain/gomapper/pkg/mapper"
	"github.com/sandrolain/gomapper/pkg/types"
)

func buildUsers(n int) types.Value {
	departments := []string{"Engineering", "Sales", "Marketing", "HR", "Finance"}
	users := types.NewList()
	for i := 0; i < n; i++ {
		u := types.NewMap()
		u.Set("id", types.Int(int64(i+1)))
		u.Set("name", types.String(fmt.Sprintf(" User%d ", i+1)))
		u.Set("age", types.Int(int64(20+i%40)))
		u.Set("department", types.String(departments[i%len(departments)]))
		u.Set("salary", types.Float(30000+float64(i%50)*1000))
		users.Append(types.MapValue(u))
	}
	root := types.NewMap()
	root.Set("users", types.ListValue(users))
	return types.MapValue(root)
}

const (
	benchProjection = `{"people": {"*": {"id": "{{ users.*.id }}", "name": "{{ users.*.name | trim | upper }}"}}}`
	benchQuery      = `{"seniors": {
		"*": {"name": "{{ users.*.name }}", "salary": "{{ users.*.salary }}"},
		"WHERE": {"{{ users.*.age }}": [">=", 40]},
		"ORDER BY": {"{{ users.*.salary }}": "DESC"},
		"LIMIT": 10
	}}`
	benchGroup = `{"departments": {
		"*": {"name": "{{ users.*.department }}", "avg": "{{ users.*.avg }}"},
		"GROUP BY": {"field": "{{ users.*.department }}", "aggregations": {"avg": ["AVG", "{{ users.*.salary }}"]}}
	}}`
)

func benchmarkMap(b *testing.B, m *mapper.Mapper, tpl string, n int) {
	b.Helper()
	compiled, err := m.CompileJSON([]byte(tpl))
	if err != nil {
		b.Fatal(err)
	}
	source := buildUsers(n)
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.Map(ctx, compiled, source); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMap(b *testing.B) {
	cases := []struct {
		name string
		tpl  string
	}{
		{"Projection", benchProjection},
		{"Query", benchQuery},
		{"GroupBy", benchGroup},
	}
	for _, size := range []int{10, 100, 1000} {
		for _, c := range cases {
			b.Run(fmt.Sprintf("%s/%d", c.name, size), func(b *testing.B) {
				benchmarkMap(b, mapper.New(), c.tpl, size)
			})
		}
	}
}

func BenchmarkMap_TrimSkipNull(b *testing.B) {
	m := mapper.New(mapper.WithFlags(mapper.Flags{TrimValues: true, SkipNull: true, ReindexWildcard: true}))
	benchmarkMap(b, m, benchProjection, 100)
}

func BenchmarkCompileJSON(b *testing.B) {
	doc := []byte(benchQuery)
	b.Run("Cached", func(b *testing.B) {
		m := mapper.New()
		for i := 0; i < b.N; i++ {
			if _, err := m.CompileJSON(doc); err != nil {
				b.Fatal(err)
			}
		}
	})
}
