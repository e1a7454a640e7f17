package gomapper_test

import (
	"context"
	"fmt"

	"github.com/sandrolain/gomapper"
	"github.com/sandrolain/gomapper/pkg/ext"
	"github.com/sandrolain/gomapper/pkg/mapper"
	"github.com/sandrolain/gomapper/pkg/registry"
	"github.com/sandrolain/gomapper/pkg/types"
)

func ExampleMapJSON() {
	out, err := gomapper.MapJSON(
		[]byte(`{"names": {"*": "{{ users.*.name | upper }}", "WHERE": {"{{ users.*.age }}": [">", 30]}}}`),
		[]byte(`{"users": [{"name": "ada", "age": 36}, {"name": "bo", "age": 20}]}`),
	)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(string(out))
	// Output: {"names":["ADA"]}
}

func ExampleMap_flags() {
	tpl := gomapper.MustCompile(`{"name": "{{ user.name }}", "nick": "{{ user.nick }}"}`)
	out, err := gomapper.Map(tpl, types.MustParseJSON(`{"user": {"name": "  Ada "}}`),
		mapper.WithFlags(mapper.Flags{TrimValues: true, SkipNull: true}),
	)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(out)
	// Output: {"name":"Ada"}
}

func ExampleMap_groupBy() {
	tpl := gomapper.MustCompile(`{"totals": {
		"*": {"category": "{{ sales.*.category }}", "sum": "{{ sales.*.total }}"},
		"GROUP BY": {"field": "{{ sales.*.category }}", "aggregations": {"total": ["SUM", "{{ sales.*.amount }}"]}},
		"ORDER BY": {"total": "DESC"}
	}}`)
	out, err := gomapper.Map(tpl, types.MustParseJSON(`{"sales": [
		{"category": "books", "amount": 10},
		{"category": "games", "amount": 40},
		{"category": "books", "amount": 15}
	]}`))
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(out)
	// Output: {"totals":[{"category":"games","sum":40},{"category":"books","sum":25}]}
}

func ExampleReverse() {
	tpl := gomapper.MustCompile(`{"id": "{{ order.id }}", "skus": {"*": "{{ order.lines.*.sku }}"}}`)
	back, err := gomapper.Reverse(context.Background(), tpl, types.MustParseJSON(`{"id": 7, "skus": ["A", "B"]}`))
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(back)
	// Output: {"order":{"id":7,"lines":[{"sku":"A"},{"sku":"B"}]}}
}

func ExampleMapJSON_extensions() {
	reg := registry.New(ext.WithString())
	out, err := gomapper.MapJSON(
		[]byte(`{"slug": "{{ title | slug }}"}`),
		[]byte(`{"title": "Crème Brûlée Recipes"}`),
		mapper.WithRegistry(reg),
	)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(string(out))
	// Output: {"slug":"creme-brulee-recipes"}
}
