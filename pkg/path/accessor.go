package path

import (
	"github.com/sandrolain/gomapper/pkg/types"
)

// Get reads the value at p. Without wildcards it returns the single value,
// or null when nothing matches. With wildcards it returns a list aligned
// with resolution order.
func Get(container types.Value, p types.Path, opts ...Option) (types.Value, error) {
	matches, err := Resolve(container, p, opts...)
	if err != nil {
		return types.Value{}, err
	}
	if !p.HasWildcard() {
		if len(matches) == 0 {
			return types.Null(), nil
		}
		return matches[0].Value, nil
	}
	items := make([]types.Value, len(matches))
	for i, m := range matches {
		items[i] = m.Value
	}
	return types.ListOf(items...), nil
}

// GetString parses path and reads it from container.
func GetString(container types.Value, path string, opts ...Option) (types.Value, error) {
	p, err := types.ParsePath(path)
	if err != nil {
		return types.Value{}, err
	}
	return Get(container, p, opts...)
}

// Exists reports whether p addresses at least one value.
func Exists(container types.Value, p types.Path) bool {
	matches, err := Resolve(container, p)
	return err == nil && len(matches) > 0
}
