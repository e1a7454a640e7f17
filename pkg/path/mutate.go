package path

import (
	"github.com/sandrolain/gomapper/pkg/types"
)

// Set writes v at p inside *root.
//
// Missing intermediate containers are created: a list when the following
// segment is an index or a wildcard, a map otherwise. Writing past the end
// of a list pads it with nulls. Scalars found where a container is needed
// are replaced.
//
// Wildcard writes broadcast. A non-list v is written into every slot the
// wildcard matches. A list v is written positionally: slot i receives
// element i, slots past the end of v are left untouched, and a missing or
// shorter list container is created or extended to hold every element.
func Set(root *types.Value, p types.Path, v types.Value) error {
	if root == nil {
		return types.Errorf(types.ErrPathConflict, "cannot write into a nil root")
	}
	if p.IsEmpty() {
		*root = v
		return nil
	}
	return set(root, p, 0, v)
}

// SetString parses path and writes v at it.
func SetString(root *types.Value, path string, v types.Value) error {
	p, err := types.ParsePath(path)
	if err != nil {
		return err
	}
	return Set(root, p, v)
}

func set(cur *types.Value, p types.Path, depth int, v types.Value) error {
	if depth == p.Len() {
		*cur = v
		return nil
	}
	seg := p.At(depth)

	switch seg.Kind {
	case types.SegmentKey:
		if cur.Kind() == types.KindList {
			return conflict(p, depth, "key segment on a list")
		}
		if cur.Kind() != types.KindMap {
			*cur = types.MapValue(types.NewMap())
		}
		m := cur.Map()
		child, _ := m.Get(seg.Key)
		if err := set(&child, p, depth+1, v); err != nil {
			return err
		}
		m.Set(seg.Key, child)
		return nil

	case types.SegmentIndex:
		if cur.Kind() == types.KindMap {
			m := cur.Map()
			child, _ := m.Get(seg.Key)
			if err := set(&child, p, depth+1, v); err != nil {
				return err
			}
			m.Set(seg.Key, child)
			return nil
		}
		if cur.Kind() != types.KindList {
			*cur = types.ListValue(types.NewList())
		}
		l := cur.List()
		idx := seg.Index
		if idx < 0 {
			idx += l.Len()
			if idx < 0 {
				return conflict(p, depth, "negative index out of range")
			}
		}
		child := l.At(idx)
		if err := set(&child, p, depth+1, v); err != nil {
			return err
		}
		l.Set(idx, child)
		return nil
	}

	return setWildcard(cur, p, depth, v)
}

func setWildcard(cur *types.Value, p types.Path, depth int, v types.Value) error {
	positional := v.Kind() == types.KindList

	switch cur.Kind() {
	case types.KindMap:
		m := cur.Map()
		for i, k := range m.Keys() {
			item := v
			if positional {
				if i >= v.List().Len() {
					break
				}
				item = v.List().At(i)
			}
			child, _ := m.Get(k)
			if err := set(&child, p, depth+1, item); err != nil {
				return err
			}
			m.Set(k, child)
		}
		return nil

	case types.KindList:
		l := cur.List()
		n := l.Len()
		if positional {
			n = v.List().Len()
			l.Grow(n)
		}
		for i := 0; i < n; i++ {
			item := v
			if positional {
				item = v.List().At(i)
			}
			child := l.At(i)
			if err := set(&child, p, depth+1, item); err != nil {
				return err
			}
			l.Set(i, child)
		}
		return nil
	}

	if !positional {
		// nothing to broadcast into
		return nil
	}
	*cur = types.ListValue(types.NewList())
	return setWildcard(cur, p, depth, v)
}

func conflict(p types.Path, depth int, msg string) error {
	return types.Errorf(types.ErrPathConflict, "%s at %q", msg, p.Prefix(depth+1).String()).
		WithPath(p.String())
}
