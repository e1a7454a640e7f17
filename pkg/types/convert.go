package types

import (
	"fmt"
	"reflect"
	"sort"

	json "github.com/goccy/go-json"
)

// FromNative converts a Go value into a Value.
//
// Supported inputs are nil, Value, bools, every integer and float kind,
// strings, json.Number, slices, arrays and string-keyed maps. Structs and
// other types are converted through their JSON encoding. Go maps carry no
// key order, so the resulting Map iterates in sorted key order.
func FromNative(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case *Value:
		if t == nil {
			return Null(), nil
		}
		return *t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return Int(int64(t)), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		return Int(int64(t)), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case json.Number:
		return numberValue(string(t))
	case []any:
		l := &List{items: make([]Value, 0, len(t))}
		for _, item := range t {
			v, err := FromNative(item)
			if err != nil {
				return Value{}, err
			}
			l.items = append(l.items, v)
		}
		return ListValue(l), nil
	case map[string]any:
		m := newUnorderedMap(len(t))
		for k, item := range t {
			v, err := FromNative(item)
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", k, err)
			}
			m.keys = append(m.keys, k)
			m.values[k] = v
		}
		sort.Strings(m.keys)
		return MapValue(m), nil
	}
	return fromReflect(reflect.ValueOf(x))
}

// MustFromNative is like FromNative but panics on error.
func MustFromNative(x any) Value {
	v, err := FromNative(x)
	if err != nil {
		panic(fmt.Sprintf("types: FromNative(%T): %v", x, err))
	}
	return v
}

func newUnorderedMap(n int) *Map {
	return &Map{keys: make([]string, 0, n), values: make(map[string]Value, n), unordered: true}
}

func fromReflect(rv reflect.Value) (Value, error) {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		if rv.Kind() == reflect.Pointer && rv.Elem().Kind() != reflect.Struct {
			return FromNative(rv.Elem().Interface())
		}
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Null(), nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			break
		}
		l := &List{items: make([]Value, 0, rv.Len())}
		for i := 0; i < rv.Len(); i++ {
			v, err := FromNative(rv.Index(i).Interface())
			if err != nil {
				return Value{}, err
			}
			l.items = append(l.items, v)
		}
		return ListValue(l), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		if rv.IsNil() {
			return Null(), nil
		}
		m := newUnorderedMap(rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			v, err := FromNative(iter.Value().Interface())
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", k, err)
			}
			m.keys = append(m.keys, k)
			m.values[k] = v
		}
		sort.Strings(m.keys)
		return MapValue(m), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Int(int64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.Invalid:
		return Null(), nil
	}
	b, err := json.Marshal(rv.Interface())
	if err != nil {
		return Value{}, fmt.Errorf("convert %s: %w", rv.Type(), err)
	}
	return ParseJSON(b)
}

// Native converts v into plain Go values: nil, bool, int64, float64, string,
// []any and map[string]any.
func (v Value) Native() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindList:
		out := make([]any, len(v.l.items))
		for i, item := range v.l.items {
			out[i] = item.Native()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m.keys))
		for _, k := range v.m.keys {
			out[k] = v.m.values[k].Native()
		}
		return out
	}
	return nil
}
