package types

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind uint8

// Value kinds.
const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

var kindNames = [...]string{
	KindNull:   "null",
	KindBool:   "bool",
	KindInt:    "int",
	KindFloat:  "float",
	KindString: "string",
	KindList:   "list",
	KindMap:    "map",
}

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is the uniform representation of mapped data: a tagged union over
// null, bool, int, float, string, list and map.
//
// The zero Value is null. Lists and maps are held by reference, so copies of
// a Value share the same container and writes through one copy are visible
// through the others. Use Clone for an independent copy.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	l    *List
	m    *Map
}

// Null returns the null Value.
func Null() Value { return Value{} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns an integer Value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a floating point Value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// ListValue wraps l in a Value. A nil list becomes an empty one.
func ListValue(l *List) Value {
	if l == nil {
		l = NewList()
	}
	return Value{kind: KindList, l: l}
}

// MapValue wraps m in a Value. A nil map becomes an empty one.
func MapValue(m *Map) Value {
	if m == nil {
		m = NewMap()
	}
	return Value{kind: KindMap, m: m}
}

// ListOf returns a list Value holding items.
func ListOf(items ...Value) Value { return ListValue(NewList(items...)) }

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsContainer reports whether v is a list or a map.
func (v Value) IsContainer() bool { return v.kind == KindList || v.kind == KindMap }

// IsNumber reports whether v holds an int or a float.
func (v Value) IsNumber() bool { return v.kind == KindInt || v.kind == KindFloat }

// Bool returns the boolean payload, or false for other kinds.
func (v Value) Bool() bool { return v.kind == KindBool && v.b }

// Int returns the integer payload. Floats are truncated; other kinds yield 0.
func (v Value) Int() int64 {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return int64(v.f)
	}
	return 0
}

// Float returns the numeric payload as float64; other kinds yield 0.
func (v Value) Float() float64 {
	switch v.kind {
	case KindInt:
		return float64(v.i)
	case KindFloat:
		return v.f
	}
	return 0
}

// Str returns the string payload, or "" for other kinds.
func (v Value) Str() string {
	if v.kind == KindString {
		return v.s
	}
	return ""
}

// List returns the list payload, or nil for other kinds.
func (v Value) List() *List {
	if v.kind == KindList {
		return v.l
	}
	return nil
}

// Map returns the map payload, or nil for other kinds.
func (v Value) Map() *Map {
	if v.kind == KindMap {
		return v.m
	}
	return nil
}

// Number coerces v to a float64. Ints, floats and strings that parse as a
// number succeed; everything else reports false.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	case KindString:
		s := strings.TrimSpace(v.s)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Text returns the string form of v used for string comparison and joining.
// Null yields "", containers yield their JSON encoding.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return formatFloat(v.f)
	case KindString:
		return v.s
	}
	b, err := v.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(b)
}

// String implements fmt.Stringer with the JSON form of v.
func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return "<invalid>"
	}
	return string(b)
}

// Equal reports deep equality. Ints and floats compare numerically; map key
// order is ignored.
func (v Value) Equal(o Value) bool {
	if v.IsNumber() && o.IsNumber() {
		if v.kind == KindInt && o.kind == KindInt {
			return v.i == o.i
		}
		return v.Float() == o.Float()
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindString:
		return v.s == o.s
	case KindList:
		if v.l.Len() != o.l.Len() {
			return false
		}
		for i, item := range v.l.items {
			if !item.Equal(o.l.items[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if v.m.Len() != o.m.Len() {
			return false
		}
		for _, k := range v.m.keys {
			ov, ok := o.m.Get(k)
			if !ok || !v.m.values[k].Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		l := &List{items: make([]Value, len(v.l.items))}
		for i, item := range v.l.items {
			l.items[i] = item.Clone()
		}
		return Value{kind: KindList, l: l}
	case KindMap:
		m := &Map{
			keys:      append([]string(nil), v.m.keys...),
			values:    make(map[string]Value, len(v.m.values)),
			unordered: v.m.unordered,
		}
		for k, item := range v.m.values {
			m.values[k] = item.Clone()
		}
		return Value{kind: KindMap, m: m}
	}
	return v
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// List is an ordered, growable sequence of Values.
type List struct {
	items []Value
}

// NewList returns a list holding items.
func NewList(items ...Value) *List {
	return &List{items: append([]Value(nil), items...)}
}

// Len returns the number of elements.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.items)
}

// At returns the element at i, or null when i is out of range.
func (l *List) At(i int) Value {
	if l == nil || i < 0 || i >= len(l.items) {
		return Value{}
	}
	return l.items[i]
}

// Set replaces the element at i, padding with nulls when i is past the end.
func (l *List) Set(i int, v Value) {
	if i < 0 {
		return
	}
	l.Grow(i + 1)
	l.items[i] = v
}

// Grow pads the list with nulls until it holds at least n elements.
func (l *List) Grow(n int) {
	for len(l.items) < n {
		l.items = append(l.items, Value{})
	}
}

// Append adds items to the end of the list.
func (l *List) Append(items ...Value) {
	l.items = append(l.items, items...)
}

// Items returns a copy of the elements.
func (l *List) Items() []Value {
	if l == nil {
		return nil
	}
	return append([]Value(nil), l.items...)
}

// Map is a string-keyed map that remembers insertion order.
//
// Maps built from Go map values carry no meaningful order; they iterate in
// sorted key order and report Ordered() == false.
type Map struct {
	keys      []string
	values    map[string]Value
	unordered bool
}

// NewMap returns an empty ordered map.
func NewMap() *Map {
	return &Map{values: make(map[string]Value)}
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Set stores v under key. New keys are appended to the key order.
func (m *Map) Set(key string, v Value) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
		if m.unordered {
			sort.Strings(m.keys)
		}
	}
	m.values[key] = v
}

// Delete removes key.
func (m *Map) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in iteration order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Ordered reports whether the key order is meaningful, i.e. the map was
// decoded from an order-preserving document or built by Set calls.
func (m *Map) Ordered() bool {
	return m != nil && !m.unordered
}
