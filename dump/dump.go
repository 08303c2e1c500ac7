// Package dump defines the structured value used for model and group state
// dumps.
//
// A dump is a tree over exactly four kinds: 64-bit signed integers, 64-bit
// floats, ordered lists, and string-keyed maps. Keeping the kinds explicit
// (rather than round-tripping through any/interface{}) means a dump that
// loads is structurally valid by construction, and two dumps compare equal
// iff they hold the same tagged values.
package dump

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	// KindInvalid is the zero Value; it is not a legal dump.
	KindInvalid Kind = iota
	// KindInt is a 64-bit signed integer.
	KindInt
	// KindFloat is a 64-bit float.
	KindFloat
	// KindList is an ordered sequence of Values.
	KindList
	// KindMap is a string-keyed mapping of Values.
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(k))
	}
}

// Value is a tagged dump node. The zero Value is invalid; build Values with
// Int, Float, List, and Map.
type Value struct {
	kind Kind
	i    int64
	f    float64
	list []Value
	m    map[string]Value
}

// Int returns an integer Value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float returns a float Value.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// List returns a list Value holding the given items.
func List(items ...Value) Value {
	return Value{kind: KindList, list: items}
}

// Map returns a map Value holding the given entries. The input map is not
// retained.
func Map(entries map[string]Value) Value {
	m := make(map[string]Value, len(entries))
	for k, v := range entries {
		m[k] = v
	}
	return Value{kind: KindMap, m: m}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds one of the four dump kinds.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// AsInt returns the integer held by v.
func (v Value) AsInt() (int64, error) {
	if v.kind != KindInt {
		return 0, fmt.Errorf("dump: expected int, got %s", v.kind)
	}
	return v.i, nil
}

// AsFloat returns the float held by v. An integer Value is widened, since
// several model families accept integer-typed hyperparameters in dumps.
func (v Value) AsFloat() (float64, error) {
	switch v.kind {
	case KindFloat:
		return v.f, nil
	case KindInt:
		return float64(v.i), nil
	default:
		return 0, fmt.Errorf("dump: expected float, got %s", v.kind)
	}
}

// AsList returns the items held by v. The returned slice is shared with v
// and must not be mutated.
func (v Value) AsList() ([]Value, error) {
	if v.kind != KindList {
		return nil, fmt.Errorf("dump: expected list, got %s", v.kind)
	}
	return v.list, nil
}

// Len returns the number of items or entries in a list or map Value, and 0
// for scalars.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.list)
	case KindMap:
		return len(v.m)
	default:
		return 0
	}
}

// Field returns the named entry of a map Value.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	item, ok := v.m[name]
	return item, ok
}

// MustField returns the named entry of a map Value or an error naming the
// missing field.
func (v Value) MustField(name string) (Value, error) {
	item, ok := v.Field(name)
	if !ok {
		return Value{}, fmt.Errorf("dump: missing field %q", name)
	}
	return item, nil
}

// Keys returns the map keys in sorted order. Deterministic iteration keeps
// encodings and debug output stable.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports whether two dumps are structurally identical. Floats compare
// by exact value, not tolerance: dumps are sufficient statistics and must
// round-trip bit-for-bit.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.i == other.i
	case KindFloat:
		return v.f == other.f
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(other.m) {
			return false
		}
		for k, item := range v.m {
			o, ok := other.m[k]
			if !ok || !item.Equal(o) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		items := make([]Value, len(v.list))
		for i, item := range v.list {
			items[i] = item.Clone()
		}
		return Value{kind: KindList, list: items}
	case KindMap:
		m := make(map[string]Value, len(v.m))
		for k, item := range v.m {
			m[k] = item.Clone()
		}
		return Value{kind: KindMap, m: m}
	default:
		return v
	}
}

// String renders v for debugging. Map keys appear in sorted order.
func (v Value) String() string {
	var sb strings.Builder
	v.write(&sb)
	return sb.String()
}

func (v Value) write(sb *strings.Builder) {
	switch v.kind {
	case KindInt:
		sb.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		sb.WriteString(strconv.FormatFloat(v.f, 'g', -1, 64))
	case KindList:
		sb.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				sb.WriteString(", ")
			}
			item.write(sb)
		}
		sb.WriteByte(']')
	case KindMap:
		sb.WriteByte('{')
		for i, k := range v.Keys() {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(strconv.Quote(k))
			sb.WriteString(": ")
			item := v.m[k]
			item.write(sb)
		}
		sb.WriteByte('}')
	default:
		sb.WriteString("<invalid>")
	}
}

// IntList is a convenience constructor for a list of integers.
func IntList(values ...int64) Value {
	items := make([]Value, len(values))
	for i, v := range values {
		items[i] = Int(v)
	}
	return Value{kind: KindList, list: items}
}

// FloatList is a convenience constructor for a list of floats.
func FloatList(values ...float64) Value {
	items := make([]Value, len(values))
	for i, v := range values {
		items[i] = Float(v)
	}
	return Value{kind: KindList, list: items}
}

// AsIntSlice converts a list Value of integers into a slice.
func (v Value) AsIntSlice() ([]int64, error) {
	items, err := v.AsList()
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(items))
	for i, item := range items {
		n, err := item.AsInt()
		if err != nil {
			return nil, fmt.Errorf("dump: item %d: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}

// AsFloatSlice converts a list Value of numbers into a float slice.
func (v Value) AsFloatSlice() ([]float64, error) {
	items, err := v.AsList()
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(items))
	for i, item := range items {
		f, err := item.AsFloat()
		if err != nil {
			return nil, fmt.Errorf("dump: item %d: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}
