package tdf

import "fmt"

// List is an ordered, homogeneous sequence of values.
type List struct {
	elem  Type
	items []Value
}

// NewList returns an empty list holding values of type elem.
func NewList(elem Type) *List {
	if !elem.Valid() {
		panic(fmt.Sprintf("tdf: invalid list element type %v", elem))
	}
	return &List{elem: elem}
}

// Append adds values to the list. It panics if a value's type does not match
// the element type.
func (l *List) Append(values ...Value) *List {
	for _, v := range values {
		if v == nil || v.Type() != l.elem {
			panic(fmt.Sprintf("tdf: cannot append %T to list of %v", v, l.elem))
		}
		l.items = append(l.items, v)
	}
	return l
}

// Elem returns the element type.
func (l *List) Elem() Type { return l.elem }

// Len returns the number of elements.
func (l *List) Len() int { return len(l.items) }

// Items returns a copy of the elements.
func (l *List) Items() []Value {
	out := make([]Value, len(l.items))
	copy(out, l.items)
	return out
}

// Structs returns the struct elements of a list of structs.
func (l *List) Structs() []*Struct {
	if l.elem != TypeStruct {
		return nil
	}
	out := make([]*Struct, 0, len(l.items))
	for _, v := range l.items {
		out = append(out, v.(*Struct))
	}
	return out
}

// Uints returns the non-negative integer elements of a list of integers.
func (l *List) Uints() []uint64 {
	if l.elem != TypeInteger {
		return nil
	}
	out := make([]uint64, 0, len(l.items))
	for _, v := range l.items {
		if u, ok := v.(Integer).Uint64(); ok {
			out = append(out, u)
		}
	}
	return out
}

// Strings returns the elements of a list of strings.
func (l *List) Strings() []string {
	if l.elem != TypeString {
		return nil
	}
	out := make([]string, 0, len(l.items))
	for _, v := range l.items {
		out = append(out, string(v.(String)))
	}
	return out
}

// UintList builds a list of integers.
func UintList(values ...uint64) *List {
	l := NewList(TypeInteger)
	for _, v := range values {
		l.Append(Uint(v))
	}
	return l
}

// StringList builds a list of strings.
func StringList(values ...string) *List {
	l := NewList(TypeString)
	for _, v := range values {
		l.Append(String(v))
	}
	return l
}

// Map is an ordered association of unique keys to values, each side
// homogeneous.
type Map struct {
	key, val Type
	keys     []Value
	vals     []Value
}

// NewMap returns an empty map from key to val types.
func NewMap(key, val Type) *Map {
	if !key.Valid() || !val.Valid() {
		panic(fmt.Sprintf("tdf: invalid map types %v -> %v", key, val))
	}
	return &Map{key: key, val: val}
}

// Put associates k with v, replacing the value of an equal existing key in
// place. It panics on a type mismatch.
func (m *Map) Put(k, v Value) *Map {
	if k == nil || k.Type() != m.key {
		panic(fmt.Sprintf("tdf: cannot use %T as key of map of %v", k, m.key))
	}
	if v == nil || v.Type() != m.val {
		panic(fmt.Sprintf("tdf: cannot use %T as value of map of %v", v, m.val))
	}
	if i, ok := m.index(k); ok {
		m.vals[i] = v
		return m
	}
	m.keys = append(m.keys, k)
	m.vals = append(m.vals, v)
	return m
}

// Get returns the value associated with k.
func (m *Map) Get(k Value) (Value, bool) {
	if i, ok := m.index(k); ok {
		return m.vals[i], true
	}
	return nil, false
}

func (m *Map) index(k Value) (int, bool) {
	for i, existing := range m.keys {
		if Equal(existing, k) {
			return i, true
		}
	}
	return 0, false
}

func (m *Map) KeyType() Type   { return m.key }
func (m *Map) ValueType() Type { return m.val }
func (m *Map) Len() int        { return len(m.keys) }

// Entry returns the i-th key/value pair in insertion order.
func (m *Map) Entry(i int) (Value, Value) { return m.keys[i], m.vals[i] }

// StringMap builds a map of string to string, with keys in sorted order.
func StringMap(values map[string]string) *Map {
	m := NewMap(TypeString, TypeString)
	for _, k := range sortedKeys(values) {
		m.Put(String(k), String(values[k]))
	}
	return m
}

// ToStringMap converts a string to string map into a Go map. Entries of other
// types are skipped.
func (m *Map) ToStringMap() map[string]string {
	out := make(map[string]string, len(m.keys))
	for i, k := range m.keys {
		ks, ok1 := k.(String)
		vs, ok2 := m.vals[i].(String)
		if ok1 && ok2 {
			out[string(ks)] = string(vs)
		}
	}
	return out
}

// UnsetMember is the active member marker of a union with no value.
const UnsetMember uint8 = 0x7F

// Union holds at most one tagged value selected by its active member index.
type Union struct {
	Active uint8
	Tag    Tag
	Value  Value
}

// NewUnion returns a union with member active set to a tagged value.
func NewUnion(active uint8, label string, v Value) *Union {
	if active == UnsetMember {
		panic("tdf: active member 0x7F is reserved for unset unions")
	}
	return &Union{Active: active, Tag: MakeTag(label), Value: v}
}

// UnsetUnion returns a union with no active member.
func UnsetUnion() *Union {
	return &Union{Active: UnsetMember}
}

// IsSet reports whether the union holds a value.
func (u *Union) IsSet() bool { return u.Active != UnsetMember }
