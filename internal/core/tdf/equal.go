package tdf

import (
	"bytes"
	"math"
	"sort"
)

// Equal reports whether a and b hold the same logical value. Integers compare
// numerically and floats compare by bit pattern so NaN payloads are equal to
// themselves.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Type() != b.Type() {
		return false
	}

	switch av := a.(type) {
	case Integer:
		return av.normalize() == b.(Integer).normalize()
	case String:
		return av == b.(String)
	case Blob:
		return bytes.Equal(av, b.(Blob))
	case Float:
		return math.Float32bits(float32(av)) == math.Float32bits(float32(b.(Float)))
	case ObjectType:
		return av == b.(ObjectType)
	case ObjectID:
		return av == b.(ObjectID)
	case IntList:
		bv := b.(IntList)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	case *Struct:
		return structsEqual(av, b.(*Struct))
	case *List:
		bv := b.(*List)
		if av.elem != bv.elem || len(av.items) != len(bv.items) {
			return false
		}
		for i := range av.items {
			if !Equal(av.items[i], bv.items[i]) {
				return false
			}
		}
		return true
	case *Map:
		bv := b.(*Map)
		if av.key != bv.key || av.val != bv.val || len(av.keys) != len(bv.keys) {
			return false
		}
		for i := range av.keys {
			if !Equal(av.keys[i], bv.keys[i]) || !Equal(av.vals[i], bv.vals[i]) {
				return false
			}
		}
		return true
	case *Union:
		bv := b.(*Union)
		if av.Active != bv.Active {
			return false
		}
		if !av.IsSet() {
			return true
		}
		return av.Tag == bv.Tag && Equal(av.Value, bv.Value)
	}
	return false
}

func structsEqual(a, b *Struct) bool {
	if len(a.fields) != len(b.fields) {
		return false
	}
	for i := range a.fields {
		if a.fields[i].Tag != b.fields[i].Tag || !Equal(a.fields[i].Value, b.fields[i].Value) {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type (
	floatKey uint32
	blobKey  string
)

// scalarKey returns a comparable value that is equal for two scalars exactly
// when Equal reports them equal. Composite values have none.
func scalarKey(v Value) (interface{}, bool) {
	switch v := v.(type) {
	case Integer:
		return v.normalize(), true
	case String:
		return v, true
	case Blob:
		return blobKey(v), true
	case Float:
		return floatKey(math.Float32bits(float32(v))), true
	case ObjectType:
		return v, true
	case ObjectID:
		return v, true
	}
	return nil, false
}
