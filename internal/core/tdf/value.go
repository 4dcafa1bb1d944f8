package tdf

import (
	"fmt"
	"math"
)

// Type is the wire code identifying how a value is encoded.
type Type uint8

const (
	TypeInteger    Type = 0x00
	TypeString     Type = 0x01
	TypeBlob       Type = 0x02
	TypeStruct     Type = 0x03
	TypeList       Type = 0x04
	TypeMap        Type = 0x05
	TypeUnion      Type = 0x06
	TypeIntList    Type = 0x07
	TypeObjectType Type = 0x08
	TypeObjectID   Type = 0x09
	TypeFloat      Type = 0x0A
)

var typeNames = map[Type]string{
	TypeInteger:    "integer",
	TypeString:     "string",
	TypeBlob:       "blob",
	TypeStruct:     "struct",
	TypeList:       "list",
	TypeMap:        "map",
	TypeUnion:      "union",
	TypeIntList:    "intlist",
	TypeObjectType: "objecttype",
	TypeObjectID:   "objectid",
	TypeFloat:      "float",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(0x%02X)", uint8(t))
}

// Valid reports whether t is a known wire type.
func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

func typeByName(name string) (Type, bool) {
	for t, n := range typeNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}

// Value is one node in a tagged value tree. The set of implementations is closed
// to the types declared in this package.
type Value interface {
	Type() Type
	isValue()
}

// Integer holds any signed or unsigned integer up to 64 bits wide as a sign and
// magnitude so that both int64 and uint64 ranges round-trip exactly. Zero is
// never negative.
type Integer struct {
	Neg bool
	Mag uint64
}

// Uint returns an Integer holding v.
func Uint(v uint64) Integer { return Integer{Mag: v} }

// Int returns an Integer holding v.
func Int(v int64) Integer {
	if v < 0 {
		return Integer{Neg: true, Mag: uint64(-(v + 1)) + 1}
	}
	return Integer{Mag: uint64(v)}
}

// Bool returns 1 for true and 0 for false, the wire convention for flags.
func Bool(v bool) Integer {
	if v {
		return Integer{Mag: 1}
	}
	return Integer{}
}

// Uint64 returns the value as a uint64 and whether it fits.
func (i Integer) Uint64() (uint64, bool) {
	if i.Neg {
		return 0, false
	}
	return i.Mag, true
}

// Int64 returns the value as an int64 and whether it fits.
func (i Integer) Int64() (int64, bool) {
	if i.Neg {
		if i.Mag > 1<<63 {
			return 0, false
		}
		if i.Mag == 1<<63 {
			return math.MinInt64, true
		}
		return -int64(i.Mag), true
	}
	if i.Mag > math.MaxInt64 {
		return 0, false
	}
	return int64(i.Mag), true
}

func (i Integer) String() string {
	if i.Neg {
		return fmt.Sprintf("-%d", i.Mag)
	}
	return fmt.Sprintf("%d", i.Mag)
}

func (i Integer) normalize() Integer {
	if i.Mag == 0 {
		i.Neg = false
	}
	return i
}

// String is a text value. Embedded zero bytes are preserved.
type String string

// Blob is an opaque byte sequence.
type Blob []byte

// Float is a single precision floating point value.
type Float float32

// ObjectType identifies a kind of entity owned by a component.
type ObjectType struct {
	Component  uint16
	EntityType uint16
}

// ObjectID identifies a single entity as a (component, type, id) triple.
type ObjectID struct {
	Component  uint16
	EntityType uint16
	ID         uint64
}

// IntList is a compact list of signed integers.
type IntList []int64

func (Integer) Type() Type    { return TypeInteger }
func (String) Type() Type     { return TypeString }
func (Blob) Type() Type       { return TypeBlob }
func (Float) Type() Type      { return TypeFloat }
func (ObjectType) Type() Type { return TypeObjectType }
func (ObjectID) Type() Type   { return TypeObjectID }
func (IntList) Type() Type    { return TypeIntList }
func (*Struct) Type() Type    { return TypeStruct }
func (*List) Type() Type      { return TypeList }
func (*Map) Type() Type       { return TypeMap }
func (*Union) Type() Type     { return TypeUnion }

func (Integer) isValue()    {}
func (String) isValue()     {}
func (Blob) isValue()       {}
func (Float) isValue()      {}
func (ObjectType) isValue() {}
func (ObjectID) isValue()   {}
func (IntList) isValue()    {}
func (*Struct) isValue()    {}
func (*List) isValue()      {}
func (*Map) isValue()       {}
func (*Union) isValue()     {}
