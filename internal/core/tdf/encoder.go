package tdf

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encoder serializes tagged value trees. A zero Encoder uses DefaultLimits.
type Encoder struct {
	buf    []byte
	depth  int
	limits Limits
}

// NewEncoder returns an Encoder enforcing limits.
func NewEncoder(limits Limits) *Encoder {
	return &Encoder{limits: limits.withDefaults()}
}

// Encode serializes s as a packet body using DefaultLimits.
func Encode(s *Struct) ([]byte, error) {
	return NewEncoder(DefaultLimits).Encode(s)
}

// Encode serializes s as a root struct (fields with no terminator). Trees
// built through the builder API only fail when they nest deeper than the
// configured maximum.
func (e *Encoder) Encode(s *Struct) ([]byte, error) {
	e.limits = e.limits.withDefaults()
	e.buf = e.buf[:0]
	e.depth = 0

	if err := e.enter(); err != nil {
		return nil, err
	}
	if s != nil {
		for _, f := range s.fields {
			if err := e.writeField(f.Tag, f.Value); err != nil {
				return nil, err
			}
		}
	}
	e.leave()

	out := make([]byte, len(e.buf))
	copy(out, e.buf)
	return out, nil
}

func (e *Encoder) enter() error {
	e.depth++
	if e.depth > e.limits.MaxDepth {
		return fmt.Errorf("%w: nesting exceeds maximum depth %d", ErrMalformedInput, e.limits.MaxDepth)
	}
	return nil
}

func (e *Encoder) leave() { e.depth-- }

func (e *Encoder) writeField(tag Tag, v Value) error {
	h := tag.bytes()
	e.buf = append(e.buf, h[0], h[1], h[2], byte(v.Type()))
	return e.writeValue(v)
}

func (e *Encoder) writeUint(v uint64) {
	e.buf = appendVarint(e.buf, Uint(v))
}

func (e *Encoder) writeValue(v Value) error {
	switch val := v.(type) {
	case Integer:
		e.buf = appendVarint(e.buf, val)
	case String:
		e.writeUint(uint64(len(val) + 1))
		e.buf = append(e.buf, val...)
		e.buf = append(e.buf, 0)
	case Blob:
		e.writeUint(uint64(len(val)))
		e.buf = append(e.buf, val...)
	case Float:
		e.buf = binary.BigEndian.AppendUint32(e.buf, math.Float32bits(float32(val)))
	case ObjectType:
		e.writeUint(uint64(val.Component))
		e.writeUint(uint64(val.EntityType))
	case ObjectID:
		e.writeUint(uint64(val.Component))
		e.writeUint(uint64(val.EntityType))
		e.writeUint(val.ID)
	case IntList:
		e.writeUint(uint64(len(val)))
		for _, i := range val {
			e.buf = appendVarint(e.buf, Int(i))
		}
	case *Struct:
		if err := e.enter(); err != nil {
			return err
		}
		for _, f := range val.fields {
			if err := e.writeField(f.Tag, f.Value); err != nil {
				return err
			}
		}
		e.buf = append(e.buf, 0)
		e.leave()
	case *List:
		if err := e.enter(); err != nil {
			return err
		}
		e.buf = append(e.buf, byte(val.elem))
		e.writeUint(uint64(len(val.items)))
		for _, item := range val.items {
			if err := e.writeValue(item); err != nil {
				return err
			}
		}
		e.leave()
	case *Map:
		if err := e.enter(); err != nil {
			return err
		}
		e.buf = append(e.buf, byte(val.key), byte(val.val))
		e.writeUint(uint64(len(val.keys)))
		for i := range val.keys {
			if err := e.writeValue(val.keys[i]); err != nil {
				return err
			}
			if err := e.writeValue(val.vals[i]); err != nil {
				return err
			}
		}
		e.leave()
	case *Union:
		if err := e.enter(); err != nil {
			return err
		}
		e.buf = append(e.buf, val.Active)
		if val.IsSet() {
			if err := e.writeField(val.Tag, val.Value); err != nil {
				return err
			}
		}
		e.leave()
	default:
		return fmt.Errorf("%w: unsupported value %T", ErrMalformedInput, v)
	}
	return nil
}
