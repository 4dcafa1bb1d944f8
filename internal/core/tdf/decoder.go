package tdf

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Decoder reads a tagged value tree out of a byte slice. A Decoder is not safe
// for concurrent use.
type Decoder struct {
	buf    []byte
	pos    int
	depth  int
	limits Limits
}

// NewDecoder returns a Decoder over b. Zero fields of limits fall back to
// DefaultLimits.
func NewDecoder(b []byte, limits Limits) *Decoder {
	return &Decoder{buf: b, limits: limits.withDefaults()}
}

// Decode reads a packet body from b using DefaultLimits.
func Decode(b []byte) (*Struct, int, error) {
	return NewDecoder(b, DefaultLimits).Decode()
}

// Decode reads fields until the end of the buffer into a root struct and
// returns it along with the number of bytes consumed.
func (d *Decoder) Decode() (*Struct, int, error) {
	if err := d.enter(); err != nil {
		return nil, d.pos, err
	}
	root := NewStruct()
	seen := make(map[Tag]struct{})
	for d.pos < len(d.buf) {
		if err := d.readField(root, seen); err != nil {
			return nil, d.pos, err
		}
	}
	d.leave()
	return root, d.pos, nil
}

func (d *Decoder) enter() error {
	d.depth++
	if d.depth > d.limits.MaxDepth {
		return fmt.Errorf("%w: nesting exceeds maximum depth %d", ErrMalformedInput, d.limits.MaxDepth)
	}
	return nil
}

func (d *Decoder) leave() { d.depth-- }

func (d *Decoder) remaining() int { return len(d.buf) - d.pos }

func (d *Decoder) take(n int) ([]byte, error) {
	if n < 0 || n > d.remaining() {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrMalformedInput, n, d.pos, d.remaining())
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *Decoder) readByte() (byte, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) readType() (Type, error) {
	b, err := d.readByte()
	if err != nil {
		return 0, err
	}
	t := Type(b)
	if !t.Valid() {
		return 0, fmt.Errorf("%w: unknown type code 0x%02X at offset %d", ErrMalformedInput, b, d.pos-1)
	}
	return t, nil
}

// readField appends the next field to into. seen holds the tags already in
// into.
func (d *Decoder) readField(into *Struct, seen map[Tag]struct{}) error {
	header, err := d.take(3)
	if err != nil {
		return err
	}
	tag := tagFromBytes(header)
	typ, err := d.readType()
	if err != nil {
		return err
	}
	if _, exists := seen[tag]; exists {
		return fmt.Errorf("%w: duplicate tag %s", ErrMalformedInput, tag)
	}
	seen[tag] = struct{}{}
	v, err := d.readValue(typ)
	if err != nil {
		return fmt.Errorf("%s: %w", tag, err)
	}
	into.fields = append(into.fields, Field{Tag: tag, Value: v})
	return nil
}

func (d *Decoder) readInteger() (Integer, error) {
	i, n, err := readVarint(d.buf[d.pos:])
	if err != nil {
		return Integer{}, err
	}
	d.pos += n
	return i, nil
}

// readLength reads a non-negative count bounded by max.
func (d *Decoder) readLength(max int, what string) (int, error) {
	i, err := d.readInteger()
	if err != nil {
		return 0, err
	}
	if i.Neg || i.Mag > uint64(max) {
		return 0, fmt.Errorf("%w: %s length %s exceeds limit %d", ErrMalformedInput, what, i, max)
	}
	return int(i.Mag), nil
}

func (d *Decoder) readUint16() (uint16, error) {
	i, err := d.readInteger()
	if err != nil {
		return 0, err
	}
	if i.Neg || i.Mag > math.MaxUint16 {
		return 0, fmt.Errorf("%w: object component %s out of range", ErrMalformedInput, i)
	}
	return uint16(i.Mag), nil
}

func (d *Decoder) readValue(t Type) (Value, error) {
	switch t {
	case TypeInteger:
		return d.readInteger()
	case TypeString:
		n, err := d.readLength(d.limits.MaxAllocation, "string")
		if err != nil {
			return nil, err
		}
		b, err := d.take(n)
		if err != nil {
			return nil, err
		}
		if n > 0 && b[n-1] == 0 {
			b = b[:n-1]
		}
		return String(b), nil
	case TypeBlob:
		n, err := d.readLength(d.limits.MaxAllocation, "blob")
		if err != nil {
			return nil, err
		}
		b, err := d.take(n)
		if err != nil {
			return nil, err
		}
		return Blob(append([]byte{}, b...)), nil
	case TypeFloat:
		b, err := d.take(4)
		if err != nil {
			return nil, err
		}
		return Float(math.Float32frombits(binary.BigEndian.Uint32(b))), nil
	case TypeObjectType:
		c, err := d.readUint16()
		if err != nil {
			return nil, err
		}
		ty, err := d.readUint16()
		if err != nil {
			return nil, err
		}
		return ObjectType{Component: c, EntityType: ty}, nil
	case TypeObjectID:
		c, err := d.readUint16()
		if err != nil {
			return nil, err
		}
		ty, err := d.readUint16()
		if err != nil {
			return nil, err
		}
		id, err := d.readInteger()
		if err != nil {
			return nil, err
		}
		if id.Neg {
			return nil, fmt.Errorf("%w: negative object id", ErrMalformedInput)
		}
		return ObjectID{Component: c, EntityType: ty, ID: id.Mag}, nil
	case TypeIntList:
		n, err := d.readLength(d.limits.MaxCollection, "int list")
		if err != nil {
			return nil, err
		}
		// Every element takes at least one byte.
		if n > d.remaining() {
			return nil, fmt.Errorf("%w: int list of %d exceeds remaining buffer", ErrMalformedInput, n)
		}
		out := make(IntList, 0, n)
		for k := 0; k < n; k++ {
			i, err := d.readInteger()
			if err != nil {
				return nil, err
			}
			v, ok := i.Int64()
			if !ok {
				return nil, fmt.Errorf("%w: int list element %s out of range", ErrMalformedInput, i)
			}
			out = append(out, v)
		}
		return out, nil
	case TypeStruct:
		return d.readStruct()
	case TypeList:
		return d.readList()
	case TypeMap:
		return d.readMap()
	case TypeUnion:
		return d.readUnion()
	}
	return nil, fmt.Errorf("%w: unknown type %v", ErrMalformedInput, t)
}

func (d *Decoder) readStruct() (*Struct, error) {
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer d.leave()

	s := NewStruct()
	seen := make(map[Tag]struct{})
	for {
		if d.remaining() == 0 {
			return nil, fmt.Errorf("%w: unterminated struct", ErrMalformedInput)
		}
		if d.buf[d.pos] == 0 {
			d.pos++
			return s, nil
		}
		if err := d.readField(s, seen); err != nil {
			return nil, err
		}
	}
}

func (d *Decoder) readList() (*List, error) {
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer d.leave()

	elem, err := d.readType()
	if err != nil {
		return nil, err
	}
	n, err := d.readLength(d.limits.MaxCollection, "list")
	if err != nil {
		return nil, err
	}
	if n > d.remaining() {
		return nil, fmt.Errorf("%w: list of %d exceeds remaining buffer", ErrMalformedInput, n)
	}
	l := &List{elem: elem, items: make([]Value, 0, n)}
	for k := 0; k < n; k++ {
		v, err := d.readValue(elem)
		if err != nil {
			return nil, err
		}
		l.items = append(l.items, v)
	}
	return l, nil
}

func (d *Decoder) readMap() (*Map, error) {
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer d.leave()

	kt, err := d.readType()
	if err != nil {
		return nil, err
	}
	vt, err := d.readType()
	if err != nil {
		return nil, err
	}
	n, err := d.readLength(d.limits.MaxCollection, "map")
	if err != nil {
		return nil, err
	}
	if 2*n > d.remaining() {
		return nil, fmt.Errorf("%w: map of %d exceeds remaining buffer", ErrMalformedInput, n)
	}
	m := &Map{key: kt, val: vt, keys: make([]Value, 0, n), vals: make([]Value, 0, n)}
	seen := make(map[interface{}]struct{}, n)
	for k := 0; k < n; k++ {
		key, err := d.readValue(kt)
		if err != nil {
			return nil, err
		}
		val, err := d.readValue(vt)
		if err != nil {
			return nil, err
		}
		if sk, ok := scalarKey(key); ok {
			if _, dup := seen[sk]; dup {
				return nil, fmt.Errorf("%w: duplicate map key", ErrMalformedInput)
			}
			seen[sk] = struct{}{}
		} else if _, dup := m.index(key); dup {
			return nil, fmt.Errorf("%w: duplicate map key", ErrMalformedInput)
		}
		m.keys = append(m.keys, key)
		m.vals = append(m.vals, val)
	}
	return m, nil
}

func (d *Decoder) readUnion() (*Union, error) {
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer d.leave()

	active, err := d.readByte()
	if err != nil {
		return nil, err
	}
	if active == UnsetMember {
		return UnsetUnion(), nil
	}
	holder := NewStruct()
	if err := d.readField(holder, make(map[Tag]struct{}, 1)); err != nil {
		return nil, err
	}
	f := holder.fields[0]
	return &Union{Active: active, Tag: f.Tag, Value: f.Value}, nil
}
