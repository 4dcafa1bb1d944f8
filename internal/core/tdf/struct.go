package tdf

// Field is a single tagged entry of a Struct.
type Field struct {
	Tag   Tag
	Value Value
}

// Struct is an ordered set of uniquely tagged fields. Lookups are by tag but the
// insertion order is kept so that re-encoding a decoded struct is byte stable.
type Struct struct {
	fields []Field
}

// NewStruct returns an empty Struct.
func NewStruct() *Struct {
	return &Struct{}
}

// Set assigns v to the field labelled by label. An existing field with the same
// tag is replaced in place.
func (s *Struct) Set(label string, v Value) *Struct {
	return s.SetTag(MakeTag(label), v)
}

// SetTag is Set for an already packed tag.
func (s *Struct) SetTag(tag Tag, v Value) *Struct {
	if v == nil {
		panic("tdf: nil value for tag " + tag.String())
	}
	if i, ok := s.index(tag); ok {
		s.fields[i].Value = v
		return s
	}
	s.fields = append(s.fields, Field{Tag: tag, Value: v})
	return s
}

func (s *Struct) SetUint(label string, v uint64) *Struct   { return s.Set(label, Uint(v)) }
func (s *Struct) SetInt(label string, v int64) *Struct     { return s.Set(label, Int(v)) }
func (s *Struct) SetBool(label string, v bool) *Struct     { return s.Set(label, Bool(v)) }
func (s *Struct) SetString(label, v string) *Struct        { return s.Set(label, String(v)) }
func (s *Struct) SetBlob(label string, v []byte) *Struct   { return s.Set(label, Blob(v)) }
func (s *Struct) SetFloat(label string, v float32) *Struct { return s.Set(label, Float(v)) }
func (s *Struct) SetObjectID(label string, v ObjectID) *Struct {
	return s.Set(label, v)
}

// Remove deletes the field labelled by label, if present.
func (s *Struct) Remove(label string) {
	if i, ok := s.index(MakeTag(label)); ok {
		s.fields = append(s.fields[:i], s.fields[i+1:]...)
	}
}

// Len returns the number of fields.
func (s *Struct) Len() int { return len(s.fields) }

// Fields returns a copy of the fields in order.
func (s *Struct) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Has reports whether a field labelled by label is present.
func (s *Struct) Has(label string) bool {
	_, ok := s.index(MakeTag(label))
	return ok
}

// Get returns the value labelled by label.
func (s *Struct) Get(label string) (Value, bool) {
	return s.GetTag(MakeTag(label))
}

// GetTag returns the value stored under tag.
func (s *Struct) GetTag(tag Tag) (Value, bool) {
	if s == nil {
		return nil, false
	}
	if i, ok := s.index(tag); ok {
		return s.fields[i].Value, true
	}
	return nil, false
}

func (s *Struct) index(tag Tag) (int, bool) {
	for i, f := range s.fields {
		if f.Tag == tag {
			return i, true
		}
	}
	return 0, false
}

// Integer returns the Integer labelled by label.
func (s *Struct) Integer(label string) (Integer, bool) {
	v, ok := s.Get(label)
	if !ok {
		return Integer{}, false
	}
	i, ok := v.(Integer)
	return i, ok
}

// Uint returns the unsigned integer labelled by label. ok is false if the field
// is missing, not an integer, or negative.
func (s *Struct) Uint(label string) (uint64, bool) {
	i, ok := s.Integer(label)
	if !ok {
		return 0, false
	}
	return i.Uint64()
}

// Int returns the signed integer labelled by label.
func (s *Struct) Int(label string) (int64, bool) {
	i, ok := s.Integer(label)
	if !ok {
		return 0, false
	}
	return i.Int64()
}

// UintOr returns the unsigned integer labelled by label or def.
func (s *Struct) UintOr(label string, def uint64) uint64 {
	if v, ok := s.Uint(label); ok {
		return v
	}
	return def
}

// Bool returns whether the integer labelled by label is non-zero.
func (s *Struct) Bool(label string) bool {
	i, ok := s.Integer(label)
	return ok && i.Mag != 0
}

// Str returns the string labelled by label.
func (s *Struct) Str(label string) (string, bool) {
	v, ok := s.Get(label)
	if !ok {
		return "", false
	}
	str, ok := v.(String)
	return string(str), ok
}

// StrOr returns the string labelled by label or def.
func (s *Struct) StrOr(label, def string) string {
	if v, ok := s.Str(label); ok {
		return v
	}
	return def
}

// Bytes returns the blob labelled by label.
func (s *Struct) Bytes(label string) ([]byte, bool) {
	v, ok := s.Get(label)
	if !ok {
		return nil, false
	}
	b, ok := v.(Blob)
	return []byte(b), ok
}

// Float returns the float labelled by label.
func (s *Struct) Float(label string) (float32, bool) {
	v, ok := s.Get(label)
	if !ok {
		return 0, false
	}
	f, ok := v.(Float)
	return float32(f), ok
}

// ObjectID returns the object id labelled by label.
func (s *Struct) ObjectID(label string) (ObjectID, bool) {
	v, ok := s.Get(label)
	if !ok {
		return ObjectID{}, false
	}
	o, ok := v.(ObjectID)
	return o, ok
}

// Struct returns the nested struct labelled by label.
func (s *Struct) Struct(label string) (*Struct, bool) {
	v, ok := s.Get(label)
	if !ok {
		return nil, false
	}
	st, ok := v.(*Struct)
	return st, ok
}

// List returns the list labelled by label.
func (s *Struct) List(label string) (*List, bool) {
	v, ok := s.Get(label)
	if !ok {
		return nil, false
	}
	l, ok := v.(*List)
	return l, ok
}

// Map returns the map labelled by label.
func (s *Struct) Map(label string) (*Map, bool) {
	v, ok := s.Get(label)
	if !ok {
		return nil, false
	}
	m, ok := v.(*Map)
	return m, ok
}

// Union returns the union labelled by label.
func (s *Struct) Union(label string) (*Union, bool) {
	v, ok := s.Get(label)
	if !ok {
		return nil, false
	}
	u, ok := v.(*Union)
	return u, ok
}

// IntList returns the integer list labelled by label.
func (s *Struct) IntList(label string) (IntList, bool) {
	v, ok := s.Get(label)
	if !ok {
		return nil, false
	}
	l, ok := v.(IntList)
	return l, ok
}
