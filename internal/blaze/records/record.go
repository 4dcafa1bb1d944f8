// Package records holds typed views of the tagged structs exchanged with
// clients. Each record knows how to write itself into a struct and read
// itself back out, so handlers never touch raw tags.
package records

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dcrodman/blaze/internal/core/tdf"
)

// Record is implemented by every typed struct.
type Record interface {
	Write(s *tdf.Struct)
	Read(s *tdf.Struct) error
}

// ErrInvalidField is returned by Read when a field holds the wrong type of
// value. Missing fields are not an error and leave the zero value.
var ErrInvalidField = errors.New("invalid field")

// Marshal writes r into a new struct.
func Marshal(r Record) *tdf.Struct {
	s := tdf.NewStruct()
	r.Write(s)
	return s
}

// Unmarshal reads a struct into r.
func Unmarshal(s *tdf.Struct, r Record) error {
	if s == nil {
		return nil
	}
	return r.Read(s)
}

// fieldReader reads typed fields, keeping the first error.
type fieldReader struct {
	s   *tdf.Struct
	err error
}

func newReader(s *tdf.Struct) *fieldReader {
	return &fieldReader{s: s}
}

func (r *fieldReader) Err() error { return r.err }

func (r *fieldReader) fail(label string, format string, args ...interface{}) {
	if r.err == nil {
		r.err = fmt.Errorf("%w %s: %s", ErrInvalidField, label, fmt.Sprintf(format, args...))
	}
}

func (r *fieldReader) value(label string, want tdf.Type) (tdf.Value, bool) {
	v, ok := r.s.Get(label)
	if !ok {
		return nil, false
	}
	if v.Type() != want {
		r.fail(label, "want %v, got %v", want, v.Type())
		return nil, false
	}
	return v, true
}

func (r *fieldReader) uint(label string, max uint64) (uint64, bool) {
	v, ok := r.value(label, tdf.TypeInteger)
	if !ok {
		return 0, false
	}
	n, ok := v.(tdf.Integer).Uint64()
	if !ok || n > max {
		r.fail(label, "%v out of range", v)
		return 0, false
	}
	return n, true
}

func (r *fieldReader) Uint64(label string, dst *uint64) {
	if n, ok := r.uint(label, ^uint64(0)); ok {
		*dst = n
	}
}

func (r *fieldReader) Uint32(label string, dst *uint32) {
	if n, ok := r.uint(label, 1<<32-1); ok {
		*dst = uint32(n)
	}
}

func (r *fieldReader) Uint16(label string, dst *uint16) {
	if n, ok := r.uint(label, 1<<16-1); ok {
		*dst = uint16(n)
	}
}

func (r *fieldReader) Uint8(label string, dst *uint8) {
	if n, ok := r.uint(label, 1<<8-1); ok {
		*dst = uint8(n)
	}
}

func (r *fieldReader) Int64(label string, dst *int64) {
	v, ok := r.value(label, tdf.TypeInteger)
	if !ok {
		return
	}
	n, ok := v.(tdf.Integer).Int64()
	if !ok {
		r.fail(label, "%v out of range", v)
		return
	}
	*dst = n
}

func (r *fieldReader) Bool(label string, dst *bool) {
	if v, ok := r.value(label, tdf.TypeInteger); ok {
		*dst = v.(tdf.Integer).Mag != 0
	}
}

func (r *fieldReader) String(label string, dst *string) {
	if v, ok := r.value(label, tdf.TypeString); ok {
		*dst = string(v.(tdf.String))
	}
}

func (r *fieldReader) Bytes(label string, dst *[]byte) {
	if v, ok := r.value(label, tdf.TypeBlob); ok {
		*dst = append([]byte(nil), v.(tdf.Blob)...)
	}
}

func (r *fieldReader) ObjectID(label string, dst *tdf.ObjectID) {
	if v, ok := r.value(label, tdf.TypeObjectID); ok {
		*dst = v.(tdf.ObjectID)
	}
}

func (r *fieldReader) ObjectType(label string, dst *tdf.ObjectType) {
	if v, ok := r.value(label, tdf.TypeObjectType); ok {
		*dst = v.(tdf.ObjectType)
	}
}

// Opaque keeps a field of any type so it can be passed through unchanged.
func (r *fieldReader) Opaque(label string, dst *tdf.Value) {
	if v, ok := r.s.Get(label); ok {
		*dst = v
	}
}

// Struct reads a nested record, reporting whether the field was present.
func (r *fieldReader) Struct(label string, rec Record) bool {
	v, ok := r.value(label, tdf.TypeStruct)
	if !ok {
		return false
	}
	if err := rec.Read(v.(*tdf.Struct)); err != nil && r.err == nil {
		r.err = fmt.Errorf("%s: %w", label, err)
	}
	return true
}

func (r *fieldReader) list(label string, elem tdf.Type) (*tdf.List, bool) {
	v, ok := r.value(label, tdf.TypeList)
	if !ok {
		return nil, false
	}
	l := v.(*tdf.List)
	if l.Len() > 0 && l.Elem() != elem {
		r.fail(label, "want list of %v, got list of %v", elem, l.Elem())
		return nil, false
	}
	return l, true
}

func (r *fieldReader) Uint64List(label string, dst *[]uint64) {
	l, ok := r.list(label, tdf.TypeInteger)
	if !ok {
		return
	}
	out := make([]uint64, 0, l.Len())
	for _, v := range l.Items() {
		n, ok := v.(tdf.Integer).Uint64()
		if !ok {
			r.fail(label, "%v out of range", v)
			return
		}
		out = append(out, n)
	}
	*dst = out
}

func (r *fieldReader) Int64List(label string, dst *[]int64) {
	l, ok := r.list(label, tdf.TypeInteger)
	if !ok {
		return
	}
	out := make([]int64, 0, l.Len())
	for _, v := range l.Items() {
		n, ok := v.(tdf.Integer).Int64()
		if !ok {
			r.fail(label, "%v out of range", v)
			return
		}
		out = append(out, n)
	}
	*dst = out
}

func (r *fieldReader) StringList(label string, dst *[]string) {
	if l, ok := r.list(label, tdf.TypeString); ok {
		*dst = l.Strings()
	}
}

func (r *fieldReader) ObjectIDList(label string, dst *[]tdf.ObjectID) {
	l, ok := r.list(label, tdf.TypeObjectID)
	if !ok {
		return
	}
	out := make([]tdf.ObjectID, 0, l.Len())
	for _, v := range l.Items() {
		out = append(out, v.(tdf.ObjectID))
	}
	*dst = out
}

func (r *fieldReader) mapOf(label string, key, val tdf.Type) (*tdf.Map, bool) {
	// An empty JSON object is ingested as an empty struct.
	if st, ok := r.s.Struct(label); ok && st.Len() == 0 {
		return tdf.NewMap(key, val), true
	}
	v, ok := r.value(label, tdf.TypeMap)
	if !ok {
		return nil, false
	}
	m := v.(*tdf.Map)
	if m.Len() > 0 && (m.KeyType() != key || m.ValueType() != val) {
		r.fail(label, "want map of %v to %v, got %v to %v", key, val, m.KeyType(), m.ValueType())
		return nil, false
	}
	return m, true
}

func (r *fieldReader) StringMap(label string, dst *map[string]string) {
	if m, ok := r.mapOf(label, tdf.TypeString, tdf.TypeString); ok {
		*dst = m.ToStringMap()
	}
}

func (r *fieldReader) Uint32Int64Map(label string, dst *map[uint32]int64) {
	m, ok := r.mapOf(label, tdf.TypeInteger, tdf.TypeInteger)
	if !ok {
		return
	}
	out := make(map[uint32]int64, m.Len())
	for i := 0; i < m.Len(); i++ {
		k, v := m.Entry(i)
		key, ok1 := k.(tdf.Integer).Uint64()
		val, ok2 := v.(tdf.Integer).Int64()
		if !ok1 || !ok2 || key > 1<<32-1 {
			r.fail(label, "entry %v=%v out of range", k, v)
			return
		}
		out[uint32(key)] = val
	}
	*dst = out
}

func (r *fieldReader) Uint32StringMap(label string, dst *map[uint32]string) {
	m, ok := r.mapOf(label, tdf.TypeInteger, tdf.TypeString)
	if !ok {
		return
	}
	out := make(map[uint32]string, m.Len())
	for i := 0; i < m.Len(); i++ {
		k, v := m.Entry(i)
		key, ok := k.(tdf.Integer).Uint64()
		if !ok || key > 1<<32-1 {
			r.fail(label, "key %v out of range", k)
			return
		}
		out[uint32(key)] = string(v.(tdf.String))
	}
	*dst = out
}

// readStructList reads a list of structs into records of type T.
func readStructList[T any, PT interface {
	*T
	Record
}](r *fieldReader, label string, dst *[]T) {
	l, ok := r.list(label, tdf.TypeStruct)
	if !ok {
		return
	}
	out := make([]T, len(l.Structs()))
	for i, s := range l.Structs() {
		if err := PT(&out[i]).Read(s); err != nil {
			if r.err == nil {
				r.err = fmt.Errorf("%s[%d]: %w", label, i, err)
			}
			return
		}
	}
	*dst = out
}

// readStructMap reads a map of strings to structs into records of type T.
func readStructMap[T any, PT interface {
	*T
	Record
}](r *fieldReader, label string, dst *map[string]T) {
	m, ok := r.mapOf(label, tdf.TypeString, tdf.TypeStruct)
	if !ok {
		return
	}
	out := make(map[string]T, m.Len())
	for i := 0; i < m.Len(); i++ {
		k, v := m.Entry(i)
		var rec T
		if err := PT(&rec).Read(v.(*tdf.Struct)); err != nil {
			if r.err == nil {
				r.err = fmt.Errorf("%s[%s]: %w", label, k, err)
			}
			return
		}
		out[string(k.(tdf.String))] = rec
	}
	*dst = out
}

func structList[T any, PT interface {
	*T
	Record
}](items []T) *tdf.List {
	l := tdf.NewList(tdf.TypeStruct)
	for i := range items {
		l.Append(Marshal(PT(&items[i])))
	}
	return l
}

func structMap[T any, PT interface {
	*T
	Record
}](items map[string]T) *tdf.Map {
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	m := tdf.NewMap(tdf.TypeString, tdf.TypeStruct)
	for _, k := range keys {
		rec := items[k]
		m.Put(tdf.String(k), Marshal(PT(&rec)))
	}
	return m
}

func stringMap(m map[string]string) *tdf.Map {
	if m == nil {
		m = map[string]string{}
	}
	return tdf.StringMap(m)
}

func uint32Int64Map(m map[uint32]int64) *tdf.Map {
	keys := make([]uint32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := tdf.NewMap(tdf.TypeInteger, tdf.TypeInteger)
	for _, k := range keys {
		out.Put(tdf.Uint(uint64(k)), tdf.Int(m[k]))
	}
	return out
}

func uint32StringMap(m map[uint32]string) *tdf.Map {
	keys := make([]uint32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := tdf.NewMap(tdf.TypeInteger, tdf.TypeString)
	for _, k := range keys {
		out.Put(tdf.Uint(uint64(k)), tdf.String(m[k]))
	}
	return out
}

func uint64List(v []uint64) *tdf.List {
	return tdf.UintList(v...)
}

func int64List(v []int64) *tdf.List {
	l := tdf.NewList(tdf.TypeInteger)
	for _, n := range v {
		l.Append(tdf.Int(n))
	}
	return l
}

func objectIDList(v []tdf.ObjectID) *tdf.List {
	l := tdf.NewList(tdf.TypeObjectID)
	for _, id := range v {
		l.Append(id)
	}
	return l
}

// setOpaque writes a pass-through value if one was read.
func setOpaque(s *tdf.Struct, label string, v tdf.Value) {
	if v != nil {
		s.Set(label, v)
	}
}
