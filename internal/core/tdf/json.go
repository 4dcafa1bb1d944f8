package tdf

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// The JSON rendering keys structs by tag label. Values whose type cannot be
// recovered from plain JSON are wrapped in a single-key envelope object:
//
//	{"$float": 1.5}
//	{"$float": "NaN"}, {"$float": "+Inf"}, {"$float": "-Inf"}
//	{"$blob": "<base64>"}
//	{"$objtype": [component, type]}
//	{"$objid": [component, type, id]}
//	{"$intlist": [1, -2]}
//	{"$list": "integer", "items": [...]}
//	{"$map": ["string", "integer"], "pairs": [[k, v], ...]}
//	{"$union": 0, "tag": "VALU", "value": ...}
//
// Integers and strings render as plain JSON numbers and strings. A struct key
// is the tag label, or "#" and six hex digits for a tag whose label would not
// parse back (such as tag 0).

// ToJSON renders v as JSON.
func ToJSON(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler.
func (s *Struct) MarshalJSON() ([]byte, error) {
	return ToJSON(s)
}

func writeJSON(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case Integer:
		buf.WriteString(val.String())
	case String:
		return writeMarshaled(buf, string(val))
	case Blob:
		buf.WriteString(`{"$blob":`)
		if err := writeMarshaled(buf, base64.StdEncoding.EncodeToString(val)); err != nil {
			return err
		}
		buf.WriteByte('}')
	case Float:
		buf.WriteString(`{"$float":`)
		buf.WriteString(floatJSON(val))
		buf.WriteByte('}')
	case ObjectType:
		fmt.Fprintf(buf, `{"$objtype":[%d,%d]}`, val.Component, val.EntityType)
	case ObjectID:
		fmt.Fprintf(buf, `{"$objid":[%d,%d,%d]}`, val.Component, val.EntityType, val.ID)
	case IntList:
		buf.WriteString(`{"$intlist":[`)
		for i, n := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.FormatInt(n, 10))
		}
		buf.WriteString(`]}`)
	case *Struct:
		buf.WriteByte('{')
		for i, f := range val.fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeMarshaled(buf, tagKey(f.Tag)); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeJSON(buf, f.Value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case *List:
		fmt.Fprintf(buf, `{"$list":%q,"items":[`, val.elem.String())
		for i, item := range val.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteString(`]}`)
	case *Map:
		fmt.Fprintf(buf, `{"$map":[%q,%q],"pairs":[`, val.key.String(), val.val.String())
		for i := range val.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteByte('[')
			if err := writeJSON(buf, val.keys[i]); err != nil {
				return err
			}
			buf.WriteByte(',')
			if err := writeJSON(buf, val.vals[i]); err != nil {
				return err
			}
			buf.WriteByte(']')
		}
		buf.WriteString(`]}`)
	case *Union:
		if !val.IsSet() {
			fmt.Fprintf(buf, `{"$union":%d}`, val.Active)
			return nil
		}
		fmt.Fprintf(buf, `{"$union":%d,"tag":%q,"value":`, val.Active, tagKey(val.Tag))
		if err := writeJSON(buf, val.Value); err != nil {
			return err
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("cannot render %T as JSON", v)
	}
	return nil
}

// Quiet NaN with no payload.
const canonicalNaN = 0x7fc00000

func floatJSON(f Float) string {
	v := float64(f)
	switch {
	case math.IsInf(v, 1):
		return `"+Inf"`
	case math.IsInf(v, -1):
		return `"-Inf"`
	case math.IsNaN(v):
		if bits := math.Float32bits(float32(f)); bits != canonicalNaN {
			return fmt.Sprintf(`"NaN(0x%08x)"`, bits)
		}
		return `"NaN"`
	}
	return strconv.FormatFloat(v, 'g', -1, 32)
}

func floatFromJSON(raw interface{}) (Float, error) {
	switch val := raw.(type) {
	case json.Number:
		f, err := val.Float64()
		return Float(float32(f)), err
	case string:
		switch val {
		case "NaN":
			return Float(math.Float32frombits(canonicalNaN)), nil
		case "+Inf":
			return Float(math.Inf(1)), nil
		case "-Inf":
			return Float(math.Inf(-1)), nil
		}
		if strings.HasPrefix(val, "NaN(") && strings.HasSuffix(val, ")") {
			bits, err := strconv.ParseUint(val[4:len(val)-1], 0, 32)
			if err == nil && math.IsNaN(float64(math.Float32frombits(uint32(bits)))) {
				return Float(math.Float32frombits(uint32(bits))), nil
			}
		}
		return 0, fmt.Errorf("$float: unknown value %q", val)
	}
	return 0, errors.New("$float expects a number or NaN, +Inf, -Inf")
}

func tagKey(t Tag) string {
	if label := t.String(); IsTagLabel(label) {
		return label
	}
	return fmt.Sprintf("#%06X", uint32(t))
}

func tagFromKey(k string) (Tag, error) {
	if len(k) == 7 && k[0] == '#' {
		raw, err := strconv.ParseUint(k[1:], 16, 24)
		if err != nil {
			return 0, fmt.Errorf("invalid tag %q: %v", k, err)
		}
		return Tag(raw), nil
	}
	return ParseTag(k)
}

func isTagKey(k string) bool {
	if len(k) == 7 && k[0] == '#' {
		_, err := tagFromKey(k)
		return err == nil
	}
	return IsTagLabel(k) && strings.ToUpper(k) == k
}

func writeMarshaled(buf *bytes.Buffer, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

// FromJSON parses a JSON object into a root struct. It accepts both the
// rendering produced by ToJSON and plain request bodies, where numbers become
// integers (or floats when fractional), strings stay strings, booleans become
// 0 or 1, arrays become lists and objects become structs when every key is a
// tag label or string keyed maps otherwise. Key order is preserved.
func FromJSON(data []byte) (*Struct, error) {
	return FromJSONWithAliases(data, nil)
}

// FromJSONWithAliases is FromJSON with a table translating top level field
// names (such as "name" or "localization") to tag labels.
func FromJSONWithAliases(data []byte, aliases map[string]string) (*Struct, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	raw, err := parseJSON(dec, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	obj, ok := raw.(*jsonObject)
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformedInput)
	}
	for i, k := range obj.keys {
		if label, ok := aliases[k]; ok {
			obj.vals[label] = obj.vals[k]
			if label != k {
				delete(obj.vals, k)
			}
			obj.keys[i] = label
		}
	}

	s, err := structFromJSON(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return s, nil
}

// jsonObject is a decoded JSON object that remembers its key order.
type jsonObject struct {
	keys []string
	vals map[string]interface{}
}

// Each nesting level of a value tree takes at most this many levels of JSON
// (a map envelope, its pairs array and a pair).
const jsonLevelsPerDepth = 4

func parseJSON(dec *json.Decoder, depth int) (interface{}, error) {
	t, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch tok := t.(type) {
	case json.Delim:
		if depth++; depth > jsonLevelsPerDepth*DefaultLimits.MaxDepth {
			return nil, fmt.Errorf("nesting exceeds maximum depth %d", DefaultLimits.MaxDepth)
		}
		switch tok {
		case '{':
			obj := &jsonObject{vals: make(map[string]interface{})}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				k, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", kt)
				}
				v, err := parseJSON(dec, depth)
				if err != nil {
					return nil, err
				}
				if _, dup := obj.vals[k]; dup {
					return nil, fmt.Errorf("duplicate key %q", k)
				}
				obj.keys = append(obj.keys, k)
				obj.vals[k] = v
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			var arr []interface{}
			for dec.More() {
				v, err := parseJSON(dec, depth)
				if err != nil {
					return nil, err
				}
				arr = append(arr, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", tok)
	default:
		return tok, nil
	}
}

func structFromJSON(obj *jsonObject) (*Struct, error) {
	s := NewStruct()
	for _, k := range obj.keys {
		tag, err := tagFromKey(k)
		if err != nil {
			return nil, err
		}
		v, err := valueFromJSON(obj.vals[k])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		s.SetTag(tag, v)
	}
	return s, nil
}

func valueFromJSON(raw interface{}) (Value, error) {
	switch val := raw.(type) {
	case json.Number:
		return numberFromJSON(val)
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case nil:
		return nil, errors.New("null values are not representable")
	case []interface{}:
		return listFromJSON(val)
	case *jsonObject:
		if v, ok, err := envelopeFromJSON(val); ok || err != nil {
			return v, err
		}
		if allTagKeys(val) {
			return structFromJSON(val)
		}
		// Object keys are already unique.
		var m *Map
		for _, k := range val.keys {
			v, err := valueFromJSON(val.vals[k])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			if m == nil {
				m = NewMap(TypeString, v.Type())
			}
			if v.Type() != m.val {
				return nil, fmt.Errorf("%s: mixed map value types", k)
			}
			m.keys = append(m.keys, String(k))
			m.vals = append(m.vals, v)
		}
		return m, nil
	}
	return nil, fmt.Errorf("unsupported JSON value %T", raw)
}

func numberFromJSON(n json.Number) (Value, error) {
	s := n.String()
	if strings.ContainsAny(s, ".eE") {
		f, err := n.Float64()
		if err != nil {
			return nil, err
		}
		return Float(float32(f)), nil
	}
	return parseInteger(s)
}

func parseInteger(s string) (Integer, error) {
	neg := strings.HasPrefix(s, "-")
	mag, err := strconv.ParseUint(strings.TrimPrefix(s, "-"), 10, 64)
	if err != nil {
		return Integer{}, err
	}
	return Integer{Neg: neg, Mag: mag}.normalize(), nil
}

func listFromJSON(items []interface{}) (Value, error) {
	if len(items) == 0 {
		return NewList(TypeInteger), nil
	}
	var l *List
	for i, item := range items {
		v, err := valueFromJSON(item)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		if l == nil {
			l = NewList(v.Type())
		}
		if v.Type() != l.elem {
			return nil, fmt.Errorf("[%d]: mixed list element types", i)
		}
		l.items = append(l.items, v)
	}
	return l, nil
}

// Envelope names are lowercase, so none of them is a tag label.
var envelopeNames = map[string]bool{
	"$float": true, "$blob": true, "$objtype": true, "$objid": true,
	"$intlist": true, "$list": true, "$map": true, "$union": true,
}

func envelopeFromJSON(obj *jsonObject) (Value, bool, error) {
	if len(obj.keys) == 0 || !envelopeNames[obj.keys[0]] {
		return nil, false, nil
	}
	switch obj.keys[0] {
	case "$float":
		f, err := floatFromJSON(obj.vals["$float"])
		return f, true, err
	case "$blob":
		str, ok := obj.vals["$blob"].(string)
		if !ok {
			return nil, true, errors.New("$blob expects a base64 string")
		}
		b, err := base64.StdEncoding.DecodeString(str)
		return Blob(b), true, err
	case "$objtype":
		parts, err := uintParts(obj.vals["$objtype"], 2)
		if err != nil {
			return nil, true, err
		}
		return ObjectType{Component: uint16(parts[0]), EntityType: uint16(parts[1])}, true, nil
	case "$objid":
		parts, err := uintParts(obj.vals["$objid"], 3)
		if err != nil {
			return nil, true, err
		}
		return ObjectID{Component: uint16(parts[0]), EntityType: uint16(parts[1]), ID: parts[2]}, true, nil
	case "$intlist":
		raw, ok := obj.vals["$intlist"].([]interface{})
		if !ok && obj.vals["$intlist"] != nil {
			return nil, true, errors.New("$intlist expects an array")
		}
		out := make(IntList, 0, len(raw))
		for _, r := range raw {
			n, ok := r.(json.Number)
			if !ok {
				return nil, true, errors.New("$intlist expects integers")
			}
			i, err := n.Int64()
			if err != nil {
				return nil, true, err
			}
			out = append(out, i)
		}
		return out, true, nil
	case "$list":
		elem, err := typeFromJSON(obj.vals["$list"])
		if err != nil {
			return nil, true, err
		}
		raw, _ := obj.vals["items"].([]interface{})
		l := NewList(elem)
		for i, r := range raw {
			v, err := valueFromJSON(r)
			if err != nil {
				return nil, true, fmt.Errorf("[%d]: %w", i, err)
			}
			if v.Type() != elem {
				return nil, true, fmt.Errorf("[%d]: expected %v, got %v", i, elem, v.Type())
			}
			l.items = append(l.items, v)
		}
		return l, true, nil
	case "$map":
		types, ok := obj.vals["$map"].([]interface{})
		if !ok || len(types) != 2 {
			return nil, true, errors.New("$map expects [keyType, valueType]")
		}
		kt, err := typeFromJSON(types[0])
		if err != nil {
			return nil, true, err
		}
		vt, err := typeFromJSON(types[1])
		if err != nil {
			return nil, true, err
		}
		m := NewMap(kt, vt)
		seen := make(map[interface{}]struct{})
		pairs, _ := obj.vals["pairs"].([]interface{})
		for i, p := range pairs {
			pair, ok := p.([]interface{})
			if !ok || len(pair) != 2 {
				return nil, true, fmt.Errorf("pair %d: expected [key, value]", i)
			}
			k, err := valueFromJSON(pair[0])
			if err != nil {
				return nil, true, err
			}
			v, err := valueFromJSON(pair[1])
			if err != nil {
				return nil, true, err
			}
			if k.Type() != kt || v.Type() != vt {
				return nil, true, fmt.Errorf("pair %d: type mismatch", i)
			}
			if sk, ok := scalarKey(k); ok {
				if _, dup := seen[sk]; dup {
					return nil, true, fmt.Errorf("pair %d: duplicate key", i)
				}
				seen[sk] = struct{}{}
			} else if _, dup := m.index(k); dup {
				return nil, true, fmt.Errorf("pair %d: duplicate key", i)
			}
			m.keys = append(m.keys, k)
			m.vals = append(m.vals, v)
		}
		return m, true, nil
	case "$union":
		n, ok := obj.vals["$union"].(json.Number)
		if !ok {
			return nil, true, errors.New("$union expects a member index")
		}
		active, err := strconv.ParseUint(n.String(), 10, 8)
		if err != nil {
			return nil, true, err
		}
		if uint8(active) == UnsetMember {
			return UnsetUnion(), true, nil
		}
		label, _ := obj.vals["tag"].(string)
		tag, err := tagFromKey(label)
		if err != nil {
			return nil, true, err
		}
		v, err := valueFromJSON(obj.vals["value"])
		if err != nil {
			return nil, true, err
		}
		return &Union{Active: uint8(active), Tag: tag, Value: v}, true, nil
	}
	return nil, false, nil
}

func typeFromJSON(raw interface{}) (Type, error) {
	name, _ := raw.(string)
	t, ok := typeByName(name)
	if !ok {
		return 0, fmt.Errorf("unknown type name %q", name)
	}
	return t, nil
}

func uintParts(raw interface{}, n int) ([]uint64, error) {
	arr, ok := raw.([]interface{})
	if !ok || len(arr) != n {
		return nil, fmt.Errorf("expected %d integers", n)
	}
	out := make([]uint64, n)
	for i, r := range arr {
		num, ok := r.(json.Number)
		if !ok {
			return nil, fmt.Errorf("expected %d integers", n)
		}
		v, err := strconv.ParseUint(num.String(), 10, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func allTagKeys(obj *jsonObject) bool {
	for _, k := range obj.keys {
		if !isTagKey(k) {
			return false
		}
	}
	return true
}
