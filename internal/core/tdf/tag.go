// Package tdf implements the tagged data format used for Blaze packet bodies.
//
// Every value in a body is a self-describing field: a three byte tag packing up
// to four characters, a one byte type code and the encoded value. Values nest
// through structs, lists, maps and unions. Trees are built through the typed
// builder API on Struct, List and Map and converted to and from bytes with an
// Encoder and Decoder.
package tdf

import (
	"fmt"
	"strings"
)

// Tag is a field label of up to four characters packed into 24 bits, six bits
// per character.
type Tag uint32

// MakeTag packs label into a Tag. It panics if the label is not a valid tag,
// which makes it suitable for package level and literal labels.
func MakeTag(label string) Tag {
	t, err := ParseTag(label)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseTag packs label into a Tag, returning an error if label is empty, longer
// than four characters, or contains characters outside of the tag alphabet.
func ParseTag(label string) (Tag, error) {
	if len(label) == 0 || len(label) > 4 {
		return 0, fmt.Errorf("invalid tag %q: must be between 1 and 4 characters", label)
	}
	if label[0] == ' ' {
		return 0, fmt.Errorf("invalid tag %q: leading space", label)
	}

	var t Tag
	for i := 0; i < 4; i++ {
		var c byte = ' '
		if i < len(label) {
			c = label[i]
		}
		if c < 0x20 || c > 0x5F {
			return 0, fmt.Errorf("invalid tag %q: character %q out of range", label, c)
		}
		t = t<<6 | Tag((c-0x20)&0x3F)
	}
	return t, nil
}

// IsTagLabel reports whether label can be packed into a Tag.
func IsTagLabel(label string) bool {
	_, err := ParseTag(label)
	return err == nil
}

func (t Tag) String() string {
	b := make([]byte, 4)
	for i := 3; i >= 0; i-- {
		b[i] = byte(t&0x3F) + 0x20
		t >>= 6
	}
	return strings.TrimRight(string(b), " ")
}

func (t Tag) bytes() [3]byte {
	return [3]byte{byte(t >> 16), byte(t >> 8), byte(t)}
}

func tagFromBytes(b []byte) Tag {
	return Tag(b[0])<<16 | Tag(b[1])<<8 | Tag(b[2])
}
