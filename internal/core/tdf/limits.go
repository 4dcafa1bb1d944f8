package tdf

import "errors"

// ErrMalformedInput is returned (wrapped) whenever a body cannot be decoded or a
// tree violates the configured limits.
var ErrMalformedInput = errors.New("malformed input")

// Limits bounds the resources a single body may consume.
type Limits struct {
	// MaxDepth is the deepest allowed container nesting. The root struct is at
	// depth 1 and every nested struct, list, map or union adds one level.
	MaxDepth int
	// MaxCollection caps the declared element count of a list, map or int list.
	MaxCollection int
	// MaxAllocation caps the declared length of a single string or blob.
	MaxAllocation int
}

// DefaultLimits are used by the package level Encode and Decode functions.
var DefaultLimits = Limits{
	MaxDepth:      32,
	MaxCollection: 1 << 16,
	MaxAllocation: 1 << 20,
}

func (l Limits) withDefaults() Limits {
	if l.MaxDepth <= 0 {
		l.MaxDepth = DefaultLimits.MaxDepth
	}
	if l.MaxCollection <= 0 {
		l.MaxCollection = DefaultLimits.MaxCollection
	}
	if l.MaxAllocation <= 0 {
		l.MaxAllocation = DefaultLimits.MaxAllocation
	}
	return l
}
