package tdf

import "fmt"

const (
	varintContinue = 0x80
	varintSign     = 0x40
	// Six value bits in the first byte and seven in each following byte cover
	// a 64 bit magnitude in at most ten bytes.
	maxVarintLen = 10
)

func appendVarint(b []byte, i Integer) []byte {
	i = i.normalize()
	mag := i.Mag

	first := byte(mag & 0x3F)
	if i.Neg {
		first |= varintSign
	}
	mag >>= 6
	if mag != 0 {
		first |= varintContinue
	}
	b = append(b, first)

	for mag != 0 {
		next := byte(mag & 0x7F)
		mag >>= 7
		if mag != 0 {
			next |= varintContinue
		}
		b = append(b, next)
	}
	return b
}

// readVarint decodes an Integer from the front of b and returns the number of
// bytes consumed.
func readVarint(b []byte) (Integer, int, error) {
	if len(b) == 0 {
		return Integer{}, 0, fmt.Errorf("%w: truncated integer", ErrMalformedInput)
	}

	first := b[0]
	i := Integer{Neg: first&varintSign != 0, Mag: uint64(first & 0x3F)}
	if first&varintContinue == 0 {
		return i.normalize(), 1, nil
	}

	shift := uint(6)
	for n := 1; n < len(b); n++ {
		if n >= maxVarintLen {
			return Integer{}, 0, fmt.Errorf("%w: integer longer than %d bytes", ErrMalformedInput, maxVarintLen)
		}
		c := b[n]
		chunk := uint64(c & 0x7F)
		// The tenth byte may only carry the single remaining bit.
		if shift == 62 && chunk > 0x03 {
			return Integer{}, 0, fmt.Errorf("%w: integer overflows 64 bits", ErrMalformedInput)
		}
		i.Mag |= chunk << shift
		if c&varintContinue == 0 {
			return i.normalize(), n + 1, nil
		}
		shift += 7
	}
	return Integer{}, 0, fmt.Errorf("%w: truncated integer", ErrMalformedInput)
}
