package packets

import (
	"encoding/binary"
	"fmt"

	"github.com/dcrodman/blaze/internal/core/tdf"
)

// Stream reassembles packets from arbitrary chunks of one direction of a
// connection, such as TCP segments captured off the wire.
type Stream struct {
	buf           []byte
	maxPacketSize int
	limits        tdf.Limits
}

func NewStream(maxPacketSize int, limits tdf.Limits) *Stream {
	if maxPacketSize <= 0 {
		maxPacketSize = DefaultMaxPacketSize
	}
	return &Stream{maxPacketSize: maxPacketSize, limits: limits}
}

// Buffered returns the number of bytes held back waiting for the rest of a packet.
func (s *Stream) Buffered() int { return len(s.buf) }

// Feed appends data and returns every packet it completes. A body that fails
// to decode is skipped and reported once the remaining packets have been
// collected. An oversized frame discards everything buffered since the
// stream can no longer find packet boundaries.
func (s *Stream) Feed(data []byte) ([]*Packet, error) {
	s.buf = append(s.buf, data...)

	var (
		out      []*Packet
		firstErr error
	)
	for len(s.buf) >= HeaderSize {
		h := parseHeader(s.buf[:HeaderSize])
		size := h.Size()
		if len(s.buf) < size {
			break
		}
		if size == ExtendedHeaderSize {
			h.Length |= uint32(binary.BigEndian.Uint16(s.buf[HeaderSize:ExtendedHeaderSize])) << 16
		}
		if int64(h.Length) > int64(s.maxPacketSize) {
			s.buf = nil
			return out, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, h.Length, s.maxPacketSize)
		}

		end := size + int(h.Length)
		if len(s.buf) < end {
			break
		}
		body, _, err := tdf.NewDecoder(s.buf[size:end], s.limits).Decode()
		s.buf = s.buf[end:]
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("decoding %s: %w", CommandName(h.Component, h.Command, h.Type), err)
			}
			continue
		}
		out = append(out, &Packet{Header: h, Body: body})
	}
	if len(s.buf) == 0 {
		s.buf = nil
	}
	return out, firstErr
}
