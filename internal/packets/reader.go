package packets

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/dcrodman/blaze/internal/core/tdf"
)

// DefaultMaxPacketSize bounds the body of a single packet when no limit is configured.
const DefaultMaxPacketSize = 1 << 20

// ErrFrameTooLarge is returned when a header declares a body larger than the
// configured maximum. The connection must be closed.
var ErrFrameTooLarge = errors.New("frame exceeds maximum packet size")

// Reader extracts complete packets from a byte stream.
type Reader struct {
	r             *bufio.Reader
	maxPacketSize int
	limits        tdf.Limits
	header        [ExtendedHeaderSize]byte
}

// NewReader returns a Reader that rejects bodies over maxPacketSize bytes and
// decodes bodies under limits.
func NewReader(r io.Reader, maxPacketSize int, limits tdf.Limits) *Reader {
	if maxPacketSize <= 0 {
		maxPacketSize = DefaultMaxPacketSize
	}
	return &Reader{r: bufio.NewReader(r), maxPacketSize: maxPacketSize, limits: limits}
}

// Next blocks until a full packet has been read. It returns io.EOF if the
// stream ends cleanly between packets and io.ErrUnexpectedEOF if it ends in
// the middle of one. Errors wrapping ErrFrameTooLarge or tdf.ErrMalformedInput
// are fatal to the connection.
func (r *Reader) Next() (*Packet, error) {
	if _, err := io.ReadFull(r.r, r.header[:HeaderSize]); err != nil {
		return nil, err
	}
	h := parseHeader(r.header[:HeaderSize])
	if h.Flags&FlagExtendedLength != 0 {
		if _, err := io.ReadFull(r.r, r.header[HeaderSize:ExtendedHeaderSize]); err != nil {
			return nil, unexpectedEOF(err)
		}
		h.Length |= uint32(binary.BigEndian.Uint16(r.header[HeaderSize:ExtendedHeaderSize])) << 16
	}
	if int64(h.Length) > int64(r.maxPacketSize) {
		return nil, fmt.Errorf("%w: %d > %d (component 0x%04X command 0x%04X)",
			ErrFrameTooLarge, h.Length, r.maxPacketSize, h.Component, h.Command)
	}

	body := make([]byte, h.Length)
	if _, err := io.ReadFull(r.r, body); err != nil {
		return nil, unexpectedEOF(err)
	}

	decoded, _, err := tdf.NewDecoder(body, r.limits).Decode()
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", CommandName(h.Component, h.Command, h.Type), err)
	}
	return &Packet{Header: h, Body: decoded}, nil
}

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
