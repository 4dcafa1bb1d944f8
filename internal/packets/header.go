// Framing for packets exchanged between the server and Blaze clients.
package packets

import (
	"encoding/binary"
	"fmt"
)

const (
	// HeaderSize is the size of the fixed packet header.
	HeaderSize = 12
	// ExtendedHeaderSize is the header size when the extended length flag is set.
	ExtendedHeaderSize = HeaderSize + 2

	// FlagExtendedLength signals that two more bytes holding the upper 16 bits
	// of the body length follow the fixed header.
	FlagExtendedLength = 0x10

	// NotificationID is the correlation id carried by every notification.
	NotificationID = 0
)

// MessageType distinguishes requests from the packets the server sends back.
type MessageType uint8

const (
	RequestType      MessageType = 0x00
	ReplyType        MessageType = 0x10
	NotificationType MessageType = 0x20
	ErrorReplyType   MessageType = 0x30
)

func (t MessageType) String() string {
	switch t {
	case RequestType:
		return "request"
	case ReplyType:
		return "reply"
	case NotificationType:
		return "notification"
	case ErrorReplyType:
		return "error"
	}
	return fmt.Sprintf("type(0x%02X)", uint8(t))
}

// Header precedes every packet body on the wire. All fields are big endian.
//
//	length(2) component(2) command(2) error(2) type(1) flags(1) id(2) [length high(2)]
type Header struct {
	// Length of the body in bytes (not including the header).
	Length    uint32
	Component uint16
	Command   uint16
	Error     uint16
	Type      MessageType
	Flags     uint8
	// Correlation id matching replies to requests.
	ID uint16
}

// Size returns the encoded size of the header.
func (h Header) Size() int {
	if h.Flags&FlagExtendedLength != 0 {
		return ExtendedHeaderSize
	}
	return HeaderSize
}

// AppendTo writes the header to b, setting the extended length flag if the
// body length does not fit in 16 bits.
func (h Header) AppendTo(b []byte) []byte {
	if h.Length > 0xFFFF {
		h.Flags |= FlagExtendedLength
	} else {
		h.Flags &^= FlagExtendedLength
	}
	b = binary.BigEndian.AppendUint16(b, uint16(h.Length))
	b = binary.BigEndian.AppendUint16(b, h.Component)
	b = binary.BigEndian.AppendUint16(b, h.Command)
	b = binary.BigEndian.AppendUint16(b, h.Error)
	b = append(b, byte(h.Type), h.Flags)
	b = binary.BigEndian.AppendUint16(b, h.ID)
	if h.Flags&FlagExtendedLength != 0 {
		b = binary.BigEndian.AppendUint16(b, uint16(h.Length>>16))
	}
	return b
}

// parseHeader reads the fixed portion of a header. The upper length bits of an
// extended header are filled in by the caller.
func parseHeader(b []byte) Header {
	return Header{
		Length:    uint32(binary.BigEndian.Uint16(b[0:2])),
		Component: binary.BigEndian.Uint16(b[2:4]),
		Command:   binary.BigEndian.Uint16(b[4:6]),
		Error:     binary.BigEndian.Uint16(b[6:8]),
		Type:      MessageType(b[8]),
		Flags:     b[9],
		ID:        binary.BigEndian.Uint16(b[10:12]),
	}
}
