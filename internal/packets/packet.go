package packets

import (
	"fmt"
	"io"

	"github.com/dcrodman/blaze/internal/core/tdf"
)

// Packet is a framed message with a decoded body.
type Packet struct {
	Header Header
	Body   *tdf.Struct
}

// NewRequest builds a request packet, mostly useful to clients and tests.
func NewRequest(component, command, id uint16, body *tdf.Struct) *Packet {
	return &Packet{
		Header: Header{Component: component, Command: command, Type: RequestType, ID: id},
		Body:   orEmpty(body),
	}
}

// NewReply builds the successful reply to req.
func NewReply(req *Packet, body *tdf.Struct) *Packet {
	return &Packet{
		Header: Header{
			Component: req.Header.Component,
			Command:   req.Header.Command,
			Type:      ReplyType,
			ID:        req.Header.ID,
		},
		Body: orEmpty(body),
	}
}

// NewErrorReply builds an error reply to req carrying code.
func NewErrorReply(req *Packet, code ErrorCode, body *tdf.Struct) *Packet {
	return &Packet{
		Header: Header{
			Component: req.Header.Component,
			Command:   req.Header.Command,
			Error:     uint16(code),
			Type:      ErrorReplyType,
			ID:        req.Header.ID,
		},
		Body: orEmpty(body),
	}
}

// NewNotification builds an unsolicited server notification.
func NewNotification(component, command uint16, body *tdf.Struct) *Packet {
	return &Packet{
		Header: Header{
			Component: component,
			Command:   command,
			Type:      NotificationType,
			ID:        NotificationID,
		},
		Body: orEmpty(body),
	}
}

func orEmpty(body *tdf.Struct) *tdf.Struct {
	if body == nil {
		return tdf.NewStruct()
	}
	return body
}

func (p *Packet) String() string {
	return fmt.Sprintf("%s %s id=%d err=0x%04X",
		p.Header.Type, CommandName(p.Header.Component, p.Header.Command, p.Header.Type), p.Header.ID, p.Header.Error)
}

// Marshal encodes the packet header and body.
func (p *Packet) Marshal(limits tdf.Limits) ([]byte, error) {
	body, err := tdf.NewEncoder(limits).Encode(p.Body)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", p, err)
	}
	h := p.Header
	h.Length = uint32(len(body))
	b := h.AppendTo(make([]byte, 0, ExtendedHeaderSize+len(body)))
	return append(b, body...), nil
}

// Write encodes p and writes it to w.
func Write(w io.Writer, p *Packet, limits tdf.Limits) error {
	b, err := p.Marshal(limits)
	if err != nil {
		return err
	}
	for written := 0; written < len(b); {
		n, err := w.Write(b[written:])
		if err != nil {
			return fmt.Errorf("writing %s: %w", p, err)
		}
		written += n
	}
	return nil
}
