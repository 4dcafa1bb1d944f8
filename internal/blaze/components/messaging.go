package components

import (
	"context"
	"fmt"

	"github.com/dcrodman/blaze/internal/blaze"
	"github.com/dcrodman/blaze/internal/blaze/records"
	"github.com/dcrodman/blaze/internal/core/data"
	"github.com/dcrodman/blaze/internal/core/tdf"
	"github.com/dcrodman/blaze/internal/messaging"
	"github.com/dcrodman/blaze/internal/packets"
)

func serverMessage(m *messaging.Message) *tdf.Struct {
	return records.Marshal(&records.ServerMessage{
		Flags:     m.Flags,
		MessageID: m.ID,
		Name:      m.FromName,
		Payload: records.ClientMessage{
			Attributes: m.Attributes,
			Flags:      m.Flags,
			Status:     m.Status,
			Tag:        m.Tag,
			Target:     personaObjectID(m.To),
			Type:       m.Type,
		},
		Source: personaObjectID(m.From),
		Time:   uint32(m.SentAt.Unix()),
	})
}

// messageFilter reads the message selection fields shared by the fetch,
// purge and touch commands.
func messageFilter(body *tdf.Struct) messaging.Filter {
	f := messaging.Filter{
		MessageID:  uint32(body.UintOr("MGID", 0)),
		Type:       uint32(body.UintOr("TYPE", 0)),
		StatusMask: uint32(body.UintOr("SMSK", 0)),
	}
	if src, ok := body.ObjectID("SRCE"); ok {
		f.Source = src.ID
	}
	return f
}

func (h *handlers) sendMessage(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	var cm records.ClientMessage
	if err := req.Read(&cm); err != nil {
		return nil, err
	}
	targetID := cm.Target.ID
	if targetID == 0 {
		return nil, blaze.Errorf(packets.ErrorTargetNotFound, "message without target")
	}
	persona, err := data.FindPersona(h.srv.DB, targetID)
	if err != nil {
		return nil, fmt.Errorf("looking up persona %d: %w", targetID, err)
	} else if persona == nil {
		return nil, blaze.Errorf(packets.ErrorTargetNotFound, "persona %d", targetID)
	}

	msg := h.srv.Mailbox.Deliver(messaging.Message{
		From:       req.Session.PersonaID(),
		FromName:   req.Session.PersonaName(),
		To:         persona.ID,
		Type:       cm.Type,
		Tag:        cm.Tag,
		Flags:      cm.Flags,
		Status:     cm.Status,
		Attributes: cm.Attributes,
	})
	if target, ok := h.srv.Sessions.FindByPersona(persona.ID); ok {
		target.Send(packets.NewNotification(packets.MessagingComponent, packets.NotifyMessage, serverMessage(&msg)))
	}
	req.Logger.Debugf("%s sent message %d to %s", req.Session, msg.ID, persona.DisplayName)
	return tdf.NewStruct().SetUint("MGID", uint64(msg.ID)), nil
}

// fetchMessages delivers the matching messages as notifications and replies
// with how many were sent.
func (h *handlers) fetchMessages(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	msgs := h.srv.Mailbox.Fetch(req.Session.PersonaID(), messageFilter(req.Body))
	for i := range msgs {
		req.Session.Send(packets.NewNotification(packets.MessagingComponent, packets.NotifyMessage, serverMessage(&msgs[i])))
	}
	return tdf.NewStruct().SetUint("MCNT", uint64(len(msgs))), nil
}

func (h *handlers) purgeMessages(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	n := h.srv.Mailbox.Purge(req.Session.PersonaID(), messageFilter(req.Body))
	return tdf.NewStruct().SetUint("MCNT", uint64(n)), nil
}

func (h *handlers) touchMessages(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	set := uint32(req.Body.UintOr("SSET", uint64(messaging.StatusRead)))
	unset := uint32(req.Body.UintOr("SCLR", 0))
	n := h.srv.Mailbox.Touch(req.Session.PersonaID(), messageFilter(req.Body), set, unset)
	return tdf.NewStruct().SetUint("MCNT", uint64(n)), nil
}

// getMessages returns the matching messages in the reply itself.
func (h *handlers) getMessages(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	msgs := h.srv.Mailbox.Fetch(req.Session.PersonaID(), messageFilter(req.Body))
	list := tdf.NewList(tdf.TypeStruct)
	for i := range msgs {
		list.Append(serverMessage(&msgs[i]))
	}
	return tdf.NewStruct().Set("MSGL", list), nil
}
