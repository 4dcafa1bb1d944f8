package components

import (
	"context"
	"fmt"

	"github.com/dcrodman/blaze/internal/blaze"
	"github.com/dcrodman/blaze/internal/blaze/records"
	"github.com/dcrodman/blaze/internal/core/data"
	"github.com/dcrodman/blaze/internal/core/tdf"
	"github.com/dcrodman/blaze/internal/lists"
	"github.com/dcrodman/blaze/internal/packets"
)

// List flag set on lists that evict their oldest member when full.
const listFlagRollover = 1

func listIdentification(def lists.Definition) records.ListIdentification {
	return records.ListIdentification{Name: def.Name, Type: def.Type}
}

func listInfo(owner uint64, def lists.Definition) records.ListInfo {
	info := records.ListInfo{
		Owner:   personaObjectID(owner),
		ID:      listIdentification(def),
		MaxSize: def.MaxSize,
	}
	if def.Rollover {
		info.Flags |= listFlagRollover
	}
	return info
}

func listMemberInfo(m lists.Member) records.ListMemberInfo {
	return records.ListMemberInfo{
		Member:  records.ListMemberId{BlazeID: m.PersonaID, PersonaName: m.Name},
		AddedAt: m.AddedAt.Unix(),
	}
}

func memberInfoList(members []lists.Member) *tdf.List {
	l := tdf.NewList(tdf.TypeStruct)
	for _, m := range members {
		info := listMemberInfo(m)
		l.Append(records.Marshal(&info))
	}
	return l
}

// lookupList resolves the LID field of a request.
func (h *handlers) lookupList(body *tdf.Struct) (lists.Definition, error) {
	st, ok := body.Struct("LID")
	if !ok {
		return lists.Definition{}, blaze.Errorf(packets.ErrorInvalidRequest, "missing LID")
	}
	var id records.ListIdentification
	if err := id.Read(st); err != nil {
		return lists.Definition{}, blaze.Errorf(packets.ErrorInvalidRequest, "%v", err)
	}
	return h.srv.Lists.Lookup(id.Name, id.Type)
}

// lookupLists resolves the LIDS field of a request. An absent or empty list
// selects every list.
func (h *handlers) lookupLists(body *tdf.Struct) ([]lists.Definition, error) {
	ids, ok := body.List("LIDS")
	if !ok || ids.Len() == 0 {
		return h.srv.Lists.Definitions(), nil
	}
	var defs []lists.Definition
	for _, st := range ids.Structs() {
		var id records.ListIdentification
		if err := id.Read(st); err != nil {
			return nil, blaze.Errorf(packets.ErrorInvalidRequest, "%v", err)
		}
		def, err := h.srv.Lists.Lookup(id.Name, id.Type)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// requestedMembers resolves the BIDL field of a request to personas. Members
// may be named by persona id or, when the id is zero, by name.
func (h *handlers) requestedMembers(body *tdf.Struct) ([]lists.Member, error) {
	ids, ok := body.List("BIDL")
	if !ok {
		return nil, blaze.Errorf(packets.ErrorInvalidRequest, "missing BIDL")
	}
	members := make([]lists.Member, 0, ids.Len())
	for _, st := range ids.Structs() {
		var id records.ListMemberId
		if err := id.Read(st); err != nil {
			return nil, blaze.Errorf(packets.ErrorInvalidRequest, "%v", err)
		}

		var persona *data.Persona
		var err error
		if id.BlazeID != 0 {
			persona, err = data.FindPersona(h.srv.DB, id.BlazeID)
		} else {
			persona, err = data.FindPersonaByName(h.srv.DB, id.PersonaName)
		}
		if err != nil {
			return nil, fmt.Errorf("looking up list member %d/%s: %w", id.BlazeID, id.PersonaName, err)
		} else if persona == nil {
			return nil, blaze.Errorf(packets.ErrorUserNotFound, "list member %d/%s", id.BlazeID, id.PersonaName)
		}
		members = append(members, lists.Member{PersonaID: persona.ID, Name: persona.DisplayName})
	}
	return members, nil
}

// notifyMembership tells a subscribed owner about changes to one of its lists.
func (h *handlers) notifyMembership(req *blaze.Request, def lists.Definition, members []lists.Member, op uint8) {
	owner := req.Session.PersonaID()
	if !h.srv.Lists.Subscribed(owner, def) {
		return
	}
	for _, m := range members {
		update := records.ListMemberInfoUpdate{
			ListID:    listIdentification(def),
			Member:    listMemberInfo(m),
			Operation: op,
		}
		req.Session.Send(packets.NewNotification(packets.AssociationListsComponent, packets.NotifyUpdateListMembership, records.Marshal(&update)))
	}
}

func (h *handlers) addUsersToList(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	def, err := h.lookupList(req.Body)
	if err != nil {
		return nil, err
	}
	members, err := h.requestedMembers(req.Body)
	if err != nil {
		return nil, err
	}
	added, err := h.srv.Lists.Add(req.Session.PersonaID(), def, members)
	if err != nil {
		return nil, err
	}
	h.notifyMembership(req, def, added, records.ListMemberAdded)
	return tdf.NewStruct().Set("LMID", memberInfoList(added)), nil
}

func (h *handlers) removeUsersFromList(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	def, err := h.lookupList(req.Body)
	if err != nil {
		return nil, err
	}
	members, err := h.requestedMembers(req.Body)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, len(members))
	for i, m := range members {
		ids[i] = m.PersonaID
	}
	removed, err := h.srv.Lists.Remove(req.Session.PersonaID(), def, ids)
	if err != nil {
		return nil, err
	}
	h.notifyMembership(req, def, removed, records.ListMemberRemoved)
	return tdf.NewStruct().Set("LMID", memberInfoList(removed)), nil
}

func (h *handlers) clearLists(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	defs, err := h.lookupLists(req.Body)
	if err != nil {
		return nil, err
	}
	owner := req.Session.PersonaID()
	for _, def := range defs {
		members, err := h.srv.Lists.Members(owner, def)
		if err != nil {
			return nil, err
		}
		if err := h.srv.Lists.Clear(owner, def); err != nil {
			return nil, err
		}
		h.notifyMembership(req, def, members, records.ListMemberRemoved)
	}
	return nil, nil
}

// setUsersToList replaces a list's contents with the requested members.
func (h *handlers) setUsersToList(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	def, err := h.lookupList(req.Body)
	if err != nil {
		return nil, err
	}
	members, err := h.requestedMembers(req.Body)
	if err != nil {
		return nil, err
	}
	owner := req.Session.PersonaID()
	previous, err := h.srv.Lists.Members(owner, def)
	if err != nil {
		return nil, err
	}
	current, err := h.srv.Lists.Set(owner, def, members)
	if err != nil {
		return nil, err
	}
	h.notifyMembership(req, def, previous, records.ListMemberRemoved)
	h.notifyMembership(req, def, current, records.ListMemberAdded)
	return tdf.NewStruct().Set("LMID", memberInfoList(current)), nil
}

func (h *handlers) listMembers(owner uint64, def lists.Definition, offset, limit int) (*tdf.Struct, error) {
	members, err := h.srv.Lists.Members(owner, def)
	if err != nil {
		return nil, err
	}
	total := len(members)
	if offset > total {
		offset = total
	}
	members = members[offset:]
	if limit > 0 && len(members) > limit {
		members = members[:limit]
	}
	lm := records.ListMembers{
		Info:   listInfo(owner, def),
		Offset: uint32(offset),
		Total:  uint32(total),
	}
	for _, m := range members {
		lm.Members = append(lm.Members, listMemberInfo(m))
	}
	return records.Marshal(&lm), nil
}

// getListForUser returns one list of the requesting persona, or of the
// persona named by BID.
func (h *handlers) getListForUser(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	def, err := h.lookupList(req.Body)
	if err != nil {
		return nil, err
	}
	owner := req.Body.UintOr("BID", req.Session.PersonaID())
	return h.listMembers(owner, def, 0, 0)
}

func (h *handlers) getLists(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	defs, err := h.lookupLists(req.Body)
	if err != nil {
		return nil, err
	}
	offset := int(req.Body.UintOr("OFRC", 0))
	limit := int(req.Body.UintOr("MXRC", 0))

	out := tdf.NewList(tdf.TypeStruct)
	for _, def := range defs {
		lm, err := h.listMembers(req.Session.PersonaID(), def, offset, limit)
		if err != nil {
			return nil, err
		}
		out.Append(lm)
	}
	return tdf.NewStruct().Set("LMAP", out), nil
}

func (h *handlers) subscribeToLists(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	defs, err := h.lookupLists(req.Body)
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		h.srv.Lists.Subscribe(req.Session.PersonaID(), def)
	}
	return nil, nil
}

func (h *handlers) unsubscribeFromLists(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	defs, err := h.lookupLists(req.Body)
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		h.srv.Lists.Unsubscribe(req.Session.PersonaID(), def)
	}
	return nil, nil
}
