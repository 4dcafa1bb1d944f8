package components

import (
	"context"

	"github.com/dcrodman/blaze/internal/blaze"
	"github.com/dcrodman/blaze/internal/blaze/records"
	"github.com/dcrodman/blaze/internal/core/tdf"
	"github.com/dcrodman/blaze/internal/game"
	"github.com/dcrodman/blaze/internal/packets"
)

// Member limit of playgroups created without one.
const defaultMemberLimit = 4

func requirePlaygroupID(body *tdf.Struct) (game.PlaygroupID, error) {
	id, err := requireUint(body, "PGID")
	return game.PlaygroupID(id), err
}

func (h *handlers) createPlaygroup(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	b := req.Body
	limit := b.UintOr("MLIM", defaultMemberLimit)
	presence, topology := b.UintOr("PRES", uint64(game.PresenceStandard)), b.UintOr("NTOP", uint64(game.PeerHosted))
	if limit > 0xFFFF || presence > 0xFF || topology > 0xFF {
		return nil, blaze.Errorf(packets.ErrorInvalidGameSpec, "playgroup settings out of range")
	}
	spec := game.PlaygroupSpec{
		Name:        b.StrOr("NAME", ""),
		MemberLimit: uint16(limit),
		Open:        b.UintOr("JOIN", 1) != 0,
		Presence:    game.Presence(presence),
		Topology:    game.Topology(topology),
		UniqueKey:   b.StrOr("UKEY", ""),
		Attributes:  stringMap(b, "ATTR"),
	}
	id, err := h.srv.Registry.CreatePlaygroup(req.Session, spec)
	if err != nil {
		return nil, err
	}
	req.Logger.Infof("%s created playgroup %d", req.Session, id)
	return tdf.NewStruct().SetUint("PGID", uint64(id)), nil
}

func (h *handlers) destroyPlaygroup(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	id, err := requirePlaygroupID(req.Body)
	if err != nil {
		return nil, err
	}
	return nil, h.srv.Registry.DestroyPlaygroup(id, req.Session)
}

func (h *handlers) joinPlaygroup(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	id, err := requirePlaygroupID(req.Body)
	if err != nil {
		return nil, err
	}
	if err := h.srv.Registry.JoinPlaygroup(id, req.Session); err != nil {
		return nil, err
	}
	return tdf.NewStruct().SetUint("PGID", uint64(id)), nil
}

func (h *handlers) leavePlaygroup(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	id, err := requirePlaygroupID(req.Body)
	if err != nil {
		return nil, err
	}
	return nil, h.srv.Registry.LeavePlaygroup(id, req.Session)
}

func (h *handlers) setPlaygroupAttributes(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	id, err := requirePlaygroupID(req.Body)
	if err != nil {
		return nil, err
	}
	return nil, h.srv.Registry.SetPlaygroupAttributes(id, req.Session, stringMap(req.Body, "ATTR"))
}

func (h *handlers) setMemberAttributes(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	id, err := requirePlaygroupID(req.Body)
	if err != nil {
		return nil, err
	}
	return nil, h.srv.Registry.SetMemberAttributes(id, req.Session, stringMap(req.Body, "ATTR"))
}

func (h *handlers) kickPlaygroupMember(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	id, err := requirePlaygroupID(req.Body)
	if err != nil {
		return nil, err
	}
	personaID, err := requireUint(req.Body, "PID")
	if err != nil {
		return nil, err
	}
	return nil, h.srv.Registry.KickPlaygroupMember(id, req.Session, personaID)
}

func (h *handlers) setPlaygroupJoinControls(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	id, err := requirePlaygroupID(req.Body)
	if err != nil {
		return nil, err
	}
	open, err := requireUint(req.Body, "JOIN")
	if err != nil {
		return nil, err
	}
	return nil, h.srv.Registry.SetJoinControls(id, req.Session, open != 0)
}

func (h *handlers) finalizePlaygroup(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	id, err := requirePlaygroupID(req.Body)
	if err != nil {
		return nil, err
	}
	return nil, h.srv.Registry.FinalizePlaygroup(id, req.Session)
}

func (h *handlers) lookupPlaygroup(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	id, err := requirePlaygroupID(req.Body)
	if err != nil {
		return nil, err
	}
	info, members, err := h.srv.Registry.LookupPlaygroup(id)
	if err != nil {
		return nil, err
	}
	list := tdf.NewList(tdf.TypeStruct)
	for i := range members {
		list.Append(records.Marshal(&members[i]))
	}
	return tdf.NewStruct().
		Set("INFO", records.Marshal(&info)).
		Set("MLST", list), nil
}
