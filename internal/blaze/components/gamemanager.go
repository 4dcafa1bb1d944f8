package components

import (
	"context"

	"github.com/dcrodman/blaze/internal/blaze"
	"github.com/dcrodman/blaze/internal/blaze/records"
	"github.com/dcrodman/blaze/internal/core/tdf"
	"github.com/dcrodman/blaze/internal/game"
	"github.com/dcrodman/blaze/internal/packets"
)

func gameIDReply(id game.GameID) *tdf.Struct {
	return tdf.NewStruct().SetUint("GID", uint64(id))
}

func requireGameID(body *tdf.Struct) (game.GameID, error) {
	id, err := requireUint(body, "GID")
	return game.GameID(id), err
}

func (h *handlers) createGame(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	var cgr records.CreateGameRequest
	if err := req.Read(&cgr); err != nil {
		return nil, err
	}
	id, err := h.srv.Registry.CreateGame(req.Session, game.SpecFromRequest(&cgr))
	if err != nil {
		return nil, err
	}
	req.Logger.Infof("%s created game %d (%s)", req.Session, id, cgr.GameName)
	return gameIDReply(id), nil
}

func (h *handlers) destroyGame(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	id, err := requireGameID(req.Body)
	if err != nil {
		return nil, err
	}
	if err := h.srv.Registry.DestroyGame(id, req.Session); err != nil {
		return nil, err
	}
	return gameIDReply(id), nil
}

func (h *handlers) advanceGameState(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	id, err := requireGameID(req.Body)
	if err != nil {
		return nil, err
	}
	state, err := requireUint(req.Body, "GSTA")
	if err != nil {
		return nil, err
	}
	if state > 0xFF || !game.State(state).Valid() {
		return nil, blaze.Errorf(packets.ErrorInvalidGameState, "unknown game state %d", state)
	}
	return nil, h.srv.Registry.AdvanceGameState(id, req.Session, game.State(state))
}

func (h *handlers) setGameSettings(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	id, err := requireGameID(req.Body)
	if err != nil {
		return nil, err
	}
	settings, err := requireUint(req.Body, "GSET")
	if err != nil {
		return nil, err
	}
	return nil, h.srv.Registry.SetGameSettings(id, req.Session, uint32(settings))
}

func (h *handlers) setPlayerCapacity(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	id, err := requireGameID(req.Body)
	if err != nil {
		return nil, err
	}
	caps, ok := req.Body.List("PCAP")
	if !ok || caps.Len() == 0 {
		return nil, blaze.Errorf(packets.ErrorInvalidGameSpec, "missing PCAP")
	}
	slots := caps.Uints()
	if len(slots) != caps.Len() || len(slots) > 2 {
		return nil, blaze.Errorf(packets.ErrorInvalidGameSpec, "PCAP must hold one or two slot counts")
	}
	var public, private uint64
	public = slots[0]
	if len(slots) > 1 {
		private = slots[1]
	}
	if public > 0xFF || private > 0xFF {
		return nil, blaze.Errorf(packets.ErrorInvalidGameSpec, "capacity %d/%d out of range", public, private)
	}
	return nil, h.srv.Registry.SetPlayerCapacity(id, req.Session, uint16(public), uint16(private))
}

func (h *handlers) setGameAttributes(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	id, err := requireGameID(req.Body)
	if err != nil {
		return nil, err
	}
	return nil, h.srv.Registry.SetGameAttributes(id, req.Session, stringMap(req.Body, "ATTR"))
}

func (h *handlers) joinGame(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	id, err := requireGameID(req.Body)
	if err != nil {
		return nil, err
	}
	slot, err := h.srv.Registry.JoinGame(id, req.Session)
	if err != nil {
		return nil, err
	}
	req.Logger.Infof("%s joined game %d in slot %d", req.Session, id, slot)
	return gameIDReply(id).SetUint("SLOT", uint64(slot)), nil
}

func (h *handlers) removePlayer(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	id, err := requireGameID(req.Body)
	if err != nil {
		return nil, err
	}
	// A player removing itself is a leave, which succeeds even when repeated.
	personaID, ok := req.Body.Uint("PID")
	if !ok || personaID == req.Session.PersonaID() {
		return nil, h.srv.Registry.LeaveGame(id, req.Session)
	}
	reason := game.RemoveReason(req.Body.UintOr("REAS", uint64(game.ReasonPlayerLeft)))
	return nil, h.srv.Registry.RemovePlayer(id, req.Session, personaID, reason)
}

func (h *handlers) finalizeGameCreation(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	id, err := requireGameID(req.Body)
	if err != nil {
		return nil, err
	}
	return nil, h.srv.Registry.FinalizeGame(id, req.Session)
}

// updateMeshConnection reports the sender's connection to each listed player.
func (h *handlers) updateMeshConnection(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	id, err := requireGameID(req.Body)
	if err != nil {
		return nil, err
	}
	targets, ok := req.Body.List("TARG")
	if !ok {
		return nil, blaze.Errorf(packets.ErrorInvalidRequest, "missing TARG")
	}
	if targets.Elem() != tdf.TypeStruct {
		return nil, blaze.Errorf(packets.ErrorInvalidRequest, "TARG is not a list of structs")
	}
	var statuses []records.PlayerConnectionStatus
	for _, st := range targets.Structs() {
		var status records.PlayerConnectionStatus
		if err := status.Read(st); err != nil {
			return nil, blaze.Errorf(packets.ErrorInvalidRequest, "%v", err)
		}
		statuses = append(statuses, status)
	}
	return nil, h.srv.Registry.UpdateMeshConnection(id, req.Session, statuses...)
}
