package game

import (
	"github.com/dcrodman/blaze/internal/blaze/records"
	"github.com/dcrodman/blaze/internal/core/tdf"
	"github.com/dcrodman/blaze/internal/packets"
)

func gameNotification(command uint16, body *tdf.Struct) *packets.Packet {
	return packets.NewNotification(packets.GameManagerComponent, command, body)
}

func playgroupNotification(command uint16, body *tdf.Struct) *packets.Packet {
	return packets.NewNotification(packets.PlaygroupsComponent, command, body)
}

// broadcast sends p to every player except skip, in slot order.
func (g *Game) broadcast(p *packets.Packet, skip Member) {
	for _, pl := range g.players() {
		if pl.member != skip {
			pl.member.Send(p)
		}
	}
}

func (g *Game) setupNotification() *packets.Packet {
	roster := make([]records.ReplicatedGamePlayer, 0, len(g.slots))
	for _, p := range g.players() {
		roster = append(roster, g.replicatedPlayer(p))
	}
	players := tdf.NewList(tdf.TypeStruct)
	for i := range roster {
		players.Append(records.Marshal(&roster[i]))
	}
	body := tdf.NewStruct().
		Set("GAME", records.Marshal(g.replicated())).
		Set("PROS", players)
	return gameNotification(packets.NotifyGameSetup, body)
}

func (g *Game) playerJoiningNotification(p *player) *packets.Packet {
	data := g.replicatedPlayer(p)
	body := tdf.NewStruct().
		SetUint("GID", uint64(g.id)).
		Set("PDAT", records.Marshal(&data))
	return gameNotification(packets.NotifyPlayerJoining, body)
}

func (g *Game) playerJoinCompletedNotification(personaID uint64) *packets.Packet {
	body := tdf.NewStruct().
		SetUint("GID", uint64(g.id)).
		SetUint("PID", personaID)
	return gameNotification(packets.NotifyPlayerJoinCompleted, body)
}

func (g *Game) playerRemovedNotification(personaID uint64, reason RemoveReason) *packets.Packet {
	body := tdf.NewStruct().
		SetUint("GID", uint64(g.id)).
		SetUint("PID", personaID).
		SetUint("REAS", uint64(reason))
	return gameNotification(packets.NotifyPlayerRemoved, body)
}

func (g *Game) removedNotification(reason RemoveReason) *packets.Packet {
	body := tdf.NewStruct().
		SetUint("GID", uint64(g.id)).
		SetUint("REAS", uint64(reason))
	return gameNotification(packets.NotifyGameRemoved, body)
}

func (g *Game) stateChangeNotification() *packets.Packet {
	body := tdf.NewStruct().
		SetUint("GID", uint64(g.id)).
		SetUint("GSTA", uint64(g.state))
	return gameNotification(packets.NotifyGameStateChange, body)
}

func (g *Game) attribChangeNotification(changed map[string]string) *packets.Packet {
	body := tdf.NewStruct().
		SetUint("GID", uint64(g.id)).
		Set("ATTR", tdf.StringMap(changed))
	return gameNotification(packets.NotifyGameAttribChange, body)
}

func (g *Game) settingsChangeNotification() *packets.Packet {
	body := tdf.NewStruct().
		SetUint("GID", uint64(g.id)).
		SetUint("GSET", uint64(g.settings))
	return gameNotification(packets.NotifyGameSettingsChange, body)
}

func (g *Game) capacityChangeNotification() *packets.Packet {
	body := tdf.NewStruct().
		SetUint("GID", uint64(g.id)).
		Set("CAP", tdf.UintList(g.capacity()...))
	return gameNotification(packets.NotifyGameCapacityChange, body)
}

func (g *Game) hostMigrationNotification() *packets.Packet {
	body := tdf.NewStruct().SetUint("GID", uint64(g.id))
	if h := g.host(); h != nil {
		body.SetUint("HPID", h.member.PersonaID())
	}
	return gameNotification(packets.NotifyHostMigrationFinish, body)
}

func (g *Game) connectionStatusNotification(from Member, status records.PlayerConnectionStatus) *packets.Packet {
	body := tdf.NewStruct().
		SetUint("GID", uint64(g.id)).
		SetUint("PID", from.PersonaID()).
		Set("STAT", records.Marshal(&status))
	return gameNotification(packets.NotifyPlayerConnectionStat, body)
}

func (pg *Playgroup) broadcast(p *packets.Packet, skip Member) {
	for _, m := range pg.members {
		if m.member != skip {
			m.member.Send(p)
		}
	}
}

func (pg *Playgroup) joinNotification() *packets.Packet {
	info := pg.record()
	members := tdf.NewList(tdf.TypeStruct)
	for _, m := range pg.members {
		rec := pg.memberRecord(m)
		members.Append(records.Marshal(&rec))
	}
	body := tdf.NewStruct().
		Set("INFO", records.Marshal(&info)).
		Set("MLST", members)
	return playgroupNotification(packets.NotifyJoinPlaygroup, body)
}

func (pg *Playgroup) memberJoinedNotification(m *playgroupMember) *packets.Packet {
	rec := pg.memberRecord(m)
	body := tdf.NewStruct().
		Set("MEMB", records.Marshal(&rec)).
		SetUint("PGID", uint64(pg.id))
	return playgroupNotification(packets.NotifyMemberJoinedPlaygroup, body)
}

func (pg *Playgroup) memberRemovedNotification(personaID uint64, reason RemoveReason) *packets.Packet {
	body := tdf.NewStruct().
		SetUint("PGID", uint64(pg.id)).
		SetUint("PID", personaID).
		SetUint("REAS", uint64(reason))
	return playgroupNotification(packets.NotifyMemberRemovedPlaygroup, body)
}

func (pg *Playgroup) destroyNotification(reason RemoveReason) *packets.Packet {
	body := tdf.NewStruct().
		SetUint("PGID", uint64(pg.id)).
		SetUint("REAS", uint64(reason))
	return playgroupNotification(packets.NotifyDestroyPlaygroup, body)
}

func (pg *Playgroup) attributesSetNotification(changed map[string]string) *packets.Packet {
	body := tdf.NewStruct().
		Set("ATTR", tdf.StringMap(changed)).
		SetUint("PGID", uint64(pg.id))
	return playgroupNotification(packets.NotifyPlaygroupAttributesSet, body)
}

func (pg *Playgroup) memberAttributesSetNotification(personaID uint64, changed map[string]string) *packets.Packet {
	body := tdf.NewStruct().
		Set("ATTR", tdf.StringMap(changed)).
		SetUint("EID", personaID).
		SetUint("PGID", uint64(pg.id))
	return playgroupNotification(packets.NotifyMemberAttributesSet, body)
}

func (pg *Playgroup) leaderChangeNotification() *packets.Packet {
	body := tdf.NewStruct().
		SetUint("LID", pg.owner().member.PersonaID()).
		SetUint("PGID", uint64(pg.id))
	return playgroupNotification(packets.NotifyLeaderChange, body)
}

func (pg *Playgroup) joinControlsNotification() *packets.Packet {
	body := tdf.NewStruct().
		SetBool("OPEN", pg.open).
		SetUint("PGID", uint64(pg.id))
	return playgroupNotification(packets.NotifyJoinControlsChange, body)
}
