package game

import (
	"fmt"
	"sort"
	"time"

	"github.com/dcrodman/blaze/internal/blaze/records"
	"github.com/dcrodman/blaze/internal/core/tdf"
	"github.com/dcrodman/blaze/internal/packets"
	"github.com/dcrodman/blaze/internal/session"
)

type GameID uint64

// State is the lifecycle state of a game as known to clients.
type State uint8

const (
	StateNew          State = 0x00
	StateInitializing State = 0x01
	StateVirtual      State = 0x02
	StatePostGame     State = 0x04
	StateMigrating    State = 0x05
	StateDestructing  State = 0x06
	StateResetable    State = 0x07
	StateReplaySetup  State = 0x08
	StatePreGame      State = 0x82
	StateInGame       State = 0x83
)

var stateNames = map[State]string{
	StateNew:          "new",
	StateInitializing: "initializing",
	StateVirtual:      "virtual",
	StatePostGame:     "post_game",
	StateMigrating:    "migrating",
	StateDestructing:  "destructing",
	StateResetable:    "resetable",
	StateReplaySetup:  "replay_setup",
	StatePreGame:      "pre_game",
	StateInGame:       "in_game",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(0x%02X)", uint8(s))
}

func (s State) Valid() bool {
	_, ok := stateNames[s]
	return ok
}

// Topology is the network layout players use to reach each other.
type Topology uint8

const (
	PeerHosted  Topology = 0x00
	Dedicated   Topology = 0x01
	FullMesh    Topology = 0x82
	PartialMesh Topology = 0x83
)

func (t Topology) Valid() bool {
	switch t {
	case PeerHosted, Dedicated, FullMesh, PartialMesh:
		return true
	}
	return false
}

// Presence controls whether a game shows up in members' presence.
type Presence uint8

const (
	PresenceNone Presence = iota
	PresenceStandard
	PresencePrivate
)

func (p Presence) Valid() bool { return p <= PresencePrivate }

// PlayerState is the connection state of a player inside a game.
type PlayerState uint8

const (
	PlayerReserved PlayerState = iota
	PlayerQueued
	PlayerConnecting
	PlayerMigrating
	PlayerConnected
	PlayerKickPending
)

// RemoveReason explains why a player left a game.
type RemoveReason uint8

const (
	ReasonJoinTimeout    RemoveReason = 0
	ReasonConnectionLost RemoveReason = 1
	ReasonGameDestroyed  RemoveReason = 4
	ReasonGameEnded      RemoveReason = 5
	ReasonPlayerLeft     RemoveReason = 6
	ReasonKicked         RemoveReason = 8
)

func (r RemoveReason) String() string {
	switch r {
	case ReasonJoinTimeout:
		return "join_timeout"
	case ReasonConnectionLost:
		return "connection_lost"
	case ReasonGameDestroyed:
		return "game_destroyed"
	case ReasonGameEnded:
		return "game_ended"
	case ReasonPlayerLeft:
		return "player_left"
	case ReasonKicked:
		return "kicked"
	}
	return fmt.Sprintf("reason(%d)", uint8(r))
}

// Spec is what a host asks for when creating a game.
type Spec struct {
	Name         string
	PublicSlots  uint16
	PrivateSlots uint16
	// Personas the game keeps a slot open for.
	ReservedSeats []uint64
	Topology      Topology
	Presence      Presence
	Settings      uint32
	Attributes    map[string]string
	Criteria      map[string]string
	GameType      string
	Version       string
	HostNetwork   []records.IpPairAddress
	Opaque        map[string]tdf.Value
}

func (s *Spec) Capacity() int { return int(s.PublicSlots) + int(s.PrivateSlots) }

func (s *Spec) validate() error {
	switch {
	case s.Capacity() == 0:
		return fmt.Errorf("%w: capacity is zero", ErrInvalidSpec)
	case s.Capacity() > 0xFF:
		return fmt.Errorf("%w: capacity %d exceeds the slot range", ErrInvalidSpec, s.Capacity())
	case s.Capacity() < 1+len(s.ReservedSeats):
		return fmt.Errorf("%w: capacity %d cannot seat the host and %d reserved players",
			ErrInvalidSpec, s.Capacity(), len(s.ReservedSeats))
	case !s.Topology.Valid():
		return fmt.Errorf("%w: unknown topology 0x%02X", ErrInvalidSpec, uint8(s.Topology))
	case !s.Presence.Valid():
		return fmt.Errorf("%w: unknown presence mode %d", ErrInvalidSpec, s.Presence)
	}
	return nil
}

// SpecFromRequest converts a CreateGame request.
func SpecFromRequest(req *records.CreateGameRequest) Spec {
	spec := Spec{
		Name:          req.GameName,
		ReservedSeats: req.ReservedSeats,
		Topology:      Topology(req.Topology),
		Presence:      Presence(req.PresenceMode),
		Settings:      req.Settings,
		Attributes:    req.Attributes,
		Criteria:      req.Criteria,
		GameType:      req.GameType,
		Version:       req.VersionString,
		HostNetwork:   req.HostNetwork,
		Opaque:        req.Opaque,
	}
	switch {
	case len(req.Capacity) > 0:
		spec.PublicSlots = clampSlots(req.Capacity[0])
		if len(req.Capacity) > 1 {
			spec.PrivateSlots = clampSlots(req.Capacity[1])
		}
	default:
		spec.PublicSlots = req.MaxPlayers
	}
	return spec
}

func clampSlots(n uint64) uint16 {
	if n > 0xFFFF {
		return 0xFFFF
	}
	return uint16(n)
}

// Member is a session that can take part in games and playgroups.
type Member interface {
	ID() uint32
	PersonaID() uint64
	PersonaName() string
	Extended() session.ExtendedData
	Send(p *packets.Packet) bool
	GameID() uint64
	EnterGame(gameID uint64) error
	ExitGame(gameID uint64)
	PlaygroupID() uint64
	SetPlaygroupID(id uint64)
	ClearPlaygroupID(id uint64)
}

type player struct {
	member   Member
	slot     uint8
	state    PlayerState
	joinedAt time.Time
}

// Game is a match hosted by one player. Games are only touched with the
// registry lock held.
type Game struct {
	id        GameID
	spec      Spec
	state     State
	settings  uint32
	attrs     map[string]string
	hostSlot  uint8
	createdAt time.Time
	// Indexed by slot; nil entries are free.
	slots []*player
	// Persona id to the slot held for them.
	reserved map[uint64]uint8
}

func newGame(id GameID, spec Spec, now time.Time) *Game {
	g := &Game{
		id:        id,
		spec:      spec,
		state:     StateInitializing,
		settings:  spec.Settings,
		attrs:     make(map[string]string, len(spec.Attributes)),
		createdAt: now,
		slots:     make([]*player, spec.Capacity()),
		reserved:  make(map[uint64]uint8, len(spec.ReservedSeats)),
	}
	for k, v := range spec.Attributes {
		g.attrs[k] = v
	}
	// Slot 0 belongs to the host.
	for i, personaID := range spec.ReservedSeats {
		g.reserved[personaID] = uint8(i + 1)
	}
	return g
}

func (g *Game) players() []*player {
	var out []*player
	for _, p := range g.slots {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (g *Game) find(sessionID uint32) *player {
	for _, p := range g.slots {
		if p != nil && p.member.ID() == sessionID {
			return p
		}
	}
	return nil
}

func (g *Game) findPersona(personaID uint64) *player {
	for _, p := range g.slots {
		if p != nil && p.member.PersonaID() == personaID {
			return p
		}
	}
	return nil
}

func (g *Game) host() *player {
	if int(g.hostSlot) < len(g.slots) {
		return g.slots[g.hostSlot]
	}
	return nil
}

// freeSlot picks the slot for personaID: its reservation if it has one,
// otherwise the lowest slot that is neither taken nor reserved.
func (g *Game) freeSlot(personaID uint64) (uint8, bool) {
	if slot, ok := g.reserved[personaID]; ok && g.slots[slot] == nil {
		return slot, true
	}
	held := make(map[uint8]bool, len(g.reserved))
	for _, slot := range g.reserved {
		held[slot] = true
	}
	for i, p := range g.slots {
		if p == nil && !held[uint8(i)] {
			return uint8(i), true
		}
	}
	return 0, false
}

func (g *Game) seat(m Member, slot uint8, now time.Time) *player {
	p := &player{member: m, slot: slot, state: PlayerConnecting, joinedAt: now}
	g.slots[slot] = p
	delete(g.reserved, m.PersonaID())
	return p
}

func (g *Game) capacity() []uint64 {
	return []uint64{uint64(g.spec.PublicSlots), uint64(g.spec.PrivateSlots)}
}

func (g *Game) replicated() *records.ReplicatedGameData {
	data := &records.ReplicatedGameData{
		Capacity:      g.capacity(),
		Attributes:    g.attrs,
		Criteria:      g.spec.Criteria,
		GameID:        uint64(g.id),
		GameName:      g.spec.Name,
		Settings:      g.settings,
		State:         uint8(g.state),
		GameType:      g.spec.GameType,
		HostNetwork:   g.spec.HostNetwork,
		MaxCapacity:   uint16(g.spec.Capacity()),
		Topology:      uint8(g.spec.Topology),
		PresenceMode:  uint8(g.spec.Presence),
		VersionString: g.spec.Version,
		Opaque:        g.spec.Opaque,
	}
	if h := g.host(); h != nil {
		info := records.HostInfo{PersonaID: h.member.PersonaID(), Slot: h.slot}
		data.Admins = []uint64{info.PersonaID}
		data.PlatformHost = info
		data.TopologyHost = info
		qos := h.member.Extended().QoS
		data.HostQoS = records.NetworkQosData{
			DownstreamBps: qos.DownstreamBps,
			NATType:       uint8(qos.NAT),
			UpstreamBps:   qos.UpstreamBps,
		}
	}
	return data
}

func (g *Game) replicatedPlayer(p *player) records.ReplicatedGamePlayer {
	ext := p.member.Extended()
	return records.ReplicatedGamePlayer{
		GameID:    uint64(g.id),
		Locale:    session.PackLocale(ext.Locale),
		Name:      p.member.PersonaName(),
		PersonaID: p.member.PersonaID(),
		Network:   memberAddress(ext),
		Slot:      p.slot,
		State:     uint8(p.state),
		JoinedAt:  p.joinedAt.Unix(),
		UserID:    p.member.PersonaID(),
	}
}

func memberAddress(ext session.ExtendedData) *records.IpPairAddress {
	if ext.External.IP == 0 && ext.Internal.IP == 0 {
		return nil
	}
	return &records.IpPairAddress{
		External: records.IpAddress{IP: ext.External.IP, Port: ext.External.Port},
		Internal: records.IpAddress{IP: ext.Internal.IP, Port: ext.Internal.Port},
	}
}

// PlayerInfo is a copy of one player for status queries.
type PlayerInfo struct {
	SessionID uint32    `json:"session_id"`
	PersonaID uint64    `json:"persona_id"`
	Name      string    `json:"name"`
	Slot      uint8     `json:"slot"`
	JoinedAt  time.Time `json:"joined_at"`
}

// Info is a point in time copy of a game.
type Info struct {
	ID            GameID            `json:"id"`
	Name          string            `json:"name"`
	State         string            `json:"state"`
	Topology      uint8             `json:"topology"`
	Capacity      int               `json:"capacity"`
	Settings      uint32            `json:"settings"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	HostPersonaID uint64            `json:"host_persona_id"`
	Players       []PlayerInfo      `json:"players"`
	CreatedAt     time.Time         `json:"created_at"`
}

func (g *Game) info() Info {
	info := Info{
		ID:         g.id,
		Name:       g.spec.Name,
		State:      g.state.String(),
		Topology:   uint8(g.spec.Topology),
		Capacity:   g.spec.Capacity(),
		Settings:   g.settings,
		Attributes: make(map[string]string, len(g.attrs)),
		CreatedAt:  g.createdAt,
	}
	for k, v := range g.attrs {
		info.Attributes[k] = v
	}
	if h := g.host(); h != nil {
		info.HostPersonaID = h.member.PersonaID()
	}
	for _, p := range g.players() {
		info.Players = append(info.Players, PlayerInfo{
			SessionID: p.member.ID(),
			PersonaID: p.member.PersonaID(),
			Name:      p.member.PersonaName(),
			Slot:      p.slot,
			JoinedAt:  p.joinedAt,
		})
	}
	sort.Slice(info.Players, func(i, j int) bool { return info.Players[i].Slot < info.Players[j].Slot })
	return info
}
