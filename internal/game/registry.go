// Package game keeps the games and playgroups sessions take part in and
// notifies their members of every change.
package game

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dcrodman/blaze/internal/blaze/records"
)

// Mesh connection status reported by UpdateMeshConnection.
const (
	MeshDisconnected uint8 = 0
	MeshEstablishing uint8 = 1
	MeshConnected    uint8 = 2
)

// Registry owns every game and playgroup. All mutations happen under one lock
// and notifications are queued on member outboxes before it is released, so
// every member sees changes in the order they were made.
//
// Operations taking a "by" member check that it may make the change; a nil
// member is the server itself.
type Registry struct {
	mu            sync.Mutex
	nextGame      GameID
	nextPlaygroup PlaygroupID
	games         map[GameID]*Game
	playgroups    map[PlaygroupID]*Playgroup
	sink          EventSink
	now           func() time.Time
}

func NewRegistry(sink EventSink) *Registry {
	if sink == nil {
		sink = discardSink{}
	}
	return &Registry{
		games:      make(map[GameID]*Game),
		playgroups: make(map[PlaygroupID]*Playgroup),
		sink:       sink,
		now:        time.Now,
	}
}

func (r *Registry) emit(e Event) {
	e.Time = r.now()
	r.sink.Publish(e)
}

func (r *Registry) game(id GameID) (*Game, error) {
	g, ok := r.games[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrGameNotFound, id)
	}
	return g, nil
}

// hostGame looks up a game that by is allowed to change.
func (r *Registry) hostGame(id GameID, by Member) (*Game, error) {
	g, err := r.game(id)
	if err != nil {
		return nil, err
	}
	if by == nil {
		return g, nil
	}
	if h := g.host(); h == nil || h.member.ID() != by.ID() {
		return nil, fmt.Errorf("%w: game %d", ErrNotHost, id)
	}
	return g, nil
}

// CreateGame creates a game with host in slot 0 and sends the host the game
// setup.
func (r *Registry) CreateGame(host Member, spec Spec) (GameID, error) {
	if err := spec.validate(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if host.GameID() != 0 {
		return 0, fmt.Errorf("%w: already in game %d", ErrAlreadyMember, host.GameID())
	}
	id := r.nextGame + 1
	if err := host.EnterGame(uint64(id)); err != nil {
		return 0, err
	}
	r.nextGame = id

	now := r.now()
	g := newGame(id, spec, now)
	g.seat(host, 0, now).state = PlayerConnected
	r.games[id] = g

	host.Send(g.setupNotification())
	r.emit(Event{Kind: GameCreated, GameID: uint64(id), PersonaID: host.PersonaID(), State: g.state.String()})
	return id, nil
}

// JoinGame seats m in the game, announcing it to the existing players and
// sending m the game setup.
func (r *Registry) JoinGame(id GameID, m Member) (uint8, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.game(id)
	if err != nil {
		return 0, err
	}
	if m.GameID() != 0 || g.find(m.ID()) != nil {
		return 0, fmt.Errorf("%w: already in game %d", ErrAlreadyMember, m.GameID())
	}
	if g.state == StateDestructing {
		return 0, fmt.Errorf("%w: game %d is %s", ErrInvalidState, id, g.state)
	}
	slot, ok := g.freeSlot(m.PersonaID())
	if !ok {
		return 0, fmt.Errorf("%w: game %d", ErrGameFull, id)
	}
	if err := m.EnterGame(uint64(id)); err != nil {
		return 0, err
	}

	p := g.seat(m, slot, r.now())
	g.broadcast(g.playerJoiningNotification(p), m)
	m.Send(g.setupNotification())
	r.emit(Event{Kind: PlayerJoined, GameID: uint64(id), PersonaID: m.PersonaID()})
	return slot, nil
}

// LeaveGame removes m from the game. Leaving a game m is not in, or that no
// longer exists, is not an error.
func (r *Registry) LeaveGame(id GameID, m Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.games[id]
	if !ok {
		m.ExitGame(uint64(id))
		return nil
	}
	if p := g.find(m.ID()); p != nil {
		r.removePlayer(g, p, ReasonPlayerLeft)
	}
	return nil
}

// RemovePlayer removes another player from the game.
func (r *Registry) RemovePlayer(id GameID, by Member, personaID uint64, reason RemoveReason) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.game(id)
	if err != nil {
		return err
	}
	p := g.findPersona(personaID)
	if p == nil {
		return fmt.Errorf("%w: persona %d in game %d", ErrNotMember, personaID, id)
	}
	if by != nil && by.ID() != p.member.ID() {
		if g, err = r.hostGame(id, by); err != nil {
			return err
		}
	}
	r.removePlayer(g, p, reason)
	return nil
}

func (r *Registry) removePlayer(g *Game, p *player, reason RemoveReason) {
	wasHost := p.slot == g.hostSlot

	g.broadcast(g.playerRemovedNotification(p.member.PersonaID(), reason), nil)
	g.slots[p.slot] = nil
	p.member.ExitGame(uint64(g.id))
	r.emit(Event{Kind: PlayerLeft, GameID: uint64(g.id), PersonaID: p.member.PersonaID(), Reason: reason.String()})

	remaining := g.players()
	if len(remaining) == 0 {
		delete(r.games, g.id)
		r.emit(Event{Kind: GameDestroyed, GameID: uint64(g.id), Reason: "empty"})
		return
	}
	if wasHost {
		// players() is in slot order.
		g.hostSlot = remaining[0].slot
		g.broadcast(g.hostMigrationNotification(), nil)
		r.emit(Event{Kind: HostMigrated, GameID: uint64(g.id), PersonaID: remaining[0].member.PersonaID()})
	}
}

// DestroyGame removes the game and all of its players.
func (r *Registry) DestroyGame(id GameID, by Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.hostGame(id, by)
	if err != nil {
		return err
	}
	g.state = StateDestructing
	g.broadcast(g.removedNotification(ReasonGameDestroyed), nil)
	for _, p := range g.players() {
		p.member.ExitGame(uint64(id))
	}
	delete(r.games, id)
	r.emit(Event{Kind: GameDestroyed, GameID: uint64(id), Reason: ReasonGameDestroyed.String()})
	return nil
}

func (r *Registry) AdvanceGameState(id GameID, by Member, state State) error {
	if !state.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidState, state)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.hostGame(id, by)
	if err != nil {
		return err
	}
	r.setState(g, state)
	return nil
}

func (r *Registry) setState(g *Game, state State) {
	if g.state == state {
		return
	}
	g.state = state
	g.broadcast(g.stateChangeNotification(), nil)
	r.emit(Event{Kind: GameStateChanged, GameID: uint64(g.id), State: state.String()})
}

// FinalizeGame marks the end of game creation, moving a new game to pre-game.
func (r *Registry) FinalizeGame(id GameID, by Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.hostGame(id, by)
	if err != nil {
		return err
	}
	if g.state == StateInitializing {
		r.setState(g, StatePreGame)
	}
	return nil
}

// SetGameAttributes merges attrs into the game's attributes.
func (r *Registry) SetGameAttributes(id GameID, by Member, attrs map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.hostGame(id, by)
	if err != nil {
		return err
	}
	for k, v := range attrs {
		g.attrs[k] = v
	}
	g.broadcast(g.attribChangeNotification(attrs), nil)
	return nil
}

func (r *Registry) SetGameSettings(id GameID, by Member, settings uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.hostGame(id, by)
	if err != nil {
		return err
	}
	g.settings = settings
	g.broadcast(g.settingsChangeNotification(), nil)
	return nil
}

// SetPlayerCapacity resizes the game. Every seated or reserved slot must
// still fit.
func (r *Registry) SetPlayerCapacity(id GameID, by Member, public, private uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.hostGame(id, by)
	if err != nil {
		return err
	}
	capacity := int(public) + int(private)
	if capacity == 0 || capacity > 0xFF {
		return fmt.Errorf("%w: capacity %d", ErrInvalidSpec, capacity)
	}
	highest := -1
	for _, p := range g.players() {
		if int(p.slot) > highest {
			highest = int(p.slot)
		}
	}
	for _, slot := range g.reserved {
		if int(slot) > highest {
			highest = int(slot)
		}
	}
	if capacity <= highest {
		return fmt.Errorf("%w: capacity %d is below occupied slot %d", ErrInvalidSpec, capacity, highest)
	}

	slots := make([]*player, capacity)
	copy(slots, g.slots)
	g.slots = slots
	g.spec.PublicSlots, g.spec.PrivateSlots = public, private
	g.broadcast(g.capacityChangeNotification(), nil)
	return nil
}

// UpdateMeshConnection records by's connection to other players. Every
// target is checked before any status is applied. Once a joining player
// reports a connection it is marked connected and every player is told it
// finished joining.
func (r *Registry) UpdateMeshConnection(id GameID, by Member, statuses ...records.PlayerConnectionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.game(id)
	if err != nil {
		return err
	}
	self := g.find(by.ID())
	if self == nil {
		return fmt.Errorf("%w: game %d", ErrNotMember, id)
	}
	targets := make([]*player, len(statuses))
	for i, status := range statuses {
		if targets[i] = g.findPersona(status.PersonaID); targets[i] == nil {
			return fmt.Errorf("%w: persona %d in game %d", ErrNotMember, status.PersonaID, id)
		}
	}

	for i, status := range statuses {
		targets[i].member.Send(g.connectionStatusNotification(by, status))
		if status.Status == MeshConnected && self.state != PlayerConnected {
			self.state = PlayerConnected
			g.broadcast(g.playerJoinCompletedNotification(by.PersonaID()), nil)
		}
	}
	return nil
}

// RemoveSession drops every game and playgroup membership held by a
// disconnected session.
func (r *Registry) RemoveSession(sessionID uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, g := range r.games {
		if p := g.find(sessionID); p != nil {
			r.removePlayer(g, p, ReasonConnectionLost)
		}
	}
	for _, pg := range r.playgroups {
		if i, _ := pg.find(sessionID); i >= 0 {
			r.removeMember(pg, i, ReasonConnectionLost)
		}
	}
}

// Game returns a copy of one game.
func (r *Registry) Game(id GameID) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.games[id]
	if !ok {
		return Info{}, false
	}
	return g.info(), true
}

// Games returns a copy of every game, ordered by id.
func (r *Registry) Games() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Info, 0, len(r.games))
	for _, g := range r.games {
		out = append(out, g.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GameData returns the replicated state of a game and its players.
func (r *Registry) GameData(id GameID) (*records.ReplicatedGameData, []records.ReplicatedGamePlayer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.game(id)
	if err != nil {
		return nil, nil, err
	}
	data := g.replicated()
	data.Attributes = copyMap(data.Attributes)
	var players []records.ReplicatedGamePlayer
	for _, p := range g.players() {
		players = append(players, g.replicatedPlayer(p))
	}
	return data, players, nil
}

// Counts returns the number of live games and playgroups.
func (r *Registry) Counts() (games, playgroups int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.games), len(r.playgroups)
}
