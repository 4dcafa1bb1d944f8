// Package session tracks the server side state of every connected client.
package session

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/text/language"

	"github.com/dcrodman/blaze/internal/core/tdf"
	"github.com/dcrodman/blaze/internal/packets"
	"github.com/dcrodman/blaze/internal/qos"
)

// Sender delivers packets to the connection behind a session.
type Sender interface {
	Send(p *packets.Packet) error
}

// Presence is the online presence mode reported to other users.
type Presence uint8

const (
	PresenceOffline Presence = iota
	PresenceOnline
	PresenceInGame
)

// Address is an IPv4 address and port as carried on the wire.
type Address struct {
	IP   uint32
	Port uint16
}

// ExtendedData is the network and client information other users see
// alongside a session's identity.
type ExtendedData struct {
	Internal Address
	External Address
	// Alias of the ping site with the lowest latency.
	BestPingSite string
	Country      string
	Locale       language.Tag
	QoS          qos.Summary
	// Latency in milliseconds to each ping site.
	Latencies        map[string]int
	ClientAttributes map[uint32]int64
	DataMap          map[uint32]int64
	HardwareFlags    uint32
	UserAttributes   uint64
	// Objects this session is associated with, e.g. its current game.
	ObjectIDs []tdf.ObjectID
}

func (e ExtendedData) clone() ExtendedData {
	c := e
	c.Latencies = make(map[string]int, len(e.Latencies))
	for k, v := range e.Latencies {
		c.Latencies[k] = v
	}
	c.ClientAttributes = make(map[uint32]int64, len(e.ClientAttributes))
	for k, v := range e.ClientAttributes {
		c.ClientAttributes[k] = v
	}
	c.DataMap = make(map[uint32]int64, len(e.DataMap))
	for k, v := range e.DataMap {
		c.DataMap[k] = v
	}
	c.ObjectIDs = append([]tdf.ObjectID(nil), e.ObjectIDs...)
	return c
}

// Identity is who a session logged in as.
type Identity struct {
	AccountID   uint64
	PersonaID   uint64
	PersonaName string
	Email       string
}

// Session is the state of one connected client. Relations to games and
// playgroups are kept as ids owned by the game registry.
type Session struct {
	id         uint32
	endpoint   string
	remoteAddr string
	createdAt  time.Time
	sender     Sender

	mu          sync.RWMutex
	state       State
	identity    Identity
	presence    Presence
	ext         ExtendedData
	gameID      uint64
	playgroupID uint64
	authToken   string
}

func newSession(id uint32, endpoint, remoteAddr string, sender Sender) *Session {
	return &Session{
		id:         id,
		endpoint:   endpoint,
		remoteAddr: remoteAddr,
		createdAt:  time.Now(),
		sender:     sender,
		state:      Connected,
		ext: ExtendedData{
			Latencies:        map[string]int{},
			ClientAttributes: map[uint32]int64{},
			DataMap:          map[uint32]int64{},
			QoS:              qos.Summary{NAT: qos.NATUnknown},
		},
	}
}

func (s *Session) ID() uint32         { return s.id }
func (s *Session) Endpoint() string   { return s.endpoint }
func (s *Session) RemoteAddr() string { return s.remoteAddr }

func (s *Session) String() string {
	return fmt.Sprintf("session %d (%s)", s.id, s.remoteAddr)
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) IsAuthenticated() bool {
	return s.State().IsAuthenticated()
}

// Transition moves the session to another state if the lifecycle allows it.
func (s *Session) Transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(to)
}

func (s *Session) transition(to State) error {
	if !canTransition(s.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, to)
	}
	s.state = to
	return nil
}

// BeginLogin marks the session as authenticating.
func (s *Session) BeginLogin() error {
	return s.Transition(Authenticating)
}

// FailLogin returns an authenticating session to Connected.
func (s *Session) FailLogin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Authenticating {
		s.state = Connected
	}
}

// CompleteLogin promotes an authenticating session to Authenticated as id.
func (s *Session) CompleteLogin(id Identity, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.transition(Authenticated); err != nil {
		return err
	}
	s.identity = id
	s.authToken = token
	s.presence = PresenceOnline
	return nil
}

// SwitchPersona changes the persona of an authenticated session.
func (s *Session) SwitchPersona(personaID uint64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.IsAuthenticated() {
		return fmt.Errorf("%w: %s cannot select a persona", ErrInvalidTransition, s.state)
	}
	s.identity.PersonaID = personaID
	s.identity.PersonaName = name
	return nil
}

// Logout returns an authenticated session to Connected. Game and playgroup
// membership must already have been released.
func (s *Session) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.transition(Connected); err != nil {
		return err
	}
	s.identity = Identity{}
	s.authToken = ""
	s.presence = PresenceOffline
	return nil
}

func (s *Session) Identity() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

func (s *Session) PersonaID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity.PersonaID
}

func (s *Session) PersonaName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity.PersonaName
}

func (s *Session) AuthToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authToken
}

func (s *Session) Presence() Presence {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.presence
}

// Extended returns a copy of the session's extended data.
func (s *Session) Extended() ExtendedData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ext.clone()
}

// UpdateExtended applies fn to the session's extended data.
func (s *Session) UpdateExtended(fn func(*ExtendedData)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.ext)
}

// SetQoS records a new QoS summary and the latency to its site.
func (s *Session) SetQoS(summary qos.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ext.QoS = summary
	s.ext.Latencies[summary.SiteID] = int(summary.Latency / time.Millisecond)

	best, bestLatency := "", 0
	for site, latency := range s.ext.Latencies {
		if best == "" || latency < bestLatency || (latency == bestLatency && site < best) {
			best, bestLatency = site, latency
		}
	}
	s.ext.BestPingSite = best
}

func (s *Session) GameID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gameID
}

// EnterGame records membership of a game and moves the session InGame.
func (s *Session) EnterGame(gameID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.transition(InGame); err != nil {
		return err
	}
	s.gameID = gameID
	s.presence = PresenceInGame
	return nil
}

// ExitGame clears the membership of gameID, if it is the current game, and
// returns the session to Authenticated.
func (s *Session) ExitGame(gameID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gameID != gameID {
		return
	}
	s.gameID = 0
	if s.state == InGame {
		s.state = Authenticated
		s.presence = PresenceOnline
	}
}

func (s *Session) PlaygroupID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playgroupID
}

func (s *Session) SetPlaygroupID(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playgroupID = id
}

// ClearPlaygroupID clears the membership of id if it is the current playgroup.
func (s *Session) ClearPlaygroupID(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playgroupID == id {
		s.playgroupID = 0
	}
}

// Send queues p for delivery, returning false if the session is gone.
func (s *Session) Send(p *packets.Packet) bool {
	if s.State() == Disconnected || s.sender == nil {
		return false
	}
	return s.sender.Send(p) == nil
}

// Info is a point in time copy of a session for status queries.
type Info struct {
	ID           uint32    `json:"id"`
	Endpoint     string    `json:"endpoint"`
	RemoteAddr   string    `json:"remote_addr"`
	State        string    `json:"state"`
	PersonaID    uint64    `json:"persona_id,omitempty"`
	PersonaName  string    `json:"persona_name,omitempty"`
	GameID       uint64    `json:"game_id,omitempty"`
	PlaygroupID  uint64    `json:"playgroup_id,omitempty"`
	Locale       string    `json:"locale,omitempty"`
	BestPingSite string    `json:"best_ping_site,omitempty"`
	LatencyMs    int64     `json:"latency_ms,omitempty"`
	NAT          string    `json:"nat"`
	ConnectedAt  time.Time `json:"connected_at"`
}

func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := Info{
		ID:           s.id,
		Endpoint:     s.endpoint,
		RemoteAddr:   s.remoteAddr,
		State:        s.state.String(),
		PersonaID:    s.identity.PersonaID,
		PersonaName:  s.identity.PersonaName,
		GameID:       s.gameID,
		PlaygroupID:  s.playgroupID,
		BestPingSite: s.ext.BestPingSite,
		LatencyMs:    s.ext.QoS.Latency.Milliseconds(),
		NAT:          s.ext.QoS.NAT.String(),
		ConnectedAt:  s.createdAt,
	}
	if s.ext.Locale != language.Und {
		info.Locale = s.ext.Locale.String()
	}
	return info
}
