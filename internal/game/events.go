package game

import "time"

type EventKind string

const (
	GameCreated        EventKind = "game_created"
	GameDestroyed      EventKind = "game_destroyed"
	GameStateChanged   EventKind = "game_state_changed"
	PlayerJoined       EventKind = "player_joined"
	PlayerLeft         EventKind = "player_left"
	HostMigrated       EventKind = "host_migrated"
	PlaygroupCreated   EventKind = "playgroup_created"
	PlaygroupDestroyed EventKind = "playgroup_destroyed"
)

// Event describes one change to a game or playgroup.
type Event struct {
	Kind        EventKind `json:"kind"`
	GameID      uint64    `json:"game_id,omitempty"`
	PlaygroupID uint64    `json:"playgroup_id,omitempty"`
	PersonaID   uint64    `json:"persona_id,omitempty"`
	State       string    `json:"state,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Time        time.Time `json:"time"`
}

// EventSink receives registry events. Publish is called with the registry
// lock held and must not block.
type EventSink interface {
	Publish(Event)
}

type discardSink struct{}

func (discardSink) Publish(Event) {}
