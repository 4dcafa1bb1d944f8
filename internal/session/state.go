package session

import (
	"errors"
	"fmt"
)

// State is a session's position in the connection lifecycle.
type State int32

const (
	Connected State = iota
	Authenticating
	Authenticated
	InGame
	Disconnected
)

var stateNames = [...]string{"Connected", "Authenticating", "Authenticated", "InGame", "Disconnected"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// IsAuthenticated reports whether the state allows authenticated commands.
func (s State) IsAuthenticated() bool {
	return s == Authenticated || s == InGame
}

var ErrInvalidTransition = errors.New("invalid session state transition")

// Legal edges of the lifecycle. Disconnected is reachable from anywhere and
// is terminal.
var transitions = map[State][]State{
	Connected:      {Authenticating},
	Authenticating: {Authenticated, Connected},
	Authenticated:  {InGame, Connected},
	InGame:         {Authenticated},
}

func canTransition(from, to State) bool {
	if from == Disconnected {
		return false
	}
	if to == Disconnected {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
