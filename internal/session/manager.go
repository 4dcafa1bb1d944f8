package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/text/cases"
)

// ErrPersonaInUse is returned when another session is already logged in as the
// requested persona.
var ErrPersonaInUse = errors.New("persona already logged in")

// Manager owns every live Session.
type Manager struct {
	mu       sync.RWMutex
	nextID   uint32
	sessions map[uint32]*Session
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[uint32]*Session),
	}
}

// Create registers a new session in the Connected state.
func (m *Manager) Create(endpoint, remoteAddr string, sender Sender) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	s := newSession(m.nextID, endpoint, remoteAddr, sender)
	m.sessions[s.id] = s
	return s
}

func (m *Manager) Get(id uint32) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// FindByPersona returns the authenticated session using personaID.
func (m *Manager) FindByPersona(personaID uint64) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.IsAuthenticated() && s.PersonaID() == personaID {
			return s, true
		}
	}
	return nil, false
}

// Called with mu held.
func (m *Manager) personaHolder(personaID uint64, except *Session) (*Session, bool) {
	for _, s := range m.sessions {
		if s != except && s.IsAuthenticated() && s.PersonaID() == personaID {
			return s, true
		}
	}
	return nil, false
}

// Login completes the login of s as id. It fails with ErrPersonaInUse if
// another session holds the persona, checked and claimed under one lock so
// two logins cannot both take it.
func (m *Manager) Login(s *Session, id Identity, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if other, ok := m.personaHolder(id.PersonaID, s); ok {
		return fmt.Errorf("%w: %s is in use by %s", ErrPersonaInUse, id.PersonaName, other)
	}
	return s.CompleteLogin(id, token)
}

// SwitchPersona moves an authenticated session to another persona, with the
// same uniqueness guarantee as Login.
func (m *Manager) SwitchPersona(s *Session, personaID uint64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if other, ok := m.personaHolder(personaID, s); ok {
		return fmt.Errorf("%w: %s is in use by %s", ErrPersonaInUse, name, other)
	}
	return s.SwitchPersona(personaID, name)
}

// FindByName returns the authenticated session whose persona name matches
// name, ignoring case.
func (m *Manager) FindByName(name string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	// A Caser is not safe for concurrent use.
	fold := cases.Fold()
	folded := fold.String(name)
	for _, s := range m.sessions {
		if s.IsAuthenticated() && fold.String(s.PersonaName()) == folded {
			return s, true
		}
	}
	return nil, false
}

// Authenticated returns every session that has logged in, ordered by id.
func (m *Manager) Authenticated() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Session
	for _, s := range m.sessions {
		if s.IsAuthenticated() {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Remove marks the session Disconnected and forgets it. Removing an unknown
// session is a no-op.
func (m *Manager) Remove(id uint32) (*Session, bool) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		_ = s.Transition(Disconnected)
	}
	return s, ok
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Snapshot returns a copy of every session, ordered by id.
func (m *Manager) Snapshot() []Info {
	m.mu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	infos := make([]Info, len(all))
	for i, s := range all {
		infos[i] = s.Info()
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}
