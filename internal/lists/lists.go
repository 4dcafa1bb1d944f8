// Package lists stores the association lists (friends, blocked players and
// recently met players) each persona keeps.
package lists

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/dcrodman/blaze/internal/core/data"
)

var (
	ErrListNotFound   = errors.New("list not found")
	ErrListFull       = errors.New("list is full")
	ErrMemberNotFound = errors.New("list member not found")
)

// Definition describes one kind of list.
type Definition struct {
	Name    string
	Type    uint32
	MaxSize uint32
	// Rollover lists evict their oldest member instead of refusing new ones.
	Rollover bool
}

var (
	Friends       = Definition{Name: "friendList", Type: 1, MaxSize: 100}
	Blocked       = Definition{Name: "blockList", Type: 2, MaxSize: 100}
	RecentPlayers = Definition{Name: "recentPlayerList", Type: 3, MaxSize: 50, Rollover: true}
)

// Member is one entry of a list.
type Member struct {
	PersonaID uint64
	Name      string
	AddedAt   time.Time
}

// Store keeps list membership in the database and subscriptions in memory.
type Store struct {
	db   *gorm.DB
	defs []Definition
	now  func() time.Time

	mu   sync.Mutex
	subs map[uint64]map[uint32]bool
}

// NewStore returns a store serving defs, or the standard lists if none are given.
func NewStore(db *gorm.DB, defs ...Definition) *Store {
	if len(defs) == 0 {
		defs = []Definition{Friends, Blocked, RecentPlayers}
	}
	return &Store{
		db:   db,
		defs: defs,
		now:  time.Now,
		subs: make(map[uint64]map[uint32]bool),
	}
}

// Definitions returns every list the store serves.
func (s *Store) Definitions() []Definition {
	return append([]Definition(nil), s.defs...)
}

// Lookup finds a list by name or, when name is empty, by type.
func (s *Store) Lookup(name string, listType uint32) (Definition, error) {
	for _, d := range s.defs {
		if name != "" && strings.EqualFold(d.Name, name) {
			return d, nil
		}
		if name == "" && d.Type == listType {
			return d, nil
		}
	}
	return Definition{}, fmt.Errorf("%w: %q (type %d)", ErrListNotFound, name, listType)
}

func toMember(e data.ListEntry) Member {
	return Member{PersonaID: e.MemberID, Name: e.MemberName, AddedAt: e.AddedAt}
}

// Members returns the members of owner's list, oldest first.
func (s *Store) Members(owner uint64, def Definition) ([]Member, error) {
	entries, err := data.FindListEntries(s.db, owner, def.Type)
	if err != nil {
		return nil, fmt.Errorf("error loading %s of %d: %w", def.Name, owner, err)
	}
	members := make([]Member, 0, len(entries))
	for _, e := range entries {
		members = append(members, toMember(e))
	}
	return members, nil
}

// Add puts members on owner's list and returns the ones that were not
// already there. Owners cannot list themselves.
func (s *Store) Add(owner uint64, def Definition, members []Member) ([]Member, error) {
	var added []Member
	err := s.db.Transaction(func(tx *gorm.DB) error {
		existing, err := data.FindListEntries(tx, owner, def.Type)
		if err != nil {
			return err
		}
		present := make(map[uint64]bool, len(existing))
		for _, e := range existing {
			present[e.MemberID] = true
		}

		for _, m := range members {
			if m.PersonaID == owner || present[m.PersonaID] {
				continue
			}
			if uint32(len(existing)) >= def.MaxSize {
				if !def.Rollover || len(existing) == 0 {
					return fmt.Errorf("%w: %s holds %d members", ErrListFull, def.Name, def.MaxSize)
				}
				oldest := existing[0]
				if _, err := data.DeleteListEntry(tx, owner, def.Type, oldest.MemberID); err != nil {
					return err
				}
				delete(present, oldest.MemberID)
				existing = existing[1:]
			}

			entry := data.ListEntry{
				OwnerID:    owner,
				ListType:   def.Type,
				MemberID:   m.PersonaID,
				MemberName: m.Name,
				AddedAt:    s.now(),
			}
			if err := data.CreateListEntry(tx, &entry); err != nil {
				return err
			}
			existing = append(existing, entry)
			present[m.PersonaID] = true
			added = append(added, toMember(entry))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error adding to %s of %d: %w", def.Name, owner, err)
	}
	return added, nil
}

// Remove takes personas off owner's list and returns the members removed.
// It fails with ErrMemberNotFound if none of them were listed.
func (s *Store) Remove(owner uint64, def Definition, personaIDs []uint64) ([]Member, error) {
	var removed []Member
	err := s.db.Transaction(func(tx *gorm.DB) error {
		existing, err := data.FindListEntries(tx, owner, def.Type)
		if err != nil {
			return err
		}
		byID := make(map[uint64]data.ListEntry, len(existing))
		for _, e := range existing {
			byID[e.MemberID] = e
		}
		for _, id := range personaIDs {
			e, ok := byID[id]
			if !ok {
				continue
			}
			if _, err := data.DeleteListEntry(tx, owner, def.Type, id); err != nil {
				return err
			}
			delete(byID, id)
			removed = append(removed, toMember(e))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error removing from %s of %d: %w", def.Name, owner, err)
	}
	if len(removed) == 0 && len(personaIDs) > 0 {
		return nil, ErrMemberNotFound
	}
	return removed, nil
}

// Set replaces the contents of owner's list.
func (s *Store) Set(owner uint64, def Definition, members []Member) ([]Member, error) {
	if uint32(len(members)) > def.MaxSize && !def.Rollover {
		return nil, fmt.Errorf("%w: %s holds %d members", ErrListFull, def.Name, def.MaxSize)
	}
	if err := s.Clear(owner, def); err != nil {
		return nil, err
	}
	return s.Add(owner, def, members)
}

// Clear empties owner's list.
func (s *Store) Clear(owner uint64, def Definition) error {
	if err := data.ClearListEntries(s.db, owner, def.Type); err != nil {
		return fmt.Errorf("error clearing %s of %d: %w", def.Name, owner, err)
	}
	return nil
}

// Subscribe asks for membership updates of owner's lists.
func (s *Store) Subscribe(owner uint64, def Definition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[owner] == nil {
		s.subs[owner] = make(map[uint32]bool)
	}
	s.subs[owner][def.Type] = true
}

func (s *Store) Unsubscribe(owner uint64, def Definition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs[owner], def.Type)
	if len(s.subs[owner]) == 0 {
		delete(s.subs, owner)
	}
}

func (s *Store) Subscribed(owner uint64, def Definition) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[owner][def.Type]
}

// Forget drops every subscription held by owner.
func (s *Store) Forget(owner uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, owner)
}
