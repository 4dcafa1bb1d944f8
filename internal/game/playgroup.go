package game

import (
	"fmt"
	"sort"
	"time"

	"github.com/dcrodman/blaze/internal/blaze/records"
	"github.com/dcrodman/blaze/internal/session"
)

type PlaygroupID uint64

// PlaygroupSpec is what an owner asks for when creating a playgroup.
type PlaygroupSpec struct {
	Name        string
	MemberLimit uint16
	Open        bool
	Presence    Presence
	Topology    Topology
	UniqueKey   string
	Attributes  map[string]string
}

func (s *PlaygroupSpec) validate() error {
	switch {
	case s.MemberLimit == 0:
		return fmt.Errorf("%w: member limit is zero", ErrInvalidSpec)
	case s.MemberLimit > 0xFF:
		return fmt.Errorf("%w: member limit %d exceeds the slot range", ErrInvalidSpec, s.MemberLimit)
	case !s.Topology.Valid():
		return fmt.Errorf("%w: unknown topology 0x%02X", ErrInvalidSpec, uint8(s.Topology))
	case !s.Presence.Valid():
		return fmt.Errorf("%w: unknown presence mode %d", ErrInvalidSpec, s.Presence)
	}
	return nil
}

type playgroupMember struct {
	member   Member
	slot     uint8
	joinedAt time.Time
	attrs    map[string]string
}

// Playgroup is a party of players that move between games together. The
// first member is always the owner.
type Playgroup struct {
	id        PlaygroupID
	spec      PlaygroupSpec
	open      bool
	finalized bool
	attrs     map[string]string
	createdAt time.Time
	// In join order.
	members []*playgroupMember
}

func newPlaygroup(id PlaygroupID, spec PlaygroupSpec, now time.Time) *Playgroup {
	pg := &Playgroup{
		id:        id,
		spec:      spec,
		open:      spec.Open,
		attrs:     make(map[string]string, len(spec.Attributes)),
		createdAt: now,
	}
	for k, v := range spec.Attributes {
		pg.attrs[k] = v
	}
	return pg
}

func (pg *Playgroup) owner() *playgroupMember {
	if len(pg.members) == 0 {
		return nil
	}
	return pg.members[0]
}

func (pg *Playgroup) isOwner(m Member) bool {
	o := pg.owner()
	return o != nil && o.member.ID() == m.ID()
}

func (pg *Playgroup) find(sessionID uint32) (int, *playgroupMember) {
	for i, m := range pg.members {
		if m.member.ID() == sessionID {
			return i, m
		}
	}
	return -1, nil
}

func (pg *Playgroup) findPersona(personaID uint64) (int, *playgroupMember) {
	for i, m := range pg.members {
		if m.member.PersonaID() == personaID {
			return i, m
		}
	}
	return -1, nil
}

func (pg *Playgroup) freeSlot() uint8 {
	taken := make(map[uint8]bool, len(pg.members))
	for _, m := range pg.members {
		taken[m.slot] = true
	}
	var slot uint8
	for taken[slot] {
		slot++
	}
	return slot
}

func (pg *Playgroup) add(m Member, now time.Time) *playgroupMember {
	pm := &playgroupMember{member: m, slot: pg.freeSlot(), joinedAt: now, attrs: map[string]string{}}
	pg.members = append(pg.members, pm)
	m.SetPlaygroupID(uint64(pg.id))
	return pm
}

func (pg *Playgroup) record() records.PlaygroupInfo {
	info := records.PlaygroupInfo{
		Attributes:   copyMap(pg.attrs),
		Enabled:      pg.finalized,
		MemberLimit:  pg.spec.MemberLimit,
		Name:         pg.spec.Name,
		Topology:     uint8(pg.spec.Topology),
		PlaygroupID:  uint64(pg.id),
		PresenceMode: uint8(pg.spec.Presence),
		UniqueKey:    pg.spec.UniqueKey,
	}
	if pg.open {
		info.JoinControls = 1
	}
	if o := pg.owner(); o != nil {
		info.Owner = o.member.PersonaID()
		info.HostSessionID = o.member.ID()
	}
	return info
}

func (pg *Playgroup) memberRecord(m *playgroupMember) records.PlaygroupMemberInfo {
	ext := m.member.Extended()
	var perms uint32
	if pg.owner() == m {
		perms = 1
	}
	return records.PlaygroupMemberInfo{
		Attributes:  copyMap(m.attrs),
		JoinedAt:    m.joinedAt.Unix(),
		Permissions: perms,
		Network:     memberAddress(ext),
		Slot:        m.slot,
		User: records.UserIdentification{
			Name:   m.member.PersonaName(),
			ID:     m.member.PersonaID(),
			Locale: session.PackLocale(ext.Locale),
		},
	}
}

// PlaygroupMemberInfo is a copy of one member for status queries.
type PlaygroupMemberInfo struct {
	SessionID uint32            `json:"session_id"`
	PersonaID uint64            `json:"persona_id"`
	Name      string            `json:"name"`
	Slot      uint8             `json:"slot"`
	JoinedAt  time.Time         `json:"joined_at"`
	Attrs     map[string]string `json:"attributes,omitempty"`
}

// PlaygroupInfo is a point in time copy of a playgroup.
type PlaygroupInfo struct {
	ID             PlaygroupID           `json:"id"`
	Name           string                `json:"name"`
	Open           bool                  `json:"open"`
	Finalized      bool                  `json:"finalized"`
	MemberLimit    uint16                `json:"member_limit"`
	OwnerPersonaID uint64                `json:"owner_persona_id"`
	Attributes     map[string]string     `json:"attributes,omitempty"`
	Members        []PlaygroupMemberInfo `json:"members"`
	CreatedAt      time.Time             `json:"created_at"`
}

func (pg *Playgroup) info() PlaygroupInfo {
	info := PlaygroupInfo{
		ID:          pg.id,
		Name:        pg.spec.Name,
		Open:        pg.open,
		Finalized:   pg.finalized,
		MemberLimit: pg.spec.MemberLimit,
		Attributes:  copyMap(pg.attrs),
		CreatedAt:   pg.createdAt,
	}
	if o := pg.owner(); o != nil {
		info.OwnerPersonaID = o.member.PersonaID()
	}
	for _, m := range pg.members {
		info.Members = append(info.Members, PlaygroupMemberInfo{
			SessionID: m.member.ID(),
			PersonaID: m.member.PersonaID(),
			Name:      m.member.PersonaName(),
			Slot:      m.slot,
			JoinedAt:  m.joinedAt,
			Attrs:     copyMap(m.attrs),
		})
	}
	return info
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (r *Registry) playgroup(id PlaygroupID) (*Playgroup, error) {
	pg, ok := r.playgroups[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrPlaygroupNotFound, id)
	}
	return pg, nil
}

// ownedPlaygroup looks up a playgroup that by is allowed to change.
func (r *Registry) ownedPlaygroup(id PlaygroupID, by Member) (*Playgroup, error) {
	pg, err := r.playgroup(id)
	if err != nil {
		return nil, err
	}
	if by != nil && !pg.isOwner(by) {
		return nil, fmt.Errorf("%w: playgroup %d", ErrNotOwner, id)
	}
	return pg, nil
}

// CreatePlaygroup creates a playgroup owned by owner.
func (r *Registry) CreatePlaygroup(owner Member, spec PlaygroupSpec) (PlaygroupID, error) {
	if err := spec.validate(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if owner.PlaygroupID() != 0 {
		return 0, fmt.Errorf("%w: already in playgroup %d", ErrAlreadyMember, owner.PlaygroupID())
	}
	r.nextPlaygroup++
	now := r.now()
	pg := newPlaygroup(r.nextPlaygroup, spec, now)
	pg.add(owner, now)
	r.playgroups[pg.id] = pg

	owner.Send(pg.joinNotification())
	r.emit(Event{Kind: PlaygroupCreated, PlaygroupID: uint64(pg.id), PersonaID: owner.PersonaID()})
	return pg.id, nil
}

// JoinPlaygroup adds m to an open playgroup with room for it.
func (r *Registry) JoinPlaygroup(id PlaygroupID, m Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pg, err := r.playgroup(id)
	if err != nil {
		return err
	}
	if i, _ := pg.find(m.ID()); i >= 0 || m.PlaygroupID() != 0 {
		return fmt.Errorf("%w: already in playgroup %d", ErrAlreadyMember, m.PlaygroupID())
	}
	if !pg.open {
		return fmt.Errorf("%w: %d", ErrPlaygroupClosed, id)
	}
	if len(pg.members) >= int(pg.spec.MemberLimit) {
		return fmt.Errorf("%w: %d", ErrPlaygroupFull, id)
	}

	pm := pg.add(m, r.now())
	pg.broadcast(pg.memberJoinedNotification(pm), m)
	m.Send(pg.joinNotification())
	return nil
}

// LeavePlaygroup removes m from the playgroup. Leaving a playgroup m is not
// in, or that no longer exists, is not an error.
func (r *Registry) LeavePlaygroup(id PlaygroupID, m Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pg, ok := r.playgroups[id]
	if !ok {
		m.ClearPlaygroupID(uint64(id))
		return nil
	}
	if i, _ := pg.find(m.ID()); i >= 0 {
		r.removeMember(pg, i, ReasonPlayerLeft)
	}
	return nil
}

// KickPlaygroupMember removes another member from the playgroup.
func (r *Registry) KickPlaygroupMember(id PlaygroupID, by Member, personaID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pg, err := r.ownedPlaygroup(id, by)
	if err != nil {
		return err
	}
	i, _ := pg.findPersona(personaID)
	if i < 0 {
		return fmt.Errorf("%w: persona %d in playgroup %d", ErrNotMember, personaID, id)
	}
	r.removeMember(pg, i, ReasonKicked)
	return nil
}

// removeMember drops the member at index i. The owner's role passes to the
// earliest remaining member and an empty playgroup is dissolved.
func (r *Registry) removeMember(pg *Playgroup, i int, reason RemoveReason) {
	m := pg.members[i]
	pg.broadcast(pg.memberRemovedNotification(m.member.PersonaID(), reason), nil)
	pg.members = append(pg.members[:i], pg.members[i+1:]...)
	m.member.ClearPlaygroupID(uint64(pg.id))

	if len(pg.members) == 0 {
		delete(r.playgroups, pg.id)
		r.emit(Event{Kind: PlaygroupDestroyed, PlaygroupID: uint64(pg.id), Reason: "empty"})
		return
	}
	if i == 0 {
		pg.broadcast(pg.leaderChangeNotification(), nil)
	}
}

// DestroyPlaygroup removes the playgroup and all of its members.
func (r *Registry) DestroyPlaygroup(id PlaygroupID, by Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pg, err := r.ownedPlaygroup(id, by)
	if err != nil {
		return err
	}
	pg.broadcast(pg.destroyNotification(ReasonGameDestroyed), nil)
	for _, m := range pg.members {
		m.member.ClearPlaygroupID(uint64(id))
	}
	delete(r.playgroups, id)
	r.emit(Event{Kind: PlaygroupDestroyed, PlaygroupID: uint64(id), Reason: ReasonGameDestroyed.String()})
	return nil
}

// SetPlaygroupAttributes merges attrs into the playgroup's attributes.
func (r *Registry) SetPlaygroupAttributes(id PlaygroupID, by Member, attrs map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pg, err := r.ownedPlaygroup(id, by)
	if err != nil {
		return err
	}
	for k, v := range attrs {
		pg.attrs[k] = v
	}
	pg.broadcast(pg.attributesSetNotification(attrs), nil)
	return nil
}

// SetMemberAttributes merges attrs into by's own member attributes.
func (r *Registry) SetMemberAttributes(id PlaygroupID, by Member, attrs map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pg, err := r.playgroup(id)
	if err != nil {
		return err
	}
	_, m := pg.find(by.ID())
	if m == nil {
		return fmt.Errorf("%w: playgroup %d", ErrNotMember, id)
	}
	for k, v := range attrs {
		m.attrs[k] = v
	}
	pg.broadcast(pg.memberAttributesSetNotification(by.PersonaID(), attrs), nil)
	return nil
}

// SetJoinControls opens or closes the playgroup to new members.
func (r *Registry) SetJoinControls(id PlaygroupID, by Member, open bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pg, err := r.ownedPlaygroup(id, by)
	if err != nil {
		return err
	}
	if pg.open != open {
		pg.open = open
		pg.broadcast(pg.joinControlsNotification(), nil)
	}
	return nil
}

// FinalizePlaygroup marks the end of playgroup creation.
func (r *Registry) FinalizePlaygroup(id PlaygroupID, by Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pg, err := r.ownedPlaygroup(id, by)
	if err != nil {
		return err
	}
	pg.finalized = true
	return nil
}

// LookupPlaygroup returns the replicated state of a playgroup and its members.
func (r *Registry) LookupPlaygroup(id PlaygroupID) (records.PlaygroupInfo, []records.PlaygroupMemberInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pg, err := r.playgroup(id)
	if err != nil {
		return records.PlaygroupInfo{}, nil, err
	}
	members := make([]records.PlaygroupMemberInfo, 0, len(pg.members))
	for _, m := range pg.members {
		members = append(members, pg.memberRecord(m))
	}
	return pg.record(), members, nil
}

// Playgroups returns a copy of every playgroup, ordered by id.
func (r *Registry) Playgroups() []PlaygroupInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PlaygroupInfo, 0, len(r.playgroups))
	for _, pg := range r.playgroups {
		out = append(out, pg.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
