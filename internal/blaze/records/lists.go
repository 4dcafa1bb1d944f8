package records

import "github.com/dcrodman/blaze/internal/core/tdf"

type ListIdentification struct {
	Name string
	Type uint32
}

func (l *ListIdentification) Write(s *tdf.Struct) {
	s.SetString("LNM", l.Name)
	s.SetUint("TYPE", uint64(l.Type))
}

func (l *ListIdentification) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.String("LNM", &l.Name)
	r.Uint32("TYPE", &l.Type)
	return r.Err()
}

type ListInfo struct {
	Owner   tdf.ObjectID
	Flags   uint32
	ID      ListIdentification
	MaxSize uint32
	PairID  ListIdentification
}

func (l *ListInfo) Write(s *tdf.Struct) {
	s.SetObjectID("BOID", l.Owner)
	s.SetUint("FLGS", uint64(l.Flags))
	s.Set("LID", Marshal(&l.ID))
	s.SetUint("LMS", uint64(l.MaxSize))
	s.Set("PRID", Marshal(&l.PairID))
}

func (l *ListInfo) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.ObjectID("BOID", &l.Owner)
	r.Uint32("FLGS", &l.Flags)
	r.Struct("LID", &l.ID)
	r.Uint32("LMS", &l.MaxSize)
	r.Struct("PRID", &l.PairID)
	return r.Err()
}

type ListMemberId struct {
	BlazeID         uint64
	PersonaName     string
	ExternalRef     uint64
	ExternalRefType uint8
}

func (m *ListMemberId) Write(s *tdf.Struct) {
	s.SetUint("BLID", m.BlazeID)
	s.SetString("PNAM", m.PersonaName)
	s.SetUint("XREF", m.ExternalRef)
	s.SetUint("XTYP", uint64(m.ExternalRefType))
}

func (m *ListMemberId) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.Uint64("BLID", &m.BlazeID)
	r.String("PNAM", &m.PersonaName)
	r.Uint64("XREF", &m.ExternalRef)
	r.Uint8("XTYP", &m.ExternalRefType)
	return r.Err()
}

type ListMemberInfo struct {
	Member ListMemberId
	// Seconds since the epoch.
	AddedAt int64
}

func (m *ListMemberInfo) Write(s *tdf.Struct) {
	s.Set("LMID", Marshal(&m.Member))
	s.SetInt("TIME", m.AddedAt)
}

func (m *ListMemberInfo) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.Struct("LMID", &m.Member)
	r.Int64("TIME", &m.AddedAt)
	return r.Err()
}

// List membership operations carried in ListMemberInfoUpdate.
const (
	ListMemberAdded   uint8 = 1
	ListMemberRemoved uint8 = 2
)

type ListMemberInfoUpdate struct {
	ListID    ListIdentification
	Member    ListMemberInfo
	Operation uint8
}

func (u *ListMemberInfoUpdate) Write(s *tdf.Struct) {
	s.Set("LID", Marshal(&u.ListID))
	s.Set("LMEM", Marshal(&u.Member))
	s.SetUint("UPDT", uint64(u.Operation))
}

func (u *ListMemberInfoUpdate) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.Struct("LID", &u.ListID)
	r.Struct("LMEM", &u.Member)
	r.Uint8("UPDT", &u.Operation)
	return r.Err()
}

type ListMembers struct {
	Info    ListInfo
	Members []ListMemberInfo
	Offset  uint32
	Total   uint32
}

func (l *ListMembers) Write(s *tdf.Struct) {
	s.Set("INFO", Marshal(&l.Info))
	s.Set("MEML", structList(l.Members))
	s.SetUint("OFRC", uint64(l.Offset))
	s.SetUint("TOCT", uint64(l.Total))
}

func (l *ListMembers) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.Struct("INFO", &l.Info)
	readStructList(r, "MEML", &l.Members)
	r.Uint32("OFRC", &l.Offset)
	r.Uint32("TOCT", &l.Total)
	return r.Err()
}
