package records

import "github.com/dcrodman/blaze/internal/core/tdf"

type PlaygroupInfo struct {
	Attributes    map[string]string
	Enabled       bool
	JoinControls  uint8
	MemberLimit   uint16
	Name          string
	Topology      uint8
	Owner         uint64
	PlaygroupID   uint64
	PresenceMode  uint8
	UniqueKey     string
	UserPresence  uint8
	UUID          string
	HostSessionID uint32
}

func (p *PlaygroupInfo) Write(s *tdf.Struct) {
	s.Set("ATTR", stringMap(p.Attributes))
	s.SetBool("ENBV", p.Enabled)
	s.SetUint("HSID", uint64(p.HostSessionID))
	s.SetUint("JOIN", uint64(p.JoinControls))
	s.SetUint("MLIM", uint64(p.MemberLimit))
	s.SetString("NAME", p.Name)
	s.SetUint("NTOP", uint64(p.Topology))
	s.SetUint("OWNR", p.Owner)
	s.SetUint("PGID", p.PlaygroupID)
	s.SetUint("PRES", uint64(p.PresenceMode))
	s.SetString("UKEY", p.UniqueKey)
	s.SetUint("UPRS", uint64(p.UserPresence))
	s.SetString("UUID", p.UUID)
}

func (p *PlaygroupInfo) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.StringMap("ATTR", &p.Attributes)
	r.Bool("ENBV", &p.Enabled)
	r.Uint32("HSID", &p.HostSessionID)
	r.Uint8("JOIN", &p.JoinControls)
	r.Uint16("MLIM", &p.MemberLimit)
	r.String("NAME", &p.Name)
	r.Uint8("NTOP", &p.Topology)
	r.Uint64("OWNR", &p.Owner)
	r.Uint64("PGID", &p.PlaygroupID)
	r.Uint8("PRES", &p.PresenceMode)
	r.String("UKEY", &p.UniqueKey)
	r.Uint8("UPRS", &p.UserPresence)
	r.String("UUID", &p.UUID)
	return r.Err()
}

type PlaygroupMemberInfo struct {
	Attributes  map[string]string
	JoinedAt    int64
	Permissions uint32
	Network     *IpPairAddress
	Slot        uint8
	User        UserIdentification
}

func (m *PlaygroupMemberInfo) Write(s *tdf.Struct) {
	s.Set("ATTR", stringMap(m.Attributes))
	s.SetInt("JTIM", m.JoinedAt)
	s.SetUint("PERM", uint64(m.Permissions))
	s.Set("PNET", networkAddress(m.Network))
	s.SetUint("SLOT", uint64(m.Slot))
	s.Set("USER", Marshal(&m.User))
}

func (m *PlaygroupMemberInfo) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.StringMap("ATTR", &m.Attributes)
	r.Int64("JTIM", &m.JoinedAt)
	r.Uint32("PERM", &m.Permissions)
	r.NetworkAddress("PNET", &m.Network)
	r.Uint8("SLOT", &m.Slot)
	r.Struct("USER", &m.User)
	return r.Err()
}
