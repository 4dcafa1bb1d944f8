package records

import (
	"sort"

	"github.com/dcrodman/blaze/internal/core/tdf"
)

// OpaqueGameFields are game fields with no known meaning. They are stored
// and replicated exactly as the creating client sent them.
var OpaqueGameFields = []string{"GPVH", "GSID", "HSES", "PSAS", "SEED"}

func readOpaque(s *tdf.Struct) map[string]tdf.Value {
	var out map[string]tdf.Value
	for _, label := range OpaqueGameFields {
		if v, ok := s.Get(label); ok {
			if out == nil {
				out = make(map[string]tdf.Value)
			}
			out[label] = v
		}
	}
	return out
}

func writeOpaque(s *tdf.Struct, opaque map[string]tdf.Value) {
	labels := make([]string, 0, len(opaque))
	for label := range opaque {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		s.Set(label, opaque[label])
	}
}

func networkAddressList(addrs []IpPairAddress) *tdf.List {
	l := tdf.NewList(tdf.TypeUnion)
	for i := range addrs {
		l.Append(networkAddress(&addrs[i]))
	}
	return l
}

func (r *fieldReader) NetworkAddressList(label string, dst *[]IpPairAddress) {
	l, ok := r.list(label, tdf.TypeUnion)
	if !ok {
		return
	}
	var out []IpPairAddress
	for i, v := range l.Items() {
		u, ok := v.(*tdf.Union)
		if !ok || !u.IsSet() || u.Active != NetworkAddressIpPair {
			continue
		}
		st, ok := u.Value.(*tdf.Struct)
		if !ok {
			r.fail(label, "entry %d is not a struct", i)
			return
		}
		var addr IpPairAddress
		if err := addr.Read(st); err != nil {
			if r.err == nil {
				r.err = err
			}
			return
		}
		out = append(out, addr)
	}
	*dst = out
}

// HostInfo identifies the player hosting a game.
type HostInfo struct {
	PersonaID uint64
	Slot      uint8
}

func (h *HostInfo) Write(s *tdf.Struct) {
	s.SetUint("HPID", h.PersonaID)
	s.SetUint("HSLT", uint64(h.Slot))
}

func (h *HostInfo) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.Uint64("HPID", &h.PersonaID)
	r.Uint8("HSLT", &h.Slot)
	return r.Err()
}

// CreateGameRequest is the body of GameManager CreateGame.
type CreateGameRequest struct {
	Admins           []uint64
	Attributes       map[string]string
	Criteria         map[string]string
	GameName         string
	Settings         uint32
	GameType         string
	GameURL          string
	HostNetwork      []IpPairAddress
	IgnoreCriteria   bool
	MeshAttributes   map[string]string
	NotResettable    bool
	Topology         uint8
	PlayerAttributes map[string]string
	PersistedID      string
	PersistedSecret  []byte
	// Public and private slot capacities.
	Capacity      []uint64
	MaxPlayers    uint16
	PresenceMode  uint8
	QueueCapacity uint16
	// Personas with a seat reserved for them.
	ReservedSeats []uint64
	SlotType      uint8
	TeamCapacity  uint16
	TeamIDs       []uint64
	TeamIndex     uint16
	VersionString string
	Opaque        map[string]tdf.Value
}

func (c *CreateGameRequest) Write(s *tdf.Struct) {
	s.Set("ADMN", uint64List(c.Admins))
	s.Set("ATTR", stringMap(c.Attributes))
	s.Set("CRIT", stringMap(c.Criteria))
	s.SetString("GNAM", c.GameName)
	s.SetUint("GSET", uint64(c.Settings))
	s.SetString("GTYP", c.GameType)
	s.SetString("GURL", c.GameURL)
	s.Set("HNET", networkAddressList(c.HostNetwork))
	s.SetBool("IGNO", c.IgnoreCriteria)
	s.Set("MATR", stringMap(c.MeshAttributes))
	s.SetBool("NRES", c.NotResettable)
	s.SetUint("NTOP", uint64(c.Topology))
	s.Set("PATT", stringMap(c.PlayerAttributes))
	s.Set("PCAP", uint64List(c.Capacity))
	s.SetString("PGID", c.PersistedID)
	s.SetBlob("PGSC", c.PersistedSecret)
	s.SetUint("PMAX", uint64(c.MaxPlayers))
	s.SetUint("PRES", uint64(c.PresenceMode))
	s.SetUint("QCAP", uint64(c.QueueCapacity))
	s.Set("SEAT", uint64List(c.ReservedSeats))
	s.SetUint("SLOT", uint64(c.SlotType))
	s.SetUint("TCAP", uint64(c.TeamCapacity))
	s.Set("TIDS", uint64List(c.TeamIDs))
	s.SetUint("TIDX", uint64(c.TeamIndex))
	s.SetString("VSTR", c.VersionString)
	writeOpaque(s, c.Opaque)
}

func (c *CreateGameRequest) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.Uint64List("ADMN", &c.Admins)
	r.StringMap("ATTR", &c.Attributes)
	r.StringMap("CRIT", &c.Criteria)
	r.String("GNAM", &c.GameName)
	r.Uint32("GSET", &c.Settings)
	r.String("GTYP", &c.GameType)
	r.String("GURL", &c.GameURL)
	r.NetworkAddressList("HNET", &c.HostNetwork)
	r.Bool("IGNO", &c.IgnoreCriteria)
	r.StringMap("MATR", &c.MeshAttributes)
	r.Bool("NRES", &c.NotResettable)
	r.Uint8("NTOP", &c.Topology)
	r.StringMap("PATT", &c.PlayerAttributes)
	r.Uint64List("PCAP", &c.Capacity)
	r.String("PGID", &c.PersistedID)
	r.Bytes("PGSC", &c.PersistedSecret)
	r.Uint16("PMAX", &c.MaxPlayers)
	r.Uint8("PRES", &c.PresenceMode)
	r.Uint16("QCAP", &c.QueueCapacity)
	r.Uint64List("SEAT", &c.ReservedSeats)
	r.Uint8("SLOT", &c.SlotType)
	r.Uint16("TCAP", &c.TeamCapacity)
	r.Uint64List("TIDS", &c.TeamIDs)
	r.Uint16("TIDX", &c.TeamIndex)
	r.String("VSTR", &c.VersionString)
	c.Opaque = readOpaque(s)
	return r.Err()
}

// ReplicatedGameData is the state of a game as replicated to its members.
type ReplicatedGameData struct {
	Admins         []uint64
	Attributes     map[string]string
	Capacity       []uint64
	Criteria       map[string]string
	GameID         uint64
	GameName       string
	Settings       uint32
	State          uint8
	GameType       string
	HostNetwork    []IpPairAddress
	IgnoreCriteria bool
	MaxCapacity    uint16
	HostQoS        NetworkQosData
	NotResettable  bool
	Topology       uint8
	PersistedID    string
	PlatformHost   HostInfo
	PresenceMode   uint8
	QueueCapacity  uint16
	TeamCapacity   uint16
	TopologyHost   HostInfo
	TeamIDs        []uint64
	UUID           string
	VersionString  string
	Opaque         map[string]tdf.Value
}

func (g *ReplicatedGameData) Write(s *tdf.Struct) {
	s.Set("ADMN", uint64List(g.Admins))
	s.Set("ATTR", stringMap(g.Attributes))
	s.Set("CAP", uint64List(g.Capacity))
	s.Set("CRIT", stringMap(g.Criteria))
	s.SetUint("GID", g.GameID)
	s.SetString("GNAM", g.GameName)
	s.SetUint("GSET", uint64(g.Settings))
	s.SetUint("GSTA", uint64(g.State))
	s.SetString("GTYP", g.GameType)
	s.Set("HNET", networkAddressList(g.HostNetwork))
	s.SetBool("IGNO", g.IgnoreCriteria)
	s.SetUint("MCAP", uint64(g.MaxCapacity))
	s.Set("NQOS", Marshal(&g.HostQoS))
	s.SetBool("NRES", g.NotResettable)
	s.SetUint("NTOP", uint64(g.Topology))
	s.SetString("PGID", g.PersistedID)
	s.Set("PHST", Marshal(&g.PlatformHost))
	s.SetUint("PRES", uint64(g.PresenceMode))
	s.SetUint("QCAP", uint64(g.QueueCapacity))
	s.SetUint("TCAP", uint64(g.TeamCapacity))
	s.Set("THST", Marshal(&g.TopologyHost))
	s.Set("TIDS", uint64List(g.TeamIDs))
	s.SetString("UUID", g.UUID)
	s.SetString("VSTR", g.VersionString)
	writeOpaque(s, g.Opaque)
}

func (g *ReplicatedGameData) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.Uint64List("ADMN", &g.Admins)
	r.StringMap("ATTR", &g.Attributes)
	r.Uint64List("CAP", &g.Capacity)
	r.StringMap("CRIT", &g.Criteria)
	r.Uint64("GID", &g.GameID)
	r.String("GNAM", &g.GameName)
	r.Uint32("GSET", &g.Settings)
	r.Uint8("GSTA", &g.State)
	r.String("GTYP", &g.GameType)
	r.NetworkAddressList("HNET", &g.HostNetwork)
	r.Bool("IGNO", &g.IgnoreCriteria)
	r.Uint16("MCAP", &g.MaxCapacity)
	r.Struct("NQOS", &g.HostQoS)
	r.Bool("NRES", &g.NotResettable)
	r.Uint8("NTOP", &g.Topology)
	r.String("PGID", &g.PersistedID)
	r.Struct("PHST", &g.PlatformHost)
	r.Uint8("PRES", &g.PresenceMode)
	r.Uint16("QCAP", &g.QueueCapacity)
	r.Uint16("TCAP", &g.TeamCapacity)
	r.Struct("THST", &g.TopologyHost)
	r.Uint64List("TIDS", &g.TeamIDs)
	r.String("UUID", &g.UUID)
	r.String("VSTR", &g.VersionString)
	g.Opaque = readOpaque(s)
	return r.Err()
}

// ReplicatedGamePlayer is one member of a game as replicated to the others.
type ReplicatedGamePlayer struct {
	ExternalID  uint64
	GameID      uint64
	Locale      uint32
	Name        string
	Attributes  map[string]string
	PersonaID   uint64
	Network     *IpPairAddress
	Slot        uint8
	State       uint8
	TeamIndex   uint16
	JoinedAt    int64
	UserGroupID tdf.ObjectID
	UserID      uint64
}

func (p *ReplicatedGamePlayer) Write(s *tdf.Struct) {
	s.SetUint("EXID", p.ExternalID)
	s.SetUint("GID", p.GameID)
	s.SetUint("LOC", uint64(p.Locale))
	s.SetString("NAME", p.Name)
	s.Set("PATT", stringMap(p.Attributes))
	s.SetUint("PID", p.PersonaID)
	s.Set("PNET", networkAddress(p.Network))
	s.SetUint("SID", uint64(p.Slot))
	s.SetUint("STAT", uint64(p.State))
	s.SetUint("TIDX", uint64(p.TeamIndex))
	s.SetInt("TIME", p.JoinedAt)
	s.SetObjectID("UGID", p.UserGroupID)
	s.SetUint("UID", p.UserID)
}

func (p *ReplicatedGamePlayer) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.Uint64("EXID", &p.ExternalID)
	r.Uint64("GID", &p.GameID)
	r.Uint32("LOC", &p.Locale)
	r.String("NAME", &p.Name)
	r.StringMap("PATT", &p.Attributes)
	r.Uint64("PID", &p.PersonaID)
	r.NetworkAddress("PNET", &p.Network)
	r.Uint8("SID", &p.Slot)
	r.Uint8("STAT", &p.State)
	r.Uint16("TIDX", &p.TeamIndex)
	r.Int64("TIME", &p.JoinedAt)
	r.ObjectID("UGID", &p.UserGroupID)
	r.Uint64("UID", &p.UserID)
	return r.Err()
}

// PlayerConnectionStatus reports a mesh connection between two players.
type PlayerConnectionStatus struct {
	Flags     uint32
	PersonaID uint64
	Status    uint8
}

func (p *PlayerConnectionStatus) Write(s *tdf.Struct) {
	s.SetUint("FLGS", uint64(p.Flags))
	s.SetUint("PID", p.PersonaID)
	s.SetUint("STAT", uint64(p.Status))
}

func (p *PlayerConnectionStatus) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.Uint32("FLGS", &p.Flags)
	r.Uint64("PID", &p.PersonaID)
	r.Uint8("STAT", &p.Status)
	return r.Err()
}
