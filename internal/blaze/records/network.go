package records

import "github.com/dcrodman/blaze/internal/core/tdf"

type IpAddress struct {
	IP   uint32
	Port uint16
}

func (a *IpAddress) Write(s *tdf.Struct) {
	s.SetUint("IP", uint64(a.IP))
	s.SetUint("PORT", uint64(a.Port))
}

func (a *IpAddress) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.Uint32("IP", &a.IP)
	r.Uint16("PORT", &a.Port)
	return r.Err()
}

type HostNameAddress struct {
	Host string
	Port uint16
}

func (a *HostNameAddress) Write(s *tdf.Struct) {
	s.SetString("HOST", a.Host)
	s.SetUint("PORT", uint64(a.Port))
}

func (a *HostNameAddress) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.String("HOST", &a.Host)
	r.Uint16("PORT", &a.Port)
	return r.Err()
}

type IpPairAddress struct {
	External IpAddress
	Internal IpAddress
}

func (a *IpPairAddress) Write(s *tdf.Struct) {
	s.Set("EXIP", Marshal(&a.External))
	s.Set("INIP", Marshal(&a.Internal))
}

func (a *IpPairAddress) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.Struct("EXIP", &a.External)
	r.Struct("INIP", &a.Internal)
	return r.Err()
}

// Union member carrying an IpPairAddress in network address unions.
const NetworkAddressIpPair uint8 = 2

// networkAddress writes addr as an address union, unset when addr is nil.
func networkAddress(addr *IpPairAddress) *tdf.Union {
	if addr == nil {
		return tdf.UnsetUnion()
	}
	return tdf.NewUnion(NetworkAddressIpPair, "VALU", Marshal(addr))
}

// NetworkAddress reads an address union, leaving *dst nil when unset or
// holding another kind of address.
func (r *fieldReader) NetworkAddress(label string, dst **IpPairAddress) {
	v, ok := r.value(label, tdf.TypeUnion)
	if !ok {
		return
	}
	u := v.(*tdf.Union)
	if !u.IsSet() || u.Active != NetworkAddressIpPair {
		return
	}
	st, ok := u.Value.(*tdf.Struct)
	if !ok {
		r.fail(label, "want struct member, got %T", u.Value)
		return
	}
	addr := &IpPairAddress{}
	if err := addr.Read(st); err != nil {
		if r.err == nil {
			r.err = err
		}
		return
	}
	*dst = addr
}

type NetworkQosData struct {
	DownstreamBps uint32
	NATType       uint8
	UpstreamBps   uint32
}

func (q *NetworkQosData) Write(s *tdf.Struct) {
	s.SetUint("DBPS", uint64(q.DownstreamBps))
	s.SetUint("NATT", uint64(q.NATType))
	s.SetUint("UBPS", uint64(q.UpstreamBps))
}

func (q *NetworkQosData) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.Uint32("DBPS", &q.DownstreamBps)
	r.Uint8("NATT", &q.NATType)
	r.Uint32("UBPS", &q.UpstreamBps)
	return r.Err()
}

// UserSessionExtendedData is the network and client information published
// about each user session.
type UserSessionExtendedData struct {
	Address          *IpPairAddress
	BestPingSite     string
	Country          string
	ClientAttributes map[uint32]int64
	DataMap          map[uint32]int64
	HardwareFlags    uint32
	// Latency in milliseconds to each ping site, in ping site order.
	Latencies      []int64
	QoS            NetworkQosData
	UserAttributes uint64
	ObjectIDs      []tdf.ObjectID
}

func (e *UserSessionExtendedData) Write(s *tdf.Struct) {
	s.Set("ADDR", networkAddress(e.Address))
	s.SetString("BPS", e.BestPingSite)
	s.Set("CMAP", uint32Int64Map(e.ClientAttributes))
	s.SetString("CTY", e.Country)
	s.Set("DMAP", uint32Int64Map(e.DataMap))
	s.SetUint("HWFG", uint64(e.HardwareFlags))
	s.Set("PSLM", int64List(e.Latencies))
	s.Set("QDAT", Marshal(&e.QoS))
	s.SetUint("UATT", e.UserAttributes)
	s.Set("ULST", objectIDList(e.ObjectIDs))
}

func (e *UserSessionExtendedData) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.NetworkAddress("ADDR", &e.Address)
	r.String("BPS", &e.BestPingSite)
	r.Uint32Int64Map("CMAP", &e.ClientAttributes)
	r.String("CTY", &e.Country)
	r.Uint32Int64Map("DMAP", &e.DataMap)
	r.Uint32("HWFG", &e.HardwareFlags)
	r.Int64List("PSLM", &e.Latencies)
	r.Struct("QDAT", &e.QoS)
	r.Uint64("UATT", &e.UserAttributes)
	r.ObjectIDList("ULST", &e.ObjectIDs)
	return r.Err()
}
