package records

import "github.com/dcrodman/blaze/internal/core/tdf"

// ClientData is sent by the client in PreAuth.
type ClientData struct {
	Language                uint32
	ServiceName             string
	ClientType              uint8
	IgnoreInactivityTimeout bool
}

func (c *ClientData) Write(s *tdf.Struct) {
	s.SetBool("IITO", c.IgnoreInactivityTimeout)
	s.SetUint("LANG", uint64(c.Language))
	s.SetString("SVCN", c.ServiceName)
	s.SetUint("TYPE", uint64(c.ClientType))
}

func (c *ClientData) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.Bool("IITO", &c.IgnoreInactivityTimeout)
	r.Uint32("LANG", &c.Language)
	r.String("SVCN", &c.ServiceName)
	r.Uint8("TYPE", &c.ClientType)
	return r.Err()
}

type TickerServer struct {
	Address string
	Key     string
	Port    uint16
}

func (t *TickerServer) Write(s *tdf.Struct) {
	s.SetString("ADRS", t.Address)
	s.SetString("KEY", t.Key)
	s.SetUint("PORT", uint64(t.Port))
}

func (t *TickerServer) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.String("ADRS", &t.Address)
	r.String("KEY", &t.Key)
	r.Uint16("PORT", &t.Port)
	return r.Err()
}

type TelemetryServer struct {
	Address        string
	Anonymous      bool
	Disable        string
	Filter         string
	Locale         uint32
	NoToggleOK     string
	Port           uint16
	SendDelay      uint32
	SessionID      string
	Key            string
	SendPercentage uint8
}

func (t *TelemetryServer) Write(s *tdf.Struct) {
	s.SetString("ADRS", t.Address)
	s.SetBool("ANON", t.Anonymous)
	s.SetString("DISA", t.Disable)
	s.SetString("FILT", t.Filter)
	s.SetUint("LOC", uint64(t.Locale))
	s.SetString("NOOK", t.NoToggleOK)
	s.SetUint("PORT", uint64(t.Port))
	s.SetUint("SDLY", uint64(t.SendDelay))
	s.SetString("SESS", t.SessionID)
	s.SetString("SKEY", t.Key)
	s.SetUint("SPCT", uint64(t.SendPercentage))
}

func (t *TelemetryServer) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.String("ADRS", &t.Address)
	r.Bool("ANON", &t.Anonymous)
	r.String("DISA", &t.Disable)
	r.String("FILT", &t.Filter)
	r.Uint32("LOC", &t.Locale)
	r.String("NOOK", &t.NoToggleOK)
	r.Uint16("PORT", &t.Port)
	r.Uint32("SDLY", &t.SendDelay)
	r.String("SESS", &t.SessionID)
	r.String("SKEY", &t.Key)
	r.Uint8("SPCT", &t.SendPercentage)
	return r.Err()
}

// PssConfig points the client at the player sync service.
type PssConfig struct {
	Address   string
	OIDs      []string
	ProjectID string
	Port      uint16
	Report    uint8
	TitleID   uint32
}

func (p *PssConfig) Write(s *tdf.Struct) {
	s.SetString("ADRS", p.Address)
	s.Set("OIDS", tdf.StringList(p.OIDs...))
	s.SetString("PJID", p.ProjectID)
	s.SetUint("PORT", uint64(p.Port))
	s.SetUint("RPRT", uint64(p.Report))
	s.SetUint("TIID", uint64(p.TitleID))
}

func (p *PssConfig) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.String("ADRS", &p.Address)
	r.StringList("OIDS", &p.OIDs)
	r.String("PJID", &p.ProjectID)
	r.Uint16("PORT", &p.Port)
	r.Uint8("RPRT", &p.Report)
	r.Uint32("TIID", &p.TitleID)
	return r.Err()
}

type QosPingSiteInfo struct {
	Address string
	Port    uint16
	Name    string
}

func (q *QosPingSiteInfo) Write(s *tdf.Struct) {
	s.SetString("PSA", q.Address)
	s.SetUint("PSP", uint64(q.Port))
	s.SetString("SNA", q.Name)
}

func (q *QosPingSiteInfo) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.String("PSA", &q.Address)
	r.Uint16("PSP", &q.Port)
	r.String("SNA", &q.Name)
	return r.Err()
}

// QosConfigInfo tells the client which sites to probe.
type QosConfigInfo struct {
	BandwidthPingSite QosPingSiteInfo
	LatencyProbes     uint16
	// Latency ping sites keyed by alias.
	LatencyPingSites map[string]QosPingSiteInfo
	ServiceID        uint32
}

func (q *QosConfigInfo) Write(s *tdf.Struct) {
	s.Set("BWPS", Marshal(&q.BandwidthPingSite))
	s.SetUint("LNP", uint64(q.LatencyProbes))
	s.Set("LTPS", structMap(q.LatencyPingSites))
	s.SetUint("SVID", uint64(q.ServiceID))
}

func (q *QosConfigInfo) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.Struct("BWPS", &q.BandwidthPingSite)
	r.Uint16("LNP", &q.LatencyProbes)
	readStructMap(r, "LTPS", &q.LatencyPingSites)
	r.Uint32("SVID", &q.ServiceID)
	return r.Err()
}
