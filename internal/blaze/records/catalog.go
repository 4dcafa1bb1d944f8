package records

import (
	"fmt"
	"sort"

	"github.com/dcrodman/blaze/internal/core/tdf"
)

var catalog = map[string]func() Record{
	"ClientData":              func() Record { return &ClientData{} },
	"ClientMessage":           func() Record { return &ClientMessage{} },
	"CreateGameRequest":       func() Record { return &CreateGameRequest{} },
	"HostInfo":                func() Record { return &HostInfo{} },
	"HostNameAddress":         func() Record { return &HostNameAddress{} },
	"IpAddress":               func() Record { return &IpAddress{} },
	"IpPairAddress":           func() Record { return &IpPairAddress{} },
	"ListIdentification":      func() Record { return &ListIdentification{} },
	"ListInfo":                func() Record { return &ListInfo{} },
	"ListMemberId":            func() Record { return &ListMemberId{} },
	"ListMemberInfo":          func() Record { return &ListMemberInfo{} },
	"ListMemberInfoUpdate":    func() Record { return &ListMemberInfoUpdate{} },
	"ListMembers":             func() Record { return &ListMembers{} },
	"NetworkQosData":          func() Record { return &NetworkQosData{} },
	"PasswordRulesInfo":       func() Record { return &PasswordRulesInfo{} },
	"PersonaDetails":          func() Record { return &PersonaDetails{} },
	"PlayerConnectionStatus":  func() Record { return &PlayerConnectionStatus{} },
	"PlaygroupInfo":           func() Record { return &PlaygroupInfo{} },
	"PlaygroupMemberInfo":     func() Record { return &PlaygroupMemberInfo{} },
	"PresenceInfo":            func() Record { return &PresenceInfo{} },
	"PssConfig":               func() Record { return &PssConfig{} },
	"QosConfigInfo":           func() Record { return &QosConfigInfo{} },
	"QosPingSiteInfo":         func() Record { return &QosPingSiteInfo{} },
	"ReplicatedGameData":      func() Record { return &ReplicatedGameData{} },
	"ReplicatedGamePlayer":    func() Record { return &ReplicatedGamePlayer{} },
	"ServerMessage":           func() Record { return &ServerMessage{} },
	"SessionInfo":             func() Record { return &SessionInfo{} },
	"TelemetryServer":         func() Record { return &TelemetryServer{} },
	"TickerServer":            func() Record { return &TickerServer{} },
	"UserData":                func() Record { return &UserData{} },
	"UserDetails":             func() Record { return &UserDetails{} },
	"UserIdentification":      func() Record { return &UserIdentification{} },
	"UserOptions":             func() Record { return &UserOptions{} },
	"UserSessionExtendedData": func() Record { return &UserSessionExtendedData{} },
}

// aliased is implemented by records accepting plain JSON field names.
type aliased interface {
	JSONAliases() map[string]string
}

// New returns an empty record of the named type or nil if the name is unknown.
func New(name string) Record {
	if mk, ok := catalog[name]; ok {
		return mk()
	}
	return nil
}

// Names lists every known record type.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FromJSON builds a record of the named type from a JSON body in which fields
// are keyed by tag label or, for records that define them, plain aliases.
func FromJSON(name string, body []byte) (Record, error) {
	rec := New(name)
	if rec == nil {
		return nil, fmt.Errorf("unknown record type %q", name)
	}
	var aliases map[string]string
	if a, ok := rec.(aliased); ok {
		aliases = a.JSONAliases()
	}
	s, err := tdf.FromJSONWithAliases(body, aliases)
	if err != nil {
		return nil, err
	}
	if err := rec.Read(s); err != nil {
		return nil, err
	}
	return rec, nil
}

// ToJSON renders a record with its fields keyed by tag label.
func ToJSON(r Record) ([]byte, error) {
	return tdf.ToJSON(Marshal(r))
}
