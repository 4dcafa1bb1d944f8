package records

import (
	"errors"
	"testing"

	"github.com/dcrodman/blaze/internal/core/tdf"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func sampleAddress() *IpPairAddress {
	return &IpPairAddress{
		External: IpAddress{IP: 0x0A000001, Port: 3659},
		Internal: IpAddress{IP: 0xC0A80102, Port: 3659},
	}
}

func sampleRecords() map[string]Record {
	return map[string]Record{
		"SessionInfo": &SessionInfo{
			BlazeUserID: 12,
			FirstLogin:  true,
			SessionKey:  "12_abcdef",
			LastLogin:   1700000000,
			Email:       "alice@example.com",
			Persona:     PersonaDetails{DisplayName: "alice", LastUsed: 1700000000, PersonaID: 12},
			UserID:      3,
		},
		"UserData": &UserData{
			Extended: UserSessionExtendedData{
				Address:          sampleAddress(),
				BestPingSite:     "ams",
				Country:          "NL",
				ClientAttributes: map[uint32]int64{1: -5, 2: 9},
				DataMap:          map[uint32]int64{0x70001: 55},
				Latencies:        []int64{42, 120},
				QoS:              NetworkQosData{DownstreamBps: 100, NATType: 1, UpstreamBps: 50},
				ObjectIDs:        []tdf.ObjectID{{Component: 4, EntityType: 1, ID: 99}},
			},
			Flags: 3,
			User:  UserIdentification{Name: "alice", ID: 12, Locale: 0x656e5553},
		},
		"QosConfigInfo": &QosConfigInfo{
			BandwidthPingSite: QosPingSiteInfo{Address: "qos.example.com", Port: 17502, Name: "bw"},
			LatencyProbes:     10,
			LatencyPingSites: map[string]QosPingSiteInfo{
				"ams": {Address: "ams.example.com", Port: 17502, Name: "Amsterdam"},
				"iad": {Address: "iad.example.com", Port: 17502, Name: "Virginia"},
			},
			ServiceID: 1161889797,
		},
		"ReplicatedGameData": &ReplicatedGameData{
			Admins:       []uint64{12},
			Attributes:   map[string]string{"map": "harbor"},
			Capacity:     []uint64{4, 0},
			GameID:       1,
			GameName:     "alice's game",
			State:        1,
			HostNetwork:  []IpPairAddress{*sampleAddress()},
			MaxCapacity:  4,
			Topology:     0x83,
			PlatformHost: HostInfo{PersonaID: 12},
			TopologyHost: HostInfo{PersonaID: 12, Slot: 0},
			Opaque: map[string]tdf.Value{
				"GPVH": tdf.Uint(0x5a4f2b378b715c6),
				"SEED": tdf.Blob{1, 2, 3},
			},
		},
		"ReplicatedGamePlayer": &ReplicatedGamePlayer{
			GameID:      1,
			Name:        "bob",
			PersonaID:   13,
			Network:     sampleAddress(),
			Slot:        1,
			State:       2,
			JoinedAt:    1700000100,
			UserGroupID: tdf.ObjectID{Component: 4, EntityType: 2, ID: 1},
			UserID:      13,
		},
		"ListMembers": &ListMembers{
			Info: ListInfo{
				Owner: tdf.ObjectID{Component: 0x7802, EntityType: 1, ID: 12},
				ID:    ListIdentification{Name: "friendList", Type: 1},
			},
			Members: []ListMemberInfo{
				{Member: ListMemberId{BlazeID: 13, PersonaName: "bob"}, AddedAt: 1700000200},
			},
			Total: 1,
		},
		"ServerMessage": &ServerMessage{
			MessageID: 7,
			Name:      "alice",
			Payload: ClientMessage{
				Attributes: map[uint32]string{0x10000: "hello"},
				Target:     tdf.ObjectID{Component: 0x7802, EntityType: 1, ID: 13},
			},
			Source:    tdf.ObjectID{Component: 0x7802, EntityType: 1, ID: 12},
		},
	}
}

var recordOpts = cmp.Options{cmpopts.EquateEmpty()}

func TestRecords_WireRoundTrip(t *testing.T) {
	for name, rec := range sampleRecords() {
		t.Run(name, func(t *testing.T) {
			b, err := tdf.Encode(Marshal(rec))
			if err != nil {
				t.Fatalf("Encode() returned an unexpected error: %v", err)
			}
			s, _, err := tdf.Decode(b)
			if err != nil {
				t.Fatalf("Decode() returned an unexpected error: %v", err)
			}
			got := New(name)
			if err := Unmarshal(s, got); err != nil {
				t.Fatalf("Unmarshal() returned an unexpected error: %v", err)
			}
			if diff := cmp.Diff(rec, got, recordOpts); diff != "" {
				t.Errorf("wire round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRecords_JSONRoundTrip(t *testing.T) {
	for name, rec := range sampleRecords() {
		t.Run(name, func(t *testing.T) {
			text, err := ToJSON(rec)
			if err != nil {
				t.Fatalf("ToJSON() returned an unexpected error: %v", err)
			}
			got, err := FromJSON(name, text)
			if err != nil {
				t.Fatalf("FromJSON(%s) returned an unexpected error: %v", text, err)
			}
			if diff := cmp.Diff(rec, got, recordOpts); diff != "" {
				t.Errorf("JSON round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFromJSON_Aliases(t *testing.T) {
	got, err := FromJSON("UserIdentification", []byte(`{"name": "alice", "id": 12, "localization": 1701729619}`))
	if err != nil {
		t.Fatalf("FromJSON() returned an unexpected error: %v", err)
	}
	want := &UserIdentification{Name: "alice", ID: 12, Locale: 1701729619}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FromJSON() mismatch (-want +got):\n%s", diff)
	}

	if _, err := FromJSON("NoSuchRecord", []byte(`{}`)); err == nil {
		t.Error("expected an error for an unknown record type")
	}
}

func TestRead_InvalidField(t *testing.T) {
	tests := map[string]struct {
		body *tdf.Struct
		rec  Record
	}{
		"string where integer expected": {
			body: tdf.NewStruct().SetString("GID", "one"),
			rec:  &ReplicatedGameData{},
		},
		"integer out of range": {
			body: tdf.NewStruct().SetUint("NTOP", 300),
			rec:  &ReplicatedGameData{},
		},
		"negative unsigned": {
			body: tdf.NewStruct().SetInt("PID", -1),
			rec:  &PersonaDetails{},
		},
		"wrong list element": {
			body: tdf.NewStruct().Set("ADMN", tdf.StringList("a")),
			rec:  &CreateGameRequest{},
		},
		"nested struct": {
			body: tdf.NewStruct().Set("PDTL", tdf.NewStruct().SetString("PID", "x")),
			rec:  &SessionInfo{},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if err := tt.rec.Read(tt.body); !errors.Is(err, ErrInvalidField) {
				t.Errorf("expected ErrInvalidField, got: %v", err)
			}
		})
	}
}

func TestRead_MissingFieldsKeepZero(t *testing.T) {
	var req CreateGameRequest
	if err := req.Read(tdf.NewStruct().SetString("GNAM", "lobby")); err != nil {
		t.Fatalf("Read() returned an unexpected error: %v", err)
	}
	if req.GameName != "lobby" || req.Topology != 0 || req.Capacity != nil {
		t.Errorf("unexpected request: %+v", req)
	}
}

func TestCreateGameRequest_OpaquePassThrough(t *testing.T) {
	body := tdf.NewStruct().
		SetString("GNAM", "lobby").
		Set("GSID", tdf.ObjectType{Component: 4, EntityType: 1}).
		SetBlob("SEED", []byte{9, 9})

	var req CreateGameRequest
	if err := req.Read(body); err != nil {
		t.Fatalf("Read() returned an unexpected error: %v", err)
	}
	game := ReplicatedGameData{GameName: req.GameName, Opaque: req.Opaque}
	out := Marshal(&game)
	for _, label := range []string{"GSID", "SEED"} {
		want, _ := body.Get(label)
		got, ok := out.Get(label)
		if !ok || !tdf.Equal(want, got) {
			t.Errorf("%s not passed through: got %v", label, got)
		}
	}
	if out.Has("HSES") {
		t.Error("unexpected HSES field")
	}
}

func TestNames(t *testing.T) {
	for _, name := range Names() {
		if New(name) == nil {
			t.Errorf("New(%q) returned nil", name)
		}
	}
	if New("Unknown") != nil {
		t.Error("New() returned a record for an unknown name")
	}
}
