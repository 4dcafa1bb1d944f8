package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/text/language"

	"github.com/dcrodman/blaze/internal/packets"
	"github.com/dcrodman/blaze/internal/qos"
)

type recordingSender struct {
	sent []*packets.Packet
	err  error
}

func (r *recordingSender) Send(p *packets.Packet) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, p)
	return nil
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{Connected, Authenticating, true},
		{Connected, Authenticated, false},
		{Connected, InGame, false},
		{Authenticating, Authenticated, true},
		{Authenticating, Connected, true},
		{Authenticated, InGame, true},
		{Authenticated, Connected, true},
		{InGame, Authenticated, true},
		{InGame, Connected, false},
		{InGame, Disconnected, true},
		{Connected, Disconnected, true},
		{Disconnected, Connected, false},
		{Disconnected, Disconnected, false},
	}
	for _, tt := range tests {
		if got := canTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("canTransition(%s, %s) want = %v, got = %v", tt.from, tt.to, tt.want, got)
		}
	}
}

func TestSession_Lifecycle(t *testing.T) {
	sender := &recordingSender{}
	s := newSession(1, "BLAZE", "127.0.0.1:5000", sender)

	if err := s.EnterGame(5); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("EnterGame() from Connected want = %v, got = %v", ErrInvalidTransition, err)
	}
	if s.IsAuthenticated() {
		t.Fatalf("new session should not be authenticated")
	}

	if err := s.BeginLogin(); err != nil {
		t.Fatalf("BeginLogin() returned an unexpected error: %v", err)
	}
	s.FailLogin()
	if s.State() != Connected {
		t.Fatalf("FailLogin() want state = %s, got = %s", Connected, s.State())
	}

	_ = s.BeginLogin()
	id := Identity{AccountID: 1, PersonaID: 100, PersonaName: "alice"}
	if err := s.CompleteLogin(id, "token"); err != nil {
		t.Fatalf("CompleteLogin() returned an unexpected error: %v", err)
	}
	if diff := cmp.Diff(id, s.Identity()); diff != "" {
		t.Fatalf("Identity() did not match expected; diff:\n%s", diff)
	}
	if !s.IsAuthenticated() || s.Presence() != PresenceOnline {
		t.Fatalf("CompleteLogin() state = %s, presence = %d", s.State(), s.Presence())
	}

	if err := s.EnterGame(5); err != nil {
		t.Fatalf("EnterGame() returned an unexpected error: %v", err)
	}
	if s.State() != InGame || s.GameID() != 5 {
		t.Fatalf("EnterGame() state = %s, game = %d", s.State(), s.GameID())
	}
	if err := s.Logout(); err == nil {
		t.Fatalf("Logout() from InGame should fail")
	}

	s.ExitGame(6)
	if s.GameID() != 5 {
		t.Fatalf("ExitGame() of another game changed membership")
	}
	s.ExitGame(5)
	if s.State() != Authenticated || s.GameID() != 0 {
		t.Fatalf("ExitGame() state = %s, game = %d", s.State(), s.GameID())
	}

	if !s.Send(packets.NewNotification(1, 1, nil)) || len(sender.sent) != 1 {
		t.Fatalf("Send() did not reach the sender")
	}

	if err := s.Logout(); err != nil {
		t.Fatalf("Logout() returned an unexpected error: %v", err)
	}
	if s.PersonaID() != 0 || s.State() != Connected {
		t.Fatalf("Logout() did not clear the identity")
	}

	_ = s.Transition(Disconnected)
	if s.Send(packets.NewNotification(1, 1, nil)) {
		t.Fatalf("Send() on a disconnected session should be dropped")
	}
}

func TestSession_SetQoS(t *testing.T) {
	s := newSession(1, "BLAZE", "", nil)
	s.SetQoS(qos.Summary{SiteID: "ams", Latency: 40 * time.Millisecond, NAT: qos.NATOpen})
	s.SetQoS(qos.Summary{SiteID: "iad", Latency: 90 * time.Millisecond, NAT: qos.NATModerate})

	ext := s.Extended()
	if ext.BestPingSite != "ams" {
		t.Fatalf("BestPingSite want = ams, got = %s", ext.BestPingSite)
	}
	if diff := cmp.Diff(map[string]int{"ams": 40, "iad": 90}, ext.Latencies); diff != "" {
		t.Fatalf("Latencies did not match expected; diff:\n%s", diff)
	}
	if ext.QoS.NAT != qos.NATModerate {
		t.Fatalf("QoS want = latest summary, got = %v", ext.QoS)
	}

	// Mutating the copy must not leak into the session.
	ext.Latencies["ams"] = 1
	if s.Extended().Latencies["ams"] != 40 {
		t.Fatalf("Extended() returned shared state")
	}
}

func TestManager(t *testing.T) {
	m := NewManager()
	alice := m.Create("BLAZE", "10.0.0.1:1", nil)
	bob := m.Create("BLAZE", "10.0.0.2:1", nil)
	if alice.ID() == bob.ID() {
		t.Fatalf("Create() reused session id %d", alice.ID())
	}

	_ = alice.BeginLogin()
	_ = alice.CompleteLogin(Identity{PersonaID: 100, PersonaName: "Alice"}, "")

	if s, ok := m.FindByName("ALICE"); !ok || s != alice {
		t.Fatalf("FindByName() did not find alice case-insensitively")
	}
	if _, ok := m.FindByPersona(100); !ok {
		t.Fatalf("FindByPersona() did not find alice")
	}
	if got := m.Authenticated(); len(got) != 1 || got[0] != alice {
		t.Fatalf("Authenticated() want = [alice], got = %v", got)
	}

	snapshot := m.Snapshot()
	if len(snapshot) != 2 || snapshot[0].PersonaName != "Alice" || snapshot[1].State != "Connected" {
		t.Fatalf("Snapshot() got = %+v", snapshot)
	}

	if _, ok := m.Remove(alice.ID()); !ok {
		t.Fatalf("Remove() did not find alice")
	}
	if _, ok := m.Remove(alice.ID()); ok {
		t.Fatalf("second Remove() should be a no-op")
	}
	if alice.State() != Disconnected || m.Count() != 1 {
		t.Fatalf("Remove() state = %s, count = %d", alice.State(), m.Count())
	}
	if _, ok := m.FindByPersona(100); ok {
		t.Fatalf("FindByPersona() found a removed session")
	}
}

func TestManager_LoginClaimsPersonaOnce(t *testing.T) {
	const contenders = 16
	m := NewManager()
	sessions := make([]*Session, contenders)
	for i := range sessions {
		sessions[i] = m.Create("BLAZE", fmt.Sprintf("10.0.0.%d:1", i+1), nil)
		if err := sessions[i].BeginLogin(); err != nil {
			t.Fatalf("BeginLogin() returned an unexpected error: %v", err)
		}
	}

	errs := make([]error, contenders)
	var wg sync.WaitGroup
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.Login(sessions[i], Identity{PersonaID: 100, PersonaName: "alice"}, "")
		}(i)
	}
	wg.Wait()

	var won, inUse int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrPersonaInUse):
			inUse++
		default:
			t.Errorf("Login() returned an unexpected error: %v", err)
		}
	}
	if won != 1 || inUse != contenders-1 {
		t.Errorf("Login() winners = %d, in use = %d; want 1 and %d", won, inUse, contenders-1)
	}
}

func TestManager_SwitchPersona(t *testing.T) {
	m := NewManager()
	alice := m.Create("BLAZE", "10.0.0.1:1", nil)
	bob := m.Create("BLAZE", "10.0.0.2:1", nil)
	for _, s := range []*Session{alice, bob} {
		_ = s.BeginLogin()
	}
	if err := m.Login(alice, Identity{PersonaID: 100, PersonaName: "alice"}, ""); err != nil {
		t.Fatalf("Login() returned an unexpected error: %v", err)
	}
	if err := m.Login(bob, Identity{PersonaID: 200, PersonaName: "bob"}, ""); err != nil {
		t.Fatalf("Login() returned an unexpected error: %v", err)
	}

	tests := []struct {
		name    string
		persona uint64
		wantErr error
		want    uint64
	}{
		{"taken by another session", 100, ErrPersonaInUse, 200},
		{"own persona", 200, nil, 200},
		{"free persona", 300, nil, 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := m.SwitchPersona(bob, tt.persona, "other"); !errors.Is(err, tt.wantErr) {
				t.Fatalf("SwitchPersona() wantErr = %v, got = %v", tt.wantErr, err)
			}
			if diff := cmp.Diff(tt.want, bob.PersonaID()); diff != "" {
				t.Errorf("PersonaID() did not match expected; diff:\n%s", diff)
			}
		})
	}
}

func TestParseLocale(t *testing.T) {
	tests := map[string]struct {
		packed uint32
		want   language.Tag
	}{
		"english":   {0x656E5553, language.AmericanEnglish},
		"german":    {0x64654445, language.MustParse("de-DE")},
		"empty":     {0, language.Und},
		"gibberish": {0x21212121, language.Und},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := ParseLocale(tt.packed); got.String() != tt.want.String() {
				t.Fatalf("ParseLocale() want = %v, got = %v", tt.want, got)
			}
		})
	}

	if got := PackLocale(language.AmericanEnglish); got != 0x656E5553 {
		t.Fatalf("PackLocale() want = 0x656E5553, got = 0x%08X", got)
	}
}
