package components

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dcrodman/blaze/internal/blaze"
	"github.com/dcrodman/blaze/internal/blaze/records"
	"github.com/dcrodman/blaze/internal/core"
	"github.com/dcrodman/blaze/internal/core/auth"
	"github.com/dcrodman/blaze/internal/core/data"
	"github.com/dcrodman/blaze/internal/core/tdf"
	"github.com/dcrodman/blaze/internal/game"
	"github.com/dcrodman/blaze/internal/lists"
	"github.com/dcrodman/blaze/internal/packets"
	"github.com/dcrodman/blaze/internal/session"
)

type recorder struct {
	mu   sync.Mutex
	sent []*packets.Packet
}

func (r *recorder) Send(p *packets.Packet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, p)
	return nil
}

func (r *recorder) commands() []uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uint16
	for _, p := range r.sent {
		out = append(out, p.Header.Command)
	}
	return out
}

func (r *recorder) sentPackets() []*packets.Packet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*packets.Packet(nil), r.sent...)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}

func newTestServer(t *testing.T) *blaze.Server {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.ExternalIP = "10.0.0.1"
	cfg.Qos.Sites = []core.PingSite{
		{Alias: "ams", Name: "Amsterdam", Address: "qos-ams.example.com", Port: 17502},
		{Alias: "iad", Name: "Washington", Address: "qos-iad.example.com", Port: 17502},
	}
	cfg.Redirector.Routes = []core.Route{
		{ServiceName: "darkspore", Hostname: "blaze.example.com", Port: 10041},
	}

	db, err := data.Open("sqlite", filepath.Join(t.TempDir(), "test.db"), false)
	if err != nil {
		t.Fatalf("data.Open() returned an unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = data.Shutdown(db) })

	srv := blaze.NewServer(cfg, core.DiscardLogger(), db, nil)
	Register(srv)
	return srv
}

type testClient struct {
	t      *testing.T
	srv    *blaze.Server
	sess   *session.Session
	out    *recorder
	nextID uint16
}

func connect(t *testing.T, srv *blaze.Server) *testClient {
	t.Helper()
	out := &recorder{}
	return &testClient{t: t, srv: srv, sess: srv.Connect("BLAZE", "127.0.0.1:0", out), out: out}
}

func (c *testClient) call(component, command uint16, body *tdf.Struct) *packets.Packet {
	c.t.Helper()
	c.nextID++
	req := &blaze.Request{
		Session: c.sess,
		Packet:  packets.NewRequest(component, command, c.nextID, body),
		Server:  c.srv,
	}
	reply := c.srv.Dispatcher.Dispatch(context.Background(), req)
	if reply == nil {
		c.t.Fatalf("no reply to %s", req.Packet)
	}
	if reply.Header.ID != c.nextID {
		c.t.Fatalf("reply id want = %d, got = %d", c.nextID, reply.Header.ID)
	}
	return reply
}

// mustCall makes a call that is expected to succeed.
func (c *testClient) mustCall(component, command uint16, body *tdf.Struct) *tdf.Struct {
	c.t.Helper()
	reply := c.call(component, command, body)
	if reply.Header.Type != packets.ReplyType {
		c.t.Fatalf("%s failed: %s", packets.CommandName(component, command, packets.RequestType), packets.ErrorCode(reply.Header.Error))
	}
	return reply.Body
}

func expectError(t *testing.T, reply *packets.Packet, want packets.ErrorCode) {
	t.Helper()
	if reply.Header.Type != packets.ErrorReplyType {
		t.Fatalf("reply type want = %s, got = %s", packets.ErrorReplyType, reply.Header.Type)
	}
	if got := packets.ErrorCode(reply.Header.Error); got != want {
		t.Errorf("reply error want = %s, got = %s", want, got)
	}
}

func createAccount(t *testing.T, srv *blaze.Server, username string) *data.Account {
	t.Helper()
	account, err := auth.CreateAccount(srv.DB, username, "password", username+"@example.com")
	if err != nil {
		t.Fatalf("CreateAccount() returned an unexpected error: %v", err)
	}
	return account
}

func loginBody(username string) *tdf.Struct {
	return tdf.NewStruct().SetString("MAIL", username+"@example.com").SetString("PASS", "password")
}

// loggedIn returns a client logged in as a new account named username.
func loggedIn(t *testing.T, srv *blaze.Server, username string) *testClient {
	t.Helper()
	createAccount(t, srv, username)
	c := connect(t, srv)
	c.mustCall(packets.AuthenticationComponent, packets.LoginCommand, loginBody(username))
	c.out.reset()
	return c
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)
	createAccount(t, srv, "alice")
	c := connect(t, srv)

	body := c.mustCall(packets.AuthenticationComponent, packets.LoginCommand, loginBody("alice"))

	var info records.SessionInfo
	if err := info.Read(body); err != nil {
		t.Fatalf("SessionInfo.Read() returned an unexpected error: %v", err)
	}
	if info.Persona.DisplayName != "alice" {
		t.Errorf("persona want = alice, got = %s", info.Persona.DisplayName)
	}
	if !info.FirstLogin {
		t.Error("expected the first login to be flagged")
	}
	if info.SessionKey == "" || info.SessionKey != c.sess.AuthToken() {
		t.Errorf("session key want = %q, got = %q", c.sess.AuthToken(), info.SessionKey)
	}
	if c.sess.State() != session.Authenticated {
		t.Errorf("session state want = %s, got = %s", session.Authenticated, c.sess.State())
	}

	want := []uint16{packets.NotifyUserAdded, packets.NotifyUserSessionExtendedDataUpdate, packets.NotifyUserAuthenticated}
	if diff := cmp.Diff(want, c.out.commands()); diff != "" {
		t.Errorf("unexpected notifications (-want +got):\n%s", diff)
	}
	for _, p := range c.out.sentPackets() {
		if p.Header.Type != packets.NotificationType || p.Header.Component != packets.UserSessionsComponent {
			t.Errorf("unexpected packet %s", p)
		}
	}
}

func TestLogin_Rejected(t *testing.T) {
	srv := newTestServer(t)
	createAccount(t, srv, "alice")

	t.Run("wrong password", func(t *testing.T) {
		c := connect(t, srv)
		reply := c.call(packets.AuthenticationComponent, packets.LoginCommand,
			tdf.NewStruct().SetString("MAIL", "alice@example.com").SetString("PASS", "hunter2"))
		expectError(t, reply, packets.ErrorInvalidCredentials)
		if c.sess.State() != session.Connected {
			t.Errorf("session state want = %s, got = %s", session.Connected, c.sess.State())
		}
		if len(c.out.commands()) != 0 {
			t.Errorf("unexpected notifications: %v", c.out.commands())
		}
	})

	t.Run("unknown account", func(t *testing.T) {
		c := connect(t, srv)
		expectError(t, c.call(packets.AuthenticationComponent, packets.LoginCommand, loginBody("nobody")), packets.ErrorInvalidCredentials)
	})

	t.Run("persona in use", func(t *testing.T) {
		first := connect(t, srv)
		first.mustCall(packets.AuthenticationComponent, packets.LoginCommand, loginBody("alice"))

		second := connect(t, srv)
		expectError(t, second.call(packets.AuthenticationComponent, packets.LoginCommand, loginBody("alice")), packets.ErrorAlreadyLoggedIn)
		if second.sess.IsAuthenticated() {
			t.Error("second session was authenticated")
		}
	})

	t.Run("authentication required", func(t *testing.T) {
		c := connect(t, srv)
		expectError(t, c.call(packets.GameManagerComponent, packets.CreateGameCommand, nil), packets.ErrorAuthenticationRequired)
	})
}

func TestLogin_AutoRegister(t *testing.T) {
	srv := newTestServer(t)
	srv.Config.Auth.AutoRegister = true
	c := connect(t, srv)

	body := c.mustCall(packets.AuthenticationComponent, packets.LoginCommand,
		tdf.NewStruct().SetString("MAIL", "carol@example.com").SetString("PASS", "secret"))

	if got := body.StrOr("MAIL", ""); got != "carol@example.com" {
		t.Errorf("email want = carol@example.com, got = %s", got)
	}
	if c.sess.PersonaName() != "carol" {
		t.Errorf("persona want = carol, got = %s", c.sess.PersonaName())
	}
	account, err := data.FindAccountByUsername(srv.DB, "carol")
	if err != nil || account == nil {
		t.Fatalf("account was not registered: %v", err)
	}
}

func TestSilentLogin(t *testing.T) {
	srv := newTestServer(t)
	alice := loggedIn(t, srv, "alice")

	token := alice.mustCall(packets.AuthenticationComponent, packets.GetAuthTokenCommand, nil).StrOr("AUTH", "")
	if token == "" {
		t.Fatal("GetAuthToken returned no token")
	}
	srv.Disconnect(alice.sess)

	c := connect(t, srv)
	c.mustCall(packets.AuthenticationComponent, packets.SilentLoginCommand, tdf.NewStruct().SetString("AUTH", token))
	if c.sess.PersonaName() != "alice" {
		t.Errorf("persona want = alice, got = %s", c.sess.PersonaName())
	}

	other := connect(t, srv)
	expectError(t, other.call(packets.AuthenticationComponent, packets.SilentLoginCommand, tdf.NewStruct().SetString("AUTH", "bogus")), packets.ErrorInvalidCredentials)
}

func TestLogout(t *testing.T) {
	srv := newTestServer(t)
	alice := loggedIn(t, srv, "alice")

	alice.mustCall(packets.AuthenticationComponent, packets.LogoutCommand, nil)
	if alice.sess.IsAuthenticated() {
		t.Error("session still authenticated after logout")
	}
	expectError(t, alice.call(packets.AuthenticationComponent, packets.ListPersonasCommand, nil), packets.ErrorAuthenticationRequired)
}

func TestListAndLoginPersona(t *testing.T) {
	srv := newTestServer(t)
	account := createAccount(t, srv, "alice")
	if err := data.CreatePersona(srv.DB, &data.Persona{AccountID: account.ID, DisplayName: "alice_alt"}); err != nil {
		t.Fatalf("CreatePersona() returned an unexpected error: %v", err)
	}
	c := connect(t, srv)
	c.mustCall(packets.AuthenticationComponent, packets.LoginCommand, loginBody("alice"))

	var details records.UserDetails
	if err := details.Read(c.mustCall(packets.AuthenticationComponent, packets.ListPersonasCommand, nil)); err != nil {
		t.Fatalf("UserDetails.Read() returned an unexpected error: %v", err)
	}
	var names []string
	for _, p := range details.Personas {
		names = append(names, p.DisplayName)
	}
	if diff := cmp.Diff([]string{"alice", "alice_alt"}, names); diff != "" {
		t.Errorf("unexpected personas (-want +got):\n%s", diff)
	}

	c.mustCall(packets.AuthenticationComponent, packets.LoginPersonaCommand, tdf.NewStruct().SetString("PNAM", "ALICE_ALT"))
	if c.sess.PersonaName() != "alice_alt" {
		t.Errorf("persona want = alice_alt, got = %s", c.sess.PersonaName())
	}
	expectError(t, c.call(packets.AuthenticationComponent, packets.LoginPersonaCommand, tdf.NewStruct().SetString("PNAM", "bob")), packets.ErrorPersonaNotFound)
}

func TestGetServerInstance(t *testing.T) {
	srv := newTestServer(t)
	c := connect(t, srv)

	body := c.mustCall(packets.RedirectorComponent, packets.GetServerInstanceCommand,
		tdf.NewStruct().SetString("NAME", "darkspore").SetString("CLNT", "Darkspore/PC"))
	u, ok := body.Union("ADDR")
	if !ok || !u.IsSet() {
		t.Fatalf("reply has no address: %v", body)
	}
	addr := u.Value.(*tdf.Struct)
	if host := addr.StrOr("HOST", ""); host != "blaze.example.com" {
		t.Errorf("HOST want = blaze.example.com, got = %s", host)
	}
	if ip, _ := addr.Uint("IP"); ip != 0x0A000001 {
		t.Errorf("IP want = %#x, got = %#x", 0x0A000001, ip)
	}
	if port, _ := addr.Uint("PORT"); port != 10041 {
		t.Errorf("PORT want = 10041, got = %d", port)
	}

	expectError(t, c.call(packets.RedirectorComponent, packets.GetServerInstanceCommand,
		tdf.NewStruct().SetString("NAME", "unknown")), packets.ErrorUnknownService)
}

func TestPreAuth(t *testing.T) {
	srv := newTestServer(t)
	c := connect(t, srv)

	body := c.mustCall(packets.UtilComponent, packets.PreAuthCommand, tdf.NewStruct().
		Set("CDAT", tdf.NewStruct().SetUint("LANG", 0x656E5553).SetString("SVCN", "darkspore")))

	qosBody, ok := body.Struct("QOSS")
	if !ok {
		t.Fatal("reply has no QOSS")
	}
	var qosInfo records.QosConfigInfo
	if err := qosInfo.Read(qosBody); err != nil {
		t.Fatalf("QosConfigInfo.Read() returned an unexpected error: %v", err)
	}
	if len(qosInfo.LatencyPingSites) != 2 {
		t.Errorf("ping sites want = 2, got = %d", len(qosInfo.LatencyPingSites))
	}
	if qosInfo.BandwidthPingSite.Name != "Amsterdam" {
		t.Errorf("bandwidth site want = Amsterdam, got = %s", qosInfo.BandwidthPingSite.Name)
	}

	cids, ok := body.List("CIDS")
	if !ok || cids.Len() != len(supportedComponents) {
		t.Errorf("component ids want %d entries, got %v", len(supportedComponents), cids)
	}
	for _, label := range []string{"PSS", "TELE", "TICK", "CONF"} {
		if !body.Has(label) {
			t.Errorf("reply is missing %s", label)
		}
	}
}

func TestPing(t *testing.T) {
	srv := newTestServer(t)
	c := connect(t, srv)
	if stim, _ := c.mustCall(packets.UtilComponent, packets.PingCommand, nil).Uint("STIM"); stim == 0 {
		t.Error("ping reply has no server time")
	}
}

func TestUserSettings(t *testing.T) {
	srv := newTestServer(t)
	c := loggedIn(t, srv, "alice")

	expectError(t, c.call(packets.UtilComponent, packets.UserSettingsLoadCommand, tdf.NewStruct().SetString("KEY", "audio")), packets.ErrorSettingNotFound)

	c.mustCall(packets.UtilComponent, packets.UserSettingsSaveCommand, tdf.NewStruct().SetString("KEY", "audio").SetString("DATA", "volume=3"))
	c.mustCall(packets.UtilComponent, packets.UserSettingsSaveCommand, tdf.NewStruct().SetString("KEY", "video").SetString("DATA", "hd"))
	c.mustCall(packets.UtilComponent, packets.UserSettingsSaveCommand, tdf.NewStruct().SetString("KEY", "audio").SetString("DATA", "volume=7"))

	body := c.mustCall(packets.UtilComponent, packets.UserSettingsLoadCommand, tdf.NewStruct().SetString("KEY", "audio"))
	if got := body.StrOr("DATA", ""); got != "volume=7" {
		t.Errorf("DATA want = volume=7, got = %s", got)
	}

	all, ok := c.mustCall(packets.UtilComponent, packets.UserSettingsLoadAllCommand, nil).Map("SMAP")
	if !ok {
		t.Fatal("reply has no SMAP")
	}
	want := map[string]string{"audio": "volume=7", "video": "hd"}
	if diff := cmp.Diff(want, all.ToStringMap()); diff != "" {
		t.Errorf("unexpected settings (-want +got):\n%s", diff)
	}

	expectError(t, c.call(packets.UtilComponent, packets.UserSettingsSaveCommand, tdf.NewStruct().SetString("DATA", "x")), packets.ErrorInvalidRequest)
}

func TestGameFlow(t *testing.T) {
	srv := newTestServer(t)
	alice := loggedIn(t, srv, "alice")
	bob := loggedIn(t, srv, "bob")

	create := records.Marshal(&records.CreateGameRequest{
		GameName:     "lobby",
		Capacity:     []uint64{4, 0},
		PresenceMode: 1,
	})
	gid, _ := alice.mustCall(packets.GameManagerComponent, packets.CreateGameCommand, create).Uint("GID")
	if gid == 0 {
		t.Fatal("CreateGame returned no game id")
	}

	join := bob.mustCall(packets.GameManagerComponent, packets.JoinGameCommand, tdf.NewStruct().SetUint("GID", gid))
	if slot, _ := join.Uint("SLOT"); slot != 1 {
		t.Errorf("SLOT want = 1, got = %d", slot)
	}
	if bob.sess.GameID() != gid {
		t.Errorf("bob's game want = %d, got = %d", gid, bob.sess.GameID())
	}

	expectError(t, bob.call(packets.GameManagerComponent, packets.AdvanceGameStateCommand,
		tdf.NewStruct().SetUint("GID", gid).SetUint("GSTA", 2)), packets.ErrorNotGameHost)
	expectError(t, alice.call(packets.GameManagerComponent, packets.AdvanceGameStateCommand,
		tdf.NewStruct().SetUint("GID", gid).SetUint("GSTA", 0xEE)), packets.ErrorInvalidGameState)
	expectError(t, alice.call(packets.GameManagerComponent, packets.JoinGameCommand,
		tdf.NewStruct().SetUint("GID", 9999)), packets.ErrorGameNotFound)
	expectError(t, alice.call(packets.GameManagerComponent, packets.DestroyGameCommand, nil), packets.ErrorInvalidRequest)

	bob.out.reset()
	body := alice.mustCall(packets.GameManagerComponent, packets.DestroyGameCommand, tdf.NewStruct().SetUint("GID", gid))
	if got, _ := body.Uint("GID"); got != gid {
		t.Errorf("GID want = %d, got = %d", gid, got)
	}
	if diff := cmp.Diff([]uint16{packets.NotifyGameRemoved}, bob.out.commands()); diff != "" {
		t.Errorf("unexpected notifications to bob (-want +got):\n%s", diff)
	}
	if bob.sess.GameID() != 0 {
		t.Errorf("bob still in game %d", bob.sess.GameID())
	}
}

func TestPlaygroupFlow(t *testing.T) {
	srv := newTestServer(t)
	alice := loggedIn(t, srv, "alice")
	bob := loggedIn(t, srv, "bob")

	pgid, _ := alice.mustCall(packets.PlaygroupsComponent, packets.CreatePlaygroupCommand,
		tdf.NewStruct().SetString("NAME", "squad").SetUint("MLIM", 2)).Uint("PGID")
	bob.mustCall(packets.PlaygroupsComponent, packets.JoinPlaygroupCommand, tdf.NewStruct().SetUint("PGID", pgid))

	lookup := bob.mustCall(packets.PlaygroupsComponent, packets.LookupPlaygroupCommand, tdf.NewStruct().SetUint("PGID", pgid))
	members, ok := lookup.List("MLST")
	if !ok || members.Len() != 2 {
		t.Errorf("members want 2 entries, got %v", members)
	}

	carol := loggedIn(t, srv, "carol")
	expectError(t, carol.call(packets.PlaygroupsComponent, packets.JoinPlaygroupCommand, tdf.NewStruct().SetUint("PGID", pgid)), packets.ErrorPlaygroupFull)
	expectError(t, bob.call(packets.PlaygroupsComponent, packets.KickPlaygroupMemberCommand,
		tdf.NewStruct().SetUint("PGID", pgid).SetUint("PID", alice.sess.PersonaID())), packets.ErrorNotPlaygroupOwner)

	alice.mustCall(packets.PlaygroupsComponent, packets.KickPlaygroupMemberCommand,
		tdf.NewStruct().SetUint("PGID", pgid).SetUint("PID", bob.sess.PersonaID()))
	if bob.sess.PlaygroupID() != 0 {
		t.Errorf("bob still in playgroup %d", bob.sess.PlaygroupID())
	}
}

func TestMessaging(t *testing.T) {
	srv := newTestServer(t)
	alice := loggedIn(t, srv, "alice")
	bob := loggedIn(t, srv, "bob")

	msg := records.Marshal(&records.ClientMessage{
		Attributes: map[uint32]string{1: "hello"},
		Target:     personaObjectID(bob.sess.PersonaID()),
		Type:       2,
	})
	if id, _ := alice.mustCall(packets.MessagingComponent, packets.SendMessageCommand, msg).Uint("MGID"); id == 0 {
		t.Error("SendMessage returned no message id")
	}
	if diff := cmp.Diff([]uint16{packets.NotifyMessage}, bob.out.commands()); diff != "" {
		t.Errorf("unexpected notifications to bob (-want +got):\n%s", diff)
	}
	var delivered records.ServerMessage
	if err := delivered.Read(bob.out.sentPackets()[0].Body); err != nil {
		t.Fatalf("ServerMessage.Read() returned an unexpected error: %v", err)
	}
	if delivered.Name != "alice" || delivered.Payload.Attributes[1] != "hello" {
		t.Errorf("unexpected message %+v", delivered)
	}

	list, ok := bob.mustCall(packets.MessagingComponent, packets.GetMessagesCommand, nil).List("MSGL")
	if !ok || list.Len() != 1 {
		t.Fatalf("GetMessages want 1 message, got %v", list)
	}

	touched, _ := bob.mustCall(packets.MessagingComponent, packets.TouchMessagesCommand, nil).Uint("MCNT")
	if touched != 1 {
		t.Errorf("touched want = 1, got = %d", touched)
	}
	bob.out.reset()
	fetched, _ := bob.mustCall(packets.MessagingComponent, packets.FetchMessagesCommand, tdf.NewStruct().SetUint("SMSK", 1)).Uint("MCNT")
	if fetched != 1 || len(bob.out.commands()) != 1 {
		t.Errorf("fetched want = 1 with one notification, got = %d with %v", fetched, bob.out.commands())
	}
	purged, _ := bob.mustCall(packets.MessagingComponent, packets.PurgeMessagesCommand, nil).Uint("MCNT")
	if purged != 1 || srv.Mailbox.Count(bob.sess.PersonaID()) != 0 {
		t.Errorf("purged want = 1, got = %d", purged)
	}

	missing := records.Marshal(&records.ClientMessage{Target: personaObjectID(9999)})
	expectError(t, alice.call(packets.MessagingComponent, packets.SendMessageCommand, missing), packets.ErrorTargetNotFound)
}

func listRequest(def lists.Definition, members ...*testClient) *tdf.Struct {
	ids := tdf.NewList(tdf.TypeStruct)
	for _, m := range members {
		ids.Append(records.Marshal(&records.ListMemberId{BlazeID: m.sess.PersonaID()}))
	}
	id := listIdentification(def)
	return tdf.NewStruct().Set("LID", records.Marshal(&id)).Set("BIDL", ids)
}

func TestAssociationLists(t *testing.T) {
	srv := newTestServer(t)
	alice := loggedIn(t, srv, "alice")
	bob := loggedIn(t, srv, "bob")
	carol := loggedIn(t, srv, "carol")

	alice.mustCall(packets.AssociationListsComponent, packets.SubscribeToListsCommand, nil)

	added, _ := alice.mustCall(packets.AssociationListsComponent, packets.AddUsersToListCommand, listRequest(lists.Friends, bob, carol)).List("LMID")
	if added.Len() != 2 {
		t.Errorf("added want = 2, got = %d", added.Len())
	}
	want := []uint16{packets.NotifyUpdateListMembership, packets.NotifyUpdateListMembership}
	if diff := cmp.Diff(want, alice.out.commands()); diff != "" {
		t.Errorf("unexpected notifications (-want +got):\n%s", diff)
	}

	alice.mustCall(packets.AssociationListsComponent, packets.RemoveUsersFromListCommand, listRequest(lists.Friends, carol))

	var members records.ListMembers
	id := listIdentification(lists.Friends)
	body := alice.mustCall(packets.AssociationListsComponent, packets.GetListForUserCommand, tdf.NewStruct().Set("LID", records.Marshal(&id)))
	if err := members.Read(body); err != nil {
		t.Fatalf("ListMembers.Read() returned an unexpected error: %v", err)
	}
	if members.Total != 1 || members.Members[0].Member.PersonaName != "bob" {
		t.Errorf("unexpected friends list %+v", members)
	}

	lmap, _ := alice.mustCall(packets.AssociationListsComponent, packets.GetListsCommand, nil).List("LMAP")
	if lmap.Len() != len(srv.Lists.Definitions()) {
		t.Errorf("lists want = %d, got = %d", len(srv.Lists.Definitions()), lmap.Len())
	}

	alice.mustCall(packets.AssociationListsComponent, packets.SetUsersToListCommand, listRequest(lists.Blocked, carol))
	blocked, err := srv.Lists.Members(alice.sess.PersonaID(), lists.Blocked)
	if err != nil || len(blocked) != 1 || blocked[0].Name != "carol" {
		t.Errorf("unexpected block list %+v (%v)", blocked, err)
	}

	alice.mustCall(packets.AssociationListsComponent, packets.ClearListsCommand, nil)
	if friends, _ := srv.Lists.Members(alice.sess.PersonaID(), lists.Friends); len(friends) != 0 {
		t.Errorf("friends list not cleared: %+v", friends)
	}

	unknown := records.ListIdentification{Name: "enemyList"}
	expectError(t, alice.call(packets.AssociationListsComponent, packets.GetListForUserCommand,
		tdf.NewStruct().Set("LID", records.Marshal(&unknown))), packets.ErrorListNotFound)
}

func TestLookupUser(t *testing.T) {
	srv := newTestServer(t)
	alice := loggedIn(t, srv, "alice")
	bob := loggedIn(t, srv, "bob")

	var user records.UserData
	body := alice.mustCall(packets.UserSessionsComponent, packets.LookupUserCommand, tdf.NewStruct().SetString("NAME", "bob"))
	if err := user.Read(body); err != nil {
		t.Fatalf("UserData.Read() returned an unexpected error: %v", err)
	}
	if user.User.ID != bob.sess.PersonaID() {
		t.Errorf("persona want = %d, got = %d", bob.sess.PersonaID(), user.User.ID)
	}
	if len(user.Extended.Latencies) != 2 {
		t.Errorf("latencies want one per ping site, got %v", user.Extended.Latencies)
	}

	expectError(t, alice.call(packets.UserSessionsComponent, packets.LookupUserCommand, tdf.NewStruct().SetString("NAME", "nobody")), packets.ErrorUserNotFound)
}

func TestUpdateNetworkInfo(t *testing.T) {
	srv := newTestServer(t)
	alice := loggedIn(t, srv, "alice")

	addr := records.IpPairAddress{
		External: records.IpAddress{IP: 0x01020304, Port: 3659},
		Internal: records.IpAddress{IP: 0xC0A80002, Port: 3659},
	}
	latencies := tdf.NewMap(tdf.TypeString, tdf.TypeInteger).
		Put(tdf.String("ams"), tdf.Int(30)).
		Put(tdf.String("iad"), tdf.Int(80))
	body := tdf.NewStruct().
		Set("ADDR", tdf.NewUnion(records.NetworkAddressIpPair, "VALU", records.Marshal(&addr))).
		Set("NLMP", latencies).
		Set("NQOS", records.Marshal(&records.NetworkQosData{UpstreamBps: 2000000, DownstreamBps: 8000000}))

	alice.mustCall(packets.UserSessionsComponent, packets.UpdateNetworkInfoCommand, body)

	ext := alice.sess.Extended()
	if ext.BestPingSite != "ams" {
		t.Errorf("best ping site want = ams, got = %s", ext.BestPingSite)
	}
	if diff := cmp.Diff(map[string]int{"ams": 30, "iad": 80}, ext.Latencies); diff != "" {
		t.Errorf("unexpected latencies (-want +got):\n%s", diff)
	}
	if ext.External.IP != 0x01020304 {
		t.Errorf("external ip want = %#x, got = %#x", 0x01020304, ext.External.IP)
	}
	if diff := cmp.Diff([]uint16{packets.NotifyUserSessionExtendedDataUpdate}, alice.out.commands()); diff != "" {
		t.Errorf("unexpected notifications (-want +got):\n%s", diff)
	}

	bad := tdf.NewStruct().Set("NLMP", tdf.NewMap(tdf.TypeString, tdf.TypeInteger).Put(tdf.String("ams"), tdf.Int(0)))
	expectError(t, alice.call(packets.UserSessionsComponent, packets.UpdateNetworkInfoCommand, bad), packets.ErrorInsufficientData)
	if got := alice.sess.Extended().Latencies["ams"]; got != 30 {
		t.Errorf("previous latency want = 30, got = %d", got)
	}
}

func TestUpdateHardwareFlags(t *testing.T) {
	srv := newTestServer(t)
	alice := loggedIn(t, srv, "alice")

	alice.mustCall(packets.UserSessionsComponent, packets.UpdateHardwareFlagsCommand, tdf.NewStruct().SetUint("HWFG", 3))
	if got := alice.sess.Extended().HardwareFlags; got != 3 {
		t.Errorf("hardware flags want = 3, got = %d", got)
	}
	expectError(t, alice.call(packets.UserSessionsComponent, packets.UpdateHardwareFlagsCommand, nil), packets.ErrorInvalidRequest)
}

// createGame has host create a four player game and returns its id.
func createGame(t *testing.T, host *testClient) uint64 {
	t.Helper()
	create := records.Marshal(&records.CreateGameRequest{GameName: "lobby", Capacity: []uint64{4, 0}})
	gid, _ := host.mustCall(packets.GameManagerComponent, packets.CreateGameCommand, create).Uint("GID")
	if gid == 0 {
		t.Fatal("CreateGame returned no game id")
	}
	return gid
}

func TestRemovePlayer_Leave(t *testing.T) {
	srv := newTestServer(t)
	alice := loggedIn(t, srv, "alice")
	bob := loggedIn(t, srv, "bob")
	gid := createGame(t, alice)
	bob.mustCall(packets.GameManagerComponent, packets.JoinGameCommand, tdf.NewStruct().SetUint("GID", gid))

	leave := tdf.NewStruct().SetUint("GID", gid).SetUint("PID", bob.sess.PersonaID())
	alice.out.reset()
	bob.mustCall(packets.GameManagerComponent, packets.RemovePlayerCommand, leave)
	if diff := cmp.Diff([]uint16{packets.NotifyPlayerRemoved}, alice.out.commands()); diff != "" {
		t.Errorf("unexpected notifications to alice (-want +got):\n%s", diff)
	}
	if bob.sess.GameID() != 0 {
		t.Errorf("bob still in game %d", bob.sess.GameID())
	}

	// Leaving again, with or without PID, succeeds and changes nothing.
	alice.out.reset()
	bob.mustCall(packets.GameManagerComponent, packets.RemovePlayerCommand, leave)
	bob.mustCall(packets.GameManagerComponent, packets.RemovePlayerCommand, tdf.NewStruct().SetUint("GID", gid))
	if got := alice.out.commands(); len(got) != 0 {
		t.Errorf("expected no notifications for a repeated leave, got %v", got)
	}
	if info, ok := srv.Registry.Game(game.GameID(gid)); !ok || len(info.Players) != 1 {
		t.Errorf("expected alice alone in the game, got %+v", info)
	}

	// The last player leaving destroys the game; leaving a missing game is fine too.
	alice.mustCall(packets.GameManagerComponent, packets.RemovePlayerCommand, tdf.NewStruct().SetUint("GID", gid))
	alice.mustCall(packets.GameManagerComponent, packets.RemovePlayerCommand, tdf.NewStruct().SetUint("GID", gid))
	if _, ok := srv.Registry.Game(game.GameID(gid)); ok {
		t.Errorf("game %d still exists", gid)
	}

	// Removing somebody else still requires them to be in the game.
	expectError(t, alice.call(packets.GameManagerComponent, packets.RemovePlayerCommand,
		tdf.NewStruct().SetUint("GID", gid).SetUint("PID", bob.sess.PersonaID())), packets.ErrorGameNotFound)
}

func TestSetPlayerCapacity(t *testing.T) {
	srv := newTestServer(t)
	alice := loggedIn(t, srv, "alice")
	gid := createGame(t, alice)

	strs := tdf.NewList(tdf.TypeString)
	strs.Append(tdf.String("four"))
	negative := tdf.NewList(tdf.TypeInteger)
	negative.Append(tdf.Int(-1))
	tooMany := tdf.NewList(tdf.TypeInteger)
	for i := 0; i < 3; i++ {
		tooMany.Append(tdf.Int(2))
	}
	tests := map[string]*tdf.Struct{
		"missing":      tdf.NewStruct().SetUint("GID", gid),
		"strings":      tdf.NewStruct().SetUint("GID", gid).Set("PCAP", strs),
		"negative":     tdf.NewStruct().SetUint("GID", gid).Set("PCAP", negative),
		"three counts": tdf.NewStruct().SetUint("GID", gid).Set("PCAP", tooMany),
		"empty":        tdf.NewStruct().SetUint("GID", gid).Set("PCAP", tdf.NewList(tdf.TypeInteger)),
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			expectError(t, alice.call(packets.GameManagerComponent, packets.SetPlayerCapacityCommand, body), packets.ErrorInvalidGameSpec)
		})
	}
	if info, _ := srv.Registry.Game(game.GameID(gid)); info.Capacity != 4 {
		t.Errorf("capacity want = 4, got = %d", info.Capacity)
	}

	caps := tdf.NewList(tdf.TypeInteger)
	caps.Append(tdf.Int(6))
	caps.Append(tdf.Int(2))
	alice.mustCall(packets.GameManagerComponent, packets.SetPlayerCapacityCommand, tdf.NewStruct().SetUint("GID", gid).Set("PCAP", caps))
	if info, _ := srv.Registry.Game(game.GameID(gid)); info.Capacity != 8 {
		t.Errorf("capacity want = 8, got = %d", info.Capacity)
	}
}

func TestUpdateMeshConnection_RejectsWholeReport(t *testing.T) {
	srv := newTestServer(t)
	alice := loggedIn(t, srv, "alice")
	bob := loggedIn(t, srv, "bob")
	gid := createGame(t, alice)
	bob.mustCall(packets.GameManagerComponent, packets.JoinGameCommand, tdf.NewStruct().SetUint("GID", gid))

	targets := tdf.NewList(tdf.TypeStruct)
	targets.Append(records.Marshal(&records.PlayerConnectionStatus{PersonaID: alice.sess.PersonaID(), Status: 2}))
	targets.Append(records.Marshal(&records.PlayerConnectionStatus{PersonaID: 9999, Status: 2}))

	alice.out.reset()
	expectError(t, bob.call(packets.GameManagerComponent, packets.UpdateMeshConnectionCommand,
		tdf.NewStruct().SetUint("GID", gid).Set("TARG", targets)), packets.ErrorNotGameMember)
	if got := alice.out.commands(); len(got) != 0 {
		t.Errorf("expected no notifications after a rejected report, got %v", got)
	}
}

func TestUpdateNetworkInfo_Rejected(t *testing.T) {
	srv := newTestServer(t)
	alice := loggedIn(t, srv, "alice")

	good := tdf.NewMap(tdf.TypeString, tdf.TypeInteger).Put(tdf.String("ams"), tdf.Int(30))
	alice.mustCall(packets.UserSessionsComponent, packets.UpdateNetworkInfoCommand, tdf.NewStruct().Set("NLMP", good))
	before := alice.sess.Extended()

	moved := records.IpPairAddress{External: records.IpAddress{IP: 0x01020304, Port: 3659}}
	withAddr := func(nlmp *tdf.Map) *tdf.Struct {
		body := tdf.NewStruct().Set("ADDR", tdf.NewUnion(records.NetworkAddressIpPair, "VALU", records.Marshal(&moved)))
		if nlmp != nil {
			body.Set("NLMP", nlmp)
		}
		return body
	}
	tests := map[string]*tdf.Struct{
		"no samples":     withAddr(nil),
		"empty samples":  withAddr(tdf.NewMap(tdf.TypeString, tdf.TypeInteger)),
		"unknown sites":  withAddr(tdf.NewMap(tdf.TypeString, tdf.TypeInteger).Put(tdf.String("syd"), tdf.Int(20))),
		"zero latency":   withAddr(tdf.NewMap(tdf.TypeString, tdf.TypeInteger).Put(tdf.String("ams"), tdf.Int(0))),
		"one bad sample": withAddr(tdf.NewMap(tdf.TypeString, tdf.TypeInteger).Put(tdf.String("ams"), tdf.Int(10)).Put(tdf.String("iad"), tdf.Int(-5))),
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			alice.out.reset()
			expectError(t, alice.call(packets.UserSessionsComponent, packets.UpdateNetworkInfoCommand, body), packets.ErrorInsufficientData)
			after := alice.sess.Extended()
			if after.External != before.External {
				t.Errorf("external address want = %+v, got = %+v", before.External, after.External)
			}
			if diff := cmp.Diff(before.Latencies, after.Latencies); diff != "" {
				t.Errorf("latencies changed by a rejected update (-want +got):\n%s", diff)
			}
			if got := alice.out.commands(); len(got) != 0 {
				t.Errorf("expected no notifications, got %v", got)
			}
		})
	}
}
