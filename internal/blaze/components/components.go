// Package components implements the handlers of every Blaze component the
// server supports and registers them with the dispatcher.
package components

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dcrodman/blaze/internal/blaze"
	"github.com/dcrodman/blaze/internal/blaze/records"
	"github.com/dcrodman/blaze/internal/core/tdf"
	"github.com/dcrodman/blaze/internal/packets"
	"github.com/dcrodman/blaze/internal/session"
)

// How long an auth token handed out by GetAuthToken can be used for a
// silent login.
const authTokenTTL = 30 * time.Minute

// handlers holds the state shared by the component handlers.
type handlers struct {
	srv *blaze.Server
	// Auth tokens mapped to the account id they were issued for.
	tokens *gocache.Cache
	now    func() time.Time
}

// Register adds the handlers of every component to srv's dispatcher.
func Register(srv *blaze.Server) {
	h := &handlers{
		srv:    srv,
		tokens: gocache.New(authTokenTTL, 2*authTokenTTL),
		now:    time.Now,
	}
	d := srv.Dispatcher
	auth := blaze.RequireAuth()

	d.Register(packets.AuthenticationComponent, packets.LoginCommand, h.login)
	d.Register(packets.AuthenticationComponent, packets.SilentLoginCommand, h.silentLogin)
	d.Register(packets.AuthenticationComponent, packets.LogoutCommand, h.logout, auth)
	d.Register(packets.AuthenticationComponent, packets.ListPersonasCommand, h.listPersonas, auth)
	d.Register(packets.AuthenticationComponent, packets.LoginPersonaCommand, h.loginPersona, auth)
	d.Register(packets.AuthenticationComponent, packets.GetAuthTokenCommand, h.getAuthToken, auth)

	d.Register(packets.GameManagerComponent, packets.CreateGameCommand, h.createGame, auth)
	d.Register(packets.GameManagerComponent, packets.DestroyGameCommand, h.destroyGame, auth)
	d.Register(packets.GameManagerComponent, packets.AdvanceGameStateCommand, h.advanceGameState, auth)
	d.Register(packets.GameManagerComponent, packets.SetGameSettingsCommand, h.setGameSettings, auth)
	d.Register(packets.GameManagerComponent, packets.SetPlayerCapacityCommand, h.setPlayerCapacity, auth)
	d.Register(packets.GameManagerComponent, packets.SetGameAttributesCommand, h.setGameAttributes, auth)
	d.Register(packets.GameManagerComponent, packets.JoinGameCommand, h.joinGame, auth)
	d.Register(packets.GameManagerComponent, packets.RemovePlayerCommand, h.removePlayer, auth)
	d.Register(packets.GameManagerComponent, packets.FinalizeGameCreationCommand, h.finalizeGameCreation, auth)
	d.Register(packets.GameManagerComponent, packets.UpdateMeshConnectionCommand, h.updateMeshConnection, auth)

	d.Register(packets.RedirectorComponent, packets.GetServerInstanceCommand, h.getServerInstance)

	d.Register(packets.PlaygroupsComponent, packets.CreatePlaygroupCommand, h.createPlaygroup, auth)
	d.Register(packets.PlaygroupsComponent, packets.DestroyPlaygroupCommand, h.destroyPlaygroup, auth)
	d.Register(packets.PlaygroupsComponent, packets.JoinPlaygroupCommand, h.joinPlaygroup, auth)
	d.Register(packets.PlaygroupsComponent, packets.LeavePlaygroupCommand, h.leavePlaygroup, auth)
	d.Register(packets.PlaygroupsComponent, packets.SetPlaygroupAttributesCommand, h.setPlaygroupAttributes, auth)
	d.Register(packets.PlaygroupsComponent, packets.SetMemberAttributesCommand, h.setMemberAttributes, auth)
	d.Register(packets.PlaygroupsComponent, packets.KickPlaygroupMemberCommand, h.kickPlaygroupMember, auth)
	d.Register(packets.PlaygroupsComponent, packets.SetPlaygroupJoinControlsCommand, h.setPlaygroupJoinControls, auth)
	d.Register(packets.PlaygroupsComponent, packets.FinalizePlaygroupCommand, h.finalizePlaygroup, auth)
	d.Register(packets.PlaygroupsComponent, packets.LookupPlaygroupCommand, h.lookupPlaygroup, auth)

	d.Register(packets.UtilComponent, packets.FetchClientConfigCommand, h.fetchClientConfig)
	d.Register(packets.UtilComponent, packets.PingCommand, h.ping)
	d.Register(packets.UtilComponent, packets.SetClientDataCommand, h.setClientData, auth)
	d.Register(packets.UtilComponent, packets.GetTelemetryServerCommand, h.getTelemetryServer, auth)
	d.Register(packets.UtilComponent, packets.GetTickerServerCommand, h.getTickerServer, auth)
	d.Register(packets.UtilComponent, packets.PreAuthCommand, h.preAuth)
	d.Register(packets.UtilComponent, packets.PostAuthCommand, h.postAuth, auth)
	d.Register(packets.UtilComponent, packets.UserSettingsLoadCommand, h.userSettingsLoad, auth)
	d.Register(packets.UtilComponent, packets.UserSettingsSaveCommand, h.userSettingsSave, auth)
	d.Register(packets.UtilComponent, packets.UserSettingsLoadAllCommand, h.userSettingsLoadAll, auth)
	d.Register(packets.UtilComponent, packets.SetClientMetricsCommand, h.setClientMetrics, auth)

	d.Register(packets.MessagingComponent, packets.SendMessageCommand, h.sendMessage, auth)
	d.Register(packets.MessagingComponent, packets.FetchMessagesCommand, h.fetchMessages, auth)
	d.Register(packets.MessagingComponent, packets.PurgeMessagesCommand, h.purgeMessages, auth)
	d.Register(packets.MessagingComponent, packets.TouchMessagesCommand, h.touchMessages, auth)
	d.Register(packets.MessagingComponent, packets.GetMessagesCommand, h.getMessages, auth)

	d.Register(packets.AssociationListsComponent, packets.AddUsersToListCommand, h.addUsersToList, auth)
	d.Register(packets.AssociationListsComponent, packets.RemoveUsersFromListCommand, h.removeUsersFromList, auth)
	d.Register(packets.AssociationListsComponent, packets.ClearListsCommand, h.clearLists, auth)
	d.Register(packets.AssociationListsComponent, packets.SetUsersToListCommand, h.setUsersToList, auth)
	d.Register(packets.AssociationListsComponent, packets.GetListForUserCommand, h.getListForUser, auth)
	d.Register(packets.AssociationListsComponent, packets.GetListsCommand, h.getLists, auth)
	d.Register(packets.AssociationListsComponent, packets.SubscribeToListsCommand, h.subscribeToLists, auth)
	d.Register(packets.AssociationListsComponent, packets.UnsubscribeFromListsCommand, h.unsubscribeFromLists, auth)

	d.Register(packets.UserSessionsComponent, packets.UpdateHardwareFlagsCommand, h.updateHardwareFlags, auth)
	d.Register(packets.UserSessionsComponent, packets.LookupUserCommand, h.lookupUser, auth)
	d.Register(packets.UserSessionsComponent, packets.UpdateNetworkInfoCommand, h.updateNetworkInfo, auth)
}

// Type of personas in object ids.
const personaObjectType = 1

func personaObjectID(personaID uint64) tdf.ObjectID {
	return tdf.ObjectID{Component: packets.UserSessionsComponent, EntityType: personaObjectType, ID: personaID}
}

func newToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func userIdentification(s *session.Session) records.UserIdentification {
	return records.UserIdentification{
		Name:   s.PersonaName(),
		ID:     s.PersonaID(),
		Locale: session.PackLocale(s.Extended().Locale),
	}
}

// extendedData converts a session's extended data into its wire record.
// Latencies are listed in ping site order.
func (h *handlers) extendedData(s *session.Session) records.UserSessionExtendedData {
	ext := s.Extended()
	data := records.UserSessionExtendedData{
		BestPingSite:     ext.BestPingSite,
		Country:          ext.Country,
		ClientAttributes: ext.ClientAttributes,
		DataMap:          ext.DataMap,
		HardwareFlags:    ext.HardwareFlags,
		QoS: records.NetworkQosData{
			DownstreamBps: ext.QoS.DownstreamBps,
			NATType:       uint8(ext.QoS.NAT),
			UpstreamBps:   ext.QoS.UpstreamBps,
		},
		UserAttributes: ext.UserAttributes,
		ObjectIDs:      ext.ObjectIDs,
	}
	if ext.Internal.IP != 0 || ext.External.IP != 0 {
		data.Address = &records.IpPairAddress{
			External: records.IpAddress{IP: ext.External.IP, Port: ext.External.Port},
			Internal: records.IpAddress{IP: ext.Internal.IP, Port: ext.Internal.Port},
		}
	}
	for _, site := range h.srv.Prober.Sites() {
		latency, ok := ext.Latencies[site.Alias]
		if !ok {
			latency = -1
		}
		data.Latencies = append(data.Latencies, int64(latency))
	}
	return data
}

func (h *handlers) userData(s *session.Session) *records.UserData {
	return &records.UserData{
		Extended: h.extendedData(s),
		User:     userIdentification(s),
	}
}

// notifyExtendedData tells the session about its own extended data.
func (h *handlers) notifyExtendedData(s *session.Session) {
	data := h.extendedData(s)
	s.Send(packets.NewNotification(packets.UserSessionsComponent, packets.NotifyUserSessionExtendedDataUpdate,
		tdf.NewStruct().
			Set("DATA", records.Marshal(&data)).
			SetUint("USID", s.PersonaID()),
	))
}

// stringMap reads a string to string map field, returning nil when absent.
func stringMap(body *tdf.Struct, label string) map[string]string {
	m, ok := body.Map(label)
	if !ok {
		return nil
	}
	return m.ToStringMap()
}

// requireUint reads a mandatory integer field.
func requireUint(body *tdf.Struct, label string) (uint64, error) {
	v, ok := body.Uint(label)
	if !ok {
		return 0, blaze.Errorf(packets.ErrorInvalidRequest, "missing %s", label)
	}
	return v, nil
}
