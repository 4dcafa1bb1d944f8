package packets

import "fmt"

// Component identifiers.
const (
	AuthenticationComponent   = 0x0001
	GameManagerComponent      = 0x0004
	RedirectorComponent       = 0x0005
	PlaygroupsComponent       = 0x0006
	UtilComponent             = 0x0009
	MessagingComponent        = 0x000F
	AssociationListsComponent = 0x0019
	UserSessionsComponent     = 0x7802
)

// Authentication commands.
const (
	LoginCommand        = 0x28
	SilentLoginCommand  = 0x32
	LogoutCommand       = 0x46
	ListPersonasCommand = 0x64
	LoginPersonaCommand = 0x6E
	GetAuthTokenCommand = 0x8C
)

// GameManager commands.
const (
	CreateGameCommand           = 0x01
	DestroyGameCommand          = 0x02
	AdvanceGameStateCommand     = 0x03
	SetGameSettingsCommand      = 0x04
	SetPlayerCapacityCommand    = 0x05
	SetGameAttributesCommand    = 0x07
	JoinGameCommand             = 0x09
	RemovePlayerCommand         = 0x0B
	FinalizeGameCreationCommand = 0x0F
	UpdateMeshConnectionCommand = 0x1D
)

// GameManager notifications.
const (
	NotifyGameCreated          = 0x0B
	NotifyGameRemoved          = 0x0C
	NotifyGameSetup            = 0x14
	NotifyPlayerJoining        = 0x15
	NotifyPlayerJoinCompleted  = 0x1E
	NotifyPlayerConnectionStat = 0x1F
	NotifyPlayerRemoved        = 0x28
	NotifyHostMigrationFinish  = 0x3C
	NotifyGameAttribChange     = 0x50
	NotifyGameStateChange      = 0x64
	NotifyGameSettingsChange   = 0x6E
	NotifyGameCapacityChange   = 0x6F
)

// Redirector commands.
const (
	GetServerInstanceCommand = 0x01
)

// Playgroups commands.
const (
	CreatePlaygroupCommand          = 0x01
	DestroyPlaygroupCommand         = 0x02
	JoinPlaygroupCommand            = 0x03
	LeavePlaygroupCommand           = 0x04
	SetPlaygroupAttributesCommand   = 0x05
	SetMemberAttributesCommand      = 0x06
	KickPlaygroupMemberCommand      = 0x07
	SetPlaygroupJoinControlsCommand = 0x08
	FinalizePlaygroupCommand        = 0x09
	LookupPlaygroupCommand          = 0x0A
)

// Playgroups notifications.
const (
	NotifyDestroyPlaygroup       = 0x32
	NotifyJoinPlaygroup          = 0x33
	NotifyMemberJoinedPlaygroup  = 0x34
	NotifyMemberRemovedPlaygroup = 0x35
	NotifyPlaygroupAttributesSet = 0x36
	NotifyMemberAttributesSet    = 0x45
	NotifyLeaderChange           = 0x4F
	NotifyJoinControlsChange     = 0x50
)

// Util commands.
const (
	FetchClientConfigCommand   = 0x01
	PingCommand                = 0x02
	SetClientDataCommand       = 0x03
	GetTelemetryServerCommand  = 0x05
	GetTickerServerCommand     = 0x06
	PreAuthCommand             = 0x07
	PostAuthCommand            = 0x08
	UserSettingsLoadCommand    = 0x0A
	UserSettingsSaveCommand    = 0x0B
	UserSettingsLoadAllCommand = 0x0C
	SetClientMetricsCommand    = 0x16
)

// Messaging commands and notifications.
const (
	SendMessageCommand   = 0x01
	FetchMessagesCommand = 0x02
	PurgeMessagesCommand = 0x03
	TouchMessagesCommand = 0x04
	GetMessagesCommand   = 0x05

	NotifyMessage = 0x01
)

// AssociationLists commands and notifications.
const (
	AddUsersToListCommand       = 0x01
	RemoveUsersFromListCommand  = 0x02
	ClearListsCommand           = 0x03
	SetUsersToListCommand       = 0x04
	GetListForUserCommand       = 0x05
	GetListsCommand             = 0x06
	SubscribeToListsCommand     = 0x07
	UnsubscribeFromListsCommand = 0x08
	GetMemberHashCommand        = 0x09

	NotifyUpdateListMembership = 0x01
)

// UserSessions commands and notifications.
const (
	UpdateHardwareFlagsCommand = 0x08
	LookupUserCommand          = 0x0C
	UpdateNetworkInfoCommand   = 0x14

	NotifyUserSessionExtendedDataUpdate = 0x01
	NotifyUserAdded                     = 0x02
	NotifyUserRemoved                   = 0x03
	NotifyUserUpdated                   = 0x05
	NotifyUserAuthenticated             = 0x08
)

var componentNames = map[uint16]string{
	AuthenticationComponent:   "Authentication",
	GameManagerComponent:      "GameManager",
	RedirectorComponent:       "Redirector",
	PlaygroupsComponent:       "Playgroups",
	UtilComponent:             "Util",
	MessagingComponent:        "Messaging",
	AssociationListsComponent: "AssociationLists",
	UserSessionsComponent:     "UserSessions",
}

type commandKey struct {
	component, command uint16
	notification       bool
}

var commandNames = map[commandKey]string{
	{AuthenticationComponent, LoginCommand, false}:        "Login",
	{AuthenticationComponent, SilentLoginCommand, false}:  "SilentLogin",
	{AuthenticationComponent, LogoutCommand, false}:       "Logout",
	{AuthenticationComponent, ListPersonasCommand, false}: "ListPersonas",
	{AuthenticationComponent, LoginPersonaCommand, false}: "LoginPersona",
	{AuthenticationComponent, GetAuthTokenCommand, false}: "GetAuthToken",

	{GameManagerComponent, CreateGameCommand, false}:           "CreateGame",
	{GameManagerComponent, DestroyGameCommand, false}:          "DestroyGame",
	{GameManagerComponent, AdvanceGameStateCommand, false}:     "AdvanceGameState",
	{GameManagerComponent, SetGameSettingsCommand, false}:      "SetGameSettings",
	{GameManagerComponent, SetPlayerCapacityCommand, false}:    "SetPlayerCapacity",
	{GameManagerComponent, SetGameAttributesCommand, false}:    "SetGameAttributes",
	{GameManagerComponent, JoinGameCommand, false}:             "JoinGame",
	{GameManagerComponent, RemovePlayerCommand, false}:         "RemovePlayer",
	{GameManagerComponent, FinalizeGameCreationCommand, false}: "FinalizeGameCreation",
	{GameManagerComponent, UpdateMeshConnectionCommand, false}: "UpdateMeshConnection",
	{GameManagerComponent, NotifyGameCreated, true}:            "NotifyGameCreated",
	{GameManagerComponent, NotifyGameRemoved, true}:            "NotifyGameRemoved",
	{GameManagerComponent, NotifyGameSetup, true}:              "NotifyGameSetup",
	{GameManagerComponent, NotifyPlayerJoining, true}:          "NotifyPlayerJoining",
	{GameManagerComponent, NotifyPlayerJoinCompleted, true}:    "NotifyPlayerJoinCompleted",
	{GameManagerComponent, NotifyPlayerConnectionStat, true}:   "NotifyPlayerConnectionStatus",
	{GameManagerComponent, NotifyPlayerRemoved, true}:          "NotifyPlayerRemoved",
	{GameManagerComponent, NotifyHostMigrationFinish, true}:    "NotifyHostMigrationFinished",
	{GameManagerComponent, NotifyGameAttribChange, true}:       "NotifyGameAttribChange",
	{GameManagerComponent, NotifyGameStateChange, true}:        "NotifyGameStateChange",
	{GameManagerComponent, NotifyGameSettingsChange, true}:     "NotifyGameSettingsChange",
	{GameManagerComponent, NotifyGameCapacityChange, true}:     "NotifyGameCapacityChange",

	{RedirectorComponent, GetServerInstanceCommand, false}: "GetServerInstance",

	{PlaygroupsComponent, CreatePlaygroupCommand, false}:          "CreatePlaygroup",
	{PlaygroupsComponent, DestroyPlaygroupCommand, false}:         "DestroyPlaygroup",
	{PlaygroupsComponent, JoinPlaygroupCommand, false}:            "JoinPlaygroup",
	{PlaygroupsComponent, LeavePlaygroupCommand, false}:           "LeavePlaygroup",
	{PlaygroupsComponent, SetPlaygroupAttributesCommand, false}:   "SetPlaygroupAttributes",
	{PlaygroupsComponent, SetMemberAttributesCommand, false}:      "SetMemberAttributes",
	{PlaygroupsComponent, KickPlaygroupMemberCommand, false}:      "KickPlaygroupMember",
	{PlaygroupsComponent, SetPlaygroupJoinControlsCommand, false}: "SetPlaygroupJoinControls",
	{PlaygroupsComponent, FinalizePlaygroupCommand, false}:        "FinalizePlaygroupCreation",
	{PlaygroupsComponent, LookupPlaygroupCommand, false}:          "LookupPlaygroupInfo",
	{PlaygroupsComponent, NotifyDestroyPlaygroup, true}:           "NotifyDestroyPlaygroup",
	{PlaygroupsComponent, NotifyJoinPlaygroup, true}:              "NotifyJoinPlaygroup",
	{PlaygroupsComponent, NotifyMemberJoinedPlaygroup, true}:      "NotifyMemberJoinedPlaygroup",
	{PlaygroupsComponent, NotifyMemberRemovedPlaygroup, true}:     "NotifyMemberRemovedFromPlaygroup",
	{PlaygroupsComponent, NotifyPlaygroupAttributesSet, true}:     "NotifyPlaygroupAttributesSet",
	{PlaygroupsComponent, NotifyMemberAttributesSet, true}:        "NotifyMemberAttributesSet",
	{PlaygroupsComponent, NotifyLeaderChange, true}:               "NotifyLeaderChange",
	{PlaygroupsComponent, NotifyJoinControlsChange, true}:         "NotifyJoinControlsChange",

	{UtilComponent, FetchClientConfigCommand, false}:   "FetchClientConfig",
	{UtilComponent, PingCommand, false}:                "Ping",
	{UtilComponent, SetClientDataCommand, false}:       "SetClientData",
	{UtilComponent, GetTelemetryServerCommand, false}:  "GetTelemetryServer",
	{UtilComponent, GetTickerServerCommand, false}:     "GetTickerServer",
	{UtilComponent, PreAuthCommand, false}:             "PreAuth",
	{UtilComponent, PostAuthCommand, false}:            "PostAuth",
	{UtilComponent, UserSettingsLoadCommand, false}:    "UserSettingsLoad",
	{UtilComponent, UserSettingsSaveCommand, false}:    "UserSettingsSave",
	{UtilComponent, UserSettingsLoadAllCommand, false}: "UserSettingsLoadAll",
	{UtilComponent, SetClientMetricsCommand, false}:    "SetClientMetrics",

	{MessagingComponent, SendMessageCommand, false}:   "SendMessage",
	{MessagingComponent, FetchMessagesCommand, false}: "FetchMessages",
	{MessagingComponent, PurgeMessagesCommand, false}: "PurgeMessages",
	{MessagingComponent, TouchMessagesCommand, false}: "TouchMessages",
	{MessagingComponent, GetMessagesCommand, false}:   "GetMessages",
	{MessagingComponent, NotifyMessage, true}:         "NotifyMessage",

	{AssociationListsComponent, AddUsersToListCommand, false}:       "AddUsersToList",
	{AssociationListsComponent, RemoveUsersFromListCommand, false}:  "RemoveUsersFromList",
	{AssociationListsComponent, ClearListsCommand, false}:           "ClearLists",
	{AssociationListsComponent, SetUsersToListCommand, false}:       "SetUsersToList",
	{AssociationListsComponent, GetListForUserCommand, false}:       "GetListForUser",
	{AssociationListsComponent, GetListsCommand, false}:             "GetLists",
	{AssociationListsComponent, SubscribeToListsCommand, false}:     "SubscribeToLists",
	{AssociationListsComponent, UnsubscribeFromListsCommand, false}: "UnsubscribeFromLists",
	{AssociationListsComponent, GetMemberHashCommand, false}:        "GetMemberHash",
	{AssociationListsComponent, NotifyUpdateListMembership, true}:   "NotifyUpdateListMembership",

	{UserSessionsComponent, UpdateHardwareFlagsCommand, false}:         "UpdateHardwareFlags",
	{UserSessionsComponent, LookupUserCommand, false}:                  "LookupUser",
	{UserSessionsComponent, UpdateNetworkInfoCommand, false}:           "UpdateNetworkInfo",
	{UserSessionsComponent, NotifyUserSessionExtendedDataUpdate, true}: "NotifyUserSessionExtendedDataUpdate",
	{UserSessionsComponent, NotifyUserAdded, true}:                     "NotifyUserAdded",
	{UserSessionsComponent, NotifyUserRemoved, true}:                   "NotifyUserRemoved",
	{UserSessionsComponent, NotifyUserUpdated, true}:                   "NotifyUserUpdated",
	{UserSessionsComponent, NotifyUserAuthenticated, true}:             "NotifyUserAuthenticated",
}

// ComponentName returns a readable name for a component id.
func ComponentName(component uint16) string {
	if name, ok := componentNames[component]; ok {
		return name
	}
	return fmt.Sprintf("Component(0x%04X)", component)
}

// CommandName returns a readable "Component.Command" label for logging.
func CommandName(component, command uint16, t MessageType) string {
	key := commandKey{component: component, command: command, notification: t == NotificationType}
	if name, ok := commandNames[key]; ok {
		return ComponentName(component) + "." + name
	}
	return fmt.Sprintf("%s.0x%04X", ComponentName(component), command)
}
