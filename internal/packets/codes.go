package packets

import "fmt"

// ErrorCode is carried in the header of error replies.
type ErrorCode uint16

// Framework error codes.
const (
	ErrorNone                   ErrorCode = 0x0000
	ErrorSystem                 ErrorCode = 0x0001
	ErrorComponentNotFound      ErrorCode = 0x0002
	ErrorCommandNotFound        ErrorCode = 0x0003
	ErrorAuthenticationRequired ErrorCode = 0x0004
	ErrorTimeout                ErrorCode = 0x0005
)

// Authentication error codes.
const (
	ErrorInvalidCredentials ErrorCode = 0x000B
	ErrorAccountBanned      ErrorCode = 0x000C
	ErrorPersonaNotFound    ErrorCode = 0x000D
	ErrorAlreadyLoggedIn    ErrorCode = 0x000E
)

// GameManager error codes.
const (
	ErrorInvalidGameSpec  ErrorCode = 0x0101
	ErrorGameFull         ErrorCode = 0x0102
	ErrorGameNotFound     ErrorCode = 0x0103
	ErrorInvalidGameState ErrorCode = 0x0104
	ErrorNotGameMember    ErrorCode = 0x0105
	ErrorAlreadyInGame    ErrorCode = 0x0106
	ErrorNotGameHost      ErrorCode = 0x0107
)

// Playgroups error codes.
const (
	ErrorPlaygroupNotFound ErrorCode = 0x0201
	ErrorPlaygroupFull     ErrorCode = 0x0202
	ErrorPlaygroupClosed   ErrorCode = 0x0203
	ErrorNotPlaygroupOwner ErrorCode = 0x0204
	ErrorAlreadyInGroup    ErrorCode = 0x0205
	ErrorNotGroupMember    ErrorCode = 0x0206
)

// Redirector, Util, Messaging, AssociationLists and UserSessions error codes.
const (
	ErrorUnknownService    ErrorCode = 0x0301
	ErrorInsufficientData  ErrorCode = 0x0401
	ErrorSettingNotFound   ErrorCode = 0x0402
	ErrorTargetNotFound    ErrorCode = 0x0501
	ErrorListNotFound      ErrorCode = 0x0601
	ErrorListFull          ErrorCode = 0x0602
	ErrorListMemberMissing ErrorCode = 0x0603
	ErrorUserNotFound      ErrorCode = 0x0701
	ErrorInvalidRequest    ErrorCode = 0x0801
)

var errorCodeNames = map[ErrorCode]string{
	ErrorNone:                   "none",
	ErrorSystem:                 "system error",
	ErrorComponentNotFound:      "component not found",
	ErrorCommandNotFound:        "command not supported",
	ErrorAuthenticationRequired: "not authenticated",
	ErrorTimeout:                "timeout",
	ErrorInvalidCredentials:     "invalid credentials",
	ErrorAccountBanned:          "account banned",
	ErrorPersonaNotFound:        "persona not found",
	ErrorAlreadyLoggedIn:        "already logged in",
	ErrorInvalidGameSpec:        "invalid game spec",
	ErrorGameFull:               "game full",
	ErrorGameNotFound:           "game not found",
	ErrorInvalidGameState:       "invalid game state",
	ErrorNotGameMember:          "not a game member",
	ErrorAlreadyInGame:          "already in a game",
	ErrorNotGameHost:            "not the game host",
	ErrorPlaygroupNotFound:      "playgroup not found",
	ErrorPlaygroupFull:          "playgroup full",
	ErrorPlaygroupClosed:        "playgroup closed",
	ErrorNotPlaygroupOwner:      "not the playgroup owner",
	ErrorAlreadyInGroup:         "already in a playgroup",
	ErrorNotGroupMember:         "not a playgroup member",
	ErrorUnknownService:         "unknown service",
	ErrorInsufficientData:       "insufficient data",
	ErrorSettingNotFound:        "setting not found",
	ErrorTargetNotFound:         "message target not found",
	ErrorListNotFound:           "list not found",
	ErrorListFull:               "list full",
	ErrorListMemberMissing:      "list member not found",
	ErrorUserNotFound:           "user not found",
	ErrorInvalidRequest:         "invalid request",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("error(0x%04X)", uint16(c))
}
