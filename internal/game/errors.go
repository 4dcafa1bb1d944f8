package game

import "errors"

var (
	ErrInvalidSpec       = errors.New("invalid game spec")
	ErrGameFull          = errors.New("game is full")
	ErrGameNotFound      = errors.New("game not found")
	ErrInvalidState      = errors.New("invalid game state")
	ErrNotHost           = errors.New("not the game host")
	ErrNotMember         = errors.New("not a member")
	ErrAlreadyMember     = errors.New("already a member")
	ErrPlaygroupNotFound = errors.New("playgroup not found")
	ErrPlaygroupFull     = errors.New("playgroup is full")
	ErrPlaygroupClosed   = errors.New("playgroup is not accepting members")
	ErrNotOwner          = errors.New("not the playgroup owner")
)
