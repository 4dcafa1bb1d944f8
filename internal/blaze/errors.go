package blaze

import (
	"errors"
	"fmt"

	"github.com/dcrodman/blaze/internal/blaze/records"
	"github.com/dcrodman/blaze/internal/core/auth"
	"github.com/dcrodman/blaze/internal/core/tdf"
	"github.com/dcrodman/blaze/internal/game"
	"github.com/dcrodman/blaze/internal/lists"
	"github.com/dcrodman/blaze/internal/packets"
	"github.com/dcrodman/blaze/internal/qos"
	"github.com/dcrodman/blaze/internal/redirector"
	"github.com/dcrodman/blaze/internal/session"
)

// Error is returned by handlers to answer a request with an error reply
// carrying Code.
type Error struct {
	Code packets.ErrorCode
	Err  error
}

// NewError returns an Error for code with no further detail.
func NewError(code packets.ErrorCode) *Error {
	return &Error{Code: code}
}

// Errorf returns an Error for code with a formatted cause.
func Errorf(code packets.ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Sentinel errors of the services handlers call, and the reply code each
// one is answered with.
var errorCodes = []struct {
	err  error
	code packets.ErrorCode
}{
	{game.ErrInvalidSpec, packets.ErrorInvalidGameSpec},
	{game.ErrGameFull, packets.ErrorGameFull},
	{game.ErrGameNotFound, packets.ErrorGameNotFound},
	{game.ErrInvalidState, packets.ErrorInvalidGameState},
	{game.ErrNotHost, packets.ErrorNotGameHost},
	{game.ErrNotMember, packets.ErrorNotGameMember},
	{game.ErrAlreadyMember, packets.ErrorAlreadyInGame},
	{game.ErrPlaygroupNotFound, packets.ErrorPlaygroupNotFound},
	{game.ErrPlaygroupFull, packets.ErrorPlaygroupFull},
	{game.ErrPlaygroupClosed, packets.ErrorPlaygroupClosed},
	{game.ErrNotOwner, packets.ErrorNotPlaygroupOwner},
	{lists.ErrListNotFound, packets.ErrorListNotFound},
	{lists.ErrListFull, packets.ErrorListFull},
	{lists.ErrMemberNotFound, packets.ErrorListMemberMissing},
	{qos.ErrInsufficientData, packets.ErrorInsufficientData},
	{qos.ErrUnknownSite, packets.ErrorInsufficientData},
	{redirector.ErrUnknownService, packets.ErrorUnknownService},
	{auth.ErrInvalidCredentials, packets.ErrorInvalidCredentials},
	{auth.ErrAccountBanned, packets.ErrorAccountBanned},
	{session.ErrInvalidTransition, packets.ErrorInvalidRequest},
	{session.ErrPersonaInUse, packets.ErrorAlreadyLoggedIn},
	{records.ErrInvalidField, packets.ErrorInvalidRequest},
	{tdf.ErrMalformedInput, packets.ErrorInvalidRequest},
}

// ErrorCode returns the reply code for err. Errors nothing knows about are
// system errors.
func ErrorCode(err error) packets.ErrorCode {
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return packets.ErrorSystem
}
