package components

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dcrodman/blaze/internal/blaze"
	"github.com/dcrodman/blaze/internal/blaze/records"
	"github.com/dcrodman/blaze/internal/core/auth"
	"github.com/dcrodman/blaze/internal/core/data"
	"github.com/dcrodman/blaze/internal/core/tdf"
	"github.com/dcrodman/blaze/internal/packets"
	"github.com/dcrodman/blaze/internal/session"
)

// login authenticates with an email and password and selects the persona
// the account used most recently.
func (h *handlers) login(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	email := req.Body.StrOr("MAIL", "")
	password := req.Body.StrOr("PASS", "")
	sess := req.Session

	if err := sess.BeginLogin(); err != nil {
		return nil, blaze.Errorf(packets.ErrorAlreadyLoggedIn, "%v", err)
	}
	account, err := h.verifyAccount(email, password)
	if err != nil {
		sess.FailLogin()
		return nil, err
	}
	persona, err := h.defaultPersona(account)
	if err != nil {
		sess.FailLogin()
		return nil, err
	}
	return h.completeLogin(req, account, persona)
}

// silentLogin authenticates with a token from GetAuthToken.
func (h *handlers) silentLogin(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	token := req.Body.StrOr("AUTH", "")
	personaID := req.Body.UintOr("PID", 0)
	sess := req.Session

	if err := sess.BeginLogin(); err != nil {
		return nil, blaze.Errorf(packets.ErrorAlreadyLoggedIn, "%v", err)
	}

	accountID, ok := h.tokens.Get(token)
	if !ok {
		sess.FailLogin()
		return nil, blaze.Errorf(packets.ErrorInvalidCredentials, "unknown auth token")
	}
	account, err := data.FindAccountByID(h.srv.DB, accountID.(uint64))
	if err != nil {
		sess.FailLogin()
		return nil, fmt.Errorf("looking up account %d: %w", accountID, err)
	} else if account == nil {
		sess.FailLogin()
		return nil, blaze.Errorf(packets.ErrorInvalidCredentials, "account %d no longer exists", accountID)
	} else if account.Banned || !account.Active {
		sess.FailLogin()
		return nil, auth.ErrAccountBanned
	}

	var persona *data.Persona
	if personaID == 0 {
		persona, err = h.defaultPersona(account)
	} else {
		persona, err = h.accountPersona(account, func(p *data.Persona) bool { return p.ID == personaID })
	}
	if err != nil {
		sess.FailLogin()
		return nil, err
	}
	return h.completeLogin(req, account, persona)
}

func (h *handlers) logout(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	sess := req.Session
	h.srv.Registry.RemoveSession(sess.ID())
	h.tokens.Delete(sess.AuthToken())
	if err := sess.Logout(); err != nil {
		return nil, err
	}
	req.Logger.Infof("%s logged out", sess)
	return nil, nil
}

func (h *handlers) listPersonas(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	identity := req.Session.Identity()
	personas, err := data.FindPersonas(h.srv.DB, identity.AccountID)
	if err != nil {
		return nil, fmt.Errorf("listing personas of account %d: %w", identity.AccountID, err)
	}
	details := &records.UserDetails{Email: identity.Email}
	for i := range personas {
		details.Personas = append(details.Personas, personaDetails(&personas[i]))
	}
	return records.Marshal(details), nil
}

// loginPersona switches the session to another persona of its account.
func (h *handlers) loginPersona(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	name := req.Body.StrOr("PNAM", "")
	sess := req.Session
	identity := sess.Identity()

	account, err := data.FindAccountByID(h.srv.DB, identity.AccountID)
	if err != nil {
		return nil, fmt.Errorf("looking up account %d: %w", identity.AccountID, err)
	} else if account == nil {
		return nil, blaze.Errorf(packets.ErrorInvalidCredentials, "account %d no longer exists", identity.AccountID)
	}
	persona, err := h.accountPersona(account, func(p *data.Persona) bool { return strings.EqualFold(p.DisplayName, name) })
	if err != nil {
		return nil, err
	}
	if err := h.srv.Sessions.SwitchPersona(sess, persona.ID, persona.DisplayName); err != nil {
		return nil, err
	}
	if err := data.TouchPersona(h.srv.DB, persona, h.now()); err != nil {
		req.Logger.Warnf("failed to record use of persona %d: %v", persona.ID, err)
	}
	info := h.sessionInfo(account, persona, sess.AuthToken())
	h.notifyExtendedData(sess)
	return records.Marshal(&info), nil
}

func (h *handlers) getAuthToken(ctx context.Context, req *blaze.Request) (*tdf.Struct, error) {
	token := newToken()
	h.tokens.SetDefault(token, req.Session.Identity().AccountID)
	return tdf.NewStruct().SetString("AUTH", token), nil
}

// verifyAccount checks the credentials, creating the account first when
// auto registration is enabled and the email is unknown.
func (h *handlers) verifyAccount(email, password string) (*data.Account, error) {
	account, err := auth.VerifyAccount(h.srv.DB, email, password)
	if !errors.Is(err, auth.ErrInvalidCredentials) || !h.srv.Config.Auth.AutoRegister {
		return account, err
	}

	existing, lookupErr := data.FindAccountByEmail(h.srv.DB, email)
	if lookupErr != nil || existing != nil {
		return nil, err
	}
	username := email
	if i := strings.IndexByte(email, '@'); i > 0 {
		username = email[:i]
	}
	h.srv.Logger.Infof("registering account %s for %s", username, email)
	return auth.CreateAccount(h.srv.DB, username, password, email)
}

// defaultPersona returns the persona the account used most recently.
func (h *handlers) defaultPersona(account *data.Account) (*data.Persona, error) {
	personas, err := data.FindPersonas(h.srv.DB, account.ID)
	if err != nil {
		return nil, fmt.Errorf("listing personas of account %d: %w", account.ID, err)
	}
	if len(personas) == 0 {
		return nil, blaze.Errorf(packets.ErrorPersonaNotFound, "account %s has no personas", account.Username)
	}
	best := &personas[0]
	for i := range personas[1:] {
		if p := &personas[i+1]; p.LastUsed > best.LastUsed {
			best = p
		}
	}
	return best, nil
}

func (h *handlers) accountPersona(account *data.Account, match func(*data.Persona) bool) (*data.Persona, error) {
	personas, err := data.FindPersonas(h.srv.DB, account.ID)
	if err != nil {
		return nil, fmt.Errorf("listing personas of account %d: %w", account.ID, err)
	}
	for i := range personas {
		if match(&personas[i]) {
			return &personas[i], nil
		}
	}
	return nil, blaze.Errorf(packets.ErrorPersonaNotFound, "account %s", account.Username)
}

// completeLogin promotes the session and tells the client who it is. The
// notifications follow the reply.
func (h *handlers) completeLogin(req *blaze.Request, account *data.Account, persona *data.Persona) (*tdf.Struct, error) {
	sess := req.Session
	token := newToken()
	identity := session.Identity{
		AccountID:   account.ID,
		PersonaID:   persona.ID,
		PersonaName: persona.DisplayName,
		Email:       account.Email,
	}
	if err := h.srv.Sessions.Login(sess, identity, token); err != nil {
		sess.FailLogin()
		return nil, err
	}
	h.tokens.SetDefault(token, account.ID)

	info := h.sessionInfo(account, persona, token)
	now := h.now()
	if err := data.TouchAccountLogin(h.srv.DB, account, now); err != nil {
		req.Logger.Warnf("failed to record login of account %d: %v", account.ID, err)
	}
	if err := data.TouchPersona(h.srv.DB, persona, now); err != nil {
		req.Logger.Warnf("failed to record use of persona %d: %v", persona.ID, err)
	}
	req.Logger.Infof("%s logged in as %s", sess, persona.DisplayName)

	sess.Send(packets.NewNotification(packets.UserSessionsComponent, packets.NotifyUserAdded, records.Marshal(h.userData(sess))))
	h.notifyExtendedData(sess)
	sess.Send(packets.NewNotification(packets.UserSessionsComponent, packets.NotifyUserAuthenticated, records.Marshal(&info)))
	return records.Marshal(&info), nil
}

func (h *handlers) sessionInfo(account *data.Account, persona *data.Persona, token string) records.SessionInfo {
	info := records.SessionInfo{
		BlazeUserID: persona.ID,
		FirstLogin:  account.LastLogin.IsZero(),
		SessionKey:  token,
		Email:       account.Email,
		Persona:     personaDetails(persona),
		UserID:      account.ID,
	}
	if !account.LastLogin.IsZero() {
		info.LastLogin = account.LastLogin.Unix()
	}
	return info
}

func personaDetails(p *data.Persona) records.PersonaDetails {
	return records.PersonaDetails{
		DisplayName:     p.DisplayName,
		LastUsed:        uint32(p.LastUsed),
		PersonaID:       p.ID,
		Status:          p.Status,
		ExternalRef:     p.ExternalRef,
		ExternalRefType: p.ExternalRefType,
	}
}
