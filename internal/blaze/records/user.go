package records

import "github.com/dcrodman/blaze/internal/core/tdf"

// UserIdentification identifies a user to other users.
type UserIdentification struct {
	Name   string
	ID     uint64
	Locale uint32
}

func (u *UserIdentification) Write(s *tdf.Struct) {
	s.SetUint("ID", u.ID)
	s.SetUint("LOC", uint64(u.Locale))
	s.SetString("NAME", u.Name)
}

func (u *UserIdentification) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.Uint64("ID", &u.ID)
	r.Uint32("LOC", &u.Locale)
	r.String("NAME", &u.Name)
	return r.Err()
}

// JSONAliases maps the plain JSON field names accepted over HTTP to tags.
func (u *UserIdentification) JSONAliases() map[string]string {
	return map[string]string{"name": "NAME", "id": "ID", "localization": "LOC"}
}

type PersonaDetails struct {
	DisplayName     string
	LastUsed        uint32
	PersonaID       uint64
	Status          uint8
	ExternalRef     uint64
	ExternalRefType uint8
}

func (p *PersonaDetails) Write(s *tdf.Struct) {
	s.SetString("DSNM", p.DisplayName)
	s.SetUint("LAST", uint64(p.LastUsed))
	s.SetUint("PID", p.PersonaID)
	s.SetUint("STAS", uint64(p.Status))
	s.SetUint("XREF", p.ExternalRef)
	s.SetUint("XTYP", uint64(p.ExternalRefType))
}

func (p *PersonaDetails) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.String("DSNM", &p.DisplayName)
	r.Uint32("LAST", &p.LastUsed)
	r.Uint64("PID", &p.PersonaID)
	r.Uint8("STAS", &p.Status)
	r.Uint64("XREF", &p.ExternalRef)
	r.Uint8("XTYP", &p.ExternalRefType)
	return r.Err()
}

// SessionInfo is returned by the login commands.
type SessionInfo struct {
	BlazeUserID uint64
	FirstLogin  bool
	SessionKey  string
	LastLogin   int64
	Email       string
	Persona     PersonaDetails
	UserID      uint64
}

func (i *SessionInfo) Write(s *tdf.Struct) {
	s.SetUint("BUID", i.BlazeUserID)
	s.SetBool("FRST", i.FirstLogin)
	s.SetString("KEY", i.SessionKey)
	s.SetInt("LLOG", i.LastLogin)
	s.SetString("MAIL", i.Email)
	s.Set("PDTL", Marshal(&i.Persona))
	s.SetUint("UID", i.UserID)
}

func (i *SessionInfo) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.Uint64("BUID", &i.BlazeUserID)
	r.Bool("FRST", &i.FirstLogin)
	r.String("KEY", &i.SessionKey)
	r.Int64("LLOG", &i.LastLogin)
	r.String("MAIL", &i.Email)
	r.Struct("PDTL", &i.Persona)
	r.Uint64("UID", &i.UserID)
	return r.Err()
}

// UserDetails lists the personas of an account.
type UserDetails struct {
	Email    string
	Personas []PersonaDetails
}

func (d *UserDetails) Write(s *tdf.Struct) {
	s.SetString("MAIL", d.Email)
	s.Set("PLST", structList(d.Personas))
}

func (d *UserDetails) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.String("MAIL", &d.Email)
	readStructList(r, "PLST", &d.Personas)
	return r.Err()
}

type PasswordRulesInfo struct {
	MaxLength  uint16
	MinLength  uint16
	ValidChars string
}

func (p *PasswordRulesInfo) Write(s *tdf.Struct) {
	s.SetUint("MAXS", uint64(p.MaxLength))
	s.SetUint("MINS", uint64(p.MinLength))
	s.SetString("VDCH", p.ValidChars)
}

func (p *PasswordRulesInfo) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.Uint16("MAXS", &p.MaxLength)
	r.Uint16("MINS", &p.MinLength)
	r.String("VDCH", &p.ValidChars)
	return r.Err()
}

// UserData is a user's identity plus extended data, as broadcast by the
// UserSessions component.
type UserData struct {
	Extended UserSessionExtendedData
	Flags    uint32
	User     UserIdentification
}

func (u *UserData) Write(s *tdf.Struct) {
	s.Set("EDAT", Marshal(&u.Extended))
	s.SetUint("FLGS", uint64(u.Flags))
	s.Set("USER", Marshal(&u.User))
}

func (u *UserData) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.Struct("EDAT", &u.Extended)
	r.Uint32("FLGS", &u.Flags)
	r.Struct("USER", &u.User)
	return r.Err()
}

// PresenceInfo is a user's online status.
type PresenceInfo struct {
	Status uint8
	GameID uint64
}

func (p *PresenceInfo) Write(s *tdf.Struct) {
	s.SetUint("GID", p.GameID)
	s.SetUint("STAT", uint64(p.Status))
}

func (p *PresenceInfo) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.Uint64("GID", &p.GameID)
	r.Uint8("STAT", &p.Status)
	return r.Err()
}

// UserOptions are per user toggles saved by the client.
type UserOptions struct {
	TelemetryOptIn uint8
}

func (o *UserOptions) Write(s *tdf.Struct) {
	s.SetUint("TMOP", uint64(o.TelemetryOptIn))
}

func (o *UserOptions) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.Uint8("TMOP", &o.TelemetryOptIn)
	return r.Err()
}
