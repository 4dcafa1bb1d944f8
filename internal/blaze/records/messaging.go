package records

import "github.com/dcrodman/blaze/internal/core/tdf"

// ClientMessage is a message as submitted by a client.
type ClientMessage struct {
	Attributes map[uint32]string
	Flags      uint32
	Status     uint32
	Tag        uint32
	Target     tdf.ObjectID
	Type       uint32
}

func (m *ClientMessage) Write(s *tdf.Struct) {
	s.Set("ATTR", uint32StringMap(m.Attributes))
	s.SetUint("FLAG", uint64(m.Flags))
	s.SetUint("STAT", uint64(m.Status))
	s.SetUint("TAG", uint64(m.Tag))
	s.SetObjectID("TARG", m.Target)
	s.SetUint("TYPE", uint64(m.Type))
}

func (m *ClientMessage) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.Uint32StringMap("ATTR", &m.Attributes)
	r.Uint32("FLAG", &m.Flags)
	r.Uint32("STAT", &m.Status)
	r.Uint32("TAG", &m.Tag)
	r.ObjectID("TARG", &m.Target)
	r.Uint32("TYPE", &m.Type)
	return r.Err()
}

// ServerMessage is a delivered message.
type ServerMessage struct {
	Flags     uint32
	MessageID uint32
	Name      string
	Payload   ClientMessage
	Source    tdf.ObjectID
	// Seconds since the epoch.
	Time uint32
}

func (m *ServerMessage) Write(s *tdf.Struct) {
	s.SetUint("FLAG", uint64(m.Flags))
	s.SetUint("MGID", uint64(m.MessageID))
	s.SetString("NAME", m.Name)
	s.Set("PYLD", Marshal(&m.Payload))
	s.SetObjectID("SRCE", m.Source)
	s.SetUint("TIME", uint64(m.Time))
}

func (m *ServerMessage) Read(s *tdf.Struct) error {
	r := newReader(s)
	r.Uint32("FLAG", &m.Flags)
	r.Uint32("MGID", &m.MessageID)
	r.String("NAME", &m.Name)
	r.Struct("PYLD", &m.Payload)
	r.ObjectID("SRCE", &m.Source)
	r.Uint32("TIME", &m.Time)
	return r.Err()
}
