package internal

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/dcrodman/blaze/internal/blaze"
	"github.com/dcrodman/blaze/internal/core/client"
	"github.com/dcrodman/blaze/internal/core/debug"
	"github.com/dcrodman/blaze/internal/packets"
	"github.com/dcrodman/blaze/internal/session"
)

// Backend is an interface for a sub-server that handles a specific set of client
// interactions as part of the game flow.
type Backend interface {
	// Identifier returns a uniquely identifying string.
	Identifier() string

	// Init is called before a Backend is started as a hook for the Backend to
	// perform any necessary initialization before it can accept clients.
	Init(ctx context.Context) error

	// SetUpClient performs any initialization on the Client needed to be
	// able to begin the session.
	SetUpClient(c *client.Client, sess *session.Session)

	// Handle is the main entry point for processing client packets. It's responsible
	// for generally handling all packets from a client as well as sending any responses.
	// A returned error ends the connection.
	Handle(ctx context.Context, c *client.Client, sess *session.Session, p *packets.Packet) error
}

// endpoint is a Backend that feeds packets from one listening port into the
// shared dispatcher. Every endpoint serves the same Server; they differ in
// which components they accept.
type endpoint struct {
	Name   string
	Server *blaze.Server
	// Components accepted on this endpoint. Empty accepts everything.
	Components []uint16
	// Write decoded packets to stdout.
	PacketLogging bool
}

func (e *endpoint) Identifier() string { return e.Name }

func (e *endpoint) Init(ctx context.Context) error { return nil }

func (e *endpoint) SetUpClient(c *client.Client, sess *session.Session) {
	c.DebugTags["endpoint"] = e.Name
	c.DebugTags["session"] = sess.ID()
	c.Debug = e.PacketLogging
	c.OnSend = func(p *packets.Packet) {
		e.Server.Metrics.PacketSent()
		if c.Debug {
			debug.PrintPacket(debug.PrintPacketParams{
				Writer:   os.Stdout,
				Endpoint: e.Name,
				Packet:   p,
			})
		}
	}
}

func (e *endpoint) accepts(component uint16) bool {
	if len(e.Components) == 0 {
		return true
	}
	for _, c := range e.Components {
		if c == component {
			return true
		}
	}
	return false
}

// Handle dispatches one request. Notifications queued by the handler are held
// back until the reply is in the outbox so that the client always sees the
// reply first.
func (e *endpoint) Handle(ctx context.Context, c *client.Client, sess *session.Session, p *packets.Packet) error {
	if !e.accepts(p.Header.Component) {
		if p.Header.Type == packets.RequestType {
			return c.Send(packets.NewErrorReply(p, packets.ErrorComponentNotFound, nil))
		}
		return nil
	}

	logger := e.Server.Logger.WithFields(logrus.Fields{
		"endpoint": e.Name,
		"session":  sess.ID(),
	})

	outbox := c.Outbox()
	outbox.Hold()
	reply := e.Server.Dispatcher.Dispatch(ctx, &blaze.Request{
		Session: sess,
		Packet:  p,
		Server:  e.Server,
		Logger:  logger,
	})
	outbox.Release(reply)
	return nil
}
