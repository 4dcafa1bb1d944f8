package blaze

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dcrodman/blaze/internal/blaze/records"
	"github.com/dcrodman/blaze/internal/core/tdf"
	"github.com/dcrodman/blaze/internal/packets"
	"github.com/dcrodman/blaze/internal/session"
)

// Request is a decoded client request along with everything a handler
// needs to act on it.
type Request struct {
	Session *session.Session
	Packet  *packets.Packet
	Body    *tdf.Struct
	Server  *Server
	Logger  logrus.FieldLogger
}

// Read decodes the request body into r. A body that doesn't fit r is
// answered as an invalid request.
func (r *Request) Read(rec records.Record) error {
	if err := records.Unmarshal(r.Body, rec); err != nil {
		return &Error{Code: packets.ErrorInvalidRequest, Err: err}
	}
	return nil
}

// HandlerFunc handles one command. The returned struct becomes the body of
// the reply; an error becomes an error reply instead.
type HandlerFunc func(ctx context.Context, req *Request) (*tdf.Struct, error)

type Option func(*route)

// RequireAuth rejects the command for sessions that haven't logged in.
func RequireAuth() Option {
	return func(r *route) { r.requireAuth = true }
}

type routeKey struct {
	component, command uint16
}

type route struct {
	handler     HandlerFunc
	requireAuth bool
	component   string
	command     string
}

// Dispatcher routes requests to the handler registered for their component
// and command. Registration happens before the servers start and the route
// table is read-only afterwards.
type Dispatcher struct {
	routes  map[routeKey]*route
	logger  logrus.FieldLogger
	metrics *Metrics
}

func NewDispatcher(logger logrus.FieldLogger, metrics *Metrics) *Dispatcher {
	return &Dispatcher{
		routes:  make(map[routeKey]*route),
		logger:  logger,
		metrics: metrics,
	}
}

// Register adds the handler for a command. Registering the same command
// twice is a programming error and panics.
func (d *Dispatcher) Register(component, command uint16, h HandlerFunc, opts ...Option) {
	key := routeKey{component, command}
	if _, ok := d.routes[key]; ok {
		panic(fmt.Sprintf("duplicate handler for %s", packets.CommandName(component, command, packets.RequestType)))
	}
	r := &route{
		handler:   h,
		component: packets.ComponentName(component),
		command:   packets.CommandName(component, command, packets.RequestType),
	}
	for _, opt := range opts {
		opt(r)
	}
	d.routes[key] = r
}

// Dispatch runs the handler for req and returns the reply to send. Every
// request gets exactly one reply with its correlation id; packets that
// aren't requests get none.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (reply *packets.Packet) {
	p := req.Packet
	if p.Header.Type != packets.RequestType {
		d.logger.Warnf("ignoring %s from %s", p, req.Session)
		return nil
	}

	r, ok := d.routes[routeKey{p.Header.Component, p.Header.Command}]
	if !ok {
		d.logger.Debugf("no handler for %s", p)
		return d.errorReply(nil, p, packets.ErrorCommandNotFound)
	}
	if r.requireAuth && !req.Session.IsAuthenticated() {
		return d.errorReply(r, p, packets.ErrorAuthenticationRequired)
	}

	if req.Body == nil {
		req.Body = p.Body
	}
	if req.Logger == nil {
		req.Logger = d.logger
	}

	start := time.Now()
	defer func() {
		if err := recover(); err != nil {
			d.logger.Errorf("panic handling %s for %s: error=%v, trace: %s", p, req.Session, err, debug.Stack())
			if d.metrics != nil {
				d.metrics.panicsTotal.Inc()
			}
			reply = d.errorReply(r, p, packets.ErrorSystem)
		}
	}()

	body, err := r.handler(ctx, req)
	if d.metrics != nil {
		d.metrics.commandsTotal.WithLabelValues(r.component, r.command).Inc()
		d.metrics.commandDuration.WithLabelValues(r.component, r.command).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		code := ErrorCode(err)
		if code == packets.ErrorSystem {
			d.logger.Errorf("error handling %s for %s: %v", p, req.Session, err)
		} else {
			d.logger.Debugf("%s for %s failed: %v", p, req.Session, err)
		}
		return d.errorReply(r, p, code)
	}
	return packets.NewReply(p, body)
}

func (d *Dispatcher) errorReply(r *route, p *packets.Packet, code packets.ErrorCode) *packets.Packet {
	if d.metrics != nil {
		component, command := packets.ComponentName(p.Header.Component), "unknown"
		if r != nil {
			command = r.command
		}
		d.metrics.commandErrors.WithLabelValues(component, command, code.String()).Inc()
	}
	return packets.NewErrorReply(p, code, nil)
}
