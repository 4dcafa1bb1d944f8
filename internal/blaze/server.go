// Package blaze ties the protocol services together: the dispatcher that
// routes client requests to handlers and the Server context those handlers
// act on.
package blaze

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/dcrodman/blaze/internal/core"
	"github.com/dcrodman/blaze/internal/game"
	"github.com/dcrodman/blaze/internal/lists"
	"github.com/dcrodman/blaze/internal/messaging"
	"github.com/dcrodman/blaze/internal/qos"
	"github.com/dcrodman/blaze/internal/redirector"
	"github.com/dcrodman/blaze/internal/session"
)

// Server is the shared state behind every endpoint. There is one per
// process, built at startup and passed to whatever needs it.
type Server struct {
	Config     *core.Config
	Logger     *logrus.Logger
	DB         *gorm.DB
	Sessions   *session.Manager
	Registry   *game.Registry
	Resolver   *redirector.Resolver
	Prober     *qos.Prober
	Lists      *lists.Store
	Mailbox    *messaging.Mailbox
	Dispatcher *Dispatcher
	Metrics    *Metrics
	// Collectors exposed on the admin /metrics endpoint.
	Gatherer prometheus.Gatherer
}

// NewServer builds the services described by cfg. Game lifecycle events
// are published to sink, which may be nil.
func NewServer(cfg *core.Config, logger *logrus.Logger, db *gorm.DB, sink game.EventSink) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		Sessions: session.NewManager(),
		Registry: game.NewRegistry(sink),
		Resolver: redirector.NewResolver(Routes(cfg)),
		Prober:   qos.NewProber(proberConfig(cfg)),
		Lists:    lists.NewStore(db),
		Mailbox:  messaging.NewMailbox(messaging.DefaultLimit),
		Gatherer: registry,
	}
	s.Metrics = NewMetrics(registry, s.Registry.Counts)
	s.Dispatcher = NewDispatcher(logger, s.Metrics)
	return s
}

// Routes converts the configured redirector routes. Routes without an IP
// use the server's external IP.
func Routes(cfg *core.Config) []redirector.Route {
	routes := make([]redirector.Route, 0, len(cfg.Redirector.Routes))
	for _, r := range cfg.Redirector.Routes {
		ip := r.IP
		if ip == "" {
			ip = cfg.ExternalIP
		}
		clientType := r.ClientType
		if clientType == "" {
			clientType = redirector.AnyClientType
		}
		routes = append(routes, redirector.Route{
			ServiceName: r.ServiceName,
			ClientType:  clientType,
			Address: redirector.ServerAddress{
				Hostname: r.Hostname,
				IP:       ip,
				Port:     uint16(r.Port),
				Secure:   r.Secure,
			},
		})
	}
	return routes
}

func proberConfig(cfg *core.Config) qos.Config {
	sites := make([]qos.Site, 0, len(cfg.Qos.Sites))
	for _, s := range cfg.Qos.Sites {
		sites = append(sites, qos.Site{
			Alias:   s.Alias,
			Name:    s.Name,
			Address: s.Address,
			Port:    uint16(s.Port),
		})
	}
	return qos.Config{
		Sites:           sites,
		LatencyProbes:   cfg.Qos.LatencyProbes,
		ServiceID:       uint32(cfg.Qos.ServiceID),
		WindowSize:      cfg.Qos.WindowSize,
		SampleTTL:       time.Duration(cfg.Qos.SampleTTL) * time.Second,
		MediumBandwidth: uint32(cfg.Qos.MediumBandwidth),
		HighBandwidth:   uint32(cfg.Qos.HighBandwidth),
	}
}

// Connect registers a session for a newly accepted connection.
func (s *Server) Connect(endpoint, remoteAddr string, sender session.Sender) *session.Session {
	sess := s.Sessions.Create(endpoint, remoteAddr, sender)
	s.Metrics.SessionOpened(endpoint)
	return sess
}

// Disconnect releases the session's game and playgroup slots before
// forgetting the session. Calling it more than once is harmless.
func (s *Server) Disconnect(sess *session.Session) {
	s.Registry.RemoveSession(sess.ID())
	s.Prober.Forget(sess.ID())

	personaID := sess.PersonaID()
	if _, ok := s.Sessions.Remove(sess.ID()); !ok {
		return
	}
	s.Metrics.SessionClosed(sess.Endpoint())

	if personaID != 0 {
		if _, online := s.Sessions.FindByPersona(personaID); !online {
			s.Lists.Forget(personaID)
		}
	}
}

// Shutdown disconnects every remaining session.
func (s *Server) Shutdown() {
	for _, info := range s.Sessions.Snapshot() {
		if sess, ok := s.Sessions.Get(info.ID); ok {
			s.Disconnect(sess)
		}
	}
}
