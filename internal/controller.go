package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/dcrodman/blaze/internal/admin"
	"github.com/dcrodman/blaze/internal/blaze"
	"github.com/dcrodman/blaze/internal/blaze/components"
	"github.com/dcrodman/blaze/internal/core"
	"github.com/dcrodman/blaze/internal/core/data"
	"github.com/dcrodman/blaze/internal/core/debug"
	"github.com/dcrodman/blaze/internal/game"
	"github.com/dcrodman/blaze/internal/packets"
	"github.com/dcrodman/blaze/internal/telemetry"
)

// Controller is the main entrypoint for blaze. It's responsible for initializing
// any shared resources (such as database and logging), defining the servers, and
// launching everything.
type Controller struct {
	Config *core.Config

	logger *logrus.Logger
	wg     sync.WaitGroup

	db          *gorm.DB
	server      *blaze.Server
	sink        *telemetry.Sink
	adminServer *http.Server
	servers     []*frontend
}

// Start brings up every endpoint and blocks until ctx is cancelled and the
// endpoints have shut down.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.Config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var err error
	// Set up the logger, which will be used by all sub-servers.
	c.logger, err = core.NewLogger(c.Config)
	if err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}
	defer c.Shutdown()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start any debug utilities if we're configured to do so.
	if c.Config.Debugging.Enabled {
		debug.StartUtilities(c.logger, c.Config.Debugging.PprofPort)
	}

	c.db, err = OpenDatabase(c.Config)
	if err != nil {
		return err
	}

	var sink game.EventSink
	if c.Config.MQTT.Broker != "" {
		c.sink, err = telemetry.Dial(c.Config, c.logger.WithField("endpoint", "TELEMETRY"))
		if err != nil {
			return fmt.Errorf("error starting telemetry: %w", err)
		}
		sink = c.sink
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.sink.Run(ctx)
		}()
	}

	c.server = blaze.NewServer(c.Config, c.logger, c.db, sink)
	components.Register(c.server)

	c.startAdminServer()

	// Configure and run all of our servers.
	c.declareServers()
	return c.run(ctx)
}

// OpenDatabase connects to the database selected in the config.
func OpenDatabase(cfg *core.Config) (*gorm.DB, error) {
	dsn := cfg.DatabaseURL()
	if strings.EqualFold(cfg.Database.Engine, "sqlite") {
		dsn = cfg.QualifiedPath(cfg.Database.Filename)
		if err := core.EnsureDir(dsn); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
	}
	db, err := data.Open(cfg.Database.Engine, dsn, cfg.Debugging.DatabaseLoggingEnabled)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	return db, nil
}

func (c *Controller) startAdminServer() {
	if c.Config.Web.HTTPPort <= 0 {
		return
	}
	c.adminServer = &http.Server{
		Addr:              c.Config.Address(c.Config.Web.HTTPPort),
		Handler:           admin.NewRouter(c.server),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		c.logger.Infof("[ADMIN] listening on %s", c.adminServer.Addr)
		if err := c.adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Errorf("[ADMIN] server exited: %v", err)
		}
	}()
}

// Set up all of the servers we want to run. They share one Server and differ
// only in the components each accepts.
func (c *Controller) declareServers() {
	logging := c.Config.Debugging.PacketLoggingEnabled
	connections := newConnections()

	declare := func(name string, port int, accepted ...uint16) *frontend {
		return &frontend{
			Address: c.Config.Address(port),
			Backend: &endpoint{
				Name:          name,
				Server:        c.server,
				Components:    accepted,
				PacketLogging: logging,
			},
			Server:      c.server,
			connections: connections,
		}
	}

	c.servers = []*frontend{
		declare("REDIRECTOR", c.Config.Redirector.Port, packets.RedirectorComponent, packets.UtilComponent),
		declare("BLAZE", c.Config.Blaze.Port),
		declare("PSS", c.Config.Pss.Port, packets.UtilComponent),
		declare("TICKER", c.Config.Ticker.Port, packets.UtilComponent),
		declare("QOS", c.Config.Qos.Port, packets.UtilComponent, packets.UserSessionsComponent),
	}
}

func (c *Controller) run(ctx context.Context) error {
	// Start all of our servers. Failure to initialize one of the registered servers is considered terminal.
	for _, server := range c.servers {
		server.Config = c.Config
		server.Logger = c.logger

		if err := server.Start(ctx, &c.wg); err != nil {
			return fmt.Errorf("error starting %s server: %w", server.Backend.Identifier(), err)
		}
	}

	c.wg.Wait()
	return nil
}

// Shutdown waits for the endpoints to stop and then releases the shared
// resources.
func (c *Controller) Shutdown() {
	c.wg.Wait()

	if c.adminServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.adminServer.Shutdown(ctx); err != nil {
			c.logger.Warnf("error shutting down admin server: %v", err)
		}
	}
	if c.server != nil {
		c.server.Shutdown()
	}
	if c.sink != nil {
		c.sink.Close()
	}
	if c.db != nil {
		if err := data.Shutdown(c.db); err != nil {
			c.logger.Warnf("error closing database: %v", err)
		}
	}
	c.logger.Info("shutdown complete")
}
