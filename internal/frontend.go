package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dcrodman/blaze/internal/blaze"
	"github.com/dcrodman/blaze/internal/core"
	"github.com/dcrodman/blaze/internal/core/client"
	blazedebug "github.com/dcrodman/blaze/internal/core/debug"
	"github.com/dcrodman/blaze/internal/core/tdf"
	"github.com/dcrodman/blaze/internal/session"
)

// connections tracks every open client across all frontends so that
// max_connections applies to the process as a whole.
type connections struct {
	mu      sync.Mutex
	clients map[string]*client.Client
}

func newConnections() *connections {
	return &connections{clients: make(map[string]*client.Client)}
}

func (cs *connections) add(addr string, c *client.Client) {
	cs.mu.Lock()
	cs.clients[addr] = c
	cs.mu.Unlock()
}

func (cs *connections) remove(addr string) {
	cs.mu.Lock()
	delete(cs.clients, addr)
	cs.mu.Unlock()
}

func (cs *connections) count() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.clients)
}

// frontend implements the concurrent client connection logic.
//
// Packets are read from any connected clients and passed to a backend instance, abstracting
// the lower level connection details away from the Backends.
type frontend struct {
	Address string
	Backend Backend
	Server  *blaze.Server
	Config  *core.Config
	Logger  *logrus.Logger

	connections *connections
	listener    *net.TCPListener
}

// Start initializes the server backend and opens a TCP socket for the specified server.
// A blocking loop for accepting client connections is spun off in its own goroutine and
// added to the WaitGroup. Context cancellations will stop the server.
func (f *frontend) Start(ctx context.Context, wg *sync.WaitGroup) error {
	if err := f.Backend.Init(ctx); err != nil {
		return fmt.Errorf("error initializing %s server: %w", f.Backend.Identifier(), err)
	}
	if f.connections == nil {
		f.connections = newConnections()
	}

	socket, err := f.createSocket()
	if err != nil {
		return fmt.Errorf("error creating socket on %s: %w", f.Address, err)
	}
	f.listener = socket

	wg.Add(1)
	go f.startBlockingLoop(ctx, socket, wg)

	return nil
}

// Addr returns the address the frontend is listening on once started.
func (f *frontend) Addr() net.Addr {
	if f.listener == nil {
		return nil
	}
	return f.listener.Addr()
}

// createSocket opens a TCP socket to listen for client connections on the Address
// provided to the frontend.
func (f *frontend) createSocket() (*net.TCPListener, error) {
	hostAddr, err := net.ResolveTCPAddr("tcp", f.Address)
	if err != nil {
		return nil, fmt.Errorf("error resolving address: %w", err)
	}

	socket, err := net.ListenTCP("tcp", hostAddr)
	if err != nil {
		return nil, fmt.Errorf("error listening on socket: %w", err)
	}

	return socket, nil
}

// startBlockingLoop implements a connection handling loop that's purely responsible for
// accepting new connections and spinning off goroutines for the Backend to handle them.
func (f *frontend) startBlockingLoop(ctx context.Context, socket *net.TCPListener, wg *sync.WaitGroup) {
	defer wg.Done()

	f.Logger.Infof("[%s] waiting for connections on %v", f.Backend.Identifier(), socket.Addr())

	connections := make(chan *net.TCPConn)
	go func() {
		defer close(connections)
		for {
			// Poll until we can accept more clients.
			for f.Config.MaxConnections > 0 && f.connections.count() >= f.Config.MaxConnections {
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
			}

			connection, err := socket.AcceptTCP()
			if errors.Is(err, net.ErrClosed) {
				return
			} else if err != nil {
				f.Logger.Warnf("failed to accept connection: %s", err)
				continue
			}

			select {
			case connections <- connection:
			case <-ctx.Done():
				_ = connection.Close()
				return
			}
		}
	}()

	clientWg := &sync.WaitGroup{}
handleLoop:
	for {
		select {
		case <-ctx.Done():
			break handleLoop
		case connection, ok := <-connections:
			if !ok {
				break handleLoop
			}
			clientWg.Add(1)
			go f.acceptClient(ctx, connection, clientWg)
		}
	}

	_ = socket.Close()
	f.Logger.Infof("[%v] shutting down (waiting for connections to close)", f.Backend.Identifier())
	clientWg.Wait()
	f.Logger.Infof("[%v] exited", f.Backend.Identifier())
}

// acceptClient takes a connection, registers a session for it and moves into the
// packet processing loop.
func (f *frontend) acceptClient(ctx context.Context, connection *net.TCPConn, wg *sync.WaitGroup) {
	defer wg.Done()

	limits := tdf.DefaultLimits
	limits.MaxDepth = f.Config.Blaze.MaxDepth
	c := client.NewClient(connection, f.Config.Blaze.MaxPacketSize, f.Config.Blaze.MaxQueuedPackets, limits)
	remoteAddr := connection.RemoteAddr().String()

	sess := f.Server.Connect(f.Backend.Identifier(), remoteAddr, c)
	f.Backend.SetUpClient(c, sess)
	c.OnWriteError = func(err error) {
		f.Logger.Warnf("[%s] %v", f.Backend.Identifier(), err)
		// Unblocks the read loop, which then tears down the session.
		_ = connection.CloseRead()
	}
	c.StartWriter()

	f.connections.add(remoteAddr, c)
	f.Logger.Infof("[%s] accepted connection from %s (session %d)", f.Backend.Identifier(), remoteAddr, sess.ID())

	f.processPackets(ctx, c, sess)
}

// processPackets starts a blocking loop dedicated to reading packets sent from
// a game client and only returns once the connection has closed.
func (f *frontend) processPackets(ctx context.Context, c *client.Client, sess *session.Session) {
	defer f.closeConnectionAndRecover(f.Backend.Identifier(), c, sess)

	// Reads don't observe the context, so close the connection out from under
	// them on shutdown.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-done:
		}
	}()

	for {
		p, err := c.ReadPacket()
		if err == io.EOF || errors.Is(err, net.ErrClosed) {
			return
		} else if err != nil {
			f.Logger.Warnf("[%s] closing %s: %v", f.Backend.Identifier(), sess, err)
			return
		}

		if c.Debug {
			blazedebug.PrintPacket(blazedebug.PrintPacketParams{
				Writer:       os.Stdout,
				Endpoint:     f.Backend.Identifier(),
				ClientPacket: true,
				Packet:       p,
			})
		}

		if err = f.Backend.Handle(ctx, c, sess, p); err != nil {
			f.Logger.Warn("error in client communication: " + err.Error())
			return
		}
	}
}

// closeConnectionAndRecover is the failsafe that catches any panics, disconnects the
// client, and releases its session regardless of the state of the connection.
func (f *frontend) closeConnectionAndRecover(serverName string, c *client.Client, sess *session.Session) {
	if err := recover(); err != nil {
		f.Logger.Errorf("error in client communication with %s: error=%s, trace: %s",
			c.IPAddr(), err, debug.Stack())
	}

	f.Server.Disconnect(sess)

	if err := c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		f.Logger.Warnf("failed to close client connection: %s", err)
	}

	f.connections.remove(sess.RemoteAddr())

	f.Logger.Infof("[%s] disconnected client %s", serverName, sess)
}
