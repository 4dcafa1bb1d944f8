package client

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/dcrodman/blaze/internal/core/tdf"
	"github.com/dcrodman/blaze/internal/packets"
)

// How long Close waits for queued packets to be written before giving up on them.
const flushTimeout = 2 * time.Second

// Client represents a Blaze game client connected to one of the server's endpoints.
type Client struct {
	connection net.Conn
	ipAddr     string
	port       string

	reader *packets.Reader
	limits tdf.Limits
	outbox *Outbox

	writerDone    chan struct{}
	writerStarted bool
	closeOnce     sync.Once
	// Called from the writer goroutine for every packet successfully sent.
	OnSend func(p *packets.Packet)
	// Called once if the writer fails.
	OnWriteError func(err error)

	// Debugging information used for logging purposes.
	DebugTags map[string]interface{}
	Debug     bool
}

// NewClient wraps connection. maxQueued bounds the outbox (see NewOutbox).
func NewClient(connection net.Conn, maxPacketSize, maxQueued int, limits tdf.Limits) *Client {
	host, port, err := net.SplitHostPort(connection.RemoteAddr().String())
	if err != nil {
		host = connection.RemoteAddr().String()
	}

	return &Client{
		connection: connection,
		ipAddr:     host,
		port:       port,
		reader:     packets.NewReader(connection, maxPacketSize, limits),
		limits:     limits,
		outbox:     NewOutbox(maxQueued),
		writerDone: make(chan struct{}),
		DebugTags:  make(map[string]interface{}),
	}
}

func (c *Client) IPAddr() string { return c.ipAddr }
func (c *Client) Port() string   { return c.port }

// Outbox returns the queue of packets waiting to be written to the client.
func (c *Client) Outbox() *Outbox { return c.outbox }

// StartWriter launches the goroutine that drains the outbox onto the connection.
func (c *Client) StartWriter() {
	c.writerStarted = true
	go c.writeLoop()
}

func (c *Client) writeLoop() {
	defer close(c.writerDone)

	for {
		batch := c.outbox.Next()
		if batch == nil {
			if c.outbox.Overflowed() && c.OnWriteError != nil {
				c.OnWriteError(fmt.Errorf("dropping client %v: %w", c.IPAddr(), ErrOverflow))
			}
			return
		}
		for _, p := range batch {
			if err := packets.Write(c.connection, p, c.limits); err != nil {
				// Nothing else can be delivered, so stop accepting packets.
				c.outbox.Close()
				if c.OnWriteError != nil {
					c.OnWriteError(fmt.Errorf("failed to send to client %v: %w", c.IPAddr(), err))
				}
				return
			}
			if c.OnSend != nil {
				c.OnSend(p)
			}
		}
	}
}

// ReadPacket blocks until the client has sent the next complete packet.
func (c *Client) ReadPacket() (*packets.Packet, error) {
	return c.reader.Next()
}

// Send queues a packet for delivery. It never blocks. The packet is dropped
// if the client is going away or has fallen too far behind.
func (c *Client) Send(p *packets.Packet) error {
	if !c.outbox.Push(p) {
		if c.outbox.Overflowed() {
			return ErrOverflow
		}
		return ErrClosed
	}
	return nil
}

// Close flushes whatever is still queued (best effort) and closes the TCP
// connection. It is safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.outbox.Close()
		if c.writerStarted {
			_ = c.connection.SetWriteDeadline(time.Now().Add(flushTimeout))
			select {
			case <-c.writerDone:
			case <-time.After(flushTimeout):
			}
		}
		err = c.connection.Close()
	})
	return err
}

// ErrClosed is returned when sending to a client that is disconnecting.
var ErrClosed = errors.New("client connection closed")
