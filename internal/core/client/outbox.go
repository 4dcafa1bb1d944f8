package client

import (
	"errors"
	"sync"

	"github.com/dcrodman/blaze/internal/packets"
)

// DefaultQueueLimit is the outbox capacity used when none is configured.
const DefaultQueueLimit = 1024

// ErrOverflow is reported when a client falls so far behind that its outbox
// fills up. The outbox closes and drops everything it held.
var ErrOverflow = errors.New("client outbox overflowed")

// Outbox is a bounded queue of packets waiting to be written to a client.
// Producers never block, so a slow client cannot stall a broadcast to the
// other members of its game. A client that lets the queue reach its limit is
// cut off instead.
//
// While held, pushed packets are parked until Release, which queues the
// reply to the request being handled ahead of anything parked. This keeps a
// reply in front of the notifications its own handler caused.
type Outbox struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []*packets.Packet
	parked  []*packets.Packet
	limit      int
	holding    bool
	closed     bool
	overflowed bool
}

// NewOutbox returns an outbox holding at most limit packets, or
// DefaultQueueLimit if limit is not positive.
func NewOutbox(limit int) *Outbox {
	if limit <= 0 {
		limit = DefaultQueueLimit
	}
	o := &Outbox{limit: limit}
	o.cond = sync.NewCond(&o.mu)
	return o
}

// Push queues p, returning false if the outbox has been closed.
func (o *Outbox) Push(p *packets.Packet) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return false
	}
	if len(o.queue)+len(o.parked) >= o.limit {
		o.overflow()
		return false
	}
	if o.holding {
		o.parked = append(o.parked, p)
		return true
	}
	o.queue = append(o.queue, p)
	o.cond.Signal()
	return true
}

// Hold parks pushed packets until the next Release.
func (o *Outbox) Hold() {
	o.mu.Lock()
	o.holding = true
	o.mu.Unlock()
}

// Release queues reply (if not nil) followed by everything parked since Hold.
func (o *Outbox) Release(reply *packets.Packet) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.holding = false
	if o.closed {
		o.parked = nil
		return
	}
	if reply != nil {
		if len(o.queue)+len(o.parked) >= o.limit {
			o.overflow()
			return
		}
		o.queue = append(o.queue, reply)
	}
	o.queue = append(o.queue, o.parked...)
	o.parked = nil
	o.cond.Signal()
}

// Called with mu held.
func (o *Outbox) overflow() {
	o.closed = true
	o.overflowed = true
	o.queue = nil
	o.parked = nil
	o.cond.Broadcast()
}

// Overflowed reports whether the outbox closed because it filled up.
func (o *Outbox) Overflowed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.overflowed
}

// Close stops accepting packets. Packets already queued are still returned by
// Next so that they can be flushed.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.closed = true
	o.queue = append(o.queue, o.parked...)
	o.parked = nil
	o.cond.Broadcast()
}

// Next blocks until packets are available and returns all of them. It
// returns nil once the outbox is closed and drained.
func (o *Outbox) Next() []*packets.Packet {
	o.mu.Lock()
	defer o.mu.Unlock()

	for len(o.queue) == 0 && !o.closed {
		o.cond.Wait()
	}
	batch := o.queue
	o.queue = nil
	return batch
}

// Len returns the number of packets waiting to be written.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue) + len(o.parked)
}
