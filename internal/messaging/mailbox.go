// Package messaging holds the messages personas send each other until the
// recipient purges them.
package messaging

import (
	"sync"
	"time"
)

// DefaultLimit is the number of messages kept per persona.
const DefaultLimit = 100

// Message status bits.
const (
	StatusRead uint32 = 1 << iota
	StatusSaved
)

type Message struct {
	ID         uint32
	From       uint64
	FromName   string
	To         uint64
	Type       uint32
	Tag        uint32
	Flags      uint32
	Status     uint32
	Attributes map[uint32]string
	SentAt     time.Time
}

// Filter selects messages. Zero fields match anything.
type Filter struct {
	MessageID uint32
	Type      uint32
	Source    uint64
	// Messages must have every bit of StatusMask set.
	StatusMask uint32
}

func (f Filter) matches(m *Message) bool {
	return (f.MessageID == 0 || m.ID == f.MessageID) &&
		(f.Type == 0 || m.Type == f.Type) &&
		(f.Source == 0 || m.From == f.Source) &&
		m.Status&f.StatusMask == f.StatusMask
}

// Mailbox keeps the messages of every persona in memory, oldest first.
type Mailbox struct {
	mu     sync.Mutex
	nextID uint32
	boxes  map[uint64][]*Message
	limit  int
	now    func() time.Time
}

func NewMailbox(limit int) *Mailbox {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Mailbox{
		boxes: make(map[uint64][]*Message),
		limit: limit,
		now:   time.Now,
	}
}

// Deliver stores msg for its recipient, dropping the recipient's oldest
// message if the box is full, and returns the stored copy.
func (mb *Mailbox) Deliver(msg Message) Message {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	mb.nextID++
	msg.ID = mb.nextID
	msg.SentAt = mb.now()
	msg.Attributes = copyAttrs(msg.Attributes)

	box := append(mb.boxes[msg.To], &msg)
	if len(box) > mb.limit {
		box = box[len(box)-mb.limit:]
	}
	mb.boxes[msg.To] = box
	return clone(&msg)
}

// Fetch returns copies of the persona's messages matching f.
func (mb *Mailbox) Fetch(persona uint64, f Filter) []Message {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	var out []Message
	for _, m := range mb.boxes[persona] {
		if f.matches(m) {
			out = append(out, clone(m))
		}
	}
	return out
}

// Purge deletes the persona's messages matching f and returns how many were
// deleted.
func (mb *Mailbox) Purge(persona uint64, f Filter) int {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	box := mb.boxes[persona]
	kept := box[:0]
	for _, m := range box {
		if !f.matches(m) {
			kept = append(kept, m)
		}
	}
	purged := len(box) - len(kept)
	if len(kept) == 0 {
		delete(mb.boxes, persona)
	} else {
		mb.boxes[persona] = kept
	}
	return purged
}

// Touch sets and clears status bits on the persona's messages matching f and
// returns how many were changed.
func (mb *Mailbox) Touch(persona uint64, f Filter, set, clear uint32) int {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	n := 0
	for _, m := range mb.boxes[persona] {
		if f.matches(m) {
			m.Status = (m.Status | set) &^ clear
			n++
		}
	}
	return n
}

// Count returns the number of messages held for the persona.
func (mb *Mailbox) Count(persona uint64) int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return len(mb.boxes[persona])
}

func clone(m *Message) Message {
	c := *m
	c.Attributes = copyAttrs(m.Attributes)
	return c
}

func copyAttrs(attrs map[uint32]string) map[uint32]string {
	out := make(map[uint32]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
