package messaging

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func ids(msgs []Message) []uint32 {
	var out []uint32
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func TestMailbox_DeliverFetch(t *testing.T) {
	mb := NewMailbox(0)
	sent := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)
	mb.now = func() time.Time { return sent }

	attrs := map[uint32]string{0x10000: "hello"}
	got := mb.Deliver(Message{From: 1, FromName: "alice", To: 2, Type: 1, Attributes: attrs})
	mb.Deliver(Message{From: 3, To: 2, Type: 2})
	mb.Deliver(Message{From: 1, To: 4, Type: 1})

	want := Message{ID: 1, From: 1, FromName: "alice", To: 2, Type: 1, Attributes: attrs, SentAt: sent}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Deliver() mismatch (-want +got):\n%s", diff)
	}

	// Stored messages are isolated from the caller's map.
	attrs[0x10000] = "changed"
	if fetched := mb.Fetch(2, Filter{MessageID: 1}); fetched[0].Attributes[0x10000] != "hello" {
		t.Errorf("stored attributes changed through the caller's map: %v", fetched[0].Attributes)
	}

	tests := map[string]struct {
		filter Filter
		want   []uint32
	}{
		"everything": {Filter{}, []uint32{1, 2}},
		"by type":    {Filter{Type: 2}, []uint32{2}},
		"by source":  {Filter{Source: 1}, []uint32{1}},
		"by id":      {Filter{MessageID: 2}, []uint32{2}},
		"no match":   {Filter{Type: 9}, nil},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ids(mb.Fetch(2, tt.filter))); diff != "" {
				t.Errorf("Fetch() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMailbox_Limit(t *testing.T) {
	mb := NewMailbox(2)
	for i := 0; i < 3; i++ {
		mb.Deliver(Message{To: 2})
	}
	if diff := cmp.Diff([]uint32{2, 3}, ids(mb.Fetch(2, Filter{}))); diff != "" {
		t.Errorf("oldest message not dropped (-want +got):\n%s", diff)
	}
}

func TestMailbox_TouchPurge(t *testing.T) {
	mb := NewMailbox(0)
	mb.Deliver(Message{To: 2, Type: 1})
	mb.Deliver(Message{To: 2, Type: 2})
	mb.Deliver(Message{To: 2, Type: 1})

	if n := mb.Touch(2, Filter{Type: 1}, StatusRead, 0); n != 2 {
		t.Errorf("Touch() want = 2, got = %d", n)
	}
	if diff := cmp.Diff([]uint32{1, 3}, ids(mb.Fetch(2, Filter{StatusMask: StatusRead}))); diff != "" {
		t.Errorf("read messages mismatch (-want +got):\n%s", diff)
	}
	mb.Touch(2, Filter{MessageID: 3}, 0, StatusRead)

	if n := mb.Purge(2, Filter{StatusMask: StatusRead}); n != 1 {
		t.Errorf("Purge() want = 1, got = %d", n)
	}
	if diff := cmp.Diff([]uint32{2, 3}, ids(mb.Fetch(2, Filter{}))); diff != "" {
		t.Errorf("remaining messages mismatch (-want +got):\n%s", diff)
	}
	if n := mb.Purge(2, Filter{}); n != 2 || mb.Count(2) != 0 {
		t.Errorf("Purge() of everything = %d, remaining = %d", n, mb.Count(2))
	}
}
