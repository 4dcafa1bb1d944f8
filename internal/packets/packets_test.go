package packets

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dcrodman/blaze/internal/core/tdf"
)

func TestHeader_AppendTo(t *testing.T) {
	h := Header{Length: 5, Component: UtilComponent, Command: PingCommand, Error: 0x0102, Type: ReplyType, ID: 0x0A0B}
	got := h.AppendTo(nil)
	want := []byte{0x00, 0x05, 0x00, 0x09, 0x00, 0x02, 0x01, 0x02, 0x10, 0x00, 0x0A, 0x0B}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("AppendTo() diff:\n%s", diff)
	}
	if parsed := parseHeader(got); parsed != h {
		t.Errorf("parseHeader() want = %+v, got = %+v", h, parsed)
	}
}

func TestReader_RoundTrip(t *testing.T) {
	req := NewRequest(AuthenticationComponent, LoginCommand, 7, tdf.NewStruct().SetString("MAIL", "alice@example.com"))
	reply := NewReply(req, tdf.NewStruct().SetUint("UID", 1))
	errReply := NewErrorReply(req, ErrorInvalidCredentials, nil)
	notification := NewNotification(UserSessionsComponent, NotifyUserAuthenticated, tdf.NewStruct().SetUint("USID", 3))

	var buf bytes.Buffer
	for _, p := range []*Packet{req, reply, errReply, notification} {
		if err := Write(&buf, p, tdf.DefaultLimits); err != nil {
			t.Fatalf("Write() returned an unexpected error: %v", err)
		}
	}

	r := NewReader(&buf, 0, tdf.DefaultLimits)
	for _, want := range []*Packet{req, reply, errReply, notification} {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("Next() returned an unexpected error: %v", err)
		}
		wantHeader := want.Header
		wantHeader.Length = got.Header.Length
		if got.Header != wantHeader {
			t.Errorf("Next() header want = %+v, got = %+v", wantHeader, got.Header)
		}
		if !tdf.Equal(want.Body, got.Body) {
			t.Errorf("Next() body did not match for %s", want)
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next() at end of stream want = %v, got = %v", io.EOF, err)
	}

	if reply.Header.ID != req.Header.ID || errReply.Header.ID != req.Header.ID {
		t.Errorf("replies must carry the request id %d", req.Header.ID)
	}
	if notification.Header.ID != NotificationID {
		t.Errorf("notification id want = %d, got = %d", NotificationID, notification.Header.ID)
	}
}

func TestReader_ExtendedLength(t *testing.T) {
	big := strings.Repeat("x", 0x10010)
	p := NewNotification(MessagingComponent, NotifyMessage, tdf.NewStruct().SetString("BODY", big))

	var buf bytes.Buffer
	if err := Write(&buf, p, tdf.DefaultLimits); err != nil {
		t.Fatalf("Write() returned an unexpected error: %v", err)
	}
	if buf.Bytes()[9]&FlagExtendedLength == 0 {
		t.Fatalf("expected the extended length flag to be set")
	}

	got, err := NewReader(&buf, 1<<20, tdf.DefaultLimits).Next()
	if err != nil {
		t.Fatalf("Next() returned an unexpected error: %v", err)
	}
	if s, _ := got.Body.Str("BODY"); s != big {
		t.Errorf("Next() returned a body of %d bytes, want %d", len(s), len(big))
	}
}

func TestReader_FrameTooLarge(t *testing.T) {
	p := NewRequest(UtilComponent, PingCommand, 1, tdf.NewStruct().SetBlob("DATA", make([]byte, 128)))
	var buf bytes.Buffer
	if err := Write(&buf, p, tdf.DefaultLimits); err != nil {
		t.Fatalf("Write() returned an unexpected error: %v", err)
	}
	if _, err := NewReader(&buf, 64, tdf.DefaultLimits).Next(); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("Next() want = %v, got = %v", ErrFrameTooLarge, err)
	}
}

func TestReader_Malformed(t *testing.T) {
	body := []byte{0xFF, 0xFF, 0xFF, 0x3F}
	h := Header{Length: uint32(len(body)), Component: UtilComponent, Command: PingCommand}
	data := append(h.AppendTo(nil), body...)

	if _, err := NewReader(bytes.NewReader(data), 0, tdf.DefaultLimits).Next(); !errors.Is(err, tdf.ErrMalformedInput) {
		t.Errorf("Next() want = %v, got = %v", tdf.ErrMalformedInput, err)
	}
}

func TestReader_PartialPacket(t *testing.T) {
	p := NewRequest(UtilComponent, PingCommand, 1, tdf.NewStruct().SetUint("TIME", 1))
	b, err := p.Marshal(tdf.DefaultLimits)
	if err != nil {
		t.Fatalf("Marshal() returned an unexpected error: %v", err)
	}

	// Deliver the packet one byte at a time; Next must wait for all of it.
	pr, pw := io.Pipe()
	go func() {
		for i := range b {
			_, _ = pw.Write(b[i : i+1])
		}
		_ = pw.Close()
	}()
	got, err := NewReader(pr, 0, tdf.DefaultLimits).Next()
	if err != nil {
		t.Fatalf("Next() returned an unexpected error: %v", err)
	}
	if !tdf.Equal(p.Body, got.Body) {
		t.Errorf("Next() body did not match")
	}

	// A stream that ends mid-packet is not a clean EOF.
	truncated := bytes.NewReader(b[:len(b)-1])
	if _, err := NewReader(truncated, 0, tdf.DefaultLimits).Next(); err != io.ErrUnexpectedEOF {
		t.Errorf("Next() want = %v, got = %v", io.ErrUnexpectedEOF, err)
	}
}

func TestCommandName(t *testing.T) {
	tests := map[string]struct {
		component, command uint16
		typ                MessageType
		want               string
	}{
		"known_command":      {GameManagerComponent, JoinGameCommand, RequestType, "GameManager.JoinGame"},
		"known_notification": {GameManagerComponent, NotifyPlayerJoining, NotificationType, "GameManager.NotifyPlayerJoining"},
		"unknown":            {0x0042, 0x0001, RequestType, "Component(0x0042).0x0001"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := CommandName(tt.component, tt.command, tt.typ); got != tt.want {
				t.Errorf("CommandName() want = %s, got = %s", tt.want, got)
			}
		})
	}
}
