package blaze

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dcrodman/blaze/internal/core"
	"github.com/dcrodman/blaze/internal/core/tdf"
	"github.com/dcrodman/blaze/internal/game"
	"github.com/dcrodman/blaze/internal/packets"
	"github.com/dcrodman/blaze/internal/session"
)

const (
	testComponent = packets.UtilComponent
	pingCommand   = packets.PingCommand
	gatedCommand  = packets.UserSettingsLoadCommand
	failCommand   = packets.UserSettingsSaveCommand
	panicCommand  = packets.SetClientMetricsCommand
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *Metrics, *int) {
	t.Helper()
	metrics := NewMetrics(prometheus.NewRegistry(), func() (int, int) { return 0, 0 })
	d := NewDispatcher(core.DiscardLogger(), metrics)

	calls := 0
	d.Register(testComponent, pingCommand, func(ctx context.Context, req *Request) (*tdf.Struct, error) {
		calls++
		return tdf.NewStruct().SetUint("STIM", 42), nil
	})
	d.Register(testComponent, gatedCommand, func(ctx context.Context, req *Request) (*tdf.Struct, error) {
		calls++
		return nil, nil
	}, RequireAuth())
	d.Register(testComponent, failCommand, func(ctx context.Context, req *Request) (*tdf.Struct, error) {
		calls++
		return nil, fmt.Errorf("saving: %w", game.ErrGameFull)
	})
	d.Register(testComponent, panicCommand, func(ctx context.Context, req *Request) (*tdf.Struct, error) {
		calls++
		panic("boom")
	})
	return d, metrics, &calls
}

func newRequest(s *session.Session, command uint16, id uint16) *Request {
	return &Request{
		Session: s,
		Packet:  packets.NewRequest(testComponent, command, id, nil),
	}
}

func TestDispatch(t *testing.T) {
	d, _, calls := newTestDispatcher(t)
	sessions := session.NewManager()
	s := sessions.Create("BLAZE", "127.0.0.1:0", nil)

	tests := []struct {
		name      string
		component uint16
		command   uint16
		wantType  packets.MessageType
		wantCode  packets.ErrorCode
		wantCalls int
	}{
		{"success", testComponent, pingCommand, packets.ReplyType, packets.ErrorNone, 1},
		{"unknown command", testComponent, 0x7F, packets.ErrorReplyType, packets.ErrorCommandNotFound, 0},
		{"unknown component", 0x0BAD, pingCommand, packets.ErrorReplyType, packets.ErrorCommandNotFound, 0},
		{"not authenticated", testComponent, gatedCommand, packets.ErrorReplyType, packets.ErrorAuthenticationRequired, 0},
		{"handler error", testComponent, failCommand, packets.ErrorReplyType, packets.ErrorGameFull, 1},
		{"handler panic", testComponent, panicCommand, packets.ErrorReplyType, packets.ErrorSystem, 1},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			*calls = 0
			id := uint16(100 + i)
			req := &Request{Session: s, Packet: packets.NewRequest(tt.component, tt.command, id, nil)}

			reply := d.Dispatch(context.Background(), req)
			if reply == nil {
				t.Fatal("Dispatch() returned no reply")
			}
			if reply.Header.Type != tt.wantType {
				t.Errorf("reply type want = %s, got = %s", tt.wantType, reply.Header.Type)
			}
			if got := packets.ErrorCode(reply.Header.Error); got != tt.wantCode {
				t.Errorf("reply error want = %s, got = %s", tt.wantCode, got)
			}
			if reply.Header.ID != id {
				t.Errorf("reply id want = %d, got = %d", id, reply.Header.ID)
			}
			if reply.Header.Component != tt.component || reply.Header.Command != tt.command {
				t.Errorf("reply addressed to %s, want the request's command", reply)
			}
			if *calls != tt.wantCalls {
				t.Errorf("handler calls want = %d, got = %d", tt.wantCalls, *calls)
			}
		})
	}
}

func TestDispatch_ReplyBody(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	s := session.NewManager().Create("BLAZE", "127.0.0.1:0", nil)

	reply := d.Dispatch(context.Background(), newRequest(s, pingCommand, 7))
	if got, _ := reply.Body.Uint("STIM"); got != 42 {
		t.Errorf("reply STIM want = 42, got = %d", got)
	}
}

func TestDispatch_Authenticated(t *testing.T) {
	d, _, calls := newTestDispatcher(t)
	s := session.NewManager().Create("BLAZE", "127.0.0.1:0", nil)
	if err := s.BeginLogin(); err != nil {
		t.Fatalf("BeginLogin() returned an unexpected error: %v", err)
	}
	if err := s.CompleteLogin(session.Identity{PersonaID: 1, PersonaName: "alice"}, "token"); err != nil {
		t.Fatalf("CompleteLogin() returned an unexpected error: %v", err)
	}

	reply := d.Dispatch(context.Background(), newRequest(s, gatedCommand, 3))
	if reply.Header.Type != packets.ReplyType {
		t.Errorf("reply type want = %s, got = %s", packets.ReplyType, reply.Header.Type)
	}
	if *calls != 1 {
		t.Errorf("handler calls want = 1, got = %d", *calls)
	}
}

func TestDispatch_IgnoresNonRequests(t *testing.T) {
	d, _, calls := newTestDispatcher(t)
	s := session.NewManager().Create("BLAZE", "127.0.0.1:0", nil)

	p := packets.NewNotification(testComponent, pingCommand, nil)
	if reply := d.Dispatch(context.Background(), &Request{Session: s, Packet: p}); reply != nil {
		t.Errorf("Dispatch() of a notification want = nil, got = %s", reply)
	}
	if *calls != 0 {
		t.Errorf("handler calls want = 0, got = %d", *calls)
	}
}

func TestDispatch_Metrics(t *testing.T) {
	d, metrics, _ := newTestDispatcher(t)
	s := session.NewManager().Create("BLAZE", "127.0.0.1:0", nil)

	d.Dispatch(context.Background(), newRequest(s, pingCommand, 1))
	d.Dispatch(context.Background(), newRequest(s, pingCommand, 2))
	d.Dispatch(context.Background(), newRequest(s, panicCommand, 3))

	ping := packets.CommandName(testComponent, pingCommand, packets.RequestType)
	if got := testutil.ToFloat64(metrics.commandsTotal.WithLabelValues("Util", ping)); got != 2 {
		t.Errorf("commands_total{Util.Ping} want = 2, got = %v", got)
	}
	if got := testutil.ToFloat64(metrics.panicsTotal); got != 1 {
		t.Errorf("handler_panics_total want = 1, got = %v", got)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	defer func() {
		if recover() == nil {
			t.Error("Register() of a duplicate command did not panic")
		}
	}()
	d.Register(testComponent, pingCommand, func(ctx context.Context, req *Request) (*tdf.Struct, error) {
		return nil, nil
	})
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want packets.ErrorCode
	}{
		{"blaze error", NewError(packets.ErrorPersonaNotFound), packets.ErrorPersonaNotFound},
		{"wrapped blaze error", fmt.Errorf("login: %w", Errorf(packets.ErrorAccountBanned, "banned")), packets.ErrorAccountBanned},
		{"game sentinel", fmt.Errorf("join: %w", game.ErrGameNotFound), packets.ErrorGameNotFound},
		{"malformed body", tdf.ErrMalformedInput, packets.ErrorInvalidRequest},
		{"unknown", errors.New("disk on fire"), packets.ErrorSystem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.want {
				t.Errorf("ErrorCode() want = %s, got = %s", tt.want, got)
			}
		})
	}
}
