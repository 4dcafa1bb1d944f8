package telemetry

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/go-cmp/cmp"

	"github.com/dcrodman/blaze/internal/core"
	"github.com/dcrodman/blaze/internal/game"
)

type doneToken struct {
	done chan struct{}
}

func newDoneToken() *doneToken {
	t := &doneToken{done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{}          { return t.done }
func (t *doneToken) Error() error                   { return nil }

type published struct {
	topic   string
	payload []byte
}

// fakeClient records publishes. Methods not overridden panic if called.
type fakeClient struct {
	mqtt.Client

	mu           sync.Mutex
	connected    bool
	published    []published
	disconnected bool
}

func (c *fakeClient) IsConnected() bool { return c.connected }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{topic: topic, payload: payload.([]byte)})
	return newDoneToken()
}

func (c *fakeClient) Disconnect(quiesce uint) {
	c.disconnected = true
}

func (c *fakeClient) messages() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.published...)
}

func TestSink_Run(t *testing.T) {
	client := &fakeClient{connected: true}
	sink := NewSink(client, "blaze", core.DiscardLogger())

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	sink.Publish(game.Event{Kind: game.GameCreated, GameID: 1, PersonaID: 7, State: "PRE_GAME", Time: at})
	sink.Publish(game.Event{Kind: game.PlayerLeft, GameID: 1, PersonaID: 8, Reason: "PLAYER_LEFT", Time: at})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sink.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(client.messages()) < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	msgs := client.messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 publishes, got %d", len(msgs))
	}
	topics := []string{msgs[0].topic, msgs[1].topic}
	if diff := cmp.Diff([]string{"blaze/events/game_created", "blaze/events/player_left"}, topics); diff != "" {
		t.Errorf("unexpected topics (-want +got):\n%s", diff)
	}

	var got game.Event
	if err := json.Unmarshal(msgs[0].payload, &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	want := game.Event{Kind: game.GameCreated, GameID: 1, PersonaID: 7, State: "PRE_GAME", Time: at}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected event (-want +got):\n%s", diff)
	}
}

func TestSink_PublishDoesNotBlock(t *testing.T) {
	sink := NewSink(&fakeClient{connected: true}, "blaze", core.DiscardLogger())

	for i := 0; i < queueSize+10; i++ {
		sink.Publish(game.Event{Kind: game.GameStateChanged, GameID: uint64(i)})
	}
	if sink.Dropped() != 10 {
		t.Errorf("expected 10 dropped events, got %d", sink.Dropped())
	}
}

func TestSink_SkipsWhileDisconnected(t *testing.T) {
	client := &fakeClient{}
	sink := NewSink(client, "blaze", core.DiscardLogger())

	sink.send(game.Event{Kind: game.GameDestroyed, GameID: 3})
	if n := len(client.messages()); n != 0 {
		t.Errorf("expected nothing published while disconnected, got %d", n)
	}

	sink.Close()
	if !client.disconnected {
		t.Error("expected Close to disconnect the client")
	}
}
