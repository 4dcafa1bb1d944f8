// Package telemetry publishes game and playgroup lifecycle events to an MQTT
// broker.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/dcrodman/blaze/internal/core"
	"github.com/dcrodman/blaze/internal/game"
)

const (
	// Events buffered while the broker is slow. Further events are dropped.
	queueSize      = 256
	publishTimeout = 5 * time.Second
	// Milliseconds Close waits for in-flight publishes.
	disconnectQuiesce = 250
)

// Sink is a game.EventSink that forwards events to MQTT as JSON. Publish
// never blocks the registry.
type Sink struct {
	client mqtt.Client
	prefix string
	logger logrus.FieldLogger

	events  chan game.Event
	dropped atomic.Uint64
}

// NewSink returns a Sink publishing through an already configured client.
func NewSink(client mqtt.Client, topicPrefix string, logger logrus.FieldLogger) *Sink {
	return &Sink{
		client: client,
		prefix: topicPrefix,
		logger: logger,
		events: make(chan game.Event, queueSize),
	}
}

// Dial connects to the broker named in the config.
func Dial(cfg *core.Config, logger logrus.FieldLogger) (*Sink, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTT.Broker)
	opts.SetClientID(cfg.MQTT.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Infof("connected to mqtt broker %s", cfg.MQTT.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warnf("lost connection to mqtt broker: %v", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		return nil, fmt.Errorf("timed out connecting to mqtt broker %s", cfg.MQTT.Broker)
	} else if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to mqtt broker %s: %w", cfg.MQTT.Broker, err)
	}
	return NewSink(client, cfg.MQTT.TopicPrefix, logger), nil
}

// Topic returns the topic events of kind are published to.
func (s *Sink) Topic(kind game.EventKind) string {
	return fmt.Sprintf("%s/events/%s", s.prefix, kind)
}

// Publish queues e for delivery, dropping it if the queue is full.
func (s *Sink) Publish(e game.Event) {
	select {
	case s.events <- e:
	default:
		if n := s.dropped.Add(1); n == 1 || n%100 == 0 {
			s.logger.Warnf("telemetry queue full, %d events dropped", n)
		}
	}
}

// Dropped returns the number of events discarded because the queue was full.
func (s *Sink) Dropped() uint64 {
	return s.dropped.Load()
}

// Run delivers queued events until ctx is cancelled.
func (s *Sink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-s.events:
			s.send(e)
		}
	}
}

func (s *Sink) send(e game.Event) {
	if !s.client.IsConnected() {
		return
	}
	payload, err := json.Marshal(e)
	if err != nil {
		s.logger.Warnf("failed to marshal %s event: %v", e.Kind, err)
		return
	}

	topic := s.Topic(e.Kind)
	token := s.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		s.logger.Warnf("timed out publishing to %s", topic)
	} else if err := token.Error(); err != nil {
		s.logger.Warnf("failed to publish to %s: %v", topic, err)
	}
}

// Close disconnects from the broker.
func (s *Sink) Close() {
	s.client.Disconnect(disconnectQuiesce)
}
