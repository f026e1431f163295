// Package mqtt mirrors gateway events to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"loraigate/config"
	"loraigate/gateway"
)

const publishTimeout = 5 * time.Second

// publisher is the part of mqtt.Client the mirror publishes through.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
}

type EventMessage struct {
	Kind  string    `json:"kind"`
	Time  time.Time `json:"time"`
	Call  string    `json:"call"`
	Line  string    `json:"line,omitempty"`
	Error string    `json:"error,omitempty"`
}

type StatusMessage struct {
	Online bool   `json:"online"`
	Call   string `json:"call"`
}

// Mirror publishes every gateway event to <topic>/events and keeps a
// retained <topic>/status with a last will. Broker trouble never reaches the
// gateway; it is only logged.
type Mirror struct {
	client mqtt.Client
	pub    publisher
	cfg    config.MQTTConfig
	call   string
	logger *slog.Logger

	queue chan gateway.Event
	// held while publishing from the queue
	pubMu sync.Mutex

	stopCh   chan struct{}
	stopOnce sync.Once
}

func New(cfg config.MQTTConfig, call string, logger *slog.Logger) *Mirror {
	m := newMirror(cfg, call, logger)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	offline, _ := json.Marshal(StatusMessage{Online: false, Call: call})
	opts.SetBinaryWill(m.statusTopic(), offline, 1, true)

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		logger.Info("mqtt connected", "broker", cfg.Broker, "port", cfg.Port)
		m.publishStatus(c, true)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	m.client = mqtt.NewClient(opts)
	m.pub = m.client
	return m
}

func newMirror(cfg config.MQTTConfig, call string, logger *slog.Logger) *Mirror {
	return &Mirror{
		cfg:    cfg,
		call:   call,
		logger: logger,
		queue:  make(chan gateway.Event, 64),
		stopCh: make(chan struct{}),
	}
}

func (m *Mirror) eventsTopic() string { return m.cfg.Topic + "/events" }
func (m *Mirror) statusTopic() string { return m.cfg.Topic + "/status" }

// Observe queues ev for publishing. It drops the event when the queue is
// full so a slow broker cannot stall the gateway.
func (m *Mirror) Observe(ev gateway.Event) {
	select {
	case m.queue <- ev:
	default:
		m.logger.Debug("mqtt queue full, event dropped", "kind", ev.Kind)
	}
}

// Run connects to the broker and publishes queued events until ctx ends or
// Close is called.
func (m *Mirror) Run(ctx context.Context) error {
	if m.client != nil {
		if err := m.connect(ctx); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.stopCh:
			return nil
		case ev := <-m.queue:
			m.pubMu.Lock()
			if err := m.publishEvent(ev); err != nil {
				m.logger.Warn("mqtt publish failed", "kind", ev.Kind, "error", err)
			}
			m.pubMu.Unlock()
		}
	}
}

// Flush publishes the queued events before returning. A publish already in
// flight is waited for first. Flush gives up on the first failure or once
// timeout has passed.
func (m *Mirror) Flush(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	m.pubMu.Lock()
	defer m.pubMu.Unlock()

	for time.Now().Before(deadline) {
		select {
		case ev := <-m.queue:
			if err := m.publishEvent(ev); err != nil {
				m.logger.Warn("mqtt flush failed", "kind", ev.Kind, "error", err, "pending", len(m.queue))
				return
			}
		default:
			return
		}
	}
}

func (m *Mirror) connect(ctx context.Context) error {
	token := m.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.stopCh:
			return fmt.Errorf("mirror stopped")
		default:
		}
	}
}

func encodeEvent(call string, ev gateway.Event) ([]byte, error) {
	msg := EventMessage{
		Kind: string(ev.Kind),
		Time: ev.Time.UTC(),
		Call: call,
		Line: ev.Line,
	}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}
	return json.Marshal(msg)
}

func (m *Mirror) publishEvent(ev gateway.Event) error {
	if !m.pub.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}
	data, err := encodeEvent(m.call, ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return wait(m.pub.Publish(m.eventsTopic(), 0, false, data), m.eventsTopic())
}

func (m *Mirror) publishStatus(p publisher, online bool) {
	data, err := json.Marshal(StatusMessage{Online: online, Call: m.call})
	if err != nil {
		return
	}
	if err := wait(p.Publish(m.statusTopic(), 1, true, data), m.statusTopic()); err != nil {
		m.logger.Warn("mqtt status publish failed", "error", err)
	}
}

func wait(token mqtt.Token, topic string) error {
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close marks the gateway offline and disconnects. Safe to call more than
// once.
func (m *Mirror) Close() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		if m.client == nil {
			return
		}
		if m.client.IsConnected() {
			m.publishStatus(m.client, false)
		}
		m.client.Disconnect(250)
		m.logger.Info("mqtt disconnected")
	})
}
