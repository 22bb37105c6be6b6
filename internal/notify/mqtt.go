// Package notify forwards committed access records to external consumers.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/KelvinMNH/FaceEventos/internal/checkin"
	"github.com/KelvinMNH/FaceEventos/internal/config"
)

const (
	queueSize      = 256
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
	drainTimeout   = 2 * time.Second
)

var errNotConnected = errors.New("mqtt not connected")

// Message is the JSON payload published for every access record.
type Message struct {
	RecordID      int64     `json:"record_id"`
	EventID       int64     `json:"event_id"`
	ParticipantID *int64    `json:"participant_id,omitempty"`
	Participant   string    `json:"participant,omitempty"`
	ResponsibleID *int64    `json:"responsible_id,omitempty"`
	Direction     string    `json:"direction"`
	Outcome       string    `json:"outcome"`
	Admitted      bool      `json:"admitted"`
	Device        string    `json:"device"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewMessage converts a notice to its wire form.
func NewMessage(n checkin.Notice) Message {
	r := n.Record
	return Message{
		RecordID:      r.ID,
		EventID:       r.EventID,
		ParticipantID: r.ParticipantID,
		Participant:   n.ParticipantName,
		ResponsibleID: r.ResponsibleID,
		Direction:     string(r.Direction),
		Outcome:       string(r.Outcome),
		Admitted:      n.Admitted,
		Device:        r.Device,
		Timestamp:     r.Timestamp.UTC(),
	}
}

// Topic builds the topic a record is published on: <base>/<event id>/<direction>.
func Topic(base string, m Message) string {
	return fmt.Sprintf("%s/%d/%s", base, m.EventID, m.Direction)
}

type job struct {
	topic   string
	payload []byte
}

// Stats contains publisher counters
type Stats struct {
	Connected bool
	Published uint64
	Dropped   uint64
	Errors    uint64
}

// MQTTPublisher implements checkin.Notifier by publishing each notice to an
// MQTT broker. Notify only enqueues; a background loop does the network work.
type MQTTPublisher struct {
	cfg    config.MQTTConfig
	logger *slog.Logger
	client mqtt.Client

	publish func(topic string, payload []byte) error
	queue   chan job
	done    chan struct{}
	once    sync.Once

	mu        sync.RWMutex
	connected bool
	published uint64
	dropped   uint64
	errors    uint64
}

// NewMQTTPublisher creates a publisher. Call Connect before Run.
func NewMQTTPublisher(cfg config.MQTTConfig, logger *slog.Logger) *MQTTPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	p := &MQTTPublisher{
		cfg:    cfg,
		logger: logger.With("component", "mqtt"),
		queue:  make(chan job, queueSize),
		done:   make(chan struct{}),
	}
	p.publish = p.publishToBroker
	return p
}

// Connect establishes the broker connection with automatic reconnects.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker("tcp://" + p.cfg.Broker)
	opts.SetClientID(p.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		p.setConnected(true)
		p.logger.Info("mqtt connection established", "broker", p.cfg.Broker, "client_id", p.cfg.ClientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		p.setConnected(false)
		p.logger.Warn("mqtt connection lost, will auto-reconnect", "error", err, "broker", p.cfg.Broker)
	}

	p.client = mqtt.NewClient(opts)
	p.logger.Info("connecting to mqtt broker", "broker", p.cfg.Broker)

	token := p.client.Connect()
	select {
	case <-token.Done():
	case <-time.After(connectTimeout):
		return errors.New("mqtt connection timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	p.setConnected(true)
	return nil
}

// Notify enqueues n for publishing. A full queue drops the notice.
func (p *MQTTPublisher) Notify(_ context.Context, n checkin.Notice) {
	msg := NewMessage(n)
	payload, err := json.Marshal(msg)
	if err != nil {
		p.count(&p.errors)
		p.logger.Error("failed to marshal access notice", "record_id", msg.RecordID, "error", err)
		return
	}

	select {
	case <-p.done:
		p.count(&p.dropped)
		p.logger.Warn("mqtt publisher closed, notice dropped", "record_id", msg.RecordID)
		return
	default:
	}

	select {
	case p.queue <- job{topic: Topic(p.cfg.Topic, msg), payload: payload}:
	default:
		p.count(&p.dropped)
		p.logger.Warn("mqtt queue full, notice dropped", "record_id", msg.RecordID)
	}
}

// Run publishes queued notices until ctx is cancelled or Close is called.
func (p *MQTTPublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case j := <-p.queue:
			p.send(j)
		}
	}
}

func (p *MQTTPublisher) send(j job) {
	if err := p.publish(j.topic, j.payload); err != nil {
		p.count(&p.errors)
		p.logger.Warn("mqtt publish failed", "topic", j.topic, "error", err)
		return
	}
	p.count(&p.published)
	p.logger.Debug("access notice published", "topic", j.topic, "size", len(j.payload))
}

// drain publishes what is still queued while the broker is reachable and the
// deadline holds. Everything else counts as dropped.
func (p *MQTTPublisher) drain() {
	deadline := time.Now().Add(drainTimeout)
	dropped := 0
	for {
		select {
		case j := <-p.queue:
			if p.isConnected() && time.Now().Before(deadline) {
				p.send(j)
				continue
			}
			p.count(&p.dropped)
			dropped++
		default:
			if dropped > 0 {
				p.logger.Warn("mqtt queue discarded on close", "dropped", dropped)
			}
			return
		}
	}
}

func (p *MQTTPublisher) publishToBroker(topic string, payload []byte) error {
	if p.client == nil || !p.isConnected() {
		return errNotConnected
	}
	token := p.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("publish timeout")
	}
	return token.Error()
}

// Close stops Run, flushes the queue and disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.once.Do(func() {
		close(p.done)
		p.drain()
		if p.client != nil && p.client.IsConnected() {
			p.client.Disconnect(250)
			p.logger.Info("mqtt disconnected")
		}
		p.setConnected(false)
	})
}

// Stats returns publisher counters.
func (p *MQTTPublisher) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Stats{
		Connected: p.connected,
		Published: p.published,
		Dropped:   p.dropped,
		Errors:    p.errors,
	}
}

func (p *MQTTPublisher) count(c *uint64) {
	p.mu.Lock()
	*c++
	p.mu.Unlock()
}

func (p *MQTTPublisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

func (p *MQTTPublisher) isConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}
