package platform

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gamepad-coop/internal/gamepad"
	"github.com/nerrad567/gamepad-coop/internal/infrastructure/mqtt"
)

const defaultPublishQueueSize = 256

// PublisherOptions configures an EventPublisher.
type PublisherOptions struct {
	// MQTTClient is the broker connection. Required.
	MQTTClient MQTTClient

	// Hardware adds hardware identifiers to state messages. Optional.
	Hardware gamepad.HardwareResolver

	Logger Logger

	// QoS is used for every publish.
	QoS byte

	// QueueSize is the number of messages buffered ahead of the broker.
	// Defaults to 256. Events beyond it are dropped; retained state is
	// deferred instead.
	QueueSize int
}

// EventPublisher mirrors registry notifications to coop/core.
//
// For every connected gamepad it keeps a retained state message, cleared on
// disconnect, and it publishes one event message per notification. Publishes
// happen on the publisher's own goroutine in notification order, so
// notifications never wait for the broker.
//
// When the queue is full, event messages are dropped and counted. Retained
// state messages are never dropped: the newest one per topic is held aside
// and published once the queue has drained, so the broker never keeps state
// for a gamepad that has disconnected.
type EventPublisher struct {
	mqtt     MQTTClient
	hardware gamepad.HardwareResolver
	topics   mqtt.Topics
	qos      byte

	queue chan outbound
	done  chan struct{}
	kick  chan struct{}
	wg    sync.WaitGroup

	// deferred holds retained messages that did not fit in queue, by topic.
	deferred   map[string]outbound
	deferredMu sync.Mutex

	startOnce sync.Once
	stopOnce  sync.Once

	published atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64

	logger   Logger
	loggerMu sync.RWMutex
}

type outbound struct {
	topic    string
	payload  []byte
	retained bool
}

// PublisherStats reports publisher counters.
type PublisherStats struct {
	Published uint64 `json:"published"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
	Queued    int    `json:"queued"`
	Deferred  int    `json:"deferred"`
}

// NewEventPublisher creates a publisher. Call Start before attaching it.
func NewEventPublisher(opts PublisherOptions) (*EventPublisher, error) {
	if opts.MQTTClient == nil {
		return nil, errors.New("MQTT client is required")
	}
	size := opts.QueueSize
	if size <= 0 {
		size = defaultPublishQueueSize
	}

	return &EventPublisher{
		mqtt:     opts.MQTTClient,
		hardware: opts.Hardware,
		qos:      opts.QoS,
		queue:    make(chan outbound, size),
		done:     make(chan struct{}),
		kick:     make(chan struct{}, 1),
		deferred: make(map[string]outbound),
		logger:   opts.Logger,
	}, nil
}

// SetLogger sets the logger for the publisher.
func (p *EventPublisher) SetLogger(logger Logger) {
	p.loggerMu.Lock()
	defer p.loggerMu.Unlock()
	p.logger = logger
}

// Start launches the publishing goroutine.
func (p *EventPublisher) Start() {
	p.startOnce.Do(func() {
		p.wg.Add(1)
		go p.run()
	})
}

// Stop publishes what is already queued, then stops the goroutine.
// Notifications after Stop are dropped.
func (p *EventPublisher) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
	})
}

// Attach subscribes the publisher to every registry notification.
func (p *EventPublisher) Attach(r *gamepad.Registry) (cancel func()) {
	return r.Observe(p)
}

// GamepadConnected publishes the new state and a gamepad_connected event.
func (p *EventPublisher) GamepadConnected(rec gamepad.Record) {
	p.enqueueState(rec.DeviceID, rec.UserID)
	p.enqueueEvent(gamepad.ConnectedEvent(rec))
}

// GamepadDisconnected clears the retained state and publishes a
// gamepad_disconnected event.
func (p *EventPublisher) GamepadDisconnected(rec gamepad.Record) {
	p.enqueue(outbound{
		topic:    p.topics.GamepadState(rec.DeviceID.String()),
		payload:  []byte{},
		retained: true,
	})
	p.enqueueEvent(gamepad.DisconnectedEvent(rec))
}

// GamepadUserChanged republishes the state with the new user and publishes
// a gamepad_user_changed event.
func (p *EventPublisher) GamepadUserChanged(rec gamepad.Record, newUser, oldUser gamepad.UserID) {
	p.enqueueState(rec.DeviceID, newUser)
	p.enqueueEvent(gamepad.UserChangedEvent(rec, newUser, oldUser))
}

// enqueueState resolves hardware now, while the resolver still knows the
// device, and queues the retained state.
func (p *EventPublisher) enqueueState(deviceID gamepad.DeviceID, userID gamepad.UserID) {
	msg := StateMessage{
		DeviceID:  deviceID,
		UserID:    userID,
		State:     gamepad.StateConnected,
		UpdatedAt: time.Now().UTC(),
	}
	if p.hardware != nil {
		if hw, ok := p.hardware.HardwareIdentifier(deviceID); ok {
			msg.Hardware = &hw
		}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		p.logWarn("failed to marshal gamepad state", "device_id", deviceID, "error", err)
		return
	}
	p.enqueue(outbound{
		topic:    p.topics.GamepadState(deviceID.String()),
		payload:  payload,
		retained: true,
	})
}

func (p *EventPublisher) enqueueEvent(e gamepad.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		p.logWarn("failed to marshal gamepad event", "kind", string(e.Kind), "error", err)
		return
	}
	p.enqueue(outbound{
		topic:   p.topics.CoreEvent(string(e.Kind)),
		payload: payload,
	})
}

func (p *EventPublisher) enqueue(msg outbound) {
	select {
	case <-p.done:
		p.dropped.Add(1)
		return
	default:
	}

	// A topic already held aside stays there so its messages keep their order.
	if msg.retained && p.replaceDeferred(msg) {
		return
	}

	select {
	case p.queue <- msg:
		return
	default:
	}

	if msg.retained {
		p.deferredMu.Lock()
		p.deferred[msg.topic] = msg
		p.deferredMu.Unlock()
		p.logWarn("publish queue full, deferring retained state", "topic", msg.topic)
		select {
		case p.kick <- struct{}{}:
		default:
		}
		return
	}
	p.dropped.Add(1)
	p.logWarn("publish queue full, dropping message", "topic", msg.topic)
}

// replaceDeferred overwrites the held message for msg.topic, if there is one.
func (p *EventPublisher) replaceDeferred(msg outbound) bool {
	p.deferredMu.Lock()
	defer p.deferredMu.Unlock()
	if _, held := p.deferred[msg.topic]; !held {
		return false
	}
	p.deferred[msg.topic] = msg
	return true
}

// flushDeferred publishes the held retained messages. It runs only when the
// queue is empty, so nothing older for the same topic is still queued.
func (p *EventPublisher) flushDeferred() {
	p.deferredMu.Lock()
	if len(p.deferred) == 0 {
		p.deferredMu.Unlock()
		return
	}
	held := make([]outbound, 0, len(p.deferred))
	for _, msg := range p.deferred {
		held = append(held, msg)
	}
	clear(p.deferred)
	p.deferredMu.Unlock()

	for _, msg := range held {
		p.publish(msg)
	}
}

func (p *EventPublisher) run() {
	defer p.wg.Done()
	for {
		select {
		case msg := <-p.queue:
			p.publish(msg)
			if len(p.queue) == 0 {
				p.flushDeferred()
			}
		case <-p.kick:
			if len(p.queue) == 0 {
				p.flushDeferred()
			}
		case <-p.done:
			p.drain()
			return
		}
	}
}

// drain publishes whatever was queued or held aside before Stop.
func (p *EventPublisher) drain() {
	for {
		select {
		case msg := <-p.queue:
			p.publish(msg)
		default:
			p.flushDeferred()
			return
		}
	}
}

func (p *EventPublisher) publish(msg outbound) {
	if err := p.mqtt.Publish(msg.topic, msg.payload, p.qos, msg.retained); err != nil {
		p.failed.Add(1)
		p.logWarn("failed to publish gamepad update",
			"topic", msg.topic,
			"error", err,
		)
		return
	}
	p.published.Add(1)
}

// Stats returns current publisher counters.
func (p *EventPublisher) Stats() PublisherStats {
	return PublisherStats{
		Published: p.published.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.dropped.Load(),
		Queued:    len(p.queue),
		Deferred:  p.deferredCount(),
	}
}

func (p *EventPublisher) deferredCount() int {
	p.deferredMu.Lock()
	defer p.deferredMu.Unlock()
	return len(p.deferred)
}

func (p *EventPublisher) logWarn(msg string, args ...any) {
	p.loggerMu.RLock()
	logger := p.logger
	p.loggerMu.RUnlock()
	if logger != nil {
		logger.Warn(msg, args...)
	}
}
