package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gamepad-coop/internal/gamepad"
	"github.com/nerrad567/gamepad-coop/internal/infrastructure/mqtt"
)

const (
	// defaultRequestTimeout bounds a request when the options leave it unset.
	defaultRequestTimeout = 5 * time.Second

	// responseTopicSegments is the segment count of coop/input/response/{kind}/{id}.
	responseTopicSegments = 5
)

// MQTTClient is the subset of the MQTT client the bridge uses.
// *mqtt.Client satisfies it.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// Registry is the part of gamepad.Registry driven by platform messages.
type Registry interface {
	Initialize(snapshot []gamepad.DeviceSnapshot)
	HandleConnectionEvent(state gamepad.ConnectionState, userID gamepad.UserID, deviceID gamepad.DeviceID)
	HandleExternalUserChanged(deviceID gamepad.DeviceID, newUser, oldUser gamepad.UserID)
}

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// BridgeOptions configures a Bridge.
type BridgeOptions struct {
	// MQTTClient is the broker connection. Required.
	MQTTClient MQTTClient

	// Registry receives enumeration and connection changes. Required.
	Registry Registry

	// Logger is optional.
	Logger Logger

	// QoS is used for subscriptions and requests.
	QoS byte

	// RequestTimeout bounds enumerate and mapping requests.
	// Defaults to 5 seconds.
	RequestTimeout time.Duration

	// EnumerateOnStart asks the platform for connected devices before
	// subscribing to connection changes.
	EnumerateOnStart bool
}

// Bridge is the registry's device source, mapping authority and hardware
// resolver, all backed by the platform input layer over MQTT.
type Bridge struct {
	mqtt     MQTTClient
	registry Registry
	topics   mqtt.Topics

	qos              byte
	requestTimeout   time.Duration
	enumerateOnStart bool

	pending   map[string]pendingRequest
	pendingMu sync.Mutex
	listening atomic.Bool

	hardware   map[gamepad.DeviceID]gamepad.HardwareIdentifier
	hardwareMu sync.RWMutex

	subscribed []string
	started    bool
	stateMu    sync.Mutex

	done     chan struct{}
	stopOnce sync.Once

	messagesReceived atomic.Uint64
	messagesDropped  atomic.Uint64
	mappingRequests  atomic.Uint64
	mappingRejected  atomic.Uint64
	mappingFailures  atomic.Uint64

	logger   Logger
	loggerMu sync.RWMutex
}

type pendingRequest struct {
	kind     string
	response chan []byte
}

// BridgeStats reports bridge counters for the health endpoint.
type BridgeStats struct {
	MessagesReceived uint64 `json:"messages_received"`
	MessagesDropped  uint64 `json:"messages_dropped"`
	MappingRequests  uint64 `json:"mapping_requests"`
	MappingRejected  uint64 `json:"mapping_rejected"`
	MappingFailures  uint64 `json:"mapping_failures"`
	PendingRequests  int    `json:"pending_requests"`
	KnownHardware    int    `json:"known_hardware"`
}

// NewBridge creates a bridge. It does not touch the broker until Start.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, errors.New("MQTT client is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if opts.QoS > 2 {
		return nil, fmt.Errorf("invalid QoS %d", opts.QoS)
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &Bridge{
		mqtt:             opts.MQTTClient,
		registry:         opts.Registry,
		qos:              opts.QoS,
		requestTimeout:   timeout,
		enumerateOnStart: opts.EnumerateOnStart,
		pending:          make(map[string]pendingRequest),
		hardware:         make(map[gamepad.DeviceID]gamepad.HardwareIdentifier),
		done:             make(chan struct{}),
		logger:           opts.Logger,
	}, nil
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	defer b.loggerMu.Unlock()
	b.logger = logger
}

// Start attaches the bridge to the platform.
//
// It subscribes to responses, enumerates connected devices into the registry
// (when enabled), then subscribes to connection and rebinding changes.
// Changes published between the enumeration and the subscription are not
// seen. Start must not be called from an MQTT handler.
func (b *Bridge) Start(ctx context.Context) error {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()

	if b.started {
		return ErrAlreadyStarted
	}
	select {
	case <-b.done:
		return ErrBridgeStopped
	default:
	}

	if err := b.subscribe(b.topics.AllInputResponses(), b.handleResponse); err != nil {
		return err
	}
	b.listening.Store(true)

	if b.enumerateOnStart {
		resp, err := b.enumerate(ctx)
		if err != nil {
			b.unsubscribeAll()
			return fmt.Errorf("enumerating devices: %w", err)
		}
		for _, d := range resp.Devices {
			if d.UserID != nil && d.UserID.IsValid() {
				b.rememberHardware(d.DeviceID, d.Hardware)
			}
		}
		b.registry.Initialize(resp.snapshot())
	}

	if err := b.subscribe(b.topics.AllInputConnections(), b.handleConnection); err != nil {
		b.unsubscribeAll()
		return err
	}
	if err := b.subscribe(b.topics.AllInputUserChanged(), b.handleUserChanged); err != nil {
		b.unsubscribeAll()
		return err
	}

	b.started = true
	b.logInfo("platform bridge started",
		"enumerate", b.enumerateOnStart,
		"subscriptions", len(b.subscribed),
	)
	return nil
}

// Stop detaches the bridge from the platform. Outstanding requests fail with
// ErrBridgeStopped. Safe to call more than once.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.listening.Store(false)

		b.stateMu.Lock()
		b.unsubscribeAll()
		b.started = false
		b.stateMu.Unlock()

		b.logInfo("platform bridge stopped")
	})
}

// subscribe registers a handler and records the topic for Stop.
// Callers hold stateMu.
func (b *Bridge) subscribe(topic string, handler mqtt.MessageHandler) error {
	if err := b.mqtt.Subscribe(topic, b.qos, handler); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	b.subscribed = append(b.subscribed, topic)
	return nil
}

// unsubscribeAll drops every subscription made by the bridge.
// Callers hold stateMu.
func (b *Bridge) unsubscribeAll() {
	for _, topic := range b.subscribed {
		if err := b.mqtt.Unsubscribe(topic); err != nil {
			b.logWarn("failed to unsubscribe", "topic", topic, "error", err)
		}
	}
	b.subscribed = nil
	b.listening.Store(false)
}

// handleConnection applies a coop/input/connection/{device} message.
func (b *Bridge) handleConnection(topic string, payload []byte) error {
	deviceID, err := deviceFromTopic(topic)
	if err != nil {
		b.messagesDropped.Add(1)
		return err
	}

	var msg ConnectionMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.messagesDropped.Add(1)
		return fmt.Errorf("%w: decoding connection message: %w", ErrInvalidMessage, err)
	}
	if !msg.State.IsValid() {
		b.messagesDropped.Add(1)
		return fmt.Errorf("%w: unknown connection state %q", ErrInvalidMessage, msg.State)
	}
	b.messagesReceived.Add(1)

	switch msg.State {
	case gamepad.StateConnected:
		user := gamepad.InvalidUserID
		if msg.UserID != nil {
			user = *msg.UserID
		}
		// Known before observers of the Connected notification run.
		if user.IsValid() {
			b.rememberHardware(deviceID, msg.Hardware)
		}
		b.registry.HandleConnectionEvent(gamepad.StateConnected, user, deviceID)
	case gamepad.StateDisconnected:
		b.registry.HandleConnectionEvent(gamepad.StateDisconnected, gamepad.InvalidUserID, deviceID)
		b.forgetHardware(deviceID)
	}
	return nil
}

// handleUserChanged applies a coop/input/user_changed/{device} message.
func (b *Bridge) handleUserChanged(topic string, payload []byte) error {
	deviceID, err := deviceFromTopic(topic)
	if err != nil {
		b.messagesDropped.Add(1)
		return err
	}

	var msg UserChangedMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.messagesDropped.Add(1)
		return fmt.Errorf("%w: decoding user changed message: %w", ErrInvalidMessage, err)
	}
	b.messagesReceived.Add(1)

	b.registry.HandleExternalUserChanged(deviceID, msg.NewUserID, msg.OldUserID)
	return nil
}

// Stats returns current bridge counters.
func (b *Bridge) Stats() BridgeStats {
	b.pendingMu.Lock()
	pending := len(b.pending)
	b.pendingMu.Unlock()

	b.hardwareMu.RLock()
	known := len(b.hardware)
	b.hardwareMu.RUnlock()

	return BridgeStats{
		MessagesReceived: b.messagesReceived.Load(),
		MessagesDropped:  b.messagesDropped.Load(),
		MappingRequests:  b.mappingRequests.Load(),
		MappingRejected:  b.mappingRejected.Load(),
		MappingFailures:  b.mappingFailures.Load(),
		PendingRequests:  pending,
		KnownHardware:    known,
	}
}

// newRequestID returns a correlation id for a platform request.
func newRequestID() string {
	return uuid.NewString()
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func (b *Bridge) logDebug(msg string, args ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Debug(msg, args...)
	}
}

func (b *Bridge) logInfo(msg string, args ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, args...)
	}
}

func (b *Bridge) logWarn(msg string, args ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Warn(msg, args...)
	}
}
