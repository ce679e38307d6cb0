package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gamepad-coop/internal/infrastructure/config"
)

// testConfig returns a configuration for a local broker at 127.0.0.1:1883.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "coopd-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// connectOrSkip connects to the local broker or skips the test.
func connectOrSkip(t *testing.T, clientID string) *Client {
	t.Helper()
	cfg := testConfig()
	cfg.Broker.ClientID = clientID

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := Connect(ctx, cfg)
	if err != nil {
		t.Skipf("MQTT broker not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// =============================================================================
// Topic builders
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"InputConnection", topics.InputConnection("3"), "coop/input/connection/3"},
		{"InputUserChanged", topics.InputUserChanged("3"), "coop/input/user_changed/3"},
		{"InputRequest", topics.InputRequest(RequestMapping, "abc"), "coop/input/request/mapping/abc"},
		{"InputResponse", topics.InputResponse(RequestEnumerate, "abc"), "coop/input/response/enumerate/abc"},
		{"GamepadState", topics.GamepadState("3"), "coop/core/gamepad/3/state"},
		{"CoreEvent", topics.CoreEvent("gamepad_connected"), "coop/core/event/gamepad_connected"},
		{"SystemStatus", topics.SystemStatus(), "coop/system/status"},
		{"AllInputConnections", topics.AllInputConnections(), "coop/input/connection/+"},
		{"AllInputUserChanged", topics.AllInputUserChanged(), "coop/input/user_changed/+"},
		{"AllInputResponses", topics.AllInputResponses(), "coop/input/response/+/+"},
		{"AllGamepadStates", topics.AllGamepadStates(), "coop/core/gamepad/+/state"},
		{"AllCoreEvents", topics.AllCoreEvents(), "coop/core/event/+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

// =============================================================================
// Options and payloads
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "coop"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "coopd-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "coop" || opts.Password != "secret" {
		t.Error("credentials not applied")
	}
	if !opts.Order {
		t.Error("OrderMatters = false, handlers must be delivered in order")
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false")
	}
	if opts.TLSConfig != nil && len(opts.TLSConfig.Certificates) > 0 {
		t.Error("unexpected TLS certificates")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS minimum version not applied")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "coopd-test")

	if !opts.WillEnabled || !opts.WillRetained {
		t.Fatal("LWT not enabled and retained")
	}
	if opts.WillTopic != "coop/system/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}

	var status statusPayload
	if err := json.Unmarshal(opts.WillPayload, &status); err != nil {
		t.Fatalf("LWT payload is not JSON: %v", err)
	}
	if status.Status != statusOffline || status.Reason != reasonUnexpected || status.ClientID != "coopd-test" {
		t.Errorf("LWT payload = %+v", status)
	}
}

func TestBuildStatusPayload_OmitsEmptyReason(t *testing.T) {
	payload := buildStatusPayload("coopd", statusOnline, "")
	if strings.Contains(string(payload), "reason") {
		t.Errorf("online payload contains reason: %s", payload)
	}
}

// =============================================================================
// Validation without a broker
// =============================================================================

func TestValidation_Disconnected(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"publish empty topic", client.Publish("", nil, 1, false), ErrInvalidTopic},
		{"publish bad qos", client.Publish("t", nil, 3, false), ErrInvalidQoS},
		{"publish oversize", client.Publish("t", make([]byte, maxPayloadSize+1), 1, false), ErrPublishFailed},
		{"publish disconnected", client.Publish("t", nil, 1, false), ErrNotConnected},
		{"subscribe empty topic", client.Subscribe("", 1, handler), ErrInvalidTopic},
		{"subscribe bad qos", client.Subscribe("t", 3, handler), ErrInvalidQoS},
		{"subscribe nil handler", client.Subscribe("t", 1, nil), ErrSubscribeFailed},
		{"subscribe disconnected", client.Subscribe("t", 1, handler), ErrNotConnected},
		{"unsubscribe empty topic", client.Unsubscribe(""), ErrInvalidTopic},
		{"unsubscribe disconnected", client.Unsubscribe("t"), ErrNotConnected},
		{"health disconnected", client.HealthCheck(context.Background()), ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("error = %v, want %v", tt.err, tt.want)
			}
		})
	}

	if client.SubscriptionCount() != 0 {
		t.Error("failed subscribe left a tracked subscription")
	}
}

func TestPublishJSON_MarshalError(t *testing.T) {
	client := &Client{}
	err := client.PublishJSON("t", make(chan int), false)
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishJSON() error = %v, want ErrPublishFailed", err)
	}
}

func TestCloseNil(t *testing.T) {
	if err := (&Client{}).Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	if (&Client{}).IsConnected() {
		t.Error("IsConnected() = true for uninitialised client")
	}
}

// =============================================================================
// Handler wrapper
// =============================================================================

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

var _ pahomqtt.Message = fakeMessage{}

// capturingLogger records log calls.
type capturingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *capturingLogger) log(level, msg string) {
	l.mu.Lock()
	l.lines = append(l.lines, level+": "+msg)
	l.mu.Unlock()
}

func (l *capturingLogger) Info(msg string, _ ...any)  { l.log("info", msg) }
func (l *capturingLogger) Warn(msg string, _ ...any)  { l.log("warn", msg) }
func (l *capturingLogger) Error(msg string, _ ...any) { l.log("error", msg) }

func TestWrapHandler_RecoversPanic(t *testing.T) {
	logger := &capturingLogger{}
	client := &Client{}
	client.SetLogger(logger)

	wrapped := client.wrapHandler(func(string, []byte) error {
		panic("bad payload")
	})
	wrapped(nil, fakeMessage{topic: "coop/input/connection/1"})

	if len(logger.lines) != 1 || !strings.HasPrefix(logger.lines[0], "error:") {
		t.Errorf("log lines = %v, want one error", logger.lines)
	}
}

func TestWrapHandler_LogsError(t *testing.T) {
	logger := &capturingLogger{}
	client := &Client{}
	client.SetLogger(logger)

	var gotTopic string
	var gotPayload []byte
	wrapped := client.wrapHandler(func(topic string, payload []byte) error {
		gotTopic, gotPayload = topic, payload
		return fmt.Errorf("malformed")
	})
	wrapped(nil, fakeMessage{topic: "coop/input/connection/1", payload: []byte("{}")})

	if gotTopic != "coop/input/connection/1" || string(gotPayload) != "{}" {
		t.Errorf("handler got %q %q", gotTopic, gotPayload)
	}
	if len(logger.lines) != 1 || !strings.HasPrefix(logger.lines[0], "warn:") {
		t.Errorf("log lines = %v, want one warning", logger.lines)
	}
}

func TestWrapHandler_NoLogger(t *testing.T) {
	client := &Client{}
	wrapped := client.wrapHandler(func(string, []byte) error { panic("boom") })
	wrapped(nil, fakeMessage{topic: "t"})
}

// =============================================================================
// Broker tests (skipped without a local broker)
// =============================================================================

func TestConnect_CancelledContext(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19999

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Connect(ctx, cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestPublishSubscribeRoundtrip(t *testing.T) {
	client := connectOrSkip(t, "coopd-test-roundtrip")

	topic := Topics{}.InputConnection("roundtrip")
	received := make(chan string, 1)

	err := client.Subscribe(topic, 1, func(_ string, payload []byte) error {
		received <- string(payload)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !client.HasSubscription(topic) {
		t.Error("HasSubscription() = false after Subscribe")
	}

	if err := client.PublishJSON(topic, map[string]string{"state": "connected"}, false); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}

	select {
	case got := <-received:
		if got != `{"state":"connected"}` {
			t.Errorf("payload = %s", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}

	if err := client.Unsubscribe(topic); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
	if client.HasSubscription(topic) {
		t.Error("HasSubscription() = true after Unsubscribe")
	}
}

func TestHandlersDeliveredInOrder(t *testing.T) {
	client := connectOrSkip(t, "coopd-test-order")

	const n = 20
	got := make(chan int, n)
	err := client.Subscribe(Topics{}.AllInputConnections(), 1, func(_ string, payload []byte) error {
		var i int
		if err := json.Unmarshal(payload, &i); err != nil {
			return err
		}
		got <- i
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	for i := 0; i < n; i++ {
		if err := client.PublishJSON(Topics{}.InputConnection("7"), i, false); err != nil {
			t.Fatalf("PublishJSON() error = %v", err)
		}
	}

	for want := 0; want < n; want++ {
		select {
		case i := <-got:
			if i != want {
				t.Fatalf("received %d, want %d", i, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for message %d", want)
		}
	}
}
