//go:build integration

package mqtt

import (
	"context"
	"testing"
	"time"
)

// Reconnect tests need a broker at 127.0.0.1:1883 that the test can share
// with a second client. Run with:
//
//	go test -tags=integration ./internal/infrastructure/mqtt/...

func TestIntegration_RetainedStatusOnline(t *testing.T) {
	client := connectOrSkip(t, "coopd-int-status")
	watcher := connectOrSkip(t, "coopd-int-status-watcher")

	got := make(chan []byte, 4)
	err := watcher.Subscribe(Topics{}.SystemStatus(), 1, func(_ string, payload []byte) error {
		got <- payload
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	select {
	case payload := <-got:
		if len(payload) == 0 {
			t.Error("empty retained status")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no retained status received")
	}

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestIntegration_SubscriptionTracking(t *testing.T) {
	client := connectOrSkip(t, "coopd-int-sub-track")

	topics := []string{
		Topics{}.AllInputConnections(),
		Topics{}.AllInputUserChanged(),
		Topics{}.AllInputResponses(),
	}
	for _, topic := range topics {
		if err := client.Subscribe(topic, 1, func(string, []byte) error { return nil }); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}

	if client.SubscriptionCount() != len(topics) {
		t.Errorf("SubscriptionCount() = %d, want %d", client.SubscriptionCount(), len(topics))
	}

	// Simulate the reconnect path.
	client.restoreSubscriptions()

	if client.SubscriptionCount() != len(topics) {
		t.Errorf("SubscriptionCount() after restore = %d, want %d", client.SubscriptionCount(), len(topics))
	}
}
