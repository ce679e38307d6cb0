package platform

import (
	"errors"
	"testing"

	"github.com/nerrad567/gamepad-coop/internal/gamepad"
)

func TestDeviceFromTopic(t *testing.T) {
	tests := []struct {
		topic   string
		want    gamepad.DeviceID
		wantErr bool
	}{
		{"coop/input/connection/0", 0, false},
		{"coop/input/user_changed/12", 12, false},
		{"coop/input/connection/", gamepad.InvalidDeviceID, true},
		{"coop/input/connection/abc", gamepad.InvalidDeviceID, true},
		{"coop/input/connection/-3", gamepad.InvalidDeviceID, true},
		{"nodevice", gamepad.InvalidDeviceID, true},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			got, err := deviceFromTopic(tt.topic)
			if (err != nil) != tt.wantErr {
				t.Fatalf("deviceFromTopic() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidMessage) {
				t.Errorf("error = %v, want ErrInvalidMessage", err)
			}
			if got != tt.want {
				t.Errorf("deviceFromTopic() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestResponseTopicParts(t *testing.T) {
	kind, id, err := responseTopicParts("coop/input/response/mapping/42ab")
	if err != nil || kind != "mapping" || id != "42ab" {
		t.Errorf("responseTopicParts() = %q, %q, %v", kind, id, err)
	}

	for _, topic := range []string{
		"coop/input/response/mapping",
		"coop/input/request/mapping/42ab",
		"coop/input/response/mapping/42ab/extra",
	} {
		if _, _, err := responseTopicParts(topic); !errors.Is(err, ErrInvalidMessage) {
			t.Errorf("responseTopicParts(%q) error = %v, want ErrInvalidMessage", topic, err)
		}
	}
}

func TestEnumerateResponseSnapshot(t *testing.T) {
	user := gamepad.UserID(3)
	resp := EnumerateResponse{Devices: []EnumeratedDevice{
		{DeviceID: 1, UserID: &user},
		{DeviceID: 2},
	}}

	got := resp.snapshot()
	want := []gamepad.DeviceSnapshot{
		{DeviceID: 1, UserID: 3},
		{DeviceID: 2, UserID: gamepad.InvalidUserID},
	}
	if len(got) != len(want) {
		t.Fatalf("snapshot() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("snapshot()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}
