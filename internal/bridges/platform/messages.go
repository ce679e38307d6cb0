package platform

import (
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gamepad-coop/internal/gamepad"
)

// ConnectionMessage is published by the platform when a device connects or
// disconnects.
// Topic: coop/input/connection/{device_id}
type ConnectionMessage struct {
	// State is "connected" or "disconnected".
	State gamepad.ConnectionState `json:"state"`

	// UserID is the platform user paired with the device. It is ignored on
	// disconnect. Nil means no user is paired yet.
	UserID *gamepad.UserID `json:"user_id,omitempty"`

	// Hardware identifies the physical device, when the platform knows it.
	Hardware *gamepad.HardwareIdentifier `json:"hardware,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// UserChangedMessage is published by the platform when it rebinds a device
// on its own.
// Topic: coop/input/user_changed/{device_id}
type UserChangedMessage struct {
	NewUserID gamepad.UserID `json:"new_user_id"`
	OldUserID gamepad.UserID `json:"old_user_id"`
	Timestamp time.Time      `json:"timestamp"`
}

// EnumerateRequest asks the platform for every connected device.
// Topic: coop/input/request/enumerate/{request_id}
type EnumerateRequest struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// EnumerateResponse lists the devices connected at the time of the request.
// Topic: coop/input/response/enumerate/{request_id}
type EnumerateResponse struct {
	RequestID string             `json:"request_id"`
	Devices   []EnumeratedDevice `json:"devices"`
	Error     string             `json:"error,omitempty"`
}

// EnumeratedDevice is one entry of an EnumerateResponse.
type EnumeratedDevice struct {
	DeviceID gamepad.DeviceID `json:"device_id"`

	// UserID is nil when the platform has no user paired with the device.
	UserID *gamepad.UserID `json:"user_id,omitempty"`

	Hardware *gamepad.HardwareIdentifier `json:"hardware,omitempty"`
}

// MappingRequest asks the platform to bind a device to another user.
// Topic: coop/input/request/mapping/{request_id}
type MappingRequest struct {
	RequestID string           `json:"request_id"`
	DeviceID  gamepad.DeviceID `json:"device_id"`
	NewUserID gamepad.UserID   `json:"new_user_id"`
	OldUserID gamepad.UserID   `json:"old_user_id"`
	Timestamp time.Time        `json:"timestamp"`
}

// MappingResponse is the platform's answer to a MappingRequest.
// Topic: coop/input/response/mapping/{request_id}
type MappingResponse struct {
	RequestID string `json:"request_id"`
	Accepted  bool   `json:"accepted"`

	// Reason explains a refusal.
	Reason string `json:"reason,omitempty"`
}

// StateMessage is the retained view of one connected gamepad.
// Topic: coop/core/gamepad/{device_id}/state
type StateMessage struct {
	DeviceID  gamepad.DeviceID            `json:"device_id"`
	UserID    gamepad.UserID              `json:"user_id"`
	State     gamepad.ConnectionState     `json:"state"`
	Hardware  *gamepad.HardwareIdentifier `json:"hardware,omitempty"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

// snapshot converts the enumeration into registry input. Devices without a
// paired user carry gamepad.InvalidUserID.
func (r EnumerateResponse) snapshot() []gamepad.DeviceSnapshot {
	out := make([]gamepad.DeviceSnapshot, 0, len(r.Devices))
	for _, d := range r.Devices {
		user := gamepad.InvalidUserID
		if d.UserID != nil {
			user = *d.UserID
		}
		out = append(out, gamepad.DeviceSnapshot{DeviceID: d.DeviceID, UserID: user})
	}
	return out
}

// deviceFromTopic extracts the device id from the last segment of an input
// topic such as coop/input/connection/3.
func deviceFromTopic(topic string) (gamepad.DeviceID, error) {
	idx := strings.LastIndexByte(topic, '/')
	if idx < 0 || idx == len(topic)-1 {
		return gamepad.InvalidDeviceID, fmt.Errorf("%w: topic %q has no device segment", ErrInvalidMessage, topic)
	}
	id, err := gamepad.ParseDeviceID(topic[idx+1:])
	if err != nil {
		return gamepad.InvalidDeviceID, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return id, nil
}

// responseTopicParts splits coop/input/response/{kind}/{request_id}.
func responseTopicParts(topic string) (kind, requestID string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != responseTopicSegments || parts[2] != "response" {
		return "", "", fmt.Errorf("%w: unexpected response topic %q", ErrInvalidMessage, topic)
	}
	return parts[3], parts[4], nil
}
