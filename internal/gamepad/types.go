package gamepad

import (
	"fmt"
	"strconv"
)

// DeviceID identifies a physical gamepad for the lifetime of its connection.
type DeviceID int32

// UserID identifies a logical player slot on the platform.
type UserID int32

// Sentinel values for unresolved identifiers.
const (
	InvalidDeviceID DeviceID = -1
	InvalidUserID   UserID   = -1
)

// IsValid reports whether the device id refers to a real device.
func (d DeviceID) IsValid() bool {
	return d >= 0
}

// String returns the decimal form used in topics, URLs and logs.
func (d DeviceID) String() string {
	return strconv.Itoa(int(d))
}

// IsValid reports whether the user id refers to a real platform user.
func (u UserID) IsValid() bool {
	return u >= 0
}

// String returns the decimal form used in topics, URLs and logs.
func (u UserID) String() string {
	return strconv.Itoa(int(u))
}

// UserIDFromLocalPlayer builds the platform user for a local player
// controller index. Negative indexes have no user.
func UserIDFromLocalPlayer(controllerID int) UserID {
	if controllerID < 0 {
		return InvalidUserID
	}
	return UserID(controllerID)
}

// ParseDeviceID parses a decimal device id. Negative values are rejected.
func ParseDeviceID(s string) (DeviceID, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return InvalidDeviceID, fmt.Errorf("%w: %q", ErrInvalidDeviceID, s)
	}
	id := DeviceID(n)
	if !id.IsValid() {
		return InvalidDeviceID, fmt.Errorf("%w: %q", ErrInvalidDeviceID, s)
	}
	return id, nil
}

// ParseUserID parses a decimal user id. Negative values are rejected.
func ParseUserID(s string) (UserID, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return InvalidUserID, fmt.Errorf("%w: %q", ErrInvalidUserID, s)
	}
	id := UserID(n)
	if !id.IsValid() {
		return InvalidUserID, fmt.Errorf("%w: %q", ErrInvalidUserID, s)
	}
	return id, nil
}

// ConnectionState is the connection state reported by the device source.
type ConnectionState string

// Connection states.
const (
	StateConnected    ConnectionState = "connected"
	StateDisconnected ConnectionState = "disconnected"
)

// IsValid reports whether the state is one of the known values.
func (s ConnectionState) IsValid() bool {
	return s == StateConnected || s == StateDisconnected
}

// Record is the registry's view of one connected gamepad.
type Record struct {
	DeviceID DeviceID        `json:"device_id"`
	UserID   UserID          `json:"user_id"`
	State    ConnectionState `json:"state"`
}

// DeviceSnapshot is one entry of the device source's startup enumeration.
// UserID is InvalidUserID when the platform has no user paired yet.
type DeviceSnapshot struct {
	DeviceID DeviceID
	UserID   UserID
}

// HardwareIdentifier describes the physical device behind a DeviceID.
type HardwareIdentifier struct {
	InputClass string `json:"input_class"`
	DeviceName string `json:"device_name"`
}

// IsValid reports whether any identifying field is set.
func (h HardwareIdentifier) IsValid() bool {
	return h.InputClass != "" || h.DeviceName != ""
}

// Stats summarises the registry for monitoring.
type Stats struct {
	TotalGamepads int            `json:"total_gamepads"`
	Users         int            `json:"users"`
	ByUser        map[UserID]int `json:"by_user"`
}
