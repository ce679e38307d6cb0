package gamepad

import (
	"time"

	"github.com/google/uuid"
)

// EventKind names a registry notification channel.
type EventKind string

// Event kinds, also used as MQTT event types and journal kinds.
const (
	EventConnected    EventKind = "gamepad_connected"
	EventDisconnected EventKind = "gamepad_disconnected"
	EventUserChanged  EventKind = "gamepad_user_changed"
)

// IsValid reports whether the kind is one of the known values.
func (k EventKind) IsValid() bool {
	switch k {
	case EventConnected, EventDisconnected, EventUserChanged:
		return true
	default:
		return false
	}
}

// Event is a registry notification flattened for transport and storage.
//
// For EventUserChanged, UserID is the new user and OldUserID the previous
// one. OldUserID is nil for the other kinds.
type Event struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	DeviceID  DeviceID  `json:"device_id"`
	UserID    UserID    `json:"user_id"`
	OldUserID *UserID   `json:"old_user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func newEvent(kind EventKind, deviceID DeviceID, userID UserID) Event {
	return Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		DeviceID:  deviceID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
}

// ConnectedEvent builds the event for a Connected notification.
func ConnectedEvent(rec Record) Event {
	return newEvent(EventConnected, rec.DeviceID, rec.UserID)
}

// DisconnectedEvent builds the event for a Disconnected notification.
func DisconnectedEvent(rec Record) Event {
	return newEvent(EventDisconnected, rec.DeviceID, rec.UserID)
}

// UserChangedEvent builds the event for a UserChanged notification.
func UserChangedEvent(rec Record, newUser, oldUser UserID) Event {
	e := newEvent(EventUserChanged, rec.DeviceID, newUser)
	e.OldUserID = &oldUser
	return e
}

// OnEvent registers fn on all three channels, converting each notification
// to an Event. The returned function removes it again.
func (r *Registry) OnEvent(fn func(Event)) (cancel func()) {
	return r.Observe(eventObserver(fn))
}

// eventObserver adapts a func(Event) to the Observer interface.
type eventObserver func(Event)

func (fn eventObserver) GamepadConnected(rec Record) {
	fn(ConnectedEvent(rec))
}

func (fn eventObserver) GamepadDisconnected(rec Record) {
	fn(DisconnectedEvent(rec))
}

func (fn eventObserver) GamepadUserChanged(rec Record, newUser, oldUser UserID) {
	fn(UserChangedEvent(rec, newUser, oldUser))
}
