package mqtt

import "fmt"

// Topic prefixes for the co-op hierarchy.
//
// The platform input layer publishes under coop/input; coopd publishes its
// canonical view under coop/core; both report liveness under coop/system.
const (
	// TopicPrefixInput is the base for topics owned by the platform input layer.
	TopicPrefixInput = "coop/input"

	// TopicPrefixCore is the base for topics published by coopd.
	TopicPrefixCore = "coop/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "coop/system"
)

// Request kinds exchanged with the platform input layer.
const (
	RequestEnumerate = "enumerate"
	RequestMapping   = "mapping"
)

// Topics provides builders for co-op MQTT topics.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.GamepadState("3")
//	// Returns: "coop/core/gamepad/3/state"
type Topics struct{}

// InputConnection returns the topic for connection changes of one device.
//
// Example: coop/input/connection/3
func (Topics) InputConnection(deviceID string) string {
	return fmt.Sprintf("%s/connection/%s", TopicPrefixInput, deviceID)
}

// InputUserChanged returns the topic for platform-side rebinding of one device.
//
// Example: coop/input/user_changed/3
func (Topics) InputUserChanged(deviceID string) string {
	return fmt.Sprintf("%s/user_changed/%s", TopicPrefixInput, deviceID)
}

// InputRequest returns the topic for a request to the platform input layer.
//
// Example: coop/input/request/mapping/6f1c...
func (Topics) InputRequest(kind, requestID string) string {
	return fmt.Sprintf("%s/request/%s/%s", TopicPrefixInput, kind, requestID)
}

// InputResponse returns the topic the platform answers a request on.
//
// Example: coop/input/response/mapping/6f1c...
func (Topics) InputResponse(kind, requestID string) string {
	return fmt.Sprintf("%s/response/%s/%s", TopicPrefixInput, kind, requestID)
}

// GamepadState returns the retained state topic for one connected gamepad.
//
// Example: coop/core/gamepad/3/state
func (Topics) GamepadState(deviceID string) string {
	return fmt.Sprintf("%s/gamepad/%s/state", TopicPrefixCore, deviceID)
}

// CoreEvent returns the topic for registry events.
//
// Example: coop/core/event/gamepad_user_changed
func (Topics) CoreEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixCore, eventType)
}

// SystemStatus returns the online/offline status topic.
//
// Example: coop/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllInputConnections matches connection changes for every device.
//
// Pattern: coop/input/connection/+
func (Topics) AllInputConnections() string {
	return fmt.Sprintf("%s/connection/+", TopicPrefixInput)
}

// AllInputUserChanged matches platform rebinding for every device.
//
// Pattern: coop/input/user_changed/+
func (Topics) AllInputUserChanged() string {
	return fmt.Sprintf("%s/user_changed/+", TopicPrefixInput)
}

// AllInputResponses matches every response from the platform input layer.
//
// Pattern: coop/input/response/+/+
func (Topics) AllInputResponses() string {
	return fmt.Sprintf("%s/response/+/+", TopicPrefixInput)
}

// AllGamepadStates matches the retained state of every gamepad.
//
// Pattern: coop/core/gamepad/+/state
func (Topics) AllGamepadStates() string {
	return fmt.Sprintf("%s/gamepad/+/state", TopicPrefixCore)
}

// AllCoreEvents matches every registry event.
//
// Pattern: coop/core/event/+
func (Topics) AllCoreEvents() string {
	return fmt.Sprintf("%s/event/+", TopicPrefixCore)
}
