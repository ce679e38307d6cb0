package platform

import "errors"

// Domain errors for the platform bridge.
var (
	// ErrRequestTimeout is returned when the platform does not answer a
	// request in time.
	ErrRequestTimeout = errors.New("platform: request timed out")

	// ErrRequestFailed is returned when the platform answers a request with
	// an error.
	ErrRequestFailed = errors.New("platform: request failed")

	// ErrInvalidMessage is returned for payloads or topics that cannot be
	// decoded.
	ErrInvalidMessage = errors.New("platform: invalid message")

	// ErrNotStarted is returned when the bridge is used before Start.
	ErrNotStarted = errors.New("platform: bridge not started")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("platform: bridge already started")

	// ErrBridgeStopped is returned for requests made after Stop.
	ErrBridgeStopped = errors.New("platform: bridge stopped")
)
