package gamepad

import "errors"

// Domain errors for the gamepad package.
//
// The registry itself reports expected failures through bool results; these
// errors are returned by parsers, collaborators and the journal.
var (
	// ErrInvalidDeviceID is returned when a device id cannot be parsed.
	ErrInvalidDeviceID = errors.New("gamepad: invalid device id")

	// ErrInvalidUserID is returned when a user id cannot be parsed.
	ErrInvalidUserID = errors.New("gamepad: invalid user id")

	// ErrMappingRejected is returned by an authority that refused a remap.
	ErrMappingRejected = errors.New("gamepad: mapping rejected by platform")
)
