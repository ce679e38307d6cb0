package auth

import (
	"errors"
	"regexp"
)

// subjectPattern defines the valid format for token subjects:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var subjectPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// IsValidSubject checks if a token subject meets format requirements.
func IsValidSubject(subject string) bool {
	return subjectPattern.MatchString(subject)
}

// Role represents an authorisation tier.
type Role string

const (
	// RoleViewer can read gamepad assignments and history.
	RoleViewer Role = "viewer"

	// RoleOperator can also move gamepads between players.
	RoleOperator Role = "operator"
)

// ValidRoles is the set of roles a token may carry.
var ValidRoles = []Role{RoleViewer, RoleOperator}

// IsValidRole returns true if the role is one of ValidRoles.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// CanRemap reports whether the role may reassign a gamepad to another user.
func (r Role) CanRemap() bool {
	return HasPermission(r, PermGamepadRemap)
}

// Sentinel errors for authentication operations.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrInvalidRole  = errors.New("invalid role")
	ErrForbidden    = errors.New("insufficient permissions")
)
