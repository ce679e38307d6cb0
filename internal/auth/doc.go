// Package auth provides access tokens and roles for the coopd API.
//
// It implements a two-tier role model (viewer → operator):
//   - HS256 JWT access tokens signed with the configured secret
//   - A role claim checked by the API before remapping a gamepad
//   - Static role-permission mapping (compile-time, no database lookup)
//
// coopd has no user accounts. Tokens are issued out of band with
// `coopd token` and validated by signature only.
package auth
