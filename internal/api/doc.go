// Package api implements the HTTP REST API and WebSocket server for coopd.
//
// This package provides:
//   - REST endpoints to query gamepad assignments and their history
//   - A remap endpoint that moves a gamepad to another player
//   - WebSocket hub broadcasting registry events in real time
//   - JWT bearer authentication with an operator role for remaps
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The API server reads from the gamepad registry directly. Remaps go through
// the registry, which pushes them to the platform before applying them; a
// refusal is reported as 409 Conflict. The hub is a registry observer and
// fans notifications out to subscribed WebSocket clients.
//
// # Security
//
// Everything under /api/v1 except /health, /metrics and /ws requires a bearer
// token. PUT /gamepads/{device}/user additionally requires the operator role.
// The WebSocket stream is read-only and unauthenticated.
package api
