// Package gamepad provides the Gamepad Registry for the co-op core.
//
// The registry is the single source of truth for which physical gamepads
// are connected and which platform user (player slot) each one belongs to.
// Gameplay and UI code query it or subscribe to it; they never talk to the
// device enumeration layer directly.
//
// # Architecture
//
//	┌──────────────────┐  connection / user_changed   ┌──────────────────┐
//	│  Device source   │ ───────────────────────────▶ │     Registry     │
//	│ (platform bridge)│                              │  (registry.go)   │
//	└──────────────────┘                              │ • device table   │
//	         ▲                                        │ • remap          │
//	         │ PushUserMapping                        │ • notifications  │
//	┌──────────────────┐ ◀─────────────────────────── └──────────────────┘
//	│    Authority     │                                       │
//	└──────────────────┘                                       ▼
//	                               Observers: journal.go, metrics.go, API hub,
//	                               MQTT event publisher
//
// # Key Types
//
//   - DeviceID, UserID: small integer handles with an invalid sentinel (-1)
//   - Record: one connected gamepad and its owner
//   - Event: a notification flattened for transport and storage
//
// # Usage
//
//	registry := gamepad.NewRegistry()
//	registry.SetLogger(log)
//	registry.SetAuthority(bridge)
//
//	registry.OnConnected(func(rec gamepad.Record) {
//	    log.Info("player joined", "user_id", rec.UserID)
//	})
//
//	registry.Initialize(snapshot)
//	registry.HandleConnectionEvent(gamepad.StateConnected, 0, 3)
//
//	if !registry.RemapDeviceToUser(ctx, 3, 1) {
//	    // unknown device or the platform refused the mapping
//	}
//
// # Thread Safety
//
// All methods are safe for concurrent use. The device table is guarded by
// one read-write mutex and notifications run after it is released, so
// handlers may query the registry. Mutations are serialized through their
// notifications: handlers see changes in commit order even when the device
// source and RemapDeviceToUser run on different goroutines. Handlers must
// not mutate the registry.
package gamepad
