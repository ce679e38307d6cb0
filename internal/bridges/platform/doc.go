// Package platform connects the gamepad registry to the platform input layer
// over MQTT.
//
// The platform input layer is the process that owns the physical devices and
// the platform's device-to-user bindings. It talks to coopd through the
// coop/input topic hierarchy:
//
//	┌─────────────────┐          ┌─────────────────┐
//	│  Platform input │   MQTT   │ Platform bridge │   calls
//	│      layer      │◄────────►│   (this pkg)    │─────────► gamepad.Registry
//	└─────────────────┘          └─────────────────┘
//
// # Key Responsibilities
//
//   - Enumerate connected devices at startup and initialise the registry
//   - Feed connection and rebinding messages into the registry
//   - Push remaps to the platform and wait for its answer (gamepad.Authority)
//   - Cache hardware identifiers per device (gamepad.HardwareResolver)
//   - Publish the registry's view under coop/core (EventPublisher)
//
// # Threading
//
// Inbound messages are handled on the MQTT client's router goroutine, one at
// a time in arrival order. Registry notifications raised by them run on the
// same goroutine, so observers must not block on MQTT acknowledgements;
// EventPublisher queues its publishes to its own goroutine for that reason.
// RemapDeviceToUser must not be called from a registry observer: the mapping
// response it waits for is delivered on the goroutine it would block.
package platform
