package platform

import "github.com/nerrad567/gamepad-coop/internal/gamepad"

// HardwareIdentifier returns the hardware last reported for a connected
// device. It implements gamepad.HardwareResolver.
//
// Only devices the registry can track are cached: a device reported without
// a user has no entry.
func (b *Bridge) HardwareIdentifier(deviceID gamepad.DeviceID) (gamepad.HardwareIdentifier, bool) {
	b.hardwareMu.RLock()
	defer b.hardwareMu.RUnlock()
	hw, ok := b.hardware[deviceID]
	return hw, ok
}

// rememberHardware caches hw for deviceID. A missing or incomplete
// identifier leaves any earlier entry in place.
func (b *Bridge) rememberHardware(deviceID gamepad.DeviceID, hw *gamepad.HardwareIdentifier) {
	if hw == nil || !hw.IsValid() {
		return
	}
	b.hardwareMu.Lock()
	b.hardware[deviceID] = *hw
	b.hardwareMu.Unlock()
}

func (b *Bridge) forgetHardware(deviceID gamepad.DeviceID) {
	b.hardwareMu.Lock()
	delete(b.hardware, deviceID)
	b.hardwareMu.Unlock()
}
