package gamepad

import (
	"context"
	"sort"
	"sync"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Authority owns the device-to-user binding at the platform level.
// RemapDeviceToUser pushes every change here before committing it locally.
type Authority interface {
	PushUserMapping(ctx context.Context, deviceID DeviceID, newUser, oldUser UserID) error
}

// HardwareResolver resolves a device id to the hardware behind it.
type HardwareResolver interface {
	HardwareIdentifier(deviceID DeviceID) (HardwareIdentifier, bool)
}

// Registry tracks which gamepads are connected and which user owns each.
//
// The device table is guarded by a read-write mutex. Mutations are further
// serialized by mutateMu, held from the table change until every subscriber
// has been notified, so notifications reach subscribers in the order the
// changes were committed even when the device source and RemapDeviceToUser
// run on different goroutines. The table lock is released before
// subscribers run: a subscriber that queries the registry observes the table
// as already updated. Subscribers must not mutate the registry from inside a
// notification; doing so deadlocks.
//
// All methods are safe for concurrent use.
type Registry struct {
	devices map[DeviceID]Record
	mu      sync.RWMutex

	// mutateMu orders commit plus notification across mutations.
	mutateMu sync.Mutex

	authority Authority
	hardware  HardwareResolver
	logger    Logger

	connected    observerList[ConnectionHandler]
	disconnected observerList[ConnectionHandler]
	userChanged  observerList[UserChangedHandler]
}

// NewRegistry creates an empty registry with no authority attached.
// Without an authority, remaps are committed locally only.
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[DeviceID]Record),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetAuthority sets the platform mapping authority used by RemapDeviceToUser.
func (r *Registry) SetAuthority(authority Authority) {
	r.authority = authority
}

// SetHardwareResolver sets the resolver used by HardwareIdentifier.
func (r *Registry) SetHardwareResolver(resolver HardwareResolver) {
	r.hardware = resolver
}

// OnConnected registers a handler for Connected notifications.
// The returned function removes the handler.
func (r *Registry) OnConnected(handler ConnectionHandler) (cancel func()) {
	return r.connected.add(handler)
}

// OnDisconnected registers a handler for Disconnected notifications.
func (r *Registry) OnDisconnected(handler ConnectionHandler) (cancel func()) {
	return r.disconnected.add(handler)
}

// OnUserChanged registers a handler for UserChanged notifications.
func (r *Registry) OnUserChanged(handler UserChangedHandler) (cancel func()) {
	return r.userChanged.add(handler)
}

// Observe registers all three handlers of an Observer at once.
func (r *Registry) Observe(o Observer) (cancel func()) {
	cancels := []func(){
		r.OnConnected(o.GamepadConnected),
		r.OnDisconnected(o.GamepadDisconnected),
		r.OnUserChanged(o.GamepadUserChanged),
	}
	return func() {
		for _, c := range cancels {
			c()
		}
	}
}

// Initialize loads the device source's startup enumeration.
// Devices without a paired user are skipped until a connection event
// supplies one.
func (r *Registry) Initialize(snapshot []DeviceSnapshot) {
	skipped := 0
	for _, d := range snapshot {
		if !d.UserID.IsValid() {
			skipped++
			continue
		}
		r.RegisterDevice(d.UserID, d.DeviceID)
	}

	r.logger.Info("gamepad registry initialised",
		"enumerated", len(snapshot),
		"skipped", skipped,
		"gamepads", r.Count(),
	)
}

// HandleConnectionEvent applies a connection change from the device source.
// On disconnect the passed user is ignored; the record's last user is reported.
func (r *Registry) HandleConnectionEvent(state ConnectionState, userID UserID, deviceID DeviceID) {
	switch state {
	case StateConnected:
		r.RegisterDevice(userID, deviceID)
	case StateDisconnected:
		r.UnregisterDevice(deviceID)
	default:
		r.logger.Warn("ignoring unknown connection state",
			"state", string(state),
			"device_id", deviceID,
		)
	}
}

// RegisterDevice starts tracking a connected device.
// It is a no-op when the device is already tracked or the user is invalid.
func (r *Registry) RegisterDevice(userID UserID, deviceID DeviceID) {
	if !userID.IsValid() || !deviceID.IsValid() {
		r.logger.Debug("gamepad not registered: no owner",
			"device_id", deviceID,
			"user_id", userID,
		)
		return
	}

	r.mutateMu.Lock()
	defer r.mutateMu.Unlock()

	r.mu.Lock()
	if _, exists := r.devices[deviceID]; exists {
		r.mu.Unlock()
		r.logger.Debug("gamepad already registered", "device_id", deviceID)
		return
	}
	rec := Record{
		DeviceID: deviceID,
		UserID:   userID,
		State:    StateConnected,
	}
	r.devices[deviceID] = rec
	r.mu.Unlock()

	r.logger.Info("gamepad connected", "device_id", deviceID, "user_id", userID)
	for _, h := range r.connected.snapshot() {
		h(rec)
	}
}

// UnregisterDevice stops tracking a device and reports the record as it was
// before removal. Unknown devices are ignored.
func (r *Registry) UnregisterDevice(deviceID DeviceID) {
	r.mutateMu.Lock()
	defer r.mutateMu.Unlock()

	r.mu.Lock()
	rec, exists := r.devices[deviceID]
	if exists {
		delete(r.devices, deviceID)
	}
	r.mu.Unlock()

	if !exists {
		return
	}

	r.logger.Info("gamepad disconnected", "device_id", deviceID, "user_id", rec.UserID)
	for _, h := range r.disconnected.snapshot() {
		h(rec)
	}
}

// RemapDeviceToUser binds a connected device to another user.
//
// The change is pushed to the authority before the local record is touched;
// if the authority refuses, nothing changes and false is returned. Remapping
// to the current user succeeds without side effects.
func (r *Registry) RemapDeviceToUser(ctx context.Context, deviceID DeviceID, newUser UserID) bool {
	r.mu.RLock()
	rec, exists := r.devices[deviceID]
	r.mu.RUnlock()

	if !exists {
		r.logger.Warn("remap failed: gamepad not found", "device_id", deviceID)
		return false
	}

	oldUser := rec.UserID
	if oldUser == newUser {
		return true
	}
	if !newUser.IsValid() {
		r.logger.Warn("remap failed: invalid target user",
			"device_id", deviceID,
			"user_id", newUser,
		)
		return false
	}

	if r.authority != nil {
		if err := r.authority.PushUserMapping(ctx, deviceID, newUser, oldUser); err != nil {
			r.logger.Warn("remap failed: platform mapping not applied",
				"device_id", deviceID,
				"new_user_id", newUser,
				"old_user_id", oldUser,
				"error", err,
			)
			return false
		}
	}

	// Not held across the push: the authority's reply may arrive on the
	// goroutine that delivers device source mutations.
	r.mutateMu.Lock()
	defer r.mutateMu.Unlock()

	r.mu.Lock()
	current, stillExists := r.devices[deviceID]
	switch {
	case !stillExists:
		r.mu.Unlock()
		r.logger.Warn("remap failed: gamepad disconnected during remap", "device_id", deviceID)
		return false
	case current.UserID == newUser:
		// The authority's own change notification got here first.
		r.mu.Unlock()
		return true
	case current.UserID != oldUser:
		r.mu.Unlock()
		r.logger.Warn("remap failed: user changed during remap",
			"device_id", deviceID,
			"user_id", current.UserID,
		)
		return false
	}
	current.UserID = newUser
	r.devices[deviceID] = current
	r.mu.Unlock()

	r.logger.Info("gamepad remapped",
		"device_id", deviceID,
		"new_user_id", newUser,
		"old_user_id", oldUser,
	)
	r.emitUserChanged(rec, newUser, oldUser)
	return true
}

// HandleExternalUserChanged applies a binding change reported by the
// authority itself. Untracked devices are ignored.
func (r *Registry) HandleExternalUserChanged(deviceID DeviceID, newUser, oldUser UserID) {
	if !newUser.IsValid() {
		r.logger.Warn("ignoring platform user change to invalid user", "device_id", deviceID)
		return
	}

	r.mutateMu.Lock()
	defer r.mutateMu.Unlock()

	r.mu.Lock()
	rec, exists := r.devices[deviceID]
	if !exists || rec.UserID == newUser {
		r.mu.Unlock()
		return
	}
	updated := rec
	updated.UserID = newUser
	r.devices[deviceID] = updated
	r.mu.Unlock()

	if oldUser != rec.UserID {
		r.logger.Debug("platform reported stale previous user",
			"device_id", deviceID,
			"reported_old_user_id", oldUser,
			"old_user_id", rec.UserID,
		)
	}
	r.logger.Info("gamepad user changed by platform",
		"device_id", deviceID,
		"new_user_id", newUser,
		"old_user_id", rec.UserID,
	)
	r.emitUserChanged(rec, newUser, rec.UserID)
}

func (r *Registry) emitUserChanged(rec Record, newUser, oldUser UserID) {
	for _, h := range r.userChanged.snapshot() {
		h(rec, newUser, oldUser)
	}
}

// GetGamepad returns the record for a connected device.
func (r *Registry) GetGamepad(deviceID DeviceID) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.devices[deviceID]
	return rec, ok
}

// GetAllGamepadsForUser returns every connected device bound to the user,
// ordered by device id.
func (r *Registry) GetAllGamepadsForUser(userID UserID) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var records []Record
	for _, rec := range r.devices {
		if rec.UserID == userID {
			records = append(records, rec)
		}
	}
	sortRecords(records)
	return records
}

// GetAllGamepads returns every connected device, ordered by device id.
func (r *Registry) GetAllGamepads() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]Record, 0, len(r.devices))
	for _, rec := range r.devices {
		records = append(records, rec)
	}
	sortRecords(records)
	return records
}

// GetPrimaryGamepadForUser returns one device bound to the user, or
// InvalidDeviceID if the user has none. When a user owns several devices
// the pick is the lowest device id; callers should not rely on which.
func (r *Registry) GetPrimaryGamepadForUser(userID UserID) DeviceID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	primary := InvalidDeviceID
	for id, rec := range r.devices {
		if rec.UserID != userID {
			continue
		}
		if primary == InvalidDeviceID || id < primary {
			primary = id
		}
	}
	return primary
}

// HardwareIdentifier resolves the hardware behind a device through the
// configured resolver.
func (r *Registry) HardwareIdentifier(deviceID DeviceID) (HardwareIdentifier, bool) {
	if r.hardware == nil {
		return HardwareIdentifier{}, false
	}
	return r.hardware.HardwareIdentifier(deviceID)
}

// Count returns the number of connected gamepads.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Stats returns current registry statistics for monitoring.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		TotalGamepads: len(r.devices),
		ByUser:        make(map[UserID]int),
	}
	for _, rec := range r.devices {
		stats.ByUser[rec.UserID]++
	}
	stats.Users = len(stats.ByUser)
	return stats
}

// SubscriberCount returns the number of registered handlers per channel,
// in the order connected, disconnected, user changed.
func (r *Registry) SubscriberCount() (connected, disconnected, userChanged int) {
	return r.connected.len(), r.disconnected.len(), r.userChanged.len()
}

func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].DeviceID < records[j].DeviceID
	})
}
