package gamepad

// MetricsWriter receives session telemetry. Implementations must not block.
type MetricsWriter interface {
	WriteGamepadEvent(kind string, deviceID, userID int)
	WriteSessionGauge(connected, users int)
}

// AttachMetrics writes every registry notification and the resulting
// session gauge to w.
func AttachMetrics(r *Registry, w MetricsWriter) (cancel func()) {
	return r.OnEvent(func(e Event) {
		w.WriteGamepadEvent(string(e.Kind), int(e.DeviceID), int(e.UserID))

		stats := r.Stats()
		w.WriteSessionGauge(stats.TotalGamepads, stats.Users)
	})
}
