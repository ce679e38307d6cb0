package gamepad

import "testing"

type mockMetrics struct {
	events []string
	gauges [][2]int
}

func (m *mockMetrics) WriteGamepadEvent(kind string, _, _ int) {
	m.events = append(m.events, kind)
}

func (m *mockMetrics) WriteSessionGauge(connected, users int) {
	m.gauges = append(m.gauges, [2]int{connected, users})
}

func TestAttachMetrics(t *testing.T) {
	r := NewRegistry()
	m := &mockMetrics{}
	cancel := AttachMetrics(r, m)
	defer cancel()

	r.RegisterDevice(1, 10)
	r.RegisterDevice(2, 11)
	r.UnregisterDevice(10)

	if len(m.events) != 3 {
		t.Fatalf("events = %v, want 3", m.events)
	}
	if m.events[2] != string(EventDisconnected) {
		t.Errorf("last event = %q, want %q", m.events[2], EventDisconnected)
	}

	want := [][2]int{{1, 1}, {2, 2}, {1, 1}}
	for i, g := range want {
		if m.gauges[i] != g {
			t.Errorf("gauge %d = %v, want %v", i, m.gauges[i], g)
		}
	}
}
