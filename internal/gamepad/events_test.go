package gamepad

import "testing"

func TestUserChangedEvent(t *testing.T) {
	rec := Record{DeviceID: 4, UserID: 1, State: StateConnected}

	e := UserChangedEvent(rec, 2, 1)

	if e.Kind != EventUserChanged {
		t.Errorf("Kind = %q, want %q", e.Kind, EventUserChanged)
	}
	if e.DeviceID != 4 || e.UserID != 2 {
		t.Errorf("event = device %v user %v, want device 4 user 2", e.DeviceID, e.UserID)
	}
	if e.OldUserID == nil || *e.OldUserID != 1 {
		t.Errorf("OldUserID = %v, want 1", e.OldUserID)
	}
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Error("event id and timestamp must be set")
	}
}

func TestConnectionEvents_HaveNoOldUser(t *testing.T) {
	rec := Record{DeviceID: 4, UserID: 1, State: StateConnected}

	for _, e := range []Event{ConnectedEvent(rec), DisconnectedEvent(rec)} {
		if e.OldUserID != nil {
			t.Errorf("%s: OldUserID = %v, want nil", e.Kind, *e.OldUserID)
		}
		if !e.Kind.IsValid() {
			t.Errorf("%s: kind not valid", e.Kind)
		}
	}
}

func TestOnEvent(t *testing.T) {
	r := NewRegistry()

	var got []Event
	cancel := r.OnEvent(func(e Event) { got = append(got, e) })

	r.RegisterDevice(1, 10)
	r.HandleExternalUserChanged(10, 2, 1)
	r.UnregisterDevice(10)
	cancel()
	r.RegisterDevice(1, 11)

	wantKinds := []EventKind{EventConnected, EventUserChanged, EventDisconnected}
	if len(got) != len(wantKinds) {
		t.Fatalf("events = %d, want %d", len(got), len(wantKinds))
	}
	for i, k := range wantKinds {
		if got[i].Kind != k {
			t.Errorf("event %d kind = %q, want %q", i, got[i].Kind, k)
		}
	}
	if got[2].UserID != 2 {
		t.Errorf("Disconnected UserID = %v, want 2", got[2].UserID)
	}
	if got[0].ID == got[1].ID {
		t.Error("event ids must be unique")
	}
}
