package hotplug

import "testing"

func TestIsDrmCard0Change(t *testing.T) {
	msg := []byte("ACTION=change\x00SUBSYSTEM=drm\x00DEVPATH=/devices/platform/display-subsystem/drm/card0\x00")
	if !isDrmCard0Change(msg) {
		t.Fatal("expected drm card0 change event to match")
	}
}

func TestIsDrmCard0ChangeIgnoresOtherSubsystems(t *testing.T) {
	msg := []byte("ACTION=change\x00SUBSYSTEM=usb\x00DEVPATH=/devices/platform/usb\x00")
	if isDrmCard0Change(msg) {
		t.Fatal("expected non-drm event to be ignored")
	}
}

func TestIsDrmCard0ChangeIgnoresOtherCards(t *testing.T) {
	msg := []byte("ACTION=change\x00SUBSYSTEM=drm\x00DEVPATH=/devices/platform/drm/card1\x00")
	if isDrmCard0Change(msg) {
		t.Fatal("expected card1 event to be ignored")
	}
}

func TestIsDrmCard0ChangeIgnoresNonChangeAction(t *testing.T) {
	msg := []byte("ACTION=add\x00SUBSYSTEM=drm\x00DEVPATH=/devices/platform/drm/card0\x00")
	if isDrmCard0Change(msg) {
		t.Fatal("expected add action to be ignored")
	}
}

func TestSeedBaselineEmitsNoCallback(t *testing.T) {
	called := false
	r := New(func(name string, ev Event) { called = true })
	r.connectors = []connector{{name: "fake", statusPath: "/nonexistent/status"}}

	r.seedBaselineLocked()
	if called {
		t.Fatal("seedBaselineLocked must not invoke the callback")
	}
	if r.lastSeen["fake"] {
		t.Fatal("expected missing status file to seed as disconnected")
	}

	r.refreshAllLocked()
	if called {
		t.Fatal("refreshAllLocked after a matching seed must not report a transition")
	}
}

func TestRefreshAllEmitsOnlyTransitions(t *testing.T) {
	var events []struct {
		name string
		ev   Event
	}
	r := New(func(name string, ev Event) {
		events = append(events, struct {
			name string
			ev   Event
		}{name, ev})
	})
	r.connectors = []connector{{name: "fake", statusPath: "/nonexistent/status"}}

	r.refreshAllLocked()
	if len(events) != 1 {
		t.Fatalf("expected 1 event on first observation, got %d", len(events))
	}
	if events[0].ev != Disconnected {
		t.Fatalf("expected Disconnected for missing status file, got %v", events[0].ev)
	}

	r.refreshAllLocked()
	if len(events) != 1 {
		t.Fatalf("expected no additional event for unchanged status, got %d total", len(events))
	}
}
