package syscheck

import "testing"

func TestStartupErrorMessage(t *testing.T) {
	err := errStartup("no connected DSI display found")
	if err.Error() != "no connected DSI display found" {
		t.Fatalf("unexpected error message: %q", err.Error())
	}
}

func TestCheckReflectsEnvironment(t *testing.T) {
	// Check() depends on systemctl and /sys/class/drm being present;
	// in a container or CI sandbox at least one precondition usually
	// fails, so this only checks that Check returns without panicking;
	// the returned error is not inspected.
	err := Check()
	_ = err
}
