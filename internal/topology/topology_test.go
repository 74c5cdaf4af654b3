package topology

import (
	"testing"

	"github.com/wxd9199/drmclone/drm/mode"
)

func TestNameParseNameRoundTrip(t *testing.T) {
	cases := []struct {
		connType, connTypeID uint32
	}{
		{11, 1},  // HDMI-A
		{10, 2},  // DisplayPort
		{16, 1},  // DSI
		{2, 0},   // DVI-I, hyphenated type name
	}
	for _, c := range cases {
		name := Name(c.connType, c.connTypeID)
		gotType, gotID, ok := ParseName(name)
		if !ok {
			t.Fatalf("ParseName(%q) failed to parse", name)
		}
		if gotType != c.connType || gotID != c.connTypeID {
			t.Fatalf("round trip mismatch for %q: got (%d,%d), want (%d,%d)", name, gotType, gotID, c.connType, c.connTypeID)
		}
	}
}

func TestParseNameRejectsMalformed(t *testing.T) {
	for _, bad := range []string{"", "card0-", "HDMI-A-1", "card0-Bogus-1"} {
		if _, _, ok := ParseName(bad); ok {
			t.Fatalf("ParseName(%q) unexpectedly succeeded", bad)
		}
	}
}

func TestContainsSubstring(t *testing.T) {
	if !containsSubstring("card0-DSI-1", "DSI-1") {
		t.Fatalf("expected match")
	}
	if containsSubstring("card0-HDMI-A-1", "DSI-1") {
		t.Fatalf("expected no match")
	}
	if containsSubstring("card0-DSI-1", "") {
		t.Fatalf("empty substring must never match")
	}
}

func TestBestModePrefersPreferredFlag(t *testing.T) {
	const typePreferred = 1 << 3
	modes := []mode.Info{
		{Hdisplay: 1920, Vdisplay: 1080},
		{Hdisplay: 640, Vdisplay: 480, Type: typePreferred},
	}
	best := bestMode(modes)
	if best.Hdisplay != 640 || best.Vdisplay != 480 {
		t.Fatalf("bestMode did not honor the preferred flag: got %+v", best)
	}
}

func TestBestModeFallsBackToLargestArea(t *testing.T) {
	modes := []mode.Info{
		{Hdisplay: 640, Vdisplay: 480},
		{Hdisplay: 1920, Vdisplay: 1080},
		{Hdisplay: 800, Vdisplay: 600},
	}
	best := bestMode(modes)
	if best.Hdisplay != 1920 || best.Vdisplay != 1080 {
		t.Fatalf("bestMode did not pick the largest area mode: got %+v", best)
	}
}

func TestBestModeEmpty(t *testing.T) {
	if bestMode(nil) != nil {
		t.Fatalf("bestMode(nil) must return nil")
	}
}

func TestDisplayUsable(t *testing.T) {
	usable := Display{CRTCID: 5}
	unusable := Display{CRTCID: 0}
	if !usable.Usable() {
		t.Fatalf("display with nonzero CRTCID must be usable")
	}
	if unusable.Usable() {
		t.Fatalf("display with zero CRTCID must not be usable")
	}
}

func TestPrimaryUniqueness(t *testing.T) {
	g := &Gateway{
		primaryMatch: "DSI-1",
		displays: map[uint32]*Display{
			1: {ConnectorID: 1, Name: "card0-DSI-1"},
			2: {ConnectorID: 2, Name: "card0-HDMI-A-1"},
			3: {ConnectorID: 3, Name: "card0-DisplayPort-1"},
		},
	}
	// Replicate the role assignment Scan performs, without touching
	// the kernel: exactly one display ends up RolePrimary.
	var primary *Display
	for _, d := range g.displays {
		d.Role = RoleSecondary
	}
	for _, d := range g.displays {
		if primary == nil && containsSubstring(d.Name, g.primaryMatch) {
			d.Role = RolePrimary
			primary = d
		}
	}

	count := 0
	for _, d := range g.displays {
		if d.Role == RolePrimary {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one primary display, got %d", count)
	}
	got, ok := g.Primary()
	if !ok || got.ConnectorID != 1 {
		t.Fatalf("Primary() = %+v, %v; want connector 1", got, ok)
	}
}
