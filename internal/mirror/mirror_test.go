package mirror

import (
	"testing"
	"time"

	"github.com/wxd9199/drmclone/internal/config"
	"github.com/wxd9199/drmclone/internal/topology"
)

func TestIsSecondaryOfInterest(t *testing.T) {
	cases := map[string]bool{
		"card0-HDMI-A-1":     true,
		"card0-DisplayPort-1": true,
		"card0-DSI-1":        false,
		"card0-VGA-1":        false,
	}
	for name, want := range cases {
		if got := isSecondaryOfInterest(name); got != want {
			t.Errorf("isSecondaryOfInterest(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestTargetIntervalDerivesFromPrimaryRefresh(t *testing.T) {
	l := &Loop{cfg: config.DisplayConfig{TargetFPS: 0}}
	primary := topology.Display{Mode: topology.Mode{RefreshHz: 50}}
	got := l.targetInterval(primary)
	want := time.Second / 50
	if got != want {
		t.Fatalf("targetInterval = %v, want %v", got, want)
	}
}

func TestTargetIntervalPinnedOverridesRefresh(t *testing.T) {
	l := &Loop{cfg: config.DisplayConfig{TargetFPS: 30}}
	primary := topology.Display{Mode: topology.Mode{RefreshHz: 60}}
	got := l.targetInterval(primary)
	want := time.Second / 30
	if got != want {
		t.Fatalf("targetInterval = %v, want %v", got, want)
	}
}

func TestTargetIntervalFallsBackToDefault(t *testing.T) {
	l := &Loop{cfg: config.DisplayConfig{TargetFPS: 0}}
	primary := topology.Display{Mode: topology.Mode{RefreshHz: 0}}
	got := l.targetInterval(primary)
	want := time.Second / defaultFPS
	if got != want {
		t.Fatalf("targetInterval = %v, want %v", got, want)
	}
}

func TestGradientFillMatchesDiagnosticPattern(t *testing.T) {
	view := newFrameView(3, 2)
	gradientFill(view)
	for y := 0; y < view.Height; y++ {
		for x := 0; x < view.Width; x++ {
			gray := byte((x + y) % 256)
			off := y*view.Stride + x*4
			px := view.Pixels[off : off+4]
			if px[0] != gray || px[1] != gray || px[2] != gray || px[3] != 0xFF {
				t.Fatalf("pixel (%d,%d) = %v, want gray=%d replicated", x, y, px, gray)
			}
		}
	}
}
