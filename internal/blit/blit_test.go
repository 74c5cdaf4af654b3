package blit

import (
	"testing"

	"github.com/wxd9199/drmclone/internal/config"
)

func newSolidSurface(w, h int, px [4]byte) *Surface {
	s := &Surface{Width: w, Height: h, Stride: w * 4}
	s.Pixels = make([]byte, s.Stride*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			copy(s.at(x, y), px[:])
		}
	}
	return s
}

func TestCPUEngineStretchIdentity(t *testing.T) {
	fill := [4]byte{0x11, 0x22, 0x33, 0xFF}
	src := newSolidSurface(4, 4, fill)
	dst := newSolidSurface(4, 4, [4]byte{})

	eng := NewCPUEngine()
	err := eng.Blit(src, Rect{0, 0, 4, 4}, dst, Rect{0, 0, 4, 4}, config.Rotate0, config.ScaleStretch, config.QualityFast)
	if err != nil {
		t.Fatalf("blit failed: %v", err)
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			got := dst.at(x, y)
			for c := 0; c < 4; c++ {
				if got[c] != fill[c] {
					t.Fatalf("pixel (%d,%d) channel %d = %d, want %d", x, y, c, got[c], fill[c])
				}
			}
		}
	}
}

func TestCPUEngineKeepAspectMargins(t *testing.T) {
	fill := [4]byte{0x10, 0x20, 0x30, 0xFF}
	src := newSolidSurface(2, 2, fill)
	dst := newSolidSurface(4, 2, [4]byte{0xFF, 0xFF, 0xFF, 0xFF})

	eng := NewCPUEngine()
	err := eng.Blit(src, Rect{0, 0, 2, 2}, dst, Rect{0, 0, 4, 2}, config.Rotate0, config.ScaleKeepAspect, config.QualityFast)
	if err != nil {
		t.Fatalf("blit failed: %v", err)
	}

	// KEEP_ASPECT on a 2:1 destination with a 1:1 source scales to a
	// square centered region; the side margins must be opaque black.
	margin := dst.at(0, 0)
	for c := 0; c < 4; c++ {
		if margin[c] != marginColor[c] {
			t.Fatalf("margin pixel channel %d = %d, want %d", c, margin[c], marginColor[c])
		}
	}
}

func TestForwardMapRotations(t *testing.T) {
	cases := []struct {
		rotation config.Rotation
		nx, ny   float64
		wantX    float64
		wantY    float64
	}{
		{config.Rotate0, 0.25, 0.75, 0.25 * 10, 0.75 * 20},
		{config.Rotate90, 0.25, 0.75, 0.75 * 10, 0.75 * 20},
		{config.Rotate180, 0.25, 0.75, 0.75 * 10, 0.25 * 20},
		{config.Rotate270, 0.25, 0.75, 0.25 * 10, 0.25 * 20},
	}
	for _, c := range cases {
		gotX, gotY := forwardMap(c.nx, c.ny, 10, 20, c.rotation)
		if gotX != c.wantX || gotY != c.wantY {
			t.Errorf("rotation %d: forwardMap(%v,%v) = (%v,%v), want (%v,%v)", c.rotation, c.nx, c.ny, gotX, gotY, c.wantX, c.wantY)
		}
	}
}

func TestSampleBilinearDegradesAtEdge(t *testing.T) {
	fill := [4]byte{5, 6, 7, 255}
	src := newSolidSurface(2, 2, fill)
	got := sampleBilinear(src, Rect{0, 0, 2, 2}, 1.0, 1.0)
	for c := 0; c < 4; c++ {
		if got[c] != fill[c] {
			t.Fatalf("edge sample channel %d = %d, want %d", c, got[c], fill[c])
		}
	}
}

func TestCPUEngineRotate90PortraitToLandscapeCentersSource(t *testing.T) {
	// Primary 1080x1920 (portrait) mirrored rotated 90 degrees onto a
	// 1920x1080 (landscape) sink: the sink's center pixel must sample
	// the source's center pixel, not a coordinate derived from the
	// post-swap dimensions.
	const srcW, srcH = 108, 192
	const dstW, dstH = 192, 108

	src := &Surface{Width: srcW, Height: srcH, Stride: srcW * 4}
	src.Pixels = make([]byte, src.Stride*srcH)
	centerX, centerY := srcW/2, srcH/2
	marker := [4]byte{0x7F, 0x80, 0x81, 0xFF}
	copy(src.at(centerX, centerY), marker[:])

	dst := newSolidSurface(dstW, dstH, [4]byte{})

	eng := NewCPUEngine()
	err := eng.Blit(src, Rect{0, 0, srcW, srcH}, dst, Rect{0, 0, dstW, dstH}, config.Rotate90, config.ScaleStretch, config.QualityFast)
	if err != nil {
		t.Fatalf("blit failed: %v", err)
	}

	got := dst.at(dstW/2, dstH/2)
	for c := 0; c < 4; c++ {
		if got[c] != marker[c] {
			t.Fatalf("sink center pixel channel %d = %d, want %d (got %v)", c, got[c], marker[c], got)
		}
	}
}

func TestFormatForUnknownFallsBackToRGBA(t *testing.T) {
	if got := FormatFor(0xdeadbeef); got != FormatRGBA8888 {
		t.Fatalf("FormatFor(unknown) = %v, want FormatRGBA8888", got)
	}
	if got := FormatFor(fourccXRGB8888); got != FormatBGRA8888 {
		t.Fatalf("FormatFor(XRGB8888) = %v, want FormatBGRA8888", got)
	}
}
