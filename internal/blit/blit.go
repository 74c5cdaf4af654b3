// Package blit implements the transform stage between a captured
// FrameView and a sink's ScanoutBuffer: scaling, rotation, and the
// format conversion a hardware 2-D accelerator would otherwise do. It
// generalizes dumb-buffer pixel layout handling to the transform
// rga_helper.cpp expresses through the RGA IM2D API.
package blit

import (
	"fmt"

	"github.com/wxd9199/drmclone/internal/config"
)

// Rect is a pixel-space sub-rectangle.
type Rect struct {
	X, Y, W, H int
}

// Surface is the minimal view the engine needs of a buffer: a
// byte-addressable plane of 32-bit XRGB8888 pixels, host-mapped, with
// a possibly-padded row stride in bytes. Format is the kernel fourcc
// code describing that layout, used by the hardware path to pick its
// own accelerator format via FormatFor.
type Surface struct {
	Pixels []byte
	Width  int
	Height int
	Stride int
	Format uint32
}

func (s *Surface) at(x, y int) []byte {
	off := y*s.Stride + x*4
	return s.Pixels[off : off+4]
}

// marginColor is opaque black in little-endian XRGB8888 byte order
// (B, G, R, X) — the 0xFF000000 ARGB constant used for destination
// pixels with no corresponding source sample.
var marginColor = [4]byte{0x00, 0x00, 0x00, 0xFF}

// Engine transforms a source sub-rectangle of src into a destination
// sub-rectangle of dst, applying rotation and the configured scale
// mode and quality.
type Engine interface {
	Blit(src *Surface, srcRect Rect, dst *Surface, dstRect Rect, rotation config.Rotation, scaleMode config.ScaleMode, quality config.Quality) error
}

// cpuEngine is the always-available software path: direct sampling
// with a forward mapping from destination-normalized coordinates to
// source coordinates, per the four rotation formulas.
type cpuEngine struct{}

// NewCPUEngine returns the software fallback path, active whenever the
// hardware path is not linked in or fails for a frame.
func NewCPUEngine() Engine { return &cpuEngine{} }

func (e *cpuEngine) Blit(src *Surface, srcRect Rect, dst *Surface, dstRect Rect, rotation config.Rotation, scaleMode config.ScaleMode, quality config.Quality) error {
	if srcRect.W <= 0 || srcRect.H <= 0 || dstRect.W <= 0 || dstRect.H <= 0 {
		return fmt.Errorf("blit: degenerate rectangle src=%v dst=%v", srcRect, dstRect)
	}

	// Effective source dimensions, post-rotation swap for 90/270.
	effW, effH := float64(srcRect.W), float64(srcRect.H)
	if rotation == config.Rotate90 || rotation == config.Rotate270 {
		effW, effH = effH, effW
	}

	scaledW, scaledH, originX, originY := scaledRegion(float64(dstRect.W), float64(dstRect.H), effW, effH, scaleMode)

	for dy := 0; dy < dstRect.H; dy++ {
		row := dst.at(dstRect.X, dstRect.Y+dy)
		_ = row
		for dx := 0; dx < dstRect.W; dx++ {
			px := dst.at(dstRect.X+dx, dstRect.Y+dy)

			// Position relative to the scaled region; outside it, or
			// outside the back-projected source extent, is margin.
			rx := float64(dx) - originX
			ry := float64(dy) - originY
			if rx < 0 || ry < 0 || rx >= scaledW || ry >= scaledH {
				copy(px, marginColor[:])
				continue
			}

			nx := rx / scaledW
			ny := ry / scaledH

			sx, sy := forwardMap(nx, ny, float64(srcRect.W), float64(srcRect.H), rotation)
			if sx < 0 || sy < 0 || sx >= float64(srcRect.W) || sy >= float64(srcRect.H) {
				copy(px, marginColor[:])
				continue
			}

			var sample [4]byte
			if quality == config.QualityFast {
				sample = sampleNearest(src, srcRect, sx, sy)
			} else {
				sample = sampleBilinear(src, srcRect, sx, sy)
			}
			copy(px, sample[:])
		}
	}
	return nil
}

// forwardMap maps a normalized destination coordinate back to a
// source pixel coordinate (scaled by w and h) for each of the four
// supported rotations.
func forwardMap(nx, ny, w, h float64, rotation config.Rotation) (sx, sy float64) {
	switch rotation {
	case config.Rotate90:
		return ny * w, (1 - nx) * h
	case config.Rotate180:
		return (1 - nx) * w, (1 - ny) * h
	case config.Rotate270:
		return (1 - ny) * w, nx * h
	default:
		return nx * w, ny * h
	}
}

// scaledRegion returns the size and top-left offset (within the
// destination rectangle) of the scaled source region.
func scaledRegion(dstW, dstH, effW, effH float64, scaleMode config.ScaleMode) (w, h, x, y float64) {
	if scaleMode == config.ScaleStretch {
		return dstW, dstH, 0, 0
	}
	scale := dstW / effW
	if alt := dstH / effH; alt < scale {
		scale = alt
	}
	w = effW * scale
	h = effH * scale
	x = (dstW - w) / 2
	y = (dstH - h) / 2
	return
}

func sampleNearest(src *Surface, rect Rect, sx, sy float64) [4]byte {
	ix := rect.X + clampInt(int(sx), 0, rect.W-1)
	iy := rect.Y + clampInt(int(sy), 0, rect.H-1)
	var out [4]byte
	copy(out[:], src.at(ix, iy))
	return out
}

// sampleBilinear interpolates among the 4 nearest source texels,
// degrading to nearest-neighbor at the right/bottom source edges
// where a forward neighbor would read past the source extent.
func sampleBilinear(src *Surface, rect Rect, sx, sy float64) [4]byte {
	x0 := int(sx)
	y0 := int(sy)
	fx := sx - float64(x0)
	fy := sy - float64(y0)

	if x0 >= rect.W-1 || y0 >= rect.H-1 {
		return sampleNearest(src, rect, sx, sy)
	}

	x1, y1 := x0+1, y0+1

	p00 := src.at(rect.X+x0, rect.Y+y0)
	p10 := src.at(rect.X+x1, rect.Y+y0)
	p01 := src.at(rect.X+x0, rect.Y+y1)
	p11 := src.at(rect.X+x1, rect.Y+y1)

	var out [4]byte
	for c := 0; c < 4; c++ {
		top := float64(p00[c])*(1-fx) + float64(p10[c])*fx
		bot := float64(p01[c])*(1-fx) + float64(p11[c])*fx
		out[c] = byte(top*(1-fy) + bot*fy + 0.5)
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
