package mirror

import (
	"time"

	"launchpad.net/gommap"

	"github.com/wxd9199/drmclone/drm/mode"
	"github.com/wxd9199/drmclone/internal/blit"
	"github.com/wxd9199/drmclone/internal/logging"
)

// FrameView is a host-side copy of the primary display's most
// recently scanned-out content, sized to the primary mode.
type FrameView struct {
	Pixels []byte
	Width  int
	Height int
	Stride int
}

// Surface adapts a FrameView to the blit package's Engine contract.
func (f *FrameView) Surface() *blit.Surface {
	return &blit.Surface{Pixels: f.Pixels, Width: f.Width, Height: f.Height, Stride: f.Stride, Format: blit.FourCCXRGB8888}
}

func newFrameView(width, height int) *FrameView {
	stride := width * 4
	return &FrameView{Pixels: make([]byte, stride*height), Width: width, Height: height, Stride: stride}
}

// gradientFill paints the diagnostic fallback pattern: gray = (x+y)
// mod 256, replicated across R, G, B, so a test observer can tell
// capture failure apart from a genuinely black primary.
func gradientFill(f *FrameView) {
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			gray := byte((x + y) % 256)
			off := y*f.Stride + x*4
			f.Pixels[off+0] = gray
			f.Pixels[off+1] = gray
			f.Pixels[off+2] = gray
			f.Pixels[off+3] = 0xFF
		}
	}
}

// capture waits for vblank, locates the primary CRTC's current
// framebuffer, maps it read-only, and copies line-by-line into a
// FrameView sized to the primary mode, retrying the mapping up to 3
// times with a 1ms backoff before degrading to the diagnostic
// gradient. It is the Go restatement of frame_copier.cpp::captureFrame.
func (l *Loop) capture(crtcID uint32, width, height int) *FrameView {
	view := newFrameView(width, height)

	if err := l.gateway.WaitVBlank(); err != nil {
		logging.WithComponent("mirror").Warn().Err(err).Msg("wait vblank failed")
	}

	file := l.gateway.File()

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		crtc, err := mode.GetCrtc(file, crtcID)
		if err != nil || crtc.BufferID == 0 {
			lastErr = err
			time.Sleep(time.Millisecond)
			continue
		}
		fb, err := mode.GetFB(file, crtc.BufferID)
		if err != nil || fb.Handle == 0 {
			lastErr = err
			time.Sleep(time.Millisecond)
			continue
		}
		offset, err := mode.MapDumb(file, fb.Handle)
		if err != nil {
			lastErr = err
			time.Sleep(time.Millisecond)
			continue
		}
		size := int64(fb.Height) * int64(fb.Pitch)
		mapped, err := gommap.MapAt(0, file.Fd(), int64(offset), size, gommap.PROT_READ, gommap.MAP_SHARED)
		if err != nil {
			lastErr = err
			time.Sleep(time.Millisecond)
			continue
		}

		// TODO: frame_copier.cpp issues __sync_synchronize() here before
		// reading the host-mapped source; Go has no direct equivalent
		// and gommap gives no memory-barrier hook, so this read can
		// race a concurrent scanout write on some architectures.
		copyWidth := min(width, int(fb.Width))
		copyHeight := min(height, int(fb.Height))
		srcStride := int(fb.Pitch)
		for y := 0; y < copyHeight; y++ {
			srcOff := y * srcStride
			dstOff := y * view.Stride
			copy(view.Pixels[dstOff:dstOff+copyWidth*4], mapped[srcOff:srcOff+copyWidth*4])
		}

		gommap.MMap(mapped).UnsafeUnmap()
		return view
	}

	if lastErr != nil {
		logging.WithComponent("mirror").Warn().Err(lastErr).Msg("capture failed after 3 attempts, using diagnostic gradient")
	}
	gradientFill(view)
	return view
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
