package mode

import (
	"encoding/binary"
	"fmt"
	"os"
	"unsafe"

	"github.com/wxd9199/drmclone/drm"
	"github.com/wxd9199/drmclone/drm/ioctl"
)

const (
	PageFlipEvent = 0x01

	eventVblank       = 0x01
	eventFlipComplete = 0x02
)

type (
	sysFBCmd2 struct {
		fbID          uint32
		width, height uint32
		pixelFormat   uint32
		flags         uint32

		handles  [4]uint32
		pitches  [4]uint32
		offsets  [4]uint32
		modifier [4]uint64
	}

	sysGetFB struct {
		fbID          uint32
		width, height uint32
		pitch         uint32
		bpp           uint32
		depth         uint32
		handle        uint32
	}

	sysCrtcPageFlip struct {
		crtcID   uint32
		fbID     uint32
		flags    uint32
		reserved uint32
		userData uint64
	}

	sysVBlank struct {
		typ      uint32
		sequence uint32
		signal   uint64
	}

	// FBInfo describes the kernel framebuffer currently bound to a CRTC,
	// as returned by GetFB. It is read-only state used by the capture
	// path to locate the primary's scanout buffer.
	FBInfo struct {
		ID            uint32
		Width, Height uint32
		Pitch         uint32
		BPP           uint32
		Depth         uint32
		Handle        uint32
	}
)

var (
	// DRM_IOWR(0xB8, struct drm_mode_fb_cmd2)
	IOCTLModeAddFB2 = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysFBCmd2{})), drm.IOCTLBase, 0xB8)

	// DRM_IOWR(0xAD, struct drm_mode_fb_cmd)
	IOCTLModeGetFB = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysGetFB{})), drm.IOCTLBase, 0xAD)

	// DRM_IOWR(0xB0, struct drm_mode_crtc_page_flip)
	IOCTLModePageFlip = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysCrtcPageFlip{})), drm.IOCTLBase, 0xB0)

	// DRM_IOWR(0x3a, drm_wait_vblank_t)
	IOCTLWaitVBlank = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysVBlank{})), drm.IOCTLBase, 0x3a)
)

// AddFB2 registers a multi-plane framebuffer described by an explicit
// fourcc pixel format, one GEM handle/pitch/offset triple per plane.
// Unused planes must be zeroed.
func AddFB2(file *os.File, width, height, format uint32, handles, pitches, offsets [4]uint32) (uint32, error) {
	f := &sysFBCmd2{
		width:       width,
		height:      height,
		pixelFormat: format,
		handles:     handles,
		pitches:     pitches,
		offsets:     offsets,
	}
	err := ioctl.Do(uintptr(file.Fd()), uintptr(IOCTLModeAddFB2), uintptr(unsafe.Pointer(f)))
	if err != nil {
		return 0, err
	}
	return f.fbID, nil
}

// GetFB looks up the kernel-side description of an existing framebuffer
// id, as bound to a CRTC via drmModeCrtc.buffer_id.
func GetFB(file *os.File, fbID uint32) (*FBInfo, error) {
	f := &sysGetFB{fbID: fbID}
	err := ioctl.Do(uintptr(file.Fd()), uintptr(IOCTLModeGetFB), uintptr(unsafe.Pointer(f)))
	if err != nil {
		return nil, err
	}
	return &FBInfo{
		ID:     f.fbID,
		Width:  f.width,
		Height: f.height,
		Pitch:  f.pitch,
		BPP:    f.bpp,
		Depth:  f.depth,
		Handle: f.handle,
	}, nil
}

// PageFlip requests that crtcID begin scanning out fbID at the next
// vblank. userData is echoed back in the completion event drained by
// DrainEvents and is typically the connector id of the sink.
func PageFlip(file *os.File, crtcID, fbID uint32, userData uint64) error {
	flip := &sysCrtcPageFlip{
		crtcID:   crtcID,
		fbID:     fbID,
		flags:    PageFlipEvent,
		userData: userData,
	}
	return ioctl.Do(uintptr(file.Fd()), uintptr(IOCTLModePageFlip), uintptr(unsafe.Pointer(flip)))
}

// WaitVBlank blocks the calling thread until the next vblank on the
// CRTC addressed by the high bits of crtcIndex (0 for the primary
// pipe). It is used by the mirror loop to align capture with scanout.
func WaitVBlank(file *os.File, crtcIndex uint32) error {
	const vblankRelative = 0x1
	vbl := &sysVBlank{
		typ:      vblankRelative | (crtcIndex << 1),
		sequence: 1,
	}
	return ioctl.Do(uintptr(file.Fd()), uintptr(IOCTLWaitVBlank), uintptr(unsafe.Pointer(vbl)))
}

// FlipEvent is returned by DrainEvents for every completed page flip
// found in a single read of the DRM event queue.
type FlipEvent struct {
	Sequence uint32
	Sec      uint32
	USec     uint32
	UserData uint64
}

// DrainEvents parses the raw bytes of one read of the DRM device fd;
// it does no I/O itself, so callers poll the fd for readability and
// read it first. It returns the flip-completion events found, in
// delivery order, skipping other event types.
func DrainEvents(data []byte) ([]FlipEvent, error) {
	var events []FlipEvent
	off := 0
	for off+8 <= len(data) {
		typ := binary.LittleEndian.Uint32(data[off:])
		length := binary.LittleEndian.Uint32(data[off+4:])
		if length < 8 || off+int(length) > len(data) {
			return events, fmt.Errorf("malformed drm event at offset %d", off)
		}
		if typ == eventFlipComplete && length >= 32 {
			body := data[off+8:]
			events = append(events, FlipEvent{
				UserData: binary.LittleEndian.Uint64(body[0:8]),
				Sec:      binary.LittleEndian.Uint32(body[8:12]),
				USec:     binary.LittleEndian.Uint32(body[12:16]),
				Sequence: binary.LittleEndian.Uint32(body[16:20]),
			})
		}
		off += int(length)
	}
	return events, nil
}
