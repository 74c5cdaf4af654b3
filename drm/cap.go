package drm

import (
	"os"
	"unsafe"

	"github.com/wxd9199/drmclone/drm/ioctl"
)

type (
	capability struct {
		cap uint64
		val uint64
	}
)

const (
	CapDumbBuffer = iota + 1
	CapVBlankHighCRTC
	CapDumbPreferredDepth
	CapDumbPreferShadow
	CapPrime
	CapTimestampMonotonic
	CapAsyncPageFlip
	CapCursorWidth
	CapCursorHeight

	CapAddFB2Modifiers = 0x10
)

// GetCap queries a single driver capability by id, as reported by
// DRM_IOCTL_GET_CAP. Callers that only care whether a capability is
// present should prefer HasDumbBuffer-style boolean wrappers.
func GetCap(file *os.File, capID uint64) (uint64, error) {
	cap := &capability{cap: capID}
	err := ioctl.Do(uintptr(file.Fd()), uintptr(IOCTLGetCap), uintptr(unsafe.Pointer(cap)))
	if err != nil {
		return 0, err
	}
	return cap.val, nil
}

func HasDumbBuffer(file *os.File) bool {
	val, err := GetCap(file, CapDumbBuffer)
	if err != nil {
		return false
	}
	return val != 0
}
