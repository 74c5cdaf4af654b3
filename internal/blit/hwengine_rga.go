//go:build rga

// Package blit's RGA IM2D path. Built only when compiled with the
// "rga" build tag and the vendor IM2D headers available on the
// target, modeling the contract rga_helper.h/rga_helper.cpp wrap:
// import each buffer as an accelerator handle, request a resize (0°)
// or rotate (90/180/270°) operation, release the handles.
package blit

/*
#cgo LDFLAGS: -lrga
#include <rga/im2d.h>
#include <rga/im2d_type.h>
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/wxd9199/drmclone/internal/config"
)

// hwEngine operates on whole surfaces: srcRect, dstRect, scaleMode and
// quality are not passed to the accelerator, so it does not crop,
// letterbox for KEEP_ASPECT, or select an interpolation mode.
type hwEngine struct{}

// NewHardwareEngine returns the RGA-backed Engine. Present only in
// builds compiled with -tags rga.
func NewHardwareEngine() (Engine, error) {
	return &hwEngine{}, nil
}

func (e *hwEngine) Blit(src *Surface, srcRect Rect, dst *Surface, dstRect Rect, rotation config.Rotation, scaleMode config.ScaleMode, quality config.Quality) error {
	srcFormat := FormatFor(src.Format)
	dstFormat := FormatFor(dst.Format)

	srcHandle := C.importbuffer_virtualaddr(unsafe.Pointer(&src.Pixels[0]), C.int(src.Width), C.int(src.Height), C.int(srcFormat))
	if srcHandle == 0 {
		return fmt.Errorf("rga: importbuffer_virtualaddr(src) failed")
	}
	defer C.releasebuffer_handle(srcHandle)

	dstHandle := C.importbuffer_virtualaddr(unsafe.Pointer(&dst.Pixels[0]), C.int(dst.Width), C.int(dst.Height), C.int(dstFormat))
	if dstHandle == 0 {
		return fmt.Errorf("rga: importbuffer_virtualaddr(dst) failed")
	}
	defer C.releasebuffer_handle(dstHandle)

	srcBuf := C.wrapbuffer_handle(srcHandle, C.int(src.Width), C.int(src.Height), C.int(srcFormat))
	dstBuf := C.wrapbuffer_handle(dstHandle, C.int(dst.Width), C.int(dst.Height), C.int(dstFormat))

	var status C.IM_STATUS
	switch rotation {
	case config.Rotate90:
		status = C.imrotate(srcBuf, dstBuf, 1)
	case config.Rotate180:
		status = C.imrotate(srcBuf, dstBuf, 2)
	case config.Rotate270:
		status = C.imrotate(srcBuf, dstBuf, 3)
	default:
		status = C.imresize(srcBuf, dstBuf)
	}
	if status != C.IM_STATUS_SUCCESS {
		return fmt.Errorf("rga: im2d operation failed: %d (rotation %d)", int(status), int(rotation))
	}
	return nil
}
