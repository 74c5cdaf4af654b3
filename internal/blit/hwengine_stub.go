//go:build !rga

package blit

import "fmt"

// NewHardwareEngine reports unavailability in builds compiled without
// the "rga" tag, so internal/mirror.Loop can unconditionally try the
// hardware path first and fall back to the CPU engine without a build
// graph that depends on cgo.
func NewHardwareEngine() (Engine, error) {
	return nil, fmt.Errorf("blit: hardware path not built in (build with -tags rga)")
}
