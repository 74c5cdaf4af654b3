// Package topology implements the KMS Gateway: connector/encoder/CRTC
// discovery, the live Display table, framebuffer lifecycle, and CRTC
// programming. It is a generalization of the drm/mode package to the
// roles (primary/secondary), naming, and CRTC-assignment rules a
// multi-display mirroring daemon needs.
package topology

import (
	"fmt"

	"github.com/wxd9199/drmclone/drm/mode"
)

// Role classifies a Display as the single mirror source or one of the
// mirror sinks.
type Role int

const (
	RoleSecondary Role = iota
	RolePrimary
)

// connectorTypeNames is the fixed kernel connector-type name table,
// indexed by drm connector_type, grounded verbatim on
// original_source/drm_manager.cpp's connector_type_names array.
var connectorTypeNames = []string{
	"Unknown", "VGA", "DVI-I", "DVI-D", "DVI-A", "Composite", "SVIDEO",
	"LVDS", "Component", "9PinDIN", "DisplayPort", "HDMI-A", "HDMI-B",
	"TV", "eDP", "VIRTUAL", "DSI", "DPI", "WRITEBACK", "SPI",
}

func connectorTypeName(t uint32) string {
	if int(t) < len(connectorTypeNames) {
		return connectorTypeNames[t]
	}
	return "Unknown"
}

// Name composes the stable identity the rest of the system keys off
// of: "card0-<TYPE>-<connector_type_id>".
func Name(connectorType, connectorTypeID uint32) string {
	return fmt.Sprintf("card0-%s-%d", connectorTypeName(connectorType), connectorTypeID)
}

// ParseName is the inverse of Name: it recovers (type, index) from a
// display name so the pair round-trips through Name/ParseName.
func ParseName(name string) (connectorType uint32, connectorTypeID uint32, ok bool) {
	const prefix = "card0-"
	if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
		return 0, 0, false
	}
	rest := name[len(prefix):]
	// The type name itself may contain hyphens (e.g. "DVI-I",
	// "HDMI-A"), so split on the last hyphen to isolate the numeric
	// suffix.
	idx := -1
	for i := len(rest) - 1; i >= 0; i-- {
		if rest[i] == '-' {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, 0, false
	}
	typeName, idStr := rest[:idx], rest[idx+1:]
	var id uint32
	if _, err := fmt.Sscanf(idStr, "%d", &id); err != nil {
		return 0, 0, false
	}
	for t, n := range connectorTypeNames {
		if n == typeName {
			return uint32(t), id, true
		}
	}
	return 0, 0, false
}

// Mode is a display mode: resolution, refresh rate, and the raw
// descriptor the kernel requires for mode-setting.
type Mode struct {
	Width, Height uint16
	RefreshHz     uint32
	raw           mode.Info
}

// Display is a video output endpoint, keyed by its connector id for
// the lifetime of the process.
type Display struct {
	ConnectorID uint32
	EncoderID   uint32
	CRTCID      uint32
	Name        string
	Mode        Mode
	Connected   bool
	Role        Role
}

// Usable reports whether the display has a CRTC binding and can
// therefore be scanned out to; a connector can be enumerated without
// one and still yields a Display record, just unusable for scanout
// until a future rescan succeeds.
func (d *Display) Usable() bool {
	return d.CRTCID != 0
}
