// Package config holds the read-only knobs the core consumes from the
// CLI layer, mirroring the DisplayConfig/LogConfig split of the
// original rk3588_multi_display implementation.
package config

// ScaleMode selects how a captured frame is fit into a sink's native
// resolution.
type ScaleMode int

const (
	ScaleStretch ScaleMode = iota
	ScaleKeepAspect
)

func (m ScaleMode) String() string {
	if m == ScaleKeepAspect {
		return "keep-aspect"
	}
	return "stretch"
}

// ParseScaleMode accepts the CLI surface's two spellings.
func ParseScaleMode(s string) (ScaleMode, bool) {
	switch s {
	case "stretch":
		return ScaleStretch, true
	case "keep-aspect":
		return ScaleKeepAspect, true
	}
	return ScaleStretch, false
}

// Quality selects the interpolation used by the CPU blit path.
type Quality int

const (
	QualityFast Quality = iota
	QualityGood
)

func (q Quality) String() string {
	if q == QualityGood {
		return "good"
	}
	return "fast"
}

func ParseQuality(s string) (Quality, bool) {
	switch s {
	case "fast":
		return QualityFast, true
	case "good":
		return QualityGood, true
	}
	return QualityFast, false
}

// Rotation is a clockwise degree amount, restricted to the four values
// the blit engine implements a forward mapping for.
type Rotation int

const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

func ParseRotation(n int) (Rotation, bool) {
	switch n {
	case 0, 90, 180, 270:
		return Rotation(n), true
	}
	return Rotate0, false
}

// DisplayConfig is the user-visible behavior surface, applied read-only
// per frame by the mirror loop and blit engine.
type DisplayConfig struct {
	ScaleMode ScaleMode
	Rotation  Rotation
	Quality   Quality

	// EnableDebug is reported in the startup log line. The mirror loop
	// does not read it: its per-sink frame counters are always kept
	// and its per-iteration logging does not change with it.
	EnableDebug bool

	// PrimaryMatch is the substring a connector name must contain to be
	// selected as the primary display. Defaults to "DSI-1".
	PrimaryMatch string

	// RefreshOnHotplug, when true, disables and re-enables a sink that
	// was already connected and remains connected across a hot-plug
	// event. Defaults to false: only a true absent->present transition
	// triggers enable.
	RefreshOnHotplug bool

	// TargetFPS pins the mirror loop's pacing target. Zero means
	// "derive from the primary display's mode refresh rate".
	TargetFPS int
}

// DefaultDisplayConfig matches the CLI surface's documented defaults.
func DefaultDisplayConfig() DisplayConfig {
	return DisplayConfig{
		ScaleMode:        ScaleStretch,
		Rotation:         Rotate90,
		Quality:          QualityGood,
		PrimaryMatch:     "DSI-1",
		RefreshOnHotplug: false,
		TargetFPS:        0,
	}
}

// LogConfig mirrors logger.h's LogConfig.
type LogConfig struct {
	LogFilePath   string
	EnableConsole bool
	EnableFile    bool
	// Level: 0=trace,1=debug,2=info,3=warn,4=error,5=critical.
	Level       int
	MaxFileSize int64
	MaxFiles    int
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		LogFilePath:   "./dsimirrord.log",
		EnableConsole: true,
		EnableFile:    false,
		Level:         2,
		MaxFileSize:   20 * 1024 * 1024,
		MaxFiles:      7,
	}
}
