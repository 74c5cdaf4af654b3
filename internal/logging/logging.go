// Package logging wraps zerolog as a process-wide logger configured
// once at startup from a LogConfig, with console and rotating-file
// sinks that can each be toggled independently.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/wxd9199/drmclone/internal/config"
)

// Logger is the process-wide logger, safe to read after Init returns.
var Logger zerolog.Logger

func init() {
	Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

var levelTable = [...]zerolog.Level{
	0: zerolog.TraceLevel,
	1: zerolog.DebugLevel,
	2: zerolog.InfoLevel,
	3: zerolog.WarnLevel,
	4: zerolog.ErrorLevel,
	5: zerolog.FatalLevel, // nearest zerolog equivalent to "critical"
}

// Init configures the process-wide Logger from cfg. It never fails: a
// file sink that cannot be opened is dropped with a console warning
// rather than aborting startup, matching the original logger's
// tolerance for a missing log directory.
func Init(cfg config.LogConfig) {
	level := zerolog.InfoLevel
	if cfg.Level >= 0 && cfg.Level < len(levelTable) {
		level = levelTable[cfg.Level]
	}
	zerolog.SetGlobalLevel(level)

	var writers []io.Writer
	if cfg.EnableConsole {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02T15:04:05.000Z07:00"})
	}
	if cfg.EnableFile {
		rw, err := newRotatingWriter(cfg.LogFilePath, cfg.MaxFileSize, cfg.MaxFiles)
		if err != nil {
			Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
			Logger.Warn().Err(err).Str("path", cfg.LogFilePath).Msg("failed to open log file, file logging disabled")
		} else {
			writers = append(writers, rw)
		}
	}

	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
}

// WithComponent returns a logger tagged with a component field, for
// per-subsystem log lines (e.g. "topology", "mirror", "hotplug").
func WithComponent(name string) *zerolog.Logger {
	l := Logger.With().Str("component", name).Logger()
	return &l
}
