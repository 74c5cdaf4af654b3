// Package syscheck verifies the environment preconditions the daemon
// expects before it ever opens the DRM device: a headless boot target
// and a connected DSI panel. Grounded on system_checker.cpp's
// checkStartupConditions, with popen("systemctl ...") replaced by
// os/exec the way FocusStreamer's window/kwin_backend.go shells out to
// external tools.
package syscheck

import (
	"os"
	"os/exec"
	"strings"

	"github.com/wxd9199/drmclone/internal/logging"
)

// Check runs every startup precondition in order and returns the
// first failure, or nil if all are satisfied.
func Check() error {
	logging.WithComponent("syscheck").Info().Msg("checking system startup conditions")

	if !isMultiUserTarget() {
		return errStartup("system is not running under multi-user.target")
	}
	if !isGraphicalTargetInactive() {
		return errStartup("graphical.target is active, not suitable for display mirroring")
	}
	if !hasDSIDisplay() {
		return errStartup("no connected DSI display found")
	}

	logging.WithComponent("syscheck").Info().Msg("all startup conditions satisfied")
	return nil
}

func errStartup(msg string) error {
	logging.WithComponent("syscheck").Warn().Msg(msg)
	return &startupError{msg: msg}
}

type startupError struct{ msg string }

func (e *startupError) Error() string { return e.msg }

func isMultiUserTarget() bool {
	out, err := exec.Command("systemctl", "get-default").Output()
	ok := err == nil && strings.Contains(string(out), "multi-user.target")
	logging.WithComponent("syscheck").Debug().Bool("pass", ok).Msg("multi-user target check")
	return ok
}

func isGraphicalTargetInactive() bool {
	out, err := exec.Command("systemctl", "is-active", "graphical.target").Output()
	active := err == nil && strings.TrimSpace(string(out)) == "active"
	logging.WithComponent("syscheck").Debug().Bool("pass", !active).Msg("graphical target inactive check")
	return !active
}

const drmSysfsDir = "/sys/class/drm"

func hasDSIDisplay() bool {
	entries, err := os.ReadDir(drmSysfsDir)
	if err != nil {
		logging.WithComponent("syscheck").Error().Err(err).Str("dir", drmSysfsDir).Msg("cannot open DRM sysfs directory")
		return false
	}
	for _, e := range entries {
		if !strings.Contains(e.Name(), "card0-DSI") {
			continue
		}
		data, err := os.ReadFile(drmSysfsDir + "/" + e.Name() + "/status")
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(data)) == "connected" {
			logging.WithComponent("syscheck").Info().Str("connector", e.Name()).Msg("found connected DSI display")
			return true
		}
	}
	return false
}
