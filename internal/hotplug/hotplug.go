// Package hotplug implements the reactor thread that watches for
// connector plug/unplug transitions. It is a generalization of
// hotplug_detector.cpp's udev-monitor loop; no libudev binding exists
// anywhere in the retrieval pack, so the kernel uevent stream is read
// directly off a raw NETLINK_KOBJECT_UEVENT socket via
// golang.org/x/sys/unix, the idiomatic dependency-free substitute.
package hotplug

import (
	"bytes"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/wxd9199/drmclone/internal/logging"
)

// Event classifies a transition reported for one connector.
type Event int

const (
	Connected Event = iota
	Disconnected
)

// Callback is invoked once per observed connector transition, never
// for a steady-state poll that found no change.
type Callback func(connectorName string, event Event)

// connector is a table entry describing one secondary connector of
// interest; extending coverage to another connector is adding a row,
// per the "extension to others is a table entry" design note.
type connector struct {
	name       string
	statusPath string
}

func defaultConnectors() []connector {
	return []connector{
		{name: "card0-HDMI-A-1", statusPath: "/sys/class/drm/card0-HDMI-A-1/status"},
		{name: "card0-DP-1", statusPath: "/sys/class/drm/card0-DP-1/status"},
	}
}

// Reactor runs the netlink-driven poll loop on its own goroutine,
// re-checking sysfs connector status on every "drm"/"change" uevent
// for card0 and diffing against the last observed state.
type Reactor struct {
	callback    Callback
	connectors  []connector
	pollTimeout time.Duration

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	lastSeen map[string]bool
	fd       int
}

// New creates a Reactor watching the default connector table
// (card0-HDMI-A-1, card0-DP-1). Start must be called to begin
// monitoring.
func New(callback Callback) *Reactor {
	return &Reactor{
		callback:    callback,
		connectors:  defaultConnectors(),
		pollTimeout: 1000 * time.Millisecond,
		lastSeen:    make(map[string]bool),
		fd:          -1,
	}
}

// Start opens the netlink socket and begins monitoring. Calling Start
// on an already-running Reactor is a no-op, matching
// HotplugDetector::start's running_ guard.
func (r *Reactor) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return err
	}
	addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: 1}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return err
	}

	r.fd = fd
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})

	// Establish the baseline silently so the first change event only
	// reports connectors whose status actually flips, not every
	// connector's initial state.
	r.seedBaselineLocked()

	go r.loop(fd, r.stopCh, r.doneCh)
	logging.WithComponent("hotplug").Info().Msg("hotplug monitoring started")
	return nil
}

// Stop signals the monitor goroutine and waits for it to exit. The
// netlink read itself is a blocking syscall and cannot be interrupted
// by the stop channel directly, so the goroutine observes the signal
// at its next 1s poll timeout at the latest.
func (r *Reactor) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopCh)
	fd := r.fd
	doneCh := r.doneCh
	r.mu.Unlock()

	<-doneCh
	unix.Close(fd)
	logging.WithComponent("hotplug").Info().Msg("hotplug monitoring stopped")
}

func (r *Reactor) loop(fd int, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	buf := make([]byte, 4096)
	for {
		select {
		case <-stopCh:
			return
		default:
		}

		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, int(r.pollTimeout/time.Millisecond))
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			logging.WithComponent("hotplug").Error().Err(err).Msg("poll error")
			return
		}
		if n == 0 {
			continue
		}

		nr, _, err := unix.Recvfrom(fd, buf, 0)
		if err != nil {
			continue
		}
		if !isDrmCard0Change(buf[:nr]) {
			continue
		}
		logging.WithComponent("hotplug").Debug().Msg("drm change event detected for card0, checking all connectors")
		r.refreshAll()
	}
}

// isDrmCard0Change parses a raw uevent message and reports whether it
// is a "change" action on a path under drm/card0, matching
// processUdevDevice's three-field check.
func isDrmCard0Change(msg []byte) bool {
	var action, subsystem string
	var sawPath bool

	for _, field := range bytes.Split(msg, []byte{0}) {
		s := string(field)
		switch {
		case strings.HasPrefix(s, "ACTION="):
			action = strings.TrimPrefix(s, "ACTION=")
		case strings.HasPrefix(s, "SUBSYSTEM="):
			subsystem = strings.TrimPrefix(s, "SUBSYSTEM=")
		case strings.HasPrefix(s, "DEVPATH=") && strings.Contains(s, "/drm/card0"):
			sawPath = true
		}
	}
	return action == "change" && subsystem == "drm" && sawPath
}

func (r *Reactor) refreshAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshAllLocked()
}

// seedBaselineLocked records every connector's current status without
// invoking the callback, so Start does not report pre-existing sinks
// as fresh transitions.
func (r *Reactor) seedBaselineLocked() {
	for _, c := range r.connectors {
		r.lastSeen[c.name] = readConnectedStatus(c.statusPath)
	}
}

// refreshAllLocked rereads every configured connector's sysfs status
// file and emits a callback for each transition, matching
// checkAllConnectors's table-driven diff against previous_states.
func (r *Reactor) refreshAllLocked() {
	for _, c := range r.connectors {
		connected := readConnectedStatus(c.statusPath)
		prev, known := r.lastSeen[c.name]
		r.lastSeen[c.name] = connected
		if known && prev == connected {
			continue
		}
		event := Disconnected
		if connected {
			event = Connected
		}
		logging.WithComponent("hotplug").Info().Str("connector", c.name).Bool("connected", connected).Msg("hotplug transition")
		if r.callback != nil {
			r.callback(c.name, event)
		}
	}
}

func readConnectedStatus(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "connected"
}
