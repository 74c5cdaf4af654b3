// Package mirror implements the master state machine: the mirror
// loop that copies the primary display's content to every connected
// secondary sink, and the hot-plug reconciliation that keeps the
// secondary set in sync with topology changes. It is the Go
// restatement of display_manager.cpp's copyLoop / updateDisplays /
// enableSecondaryDisplay / disableSecondaryDisplay.
package mirror

import (
	"sync"
	"time"

	"github.com/wxd9199/drmclone/internal/blit"
	"github.com/wxd9199/drmclone/internal/config"
	"github.com/wxd9199/drmclone/internal/hotplug"
	"github.com/wxd9199/drmclone/internal/logging"
	"github.com/wxd9199/drmclone/internal/sink"
	"github.com/wxd9199/drmclone/internal/topology"
)

const (
	settleDelay  = 100 * time.Millisecond
	idlePoll     = 100 * time.Millisecond
	eventsBudget = 1 * time.Millisecond
	fpsInterval  = 300 * time.Second
	defaultFPS   = 60
)

// Loop owns the periodic capture/blit/flip cycle and the topology
// reconciliation triggered by hot-plug events.
type Loop struct {
	gateway *topology.Gateway
	pool    *sink.Pool
	hw      blit.Engine
	cpu     blit.Engine
	cfg     config.DisplayConfig

	mu          sync.Mutex
	secondary   map[uint32]bool // connector id -> currently connected+usable
	copyEnabled bool
	frameCount  map[uint32]int

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New builds a Loop over gw/pool with cfg's behavior knobs. It
// attempts the hardware blit path first on every frame, falling back
// to the CPU path on failure (the hardware path is a no-op error
// returner unless built with -tags rga).
func New(gw *topology.Gateway, pool *sink.Pool, cfg config.DisplayConfig) *Loop {
	hw, err := blit.NewHardwareEngine()
	if err != nil {
		logging.WithComponent("mirror").Debug().Err(err).Msg("hardware blit engine unavailable, CPU path only")
		hw = nil
	}
	return &Loop{
		gateway:    gw,
		pool:       pool,
		hw:         hw,
		cpu:        blit.NewCPUEngine(),
		cfg:        cfg,
		secondary:  make(map[uint32]bool),
		frameCount: make(map[uint32]int),
	}
}

// Start reconciles the current topology and launches the capture
// loop on its own goroutine. Idempotent.
func (l *Loop) Start() {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	l.mu.Unlock()

	l.Reconcile()

	go l.run()
	logging.WithComponent("mirror").Info().Msg("mirror loop started")
}

// Stop signals the loop goroutine and waits for it to exit.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	close(l.stopCh)
	doneCh := l.doneCh
	l.mu.Unlock()

	<-doneCh
	logging.WithComponent("mirror").Info().Msg("mirror loop stopped")
}

// OnHotplug is the callback wired to the hot-plug reactor; it drives
// topology reconciliation rather than acting on the event's identity
// directly, since a single uevent does not reliably carry which
// connector changed or how.
func (l *Loop) OnHotplug(connectorName string, event hotplug.Event) {
	logging.WithComponent("mirror").Info().Str("connector", connectorName).Msg("hotplug event received, reconciling topology")
	l.Reconcile()
}

// Reconcile rescans the topology and walks the new secondary set
// against the previous one, applying enable / disable / refresh / noop
// rules depending on the connected-state transition.
func (l *Loop) Reconcile() {
	if err := l.gateway.Scan(); err != nil {
		logging.WithComponent("mirror").Error().Err(err).Msg("topology scan failed")
		return
	}

	newState := make(map[uint32]bool)
	for _, d := range l.gateway.Displays() {
		if d.Role != topology.RoleSecondary || !isSecondaryOfInterest(d.Name) {
			continue
		}
		newState[d.ConnectorID] = d.Connected && d.Usable()
	}

	l.mu.Lock()
	prev := l.secondary
	l.mu.Unlock()

	for id, now := range newState {
		was := prev[id]
		switch {
		case now && !was:
			logging.WithComponent("mirror").Info().Uint32("connector_id", id).Msg("secondary display connected, enabling")
			l.enableSink(id)
		case !now && was:
			logging.WithComponent("mirror").Info().Uint32("connector_id", id).Msg("secondary display disconnected, disabling")
			l.disableSink(id)
		case now && was && l.cfg.RefreshOnHotplug:
			logging.WithComponent("mirror").Info().Uint32("connector_id", id).Msg("refreshing secondary display after topology event")
			l.disableSink(id)
			time.Sleep(settleDelay)
			l.enableSink(id)
		}
	}

	l.mu.Lock()
	l.secondary = newState
	l.updateCopyEnabledLocked()
	l.mu.Unlock()
}

func (l *Loop) updateCopyEnabledLocked() {
	enabled := false
	for _, connected := range l.secondary {
		if connected {
			enabled = true
			break
		}
	}
	if enabled != l.copyEnabled {
		if enabled {
			logging.WithComponent("mirror").Info().Msg("frame copying enabled, secondary display connected")
		} else {
			logging.WithComponent("mirror").Info().Msg("frame copying disabled, no secondary displays connected")
		}
	}
	l.copyEnabled = enabled
}

// enableSink implements the enable rule: blank the CRTC, settle,
// allocate the pool entry (via Next), and set_crtc with the ring's
// front buffer (with the retries already built into Gateway.SetCRTC),
// leaving the back buffer free for the first blit. On repeated failure
// it tears the pool entry back down.
func (l *Loop) enableSink(connectorID uint32) {
	l.gateway.Disable(connectorID)
	time.Sleep(settleDelay)

	d, ok := l.gateway.ByConnectorID(connectorID)
	if !ok || !d.Usable() {
		logging.WithComponent("mirror").Warn().Uint32("connector_id", connectorID).Msg("cannot enable: no CRTC binding")
		return
	}

	if _, err := l.pool.Next(connectorID, uint32(d.Mode.Width), uint32(d.Mode.Height)); err != nil {
		logging.WithComponent("mirror").Error().Err(err).Str("display", d.Name).Msg("failed to allocate buffer pool entry")
		return
	}
	buf, ok := l.pool.Front(connectorID)
	if !ok {
		logging.WithComponent("mirror").Error().Str("display", d.Name).Msg("pool entry missing after allocation")
		return
	}

	if err := l.gateway.SetCRTC(connectorID, buf.FBID); err != nil {
		logging.WithComponent("mirror").Error().Err(err).Str("display", d.Name).Msg("failed to enable display after retries")
		l.pool.Destroy(connectorID)
		return
	}
	logging.WithComponent("mirror").Info().Str("display", d.Name).Msg("secondary display enabled")
}

func (l *Loop) disableSink(connectorID uint32) {
	l.gateway.Disable(connectorID)
	l.pool.Destroy(connectorID)
}

func isSecondaryOfInterest(name string) bool {
	return contains(name, "HDMI") || contains(name, "DisplayPort")
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

// run is the periodic worker: capture the primary frame, blit and flip
// it to every enabled secondary, drain flip events, account FPS, and
// pace to the target interval.
func (l *Loop) run() {
	defer close(l.doneCh)

	frameCount := 0
	fpsStart := time.Now()

	for {
		select {
		case <-l.stopCh:
			return
		default:
		}

		iterStart := time.Now()

		l.mu.Lock()
		enabled := l.copyEnabled
		ids := make([]uint32, 0, len(l.secondary))
		for id, connected := range l.secondary {
			if connected {
				ids = append(ids, id)
			}
		}
		l.mu.Unlock()

		if !enabled || len(ids) == 0 {
			l.sleepOrStop(idlePoll)
			continue
		}

		primary, ok := l.gateway.Primary()
		if !ok || !primary.Connected || !primary.Usable() {
			l.sleepOrStop(idlePoll)
			continue
		}

		view := l.capture(primary.CRTCID, int(primary.Mode.Width), int(primary.Mode.Height))

		for _, id := range ids {
			l.blitAndFlip(id, view)
		}

		l.gateway.DrainEvents(eventsBudget, func(connectorID uint32) {
			logging.WithComponent("mirror").Debug().Uint32("connector_id", connectorID).Msg("flip completion observed")
		})

		frameCount++
		now := time.Now()
		if elapsed := now.Sub(fpsStart); elapsed >= fpsInterval {
			fps := float64(frameCount) / elapsed.Seconds()
			logging.WithComponent("mirror").Info().Float64("fps", fps).Msg("frame rate")
			frameCount = 0
			fpsStart = now
		}

		target := l.targetInterval(primary)
		if elapsed := time.Since(iterStart); elapsed < target {
			l.sleepOrStop(target - elapsed)
		}
	}
}

func (l *Loop) sleepOrStop(d time.Duration) {
	select {
	case <-l.stopCh:
	case <-time.After(d):
	}
}

func (l *Loop) targetInterval(primary topology.Display) time.Duration {
	fps := l.cfg.TargetFPS
	if fps <= 0 {
		fps = int(primary.Mode.RefreshHz)
	}
	if fps <= 0 {
		fps = defaultFPS
	}
	return time.Second / time.Duration(fps)
}

// blitAndFlip transforms view into connectorID's back buffer and
// submits a page flip, trying the hardware path first and falling
// back to the CPU path on failure (BlitFailure in the error taxonomy).
func (l *Loop) blitAndFlip(connectorID uint32, view *FrameView) {
	d, ok := l.gateway.ByConnectorID(connectorID)
	if !ok || !d.Connected || !d.Usable() {
		return
	}

	buf, err := l.pool.Next(connectorID, uint32(d.Mode.Width), uint32(d.Mode.Height))
	if err != nil {
		logging.WithComponent("mirror").Warn().Err(err).Str("display", d.Name).Msg("pool entry unavailable, skipping frame")
		return
	}

	srcRect := blit.Rect{X: 0, Y: 0, W: view.Width, H: view.Height}
	dstRect := blit.Rect{X: 0, Y: 0, W: int(buf.Width), H: int(buf.Height)}

	var blitErr error
	if l.hw != nil {
		blitErr = l.hw.Blit(view.Surface(), srcRect, buf.Surface(), dstRect, l.cfg.Rotation, l.cfg.ScaleMode, l.cfg.Quality)
	} else {
		blitErr = errNoHardwareEngine
	}
	if blitErr != nil {
		blitErr = l.cpu.Blit(view.Surface(), srcRect, buf.Surface(), dstRect, l.cfg.Rotation, l.cfg.ScaleMode, l.cfg.Quality)
	}
	if blitErr != nil {
		logging.WithComponent("mirror").Error().Err(blitErr).Str("display", d.Name).Msg("blit failed on both hardware and CPU paths")
		return
	}

	if err := l.gateway.PageFlip(connectorID, buf.FBID); err != nil {
		logging.WithComponent("mirror").Warn().Err(err).Str("display", d.Name).Msg("page flip submission failed")
		return
	}
	l.pool.Advance(connectorID)

	l.mu.Lock()
	l.frameCount[connectorID]++
	l.mu.Unlock()
}
