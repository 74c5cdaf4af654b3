package topology

import (
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/wxd9199/drmclone/drm"
	"github.com/wxd9199/drmclone/drm/mode"
	"github.com/wxd9199/drmclone/internal/logging"
)

// Gateway owns the device handle and the live displays table. It is
// the only component that exclusively owns the kernel device handle.
type Gateway struct {
	mu       sync.Mutex
	file     *os.File
	displays map[uint32]*Display // connector id -> Display

	primaryMatch string
}

// Open opens the DRM device at path in read-write mode with
// close-on-exec, and refuses to proceed unless it advertises dumb
// buffer support.
func Open(path string, primaryMatch string) (*Gateway, error) {
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if !drm.HasDumbBuffer(f) {
		f.Close()
		return nil, fmt.Errorf("%s does not support dumb buffers", path)
	}
	if primaryMatch == "" {
		primaryMatch = "DSI-1"
	}
	gw := &Gateway{
		file:         f,
		displays:     make(map[uint32]*Display),
		primaryMatch: primaryMatch,
	}
	return gw, nil
}

// Close releases the device file descriptor. Callers must have already
// destroyed every outstanding framebuffer.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.file == nil {
		return nil
	}
	err := g.file.Close()
	g.file = nil
	return err
}

// Fd exposes the raw device fd. internal/sink, internal/mirror and
// DrainEvents take the fd from File instead.
func (g *Gateway) Fd() uintptr {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.file.Fd()
}

// File exposes the underlying *os.File for mode-package calls that
// need it directly.
func (g *Gateway) File() *os.File {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.file
}

// Scan rebuilds the displays table in place: idempotent, and it must
// not disturb existing kernel-side CRTC programming of unaffected
// displays. Absent connectors remain in the table with
// Connected=false rather than being deleted.
func (g *Gateway) Scan() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	res, err := mode.GetResources(g.file)
	if err != nil {
		return fmt.Errorf("get resources: %w", err)
	}

	claimed := make(map[uint32]bool, len(res.Crtcs))
	seen := make(map[uint32]bool, len(res.Connectors))

	for _, connID := range res.Connectors {
		conn, err := mode.GetConnector(g.file, connID)
		if err != nil {
			logging.WithComponent("topology").Warn().Err(err).Uint32("connector_id", connID).Msg("get connector failed")
			continue
		}

		d, existing := g.displays[connID]
		if !existing {
			d = &Display{ConnectorID: connID}
			d.Name = Name(conn.Type, conn.TypeID)
		}

		d.Connected = conn.Connection == mode.Connected

		if best := bestMode(conn.Modes); best != nil {
			d.Mode = Mode{Width: best.Hdisplay, Height: best.Vdisplay, RefreshHz: best.Vrefresh, raw: *best}
		}

		d.EncoderID, d.CRTCID = assignCRTC(g.file, res, conn, claimed)
		if d.CRTCID != 0 {
			claimed[d.CRTCID] = true
		}

		g.displays[connID] = d
		seen[connID] = true
	}

	for id, d := range g.displays {
		if !seen[id] {
			d.Connected = false
		}
	}

	var primary *Display
	for id, d := range g.displays {
		_ = id
		d.Role = RoleSecondary
	}
	for _, d := range g.displays {
		if primary == nil && containsSubstring(d.Name, g.primaryMatch) {
			d.Role = RolePrimary
			primary = d
		}
	}

	return nil
}

func containsSubstring(s, sub string) bool {
	if sub == "" {
		return false
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

// bestMode picks the connector's preferred mode; if none is flagged
// preferred, the highest-resolution mode wins, tie-broken by original
// enumeration order.
func bestMode(modes []mode.Info) *mode.Info {
	if len(modes) == 0 {
		return nil
	}
	const typePreferred = 1 << 3 // DRM_MODE_TYPE_PREFERRED
	for i := range modes {
		if modes[i].Type&typePreferred != 0 {
			return &modes[i]
		}
	}
	best := &modes[0]
	for i := 1; i < len(modes); i++ {
		if area(&modes[i]) > area(best) {
			best = &modes[i]
		}
	}
	return best
}

func area(m *mode.Info) uint32 {
	return uint32(m.Hdisplay) * uint32(m.Vdisplay)
}

// assignCRTC implements the CRTC assignment rule: prefer the
// connector's currently bound encoder's CRTC if non-zero, else scan
// candidate encoders' possible-CRTC bitmask for the first CRTC not
// already claimed in this scan.
func assignCRTC(file *os.File, res *mode.Resources, conn *mode.Connector, claimed map[uint32]bool) (encoderID, crtcID uint32) {
	if conn.EncoderID != 0 {
		enc, err := mode.GetEncoder(file, conn.EncoderID)
		if err == nil && enc.CrtcID != 0 {
			return conn.EncoderID, enc.CrtcID
		}
	}

	for _, encID := range conn.Encoders {
		enc, err := mode.GetEncoder(file, encID)
		if err != nil {
			continue
		}
		for j, crtc := range res.Crtcs {
			if enc.PossibleCrtcs&(1<<uint(j)) == 0 {
				continue
			}
			if claimed[crtc] {
				continue
			}
			return encID, crtc
		}
	}
	return 0, 0
}

// Displays returns a snapshot of the current table.
func (g *Gateway) Displays() []Display {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Display, 0, len(g.displays))
	for _, d := range g.displays {
		out = append(out, *d)
	}
	return out
}

// Primary returns the current primary display, if any. At most one
// display has Role==RolePrimary at any time.
func (g *Gateway) Primary() (Display, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, d := range g.displays {
		if d.Role == RolePrimary {
			return *d, true
		}
	}
	return Display{}, false
}

// ByConnectorID resolves a connector id to its Display under the
// topology mutex, so callers never observe a half-updated Display.
func (g *Gateway) ByConnectorID(id uint32) (Display, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.displays[id]
	if !ok {
		return Display{}, false
	}
	return *d, true
}

// CreateFramebuffer registers a framebuffer with the kernel.
func (g *Gateway) CreateFramebuffer(width, height, format uint32, handles, pitches, offsets [4]uint32) (uint32, error) {
	g.mu.Lock()
	f := g.file
	g.mu.Unlock()
	return mode.AddFB2(f, width, height, format, handles, pitches, offsets)
}

// DestroyFramebuffer unregisters a framebuffer id. Errors are logged,
// never propagated as fatal.
func (g *Gateway) DestroyFramebuffer(id uint32) {
	if id == 0 {
		return
	}
	g.mu.Lock()
	f := g.file
	g.mu.Unlock()
	if err := mode.RmFB(f, id); err != nil {
		logging.WithComponent("topology").Warn().Err(err).Uint32("fb_id", id).Msg("destroy framebuffer failed")
	}
}

// SetCRTC programs the CRTC with the display's mode, retrying up to 3
// times with a 50ms interval on failure.
func (g *Gateway) SetCRTC(connectorID, fbID uint32) error {
	d, ok := g.ByConnectorID(connectorID)
	if !ok || !d.Usable() {
		return fmt.Errorf("display %d has no CRTC binding", connectorID)
	}

	g.mu.Lock()
	f := g.file
	g.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		connID := connectorID
		lastErr = mode.SetCrtc(f, d.CRTCID, fbID, 0, 0, &connID, 1, &d.Mode.raw)
		if lastErr == nil {
			return nil
		}
		logging.WithComponent("topology").Warn().Err(lastErr).Str("display", d.Name).Int("attempt", attempt+1).Msg("set_crtc failed, retrying")
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("set_crtc failed after 3 attempts: %w", lastErr)
}

// Disable blanks the CRTC: null framebuffer, no connectors.
func (g *Gateway) Disable(connectorID uint32) error {
	d, ok := g.ByConnectorID(connectorID)
	if !ok || d.CRTCID == 0 {
		return nil
	}
	g.mu.Lock()
	f := g.file
	g.mu.Unlock()
	return mode.SetCrtc(f, d.CRTCID, 0, 0, 0, nil, 0, nil)
}

// PageFlip submits an asynchronous flip requesting a completion event.
// It fails when no CRTC is bound.
func (g *Gateway) PageFlip(connectorID, fbID uint32) error {
	d, ok := g.ByConnectorID(connectorID)
	if !ok || d.CRTCID == 0 {
		return fmt.Errorf("display %d has no CRTC bound", connectorID)
	}
	g.mu.Lock()
	f := g.file
	g.mu.Unlock()
	return mode.PageFlip(f, d.CRTCID, fbID, uint64(connectorID))
}

// WaitVBlank blocks until the next vblank on the primary pipe (CRTC
// index 0), so a subsequent capture corresponds to a just-scanned-out
// frame.
func (g *Gateway) WaitVBlank() error {
	g.mu.Lock()
	f := g.file
	g.mu.Unlock()
	return mode.WaitVBlank(f, 0)
}

// DrainEvents waits up to timeout for pending flip-completion events
// and dispatches them to onFlip, keyed by the connector id stashed in
// PageFlip's user-data field. It returns whether any event was
// processed, and never blocks longer than timeout.
func (g *Gateway) DrainEvents(timeout time.Duration, onFlip func(connectorID uint32)) bool {
	g.mu.Lock()
	f := g.file
	g.mu.Unlock()

	fds := []unix.PollFd{{Fd: int32(f.Fd()), Events: unix.POLLIN}}
	timeoutMs := int(timeout / time.Millisecond)
	if timeoutMs <= 0 && timeout > 0 {
		timeoutMs = 1
	}
	n, err := unix.Poll(fds, timeoutMs)
	if err != nil || n <= 0 {
		return false
	}

	buf := make([]byte, 4096)
	nr, err := unix.Read(int(f.Fd()), buf)
	if err != nil || nr <= 0 {
		return false
	}

	events, err := mode.DrainEvents(buf[:nr])
	if err != nil {
		logging.WithComponent("topology").Warn().Err(err).Msg("malformed drm event")
	}
	for _, ev := range events {
		if onFlip != nil {
			onFlip(uint32(ev.UserData))
		}
	}
	return len(events) > 0
}
