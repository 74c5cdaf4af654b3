// Package sink implements the per-connector double-buffered scanout
// pool. It generalizes the double-buffered modeset example's single
// modesetBuf pair (drm/mode's CreateFB/AddFB/MapDumb idiom) into a
// ring keyed per connector, matching FrameCopier's
// createBuffersForDisplay / getNextBuffer / destroyBuffersForDisplay.
package sink

import (
	"fmt"
	"os"
	"sync"

	"launchpad.net/gommap"

	"github.com/wxd9199/drmclone/drm/mode"
	"github.com/wxd9199/drmclone/internal/blit"
	"github.com/wxd9199/drmclone/internal/logging"
)

const (
	depth = 24
	bpp   = 32
)

// Buffer is a single kernel-backed scanout buffer: a dumb buffer
// object, registered as a framebuffer, mmap'd for CPU writes.
type Buffer struct {
	Handle uint32
	FBID   uint32
	Width  uint32
	Height uint32
	Stride uint32
	Size   uint64
	Data   gommap.MMap
	Valid  bool
}

// Surface adapts a Buffer to the blit package's Engine contract.
func (b *Buffer) Surface() *blit.Surface {
	return &blit.Surface{Pixels: b.Data, Width: int(b.Width), Height: int(b.Height), Stride: int(b.Stride), Format: blit.FourCCXRGB8888}
}

// ring holds the two buffers for one connector and the index of the
// buffer currently bound to the CRTC (the front buffer).
type ring struct {
	buffers [2]*Buffer
	front   int
}

// Pool owns every connector's buffer ring, allocating and tearing down
// dumb buffers directly against the DRM device file the Gateway
// opened.
type Pool struct {
	mu    sync.Mutex
	file  *os.File
	rings map[uint32]*ring
}

// New creates a Pool that allocates buffers against file, the same
// device handle the Gateway uses for mode-setting.
func New(file *os.File) *Pool {
	return &Pool{file: file, rings: make(map[uint32]*ring)}
}

func allocateBuffer(file *os.File, width, height uint32) (*Buffer, error) {
	fb, err := mode.CreateFB(file, uint16(width), uint16(height), bpp)
	if err != nil {
		return nil, fmt.Errorf("create dumb buffer: %w", err)
	}

	fbID, err := mode.AddFB(file, uint16(width), uint16(height), depth, bpp, fb.Pitch, fb.Handle)
	if err != nil {
		mode.DestroyDumb(file, fb.Handle)
		return nil, fmt.Errorf("register framebuffer: %w", err)
	}

	offset, err := mode.MapDumb(file, fb.Handle)
	if err != nil {
		mode.RmFB(file, fbID)
		mode.DestroyDumb(file, fb.Handle)
		return nil, fmt.Errorf("map dumb buffer: %w", err)
	}

	data, err := gommap.MapAt(0, file.Fd(), int64(offset), int64(fb.Size), gommap.PROT_READ|gommap.PROT_WRITE, gommap.MAP_SHARED)
	if err != nil {
		mode.RmFB(file, fbID)
		mode.DestroyDumb(file, fb.Handle)
		return nil, fmt.Errorf("mmap framebuffer: %w", err)
	}
	for i := range data {
		data[i] = 0
	}

	return &Buffer{
		Handle: fb.Handle,
		FBID:   fbID,
		Width:  width,
		Height: height,
		Stride: fb.Pitch,
		Size:   fb.Size,
		Data:   data,
		Valid:  true,
	}, nil
}

func destroyBuffer(file *os.File, b *Buffer) {
	if b == nil {
		return
	}
	if b.Data != nil {
		gommap.MMap(b.Data).UnsafeUnmap()
	}
	// Framebuffer unregistration must precede buffer-object teardown,
	// matching destroyBuffersForDisplay's order.
	if b.FBID != 0 {
		if err := mode.RmFB(file, b.FBID); err != nil {
			logging.WithComponent("sink").Warn().Err(err).Uint32("fb_id", b.FBID).Msg("remove framebuffer failed")
		}
	}
	if b.Handle != 0 {
		if err := mode.DestroyDumb(file, b.Handle); err != nil {
			logging.WithComponent("sink").Warn().Err(err).Uint32("handle", b.Handle).Msg("destroy dumb buffer failed")
		}
	}
}

func (p *Pool) createRing(connectorID, width, height uint32) (*ring, error) {
	r := &ring{}
	for i := 0; i < 2; i++ {
		b, err := allocateBuffer(p.file, width, height)
		if err != nil {
			for j := 0; j < i; j++ {
				destroyBuffer(p.file, r.buffers[j])
			}
			return nil, err
		}
		r.buffers[i] = b
	}
	p.rings[connectorID] = r
	return r, nil
}

// Next returns the back buffer for connectorID — the one the caller
// should blit into and then submit via a page flip — lazily
// allocating or recreating the ring if it is absent or invalid
// (PoolInvalid), matching getNextBuffer.
func (p *Pool) Next(connectorID, width, height uint32) (*Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, ok := p.rings[connectorID]
	if !ok {
		var err error
		r, err = p.createRing(connectorID, width, height)
		if err != nil {
			return nil, err
		}
	}

	back := r.front ^ 1
	buf := r.buffers[back]
	if buf == nil || !buf.Valid || buf.FBID == 0 || buf.Width != width || buf.Height != height {
		logging.WithComponent("sink").Warn().Uint32("connector_id", connectorID).Msg("invalid or stale buffer, recreating ring")
		p.destroyRingLocked(connectorID)
		var err error
		r, err = p.createRing(connectorID, width, height)
		if err != nil {
			return nil, err
		}
		buf = r.buffers[r.front^1]
	}
	return buf, nil
}

// Advance flips the ring's front index after a successful page-flip
// submission, matching the double-buffered modeset example's
// "iter.frontBuf ^= 1" only after SetCrtc/PageFlip succeeds.
func (p *Pool) Advance(connectorID uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.rings[connectorID]; ok {
		r.front ^= 1
	}
}

// Front returns the currently-scanned-out buffer for connectorID, or
// false if no ring exists yet.
func (p *Pool) Front(connectorID uint32) (*Buffer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.rings[connectorID]
	if !ok {
		return nil, false
	}
	return r.buffers[r.front], true
}

func (p *Pool) destroyRingLocked(connectorID uint32) {
	r, ok := p.rings[connectorID]
	if !ok {
		return
	}
	for _, b := range r.buffers {
		destroyBuffer(p.file, b)
	}
	delete(p.rings, connectorID)
}

// Destroy tears down the ring for connectorID, if any.
func (p *Pool) Destroy(connectorID uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.destroyRingLocked(connectorID)
}

// Close tears down every remaining ring, used on process shutdown.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id := range p.rings {
		p.destroyRingLocked(id)
	}
}
