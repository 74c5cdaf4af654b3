package sink

import "testing"

func TestPoolFrontEmptyWhenNoRing(t *testing.T) {
	p := New(nil)
	if _, ok := p.Front(42); ok {
		t.Fatalf("Front on an unknown connector must report false")
	}
}

func TestPoolDestroyUnknownRingIsNoop(t *testing.T) {
	p := New(nil)
	// Must not panic when tearing down a ring that was never created.
	p.Destroy(42)
	p.Close()
}

func TestAdvanceFlipsFrontIndex(t *testing.T) {
	p := New(nil)
	p.rings[7] = &ring{
		buffers: [2]*Buffer{{Valid: true}, {Valid: true}},
		front:   0,
	}

	p.Advance(7)
	if p.rings[7].front != 1 {
		t.Fatalf("Advance did not flip front index: got %d, want 1", p.rings[7].front)
	}
	p.Advance(7)
	if p.rings[7].front != 0 {
		t.Fatalf("Advance did not flip front index back: got %d, want 0", p.rings[7].front)
	}
}

func TestAdvanceOnUnknownConnectorIsNoop(t *testing.T) {
	p := New(nil)
	// Must not panic when advancing a connector with no ring.
	p.Advance(99)
}

func TestFrontReturnsBufferAtFrontIndex(t *testing.T) {
	p := New(nil)
	front := &Buffer{Valid: true, FBID: 1}
	back := &Buffer{Valid: true, FBID: 2}
	p.rings[3] = &ring{buffers: [2]*Buffer{front, back}, front: 0}

	got, ok := p.Front(3)
	if !ok || got != front {
		t.Fatalf("Front(3) = %+v, %v; want the buffer at index 0", got, ok)
	}

	p.Advance(3)
	got, ok = p.Front(3)
	if !ok || got != back {
		t.Fatalf("after Advance, Front(3) = %+v, %v; want the buffer at index 1", got, ok)
	}
}
