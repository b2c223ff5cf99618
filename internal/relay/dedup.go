package relay

import (
	"bytes"
	"sync"
)

// DedupGate suppresses payloads identical to the last one handed to the
// delivery queue. Coalesced bursts often produce no net state change; this
// keeps them off the network.
type DedupGate struct {
	mu   sync.Mutex
	last []byte
}

// NewDedupGate creates an empty gate; the first payload always passes.
func NewDedupGate() *DedupGate {
	return &DedupGate{}
}

// ShouldSend reports whether the canonical payload differs from the last
// accepted one. It does not advance the marker; call MarkQueued once the
// queue has taken the payload.
func (g *DedupGate) ShouldSend(canonical []byte) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !bytes.Equal(canonical, g.last)
}

// MarkQueued records the payload as the last one accepted for delivery.
func (g *DedupGate) MarkQueued(canonical []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = append([]byte(nil), canonical...)
}
