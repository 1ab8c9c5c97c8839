package testutil

import "sync"

// FixedGenerator returns predetermined device ids for testing.
//
// It implements identity.Generator. Once every id has been handed out it
// keeps returning the last one, so a misconfigured test shows up as an id
// collision rather than a panic deep inside a provider.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
// With no ids it returns "device-test".
func NewFixedGenerator(ids ...string) *FixedGenerator {
	if len(ids) == 0 {
		ids = []string{"device-test"}
	}
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.ids[g.idx]
	if g.idx < len(g.ids)-1 {
		g.idx++
	}
	return id
}

// Calls returns how many ids have been consumed, capped at len(ids).
func (g *FixedGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.idx
}
