// Package scan models an open scanner view.  Each Surface owns its own
// dedupe Guard and in-flight flag; nothing is shared between surfaces.
package scan

import "sync"

// Guard remembers the raw token strings consumed during one scanning
// session.  A camera emits the same decoded value many times per second
// while a code stays in frame; only the first emission passes.
type Guard struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewGuard() *Guard {
	return &Guard{seen: make(map[string]struct{})}
}

// ShouldProcess records raw and reports whether it was seen for the first
// time in this guard's lifetime.
func (g *Guard) ShouldProcess(raw string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, dup := g.seen[raw]; dup {
		return false
	}
	g.seen[raw] = struct{}{}
	return true
}

// Len returns the number of consumed tokens.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}
