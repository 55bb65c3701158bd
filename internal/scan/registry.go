package scan

import (
	"context"
	"sync"
)

// Registry tracks the open surfaces of the gateway by id.
type Registry struct {
	parent context.Context

	mu       sync.Mutex
	surfaces map[string]*Surface
}

// NewRegistry returns a registry whose surfaces derive their context from
// parent; cancelling parent cancels every surface.
func NewRegistry(parent context.Context) *Registry {
	return &Registry{parent: parent, surfaces: make(map[string]*Surface)}
}

// Open creates and tracks a new surface.
func (r *Registry) Open(owner string) *Surface {
	s := NewSurface(r.parent, owner)
	r.mu.Lock()
	r.surfaces[s.ID] = s
	r.mu.Unlock()
	return s
}

func (r *Registry) Get(id string) (*Surface, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.surfaces[id]
	return s, ok
}

// Close closes and forgets the surface.  It reports whether it existed.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	s, ok := r.surfaces[id]
	delete(r.surfaces, id)
	r.mu.Unlock()
	if ok {
		s.Close()
	}
	return ok
}

// CloseAll closes every surface, e.g. on logout.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.surfaces
	r.surfaces = make(map[string]*Surface)
	r.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}

// Len returns the number of open surfaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.surfaces)
}
