package scan

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrSurfaceClosed is returned for work on a surface that was closed.
var ErrSurfaceClosed = errors.New("scan surface closed")

// Surface is one open scanner view.  Closing it cancels Context, so any
// submission still running on its behalf skips its completion effects.
type Surface struct {
	ID       string
	Owner    string // user id of the student who opened it
	OpenedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc

	inFlight atomic.Bool

	mu     sync.Mutex
	guard  *Guard
	closed bool
}

// NewSurface opens a surface whose context derives from parent.
func NewSurface(parent context.Context, owner string) *Surface {
	ctx, cancel := context.WithCancel(parent)
	return &Surface{
		ID:       uuid.NewString(),
		Owner:    owner,
		OpenedAt: time.Now().UTC(),
		ctx:      ctx,
		cancel:   cancel,
		guard:    NewGuard(),
	}
}

// Context is cancelled when the surface closes.
func (s *Surface) Context() context.Context { return s.ctx }

// ShouldProcess runs raw through the current guard.  A closed surface
// processes nothing.
func (s *Surface) ShouldProcess(raw string) bool {
	s.mu.Lock()
	g, closed := s.guard, s.closed
	s.mu.Unlock()
	if closed {
		return false
	}
	return g.ShouldProcess(raw)
}

// Begin sets the in-flight flag.  It returns false, and the caller must
// drop the event, when a submission is already running.
func (s *Surface) Begin() bool {
	return s.inFlight.CompareAndSwap(false, true)
}

// Done clears the in-flight flag.
func (s *Surface) Done() { s.inFlight.Store(false) }

// Busy reports whether a submission is running.
func (s *Surface) Busy() bool { return s.inFlight.Load() }

// Restart starts a new scanning session on the same view: the guard is
// replaced by an empty one and the in-flight flag is cleared.
func (s *Surface) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSurfaceClosed
	}
	s.guard = NewGuard()
	s.inFlight.Store(false)
	return nil
}

// Close tears the surface down.  It is safe to call more than once.
func (s *Surface) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

// Closed reports whether Close was called.
func (s *Surface) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Consumed returns how many distinct tokens the current guard holds.
func (s *Surface) Consumed() int {
	s.mu.Lock()
	g := s.guard
	s.mu.Unlock()
	return g.Len()
}
