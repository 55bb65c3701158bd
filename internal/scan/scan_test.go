package scan

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard(t *testing.T) {
	g := NewGuard()
	assert.True(t, g.ShouldProcess("T123"))
	assert.False(t, g.ShouldProcess("T123"))
	assert.False(t, g.ShouldProcess("T123"))
	assert.True(t, g.ShouldProcess("T124"))
	assert.Equal(t, 2, g.Len())
}

func TestGuardConcurrentEmissions(t *testing.T) {
	g := NewGuard()
	var passed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.ShouldProcess("T123") {
				passed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), passed.Load())
}

func TestSurfaceRestartResetsGuard(t *testing.T) {
	s := NewSurface(context.Background(), "stu-1")
	require.True(t, s.ShouldProcess("T123"))
	require.False(t, s.ShouldProcess("T123"))

	require.NoError(t, s.Restart())
	assert.True(t, s.ShouldProcess("T123"), "a token rejected in session N is accepted in session N+1")
	assert.Equal(t, 1, s.Consumed())
}

func TestSurfaceInFlight(t *testing.T) {
	s := NewSurface(context.Background(), "stu-1")
	require.True(t, s.Begin())
	assert.False(t, s.Begin(), "second event while in flight is dropped")
	assert.True(t, s.Busy())
	s.Done()
	assert.True(t, s.Begin())

	require.NoError(t, s.Restart())
	assert.False(t, s.Busy())
}

func TestSurfaceClose(t *testing.T) {
	s := NewSurface(context.Background(), "stu-1")
	s.Close()
	s.Close()

	assert.True(t, s.Closed())
	assert.ErrorIs(t, s.Context().Err(), context.Canceled)
	assert.False(t, s.ShouldProcess("T123"))
	assert.ErrorIs(t, s.Restart(), ErrSurfaceClosed)
}

func TestRegistry(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRegistry(parent)

	a := r.Open("stu-1")
	b := r.Open("stu-1")
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, r.Len())

	got, ok := r.Get(a.ID)
	require.True(t, ok)
	assert.Same(t, a, got)

	assert.True(t, r.Close(a.ID))
	assert.False(t, r.Close(a.ID))
	assert.True(t, a.Closed())
	_, ok = r.Get(a.ID)
	assert.False(t, ok)

	r.CloseAll()
	assert.Zero(t, r.Len())
	assert.True(t, b.Closed())
}

func TestRegistryParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	r := NewRegistry(parent)
	s := r.Open("stu-1")
	cancel()
	<-s.Context().Done()
	assert.ErrorIs(t, s.Context().Err(), context.Canceled)
}
