// Package geo acquires a device location with a bounded wait.
package geo

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/classsync/internal/model"
)

// DefaultTimeout bounds a location request.
const DefaultTimeout = 8 * time.Second

// ErrUnavailable means the device cannot provide a location at all.
var ErrUnavailable = errors.New("location unavailable")

// Options are hints for a Locator.
type Options struct {
	HighAccuracy bool
}

// Locator resolves the current device position.
type Locator interface {
	Locate(ctx context.Context, opts Options) (model.Position, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context, opts Options) (model.Position, error)

func (f LocatorFunc) Locate(ctx context.Context, opts Options) (model.Position, error) {
	return f(ctx, opts)
}

// Static always answers the same position (kiosks, or coordinates the
// browser already sent with the scan).
type Static model.Position

func (s Static) Locate(context.Context, Options) (model.Position, error) {
	return model.Position(s), nil
}

// Unavailable is a device without location capability.
type Unavailable struct{}

func (Unavailable) Locate(context.Context, Options) (model.Position, error) {
	return model.Position{}, ErrUnavailable
}

type result struct {
	pos model.Position
	err error
}

// LocateWithin asks loc for a high-accuracy position and waits at most d.
// It returns nil and an error on timeout, failure or a nil locator; the
// caller then proceeds without coordinates.  A locator that ignores its
// context is abandoned when the bound expires.
func LocateWithin(ctx context.Context, loc Locator, d time.Duration) (*model.Position, error) {
	if loc == nil {
		return nil, ErrUnavailable
	}
	if d <= 0 {
		d = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	ch := make(chan result, 1)
	go func() {
		pos, err := loc.Locate(ctx, Options{HighAccuracy: true})
		ch <- result{pos: pos, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return &r.pos, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
