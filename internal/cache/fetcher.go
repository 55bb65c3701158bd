// Package cache implements fetch-with-local-fallback: a live fetch whose
// last success is stored and served when a later fetch fails.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/classsync/internal/model"
	"github.com/iliyamo/classsync/internal/repository"
	"github.com/iliyamo/classsync/internal/toast"
)

// Source tells where a result came from.
type Source string

const (
	Live  Source = "live"
	Cache Source = "cache"
	None  Source = "none"
)

// Entry is a stored value and the time it was fetched.
type Entry[T any] struct {
	SavedAt time.Time
	Value   T
}

// Store persists one entry per key.  Load returns repository.ErrNotFound
// for a key that was never saved.
type Store[T any] interface {
	Load(ctx context.Context, key string) (Entry[T], error)
	Save(ctx context.Context, key string, e Entry[T]) error
}

// Notices are the toasts shown when the live fetch fails.
type Notices struct {
	StaleTitle, StaleMessage string // served from cache
	MissTitle, MissMessage   string // nothing to serve
}

// Result of a Get.
type Result[T any] struct {
	Value   T
	Source  Source
	SavedAt time.Time
}

// Found reports whether Value holds data.
func (r Result[T]) Found() bool { return r.Source != None }

// Fetcher fetches T by key with a local fallback.
type Fetcher[T any] struct {
	Fetch   func(ctx context.Context, key string) (T, error)
	Store   Store[T]
	Toasts  toast.Pusher
	Notices Notices

	// StaleAfter bounds the age of a cached entry that may still be
	// served.  Zero serves entries of any age.
	StaleAfter time.Duration

	Now func() time.Time
}

func (f *Fetcher[T]) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

// Get tries the live fetch first.  On success the value is stored and
// returned.  On failure the stored value is returned with an info toast,
// or, when there is none, the zero T with an error toast.
func (f *Fetcher[T]) Get(ctx context.Context, key string) Result[T] {
	v, err := f.Fetch(ctx, key)
	if err == nil {
		now := f.now().UTC()
		if serr := f.Store.Save(ctx, key, Entry[T]{SavedAt: now, Value: v}); serr != nil {
			log.Warnf("cache: save %s: %v", key, serr)
		}
		return Result[T]{Value: v, Source: Live, SavedAt: now}
	}
	log.Warnf("cache: live fetch %s failed: %v", key, err)

	e, lerr := f.Store.Load(ctx, key)
	switch {
	case lerr == nil && f.tooOld(e.SavedAt):
		log.Infof("cache: entry %s from %s is older than %s; not serving it", key, e.SavedAt.Format(time.RFC3339), f.StaleAfter)
	case lerr == nil:
		f.Toasts.Push(model.ToastInfo, f.Notices.StaleTitle, f.Notices.StaleMessage)
		return Result[T]{Value: e.Value, Source: Cache, SavedAt: e.SavedAt}
	case !errors.Is(lerr, repository.ErrNotFound):
		log.Warnf("cache: load %s: %v", key, lerr)
	}

	f.Toasts.Push(model.ToastError, f.Notices.MissTitle, f.Notices.MissMessage)
	var zero T
	return Result[T]{Value: zero, Source: None}
}

func (f *Fetcher[T]) tooOld(savedAt time.Time) bool {
	return f.StaleAfter > 0 && f.now().Sub(savedAt) > f.StaleAfter
}
