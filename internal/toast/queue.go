// Package toast is the transient notification queue.  Toasts are
// client-only: they are never persisted and disappear on their own after
// the queue's TTL unless dismissed earlier.
package toast

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/classsync/internal/metrics"
	"github.com/iliyamo/classsync/internal/model"
)

// DefaultTTL is how long a toast stays up.
const DefaultTTL = 5 * time.Second

// Pusher is the part of the queue business components report outcomes to.
type Pusher interface {
	Push(typ, title, message string) model.Toast
}

type entry struct {
	toast model.Toast
	timer *time.Timer
}

// Queue is an ordered, self-expiring list of toasts, oldest first.  Equal
// toasts are never coalesced.
type Queue struct {
	ttl time.Duration

	mu    sync.Mutex
	items []*entry
}

// New returns a queue whose toasts expire after ttl (DefaultTTL when ttl
// is not positive).
func New(ttl time.Duration) *Queue {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Queue{ttl: ttl}
}

// Push appends a toast and schedules its removal.
func (q *Queue) Push(typ, title, message string) model.Toast {
	now := time.Now().UTC()
	t := model.Toast{
		ID:        uuid.NewString(),
		Type:      typ,
		Title:     title,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(q.ttl),
	}
	e := &entry{toast: t}

	q.mu.Lock()
	q.items = append(q.items, e)
	e.timer = time.AfterFunc(q.ttl, func() { q.remove(t.ID) })
	q.mu.Unlock()

	metrics.Toasts.WithLabelValues(typ).Inc()
	log.Debugf("toast: %s %q %q", typ, title, message)
	return t
}

func (q *Queue) Info(title, message string) model.Toast {
	return q.Push(model.ToastInfo, title, message)
}

func (q *Queue) Success(title, message string) model.Toast {
	return q.Push(model.ToastSuccess, title, message)
}

func (q *Queue) Error(title, message string) model.Toast {
	return q.Push(model.ToastError, title, message)
}

// Dismiss removes the toast now and cancels its scheduled removal.  It
// reports whether the toast was still queued; dismissing twice is harmless.
func (q *Queue) Dismiss(id string) bool {
	return q.remove(id)
}

func (q *Queue) remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.items {
		if e.toast.ID != id {
			continue
		}
		e.timer.Stop()
		q.items = append(q.items[:i], q.items[i+1:]...)
		return true
	}
	return false
}

// List returns the queued toasts, oldest first.
func (q *Queue) List() []model.Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.Toast, 0, len(q.items))
	for _, e := range q.items {
		out = append(out, e.toast)
	}
	return out
}

// Len returns the number of queued toasts.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops every pending timer and empties the queue.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.items {
		e.timer.Stop()
	}
	q.items = nil
}
