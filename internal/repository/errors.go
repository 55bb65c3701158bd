// Package repository persists the gateway's durable state: the signed-in
// identity and the per-section timetable cache.  Every store goes through
// the KV interface so the file, Redis and MySQL drivers are interchangeable.
package repository

import "errors"

// ErrNotFound is returned when a key has no stored value.  Callers treat it
// as "nothing persisted yet" rather than a failure.
var ErrNotFound = errors.New("not found")

// ErrCorrupt is returned when a stored value cannot be decoded.  The
// repositories clear such keys before returning it.
var ErrCorrupt = errors.New("corrupt value")
