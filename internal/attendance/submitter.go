// Package attendance turns a scanned session token plus an optional device
// location into one mark-attendance request.
package attendance

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/classsync/internal/geo"
	"github.com/iliyamo/classsync/internal/metrics"
	"github.com/iliyamo/classsync/internal/model"
	"github.com/iliyamo/classsync/internal/portal"
	q "github.com/iliyamo/classsync/internal/queue"
	"github.com/iliyamo/classsync/internal/scan"
	"github.com/iliyamo/classsync/internal/service"
	"github.com/iliyamo/classsync/internal/toast"
)

// Outcome of one scan event.
type Outcome string

const (
	Marked    Outcome = "marked"
	Duplicate Outcome = "duplicate" // token already consumed on this surface
	Busy      Outcome = "busy"      // dropped, a submission was in flight
	Failed    Outcome = "failed"
	Cancelled Outcome = "cancelled" // surface closed before completion
	Ignored   Outcome = "ignored"   // empty scan value
)

// Result describes what a scan event did.
type Result struct {
	Outcome      Outcome   `json:"outcome"`
	SessionCode  string    `json:"sessionCode,omitempty"`
	WithLocation bool      `json:"withLocation"`
	Ack          model.Ack `json:"ack"`
	Message      string    `json:"message,omitempty"`
	Err          error     `json:"-"`
}

// Backend is the mark-attendance call.
type Backend interface {
	MarkAttendance(ctx context.Context, token string, sub model.AttendanceSubmission) (model.Ack, error)
}

// Reconciler brings dependent state back in sync after a successful mark.
// It performs a full refetch; it is never called after a failure.
type Reconciler interface {
	AfterMark(ctx context.Context, id model.Identity, label string)
}

// Submitter orchestrates location acquisition and the mark request.
type Submitter struct {
	Backend    Backend
	Toasts     toast.Pusher
	Reconciler Reconciler
	Events     service.Publisher
	GeoTimeout time.Duration
}

func NewSubmitter(backend Backend, toasts toast.Pusher, rec Reconciler, events service.Publisher, geoTimeout time.Duration) *Submitter {
	if geoTimeout <= 0 {
		geoTimeout = geo.DefaultTimeout
	}
	return &Submitter{Backend: backend, Toasts: toasts, Reconciler: rec, Events: events, GeoTimeout: geoTimeout}
}

// Scan handles one scanner emission on surface.  label names the class in
// the success toast; the session code is used when it is empty.  Work runs
// under the surface's context, so closing the surface aborts it and skips
// every completion effect.
func (s *Submitter) Scan(surface *scan.Surface, id model.Identity, raw string, loc geo.Locator, label string) Result {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Result{Outcome: Ignored}
	}
	if !surface.Begin() {
		return s.count(Result{Outcome: Busy, SessionCode: raw})
	}
	defer surface.Done()

	if !surface.ShouldProcess(raw) {
		if surface.Closed() {
			return s.count(Result{Outcome: Cancelled, SessionCode: raw, Err: scan.ErrSurfaceClosed})
		}
		return s.count(Result{Outcome: Duplicate, SessionCode: raw})
	}
	if label == "" {
		label = raw
	}
	return s.count(s.mark(surface.Context(), id, raw, loc, label))
}

func (s *Submitter) count(r Result) Result {
	metrics.Scans.WithLabelValues(string(r.Outcome)).Inc()
	return r
}

func (s *Submitter) mark(ctx context.Context, id model.Identity, code string, loc geo.Locator, label string) Result {
	res := Result{SessionCode: code}

	pos, err := geo.LocateWithin(ctx, loc, s.GeoTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return cancelled(res, ctx.Err())
		}
		// no fix is not an error; submit without coordinates
		log.Infof("attendance: no location for %s (%v); submitting without coordinates", code, err)
	}

	sub := model.NewSubmission(id.User.ID, code, pos)
	res.WithLocation = sub.HasLocation()
	if res.WithLocation {
		metrics.Submissions.WithLabelValues("with").Inc()
	} else {
		metrics.Submissions.WithLabelValues("without").Inc()
	}

	ack, err := s.Backend.MarkAttendance(ctx, id.Token, sub)
	if ctx.Err() != nil {
		return cancelled(res, ctx.Err())
	}
	if err != nil {
		res.Outcome, res.Err = Failed, err
		res.Message = portal.Message(err, "Failed to mark attendance.")
		log.Errorf("attendance: mark %s for %s: %v", code, id.User.ID, err)
		s.Toasts.Push(model.ToastError, "Error", res.Message)
		return res
	}

	res.Outcome, res.Ack = Marked, ack
	res.Message = label + " marked as present."
	if s.Reconciler != nil {
		s.Reconciler.AfterMark(ctx, id, label)
	}
	if ctx.Err() != nil {
		return cancelled(res, ctx.Err())
	}
	s.Toasts.Push(model.ToastSuccess, "Attendance marked", res.Message)
	service.Emit(ctx, s.Events, q.NewAttendanceMarked(id.User.ID, code, res.WithLocation))
	log.Infof("attendance: %s marked %s (location=%t)", id.User.ID, code, res.WithLocation)
	return res
}

func cancelled(res Result, err error) Result {
	if errors.Is(err, context.Canceled) {
		err = scan.ErrSurfaceClosed
	}
	res.Outcome, res.Err, res.Message = Cancelled, err, ""
	return res
}
