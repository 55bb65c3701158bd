package attendance

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/classsync/internal/geo"
	"github.com/iliyamo/classsync/internal/model"
	"github.com/iliyamo/classsync/internal/portal"
	"github.com/iliyamo/classsync/internal/portaltest"
	q "github.com/iliyamo/classsync/internal/queue"
	"github.com/iliyamo/classsync/internal/scan"
	"github.com/iliyamo/classsync/internal/service"
	"github.com/iliyamo/classsync/internal/toast"
)

const markPath = "/student/mark-attendance"

type fakeReconciler struct {
	mu     sync.Mutex
	labels []string
}

func (f *fakeReconciler) AfterMark(_ context.Context, _ model.Identity, label string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.labels = append(f.labels, label)
}

func (f *fakeReconciler) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.labels...)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []q.ActivityEvent
}

func (r *eventRecorder) Publish(_ context.Context, ev q.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

type fixture struct {
	be     *portaltest.Backend
	sub    *Submitter
	toasts *toast.Queue
	rec    *fakeReconciler
	events *eventRecorder
	id     model.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	be := portaltest.New(t)
	client := portal.New(be.URL(), 5*time.Second)
	res, err := client.Login(context.Background(), model.RoleStudent, portaltest.StudentAdmNo, portaltest.StudentPassword)
	require.NoError(t, err)

	tq := toast.New(time.Minute)
	t.Cleanup(tq.Close)
	rec := &fakeReconciler{}
	events := &eventRecorder{}
	return &fixture{
		be:     be,
		sub:    NewSubmitter(client, tq, rec, events, 50*time.Millisecond),
		toasts: tq,
		rec:    rec,
		events: events,
		id:     model.Identity{Role: model.RoleStudent, Token: res.Token, User: res.User},
	}
}

func markBody(t *testing.T, r portaltest.Request) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(r.Body, &m))
	return m
}

func TestSameTokenTwiceSendsOnePost(t *testing.T) {
	f := newFixture(t)
	surface := scan.NewSurface(context.Background(), f.id.User.ID)

	first := f.sub.Scan(surface, f.id, "T123", geo.Unavailable{}, "Data Structures")
	second := f.sub.Scan(surface, f.id, "T123", geo.Unavailable{}, "Data Structures")

	assert.Equal(t, Marked, first.Outcome)
	assert.Equal(t, Duplicate, second.Outcome)

	reqs := f.be.RequestsTo(http.MethodPost, markPath)
	require.Len(t, reqs, 1)
	assert.Equal(t, "T123", markBody(t, reqs[0])["sessionCode"])
	assert.Equal(t, "Bearer "+f.id.Token, reqs[0].Authorization)

	assert.Equal(t, []string{"Data Structures"}, f.rec.calls())
	toasts := f.toasts.List()
	require.Len(t, toasts, 1)
	assert.Equal(t, model.ToastSuccess, toasts[0].Type)
	assert.Equal(t, "Attendance marked", toasts[0].Title)
	assert.Equal(t, "Data Structures marked as present.", toasts[0].Message)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, q.AttendanceMarked, f.events.events[0].Type)
	assert.Equal(t, "T123", f.events.events[0].SessionCode)
}

func TestConcurrentScanIsDropped(t *testing.T) {
	f := newFixture(t)
	surface := scan.NewSurface(context.Background(), f.id.User.ID)
	arrived, release := f.be.Hold(http.MethodPost, markPath)

	done := make(chan Result, 1)
	go func() { done <- f.sub.Scan(surface, f.id, "T123", geo.Unavailable{}, "") }()
	<-arrived

	// a different token while the first is in flight is dropped, not queued
	busy := f.sub.Scan(surface, f.id, "T999", geo.Unavailable{}, "")
	assert.Equal(t, Busy, busy.Outcome)

	release()
	assert.Equal(t, Marked, (<-done).Outcome)
	assert.Equal(t, 1, f.be.Count(http.MethodPost, markPath))

	// the dropped token was never consumed by the guard
	assert.True(t, surface.ShouldProcess("T999"))
}

func TestRestartAcceptsTokenAgain(t *testing.T) {
	f := newFixture(t)
	surface := scan.NewSurface(context.Background(), f.id.User.ID)

	require.Equal(t, Marked, f.sub.Scan(surface, f.id, "T123", geo.Unavailable{}, "").Outcome)
	require.Equal(t, Duplicate, f.sub.Scan(surface, f.id, "T123", geo.Unavailable{}, "").Outcome)
	require.NoError(t, surface.Restart())

	// the backend refuses the second mark; the point is that it was sent
	res := f.sub.Scan(surface, f.id, "T123", geo.Unavailable{}, "")
	assert.Equal(t, Failed, res.Outcome)
	assert.Equal(t, 2, f.be.Count(http.MethodPost, markPath))
	assert.Equal(t, "Attendance already marked for this session", res.Message)
}

func TestLocation(t *testing.T) {
	blocking := geo.LocatorFunc(func(ctx context.Context, _ geo.Options) (model.Position, error) {
		<-ctx.Done()
		return model.Position{}, ctx.Err()
	})

	tests := []struct {
		name         string
		loc          geo.Locator
		withLocation bool
	}{
		{name: "fix", loc: geo.Static{Lat: 12.9237, Lng: 77.4987}, withLocation: true},
		{name: "no capability", loc: geo.Unavailable{}, withLocation: false},
		{name: "timeout", loc: blocking, withLocation: false},
		{name: "nil locator", loc: nil, withLocation: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			surface := scan.NewSurface(context.Background(), f.id.User.ID)

			res := f.sub.Scan(surface, f.id, portaltest.SeedSessionCode, tt.loc, "")
			require.Equal(t, Marked, res.Outcome)
			assert.Equal(t, tt.withLocation, res.WithLocation)

			body := markBody(t, f.be.RequestsTo(http.MethodPost, markPath)[0])
			_, hasLat := body["lat"]
			_, hasLng := body["lng"]
			assert.Equal(t, tt.withLocation, hasLat)
			assert.Equal(t, hasLat, hasLng, "lat and lng travel together")
			if tt.withLocation {
				assert.InDelta(t, 12.9237, body["lat"], 1e-9)
			}
		})
	}
}

func TestFailures(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(*portaltest.Backend)
		code    string
		message string
	}{
		{name: "server message", code: "BOGUS", message: "Invalid or expired session code"},
		{name: "server without message", code: "T123", message: "Failed to mark attendance.",
			prepare: func(be *portaltest.Backend) { be.Fail(http.MethodPost, markPath, http.StatusInternalServerError, "") }},
		{name: "network down", code: "T123", message: "Failed to mark attendance.",
			prepare: func(be *portaltest.Backend) { be.Close() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.prepare != nil {
				tt.prepare(f.be)
			}
			surface := scan.NewSurface(context.Background(), f.id.User.ID)

			res := f.sub.Scan(surface, f.id, tt.code, geo.Unavailable{}, "")
			assert.Equal(t, Failed, res.Outcome)
			assert.Error(t, res.Err)
			assert.Equal(t, tt.message, res.Message)

			assert.Empty(t, f.rec.calls(), "no refetch after a failure")
			assert.Empty(t, f.events.events)
			toasts := f.toasts.List()
			require.Len(t, toasts, 1)
			assert.Equal(t, model.ToastError, toasts[0].Type)
			assert.Equal(t, "Error", toasts[0].Title)
			assert.Equal(t, tt.message, toasts[0].Message)

			assert.False(t, surface.Busy(), "in-flight flag is cleared whatever the outcome")
		})
	}
}

func TestCloseSkipsCompletion(t *testing.T) {
	f := newFixture(t)
	surface := scan.NewSurface(context.Background(), f.id.User.ID)
	arrived, release := f.be.Hold(http.MethodPost, markPath)
	defer release()

	done := make(chan Result, 1)
	go func() { done <- f.sub.Scan(surface, f.id, "T123", geo.Unavailable{}, "") }()
	<-arrived
	surface.Close()

	select {
	case res := <-done:
		assert.Equal(t, Cancelled, res.Outcome)
		assert.ErrorIs(t, res.Err, scan.ErrSurfaceClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("scan did not return after surface close")
	}
	assert.Empty(t, f.toasts.List())
	assert.Empty(t, f.rec.calls())
	assert.Empty(t, f.events.events)

	assert.Equal(t, Cancelled, f.sub.Scan(surface, f.id, "T124", geo.Unavailable{}, "").Outcome)
}

func TestEmptyValueIgnored(t *testing.T) {
	f := newFixture(t)
	surface := scan.NewSurface(context.Background(), f.id.User.ID)
	assert.Equal(t, Ignored, f.sub.Scan(surface, f.id, "  ", geo.Unavailable{}, "").Outcome)
	assert.Empty(t, f.be.RequestsTo(http.MethodPost, markPath))
}

// silentBroker accepts TCP connections and never speaks AMQP.
func silentBroker(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return "amqp://guest:guest@" + ln.Addr().String() + "/"
}

func TestHungBrokerDoesNotHoldSurface(t *testing.T) {
	f := newFixture(t)
	pub := service.NewAMQPPublisher(silentBroker(t))
	pub.SendTimeout = time.Second
	t.Cleanup(pub.Close)
	f.sub.Events = pub
	surface := scan.NewSurface(context.Background(), f.id.User.ID)

	began := time.Now()
	first := f.sub.Scan(surface, f.id, "T123", geo.Unavailable{}, "")
	require.Equal(t, Marked, first.Outcome)
	assert.Less(t, time.Since(began), 500*time.Millisecond, "the event is delivered in the background")
	assert.False(t, surface.Busy())

	// the next distinct code is submitted, not dropped as busy
	second := f.sub.Scan(surface, f.id, "T999", geo.Unavailable{}, "")
	assert.Equal(t, Failed, second.Outcome)
	assert.Equal(t, 2, f.be.Count(http.MethodPost, markPath))
}
