// Package portaltest runs an in-process fake of the portal backend.  It
// serves the same REST routes as the real backend, signs real HS256
// tokens, checks bcrypt passwords and records every request so tests can
// assert on the traffic the gateway produced.
package portaltest

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/classsync/internal/middleware"
	"github.com/iliyamo/classsync/internal/model"
)

// Seeded credentials and identifiers.
const (
	Secret = "portaltest-secret"

	StudentID       = "stu-1"
	StudentAdmNo    = "1RV22CS001"
	StudentPassword = "student-pass"
	StudentSection  = "3A"

	TeacherID       = "tch-1"
	TeacherEmail    = "meera@college.edu"
	TeacherPassword = "teacher-pass"

	// SeedSessionCode is the token of a session that is already running.
	SeedSessionCode = "T123"
	SeedSessionID   = "sess-seed"

	// MondaySlotID is the existing 3A Monday 09:00-10:00 slot.
	MondaySlotID = "tt-3a-mon-0900"
	// TodaySlotID is today's CS101 class in C-305.
	TodaySlotID = "slot-1"
)

// Request is one recorded request.
type Request struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	Body          []byte
}

type failure struct {
	status int
	body   any
}

// Backend is the fake.  Its exported fields hold the data it serves; tests
// may change them before issuing requests.
type Backend struct {
	Server *httptest.Server

	mu       sync.Mutex
	requests []Request
	failures map[string]failure
	holds    map[string]chan struct{}
	arrived  map[string]chan struct{}
	seq      int

	students map[string]account
	teachers map[string]account

	StudentOverview model.StudentOverview
	TeacherOverview model.TeacherOverview
	Timetables      map[string]model.WeeklyTimetable
	Slots           []model.TimetableSlot
	Corrections     []model.CorrectionRecord
	SelfStudies     []model.SelfStudySubmission
	Notifications   []model.Notification
	TeacherNotes    []model.Notification
	AtRisk          model.AtRisk
	ClassViews      map[string]model.ClassView
	History         map[string][]model.HistoryEntry
	Sessions        map[string]*Session
}

// Session is a class session as the fake stores it.
type Session struct {
	ID        string
	Code      string
	SubjectID string
	Section   string
	Room      string
	Lat, Lng  *float64
	Present   []model.PresentStudent
	Ended     bool
}

type account struct {
	user model.User
	hash []byte
}

// New starts a fake backend with the default seed.  It is closed with the
// test.
func New(tb interface {
	Helper()
	Cleanup(func())
}) *Backend {
	tb.Helper()
	b := &Backend{
		failures: map[string]failure{},
		holds:    map[string]chan struct{}{},
		arrived:  map[string]chan struct{}{},
	}
	b.seed()
	b.Server = httptest.NewServer(b.routes())
	tb.Cleanup(b.Close)
	return b
}

// URL is the base URL of the fake.
func (b *Backend) URL() string { return b.Server.URL }

// Close stops the server.  Calls made afterwards fail at the transport
// level.
func (b *Backend) Close() {
	b.mu.Lock()
	for k, ch := range b.holds {
		close(ch)
		delete(b.holds, k)
	}
	b.mu.Unlock()
	b.Server.Close()
}

// Fail makes every request to method+path answer status with
// {"error": msg}.  An empty msg answers an empty JSON object.
func (b *Backend) Fail(method, path string, status int, msg string) {
	body := echo.Map{}
	if msg != "" {
		body["error"] = msg
	}
	b.FailWith(method, path, status, body)
}

// FailWith is Fail with an arbitrary JSON body.
func (b *Backend) FailWith(method, path string, status int, body any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[method+" "+path] = failure{status: status, body: body}
}

// Recover removes a failure set by Fail.
func (b *Backend) Recover(method, path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failures, method+" "+path)
}

// Hold blocks requests to method+path until the returned release func is
// called.  Arrived is closed once the first held request reached the fake.
func (b *Backend) Hold(method, path string) (arrived <-chan struct{}, release func()) {
	key := method + " " + path
	gate := make(chan struct{})
	seen := make(chan struct{})
	b.mu.Lock()
	b.holds[key] = gate
	b.arrived[key] = seen
	b.mu.Unlock()
	var once sync.Once
	return seen, func() {
		once.Do(func() {
			b.mu.Lock()
			if b.holds[key] == gate {
				delete(b.holds, key)
				close(gate)
			}
			b.mu.Unlock()
		})
	}
}

// Requests returns a copy of everything recorded so far.
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

// RequestsTo returns the recorded requests for method+path.
func (b *Backend) RequestsTo(method, path string) []Request {
	var out []Request
	for _, r := range b.Requests() {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// Count returns the number of recorded requests for method+path.
func (b *Backend) Count(method, path string) int { return len(b.RequestsTo(method, path)) }

// Session returns the stored session with the given id.
func (b *Backend) Session(id string) (Session, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.Sessions[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// record captures the request and applies Fail/Hold before the handler.
func (b *Backend) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		r := c.Request()
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		key := r.Method + " " + r.URL.Path

		b.mu.Lock()
		b.requests = append(b.requests, Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			Body:          body,
		})
		f, failing := b.failures[key]
		gate := b.holds[key]
		if seen, ok := b.arrived[key]; ok {
			close(seen)
			delete(b.arrived, key)
		}
		b.mu.Unlock()

		if gate != nil {
			if err := wait(r.Context(), gate); err != nil {
				return err
			}
		}
		if failing {
			return c.JSON(f.status, f.body)
		}
		return next(c)
	}
}

func wait(ctx context.Context, gate <-chan struct{}) error {
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Backend) nextID(prefix string) string {
	b.seq++
	return prefix + "-" + itoa(b.seq)
}

func hash(pw string) []byte {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return h
}

func (b *Backend) routes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(b.record)

	e.POST("/auth/login/:role", b.login)

	st := e.Group("/student", middleware.BearerAuth(Secret), middleware.RequireRole(model.RoleStudent))
	st.POST("/mark-attendance", b.markAttendance)
	st.GET("/overview/:id", b.studentOverview)
	st.GET("/timetable/:section", b.studentTimetable)
	st.GET("/attendance-requests/:id", b.studentCorrections)
	st.POST("/attendance-request", b.createCorrection)
	st.GET("/self-study/:id", b.studentSelfStudy)
	st.POST("/self-study", b.createSelfStudy)
	st.GET("/notifications/:id", b.studentNotifications)
	st.PATCH("/notifications/mark-read", b.markRead)
	st.GET("/subject-history/:id/:code", b.subjectHistory)

	te := e.Group("/teacher", middleware.BearerAuth(Secret), middleware.RequireRole(model.RoleTeacher))
	te.GET("/overview/:id", b.teacherOverview)
	te.GET("/at-risk/:id", b.atRisk)
	te.GET("/requests/:id", b.teacherRequests)
	te.POST("/requests/:id/decision", b.decideRequest)
	te.GET("/self-study/:id", b.teacherSelfStudy)
	te.POST("/self-study/:id/decision", b.decideSelfStudy)
	te.GET("/notifications/:id", b.teacherNotifications)
	te.GET("/timetable/:id", b.teacherTimetable)
	te.POST("/timetable/slot", b.createSlot)
	te.GET("/subject-attendance/:id/:code", b.classView)
	te.POST("/start-session", b.startSession)
	te.GET("/session/:id", b.liveRoster)
	te.GET("/session/:id/export", b.exportSession)
	te.POST("/session/:id/end", b.endSession)
	return e
}
