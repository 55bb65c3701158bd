// Package classsession is the teacher-side session lifecycle:
// Idle -> Starting -> Active -> Ended, with Ended returning to Idle only
// when the start form is opened again (Reset).
package classsession

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/skip2/go-qrcode"

	"github.com/iliyamo/classsync/internal/geo"
	"github.com/iliyamo/classsync/internal/model"
	"github.com/iliyamo/classsync/internal/portal"
	q "github.com/iliyamo/classsync/internal/queue"
	"github.com/iliyamo/classsync/internal/service"
	"github.com/iliyamo/classsync/internal/toast"
	"github.com/iliyamo/classsync/internal/utils"
)

// State of the controller.
type State string

const (
	Idle     State = "idle"
	Starting State = "starting"
	Active   State = "active"
	Ended    State = "ended"
)

var (
	ErrNotActive      = errors.New("no active session")
	ErrInProgress     = errors.New("a session is already starting or active")
	ErrNotIdle        = errors.New("open the start form first")
	ErrUnknownSubject = errors.New("subject is not one of your subjects")
	ErrUnknownSlot    = errors.New("slot is not one of today's classes")
)

// ErrStale is returned by a Start whose controller was cleared while the
// backend call ran.
var ErrStale = errors.New("session state was cleared while the call ran")

// DefaultExpectedTotal is the roster size shown until the backend supplies one.
const DefaultExpectedTotal = 60

// Backend is the part of the portal API the controller uses.
type Backend interface {
	StartSession(ctx context.Context, token string, req model.StartSessionRequest) (model.StartedSession, error)
	LiveRoster(ctx context.Context, token, sessionID string) (model.LiveRoster, error)
	EndSession(ctx context.Context, token, sessionID string) error
	ExportSession(ctx context.Context, token, sessionID string) (*portal.Download, error)
}

// Catalog supplies the teacher's subjects and today's slots.  Start only
// accepts a subject and slot found here.
type Catalog interface {
	Subjects() []model.TeacherSubject
	TodaySlots() []model.ScheduleEntry
}

// Snapshot is a copy of the controller state.
type Snapshot struct {
	State   State               `json:"state"`
	Session *model.ClassSession `json:"session,omitempty"`
}

// Controller owns the client copy of one teacher's class session.
type Controller struct {
	Backend       Backend
	Catalog       Catalog
	Toasts        toast.Pusher
	Events        service.Publisher
	GeoTimeout    time.Duration
	ExpectedTotal int

	mu      sync.Mutex
	state   State
	session *model.ClassSession
	gen     uint64 // bumped by Clear
}

func NewController(backend Backend, catalog Catalog, toasts toast.Pusher, events service.Publisher) *Controller {
	return &Controller{
		Backend:       backend,
		Catalog:       catalog,
		Toasts:        toasts,
		Events:        events,
		GeoTimeout:    geo.DefaultTimeout,
		ExpectedTotal: DefaultExpectedTotal,
		state:         Idle,
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{State: c.state, Session: copySession(c.session)}
}

func copySession(s *model.ClassSession) *model.ClassSession {
	if s == nil {
		return nil
	}
	cp := *s
	cp.PresentStudents = append([]model.PresentStudent{}, s.PresentStudents...)
	return &cp
}

// Start creates a session for the chosen subject and slot.  The teacher's
// location is attached when loc produces one within the bound and
// silently omitted otherwise.  Any failure returns the controller to Idle.
func (c *Controller) Start(ctx context.Context, id model.Identity, form model.StartSessionForm, loc geo.Locator) (model.ClassSession, error) {
	if err := utils.Validate(form, "Select a subject and a time slot."); err != nil {
		return model.ClassSession{}, err
	}
	subj, slot, err := c.lookup(form)
	if err != nil {
		return model.ClassSession{}, err
	}

	c.mu.Lock()
	switch c.state {
	case Starting, Active:
		c.mu.Unlock()
		return model.ClassSession{}, ErrInProgress
	case Ended:
		c.mu.Unlock()
		return model.ClassSession{}, ErrNotIdle
	}
	c.state, c.session = Starting, nil
	gen := c.gen
	c.mu.Unlock()

	req := model.StartSessionRequest{SubjectID: subj.Key(), Section: slot.Section, RoomNumber: slot.Room}
	if pos, err := geo.LocateWithin(ctx, loc, c.GeoTimeout); err == nil {
		req.Lat, req.Lng = &pos.Lat, &pos.Lng
	} else {
		log.Debugf("classsession: starting without location: %v", err)
	}

	started, err := c.Backend.StartSession(ctx, id.Token, req)
	if err != nil {
		if !c.setStateIf(gen, Idle) {
			log.Infof("classsession: start %s/%s failed after clear: %v", subj.SubjectCode, slot.ID, err)
			return model.ClassSession{}, ErrStale
		}
		log.Errorf("classsession: start %s/%s: %v", subj.SubjectCode, slot.ID, err)
		c.Toasts.Push(model.ToastError, "", "Failed to start session.")
		return model.ClassSession{}, err
	}

	sess := model.ClassSession{
		ID:              started.Key(),
		SubjectCode:     subj.SubjectCode,
		SubjectName:     subj.SubjectName,
		Start:           slot.Start,
		End:             slot.End,
		Room:            slot.Room,
		QRToken:         started.SessionCode,
		PresentCount:    len(started.PresentStudents),
		TotalExpected:   c.ExpectedTotal,
		PresentStudents: []model.PresentStudent{},
	}
	c.mu.Lock()
	if c.gen != gen {
		// logged out while the call ran; the session belongs to nobody now
		c.mu.Unlock()
		log.Warnf("classsession: dropping session %s started before clear", sess.ID)
		return model.ClassSession{}, ErrStale
	}
	c.state, c.session = Active, copySession(&sess)
	c.mu.Unlock()

	log.Infof("classsession: %s started %s (%s) in %s", id.User.ID, sess.ID, sess.SubjectCode, sess.Room)
	c.Toasts.Push(model.ToastSuccess, "", "Session started and QR generated.")
	service.Emit(ctx, c.Events, q.NewSessionEvent(q.SessionStarted, id.User.ID, sess.ID, sess.SubjectCode))
	return sess, nil
}

func (c *Controller) lookup(form model.StartSessionForm) (model.TeacherSubject, model.ScheduleEntry, error) {
	var (
		subj  model.TeacherSubject
		slot  model.ScheduleEntry
		found bool
	)
	for _, s := range c.Catalog.Subjects() {
		if s.SubjectCode == form.SubjectCode {
			subj, found = s, true
			break
		}
	}
	if !found {
		return subj, slot, ErrUnknownSubject
	}
	found = false
	for _, s := range c.Catalog.TodaySlots() {
		if s.ID == form.SlotID {
			slot, found = s, true
			break
		}
	}
	if !found {
		return subj, slot, ErrUnknownSlot
	}
	return subj, slot, nil
}

// setStateIf sets s unless Clear ran since gen was read.
func (c *Controller) setStateIf(gen uint64, s State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.state = s
	return true
}

// active returns a copy of the active session.
func (c *Controller) active() (model.ClassSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Active || c.session == nil {
		return model.ClassSession{}, ErrNotActive
	}
	return *copySession(c.session), nil
}

// RefreshRoster overwrites the local present count and list with the
// backend's.  It runs only when asked; there is no polling.  On failure
// the local copies are kept.
func (c *Controller) RefreshRoster(ctx context.Context, id model.Identity) (model.ClassSession, error) {
	sess, err := c.active()
	if err != nil {
		return model.ClassSession{}, err
	}
	roster, err := c.Backend.LiveRoster(ctx, id.Token, sess.ID)
	if err != nil {
		log.Errorf("classsession: refresh %s: %v", sess.ID, err)
		c.Toasts.Push(model.ToastError, "", "Failed to refresh live list.")
		return sess, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Active || c.session == nil || c.session.ID != sess.ID {
		// ended or replaced while the call ran
		return sess, ErrNotActive
	}
	c.session.PresentCount = roster.PresentCount
	c.session.PresentStudents = append([]model.PresentStudent{}, roster.PresentStudents...)
	return *copySession(c.session), nil
}

// Export opens the roster export of the active session.  The caller
// streams and closes the download.
func (c *Controller) Export(ctx context.Context, id model.Identity) (*portal.Download, error) {
	sess, err := c.active()
	if err != nil {
		return nil, err
	}
	return c.ExportSession(ctx, id, sess.ID)
}

// ExportSession opens the roster export of any session, e.g. a recent one.
func (c *Controller) ExportSession(ctx context.Context, id model.Identity, sessionID string) (*portal.Download, error) {
	dl, err := c.Backend.ExportSession(ctx, id.Token, sessionID)
	if err != nil {
		log.Errorf("classsession: export %s: %v", sessionID, err)
		return nil, err
	}
	return dl, nil
}

// QRCode renders the active session token as a PNG of size pixels.
func (c *Controller) QRCode(size int) ([]byte, error) {
	sess, err := c.active()
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(sess.QRToken, qrcode.Medium, size)
}

// End closes the active session.  The backend is told first; the local
// transition to Ended happens whatever it answers.  When the call fails
// the teacher is told the backend still considers the session open.
func (c *Controller) End(ctx context.Context, id model.Identity) error {
	sess, err := c.active()
	if err != nil {
		return err
	}
	callErr := c.Backend.EndSession(ctx, id.Token, sess.ID)

	c.mu.Lock()
	if c.session != nil && c.session.ID == sess.ID {
		c.state, c.session = Ended, nil
	}
	c.mu.Unlock()

	if callErr != nil {
		log.Warnf("classsession: end %s not acknowledged by backend: %v", sess.ID, callErr)
		c.Toasts.Push(model.ToastInfo, "Session ended", "Session ended locally; the server was not notified.")
		return nil
	}
	log.Infof("classsession: %s ended %s", id.User.ID, sess.ID)
	c.Toasts.Push(model.ToastSuccess, "", "Session ended.")
	service.Emit(ctx, c.Events, q.NewSessionEvent(q.SessionEnded, id.User.ID, sess.ID, sess.SubjectCode))
	return nil
}

// Reset returns an Ended (or Idle) controller to Idle.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Starting || c.state == Active {
		return ErrInProgress
	}
	c.state, c.session = Idle, nil
	return nil
}

// Clear drops all state, e.g. on logout.  It does not contact the backend.
// A Start still waiting on the backend finds the controller cleared and
// returns ErrStale without applying its result.
func (c *Controller) Clear() {
	c.mu.Lock()
	c.state, c.session = Idle, nil
	c.gen++
	c.mu.Unlock()
}
