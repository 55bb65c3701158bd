// Package dashboard keeps the gateway's copy of the student and teacher
// dashboards and reconciles it with the backend after every mutation.
//
// Reconciliation policy per mutation:
//
//	attendance mark         full overview refetch
//	correction request      optimistic prepend of the returned record
//	self-study submission   optimistic prepend of the returned record
//	teacher decision        remove from pending list, refetch at-risk
//	timetable slot          append the created slot
//	notifications read      flip the read flag of the sent ids
//
// Nothing is applied after a failed call, and nothing is applied once the
// dashboard was cleared (logout) while the call was in flight.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/classsync/internal/model"
	"github.com/iliyamo/classsync/internal/portal"
	"github.com/iliyamo/classsync/internal/repository"
	"github.com/iliyamo/classsync/internal/toast"
	"github.com/iliyamo/classsync/internal/utils"
)

var (
	ErrNotLoaded      = errors.New("dashboard is not loaded")
	ErrUnknownSubject = errors.New("subject is not on this dashboard")
	ErrNoSection      = errors.New("no section known for this student")
	ErrStale          = errors.New("dashboard was cleared while the request was in flight")
)

// StudentBackend is the part of the portal API the student dashboard uses.
type StudentBackend interface {
	StudentOverview(ctx context.Context, token, studentID string) (model.StudentOverview, error)
	StudentTimetable(ctx context.Context, token, section string) (model.WeeklyTimetable, error)
	CorrectionRequests(ctx context.Context, token, studentID string) ([]model.CorrectionRecord, error)
	SubmitCorrection(ctx context.Context, token string, body model.CorrectionRequestBody) (model.CorrectionRecord, error)
	SelfStudy(ctx context.Context, token, studentID string) ([]model.SelfStudySubmission, error)
	SubmitSelfStudy(ctx context.Context, token string, body model.SelfStudyBody) (model.SelfStudySubmission, error)
	StudentNotifications(ctx context.Context, token, studentID string) ([]model.Notification, error)
	MarkNotificationsRead(ctx context.Context, token string, ids []string) error
	SubjectHistory(ctx context.Context, token, studentID, subjectCode string) ([]model.HistoryEntry, error)
}

// StudentView is a snapshot of the student dashboard.
type StudentView struct {
	Overview      *model.StudentOverview      `json:"overview"`
	CurrentClass  *model.ScheduleEntry        `json:"currentClass"`
	MarkSubject   string                      `json:"markSubject"`
	Banner        string                      `json:"banner,omitempty"`
	Corrections   []model.CorrectionRequest   `json:"corrections"`
	SelfStudy     []model.SelfStudySubmission `json:"selfStudy"`
	Notifications []model.Notification        `json:"notifications"`
	UnreadCount   int                         `json:"unreadCount"`
	LoadedAt      *time.Time                  `json:"loadedAt,omitempty"`
}

// Student is the student dashboard.
type Student struct {
	Backend    StudentBackend
	Toasts     toast.Pusher
	Timetables *repository.TimetableRepo
	StaleAfter time.Duration
	Now        func() time.Time

	mu   sync.Mutex
	gen  uint64
	view StudentView
}

func NewStudent(backend StudentBackend, toasts toast.Pusher, timetables *repository.TimetableRepo) *Student {
	return &Student{Backend: backend, Toasts: toasts, Timetables: timetables}
}

func (s *Student) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// View returns a copy of the dashboard.
func (s *Student) View() StudentView {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.view
	if v.Overview != nil {
		o := *v.Overview
		v.Overview = &o
	}
	if v.CurrentClass != nil {
		c := *v.CurrentClass
		v.CurrentClass = &c
	}
	v.Corrections = append([]model.CorrectionRequest{}, v.Corrections...)
	v.SelfStudy = append([]model.SelfStudySubmission{}, v.SelfStudy...)
	v.Notifications = append([]model.Notification{}, v.Notifications...)
	v.UnreadCount = unread(v.Notifications)
	return v
}

// Clear drops all dashboard data.  Calls still in flight will not apply.
func (s *Student) Clear() {
	s.mu.Lock()
	s.gen++
	s.view = StudentView{}
	s.mu.Unlock()
}

func (s *Student) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Load fetches the overview, then correction requests, self-study
// submissions and notifications, in that order.  Only an overview failure
// is returned; the other lists keep their previous content when their
// fetch fails.
func (s *Student) Load(ctx context.Context, id model.Identity) error {
	gen := s.generation()

	ov, err := s.Backend.StudentOverview(ctx, id.Token, id.User.ID)
	if err != nil {
		log.Errorf("dashboard: student overview %s: %v", id.User.ID, err)
		return err
	}
	loadedAt := s.now()
	current, markSubject := classAt(ov, loadedAt)

	records, cerr := s.Backend.CorrectionRequests(ctx, id.Token, id.User.ID)
	if cerr != nil {
		log.Warnf("dashboard: correction requests %s: %v", id.User.ID, cerr)
	}
	studies, serr := s.Backend.SelfStudy(ctx, id.Token, id.User.ID)
	if serr != nil {
		log.Warnf("dashboard: self-study %s: %v", id.User.ID, serr)
	}
	notes, nerr := s.Backend.StudentNotifications(ctx, id.Token, id.User.ID)
	if nerr != nil {
		log.Warnf("dashboard: notifications %s: %v", id.User.ID, nerr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return ErrStale
	}
	s.view.Overview = &ov
	s.view.CurrentClass = current
	s.view.MarkSubject = markSubject
	s.view.LoadedAt = &loadedAt
	if cerr == nil {
		s.view.Corrections = make([]model.CorrectionRequest, 0, len(records))
		for _, r := range records {
			s.view.Corrections = append(s.view.Corrections, correctionRow(r))
		}
	}
	if serr == nil {
		s.view.SelfStudy = studies
	}
	if nerr == nil {
		s.view.Notifications = notes
	}
	return nil
}

// classAt returns the class running at t, if any, and the subject to mark:
// the running class's subject, otherwise the first subject.
func classAt(ov model.StudentOverview, t time.Time) (*model.ScheduleEntry, string) {
	hhmm := t.Format("15:04")
	for _, c := range ov.TodaySchedule {
		if c.Running(hhmm) {
			c := c
			return &c, c.SubjectCode
		}
	}
	if len(ov.Subjects) > 0 {
		return nil, ov.Subjects[0].SubjectCode
	}
	return nil, ""
}

// SetMarkSubject chooses the subject credited by the next scan when no
// class is running.
func (s *Student) SetMarkSubject(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view.Overview == nil {
		return ErrNotLoaded
	}
	if _, ok := s.view.Overview.FindSubject(code); !ok {
		return ErrUnknownSubject
	}
	s.view.MarkSubject = code
	return nil
}

// MarkLabel names the class a scan right now would be credited to: the
// running class, else the chosen subject, by name when known.
func (s *Student) MarkLabel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := s.view.MarkSubject
	if s.view.CurrentClass != nil {
		code = s.view.CurrentClass.SubjectCode
	}
	if s.view.Overview != nil {
		if subj, ok := s.view.Overview.FindSubject(code); ok && subj.SubjectName != "" {
			return subj.SubjectName
		}
	}
	return code
}

// AfterMark refetches the overview after a successful attendance mark and
// sets the banner.  A cancelled ctx or a failed refetch leaves the
// dashboard as it was.
func (s *Student) AfterMark(ctx context.Context, id model.Identity, label string) {
	gen := s.generation()
	ov, err := s.Backend.StudentOverview(ctx, id.Token, id.User.ID)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		log.Warnf("dashboard: overview refetch after mark: %v", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.view.Overview = &ov
	s.view.Banner = "Attendance marked for " + label + "."
}

// SubmitCorrection files an attendance correction request.  The subject
// defaults to the first one on the dashboard.
func (s *Student) SubmitCorrection(ctx context.Context, id model.Identity, form model.CorrectionForm) (model.CorrectionRequest, error) {
	if form.Type == "" {
		form.Type = model.CorrectionMedical
	}
	if err := utils.Validate(form, "Invalid correction request."); err != nil {
		s.Toasts.Push(model.ToastError, "Error", err.Error())
		return model.CorrectionRequest{}, err
	}

	gen := s.generation()
	subj, studentID, err := s.correctionSubject(id, form.SubjectCode)
	if err != nil {
		return model.CorrectionRequest{}, err
	}
	body := model.CorrectionRequestBody{
		StudentID: studentID,
		SubjectID: subj.SubjectID,
		Type:      form.Type,
		Reason:    form.Notes,
		DateFrom:  form.Date,
		DateTo:    form.Date,
	}
	rec, err := s.Backend.SubmitCorrection(ctx, id.Token, body)
	if err != nil {
		log.Errorf("dashboard: correction request %s: %v", studentID, err)
		s.Toasts.Push(model.ToastError, "Error", portal.Message(err, "Failed to submit correction request."))
		return model.CorrectionRequest{}, err
	}

	row := model.CorrectionRequest{
		ID:          rec.Key(),
		Type:        rec.Type,
		TypeLabel:   model.CorrectionLabel(rec.Type),
		SubjectCode: subj.SubjectCode,
		Date:        form.Date,
		Notes:       rec.Reason,
		Status:      rec.Status,
	}
	if row.Status == "" {
		row.Status = "Pending"
	}
	if !s.apply(gen, func() { s.view.Corrections = append([]model.CorrectionRequest{row}, s.view.Corrections...) }) {
		return row, ErrStale
	}
	s.Toasts.Push(model.ToastSuccess, "Request submitted", "Attendance correction request created.")
	return row, nil
}

func (s *Student) correctionSubject(id model.Identity, code string) (model.SubjectStat, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ov := s.view.Overview
	if ov == nil || len(ov.Subjects) == 0 {
		return model.SubjectStat{}, "", ErrNotLoaded
	}
	subj, ok := ov.FindSubject(code)
	if !ok {
		subj = ov.Subjects[0]
	}
	studentID := ov.Student.ID
	if studentID == "" {
		studentID = id.User.ID
	}
	return subj, studentID, nil
}

// SubmitSelfStudy sends a self-study claim.  Subject and date are required
// and checked before any call.
func (s *Student) SubmitSelfStudy(ctx context.Context, id model.Identity, form model.SelfStudyForm) (model.SelfStudySubmission, error) {
	if err := utils.Validate(form, "Please select subject and date for self‑study."); err != nil {
		s.Toasts.Push(model.ToastError, "Missing fields", err.Error())
		return model.SelfStudySubmission{}, err
	}

	gen := s.generation()
	studentID := id.User.ID
	s.mu.Lock()
	if s.view.Overview != nil && s.view.Overview.Student.ID != "" {
		studentID = s.view.Overview.Student.ID
	}
	s.mu.Unlock()

	created, err := s.Backend.SubmitSelfStudy(ctx, id.Token, model.SelfStudyBody{
		StudentID:   studentID,
		SubjectCode: form.SubjectCode,
		Date:        form.Date,
		Description: form.Description,
		FileURL:     form.FileURL,
	})
	if err != nil {
		log.Errorf("dashboard: self-study %s: %v", studentID, err)
		s.Toasts.Push(model.ToastError, "Error", portal.Message(err, "Failed to submit self‑study."))
		return model.SelfStudySubmission{}, err
	}

	row := model.SelfStudySubmission{
		Ref:         model.Ref{ID: created.Key()},
		SubjectCode: form.SubjectCode,
		Date:        form.Date,
		Description: form.Description,
		FileURL:     form.FileURL,
		Status:      created.Status,
	}
	if row.Status == "" {
		row.Status = model.StatusPending
	}
	if !s.apply(gen, func() { s.view.SelfStudy = append([]model.SelfStudySubmission{row}, s.view.SelfStudy...) }) {
		return row, ErrStale
	}
	s.Toasts.Push(model.ToastSuccess, "Submitted", "Self‑study submission sent to your teacher.")
	return row, nil
}

// MarkNotificationsRead marks every unread notification as read and
// returns how many were sent.  No call is made when none are unread.
func (s *Student) MarkNotificationsRead(ctx context.Context, id model.Identity) (int, error) {
	gen := s.generation()
	s.mu.Lock()
	var ids []string
	for _, n := range s.view.Notifications {
		if !n.IsRead {
			ids = append(ids, n.ID)
		}
	}
	s.mu.Unlock()
	if len(ids) == 0 {
		return 0, nil
	}

	if err := s.Backend.MarkNotificationsRead(ctx, id.Token, ids); err != nil {
		log.Errorf("dashboard: mark notifications read: %v", err)
		return 0, err
	}
	sent := make(map[string]bool, len(ids))
	for _, nid := range ids {
		sent[nid] = true
	}
	ok := s.apply(gen, func() {
		for i := range s.view.Notifications {
			if sent[s.view.Notifications[i].ID] {
				s.view.Notifications[i].IsRead = true
			}
		}
	})
	if !ok {
		return len(ids), ErrStale
	}
	return len(ids), nil
}

// SubjectHistory returns the per-class history of one subject.  A failed
// lookup shows as an empty history.
func (s *Student) SubjectHistory(ctx context.Context, id model.Identity, code string) []model.HistoryEntry {
	h, err := s.Backend.SubjectHistory(ctx, id.Token, id.User.ID, code)
	if err != nil {
		log.Warnf("dashboard: history %s/%s: %v", id.User.ID, code, err)
		return []model.HistoryEntry{}
	}
	if h == nil {
		h = []model.HistoryEntry{}
	}
	return h
}

// Timetable returns the weekly timetable of the student's section, served
// from the local cache when the backend cannot be reached.
func (s *Student) Timetable(ctx context.Context, id model.Identity) (WeeklyTimetable, error) {
	section := id.User.Section
	s.mu.Lock()
	if s.view.Overview != nil && s.view.Overview.Student.Section != "" {
		section = s.view.Overview.Student.Section
	}
	s.mu.Unlock()
	if section == "" {
		return WeeklyTimetable{}, ErrNoSection
	}
	fetch := func(ctx context.Context, section string) (model.WeeklyTimetable, error) {
		return s.Backend.StudentTimetable(ctx, id.Token, section)
	}
	return loadTimetable(ctx, section, fetch, s.Timetables, s.Toasts, s.StaleAfter, s.Now), nil
}

func (s *Student) apply(gen uint64, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	fn()
	return true
}

func unread(ns []model.Notification) int {
	n := 0
	for _, x := range ns {
		if !x.IsRead {
			n++
		}
	}
	return n
}

func correctionRow(r model.CorrectionRecord) model.CorrectionRequest {
	code := r.SubjectCode
	if r.Subject != nil && r.Subject.Code != "" {
		code = r.Subject.Code
	}
	date := dayOf(r.DateFrom)
	if date == "" {
		date = dayOf(r.CreatedAt)
	}
	status := r.Status
	if status == "" {
		status = "Pending"
	}
	return model.CorrectionRequest{
		ID:          r.Key(),
		Type:        r.Type,
		TypeLabel:   model.CorrectionLabel(r.Type),
		SubjectCode: code,
		Date:        date,
		Notes:       r.Reason,
		Status:      status,
	}
}

// dayOf returns the UTC calendar day (YYYY-MM-DD) of an ISO timestamp.
func dayOf(ts string) string {
	if ts == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return t.UTC().Format("2006-01-02")
	}
	if len(ts) >= 10 {
		return ts[:10]
	}
	return ""
}
