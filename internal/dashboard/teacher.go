package dashboard

import (
	"context"
	"errors"
	"sync"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/classsync/internal/model"
	"github.com/iliyamo/classsync/internal/portal"
	"github.com/iliyamo/classsync/internal/toast"
	"github.com/iliyamo/classsync/internal/utils"
)

// AtRiskThreshold is the attendance percentage below which the backend
// lists a student as at risk.
const AtRiskThreshold = 75

var ErrNotPending = errors.New("item is not in the pending list")

// TeacherBackend is the part of the portal API the teacher dashboard uses.
type TeacherBackend interface {
	TeacherOverview(ctx context.Context, token, teacherID string) (model.TeacherOverview, error)
	AtRisk(ctx context.Context, token, teacherID string, threshold int) (model.AtRisk, error)
	TeacherRequests(ctx context.Context, token, teacherID string) ([]model.CorrectionRecord, error)
	TeacherSelfStudy(ctx context.Context, token, teacherID string) ([]model.SelfStudySubmission, error)
	TeacherNotifications(ctx context.Context, token, teacherID string) ([]model.Notification, error)
	TeacherTimetable(ctx context.Context, token, teacherID string) ([]model.TimetableSlot, error)
	ClassView(ctx context.Context, token, teacherID, subjectCode string) (model.ClassView, error)
	CreateSlot(ctx context.Context, token string, req model.SlotRequest) (model.TimetableSlot, error)
	DecideRequest(ctx context.Context, token, requestID string, d model.Decision) error
	DecideSelfStudy(ctx context.Context, token, submissionID string, d model.Decision) error
}

// TeacherView is a snapshot of the teacher dashboard.
type TeacherView struct {
	Overview      *model.TeacherOverview      `json:"overview"`
	AtRisk        model.AtRisk                `json:"atRisk"`
	Requests      []model.CorrectionRecord    `json:"requests"`
	SelfStudy     []model.SelfStudySubmission `json:"selfStudy"`
	Notifications []model.Notification        `json:"notifications"`
	Slots         []model.TimetableSlot       `json:"slots"`
	SlotConflicts []model.TimetableSlot       `json:"slotConflicts"`
}

// Teacher is the teacher dashboard.  It is also the catalog of subjects
// and today's slots the session controller starts sessions from.
type Teacher struct {
	Backend TeacherBackend
	Toasts  toast.Pusher

	mu   sync.Mutex
	gen  uint64
	view TeacherView
}

func NewTeacher(backend TeacherBackend, toasts toast.Pusher) *Teacher {
	return &Teacher{Backend: backend, Toasts: toasts, view: emptyTeacherView()}
}

func emptyTeacherView() TeacherView {
	return TeacherView{AtRisk: model.AtRisk{Threshold: AtRiskThreshold, Subjects: []model.AtRiskSubject{}}}
}

// View returns a copy of the dashboard.
func (t *Teacher) View() TeacherView {
	t.mu.Lock()
	defer t.mu.Unlock()
	v := t.view
	if v.Overview != nil {
		o := *v.Overview
		v.Overview = &o
	}
	v.AtRisk.Subjects = append([]model.AtRiskSubject{}, v.AtRisk.Subjects...)
	v.Requests = append([]model.CorrectionRecord{}, v.Requests...)
	v.SelfStudy = append([]model.SelfStudySubmission{}, v.SelfStudy...)
	v.Notifications = append([]model.Notification{}, v.Notifications...)
	v.Slots = append([]model.TimetableSlot{}, v.Slots...)
	v.SlotConflicts = append([]model.TimetableSlot{}, v.SlotConflicts...)
	return v
}

// Clear drops all dashboard data.  Calls still in flight will not apply.
func (t *Teacher) Clear() {
	t.mu.Lock()
	t.gen++
	t.view = emptyTeacherView()
	t.mu.Unlock()
}

// Subjects lists the teacher's subjects from the loaded overview.
func (t *Teacher) Subjects() []model.TeacherSubject {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.view.Overview == nil {
		return nil
	}
	return append([]model.TeacherSubject{}, t.view.Overview.Teacher.Subjects...)
}

// TodaySlots lists today's classes from the loaded overview.
func (t *Teacher) TodaySlots() []model.ScheduleEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.view.Overview == nil {
		return nil
	}
	return append([]model.ScheduleEntry{}, t.view.Overview.TodaySlots...)
}

func (t *Teacher) begin() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen
}

func (t *Teacher) apply(gen uint64, fn func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen {
		return false
	}
	fn()
	return true
}

// teacherID prefers the id the overview reports.
func (t *Teacher) teacherID(id model.Identity) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.view.Overview != nil && t.view.Overview.Teacher.ID != "" {
		return t.view.Overview.Teacher.ID
	}
	return id.User.ID
}

// Load fetches the overview, then at-risk students, pending correction
// requests, pending self-study claims and notifications.  Only an
// overview failure is returned.
func (t *Teacher) Load(ctx context.Context, id model.Identity) error {
	gen := t.begin()
	ov, err := t.Backend.TeacherOverview(ctx, id.Token, id.User.ID)
	if err != nil {
		log.Errorf("dashboard: teacher overview %s: %v", id.User.ID, err)
		return err
	}
	if !t.apply(gen, func() { t.view.Overview = &ov }) {
		return ErrStale
	}
	if ov.Teacher.ID == "" {
		return nil
	}
	tid := ov.Teacher.ID

	t.refreshAtRisk(ctx, gen, id.Token, tid)

	reqs, err := t.Backend.TeacherRequests(ctx, id.Token, tid)
	if err != nil {
		log.Warnf("dashboard: teacher requests %s: %v", tid, err)
		reqs = []model.CorrectionRecord{}
	}
	t.apply(gen, func() { t.view.Requests = reqs })

	studies, err := t.Backend.TeacherSelfStudy(ctx, id.Token, tid)
	if err != nil {
		log.Warnf("dashboard: teacher self-study %s: %v", tid, err)
		studies = []model.SelfStudySubmission{}
		t.Toasts.Push(model.ToastError, "", "Failed to load self-study requests.")
	}
	t.apply(gen, func() { t.view.SelfStudy = studies })

	notes, err := t.Backend.TeacherNotifications(ctx, id.Token, tid)
	if err != nil {
		log.Warnf("dashboard: teacher notifications %s: %v", tid, err)
		return nil
	}
	if !t.apply(gen, func() { t.view.Notifications = notes }) {
		return ErrStale
	}
	return nil
}

// RefreshAtRisk refetches the at-risk list.
func (t *Teacher) RefreshAtRisk(ctx context.Context, id model.Identity) model.AtRisk {
	gen := t.begin()
	t.refreshAtRisk(ctx, gen, id.Token, t.teacherID(id))
	return t.View().AtRisk
}

// refreshAtRisk resets the list to empty on failure.
func (t *Teacher) refreshAtRisk(ctx context.Context, gen uint64, token, teacherID string) {
	ar, err := t.Backend.AtRisk(ctx, token, teacherID, AtRiskThreshold)
	if err != nil {
		log.Warnf("dashboard: at-risk %s: %v", teacherID, err)
		ar = model.AtRisk{}
	}
	if ar.Threshold == 0 {
		ar.Threshold = AtRiskThreshold
	}
	if ar.Subjects == nil {
		ar.Subjects = []model.AtRiskSubject{}
	}
	t.apply(gen, func() { t.view.AtRisk = ar })
}

var decisionWords = map[string][2]string{
	model.StatusApproved: {"Approved", "approve"},
	model.StatusRejected: {"Rejected", "reject"},
}

// DecideRequest approves or rejects a pending correction request.  On
// success the request leaves the pending list and the at-risk list is
// refetched, since an approval changes attendance.
func (t *Teacher) DecideRequest(ctx context.Context, id model.Identity, requestID string, d model.Decision) error {
	if err := utils.Validate(d, "Status must be approved or rejected."); err != nil {
		return err
	}
	gen := t.begin()

	t.mu.Lock()
	name, found := "", false
	for _, r := range t.view.Requests {
		if r.Key() == requestID {
			found = true
			if r.Student != nil {
				name = r.Student.Name
			}
			break
		}
	}
	t.mu.Unlock()
	if !found {
		return ErrNotPending
	}

	words := decisionWords[d.Status]
	if err := t.Backend.DecideRequest(ctx, id.Token, requestID, d); err != nil {
		log.Errorf("dashboard: %s request %s: %v", words[1], requestID, err)
		t.Toasts.Push(model.ToastError, "", "Failed to "+words[1]+" attendance request.")
		return err
	}
	if !t.apply(gen, func() {
		t.view.Requests = removeRecord(t.view.Requests, requestID)
	}) {
		return ErrStale
	}
	t.Toasts.Push(model.ToastSuccess, "", words[0]+" attendance request for "+name+".")
	t.refreshAtRisk(ctx, gen, id.Token, t.teacherID(id))
	return nil
}

// DecideSelfStudy approves or rejects a pending self-study claim.
func (t *Teacher) DecideSelfStudy(ctx context.Context, id model.Identity, submissionID string, d model.Decision) error {
	if err := utils.Validate(d, "Status must be approved or rejected."); err != nil {
		return err
	}
	gen := t.begin()

	t.mu.Lock()
	name, found := "", false
	for _, s := range t.view.SelfStudy {
		if s.Key() == submissionID {
			name, found = s.StudentName, true
			break
		}
	}
	t.mu.Unlock()
	if !found {
		return ErrNotPending
	}

	words := decisionWords[d.Status]
	if err := t.Backend.DecideSelfStudy(ctx, id.Token, submissionID, d); err != nil {
		log.Errorf("dashboard: %s self-study %s: %v", words[1], submissionID, err)
		t.Toasts.Push(model.ToastError, "", "Failed to "+words[1]+" self‑study.")
		return err
	}
	if !t.apply(gen, func() {
		t.view.SelfStudy = removeSubmission(t.view.SelfStudy, submissionID)
	}) {
		return ErrStale
	}
	t.Toasts.Push(model.ToastSuccess, "", words[0]+" self‑study for "+name+".")
	t.refreshAtRisk(ctx, gen, id.Token, t.teacherID(id))
	return nil
}

func removeRecord(rs []model.CorrectionRecord, id string) []model.CorrectionRecord {
	out := make([]model.CorrectionRecord, 0, len(rs))
	for _, r := range rs {
		if r.Key() != id {
			out = append(out, r)
		}
	}
	return out
}

func removeSubmission(ss []model.SelfStudySubmission, id string) []model.SelfStudySubmission {
	out := make([]model.SelfStudySubmission, 0, len(ss))
	for _, s := range ss {
		if s.Key() != id {
			out = append(out, s)
		}
	}
	return out
}

// Timetable fetches the teacher's weekly slots.
func (t *Teacher) Timetable(ctx context.Context, id model.Identity) ([]model.TimetableSlot, error) {
	gen := t.begin()
	slots, err := t.Backend.TeacherTimetable(ctx, id.Token, t.teacherID(id))
	if err != nil {
		log.Warnf("dashboard: teacher timetable: %v", err)
		t.Toasts.Push(model.ToastError, "", "Failed to load timetable.")
		return nil, err
	}
	if slots == nil {
		slots = []model.TimetableSlot{}
	}
	if !t.apply(gen, func() { t.view.Slots = slots }) {
		return nil, ErrStale
	}
	return slots, nil
}

// CreateSlot adds a weekly slot.  A 409 answer stores the conflicting
// slots on the dashboard and returns the *portal.APIError.
func (t *Teacher) CreateSlot(ctx context.Context, id model.Identity, req model.SlotRequest) (model.TimetableSlot, error) {
	gen := t.begin()
	t.apply(gen, func() { t.view.SlotConflicts = nil })

	if err := utils.Validate(req, "Please fill all required fields."); err != nil {
		t.Toasts.Push(model.ToastError, "", err.Error())
		return model.TimetableSlot{}, err
	}
	req.TeacherID = t.teacherID(id)

	created, err := t.Backend.CreateSlot(ctx, id.Token, req)
	if err != nil {
		if apiErr, ok := portal.AsAPIError(err); ok && apiErr.IsConflict() && len(apiErr.Conflicts) > 0 {
			log.Infof("dashboard: slot %s %d %s-%s conflicts with %d slot(s)",
				req.Section, req.DayOfWeek, req.StartTime, req.EndTime, len(apiErr.Conflicts))
			t.apply(gen, func() { t.view.SlotConflicts = apiErr.Conflicts })
			t.Toasts.Push(model.ToastError, "", "Slot conflict: please choose a different time or section.")
			return model.TimetableSlot{}, err
		}
		log.Errorf("dashboard: create slot: %v", err)
		t.Toasts.Push(model.ToastError, "", portal.Message(err, "Failed to create timetable slot."))
		return model.TimetableSlot{}, err
	}
	if !t.apply(gen, func() { t.view.Slots = append(t.view.Slots, created) }) {
		return created, ErrStale
	}
	t.Toasts.Push(model.ToastSuccess, "", "Timetable slot created.")
	return created, nil
}

// ClassView returns the attendance table of one subject.
func (t *Teacher) ClassView(ctx context.Context, id model.Identity, subjectCode string) (model.ClassView, error) {
	v, err := t.Backend.ClassView(ctx, id.Token, t.teacherID(id), subjectCode)
	if err != nil {
		log.Warnf("dashboard: class view %s: %v", subjectCode, err)
		t.Toasts.Push(model.ToastError, "", "Failed to load class attendance.")
		return model.ClassView{}, err
	}
	return v, nil
}
