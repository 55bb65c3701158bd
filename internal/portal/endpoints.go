package portal

import (
	"context"
	"net/http"
	"strconv"

	"github.com/iliyamo/classsync/internal/model"
)

// Login signs in with an admission number (students) or email (teachers).
func (c *Client) Login(ctx context.Context, role, login, password string) (model.LoginResponse, error) {
	var body map[string]string
	switch role {
	case model.RoleStudent:
		body = map[string]string{"admissionNo": login, "password": password}
	default:
		body = map[string]string{"email": login, "password": password}
	}
	var out model.LoginResponse
	err := c.do(ctx, http.MethodPost, p("auth", "login", role), "", body, &out)
	return out, err
}

// --- student ---

func (c *Client) MarkAttendance(ctx context.Context, token string, sub model.AttendanceSubmission) (model.Ack, error) {
	var out model.Ack
	err := c.do(ctx, http.MethodPost, "/student/mark-attendance", token, sub, &out)
	return out, err
}

func (c *Client) StudentOverview(ctx context.Context, token, studentID string) (model.StudentOverview, error) {
	var out model.StudentOverview
	err := c.do(ctx, http.MethodGet, p("student", "overview", studentID), token, nil, &out)
	return out, err
}

// StudentTimetable returns the weekly timetable of a section.
func (c *Client) StudentTimetable(ctx context.Context, token, section string) (model.WeeklyTimetable, error) {
	out := model.WeeklyTimetable{}
	err := c.do(ctx, http.MethodGet, p("student", "timetable", section), token, nil, &out)
	return out, err
}

func (c *Client) CorrectionRequests(ctx context.Context, token, studentID string) ([]model.CorrectionRecord, error) {
	var out []model.CorrectionRecord
	err := c.do(ctx, http.MethodGet, p("student", "attendance-requests", studentID), token, nil, &out)
	return out, err
}

func (c *Client) SubmitCorrection(ctx context.Context, token string, body model.CorrectionRequestBody) (model.CorrectionRecord, error) {
	var out model.CorrectionRecord
	err := c.do(ctx, http.MethodPost, "/student/attendance-request", token, body, &out)
	return out, err
}

func (c *Client) SelfStudy(ctx context.Context, token, studentID string) ([]model.SelfStudySubmission, error) {
	var out []model.SelfStudySubmission
	err := c.do(ctx, http.MethodGet, p("student", "self-study", studentID), token, nil, &out)
	return out, err
}

func (c *Client) SubmitSelfStudy(ctx context.Context, token string, body model.SelfStudyBody) (model.SelfStudySubmission, error) {
	var out model.SelfStudySubmission
	err := c.do(ctx, http.MethodPost, "/student/self-study", token, body, &out)
	return out, err
}

func (c *Client) StudentNotifications(ctx context.Context, token, studentID string) ([]model.Notification, error) {
	var out []model.Notification
	err := c.do(ctx, http.MethodGet, p("student", "notifications", studentID), token, nil, &out)
	return out, err
}

// MarkNotificationsRead flags the given notifications as read in one call.
func (c *Client) MarkNotificationsRead(ctx context.Context, token string, ids []string) error {
	return c.do(ctx, http.MethodPatch, "/student/notifications/mark-read", token,
		model.MarkReadRequest{NotificationIDs: ids}, nil)
}

func (c *Client) SubjectHistory(ctx context.Context, token, studentID, subjectCode string) ([]model.HistoryEntry, error) {
	var out struct {
		History []model.HistoryEntry `json:"history"`
	}
	err := c.do(ctx, http.MethodGet, p("student", "subject-history", studentID, subjectCode), token, nil, &out)
	return out.History, err
}

// --- teacher ---

func (c *Client) TeacherOverview(ctx context.Context, token, teacherID string) (model.TeacherOverview, error) {
	var out model.TeacherOverview
	err := c.do(ctx, http.MethodGet, p("teacher", "overview", teacherID), token, nil, &out)
	return out, err
}

// AtRisk lists students below threshold percent, grouped by subject.
func (c *Client) AtRisk(ctx context.Context, token, teacherID string, threshold int) (model.AtRisk, error) {
	out := model.AtRisk{Threshold: float64(threshold)}
	path := p("teacher", "at-risk", teacherID) + "?threshold=" + strconv.Itoa(threshold)
	err := c.do(ctx, http.MethodGet, path, token, nil, &out)
	return out, err
}

func (c *Client) TeacherRequests(ctx context.Context, token, teacherID string) ([]model.CorrectionRecord, error) {
	var out []model.CorrectionRecord
	err := c.do(ctx, http.MethodGet, p("teacher", "requests", teacherID), token, nil, &out)
	return out, err
}

func (c *Client) TeacherSelfStudy(ctx context.Context, token, teacherID string) ([]model.SelfStudySubmission, error) {
	var out []model.SelfStudySubmission
	err := c.do(ctx, http.MethodGet, p("teacher", "self-study", teacherID), token, nil, &out)
	return out, err
}

func (c *Client) TeacherNotifications(ctx context.Context, token, teacherID string) ([]model.Notification, error) {
	var out []model.Notification
	err := c.do(ctx, http.MethodGet, p("teacher", "notifications", teacherID), token, nil, &out)
	return out, err
}

func (c *Client) TeacherTimetable(ctx context.Context, token, teacherID string) ([]model.TimetableSlot, error) {
	var out []model.TimetableSlot
	err := c.do(ctx, http.MethodGet, p("teacher", "timetable", teacherID), token, nil, &out)
	return out, err
}

func (c *Client) ClassView(ctx context.Context, token, teacherID, subjectCode string) (model.ClassView, error) {
	var out model.ClassView
	err := c.do(ctx, http.MethodGet, p("teacher", "subject-attendance", teacherID, subjectCode), token, nil, &out)
	return out, err
}

// CreateSlot adds a weekly slot.  An overlap comes back as an APIError
// with status 409 and the conflicting slots in Conflicts.
func (c *Client) CreateSlot(ctx context.Context, token string, req model.SlotRequest) (model.TimetableSlot, error) {
	var out model.TimetableSlot
	err := c.do(ctx, http.MethodPost, "/teacher/timetable/slot", token, req, &out)
	return out, err
}

func (c *Client) DecideRequest(ctx context.Context, token, requestID string, d model.Decision) error {
	return c.do(ctx, http.MethodPost, p("teacher", "requests", requestID, "decision"), token, d, nil)
}

func (c *Client) DecideSelfStudy(ctx context.Context, token, submissionID string, d model.Decision) error {
	return c.do(ctx, http.MethodPost, p("teacher", "self-study", submissionID, "decision"), token, d, nil)
}

// --- sessions ---

func (c *Client) StartSession(ctx context.Context, token string, req model.StartSessionRequest) (model.StartedSession, error) {
	var out model.StartedSession
	err := c.do(ctx, http.MethodPost, "/teacher/start-session", token, req, &out)
	return out, err
}

func (c *Client) LiveRoster(ctx context.Context, token, sessionID string) (model.LiveRoster, error) {
	var out model.LiveRoster
	err := c.do(ctx, http.MethodGet, p("teacher", "session", sessionID), token, nil, &out)
	return out, err
}

// EndSession tells the backend the session is closed.
func (c *Client) EndSession(ctx context.Context, token, sessionID string) error {
	return c.do(ctx, http.MethodPost, p("teacher", "session", sessionID, "end"), token, nil, nil)
}

// ExportSession opens the roster export of a session as a stream.
func (c *Client) ExportSession(ctx context.Context, token, sessionID string) (*Download, error) {
	resp, err := c.send(ctx, http.MethodGet, p("teacher", "session", sessionID, "export"), token, nil)
	if err != nil {
		return nil, err
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "text/csv"
	}
	return &Download{
		ContentType:        ct,
		ContentDisposition: resp.Header.Get("Content-Disposition"),
		Body:               resp.Body,
	}, nil
}
