package portal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/classsync/internal/model"
	"github.com/iliyamo/classsync/internal/portaltest"
)

func login(t *testing.T, c *Client, role, user, pass string) string {
	t.Helper()
	res, err := c.Login(context.Background(), role, user, pass)
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	return res.Token
}

func TestLogin(t *testing.T) {
	be := portaltest.New(t)
	c := New(be.URL(), 5*time.Second)
	ctx := context.Background()

	res, err := c.Login(ctx, model.RoleStudent, portaltest.StudentAdmNo, portaltest.StudentPassword)
	require.NoError(t, err)
	assert.Equal(t, portaltest.StudentID, res.User.ID)
	assert.Equal(t, "3A", res.User.Section)

	reqs := be.RequestsTo(http.MethodPost, "/auth/login/student")
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Authorization)
	assert.JSONEq(t, `{"admissionNo":"1RV22CS001","password":"student-pass"}`, string(reqs[0].Body))

	_, err = c.Login(ctx, model.RoleTeacher, portaltest.TeacherEmail, "wrong")
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Invalid credentials", apiErr.Message, "falls back to the message field")
	assert.JSONEq(t, `{"email":"meera@college.edu","password":"wrong"}`,
		string(be.RequestsTo(http.MethodPost, "/auth/login/teacher")[0].Body))
}

func TestMarkAttendanceBody(t *testing.T) {
	be := portaltest.New(t)
	c := New(be.URL(), 5*time.Second)
	tok := login(t, c, model.RoleStudent, portaltest.StudentAdmNo, portaltest.StudentPassword)

	_, err := c.MarkAttendance(context.Background(), tok,
		model.NewSubmission(portaltest.StudentID, portaltest.SeedSessionCode, nil))
	require.NoError(t, err)

	reqs := be.RequestsTo(http.MethodPost, "/student/mark-attendance")
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer "+tok, reqs[0].Authorization)
	assert.JSONEq(t, `{"studentId":"stu-1","sessionCode":"T123"}`, string(reqs[0].Body))

	_, err = c.MarkAttendance(context.Background(), tok,
		model.NewSubmission(portaltest.StudentID, portaltest.SeedSessionCode, &model.Position{Lat: 1.5, Lng: 2.5}))
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "Attendance already marked for this session", Message(err, "fallback"))
	assert.JSONEq(t, `{"studentId":"stu-1","sessionCode":"T123","lat":1.5,"lng":2.5}`,
		string(be.RequestsTo(http.MethodPost, "/student/mark-attendance")[1].Body))
}

func TestCreateSlotConflict(t *testing.T) {
	be := portaltest.New(t)
	c := New(be.URL(), 5*time.Second)
	tok := login(t, c, model.RoleTeacher, portaltest.TeacherEmail, portaltest.TeacherPassword)

	_, err := c.CreateSlot(context.Background(), tok, model.SlotRequest{
		TeacherID: portaltest.TeacherID, SubjectCode: "MA201", Section: "3A",
		DayOfWeek: 1, StartTime: "09:30", EndTime: "10:30", RoomNumber: "C-101",
	})
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.True(t, apiErr.IsConflict())
	require.Len(t, apiErr.Conflicts, 1)
	assert.Equal(t, portaltest.MondaySlotID, apiErr.Conflicts[0].Key())
}

func TestTeacherEndpoints(t *testing.T) {
	be := portaltest.New(t)
	c := New(be.URL(), 5*time.Second)
	ctx := context.Background()
	tok := login(t, c, model.RoleTeacher, portaltest.TeacherEmail, portaltest.TeacherPassword)

	risk, err := c.AtRisk(ctx, tok, portaltest.TeacherID, 75)
	require.NoError(t, err)
	assert.Equal(t, float64(75), risk.Threshold)
	assert.Equal(t, "threshold=75", be.RequestsTo(http.MethodGet, "/teacher/at-risk/tch-1")[0].Query)

	started, err := c.StartSession(ctx, tok, model.StartSessionRequest{SubjectID: "sub-cs101", Section: "3A", RoomNumber: "C-305"})
	require.NoError(t, err)
	require.NotEmpty(t, started.Key())
	assert.NotEmpty(t, started.SessionCode)

	roster, err := c.LiveRoster(ctx, tok, started.Key())
	require.NoError(t, err)
	assert.Zero(t, roster.PresentCount)

	dl, err := c.ExportSession(ctx, tok, started.Key())
	require.NoError(t, err)
	defer dl.Body.Close()
	csv, err := io.ReadAll(dl.Body)
	require.NoError(t, err)
	assert.Contains(t, dl.ContentType, "text/csv")
	assert.Contains(t, dl.ContentDisposition, "session-"+started.Key())
	assert.Equal(t, "admissionNo,name\n", string(csv))

	require.NoError(t, c.EndSession(ctx, tok, started.Key()))
	s, ok := be.Session(started.Key())
	require.True(t, ok)
	assert.True(t, s.Ended)

	err = c.EndSession(ctx, tok, "nope")
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestTransportError(t *testing.T) {
	be := portaltest.New(t)
	c := New(be.URL(), time.Second)
	be.Close()

	_, err := c.StudentOverview(context.Background(), "tok", portaltest.StudentID)
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	_, isAPI := AsAPIError(err)
	assert.False(t, isAPI)
	assert.Equal(t, "Failed to load", Message(err, "Failed to load"))
}

func TestErrorBodies(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{name: "error field", status: 400, body: `{"error":"bad code","message":"ignored"}`, message: "bad code"},
		{name: "message field", status: 401, body: `{"message":"Invalid credentials"}`, message: "Invalid credentials"},
		{name: "not json", status: 502, body: `<html>bad gateway</html>`, message: ""},
		{name: "empty", status: 500, body: ``, message: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			err := New(srv.URL, time.Second).MarkNotificationsRead(context.Background(), "tok", []string{"n-1"})
			apiErr, ok := AsAPIError(err)
			require.True(t, ok)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.message, apiErr.Message)
			assert.False(t, IsTransport(err))
		})
	}
}

func TestNullBodyKeepsDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, "null")
	}))
	defer srv.Close()

	risk, err := New(srv.URL, time.Second).AtRisk(context.Background(), "tok", "tch-1", 75)
	require.NoError(t, err)
	assert.Equal(t, float64(75), risk.Threshold)
}

func TestPathEscaping(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.EscapedPath()
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer srv.Close()

	_, err := New(srv.URL+"/api/", time.Second).StudentTimetable(context.Background(), "tok", "3A/B")
	require.NoError(t, err)
	assert.Equal(t, "/api/student/timetable/3A%2FB", got)
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "fallback", Message(errors.New("boom"), "fallback"))
	assert.Equal(t, "fallback", Message(&APIError{Status: 500}, "fallback"))
	assert.Equal(t, "nope", Message(&APIError{Status: 400, Message: "nope"}, "fallback"))
}
