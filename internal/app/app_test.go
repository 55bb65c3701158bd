package app

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/classsync/internal/config"
	"github.com/iliyamo/classsync/internal/model"
	"github.com/iliyamo/classsync/internal/portaltest"
	"github.com/iliyamo/classsync/internal/repository"
)

type fixture struct {
	be  *portaltest.Backend
	kv  repository.KV
	app *App
}

func testConfig(apiBase string) config.Config {
	return config.Config{
		Env:         "test",
		Port:        "0",
		APIBase:     apiBase,
		HTTPTimeout: 5 * time.Second,
		GeoTimeout:  30 * time.Millisecond,
		ToastTTL:    time.Minute,
		Cache:       config.CacheConfig{Prefix: "cs_timetable_cache"},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	be := portaltest.New(t)
	kv, err := repository.NewFileKV(t.TempDir())
	require.NoError(t, err)
	fx := &fixture{be: be, kv: kv}
	fx.app = New(Options{Config: testConfig(be.URL()), KV: kv, DisableReqLogs: true})
	t.Cleanup(fx.app.Close)
	return fx
}

func (fx *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	fx.app.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (fx *fixture) loginStudent(t *testing.T) {
	t.Helper()
	rec := fx.do(t, http.MethodPost, "/v1/auth/login", map[string]string{
		"role": "student", "login": portaltest.StudentAdmNo, "password": portaltest.StudentPassword,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func (fx *fixture) loginTeacher(t *testing.T) {
	t.Helper()
	rec := fx.do(t, http.MethodPost, "/v1/auth/login", map[string]string{
		"role": "teacher", "login": portaltest.TeacherEmail, "password": portaltest.TeacherPassword,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func toastMessages(t *testing.T, fx *fixture) []string {
	t.Helper()
	rec := fx.do(t, http.MethodGet, "/v1/toasts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out []string
	for _, ts := range decode[[]model.Toast](t, rec) {
		out = append(out, ts.Message)
	}
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = fx.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestSignedOut(t *testing.T) {
	fx := newFixture(t)
	for _, path := range []string{"/v1/me", "/v1/toasts", "/v1/student/dashboard", "/v1/teacher/session"} {
		rec := fx.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "not signed in", decode[map[string]string](t, rec)["error"])
	}
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name       string
		body       map[string]string
		wantStatus int
		wantError  string
	}{
		{"missing password", map[string]string{"role": "student", "login": portaltest.StudentAdmNo}, http.StatusBadRequest, "Please fill all fields"},
		{"bad password", map[string]string{"role": "student", "login": portaltest.StudentAdmNo, "password": "nope"}, http.StatusUnauthorized, "Invalid credentials"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			rec := fx.do(t, http.MethodPost, "/v1/auth/login", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantError, decode[map[string]any](t, rec)["error"])
		})
	}

	t.Run("ok", func(t *testing.T) {
		fx := newFixture(t)
		fx.loginStudent(t)

		rec := fx.do(t, http.MethodGet, "/v1/me", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "token")
		me := decode[struct {
			Role      string     `json:"role"`
			User      model.User `json:"user"`
			ExpiresAt *time.Time `json:"expiresAt"`
		}](t, rec)
		assert.Equal(t, model.RoleStudent, me.Role)
		assert.Equal(t, portaltest.StudentID, me.User.ID)
		assert.NotNil(t, me.ExpiresAt)
		assert.Contains(t, toastMessages(t, fx), "Signed in successfully")
	})
}

func TestRoleSeparation(t *testing.T) {
	fx := newFixture(t)
	fx.loginTeacher(t)
	rec := fx.do(t, http.MethodPost, "/v1/student/scan-sessions", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

type scanResult struct {
	Outcome      string `json:"outcome"`
	SessionCode  string `json:"sessionCode"`
	WithLocation bool   `json:"withLocation"`
	Message      string `json:"message"`
}

func TestStudentScanFlow(t *testing.T) {
	fx := newFixture(t)
	fx.loginStudent(t)

	rec := fx.do(t, http.MethodGet, "/v1/student/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = fx.do(t, http.MethodPost, "/v1/student/scan-sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	surfaceID := decode[map[string]any](t, rec)["id"].(string)
	scans := "/v1/student/scan-sessions/" + surfaceID + "/scans"

	lat, lng := 12.97, 77.59
	rec = fx.do(t, http.MethodPost, scans, map[string]any{"rawValue": portaltest.SeedSessionCode, "lat": lat, "lng": lng})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[scanResult](t, rec)
	assert.Equal(t, "marked", res.Outcome)
	assert.True(t, res.WithLocation)

	marks := fx.be.RequestsTo(http.MethodPost, "/student/mark-attendance")
	require.Len(t, marks, 1)
	assert.JSONEq(t, `{"studentId":"stu-1","sessionCode":"T123","lat":12.97,"lng":77.59}`, string(marks[0].Body))

	// the same token again on this surface
	rec = fx.do(t, http.MethodPost, scans, map[string]any{"rawValue": portaltest.SeedSessionCode})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "duplicate", decode[scanResult](t, rec).Outcome)
	assert.Equal(t, 1, fx.be.Count(http.MethodPost, "/student/mark-attendance"))

	// a restarted surface submits again and the backend refuses
	rec = fx.do(t, http.MethodPost, "/v1/student/scan-sessions/"+surfaceID+"/restart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = fx.do(t, http.MethodPost, scans, map[string]any{"rawValue": portaltest.SeedSessionCode})
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "failed", body["outcome"])
	assert.Equal(t, "Attendance already marked for this session", body["error"])
	assert.Equal(t, 2, fx.be.Count(http.MethodPost, "/student/mark-attendance"))

	msgs := toastMessages(t, fx)
	assert.Contains(t, msgs, "Attendance already marked for this session")

	v := fx.app.Student.View()
	assert.Equal(t, 31, v.Overview.QuickStats.ClassesAttended, "overview refetched after the mark")
	assert.True(t, strings.HasPrefix(v.Banner, "Attendance marked for "))

	rec = fx.do(t, http.MethodDelete, "/v1/student/scan-sessions/"+surfaceID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = fx.do(t, http.MethodPost, scans, map[string]any{"rawValue": "T999"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScanWithoutLocation(t *testing.T) {
	fx := newFixture(t)
	fx.loginStudent(t)
	rec := fx.do(t, http.MethodPost, "/v1/student/scan-sessions", nil)
	surfaceID := decode[map[string]any](t, rec)["id"].(string)

	rec = fx.do(t, http.MethodPost, "/v1/student/scan-sessions/"+surfaceID+"/scans", map[string]any{"rawValue": " T123 "})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[scanResult](t, rec).WithLocation)
	marks := fx.be.RequestsTo(http.MethodPost, "/student/mark-attendance")
	require.Len(t, marks, 1)
	assert.JSONEq(t, `{"studentId":"stu-1","sessionCode":"T123"}`, string(marks[0].Body))
}

func TestCameraError(t *testing.T) {
	fx := newFixture(t)
	fx.loginStudent(t)
	rec := fx.do(t, http.MethodPost, "/v1/student/scan-sessions", nil)
	surfaceID := decode[map[string]any](t, rec)["id"].(string)

	rec = fx.do(t, http.MethodPost, "/v1/student/scan-sessions/"+surfaceID+"/camera-error", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, toastMessages(t, fx), "Could not access camera.")

	// scanning stopped: the surface is gone
	assert.Equal(t, 0, fx.app.Surfaces.Len())
	rec = fx.do(t, http.MethodPost, "/v1/student/scan-sessions/"+surfaceID+"/scans", map[string]any{"rawValue": "T123"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, fx.be.Count(http.MethodPost, "/student/mark-attendance"))

	rec = fx.do(t, http.MethodPost, "/v1/student/scan-sessions/nope/camera-error", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogoutClearsState(t *testing.T) {
	fx := newFixture(t)
	fx.loginStudent(t)
	fx.do(t, http.MethodGet, "/v1/student/dashboard", nil)
	fx.do(t, http.MethodPost, "/v1/student/scan-sessions", nil)
	require.Equal(t, 1, fx.app.Surfaces.Len())

	rec := fx.do(t, http.MethodPost, "/v1/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, fx.app.Surfaces.Len())
	assert.Nil(t, fx.app.Student.View().Overview)
	assert.Equal(t, http.StatusUnauthorized, fx.do(t, http.MethodGet, "/v1/me", nil).Code)

	// idempotent
	assert.Equal(t, http.StatusNoContent, fx.do(t, http.MethodPost, "/v1/auth/logout", nil).Code)
}

func TestRestoreIdentity(t *testing.T) {
	fx := newFixture(t)
	fx.loginStudent(t)

	restarted := New(Options{Config: testConfig(fx.be.URL()), KV: fx.kv, DisableReqLogs: true})
	t.Cleanup(restarted.Close)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	restarted.Restore(ctx)

	id, ok := restarted.Identity.Current()
	require.True(t, ok)
	assert.Equal(t, portaltest.StudentID, id.User.ID)
}

func TestStudentForms(t *testing.T) {
	fx := newFixture(t)
	fx.loginStudent(t)
	require.Equal(t, http.StatusOK, fx.do(t, http.MethodGet, "/v1/student/dashboard", nil).Code)

	rec := fx.do(t, http.MethodPut, "/v1/student/mark-subject", map[string]string{"subjectCode": "MA201"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = fx.do(t, http.MethodPut, "/v1/student/mark-subject", map[string]string{"subjectCode": "XX"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = fx.do(t, http.MethodPost, "/v1/student/correction-requests", map[string]string{
		"type": "medical", "subjectCode": "CS101", "date": "2026-03-05", "notes": "Fever",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Medical", decode[model.CorrectionRequest](t, rec).TypeLabel)

	rec = fx.do(t, http.MethodPost, "/v1/student/self-study", map[string]string{"subjectCode": "CS101"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, fx.be.Count(http.MethodPost, "/student/self-study"))

	rec = fx.do(t, http.MethodPost, "/v1/student/notifications/mark-read", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decode[map[string]any](t, rec)["marked"])

	rec = fx.do(t, http.MethodGet, "/v1/student/subjects/CS101/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[struct {
		History []model.HistoryEntry `json:"history"`
	}](t, rec).History, 2)

	rec = fx.do(t, http.MethodGet, "/v1/student/subjects/XX999/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"subjectCode":"XX999","history":[]}`, rec.Body.String())
}

func TestStudentTimetableOffline(t *testing.T) {
	fx := newFixture(t)
	fx.loginStudent(t)

	rec := fx.do(t, http.MethodGet, "/v1/student/timetable", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "live", decode[map[string]any](t, rec)["source"])

	fx.be.Fail(http.MethodGet, "/student/timetable/3A", http.StatusServiceUnavailable, "")
	rec = fx.do(t, http.MethodGet, "/v1/student/timetable", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cache", decode[map[string]any](t, rec)["source"])
	assert.Contains(t, toastMessages(t, fx), "Showing last saved timetable copy.")
}

func TestTeacherSessionFlow(t *testing.T) {
	fx := newFixture(t)
	fx.loginTeacher(t)

	rec := fx.do(t, http.MethodPost, "/v1/teacher/session/start", map[string]string{"subjectCode": "CS101", "slotId": portaltest.TodaySlotID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sess := decode[model.ClassSession](t, rec)
	assert.Equal(t, "QR-SESS-1", sess.QRToken)
	assert.Equal(t, "C-305", sess.Room)

	rec = fx.do(t, http.MethodPost, "/v1/teacher/session/start", map[string]string{"subjectCode": "CS101", "slotId": portaltest.TodaySlotID})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = fx.do(t, http.MethodGet, "/v1/teacher/session/qr.png?size=200", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, http.StatusBadRequest, fx.do(t, http.MethodGet, "/v1/teacher/session/qr.png?size=big", nil).Code)

	rec = fx.do(t, http.MethodPost, "/v1/teacher/session/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = fx.do(t, http.MethodGet, "/v1/teacher/session/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "session-sess-1.csv")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "admissionNo,name\n"))

	rec = fx.do(t, http.MethodPost, "/v1/teacher/session/end", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ended", decode[map[string]any](t, rec)["state"])
	stored, ok := fx.be.Session("sess-1")
	require.True(t, ok)
	assert.True(t, stored.Ended)

	assert.Equal(t, http.StatusConflict, fx.do(t, http.MethodGet, "/v1/teacher/session/qr.png", nil).Code)

	rec = fx.do(t, http.MethodPost, "/v1/teacher/session/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "idle", decode[map[string]any](t, rec)["state"])

	rec = fx.do(t, http.MethodGet, "/v1/teacher/sessions/sess-old/export", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTeacherStartUnknownSlot(t *testing.T) {
	fx := newFixture(t)
	fx.loginTeacher(t)
	rec := fx.do(t, http.MethodPost, "/v1/teacher/session/start", map[string]string{"subjectCode": "CS101", "slotId": "slot-x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, fx.be.Count(http.MethodPost, "/teacher/start-session"))
}

func TestTeacherDecisionsAndSlots(t *testing.T) {
	fx := newFixture(t)
	fx.loginTeacher(t)
	require.Equal(t, http.StatusOK, fx.do(t, http.MethodGet, "/v1/teacher/dashboard", nil).Code)

	rec := fx.do(t, http.MethodPost, "/v1/teacher/requests/req-1/decision", map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, fx.app.Teacher.View().Requests)
	assert.Equal(t, http.StatusNotFound, fx.do(t, http.MethodPost, "/v1/teacher/requests/req-1/decision", map[string]string{"status": "approved"}).Code)

	rec = fx.do(t, http.MethodPost, "/v1/teacher/timetable/slots", map[string]any{
		"subjectCode": "CS101", "section": "3A", "dayOfWeek": 1, "startTime": "09:30", "endTime": "10:30",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[struct {
		Error     string                `json:"error"`
		Conflicts []model.TimetableSlot `json:"conflicts"`
	}](t, rec)
	require.Len(t, body.Conflicts, 1)
	assert.Equal(t, portaltest.MondaySlotID, body.Conflicts[0].Key())

	rec = fx.do(t, http.MethodPost, "/v1/teacher/timetable/slots", map[string]any{
		"subjectCode": "CS101", "section": "3A", "dayOfWeek": 2, "startTime": "09:00", "endTime": "10:00",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = fx.do(t, http.MethodGet, "/v1/teacher/timetable", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.TimetableSlot](t, rec), 2)

	rec = fx.do(t, http.MethodGet, "/v1/teacher/subjects/CS101/attendance", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
