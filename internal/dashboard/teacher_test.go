package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/classsync/internal/model"
	"github.com/iliyamo/classsync/internal/portal"
	"github.com/iliyamo/classsync/internal/portaltest"
	"github.com/iliyamo/classsync/internal/toast"
	"github.com/iliyamo/classsync/internal/utils"
)

type teacherFixture struct {
	be     *portaltest.Backend
	dash   *Teacher
	toasts *toast.Queue
	id     model.Identity
}

func newTeacherFixture(t *testing.T) *teacherFixture {
	t.Helper()
	be := portaltest.New(t)
	client := portal.New(be.URL(), 5*time.Second)
	res, err := client.Login(context.Background(), model.RoleTeacher, portaltest.TeacherEmail, portaltest.TeacherPassword)
	require.NoError(t, err)

	tq := toast.New(time.Minute)
	t.Cleanup(tq.Close)
	fx := &teacherFixture{be: be, dash: NewTeacher(client, tq), toasts: tq,
		id: model.Identity{Role: model.RoleTeacher, Token: res.Token, User: res.User}}
	require.NoError(t, fx.dash.Load(context.Background(), fx.id))
	return fx
}

func (fx *teacherFixture) lastToast(t *testing.T) model.Toast {
	t.Helper()
	list := fx.toasts.List()
	require.NotEmpty(t, list)
	return list[len(list)-1]
}

func TestTeacherLoad(t *testing.T) {
	fx := newTeacherFixture(t)

	assert.Equal(t, []string{
		"/teacher/overview/tch-1",
		"/teacher/at-risk/tch-1",
		"/teacher/requests/tch-1",
		"/teacher/self-study/tch-1",
		"/teacher/notifications/tch-1",
	}, getPaths(fx.be))
	assert.Equal(t, "threshold=75", fx.be.RequestsTo(http.MethodGet, "/teacher/at-risk/tch-1")[0].Query)

	v := fx.dash.View()
	require.NotNil(t, v.Overview)
	assert.EqualValues(t, 75, v.AtRisk.Threshold)
	require.Len(t, v.AtRisk.Subjects, 1)
	assert.Equal(t, "MA201", v.AtRisk.Subjects[0].SubjectCode)
	require.Len(t, v.Requests, 1)
	require.Len(t, v.SelfStudy, 1)
	assert.Len(t, v.Notifications, 1)

	require.Len(t, fx.dash.Subjects(), 2)
	require.Len(t, fx.dash.TodaySlots(), 1)
	assert.Equal(t, portaltest.TodaySlotID, fx.dash.TodaySlots()[0].ID)
}

func TestTeacherLoadAtRiskFailure(t *testing.T) {
	fx := newTeacherFixture(t)
	fx.be.Fail(http.MethodGet, "/teacher/at-risk/tch-1", http.StatusInternalServerError, "")

	require.NoError(t, fx.dash.Load(context.Background(), fx.id))
	v := fx.dash.View()
	assert.EqualValues(t, 75, v.AtRisk.Threshold)
	assert.Empty(t, v.AtRisk.Subjects)
	assert.Len(t, v.Requests, 1, "later lists still load")
}

func TestTeacherLoadSelfStudyFailure(t *testing.T) {
	fx := newTeacherFixture(t)
	fx.be.Fail(http.MethodGet, "/teacher/self-study/tch-1", http.StatusInternalServerError, "")

	require.NoError(t, fx.dash.Load(context.Background(), fx.id))
	assert.Empty(t, fx.dash.View().SelfStudy)
	assert.Equal(t, "Failed to load self-study requests.", fx.lastToast(t).Message)
}

func TestClearEmptiesCatalog(t *testing.T) {
	fx := newTeacherFixture(t)
	fx.dash.Clear()
	assert.Empty(t, fx.dash.Subjects())
	assert.Empty(t, fx.dash.TodaySlots())
	assert.Nil(t, fx.dash.View().Overview)
}

func TestDecideRequest(t *testing.T) {
	fx := newTeacherFixture(t)

	err := fx.dash.DecideRequest(context.Background(), fx.id, "req-1", model.Decision{Status: model.StatusApproved})
	require.NoError(t, err)

	reqs := fx.be.RequestsTo(http.MethodPost, "/teacher/requests/req-1/decision")
	require.Len(t, reqs, 1)
	var d model.Decision
	require.NoError(t, json.Unmarshal(reqs[0].Body, &d))
	assert.Equal(t, model.StatusApproved, d.Status)

	v := fx.dash.View()
	assert.Empty(t, v.Requests, "removed from pending")
	assert.Empty(t, v.AtRisk.Subjects, "at-risk refetched")
	assert.Equal(t, 2, fx.be.Count(http.MethodGet, "/teacher/at-risk/tch-1"))
	last := fx.lastToast(t)
	assert.Equal(t, model.ToastSuccess, last.Type)
	assert.Equal(t, "Approved attendance request for Asha Rao.", last.Message)
}

func TestDecideRequestFailure(t *testing.T) {
	fx := newTeacherFixture(t)
	fx.be.Fail(http.MethodPost, "/teacher/requests/req-1/decision", http.StatusInternalServerError, "")

	err := fx.dash.DecideRequest(context.Background(), fx.id, "req-1", model.Decision{Status: model.StatusRejected})
	require.Error(t, err)
	assert.Len(t, fx.dash.View().Requests, 1)
	assert.Equal(t, 1, fx.be.Count(http.MethodGet, "/teacher/at-risk/tch-1"), "no refetch after failure")
	assert.Equal(t, "Failed to reject attendance request.", fx.lastToast(t).Message)
}

func TestDecideRejected(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		d     model.Decision
		check func(t *testing.T, err error)
	}{
		{"unknown request", "req-404", model.Decision{Status: model.StatusApproved}, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrNotPending)
		}},
		{"bad status", "req-1", model.Decision{Status: "maybe"}, func(t *testing.T, err error) {
			assert.True(t, utils.IsValidation(err))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newTeacherFixture(t)
			tt.check(t, fx.dash.DecideRequest(context.Background(), fx.id, tt.id, tt.d))
			assert.Equal(t, 0, fx.be.Count(http.MethodPost, "/teacher/requests/"+tt.id+"/decision"))
		})
	}
}

func TestDecideSelfStudy(t *testing.T) {
	fx := newTeacherFixture(t)

	err := fx.dash.DecideSelfStudy(context.Background(), fx.id, "ss-1", model.Decision{Status: model.StatusRejected, TeacherNote: "No document"})
	require.NoError(t, err)
	assert.Empty(t, fx.dash.View().SelfStudy)
	assert.Equal(t, "Rejected self‑study for Asha Rao.", fx.lastToast(t).Message)
	assert.Equal(t, 2, fx.be.Count(http.MethodGet, "/teacher/at-risk/tch-1"))
}

func TestCreateSlotConflict(t *testing.T) {
	fx := newTeacherFixture(t)

	_, err := fx.dash.CreateSlot(context.Background(), fx.id, model.SlotRequest{
		SubjectCode: "CS101", Section: "3A", DayOfWeek: 1, StartTime: "09:30", EndTime: "10:30",
	})
	require.Error(t, err)
	apiErr, ok := portal.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, apiErr.Status)

	v := fx.dash.View()
	require.Len(t, v.SlotConflicts, 1)
	assert.Equal(t, portaltest.MondaySlotID, v.SlotConflicts[0].Key())
	assert.Empty(t, v.Slots)
	assert.Equal(t, "Slot conflict: please choose a different time or section.", fx.lastToast(t).Message)

	created, err := fx.dash.CreateSlot(context.Background(), fx.id, model.SlotRequest{
		SubjectCode: "CS101", Section: "3A", DayOfWeek: 1, StartTime: "10:00", EndTime: "11:00", RoomNumber: "C-305",
	})
	require.NoError(t, err)
	assert.Equal(t, portaltest.TeacherID, created.TeacherID)

	v = fx.dash.View()
	assert.Empty(t, v.SlotConflicts, "cleared on the next attempt")
	require.Len(t, v.Slots, 1)
	assert.Equal(t, created, v.Slots[0])
	assert.Equal(t, "Timetable slot created.", fx.lastToast(t).Message)
}

func TestCreateSlotMissingFields(t *testing.T) {
	fx := newTeacherFixture(t)

	_, err := fx.dash.CreateSlot(context.Background(), fx.id, model.SlotRequest{SubjectCode: "CS101", DayOfWeek: 2})
	require.Error(t, err)
	assert.True(t, utils.IsValidation(err))
	assert.Equal(t, 0, fx.be.Count(http.MethodPost, "/teacher/timetable/slot"))
	assert.Equal(t, "Please fill all required fields.", fx.lastToast(t).Message)
}

func TestCreateSlotBackendError(t *testing.T) {
	fx := newTeacherFixture(t)
	fx.be.Fail(http.MethodPost, "/teacher/timetable/slot", http.StatusInternalServerError, "")

	_, err := fx.dash.CreateSlot(context.Background(), fx.id, model.SlotRequest{
		SubjectCode: "CS101", Section: "3B", DayOfWeek: 3, StartTime: "10:00", EndTime: "11:00",
	})
	require.Error(t, err)
	assert.Empty(t, fx.dash.View().SlotConflicts)
	assert.Equal(t, "Failed to create timetable slot.", fx.lastToast(t).Message)
}

func TestTeacherTimetableAndClassView(t *testing.T) {
	fx := newTeacherFixture(t)

	slots, err := fx.dash.Timetable(context.Background(), fx.id)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, portaltest.MondaySlotID, slots[0].Key())

	cv, err := fx.dash.ClassView(context.Background(), fx.id, "CS101")
	require.NoError(t, err)
	require.Len(t, cv.Students, 1)

	_, err = fx.dash.ClassView(context.Background(), fx.id, "PH999")
	require.Error(t, err)
	assert.Equal(t, "Failed to load class attendance.", fx.lastToast(t).Message)
}
