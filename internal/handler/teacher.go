package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/classsync/internal/classsession"
	"github.com/iliyamo/classsync/internal/dashboard"
	"github.com/iliyamo/classsync/internal/geo"
	"github.com/iliyamo/classsync/internal/model"
)

// TeacherHandler serves the teacher dashboard and the class session.
type TeacherHandler struct {
	Dashboard *dashboard.Teacher
	Session   *classsession.Controller
	// Locator is used when a start request carries no coordinates.
	Locator geo.Locator
}

func NewTeacherHandler(d *dashboard.Teacher, s *classsession.Controller, loc geo.Locator) *TeacherHandler {
	if d == nil || s == nil {
		panic("nil dependency passed to NewTeacherHandler")
	}
	if loc == nil {
		loc = geo.Unavailable{}
	}
	return &TeacherHandler{Dashboard: d, Session: s, Locator: loc}
}

// GetDashboard: GET /v1/teacher/dashboard.  The first call loads it.
func (h *TeacherHandler) GetDashboard(c echo.Context) error {
	id, err := identityOf(c)
	if err != nil {
		return fail(c, err)
	}
	if h.Dashboard.View().Overview == nil {
		ctx, cancel := requestContext(c)
		defer cancel()
		if err := h.Dashboard.Load(ctx, id); err != nil {
			return fail(c, err)
		}
	}
	return c.JSON(http.StatusOK, h.Dashboard.View())
}

// ReloadDashboard: POST /v1/teacher/dashboard/reload.
func (h *TeacherHandler) ReloadDashboard(c echo.Context) error {
	id, err := identityOf(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.Dashboard.Load(ctx, id); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, h.Dashboard.View())
}

// GetSession: GET /v1/teacher/session.
func (h *TeacherHandler) GetSession(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Session.Snapshot())
}

type startReq struct {
	model.StartSessionForm
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// StartSession: POST /v1/teacher/session/start {subjectCode, slotId}.
func (h *TeacherHandler) StartSession(c echo.Context) error {
	id, err := identityOf(c)
	if err != nil {
		return fail(c, err)
	}
	var req startReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	// subjects and slots come from the dashboard
	if h.Dashboard.View().Overview == nil {
		if err := h.Dashboard.Load(ctx, id); err != nil {
			return fail(c, err)
		}
	}
	loc := h.Locator
	if req.Lat != nil && req.Lng != nil {
		loc = geo.Static(model.Position{Lat: *req.Lat, Lng: *req.Lng})
	}
	sess, err := h.Session.Start(ctx, id, req.StartSessionForm, loc)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, sess)
}

// RefreshRoster: POST /v1/teacher/session/refresh.
func (h *TeacherHandler) RefreshRoster(c echo.Context) error {
	id, err := identityOf(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	sess, err := h.Session.RefreshRoster(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// Export: GET /v1/teacher/session/export streams the active session's
// roster export.
func (h *TeacherHandler) Export(c echo.Context) error {
	id, err := identityOf(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	dl, err := h.Session.Export(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return stream(c, dl)
}

// ExportSession: GET /v1/teacher/sessions/:id/export for any session.
func (h *TeacherHandler) ExportSession(c echo.Context) error {
	id, err := identityOf(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	dl, err := h.Session.ExportSession(ctx, id, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return stream(c, dl)
}

// QRCode: GET /v1/teacher/session/qr.png?size=N.
func (h *TeacherHandler) QRCode(c echo.Context) error {
	size := 256
	if v := c.QueryParam("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 64 || n > 2048 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "size must be between 64 and 2048"})
		}
		size = n
	}
	png, err := h.Session.QRCode(size)
	if err != nil {
		return fail(c, err)
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

// EndSession: POST /v1/teacher/session/end.  The session ends locally even
// when the backend cannot be told.
func (h *TeacherHandler) EndSession(c echo.Context) error {
	id, err := identityOf(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.Session.End(ctx, id); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, h.Session.Snapshot())
}

// ResetSession: POST /v1/teacher/session/reset opens the start form again.
func (h *TeacherHandler) ResetSession(c echo.Context) error {
	if err := h.Session.Reset(); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, h.Session.Snapshot())
}

// DecideRequest: POST /v1/teacher/requests/:id/decision.
func (h *TeacherHandler) DecideRequest(c echo.Context) error {
	return h.decide(c, h.Dashboard.DecideRequest)
}

// DecideSelfStudy: POST /v1/teacher/self-study/:id/decision.
func (h *TeacherHandler) DecideSelfStudy(c echo.Context) error {
	return h.decide(c, h.Dashboard.DecideSelfStudy)
}

type decideFunc func(ctx context.Context, id model.Identity, itemID string, d model.Decision) error

func (h *TeacherHandler) decide(c echo.Context, fn decideFunc) error {
	id, err := identityOf(c)
	if err != nil {
		return fail(c, err)
	}
	var d model.Decision
	if err := c.Bind(&d); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := fn(ctx, id, c.Param("id"), d); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, h.Dashboard.View())
}

// Timetable: GET /v1/teacher/timetable.
func (h *TeacherHandler) Timetable(c echo.Context) error {
	id, err := identityOf(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	slots, err := h.Dashboard.Timetable(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, slots)
}

// CreateSlot: POST /v1/teacher/timetable/slots.  A clash answers 409 with
// the conflicting slots.
func (h *TeacherHandler) CreateSlot(c echo.Context) error {
	id, err := identityOf(c)
	if err != nil {
		return fail(c, err)
	}
	var req model.SlotRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	slot, err := h.Dashboard.CreateSlot(ctx, id, req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, slot)
}

// ClassView: GET /v1/teacher/subjects/:code/attendance.
func (h *TeacherHandler) ClassView(c echo.Context) error {
	id, err := identityOf(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	v, err := h.Dashboard.ClassView(ctx, id, c.Param("code"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, v)
}
