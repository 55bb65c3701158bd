package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/classsync/internal/attendance"
	"github.com/iliyamo/classsync/internal/dashboard"
	"github.com/iliyamo/classsync/internal/geo"
	"github.com/iliyamo/classsync/internal/model"
	"github.com/iliyamo/classsync/internal/portal"
	"github.com/iliyamo/classsync/internal/scan"
	"github.com/iliyamo/classsync/internal/toast"
)

var errSurfaceNotFound = errors.New("scan session not found")

// StudentHandler serves the student dashboard and the scanner surfaces.
type StudentHandler struct {
	Dashboard *dashboard.Student
	Surfaces  *scan.Registry
	Submitter *attendance.Submitter
	Toasts    toast.Pusher
	// Locator is used when a scan arrives without coordinates.
	Locator geo.Locator
}

func NewStudentHandler(d *dashboard.Student, surfaces *scan.Registry, sub *attendance.Submitter, toasts toast.Pusher, loc geo.Locator) *StudentHandler {
	if d == nil || surfaces == nil || sub == nil || toasts == nil {
		panic("nil dependency passed to NewStudentHandler")
	}
	if loc == nil {
		loc = geo.Unavailable{}
	}
	return &StudentHandler{Dashboard: d, Surfaces: surfaces, Submitter: sub, Toasts: toasts, Locator: loc}
}

// Dashboard: GET /v1/student/dashboard.  The first call loads it.
func (h *StudentHandler) GetDashboard(c echo.Context) error {
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

// ReloadDashboard: POST /v1/student/dashboard/reload.
func (h *StudentHandler) ReloadDashboard(c echo.Context) error {
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

type markSubjectReq struct {
	SubjectCode string `json:"subjectCode"`
}

// SetMarkSubject: PUT /v1/student/mark-subject.
func (h *StudentHandler) SetMarkSubject(c echo.Context) error {
	var req markSubjectReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Dashboard.SetMarkSubject(req.SubjectCode); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"markSubject": req.SubjectCode, "label": h.Dashboard.MarkLabel()})
}

type surfaceResp struct {
	ID       string    `json:"id"`
	OpenedAt time.Time `json:"openedAt"`
	Busy     bool      `json:"busy"`
	Consumed int       `json:"consumed"`
}

func surfaceOf(s *scan.Surface) surfaceResp {
	return surfaceResp{ID: s.ID, OpenedAt: s.OpenedAt, Busy: s.Busy(), Consumed: s.Consumed()}
}

// surface returns the caller's open surface named by :id.
func (h *StudentHandler) surface(c echo.Context, id model.Identity) (*scan.Surface, error) {
	s, ok := h.Surfaces.Get(c.Param("id"))
	if !ok || s.Owner != id.User.ID {
		return nil, errSurfaceNotFound
	}
	return s, nil
}

// OpenSurface: POST /v1/student/scan-sessions.
func (h *StudentHandler) OpenSurface(c echo.Context) error {
	id, err := identityOf(c)
	if err != nil {
		return fail(c, err)
	}
	s := h.Surfaces.Open(id.User.ID)
	log.Debugf("handler: scan surface %s opened for %s", s.ID, id.User.ID)
	return c.JSON(http.StatusCreated, surfaceOf(s))
}

// RestartSurface: POST /v1/student/scan-sessions/:id/restart.  Tokens
// consumed before the restart may be submitted again.
func (h *StudentHandler) RestartSurface(c echo.Context) error {
	id, err := identityOf(c)
	if err != nil {
		return fail(c, err)
	}
	s, err := h.surface(c, id)
	if err != nil {
		return fail(c, err)
	}
	if err := s.Restart(); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, surfaceOf(s))
}

type scanReq struct {
	RawValue string   `json:"rawValue"`
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
}

// Scan: POST /v1/student/scan-sessions/:id/scans.  Every scanner emission
// is posted here; duplicates and emissions during a running submission are
// answered 200 with their outcome and make no backend call.
func (h *StudentHandler) Scan(c echo.Context) error {
	id, err := identityOf(c)
	if err != nil {
		return fail(c, err)
	}
	var req scanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	s, err := h.surface(c, id)
	if err != nil {
		return fail(c, err)
	}

	loc := h.Locator
	if req.Lat != nil && req.Lng != nil {
		loc = geo.Static(model.Position{Lat: *req.Lat, Lng: *req.Lng})
	}
	res := h.Submitter.Scan(s, id, req.RawValue, loc, h.Dashboard.MarkLabel())

	switch res.Outcome {
	case attendance.Failed:
		status := http.StatusBadGateway
		if apiErr, ok := portal.AsAPIError(res.Err); ok && apiErr.Status < 500 {
			status = apiErr.Status
		}
		return c.JSON(status, echo.Map{"error": res.Message, "outcome": res.Outcome})
	case attendance.Cancelled:
		return c.JSON(http.StatusConflict, res)
	}
	return c.JSON(http.StatusOK, res)
}

// CameraError: POST /v1/student/scan-sessions/:id/camera-error.  Scanning
// stops: the surface is closed and the student opens a new one to retry.
func (h *StudentHandler) CameraError(c echo.Context) error {
	id, err := identityOf(c)
	if err != nil {
		return fail(c, err)
	}
	if _, err := h.surface(c, id); err != nil {
		return fail(c, err)
	}
	h.Surfaces.Close(c.Param("id"))
	h.Toasts.Push(model.ToastError, "Scanner error", "Could not access camera.")
	return c.NoContent(http.StatusNoContent)
}

// CloseSurface: DELETE /v1/student/scan-sessions/:id.  A submission still
// running on the surface is abandoned without toasts or refetch.
func (h *StudentHandler) CloseSurface(c echo.Context) error {
	id, err := identityOf(c)
	if err != nil {
		return fail(c, err)
	}
	if _, err := h.surface(c, id); err != nil {
		return fail(c, err)
	}
	h.Surfaces.Close(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

// Timetable: GET /v1/student/timetable.
func (h *StudentHandler) Timetable(c echo.Context) error {
	id, err := identityOf(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	tt, err := h.Dashboard.Timetable(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, tt)
}

// SubjectHistory: GET /v1/student/subjects/:code/history.
func (h *StudentHandler) SubjectHistory(c echo.Context) error {
	id, err := identityOf(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	hist := h.Dashboard.SubjectHistory(ctx, id, c.Param("code"))
	return c.JSON(http.StatusOK, echo.Map{"subjectCode": c.Param("code"), "history": hist})
}

// SubmitCorrection: POST /v1/student/correction-requests.
func (h *StudentHandler) SubmitCorrection(c echo.Context) error {
	id, err := identityOf(c)
	if err != nil {
		return fail(c, err)
	}
	var form model.CorrectionForm
	if err := c.Bind(&form); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	row, err := h.Dashboard.SubmitCorrection(ctx, id, form)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, row)
}

// SubmitSelfStudy: POST /v1/student/self-study.
func (h *StudentHandler) SubmitSelfStudy(c echo.Context) error {
	id, err := identityOf(c)
	if err != nil {
		return fail(c, err)
	}
	var form model.SelfStudyForm
	if err := c.Bind(&form); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	row, err := h.Dashboard.SubmitSelfStudy(ctx, id, form)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, row)
}

// MarkNotificationsRead: POST /v1/student/notifications/mark-read.
func (h *StudentHandler) MarkNotificationsRead(c echo.Context) error {
	id, err := identityOf(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	n, err := h.Dashboard.MarkNotificationsRead(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"marked": n})
}
