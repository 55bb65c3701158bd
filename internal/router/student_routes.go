package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/classsync/internal/handler"
	"github.com/iliyamo/classsync/internal/middleware"
	"github.com/iliyamo/classsync/internal/model"
)

// RegisterStudent registers student endpoints under /v1/student.  All of
// them need a signed-in student.
func RegisterStudent(e *echo.Echo, h *handler.StudentHandler, src middleware.IdentitySource) {
	g := e.Group(
		"/v1/student",
		middleware.RequireIdentity(src),
		middleware.RequireRole(model.RoleStudent),
	)

	g.GET("/dashboard", h.GetDashboard)
	g.POST("/dashboard/reload", h.ReloadDashboard)
	g.PUT("/mark-subject", h.SetMarkSubject)

	// ---- Scanner ----
	g.POST("/scan-sessions", h.OpenSurface)
	g.POST("/scan-sessions/:id/restart", h.RestartSurface)
	g.POST("/scan-sessions/:id/scans", h.Scan)
	g.POST("/scan-sessions/:id/camera-error", h.CameraError)
	g.DELETE("/scan-sessions/:id", h.CloseSurface)

	g.GET("/timetable", h.Timetable)
	g.GET("/subjects/:code/history", h.SubjectHistory)
	g.POST("/correction-requests", h.SubmitCorrection)
	g.POST("/self-study", h.SubmitSelfStudy)
	g.POST("/notifications/mark-read", h.MarkNotificationsRead)
}
