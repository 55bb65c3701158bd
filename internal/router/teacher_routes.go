package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/classsync/internal/handler"
	"github.com/iliyamo/classsync/internal/middleware"
	"github.com/iliyamo/classsync/internal/model"
)

// RegisterTeacher registers teacher endpoints under /v1/teacher.  All of
// them need a signed-in teacher.
func RegisterTeacher(e *echo.Echo, h *handler.TeacherHandler, src middleware.IdentitySource) {
	g := e.Group(
		"/v1/teacher",
		middleware.RequireIdentity(src),
		middleware.RequireRole(model.RoleTeacher),
	)

	g.GET("/dashboard", h.GetDashboard)
	g.POST("/dashboard/reload", h.ReloadDashboard)

	// ---- Class session ----
	g.GET("/session", h.GetSession)
	g.POST("/session/start", h.StartSession)
	g.POST("/session/refresh", h.RefreshRoster)
	g.GET("/session/export", h.Export)
	g.GET("/session/qr.png", h.QRCode)
	g.POST("/session/end", h.EndSession)
	g.POST("/session/reset", h.ResetSession)
	g.GET("/sessions/:id/export", h.ExportSession)

	// ---- Requests ----
	g.POST("/requests/:id/decision", h.DecideRequest)
	g.POST("/self-study/:id/decision", h.DecideSelfStudy)

	// ---- Timetable ----
	g.GET("/timetable", h.Timetable)
	g.POST("/timetable/slots", h.CreateSlot)
	g.GET("/subjects/:code/attendance", h.ClassView)
}
