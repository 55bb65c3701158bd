package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/classsync/internal/handler"
	"github.com/iliyamo/classsync/internal/metrics"
	"github.com/iliyamo/classsync/internal/middleware"
)

// RegisterRoutes registers the routes that need no identity: the health
// check and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}

// RegisterAuth registers sign-in and sign-out under /v1/auth and the
// identity lookup at /v1/me.  Logout works without an identity so a
// client can always clear state.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, src middleware.IdentitySource) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me, middleware.RequireIdentity(src))
}

// RegisterToasts registers the toast queue for any signed-in role.
func RegisterToasts(e *echo.Echo, t *handler.ToastHandler, src middleware.IdentitySource) {
	g := e.Group("/v1/toasts", middleware.RequireIdentity(src))
	g.GET("", t.List)
	g.DELETE("/:id", t.Dismiss)
}
