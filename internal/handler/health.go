package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health reports that the gateway is running.  It does not contact the
// portal backend.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
