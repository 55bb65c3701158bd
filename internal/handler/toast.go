package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/classsync/internal/toast"
)

// ToastHandler exposes the transient toast queue.
type ToastHandler struct {
	Toasts *toast.Queue
}

func NewToastHandler(q *toast.Queue) *ToastHandler { return &ToastHandler{Toasts: q} }

// List: GET /v1/toasts, oldest first.
func (h *ToastHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Toasts.List())
}

// Dismiss: DELETE /v1/toasts/:id.  Unknown and already expired ids answer
// 204 as well.
func (h *ToastHandler) Dismiss(c echo.Context) error {
	h.Toasts.Dismiss(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}
