package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/classsync/internal/classsession"
	"github.com/iliyamo/classsync/internal/dashboard"
	"github.com/iliyamo/classsync/internal/identity"
	"github.com/iliyamo/classsync/internal/middleware"
	"github.com/iliyamo/classsync/internal/model"
	"github.com/iliyamo/classsync/internal/portal"
	"github.com/iliyamo/classsync/internal/scan"
	"github.com/iliyamo/classsync/internal/utils"
)

// requestTimeout bounds the backend work of one gateway request.
const requestTimeout = 15 * time.Second

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// identityOf returns the identity RequireIdentity stored.
func identityOf(c echo.Context) (model.Identity, error) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return model.Identity{}, identity.ErrNoIdentity
	}
	return id, nil
}

// fail writes err as {"error": msg} with a status matching its kind.
func fail(c echo.Context, err error) error {
	var ve *utils.ValidationError
	if errors.As(err, &ve) {
		body := echo.Map{"error": ve.Message}
		if len(ve.Fields) > 0 {
			body["fields"] = ve.Fields
		}
		return c.JSON(http.StatusBadRequest, body)
	}
	if apiErr, ok := portal.AsAPIError(err); ok {
		body := echo.Map{"error": portal.Message(err, http.StatusText(apiErr.Status))}
		if len(apiErr.Conflicts) > 0 {
			body["conflicts"] = apiErr.Conflicts
		}
		status := apiErr.Status
		if status >= 500 {
			status = http.StatusBadGateway
		}
		return c.JSON(status, body)
	}
	if portal.IsTransport(err) {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "portal backend unreachable"})
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusGatewayTimeout, echo.Map{"error": "portal backend timed out"})
	case errors.Is(err, identity.ErrNoIdentity):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
	case errors.Is(err, dashboard.ErrNotPending), errors.Is(err, errSurfaceNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, dashboard.ErrUnknownSubject),
		errors.Is(err, dashboard.ErrNoSection),
		errors.Is(err, classsession.ErrUnknownSubject),
		errors.Is(err, classsession.ErrUnknownSlot):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, classsession.ErrNotActive),
		errors.Is(err, classsession.ErrInProgress),
		errors.Is(err, classsession.ErrNotIdle),
		errors.Is(err, classsession.ErrStale),
		errors.Is(err, dashboard.ErrNotLoaded),
		errors.Is(err, dashboard.ErrStale),
		errors.Is(err, scan.ErrSurfaceClosed):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	}
	log.Errorf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// stream copies a backend download to the response.
func stream(c echo.Context, dl *portal.Download) error {
	defer dl.Body.Close()
	if dl.ContentDisposition != "" {
		c.Response().Header().Set(echo.HeaderContentDisposition, dl.ContentDisposition)
	}
	ct := dl.ContentType
	if ct == "" {
		ct = echo.MIMEOctetStream
	}
	return c.Stream(http.StatusOK, ct, dl.Body)
}
