package middleware

// identity.go makes the signed-in identity available to handlers.  The
// identity is read once per request; a logout that happens while the
// request runs does not change the copy the handler works with.

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/classsync/internal/model"
)

const identityKey = "identity"

// IdentitySource returns the current identity, if any.
type IdentitySource interface {
	Current() (model.Identity, bool)
}

// RequireIdentity rejects requests with 401 when nobody is signed in.
// Otherwise the identity is stored in the context together with its role
// so RequireRole can run after it.
func RequireIdentity(src IdentitySource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := src.Current()
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not signed in"})
			}
			c.Set(identityKey, id)
			c.Set("user_id", id.User.ID)
			c.Set("role", id.Role)
			return next(c)
		}
	}
}

// IdentityFrom returns the identity stored by RequireIdentity.
func IdentityFrom(c echo.Context) (model.Identity, bool) {
	id, ok := c.Get(identityKey).(model.Identity)
	return id, ok
}
