package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/classsync/internal/identity"
	"github.com/iliyamo/classsync/internal/model"
	"github.com/iliyamo/classsync/internal/utils"
)

// AuthHandler signs the gateway in and out of the portal backend.
type AuthHandler struct {
	Identity *identity.Store
}

func NewAuthHandler(store *identity.Store) *AuthHandler {
	return &AuthHandler{Identity: store}
}

// meResp never carries the bearer token; it stays inside the gateway.
type meResp struct {
	Role      string     `json:"role"`
	User      model.User `json:"user"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func me(id model.Identity) meResp {
	out := meResp{Role: id.Role, User: id.User}
	if info, err := utils.InspectToken(id.Token); err == nil && !info.Exp.IsZero() {
		exp := info.Exp
		out.ExpiresAt = &exp
	}
	return out
}

// Login: POST /v1/auth/login {role, login, password}.
func (h *AuthHandler) Login(c echo.Context) error {
	var form model.LoginForm
	if err := c.Bind(&form); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	id, err := h.Identity.Login(ctx, form)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, me(id))
}

// Logout: POST /v1/auth/logout.  Logging out twice is not an error.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.Identity.Logout(ctx); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me: GET /v1/me.
func (h *AuthHandler) Me(c echo.Context) error {
	id, err := identityOf(c)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, me(id))
}
