package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/serveis-extraordinaris/backend/internal/apperr"
	"github.com/serveis-extraordinaris/backend/internal/middleware"
	"github.com/serveis-extraordinaris/backend/internal/service"
)

// dbTimeout bounds every store call made on behalf of a request.
const dbTimeout = 5 * time.Second

func reqContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

func deviceFrom(c echo.Context) service.Device {
	agent := c.Request().UserAgent()
	if agent == "" {
		agent = "unknown"
	}
	return service.Device{Agent: agent, IP: c.RealIP()}
}

// AuthHandler exposes the authentication endpoints.
type AuthHandler struct {
	Auth *service.AuthService
}

func NewAuthHandler(a *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: a}
}

// ----- DTOs -----

type registerReq struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	Role          string `json:"role"`
	Name          string `json:"name"`
	FirstSurname  string `json:"first_surname"`
	SecondSurname string `json:"second_surname"`
	Department    string `json:"department"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperr.BadRequest("email and password are required")
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	user, err := h.Auth.Register(ctx, service.RegisterInput{
		Email:         req.Email,
		Password:      req.Password,
		Role:          req.Role,
		Name:          req.Name,
		FirstSurname:  req.FirstSurname,
		SecondSurname: req.SecondSurname,
		Department:    req.Department,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"user": user})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperr.BadRequest("email and password are required")
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	result, err := h.Auth.Login(ctx, req.Email, req.Password, deviceFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// Refresh handles POST /auth/refresh.  The refresh token travels in the
// body, not the authorization header.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return apperr.BadRequest("refresh_token is required")
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	result, err := h.Auth.Refresh(ctx, strings.TrimSpace(req.RefreshToken), deviceFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// Logout handles POST /auth/logout.  Revoking an already-revoked or unknown
// token is not an error; the response reports whether anything changed.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return apperr.BadRequest("refresh_token is required")
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	revoked, err := h.Auth.Logout(ctx, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"revoked": revoked})
}

// LogoutAll handles POST /auth/logout-all (bearer access token required).
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return apperr.Unauthorized("not authenticated")
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	n, err := h.Auth.LogoutAll(ctx, id.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"tokens_revoked": n})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return apperr.Unauthorized("not authenticated")
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	user, err := h.Auth.CurrentUser(ctx, id.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"user": user})
}

// Sessions handles GET /auth/sessions, listing the caller's active devices.
func (h *AuthHandler) Sessions(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return apperr.Unauthorized("not authenticated")
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	sessions, err := h.Auth.ActiveSessions(ctx, id.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": sessions})
}
