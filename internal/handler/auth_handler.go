package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"scholarsite/internal/auth"
	"scholarsite/internal/errors"
	"scholarsite/internal/service"
)

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService service.AuthService
	cookie      CookieConfig
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService service.AuthService, cookie CookieConfig) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = "session"
	}
	return &AuthHandler{authService: authService, cookie: cookie}
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SessionResponse describes an issued session.
type SessionResponse struct {
	Token     string        `json:"token,omitempty"`
	SessionID string        `json:"session_id"`
	ExpiresAt time.Time     `json:"expires"`
	User      auth.Identity `json:"user"`
}

// LoginPageResponse is returned by the login entry point.
type LoginPageResponse struct {
	Message  string `json:"message"`
	LoginURL string `json:"login_url"`
	Next     string `json:"next,omitempty"`
}

// LoginPage godoc
// @Summary Login entry point
// @Description Target of guard redirects. Echoes the page the visitor was sent away from.
// @Tags auth
// @Produce json
// @Param next query string false "Path to return to after login"
// @Success 200 {object} LoginPageResponse
// @Router /login [get]
func (h *AuthHandler) LoginPage(c echo.Context) error {
	return c.JSON(http.StatusOK, LoginPageResponse{
		Message:  "sign in by posting email and password",
		LoginURL: "/api/auth/login",
		Next:     safeNext(c.QueryParam("next")),
	})
}

// Login godoc
// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} SessionResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 503 {object} errors.ErrorResponse
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{Error: err.Error(), Code: "VALIDATION_FAILED"})
	}

	session, token, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return respondError(err)
	}

	c.SetCookie(&http.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	return c.JSON(http.StatusOK, SessionResponse{
		Token:     token,
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt,
		User:      session.User,
	})
}

// Logout godoc
// @Summary Sign out of the current session
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string
// @Failure 401 {object} errors.ErrorResponse
// @Failure 503 {object} errors.ErrorResponse
// @Router /api/auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	session := SessionFrom(c)
	if session == nil {
		return respondError(errors.ErrUnauthenticated)
	}

	if err := h.authService.Logout(c.Request().Context(), session); err != nil {
		return respondError(err)
	}

	c.SetCookie(&http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	return c.JSON(http.StatusOK, map[string]string{
		"message": "signed out",
	})
}

// Session godoc
// @Summary Current session
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} SessionResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /api/auth/session [get]
func (h *AuthHandler) Session(c echo.Context) error {
	session := SessionFrom(c)
	if session == nil {
		return respondError(errors.ErrUnauthenticated)
	}
	return c.JSON(http.StatusOK, SessionResponse{
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt,
		User:      session.User,
	})
}

// safeNext keeps only same-site absolute paths.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}
	return next
}
