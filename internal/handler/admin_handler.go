package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"scholarsite/internal/auth"
	"scholarsite/internal/errors"
)

// AdminHandler serves the admin landing endpoint.
type AdminHandler struct{}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler() *AdminHandler {
	return &AdminHandler{}
}

// DashboardResponse summarizes what the admin area offers.
type DashboardResponse struct {
	User     auth.Identity     `json:"user"`
	Sections map[string]string `json:"sections"`
}

// Dashboard godoc
// @Summary Admin landing
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} DashboardResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /admin [get]
func (h *AdminHandler) Dashboard(c echo.Context) error {
	session := SessionFrom(c)
	if session == nil {
		return respondError(errors.ErrUnauthenticated)
	}
	return c.JSON(http.StatusOK, DashboardResponse{
		User: session.User,
		Sections: map[string]string{
			"users": "/admin/api/users",
			"posts": "/admin/api/posts",
		},
	})
}
