package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"scholarsite/internal/errors"
	"scholarsite/internal/model"
	"scholarsite/internal/service"
)

// UserHandler serves the admin user-management API.
type UserHandler struct {
	svc service.UserService
}

// NewUserHandler creates a handler layer.
func NewUserHandler(svc service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// ProvisionUserRequest creates or updates a user by email.
type ProvisionUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,max=255"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"omitempty,oneof=ADMIN USER admin user"`
}

// ChangeRoleRequest sets a user's role.
type ChangeRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=ADMIN USER admin user"`
}

// RotatePasswordRequest sets a new password.
type RotatePasswordRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid id",
			Code:  "INVALID_UUID",
		})
	}
	return id, nil
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{Error: err.Error(), Code: "VALIDATION_FAILED"})
	}
	return nil
}

// ListUsers godoc
// @Summary List users
// @Tags admin-users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.User
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /admin/api/users [get]
func (h *UserHandler) ListUsers(c echo.Context) error {
	users, err := h.svc.ListUsers(c.Request().Context())
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, users)
}

// GetUser godoc
// @Summary Get user by id
// @Tags admin-users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} model.User
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/api/users/{id} [get]
func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	user, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// ProvisionUser godoc
// @Summary Create or update a user
// @Tags admin-users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ProvisionUserRequest true "User"
// @Success 200 {object} model.User "updated"
// @Success 201 {object} model.User "created"
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /admin/api/users [post]
func (h *UserHandler) ProvisionUser(c echo.Context) error {
	var req ProvisionUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	role, err := model.ParseRole(req.Role)
	if err != nil {
		return respondError(err)
	}

	user, created, err := h.svc.Provision(c.Request().Context(), service.ProvisionInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		return respondError(err)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, user)
}

// ChangeRole godoc
// @Summary Change a user's role
// @Description Sessions already issued keep their role until they expire or sign out.
// @Tags admin-users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body ChangeRoleRequest true "Role"
// @Success 200 {object} model.User
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/api/users/{id}/role [patch]
func (h *UserHandler) ChangeRole(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req ChangeRoleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	role, err := model.ParseRole(req.Role)
	if err != nil {
		return respondError(err)
	}

	user, err := h.svc.ChangeRole(c.Request().Context(), id, role)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// RotatePassword godoc
// @Summary Rotate a user's password
// @Tags admin-users
// @Accept json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body RotatePasswordRequest true "New password"
// @Success 204
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/api/users/{id}/password [put]
func (h *UserHandler) RotatePassword(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req RotatePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.svc.RotatePassword(c.Request().Context(), id, req.Password); err != nil {
		return respondError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteUser godoc
// @Summary Delete a user
// @Tags admin-users
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 204
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/api/users/{id} [delete]
func (h *UserHandler) DeleteUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteUser(c.Request().Context(), id); err != nil {
		return respondError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
