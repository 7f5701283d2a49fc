package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"scholarsite/internal/errors"
	"scholarsite/internal/service"
)

// PostHandler serves public blog reads and the admin authoring API.
type PostHandler struct {
	svc service.PostService
}

// NewPostHandler creates a new post handler.
func NewPostHandler(svc service.PostService) *PostHandler {
	return &PostHandler{svc: svc}
}

// PostRequest carries the editable fields of a post.
type PostRequest struct {
	Title     string `json:"title" validate:"required,max=255"`
	Slug      string `json:"slug" validate:"omitempty,max=255"`
	Summary   string `json:"summary" validate:"max=512"`
	Body      string `json:"body" validate:"required"`
	Published bool   `json:"published"`
}

func (r PostRequest) input() service.PostInput {
	return service.PostInput{
		Title:     r.Title,
		Slug:      r.Slug,
		Summary:   r.Summary,
		Body:      r.Body,
		Published: r.Published,
	}
}

// ListPublished godoc
// @Summary List published posts
// @Tags posts
// @Produce json
// @Success 200 {array} model.Post
// @Failure 503 {object} errors.ErrorResponse
// @Router /api/posts [get]
func (h *PostHandler) ListPublished(c echo.Context) error {
	posts, err := h.svc.ListPublished(c.Request().Context())
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, posts)
}

// GetPublished godoc
// @Summary Get a published post by slug
// @Tags posts
// @Produce json
// @Param slug path string true "Post slug"
// @Success 200 {object} model.Post
// @Failure 404 {object} errors.ErrorResponse
// @Router /api/posts/{slug} [get]
func (h *PostHandler) GetPublished(c echo.Context) error {
	post, err := h.svc.GetPublishedBySlug(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, post)
}

// ListAll godoc
// @Summary List all posts including drafts
// @Tags admin-posts
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Post
// @Router /admin/api/posts [get]
func (h *PostHandler) ListAll(c echo.Context) error {
	posts, err := h.svc.ListAll(c.Request().Context())
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, posts)
}

// Create godoc
// @Summary Create a post
// @Tags admin-posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PostRequest true "Post"
// @Success 201 {object} model.Post
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /admin/api/posts [post]
func (h *PostHandler) Create(c echo.Context) error {
	session := SessionFrom(c)
	if session == nil {
		return respondError(errors.ErrUnauthenticated)
	}
	var req PostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	post, err := h.svc.Create(c.Request().Context(), session.User.ID, req.input())
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusCreated, post)
}

// Update godoc
// @Summary Update a post
// @Tags admin-posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Param request body PostRequest true "Post"
// @Success 200 {object} model.Post
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/api/posts/{id} [put]
func (h *PostHandler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req PostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	post, err := h.svc.Update(c.Request().Context(), id, req.input())
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, post)
}

// Delete godoc
// @Summary Delete a post
// @Tags admin-posts
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 204
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/api/posts/{id} [delete]
func (h *PostHandler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return respondError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
