package handler

import (
	"github.com/labstack/echo/v4"

	"scholarsite/internal/auth"
	"scholarsite/internal/errors"
)

// SessionContextKey is where the session middleware stores the resolved *auth.Session.
const SessionContextKey = "session"

// SessionFrom returns the session attached to the request, or nil.
func SessionFrom(c echo.Context) *auth.Session {
	s, _ := c.Get(SessionContextKey).(*auth.Session)
	return s
}

// respondError converts a domain error into an echo HTTP error with the standard body.
func respondError(err error) error {
	httpErr := errors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
}
