package errors

import (
	"errors"
	"net/http"

	"scholarsite/internal/model"
)

var (
	// ErrBadPassword is the internal reason for a password mismatch. Never returned to clients.
	ErrBadPassword = errors.New("password mismatch")
	// ErrInvalidCredentials is the single opaque login failure, for unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrSessionExpired is returned when a session is past its expiry.
	ErrSessionExpired = errors.New("session expired")
	// ErrInvalidSession is returned for malformed, forged or revoked sessions.
	ErrInvalidSession = errors.New("invalid session")
	// ErrUnauthenticated is returned when a session is required but absent.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden is returned when a valid session lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrStoreUnavailable wraps persistence failures.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when an email is already registered to another user.
	ErrEmailTaken = errors.New("email already in use")
	// ErrPasswordTooShort is returned when a new password is below the minimum length.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrPostNotFound is returned when a post is not found.
	ErrPostNotFound = errors.New("post not found")
	// ErrSlugTaken is returned when a post slug is already in use.
	ErrSlugTaken = errors.New("slug already in use")
	// ErrInvalidSlug is returned when no slug can be derived for a post.
	ErrInvalidSlug = errors.New("invalid slug")
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	switch {
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrBadPassword):
		return NewHTTPError(http.StatusUnauthorized, ErrInvalidCredentials.Error(), "INVALID_CREDENTIALS")
	case errors.Is(err, ErrSessionExpired):
		return NewHTTPError(http.StatusUnauthorized, err.Error(), "SESSION_EXPIRED")
	case errors.Is(err, ErrInvalidSession):
		return NewHTTPError(http.StatusUnauthorized, ErrInvalidSession.Error(), "INVALID_SESSION")
	case errors.Is(err, ErrUnauthenticated):
		return NewHTTPError(http.StatusUnauthorized, err.Error(), "UNAUTHENTICATED")
	case errors.Is(err, ErrForbidden):
		return NewHTTPError(http.StatusForbidden, err.Error(), "FORBIDDEN")
	case errors.Is(err, ErrUserNotFound):
		return NewHTTPError(http.StatusNotFound, ErrUserNotFound.Error(), "USER_NOT_FOUND")
	case errors.Is(err, ErrPostNotFound):
		return NewHTTPError(http.StatusNotFound, ErrPostNotFound.Error(), "POST_NOT_FOUND")
	case errors.Is(err, ErrEmailTaken):
		return NewHTTPError(http.StatusConflict, ErrEmailTaken.Error(), "EMAIL_TAKEN")
	case errors.Is(err, ErrSlugTaken):
		return NewHTTPError(http.StatusConflict, ErrSlugTaken.Error(), "SLUG_TAKEN")
	case errors.Is(err, ErrInvalidSlug):
		return NewHTTPError(http.StatusBadRequest, ErrInvalidSlug.Error(), "INVALID_SLUG")
	case errors.Is(err, ErrPasswordTooShort):
		return NewHTTPError(http.StatusBadRequest, ErrPasswordTooShort.Error(), "PASSWORD_TOO_SHORT")
	case errors.Is(err, model.ErrPlaintextPassword):
		return NewHTTPError(http.StatusBadRequest, "invalid password", "INVALID_PASSWORD")
	case errors.Is(err, model.ErrInvalidRole):
		return NewHTTPError(http.StatusBadRequest, model.ErrInvalidRole.Error(), "INVALID_ROLE")
	case errors.Is(err, ErrStoreUnavailable):
		return NewHTTPError(http.StatusServiceUnavailable, "service temporarily unavailable", "STORE_UNAVAILABLE")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
