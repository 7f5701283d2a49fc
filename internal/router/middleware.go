package router

import (
	"errors"
	"net/http"
	"strings"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"scholarsite/internal/auth"
	apperrors "scholarsite/internal/errors"
	"scholarsite/internal/handler"
	"scholarsite/internal/logging"
	"scholarsite/internal/service"
)

// sessionErrorKey holds why a presented session was rejected, if one was.
const sessionErrorKey = "session_error"

// SessionMiddleware resolves the session from the Authorization header or the
// session cookie. Requests without a usable session continue anonymously.
func SessionMiddleware(authService service.AuthService, cookieName string) echo.MiddlewareFunc {
	lookup := "header:" + echo.HeaderAuthorization + ":Bearer "
	if cookieName != "" {
		lookup += ",cookie:" + cookieName
	}
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  handler.SessionContextKey,
		TokenLookup: lookup,
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return authService.Authenticate(c.Request().Context(), token)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			c.Set(sessionErrorKey, err)
			return nil
		},
		ContinueOnIgnoredError: true,
	})
}

// GuardMiddleware enforces the admin guard on every request. API callers get a
// JSON 401/403; browsers are redirected to the login page.
func GuardMiddleware(guard *auth.Guard, log logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := c.Request().URL.Path
			d := guard.Decide(p, handler.SessionFrom(c))
			if d.Allowed {
				return next(c)
			}

			reason := d.Reason
			if sessErr, ok := c.Get(sessionErrorKey).(error); ok && errors.Is(reason, apperrors.ErrUnauthenticated) {
				// Surface why the presented session was dropped.
				switch {
				case errors.Is(sessErr, apperrors.ErrSessionExpired):
					reason = apperrors.ErrSessionExpired
				case errors.Is(sessErr, apperrors.ErrStoreUnavailable):
					reason = apperrors.ErrStoreUnavailable
				}
			}

			log.Info(c.Request().Context(), "admin access denied",
				"path", p,
				"reason", reason.Error(),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			)

			if wantsJSON(c, guard.Prefix()) {
				httpErr := apperrors.MapErrorToHTTP(reason)
				return c.JSON(httpErr.StatusCode, httpErr.ToErrorResponse())
			}
			return c.Redirect(http.StatusFound, d.RedirectTo)
		}
	}
}

func wantsJSON(c echo.Context, prefix string) bool {
	if strings.HasPrefix(strings.ToLower(c.Request().URL.Path), prefix+"/api") {
		return true
	}
	accept := c.Request().Header.Get(echo.HeaderAccept)
	return strings.Contains(accept, echo.MIMEApplicationJSON) && !strings.Contains(accept, echo.MIMETextHTML)
}

// RequestLogger emits one structured line per request.
func RequestLogger(log logging.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			args := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				log.Warn(c.Request().Context(), "request failed", append(args, "error", v.Error.Error())...)
				return nil
			}
			log.Info(c.Request().Context(), "request", args...)
			return nil
		},
	})
}
