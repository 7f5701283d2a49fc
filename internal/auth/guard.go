package auth

import (
	"net/url"
	"path"
	"strings"
	"time"

	apperrors "scholarsite/internal/errors"
)

// DefaultAdminPrefix is the path root of everything restricted to admins.
const DefaultAdminPrefix = "/admin"

// Decision is the outcome of a route guard check.
type Decision struct {
	Allowed    bool
	Restricted bool
	// Reason is nil when allowed, otherwise ErrUnauthenticated,
	// ErrSessionExpired or ErrForbidden.
	Reason error
	// RedirectTo is the login entry point for denied requests.
	RedirectTo string
}

// Guard classifies request paths and decides access. It has no side effects.
type Guard struct {
	prefix    string
	loginPath string
	now       func() time.Time
}

// NewGuard builds a guard restricting prefix (and everything under it) to admins.
func NewGuard(prefix, loginPath string) *Guard {
	if prefix == "" {
		prefix = DefaultAdminPrefix
	}
	prefix = "/" + strings.Trim(strings.ToLower(prefix), "/")
	if loginPath == "" {
		loginPath = "/login"
	}
	return &Guard{prefix: prefix, loginPath: loginPath, now: time.Now}
}

// Prefix returns the normalized admin prefix.
func (g *Guard) Prefix() string {
	return g.prefix
}

// WithClock replaces the time source. Used by tests.
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.now = now
	return g
}

// Restricted reports whether p lies under the admin prefix. The path is
// cleaned first so "/x/../admin" cannot slip through.
func (g *Guard) Restricted(p string) bool {
	clean := strings.ToLower(cleanPath(p))
	return clean == g.prefix || strings.HasPrefix(clean, g.prefix+"/")
}

// IsAuthorized is true for public paths, and for restricted paths only when
// s is present, unexpired and carries the ADMIN role.
func (g *Guard) IsAuthorized(p string, s *Session) bool {
	return g.Decide(p, s).Allowed
}

// Decide returns the full decision for p, including the login redirect on denial.
func (g *Guard) Decide(p string, s *Session) Decision {
	if !g.Restricted(p) {
		return Decision{Allowed: true}
	}

	d := Decision{Restricted: true}
	switch {
	case s == nil:
		d.Reason = apperrors.ErrUnauthenticated
	case s.Expired(g.now()):
		d.Reason = apperrors.ErrSessionExpired
	case !s.IsAdmin():
		d.Reason = apperrors.ErrForbidden
	default:
		d.Allowed = true
		return d
	}
	d.RedirectTo = g.loginPath + "?next=" + url.QueryEscape(cleanPath(p))
	return d
}

var defaultGuard = NewGuard(DefaultAdminPrefix, "/login")

// IsAuthorized applies the default "/admin" guard.
func IsAuthorized(p string, s *Session) bool {
	return defaultGuard.IsAuthorized(p, s)
}

func cleanPath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
