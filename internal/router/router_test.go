package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"scholarsite/internal/auth"
	"scholarsite/internal/config"
	apperrors "scholarsite/internal/errors"
	"scholarsite/internal/handler"
	"scholarsite/internal/logging"
	"scholarsite/internal/model"
)

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Verify(ctx context.Context, email, password string) (*auth.Identity, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Identity), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*auth.Session, string, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*auth.Session), args.String(1), args.Error(2)
}

func (m *MockAuthService) Authenticate(ctx context.Context, token string) (*auth.Session, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Session), args.Error(1)
}

func (m *MockAuthService) Logout(ctx context.Context, session *auth.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func sessionWithRole(role model.Role) *auth.Session {
	now := time.Now()
	return &auth.Session{
		ID:        uuid.NewString(),
		User:      auth.Identity{ID: uuid.New(), Name: "Ada", Email: "a@x.com", Role: role},
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func newTestServer(t *testing.T) (*echo.Echo, *MockAuthService) {
	t.Helper()
	svc := new(MockAuthService)
	svc.On("Authenticate", mock.Anything, "admin-token").Return(sessionWithRole(model.RoleAdmin), nil)
	svc.On("Authenticate", mock.Anything, "user-token").Return(sessionWithRole(model.RoleUser), nil)
	svc.On("Authenticate", mock.Anything, "expired-token").Return(nil, apperrors.ErrSessionExpired)
	svc.On("Authenticate", mock.Anything, "unreachable-token").Return(nil, fmt.Errorf("%w: dial tcp", apperrors.ErrStoreUnavailable))

	cfg := &config.Config{SessionCookie: "sid"}
	e := echo.New()
	Register(e, cfg, logging.Nop(), svc,
		auth.NewGuard("/admin", "/login"),
		handler.NewAuthHandler(svc, handler.CookieConfig{Name: "sid"}),
		handler.NewAdminHandler(),
		handler.NewUserHandler(nil),
		handler.NewPostHandler(nil),
	)
	return e, svc
}

func serve(e *echo.Echo, method, target string, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set(echo.HeaderAuthorization, "Bearer "+token) }
}

func acceptJSON(r *http.Request) {
	r.Header.Set(echo.HeaderAccept, echo.MIMEApplicationJSON)
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Code
}

func TestRouter_Healthz(t *testing.T) {
	e, _ := newTestServer(t)
	rec := serve(e, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_AdminRedirectsAnonymousBrowser(t *testing.T) {
	e, _ := newTestServer(t)

	rec := serve(e, http.MethodGet, "/admin/posts")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?next=%2Fadmin%2Fposts", rec.Header().Get(echo.HeaderLocation))
}

func TestRouter_AdminPathNormalization(t *testing.T) {
	e, _ := newTestServer(t)

	for _, p := range []string{"/ADMIN", "/public/../admin", "/admin/"} {
		rec := serve(e, http.MethodGet, p)
		assert.Equal(t, http.StatusFound, rec.Code, p)
	}
}

func TestRouter_AdminAPIDeniesAnonymousWithJSON(t *testing.T) {
	e, _ := newTestServer(t)

	rec := serve(e, http.MethodGet, "/admin/api/users")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHENTICATED", errorCode(t, rec))
}

func TestRouter_AdminAllowsAdminSession(t *testing.T) {
	e, _ := newTestServer(t)

	rec := serve(e, http.MethodGet, "/admin", bearer("admin-token"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"ADMIN"`)

	rec = serve(e, http.MethodGet, "/admin", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "sid", Value: "admin-token"})
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_AdminForbidsStandardUser(t *testing.T) {
	e, _ := newTestServer(t)

	rec := serve(e, http.MethodGet, "/admin", bearer("user-token"), acceptJSON)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, rec))

	rec = serve(e, http.MethodGet, "/admin", bearer("user-token"))
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestRouter_ExpiredAndUnverifiableSessions(t *testing.T) {
	e, _ := newTestServer(t)

	rec := serve(e, http.MethodGet, "/admin/api/posts", bearer("expired-token"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "SESSION_EXPIRED", errorCode(t, rec))

	rec = serve(e, http.MethodGet, "/admin/api/posts", bearer("unreachable-token"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_PublicRoutesIgnoreBadSession(t *testing.T) {
	e, _ := newTestServer(t)

	rec := serve(e, http.MethodGet, "/login?next=%2Fadmin", bearer("expired-token"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"next":"/admin"`)
}

func TestRouter_SessionEndpoint(t *testing.T) {
	e, _ := newTestServer(t)

	rec := serve(e, http.MethodGet, "/api/auth/session", bearer("user-token"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"USER"`)

	rec = serve(e, http.MethodGet, "/api/auth/session")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
