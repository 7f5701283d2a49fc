package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"scholarsite/internal/auth"
	apperrors "scholarsite/internal/errors"
	"scholarsite/internal/model"
	"scholarsite/internal/service"
)

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = &testValidator{v: validator.New()}
	return e
}

func newContext(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func assertHTTPError(t *testing.T, err error, status int, code string) {
	t.Helper()
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, status, he.Code)
	if code != "" {
		body, ok := he.Message.(apperrors.ErrorResponse)
		require.True(t, ok)
		assert.Equal(t, code, body.Code)
	}
}

func adminSession() *auth.Session {
	return &auth.Session{
		ID:        "sess-1",
		User:      auth.Identity{ID: uuid.New(), Name: "Ada", Email: "a@x.com", Role: model.RoleAdmin},
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("sets cookie and returns session", func(t *testing.T) {
		e := newEcho()
		svc := new(MockAuthService)
		s := adminSession()
		svc.On("Login", mock.Anything, "a@x.com", "secret").Return(s, "tok", nil)

		h := NewAuthHandler(svc, CookieConfig{Name: "sid", Secure: true})
		c, rec := newContext(e, http.MethodPost, "/api/auth/login", `{"email":"a@x.com","password":"secret"}`)

		require.NoError(t, h.Login(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp SessionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "tok", resp.Token)
		assert.Equal(t, model.RoleAdmin, resp.User.Role)

		cookie := rec.Result().Cookies()
		require.Len(t, cookie, 1)
		assert.Equal(t, "sid", cookie[0].Name)
		assert.Equal(t, "tok", cookie[0].Value)
		assert.True(t, cookie[0].HttpOnly)
		assert.True(t, cookie[0].Secure)
		svc.AssertExpectations(t)
	})

	t.Run("invalid credentials are 401", func(t *testing.T) {
		e := newEcho()
		svc := new(MockAuthService)
		svc.On("Login", mock.Anything, "a@x.com", "wrong").Return(nil, "", apperrors.ErrInvalidCredentials)

		h := NewAuthHandler(svc, CookieConfig{})
		c, _ := newContext(e, http.MethodPost, "/api/auth/login", `{"email":"a@x.com","password":"wrong"}`)

		assertHTTPError(t, h.Login(c), http.StatusUnauthorized, "INVALID_CREDENTIALS")
	})

	t.Run("validation rejects bad email", func(t *testing.T) {
		e := newEcho()
		svc := new(MockAuthService)
		h := NewAuthHandler(svc, CookieConfig{})
		c, _ := newContext(e, http.MethodPost, "/api/auth/login", `{"email":"nope","password":"x"}`)

		assertHTTPError(t, h.Login(c), http.StatusBadRequest, "VALIDATION_FAILED")
		svc.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	e := newEcho()
	svc := new(MockAuthService)
	s := adminSession()
	svc.On("Logout", mock.Anything, s).Return(nil)

	h := NewAuthHandler(svc, CookieConfig{Name: "sid"})
	c, rec := newContext(e, http.MethodPost, "/api/auth/logout", "")
	c.Set(SessionContextKey, s)

	require.NoError(t, h.Logout(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.True(t, cookies[0].MaxAge < 0)

	anon, _ := newContext(e, http.MethodPost, "/api/auth/logout", "")
	assertHTTPError(t, h.Logout(anon), http.StatusUnauthorized, "UNAUTHENTICATED")
}

func TestAuthHandler_LoginPageNext(t *testing.T) {
	e := newEcho()
	h := NewAuthHandler(new(MockAuthService), CookieConfig{})

	tests := map[string]string{
		"/admin/posts":       "/admin/posts",
		"//evil.example.com": "",
		"https://evil.com":   "",
		"/\\evil.com":        "",
	}
	for next, want := range tests {
		c, rec := newContext(e, http.MethodGet, "/login?next="+escapeQuery(next), "")
		require.NoError(t, h.LoginPage(c))

		var resp LoginPageResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, want, resp.Next, next)
	}
}

func escapeQuery(s string) string {
	return strings.NewReplacer("/", "%2F", ":", "%3A", "\\", "%5C").Replace(s)
}

func TestUserHandler_ProvisionUser(t *testing.T) {
	e := newEcho()
	svc := new(MockUserService)
	in := service.ProvisionInput{Email: "r@x.com", Name: "Rae", Password: "longenough", Role: model.RoleAdmin}
	svc.On("Provision", mock.Anything, in).Return(&model.User{ID: uuid.New(), Email: "r@x.com", Role: model.RoleAdmin}, true, nil)

	h := NewUserHandler(svc)
	c, rec := newContext(e, http.MethodPost, "/admin/api/users", `{"email":"r@x.com","name":"Rae","password":"longenough","role":"admin"}`)

	require.NoError(t, h.ProvisionUser(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	svc.AssertExpectations(t)
}

func TestUserHandler_ProvisionUserRejectsShortPassword(t *testing.T) {
	e := newEcho()
	svc := new(MockUserService)
	h := NewUserHandler(svc)
	c, _ := newContext(e, http.MethodPost, "/admin/api/users", `{"email":"r@x.com","name":"Rae","password":"short"}`)

	assertHTTPError(t, h.ProvisionUser(c), http.StatusBadRequest, "VALIDATION_FAILED")
	svc.AssertNotCalled(t, "Provision", mock.Anything, mock.Anything)
}

func TestUserHandler_ChangeRole(t *testing.T) {
	e := newEcho()
	svc := new(MockUserService)
	id := uuid.New()
	svc.On("ChangeRole", mock.Anything, id, model.RoleUser).Return(&model.User{ID: id, Role: model.RoleUser}, nil)

	h := NewUserHandler(svc)
	c, rec := newContext(e, http.MethodPatch, "/", `{"role":"USER"}`)
	c.SetParamNames("id")
	c.SetParamValues(id.String())

	require.NoError(t, h.ChangeRole(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestUserHandler_InvalidID(t *testing.T) {
	e := newEcho()
	h := NewUserHandler(new(MockUserService))
	c, _ := newContext(e, http.MethodDelete, "/", "")
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	assertHTTPError(t, h.DeleteUser(c), http.StatusBadRequest, "INVALID_UUID")
}

func TestUserHandler_DeleteUserNotFound(t *testing.T) {
	e := newEcho()
	svc := new(MockUserService)
	id := uuid.New()
	svc.On("DeleteUser", mock.Anything, id).Return(apperrors.ErrUserNotFound)

	h := NewUserHandler(svc)
	c, _ := newContext(e, http.MethodDelete, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(id.String())

	assertHTTPError(t, h.DeleteUser(c), http.StatusNotFound, "USER_NOT_FOUND")
}

func TestPostHandler_CreateUsesSessionAuthor(t *testing.T) {
	e := newEcho()
	svc := new(MockPostService)
	s := adminSession()
	in := service.PostInput{Title: "Market Watch", Body: "body", Published: true}
	svc.On("Create", mock.Anything, s.User.ID, in).Return(&model.Post{ID: uuid.New(), Title: "Market Watch", Slug: "market-watch"}, nil)

	h := NewPostHandler(svc)
	c, rec := newContext(e, http.MethodPost, "/admin/api/posts", `{"title":"Market Watch","body":"body","published":true}`)
	c.Set(SessionContextKey, s)

	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	svc.AssertExpectations(t)
}

func TestPostHandler_GetPublishedNotFound(t *testing.T) {
	e := newEcho()
	svc := new(MockPostService)
	svc.On("GetPublishedBySlug", mock.Anything, "missing").Return(nil, apperrors.ErrPostNotFound)

	h := NewPostHandler(svc)
	c, _ := newContext(e, http.MethodGet, "/", "")
	c.SetParamNames("slug")
	c.SetParamValues("missing")

	assertHTTPError(t, h.GetPublished(c), http.StatusNotFound, "POST_NOT_FOUND")
}

func TestAdminHandler_Dashboard(t *testing.T) {
	e := newEcho()
	h := NewAdminHandler()

	c, rec := newContext(e, http.MethodGet, "/admin", "")
	c.Set(SessionContextKey, adminSession())
	require.NoError(t, h.Dashboard(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/admin/api/users")

	anon, _ := newContext(e, http.MethodGet, "/admin", "")
	assertHTTPError(t, h.Dashboard(anon), http.StatusUnauthorized, "UNAUTHENTICATED")
}
