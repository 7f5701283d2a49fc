package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"scholarsite/internal/auth"
	"scholarsite/internal/config"
	"scholarsite/internal/handler"
	"scholarsite/internal/logging"
	"scholarsite/internal/service"
)

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	log logging.Logger,
	authService service.AuthService,
	guard *auth.Guard,
	authHandler *handler.AuthHandler,
	adminHandler *handler.AdminHandler,
	userHandler *handler.UserHandler,
	postHandler *handler.PostHandler,
) {
	e.Use(middleware.RequestID())
	e.Use(RequestLogger(log))
	e.Use(middleware.Recover())
	if len(cfg.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     cfg.CORSOrigins,
			AllowCredentials: true,
		}))
	}

	// Add validator
	e.Validator = NewValidator()

	// Every request resolves its session, then passes the admin guard.
	e.Use(SessionMiddleware(authService, cfg.SessionCookie))
	e.Use(GuardMiddleware(guard, log))

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)
	e.GET("/login", authHandler.LoginPage)

	api := e.Group("/api")

	// Public routes
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/logout", authHandler.Logout)
	api.GET("/auth/session", authHandler.Session)
	api.GET("/posts", postHandler.ListPublished)
	api.GET("/posts/:slug", postHandler.GetPublished)

	// Admin routes; the guard has already rejected everything but admin sessions.
	admin := e.Group(guard.Prefix())
	admin.GET("", adminHandler.Dashboard)

	adminAPI := admin.Group("/api")
	adminAPI.GET("/users", userHandler.ListUsers)
	adminAPI.POST("/users", userHandler.ProvisionUser)
	adminAPI.GET("/users/:id", userHandler.GetUser)
	adminAPI.PATCH("/users/:id/role", userHandler.ChangeRole)
	adminAPI.PUT("/users/:id/password", userHandler.RotatePassword)
	adminAPI.DELETE("/users/:id", userHandler.DeleteUser)

	adminAPI.GET("/posts", postHandler.ListAll)
	adminAPI.POST("/posts", postHandler.Create)
	adminAPI.PUT("/posts/:id", postHandler.Update)
	adminAPI.DELETE("/posts/:id", postHandler.Delete)
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator returns the validator the router installs.
func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
