package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"scholarsite/docs"
	"scholarsite/internal/auth"
	"scholarsite/internal/cache"
	"scholarsite/internal/config"
	"scholarsite/internal/db"
	"scholarsite/internal/handler"
	"scholarsite/internal/logging"
	"scholarsite/internal/repository"
	"scholarsite/internal/router"
	"scholarsite/internal/service"
)

// @title Research Site API
// @version 1.0
// @description Content and administration API for a researcher's website, with role-based sessions.
// @host localhost:8080
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token.
func main() {
	cfg := config.Load()
	log := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	if cfg.SessionSecret == "change-me" {
		log.Warn(ctx, "SESSION_SECRET is the default; set a real secret outside development")
	}

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Error(ctx, "database init", "error", err)
		os.Exit(1)
	}

	if cfg.ResetDB {
		log.Warn(ctx, "RESET_DB=true detected, dropping all tables")
	}
	if err := db.Migrate(gormDB, cfg.ResetDB); err != nil {
		log.Error(ctx, "migrate", "error", err)
		os.Exit(1)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()
	if err := cacheClient.Ping(ctx); err != nil {
		// Post reads degrade to the database; sign-in and admin access fail closed until redis is back.
		log.Warn(ctx, "redis unreachable", "addr", cfg.RedisAddr, "error", err)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)
	postRepo := repository.NewPostRepository(gormDB)

	// Initialize auth components
	issuer := auth.NewSessionIssuer(cfg.SessionSecret, cfg.SessionTTL)
	sessionStore := auth.NewSessionStore(cacheClient)
	guard := auth.NewGuard(cfg.AdminPrefix, cfg.LoginPath)

	// Initialize services
	authService := service.NewAuthService(userRepo, issuer, sessionStore, cfg.BcryptCost, log.With("component", "auth"))
	userService := service.NewUserService(userRepo, cfg.BcryptCost, log.With("component", "users"))
	postService := service.NewPostService(postRepo, cacheClient, log.With("component", "posts"))

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService, handler.CookieConfig{
		Name:   cfg.SessionCookie,
		Secure: cfg.CookieSecure,
	})
	adminHandler := handler.NewAdminHandler()
	userHandler := handler.NewUserHandler(userService)
	postHandler := handler.NewPostHandler(postService)

	e := echo.New()
	e.HideBanner = true

	// Register routes
	router.Register(
		e,
		cfg,
		log.With("component", "http"),
		authService,
		guard,
		authHandler,
		adminHandler,
		userHandler,
		postHandler,
	)

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = cfg.SwaggerHost
	}
	log.Info(ctx, "swagger documentation available", "path", "/swagger/index.html")

	go func() {
		addr := ":" + cfg.ServerPort
		log.Info(ctx, "server starting", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "server start", "error", err)
			os.Exit(1)
		}
	}()

	stop, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-stop.Done()

	shutdownCtx, cancelShutdown := context.WithTimeout(ctx, 10*time.Second)
	defer cancelShutdown()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown", "error", err)
	}
	log.Info(ctx, "server stopped")
}
