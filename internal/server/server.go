// Copyright 2025 The CampussGo Authors
// Licensed under the EUPL-1.2

// Package server wires the application together: configuration, logging,
// database, services, routes and graceful shutdown. Composition is explicit;
// every component receives its collaborators as constructor arguments.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"

	"codeberg.org/campussgo/campussgo/internal/config"
	"codeberg.org/campussgo/campussgo/internal/database"
	"codeberg.org/campussgo/campussgo/internal/handlers"
	authmw "codeberg.org/campussgo/campussgo/internal/middleware"
	"codeberg.org/campussgo/campussgo/internal/models"
	"codeberg.org/campussgo/campussgo/internal/repository"
	"codeberg.org/campussgo/campussgo/internal/services/auth"
	"codeberg.org/campussgo/campussgo/internal/services/email"
	"codeberg.org/campussgo/campussgo/internal/services/users"
	"codeberg.org/campussgo/campussgo/internal/storage"
	"codeberg.org/campussgo/campussgo/internal/token"
)

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	repo := repository.New(db)

	tokens, err := token.NewManager(cfg.JWT.Secret, cfg.JWT.Validity)
	if err != nil {
		return fmt.Errorf("failed to create token manager: %w", err)
	}

	notifier, err := email.NewService(&cfg.SMTP)
	if err != nil {
		return fmt.Errorf("failed to create email service: %w", err)
	}

	store, err := storage.NewStore(ctx, &cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to create object store: %w", err)
	}

	authSvc := auth.NewService(repo, tokens, notifier, cfg.Server.BaseURL)
	userSvc := users.NewService(repo, store)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(cfg.Log.Level == "debug")

	setupMiddleware(e, cfg)
	setupRoutes(e, authSvc, userSvc, tokens)

	return startWithGracefulShutdown(e, cfg)
}

func setupRoutes(e *echo.Echo, authSvc *auth.Service, userSvc *users.Service, tokens *token.Manager) {
	authH := handlers.NewAuth(authSvc)
	userH := handlers.NewUsers(userSvc)

	api := e.Group("/api/v1")
	api.GET("/health", handlers.Health)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", authH.Register)
	authGroup.POST("/login", authH.Login)
	authGroup.POST("/send-otp", authH.SendOTP)
	authGroup.POST("/verify-otp", authH.VerifyOTP)
	authGroup.POST("/forget-password", authH.ForgetPassword)
	authGroup.POST("/reset-password/:token", authH.ResetPassword)

	userGroup := api.Group("/users", authmw.RequireAuth(tokens))
	userGroup.POST("/upload-profile", userH.UploadProfile)

	adminOnly := authmw.RequireRole(models.RoleAdmin)
	userGroup.GET("", userH.GetAll, adminOnly)
	userGroup.GET("/:id", userH.GetOne, adminOnly)
	userGroup.POST("", userH.Create, adminOnly)
	userGroup.PATCH("/:id", userH.Update, adminOnly)
	userGroup.DELETE("/:id", userH.Delete, adminOnly)
}

func startWithGracefulShutdown(e *echo.Echo, cfg *config.Config) error {
	errChan := make(chan error, 1)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
