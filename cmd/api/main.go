package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cashbook/internal/config"
	"cashbook/internal/database"
	"cashbook/internal/logger"
	"cashbook/internal/reconciler"
	"cashbook/internal/server"
	"cashbook/internal/storage"
	"cashbook/internal/validator"
)

// @title           Cashbook API
// @version         1.0
// @description     Cashbook keeps shared and personal cash ledgers with a running balance on every entry.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbConfig, err := database.NewConfig(appConfig)
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("database close error: %v", err)
		}
	}()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	receipts, err := storage.NewLocalStore(appConfig.UploadDir, appConfig.MaxUploadBytes)
	if err != nil {
		return fmt.Errorf("failed to prepare upload directory: %w", err)
	}

	validator.Register()
	app := server.New(appConfig, dbManager.DB(), receipts)

	if admin, err := app.Users.EnsureAdmin(appConfig.AdminEmail, appConfig.AdminPassword); err != nil {
		return fmt.Errorf("failed to ensure admin user: %w", err)
	} else if admin != nil {
		log.Infow("Admin user ready", "email", admin.Email)
	}

	rec, err := reconciler.New(app.Ledger, appConfig.ReconcileInterval)
	if err != nil {
		return fmt.Errorf("failed to create reconciler: %w", err)
	}
	if err := rec.Start(); err != nil {
		return fmt.Errorf("failed to start reconciler: %w", err)
	}
	defer func() {
		if err := rec.Stop(); err != nil {
			log.Warnf("reconciler shutdown error: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting Cashbook API on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Infow("Shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
