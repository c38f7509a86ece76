package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	database "github.com/commercekit/catalog-api/app/db"
	appLogger "github.com/commercekit/catalog-api/app/logger"
	"github.com/commercekit/catalog-api/app/observability/metrics"
	"github.com/commercekit/catalog-api/app/tracer"
	"github.com/commercekit/catalog-api/config"
	"github.com/commercekit/catalog-api/internal/api/auth"
	"github.com/commercekit/catalog-api/internal/api/category"
	"github.com/commercekit/catalog-api/internal/api/product"
	"github.com/commercekit/catalog-api/internal/api/user"
	"github.com/commercekit/catalog-api/internal/router"
)

func main() {
	// Use standard log until slog is configured, in case godotenv fails
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	logger := setupLogger(cfg.Mode)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Observability: tracer + meter providers, /metrics on its own port
	tracer.InitTracingAndMetrics(cfg.Server.MetricsPort)
	metrics.InitAppMetrics()

	// --- Database Setup ---
	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		os.Exit(1)
	}

	// Run migrations before initializing the main pool
	if err = database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		logger.Error("Failed to run database migrations", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if !database.WaitForDB(ctx, pool, logger) {
		logger.Error("Database not ready after waiting, exiting.")
		os.Exit(1)
	}

	// --- Dependency Injection ---
	authRepo := auth.NewPostgresAuthRepo(pool, logger)
	authService := auth.NewAuthService(authRepo, &cfg, logger)
	authHandler := auth.NewHandlerImpl(authService, logger)

	// Optional first-admin seed; registration only ever creates plain users.
	if adminEmail := os.Getenv("ADMIN_EMAIL"); adminEmail != "" {
		if err := authService.EnsureAdmin(ctx, adminEmail, os.Getenv("ADMIN_PASSWORD")); err != nil {
			logger.Error("Failed to seed admin account", slog.Any("error", err))
			os.Exit(1)
		}
	}

	userRepo := user.NewPostgresUserRepo(pool, logger)
	userService := user.NewUserService(userRepo, logger)
	userHandler := user.NewHandlerImpl(userService, logger)

	categoryRepo := category.NewPostgresCategoryRepo(pool, logger)
	categoryService := category.NewCategoryService(categoryRepo, logger)
	categoryHandler := category.NewHandlerImpl(categoryService, logger)

	productRepo := product.NewPostgresProductRepo(pool, logger)
	productService := product.NewProductService(productRepo, logger)
	productHandler := product.NewHandlerImpl(productService, logger)

	// --- Router Setup ---
	apiRouter := router.SetupRouter(&router.Config{
		AuthHandler:            authHandler,
		UserHandler:            userHandler,
		CategoryHandler:        categoryHandler,
		ProductHandler:         productHandler,
		AuthenticateMiddleware: auth.Authenticate(logger, &cfg.JWT),
	})

	mux := chi.NewMux()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(appLogger.StructuredLogger(logger))
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.StripSlashes)
	mux.Use(middleware.Timeout(60 * time.Second))
	mux.Use(middleware.Compress(5, "application/json"))
	mux.Mount("/", apiRouter)

	// --- HTTP Server Setup ---
	serverAddress := fmt.Sprintf(":%s", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddress,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("address", serverAddress))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server ListenAndServe error", slog.Any("error", err))
			cancel()
		}
	}()

	<-ctx.Done()

	logger.Info("Shutdown signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", slog.Any("error", err))
	} else {
		logger.Info("HTTP server gracefully stopped")
	}

	logger.Info("Application shut down complete.")
}

// setupLogger configures and returns the application logger.
func setupLogger(mode string) *slog.Logger {
	if mode == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	// Colored logs for development
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.Kitchen,
		AddSource:  true,
	}))
}
