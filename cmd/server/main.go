package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ayush-autviz/skin-sub000/internal"
	"github.com/Ayush-autviz/skin-sub000/internal/handler"
	"github.com/Ayush-autviz/skin-sub000/internal/lifecycle"
	"github.com/Ayush-autviz/skin-sub000/internal/metrics"
	"github.com/Ayush-autviz/skin-sub000/internal/middleware"
	"github.com/Ayush-autviz/skin-sub000/internal/provider"
	"github.com/Ayush-autviz/skin-sub000/internal/provider/httpapi"
	"github.com/Ayush-autviz/skin-sub000/internal/provider/mock"
	"github.com/Ayush-autviz/skin-sub000/internal/service"
	"github.com/Ayush-autviz/skin-sub000/internal/storage"
	"github.com/Ayush-autviz/skin-sub000/internal/store"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	photoStore := store.NewPostgresStore(db)

	// Initialize object storage
	var objects storage.Storage
	switch cfg.StorageProvider {
	case storage.ProviderR2:
		objects, err = storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		}, logger)
	default:
		objects, err = storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
	}
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	// Initialize analysis provider
	var prov provider.Provider
	switch cfg.SkinProvider {
	case "httpapi":
		prov, err = httpapi.New(httpapi.Config{
			BaseURL: cfg.SkinAPIBaseURL,
			APIKey:  cfg.SkinAPIKey,
			ProviderConfig: provider.Config{
				MaxRetries:     cfg.SkinMaxRetries,
				RetryBaseDelay: cfg.SkinRetryBaseDelay,
				RequestTimeout: cfg.SkinRequestTimeout,
			},
		}, logger)
		if err != nil {
			return fmt.Errorf("provider initialization failed: %w", err)
		}
	default:
		prov = mock.New(logger)
	}
	logger.Info("Analysis provider ready", "provider", cfg.SkinProvider)

	// Lifecycle timing
	lcCfg := lifecycle.Config{
		PollInterval:         cfg.PollInterval,
		UploadDeadline:       cfg.UploadDeadline,
		AnalysisDeadline:     cfg.AnalysisDeadline,
		SettleDelay:          cfg.SettleDelay,
		CleanupDelay:         cfg.CleanupDelay,
		QualityMinThreshold:  cfg.QualityMinThreshold,
		QualityWarnThreshold: cfg.QualityWarnThreshold,
	}
	if err := lcCfg.Validate(); err != nil {
		return fmt.Errorf("lifecycle configuration invalid: %w", err)
	}

	// Initialize services
	photoService := service.NewPhotoService(
		lcCfg,
		prov,
		photoStore,
		objects,
		service.NewImagingProcessor(),
		lifecycle.SystemClock(),
		logger,
	)

	// Initialize handlers
	photoHandler := handler.NewPhotoHandler(photoService, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics
	metricsAuthMw := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	mux.Handle("GET /metrics", metricsAuthMw.Handler(promhttp.Handler()))

	// Local storage file serving (development)
	if cfg.StorageProvider == storage.ProviderLocal {
		filesFS := http.FileServer(http.Dir(cfg.LocalStoragePath))
		mux.Handle("GET /files/", http.StripPrefix("/files/", filesFS))
	}

	photoHandler.RegisterRoutes(mux)

	// Middleware stack, outermost first: request logging, security headers,
	// identity propagation, per-user rate limiting, request metrics.
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	securityMw := middleware.NewSecurityHeadersMiddleware(cfg.Env != "development")
	identityMw := middleware.NewIdentityMiddleware(logger)
	chain := []func(http.Handler) http.Handler{
		loggingMw.Handler,
		securityMw.Handler,
		identityMw.WithIdentity,
	}
	if cfg.RateLimitPerMinute > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute, logger)
		chain = append(chain, middleware.NewRateLimitMiddleware(limiter, logger).Limit)
	}
	chain = append(chain, metrics.Middleware)
	root := middleware.Stack(chain...)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: root,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	// Close active analysis sessions after the listener drains
	photoService.Shutdown()

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
