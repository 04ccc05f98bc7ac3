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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/studentpalace/studentpalace/internal"
	"github.com/studentpalace/studentpalace/internal/domain"
	"github.com/studentpalace/studentpalace/internal/handler"
	"github.com/studentpalace/studentpalace/internal/imageproc"
	"github.com/studentpalace/studentpalace/internal/metrics"
	"github.com/studentpalace/studentpalace/internal/middleware"
	"github.com/studentpalace/studentpalace/internal/registry"
	"github.com/studentpalace/studentpalace/internal/service"
	"github.com/studentpalace/studentpalace/internal/storage"

	_ "github.com/jackc/pgx/v5/stdlib"
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

	// Initialize content store
	var store storage.ContentStore
	switch cfg.StorageProvider {
	case storage.ProviderR2:
		store, err = storage.NewR2Store(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
		}, logger)
	default:
		store, err = storage.NewLocalStore(storage.LocalConfig{BasePath: cfg.UploadRoot}, logger)
	}
	if err != nil {
		return fmt.Errorf("content store initialization failed: %w", err)
	}
	logger.Info("Content store ready", "provider", cfg.StorageProvider)

	// Initialize image processor
	processor, err := imageproc.New(imageproc.Config{
		Bound:         cfg.ResizeBound,
		Aspect:        imageproc.ParseAspect(cfg.LandscapeAspect),
		PadColor:      imageproc.ParseHexColor(cfg.LetterboxColor, imageproc.DefaultPadColor),
		WatermarkText: cfg.WatermarkText,
		FontPath:      cfg.WatermarkFont,
	})
	if err != nil {
		return fmt.Errorf("image processor initialization failed: %w", err)
	}

	// Initialize registries and services, one per collection
	limits := cfg.CollectionLimits()

	housePhotos := service.NewMediaService(domain.HousePhotos(limits),
		registry.NewAssetRegistry(db, domain.HousePhotos(limits)), store, processor, logger)
	roomPhotos := service.NewMediaService(domain.RoomPhotos(limits),
		registry.NewAssetRegistry(db, domain.RoomPhotos(limits)), store, processor, logger)
	floorPlans := service.NewMediaService(domain.FloorPlans(limits),
		registry.NewAssetRegistry(db, domain.FloorPlans(limits)), store, processor, logger)
	documents := service.NewDocumentService(
		registry.NewDocumentRegistry(db), store, cfg.MaxPDFBytes, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Uploaded media (local provider only; R2 serves files itself)
	if cfg.StorageProvider == storage.ProviderLocal {
		staticFS := http.FileServer(http.Dir(cfg.UploadRoot))
		mux.Handle("GET /static/", http.StripPrefix("/static/", staticFS))
	}

	handler.NewHealthHandler(db).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	handler.NewMediaHandler(housePhotos, "houses", "photos", logger).RegisterRoutes(mux)
	handler.NewMediaHandler(roomPhotos, "rooms", "photos", logger).RegisterRoutes(mux)
	handler.NewMediaHandler(floorPlans, "houses", "floorplans", logger).RegisterRoutes(mux)
	handler.NewDocumentHandler(documents, logger).RegisterRoutes(mux)

	// Middleware chain: request id -> logging -> metrics -> security headers
	isSecure := cfg.Env != "development"
	chain := middleware.Stack(
		middleware.RequestID,
		middleware.NewRequestLoggingMiddleware(logger).Handler,
		metrics.Middleware,
		middleware.NewSecurityHeadersMiddleware(isSecure).Handler,
	)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: chain(mux),
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
