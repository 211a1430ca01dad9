// main.go - The entry point and router setup.

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bosocmputer/ocr_text_extractor/configs"
	"github.com/bosocmputer/ocr_text_extractor/internal/ai"
	"github.com/bosocmputer/ocr_text_extractor/internal/api"
	"github.com/bosocmputer/ocr_text_extractor/internal/common"
	"github.com/bosocmputer/ocr_text_extractor/internal/extract"
	"github.com/bosocmputer/ocr_text_extractor/internal/ratelimit"
	"github.com/bosocmputer/ocr_text_extractor/internal/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// uploadReadTimeout bounds reading a large multipart body
const uploadReadTimeout = 2 * time.Minute

func main() {
	// Step 0: Load configuration from environment variables
	configs.LoadConfig()

	release := configs.GIN_MODE == gin.ReleaseMode
	if release {
		gin.SetMode(gin.ReleaseMode)
	}

	logger, err := common.NewLogger(configs.LOG_LEVEL, release)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	// Step 1: Upstream clients, created once and shared by every request
	limiter := ratelimit.NewRateLimiter(
		configs.OCR_RATE_LIMIT_TOKENS,
		time.Duration(configs.OCR_RATE_LIMIT_REFILL_MS)*time.Millisecond,
	)
	ocrEngine := ai.CreateOCREngine(limiter)

	cleaner, err := ai.CreateTextCleaner(ctx)
	if err != nil {
		logger.Fatal("Failed to create text cleaner", zap.Error(err))
	}
	cleanupProvider := configs.CleanupProviderNone
	if cleaner != nil {
		cleanupProvider = cleaner.GetProviderName()
		defer cleaner.Close()
	}

	// Step 1.5: Optional MongoDB audit log
	var audit api.AuditRecorder
	if configs.MONGO_URI != "" {
		store, err := storage.NewAuditStore(ctx, configs.MONGO_URI, configs.MONGO_DB_NAME, configs.MONGO_AUDIT_COLLECTION, logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer store.Close(context.Background())
		audit = store
	}

	orchestrator := extract.NewOrchestrator(ocrEngine, cleaner, extract.Options{
		MaxConcurrency:    configs.MAX_CONCURRENCY,
		Preprocess:        configs.ENABLE_IMAGE_PREPROCESSING,
		MaxImageDimension: configs.MAX_IMAGE_DIMENSION,
		MaxPDFPages:       configs.MAX_PDF_PAGES,
	})

	// Step 2: Initialize the Gin router
	requestTimeout := time.Duration(configs.REQUEST_TIMEOUT) * time.Second
	router := api.NewRouter(api.NewHandler(orchestrator, audit, logger), api.RouterConfig{
		AllowedOrigins: configs.ALLOWED_ORIGINS,
		MaxUploadMB:    configs.MAX_UPLOAD_MB,
		RequestTimeout: requestTimeout,
	})

	// Step 3: Setup HTTP server with timeouts
	srv := &http.Server{
		Addr:              ":" + configs.PORT,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       uploadReadTimeout,
		// Counted from the end of the headers, so it covers the upload and the processing deadline
		WriteTimeout:   uploadReadTimeout + requestTimeout + 30*time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server",
			zap.String("addr", srv.Addr),
			zap.String("ocr_provider", ocrEngine.GetProviderName()),
			zap.String("cleanup_provider", cleanupProvider),
			zap.Int("max_concurrency", configs.MAX_CONCURRENCY),
			zap.Bool("audit", audit != nil))
		logger.Info("API Endpoints: POST /extract-images, POST /extract-pdf, GET /health")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	logger.Info("Server exited")
}
