package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"photovault/internal/archive"
	"photovault/internal/convert"
	"photovault/internal/database"
	"photovault/internal/geocode"
	"photovault/internal/handlers"
	"photovault/internal/importer"
	"photovault/internal/logging"
	"photovault/internal/mediatypes"
	"photovault/internal/metrics"
	"photovault/internal/middleware"
	"photovault/internal/startup"
	"photovault/internal/thumbs"
	"photovault/internal/upload"
	"photovault/internal/vipsutil"
	"photovault/internal/workers"
)

func main() {
	startTime := time.Now()

	// Optional .env for local development; environment always wins.
	_ = godotenv.Load()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Initialize libvips before any image work
	vipsutil.Init()
	defer vipsutil.Shutdown()

	startup.LogMediaToolsInit()

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Batches left "processing" by a previous crash can never finish.
	if n, err := db.FailStaleProcessingBatches(context.Background()); err != nil {
		logging.Warn("Failed to sweep stale import batches: %v", err)
	} else if n > 0 {
		logging.Info("Marked %d interrupted import batch(es) as failed", n)
	}

	// Initialize upload scratch store
	uploads, err := upload.NewStore(config.ScratchDir)
	if err != nil {
		startup.LogFatal("Failed to initialize upload store: %v", err)
	}

	// Sweep abandoned upload state periodically
	go func() {
		ticker := time.NewTicker(config.SweepInterval)
		for range ticker.C {
			if n := uploads.SweepOlderThan(config.SweepMaxAge); n > 0 {
				logging.Info("Swept %d abandoned upload(s) from scratch", n)
			}
			metrics.ScratchSweeps.Inc()
		}
	}()

	// Reverse geocoding persists its rate-limit timestamp across restarts
	var geocoder importer.PlaceResolver = geocode.Disabled{}
	if config.GeocodeEnabled {
		geocoder = geocode.NewResolver(config.GeocodeURL, geocode.RealClock(), &database.GeocodeStore{DB: db})
	}

	// Build the ingestion pipeline
	imp := importer.New(importer.Config{
		DB:        db,
		Uploads:   uploads,
		Extractor: archive.Extractor{MaxUncompressedBytes: mediatypes.MaxArchiveUncompressedBytes},
		Converter: convert.NewConverter(),
		Thumbs:    thumbs.NewGenerator(thumbs.DefaultWidth, thumbs.DefaultQuality, true),
		Geocoder:  geocoder,

		MediaDir:   config.MediaDir,
		ThumbsDir:  config.ThumbnailDir,
		JpegQual:   config.JpegQuality,
		NumWorkers: workers.ForMixed(8),
	})

	// Initialize handlers and router
	h := handlers.New(db, uploads, imp)
	router := mux.NewRouter()
	h.RegisterRoutes(router)

	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	// Apply middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	loggedHandler := middleware.Logger(loggingConfig)(router)

	metricsHandler := middleware.Metrics(middleware.DefaultMetricsConfig())(loggedHandler)
	handler := middleware.Compression(middleware.DefaultCompressionConfig())(metricsHandler)

	// Chunk uploads and archive commits can both run long, so only the
	// header read gets a deadline.
	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	// Separate metrics server so the scrape endpoint is never public
	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:    ":" + config.MetricsPort,
			Handler: metricsMux,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, metricsSrv, db)

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func handleShutdown(srv, metricsSrv *http.Server, db *database.Database) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Closing database")
	if err := db.Close(); err != nil {
		logging.Warn("Database close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Database closed")
	}

	startup.LogShutdownComplete()
}
