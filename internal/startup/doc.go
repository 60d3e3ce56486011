// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig].
// The following environment variables are supported:
//
//   - MEDIA_DIR: Path to the permanent media store (default: /media)
//   - CACHE_DIR: Path to the cache directory for thumbnails and upload scratch (default: /cache)
//   - DATABASE_DIR: Path to the database directory (default: /database)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable the metrics server (default: true)
//   - JPEG_QUALITY: Quality used for HEIC conversion output, 1-100 (default: 85)
//   - GEOCODE_URL: Base URL of the Nominatim-compatible reverse geocoder
//     (default: https://nominatim.openstreetmap.org)
//   - GEOCODE_ENABLED: Enable or disable reverse geocoding (default: true)
//   - SCRATCH_SWEEP_INTERVAL: Interval between abandoned-upload sweeps as a
//     Go duration (default: 1h)
//   - SCRATCH_MAX_AGE: Age after which scratch upload state is swept (default: 24h)
//   - IMPORT_WORKERS: Override for the import worker pool size
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// # Directory Setup
//
// The media, database, thumbnail, and scratch directories are all created if
// missing and must be writable; ingestion writes into every one of them.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
package startup
