package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photovault_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photovault_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photovault_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Upload metrics
var (
	ChunksReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photovault_upload_chunks_received_total",
			Help: "Total number of upload chunks received",
		},
	)

	UploadsAssembled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photovault_uploads_assembled_total",
			Help: "Total number of chunked uploads assembled into complete files",
		},
	)

	ScratchSweeps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photovault_scratch_sweeps_total",
			Help: "Total number of age-based scratch directory sweeps",
		},
	)
)

// Ingestion metrics
var (
	AssetsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photovault_assets_ingested_total",
			Help: "Total number of media assets written to the catalog",
		},
		[]string{"type"}, // "image", "video"
	)

	DuplicatesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photovault_duplicates_skipped_total",
			Help: "Total number of uploads skipped because their content hash already exists",
		},
	)

	HeicConversions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photovault_heic_conversions_total",
			Help: "HEIC conversion outcomes",
		},
		[]string{"outcome"}, // "converted", "kept_original"
	)

	ImportBatchesStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photovault_import_batches_started_total",
			Help: "Total number of archive import batches started",
		},
	)

	ImportBatchesFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photovault_import_batches_finished_total",
			Help: "Archive import batches by terminal status",
		},
		[]string{"status"}, // "completed", "failed"
	)

	ImportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "photovault_import_batch_duration_seconds",
			Help:    "Wall-clock duration of archive import batches",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	GeocodeLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photovault_geocode_lookups_total",
			Help: "Reverse geocoding lookups by outcome",
		},
		[]string{"outcome"}, // "resolved", "failed"
	)
)
