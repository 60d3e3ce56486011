package handlers

import (
	"time"

	"github.com/gorilla/mux"

	"photovault/internal/database"
	"photovault/internal/importer"
	"photovault/internal/upload"
)

type Handlers struct {
	db        *database.Database
	uploads   *upload.Store
	importer  *importer.Importer
	startTime time.Time
}

func New(db *database.Database, uploads *upload.Store, imp *importer.Importer) *Handlers {
	return &Handlers{
		db:        db,
		uploads:   uploads,
		importer:  imp,
		startTime: time.Now(),
	}
}

// RegisterRoutes attaches every endpoint to the router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/upload/chunk", h.ReceiveChunk).Methods("POST")
	api.HandleFunc("/upload/finalize", h.FinalizeUpload).Methods("POST")
	api.HandleFunc("/import/preview", h.PreviewImport).Methods("POST")
	api.HandleFunc("/import/commit", h.CommitImport).Methods("POST")
	api.HandleFunc("/import/progress/{id:[0-9]+}", h.ImportProgress).Methods("GET")
}
