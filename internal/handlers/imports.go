package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"photovault/internal/logging"
)

type previewRequest struct {
	FileIdentifier string   `json:"fileIdentifier"`
	PeopleFilter   []string `json:"peopleFilter"`
}

// PreviewImport extracts an uploaded archive and reports how a commit with
// the same people filter would classify each file. The extraction is kept
// for the commit step.
func (h *Handlers) PreviewImport(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.FileIdentifier == "" {
		writeJSONError(w, "fileIdentifier is required", http.StatusBadRequest)
		return
	}

	res, err := h.importer.PreviewArchive(r.Context(), req.FileIdentifier, req.PeopleFilter)
	if err != nil {
		logging.Error("archive preview failed for %s: %v", req.FileIdentifier, err)
		writeJSONError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	writeJSON(w, map[string]interface{}{
		"success": true,
		"preview": res,
	})
}

type commitRequest struct {
	FileIdentifier   string   `json:"fileIdentifier"`
	AlbumTitle       string   `json:"albumTitle"`
	AlbumDescription string   `json:"albumDescription"`
	PeopleFilter     []string `json:"peopleFilter"`
}

type commitResponse struct {
	Success       bool  `json:"success"`
	AlbumID       int64 `json:"albumId"`
	HistoryID     int64 `json:"historyId"`
	ImportedCount int   `json:"importedCount"`
	FailedCount   int   `json:"failedCount"`
	TotalCount    int   `json:"totalCount"`
}

// CommitImport runs a full archive import. The request blocks for the
// duration of the batch; clients poll ImportProgress from a second
// connection.
func (h *Handlers) CommitImport(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.FileIdentifier == "" {
		writeJSONError(w, "fileIdentifier is required", http.StatusBadRequest)
		return
	}

	res, err := h.importer.CommitArchive(r.Context(), req.FileIdentifier,
		req.AlbumTitle, req.AlbumDescription, req.PeopleFilter)
	if err != nil {
		logging.Error("archive commit failed for %s: %v", req.FileIdentifier, err)
		writeJSONError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	writeJSON(w, commitResponse{
		Success:       true,
		AlbumID:       res.AlbumID,
		HistoryID:     res.BatchID,
		ImportedCount: res.ImportedCount,
		FailedCount:   res.FailedCount,
		TotalCount:    res.TotalCount,
	})
}

// ImportProgress returns the live progress snapshot for a running batch.
func (h *Handlers) ImportProgress(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		writeJSONError(w, "invalid import id", http.StatusBadRequest)
		return
	}

	prog, ok := h.importer.Progress().Get(id)
	if !ok {
		// Fall back to the persisted history row for finished batches whose
		// registry entry is gone.
		batch, err := h.db.GetImportBatch(r.Context(), id)
		if err != nil {
			writeJSONError(w, "unknown import id", http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]interface{}{
			"total":     batch.TotalFiles,
			"processed": batch.ImportedCount + batch.FailedCount,
			"imported":  batch.ImportedCount,
			"failed":    batch.FailedCount,
			"status":    batch.Status,
		})
		return
	}
	writeJSON(w, prog)
}
