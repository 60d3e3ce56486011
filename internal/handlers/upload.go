package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"photovault/internal/importer"
	"photovault/internal/logging"
	"photovault/internal/upload"
)

// chunkResponse mirrors what the upload client expects after each chunk.
type chunkResponse struct {
	Success        bool `json:"success"`
	Complete       bool `json:"complete"`
	ChunkIndex     int  `json:"chunkIndex"`
	TotalChunks    int  `json:"totalChunks"`
	UploadedChunks int  `json:"uploadedChunks,omitempty"`
}

// ReceiveChunk accepts one multipart chunk of a large upload.
func (h *Handlers) ReceiveChunk(w http.ResponseWriter, r *http.Request) {
	// 32 MB in memory; larger chunk bodies spill to disk.
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSONError(w, "invalid multipart request", http.StatusBadRequest)
		return
	}

	index, err := strconv.Atoi(r.FormValue("chunkIndex"))
	if err != nil {
		writeJSONError(w, "chunkIndex must be an integer", http.StatusBadRequest)
		return
	}
	total, err := strconv.Atoi(r.FormValue("totalChunks"))
	if err != nil {
		writeJSONError(w, "totalChunks must be an integer", http.StatusBadRequest)
		return
	}
	identifier := r.FormValue("fileIdentifier")
	fileName := r.FormValue("fileName")

	file, _, err := r.FormFile("chunk")
	if err != nil {
		writeJSONError(w, "chunk file part is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	status, err := h.uploads.ReceiveChunk(identifier, index, total, fileName, file)
	switch {
	case errors.Is(err, upload.ErrUploadComplete):
		writeJSONError(w, "upload already assembled; start a new upload session", http.StatusConflict)
		return
	case errors.Is(err, upload.ErrInvalidRequest):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		logging.Error("chunk receive failed for %s: %v", identifier, err)
		writeJSONError(w, "failed to store chunk", http.StatusInternalServerError)
		return
	}

	writeJSON(w, chunkResponse{
		Success:        true,
		Complete:       status.Complete,
		ChunkIndex:     index,
		TotalChunks:    status.Total,
		UploadedChunks: status.Received,
	})
}

type finalizeRequest struct {
	FileIdentifier string `json:"fileIdentifier"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	// Client-side fallbacks for files the server cannot decode (HEIC
	// without a converter): browser-extracted metadata and a
	// browser-rendered thumbnail.
	ExifDataJSON        string `json:"exifDataJson"`
	ThumbnailDataBase64 string `json:"thumbnailDataBase64"`
}

type finalizeResponse struct {
	Success   bool  `json:"success"`
	AssetID   int64 `json:"assetId,omitempty"`
	Duplicate bool  `json:"duplicate,omitempty"`
}

// FinalizeUpload ingests a fully assembled chunked upload as one asset.
func (h *Handlers) FinalizeUpload(w http.ResponseWriter, r *http.Request) {
	var req finalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.FileIdentifier == "" {
		writeJSONError(w, "fileIdentifier is required", http.StatusBadRequest)
		return
	}

	opts := importer.FinalizeOptions{
		Title:       req.Title,
		Description: req.Description,
		ExifJSON:    req.ExifDataJSON,
	}
	if req.ThumbnailDataBase64 != "" {
		// Tolerate a data-URL wrapper around the base64 payload.
		raw := req.ThumbnailDataBase64
		if idx := strings.IndexByte(raw, ','); idx >= 0 && strings.HasPrefix(raw, "data:") {
			raw = raw[idx+1:]
		}
		thumb, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			writeJSONError(w, "thumbnailDataBase64 is not valid base64", http.StatusBadRequest)
			return
		}
		opts.ThumbnailJPEG = thumb
	}

	res, err := h.importer.FinalizeUpload(r.Context(), req.FileIdentifier, opts)
	if err != nil {
		logging.Error("finalize failed for %s: %v", req.FileIdentifier, err)
		writeJSONError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	writeJSON(w, finalizeResponse{
		Success:   true,
		AssetID:   res.AssetID,
		Duplicate: res.Duplicate,
	})
}
