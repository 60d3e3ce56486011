package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"

	"photovault/internal/archive"
	"photovault/internal/database"
	"photovault/internal/importer"
	"photovault/internal/upload"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func pngBytes(seed string) []byte {
	return append(append([]byte{}, pngMagic...), []byte(seed)...)
}

type stubConverter struct{}

func (stubConverter) HeicToJpeg(src, dst string, quality int) bool {
	data, err := os.ReadFile(src)
	if err != nil {
		return false
	}
	return os.WriteFile(dst, append([]byte("jpeg:"), data...), 0644) == nil
}

type stubThumbs struct{}

func (stubThumbs) ForImage(src, dst string, rotation int) bool {
	return os.WriteFile(dst, []byte("thumb"), 0644) == nil
}

func (stubThumbs) ForVideo(src, dst string) bool { return os.WriteFile(dst, []byte("thumb"), 0644) == nil }

type stubGeocoder struct{}

func (stubGeocoder) Resolve(ctx context.Context, lat, lon float64) string { return "" }

type apiEnv struct {
	h      *Handlers
	router *mux.Router
	db     *database.Database
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	root := t.TempDir()
	mediaDir := filepath.Join(root, "media")
	thumbsDir := filepath.Join(root, "thumbs")
	for _, d := range []string{mediaDir, thumbsDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	db, err := database.New(context.Background(), filepath.Join(root, "catalog.db"))
	if err != nil {
		t.Fatalf("creating database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	uploads, err := upload.NewStore(filepath.Join(root, "scratch"))
	if err != nil {
		t.Fatalf("creating upload store: %v", err)
	}

	imp := importer.New(importer.Config{
		DB:         db,
		Uploads:    uploads,
		Extractor:  archive.Extractor{},
		Converter:  stubConverter{},
		Thumbs:     stubThumbs{},
		Geocoder:   stubGeocoder{},
		MediaDir:   mediaDir,
		ThumbsDir:  thumbsDir,
		NumWorkers: 1,
	})

	env := &apiEnv{h: New(db, uploads, imp), router: mux.NewRouter(), db: db}
	env.h.RegisterRoutes(env.router)
	return env
}

// postChunk sends one multipart chunk through the router.
func (env *apiEnv) postChunk(t *testing.T, identifier, fileName string, index, total int, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for field, value := range map[string]string{
		"chunkIndex":     fmt.Sprintf("%d", index),
		"totalChunks":    fmt.Sprintf("%d", total),
		"fileIdentifier": identifier,
		"fileName":       fileName,
	} {
		if err := mw.WriteField(field, value); err != nil {
			t.Fatal(err)
		}
	}
	part, err := mw.CreateFormFile("chunk", fileName)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("POST", "/api/upload/chunk", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

func (env *apiEnv) postJSON(t *testing.T, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

func (env *apiEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &m); err != nil {
		t.Fatalf("decoding response %q: %v", rr.Body.String(), err)
	}
	return m
}

func zipBytes(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestHealthCheck(t *testing.T) {
	env := newAPIEnv(t)

	rr := env.get(t, "/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
	if body["goVersion"] == "" {
		t.Error("goVersion should be set")
	}
}

func TestChunkUploadAndFinalize(t *testing.T) {
	env := newAPIEnv(t)

	data := pngBytes("two-chunk upload")
	half := len(data) / 2

	rr := env.postChunk(t, "up-1", "photo.png", 0, 2, data[:half])
	if rr.Code != http.StatusOK {
		t.Fatalf("chunk 0 status = %d, body %s", rr.Code, rr.Body.String())
	}
	if body := decodeBody(t, rr); body["complete"] != false {
		t.Errorf("first chunk should not complete the upload: %v", body)
	}

	rr = env.postChunk(t, "up-1", "photo.png", 1, 2, data[half:])
	if rr.Code != http.StatusOK {
		t.Fatalf("chunk 1 status = %d, body %s", rr.Code, rr.Body.String())
	}
	if body := decodeBody(t, rr); body["complete"] != true {
		t.Errorf("last chunk should complete the upload: %v", body)
	}

	rr = env.postJSON(t, "/api/upload/finalize", map[string]string{
		"fileIdentifier": "up-1",
		"title":          "Two chunks",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("finalize status = %d, body %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["success"] != true || body["assetId"] == nil {
		t.Fatalf("finalize body = %v", body)
	}

	id := int64(body["assetId"].(float64))
	asset, err := env.db.GetAsset(context.Background(), id)
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if asset.Title != "Two chunks" {
		t.Errorf("title = %q, want Two chunks", asset.Title)
	}
}

func TestChunkAfterAssemblyConflicts(t *testing.T) {
	env := newAPIEnv(t)

	data := pngBytes("done")
	if rr := env.postChunk(t, "up-2", "done.png", 0, 1, data); rr.Code != http.StatusOK {
		t.Fatalf("chunk status = %d", rr.Code)
	}

	rr := env.postChunk(t, "up-2", "done.png", 0, 1, data)
	if rr.Code != http.StatusConflict {
		t.Errorf("duplicate chunk status = %d, want 409", rr.Code)
	}
}

func TestChunkRejectsBadIndex(t *testing.T) {
	env := newAPIEnv(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("chunkIndex", "not-a-number")
	mw.WriteField("totalChunks", "1")
	mw.WriteField("fileIdentifier", "up-3")
	mw.WriteField("fileName", "x.png")
	mw.Close()

	req := httptest.NewRequest("POST", "/api/upload/chunk", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestFinalizeClientFallbackFields(t *testing.T) {
	env := newAPIEnv(t)

	if rr := env.postChunk(t, "cf-1", "pier.png", 0, 1, pngBytes("pier")); rr.Code != http.StatusOK {
		t.Fatalf("chunk status = %d", rr.Code)
	}

	rr := env.postJSON(t, "/api/upload/finalize", map[string]string{
		"fileIdentifier":      "cf-1",
		"exifDataJson":        `{"cameraMake":"Apple","cameraModel":"iPhone 14 Pro"}`,
		"thumbnailDataBase64": "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("client-thumb")),
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("finalize status = %d, body %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	id := int64(body["assetId"].(float64))

	asset, err := env.db.GetAsset(context.Background(), id)
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if asset.CameraMake != "Apple" || asset.CameraModel != "iPhone 14 Pro" {
		t.Errorf("camera overlay not applied: %q / %q", asset.CameraMake, asset.CameraModel)
	}
}

func TestFinalizeRejectsBadThumbnailEncoding(t *testing.T) {
	env := newAPIEnv(t)

	if rr := env.postChunk(t, "cf-2", "pier.png", 0, 1, pngBytes("pier2")); rr.Code != http.StatusOK {
		t.Fatalf("chunk status = %d", rr.Code)
	}

	rr := env.postJSON(t, "/api/upload/finalize", map[string]string{
		"fileIdentifier":      "cf-2",
		"thumbnailDataBase64": "%%% not base64 %%%",
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestFinalizeUnknownIdentifier(t *testing.T) {
	env := newAPIEnv(t)

	rr := env.postJSON(t, "/api/upload/finalize", map[string]string{
		"fileIdentifier": "never-uploaded",
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rr.Code)
	}
}

func TestArchivePreviewAndCommit(t *testing.T) {
	env := newAPIEnv(t)

	archiveData := zipBytes(t, map[string][]byte{
		"a.png": pngBytes("a"),
		"b.png": pngBytes("b"),
	})
	if rr := env.postChunk(t, "zip-1", "takeout.zip", 0, 1, archiveData); rr.Code != http.StatusOK {
		t.Fatalf("archive upload status = %d", rr.Code)
	}

	rr := env.postJSON(t, "/api/import/preview", map[string]interface{}{
		"fileIdentifier": "zip-1",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("preview status = %d, body %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	preview, ok := body["preview"].(map[string]interface{})
	if !ok {
		t.Fatalf("preview body = %v", body)
	}
	if preview["total"] != float64(2) {
		t.Errorf("preview total = %v, want 2", preview["total"])
	}

	rr = env.postJSON(t, "/api/import/commit", map[string]interface{}{
		"fileIdentifier": "zip-1",
		"albumTitle":     "Holidays",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("commit status = %d, body %s", rr.Code, rr.Body.String())
	}
	body = decodeBody(t, rr)
	if body["importedCount"] != float64(2) || body["failedCount"] != float64(0) {
		t.Fatalf("commit body = %v", body)
	}
	if body["albumId"] == nil || body["historyId"] == nil {
		t.Fatalf("commit body missing ids: %v", body)
	}

	historyID := int64(body["historyId"].(float64))

	// Live snapshot from the registry.
	rr = env.get(t, fmt.Sprintf("/api/import/progress/%d", historyID))
	if rr.Code != http.StatusOK {
		t.Fatalf("progress status = %d", rr.Code)
	}
	prog := decodeBody(t, rr)
	if prog["status"] != "completed" {
		t.Errorf("progress status = %v, want completed", prog["status"])
	}

	// After the registry entry is gone, the persisted history row serves.
	env.h.importer.Progress().Delete(historyID)
	rr = env.get(t, fmt.Sprintf("/api/import/progress/%d", historyID))
	if rr.Code != http.StatusOK {
		t.Fatalf("fallback progress status = %d", rr.Code)
	}
	prog = decodeBody(t, rr)
	if prog["imported"] != float64(2) {
		t.Errorf("fallback imported = %v, want 2", prog["imported"])
	}
}

func TestImportProgressUnknownID(t *testing.T) {
	env := newAPIEnv(t)

	rr := env.get(t, "/api/import/progress/999")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestCommitUnknownIdentifier(t *testing.T) {
	env := newAPIEnv(t)

	rr := env.postJSON(t, "/api/import/commit", map[string]string{
		"fileIdentifier": "never-uploaded",
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rr.Code)
	}
}
