// Package importer drives the per-file ingestion pipeline and orchestrates
// whole batches: single-file finalize after a chunked upload, and archive
// preview/commit with sidecar matching, people filtering, album creation,
// and progress tracking.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"photovault/internal/database"
	"photovault/internal/inspect"
	"photovault/internal/logging"
	"photovault/internal/mediatypes"
	"photovault/internal/metadata"
	"photovault/internal/metrics"
	"photovault/internal/sidecar"
	"photovault/internal/thumbs"
	"photovault/internal/upload"
)

// HeicConverter converts a HEIC source to JPEG, reporting success.
type HeicConverter interface {
	HeicToJpeg(srcPath, dstPath string, quality int) bool
}

// ThumbnailMaker derives thumbnails, reporting success.
type ThumbnailMaker interface {
	ForImage(srcPath, dstPath string, rotation int) bool
	ForVideo(srcPath, dstPath string) bool
}

// PlaceResolver turns coordinates into a place name, or "" on failure.
type PlaceResolver interface {
	Resolve(ctx context.Context, lat, lon float64) string
}

// Extractor unpacks an archive and enumerates its media files.
type Extractor interface {
	Extract(ctx context.Context, archivePath, destDir string) ([]string, error)
	EnumerateMedia(root string) ([]string, error)
}

// Config wires the importer's collaborators and directories.
type Config struct {
	DB        *database.Database
	Uploads   *upload.Store
	Extractor Extractor
	Converter HeicConverter
	Thumbs    ThumbnailMaker
	Geocoder  PlaceResolver

	MediaDir   string
	ThumbsDir  string
	JpegQual   int
	NumWorkers int
}

// Importer owns batch orchestration state.
type Importer struct {
	cfg      Config
	progress *Registry
}

// New creates an importer. MediaDir and ThumbsDir must already exist.
func New(cfg Config) *Importer {
	if cfg.JpegQual <= 0 || cfg.JpegQual > 100 {
		cfg.JpegQual = 85
	}
	if cfg.NumWorkers < 1 {
		cfg.NumWorkers = 1
	}
	return &Importer{cfg: cfg, progress: NewRegistry()}
}

// Progress returns the job registry for polling endpoints.
func (im *Importer) Progress() *Registry { return im.progress }

// Outcome classifies one file's trip through the pipeline.
type Outcome int

const (
	OutcomeImported Outcome = iota
	OutcomeDuplicate
	OutcomeFailed
)

// FinalizeResult is returned for a single-file direct upload.
type FinalizeResult struct {
	AssetID   int64
	Duplicate bool
}

// FinalizeOptions carries the caller's overrides for a direct upload. The
// client-side fields exist for degraded HEIC mode: when the server cannot
// decode the original, the browser ships the metadata and thumbnail it
// extracted itself.
type FinalizeOptions struct {
	Title       string
	Description string
	// ExifJSON is a client-extracted metadata overlay; it fills only the
	// fields server-side extraction left empty.
	ExifJSON string
	// ThumbnailJPEG is a client-rendered thumbnail, stored only when
	// server-side derivation produced nothing.
	ThumbnailJPEG []byte
}

// FinalizeUpload consumes an assembled chunked upload and ingests it as one
// asset. Title and description override anything extracted from the file.
// The assembled file and its scratch directory are removed on every path.
func (im *Importer) FinalizeUpload(ctx context.Context, identifier string, opts FinalizeOptions) (*FinalizeResult, error) {
	asm, ok := im.cfg.Uploads.Take(identifier)
	if !ok {
		return nil, fmt.Errorf("no assembled upload for identifier %q", identifier)
	}
	defer func() {
		if err := im.cfg.Uploads.Cleanup(asm.Identifier); err != nil {
			logging.Warn("importer: scratch cleanup for %s failed: %v", asm.Identifier, err)
		}
	}()

	asset, outcome, err := im.processFile(ctx, asm.Path, asm.OriginalName, asm.MimeType,
		mediatypes.MaxDirectUploadBytes, nil)
	if err != nil {
		return nil, err
	}
	if outcome == OutcomeDuplicate {
		return &FinalizeResult{Duplicate: true}, nil
	}

	if opts.ExifJSON != "" {
		im.applyClientExif(ctx, asset, opts.ExifJSON)
	}
	if opts.Title != "" {
		asset.Title = opts.Title
	}
	if opts.Description != "" {
		asset.Description = opts.Description
	}
	if asset.ThumbnailPath == "" && len(opts.ThumbnailJPEG) > 0 {
		im.storeClientThumbnail(asset, opts.ThumbnailJPEG)
	}

	id, err := im.cfg.DB.InsertAsset(ctx, asset)
	if err != nil {
		im.discardStored(asset)
		return nil, err
	}
	metrics.AssetsIngested.WithLabelValues(string(asset.FileType)).Inc()
	return &FinalizeResult{AssetID: id}, nil
}

// clientExif is the shape of the browser-extracted metadata overlay.
type clientExif struct {
	DateTaken   string   `json:"dateTaken"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	CameraMake  string   `json:"cameraMake"`
	CameraModel string   `json:"cameraModel"`
	Orientation int      `json:"orientation"`
}

// applyClientExif fills asset fields the server-side extraction left empty.
// A malformed overlay is ignored; the asset is already complete without it.
func (im *Importer) applyClientExif(ctx context.Context, asset *database.MediaAsset, raw string) {
	var overlay clientExif
	if err := json.Unmarshal([]byte(raw), &overlay); err != nil {
		logging.Debug("importer: unusable exif overlay for %s: %v", asset.Filename, err)
		return
	}

	if asset.CapturedAt == nil && overlay.DateTaken != "" {
		for _, layout := range []string{time.RFC3339, "2006:01:02 15:04:05"} {
			if ts, err := time.Parse(layout, overlay.DateTaken); err == nil {
				asset.CapturedAt = &ts
				break
			}
		}
	}
	if asset.GPSLatitude == nil && overlay.Latitude != nil && overlay.Longitude != nil {
		asset.GPSLatitude = overlay.Latitude
		asset.GPSLongitude = overlay.Longitude
		if asset.PlaceName == "" {
			asset.PlaceName = im.cfg.Geocoder.Resolve(ctx, *overlay.Latitude, *overlay.Longitude)
		}
	}
	if asset.CameraMake == "" {
		asset.CameraMake = overlay.CameraMake
	}
	if asset.CameraModel == "" {
		asset.CameraModel = overlay.CameraModel
	}
	if asset.Rotation == 0 && overlay.Orientation > 0 {
		asset.Rotation = metadata.RotationFromOrientation(overlay.Orientation)
	}
}

// storeClientThumbnail writes the browser-rendered thumbnail next to where a
// server-derived one would have gone.
func (im *Importer) storeClientThumbnail(asset *database.MediaAsset, data []byte) {
	name := strings.TrimSuffix(asset.StoredFilename, filepath.Ext(asset.StoredFilename)) + ".jpg"
	path := filepath.Join(im.cfg.ThumbsDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logging.Warn("importer: storing client thumbnail for %s failed: %v", asset.Filename, err)
		return
	}
	asset.ThumbnailPath = path
}

// processFile runs one file through inspect, HEIC conversion, hashing,
// dedup, metadata extraction, geocoding, storage, and thumbnail derivation.
// On OutcomeImported the returned asset is fully populated but NOT yet
// inserted; the caller inserts it so batch flows can apply overrides first.
func (im *Importer) processFile(ctx context.Context, srcPath, originalName, declaredMime string, maxBytes int64, sc *sidecar.Metadata) (*database.MediaAsset, Outcome, error) {
	res, err := inspect.Inspect(srcPath, declaredMime, maxBytes)
	if err != nil {
		return nil, OutcomeFailed, err
	}

	workPath := srcPath
	mimeType := res.MimeType
	ext := strings.ToLower(filepath.Ext(originalName))

	if res.IsHeic {
		jpegPath := strings.TrimSuffix(srcPath, filepath.Ext(srcPath)) + ".jpg"
		if im.cfg.Converter.HeicToJpeg(srcPath, jpegPath, im.cfg.JpegQual) {
			workPath = jpegPath
			mimeType = "image/jpeg"
			ext = ".jpg"
			metrics.HeicConversions.WithLabelValues("converted").Inc()
		} else {
			// Degraded mode: keep the original, the client decodes HEIC.
			metrics.HeicConversions.WithLabelValues("kept_original").Inc()
		}
	}

	hash, err := ContentHash(workPath)
	if err != nil {
		return nil, OutcomeFailed, err
	}
	existingID, err := im.cfg.DB.FindAssetIDByHash(ctx, hash)
	if err != nil {
		return nil, OutcomeFailed, err
	}
	if existingID != 0 {
		logging.Debug("importer: %s duplicates asset %d, skipping", originalName, existingID)
		metrics.DuplicatesSkipped.Inc()
		return nil, OutcomeDuplicate, nil
	}

	fields, err := im.extractFields(ctx, workPath, res.Kind, sc)
	if err != nil {
		return nil, OutcomeFailed, err
	}

	asset, err := im.storeFile(ctx, workPath, originalName, ext, res.Kind, mimeType, hash, fields)
	if err != nil {
		return nil, OutcomeFailed, err
	}
	return asset, OutcomeImported, nil
}

// extractFields pulls embedded metadata, overlays the sidecar, and resolves
// a place name. Metadata problems never fail the file.
func (im *Importer) extractFields(ctx context.Context, path string, kind mediatypes.FileType, sc *sidecar.Metadata) (metadata.Fields, error) {
	var fields metadata.Fields
	switch kind {
	case mediatypes.FileTypeImage:
		m, err := metadata.ExtractImage(path)
		if err != nil {
			logging.Debug("importer: image metadata for %s unavailable: %v", path, err)
		}
		fields = metadata.FromImage(m)
	case mediatypes.FileTypeVideo:
		m, err := metadata.ExtractVideo(path)
		if err != nil {
			logging.Debug("importer: video metadata for %s unavailable: %v", path, err)
		}
		fields = metadata.FromVideo(m)
	}

	fields = metadata.MergeSidecar(fields, sc)
	return fields, nil
}

// storeFile moves the processed bytes into the media library under a
// collision-free name, derives thumbnails, and assembles the asset record.
func (im *Importer) storeFile(ctx context.Context, workPath, originalName, ext string, kind mediatypes.FileType, mimeType, hash string, fields metadata.Fields) (*database.MediaAsset, error) {
	storedName := uuid.New().String() + ext
	finalPath := filepath.Join(im.cfg.MediaDir, storedName)
	if err := moveFile(workPath, finalPath); err != nil {
		return nil, fmt.Errorf("storing %s: %w", originalName, err)
	}

	info, err := os.Stat(finalPath)
	if err != nil {
		return nil, fmt.Errorf("stat stored file: %w", err)
	}

	asset := &database.MediaAsset{
		Filename:       originalName,
		StoredFilename: storedName,
		FilePath:       finalPath,
		FileType:       database.FileType(kind),
		MimeType:       mimeType,
		Size:           info.Size(),
		ContentHash:    hash,
		Rotation:       fields.Rotation,
		Title:          fields.Title,
		Description:    fields.Description,
		GPSLatitude:    fields.Latitude,
		GPSLongitude:   fields.Longitude,
		CameraMake:     fields.CameraMake,
		CameraModel:    fields.CameraModel,
	}
	if !fields.CapturedAt.IsZero() {
		t := fields.CapturedAt
		asset.CapturedAt = &t
	}
	if fields.Latitude != nil && fields.Longitude != nil {
		asset.PlaceName = im.cfg.Geocoder.Resolve(ctx, *fields.Latitude, *fields.Longitude)
	}

	thumbName := strings.TrimSuffix(storedName, ext) + ".jpg"
	thumbPath := filepath.Join(im.cfg.ThumbsDir, thumbName)
	ok := false
	switch kind {
	case mediatypes.FileTypeImage:
		ok = im.cfg.Thumbs.ForImage(finalPath, thumbPath, fields.Rotation)
	case mediatypes.FileTypeVideo:
		ok = im.cfg.Thumbs.ForVideo(finalPath, thumbPath)
	}
	if ok {
		asset.ThumbnailPath = thumbPath
		if webp := thumbs.WebPSiblingPath(thumbPath); fileExists(webp) {
			asset.ThumbnailWebPPath = webp
		}
	} else {
		// Non-fatal: the asset ships without a thumbnail and a later
		// maintenance sweep can fill the gap.
		logging.Warn("importer: no thumbnail for %s", originalName)
	}

	return asset, nil
}

// discardStored removes the stored file and thumbnails of an asset whose
// catalog insert did not happen.
func (im *Importer) discardStored(asset *database.MediaAsset) {
	for _, p := range []string{asset.FilePath, asset.ThumbnailPath, asset.ThumbnailWebPPath} {
		if p != "" {
			os.Remove(p)
		}
	}
}

// moveFile renames when possible and falls back to copy+delete across
// filesystems (scratch and media library may be different mounts).
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := out.ReadFrom(in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Remove(src)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}
