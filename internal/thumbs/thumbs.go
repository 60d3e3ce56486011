// Package thumbs derives reduced-size rasters for ingested media. Images go
// through libvips when it is up, with a pure-Go fallback; video frames come
// from an ffmpeg subprocess that retries a fixed list of seek offsets when
// the stream is short or damaged. Thumbnail failure is always non-fatal to
// ingestion.
package thumbs

import (
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	// Extra decoders for the pure-Go fallback path.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"photovault/internal/logging"
	"photovault/internal/vipsutil"
)

const (
	DefaultWidth   = 400
	DefaultQuality = 80
)

// Generator derives thumbnails at a fixed width and quality.
type Generator struct {
	Width       int
	Quality     int
	WebPSibling bool

	// grabFrame is swapped out in tests.
	grabFrame func(srcPath, dstPath string, offsetSeconds float64, width, quality int) error
}

// NewGenerator builds a generator with the given width and quality,
// substituting defaults for out-of-range values.
func NewGenerator(width, quality int, webpSibling bool) *Generator {
	if width <= 0 {
		width = DefaultWidth
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Generator{
		Width:       width,
		Quality:     quality,
		WebPSibling: webpSibling,
		grabFrame:   ffmpegGrabFrame,
	}
}

// WebPSiblingPath returns the path of the modern-codec sibling for a JPEG
// thumbnail path.
func WebPSiblingPath(jpegPath string) string {
	ext := filepath.Ext(jpegPath)
	return jpegPath[:len(jpegPath)-len(ext)] + ".webp"
}

// ForImage writes a JPEG thumbnail of the image at srcPath to dstPath.
// rotation is the orientation-derived rotation in degrees, applied manually
// only on the fallback path (libvips auto-orients on its own). Returns true
// on success.
func (g *Generator) ForImage(srcPath, dstPath string, rotation int) bool {
	if vipsutil.Available() {
		if err := g.vipsThumbnail(srcPath, dstPath); err == nil {
			return true
		} else {
			logging.Debug("thumbs: vips failed for %s, falling back: %v", srcPath, err)
		}
	}

	if err := g.imagingThumbnail(srcPath, dstPath, rotation); err != nil {
		logging.Warn("thumbs: no engine could derive a thumbnail for %s: %v", srcPath, err)
		return false
	}
	return true
}

// imagingThumbnail is the pure-Go path. The decoder has no auto-orient, so
// the orientation-derived rotation is applied after resizing.
func (g *Generator) imagingThumbnail(srcPath, dstPath string, rotation int) error {
	img, err := imaging.Open(srcPath)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", srcPath, err)
	}

	thumb := imaging.Resize(img, g.Width, 0, imaging.Lanczos)
	switch rotation {
	case 90:
		thumb = imaging.Rotate270(thumb)
	case 180:
		thumb = imaging.Rotate180(thumb)
	case 270:
		thumb = imaging.Rotate90(thumb)
	}

	out, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dstPath, err)
	}
	defer out.Close()

	if err := jpeg.Encode(out, thumb, &jpeg.Options{Quality: g.Quality}); err != nil {
		os.Remove(dstPath)
		return fmt.Errorf("encoding %s: %w", dstPath, err)
	}
	return nil
}
