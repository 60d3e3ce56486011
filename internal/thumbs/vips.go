package thumbs

import (
	"fmt"
	"os"

	"github.com/davidbyttow/govips/v2/vips"

	"photovault/internal/logging"
)

// vipsThumbnail shrinks during decode, which keeps memory flat for large
// sources, and bakes the orientation tag into the output pixels.
func (g *Generator) vipsThumbnail(srcPath, dstPath string) error {
	ref, err := vips.LoadImageFromFile(srcPath, vips.NewImportParams())
	if err != nil {
		return fmt.Errorf("vips load: %w", err)
	}
	defer ref.Close()

	if err := ref.AutoRotate(); err != nil {
		return fmt.Errorf("vips autorotate: %w", err)
	}

	height := g.Width * ref.Height() / max(ref.Width(), 1)
	if err := ref.Thumbnail(g.Width, max(height, 1), vips.InterestingNone); err != nil {
		return fmt.Errorf("vips thumbnail: %w", err)
	}

	out, _, err := ref.ExportJpeg(&vips.JpegExportParams{
		Quality:        g.Quality,
		OptimizeCoding: true,
	})
	if err != nil {
		return fmt.Errorf("vips export: %w", err)
	}
	if err := os.WriteFile(dstPath, out, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", dstPath, err)
	}

	if g.WebPSibling {
		if err := g.webpSibling(ref, WebPSiblingPath(dstPath)); err != nil {
			// The JPEG is the canonical thumbnail; the sibling is a bonus.
			logging.Debug("thumbs: webp sibling for %s failed: %v", dstPath, err)
		}
	}
	return nil
}

func (g *Generator) webpSibling(ref *vips.ImageRef, dstPath string) error {
	out, _, err := ref.ExportWebp(&vips.WebpExportParams{Quality: g.Quality})
	if err != nil {
		return fmt.Errorf("vips webp export: %w", err)
	}
	return os.WriteFile(dstPath, out, 0644)
}
