package convert

import (
	"fmt"
	"os"

	"github.com/davidbyttow/govips/v2/vips"

	"photovault/internal/vipsutil"
)

// VipsStrategy decodes HEIC in-process through libvips. It is the first and
// cheapest engine in the chain.
type VipsStrategy struct{}

func (*VipsStrategy) Name() string { return "libvips" }

func (*VipsStrategy) Available() bool { return vipsutil.Available() }

func (*VipsStrategy) Convert(srcPath, dstPath string, quality int) error {
	ref, err := vips.LoadImageFromFile(srcPath, vips.NewImportParams())
	if err != nil {
		return fmt.Errorf("vips load: %w", err)
	}
	defer ref.Close()

	// Bake the orientation tag into the pixels so the JPEG displays upright
	// everywhere.
	if err := ref.AutoRotate(); err != nil {
		return fmt.Errorf("vips autorotate: %w", err)
	}

	out, _, err := ref.ExportJpeg(&vips.JpegExportParams{
		Quality:        quality,
		OptimizeCoding: true,
	})
	if err != nil {
		return fmt.Errorf("vips export: %w", err)
	}

	if err := os.WriteFile(dstPath, out, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", dstPath, err)
	}
	return nil
}
