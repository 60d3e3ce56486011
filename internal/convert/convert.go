// Package convert turns HEIC/HEIF source images into JPEG through an ordered
// chain of conversion engines. Engines are probed for availability and tried
// in sequence; when every engine is missing or fails, the caller keeps the
// original file and serves it unconverted.
package convert

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"photovault/internal/logging"
)

// Strategy is one conversion engine. Available is a cheap probe; an
// unavailable engine is skipped without counting as a failure.
type Strategy interface {
	Name() string
	Available() bool
	Convert(srcPath, dstPath string, quality int) error
}

// Converter tries each strategy in order until one succeeds.
type Converter struct {
	strategies []Strategy
}

// NewConverter builds the default engine chain: libvips, then ffmpeg, then
// heif-convert, then ImageMagick.
func NewConverter() *Converter {
	return &Converter{
		strategies: []Strategy{
			&VipsStrategy{},
			&FFmpegStrategy{},
			&HeifConvertStrategy{},
			&MagickStrategy{},
		},
	}
}

// NewConverterWith builds a converter over an explicit chain.
func NewConverterWith(strategies ...Strategy) *Converter {
	return &Converter{strategies: strategies}
}

// HeicToJpeg converts srcPath to a JPEG at dstPath. Returns true on success.
// Failure is not an error condition for callers; the pipeline falls back to
// keeping the HEIC original.
func (c *Converter) HeicToJpeg(srcPath, dstPath string, quality int) bool {
	if quality <= 0 || quality > 100 {
		quality = 85
	}

	for _, s := range c.strategies {
		if !s.Available() {
			logging.Debug("convert: engine %s not available, skipping", s.Name())
			continue
		}
		if err := s.Convert(srcPath, dstPath, quality); err != nil {
			logging.Warn("convert: engine %s failed on %s: %v", s.Name(), srcPath, err)
			os.Remove(dstPath)
			continue
		}
		if info, err := os.Stat(dstPath); err != nil || info.Size() == 0 {
			logging.Warn("convert: engine %s wrote empty output for %s", s.Name(), srcPath)
			os.Remove(dstPath)
			continue
		}
		logging.Debug("convert: %s converted %s via %s", dstPath, srcPath, s.Name())
		return true
	}

	logging.Warn("convert: all engines exhausted for %s, keeping original", srcPath)
	return false
}

// FFmpegStrategy shells out to ffmpeg for a single-frame decode of the HEIC
// still.
type FFmpegStrategy struct{}

func (*FFmpegStrategy) Name() string { return "ffmpeg" }

func (*FFmpegStrategy) Available() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}

func (*FFmpegStrategy) Convert(srcPath, dstPath string, quality int) error {
	cmd := exec.Command("ffmpeg",
		"-y",
		"-i", srcPath,
		"-frames:v", "1",
		"-q:v", strconv.Itoa(QualityToQScale(quality)),
		dstPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %v, stderr: %s", err, stderr.String())
	}
	return nil
}

// HeifConvertStrategy uses the dedicated heif-convert tool from libheif.
type HeifConvertStrategy struct{}

func (*HeifConvertStrategy) Name() string { return "heif-convert" }

func (*HeifConvertStrategy) Available() bool {
	_, err := exec.LookPath("heif-convert")
	return err == nil
}

func (*HeifConvertStrategy) Convert(srcPath, dstPath string, quality int) error {
	cmd := exec.Command("heif-convert", "-q", strconv.Itoa(quality), srcPath, dstPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("heif-convert: %v, stderr: %s", err, stderr.String())
	}
	return nil
}

// MagickStrategy uses ImageMagick, preferring the v7 entry point over the
// legacy convert binary.
type MagickStrategy struct{}

func (*MagickStrategy) Name() string { return "imagemagick" }

func (m *MagickStrategy) binary() string {
	if _, err := exec.LookPath("magick"); err == nil {
		return "magick"
	}
	if _, err := exec.LookPath("convert"); err == nil {
		return "convert"
	}
	return ""
}

func (m *MagickStrategy) Available() bool { return m.binary() != "" }

func (m *MagickStrategy) Convert(srcPath, dstPath string, quality int) error {
	bin := m.binary()
	if bin == "" {
		return fmt.Errorf("imagemagick not installed")
	}
	cmd := exec.Command(bin, srcPath, "-quality", strconv.Itoa(quality), dstPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %v, stderr: %s", bin, err, stderr.String())
	}
	return nil
}

// QualityToQScale maps a 0-100 percentage onto ffmpeg's inverted 2-31
// quantizer scale (2 is best).
func QualityToQScale(quality int) int {
	if quality < 0 {
		quality = 0
	}
	if quality > 100 {
		quality = 100
	}
	return 31 - (quality*29)/100
}
