package thumbs

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"photovault/internal/convert"
	"photovault/internal/logging"
)

// seekOffsets are the frame positions tried in order. One second in usually
// skips a black lead-in; the later and earlier offsets cover very short or
// front-damaged streams.
var seekOffsets = []float64{1.0, 0.5, 2.0, 3.0, 0.1}

// ForVideo extracts a representative frame from the video at srcPath and
// writes it as a JPEG thumbnail to dstPath. Returns true on success.
func (g *Generator) ForVideo(srcPath, dstPath string) bool {
	for _, offset := range seekOffsets {
		err := g.grabFrame(srcPath, dstPath, offset, g.Width, g.Quality)
		if err != nil {
			logging.Debug("thumbs: frame grab at %.1fs failed for %s: %v", offset, srcPath, err)
			os.Remove(dstPath)
			continue
		}
		if info, statErr := os.Stat(dstPath); statErr != nil || info.Size() == 0 {
			logging.Debug("thumbs: frame grab at %.1fs wrote nothing for %s", offset, srcPath)
			os.Remove(dstPath)
			continue
		}
		return true
	}

	logging.Warn("thumbs: no seek offset yielded a frame for %s", srcPath)
	return false
}

// ffmpegGrabFrame shells out for a single frame. Decoding is error-tolerant,
// keyframe-only, and single-threaded to keep the cost of damaged or large
// streams bounded.
func ffmpegGrabFrame(srcPath, dstPath string, offsetSeconds float64, width, quality int) error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}

	cmd := exec.Command("ffmpeg",
		"-y",
		"-err_detect", "ignore_err",
		"-skip_frame", "nokey",
		"-threads", "1",
		"-ss", strconv.FormatFloat(offsetSeconds, 'f', 2, 64),
		"-i", srcPath,
		"-frames:v", "1",
		"-an", "-sn",
		"-vf", fmt.Sprintf("scale=%d:-2", width),
		"-q:v", strconv.Itoa(convert.QualityToQScale(quality)),
		dstPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %v, stderr: %s", err, stderr.String())
	}
	return nil
}
