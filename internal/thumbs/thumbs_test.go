package thumbs

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

// writeTestPNG writes a width x height image with a distinct top-left pixel.
func writeTestPNG(t *testing.T, path string, width, height int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 20, G: 120, B: 220, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating test image: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
}

func TestForImageFallbackResizes(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	dst := filepath.Join(dir, "thumb.jpg")
	writeTestPNG(t, src, 800, 600)

	g := NewGenerator(200, 80, false)
	if !g.ForImage(src, dst, 0) {
		t.Fatal("ForImage should succeed on a decodable source")
	}

	thumb, err := imaging.Open(dst)
	if err != nil {
		t.Fatalf("opening thumbnail: %v", err)
	}
	if w := thumb.Bounds().Dx(); w != 200 {
		t.Errorf("thumbnail width = %d, want 200", w)
	}
	if h := thumb.Bounds().Dy(); h != 150 {
		t.Errorf("thumbnail height = %d, want 150 (aspect preserved)", h)
	}
}

func TestForImageFallbackAppliesRotation(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	writeTestPNG(t, src, 800, 600)

	tests := []struct {
		rotation     int
		wantW, wantH int
	}{
		{0, 200, 150},
		{90, 150, 200},
		{180, 200, 150},
		{270, 150, 200},
	}
	for _, tt := range tests {
		dst := filepath.Join(dir, "thumb.jpg")
		g := NewGenerator(200, 80, false)
		if !g.ForImage(src, dst, tt.rotation) {
			t.Fatalf("ForImage rotation=%d failed", tt.rotation)
		}
		thumb, err := imaging.Open(dst)
		if err != nil {
			t.Fatalf("opening thumbnail: %v", err)
		}
		if thumb.Bounds().Dx() != tt.wantW || thumb.Bounds().Dy() != tt.wantH {
			t.Errorf("rotation %d: dimensions = %dx%d, want %dx%d",
				tt.rotation, thumb.Bounds().Dx(), thumb.Bounds().Dy(), tt.wantW, tt.wantH)
		}
	}
}

func TestForImageUndecodableSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "garbage.png")
	if err := os.WriteFile(src, []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}

	g := NewGenerator(200, 80, false)
	if g.ForImage(src, filepath.Join(dir, "thumb.jpg"), 0) {
		t.Error("ForImage should fail on an undecodable source")
	}
}

func TestForVideoTriesOffsetsInOrder(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "thumb.jpg")

	var attempted []float64
	g := NewGenerator(200, 80, false)
	g.grabFrame = func(srcPath, dstPath string, offset float64, width, quality int) error {
		attempted = append(attempted, offset)
		if offset == 2.0 {
			return os.WriteFile(dstPath, []byte("frame"), 0644)
		}
		return errors.New("no frame at this offset")
	}

	if !g.ForVideo(filepath.Join(dir, "clip.mp4"), dst) {
		t.Fatal("ForVideo should succeed once a fallback offset yields a frame")
	}

	want := []float64{1.0, 0.5, 2.0}
	if len(attempted) != len(want) {
		t.Fatalf("attempted offsets %v, want %v", attempted, want)
	}
	for i := range want {
		if attempted[i] != want[i] {
			t.Fatalf("attempted offsets %v, want %v", attempted, want)
		}
	}
}

func TestForVideoRetriesZeroByteFrame(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "thumb.jpg")

	calls := 0
	g := NewGenerator(200, 80, false)
	g.grabFrame = func(srcPath, dstPath string, offset float64, width, quality int) error {
		calls++
		if calls == 1 {
			// Succeeds but writes nothing, which must count as a failure.
			return os.WriteFile(dstPath, nil, 0644)
		}
		return os.WriteFile(dstPath, []byte("frame"), 0644)
	}

	if !g.ForVideo(filepath.Join(dir, "clip.mp4"), dst) {
		t.Fatal("ForVideo should retry past a zero-byte frame")
	}
	if calls != 2 {
		t.Errorf("grab called %d times, want 2", calls)
	}
	data, _ := os.ReadFile(dst)
	if string(data) != "frame" {
		t.Errorf("thumbnail = %q, want the retried frame", data)
	}
}

func TestForVideoAllOffsetsFail(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "thumb.jpg")

	calls := 0
	g := NewGenerator(200, 80, false)
	g.grabFrame = func(srcPath, dstPath string, offset float64, width, quality int) error {
		calls++
		return errors.New("stream is toast")
	}

	if g.ForVideo(filepath.Join(dir, "clip.mp4"), dst) {
		t.Fatal("ForVideo should fail when every offset fails")
	}
	if calls != len(seekOffsets) {
		t.Errorf("grab called %d times, want %d", calls, len(seekOffsets))
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Error("failed extraction should not leave a thumbnail behind")
	}
}

func TestWebPSiblingPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/thumbs/abc.jpg", "/thumbs/abc.webp"},
		{"abc.jpeg", "abc.webp"},
		{"noext", "noext.webp"},
	}
	for _, tt := range tests {
		if got := WebPSiblingPath(tt.in); got != tt.want {
			t.Errorf("WebPSiblingPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
