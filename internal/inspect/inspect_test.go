package inspect

import (
	"os"
	"path/filepath"
	"testing"

	"photovault/internal/mediatypes"
)

// ftypFile writes a minimal ISO-BMFF header with the given brand.
func ftypFile(t *testing.T, name, brand string) string {
	t.Helper()
	data := append([]byte{0x00, 0x00, 0x00, 0x18}, []byte("ftyp")...)
	data = append(data, []byte(brand)...)
	data = append(data, make([]byte, 16)...)
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	return path
}

func writeBytes(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	return path
}

func TestIsHeicBySignature(t *testing.T) {
	tests := []struct {
		name  string
		brand string
		want  bool
	}{
		{"heic brand", "heic", true},
		{"heif brand", "heif", true},
		{"mif1 brand", "mif1", true},
		{"heix brand", "heix", true},
		{"mp4 brand", "isom", false},
		{"quicktime brand", "qt  ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Generic extension and MIME so only the signature can decide.
			path := ftypFile(t, "upload.bin", tt.brand)
			got := IsHeic(path, "application/octet-stream")
			if got != tt.want {
				t.Errorf("IsHeic(brand=%q) = %v, want %v", tt.brand, got, tt.want)
			}
		})
	}
}

func TestIsHeicByExtensionAndMime(t *testing.T) {
	path := writeBytes(t, "photo.heic", []byte("not a real container"))
	if !IsHeic(path, "") {
		t.Error("expected .heic extension to be detected")
	}

	path = writeBytes(t, "photo.bin", []byte("not a real container"))
	if !IsHeic(path, "image/heif") {
		t.Error("expected declared image/heif MIME to be detected")
	}
	if IsHeic(path, "image/jpeg") {
		t.Error("plain file with jpeg MIME must not be HEIC")
	}
}

func TestSniffMime(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"a.jpg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0, 0, 0, 0, 0}, "image/jpeg"},
		{"a.png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}, "image/png"},
		{"a.gif", append([]byte("GIF89a"), make([]byte, 8)...), "image/gif"},
		{"a.mkv", append([]byte{0x1A, 0x45, 0xDF, 0xA3}, make([]byte, 8)...), "video/x-matroska"},
		{"a.bin", append([]byte("plain text here"), make([]byte, 8)...), "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeBytes(t, tt.name, tt.data)
			got, err := SniffMime(path)
			if err != nil {
				t.Fatalf("SniffMime: %v", err)
			}
			if got != tt.want {
				t.Errorf("SniffMime = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInspectClassifies(t *testing.T) {
	jpeg := writeBytes(t, "a.jpg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0, 0, 0, 0, 0})
	res, err := Inspect(jpeg, "image/jpeg", 0)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if res.Kind != mediatypes.FileTypeImage || res.MimeType != "image/jpeg" || res.IsHeic {
		t.Errorf("unexpected result: %+v", res)
	}

	mp4 := ftypFile(t, "b.mp4", "isom")
	res, err = Inspect(mp4, "", 0)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if res.Kind != mediatypes.FileTypeVideo {
		t.Errorf("expected video, got %s", res.Kind)
	}

	heic := ftypFile(t, "c.bin", "heic")
	res, err = Inspect(heic, "application/octet-stream", 0)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if !res.IsHeic || res.Kind != mediatypes.FileTypeImage {
		t.Errorf("expected HEIC image, got %+v", res)
	}
}

func TestInspectRejects(t *testing.T) {
	t.Run("unsupported format", func(t *testing.T) {
		path := writeBytes(t, "notes.txt", []byte("hello world, nothing here"))
		if _, err := Inspect(path, "text/plain", 0); err == nil {
			t.Error("expected rejection of text file")
		}
	})

	t.Run("oversized file", func(t *testing.T) {
		path := writeBytes(t, "big.jpg", append([]byte{0xFF, 0xD8, 0xFF}, make([]byte, 64)...))
		_, err := Inspect(path, "image/jpeg", 16)
		if err == nil {
			t.Fatal("expected size rejection")
		}
	})
}
