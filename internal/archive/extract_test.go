package archive

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// buildZip writes a zip file containing the given name→content entries.
func buildZip(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	zw := zip.NewWriter(f)
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(entries[name])); err != nil {
			t.Fatalf("write entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	return path
}

func TestExtractEnumeratesMedia(t *testing.T) {
	zipPath := buildZip(t, map[string]string{
		"Takeout/Photos/a.jpg":        "jpegdata",
		"Takeout/Photos/b.mp4":        "mp4data",
		"Takeout/Photos/a.jpg.json":   `{"title":"a.jpg"}`,
		"Takeout/Photos/notes.txt":    "not media",
		"__MACOSX/Photos/._a.jpg":     "resource fork",
		"Takeout/Photos/.DS_Store":    "finder junk",
		"Takeout/Photos/sub/c.png":    "pngdata",
	})

	dest := filepath.Join(t.TempDir(), "extract")
	got, err := Extractor{}.Extract(context.Background(), zipPath, dest)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	var names []string
	for _, p := range got {
		rel, _ := filepath.Rel(dest, p)
		names = append(names, filepath.ToSlash(rel))
	}
	sort.Strings(names)
	want := []string{"Takeout/Photos/a.jpg", "Takeout/Photos/b.mp4", "Takeout/Photos/sub/c.png"}
	if len(names) != len(want) {
		t.Fatalf("candidates = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("candidate[%d] = %s, want %s", i, names[i], want[i])
		}
	}

	// Sidecar survives extraction even though it is not a media candidate.
	if _, err := os.Stat(filepath.Join(dest, "Takeout", "Photos", "a.jpg.json")); err != nil {
		t.Errorf("sidecar missing after extraction: %v", err)
	}
	// Resource fork directory must not be extracted.
	if _, err := os.Stat(filepath.Join(dest, "__MACOSX")); !os.IsNotExist(err) {
		t.Error("__MACOSX directory was extracted")
	}
}

func TestDecompressionBombRejectedBeforeExtraction(t *testing.T) {
	zipPath := buildZip(t, map[string]string{
		"huge1.jpg": string(make([]byte, 600)),
		"huge2.jpg": string(make([]byte, 600)),
	})

	dest := filepath.Join(t.TempDir(), "extract")
	_, err := Extractor{MaxUncompressedBytes: 1000}.Extract(context.Background(), zipPath, dest)
	if !errors.Is(err, ErrArchiveTooLarge) {
		t.Fatalf("expected ErrArchiveTooLarge, got %v", err)
	}
	// No scratch state may exist after rejection.
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("extraction directory was created despite bomb rejection")
	}
}

func TestExtractReusesExistingScratch(t *testing.T) {
	zipPath := buildZip(t, map[string]string{"p/a.jpg": "x"})

	dest := filepath.Join(t.TempDir(), "extract")
	first, err := Extractor{}.Extract(context.Background(), zipPath, dest)
	if err != nil {
		t.Fatalf("first Extract: %v", err)
	}

	// Delete the archive: a second pass must still succeed from scratch state.
	if err := os.Remove(zipPath); err != nil {
		t.Fatalf("remove zip: %v", err)
	}
	second, err := Extractor{}.Extract(context.Background(), zipPath, dest)
	if err != nil {
		t.Fatalf("second Extract: %v", err)
	}
	if len(first) != len(second) {
		t.Errorf("reuse returned %d candidates, first pass %d", len(second), len(first))
	}
}

func TestWriteEntryRejectsTraversal(t *testing.T) {
	zipPath := buildZip(t, map[string]string{
		"../outside.jpg": "escape attempt",
		"inside.jpg":     "fine",
	})

	parent := t.TempDir()
	dest := filepath.Join(parent, "extract")
	got, err := Extractor{}.Extract(context.Background(), zipPath, dest)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("candidates = %d, want only the safe entry", len(got))
	}
	if _, err := os.Stat(filepath.Join(parent, "outside.jpg")); !os.IsNotExist(err) {
		t.Error("traversal entry escaped the extraction directory")
	}
}
