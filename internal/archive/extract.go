package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"

	"photovault/internal/logging"
	"photovault/internal/mediatypes"
)

// ErrArchiveTooLarge is returned when the summed uncompressed size of an
// archive's entries exceeds the configured ceiling. The check runs before any
// byte is extracted, so no scratch state exists when it fires.
var ErrArchiveTooLarge = errors.New("archive uncompressed size exceeds limit")

// skipNames are filesystem artifacts that never count as media candidates.
var skipNames = map[string]bool{
	".DS_Store":   true,
	"Thumbs.db":   true,
	"desktop.ini": true,
}

// skipDirs are platform-generated directories excluded from extraction walks.
var skipDirs = map[string]bool{
	"__MACOSX": true,
}

// Extractor opens uploaded archives and extracts them to scratch directories.
type Extractor struct {
	// MaxUncompressedBytes is the decompression-bomb ceiling. Zero means
	// the default from mediatypes.
	MaxUncompressedBytes int64
}

func (e Extractor) maxUncompressed() int64 {
	if e.MaxUncompressedBytes > 0 {
		return e.MaxUncompressedBytes
	}
	return mediatypes.MaxArchiveUncompressedBytes
}

// Extract unpacks archivePath into destDir and returns the media candidates
// found inside. If destDir already holds an extraction (a preview step ran
// first), it is reused without re-extracting.
func (e Extractor) Extract(ctx context.Context, archivePath, destDir string) ([]string, error) {
	if entries, err := os.ReadDir(destDir); err == nil && len(entries) > 0 {
		logging.Debug("archive: reusing existing extraction at %s", destDir)
		return e.EnumerateMedia(destDir)
	}

	total, err := e.uncompressedTotal(ctx, archivePath)
	if err != nil {
		return nil, err
	}
	if total > e.maxUncompressed() {
		return nil, fmt.Errorf("%w: %d bytes uncompressed (limit %d)", ErrArchiveTooLarge, total, e.maxUncompressed())
	}

	if err := os.MkdirAll(destDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating extraction directory: %w", err)
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer file.Close()

	err = archives.Zip{}.Extract(ctx, file, func(ctx context.Context, f archives.FileInfo) error {
		return e.writeEntry(destDir, f)
	})
	if err != nil {
		return nil, fmt.Errorf("extracting archive: %w", err)
	}

	return e.EnumerateMedia(destDir)
}

// uncompressedTotal sums the declared uncompressed size of every entry
// without opening or writing any of them.
func (e Extractor) uncompressedTotal(ctx context.Context, archivePath string) (int64, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return 0, fmt.Errorf("opening archive: %w", err)
	}
	defer file.Close()

	var total int64
	err = archives.Zip{}.Extract(ctx, file, func(ctx context.Context, f archives.FileInfo) error {
		if !f.IsDir() {
			total += f.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scanning archive entries: %w", err)
	}
	return total, nil
}

// writeEntry extracts a single archive entry beneath destDir, rejecting
// entries whose names would escape it.
func (e Extractor) writeEntry(destDir string, f archives.FileInfo) error {
	name := path.Clean(f.NameInArchive)
	if name == "." || strings.HasPrefix(name, "..") || path.IsAbs(name) {
		logging.Warn("archive: skipping entry with unsafe name %q", f.NameInArchive)
		return nil
	}
	for _, part := range strings.Split(name, "/") {
		if skipDirs[part] {
			return nil
		}
	}
	if skipNames[path.Base(name)] {
		return nil
	}

	target := filepath.Join(destDir, filepath.FromSlash(name))
	if f.IsDir() {
		return os.MkdirAll(target, 0o700)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
		return fmt.Errorf("creating directory for %s: %w", name, err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening archive entry %s: %w", name, err)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("writing %s: %w", target, err)
	}
	return dst.Close()
}

// EnumerateMedia walks root recursively and returns the paths of all files
// with a supported media extension, skipping platform artifacts and hidden
// files. Results are in walk (lexical) order.
func (e Extractor) EnumerateMedia(root string) ([]string, error) {
	var candidates []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Warn("archive: error walking %s: %v", p, err)
			return nil
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if skipNames[name] || strings.HasPrefix(name, ".") {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(name))
		if mediatypes.GetFileType(ext) == mediatypes.FileTypeOther {
			return nil
		}
		candidates = append(candidates, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enumerating media files: %w", err)
	}
	return candidates, nil
}
