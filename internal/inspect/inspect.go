package inspect

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"photovault/internal/logging"
	"photovault/internal/mediatypes"
)

// ErrTooLarge is returned when a file exceeds the configured size ceiling.
var ErrTooLarge = errors.New("file exceeds maximum allowed size")

// ErrUnsupported is returned when a file is neither a supported image nor video.
var ErrUnsupported = errors.New("unsupported media format")

// Result describes an inspected file.
type Result struct {
	Kind     mediatypes.FileType
	MimeType string
	IsHeic   bool
	Size     int64
}

// heicBrands are the ftyp major brands that identify HEIC/HEIF containers.
var heicBrands = map[string]bool{
	"heic": true, "heix": true, "hevc": true, "hevx": true,
	"heif": true, "mif1": true, "msf1": true,
}

// Inspect classifies the file at path as image or video, resolves its
// effective MIME type, and enforces maxBytes. The declared MIME type is used
// as a hint only; the binary signature wins when the declared type is generic.
func Inspect(path, declaredMime string, maxBytes int64) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return Result{}, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, info.Size(), maxBytes)
	}

	res := Result{Size: info.Size()}

	ext := strings.ToLower(filepath.Ext(path))
	res.IsHeic = IsHeic(path, declaredMime)

	// Effective MIME: sniffed content first, then declared, then extension.
	sniffed, err := SniffMime(path)
	if err != nil {
		logging.Debug("inspect: content sniff failed for %s: %v", path, err)
	}
	switch {
	case res.IsHeic:
		res.MimeType = "image/heic"
	case sniffed != "" && sniffed != "application/octet-stream":
		res.MimeType = sniffed
	case declaredMime != "" && declaredMime != "application/octet-stream":
		res.MimeType = declaredMime
	default:
		res.MimeType = mediatypes.GetMimeType(ext)
	}

	switch {
	case res.IsHeic || mediatypes.ImageMimeTypes[res.MimeType]:
		res.Kind = mediatypes.FileTypeImage
	case mediatypes.VideoMimeTypes[res.MimeType]:
		res.Kind = mediatypes.FileTypeVideo
	default:
		// Fall back to extension classification before rejecting; several
		// containers (mkv, ts) sniff poorly from the first bytes alone.
		res.Kind = mediatypes.GetFileType(ext)
		if res.Kind == mediatypes.FileTypeOther {
			return Result{}, fmt.Errorf("%w: mime=%q ext=%q", ErrUnsupported, res.MimeType, ext)
		}
		res.MimeType = mediatypes.GetMimeType(ext)
	}

	return res, nil
}

// IsHeic reports whether the file is a HEIC/HEIF image. It checks, in order,
// the file extension, the declared MIME type, and finally the binary ftyp
// signature; the signature probe is authoritative when the declared type is
// generic or absent.
func IsHeic(path, declaredMime string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".heic" || ext == ".heif" {
		return true
	}
	switch strings.ToLower(declaredMime) {
	case "image/heic", "image/heif", "image/heic-sequence", "image/heif-sequence":
		return true
	}
	return hasHeicSignature(path)
}

// hasHeicSignature probes for an ISO-BMFF ftyp box with a HEIC/HEIF brand.
// The brand sits at byte offset 8, after the 4-byte box size and "ftyp".
func hasHeicSignature(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	header := make([]byte, 12)
	n, err := file.Read(header)
	if err != nil || n < 12 {
		return false
	}
	if string(header[4:8]) != "ftyp" {
		return false
	}
	return heicBrands[string(header[8:12])]
}

// SniffMime detects a file's MIME type from its leading bytes.
func SniffMime(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	header := make([]byte, 32)
	n, err := file.Read(header)
	if err != nil {
		return "", err
	}
	header = header[:n]

	switch {
	case len(header) >= 3 && header[0] == 0xFF && header[1] == 0xD8 && header[2] == 0xFF:
		return "image/jpeg", nil

	case len(header) >= 8 && header[0] == 0x89 && header[1] == 0x50 && header[2] == 0x4E && header[3] == 0x47:
		return "image/png", nil

	case len(header) >= 4 && header[0] == 0x47 && header[1] == 0x49 && header[2] == 0x46 && header[3] == 0x38:
		return "image/gif", nil

	case len(header) >= 12 && header[0] == 0x52 && header[1] == 0x49 && header[2] == 0x46 && header[3] == 0x46 &&
		header[8] == 0x57 && header[9] == 0x45 && header[10] == 0x42 && header[11] == 0x50:
		return "image/webp", nil

	case len(header) >= 2 && header[0] == 0x42 && header[1] == 0x4D:
		return "image/bmp", nil

	case len(header) >= 4 && ((header[0] == 0x49 && header[1] == 0x49 && header[2] == 0x2A && header[3] == 0x00) ||
		(header[0] == 0x4D && header[1] == 0x4D && header[2] == 0x00 && header[3] == 0x2A)):
		return "image/tiff", nil

	case len(header) >= 12 && string(header[4:8]) == "ftyp":
		brand := string(header[8:12])
		if heicBrands[brand] {
			return "image/heic", nil
		}
		if strings.HasPrefix(brand, "qt") {
			return "video/quicktime", nil
		}
		// Remaining ftyp brands (isom, mp41, mp42, M4V, 3gp...) are all
		// MP4-family video containers as far as ingestion cares.
		return "video/mp4", nil

	case len(header) >= 4 && header[0] == 0x1A && header[1] == 0x45 && header[2] == 0xDF && header[3] == 0xA3:
		// EBML header: matroska or webm
		return "video/x-matroska", nil

	case len(header) >= 12 && header[0] == 0x52 && header[1] == 0x49 && header[2] == 0x46 && header[3] == 0x46 &&
		header[8] == 0x41 && header[9] == 0x56 && header[10] == 0x49 && header[11] == 0x20:
		return "video/x-msvideo", nil
	}

	return "application/octet-stream", nil
}
