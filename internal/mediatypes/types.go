package mediatypes

// FileType classifies an ingested file.
type FileType string

const (
	// FileTypeImage represents an image file.
	FileTypeImage FileType = "image"
	// FileTypeVideo represents a video file.
	FileTypeVideo FileType = "video"
	// FileTypeOther represents an unknown or unsupported file type.
	FileTypeOther FileType = "other"
)

// Size ceilings enforced before any processing.
const (
	// MaxDirectUploadBytes caps a single directly uploaded file.
	MaxDirectUploadBytes = 100 * 1024 * 1024
	// MaxArchiveMemberBytes caps a single file inside an imported archive.
	MaxArchiveMemberBytes = 500 * 1024 * 1024
	// MaxArchiveUncompressedBytes caps the summed uncompressed size of an
	// archive's entries (decompression-bomb ceiling).
	MaxArchiveUncompressedBytes = 4 * 1024 * 1024 * 1024
)

// ImageExtensions maps file extensions to whether they are supported image formats.
var ImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".webp": true, ".tiff": true, ".tif": true,
	".heic": true, ".heif": true,
}

// VideoExtensions maps file extensions to whether they are supported video formats.
var VideoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true,
	".wmv": true, ".flv": true, ".webm": true, ".m4v": true,
	".mpeg": true, ".mpg": true, ".3gp": true, ".ts": true,
}

// ImageMimeTypes is the allow-list of image MIME types accepted for ingestion.
var ImageMimeTypes = map[string]bool{
	"image/jpeg": true, "image/png": true, "image/gif": true,
	"image/bmp": true, "image/webp": true, "image/tiff": true,
	"image/heic": true, "image/heif": true,
}

// VideoMimeTypes is the allow-list of video MIME types accepted for ingestion.
var VideoMimeTypes = map[string]bool{
	"video/mp4": true, "video/x-matroska": true, "video/x-msvideo": true,
	"video/quicktime": true, "video/x-ms-wmv": true, "video/x-flv": true,
	"video/webm": true, "video/x-m4v": true, "video/mpeg": true,
	"video/3gpp": true, "video/mp2t": true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	// Images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",

	// Videos
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",
}

// GetFileType returns the FileType for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".jpg").
// Returns FileTypeOther if the extension is not recognized.
func GetFileType(ext string) FileType {
	if ImageExtensions[ext] {
		return FileTypeImage
	}
	if VideoExtensions[ext] {
		return FileTypeVideo
	}
	return FileTypeOther
}

// GetMimeType returns the MIME type for a given file extension, or
// "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}
