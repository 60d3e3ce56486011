package database

import "time"

type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypeVideo FileType = "video"
)

// BatchStatus is the lifecycle state of one archive import.
type BatchStatus string

const (
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
)

type MediaAsset struct {
	ID                int64      `json:"id"`
	Filename          string     `json:"filename"`
	StoredFilename    string     `json:"storedFilename"`
	FilePath          string     `json:"filePath"`
	FileType          FileType   `json:"fileType"`
	MimeType          string     `json:"mimeType"`
	Size              int64      `json:"size"`
	ContentHash       string     `json:"-"`
	ThumbnailPath     string     `json:"thumbnailPath,omitempty"`
	ThumbnailWebPPath string     `json:"thumbnailWebpPath,omitempty"`
	Rotation          int        `json:"rotation"`
	Title             string     `json:"title,omitempty"`
	Description       string     `json:"description,omitempty"`
	CapturedAt        *time.Time `json:"capturedAt,omitempty"`
	GPSLatitude       *float64   `json:"gpsLatitude,omitempty"`
	GPSLongitude      *float64   `json:"gpsLongitude,omitempty"`
	PlaceName         string     `json:"placeName,omitempty"`
	CameraMake        string     `json:"cameraMake,omitempty"`
	CameraModel       string     `json:"cameraModel,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

type Album struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	CoverMediaID *int64    `json:"coverMediaId,omitempty"`
	MediaCount   int       `json:"mediaCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

type ImportBatch struct {
	ID                int64       `json:"id"`
	SourceArchiveName string      `json:"sourceArchiveName"`
	Size              int64       `json:"size"`
	TotalFiles        int         `json:"totalFiles"`
	ImportedCount     int         `json:"importedCount"`
	FailedCount       int         `json:"failedCount"`
	Status            BatchStatus `json:"status"`
	StartedAt         time.Time   `json:"startedAt"`
	CompletedAt       *time.Time  `json:"completedAt,omitempty"`
	ErrorMessage      string      `json:"errorMessage,omitempty"`
	AlbumID           *int64      `json:"albumId,omitempty"`
}
