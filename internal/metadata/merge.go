package metadata

import (
	"time"

	"photovault/internal/sidecar"
)

// Fields is the merged per-asset metadata that flows into the database.
type Fields struct {
	Title           string
	Description     string
	CapturedAt      time.Time
	Latitude        *float64
	Longitude       *float64
	Altitude        *float64
	People          []string
	CameraMake      string
	CameraModel     string
	Software        string
	Rotation        int
	DurationSeconds float64
	Width           int
	Height          int
}

// FromImage seeds merged fields from embedded image metadata.
func FromImage(m *ImageMeta) Fields {
	if m == nil {
		return Fields{}
	}
	return Fields{
		CapturedAt:  m.CapturedAt,
		Latitude:    m.Latitude,
		Longitude:   m.Longitude,
		CameraMake:  m.CameraMake,
		CameraModel: m.CameraModel,
		Rotation:    m.Rotation,
	}
}

// FromVideo seeds merged fields from container-level video metadata.
func FromVideo(m *VideoMeta) Fields {
	if m == nil {
		return Fields{}
	}
	return Fields{
		CapturedAt:      m.CapturedAt,
		Latitude:        m.Latitude,
		Longitude:       m.Longitude,
		Altitude:        m.Altitude,
		CameraMake:      m.CameraMake,
		CameraModel:     m.CameraModel,
		Software:        m.Software,
		DurationSeconds: m.DurationSeconds,
		Width:           m.Width,
		Height:          m.Height,
	}
}

// MergeSidecar overlays sidecar metadata on top of embedded fields. Sidecar
// values win wherever present; embedded values survive only where the sidecar
// is silent. Camera fields never come from sidecars, so they always pass
// through.
func MergeSidecar(embedded Fields, sc *sidecar.Metadata) Fields {
	if sc == nil {
		return embedded
	}
	out := embedded
	if sc.Title != "" {
		out.Title = sc.Title
	}
	if sc.Description != "" {
		out.Description = sc.Description
	}
	if !sc.CapturedAt.IsZero() {
		out.CapturedAt = sc.CapturedAt
	}
	if sc.Latitude != nil && sc.Longitude != nil {
		out.Latitude = sc.Latitude
		out.Longitude = sc.Longitude
		out.Altitude = sc.Altitude
	}
	if len(sc.People) > 0 {
		out.People = append([]string(nil), sc.People...)
	}
	return out
}
