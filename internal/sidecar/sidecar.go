package sidecar

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"photovault/internal/logging"
)

// Metadata holds the fields the pipeline consumes from a sidecar document.
type Metadata struct {
	Title       string
	Description string
	CapturedAt  time.Time
	Latitude    *float64
	Longitude   *float64
	Altitude    *float64
	People      []string
}

// document is the on-disk sidecar shape, as exported by photo services
// alongside each media file.
type document struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	PhotoTakenTime struct {
		Timestamp string `json:"timestamp"`
	} `json:"photoTakenTime"`
	CreationTime struct {
		Timestamp string `json:"timestamp"`
	} `json:"creationTime"`
	GeoData     geoBlock `json:"geoData"`
	GeoDataExif geoBlock `json:"geoDataExif"`
	People      []struct {
		Name string `json:"name"`
	} `json:"people"`
}

type geoBlock struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
}

// Find locates and parses the sidecar document for a media file. It tries, in
// order: "<name>.json", "<name>.supplemental-metadata.json", "<base>.json" in
// the media file's own directory, then a recursive scan of scratchRoot for a
// JSON file matching any of the same three patterns (sidecars sometimes live
// in a different subdirectory than their media). Returns nil with no error if
// no sidecar exists.
func Find(mediaPath, scratchRoot string) (*Metadata, error) {
	for _, candidate := range candidateNames(filepath.Base(mediaPath)) {
		p := filepath.Join(filepath.Dir(mediaPath), candidate)
		if _, err := os.Stat(p); err == nil {
			return parseFile(p)
		}
	}

	if scratchRoot == "" {
		return nil, nil
	}

	wanted := make(map[string]bool)
	for _, candidate := range candidateNames(filepath.Base(mediaPath)) {
		wanted[strings.ToLower(candidate)] = true
	}

	var found string
	err := filepath.WalkDir(scratchRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if wanted[strings.ToLower(d.Name())] {
			found = p
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning for sidecar: %w", err)
	}
	if found == "" {
		return nil, nil
	}
	return parseFile(found)
}

// candidateNames returns the sidecar filenames tried for a media basename.
func candidateNames(mediaName string) []string {
	base := strings.TrimSuffix(mediaName, filepath.Ext(mediaName))
	return []string{
		mediaName + ".json",
		mediaName + ".supplemental-metadata.json",
		base + ".json",
	}
}

func parseFile(path string) (*Metadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening sidecar %s: %w", path, err)
	}
	defer file.Close()

	var doc document
	if err := json.NewDecoder(file).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding sidecar %s: %w", path, err)
	}

	meta := &Metadata{
		Title:       doc.Title,
		Description: doc.Description,
	}

	ts := doc.PhotoTakenTime.Timestamp
	if ts == "" {
		ts = doc.CreationTime.Timestamp
	}
	if ts != "" {
		if sec, err := strconv.ParseInt(ts, 10, 64); err == nil {
			meta.CapturedAt = time.Unix(sec, 0).UTC()
		} else {
			logging.Debug("sidecar %s: unparseable timestamp %q", path, ts)
		}
	}

	// Prefer the exif-flavored GPS block; the plain block backfills.
	geo := doc.GeoDataExif
	if geo.Latitude == 0 && geo.Longitude == 0 {
		geo = doc.GeoData
	}
	if geo.Latitude != 0 || geo.Longitude != 0 {
		lat, lon := geo.Latitude, geo.Longitude
		meta.Latitude = &lat
		meta.Longitude = &lon
		if geo.Altitude != 0 {
			alt := geo.Altitude
			meta.Altitude = &alt
		}
	}

	for _, p := range doc.People {
		if p.Name != "" {
			meta.People = append(meta.People, p.Name)
		}
	}

	return meta, nil
}

// MatchesPeople reports whether the sidecar's tagged people intersect the
// target filter. An empty filter always passes. Matching is case-insensitive.
func (m *Metadata) MatchesPeople(filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	if m == nil {
		return false
	}
	for _, want := range filter {
		for _, have := range m.People {
			if strings.EqualFold(strings.TrimSpace(want), have) {
				return true
			}
		}
	}
	return false
}
