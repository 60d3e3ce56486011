package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/abema/go-mp4"

	"photovault/internal/logging"
)

// VideoMeta holds the fields extracted from a video container.
type VideoMeta struct {
	CapturedAt        time.Time
	Latitude          *float64
	Longitude         *float64
	Altitude          *float64
	CameraMake        string
	CameraModel       string
	Software          string
	DurationSeconds   float64
	Width             int
	Height            int
	FocalLength35mm   float64
	LocationAccuracyM float64
}

// Apple QuickTime metadata keys carried in the moov/meta keys+ilst pair.
const (
	keyMake         = "com.apple.quicktime.make"
	keyModel        = "com.apple.quicktime.model"
	keyCreationDate = "com.apple.quicktime.creationdate"
	keyLocation     = "com.apple.quicktime.location.ISO6709"
	keyAccuracy     = "com.apple.quicktime.location.accuracy.horizontal"
	keyFocalLength  = "com.apple.quicktime.camera.focallength.35mm"
	keySoftware     = "com.apple.quicktime.software"
)

// Seconds between the ISO/IEC 14496-12 epoch (1904-01-01) and the Unix epoch.
const mp4EpochToUnixSeconds = 2082844800

// iso6709Regex matches the compact positional string "±DD.DDDD±DDD.DDDD±AAA.AAA/"
// (the altitude group is optional; so is the trailing slash).
var iso6709Regex = regexp.MustCompile(`^([+-]\d+(?:\.\d+)?)([+-]\d+(?:\.\d+)?)([+-]\d+(?:\.\d+)?)?`)

// xyzCoordsRegex extracts lat/lon from the udta ©xyz box, which carries a
// 4-byte header before the same positional string.
var xyzCoordsRegex = regexp.MustCompile(`([+-]\d+\.\d+)([+-]\d+\.\d+)([+-]\d+(?:\.\d+)?)?`)

// ParseISO6709 parses a compact positional string into latitude, longitude,
// and optional altitude.
func ParseISO6709(s string) (lat, lon float64, alt *float64, err error) {
	m := iso6709Regex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, nil, fmt.Errorf("positional string %q not in ISO 6709 form", s)
	}
	lat, err = strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("parsing latitude from %q: %w", m[1], err)
	}
	lon, err = strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("parsing longitude from %q: %w", m[2], err)
	}
	if m[3] != "" {
		a, err := strconv.ParseFloat(m[3], 64)
		if err == nil {
			alt = &a
		}
	}
	return lat, lon, alt, nil
}

// mp4Timestamp converts seconds since the 1904 container epoch to time.Time.
func mp4Timestamp(ts uint64) time.Time {
	if ts == 0 || ts == mp4EpochToUnixSeconds {
		return time.Time{}
	}
	return time.Unix(int64(ts)-mp4EpochToUnixSeconds, 0).UTC()
}

// ExtractVideo reads container-level creation time, GPS, camera, and stream
// fields from the video at path. If no timestamp is found anywhere in the
// container, the file's own modification time is used so CapturedAt is never
// left unset when avoidable.
func ExtractVideo(path string) (*VideoMeta, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	meta := &VideoMeta{}

	var keyNames []string
	itemValues := make(map[int]string)

	_, err = mp4.ReadBoxStructure(file, func(h *mp4.ReadHandle) (interface{}, error) {
		switch {
		case h.BoxInfo.Type == mp4.BoxTypeKeys():
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, fmt.Errorf("reading keys payload: %w", err)
			}
			if keys, ok := box.(*mp4.Keys); ok {
				for _, entry := range keys.Entries {
					keyNames = append(keyNames, string(entry.KeyValue))
				}
			}
			return nil, nil

		case h.BoxInfo.Context.UnderUdta && h.BoxInfo.Type == [4]byte{0xA9, 'x', 'y', 'z'}:
			var buf bytes.Buffer
			if _, err := h.ReadData(&buf); err != nil {
				return nil, fmt.Errorf("reading \xc2\xa9xyz box: %w", err)
			}
			applyXYZ(meta, buf.String())
			return nil, nil
		}

		if !h.BoxInfo.IsSupportedType() || h.BoxInfo.Type == mp4.BoxTypeMdat() {
			return nil, nil
		}

		box, _, err := h.ReadPayload()
		if err != nil {
			// Skip malformed boxes; whatever else the container holds may
			// still parse.
			logging.Debug("metadata: skipping malformed box in %s: %v", path, err)
			return nil, nil
		}

		switch b := box.(type) {
		case *mp4.Mvhd:
			if meta.CapturedAt.IsZero() {
				meta.CapturedAt = mp4Timestamp(b.GetCreationTime())
			}
			if b.Timescale > 0 {
				meta.DurationSeconds = float64(b.GetDuration()) / float64(b.Timescale)
			}
		case *mp4.Tkhd:
			if meta.CapturedAt.IsZero() {
				meta.CapturedAt = mp4Timestamp(b.GetCreationTime())
			}
			if w := int(b.GetWidthInt()); w > meta.Width {
				meta.Width = w
			}
			if hgt := int(b.GetHeightInt()); hgt > meta.Height {
				meta.Height = hgt
			}
		case *mp4.Item:
			// Numbered ilst entries: the box type itself is the big-endian
			// key index, and the data payload rides inline on the item.
			if b.Data.DataType == mp4.DataTypeStringUTF8 {
				idx := int(binary.BigEndian.Uint32(h.BoxInfo.Type[:]))
				itemValues[idx] = string(b.Data.Data)
			}
			return nil, nil
		}

		return h.Expand()
	})
	if err != nil {
		return nil, fmt.Errorf("reading container structure of %s: %w", path, err)
	}

	applyQuickTimeKeys(meta, keyNames, itemValues)

	if meta.CapturedAt.IsZero() {
		if info, err := os.Stat(path); err == nil {
			meta.CapturedAt = info.ModTime()
		}
	}

	return meta, nil
}

// applyQuickTimeKeys resolves the keys+ilst index pairing and applies the
// well-known vendor fields.
func applyQuickTimeKeys(meta *VideoMeta, keyNames []string, itemValues map[int]string) {
	for idx, value := range itemValues {
		if idx < 1 || idx > len(keyNames) {
			continue
		}
		switch keyNames[idx-1] {
		case keyMake:
			meta.CameraMake = strings.TrimSpace(value)
		case keyModel:
			meta.CameraModel = strings.TrimSpace(value)
		case keySoftware:
			meta.Software = strings.TrimSpace(value)
		case keyCreationDate:
			if ts, err := parseQuickTimeDate(value); err == nil {
				// The vendor creation date, when present, is more precise
				// than the mvhd timestamp (it carries the local offset).
				meta.CapturedAt = ts
			}
		case keyLocation:
			lat, lon, alt, err := ParseISO6709(value)
			if err != nil {
				logging.Debug("metadata: bad ISO 6709 value %q: %v", value, err)
				continue
			}
			meta.Latitude = &lat
			meta.Longitude = &lon
			meta.Altitude = alt
		case keyAccuracy:
			if acc, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
				meta.LocationAccuracyM = acc
			}
		case keyFocalLength:
			if fl, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
				meta.FocalLength35mm = fl
			}
		}
	}
}

// parseQuickTimeDate parses the ISO-8601 creation date, which appears both
// with and without a colon in the zone offset.
func parseQuickTimeDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-0700", "2006-01-02T15:04:05Z0700"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized creation date %q", s)
}

// applyXYZ parses the legacy udta ©xyz positional payload.
func applyXYZ(meta *VideoMeta, raw string) {
	m := xyzCoordsRegex.FindStringSubmatch(raw)
	if m == nil {
		logging.Debug("metadata: \xc2\xa9xyz box without coordinates: %q", raw)
		return
	}
	lat, err1 := strconv.ParseFloat(m[1], 64)
	lon, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil {
		return
	}
	if meta.Latitude == nil {
		meta.Latitude = &lat
		meta.Longitude = &lon
	}
	if m[3] != "" && meta.Altitude == nil {
		if alt, err := strconv.ParseFloat(m[3], 64); err == nil {
			meta.Altitude = &alt
		}
	}
}
