package metadata

import (
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/cozy/goexif2/exif"

	"photovault/internal/logging"
)

// ImageMeta holds the fields extracted from an image's embedded metadata.
type ImageMeta struct {
	CapturedAt  time.Time
	Latitude    *float64
	Longitude   *float64
	CameraMake  string
	CameraModel string
	Orientation int
	Rotation    int
}

// exifTimeLayout is the colon-delimited date format used by embedded
// image metadata.
const exifTimeLayout = "2006:01:02 15:04:05"

// RotationFromOrientation maps an embedded orientation tag value to one of
// the four rotation buckets. The mapping is total: every value outside
// {3, 6, 8} maps to 0.
func RotationFromOrientation(orientation int) int {
	switch orientation {
	case 3:
		return 180
	case 6:
		return 90
	case 8:
		return 270
	default:
		return 0
	}
}

// DMSToDecimal converts a degrees/minutes/seconds triplet (each possibly a
// fraction) plus a hemisphere reference to signed decimal degrees. The value
// is negated when the hemisphere is S or W.
func DMSToDecimal(deg, min, sec *big.Rat, ref string) float64 {
	dd := new(big.Rat).Set(deg)
	dd.Add(dd, new(big.Rat).Quo(min, big.NewRat(60, 1)))
	dd.Add(dd, new(big.Rat).Quo(sec, big.NewRat(3600, 1)))
	val, _ := dd.Float64()

	switch strings.ToUpper(strings.TrimSpace(ref)) {
	case "S", "W":
		val = -val
	}
	return val
}

// ExtractImage reads embedded orientation, timestamp, GPS, and camera fields
// from the image at path. A file whose metadata cannot be decoded yields an
// empty ImageMeta and no error; ingestion does not depend on metadata.
func ExtractImage(path string) (*ImageMeta, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	meta := &ImageMeta{}

	ex, err := exif.Decode(file)
	if err != nil {
		if exif.IsCriticalError(err) {
			logging.Debug("metadata: no usable exif in %s: %v", path, err)
			return meta, nil
		}
	}
	if ex == nil {
		return meta, nil
	}

	if tag, err := ex.Get(exif.Orientation); err == nil {
		if o, err := tag.Int(0); err == nil {
			meta.Orientation = o
			meta.Rotation = RotationFromOrientation(o)
		}
	}

	meta.CapturedAt = imageTimestamp(ex)

	if tag, err := ex.Get(exif.Make); err == nil {
		if s, err := tag.StringVal(); err == nil {
			meta.CameraMake = strings.TrimSpace(s)
		}
	}
	if tag, err := ex.Get(exif.Model); err == nil {
		if s, err := tag.StringVal(); err == nil {
			meta.CameraModel = strings.TrimSpace(s)
		}
	}

	lat, lon, ok := imageGPS(ex)
	if ok {
		meta.Latitude = &lat
		meta.Longitude = &lon
	}

	return meta, nil
}

// imageTimestamp reads the original-capture timestamp, falling back to the
// generic modification timestamp field.
func imageTimestamp(ex *exif.Exif) time.Time {
	for _, field := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTime} {
		tag, err := ex.Get(field)
		if err != nil {
			continue
		}
		raw, err := tag.StringVal()
		if err != nil {
			continue
		}
		if ts, err := time.ParseInLocation(exifTimeLayout, strings.TrimSpace(raw), time.Local); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// imageGPS reads per-axis rational DMS triplets plus hemisphere references
// and converts them to signed decimal degrees.
func imageGPS(ex *exif.Exif) (lat, lon float64, ok bool) {
	lat, ok = gpsAxis(ex, exif.GPSLatitude, exif.GPSLatitudeRef)
	if !ok {
		return 0, 0, false
	}
	lon, ok = gpsAxis(ex, exif.GPSLongitude, exif.GPSLongitudeRef)
	if !ok {
		return 0, 0, false
	}
	return lat, lon, true
}

func gpsAxis(ex *exif.Exif, axis, refField exif.FieldName) (float64, bool) {
	tag, err := ex.Get(axis)
	if err != nil || tag.Count < 3 {
		return 0, false
	}

	parts := make([]*big.Rat, 3)
	for i := 0; i < 3; i++ {
		r, err := tag.Rat(i)
		if err != nil {
			return 0, false
		}
		parts[i] = r
	}

	ref := ""
	if refTag, err := ex.Get(refField); err == nil {
		if s, err := refTag.StringVal(); err == nil {
			ref = s
		}
	}

	return DMSToDecimal(parts[0], parts[1], parts[2], ref), true
}
