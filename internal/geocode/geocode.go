// Package geocode resolves GPS coordinates to human-readable place names
// through the Nominatim reverse-geocoding API. Lookups are rate limited to
// one call per second per the upstream usage policy, and every failure
// degrades to an empty place name rather than an error.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"photovault/internal/logging"
	"photovault/internal/metrics"
)

const (
	defaultBaseURL   = "https://nominatim.openstreetmap.org"
	defaultUserAgent = "photovault/1.0"

	// Upstream policy: absolute maximum of one request per second.
	MinCallInterval = time.Second
)

// Resolver looks up place names for coordinates.
type Resolver struct {
	baseURL   string
	userAgent string
	client    *http.Client
	limiter   *Limiter
}

// NewResolver builds a resolver against the public Nominatim instance.
// baseURL overrides the endpoint when non-empty (tests, self-hosted
// instances).
func NewResolver(baseURL string, clock Clock, store TimestampStore) *Resolver {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Resolver{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: defaultUserAgent,
		client:    &http.Client{Timeout: 10 * time.Second},
		limiter:   NewLimiter(MinCallInterval, clock, store),
	}
}

// Disabled is a resolver that never performs lookups. It stands in for a
// real Resolver when geocoding is switched off.
type Disabled struct{}

// Resolve always returns "".
func (Disabled) Resolve(ctx context.Context, lat, lon float64) string { return "" }

// nominatimResponse is the subset of the reverse-geocode payload we read.
type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		Hamlet       string `json:"hamlet"`
		Municipality string `json:"municipality"`
		Suburb       string `json:"suburb"`
		County       string `json:"county"`
		State        string `json:"state"`
		Province     string `json:"province"`
		Country      string `json:"country"`
		CountryCode  string `json:"country_code"`
	} `json:"address"`
}

// Resolve returns a place name for the coordinates, or "" when the lookup
// fails for any reason. It never returns an error to callers; geocoding is
// strictly best-effort.
func (r *Resolver) Resolve(ctx context.Context, lat, lon float64) string {
	if err := r.limiter.Wait(ctx); err != nil {
		logging.Debug("geocode: rate-limit wait aborted: %v", err)
		return ""
	}

	resp, err := r.lookup(ctx, lat, lon)
	if err != nil {
		logging.Warn("geocode: reverse lookup for %.4f,%.4f failed: %v", lat, lon, err)
		metrics.GeocodeLookups.WithLabelValues("failed").Inc()
		return ""
	}
	metrics.GeocodeLookups.WithLabelValues("resolved").Inc()
	return placeName(resp)
}

func (r *Resolver) lookup(ctx context.Context, lat, lon float64) (*nominatimResponse, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", fmt.Sprintf("%f", lat))
	q.Set("lon", fmt.Sprintf("%f", lon))
	q.Set("zoom", "14")
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept-Language", "en")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &payload, nil
}

// regionalCountries lists country codes whose first-level subdivision is how
// residents actually name a place ("Austin, Texas" rather than
// "Austin, United States").
var regionalCountries = map[string]bool{
	"us": true,
	"ca": true,
	"au": true,
	"br": true,
	"mx": true,
	"in": true,
}

// placeName builds a short locale-aware place string from the address
// details, falling back to a truncated display name.
func placeName(resp *nominatimResponse) string {
	addr := resp.Address

	locality := firstNonEmpty(addr.City, addr.Town, addr.Village, addr.Hamlet, addr.Municipality, addr.Suburb, addr.County)

	region := ""
	if regionalCountries[strings.ToLower(addr.CountryCode)] {
		region = firstNonEmpty(addr.State, addr.Province, addr.Country)
	} else {
		region = addr.Country
	}

	switch {
	case locality != "" && region != "":
		return locality + ", " + region
	case locality != "":
		return locality
	case region != "":
		return region
	}
	return truncateDisplayName(resp.DisplayName, 3)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// truncateDisplayName keeps the first n comma-separated segments of the full
// display name.
func truncateDisplayName(name string, n int) string {
	parts := strings.Split(name, ",")
	if len(parts) > n {
		parts = parts[:n]
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return strings.Join(parts, ", ")
}
