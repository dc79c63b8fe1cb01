package geocode

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/benmeehan/shuttle-tracker/internal/models"
	"googlemaps.github.io/maps"
)

// GoogleGeocoder uses the Google Maps Geocoding API.
type GoogleGeocoder struct {
	client *maps.Client // Maps API client for making reverse-geocoding requests
}

// Option configures a GoogleGeocoder.
type Option func(*[]maps.ClientOption)

// WithBaseURL points the client at another Geocoding API host.
func WithBaseURL(baseURL string) Option {
	return func(opts *[]maps.ClientOption) {
		*opts = append(*opts, maps.WithBaseURL(baseURL))
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(opts *[]maps.ClientOption) {
		*opts = append(*opts, maps.WithHTTPClient(client))
	}
}

// NewGoogleGeocoder creates a GoogleGeocoder authenticated with apiKey.
func NewGoogleGeocoder(apiKey string, options ...Option) (*GoogleGeocoder, error) {
	clientOpts := []maps.ClientOption{maps.WithAPIKey(apiKey)}
	for _, option := range options {
		option(&clientOpts)
	}

	c, err := maps.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}

	return &GoogleGeocoder{
		client: c,
	}, nil
}

// ReverseGeocode returns the formatted address of the first result.
func (g *GoogleGeocoder) ReverseGeocode(ctx context.Context, coordinate models.Coordinate) (string, error) {
	req := &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: coordinate.Latitude, Lng: coordinate.Longitude},
	}

	results, err := g.client.ReverseGeocode(ctx, req)
	if err != nil {
		if ctx.Err() == nil && isStatusError(err) {
			return "", fmt.Errorf("%w: %v", ErrNoResults, err)
		}
		return "", fmt.Errorf("reverse geocoding %s failed: %w", coordinate, err)
	}

	if len(results) == 0 || results[0].FormattedAddress == "" {
		return "", ErrNoResults
	}
	return results[0].FormattedAddress, nil
}

// The maps client (googlemaps.github.io/maps v1.7.0, commonResponse.StatusError) reports a
// non-OK API status only as the text "maps: <STATUS> - <error_message>". ZERO_RESULTS is not an
// error there; it arrives as an empty result list.
const statusErrorPrefix = "maps: "

// isStatusError reports whether err is a status error, i.e. the API answered but without a
// usable result. Transport and decoding errors never carry an upper-case status token.
func isStatusError(err error) bool {
	rest, ok := strings.CutPrefix(err.Error(), statusErrorPrefix)
	if !ok {
		return false
	}
	status, _, ok := strings.Cut(rest, " - ")
	return ok && isStatusToken(status)
}

func isStatusToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && r != '_' {
			return false
		}
	}
	return true
}
