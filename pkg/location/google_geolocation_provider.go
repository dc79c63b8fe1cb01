package location

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"
)

// GoogleGeolocationProvider uses the Google Maps Geolocation API. Only the caller's IP is considered.
type GoogleGeolocationProvider struct {
	client *maps.Client // Maps API client for making geolocation requests
}

// NewGoogleGeolocationProvider creates a new GoogleGeolocationProvider instance.
func NewGoogleGeolocationProvider(apiKey string, options ...maps.ClientOption) (*GoogleGeolocationProvider, error) {
	c, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}

	return &GoogleGeolocationProvider{
		client: c,
	}, nil
}

// GetLocation retrieves the device's location using Google Maps Geolocation API.
func (g *GoogleGeolocationProvider) GetLocation(ctx context.Context) (Location, error) {
	resp, err := g.client.Geolocate(ctx, &maps.GeolocationRequest{ConsiderIP: true})
	if err != nil {
		return Location{}, fmt.Errorf("geolocation request failed: %w", err)
	}

	return Location{
		Latitude:  resp.Location.Lat,
		Longitude: resp.Location.Lng,
		Accuracy:  resp.Accuracy,
	}, nil
}

func (g *GoogleGeolocationProvider) Close() error { return nil }
