// Package geocode turns coordinates into human-readable addresses.
package geocode

import (
	"context"
	"errors"

	"github.com/benmeehan/shuttle-tracker/internal/models"
)

// ErrNoResults is returned when the service answered but had no usable address,
// either because it found nothing or because it reported a non-OK status.
var ErrNoResults = errors.New("geocode: no usable result")

// Geocoder resolves a coordinate to a formatted address. Errors other than ErrNoResults
// are request failures (network, parse, timeout).
type Geocoder interface {
	ReverseGeocode(ctx context.Context, coordinate models.Coordinate) (string, error)
}
