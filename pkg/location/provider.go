package location

import (
	"context"

	"github.com/benmeehan/shuttle-tracker/internal/models"
)

// Provider interface defines the methods for location providers
type Provider interface {
	GetLocation(ctx context.Context) (Location, error)
	Close() error
}

// StaticProvider always reports the same position. It stands in for a GPS source on fixed
// installations and in development.
type StaticProvider struct {
	location Location
}

// NewStaticProvider creates a StaticProvider at coordinate.
func NewStaticProvider(coordinate models.Coordinate) *StaticProvider {
	return &StaticProvider{location: Location{Latitude: coordinate.Latitude, Longitude: coordinate.Longitude}}
}

// GetLocation returns the fixed position.
func (s *StaticProvider) GetLocation(ctx context.Context) (Location, error) {
	if err := ctx.Err(); err != nil {
		return Location{}, err
	}
	return s.location, nil
}

func (s *StaticProvider) Close() error { return nil }
