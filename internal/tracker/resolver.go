package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/benmeehan/shuttle-tracker/internal/constants"
	"github.com/benmeehan/shuttle-tracker/internal/models"
	"github.com/benmeehan/shuttle-tracker/pkg/geocode"
	"github.com/rs/zerolog"
)

// Resolver turns a coordinate into the address text shown next to the map.
// It never fails: every outcome maps to a display string.
type Resolver struct {
	geocoder geocode.Geocoder
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewResolver creates a Resolver. A zero timeout leaves requests unbounded.
func NewResolver(geocoder geocode.Geocoder, timeout time.Duration, logger zerolog.Logger) *Resolver {
	return &Resolver{
		geocoder: geocoder,
		timeout:  timeout,
		logger:   logger,
	}
}

// Resolve performs a single reverse-geocoding request for coordinate.
func (r *Resolver) Resolve(ctx context.Context, coordinate models.Coordinate) string {
	reqCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	address, err := r.geocoder.ReverseGeocode(reqCtx, coordinate)
	switch {
	case err == nil:
		r.logger.Debug().Str("coordinate", coordinate.String()).Str("address", address).Msg("Address resolved")
		return address
	case errors.Is(err, geocode.ErrNoResults):
		r.logger.Info().Err(err).Str("coordinate", coordinate.String()).Msg("No address found for coordinate")
		return constants.AddressUnknown
	case ctx.Err() != nil:
		// superseded or torn down, the result is going to be discarded
		r.logger.Debug().Err(err).Str("coordinate", coordinate.String()).Msg("Address resolution cancelled")
		return constants.AddressError
	default:
		r.logger.Error().Err(err).Str("coordinate", coordinate.String()).Msg("Error fetching address")
		return constants.AddressError
	}
}
