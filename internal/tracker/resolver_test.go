package tracker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/benmeehan/shuttle-tracker/internal/constants"
	"github.com/benmeehan/shuttle-tracker/internal/models"
	"github.com/benmeehan/shuttle-tracker/pkg/geocode"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestResolver_Resolve(t *testing.T) {
	tests := []struct {
		name    string
		address string
		err     error
		want    string
	}{
		{name: "first result", address: "123 Main St", want: "123 Main St"},
		{name: "zero results", err: geocode.ErrNoResults, want: constants.AddressUnknown},
		{name: "wrapped status", err: fmt.Errorf("%w: maps: REQUEST_DENIED", geocode.ErrNoResults), want: constants.AddressUnknown},
		{name: "request failure", err: errors.New("unexpected EOF"), want: constants.AddressError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := NewResolver(geocoderFunc(func(context.Context, models.Coordinate) (string, error) {
				return tt.address, tt.err
			}), 0, zerolog.Nop())

			assert.Equal(t, tt.want, resolver.Resolve(context.Background(), campus))
		})
	}
}

func TestResolver_TimeoutResolvesToError(t *testing.T) {
	resolver := NewResolver(geocoderFunc(func(ctx context.Context, _ models.Coordinate) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}), 20*time.Millisecond, zerolog.Nop())

	start := time.Now()
	assert.Equal(t, constants.AddressError, resolver.Resolve(context.Background(), campus))
	assert.Less(t, time.Since(start), time.Second)
}

func TestResolver_PassesCoordinate(t *testing.T) {
	var got models.Coordinate
	resolver := NewResolver(geocoderFunc(func(_ context.Context, c models.Coordinate) (string, error) {
		got = c
		return "ok", nil
	}), time.Second, zerolog.Nop())

	resolver.Resolve(context.Background(), campus)
	assert.Equal(t, campus, got)
}
