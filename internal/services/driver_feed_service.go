package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/shuttle-tracker/internal/models"
	"github.com/benmeehan/shuttle-tracker/internal/tracker"
	"github.com/benmeehan/shuttle-tracker/pkg/location"
	"github.com/rs/zerolog"
)

// DriverFeedService periodically reads the shuttle position from a location provider and publishes
// it on behalf of the driver.
type DriverFeedService struct {
	// Configuration fields
	interval time.Duration

	// Dependencies
	session          models.Session
	publisher        Publisher
	logger           zerolog.Logger
	locationProvider location.Provider

	// Internal state management
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewDriverFeedService creates a new DriverFeedService instance with the provided configuration.
func NewDriverFeedService(interval time.Duration, session models.Session, publisher Publisher,
	logger zerolog.Logger, locationProvider location.Provider) *DriverFeedService {
	return &DriverFeedService{
		interval:         interval,
		session:          session,
		publisher:        publisher,
		logger:           logger,
		locationProvider: locationProvider,
		running:          false,
	}
}

// Start initiates the DriverFeedService, periodically publishing the shuttle position.
func (d *DriverFeedService) Start() error {
	if d.running {
		d.logger.Warn().Msg("DriverFeedService is already running")
		return errors.New("driver feed service is already running")
	}
	if d.interval <= 0 {
		return fmt.Errorf("invalid driver feed interval %s", d.interval)
	}

	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.running = true

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := d.publishCurrentLocation(d.ctx); err != nil {
					d.logger.Error().
						Err(err).
						Msg("Failed to publish current location")
				}
			case <-d.ctx.Done():
				d.logger.Info().Msg("DriverFeedService is stopping")
				return
			}
		}
	}()

	d.logger.Info().
		Dur("interval", d.interval).
		Msg("DriverFeedService started")
	return nil
}

// Stop gracefully stops the DriverFeedService, ensuring all goroutines are terminated.
func (d *DriverFeedService) Stop() error {
	if !d.running {
		d.logger.Warn().Msg("DriverFeedService is not running")
		return errors.New("driver feed service is not running")
	}

	// Signal cancellation and wait for the goroutine to exit
	d.cancel()
	d.wg.Wait()
	d.running = false

	// Close the location provider
	if err := d.locationProvider.Close(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to close location provider")
		return err
	}

	d.logger.Info().Msg("DriverFeedService stopped")
	return nil
}

// publishCurrentLocation fetches the current location and waits for its write to be acknowledged.
func (d *DriverFeedService) publishCurrentLocation(ctx context.Context) error {
	readCtx, cancel := context.WithTimeout(ctx, d.interval)
	defer cancel()

	loc, err := d.locationProvider.GetLocation(readCtx)
	if err != nil {
		return fmt.Errorf("failed to get location from provider: %w", err)
	}

	coordinate := loc.Coordinate()
	if !coordinate.Valid() {
		return fmt.Errorf("provider returned invalid coordinate %s", coordinate)
	}

	result := d.publisher.Publish(d.session, coordinate)
	if result.Status == tracker.PublishUnauthorized {
		return errors.New(result.Prompt)
	}

	select {
	case err := <-result.Ack:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		return nil
	}

	d.logger.Debug().
		Str("coordinate", coordinate.String()).
		Float64("accuracy", loc.Accuracy).
		Msg("Driver location published")
	return nil
}
