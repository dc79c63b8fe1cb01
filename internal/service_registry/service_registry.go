package service_registry

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/benmeehan/shuttle-tracker/internal/constants"
	"github.com/benmeehan/shuttle-tracker/internal/models"
	"github.com/benmeehan/shuttle-tracker/internal/registry"
	"github.com/benmeehan/shuttle-tracker/internal/services"
	"github.com/benmeehan/shuttle-tracker/internal/tracker"
	"github.com/benmeehan/shuttle-tracker/internal/utils"
	"github.com/benmeehan/shuttle-tracker/pkg/file"
	"github.com/benmeehan/shuttle-tracker/pkg/geocode"
	"github.com/benmeehan/shuttle-tracker/pkg/jwt"
	"github.com/benmeehan/shuttle-tracker/pkg/location"
	"github.com/benmeehan/shuttle-tracker/pkg/recordstore"
)

// ServiceRegistry manages the lifecycle of various services in the system.
type ServiceRegistry struct {
	services    map[string]registry.Service // Stores registered services
	serviceKeys []string                    // Maintains order of service registration
	store       recordstore.Store
	geocoder    geocode.Geocoder
	sessions    jwt.SessionManagerInterface
	fileClient  file.FileOperations
	Logger      zerolog.Logger
}

// NewServiceRegistry initializes a new service registry with dependencies.
func NewServiceRegistry(store recordstore.Store, geocoder geocode.Geocoder, sessions jwt.SessionManagerInterface,
	fileClient file.FileOperations, logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services:   make(map[string]registry.Service),
		store:      store,
		geocoder:   geocoder,
		sessions:   sessions,
		fileClient: fileClient,
		Logger:     logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc registry.Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// Service returns a registered service by name.
func (sr *ServiceRegistry) Service(name string) (registry.Service, bool) {
	svc, ok := sr.services[name]
	return svc, ok
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			// Stop already started services before returning
			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// ViewConfig derives the view parameters from the configuration.
func ViewConfig(config *utils.Config) tracker.ViewConfig {
	return tracker.ViewConfig{
		ShuttleID: config.Shuttle.ID,
		DefaultCoordinate: models.Coordinate{
			Latitude:  config.Shuttle.DefaultLatitude,
			Longitude: config.Shuttle.DefaultLongitude,
		},
		Zoom:       config.Map.Zoom,
		MarkerIcon: config.Map.MarkerIcon,
	}
}

// RegisterServices initializes and registers enabled services based on configuration.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config) error {
	publisher := tracker.NewPublisher(sr.store, config.Shuttle.ID, config.Shuttle.WriteTimeout,
		sr.Logger.With().Str("component", "publisher").Logger())
	resolver := tracker.NewResolver(sr.geocoder, config.Geocode.Timeout,
		sr.Logger.With().Str("component", "resolver").Logger())
	viewConfig := ViewConfig(config)

	// Ordered service definitions with inline constructors
	servicesInOrder := []struct {
		name        string
		enabled     bool
		constructor func() (registry.Service, error)
	}{
		{
			name:    constants.HTTPService,
			enabled: true,
			constructor: func() (registry.Service, error) {
				viewLogger := sr.Logger.With().Str("component", "view").Logger()
				hub := services.NewHub(func(id string, renderer tracker.Renderer) *tracker.View {
					return tracker.NewView(id, viewConfig, sr.store, resolver, renderer, viewLogger)
				}, config.Server.AllowedOrigins, sr.Logger.With().Str("component", "hub").Logger())

				// the feed only reports positions, so its view never geocodes
				feedView := tracker.NewView("vehicle-feed", viewConfig, sr.store, nil, tracker.NopRenderer{}, viewLogger)
				feed := services.NewVehicleFeed(config.Shuttle.ID, "Campus Shuttle", feedView)

				return services.NewHTTPService(services.HTTPServiceConfig{
					Address:          config.Server.Address,
					ShutdownTimeout:  config.Server.ShutdownTimeout,
					MinClientVersion: config.Server.MinClientVersion,
					Map: services.MapConfig{
						BrowserKey:    config.Map.BrowserKey,
						MapID:         config.Map.MapID,
						Zoom:          config.Map.Zoom,
						MarkerIcon:    config.Map.MarkerIcon,
						DefaultCenter: viewConfig.DefaultCoordinate,
					},
				}, hub, feed, publisher, sr.sessions, sr.Logger.With().Str("service", constants.HTTPService).Logger())
			},
		},
		{
			name:    constants.DriverFeedService,
			enabled: config.Services.DriverFeed.Enabled,
			constructor: func() (registry.Service, error) {
				feedConfig := config.Services.DriverFeed

				token, err := sr.fileClient.ReadFile(feedConfig.TokenFile)
				if err != nil {
					return nil, fmt.Errorf("failed to read driver token: %w", err)
				}
				session, err := jwt.NewTokenSession(sr.sessions, token)
				if err != nil {
					return nil, fmt.Errorf("driver token rejected: %w", err)
				}

				var provider location.Provider
				switch feedConfig.Provider {
				case constants.ProviderSensor:
					provider = location.NewDeviceSensorProvider(feedConfig.GPSDevicePort, feedConfig.GPSBaudRate)
				case constants.ProviderGeolocation:
					apiKey, err := sr.fileClient.ReadFile(config.Geocode.APIKeyFile)
					if err != nil {
						return nil, fmt.Errorf("failed to read maps API key: %w", err)
					}
					provider, err = location.NewGoogleGeolocationProvider(apiKey)
					if err != nil {
						sr.Logger.Error().Err(err).Msg("failed to create Google Geolocation provider")
						return nil, err
					}
				default:
					provider = location.NewStaticProvider(models.Coordinate{
						Latitude:  feedConfig.StaticLatitude,
						Longitude: feedConfig.StaticLongitude,
					})
				}

				return services.NewDriverFeedService(
					feedConfig.Interval,
					session,
					publisher,
					sr.Logger.With().Str("service", constants.DriverFeedService).Logger(),
					provider,
				), nil
			},
		},
	}

	// Register services in the predefined order
	registeredServices := []string{}
	for _, svc := range servicesInOrder {
		if svc.enabled {
			serviceInstance, err := svc.constructor()
			if err != nil {
				sr.Logger.Error().Err(err).Msgf("Failed to create %s service", svc.name)
				return err
			}
			sr.RegisterService(svc.name, serviceInstance)
			registeredServices = append(registeredServices, svc.name)
		}
	}

	sr.Logger.Info().Msgf("Registered services in order: %v", registeredServices)
	return nil
}
