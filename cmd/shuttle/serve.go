package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/benmeehan/shuttle-tracker/internal/constants"
	"github.com/benmeehan/shuttle-tracker/internal/service_registry"
	"github.com/benmeehan/shuttle-tracker/internal/utils"
	"github.com/benmeehan/shuttle-tracker/pkg/file"
	"github.com/benmeehan/shuttle-tracker/pkg/geocode"
	"github.com/benmeehan/shuttle-tracker/pkg/jwt"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the live tracking view, the API and the driver feed",
	RunE:  runServe,
}

// loadRuntime loads the configuration and builds the process logger.
func loadRuntime() (*utils.Config, file.FileOperations, zerolog.Logger, func(), error) {
	fileClient := file.NewFileService()

	config, err := utils.LoadConfig(configPath, fileClient)
	if err != nil {
		return nil, nil, zerolog.Logger{}, nil, err
	}

	log, logCloser, err := utils.NewLogger(config)
	if err != nil {
		return nil, nil, zerolog.Logger{}, nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	return config, fileClient, log, func() { _ = logCloser.Close() }, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	config, fileClient, log, closeLog, err := loadRuntime()
	if err != nil {
		return err
	}
	defer closeLog()

	log.Info().Str("version", constants.Version).Str("store", config.Store.Backend).Msg("Starting shuttle tracker")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, storeCloser, err := service_registry.NewRecordStore(ctx, config, fileClient, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect record store")
	}
	defer func() {
		if err := storeCloser.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close record store")
		}
	}()

	apiKey, err := fileClient.ReadFile(config.Geocode.APIKeyFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read maps API key")
	}
	var geocodeOpts []geocode.Option
	if config.Geocode.BaseURL != "" {
		geocodeOpts = append(geocodeOpts, geocode.WithBaseURL(config.Geocode.BaseURL))
	}
	geocoder, err := geocode.NewGoogleGeocoder(apiKey, geocodeOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create geocoder")
	}

	sessions, err := jwt.LoadSessionManager(config.Auth.SecretFile, config.Auth.Issuer, config.Auth.TokenTTL, fileClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load session secret")
	}

	// Create a new service registry to manage services
	serviceRegistry := service_registry.NewServiceRegistry(store, geocoder, sessions, fileClient, log)

	// Register all services based on the configuration
	if err := serviceRegistry.RegisterServices(config); err != nil {
		log.Fatal().Err(err).Msg("Failed to register services")
	}

	// Start all registered services in the registry
	if err := serviceRegistry.StartServices(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start services")
	}
	log.Info().Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		return err
	}
	return nil
}
