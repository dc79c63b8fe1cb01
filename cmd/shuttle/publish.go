package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/benmeehan/shuttle-tracker/internal/models"
	"github.com/benmeehan/shuttle-tracker/internal/service_registry"
	"github.com/benmeehan/shuttle-tracker/internal/tracker"
	"github.com/benmeehan/shuttle-tracker/pkg/jwt"
)

var (
	publishLat       float64
	publishLng       float64
	publishToken     string
	publishTokenFile string
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a shuttle position as a signed-in driver",
	Long: `Writes one shuttle position to the record store and waits until the write
is acknowledged. A valid session token is required.`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().Float64Var(&publishLat, "lat", 0, "Latitude in degrees")
	publishCmd.Flags().Float64Var(&publishLng, "lng", 0, "Longitude in degrees")
	publishCmd.Flags().StringVar(&publishToken, "token", "", "Session token of the driver")
	publishCmd.Flags().StringVar(&publishTokenFile, "token-file", "", "File holding the session token of the driver")
	_ = publishCmd.MarkFlagRequired("lat")
	_ = publishCmd.MarkFlagRequired("lng")
	publishCmd.MarkFlagsMutuallyExclusive("token", "token-file")
}

func runPublish(cmd *cobra.Command, args []string) error {
	config, fileClient, log, closeLog, err := loadRuntime()
	if err != nil {
		return err
	}
	defer closeLog()

	coordinate := models.Coordinate{Latitude: publishLat, Longitude: publishLng}
	if !coordinate.Valid() {
		return fmt.Errorf("invalid coordinate %s", coordinate)
	}

	token := publishToken
	if publishTokenFile != "" {
		if token, err = fileClient.ReadFile(publishTokenFile); err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}
	}

	sessions, err := jwt.LoadSessionManager(config.Auth.SecretFile, config.Auth.Issuer, config.Auth.TokenTTL, fileClient)
	if err != nil {
		return err
	}
	var session models.Session = models.AnonymousSession{}
	if token != "" {
		if session, err = sessions.SessionFromToken(token); err != nil {
			log.Warn().Err(err).Msg("Ignoring invalid session token")
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), config.Shuttle.WriteTimeout+10*time.Second)
	defer cancel()

	store, storeCloser, err := service_registry.NewRecordStore(ctx, config, fileClient, log)
	if err != nil {
		return err
	}
	defer storeCloser.Close()

	publisher := tracker.NewPublisher(store, config.Shuttle.ID, config.Shuttle.WriteTimeout, log)
	result := publisher.Publish(session, coordinate)
	if result.Status == tracker.PublishUnauthorized {
		return errors.New(result.Prompt)
	}

	select {
	case err := <-result.Ack:
		if err != nil {
			return fmt.Errorf("location update failed: %w", err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Location of %s updated to %s\n", config.Shuttle.ID, coordinate)
	return nil
}
