package service_registry

import (
	"context"
	"fmt"
	"io"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/benmeehan/shuttle-tracker/internal/constants"
	"github.com/benmeehan/shuttle-tracker/internal/utils"
	"github.com/benmeehan/shuttle-tracker/pkg/file"
	"github.com/benmeehan/shuttle-tracker/pkg/mqtt"
	"github.com/benmeehan/shuttle-tracker/pkg/recordstore"
)

// closerFunc adapts a function to io.Closer.
type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// readSecret reads an optional secret file.
func readSecret(fileClient file.FileOperations, path string) (string, error) {
	if path == "" {
		return "", nil
	}
	secret, err := fileClient.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret %s: %w", path, err)
	}
	return secret, nil
}

// NewRecordStore connects the configured record store backend. The returned closer releases the
// store and its connection.
func NewRecordStore(ctx context.Context, config *utils.Config, fileClient file.FileOperations,
	logger zerolog.Logger) (recordstore.Store, io.Closer, error) {
	storeLogger := logger.With().Str("store", config.Store.Backend).Logger()

	switch config.Store.Backend {
	case constants.StoreMemory:
		store := recordstore.NewMemoryStore()
		return store, store, nil

	case constants.StoreMQTT:
		password, err := readSecret(fileClient, config.Store.MQTT.PasswordFile)
		if err != nil {
			return nil, nil, err
		}

		// Generate a unique MQTT Client ID by appending a UUID
		clientID := config.Store.MQTT.ClientID + "-" + uuid.New().String()
		storeLogger.Info().Str("client_id", clientID).Msg("Using MQTT Client ID")

		client := mqtt.NewMqttService(fileClient, storeLogger)
		err = client.Initialize(mqtt.Options{
			Broker:         config.Store.MQTT.Broker,
			ClientID:       clientID,
			CACertificate:  config.Store.MQTT.CACertificate,
			Username:       config.Store.MQTT.Username,
			Password:       password,
			ConnectTimeout: config.Store.MQTT.ConnectTimeout,
		})
		if err != nil {
			return nil, nil, err
		}

		store := recordstore.NewMQTTStore(client, config.Store.MQTT.TopicPrefix, config.Store.MQTT.QOS, storeLogger)
		return store, closerFunc(func() error {
			err := store.Close()
			client.Disconnect(250)
			return err
		}), nil

	case constants.StoreRedis:
		password, err := readSecret(fileClient, config.Store.Redis.PasswordFile)
		if err != nil {
			return nil, nil, err
		}

		store := recordstore.NewRedisStore(&redis.Options{
			Addr:     config.Store.Redis.Address,
			Password: password,
			DB:       config.Store.Redis.DB,
		}, config.Store.Redis.KeyPrefix, storeLogger)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", config.Store.Redis.Address, err)
		}
		return store, store, nil

	case constants.StoreNATS:
		store, err := recordstore.NewNATSStore(config.Store.NATS.URL, config.Store.NATS.Bucket, storeLogger,
			nats.Name("shuttle-tracker"))
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil

	default:
		return nil, nil, fmt.Errorf("unknown record store backend %q", config.Store.Backend)
	}
}
