package service_registry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benmeehan/shuttle-tracker/internal/constants"
	"github.com/benmeehan/shuttle-tracker/internal/models"
	"github.com/benmeehan/shuttle-tracker/internal/utils"
	"github.com/benmeehan/shuttle-tracker/pkg/jwt"
	"github.com/benmeehan/shuttle-tracker/pkg/recordstore"
	"github.com/benmeehan/shuttle-tracker/tests/mocks"
)

type fakeService struct {
	name     string
	startErr error
	log      *[]string
}

func (f *fakeService) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	*f.log = append(*f.log, "start "+f.name)
	return nil
}

func (f *fakeService) Stop() error {
	*f.log = append(*f.log, "stop "+f.name)
	return nil
}

type geocoderFunc func(context.Context, models.Coordinate) (string, error)

func (f geocoderFunc) ReverseGeocode(ctx context.Context, c models.Coordinate) (string, error) {
	return f(ctx, c)
}

func testConfig() *utils.Config {
	config := &utils.Config{}
	config.Shuttle.ID = constants.DefaultShuttleID
	config.Shuttle.DefaultLatitude = constants.DefaultLatitude
	config.Shuttle.DefaultLongitude = constants.DefaultLongitude
	config.Shuttle.WriteTimeout = time.Second
	config.Store.Backend = constants.StoreMemory
	config.Geocode.APIKeyFile = "/etc/shuttle/maps.key"
	config.Geocode.Timeout = time.Second
	config.Map.Zoom = constants.DefaultMapZoom
	config.Map.MarkerIcon = constants.DefaultMarkerIcon
	config.Server.Address = "127.0.0.1:0"
	config.Server.ShutdownTimeout = time.Second
	config.Services.DriverFeed.Interval = 10 * time.Millisecond
	config.Services.DriverFeed.Provider = constants.ProviderStatic
	config.Services.DriverFeed.TokenFile = "/etc/shuttle/driver.token"
	config.Services.DriverFeed.StaticLatitude = 44.1050
	config.Services.DriverFeed.StaticLongitude = -70.2100
	return config
}

func TestServiceRegistry_StartStopOrder(t *testing.T) {
	var log []string
	sr := NewServiceRegistry(nil, nil, nil, nil, zerolog.Nop())
	sr.RegisterService("first", &fakeService{name: "first", log: &log})
	sr.RegisterService("second", &fakeService{name: "second", log: &log})
	sr.RegisterService("first", &fakeService{name: "duplicate", log: &log})

	require.NoError(t, sr.StartServices())
	require.NoError(t, sr.StopServices())
	assert.Equal(t, []string{"start first", "start second", "stop second", "stop first"}, log)
}

func TestServiceRegistry_StartFailureRollsBack(t *testing.T) {
	var log []string
	sr := NewServiceRegistry(nil, nil, nil, nil, zerolog.Nop())
	sr.RegisterService("first", &fakeService{name: "first", log: &log})
	sr.RegisterService("second", &fakeService{name: "second", log: &log, startErr: errors.New("address in use")})

	err := sr.StartServices()
	assert.ErrorContains(t, err, "address in use")
	assert.Equal(t, []string{"start first", "stop first"}, log)
}

func TestServiceRegistry_RegisterServices(t *testing.T) {
	store := recordstore.NewMemoryStore()
	sessions, err := jwt.NewSessionManager([]byte("test-secret"), "shuttle-tracker", time.Hour)
	require.NoError(t, err)
	token, err := sessions.IssueToken(models.User{ID: "driver-1"})
	require.NoError(t, err)

	fileClient := new(mocks.MockFileOperations)
	fileClient.On("ReadFile", "/etc/shuttle/driver.token").Return(token, nil)

	config := testConfig()
	config.Services.DriverFeed.Enabled = true

	var geocodeCalls atomic.Int32
	geocoder := geocoderFunc(func(context.Context, models.Coordinate) (string, error) {
		geocodeCalls.Add(1)
		return "Bates College", nil
	})
	sr := NewServiceRegistry(store, geocoder, sessions, fileClient, zerolog.Nop())
	require.NoError(t, sr.RegisterServices(config))
	assert.Equal(t, []string{constants.HTTPService, constants.DriverFeedService}, sr.serviceKeys)

	require.NoError(t, sr.StartServices())
	assert.Eventually(t, func() bool {
		record, ok := store.Get(constants.DefaultShuttleID)
		return ok && record.Coordinate == models.Coordinate{Latitude: 44.1050, Longitude: -70.2100}
	}, 2*time.Second, 5*time.Millisecond)
	// with no viewer connected nothing needs an address
	assert.Never(t, func() bool { return geocodeCalls.Load() > 0 }, 100*time.Millisecond, 5*time.Millisecond)
	require.NoError(t, sr.StopServices())

	fileClient.AssertExpectations(t)
}

func TestServiceRegistry_DriverTokenRejected(t *testing.T) {
	sessions, err := jwt.NewSessionManager([]byte("test-secret"), "shuttle-tracker", time.Hour)
	require.NoError(t, err)

	fileClient := new(mocks.MockFileOperations)
	fileClient.On("ReadFile", "/etc/shuttle/driver.token").Return("expired-or-forged", nil)

	config := testConfig()
	config.Services.DriverFeed.Enabled = true

	sr := NewServiceRegistry(recordstore.NewMemoryStore(), nil, sessions, fileClient, zerolog.Nop())
	err = sr.RegisterServices(config)
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)
}

func TestNewRecordStore(t *testing.T) {
	config := testConfig()

	store, closer, err := NewRecordStore(context.Background(), config, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &recordstore.MemoryStore{}, store)
	require.NoError(t, closer.Close())

	config.Store.Backend = "postgres"
	_, _, err = NewRecordStore(context.Background(), config, nil, zerolog.Nop())
	assert.ErrorContains(t, err, "unknown record store backend")
}

func TestNewRecordStore_SecretMissing(t *testing.T) {
	fileClient := new(mocks.MockFileOperations)
	fileClient.On("ReadFile", "/etc/shuttle/redis.password").Return("", errors.New("permission denied"))

	config := testConfig()
	config.Store.Backend = constants.StoreRedis
	config.Store.Redis.Address = "127.0.0.1:6379"
	config.Store.Redis.PasswordFile = "/etc/shuttle/redis.password"

	_, _, err := NewRecordStore(context.Background(), config, fileClient, zerolog.Nop())
	assert.ErrorContains(t, err, "permission denied")
}
