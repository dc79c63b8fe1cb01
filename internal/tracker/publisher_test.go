package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benmeehan/shuttle-tracker/internal/constants"
	"github.com/benmeehan/shuttle-tracker/internal/models"
	"github.com/benmeehan/shuttle-tracker/pkg/recordstore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow(t *testing.T, at time.Time) {
	t.Helper()
	previous := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = previous })
}

func TestPublisher_RefusesWithoutUser(t *testing.T) {
	store := recordstore.NewMemoryStore()
	publisher := NewPublisher(store, "shuttle-1", time.Second, zerolog.Nop())

	for _, session := range []models.Session{nil, models.AnonymousSession{}, models.UserSession{}} {
		result := publisher.Publish(session, campus)
		assert.Equal(t, PublishUnauthorized, result.Status)
		assert.Equal(t, constants.PromptSignInRequired, result.Prompt)
		assert.Nil(t, result.Ack)
	}

	publisher.Wait()
	_, ok := store.Get("shuttle-1")
	assert.False(t, ok, "nothing is written without a user")
}

func TestPublisher_WritesCoordinateAndTimestamp(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	fixedNow(t, at)

	store := recordstore.NewMemoryStore()
	publisher := NewPublisher(store, "shuttle-1", time.Second, zerolog.Nop())
	coordinate := models.Coordinate{Latitude: 44.1003, Longitude: -70.2148}

	result := publisher.Publish(models.UserSession{User: models.User{ID: "driver-1"}}, coordinate)
	require.Equal(t, PublishAccepted, result.Status)
	assert.Empty(t, result.Prompt)
	assert.Equal(t, coordinate, result.Record.Coordinate)
	assert.Equal(t, at, result.Record.UpdatedAt)
	require.NoError(t, <-result.Ack)

	record, ok := store.Get("shuttle-1")
	require.True(t, ok)
	assert.Equal(t, coordinate, record.Coordinate)
	assert.Equal(t, at, record.UpdatedAt)
}

func TestPublisher_ReplacesPriorRecord(t *testing.T) {
	store := recordstore.NewMemoryStore()
	publisher := NewPublisher(store, "shuttle-1", time.Second, zerolog.Nop())
	session := models.UserSession{User: models.User{ID: "driver-1"}}

	require.NoError(t, <-publisher.Publish(session, campus).Ack)
	require.NoError(t, <-publisher.Publish(session, lisbon).Ack)

	record, ok := store.Get("shuttle-1")
	require.True(t, ok)
	assert.Equal(t, lisbon, record.Coordinate)
}

// brokenStore fails every write.
type brokenStore struct {
	recordstore.Store
}

func (brokenStore) Write(context.Context, string, models.ShuttleRecord) error {
	return errors.New("permission denied")
}

func TestPublisher_WriteFailureIsReported(t *testing.T) {
	publisher := NewPublisher(brokenStore{}, "shuttle-1", time.Second, zerolog.Nop())

	result := publisher.Publish(models.UserSession{User: models.User{ID: "driver-1"}}, campus)
	require.Equal(t, PublishAccepted, result.Status)

	err, open := <-result.Ack
	assert.True(t, open)
	assert.ErrorContains(t, err, "permission denied")

	_, open = <-result.Ack
	assert.False(t, open, "the ack channel closes after the outcome")
	publisher.Wait()
}

func TestPublishStatus_String(t *testing.T) {
	assert.Equal(t, "accepted", PublishAccepted.String())
	assert.Equal(t, "unauthorized", PublishUnauthorized.String())
}
