package recordstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benmeehan/shuttle-tracker/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects every record delivered to a handler.
type recorder struct {
	mu      sync.Mutex
	records []*models.ShuttleRecord
}

func (r *recorder) handle(record *models.ShuttleRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
}

func (r *recorder) all() []*models.ShuttleRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.ShuttleRecord(nil), r.records...)
}

func testRecord(lat, lng float64) models.ShuttleRecord {
	return models.ShuttleRecord{
		Coordinate: models.Coordinate{Latitude: lat, Longitude: lng},
		UpdatedAt:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMemoryStore_SubscribeAbsentRecord(t *testing.T) {
	store := NewMemoryStore()
	rec := &recorder{}

	sub, err := store.Subscribe(context.Background(), "shuttle-1", rec.handle)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	records := rec.all()
	require.Len(t, records, 1)
	assert.Nil(t, records[0])
}

func TestMemoryStore_WriteNotifiesSubscribers(t *testing.T) {
	store := NewMemoryStore()
	first, second := &recorder{}, &recorder{}

	subA, err := store.Subscribe(context.Background(), "shuttle-1", first.handle)
	require.NoError(t, err)
	defer subA.Unsubscribe()
	subB, err := store.Subscribe(context.Background(), "shuttle-1", second.handle)
	require.NoError(t, err)
	defer subB.Unsubscribe()

	require.NoError(t, store.Write(context.Background(), "shuttle-1", testRecord(44.1, -70.2)))

	for _, rec := range []*recorder{first, second} {
		records := rec.all()
		require.Len(t, records, 2)
		require.NotNil(t, records[1])
		assert.Equal(t, models.Coordinate{Latitude: 44.1, Longitude: -70.2}, records[1].Coordinate)
	}
}

func TestMemoryStore_SubscribeReceivesCurrentRecord(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Write(context.Background(), "shuttle-1", testRecord(44.2, -70.3)))

	rec := &recorder{}
	sub, err := store.Subscribe(context.Background(), "shuttle-1", rec.handle)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	records := rec.all()
	require.Len(t, records, 1)
	require.NotNil(t, records[0])
	assert.Equal(t, 44.2, records[0].Coordinate.Latitude)
}

func TestMemoryStore_OtherShuttleNotDelivered(t *testing.T) {
	store := NewMemoryStore()
	rec := &recorder{}
	sub, err := store.Subscribe(context.Background(), "shuttle-1", rec.handle)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, store.Write(context.Background(), "shuttle-2", testRecord(1, 2)))

	assert.Len(t, rec.all(), 1)
}

func TestMemoryStore_UnsubscribeStopsDelivery(t *testing.T) {
	store := NewMemoryStore()
	rec := &recorder{}
	sub, err := store.Subscribe(context.Background(), "shuttle-1", rec.handle)
	require.NoError(t, err)

	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, store.Write(context.Background(), "shuttle-1", testRecord(44.1, -70.2)))

	assert.Len(t, rec.all(), 1)
}

func TestMemoryStore_DeleteDeliversNil(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Write(context.Background(), "shuttle-1", testRecord(44.1, -70.2)))

	rec := &recorder{}
	sub, err := store.Subscribe(context.Background(), "shuttle-1", rec.handle)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	store.Delete("shuttle-1")

	records := rec.all()
	require.Len(t, records, 2)
	assert.Nil(t, records[1])
	_, ok := store.Get("shuttle-1")
	assert.False(t, ok)
}

func TestMemoryStore_Closed(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Close())

	_, err := store.Subscribe(context.Background(), "shuttle-1", func(*models.ShuttleRecord) {})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, store.Write(context.Background(), "shuttle-1", testRecord(1, 1)), ErrClosed)
}

func TestMemoryStore_LastWriteWins(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Write(context.Background(), "shuttle-1", testRecord(1, 1)))
	require.NoError(t, store.Write(context.Background(), "shuttle-1", testRecord(2, 2)))

	record, ok := store.Get("shuttle-1")
	require.True(t, ok)
	assert.Equal(t, models.Coordinate{Latitude: 2, Longitude: 2}, record.Coordinate)
}
