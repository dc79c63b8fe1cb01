package recordstore

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runNATSServer starts an embedded JetStream-enabled server for the duration of the test.
func runNATSServer(t *testing.T) *server.Server {
	t.Helper()

	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      server.RANDOM_PORT,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	})
	require.NoError(t, err)

	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS server did not start")
	}
	t.Cleanup(ns.Shutdown)
	return ns
}

func TestNATSStore_WatchAndWrite(t *testing.T) {
	ns := runNATSServer(t)

	store, err := NewNATSStore(ns.ClientURL(), "shuttles", zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()

	rec := &recorder{}
	sub, err := store.Subscribe(context.Background(), "shuttle-1", rec.handle)
	require.NoError(t, err)

	// the missing key is reported once the initial replay is done
	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Nil(t, rec.all()[0])

	require.NoError(t, store.Write(context.Background(), "shuttle-1", testRecord(44.1003, -70.2148)))
	require.Eventually(t, func() bool { return len(rec.all()) == 2 }, 5*time.Second, 10*time.Millisecond)
	require.NotNil(t, rec.all()[1])
	assert.Equal(t, -70.2148, rec.all()[1].Coordinate.Longitude)

	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, store.Write(context.Background(), "shuttle-1", testRecord(44.2, -70.3)))
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, rec.all(), 2)
}

func TestNATSStore_SubscribeReplaysExistingRecord(t *testing.T) {
	ns := runNATSServer(t)

	store, err := NewNATSStore(ns.ClientURL(), "shuttles", zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Write(context.Background(), "shuttle-1", testRecord(44.5, -70.5)))

	rec := &recorder{}
	sub, err := store.Subscribe(context.Background(), "shuttle-1", rec.handle)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, 5*time.Second, 10*time.Millisecond)
	require.NotNil(t, rec.all()[0])
	assert.Equal(t, 44.5, rec.all()[0].Coordinate.Latitude)
}
