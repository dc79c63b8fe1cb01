package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/benmeehan/shuttle-tracker/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSStore keeps each record as a key of a JetStream key-value bucket.
type NATSStore struct {
	conn   *nats.Conn
	kv     nats.KeyValue
	logger zerolog.Logger
}

// NewNATSStore connects to url and opens bucket, creating it when missing.
func NewNATSStore(url, bucket string, logger zerolog.Logger, opts ...nats.Option) (*NATSStore, error) {
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open JetStream context: %w", err)
	}

	kv, err := js.KeyValue(bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      bucket,
			Description: "current shuttle positions",
			History:     1,
		})
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open key-value bucket %s: %w", bucket, err)
	}

	return &NATSStore{conn: conn, kv: kv, logger: logger}, nil
}

// Subscribe implements Store. The watcher replays the current value first; a missing key is
// reported as nil once the replay is complete.
func (s *NATSStore) Subscribe(ctx context.Context, shuttleID string, handler Handler) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.conn.IsClosed() {
		return nil, ErrClosed
	}

	watcher, err := s.kv.Watch(shuttleID)
	if err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", shuttleID, err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.watch(shuttleID, watcher.Updates(), stop, handler)
	}()

	s.logger.Debug().Str("key", shuttleID).Msg("Watching shuttle record")
	return newSubscription(func() error {
		close(stop)
		err := watcher.Stop()
		wg.Wait()
		return err
	}), nil
}

func (s *NATSStore) watch(shuttleID string, updates <-chan nats.KeyValueEntry, stop <-chan struct{}, handler Handler) {
	seen := false
	for {
		select {
		case <-stop:
			return
		case entry, ok := <-updates:
			if !ok {
				return
			}
			if entry == nil {
				// end of the initial replay
				if !seen {
					handler(nil)
				}
				continue
			}
			seen = true

			switch entry.Operation() {
			case nats.KeyValueDelete, nats.KeyValuePurge:
				handler(nil)
			default:
				record, err := decodeRecord(entry.Value())
				if err != nil {
					s.logger.Warn().Err(err).Str("key", shuttleID).Msg("Discarding malformed shuttle record")
					continue
				}
				handler(record)
			}
		}
	}
}

// Write implements Store.
func (s *NATSStore) Write(ctx context.Context, shuttleID string, record models.ShuttleRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to serialize shuttle record: %w", err)
	}
	if _, err := s.kv.Put(shuttleID, payload); err != nil {
		return fmt.Errorf("failed to write %s: %w", shuttleID, err)
	}
	return nil
}

// Close drains the connection.
func (s *NATSStore) Close() error {
	if s.conn.IsClosed() {
		return nil
	}
	return s.conn.Drain()
}
