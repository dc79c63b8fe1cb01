package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/benmeehan/shuttle-tracker/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// RedisStore keeps each record under the key "<prefix>:<shuttleID>" and announces every write
// on the pub/sub channel of the same name.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger

	mu     sync.Mutex
	subs   map[*subscriptionFunc]struct{}
	closed bool
}

// NewRedisStore creates a store from client options.
func NewRedisStore(opts *redis.Options, prefix string, logger zerolog.Logger) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(opts),
		prefix: strings.TrimSuffix(prefix, ":"),
		logger: logger,
		subs:   make(map[*subscriptionFunc]struct{}),
	}
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Key returns the key and channel name of shuttleID.
func (s *RedisStore) Key(shuttleID string) string {
	return s.prefix + ":" + shuttleID
}

// Subscribe implements Store. The handler first receives the stored record, then every announced change.
func (s *RedisStore) Subscribe(ctx context.Context, shuttleID string, handler Handler) (Subscription, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.mu.Unlock()

	key := s.Key(shuttleID)
	pubsub := s.client.Subscribe(ctx, key)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", key, err)
	}
	messages := pubsub.Channel()

	payload, err := s.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		handler(nil)
	case err != nil:
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	default:
		if record, err := decodeRecord(payload); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("Discarding malformed shuttle record")
		} else {
			handler(record)
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for msg := range messages {
			record, err := decodeRecord([]byte(msg.Payload))
			if err != nil {
				s.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("Discarding malformed shuttle record")
				continue
			}
			handler(record)
		}
	}()

	var sub *subscriptionFunc
	sub = newSubscription(func() error {
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()

		err := pubsub.Close()
		wg.Wait()
		return err
	})

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	s.logger.Debug().Str("key", key).Msg("Subscribed to shuttle record")
	return sub, nil
}

// Write implements Store. The record is set and announced in one transaction.
func (s *RedisStore) Write(ctx context.Context, shuttleID string, record models.ShuttleRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to serialize shuttle record: %w", err)
	}

	key := s.Key(shuttleID)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, payload, 0)
	pipe.Publish(ctx, key, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Close ends every subscription and closes the client.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	subs := make([]*subscriptionFunc, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.client.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
