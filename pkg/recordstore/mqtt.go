package recordstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/benmeehan/shuttle-tracker/internal/models"
	"github.com/benmeehan/shuttle-tracker/pkg/mqtt"
	mqttLib "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// MQTTStore keeps each record as a retained message on "<prefix>/<shuttleID>".
// An empty retained payload marks the record as absent.
type MQTTStore struct {
	client mqtt.MQTTClient
	prefix string
	qos    byte
	logger zerolog.Logger
	fanout *fanout

	mu     sync.Mutex
	closed bool
}

// NewMQTTStore creates a store on top of an already connected client.
func NewMQTTStore(client mqtt.MQTTClient, prefix string, qos int, logger zerolog.Logger) *MQTTStore {
	return &MQTTStore{
		client: client,
		prefix: strings.TrimSuffix(prefix, "/"),
		qos:    byte(qos),
		logger: logger,
		fanout: newFanout(),
	}
}

// Topic returns the topic holding the record of shuttleID.
func (s *MQTTStore) Topic(shuttleID string) string {
	return fmt.Sprintf("%s/%s", s.prefix, shuttleID)
}

// Subscribe implements Store. The broker subscription is shared by all local listeners of a record;
// later listeners get the last known record replayed.
func (s *MQTTStore) Subscribe(ctx context.Context, shuttleID string, handler Handler) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	key, first := s.fanout.add(shuttleID, handler)
	if first {
		topic := s.Topic(shuttleID)
		token := s.client.Subscribe(topic, s.qos, s.onMessage(shuttleID))
		if err := waitToken(ctx, token); err != nil {
			s.fanout.remove(shuttleID, key)
			s.logger.Error().Err(err).Str("topic", topic).Msg("Failed to subscribe to shuttle record")
			return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
		s.logger.Debug().Str("topic", topic).Msg("Subscribed to shuttle record")
	} else {
		s.fanout.replay(shuttleID, key)
	}

	return newSubscription(func() error {
		return s.unsubscribe(shuttleID, key)
	}), nil
}

func (s *MQTTStore) unsubscribe(shuttleID string, key uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.fanout.remove(shuttleID, key) || s.closed {
		return nil
	}

	topic := s.Topic(shuttleID)
	token := s.client.Unsubscribe(topic)
	token.Wait()
	if err := token.Error(); err != nil {
		s.logger.Warn().Err(err).Str("topic", topic).Msg("Failed to unsubscribe from shuttle record")
		return fmt.Errorf("failed to unsubscribe from %s: %w", topic, err)
	}
	s.logger.Debug().Str("topic", topic).Msg("Unsubscribed from shuttle record")
	return nil
}

// onMessage decodes a retained record update and fans it out.
func (s *MQTTStore) onMessage(shuttleID string) mqttLib.MessageHandler {
	return func(_ mqttLib.Client, msg mqttLib.Message) {
		record, err := decodeRecord(msg.Payload())
		if err != nil {
			s.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("Discarding malformed shuttle record")
			return
		}
		s.fanout.publish(shuttleID, record)
	}
}

// Write implements Store by publishing a retained message.
func (s *MQTTStore) Write(ctx context.Context, shuttleID string, record models.ShuttleRecord) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to serialize shuttle record: %w", err)
	}

	topic := s.Topic(shuttleID)
	if err := waitToken(ctx, s.client.Publish(topic, s.qos, true, payload)); err != nil {
		return fmt.Errorf("failed to publish shuttle record to %s: %w", topic, err)
	}
	return nil
}

// Close unsubscribes every remaining topic. The MQTT connection itself is owned by the caller.
func (s *MQTTStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	ids := s.fanout.ids()
	if len(ids) == 0 {
		return nil
	}
	topics := make([]string, 0, len(ids))
	for _, id := range ids {
		topics = append(topics, s.Topic(id))
	}
	token := s.client.Unsubscribe(topics...)
	token.Wait()
	return token.Error()
}

// waitToken waits for an MQTT token to complete or ctx to end.
func waitToken(ctx context.Context, token mqttLib.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
