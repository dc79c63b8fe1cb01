// Package recordstore exposes the externally owned shuttle record as a subscribe/write channel,
// independent of the backing store.
package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/benmeehan/shuttle-tracker/internal/models"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("record store is closed")

// Handler receives the current record after every change. A nil record means the record does not exist.
// Handlers must not call back into the store synchronously.
type Handler func(record *models.ShuttleRecord)

// Subscription is a registered listener. After Unsubscribe returns the handler is never called again.
type Subscription interface {
	Unsubscribe() error
}

// Store is a realtime document store holding one record per shuttle.
type Store interface {
	// Subscribe registers handler for changes of the record identified by shuttleID.
	Subscribe(ctx context.Context, shuttleID string, handler Handler) (Subscription, error)
	// Write fully replaces the record identified by shuttleID.
	Write(ctx context.Context, shuttleID string, record models.ShuttleRecord) error
	// Close releases the store's resources.
	Close() error
}

// subscriptionFunc adapts a function to Subscription, running it at most once.
type subscriptionFunc struct {
	once sync.Once
	fn   func() error
	err  error
}

func newSubscription(fn func() error) *subscriptionFunc {
	return &subscriptionFunc{fn: fn}
}

func (s *subscriptionFunc) Unsubscribe() error {
	s.once.Do(func() {
		s.err = s.fn()
	})
	return s.err
}

// decodeRecord decodes a stored payload. An empty payload is an absent record.
func decodeRecord(payload []byte) (*models.ShuttleRecord, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	var record models.ShuttleRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, err
	}
	return &record, nil
}
