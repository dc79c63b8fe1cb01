package recordstore

import (
	"context"
	"sync"

	"github.com/benmeehan/shuttle-tracker/internal/models"
)

// MemoryStore is an in-process Store. New subscribers immediately receive the current record,
// or nil when it does not exist.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]models.ShuttleRecord
	fanout  *fanout
	closed  bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]models.ShuttleRecord),
		fanout:  newFanout(),
	}
}

// Subscribe implements Store.
func (s *MemoryStore) Subscribe(ctx context.Context, shuttleID string, handler Handler) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	key, _ := s.fanout.add(shuttleID, handler)
	var current *models.ShuttleRecord
	if record, ok := s.records[shuttleID]; ok {
		current = &record
	}
	s.fanout.deliverTo(shuttleID, key, current)

	return newSubscription(func() error {
		s.fanout.remove(shuttleID, key)
		return nil
	}), nil
}

// Write implements Store.
func (s *MemoryStore) Write(ctx context.Context, shuttleID string, record models.ShuttleRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	s.records[shuttleID] = record
	s.fanout.publish(shuttleID, &record)
	return nil
}

// Delete removes the record; subscribers receive nil.
func (s *MemoryStore) Delete(shuttleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, shuttleID)
	s.fanout.publish(shuttleID, nil)
}

// Get returns the stored record.
func (s *MemoryStore) Get(shuttleID string) (models.ShuttleRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[shuttleID]
	return record, ok
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
