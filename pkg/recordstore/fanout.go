package recordstore

import (
	"sort"
	"sync"

	"github.com/benmeehan/shuttle-tracker/internal/models"
)

// fanout dispatches record changes of one backend subscription to many local listeners.
type fanout struct {
	mu     sync.Mutex
	nextID uint64
	topics map[string]*fanoutTopic

	// deliverMu keeps deliveries in order across publish and replay.
	deliverMu sync.Mutex
}

type fanoutTopic struct {
	listeners map[uint64]Handler
	last      *models.ShuttleRecord
	known     bool
}

func newFanout() *fanout {
	return &fanout{topics: make(map[string]*fanoutTopic)}
}

// add registers handler for id and reports whether it is the first listener.
func (f *fanout) add(id string, handler Handler) (uint64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	key := f.nextID

	topic, ok := f.topics[id]
	if !ok {
		topic = &fanoutTopic{listeners: make(map[uint64]Handler)}
		f.topics[id] = topic
	}
	topic.listeners[key] = handler
	return key, !ok
}

// remove unregisters a listener and reports whether id has no listeners left.
// Once remove returns, the listener is not called again.
func (f *fanout) remove(id string, key uint64) bool {
	f.deliverMu.Lock()
	defer f.deliverMu.Unlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	topic, ok := f.topics[id]
	if !ok {
		return false
	}
	delete(topic.listeners, key)
	if len(topic.listeners) > 0 {
		return false
	}
	delete(f.topics, id)
	return true
}

// publish records the current state of id and hands it to every listener.
func (f *fanout) publish(id string, record *models.ShuttleRecord) {
	f.deliverMu.Lock()
	defer f.deliverMu.Unlock()

	f.mu.Lock()
	topic, ok := f.topics[id]
	if !ok {
		f.mu.Unlock()
		return
	}
	topic.last = record
	topic.known = true
	handlers := make([]Handler, 0, len(topic.listeners))
	for _, key := range sortedKeys(topic.listeners) {
		handlers = append(handlers, topic.listeners[key])
	}
	f.mu.Unlock()

	for _, handler := range handlers {
		handler(copyRecord(record))
	}
}

// replay hands the last known state of id to a single listener, if any state is known.
func (f *fanout) replay(id string, key uint64) {
	f.deliverMu.Lock()
	defer f.deliverMu.Unlock()

	f.mu.Lock()
	topic, ok := f.topics[id]
	if !ok || !topic.known {
		f.mu.Unlock()
		return
	}
	handler, ok := topic.listeners[key]
	record := topic.last
	f.mu.Unlock()

	if ok {
		handler(copyRecord(record))
	}
}

// deliverTo hands record to a single listener without touching the cached state.
func (f *fanout) deliverTo(id string, key uint64, record *models.ShuttleRecord) {
	f.deliverMu.Lock()
	defer f.deliverMu.Unlock()

	f.mu.Lock()
	var handler Handler
	if topic, ok := f.topics[id]; ok {
		handler = topic.listeners[key]
	}
	f.mu.Unlock()

	if handler != nil {
		handler(copyRecord(record))
	}
}

// ids returns every id with at least one listener.
func (f *fanout) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]string, 0, len(f.topics))
	for id := range f.topics {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedKeys(listeners map[uint64]Handler) []uint64 {
	keys := make([]uint64, 0, len(listeners))
	for key := range listeners {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// copyRecord gives every listener its own value.
func copyRecord(record *models.ShuttleRecord) *models.ShuttleRecord {
	if record == nil {
		return nil
	}
	clone := *record
	return &clone
}
