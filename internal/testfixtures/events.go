package testfixtures

import (
	"sync"

	"github.com/example/room-reservations/internal/events"
	"github.com/example/room-reservations/internal/reservation"
)

// RecordingSource is an events.Source whose deliveries are driven by the test.
// Unlike events.Broker it never replays the latest snapshot on subscribe, so
// tests can observe a mirror before its first notification.
type RecordingSource struct {
	mu           sync.Mutex
	nextID       int
	listeners    map[int]events.Listener
	subscribes   int
	unsubscribes int
	version      uint64
}

// NewRecordingSource returns an empty source.
func NewRecordingSource() *RecordingSource {
	return &RecordingSource{listeners: make(map[int]events.Listener)}
}

// Subscribe implements events.Source.
func (s *RecordingSource) Subscribe(listener events.Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.listeners[id] = listener
	s.subscribes++

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, id)
			s.unsubscribes++
		})
	}
}

// Emit delivers snapshot to every current listener on the calling goroutine.
func (s *RecordingSource) Emit(snapshot events.Snapshot) {
	s.mu.Lock()
	listeners := make([]events.Listener, 0, len(s.listeners))
	for _, listener := range s.listeners {
		listeners = append(listeners, listener)
	}
	if snapshot.Version > s.version {
		s.version = snapshot.Version
	}
	s.mu.Unlock()

	for _, listener := range listeners {
		listener(snapshot)
	}
}

// EmitRecords wraps records in a snapshot one version past the last emitted
// and delivers it.
func (s *RecordingSource) EmitRecords(records ...reservation.Reservation) events.Snapshot {
	s.mu.Lock()
	next := s.version + 1
	s.mu.Unlock()

	snapshot := events.Snapshot{
		Version:      next,
		PublishedAt:  ReferenceTime(),
		Reservations: records,
	}
	s.Emit(snapshot)
	return snapshot
}

// Subscriptions reports how many times Subscribe and unsubscribe were called.
func (s *RecordingSource) Subscriptions() (subscribed, unsubscribed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribes, s.unsubscribes
}

// Active is the number of listeners currently registered.
func (s *RecordingSource) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}
