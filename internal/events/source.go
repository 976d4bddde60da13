// Package events delivers full reservation snapshots to subscribers.
//
// A Source is the only channel through which mirrors learn about store
// changes. Broker is the in-process implementation used by the service and by
// tests; AMQPRelay forwards snapshots to a message broker for other consumers.
package events

import (
	"slices"
	"sync"
	"time"

	"github.com/example/room-reservations/internal/reservation"
)

// Snapshot is the complete ordered reservation set at one point in time.
type Snapshot struct {
	Version      uint64
	PublishedAt  time.Time
	Reservations []reservation.Reservation
}

// Listener receives snapshots. Listeners run on the publisher's goroutine and
// must not call Subscribe.
type Listener func(Snapshot)

// Source is a subscribable stream of snapshots.
type Source interface {
	// Subscribe registers listener and returns a function that removes it.
	// When a snapshot has already been published the listener receives the
	// latest one before Subscribe returns.
	Subscribe(listener Listener) (unsubscribe func())
}

// Broker is an in-memory Source. Publishes are serialized so every listener
// observes snapshots in version order.
type Broker struct {
	deliverMu sync.Mutex

	mu        sync.Mutex
	nextID    uint64
	listeners map[uint64]Listener
	version   uint64
	latest    *Snapshot
	now       func() time.Time
}

// NewBroker constructs an empty broker. When now is nil, time.Now is used.
func NewBroker(now func() time.Time) *Broker {
	if now == nil {
		now = time.Now
	}
	return &Broker{listeners: make(map[uint64]Listener), now: now}
}

// Subscribe implements Source.
func (b *Broker) Subscribe(listener Listener) func() {
	if b == nil || listener == nil {
		return func() {}
	}

	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners[id] = listener
	var latest *Snapshot
	if b.latest != nil {
		cloned := cloneSnapshot(*b.latest)
		latest = &cloned
	}
	b.mu.Unlock()

	if latest != nil {
		listener(*latest)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// Publish records records as the newest snapshot and delivers it to every
// current listener. It returns the delivered snapshot.
func (b *Broker) Publish(records []reservation.Reservation) Snapshot {
	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()

	b.mu.Lock()
	b.version++
	snapshot := Snapshot{
		Version:      b.version,
		PublishedAt:  b.now(),
		Reservations: slices.Clone(records),
	}
	b.latest = &snapshot

	ids := make([]uint64, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	targets := make([]Listener, 0, len(ids))
	for _, id := range ids {
		targets = append(targets, b.listeners[id])
	}
	b.mu.Unlock()

	for _, listener := range targets {
		listener(cloneSnapshot(snapshot))
	}
	return cloneSnapshot(snapshot)
}

// Latest returns the most recent snapshot, if any.
func (b *Broker) Latest() (Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.latest == nil {
		return Snapshot{}, false
	}
	return cloneSnapshot(*b.latest), true
}

// SubscriberCount reports the number of registered listeners.
func (b *Broker) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

func cloneSnapshot(s Snapshot) Snapshot {
	s.Reservations = slices.Clone(s.Reservations)
	return s
}
