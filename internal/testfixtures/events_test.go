package testfixtures

import (
	"testing"

	"github.com/example/room-reservations/internal/events"
)

func TestRecordingSourceDeliversInEmitOrder(t *testing.T) {
	source := NewRecordingSource()

	var versions []uint64
	unsubscribe := source.Subscribe(func(snapshot events.Snapshot) {
		versions = append(versions, snapshot.Version)
	})

	source.EmitRecords(NewReservationFixture().Domain())
	source.Emit(events.Snapshot{Version: 7})
	source.EmitRecords()

	if len(versions) != 3 || versions[0] != 1 || versions[1] != 7 || versions[2] != 8 {
		t.Fatalf("unexpected versions %v", versions)
	}

	unsubscribe()
	unsubscribe()
	source.EmitRecords()

	if len(versions) != 3 {
		t.Fatalf("listener called after unsubscribe: %v", versions)
	}
	subscribed, unsubscribed := source.Subscriptions()
	if subscribed != 1 || unsubscribed != 1 {
		t.Fatalf("expected 1/1 subscriptions, got %d/%d", subscribed, unsubscribed)
	}
}
