package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/room-reservations/internal/events"
	"github.com/example/room-reservations/internal/reservation"
)

func scenarioRecord(id, start, end string) reservation.Reservation {
	return reservation.Reservation{
		ID: id, Date: "2025-03-10", StartTime: start, EndTime: end,
		Room: reservation.RoomAuditorium, Requester: "Ana Silva", EventTitle: "Palestra",
		Status: reservation.StatusReserved, CreatorIdentity: alice.Email,
	}
}

func newStartedMirror(t *testing.T, broker *events.Broker, writer ReservationWriter, order SortOrder) *Mirror {
	t.Helper()
	mirror := NewMirror(broker, writer, MirrorConfig{Order: order, Location: testLocation, Now: fixedNow})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, mirror.Start(ctx))
	t.Cleanup(mirror.Stop)
	return mirror
}

func TestMirrorReplacesSnapshotOnEveryNotification(t *testing.T) {
	t.Parallel()

	broker := events.NewBroker(fixedNow)
	broker.Publish([]reservation.Reservation{scenarioRecord("a", "09:00", "10:00")})

	mirror := newStartedMirror(t, broker, &writerStub{}, SortDateAsc)
	require.Len(t, mirror.Snapshot(), 1, "the latest snapshot is delivered on subscribe")
	assert.Equal(t, uint64(1), mirror.Version())

	broker.Publish([]reservation.Reservation{
		scenarioRecord("c", "11:00", "12:00"),
		scenarioRecord("b", "10:00", "11:00"),
	})

	snapshot := mirror.Snapshot()
	require.Len(t, snapshot, 2, "state is replaced, not merged")
	assert.Equal(t, "b", snapshot[0].ID)
	assert.Equal(t, "c", snapshot[1].ID)
	assert.Equal(t, uint64(2), mirror.Version())
	assert.True(t, mirror.ReceivedAt().Equal(testNow))
}

func TestMirrorSortOrders(t *testing.T) {
	t.Parallel()

	older := scenarioRecord("older", "14:00", "15:00")
	older.CreatedAt = testNow.Add(-time.Hour)
	newer := scenarioRecord("newer", "08:00", "09:00")
	newer.CreatedAt = testNow
	tomorrow := scenarioRecord("tomorrow", "07:00", "08:00")
	tomorrow.Date = "2025-03-11"
	tomorrow.CreatedAt = testNow.Add(-2 * time.Hour)

	cases := map[SortOrder][]string{
		SortDateAsc:     {"newer", "older", "tomorrow"},
		SortDateDesc:    {"tomorrow", "older", "newer"},
		SortCreatedAsc:  {"tomorrow", "older", "newer"},
		SortCreatedDesc: {"newer", "older", "tomorrow"},
	}

	for order, expected := range cases {
		order, expected := order, expected
		t.Run(string(order), func(t *testing.T) {
			t.Parallel()

			broker := events.NewBroker(fixedNow)
			mirror := newStartedMirror(t, broker, &writerStub{}, order)
			broker.Publish([]reservation.Reservation{older, tomorrow, newer})

			got := make([]string, 0, 3)
			for _, r := range mirror.Snapshot() {
				got = append(got, r.ID)
			}
			assert.Equal(t, expected, got)
		})
	}
}

func TestParseSortOrder(t *testing.T) {
	t.Parallel()

	order, ok := ParseSortOrder("")
	assert.True(t, ok)
	assert.Equal(t, SortDateAsc, order)

	order, ok = ParseSortOrder(" Created_At_Desc ")
	assert.True(t, ok)
	assert.Equal(t, SortCreatedDesc, order)

	_, ok = ParseSortOrder("random")
	assert.False(t, ok)
}

func TestMirrorScenarioOverlapAndBoundary(t *testing.T) {
	t.Parallel()

	broker := events.NewBroker(fixedNow)
	broker.Publish([]reservation.Reservation{scenarioRecord("a", "09:00", "10:00")})
	writer := &writerStub{}
	mirror := newStartedMirror(t, broker, writer, SortDateAsc)
	ctx := context.Background()

	b := validInput()
	b.StartTime, b.EndTime = "09:30", "10:30"
	_, err := mirror.Create(ctx, CreateReservationParams{Principal: bruno, Input: b})
	assert.ErrorIs(t, err, ErrOverlap)
	assert.Zero(t, writer.calls(), "overlapping requests are not submitted")

	c := validInput()
	c.StartTime, c.EndTime = "10:00", "11:00"
	_, err = mirror.Create(ctx, CreateReservationParams{Principal: bruno, Input: c})
	require.NoError(t, err)
	require.Len(t, writer.creates, 1)

	otherRoom := b
	otherRoom.Room = reservation.RoomComputerLab
	_, err = mirror.Create(ctx, CreateReservationParams{Principal: bruno, Input: otherRoom})
	require.NoError(t, err)

	assert.Len(t, mirror.Snapshot(), 1, "writes are not applied optimistically")
}

func TestMirrorCreateValidatesBeforeSubmitting(t *testing.T) {
	t.Parallel()

	writer := &writerStub{}
	mirror := newStartedMirror(t, events.NewBroker(fixedNow), writer, SortDateAsc)

	input := validInput()
	input.Requester = " "
	input.Date = "2025-03-01"
	_, err := mirror.Create(context.Background(), CreateReservationParams{Principal: alice, Input: input})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, msgRequesterRequired, vErr.FieldErrors["requester"])
	assert.Equal(t, msgDateInPast, vErr.FieldErrors["date"])
	assert.Zero(t, writer.calls())
}

func TestMirrorUpdateExcludesItself(t *testing.T) {
	t.Parallel()

	broker := events.NewBroker(fixedNow)
	broker.Publish([]reservation.Reservation{
		scenarioRecord("a", "09:00", "10:00"),
		scenarioRecord("b", "10:00", "11:00"),
	})
	writer := &writerStub{}
	mirror := newStartedMirror(t, broker, writer, SortDateAsc)
	ctx := context.Background()

	_, err := mirror.Update(ctx, UpdateReservationParams{Principal: alice, ReservationID: "a", Input: validInput()})
	require.NoError(t, err)
	require.Len(t, writer.updates, 1)

	extended := validInput()
	extended.EndTime = "10:30"
	_, err = mirror.Update(ctx, UpdateReservationParams{Principal: alice, ReservationID: "a", Input: extended})
	assert.ErrorIs(t, err, ErrOverlap)

	_, err = mirror.Update(ctx, UpdateReservationParams{Principal: bruno, ReservationID: "a", Input: validInput()})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Len(t, writer.updates, 1)
}

func TestMirrorDeleteRequiresAdministrator(t *testing.T) {
	t.Parallel()

	writer := &writerStub{}
	mirror := newStartedMirror(t, events.NewBroker(fixedNow), writer, SortDateAsc)

	err := mirror.Delete(context.Background(), alice, "a")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Zero(t, writer.calls(), "refused before any store call")

	require.NoError(t, mirror.Delete(context.Background(), admin, "a"))
	assert.Equal(t, []string{"a"}, writer.deletes)
}

func TestMirrorKeepsSnapshotWhenWriteFails(t *testing.T) {
	t.Parallel()

	broker := events.NewBroker(fixedNow)
	broker.Publish([]reservation.Reservation{scenarioRecord("a", "09:00", "10:00")})
	writer := &writerStub{err: errors.New("network down")}
	mirror := newStartedMirror(t, broker, writer, SortDateAsc)

	input := validInput()
	input.StartTime, input.EndTime = "13:00", "14:00"
	_, err := mirror.Create(context.Background(), CreateReservationParams{Principal: alice, Input: input})
	require.Error(t, err)

	assert.Len(t, mirror.Snapshot(), 1)
	assert.Equal(t, uint64(1), mirror.Version())
}

func TestMirrorStopIgnoresLaterNotifications(t *testing.T) {
	t.Parallel()

	broker := events.NewBroker(fixedNow)
	mirror := NewMirror(broker, &writerStub{}, MirrorConfig{Now: fixedNow})
	require.NoError(t, mirror.Start(context.Background()))
	require.NoError(t, mirror.Start(context.Background()), "starting twice is a no-op")
	assert.Equal(t, 1, broker.SubscriberCount())

	broker.Publish([]reservation.Reservation{scenarioRecord("a", "09:00", "10:00")})
	mirror.Stop()
	assert.Zero(t, broker.SubscriberCount())

	broker.Publish(nil)
	assert.Len(t, mirror.Snapshot(), 1)
}

func TestMirrorStopsWhenContextIsCancelled(t *testing.T) {
	t.Parallel()

	broker := events.NewBroker(fixedNow)
	mirror := NewMirror(broker, &writerStub{}, MirrorConfig{Now: fixedNow})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, mirror.Start(ctx))

	cancel()
	require.Eventually(t, func() bool { return broker.SubscriberCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestMirrorWithServiceEndToEnd(t *testing.T) {
	t.Parallel()

	broker := events.NewBroker(fixedNow)
	svc := newTestReservationService(newReservationRepoStub(), broker)
	mirror := newStartedMirror(t, broker, svc, SortDateAsc)
	ctx := context.Background()

	created, err := mirror.Create(ctx, CreateReservationParams{Principal: alice, Input: validInput()})
	require.NoError(t, err)

	snapshot := mirror.Snapshot()
	require.Len(t, snapshot, 1, "the publish after the write reaches the mirror")
	assert.Equal(t, created.ID, snapshot[0].ID)

	view := mirror.View(reservation.Filter{Requester: "silva"})
	assert.Len(t, view, 1)
	assert.Empty(t, mirror.View(reservation.Filter{Room: reservation.RoomComputerLab}))

	require.NoError(t, mirror.Delete(ctx, admin, created.ID))
	assert.Empty(t, mirror.Snapshot())
}

// stallingRepo blocks the first snapshot read after it has loaded its rows.
type stallingRepo struct {
	*reservationRepoStub
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (r *stallingRepo) ListReservations(ctx context.Context, filter ReservationRepositoryFilter) ([]reservation.Reservation, error) {
	records, err := r.reservationRepoStub.ListReservations(ctx, filter)
	r.once.Do(func() {
		close(r.read)
		<-r.release
	})
	return records, err
}

func (r *stallingRepo) createCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creates
}

func TestMirrorConvergesWhenSnapshotReadsInterleave(t *testing.T) {
	t.Parallel()

	repo := &stallingRepo{
		reservationRepoStub: newReservationRepoStub(),
		read:                make(chan struct{}),
		release:             make(chan struct{}),
	}
	broker := events.NewBroker(fixedNow)
	svc := NewReservationService(repo, broker, sequence("res"), fixedNow, testLocation)
	mirror := newStartedMirror(t, broker, svc, SortDateAsc)
	ctx := context.Background()

	first := make(chan error, 1)
	go func() {
		_, err := svc.CreateReservation(ctx, CreateReservationParams{Principal: alice, Input: validInput()})
		first <- err
	}()
	<-repo.read

	second := make(chan error, 1)
	go func() {
		input := validInput()
		input.StartTime, input.EndTime = "10:00", "11:00"
		_, err := svc.CreateReservation(ctx, CreateReservationParams{Principal: bruno, Input: input})
		second <- err
	}()
	require.Eventually(t, func() bool { return repo.createCount() == 2 }, time.Second, 5*time.Millisecond)

	close(repo.release)
	require.NoError(t, <-first)
	require.NoError(t, <-second)

	snapshot := mirror.Snapshot()
	require.Len(t, snapshot, 2, "the newest snapshot holds every committed record")
	assert.Equal(t, uint64(2), mirror.Version())
}
