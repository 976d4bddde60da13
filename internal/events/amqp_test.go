package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/room-reservations/internal/reservation"
)

type publishedMessage struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	declared   []string
	declareErr error
	publishErr error
	published  []publishedMessage
	closed     bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.declared = append(f.declared, name+":"+kind)
	return f.declareErr
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, publishedMessage{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAMQPRelayForwardsSnapshots(t *testing.T) {
	t.Parallel()

	ch := &fakeChannel{}
	relay, err := NewAMQPRelay(ch, "reservations.test", discardLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"reservations.test:topic"}, ch.declared)

	broker := NewBroker(fixedNow)
	relay.Attach(broker)

	broker.Publish([]reservation.Reservation{{
		ID:        "r-1",
		Date:      "2025-03-10",
		StartTime: "09:00",
		EndTime:   "10:00",
		Room:      reservation.RoomAuditorium,
		Status:    reservation.StatusReserved,
	}})

	require.Len(t, ch.published, 1)
	got := ch.published[0]
	assert.Equal(t, "reservations.test", got.exchange)
	assert.Equal(t, SnapshotRoutingKey, got.key)
	assert.Equal(t, "application/json", got.msg.ContentType)
	assert.Equal(t, "snapshot-1", got.msg.MessageId)

	var body snapshotMessage
	require.NoError(t, json.Unmarshal(got.msg.Body, &body))
	assert.Equal(t, uint64(1), body.Version)
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "Auditório", body.Reservations[0].Room)

	require.NoError(t, relay.Close())
	assert.True(t, ch.closed)
	assert.Equal(t, 0, broker.SubscriberCount())
}

func TestAMQPRelayDeclareFailureClosesChannel(t *testing.T) {
	t.Parallel()

	ch := &fakeChannel{declareErr: errors.New("access refused")}
	_, err := NewAMQPRelay(ch, "", discardLogger())
	require.Error(t, err)
	assert.True(t, ch.closed)
	assert.Equal(t, []string{"reservations.events:topic"}, ch.declared)
}

func TestAMQPRelayPublishErrorDoesNotBlockBroker(t *testing.T) {
	t.Parallel()

	ch := &fakeChannel{publishErr: errors.New("channel closed")}
	relay, err := NewAMQPRelay(ch, "x", discardLogger())
	require.NoError(t, err)

	broker := NewBroker(fixedNow)
	relay.Attach(broker)

	delivered := 0
	unsubscribe := broker.Subscribe(func(Snapshot) { delivered++ })
	defer unsubscribe()

	broker.Publish(nil)
	assert.Equal(t, 1, delivered)
}
