package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// SnapshotRoutingKey is the routing key used for relayed snapshots.
const SnapshotRoutingKey = "reservations.snapshot"

// Channel is the subset of *amqp.Channel used by the relay.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPRelay publishes every snapshot of a Source to a topic exchange.
type AMQPRelay struct {
	ch          Channel
	conn        io.Closer
	exchange    string
	timeout     time.Duration
	logger      *slog.Logger
	unsubscribe func()
}

// DialAMQPRelay connects to url and declares exchange as a durable topic exchange.
func DialAMQPRelay(url, exchange string, logger *slog.Logger) (*AMQPRelay, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	relay, err := NewAMQPRelay(ch, exchange, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	relay.conn = conn
	return relay, nil
}

// NewAMQPRelay wraps an open channel.
func NewAMQPRelay(ch Channel, exchange string, logger *slog.Logger) (*AMQPRelay, error) {
	if ch == nil {
		return nil, fmt.Errorf("amqp channel is nil")
	}
	if exchange == "" {
		exchange = "reservations.events"
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPRelay{
		ch:       ch,
		exchange: exchange,
		timeout:  5 * time.Second,
		logger:   logger.With("component", "AMQPRelay", "exchange", exchange),
	}, nil
}

// Attach subscribes the relay to source. Calling Attach again replaces the
// previous subscription.
func (r *AMQPRelay) Attach(source Source) {
	if r == nil || source == nil {
		return
	}
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
	r.unsubscribe = source.Subscribe(func(snapshot Snapshot) {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.Publish(ctx, snapshot); err != nil {
			r.logger.ErrorContext(ctx, "failed to relay snapshot", "version", snapshot.Version, "error", err)
		}
	})
}

// Publish sends one snapshot as a persistent JSON message.
func (r *AMQPRelay) Publish(ctx context.Context, snapshot Snapshot) error {
	body, err := json.Marshal(newSnapshotMessage(snapshot))
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return r.ch.PublishWithContext(ctx, r.exchange, SnapshotRoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    snapshot.PublishedAt,
		MessageId:    fmt.Sprintf("snapshot-%d", snapshot.Version),
		Body:         body,
	})
}

// Close detaches the relay and releases the channel and connection.
func (r *AMQPRelay) Close() error {
	if r == nil {
		return nil
	}
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

type snapshotMessage struct {
	Version      uint64               `json:"version"`
	PublishedAt  time.Time            `json:"published_at"`
	Count        int                  `json:"count"`
	Reservations []reservationMessage `json:"reservations"`
}

type reservationMessage struct {
	ID              string    `json:"id"`
	Date            string    `json:"date"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	Room            string    `json:"room"`
	Requester       string    `json:"requester"`
	EventTitle      string    `json:"event_title"`
	Notes           string    `json:"notes,omitempty"`
	Status          string    `json:"status"`
	CreatorIdentity string    `json:"creator_identity"`
	CreatedAt       time.Time `json:"created_at"`
}

func newSnapshotMessage(snapshot Snapshot) snapshotMessage {
	msg := snapshotMessage{
		Version:      snapshot.Version,
		PublishedAt:  snapshot.PublishedAt.UTC(),
		Count:        len(snapshot.Reservations),
		Reservations: make([]reservationMessage, 0, len(snapshot.Reservations)),
	}
	for _, r := range snapshot.Reservations {
		msg.Reservations = append(msg.Reservations, reservationMessage{
			ID:              r.ID,
			Date:            r.Date,
			StartTime:       r.StartTime,
			EndTime:         r.EndTime,
			Room:            string(r.Room),
			Requester:       r.Requester,
			EventTitle:      r.EventTitle,
			Notes:           r.Notes,
			Status:          r.Status,
			CreatorIdentity: r.CreatorIdentity,
			CreatedAt:       r.CreatedAt.UTC(),
		})
	}
	return msg
}
