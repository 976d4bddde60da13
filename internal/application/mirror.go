package application

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/example/room-reservations/internal/events"
	"github.com/example/room-reservations/internal/reservation"
)

// SortOrder selects how a mirror orders its snapshot.
type SortOrder string

const (
	// SortDateAsc orders by date, then start time, then creation time.
	SortDateAsc SortOrder = "date_asc"
	// SortDateDesc is the reverse of SortDateAsc.
	SortDateDesc SortOrder = "date_desc"
	// SortCreatedAsc orders by creation time, oldest first.
	SortCreatedAsc SortOrder = "created_at_asc"
	// SortCreatedDesc orders by creation time, newest first.
	SortCreatedDesc SortOrder = "created_at_desc"
)

// ParseSortOrder recognizes the textual sort orders. An empty value selects SortDateAsc.
func ParseSortOrder(value string) (SortOrder, bool) {
	switch order := SortOrder(strings.ToLower(strings.TrimSpace(value))); order {
	case "":
		return SortDateAsc, true
	case SortDateAsc, SortDateDesc, SortCreatedAsc, SortCreatedDesc:
		return order, true
	default:
		return "", false
	}
}

// SortReservations orders records in place. Ties fall back to the id so the
// result is deterministic.
func SortReservations(records []reservation.Reservation, order SortOrder) {
	byDate := func(a, b reservation.Reservation) int {
		return cmp.Or(
			cmp.Compare(a.Date, b.Date),
			cmp.Compare(a.StartTime, b.StartTime),
			a.CreatedAt.Compare(b.CreatedAt),
			cmp.Compare(a.ID, b.ID),
		)
	}
	byCreated := func(a, b reservation.Reservation) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	}

	switch order {
	case SortDateDesc:
		slices.SortStableFunc(records, func(a, b reservation.Reservation) int { return byDate(b, a) })
	case SortCreatedAsc:
		slices.SortStableFunc(records, byCreated)
	case SortCreatedDesc:
		slices.SortStableFunc(records, func(a, b reservation.Reservation) int { return byCreated(b, a) })
	default:
		slices.SortStableFunc(records, byDate)
	}
}

// ReservationWriter is the authoritative store a mirror submits writes to.
type ReservationWriter interface {
	CreateReservation(ctx context.Context, params CreateReservationParams) (reservation.Reservation, error)
	UpdateReservation(ctx context.Context, params UpdateReservationParams) (reservation.Reservation, error)
	DeleteReservation(ctx context.Context, principal Principal, id string) error
}

// MirrorConfig tunes a Mirror. Zero values select date ordering, UTC, time.Now
// and the default logger.
type MirrorConfig struct {
	Order    SortOrder
	Location *time.Location
	Now      func() time.Time
	Logger   *slog.Logger
}

// Mirror keeps a read-mostly copy of the reservation collection. Its state
// changes only when the event source delivers a snapshot; writes go to the
// writer and become visible once the resulting snapshot arrives.
type Mirror struct {
	source   events.Source
	writer   ReservationWriter
	order    SortOrder
	location *time.Location
	now      func() time.Time
	logger   *slog.Logger

	mu          sync.RWMutex
	records     []reservation.Reservation
	version     uint64
	receivedAt  time.Time
	running     bool
	unsubscribe func()
	stopCtx     func() bool
}

// NewMirror constructs a mirror over source that submits writes to writer.
func NewMirror(source events.Source, writer ReservationWriter, config MirrorConfig) *Mirror {
	order, ok := ParseSortOrder(string(config.Order))
	if !ok {
		order = SortDateAsc
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Mirror{
		source:   source,
		writer:   writer,
		order:    order,
		location: config.Location,
		now:      config.Now,
		logger:   defaultLogger(config.Logger).With("component", "Mirror", "order", string(order)),
		records:  []reservation.Reservation{},
	}
}

// Start subscribes to the event source. The subscription ends when ctx is
// cancelled or Stop is called. Calling Start on a running mirror is a no-op.
func (m *Mirror) Start(ctx context.Context) error {
	if m == nil || m.source == nil {
		return fmt.Errorf("mirror event source not configured")
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	m.mu.Unlock()

	unsubscribe := m.source.Subscribe(m.apply)

	m.mu.Lock()
	m.unsubscribe = unsubscribe
	m.stopCtx = context.AfterFunc(ctx, m.Stop)
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "mirror subscribed", "version", m.Version())
	return nil
}

// Stop ends the subscription. Snapshots delivered afterwards are ignored and
// the last received state stays readable.
func (m *Mirror) Stop() {
	if m == nil {
		return
	}
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	stopCtx := m.stopCtx
	m.unsubscribe = nil
	m.stopCtx = nil
	wasRunning := m.running
	m.running = false
	m.mu.Unlock()

	if stopCtx != nil {
		stopCtx()
	}
	if unsubscribe != nil {
		unsubscribe()
	}
	if wasRunning {
		m.logger.Info("mirror unsubscribed")
	}
}

func (m *Mirror) apply(snapshot events.Snapshot) {
	records := slices.Clone(snapshot.Reservations)
	if records == nil {
		records = []reservation.Reservation{}
	}
	SortReservations(records, m.order)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	if m.version != 0 && snapshot.Version <= m.version {
		return
	}
	m.records = records
	m.version = snapshot.Version
	m.receivedAt = m.now()
}

// Snapshot returns a copy of the current ordered collection.
func (m *Mirror) Snapshot() []reservation.Reservation {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.records)
}

// View returns the records matching filter in snapshot order.
func (m *Mirror) View(filter reservation.Filter) []reservation.Reservation {
	return reservation.ApplyFilters(m.Snapshot(), filter)
}

// Version reports the version of the last applied snapshot, zero before the first.
func (m *Mirror) Version() uint64 {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// ReceivedAt reports when the last snapshot was applied.
func (m *Mirror) ReceivedAt() time.Time {
	if m == nil {
		return time.Time{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.receivedAt
}

// Create checks the request against the local snapshot and submits it to the writer.
func (m *Mirror) Create(ctx context.Context, params CreateReservationParams) (reservation.Reservation, error) {
	if m == nil || m.writer == nil {
		return reservation.Reservation{}, fmt.Errorf("mirror writer not configured")
	}
	if !authenticated(params.Principal) {
		return reservation.Reservation{}, ErrUnauthorized
	}
	if err := m.precheck(params.Input, ""); err != nil {
		m.logger.DebugContext(ctx, "create rejected locally", "error", err, "error_kind", ErrorKind(err))
		return reservation.Reservation{}, err
	}
	return m.writer.CreateReservation(ctx, params)
}

// Update checks the request against the local snapshot, excluding the record
// being edited, and submits it to the writer.
func (m *Mirror) Update(ctx context.Context, params UpdateReservationParams) (reservation.Reservation, error) {
	if m == nil || m.writer == nil {
		return reservation.Reservation{}, fmt.Errorf("mirror writer not configured")
	}
	if !authenticated(params.Principal) {
		return reservation.Reservation{}, ErrUnauthorized
	}
	id := strings.TrimSpace(params.ReservationID)
	if current, found := m.lookup(id); found && !strings.EqualFold(current.CreatorIdentity, params.Principal.Email) {
		return reservation.Reservation{}, ErrUnauthorized
	}
	if err := m.precheck(params.Input, id); err != nil {
		m.logger.DebugContext(ctx, "update rejected locally", "reservation_id", id, "error", err, "error_kind", ErrorKind(err))
		return reservation.Reservation{}, err
	}
	return m.writer.UpdateReservation(ctx, params)
}

// Delete submits a deletion. Non-administrators are refused without contacting the writer.
func (m *Mirror) Delete(ctx context.Context, principal Principal, id string) error {
	if m == nil || m.writer == nil {
		return fmt.Errorf("mirror writer not configured")
	}
	if !authenticated(principal) || !principal.IsAdmin {
		return ErrUnauthorized
	}
	return m.writer.DeleteReservation(ctx, principal, id)
}

func (m *Mirror) precheck(input ReservationInput, excludeID string) error {
	normalized, vErr := validateReservationInput(input, m.now().In(m.location))
	if vErr.HasErrors() {
		return vErr
	}
	candidate := reservation.Reservation{
		Date:      normalized.Date,
		StartTime: normalized.StartTime,
		EndTime:   normalized.EndTime,
		Room:      normalized.Room,
	}
	if conflict, found := reservation.FindOverlap(candidate, m.Snapshot(), excludeID); found {
		return fmt.Errorf("%w: %s %s", ErrOverlap, conflict.ID, conflict.TimeRange())
	}
	return nil
}

func (m *Mirror) lookup(id string) (reservation.Reservation, bool) {
	if id == "" {
		return reservation.Reservation{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.records {
		if r.ID == id {
			return r, true
		}
	}
	return reservation.Reservation{}, false
}
