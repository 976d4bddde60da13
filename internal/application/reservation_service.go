package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/example/room-reservations/internal/events"
	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/reservation"
)

// ReservationRepository captures the persistence interactions needed by the service.
// Create and update must reject overlapping bookings atomically with persistence.ErrConflict.
type ReservationRepository interface {
	CreateReservation(ctx context.Context, record reservation.Reservation) (reservation.Reservation, error)
	UpdateReservation(ctx context.Context, record reservation.Reservation) (reservation.Reservation, error)
	GetReservation(ctx context.Context, id string) (reservation.Reservation, error)
	DeleteReservation(ctx context.Context, id string) error
	ListReservations(ctx context.Context, filter ReservationRepositoryFilter) ([]reservation.Reservation, error)
}

// ReservationRepositoryFilter narrows queries issued to the reservation repository.
type ReservationRepositoryFilter struct {
	Date         string
	Room         string
	CreatorEmail string
}

// SnapshotPublisher receives the full ordered reservation set after every write.
type SnapshotPublisher interface {
	Publish(records []reservation.Reservation) events.Snapshot
}

// ReservationService is the authoritative write path for reservations.
type ReservationService struct {
	reservations ReservationRepository
	publisher    SnapshotPublisher
	idGenerator  func() string
	now          func() time.Time
	location     *time.Location
	logger       *slog.Logger

	// publishMu spans the read and the publish so snapshot versions follow
	// read order.
	publishMu sync.Mutex
}

// NewReservationService wires dependencies for reservation operations. The
// location decides which calendar day counts as today for the past-date rule.
func NewReservationService(reservations ReservationRepository, publisher SnapshotPublisher, idGenerator func() string, now func() time.Time, location *time.Location) *ReservationService {
	return NewReservationServiceWithLogger(reservations, publisher, idGenerator, now, location, nil)
}

// NewReservationServiceWithLogger wires dependencies with an explicit logger.
func NewReservationServiceWithLogger(reservations ReservationRepository, publisher SnapshotPublisher, idGenerator func() string, now func() time.Time, location *time.Location, logger *slog.Logger) *ReservationService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if location == nil {
		location = time.UTC
	}
	return &ReservationService{
		reservations: reservations,
		publisher:    publisher,
		idGenerator:  idGenerator,
		now:          now,
		location:     location,
		logger:       defaultLogger(logger),
	}
}

func (s *ReservationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReservationService", operation, attrs...)
}

// CreateReservation validates the request, persists it and publishes a fresh snapshot.
func (s *ReservationService) CreateReservation(ctx context.Context, params CreateReservationParams) (created reservation.Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.reservations == nil {
		err = fmt.Errorf("reservation repository not configured")
		return
	}

	principal := params.Principal
	logger := s.loggerWith(ctx, "CreateReservation",
		"principal_id", principal.UserID,
		"room", string(params.Input.Room),
		"date", params.Input.Date,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("reservation_id", created.ID).InfoContext(ctx, "reservation created")
	}()

	if !authenticated(principal) {
		err = ErrUnauthorized
		return
	}

	now := s.now()
	input, vErr := validateReservationInput(params.Input, now.In(s.location))
	if vErr.HasErrors() {
		err = vErr
		return
	}

	record := reservation.Reservation{
		ID:              s.idGenerator(),
		Date:            input.Date,
		StartTime:       input.StartTime,
		EndTime:         input.EndTime,
		Room:            input.Room,
		Requester:       input.Requester,
		EventTitle:      input.EventTitle,
		Notes:           input.Notes,
		Status:          reservation.StatusReserved,
		CreatorIdentity: normalizeEmail(principal.Email),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	created, err = s.reservations.CreateReservation(ctx, record)
	if err != nil {
		err = mapReservationRepoError(err)
		return
	}

	s.publish(ctx, logger)
	return
}

// UpdateReservation replaces the editable fields of a reservation owned by the principal.
func (s *ReservationService) UpdateReservation(ctx context.Context, params UpdateReservationParams) (updated reservation.Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.reservations == nil {
		err = fmt.Errorf("reservation repository not configured")
		return
	}

	principal := params.Principal
	id := strings.TrimSpace(params.ReservationID)
	logger := s.loggerWith(ctx, "UpdateReservation",
		"principal_id", principal.UserID,
		"reservation_id", id,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reservation updated")
	}()

	if !authenticated(principal) {
		err = ErrUnauthorized
		return
	}
	if id == "" {
		err = ErrNotFound
		return
	}

	var existing reservation.Reservation
	existing, err = s.reservations.GetReservation(ctx, id)
	if err != nil {
		err = mapReservationRepoError(err)
		return
	}
	if !strings.EqualFold(existing.CreatorIdentity, principal.Email) {
		err = ErrUnauthorized
		return
	}

	now := s.now()
	input, vErr := validateReservationInput(params.Input, now.In(s.location))
	if vErr.HasErrors() {
		err = vErr
		return
	}

	existing.Date = input.Date
	existing.StartTime = input.StartTime
	existing.EndTime = input.EndTime
	existing.Room = input.Room
	existing.Requester = input.Requester
	existing.EventTitle = input.EventTitle
	existing.Notes = input.Notes
	existing.Status = reservation.StatusReserved
	existing.UpdatedAt = now

	updated, err = s.reservations.UpdateReservation(ctx, existing)
	if err != nil {
		err = mapReservationRepoError(err)
		return
	}

	s.publish(ctx, logger)
	return
}

// DeleteReservation removes a reservation. Only administrators may delete.
func (s *ReservationService) DeleteReservation(ctx context.Context, principal Principal, id string) (err error) {
	if s == nil {
		return fmt.Errorf("ReservationService is nil")
	}
	if s.reservations == nil {
		return fmt.Errorf("reservation repository not configured")
	}

	id = strings.TrimSpace(id)
	logger := s.loggerWith(ctx, "DeleteReservation",
		"principal_id", principal.UserID,
		"reservation_id", id,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reservation deleted")
	}()

	if !authenticated(principal) || !principal.IsAdmin {
		err = ErrUnauthorized
		return
	}
	if id == "" {
		err = ErrNotFound
		return
	}

	if err = s.reservations.DeleteReservation(ctx, id); err != nil {
		err = mapReservationRepoError(err)
		return
	}

	s.publish(ctx, logger)
	return
}

// GetReservation loads a single reservation.
func (s *ReservationService) GetReservation(ctx context.Context, principal Principal, id string) (reservation.Reservation, error) {
	if s == nil {
		return reservation.Reservation{}, fmt.Errorf("ReservationService is nil")
	}
	if s.reservations == nil {
		return reservation.Reservation{}, fmt.Errorf("reservation repository not configured")
	}
	if !authenticated(principal) {
		return reservation.Reservation{}, ErrUnauthorized
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return reservation.Reservation{}, ErrNotFound
	}

	record, err := s.reservations.GetReservation(ctx, id)
	if err != nil {
		return reservation.Reservation{}, mapReservationRepoError(err)
	}
	return record, nil
}

// ListReservations returns stored reservations ordered by date, start time and
// creation time. Date, room and creator are pushed down to the repository;
// requester matching happens in memory.
func (s *ReservationService) ListReservations(ctx context.Context, params ListReservationsParams) ([]reservation.Reservation, error) {
	if s == nil {
		return nil, fmt.Errorf("ReservationService is nil")
	}
	if s.reservations == nil {
		return nil, fmt.Errorf("reservation repository not configured")
	}
	if !authenticated(params.Principal) {
		return nil, ErrUnauthorized
	}

	filter := params.Filter
	if params.Mine {
		filter.Creator = params.Principal.Email
	}

	repoFilter := ReservationRepositoryFilter{
		Room:         strings.TrimSpace(string(filter.Room)),
		CreatorEmail: normalizeEmail(filter.Creator),
	}
	if date := strings.TrimSpace(filter.Date); date != "" {
		normalized, err := reservation.NormalizeDate(date)
		if err != nil {
			vErr := &ValidationError{}
			vErr.add("date", msgDateInvalid)
			return nil, vErr
		}
		repoFilter.Date = normalized
		filter.Date = normalized
	}

	records, err := s.reservations.ListReservations(ctx, repoFilter)
	if err != nil {
		return nil, mapReservationRepoError(err)
	}

	records = reservation.ApplyFilters(records, filter)
	SortReservations(records, SortDateAsc)
	return records, nil
}

// PublishSnapshot reads every stored reservation and publishes it. It is used
// at start-up so subscribers see the stored state before the first write.
func (s *ReservationService) PublishSnapshot(ctx context.Context) (events.Snapshot, error) {
	if s == nil {
		return events.Snapshot{}, fmt.Errorf("ReservationService is nil")
	}
	if s.reservations == nil || s.publisher == nil {
		return events.Snapshot{}, fmt.Errorf("reservation service not fully configured")
	}

	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	records, err := s.reservations.ListReservations(ctx, ReservationRepositoryFilter{})
	if err != nil {
		return events.Snapshot{}, mapReservationRepoError(err)
	}
	SortReservations(records, SortDateAsc)
	return s.publisher.Publish(records), nil
}

// publish reports failures but never fails the write that triggered it.
func (s *ReservationService) publish(ctx context.Context, logger *slog.Logger) {
	if s.publisher == nil {
		return
	}
	snapshot, err := s.PublishSnapshot(ctx)
	if err != nil {
		logger.WarnContext(ctx, "failed to publish reservation snapshot", "error", err)
		return
	}
	logger.DebugContext(ctx, "reservation snapshot published",
		"version", snapshot.Version,
		"count", len(snapshot.Reservations),
	)
}

const (
	msgDateRequired       = "date is required"
	msgDateInvalid        = "date must be YYYY-MM-DD"
	msgDateInPast         = "date must not be in the past"
	msgStartRequired      = "start time is required"
	msgStartInvalid       = "start time must be HH:MM"
	msgEndRequired        = "end time is required"
	msgEndInvalid         = "end time must be HH:MM"
	msgStartBeforeEnd     = "start time must be before end time"
	msgRoomRequired       = "room is required"
	msgRoomUnknown        = "room is not recognized"
	msgRequesterRequired  = "requester is required"
	msgEventTitleRequired = "event title is required"
)

// validateReservationInput trims and normalizes input. today must already be
// in the location whose calendar decides the past-date rule.
func validateReservationInput(input ReservationInput, today time.Time) (ReservationInput, *ValidationError) {
	vErr := &ValidationError{}
	out := ReservationInput{
		Room:       reservation.Room(strings.TrimSpace(string(input.Room))),
		Requester:  strings.TrimSpace(input.Requester),
		EventTitle: strings.TrimSpace(input.EventTitle),
		Notes:      strings.TrimSpace(input.Notes),
	}

	if strings.TrimSpace(input.Date) == "" {
		vErr.add("date", msgDateRequired)
	} else if date, err := reservation.NormalizeDate(input.Date); err != nil {
		vErr.add("date", msgDateInvalid)
	} else {
		out.Date = date
		if reservation.IsPastDate(date, today) {
			vErr.add("date", msgDateInPast)
		}
	}

	start, startOK := validateClock(input.StartTime, "start_time", msgStartRequired, msgStartInvalid, vErr)
	end, endOK := validateClock(input.EndTime, "end_time", msgEndRequired, msgEndInvalid, vErr)
	if startOK && endOK {
		out.StartTime = reservation.FormatClock(start)
		out.EndTime = reservation.FormatClock(end)
		if start >= end {
			vErr.add("end_time", msgStartBeforeEnd)
		}
	}

	switch {
	case out.Room == "":
		vErr.add("room", msgRoomRequired)
	case !out.Room.Valid():
		vErr.add("room", msgRoomUnknown)
	}
	if out.Requester == "" {
		vErr.add("requester", msgRequesterRequired)
	}
	if out.EventTitle == "" {
		vErr.add("event_title", msgEventTitleRequired)
	}

	return out, vErr
}

func validateClock(value, field, requiredMsg, invalidMsg string, vErr *ValidationError) (int, bool) {
	if strings.TrimSpace(value) == "" {
		vErr.add(field, requiredMsg)
		return 0, false
	}
	minutes, err := reservation.ParseClock(value)
	if err != nil {
		vErr.add(field, invalidMsg)
		return 0, false
	}
	return minutes, true
}

func authenticated(principal Principal) bool {
	return strings.TrimSpace(principal.UserID) != "" && strings.TrimSpace(principal.Email) != ""
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func mapReservationRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrOverlap):
		return err
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrConflict):
		return fmt.Errorf("%w: %v", ErrOverlap, err)
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("reservation", "reservation violates a storage constraint")
		return vErr
	}
	return err
}
