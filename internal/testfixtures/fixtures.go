// Package testfixtures provides deterministic builders, clocks, identifier
// generators, fakes and a SQLite harness shared by tests across packages.
package testfixtures

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/reservation"
)

var (
	userCounter        uint64
	reservationCounter uint64
)

// ReferenceDate is the calendar day of ReferenceTime in ReferenceLocation.
const ReferenceDate = "2025-03-10"

var (
	referenceTime     = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	referenceLocation = time.FixedZone("America/Sao_Paulo", -3*60*60)
)

// ReferenceTime returns the canonical baseline timestamp used by fixtures,
// 09:00 on ReferenceDate in São Paulo.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceLocation is the fixed -03:00 zone used for calendar rules in tests.
func ReferenceLocation() *time.Location {
	return referenceLocation
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic account that can be materialised
// for application or persistence tests.
type UserFixture struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(-time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		ID:           id,
		Email:        fmt.Sprintf("%s@ece.com", id),
		DisplayName:  fmt.Sprintf("Usuário %03d", idx),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithUserPasswordHash overrides the stored password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) {
		f.PasswordHash = hash
	}
}

// WithUserAdmin marks the principal built from the fixture as an administrator.
func WithUserAdmin(isAdmin bool) UserOption {
	return func(f *UserFixture) {
		f.IsAdmin = isAdmin
	}
}

// Principal converts the fixture into an application principal.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID, Email: strings.ToLower(f.Email), IsAdmin: f.IsAdmin}
}

// Application converts the fixture into an application user.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:          f.ID,
		Email:       strings.ToLower(f.Email),
		DisplayName: f.DisplayName,
		IsAdmin:     f.IsAdmin,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Persistence converts the fixture into a persistence user.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Email:        f.Email,
		DisplayName:  f.DisplayName,
		PasswordHash: f.PasswordHash,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// -------------------------- Reservation fixtures --------------------------

// ReservationFixture is a deterministic booking. The defaults describe the
// 09:00-10:00 auditorium slot on ReferenceDate.
type ReservationFixture struct {
	ID         string
	Date       string
	StartTime  string
	EndTime    string
	LegacySlot string
	Room       reservation.Room
	Requester  string
	EventTitle string
	Notes      string
	Creator    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ReservationOption configures the generated reservation fixture.
type ReservationOption func(*ReservationFixture)

// NewReservationFixture returns a deterministic reservation fixture with optional overrides.
func NewReservationFixture(opts ...ReservationOption) ReservationFixture {
	idx := atomic.AddUint64(&reservationCounter, 1)
	created := referenceTime.Add(-time.Hour).Add(time.Duration(idx) * time.Second)
	fixture := ReservationFixture{
		ID:         fmt.Sprintf("res-%03d", idx),
		Date:       ReferenceDate,
		StartTime:  "09:00",
		EndTime:    "10:00",
		Room:       reservation.RoomAuditorium,
		Requester:  "Ana Silva",
		EventTitle: fmt.Sprintf("Evento %03d", idx),
		Creator:    "ana@ece.com",
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithReservationID overrides the generated ID.
func WithReservationID(id string) ReservationOption {
	return func(f *ReservationFixture) {
		f.ID = id
	}
}

// WithReservationSlot sets date and interval.
func WithReservationSlot(date, start, end string) ReservationOption {
	return func(f *ReservationFixture) {
		f.Date, f.StartTime, f.EndTime = date, start, end
	}
}

// WithLegacySlot replaces the interval with a single legacy time field.
func WithLegacySlot(slot string) ReservationOption {
	return func(f *ReservationFixture) {
		f.LegacySlot = slot
		f.StartTime, f.EndTime = "", ""
	}
}

// WithReservationRoom overrides the room.
func WithReservationRoom(room reservation.Room) ReservationOption {
	return func(f *ReservationFixture) {
		f.Room = room
	}
}

// WithReservationRequester overrides the requester name.
func WithReservationRequester(requester string) ReservationOption {
	return func(f *ReservationFixture) {
		f.Requester = requester
	}
}

// WithReservationNotes overrides the notes.
func WithReservationNotes(notes string) ReservationOption {
	return func(f *ReservationFixture) {
		f.Notes = notes
	}
}

// WithReservationCreator overrides the creator email.
func WithReservationCreator(email string) ReservationOption {
	return func(f *ReservationFixture) {
		f.Creator = email
	}
}

// WithReservationCreatedAt overrides both timestamps.
func WithReservationCreatedAt(t time.Time) ReservationOption {
	return func(f *ReservationFixture) {
		f.CreatedAt, f.UpdatedAt = t, t
	}
}

// Domain converts the fixture into the canonical reservation record.
func (f ReservationFixture) Domain() reservation.Reservation {
	return reservation.Reservation{
		ID:              f.ID,
		Date:            f.Date,
		StartTime:       f.StartTime,
		EndTime:         f.EndTime,
		Room:            f.Room,
		Requester:       f.Requester,
		EventTitle:      f.EventTitle,
		Notes:           f.Notes,
		Status:          reservation.StatusReserved,
		CreatorIdentity: f.Creator,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
	}
}

// Persistence converts the fixture into a stored row.
func (f ReservationFixture) Persistence() persistence.Reservation {
	return persistence.Reservation{
		ID:           f.ID,
		Date:         f.Date,
		StartTime:    f.StartTime,
		EndTime:      f.EndTime,
		LegacySlot:   f.LegacySlot,
		Room:         string(f.Room),
		Requester:    f.Requester,
		EventTitle:   f.EventTitle,
		Notes:        f.Notes,
		Status:       reservation.StatusReserved,
		CreatorEmail: f.Creator,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// Input converts the fixture into caller supplied fields.
func (f ReservationFixture) Input() application.ReservationInput {
	return application.ReservationInput{
		Date:       f.Date,
		StartTime:  f.StartTime,
		EndTime:    f.EndTime,
		Room:       f.Room,
		Requester:  f.Requester,
		EventTitle: f.EventTitle,
		Notes:      f.Notes,
	}
}

// Reservations converts fixtures into canonical records, preserving order.
func Reservations(fixtures ...ReservationFixture) []reservation.Reservation {
	out := make([]reservation.Reservation, 0, len(fixtures))
	for _, f := range fixtures {
		out = append(out, f.Domain())
	}
	return out
}
