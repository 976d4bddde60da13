package application

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/reservation"
)

var (
	// Monday 2025-03-10 09:00 in São Paulo.
	testNow      = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	testLocation = time.FixedZone("BRT", -3*60*60)

	alice = Principal{UserID: "user-alice", Email: "alice@ece.com"}
	bruno = Principal{UserID: "user-bruno", Email: "bruno@ece.com"}
	admin = Principal{UserID: "user-admin", Email: "admin@ece.com", IsAdmin: true}
)

func fixedNow() time.Time { return testNow }

func sequence(prefix string) func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func validInput() ReservationInput {
	return ReservationInput{
		Date:       "2025-03-10",
		StartTime:  "09:00",
		EndTime:    "10:00",
		Room:       reservation.RoomAuditorium,
		Requester:  "Ana Silva",
		EventTitle: "Palestra",
	}
}

// reservationRepoStub mimics the store: overlap checks happen on write and
// surface as persistence.ErrConflict.
type reservationRepoStub struct {
	mu       sync.Mutex
	records  map[string]reservation.Reservation
	order    []string
	creates  int
	updates  int
	deletes  int
	listErr  error
	writeErr error
}

func newReservationRepoStub(seed ...reservation.Reservation) *reservationRepoStub {
	stub := &reservationRepoStub{records: make(map[string]reservation.Reservation)}
	for _, r := range seed {
		stub.records[r.ID] = r
		stub.order = append(stub.order, r.ID)
	}
	return stub
}

func (s *reservationRepoStub) all() []reservation.Reservation {
	out := make([]reservation.Reservation, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id])
	}
	return out
}

func (s *reservationRepoStub) CreateReservation(_ context.Context, record reservation.Reservation) (reservation.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if s.writeErr != nil {
		return reservation.Reservation{}, s.writeErr
	}
	if _, exists := s.records[record.ID]; exists {
		return reservation.Reservation{}, persistence.ErrDuplicate
	}
	if reservation.IsOverlapping(record, s.all(), "") {
		return reservation.Reservation{}, fmt.Errorf("%w: overlap", persistence.ErrConflict)
	}
	s.records[record.ID] = record
	s.order = append(s.order, record.ID)
	return record, nil
}

func (s *reservationRepoStub) UpdateReservation(_ context.Context, record reservation.Reservation) (reservation.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	if s.writeErr != nil {
		return reservation.Reservation{}, s.writeErr
	}
	existing, ok := s.records[record.ID]
	if !ok {
		return reservation.Reservation{}, persistence.ErrNotFound
	}
	if reservation.IsOverlapping(record, s.all(), record.ID) {
		return reservation.Reservation{}, fmt.Errorf("%w: overlap", persistence.ErrConflict)
	}
	record.CreatorIdentity = existing.CreatorIdentity
	record.CreatedAt = existing.CreatedAt
	s.records[record.ID] = record
	return record, nil
}

func (s *reservationRepoStub) GetReservation(_ context.Context, id string) (reservation.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return reservation.Reservation{}, persistence.ErrNotFound
	}
	return record, nil
}

func (s *reservationRepoStub) DeleteReservation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	if _, ok := s.records[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.records, id)
	s.order = slices.DeleteFunc(s.order, func(candidate string) bool { return candidate == id })
	return nil
}

func (s *reservationRepoStub) ListReservations(_ context.Context, filter ReservationRepositoryFilter) ([]reservation.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := []reservation.Reservation{}
	for _, r := range s.all() {
		if filter.Date != "" && r.Date != filter.Date {
			continue
		}
		if filter.Room != "" && string(r.Room) != filter.Room {
			continue
		}
		if filter.CreatorEmail != "" && !strings.EqualFold(r.CreatorIdentity, filter.CreatorEmail) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// writerStub records every call a mirror forwards.
type writerStub struct {
	mu      sync.Mutex
	creates []CreateReservationParams
	updates []UpdateReservationParams
	deletes []string
	err     error
}

func (w *writerStub) CreateReservation(_ context.Context, params CreateReservationParams) (reservation.Reservation, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.creates = append(w.creates, params)
	if w.err != nil {
		return reservation.Reservation{}, w.err
	}
	return reservation.Reservation{ID: "created"}, nil
}

func (w *writerStub) UpdateReservation(_ context.Context, params UpdateReservationParams) (reservation.Reservation, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.updates = append(w.updates, params)
	if w.err != nil {
		return reservation.Reservation{}, w.err
	}
	return reservation.Reservation{ID: params.ReservationID}, nil
}

func (w *writerStub) DeleteReservation(_ context.Context, _ Principal, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.deletes = append(w.deletes, id)
	return w.err
}

func (w *writerStub) calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.creates) + len(w.updates) + len(w.deletes)
}

type credentialStoreStub struct {
	mu        sync.Mutex
	byID      map[string]UserCredentials
	createErr error
	updateErr error
}

func newCredentialStoreStub() *credentialStoreStub {
	return &credentialStoreStub{byID: make(map[string]UserCredentials)}
}

func (c *credentialStoreStub) CreateUser(_ context.Context, creds UserCredentials) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createErr != nil {
		return c.createErr
	}
	for _, existing := range c.byID {
		if strings.EqualFold(existing.User.Email, creds.User.Email) {
			return persistence.ErrDuplicate
		}
	}
	c.byID[creds.User.ID] = creds
	return nil
}

func (c *credentialStoreStub) GetUserCredentials(_ context.Context, id string) (UserCredentials, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	creds, ok := c.byID[id]
	if !ok {
		return UserCredentials{}, persistence.ErrNotFound
	}
	return creds, nil
}

func (c *credentialStoreStub) GetUserCredentialsByEmail(_ context.Context, email string) (UserCredentials, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, creds := range c.byID {
		if strings.EqualFold(creds.User.Email, email) {
			return creds, nil
		}
	}
	return UserCredentials{}, persistence.ErrNotFound
}

func (c *credentialStoreStub) UpdatePasswordHash(_ context.Context, userID, hash string, updatedAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.updateErr != nil {
		return c.updateErr
	}
	creds, ok := c.byID[userID]
	if !ok {
		return persistence.ErrNotFound
	}
	creds.PasswordHash = hash
	creds.User.UpdatedAt = updatedAt
	c.byID[userID] = creds
	return nil
}

type sessionRepoStub struct {
	mu          sync.Mutex
	sessions    map[string]Session
	revokedAll  []string
	deleteCalls []time.Time
}

func newSessionRepoStub() *sessionRepoStub {
	return &sessionRepoStub{sessions: make(map[string]Session)}
}

func (s *sessionRepoStub) CreateSession(_ context.Context, session Session) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.Token]; exists {
		return Session{}, persistence.ErrDuplicate
	}
	s.sessions[session.Token] = session
	return session, nil
}

func (s *sessionRepoStub) GetSession(_ context.Context, token string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return Session{}, persistence.ErrNotFound
	}
	return session, nil
}

func (s *sessionRepoStub) RevokeSession(_ context.Context, token string, revokedAt time.Time) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return Session{}, persistence.ErrNotFound
	}
	session.RevokedAt = &revokedAt
	s.sessions[token] = session
	return session, nil
}

func (s *sessionRepoStub) RevokeUserSessions(_ context.Context, userID string, revokedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revokedAll = append(s.revokedAll, userID)
	for token, session := range s.sessions {
		if session.UserID == userID && session.RevokedAt == nil {
			session.RevokedAt = &revokedAt
			s.sessions[token] = session
		}
	}
	return nil
}

func (s *sessionRepoStub) DeleteExpiredSessions(_ context.Context, reference time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls = append(s.deleteCalls, reference)
	return nil
}

type mailerStub struct {
	mu       sync.Mutex
	messages []PasswordResetMessage
	err      error
}

func (m *mailerStub) SendPasswordReset(_ context.Context, message PasswordResetMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, message)
	return nil
}

func (m *mailerStub) last() PasswordResetMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return PasswordResetMessage{}
	}
	return m.messages[len(m.messages)-1]
}

type adminSet map[string]bool

func (a adminSet) IsAdmin(email string) bool { return a[strings.ToLower(email)] }
