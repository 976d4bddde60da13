package main

import (
	"context"
	"time"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/persistence/sqlite"
	"github.com/example/room-reservations/internal/reservation"
)

type reservationRepositoryAdapter struct {
	repo persistence.ReservationRepository
}

func newReservationRepositoryAdapter(repo persistence.ReservationRepository) *reservationRepositoryAdapter {
	return &reservationRepositoryAdapter{repo: repo}
}

func (a *reservationRepositoryAdapter) CreateReservation(ctx context.Context, record reservation.Reservation) (reservation.Reservation, error) {
	stored, err := a.repo.CreateReservation(ctx, toPersistenceReservation(record))
	if err != nil {
		return reservation.Reservation{}, err
	}
	return sqlite.ToDomain(stored), nil
}

func (a *reservationRepositoryAdapter) UpdateReservation(ctx context.Context, record reservation.Reservation) (reservation.Reservation, error) {
	stored, err := a.repo.UpdateReservation(ctx, toPersistenceReservation(record))
	if err != nil {
		return reservation.Reservation{}, err
	}
	return sqlite.ToDomain(stored), nil
}

func (a *reservationRepositoryAdapter) GetReservation(ctx context.Context, id string) (reservation.Reservation, error) {
	stored, err := a.repo.GetReservation(ctx, id)
	if err != nil {
		return reservation.Reservation{}, err
	}
	return sqlite.ToDomain(stored), nil
}

func (a *reservationRepositoryAdapter) DeleteReservation(ctx context.Context, id string) error {
	return a.repo.DeleteReservation(ctx, id)
}

func (a *reservationRepositoryAdapter) ListReservations(ctx context.Context, filter application.ReservationRepositoryFilter) ([]reservation.Reservation, error) {
	models, err := a.repo.ListReservations(ctx, persistence.ReservationFilter{
		Date:         filter.Date,
		Room:         filter.Room,
		CreatorEmail: filter.CreatorEmail,
	})
	if err != nil {
		return nil, err
	}
	records := make([]reservation.Reservation, 0, len(models))
	for _, model := range models {
		records = append(records, sqlite.ToDomain(model))
	}
	return records, nil
}

type sessionRepositoryAdapter struct {
	repo persistence.SessionRepository
}

func newSessionRepositoryAdapter(repo persistence.SessionRepository) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, token, revokedAt)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) RevokeUserSessions(ctx context.Context, userID string, revokedAt time.Time) error {
	return a.repo.RevokeUserSessions(ctx, userID, revokedAt)
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return a.repo.DeleteExpiredSessions(ctx, reference)
}

type credentialStoreAdapter struct {
	repo persistence.UserRepository
}

func newCredentialStoreAdapter(repo persistence.UserRepository) *credentialStoreAdapter {
	return &credentialStoreAdapter{repo: repo}
}

func (a *credentialStoreAdapter) CreateUser(ctx context.Context, credentials application.UserCredentials) error {
	return a.repo.CreateUser(ctx, toPersistenceUser(credentials.User, credentials.PasswordHash))
}

func (a *credentialStoreAdapter) GetUserCredentials(ctx context.Context, id string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return toUserCredentials(stored), nil
}

func (a *credentialStoreAdapter) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return toUserCredentials(stored), nil
}

func (a *credentialStoreAdapter) UpdatePasswordHash(ctx context.Context, userID, passwordHash string, updatedAt time.Time) error {
	current, err := a.repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	current.PasswordHash = passwordHash
	current.UpdatedAt = updatedAt
	return a.repo.UpdateUser(ctx, current)
}

func toUserCredentials(model persistence.User) application.UserCredentials {
	return application.UserCredentials{
		User: application.User{
			ID:          model.ID,
			Email:       model.Email,
			DisplayName: model.DisplayName,
			CreatedAt:   model.CreatedAt,
			UpdatedAt:   model.UpdatedAt,
		},
		PasswordHash: model.PasswordHash,
	}
}

func toPersistenceUser(user application.User, passwordHash string) persistence.User {
	return persistence.User{
		ID:           user.ID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		PasswordHash: passwordHash,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toPersistenceReservation(record reservation.Reservation) persistence.Reservation {
	return persistence.Reservation{
		ID:           record.ID,
		Date:         record.Date,
		StartTime:    record.StartTime,
		EndTime:      record.EndTime,
		Room:         string(record.Room),
		Requester:    record.Requester,
		EventTitle:   record.EventTitle,
		Notes:        record.Notes,
		Status:       record.Status,
		CreatorEmail: record.CreatorIdentity,
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}
}

func toApplicationSession(model persistence.Session) application.Session {
	return application.Session{
		ID:        model.ID,
		UserID:    model.UserID,
		Token:     model.Token,
		ExpiresAt: model.ExpiresAt,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
		RevokedAt: cloneTime(model.RevokedAt),
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:        session.ID,
		UserID:    session.UserID,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
		RevokedAt: cloneTime(session.RevokedAt),
	}
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
