package application

import (
	"time"

	"github.com/example/room-reservations/internal/reservation"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	Email   string
	IsAdmin bool
}

// ReservationInput captures caller provided reservation fields.
type ReservationInput struct {
	Date       string
	StartTime  string
	EndTime    string
	Room       reservation.Room
	Requester  string
	EventTitle string
	Notes      string
}

// CreateReservationParams wraps the data required to create a reservation.
type CreateReservationParams struct {
	Principal Principal
	Input     ReservationInput
}

// UpdateReservationParams wraps the data required to update an existing reservation.
type UpdateReservationParams struct {
	Principal     Principal
	ReservationID string
	Input         ReservationInput
}

// ListReservationsParams wraps the data required to list reservations. Mine
// restricts the result to reservations created by the principal.
type ListReservationsParams struct {
	Principal Principal
	Filter    reservation.Filter
	Mine      bool
}

// User represents an account exposed by the application services. IsAdmin is
// derived from the admin allow-list, never stored.
type User struct {
	ID          string
	Email       string
	DisplayName string
	IsAdmin     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// Session represents an authenticated session issued to a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// SignUpParams captures the data required to register an account.
type SignUpParams struct {
	Email       string
	Password    string
	DisplayName string
}

// SignInParams captures the data required to authenticate a user.
type SignInParams struct {
	Email    string
	Password string
}

// AuthResult captures the outcome of a successful sign-up or sign-in.
type AuthResult struct {
	User    User
	Session Session
}

// ConfirmPasswordResetParams captures the data required to set a new password
// from a reset token.
type ConfirmPasswordResetParams struct {
	Token       string
	NewPassword string
}
