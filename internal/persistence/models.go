package persistence

import "time"

// User represents an account that can sign in.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Reservation is a stored room booking. LegacySlot carries the older
// single-string time field until the row is normalized; canonical rows leave
// it empty and fill StartTime and EndTime.
type Reservation struct {
	ID           string
	Date         string
	StartTime    string
	EndTime      string
	LegacySlot   string
	Room         string
	Requester    string
	EventTitle   string
	Notes        string
	Status       string
	CreatorEmail string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session represents an authentication session persisted for a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// LegacyReport summarizes a legacy normalization run.
type LegacyReport struct {
	Converted int
	Failed    map[string]string
}
