package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique column already holds the value.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConflict is returned when a reservation write would overlap a stored booking.
	ErrConflict = errors.New("persistence: reservation overlaps an existing booking")
	// ErrConstraintViolation is returned when a record is missing required values.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
)
