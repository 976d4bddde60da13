package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/reservation"
)

const reservationColumns = `id, date, start_time, end_time, legacy_slot, room, requester, event_title, notes, status, creator_email, created_at, updated_at`

// ReservationRepository implements persistence.ReservationRepository using SQLite.
// Writes check for overlapping bookings inside the same transaction that
// stores the row, so two concurrent writers cannot both claim a slot.
type ReservationRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper

	// writeMu serializes writers inside this process; immediate transactions
	// cover writers in other processes.
	writeMu sync.Mutex
}

// NewReservationRepository creates a new SQLite reservation repository
func NewReservationRepository(pool *ConnectionPool) *ReservationRepository {
	return &ReservationRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

// CreateReservation inserts a reservation unless it overlaps a stored one.
func (r *ReservationRepository) CreateReservation(ctx context.Context, res persistence.Reservation) (persistence.Reservation, error) {
	if res.ID == "" || strings.TrimSpace(res.CreatorEmail) == "" {
		return persistence.Reservation{}, persistence.ErrConstraintViolation
	}
	res.CreatorEmail = normalizeEmail(res.CreatorEmail)
	stampTimes(&res.CreatedAt, &res.UpdatedAt)

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	err := r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if err := r.checkOverlap(ctx, tx, res, ""); err != nil {
				return err
			}

			_, err := r.helper.ExecTx(ctx, tx, `
				INSERT INTO reservations (`+reservationColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				res.ID,
				res.Date,
				res.StartTime,
				res.EndTime,
				res.LegacySlot,
				res.Room,
				res.Requester,
				res.EventTitle,
				res.Notes,
				res.Status,
				res.CreatorEmail,
				formatTimestamp(res.CreatedAt),
				formatTimestamp(res.UpdatedAt),
			)
			return r.mapper.MapError(err)
		})
	})
	if err != nil {
		return persistence.Reservation{}, err
	}
	return res, nil
}

// UpdateReservation replaces the mutable fields of a reservation. The creator
// and creation time stored in the database always win over the input.
func (r *ReservationRepository) UpdateReservation(ctx context.Context, res persistence.Reservation) (persistence.Reservation, error) {
	if res.ID == "" {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	stampTimes(nil, &res.UpdatedAt)

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	var stored persistence.Reservation
	err := r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			current, err := scanReservation(r.helper.QueryRowTx(ctx, tx,
				`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, res.ID))
			if err != nil {
				return r.mapper.MapError(err)
			}

			res.CreatorEmail = current.CreatorEmail
			res.CreatedAt = current.CreatedAt
			if err := r.checkOverlap(ctx, tx, res, res.ID); err != nil {
				return err
			}

			_, err = r.helper.ExecTx(ctx, tx, `
				UPDATE reservations
				SET date = ?, start_time = ?, end_time = ?, legacy_slot = ?, room = ?, requester = ?,
				    event_title = ?, notes = ?, status = ?, updated_at = ?
				WHERE id = ?`,
				res.Date,
				res.StartTime,
				res.EndTime,
				res.LegacySlot,
				res.Room,
				res.Requester,
				res.EventTitle,
				res.Notes,
				res.Status,
				formatTimestamp(res.UpdatedAt),
				res.ID,
			)
			if err != nil {
				return r.mapper.MapError(err)
			}
			stored = res
			return nil
		})
	})
	if err != nil {
		return persistence.Reservation{}, err
	}
	return stored, nil
}

// GetReservation retrieves a reservation by ID
func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	if id == "" {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	res, err := scanReservation(r.helper.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
	if err != nil {
		return persistence.Reservation{}, r.mapper.MapError(err)
	}
	return res, nil
}

// DeleteReservation removes a reservation by ID
func (r *ReservationRepository) DeleteReservation(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	return r.retry.WithRetry(ctx, func() error {
		result, err := r.helper.Exec(ctx, `DELETE FROM reservations WHERE id = ?`, id)
		if err != nil {
			return r.mapper.MapError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

// ListReservations returns the reservations matching filter ordered by date,
// start time and creation time.
func (r *ReservationRepository) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.Date != "" {
		conditions = append(conditions, "date = ?")
		args = append(args, filter.Date)
	}
	if filter.Room != "" {
		conditions = append(conditions, "room = ?")
		args = append(args, filter.Room)
	}
	if filter.CreatorEmail != "" {
		conditions = append(conditions, "creator_email = ?")
		args = append(args, normalizeEmail(filter.CreatorEmail))
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date ASC, start_time ASC, created_at ASC, id ASC"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	return collectReservations(rows)
}

// NormalizeLegacy rewrites every row still carrying a legacy time slot into
// explicit start and end times. Rows whose slot cannot be parsed are left
// untouched and reported by ID.
func (r *ReservationRepository) NormalizeLegacy(ctx context.Context) (persistence.LegacyReport, error) {
	report := persistence.LegacyReport{Failed: map[string]string{}}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		rows, err := r.helper.QueryTx(ctx, tx, `
			SELECT id, legacy_slot FROM reservations
			WHERE legacy_slot != '' AND (start_time = '' OR end_time = '')
			ORDER BY id`)
		if err != nil {
			return r.mapper.MapError(err)
		}

		type slot struct{ id, value string }
		var pending []slot
		for rows.Next() {
			var s slot
			if err := rows.Scan(&s.id, &s.value); err != nil {
				rows.Close()
				return r.mapper.MapError(err)
			}
			pending = append(pending, s)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return r.mapper.MapError(err)
		}
		rows.Close()

		updatedAt := formatTimestamp(time.Now())
		for _, s := range pending {
			start, end, err := reservation.ParseLegacySlot(s.value)
			if err != nil {
				report.Failed[s.id] = err.Error()
				continue
			}
			if _, err := r.helper.ExecTx(ctx, tx, `
				UPDATE reservations
				SET start_time = ?, end_time = ?, legacy_slot = '', updated_at = ?
				WHERE id = ?`, start, end, updatedAt, s.id); err != nil {
				return r.mapper.MapError(err)
			}
			report.Converted++
		}
		return nil
	})
	if err != nil {
		return persistence.LegacyReport{}, err
	}
	return report, nil
}

// checkOverlap loads the bookings of the same room and date inside tx and
// returns ErrConflict when candidate overlaps one of them.
func (r *ReservationRepository) checkOverlap(ctx context.Context, tx *sql.Tx, candidate persistence.Reservation, excludeID string) error {
	rows, err := r.helper.QueryTx(ctx, tx,
		`SELECT `+reservationColumns+` FROM reservations WHERE room = ? AND date = ?`,
		candidate.Room, candidate.Date)
	if err != nil {
		return r.mapper.MapError(err)
	}
	defer rows.Close()

	existing, err := collectReservations(rows)
	if err != nil {
		return err
	}

	others := make([]reservation.Reservation, 0, len(existing))
	for _, e := range existing {
		others = append(others, ToDomain(e))
	}
	if conflict, found := reservation.FindOverlap(ToDomain(candidate), others, excludeID); found {
		return fmt.Errorf("%w: %s %s-%s", persistence.ErrConflict, conflict.ID, conflict.StartTime, conflict.EndTime)
	}
	return nil
}

// ToDomain converts a stored row into the domain record. Rows that still
// carry a legacy slot get their times parsed on the fly.
func ToDomain(res persistence.Reservation) reservation.Reservation {
	start, end := res.StartTime, res.EndTime
	if (start == "" || end == "") && res.LegacySlot != "" {
		if s, e, err := reservation.ParseLegacySlot(res.LegacySlot); err == nil {
			start, end = s, e
		}
	}
	return reservation.Reservation{
		ID:              res.ID,
		Date:            res.Date,
		StartTime:       start,
		EndTime:         end,
		Room:            reservation.Room(res.Room),
		Requester:       res.Requester,
		EventTitle:      res.EventTitle,
		Notes:           res.Notes,
		Status:          res.Status,
		CreatorIdentity: res.CreatorEmail,
		CreatedAt:       res.CreatedAt,
		UpdatedAt:       res.UpdatedAt,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (persistence.Reservation, error) {
	var res persistence.Reservation
	var createdAt, updatedAt string
	err := row.Scan(
		&res.ID,
		&res.Date,
		&res.StartTime,
		&res.EndTime,
		&res.LegacySlot,
		&res.Room,
		&res.Requester,
		&res.EventTitle,
		&res.Notes,
		&res.Status,
		&res.CreatorEmail,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Reservation{}, persistence.ErrNotFound
		}
		return persistence.Reservation{}, err
	}
	if res.CreatedAt, err = parseTimestamp("created_at", createdAt); err != nil {
		return persistence.Reservation{}, err
	}
	if res.UpdatedAt, err = parseTimestamp("updated_at", updatedAt); err != nil {
		return persistence.Reservation{}, err
	}
	return res, nil
}

func collectReservations(rows *sql.Rows) ([]persistence.Reservation, error) {
	reservations := []persistence.Reservation{}
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reservations, nil
}
