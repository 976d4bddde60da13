// Package sqlite implements the persistence repositories on SQLite.
package sqlite

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/example/room-reservations/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migrations returns the schema migrations shipped with the binary.
func Migrations() fs.FS {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		panic(fmt.Sprintf("sqlite: embedded migrations: %v", err))
	}
	return sub
}

// Storage owns the connection pool and the repositories built on it.
type Storage struct {
	pool   *ConnectionPool
	logger *slog.Logger

	users        *UserRepository
	reservations *ReservationRepository
	sessions     *SessionRepository
}

// Open connects to the database described by config. Call Migrate before
// using the repositories on a fresh database.
func Open(config migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	return &Storage{
		pool:         pool,
		logger:       logger,
		users:        NewUserRepository(pool),
		reservations: NewReservationRepository(pool),
		sessions:     NewSessionRepository(pool),
	}, nil
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}

// Migrate applies every pending embedded migration.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := migration.NewMigrationManager(
		migration.NewFileScanner(),
		migration.NewSQLiteExecutor(s.pool.DB()),
		Migrations(),
		s.logger,
	)
	if err := manager.RunMigrations(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// MigrationStatus reports applied and pending migrations.
func (s *Storage) MigrationStatus(ctx context.Context) (*migration.MigrationStatus, error) {
	manager := migration.NewMigrationManager(
		migration.NewFileScanner(),
		migration.NewSQLiteExecutor(s.pool.DB()),
		Migrations(),
		s.logger,
	)
	return manager.GetMigrationStatus(ctx)
}

// Users returns the user repository.
func (s *Storage) Users() *UserRepository { return s.users }

// Reservations returns the reservation repository.
func (s *Storage) Reservations() *ReservationRepository { return s.reservations }

// Sessions returns the session repository.
func (s *Storage) Sessions() *SessionRepository { return s.sessions }

// Pool exposes the connection pool for tooling and tests.
func (s *Storage) Pool() *ConnectionPool { return s.pool }
