package migration

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(InMemoryTestSQLiteConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFileScanner_ScanMigrations(t *testing.T) {
	tests := []struct {
		name          string
		files         fstest.MapFS
		expectedOrder []string
		expectErr     error
	}{
		{
			name: "orders by numeric version",
			files: fstest.MapFS{
				"010_add_indexes.sql":    {Data: []byte("CREATE INDEX idx ON users(email);")},
				"001_initial_schema.sql": {Data: []byte("CREATE TABLE users (id TEXT PRIMARY KEY);")},
				"002_add_rooms.sql":      {Data: []byte("CREATE TABLE rooms (id TEXT PRIMARY KEY);")},
			},
			expectedOrder: []string{"001", "002", "010"},
		},
		{
			name: "ignores non-SQL files and walks subdirectories",
			files: fstest.MapFS{
				"README.md":                  {Data: []byte("# notes")},
				"core/001_initial.sql":       {Data: []byte("CREATE TABLE a (id TEXT);")},
				"extra/002_second_table.sql": {Data: []byte("CREATE TABLE b (id TEXT);")},
			},
			expectedOrder: []string{"001", "002"},
		},
		{
			name:          "empty filesystem",
			files:         fstest.MapFS{},
			expectedOrder: nil,
		},
		{
			name: "duplicate versions",
			files: fstest.MapFS{
				"001_first.sql":  {Data: []byte("CREATE TABLE a (id TEXT);")},
				"001_second.sql": {Data: []byte("CREATE TABLE b (id TEXT);")},
			},
			expectErr: ErrDuplicateVersion,
		},
		{
			name: "bad file name",
			files: fstest.MapFS{
				"initial.sql": {Data: []byte("CREATE TABLE a (id TEXT);")},
			},
			expectErr: ErrInvalidMigrationFile,
		},
		{
			name: "empty file",
			files: fstest.MapFS{
				"001_empty.sql": {Data: []byte("  \n")},
			},
			expectErr: ErrInvalidMigrationFile,
		},
		{
			name: "unbalanced parentheses",
			files: fstest.MapFS{
				"001_broken.sql": {Data: []byte("CREATE TABLE a (id TEXT;")},
			},
			expectErr: ErrInvalidMigrationFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			migrations, err := NewFileScanner().ScanMigrations(tt.files)
			if tt.expectErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.expectErr), "got %v", err)
				return
			}
			require.NoError(t, err)

			var versions []string
			for _, m := range migrations {
				versions = append(versions, m.Version)
				assert.Len(t, m.Checksum, 64)
			}
			assert.Equal(t, tt.expectedOrder, versions)
		})
	}
}

func TestParseMigrationFile_Description(t *testing.T) {
	files := fstest.MapFS{
		"001_initial_schema.sql": {Data: []byte("-- Migration: 001\n-- Description: Create users table\nCREATE TABLE users (id TEXT);")},
		"002_add_rooms.sql":      {Data: []byte("CREATE TABLE rooms (id TEXT);")},
	}
	scanner := NewFileScanner()

	m, err := scanner.ParseMigrationFile(files, "001_initial_schema.sql")
	require.NoError(t, err)
	assert.Equal(t, "Create users table", m.Description)

	m, err = scanner.ParseMigrationFile(files, "002_add_rooms.sql")
	require.NoError(t, err)
	assert.Equal(t, "add rooms", m.Description)
}

func TestSplitStatements(t *testing.T) {
	statements := splitStatements(`
-- leading comment
CREATE TABLE a (id TEXT);

-- between
CREATE INDEX idx_a ON a(id);
`)
	assert.Equal(t, []string{"CREATE TABLE a (id TEXT)", "CREATE INDEX idx_a ON a(id)"}, statements)
}

func TestSQLiteConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SQLiteConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*SQLiteConfig) {}},
		{name: "empty DSN", mutate: func(c *SQLiteConfig) { c.DSN = "" }, wantErr: true},
		{name: "query in DSN", mutate: func(c *SQLiteConfig) { c.DSN = "x.db?mode=ro" }, wantErr: true},
		{name: "bad journal", mutate: func(c *SQLiteConfig) { c.JournalMode = "FAST" }, wantErr: true},
		{name: "bad synchronous", mutate: func(c *SQLiteConfig) { c.Synchronous = "SOMETIMES" }, wantErr: true},
		{name: "bad txlock", mutate: func(c *SQLiteConfig) { c.TxLock = "eager" }, wantErr: true},
		{name: "negative timeout", mutate: func(c *SQLiteConfig) { c.BusyTimeout = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSQLiteConfig("data/reservations.db")
			tt.mutate(&cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestConnectionStringCarriesPragmas(t *testing.T) {
	dsn := DefaultSQLiteConfig("reservations.db").ConnectionString()
	assert.Contains(t, dsn, "reservations.db?")
	assert.Contains(t, dsn, "_pragma=foreign_keys%281%29")
	assert.Contains(t, dsn, "_pragma=journal_mode%28WAL%29")
	assert.Contains(t, dsn, "_txlock=immediate")
}

func TestMigrationManager_RunMigrations(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	files := fstest.MapFS{
		"001_initial.sql": {Data: []byte("CREATE TABLE users (id TEXT PRIMARY KEY, email TEXT NOT NULL);")},
		"002_rooms.sql":   {Data: []byte("CREATE TABLE rooms (id TEXT PRIMARY KEY);\nINSERT INTO rooms (id) VALUES ('a');")},
	}
	manager := NewMigrationManager(NewFileScanner(), NewSQLiteExecutor(db), files, quietLogger())

	require.NoError(t, manager.RunMigrations(ctx))

	versions, err := manager.GetAppliedVersions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"001", "002"}, versions)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM rooms").Scan(&count))
	assert.Equal(t, 1, count)

	// Second run is a no-op.
	require.NoError(t, manager.RunMigrations(ctx))
	status, err := manager.GetMigrationStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "002", status.CurrentVersion)
	assert.Zero(t, status.PendingCount)
	assert.Len(t, status.AppliedMigrations, 2)
}

func TestMigrationManager_FailedMigrationRollsBack(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	files := fstest.MapFS{
		"001_initial.sql": {Data: []byte("CREATE TABLE users (id TEXT PRIMARY KEY);")},
		"002_broken.sql":  {Data: []byte("CREATE TABLE rooms (id TEXT PRIMARY KEY);\nINSERT INTO missing_table VALUES (1);")},
	}
	manager := NewMigrationManager(NewFileScanner(), NewSQLiteExecutor(db), files, quietLogger())

	err := manager.RunMigrations(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMigrationFailed))

	versions, err := manager.GetAppliedVersions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"001"}, versions)

	var name string
	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='rooms'").Scan(&name)
	assert.ErrorIs(t, err, sql.ErrNoRows, "partial migration must be rolled back")
}

func TestMigrationManager_DetectsSequenceProblems(t *testing.T) {
	ctx := context.Background()

	t.Run("gap", func(t *testing.T) {
		db := openTestDB(t)
		files := fstest.MapFS{
			"001_a.sql": {Data: []byte("CREATE TABLE a (id TEXT);")},
			"003_c.sql": {Data: []byte("CREATE TABLE c (id TEXT);")},
		}
		manager := NewMigrationManager(NewFileScanner(), NewSQLiteExecutor(db), files, quietLogger())
		assert.ErrorIs(t, manager.RunMigrations(ctx), ErrVersionConflict)
	})

	t.Run("edited after apply", func(t *testing.T) {
		db := openTestDB(t)
		files := fstest.MapFS{"001_a.sql": {Data: []byte("CREATE TABLE a (id TEXT);")}}
		executor := NewSQLiteExecutor(db)
		require.NoError(t, NewMigrationManager(NewFileScanner(), executor, files, quietLogger()).RunMigrations(ctx))

		files["001_a.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE a (id TEXT, extra TEXT);")}
		_, err := NewMigrationManager(NewFileScanner(), executor, files, quietLogger()).GetPendingMigrations(ctx)
		assert.ErrorIs(t, err, ErrChecksumMismatch)
	})
}
