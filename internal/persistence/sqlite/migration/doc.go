// Package migration applies versioned SQL files to a SQLite database.
//
// Migration files are named {version}_{description}.sql (for example
// "001_initial_schema.sql") and are read from an fs.FS, usually an embedded
// directory. Each file runs inside its own transaction and is recorded in the
// schema_migrations table so it is never applied twice.
//
// Example usage:
//
//	executor := NewSQLiteExecutor(db)
//	manager := NewMigrationManager(NewFileScanner(), executor, migrationsFS, logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
