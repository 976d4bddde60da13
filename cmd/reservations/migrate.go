package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/example/room-reservations/internal/persistence/sqlite/migration"
)

func newMigrateCommand(opts *globalOptions) *cobra.Command {
	var statusOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica as migrações pendentes do banco SQLite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.environment(cmd)
			if err != nil {
				return err
			}
			storage, err := openStorage(cfg, logger)
			if err != nil {
				return err
			}
			defer closeStorage(storage, logger)

			ctx := cmd.Context()
			if !statusOnly {
				if err := storage.Migrate(ctx); err != nil {
					return fmt.Errorf("failed to apply migrations: %w", err)
				}
			}
			status, err := storage.MigrationStatus(ctx)
			if err != nil {
				return fmt.Errorf("failed to read migration status: %w", err)
			}
			printMigrationStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "apenas mostra o estado sem aplicar nada")
	return cmd
}

func printMigrationStatus(w io.Writer, status *migration.MigrationStatus) {
	current := status.CurrentVersion
	if current == "" {
		current = "-"
	}
	fmt.Fprintf(w, "Versão atual: %s\n", current)
	fmt.Fprintf(w, "Migrações aplicadas: %d\n", len(status.AppliedMigrations))
	for _, applied := range status.AppliedMigrations {
		fmt.Fprintf(w, "  %s  %s  %s\n", applied.Version, applied.AppliedAt.Format("2006-01-02 15:04:05"), applied.ExecutionTime)
	}
	fmt.Fprintf(w, "Migrações pendentes: %d\n", status.PendingCount)
	for _, pending := range status.PendingMigrations {
		fmt.Fprintf(w, "  %s  %s\n", pending.Version, pending.Description)
	}
}
