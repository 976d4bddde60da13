package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

func newNormalizeCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize-legacy",
		Short: "Converte reservas antigas com campo único de horário para início e fim",
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
			if err := storage.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to apply migrations: %w", err)
			}
			report, err := storage.Reservations().NormalizeLegacy(ctx)
			if err != nil {
				return fmt.Errorf("failed to normalize legacy reservations: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Reservas convertidas: %d\n", report.Converted)
			if len(report.Failed) == 0 {
				return nil
			}
			fmt.Fprintf(out, "Reservas não convertidas: %d\n", len(report.Failed))
			ids := make([]string, 0, len(report.Failed))
			for id := range report.Failed {
				ids = append(ids, id)
			}
			slices.Sort(ids)
			for _, id := range ids {
				fmt.Fprintf(out, "  %s: %s\n", id, report.Failed[id])
			}
			return nil
		},
	}
}
