package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/report"
	"github.com/example/room-reservations/internal/reservation"
)

// cliPrincipal reads on behalf of the operator running the command.
var cliPrincipal = application.Principal{UserID: "cli", Email: "cli@localhost", IsAdmin: true}

type exportOptions struct {
	out       string
	date      string
	room      string
	requester string
	creator   string
	sort      string
}

func newExportCommand(opts *globalOptions) *cobra.Command {
	var flags exportOptions
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Gera o relatório PDF das reservas armazenadas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.environment(cmd)
			if err != nil {
				return err
			}
			filter, order, err := flags.parse()
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
			reservations := application.NewReservationServiceWithLogger(
				newReservationRepositoryAdapter(storage.Reservations()),
				nil,
				uuid.NewString,
				time.Now,
				cfg.Location,
				logger,
			)
			records, err := reservations.ListReservations(ctx, application.ListReservationsParams{
				Principal: cliPrincipal,
				Filter:    filter,
			})
			if err != nil {
				return fmt.Errorf("failed to list reservations: %w", err)
			}
			application.SortReservations(records, order)
			if len(records) == 0 {
				return report.ErrNoReservations
			}

			kind := report.KindAll
			if filter.Creator != "" {
				kind = report.KindMine
			}
			generatedAt := time.Now().In(cfg.Location)
			path := flags.out
			if path == "" {
				path = report.FileName(kind, generatedAt)
			}

			file, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", path, err)
			}
			doc, err := report.NewExporter(reportAuthor).Export(file, kind, records, filter, generatedAt)
			if cerr := file.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(path)
				return fmt.Errorf("failed to export report: %w", err)
			}

			logger.Info("report exported", "path", path, "total", doc.Total())
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d reservas)\n", path, doc.Total())
			return nil
		},
	}
	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "arquivo de saída (padrão: nome com data e hora)")
	cmd.Flags().StringVar(&flags.date, "date", "", "filtra pela data (AAAA-MM-DD)")
	cmd.Flags().StringVar(&flags.room, "room", "", "filtra pela sala")
	cmd.Flags().StringVar(&flags.requester, "requester", "", "filtra pelo solicitante (trecho do nome)")
	cmd.Flags().StringVar(&flags.creator, "creator", "", "gera o relatório das reservas criadas por este e-mail")
	cmd.Flags().StringVar(&flags.sort, "sort", string(application.SortDateAsc), "ordem: date_asc, date_desc, created_at_asc, created_at_desc")
	return cmd
}

func (o exportOptions) parse() (reservation.Filter, application.SortOrder, error) {
	var problems []string

	filter := reservation.Filter{
		Requester: strings.TrimSpace(o.requester),
		Creator:   strings.TrimSpace(o.creator),
	}
	if date := strings.TrimSpace(o.date); date != "" {
		normalized, err := reservation.NormalizeDate(date)
		if err != nil {
			problems = append(problems, fmt.Sprintf("data inválida: %q", date))
		}
		filter.Date = normalized
	}
	if room := reservation.Room(strings.TrimSpace(o.room)); room != "" {
		if !room.Valid() {
			problems = append(problems, fmt.Sprintf("sala desconhecida: %q", room))
		}
		filter.Room = room
	}
	order, ok := application.ParseSortOrder(o.sort)
	if !ok {
		problems = append(problems, fmt.Sprintf("ordenação desconhecida: %q", o.sort))
	}

	if len(problems) > 0 {
		return reservation.Filter{}, "", errors.New(strings.Join(problems, "; "))
	}
	return filter, order, nil
}
