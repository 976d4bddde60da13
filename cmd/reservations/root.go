package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/room-reservations/internal/config"
	"github.com/example/room-reservations/internal/logging"
	"github.com/example/room-reservations/internal/persistence/sqlite"
	"github.com/example/room-reservations/internal/persistence/sqlite/migration"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	envFile  string
	logLevel string
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:   "reservations",
		Short: "Sistema de reservas de salas do ECE",
		Long: `Gerencia as reservas do Auditório e do Laboratório de Informática.
Expõe a API HTTP, aplica migrações e gera relatórios em PDF.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "arquivo .env carregado antes do ambiente")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "sobrescreve RESERVATIONS_LOG_LEVEL")

	cmd.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newNormalizeCommand(opts),
		newExportCommand(opts),
	)
	return cmd
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// environment loads the configuration and builds the logger for cmd.
func (o *globalOptions) environment(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFiles(o.envFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	level := cfg.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	return cfg, logging.New(cmd.ErrOrStderr(), level), nil
}

func openStorage(cfg config.Config, logger *slog.Logger) (*sqlite.Storage, error) {
	storage, err := sqlite.Open(migration.DefaultSQLiteConfig(cfg.SQLitePath), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return storage, nil
}

func closeStorage(storage *sqlite.Storage, logger *slog.Logger) {
	if err := storage.Close(); err != nil {
		logger.Error("failed to close storage", "error", err)
	}
}
