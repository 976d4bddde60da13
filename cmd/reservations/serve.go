package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/room-reservations/internal/access"
	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/config"
	"github.com/example/room-reservations/internal/events"
	httptransport "github.com/example/room-reservations/internal/http"
	"github.com/example/room-reservations/internal/persistence/sqlite"
	"github.com/example/room-reservations/internal/report"
)

const reportAuthor = "Sistema de Reservas ECE"

func newServeCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Inicia a API HTTP de reservas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.environment(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	storage, err := openStorage(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStorage(storage, logger)

	if err := storage.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	legacy, err := storage.Reservations().NormalizeLegacy(ctx)
	if err != nil {
		return fmt.Errorf("failed to normalize legacy reservations: %w", err)
	}
	if legacy.Converted > 0 || len(legacy.Failed) > 0 {
		logger.Warn("legacy reservations normalized", "converted", legacy.Converted, "failed", len(legacy.Failed))
	}

	svc, err := newServices(ctx, cfg, storage, logger, nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	// No write timeout: the snapshot stream stays open until the client leaves.
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           svc.Handler,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	lifecycle.Go(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		logger.Error("failed to shutdown server", "error", err)
	}))

	logger.Info("reservations API listening", "addr", server.Addr, "timezone", cfg.Location.String())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server encountered error: %w", err)
	}
	return nil
}

// services is the wired graph behind the HTTP handler.
type services struct {
	Handler      http.Handler
	Reservations *application.ReservationService
	Identity     *application.IdentityService
	Mirror       *application.Mirror
	Broker       *events.Broker
	Admins       *access.AllowList

	closers []func() error
}

// Close releases watchers, relays and the mirror subscription in reverse order.
func (s *services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// newServices wires storage, events and services into the HTTP handler.
// A nil hasher selects the production Argon2id parameters.
func newServices(ctx context.Context, cfg config.Config, storage *sqlite.Storage, logger *slog.Logger, hasher application.PasswordHasher) (_ *services, err error) {
	s := &services{}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	s.Admins = access.NewAllowList(cfg.AdminEmails...)
	if cfg.AdminFile != "" {
		watcher := access.NewWatcher(s.Admins, cfg.AdminFile, cfg.AdminEmails, logger)
		if err := watcher.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to watch admin file: %w", err)
		}
		s.closers = append(s.closers, watcher.Close)
	}

	s.Broker = events.NewBroker(time.Now)
	if cfg.AMQPURL != "" {
		relay, err := events.DialAMQPRelay(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to AMQP broker: %w", err)
		}
		relay.Attach(s.Broker)
		s.closers = append(s.closers, relay.Close)
	}

	s.Reservations = application.NewReservationServiceWithLogger(
		newReservationRepositoryAdapter(storage.Reservations()),
		s.Broker,
		uuid.NewString,
		time.Now,
		cfg.Location,
		logger,
	)
	s.Identity = application.NewIdentityServiceWithLogger(
		newCredentialStoreAdapter(storage.Users()),
		newSessionRepositoryAdapter(storage.Sessions()),
		s.Admins,
		application.NewLogMailer(logger),
		func() string { return randomHex(32) },
		time.Now,
		application.IdentityServiceConfig{
			SessionTTL:    cfg.SessionTTL,
			ResetTokenTTL: cfg.ResetTokenTTL,
			ResetSecret:   []byte(cfg.SessionSecret),
			HashPassword:  hasher,
		},
		logger,
	)

	s.Mirror = application.NewMirror(s.Broker, s.Reservations, application.MirrorConfig{
		Order:    application.SortDateAsc,
		Location: cfg.Location,
		Logger:   logger,
	})
	if err := s.Mirror.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start reservation mirror: %w", err)
	}
	s.closers = append(s.closers, func() error {
		s.Mirror.Stop()
		return nil
	})
	if _, err := s.Reservations.PublishSnapshot(ctx); err != nil {
		return nil, fmt.Errorf("failed to publish initial snapshot: %w", err)
	}

	s.Handler = httptransport.NewRouter(httptransport.RouterConfig{
		Auth:  httptransport.NewAuthHandler(s.Identity, logger),
		Rooms: httptransport.NewRoomHandler(logger),
		Reservations: httptransport.NewReservationHandler(httptransport.ReservationHandlerConfig{
			Mirror:   s.Mirror,
			Reader:   s.Reservations,
			Exporter: report.NewExporter(reportAuthor),
			Events:   s.Broker,
			Location: cfg.Location,
			Logger:   logger,
		}),
		Session:    httptransport.RequireSession(s.Identity, logger),
		Middleware: []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})
	return s, nil
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
