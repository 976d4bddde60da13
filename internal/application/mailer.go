package application

import (
	"context"
	"log/slog"
	"time"
)

// PasswordResetMessage is the content of a password reset email.
type PasswordResetMessage struct {
	To          string
	DisplayName string
	Token       string
	ExpiresAt   time.Time
}

// Mailer dispatches account emails.
type Mailer interface {
	SendPasswordReset(ctx context.Context, message PasswordResetMessage) error
}

// LogMailer writes reset messages to the log instead of sending them. It is
// the development default when no delivery channel is configured.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer constructs a LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: defaultLogger(logger).With("component", "LogMailer")}
}

// SendPasswordReset implements Mailer.
func (m *LogMailer) SendPasswordReset(ctx context.Context, message PasswordResetMessage) error {
	m.logger.InfoContext(ctx, "password reset requested",
		"to", message.To,
		"token", message.Token,
		"expires_at", message.ExpiresAt,
	)
	return nil
}
