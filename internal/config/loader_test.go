package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var allVariables = []string{
	"RESERVATIONS_HTTP_PORT",
	"RESERVATIONS_SQLITE_PATH",
	"RESERVATIONS_SESSION_SECRET",
	"RESERVATIONS_SESSION_TTL",
	"RESERVATIONS_RESET_TOKEN_TTL",
	"RESERVATIONS_ADMIN_EMAILS",
	"RESERVATIONS_ADMIN_FILE",
	"RESERVATIONS_LOG_LEVEL",
	"RESERVATIONS_AMQP_URL",
	"RESERVATIONS_AMQP_EXCHANGE",
	"RESERVATIONS_TIMEZONE",
}

// clearEnvironment unsets every variable for the duration of the test. The
// t.Setenv call registers the restore before the value is dropped.
func clearEnvironment(t *testing.T) {
	t.Helper()
	for _, key := range allVariables {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset %s: %v", key, err)
		}
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnvironment(t)
		t.Setenv("RESERVATIONS_SESSION_SECRET", "super-secret")

		cfg, err := LoadFiles()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.SQLitePath != "reservations.db" {
			t.Fatalf("unexpected default path: %q", cfg.SQLitePath)
		}
		if cfg.SessionTTL != 24*time.Hour || cfg.ResetTokenTTL != time.Hour {
			t.Fatalf("unexpected TTL defaults: %v %v", cfg.SessionTTL, cfg.ResetTokenTTL)
		}
		if cfg.AMQPExchange != "reservations.events" || cfg.AMQPURL != "" {
			t.Fatalf("unexpected AMQP defaults: %q %q", cfg.AMQPURL, cfg.AMQPExchange)
		}
		if cfg.Location == nil || cfg.Location.String() != "America/Sao_Paulo" {
			t.Fatalf("expected São Paulo location, got %v", cfg.Location)
		}
		if cfg.LogLevel != "info" {
			t.Fatalf("expected info log level, got %q", cfg.LogLevel)
		}
	})

	t.Run("parses explicit values", func(t *testing.T) {
		clearEnvironment(t)
		t.Setenv("RESERVATIONS_SESSION_SECRET", "s")
		t.Setenv("RESERVATIONS_HTTP_PORT", "9090")
		t.Setenv("RESERVATIONS_SESSION_TTL", "2h")
		t.Setenv("RESERVATIONS_ADMIN_EMAILS", "admin@ece.com, chefe@ece.com,")
		t.Setenv("RESERVATIONS_TIMEZONE", "UTC")

		cfg, err := LoadFiles()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 9090 || cfg.SessionTTL != 2*time.Hour {
			t.Fatalf("unexpected values: %+v", cfg)
		}
		if len(cfg.AdminEmails) != 2 || cfg.AdminEmails[1] != "chefe@ece.com" {
			t.Fatalf("unexpected admin emails: %#v", cfg.AdminEmails)
		}
		if cfg.Location != time.UTC {
			t.Fatalf("expected UTC location, got %v", cfg.Location)
		}
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		clearEnvironment(t)

		_, err := LoadFiles()
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "variáveis de ambiente obrigatórias ausentes: RESERVATIONS_SESSION_SECRET"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		clearEnvironment(t)
		t.Setenv("RESERVATIONS_SESSION_SECRET", "s")
		t.Setenv("RESERVATIONS_HTTP_PORT", "70000")
		t.Setenv("RESERVATIONS_RESET_TOKEN_TTL", "-1m")
		t.Setenv("RESERVATIONS_TIMEZONE", "Mars/Olympus")

		_, err := LoadFiles()
		if err == nil {
			t.Fatalf("expected validation error")
		}
		for _, name := range []string{"RESERVATIONS_HTTP_PORT", "RESERVATIONS_RESET_TOKEN_TTL", "RESERVATIONS_TIMEZONE"} {
			if !strings.Contains(err.Error(), name) {
				t.Fatalf("expected %s in %q", name, err.Error())
			}
		}
	})

	t.Run("reports missing and invalid values together", func(t *testing.T) {
		clearEnvironment(t)
		t.Setenv("RESERVATIONS_SESSION_TTL", "0s")

		_, err := LoadFiles()
		if err == nil {
			t.Fatalf("expected validation error")
		}
		expected := "variáveis de ambiente obrigatórias ausentes: RESERVATIONS_SESSION_SECRET; " +
			"valores inválidos nas variáveis de ambiente: RESERVATIONS_SESSION_TTL"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("rejects values of the wrong type", func(t *testing.T) {
		clearEnvironment(t)
		t.Setenv("RESERVATIONS_SESSION_SECRET", "s")
		t.Setenv("RESERVATIONS_HTTP_PORT", "eighty")

		if _, err := LoadFiles(); err == nil || !strings.Contains(err.Error(), "HTTP_PORT") {
			t.Fatalf("expected port parse error, got %v", err)
		}
	})

	t.Run("reads dotenv files without overriding the environment", func(t *testing.T) {
		clearEnvironment(t)
		t.Setenv("RESERVATIONS_HTTP_PORT", "7000")

		path := filepath.Join(t.TempDir(), ".env")
		body := "RESERVATIONS_SESSION_SECRET=from-file\nRESERVATIONS_HTTP_PORT=6000\n"
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatalf("write env file: %v", err)
		}
		t.Cleanup(func() { _ = os.Unsetenv("RESERVATIONS_SESSION_SECRET") })

		cfg, err := LoadFiles(path, filepath.Join(t.TempDir(), "missing.env"))
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.SessionSecret != "from-file" {
			t.Fatalf("expected secret from file, got %q", cfg.SessionSecret)
		}
		if cfg.HTTPPort != 7000 {
			t.Fatalf("expected environment to win, got %d", cfg.HTTPPort)
		}
	})
}
