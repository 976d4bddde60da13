// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every variable name, for example RESERVATIONS_HTTP_PORT.
const Prefix = "RESERVATIONS"

// Config captures environment driven configuration values for the reservation service.
type Config struct {
	HTTPPort      int           `envconfig:"HTTP_PORT" default:"8080"`
	SQLitePath    string        `envconfig:"SQLITE_PATH" default:"reservations.db"`
	SessionSecret string        `envconfig:"SESSION_SECRET"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	ResetTokenTTL time.Duration `envconfig:"RESET_TOKEN_TTL" default:"1h"`
	AdminEmails   []string      `envconfig:"ADMIN_EMAILS"`
	AdminFile     string        `envconfig:"ADMIN_FILE"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info"`
	AMQPURL       string        `envconfig:"AMQP_URL"`
	AMQPExchange  string        `envconfig:"AMQP_EXCHANGE" default:"reservations.events"`
	Timezone      string        `envconfig:"TIMEZONE" default:"America/Sao_Paulo"`

	// Location is resolved from Timezone.
	Location *time.Location `ignored:"true"`
}

// Load reads an optional .env file from the working directory and then parses
// configuration values from the process environment. Variables already set in
// the environment win over the file.
func Load() (Config, error) {
	return LoadFiles(".env")
}

// LoadFiles is Load with explicit dotenv files. Missing files are skipped.
func LoadFiles(files ...string) (Config, error) {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("não foi possível ler %s: %w", file, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("valores inválidos nas variáveis de ambiente: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate reports every missing and invalid value at once.
func (c *Config) validate() error {
	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 4)

	c.SessionSecret = strings.TrimSpace(c.SessionSecret)
	if c.SessionSecret == "" {
		missing = append(missing, variable("SESSION_SECRET"))
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		invalid = append(invalid, variable("HTTP_PORT"))
	}
	if strings.TrimSpace(c.SQLitePath) == "" {
		invalid = append(invalid, variable("SQLITE_PATH"))
	}
	if c.SessionTTL <= 0 {
		invalid = append(invalid, variable("SESSION_TTL"))
	}
	if c.ResetTokenTTL <= 0 {
		invalid = append(invalid, variable("RESET_TOKEN_TTL"))
	}
	location, err := time.LoadLocation(strings.TrimSpace(c.Timezone))
	if err != nil {
		invalid = append(invalid, variable("TIMEZONE"))
	} else {
		c.Location = location
	}

	emails := make([]string, 0, len(c.AdminEmails))
	for _, email := range c.AdminEmails {
		if trimmed := strings.TrimSpace(email); trimmed != "" {
			emails = append(emails, trimmed)
		}
	}
	c.AdminEmails = emails

	problems := make([]string, 0, 2)
	if len(missing) > 0 {
		problems = append(problems, "variáveis de ambiente obrigatórias ausentes: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		problems = append(problems, "valores inválidos nas variáveis de ambiente: "+strings.Join(invalid, ", "))
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func variable(name string) string {
	return Prefix + "_" + name
}
