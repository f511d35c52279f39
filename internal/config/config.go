// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the complete service configuration.
type Config struct {
	Server   Server
	Log      Log
	Store    Store
	Postgres Postgres
	Draft    Draft
	Tickets  Tickets
}

// Server holds HTTP listener settings.
type Server struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Log selects the slog handler.
type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Store selects the persistent store backend.
type Store struct {
	Driver string `env:"STORE_DRIVER" envDefault:"postgres"`
}

// Postgres holds connection settings.
type Postgres struct {
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            string        `env:"DB_PORT" envDefault:"5432"`
	User            string        `env:"DB_USER" envDefault:"postgres"`
	Password        string        `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName          string        `env:"DB_NAME" envDefault:"reservations"`
	SSLMode         string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"20"`
	MinConns        int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"30m"`
}

// DSN builds a libpq-compatible connection string.
func (c Postgres) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Draft selects where unsubmitted form answers are kept.
type Draft struct {
	Driver string        `env:"DRAFT_DRIVER" envDefault:"sqlite"`
	Path   string        `env:"DRAFT_PATH" envDefault:"drafts.db"`
	TTL    time.Duration `env:"DRAFT_TTL" envDefault:"2h"`
}

// Tickets tunes ticket code generation and the post-insert visibility wait.
type Tickets struct {
	CodeLength     int           `env:"TICKET_CODE_LENGTH" envDefault:"8"`
	CodeAttempts   int           `env:"TICKET_CODE_ATTEMPTS" envDefault:"5"`
	VisibilityWait time.Duration `env:"TICKET_VISIBILITY_WAIT" envDefault:"500ms"`
}

// Load reads an optional .env file and parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Store.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	switch c.Draft.Driver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown DRAFT_DRIVER %q", c.Draft.Driver)
	}
	if c.Tickets.CodeLength < 6 {
		return fmt.Errorf("TICKET_CODE_LENGTH must be at least 6, got %d", c.Tickets.CodeLength)
	}
	if c.Tickets.CodeAttempts < 1 {
		return fmt.Errorf("TICKET_CODE_ATTEMPTS must be positive, got %d", c.Tickets.CodeAttempts)
	}
	return nil
}

// NewLogger builds the process logger.
func (l Log) NewLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
