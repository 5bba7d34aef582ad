// Package config loads service settings from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all runtime settings for the booking service.
type Config struct {
	Port            string        `env:"PORT"             envDefault:"8080"`
	StoreDriver     string        `env:"STORE_DRIVER"     envDefault:"postgres"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	DB       DB       `envPrefix:"DB_"`
	Register Register `envPrefix:"REGISTER_"`
	Cache    Cache    `envPrefix:"CACHE_"`
	Tracing  Tracing
}

// DB holds PostgreSQL connection settings.
type DB struct {
	Host            string        `env:"HOST"             envDefault:"localhost"`
	Port            string        `env:"PORT"             envDefault:"5432"`
	User            string        `env:"USER"             envDefault:"postgres"`
	Password        string        `env:"PASSWORD"         envDefault:"postgres"`
	Name            string        `env:"NAME"             envDefault:"slotbooking"`
	SSLMode         string        `env:"SSLMODE"          envDefault:"disable"`
	MaxConns        int32         `env:"MAX_CONNS"        envDefault:"20"`
	MinConns        int32         `env:"MIN_CONNS"        envDefault:"2"`
	MaxConnLifetime time.Duration `env:"MAX_CONN_LIFETIME" envDefault:"30m"`
	MaxConnIdleTime time.Duration `env:"MAX_CONN_IDLE_TIME" envDefault:"5m"`
	ConnectAttempts int           `env:"CONNECT_ATTEMPTS" envDefault:"5"`
	Migrate         bool          `env:"MIGRATE"          envDefault:"true"`
}

// DSN builds a libpq-compatible connection string.
func (c DB) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// MigrateURL builds the pgx5:// URL understood by golang-migrate.
func (c DB) MigrateURL() string {
	return fmt.Sprintf("pgx5://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// Register tunes the registration command.
type Register struct {
	// MaxAttempts bounds retries after serialization failures or deadlocks.
	MaxAttempts   int     `env:"MAX_ATTEMPTS"    envDefault:"3"`
	RatePerSecond float64 `env:"RATE_PER_SECOND" envDefault:"50"`
	RateBurst     int     `env:"RATE_BURST"      envDefault:"100"`
	// LimiterIdle is how long a user's rate bucket lives without requests.
	LimiterIdle time.Duration `env:"LIMITER_IDLE" envDefault:"10m"`
}

// Cache tunes the projection cache.
type Cache struct {
	TTL             time.Duration `env:"TTL"              envDefault:"1m"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"5m"`
}

// Tracing configures the OpenTelemetry exporter. An empty endpoint disables
// export.
type Tracing struct {
	Endpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"slot-booking"`
	Insecure    bool   `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want %q or %q)", c.StoreDriver, DriverPostgres, DriverMemory)
	}
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.Register.MaxAttempts < 1 {
		return fmt.Errorf("REGISTER_MAX_ATTEMPTS must be at least 1")
	}
	if c.Register.RatePerSecond <= 0 || c.Register.RateBurst < 1 {
		return fmt.Errorf("REGISTER_RATE_PER_SECOND and REGISTER_RATE_BURST must be positive")
	}
	if c.DB.ConnectAttempts < 1 {
		return fmt.Errorf("DB_CONNECT_ATTEMPTS must be at least 1")
	}
	return nil
}
