// Package config loads service configuration from the environment, with
// optional .env support for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full service configuration.
type Config struct {
	Service   ServiceConfig
	Server    ServerConfig
	Database  DatabaseConfig
	NATS      NATSConfig
	Push      PushConfig
	SMTP      SMTPConfig
	Fanout    FanoutConfig
	Reconcile ReconcileConfig
}

type ServiceConfig struct {
	Name        string
	Version     string
	Environment string
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// DSN renders the pgx connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

type NATSConfig struct {
	URL string // empty disables event publishing
}

type PushConfig struct {
	CredentialsFile string // empty disables push delivery
	Timeout         time.Duration
}

type SMTPConfig struct {
	Host     string // empty disables email delivery
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

type FanoutConfig struct {
	Concurrency int
}

type ReconcileConfig struct {
	// EntryStateLabel is the department entry-state name activated for new
	// orders; matching is case-, whitespace- and diacritics-insensitive.
	EntryStateLabel string
	// SweepSchedule is a cron expression for the periodic consistency sweep.
	SweepSchedule string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Service: ServiceConfig{
			Name:        getEnv("SERVICE_NAME", "be-order-tracking"),
			Version:     getEnv("SERVICE_VERSION", "dev"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Server: ServerConfig{
			Port:            getEnvInt("HTTP_PORT", 8086),
			ReadTimeout:     getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "order_tracking"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 2)),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", ""),
		},
		Push: PushConfig{
			CredentialsFile: getEnv("FCM_CREDENTIALS_FILE", ""),
			Timeout:         getEnvDuration("PUSH_TIMEOUT", 10*time.Second),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", ""),
			Timeout:  getEnvDuration("SMTP_TIMEOUT", 15*time.Second),
		},
		Fanout: FanoutConfig{
			Concurrency: getEnvInt("FANOUT_CONCURRENCY", 8),
		},
		Reconcile: ReconcileConfig{
			EntryStateLabel: getEnv("ENTRY_STATE_LABEL", "In Entrata"),
			SweepSchedule:   getEnv("RECONCILE_SWEEP_SCHEDULE", "@hourly"),
		},
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("config: invalid HTTP_PORT %d", cfg.Server.Port)
	}
	if cfg.Fanout.Concurrency < 1 {
		return nil, fmt.Errorf("config: FANOUT_CONCURRENCY must be >= 1")
	}
	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as a duration or returns a
// default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
