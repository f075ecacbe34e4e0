// Package config loads runtime configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"snote_backend/internal/platform/db"
	"snote_backend/internal/platform/logger"
	"snote_backend/internal/platform/password"
)

// Config holds runtime configuration for the server and the sweep job.
type Config struct {
	AppEnv             string        `envconfig:"APP_ENV" default:"development"`
	AppAddr            string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout     time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout    time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppShutdownTimeout time.Duration `envconfig:"APP_SHUTDOWN_TIMEOUT" default:"10s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	DBDriver         string        `envconfig:"DB_DRIVER" default:"postgres"`
	DBDSN            string        `envconfig:"DB_DSN"`
	DBHost           string        `envconfig:"DB_HOST" default:"localhost"`
	DBPort           string        `envconfig:"DB_PORT" default:"5432"`
	DBUser           string        `envconfig:"DB_USER" default:"snote"`
	DBPassword       string        `envconfig:"DB_PASSWORD"`
	DBName           string        `envconfig:"DB_NAME" default:"snote"`
	DBSSLMode        string        `envconfig:"DB_SSLMODE" default:"disable"`
	DBConnectTimeout time.Duration `envconfig:"DB_CONNECT_TIMEOUT" default:"60s"`
	RunMigrations    bool          `envconfig:"RUN_MIGRATIONS" default:"false"`

	// RedisAddr が空の場合、セッションはSQLに保存されます。
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	SessionTTL           time.Duration `envconfig:"SESSION_TTL" default:"168h"`
	SessionSweepInterval time.Duration `envconfig:"SESSION_SWEEP_INTERVAL" default:"1h"`
	SessionSweepTimeout  time.Duration `envconfig:"SESSION_SWEEP_TIMEOUT" default:"1m"`
	StoreTimeout         time.Duration `envconfig:"STORE_TIMEOUT" default:"3s"`

	BcryptCost  int `envconfig:"BCRYPT_COST" default:"12"`
	HashWorkers int `envconfig:"HASH_WORKERS" default:"0"`

	AuthRateLimit float64 `envconfig:"AUTH_RATE_LIMIT" default:"5"`
	AuthRateBurst int     `envconfig:"AUTH_RATE_BURST" default:"10"`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot run with safely.
func (c *Config) Validate() error {
	var errs []error

	if c.BcryptCost < password.MinProductionCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be at least %d, got %d", password.MinProductionCost, c.BcryptCost))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.SessionSweepInterval <= 0 {
		errs = append(errs, errors.New("SESSION_SWEEP_INTERVAL must be positive"))
	}
	if c.SessionSweepTimeout <= 0 {
		errs = append(errs, errors.New("SESSION_SWEEP_TIMEOUT must be positive"))
	}
	if c.StoreTimeout <= 0 {
		errs = append(errs, errors.New("STORE_TIMEOUT must be positive"))
	}
	if c.AppShutdownTimeout <= 0 {
		errs = append(errs, errors.New("APP_SHUTDOWN_TIMEOUT must be positive"))
	}
	if c.AuthRateLimit <= 0 || c.AuthRateBurst <= 0 {
		errs = append(errs, errors.New("AUTH_RATE_LIMIT and AUTH_RATE_BURST must be positive"))
	}
	switch c.DBDriver {
	case db.DriverPostgres, db.DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q is not supported", c.DBDriver))
	}
	switch c.LogFormat {
	case logger.FormatJSON, logger.FormatText:
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q is not supported", c.LogFormat))
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// DB returns the database settings.
func (c *Config) DB() db.Config {
	return db.Config{
		Driver:         c.DBDriver,
		DSN:            c.DBDSN,
		Host:           c.DBHost,
		Port:           c.DBPort,
		User:           c.DBUser,
		Password:       c.DBPassword,
		Name:           c.DBName,
		SSLMode:        c.DBSSLMode,
		ConnectTimeout: c.DBConnectTimeout,
	}
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
