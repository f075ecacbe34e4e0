// Package db opens the GORM connection used by the credential and session stores.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/sethvargo/go-retry"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"snote_backend/internal/feature/auth/adapters"
	"snote_backend/internal/feature/auth/domain/entity"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// retryInterval is the wait between connection attempts.
const retryInterval = 3 * time.Second

// Config はデータベース接続設定を保持します。
type Config struct {
	Driver   string
	DSN      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string

	// ConnectTimeout は起動時の接続リトライを打ち切るまでの時間です。
	ConnectTimeout time.Duration
}

// BuildDSN は設定から接続文字列を生成します。DSNが指定されていればそれを優先します。
func BuildDSN(cfg Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	if cfg.Driver == DriverSQLite {
		return "file:" + cfg.Name + "?_foreign_keys=on"
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + cfg.Port,
		Path:     "/" + cfg.Name,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	return u.String()
}

func dialector(cfg Config) (gorm.Dialector, error) {
	dsn := BuildDSN(cfg)
	switch cfg.Driver {
	case DriverPostgres, "":
		return postgres.Open(dsn), nil
	case DriverSQLite:
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Open はデータベースに接続します。接続できるまでConnectTimeoutの間リトライします。
func Open(ctx context.Context, cfg Config) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	gcfg := &gorm.Config{
		// 一意制約違反などをgorm.ErrDuplicatedKeyに変換する
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	var db *gorm.DB
	backoff := retry.WithMaxDuration(timeout, retry.NewConstant(retryInterval))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		conn, err := gorm.Open(d, gcfg)
		if err == nil {
			err = ping(ctx, conn)
		}
		if err != nil {
			slog.Warn("DB connect failed, retrying", "driver", cfg.Driver, "error", err)
			return retry.RetryableError(err)
		}
		db = conn
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("DB connect failed after %s: %w", timeout, err)
	}

	if cfg.Driver == DriverSQLite {
		// SQLite allows one writer at a time.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	slog.Info("DB connection successful", "driver", cfg.Driver)
	return db, nil
}

// Migrate は認証に必要なテーブルを作成します。
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&entity.User{}, &adapters.SessionModel{}); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// Ping reports whether the database answers within ctx.
func Ping(ctx context.Context, db *gorm.DB) error {
	return ping(ctx, db)
}

func ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
