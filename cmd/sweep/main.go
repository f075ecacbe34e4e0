// Command sweep removes expired sessions once and exits.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	redisv9 "github.com/redis/go-redis/v9"

	"snote_backend/internal/app/config"
	"snote_backend/internal/app/di"
	"snote_backend/internal/app/jobs"
	platformdb "snote_backend/internal/platform/db"
	"snote_backend/internal/platform/logger"
	"snote_backend/internal/platform/metrics"
	platformredis "snote_backend/internal/platform/redis"
)

func main() {
	if err := run(); err != nil {
		slog.Error("session sweep failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level, _ := logger.ParseLevel(cfg.LogLevel)
	slog.SetDefault(logger.New(os.Stdout, cfg.LogFormat, level))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := platformdb.Open(ctx, cfg.DB())
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	var rdb *redisv9.Client
	if cfg.RedisAddr != "" {
		tmp, err := platformredis.NewRedisClient(ctx, platformredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			slog.Warn("Redis unavailable. Sweeping SQL sessions only.")
		} else {
			rdb = tmp
			defer rdb.Close()
		}
	}

	auth, err := di.NewAuth(cfg, db, rdb, metrics.New())
	if err != nil {
		return err
	}

	n, err := jobs.NewSessionJanitor(auth.Service, cfg.SessionSweepInterval).RunOnce(ctx)
	if err != nil {
		return err
	}
	slog.Info("session sweep complete", "removed", n)
	return nil
}
