package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	redisv9 "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"snote_backend/internal/app/config"
	"snote_backend/internal/app/di"
	"snote_backend/internal/app/jobs"
	"snote_backend/internal/app/router"
	platformdb "snote_backend/internal/platform/db"
	"snote_backend/internal/platform/http/handler"
	"snote_backend/internal/platform/logger"
	"snote_backend/internal/platform/metrics"
	platformredis "snote_backend/internal/platform/redis"
	"snote_backend/internal/shared/ratelimiter"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
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

	// db
	db, err := platformdb.Open(ctx, cfg.DB())
	if err != nil {
		return err
	}
	defer closeDB(db)

	if cfg.RunMigrations {
		if err := platformdb.Migrate(db); err != nil {
			return err
		}
	}

	// Redis
	var rdb *redisv9.Client
	if cfg.RedisAddr != "" {
		tmp, err := platformredis.NewRedisClient(ctx, platformredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			// セッションはどちらか一方のストアにのみ存在するため、Redisで発行済みのトークンはここで無効になる
			slog.Error("Redis unavailable. Storing sessions in SQL; tokens issued via Redis will not validate.",
				"error", err, "redis_addr", cfg.RedisAddr)
		} else {
			rdb = tmp
			defer func() {
				if err := rdb.Close(); err != nil {
					slog.Error("failed to close Redis client", "error", err)
				}
			}()
		}
	}

	m := metrics.New()
	auth, err := di.NewAuth(cfg, db, rdb, m)
	if err != nil {
		return err
	}

	readiness := map[string]handler.Check{
		"db": func(ctx context.Context) error { return platformdb.Ping(ctx, db) },
	}
	if rdb != nil {
		readiness["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := router.NewRouter(router.Deps{
		Auth:      auth.Handler,
		Validator: auth.Service,
		Limiter:   ratelimiter.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst),
		Metrics:   m,
		Readiness: readiness,
	})

	srv := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      r,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}
	janitor := jobs.NewSessionJanitor(auth.Service, cfg.SessionSweepInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", cfg.AppAddr, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return janitor.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AppShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func closeDB(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		slog.Error("failed to close DB", "error", err)
	}
}
