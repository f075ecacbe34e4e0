package di

import (
	"context"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"snote_backend/internal/app/config"
	authadapters "snote_backend/internal/feature/auth/adapters"
	authhandler "snote_backend/internal/feature/auth/transport/handler"
	authusecase "snote_backend/internal/feature/auth/usecase"
	"snote_backend/internal/platform/password"
)

// AuthService is the auth usecase as seen by the server wiring.
type AuthService interface {
	authhandler.AuthUsecase
	SweepExpiredSessions(ctx context.Context) (int64, error)
}

// Auth bundles the wired auth feature.
type Auth struct {
	Service AuthService
	Handler *authhandler.AuthHandler
}

// NewAuth wires repositories, the password hasher and the auth usecase.
// rdb may be nil, in which case sessions are stored in SQL.
func NewAuth(cfg *config.Config, db *gorm.DB, rdb *redis.Client, metrics authusecase.Metrics) (*Auth, error) {
	hasher, err := password.NewBcryptHasher(cfg.BcryptCost, cfg.HashWorkers)
	if err != nil {
		return nil, err
	}

	users := authadapters.NewUserGorm(db)
	sessions := authusecase.NewSessionStore(
		NewSessionRepository(rdb, db),
		cfg.SessionTTL,
		authusecase.WithSessionStoreTimeout(cfg.StoreTimeout),
		authusecase.WithSweepTimeout(cfg.SessionSweepTimeout),
	)

	svc := authusecase.NewAuthUsecase(users, sessions, hasher,
		authusecase.WithMetrics(metrics),
		authusecase.WithUserStoreTimeout(cfg.StoreTimeout),
	)

	return &Auth{
		Service: svc,
		Handler: authhandler.NewAuthHandler(svc),
	}, nil
}
