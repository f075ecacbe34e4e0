package di

import (
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	authadapters "snote_backend/internal/feature/auth/adapters"
	"snote_backend/internal/feature/auth/usecase"
	"snote_backend/internal/platform/session"
)

// NewSessionRepository creates a SessionRepository implementation.
// If Redis is available, it returns a Redis-backed implementation.
// Otherwise, it falls back to the SQL sessions table.
func NewSessionRepository(rdb *redis.Client, db *gorm.DB) usecase.SessionRepository {
	if rdb != nil {
		return session.NewSessionRedis(rdb, session.DefaultPrefix)
	}
	return authadapters.NewSessionGorm(db)
}
