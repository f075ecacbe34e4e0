// Package session provides the Redis-backed session repository.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"snote_backend/internal/feature/auth/domain/entity"
	"snote_backend/internal/feature/auth/usecase"
)

// DefaultPrefix namespaces every key written by SessionRedis.
const DefaultPrefix = "session"

var _ usecase.SessionRepository = (*SessionRedis)(nil)

// SessionRedis implements usecase.SessionRepository using Redis.
// Each session is one key whose TTL equals the session lifetime, and each
// user has a set indexing their session IDs.
type SessionRedis struct {
	client *redis.Client
	prefix string
}

// payload is the value stored under a session key.
type payload struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewSessionRedis creates a new SessionRedis instance.
func NewSessionRedis(client *redis.Client, prefix string) *SessionRedis {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &SessionRedis{
		client: client,
		prefix: prefix,
	}
}

// sessionKey returns the Redis key for a session.
func (r *SessionRedis) sessionKey(id string) string {
	return fmt.Sprintf("%s:%s", r.prefix, id)
}

// userSessionsKey returns the Redis key for a user's session set.
func (r *SessionRedis) userSessionsKey(userID string) string {
	return fmt.Sprintf("%s:user:%s", r.prefix, userID)
}

// Create persists a new session to Redis. An existing key with the same ID is
// never overwritten.
func (r *SessionRedis) Create(ctx context.Context, session *entity.Session) error {
	ttl := session.ExpiresAt.Sub(session.CreatedAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	data, err := json.Marshal(payload{
		UserID:    session.UserID,
		CreatedAt: session.CreatedAt.UTC(),
		ExpiresAt: session.ExpiresAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	key := r.sessionKey(session.ID)
	ok, err := r.client.SetNX(ctx, key, data, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return usecase.ErrSessionConflict
	}

	// Every session has the same lifetime, so the newest one always outlives
	// the previous expiry of the index.
	userKey := r.userSessionsKey(session.UserID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, userKey, session.ID)
		pipe.Expire(ctx, userKey, ttl)
		return nil
	})
	if err != nil {
		// インデックス登録に失敗したセッションキーは残さない
		if delErr := r.client.Del(context.WithoutCancel(ctx), key).Err(); delErr != nil {
			return errors.Join(err, fmt.Errorf("failed to remove unindexed session: %w", delErr))
		}
		return err
	}
	return nil
}

// FindByID retrieves a session by its ID.
func (r *SessionRedis) FindByID(ctx context.Context, id string) (*entity.Session, error) {
	p, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &entity.Session{
		ID:        id,
		UserID:    p.UserID,
		CreatedAt: p.CreatedAt,
		ExpiresAt: p.ExpiresAt,
	}, nil
}

func (r *SessionRedis) get(ctx context.Context, id string) (*payload, error) {
	data, err := r.client.Get(ctx, r.sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, usecase.ErrSessionNotFound
		}
		return nil, err
	}

	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &p, nil
}

// Delete removes a session and its index entry. Missing sessions are ignored.
func (r *SessionRedis) Delete(ctx context.Context, id string) error {
	p, err := r.get(ctx, id)
	if err != nil {
		if errors.Is(err, usecase.ErrSessionNotFound) {
			return nil
		}
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.sessionKey(id))
		pipe.SRem(ctx, r.userSessionsKey(p.UserID), id)
		return nil
	})
	return err
}

// DeleteAllByUserID removes every session of a user along with the index.
func (r *SessionRedis) DeleteAllByUserID(ctx context.Context, userID string) error {
	userKey := r.userSessionsKey(userID)
	ids, err := r.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, r.sessionKey(id))
	}
	keys = append(keys, userKey)

	return r.client.Del(ctx, keys...).Err()
}

// DeleteExpired prunes index entries whose session key has already expired.
// Redis removes the session keys themselves via TTL, so the returned count is
// the number of stale index entries removed.
func (r *SessionRedis) DeleteExpired(ctx context.Context, _ time.Time) (int64, error) {
	var removed int64

	iter := r.client.Scan(ctx, 0, r.userSessionsKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		n, err := r.pruneIndex(ctx, iter.Val())
		removed += n
		if err != nil {
			return removed, err
		}
	}
	if err := iter.Err(); err != nil {
		return removed, err
	}
	return removed, nil
}

// pruneIndex removes members of one user set whose session key is gone.
// EXISTS checks for the whole set go out in a single pipeline.
func (r *SessionRedis) pruneIndex(ctx context.Context, userKey string) (int64, error) {
	ids, err := r.client.SMembers(ctx, userKey).Result()
	if err != nil || len(ids) == 0 {
		return 0, err
	}

	checks := make([]*redis.IntCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			checks[i] = pipe.Exists(ctx, r.sessionKey(id))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	var stale []any
	for i, cmd := range checks {
		if cmd.Val() == 0 {
			stale = append(stale, ids[i])
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	return r.client.SRem(ctx, userKey, stale...).Result()
}
