package ratelimiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultIdleTTL は使われなくなったキーを破棄するまでの時間です。
const defaultIdleTTL = 10 * time.Minute

// RateLimiterInterface は、キー（クライアントIPなど）ごとにリクエスト頻度を制限するインターフェースです。
type RateLimiterInterface interface {
	Allow(key string) bool
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter はキーごとにトークンバケットを持つレートリミッターです。
type RateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	now       func() time.Time
	lastPrune time.Time
}

// NewRateLimiter は新しいRateLimiterのインスタンスを生成します。
// perSecond は1秒あたりの補充量、burst は瞬間的に許可する上限です。
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		visitors:  make(map[string]*visitor),
		limit:     rate.Limit(perSecond),
		burst:     burst,
		idleTTL:   defaultIdleTTL,
		now:       time.Now,
		lastPrune: time.Now(),
	}
}

// Allow はkeyのリクエストを1件消費できればtrueを返します。
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.pruneLocked(now)

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// pruneLocked はidleTTLより長く使われていないキーを削除します。
func (rl *RateLimiter) pruneLocked(now time.Time) {
	if now.Sub(rl.lastPrune) < rl.idleTTL {
		return
	}
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) >= rl.idleTTL {
			delete(rl.visitors, key)
		}
	}
	rl.lastPrune = now
}

func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}
