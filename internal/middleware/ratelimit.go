package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/usecase"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// KeyedRateLimiter はキー（ユーザーID・IP）ごとのトークンバケット。
type KeyedRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	r        rate.Limit
	b        int
	idleTTL  time.Duration
	now      func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyedRateLimiter は r req/s・バースト b の制限を作る。
func NewKeyedRateLimiter(r rate.Limit, b int) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		limiters: map[string]*limiterEntry{},
		r:        r,
		b:        b,
		idleTTL:  10 * time.Minute,
		now:      time.Now,
	}
}

func (k *KeyedRateLimiter) Allow(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	e, ok := k.limiters[key]
	if !ok {
		k.pruneLocked(now)
		e = &limiterEntry{limiter: rate.NewLimiter(k.r, k.b)}
		k.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// しばらく使われていないキーを捨てる
func (k *KeyedRateLimiter) pruneLocked(now time.Time) {
	for key, e := range k.limiters {
		if now.Sub(e.lastSeen) > k.idleTTL {
			delete(k.limiters, key)
		}
	}
}

// RateLimitByUser は認証済みユーザーごと（なければIP）に制限する。
func RateLimitByUser(l *KeyedRateLimiter) echo.MiddlewareFunc {
	return rateLimit(l, func(c echo.Context) string {
		if id, ok := UserID(c); ok {
			return "user:" + id
		}
		return "ip:" + c.RealIP()
	})
}

// RateLimitByIP は送信元IPごとに制限する（webhook など未認証の入口）。
func RateLimitByIP(l *KeyedRateLimiter) echo.MiddlewareFunc {
	return rateLimit(l, func(c echo.Context) string { return "ip:" + c.RealIP() })
}

func rateLimit(l *KeyedRateLimiter, keyFn func(echo.Context) string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(keyFn(c)) {
				return usecase.NewHTTPError(http.StatusTooManyRequests, usecase.CodeRateLimited, "too many requests")
			}
			return next(c)
		}
	}
}
