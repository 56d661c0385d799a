// Package ratelimit throttles requests per client key, either in process or
// through Redis when several API instances share one budget.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Aidin1998/crowdfund/internal/config"
)

// Decision is the outcome of a single Allow call
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether a request identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// New returns a Redis limiter when an address is configured and an
// in-process one otherwise. A non-positive limit disables limiting.
func New(redisCfg config.RedisConfig, authCfg config.AuthConfig, logger *zap.Logger) Limiter {
	limit := authCfg.RateLimitPerMin
	window := authCfg.RateLimitWindow
	if limit <= 0 {
		logger.Warn("Rate limiting disabled")
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}
	if redisCfg.Address != "" {
		logger.Info("Using redis rate limiter", zap.String("addr", redisCfg.Address), zap.Int("limit", limit))
		return NewRedisLimiter(NewRedisClient(redisCfg.Address, redisCfg.Password, redisCfg.DB), limit, window)
	}
	logger.Info("Using in-process rate limiter", zap.Int("limit", limit))
	return NewLocalLimiter(limit, window)
}

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalLimiter keeps one token bucket per key. Buckets refill at
// limit/window and hold up to limit tokens.
type LocalLimiter struct {
	mu      sync.Mutex
	entries map[string]*localEntry
	limit   int
	every   rate.Limit
	window  time.Duration
	now     func() time.Time
}

// sweep idle buckets once the map grows past this size
const localSweepThreshold = 10000

func NewLocalLimiter(limit int, window time.Duration) *LocalLimiter {
	return &LocalLimiter{
		entries: make(map[string]*localEntry),
		limit:   limit,
		every:   rate.Every(window / time.Duration(max(limit, 1))),
		window:  window,
		now:     time.Now,
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) > localSweepThreshold {
		for k, e := range l.entries {
			if now.Sub(e.lastSeen) > l.window {
				delete(l.entries, k)
			}
		}
	}

	e, ok := l.entries[key]
	if !ok {
		e = &localEntry{limiter: rate.NewLimiter(l.every, l.limit)}
		l.entries[key] = e
	}
	e.lastSeen = now

	d := Decision{Limit: l.limit}
	if e.limiter.AllowN(now, 1) {
		d.Allowed = true
		d.Remaining = int(e.limiter.TokensAt(now))
		return d, nil
	}
	r := e.limiter.ReserveN(now, 1)
	if r.OK() {
		d.RetryAfter = r.DelayFrom(now)
		r.CancelAt(now)
	}
	return d, nil
}
