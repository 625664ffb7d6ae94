package handler

import (
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/odmhub/odmhub/pkg/logger"
	"github.com/odmhub/odmhub/pkg/response"
)

// KeyFunc extracts a rate-limiting key from a request.
type KeyFunc func(c *fiber.Ctx) string

// RateLimiter is a fixed-window limiter. With a database it keeps counters
// in rate_limit_counters so limits survive restarts; otherwise, or when the
// database fails, it counts in memory.
type RateLimiter struct {
	requests map[string]*window
	mu       sync.Mutex
	limit    int
	period   time.Duration
	keyFunc  KeyFunc
	db       *sql.DB
	scope    string
	stopCh   chan struct{}
	stopOnce sync.Once
}

type window struct {
	count int
	end   time.Time
}

func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	return NewPersistentRateLimiter(nil, "", limit, period, nil)
}

// NewPersistentRateLimiter creates a limiter backed by db. A nil keyFunc
// limits per client IP.
func NewPersistentRateLimiter(db *sql.DB, scope string, limit int, period time.Duration, keyFunc KeyFunc) *RateLimiter {
	if keyFunc == nil {
		keyFunc = func(c *fiber.Ctx) string { return c.IP() }
	}
	scope = strings.TrimSpace(scope)
	if scope == "" {
		scope = "default"
	}

	rl := &RateLimiter{
		requests: make(map[string]*window),
		limit:    limit,
		period:   period,
		keyFunc:  keyFunc,
		db:       db,
		scope:    scope,
		stopCh:   make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Middleware returns the rate limiting middleware
func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := rl.keyFunc(c)
		now := time.Now()

		allowed := false
		if rl.db != nil {
			var err error
			allowed, err = rl.allowPersistent(key, now)
			if err != nil {
				logger.Warn().Err(err).Str("scope", rl.scope).Msg("Rate limit store unavailable, counting in memory")
				allowed = rl.allowInMemory(key, now)
			}
		} else {
			allowed = rl.allowInMemory(key, now)
		}

		if !allowed {
			RecordRateLimited(rl.scope)
			return response.TooManyRequests(c)
		}
		return c.Next()
	}
}

func (rl *RateLimiter) allowPersistent(key string, now time.Time) (bool, error) {
	scopedKey := rl.scope + ":" + key

	_, err := rl.db.Exec(`
		INSERT INTO rate_limit_counters (scope_key, count, window_end, updated_at)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(scope_key) DO UPDATE SET
			count = CASE
				WHEN rate_limit_counters.window_end <= excluded.updated_at THEN 1
				ELSE rate_limit_counters.count + 1
			END,
			window_end = CASE
				WHEN rate_limit_counters.window_end <= excluded.updated_at THEN excluded.window_end
				ELSE rate_limit_counters.window_end
			END,
			updated_at = excluded.updated_at
	`, scopedKey, now.Add(rl.period), now)
	if err != nil {
		return false, err
	}

	var count int
	if err := rl.db.QueryRow(`SELECT count FROM rate_limit_counters WHERE scope_key = ?`, scopedKey).Scan(&count); err != nil {
		return false, err
	}
	return count <= rl.limit, nil
}

func (rl *RateLimiter) allowInMemory(key string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.requests[key]
	if !ok || now.After(w.end) {
		rl.requests[key] = &window{count: 1, end: now.Add(rl.period)}
		return true
	}
	if w.count >= rl.limit {
		return false
	}
	w.count++
	return true
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			rl.mu.Lock()
			for key, w := range rl.requests {
				if now.After(w.end) {
					delete(rl.requests, key)
				}
			}
			rl.mu.Unlock()

			if rl.db != nil {
				if _, err := rl.db.Exec(`DELETE FROM rate_limit_counters WHERE window_end <= ?`, now); err != nil {
					logger.Warn().Err(err).Msg("Failed to prune rate limit counters")
				}
			}
		case <-rl.stopCh:
			return
		}
	}
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCh)
	})
}
