package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Limiter counts hits per key in a fixed window.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (bool, time.Duration, error)
}

const rateLimitPrefix = "rl:v1:"

var rateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return {0, ttl}
end
return {1, ttl}
`)

// RedisLimiter shares counters across instances. INCR and PEXPIRE run in one
// script so a crash between them cannot leave a counter without expiry.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedisLimiter builds a Redis-backed limiter.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, _ time.Time) (bool, time.Duration, error) {
	windowMS := l.window.Milliseconds()
	if windowMS <= 0 {
		return false, 0, fmt.Errorf("invalid rate limit window %s", l.window)
	}
	res, err := rateLimitScript.Run(ctx, l.client, []string{rateLimitPrefix + key}, l.limit, windowMS).Int64Slice()
	if err != nil {
		return false, 0, err
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("unexpected rate limit reply %v", res)
	}
	retryAfter := time.Duration(res[1]) * time.Millisecond
	return res[0] == 1, max(retryAfter, 0), nil
}

type windowEntry struct {
	count int
	reset time.Time
}

// MemoryLimiter is the single-process fallback.
type MemoryLimiter struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	entries     map[string]*windowEntry
	lastCleanup time.Time
}

// NewMemoryLimiter builds an in-memory limiter.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{limit: limit, window: window, entries: make(map[string]*windowEntry), lastCleanup: time.Now()}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, now time.Time) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastCleanup) >= l.window {
		for k, e := range l.entries {
			if now.After(e.reset) {
				delete(l.entries, k)
			}
		}
		l.lastCleanup = now
	}

	e, ok := l.entries[key]
	if !ok || now.After(e.reset) {
		l.entries[key] = &windowEntry{count: 1, reset: now.Add(l.window)}
		return true, 0, nil
	}
	if e.count >= l.limit {
		return false, max(e.reset.Sub(now), 0), nil
	}
	e.count++
	return true, 0, nil
}

// RateLimit refuses requests once keyFn's key exceeds the limiter's budget.
// Limiter failures let the request through.
func RateLimit(scope string, limiter Limiter, keyFn func(*fiber.Ctx) string, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := scope + ":" + keyFn(c)
		allowed, retryAfter, err := limiter.Allow(c.UserContext(), key, time.Now())
		if err != nil {
			logger.Warn("rate limiter unavailable", slog.String("scope", scope), slog.Any("error", err))
			return c.Next()
		}
		if !allowed {
			rateLimited.WithLabelValues(scope).Inc()
			secs := int(retryAfter.Round(time.Second) / time.Second)
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(max(secs, 1)))
			return fiber.NewError(http.StatusTooManyRequests, "too many attempts, try again later")
		}
		return c.Next()
	}
}

// ClientIP keys by caller address.
func ClientIP(c *fiber.Ctx) string {
	return c.IP()
}

// LoginKey keys login attempts by caller address and the account named in
// the body.
func LoginKey(c *fiber.Ctx) string {
	var req struct {
		Email           string `json:"email"`
		InstitutionName string `json:"institution_name"`
		BranchName      string `json:"branch_name"`
	}
	_ = c.BodyParser(&req)
	account := strings.ToLower(strings.TrimSpace(req.Email))
	if account == "" {
		account = strings.TrimSpace(req.InstitutionName) + "|" + strings.TrimSpace(req.BranchName)
	}
	return c.IP() + ":" + account
}
