package middleware

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustid/trustid/internal/logging"
)

func TestRedisLimiterWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter := NewRedisLimiter(client, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, _, err := limiter.Allow(ctx, "k", time.Now())
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, retry, err := limiter.Allow(ctx, "k", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Greater(t, retry, time.Duration(0))

	mr.FastForward(time.Minute + time.Second)
	ok, _, err = limiter.Allow(ctx, "k", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLimiterWindow(t *testing.T) {
	limiter := NewMemoryLimiter(1, time.Minute)
	ctx := context.Background()
	now := time.Now()

	ok, _, _ := limiter.Allow(ctx, "k", now)
	assert.True(t, ok)
	ok, retry, _ := limiter.Allow(ctx, "k", now.Add(time.Second))
	assert.False(t, ok)
	assert.Equal(t, 59*time.Second, retry)
	ok, _, _ = limiter.Allow(ctx, "other", now)
	assert.True(t, ok)
	ok, _, _ = limiter.Allow(ctx, "k", now.Add(2*time.Minute))
	assert.True(t, ok)
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string, time.Time) (bool, time.Duration, error) {
	return false, 0, assert.AnError
}

func TestRateLimitMiddleware(t *testing.T) {
	app := fiber.New()
	app.Post("/login", RateLimit("login", NewMemoryLimiter(1, time.Minute), LoginKey, logging.Discard()), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Post("/open", RateLimit("open", brokenLimiter{}, ClientIP, logging.Discard()), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	send := func(path, body string) int {
		req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		require.NoError(t, err)
		if resp.StatusCode == fiber.StatusTooManyRequests {
			assert.NotEmpty(t, resp.Header.Get(fiber.HeaderRetryAfter))
		}
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, send("/login", `{"email":"a@x.com"}`))
	assert.Equal(t, fiber.StatusTooManyRequests, send("/login", `{"email":"A@x.com"}`))
	assert.Equal(t, fiber.StatusOK, send("/login", `{"email":"b@x.com"}`))

	assert.Equal(t, fiber.StatusOK, send("/open", `{}`))
	assert.Equal(t, fiber.StatusOK, send("/open", `{}`))
}
