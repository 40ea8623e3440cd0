package middleware

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/trustid/trustid/internal/logging"
)

func redisStore(t *testing.T) IdempotencyStore {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })
	return NewRedisIdempotencyStore(cache)
}

// setupTestApp mounts a handler that counts calls and fails with the status
// given in the ?fail query parameter.
func setupTestApp(t *testing.T, store IdempotencyStore) (*fiber.App, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	app := fiber.New()
	app.Use(Idempotency(store, time.Minute, logging.Discard()))
	app.Post("/resource", func(c *fiber.Ctx) error {
		n := calls.Add(1)
		if code := c.QueryInt("fail"); code != 0 {
			return fiber.NewError(code, "failed")
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"call": n})
	})
	return app, &calls
}

func post(t *testing.T, app *fiber.App, target, key string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, target, strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	app, calls := setupTestApp(t, redisStore(t))
	status, _ := post(t, app, "/resource", "")
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, status)
	}
	if calls.Load() != 0 {
		t.Fatalf("handler should not run without a key")
	}
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	for name, store := range map[string]IdempotencyStore{
		"redis":  redisStore(t),
		"memory": NewMemoryIdempotencyStore(),
	} {
		t.Run(name, func(t *testing.T) {
			app, calls := setupTestApp(t, store)

			status, first := post(t, app, "/resource", "abc123")
			if status != fiber.StatusCreated {
				t.Fatalf("expected status %d got %d", fiber.StatusCreated, status)
			}
			status, second := post(t, app, "/resource", "abc123")
			if status != fiber.StatusCreated {
				t.Fatalf("expected cached status %d got %d", fiber.StatusCreated, status)
			}
			if first != second {
				t.Fatalf("expected cached payload %s got %s", first, second)
			}
			if calls.Load() != 1 {
				t.Fatalf("handler ran %d times, want 1", calls.Load())
			}
			var decoded map[string]any
			if err := json.Unmarshal([]byte(second), &decoded); err != nil {
				t.Fatalf("cached payload invalid json: %v", err)
			}
		})
	}
}

func TestIdempotencyReplaysClientErrors(t *testing.T) {
	app, calls := setupTestApp(t, NewMemoryIdempotencyStore())
	status, _ := post(t, app, "/resource?fail=409", "dup")
	if status != fiber.StatusConflict {
		t.Fatalf("expected 409 got %d", status)
	}
	status, body := post(t, app, "/resource?fail=409", "dup")
	if status != fiber.StatusConflict || !strings.Contains(body, "failed") {
		t.Fatalf("expected replayed 409, got %d %s", status, body)
	}
	if calls.Load() != 1 {
		t.Fatalf("handler ran %d times, want 1", calls.Load())
	}
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	app, calls := setupTestApp(t, redisStore(t))
	status, _ := post(t, app, "/resource?fail=500", "retry-me")
	if status != fiber.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", status)
	}
	status, _ = post(t, app, "/resource", "retry-me")
	if status != fiber.StatusCreated {
		t.Fatalf("retry after server error: expected 201 got %d", status)
	}
	if calls.Load() != 2 {
		t.Fatalf("handler ran %d times, want 2", calls.Load())
	}
}

func TestIdempotencyRejectsKeyInProgress(t *testing.T) {
	store := NewMemoryIdempotencyStore()
	scoped := fiber.MethodPost + ":/resource:busy"
	if _, err := store.Reserve(t.Context(), scoped, time.Minute); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	app, calls := setupTestApp(t, store)
	status, _ := post(t, app, "/resource", "busy")
	if status != fiber.StatusConflict {
		t.Fatalf("expected 409 got %d", status)
	}
	if calls.Load() != 0 {
		t.Fatalf("handler should not run while key is held")
	}
}

func TestIdempotencyKeysAreScopedByPath(t *testing.T) {
	store := NewMemoryIdempotencyStore()
	app, calls := setupTestApp(t, store)
	app.Post("/other", func(c *fiber.Ctx) error {
		calls.Add(1)
		return c.SendStatus(fiber.StatusAccepted)
	})
	post(t, app, "/resource", "shared")
	status, _ := post(t, app, "/other", "shared")
	if status != fiber.StatusAccepted {
		t.Fatalf("expected 202 got %d", status)
	}
	if calls.Load() != 2 {
		t.Fatalf("handler ran %d times, want 2", calls.Load())
	}
}

func TestIdempotencyReplayOmitsRedactedFields(t *testing.T) {
	for name, store := range map[string]IdempotencyStore{
		"redis":  redisStore(t),
		"memory": NewMemoryIdempotencyStore(),
	} {
		t.Run(name, func(t *testing.T) {
			var calls atomic.Int32
			app := fiber.New()
			app.Post("/register", Idempotency(store, time.Minute, logging.Discard(), RedactFields("secret")), func(c *fiber.Ctx) error {
				calls.Add(1)
				return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": "abc", "secret": "shown-once"})
			})

			status, first := post(t, app, "/register", "once")
			if status != fiber.StatusCreated || !strings.Contains(first, "shown-once") {
				t.Fatalf("first response must carry the secret, got %d %s", status, first)
			}
			status, second := post(t, app, "/register", "once")
			if status != fiber.StatusCreated {
				t.Fatalf("expected replayed 201 got %d", status)
			}
			if strings.Contains(second, "secret") || strings.Contains(second, "shown-once") {
				t.Fatalf("replay leaked a redacted field: %s", second)
			}
			var decoded map[string]any
			if err := json.Unmarshal([]byte(second), &decoded); err != nil {
				t.Fatalf("replayed payload invalid json: %v", err)
			}
			if decoded["id"] != "abc" {
				t.Fatalf("replay lost unredacted fields: %s", second)
			}
			if calls.Load() != 1 {
				t.Fatalf("handler ran %d times, want 1", calls.Load())
			}
		})
	}
}
