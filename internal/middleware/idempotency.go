package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "idempotency:v1:"
	inProgressMarker     = "__in_progress__"
	maxIdempotencyKeyLen = 200
)

// ErrIdempotencyInProgress means another request holds the key.
var ErrIdempotencyInProgress = errors.New("duplicate request currently processing")

// StoredResponse is the replayable part of a completed response.
type StoredResponse struct {
	Status  int               `json:"status"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers"`
}

// IdempotencyStore reserves keys and remembers the responses produced under
// them.
type IdempotencyStore interface {
	// Reserve claims key. If a response was already stored it is returned
	// instead; if the key is held by an unfinished request the error is
	// ErrIdempotencyInProgress.
	Reserve(ctx context.Context, key string, ttl time.Duration) (*StoredResponse, error)
	Save(ctx context.Context, key string, resp StoredResponse, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// RedisIdempotencyStore keeps reservations and responses in Redis.
type RedisIdempotencyStore struct {
	client *redis.Client
}

// NewRedisIdempotencyStore constructs a Redis-backed idempotency store.
func NewRedisIdempotencyStore(client *redis.Client) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client}
}

func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (*StoredResponse, error) {
	reserved, err := s.client.SetNX(ctx, idempotencyPrefix+key, inProgressMarker, ttl).Result()
	if err != nil {
		return nil, err
	}
	if reserved {
		return nil, nil
	}
	cached, err := s.client.Get(ctx, idempotencyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrIdempotencyInProgress
	}
	if err != nil {
		return nil, err
	}
	return decodeStored(cached)
}

func (s *RedisIdempotencyStore) Save(ctx context.Context, key string, resp StoredResponse, ttl time.Duration) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, idempotencyPrefix+key, payload, ttl).Err()
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, idempotencyPrefix+key).Err()
}

func decodeStored(cached string) (*StoredResponse, error) {
	if cached == inProgressMarker {
		return nil, ErrIdempotencyInProgress
	}
	var stored StoredResponse
	if err := json.Unmarshal([]byte(cached), &stored); err != nil {
		return nil, fmt.Errorf("decode stored response: %w", err)
	}
	return &stored, nil
}

type memoryIdempotencyEntry struct {
	value   string
	expires time.Time
}

// MemoryIdempotencyStore is the single-process fallback.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]memoryIdempotencyEntry
	now     func() time.Time
}

// NewMemoryIdempotencyStore builds an in-memory idempotency store.
func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{entries: make(map[string]memoryIdempotencyEntry), now: time.Now}
}

func (s *MemoryIdempotencyStore) Reserve(_ context.Context, key string, ttl time.Duration) (*StoredResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if e, ok := s.entries[key]; ok && now.Before(e.expires) {
		return decodeStored(e.value)
	}
	s.entries[key] = memoryIdempotencyEntry{value: inProgressMarker, expires: now.Add(ttl)}
	return nil, nil
}

func (s *MemoryIdempotencyStore) Save(_ context.Context, key string, resp StoredResponse, ttl time.Duration) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryIdempotencyEntry{value: string(payload), expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// IdempotencyOption customizes the Idempotency middleware.
type IdempotencyOption func(*idempotencyConfig)

type idempotencyConfig struct {
	redact []string
}

// RedactFields drops the named top-level JSON fields from a successful
// response before it is stored. Replays never carry them.
func RedactFields(fields ...string) IdempotencyOption {
	return func(cfg *idempotencyConfig) {
		cfg.redact = append(cfg.redact, fields...)
	}
}

// Idempotency replays the first completed response for a repeated
// Idempotency-Key on unsafe methods. Keys are scoped to method and path.
// Failed requests release their key so the caller may retry.
func Idempotency(store IdempotencyStore, ttl time.Duration, logger *slog.Logger, opts ...IdempotencyOption) fiber.Handler {
	var cfg idempotencyConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return func(c *fiber.Ctx) error {
		switch strings.ToUpper(c.Method()) {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		key := c.Get(idempotencyKeyHeader)
		if key == "" {
			return fiber.NewError(fiber.StatusBadRequest, "missing Idempotency-Key header")
		}
		if len(key) > maxIdempotencyKeyLen {
			return fiber.NewError(fiber.StatusBadRequest, "Idempotency-Key too long")
		}
		scoped := c.Method() + ":" + c.Path() + ":" + key

		reserveCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		stored, err := store.Reserve(reserveCtx, scoped, ttl)
		cancel()
		if errors.Is(err, ErrIdempotencyInProgress) {
			return fiber.NewError(fiber.StatusConflict, ErrIdempotencyInProgress.Error())
		}
		if err != nil {
			logger.Error("idempotency reservation failed", slog.Any("error", err))
			return fiber.NewError(fiber.StatusServiceUnavailable, "idempotency store failure")
		}
		if stored != nil {
			for header, value := range stored.Headers {
				if strings.EqualFold(header, fiber.HeaderContentLength) {
					continue
				}
				c.Set(header, value)
			}
			c.Set("Idempotent-Replayed", "true")
			return c.Status(stored.Status).SendString(stored.Body)
		}

		release := func() {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := store.Release(cleanupCtx, scoped); err != nil {
				logger.Warn("idempotency release failed", slog.Any("error", err))
			}
		}

		handlerErr := c.Next()
		persistCtx, persistCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer persistCancel()

		if err := handlerErr; err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
				persistError(persistCtx, store, scoped, fe, ttl, logger, release)
				return err
			}
			release()
			return err
		}

		status := c.Response().StatusCode()
		if status >= fiber.StatusInternalServerError {
			release()
			return nil
		}
		body := c.Response().Body()
		if len(cfg.redact) > 0 {
			redacted, err := redactJSON(body, cfg.redact)
			if err != nil {
				logger.Warn("idempotent response not stored", slog.Any("error", err))
				release()
				return nil
			}
			body = redacted
		}
		resp := StoredResponse{Status: status, Body: string(body), Headers: map[string]string{}}
		c.Response().Header.VisitAll(func(k, v []byte) {
			resp.Headers[string(k)] = string(v)
		})
		if err := store.Save(persistCtx, scoped, resp, ttl); err != nil {
			logger.Error("failed to persist idempotent response", slog.Any("error", err))
			release()
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency persistence failure")
		}
		return nil
	}
}

// persistError stores a client error as the key's outcome so a retry with
// the same key sees the same answer.
func persistError(ctx context.Context, store IdempotencyStore, key string, fe *fiber.Error, ttl time.Duration, logger *slog.Logger, release func()) {
	body, _ := json.Marshal(fiber.Map{"error": fe.Message})
	resp := StoredResponse{
		Status:  fe.Code,
		Body:    string(body),
		Headers: map[string]string{fiber.HeaderContentType: fiber.MIMEApplicationJSON},
	}
	if err := store.Save(ctx, key, resp, ttl); err != nil {
		logger.Warn("failed to persist idempotent error", slog.Any("error", err))
		release()
	}
}

func redactJSON(body []byte, fields []string) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("redact response: %w", err)
	}
	for _, f := range fields {
		delete(doc, f)
	}
	return json.Marshal(doc)
}
