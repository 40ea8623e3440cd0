package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedSessionPrefix = "revoked:sid:"

// RevocationList records session ids that must no longer be honoured.
type RevocationList interface {
	Revoke(ctx context.Context, sessionID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// RedisRevocationList keeps revoked session ids until their token would have
// expired anyway.
type RedisRevocationList struct {
	client *redis.Client
}

// NewRedisRevocationList constructs a Redis-backed revocation list.
func NewRedisRevocationList(client *redis.Client) *RedisRevocationList {
	return &RedisRevocationList{client: client}
}

// Revoke marks the session id revoked for ttl.
func (r *RedisRevocationList) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	if sessionID == "" || ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, revokedSessionPrefix+sessionID, "1", ttl).Err()
}

// IsRevoked reports whether the session id is on the list.
func (r *RedisRevocationList) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	_, err := r.client.Get(ctx, revokedSessionPrefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type memoryRevocationList struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevocationList builds an in-memory revocation list.
func NewMemoryRevocationList() RevocationList {
	return &memoryRevocationList{revoked: make(map[string]time.Time), now: time.Now}
}

func (m *memoryRevocationList) Revoke(_ context.Context, sessionID string, ttl time.Duration) error {
	if sessionID == "" || ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[sessionID] = m.now().Add(ttl)
	return nil
}

func (m *memoryRevocationList) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.revoked[sessionID]
	if !ok {
		return false, nil
	}
	if !m.now().Before(until) {
		delete(m.revoked, sessionID)
		return false, nil
	}
	return true, nil
}
