package recovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore keeps recovery sessions until they expire. Expired and absent
// sessions are both reported as ErrSessionExpired.
type SessionStore interface {
	Save(ctx context.Context, session Session) error
	Load(ctx context.Context, id string) (Session, error)
	// Take loads and removes the session in one step so only one caller can
	// drive it to a terminal state.
	Take(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
}

const sessionKeyPrefix = "recovery:session:"

// RedisSessionStore stores sessions as JSON with a TTL matching ExpiresAt.
type RedisSessionStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisSessionStore constructs a Redis-backed session store.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client, now: time.Now}
}

func (s *RedisSessionStore) Save(ctx context.Context, session Session) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return ErrSessionExpired
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode recovery session: %w", err)
	}
	return s.client.Set(ctx, sessionKeyPrefix+session.ID, payload, ttl).Err()
}

func (s *RedisSessionStore) Load(ctx context.Context, id string) (Session, error) {
	return s.decode(s.client.Get(ctx, sessionKeyPrefix+id).Bytes())
}

func (s *RedisSessionStore) Take(ctx context.Context, id string) (Session, error) {
	return s.decode(s.client.GetDel(ctx, sessionKeyPrefix+id).Bytes())
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, sessionKeyPrefix+id).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionExpired
	}
	return nil
}

func (s *RedisSessionStore) decode(payload []byte, err error) (Session, error) {
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrSessionExpired
	}
	if err != nil {
		return Session{}, err
	}
	var session Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return Session{}, fmt.Errorf("decode recovery session: %w", err)
	}
	if !s.now().Before(session.ExpiresAt) {
		return Session{}, ErrSessionExpired
	}
	return session, nil
}

// MemorySessionStore is the in-process store used without Redis. Expired
// entries are ignored on read and dropped by Sweep.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	now      func() time.Time
}

// NewMemorySessionStore builds an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]Session), now: time.Now}
}

func (s *MemorySessionStore) Save(_ context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.now().Before(session.ExpiresAt) {
		return ErrSessionExpired
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *MemorySessionStore) Load(_ context.Context, id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveLocked(id)
}

func (s *MemorySessionStore) Take(_ context.Context, id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.liveLocked(id)
	if err != nil {
		return Session{}, err
	}
	delete(s.sessions, id)
	return session, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.liveLocked(id); err != nil {
		return err
	}
	delete(s.sessions, id)
	return nil
}

// Sweep removes expired sessions and reports how many were dropped.
func (s *MemorySessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	dropped := 0
	for id, session := range s.sessions {
		if !now.Before(session.ExpiresAt) {
			delete(s.sessions, id)
			dropped++
		}
	}
	return dropped
}

// Len reports the number of stored sessions, expired or not.
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *MemorySessionStore) liveLocked(id string) (Session, error) {
	session, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrSessionExpired
	}
	if !s.now().Before(session.ExpiresAt) {
		delete(s.sessions, id)
		return Session{}, ErrSessionExpired
	}
	return session, nil
}
