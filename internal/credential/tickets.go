package credential

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const ticketPrefix = "reset:v1:"

// TicketStore keeps single-use password reset tickets. Only a hash of the
// ticket is used as the storage key.
type TicketStore interface {
	Put(ctx context.Context, ticket string, account Account, ttl time.Duration) error
	Consume(ctx context.Context, ticket string) (Account, error)
}

func newTicket() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate ticket: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func ticketKey(ticket string) string {
	sum := sha256.Sum256([]byte(ticket))
	return ticketPrefix + hex.EncodeToString(sum[:])
}

// RedisTicketStore stores tickets with a TTL and consumes them with GETDEL,
// so a ticket can be used once even under concurrent submissions.
type RedisTicketStore struct {
	client *redis.Client
}

// NewRedisTicketStore builds a Redis-backed ticket store.
func NewRedisTicketStore(client *redis.Client) *RedisTicketStore {
	return &RedisTicketStore{client: client}
}

// Put stores the ticket.
func (s *RedisTicketStore) Put(ctx context.Context, ticket string, account Account, ttl time.Duration) error {
	payload, err := json.Marshal(account)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, ticketKey(ticket), payload, ttl).Err()
}

// Consume atomically reads and deletes the ticket.
func (s *RedisTicketStore) Consume(ctx context.Context, ticket string) (Account, error) {
	raw, err := s.client.GetDel(ctx, ticketKey(ticket)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Account{}, ErrInvalidTicket
	}
	if err != nil {
		return Account{}, fmt.Errorf("consume ticket: %w", err)
	}
	var account Account
	if err := json.Unmarshal(raw, &account); err != nil {
		return Account{}, fmt.Errorf("decode ticket: %w", err)
	}
	return account, nil
}

type memoryTicket struct {
	account   Account
	expiresAt time.Time
}

type memoryTicketStore struct {
	mu      sync.Mutex
	tickets map[string]memoryTicket
	now     func() time.Time
}

// NewMemoryTicketStore builds an in-memory ticket store for development and tests.
func NewMemoryTicketStore() TicketStore {
	return &memoryTicketStore{tickets: make(map[string]memoryTicket), now: time.Now}
}

func (s *memoryTicketStore) Put(_ context.Context, ticket string, account Account, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[ticketKey(ticket)] = memoryTicket{account: account, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *memoryTicketStore) Consume(_ context.Context, ticket string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ticketKey(ticket)
	t, ok := s.tickets[key]
	if !ok {
		return Account{}, ErrInvalidTicket
	}
	delete(s.tickets, key)
	if !s.now().Before(t.expiresAt) {
		return Account{}, ErrInvalidTicket
	}
	return t.account, nil
}
