package ledger

import (
	"context"
	"sync"
	"time"
)

type inMemoryLedger struct {
	mu     sync.Mutex
	tokens map[string]Token
}

// NewInMemory creates a concurrency-safe in-memory ledger for development and tests.
func NewInMemory() Ledger {
	return &inMemoryLedger{tokens: make(map[string]Token)}
}

func (l *inMemoryLedger) Provision(_ context.Context, code string, now time.Time) (Token, error) {
	code = NormalizeCode(code)
	if code == "" {
		return Token{}, ErrInvalidCode
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.tokens[code]; exists {
		return Token{}, ErrDuplicateCode
	}
	tok := Token{Code: code, CreatedAt: now.UTC()}
	l.tokens[code] = tok
	return tok, nil
}

func (l *inMemoryLedger) Get(_ context.Context, code string) (Token, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tok, ok := l.tokens[NormalizeCode(code)]
	if !ok {
		return Token{}, ErrNotFound
	}
	return tok, nil
}

// Redeem checks and flips the used flag inside one critical section.
func (l *inMemoryLedger) Redeem(_ context.Context, code string, now time.Time) (Token, error) {
	code = NormalizeCode(code)
	if code == "" {
		return Token{}, ErrNotFound
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tok, ok := l.tokens[code]
	if !ok {
		return Token{}, ErrNotFound
	}
	if tok.Used {
		return tok, ErrAlreadyUsed
	}

	consumed := now.UTC()
	tok.Used = true
	tok.ConsumedAt = &consumed
	l.tokens[code] = tok
	return tok, nil
}

func (l *inMemoryLedger) Release(_ context.Context, code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	code = NormalizeCode(code)
	tok, ok := l.tokens[code]
	if !ok || !tok.Used {
		return ErrNotFound
	}
	tok.Used = false
	tok.ConsumedAt = nil
	l.tokens[code] = tok
	return nil
}
