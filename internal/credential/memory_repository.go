package credential

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu    sync.RWMutex
	creds map[Account]Credential
}

// NewMemoryRepository builds an in-memory credential store.
func NewMemoryRepository() Repository {
	return &memoryRepository{creds: make(map[Account]Credential)}
}

func (r *memoryRepository) Upsert(_ context.Context, cred Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creds[Account{Kind: cred.Kind, DisplayKey: cred.DisplayKey}] = cred
	return nil
}

func (r *memoryRepository) Find(_ context.Context, kind, displayKey string) (Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cred, ok := r.creds[Account{Kind: kind, DisplayKey: displayKey}]
	if !ok {
		return Credential{}, ErrNotFound
	}
	return cred, nil
}
