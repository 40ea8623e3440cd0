package identity

import (
	"context"
	"sync"
)

type displayKeyIndex struct {
	kind Kind
	key  string
}

type memoryRepository struct {
	mu       sync.RWMutex
	byID     map[string]Identity
	byKey    map[displayKeyIndex]string
	byPhrase map[string]string
	byWallet map[string]string
}

// NewMemoryRepository builds an in-memory identity store for development and tests.
// Its indexes give the same uniqueness guarantees as the Postgres constraints.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		byID:     make(map[string]Identity),
		byKey:    make(map[displayKeyIndex]string),
		byPhrase: make(map[string]string),
		byWallet: make(map[string]string),
	}
}

func (r *memoryRepository) Create(_ context.Context, identity Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := displayKeyIndex{kind: identity.Kind, key: identity.DisplayKey}
	if _, exists := r.byKey[key]; exists {
		return ErrDuplicateKey
	}
	if _, exists := r.byPhrase[identity.RecoveryPhrase]; exists {
		return errPhraseCollision
	}
	if identity.WalletAddress != "" {
		if _, exists := r.byWallet[identity.WalletAddress]; exists {
			return ErrAddressInUse
		}
		r.byWallet[identity.WalletAddress] = identity.ID
	}
	r.byID[identity.ID] = identity
	r.byKey[key] = identity.ID
	r.byPhrase[identity.RecoveryPhrase] = identity.ID
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	identity, ok := r.byID[id]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return identity, nil
}

func (r *memoryRepository) FindByDisplayKey(_ context.Context, kind Kind, displayKey string) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byKey[displayKeyIndex{kind: kind, key: displayKey}]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *memoryRepository) FindByPhrase(_ context.Context, phrase string) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPhrase[phrase]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *memoryRepository) BindWallet(_ context.Context, id, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	if owner, taken := r.byWallet[address]; taken && owner != id {
		return ErrAddressInUse
	}
	if identity.WalletAddress != "" && identity.WalletAddress != address {
		delete(r.byWallet, identity.WalletAddress)
	}
	identity.WalletAddress = address
	r.byID[id] = identity
	r.byWallet[address] = id
	return nil
}

func (r *memoryRepository) UnbindWallet(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	if identity.WalletAddress != "" {
		delete(r.byWallet, identity.WalletAddress)
	}
	identity.WalletAddress = ""
	r.byID[id] = identity
	return nil
}

func (r *memoryRepository) SetBiometric(_ context.Context, id, reference string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	identity.BiometricRegistered = true
	identity.BiometricReference = reference
	r.byID[id] = identity
	return nil
}

func (r *memoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byKey, displayKeyIndex{kind: identity.Kind, key: identity.DisplayKey})
	delete(r.byPhrase, identity.RecoveryPhrase)
	if identity.WalletAddress != "" {
		delete(r.byWallet, identity.WalletAddress)
	}
	delete(r.byID, id)
	return nil
}
