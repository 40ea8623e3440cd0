package wallet

import (
	"context"
)

// Binder stores the identity-to-address binding.
type Binder interface {
	BindWallet(ctx context.Context, identityID, address string) error
	UnbindWallet(ctx context.Context, identityID string) error
}

// Service consumes addresses handed over by the wallet bridge.
type Service struct {
	binder Binder
}

// NewService builds a wallet service instance.
func NewService(binder Binder) *Service {
	return &Service{binder: binder}
}

// Connect binds the address reported by the wallet extension to the identity.
func (s *Service) Connect(ctx context.Context, identityID, rawAddress string) (string, error) {
	addr, err := NormalizeAddress(rawAddress)
	if err != nil {
		return "", err
	}
	if err := s.binder.BindWallet(ctx, identityID, addr); err != nil {
		return "", err
	}
	return addr, nil
}

// Disconnect releases the identity's address.
func (s *Service) Disconnect(ctx context.Context, identityID string) error {
	return s.binder.UnbindWallet(ctx, identityID)
}
