package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Service exposes token provisioning and redemption on top of a Ledger backend.
type Service struct {
	ledger Ledger
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds a token ledger service.
func NewService(l Ledger, logger *slog.Logger) *Service {
	return &Service{ledger: l, logger: logger, now: time.Now}
}

// Provision registers a new unused authorization code.
func (s *Service) Provision(ctx context.Context, code string) (Token, error) {
	tok, err := s.ledger.Provision(ctx, code, s.now())
	if err != nil {
		return Token{}, err
	}
	s.logger.Info("authorization token provisioned")
	return tok, nil
}

// Get returns the current state of a token.
func (s *Service) Get(ctx context.Context, code string) (Token, error) {
	return s.ledger.Get(ctx, code)
}

// Redeem consumes the token. ErrNotFound and ErrAlreadyUsed are terminal and
// never retried.
func (s *Service) Redeem(ctx context.Context, code string) error {
	_, err := s.ledger.Redeem(ctx, code, s.now())
	redemptions.WithLabelValues(outcomeLabel(err)).Inc()
	if err != nil && !errors.Is(err, ErrAlreadyUsed) && !errors.Is(err, ErrNotFound) {
		s.logger.Error("token redemption failed", slog.Any("error", err))
	}
	return err
}

// Release hands a redeemed token back after the registration it gated
// failed to complete.
func (s *Service) Release(ctx context.Context, code string) error {
	if err := s.ledger.Release(ctx, code); err != nil {
		return err
	}
	s.logger.Warn("authorization token released after failed registration")
	return nil
}
