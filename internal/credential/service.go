package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/trustid/trustid/internal/notification"
)

// Service owns password hashing, verification and the reset flow.
type Service struct {
	repo      Repository
	tickets   TicketStore
	notifier  notification.Notifier
	logger    *slog.Logger
	cost      int
	ticketTTL time.Duration
	dummyHash []byte
	now       func() time.Time
}

// Options tunes a credential Service.
type Options struct {
	BcryptCost int
	TicketTTL  time.Duration
}

// NewService builds a credential service. The dummy hash lets VerifyPassword
// spend comparable time on unknown accounts.
func NewService(repo Repository, tickets TicketStore, notifier notification.Notifier, logger *slog.Logger, opts Options) (*Service, error) {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.TicketTTL <= 0 {
		opts.TicketTTL = 15 * time.Minute
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &Service{
		repo:      repo,
		tickets:   tickets,
		notifier:  notifier,
		logger:    logger,
		cost:      opts.BcryptCost,
		ticketTTL: opts.TicketTTL,
		dummyHash: dummy,
		now:       time.Now,
	}, nil
}

// SetPassword hashes and stores the password for an account.
func (s *Service) SetPassword(ctx context.Context, kind, displayKey, password string) error {
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.Upsert(ctx, Credential{
		Kind:         kind,
		DisplayKey:   displayKey,
		PasswordHash: hash,
		UpdatedAt:    s.now().UTC(),
	})
}

// VerifyPassword reports whether the password matches. Unknown accounts
// return false after a comparison against the dummy hash.
func (s *Service) VerifyPassword(ctx context.Context, kind, displayKey, password string) (bool, error) {
	cred, err := s.repo.Find(ctx, kind, displayKey)
	if errors.Is(err, ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return bcrypt.CompareHashAndPassword(cred.PasswordHash, []byte(password)) == nil, nil
}

// ResetPassword replaces the password of an existing account.
func (s *Service) ResetPassword(ctx context.Context, kind, displayKey, newPassword string) error {
	if _, err := s.repo.Find(ctx, kind, displayKey); err != nil {
		return err
	}
	return s.SetPassword(ctx, kind, displayKey, newPassword)
}

// RequestReset issues a single-use reset ticket and delivers it to the
// account's contact address through the notifier.
func (s *Service) RequestReset(ctx context.Context, account Account, destination string) error {
	ticket, err := newTicket()
	if err != nil {
		return err
	}
	if err := s.tickets.Put(ctx, ticket, account, s.ticketTTL); err != nil {
		return fmt.Errorf("store reset ticket: %w", err)
	}
	if s.notifier != nil {
		if err := s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindPasswordReset,
			Destination: destination,
			Body:        ticket,
		}); err != nil {
			return fmt.Errorf("deliver reset ticket: %w", err)
		}
	}
	s.logger.Info("password reset requested", slog.String("kind", account.Kind))
	return nil
}

// CompleteReset consumes the ticket and sets the new password.
func (s *Service) CompleteReset(ctx context.Context, ticket, newPassword string) error {
	if len(newPassword) < MinPasswordLength {
		return ErrWeakPassword
	}
	account, err := s.tickets.Consume(ctx, ticket)
	if err != nil {
		return err
	}
	return s.ResetPassword(ctx, account.Kind, account.DisplayKey, newPassword)
}
