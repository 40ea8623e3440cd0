package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trustid/trustid/internal/credential"
	"github.com/trustid/trustid/internal/ledger"
	"github.com/trustid/trustid/internal/mnemonic"
)

// maxPhraseAttempts bounds regeneration after recovery phrase collisions.
const maxPhraseAttempts = 5

const rollbackTimeout = 5 * time.Second

// TokenRedeemer consumes institution authorization tokens. Release hands a
// token back when the registration it gated is rolled back.
type TokenRedeemer interface {
	Redeem(ctx context.Context, code string) error
	Release(ctx context.Context, code string) error
}

// PhraseIssuer draws fresh recovery phrases.
type PhraseIssuer interface {
	Issue() (string, error)
}

// PasswordSetter stores the initial password with the credential service.
type PasswordSetter interface {
	SetPassword(ctx context.Context, kind, displayKey, password string) error
}

// Service manages the identity lifecycle.
type Service struct {
	repo      Repository
	tokens    TokenRedeemer
	phrases   PhraseIssuer
	passwords PasswordSetter
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a new identity service.
func NewService(repo Repository, tokens TokenRedeemer, phrases PhraseIssuer, passwords PasswordSetter, logger *slog.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, phrases: phrases, passwords: passwords, logger: logger, now: time.Now}
}

// CreateInput carries everything needed to register an identity. The kind is
// taken from the Contact variant.
type CreateInput struct {
	Contact   Contact
	Password  string
	AuthToken string
}

// Create registers an identity and returns it with its plaintext recovery
// phrase. This is the only time the phrase leaves the store.
//
// For institutions the authorization token is redeemed first; any redemption
// failure becomes ErrInvalidToken. The display key is checked before
// redemption so a taken key does not burn a token, but the store's unique
// constraint stays the authority. A failure after redemption releases the
// token, and a failure after the insert also deletes the row, so a failed
// registration leaves nothing behind.
func (s *Service) Create(ctx context.Context, input CreateInput) (Identity, error) {
	contact, err := validateContact(input.Contact)
	if err != nil {
		return Identity{}, err
	}
	if len(input.Password) < credential.MinPasswordLength {
		return Identity{}, credential.ErrWeakPassword
	}
	kind := contact.Kind()
	displayKey := DisplayKeyFor(contact)

	if _, err := s.repo.FindByDisplayKey(ctx, kind, displayKey); err == nil {
		return Identity{}, ErrDuplicateKey
	} else if !errors.Is(err, ErrNotFound) {
		return Identity{}, err
	}

	var redeemed string
	if kind == KindInstitution {
		code := ledger.NormalizeCode(input.AuthToken)
		if err := s.tokens.Redeem(ctx, code); err != nil {
			if errors.Is(err, ledger.ErrAlreadyUsed) || errors.Is(err, ledger.ErrNotFound) {
				return Identity{}, ErrInvalidToken
			}
			return Identity{}, fmt.Errorf("redeem authorization token: %w", err)
		}
		redeemed = code
		inst := contact.(InstitutionContact)
		inst.ManagerCodeUsed = code
		contact = inst
	}

	identity := Identity{
		ID:         uuid.NewString(),
		Kind:       kind,
		DisplayKey: displayKey,
		Contact:    contact,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.insertWithFreshPhrase(ctx, &identity); err != nil {
		s.rollback(ctx, "", redeemed)
		return Identity{}, err
	}

	if err := s.passwords.SetPassword(ctx, string(kind), displayKey, input.Password); err != nil {
		s.rollback(ctx, identity.ID, redeemed)
		return Identity{}, fmt.Errorf("store password: %w", err)
	}

	registrations.WithLabelValues(string(kind)).Inc()
	s.logger.Info("identity registered", slog.String("identity_id", identity.ID), slog.String("kind", string(kind)))
	return identity, nil
}

// rollback undoes the parts of a failed registration that were already
// written. It runs detached from the request so a cancelled caller still
// cleans up.
func (s *Service) rollback(ctx context.Context, identityID, tokenCode string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	if identityID != "" {
		if err := s.repo.Delete(ctx, identityID); err != nil {
			s.logger.Error("registration rollback: delete identity failed",
				slog.String("identity_id", identityID), slog.Any("error", err))
		}
	}
	if tokenCode != "" {
		if err := s.tokens.Release(ctx, tokenCode); err != nil {
			s.logger.Error("registration rollback: release token failed", slog.Any("error", err))
		}
	}
}

func (s *Service) insertWithFreshPhrase(ctx context.Context, identity *Identity) error {
	for attempt := 1; attempt <= maxPhraseAttempts; attempt++ {
		phrase, err := s.phrases.Issue()
		if err != nil {
			return fmt.Errorf("issue recovery phrase: %w", err)
		}
		identity.RecoveryPhrase = phrase

		err = s.repo.Create(ctx, *identity)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errPhraseCollision) {
			return err
		}
		phraseCollisions.Inc()
		s.logger.Warn("recovery phrase collision, regenerating", slog.Int("attempt", attempt))
	}
	return ErrGenerationFailed
}

// Get returns an identity by id.
func (s *Service) Get(ctx context.Context, id string) (Identity, error) {
	return s.repo.FindByID(ctx, id)
}

// LookupByDisplayKey resolves an identity by kind and display key. Individual
// keys are canonicalized the same way as at registration.
func (s *Service) LookupByDisplayKey(ctx context.Context, kind Kind, displayKey string) (Identity, error) {
	if kind == KindIndividual {
		displayKey = IndividualKey(displayKey)
	}
	return s.repo.FindByDisplayKey(ctx, kind, displayKey)
}

// VerifyPhrase finds the identity holding the phrase. Matching is exact and
// case-sensitive after whitespace normalization.
func (s *Service) VerifyPhrase(ctx context.Context, phrase string) (Identity, error) {
	normalized := mnemonic.Normalize(phrase)
	if err := mnemonic.Validate(normalized); err != nil {
		return Identity{}, ErrNotFound
	}
	return s.repo.FindByPhrase(ctx, normalized)
}

// BindWallet binds an external wallet address to the identity. Rebinding the
// same address to the same identity is a no-op.
func (s *Service) BindWallet(ctx context.Context, id, address string) error {
	if strings.TrimSpace(address) == "" {
		return fmt.Errorf("%w: wallet address is required", ErrInvalidInput)
	}
	if err := s.repo.BindWallet(ctx, id, address); err != nil {
		return err
	}
	s.logger.Info("wallet bound", slog.String("identity_id", id))
	return nil
}

// UnbindWallet releases the identity's wallet address.
func (s *Service) UnbindWallet(ctx context.Context, id string) error {
	return s.repo.UnbindWallet(ctx, id)
}

// SetBiometricRegistered records a biometric capture reference. Re-registration
// overwrites the previous reference.
func (s *Service) SetBiometricRegistered(ctx context.Context, id, reference string) error {
	if strings.TrimSpace(reference) == "" {
		return fmt.Errorf("%w: biometric reference is required", ErrInvalidInput)
	}
	if err := s.repo.SetBiometric(ctx, id, reference); err != nil {
		return err
	}
	s.logger.Info("biometric registered", slog.String("identity_id", id))
	return nil
}
