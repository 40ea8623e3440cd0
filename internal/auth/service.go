package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/trustid/trustid/internal/credential"
	"github.com/trustid/trustid/internal/identity"
	"github.com/trustid/trustid/internal/recovery"
)

// ErrInvalidCredentials is returned for unknown accounts and wrong passwords
// alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Identities resolves identities for the gateway.
type Identities interface {
	Get(ctx context.Context, id string) (identity.Identity, error)
	LookupByDisplayKey(ctx context.Context, kind identity.Kind, displayKey string) (identity.Identity, error)
}

// Credentials is the password side of the external credential service.
type Credentials interface {
	VerifyPassword(ctx context.Context, kind, displayKey, password string) (bool, error)
	ResetPassword(ctx context.Context, kind, displayKey, newPassword string) error
	RequestReset(ctx context.Context, account credential.Account, destination string) error
	CompleteReset(ctx context.Context, ticket, newPassword string) error
}

// Options tunes token lifetimes.
type Options struct {
	SessionTTL time.Duration
	GrantTTL   time.Duration
}

// Session is what a successful login hands back to the caller.
type Session struct {
	Token      string        `json:"token"`
	IdentityID string        `json:"identity_id"`
	Kind       identity.Kind `json:"kind"`
	ExpiresAt  time.Time     `json:"expires_at"`
}

// Service authenticates identities and issues session and recovery tokens.
type Service struct {
	identities  Identities
	credentials Credentials
	signer      *Signer
	revocations RevocationList
	logger      *slog.Logger
	sessionTTL  time.Duration
	grantTTL    time.Duration
	now         func() time.Time
}

// NewService builds the authentication gateway.
func NewService(identities Identities, credentials Credentials, signer *Signer, revocations RevocationList, logger *slog.Logger, opts Options) *Service {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = time.Hour
	}
	if opts.GrantTTL <= 0 {
		opts.GrantTTL = 15 * time.Minute
	}
	return &Service{
		identities:  identities,
		credentials: credentials,
		signer:      signer,
		revocations: revocations,
		logger:      logger,
		sessionTTL:  opts.SessionTTL,
		grantTTL:    opts.GrantTTL,
		now:         time.Now,
	}
}

// Login verifies the password with the credential service, resolves the
// identity and issues a session token bound to it.
func (s *Service) Login(ctx context.Context, kind identity.Kind, displayKey, password string) (Session, error) {
	if kind == identity.KindIndividual {
		displayKey = identity.IndividualKey(displayKey)
	}
	ok, err := s.credentials.VerifyPassword(ctx, string(kind), displayKey, password)
	if err != nil {
		logins.WithLabelValues("error").Inc()
		return Session{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		logins.WithLabelValues("rejected").Inc()
		return Session{}, ErrInvalidCredentials
	}
	found, err := s.identities.LookupByDisplayKey(ctx, kind, displayKey)
	if errors.Is(err, identity.ErrNotFound) {
		logins.WithLabelValues("rejected").Inc()
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		logins.WithLabelValues("error").Inc()
		return Session{}, err
	}

	token, claims, err := s.signer.Sign(found.ID, string(found.Kind), ScopeSession, s.now(), s.sessionTTL)
	if err != nil {
		return Session{}, err
	}
	logins.WithLabelValues("ok").Inc()
	s.logger.Info("login succeeded", slog.String("identity_id", found.ID), slog.String("session_id", claims.ID))
	return Session{Token: token, IdentityID: found.ID, Kind: found.Kind, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Authenticate validates a session token and returns its claims.
func (s *Service) Authenticate(ctx context.Context, token string) (Claims, error) {
	return s.verify(ctx, token, ScopeSession)
}

// Logout revokes the session until it would have expired.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.verify(ctx, token, ScopeSession)
	if err != nil {
		return err
	}
	if err := s.revoke(ctx, claims); err != nil {
		return err
	}
	s.logger.Info("logout", slog.String("identity_id", claims.Subject), slog.String("session_id", claims.ID))
	return nil
}

// Grant performs the downstream action of a granted recovery. Identities
// with an email receive a password-reset ticket there; the rest receive a
// recovery-scoped token in the response.
func (s *Service) Grant(ctx context.Context, id identity.Identity) (recovery.Grant, error) {
	grant := recovery.Grant{IdentityID: id.ID, Kind: id.Kind}
	if address := id.NotifyAddress(); address != "" {
		account := credential.Account{Kind: string(id.Kind), DisplayKey: id.DisplayKey}
		if err := s.credentials.RequestReset(ctx, account, address); err != nil {
			return recovery.Grant{}, err
		}
		grant.Action = recovery.ActionResetTicketSent
		return grant, nil
	}

	token, claims, err := s.signer.Sign(id.ID, string(id.Kind), ScopeRecovery, s.now(), s.grantTTL)
	if err != nil {
		return recovery.Grant{}, err
	}
	expires := claims.ExpiresAt.Time
	grant.Action = recovery.ActionRecoveryToken
	grant.RecoveryToken = token
	grant.ExpiresAt = &expires
	return grant, nil
}

// CompleteTicketReset sets a new password using an emailed reset ticket.
func (s *Service) CompleteTicketReset(ctx context.Context, ticket, newPassword string) error {
	return s.credentials.CompleteReset(ctx, ticket, newPassword)
}

// CompleteRecoveryReset sets a new password using a recovery-scoped token.
// The token is revoked once the password is stored.
func (s *Service) CompleteRecoveryReset(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < credential.MinPasswordLength {
		return credential.ErrWeakPassword
	}
	claims, err := s.verify(ctx, token, ScopeRecovery)
	if err != nil {
		return err
	}
	target, err := s.identities.Get(ctx, claims.Subject)
	if errors.Is(err, identity.ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}
	if err := s.credentials.ResetPassword(ctx, string(target.Kind), target.DisplayKey, newPassword); err != nil {
		return err
	}
	if err := s.revoke(ctx, claims); err != nil {
		return err
	}
	s.logger.Info("password reset via recovery token", slog.String("identity_id", target.ID))
	return nil
}

func (s *Service) verify(ctx context.Context, token, scope string) (Claims, error) {
	claims, err := s.signer.Parse(token, scope, s.now())
	if err != nil {
		return Claims{}, err
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return Claims{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) revoke(ctx context.Context, claims Claims) error {
	ttl := claims.ExpiresAt.Time.Sub(s.now())
	if err := s.revocations.Revoke(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
