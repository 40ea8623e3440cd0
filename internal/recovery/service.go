package recovery

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/trustid/trustid/internal/identity"
)

// Identities is the slice of the identity service recovery relies on.
type Identities interface {
	Get(ctx context.Context, id string) (identity.Identity, error)
	LookupByDisplayKey(ctx context.Context, kind identity.Kind, displayKey string) (identity.Identity, error)
	VerifyPhrase(ctx context.Context, phrase string) (identity.Identity, error)
}

// Granter performs the downstream action once recovery is granted.
type Granter interface {
	Grant(ctx context.Context, id identity.Identity) (Grant, error)
}

// Options tunes the orchestrator.
type Options struct {
	SessionTTL     time.Duration
	MatchThreshold float64
}

// Service drives recovery sessions through their state machine.
type Service struct {
	store      SessionStore
	identities Identities
	granter    Granter
	matcher    FaceMatcher
	logger     *slog.Logger
	ttl        time.Duration
	threshold  float64
	now        func() time.Time
}

// NewService builds a recovery orchestrator. A nil matcher falls back to
// PlaceholderMatcher.
func NewService(store SessionStore, identities Identities, granter Granter, matcher FaceMatcher, logger *slog.Logger, opts Options) *Service {
	if matcher == nil {
		matcher = PlaceholderMatcher{}
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 10 * time.Minute
	}
	if opts.MatchThreshold <= 0 {
		opts.MatchThreshold = 0.8
	}
	return &Service{
		store:      store,
		identities: identities,
		granter:    granter,
		matcher:    matcher,
		logger:     logger,
		ttl:        opts.SessionTTL,
		threshold:  opts.MatchThreshold,
		now:        time.Now,
	}
}

func (s *Service) newSession(channel Channel) (Session, error) {
	now := s.now().UTC()
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return Session{}, fmt.Errorf("issue session id: %w", err)
	}
	return Session{
		ID:        id.String(),
		Channel:   channel,
		State:     StateStart,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}, nil
}

// Start opens a phrase-channel session. The biometric channel is opened by
// RequestFaceLookup because it needs the target identity up front.
func (s *Service) Start(ctx context.Context, channel Channel) (Session, error) {
	if channel != ChannelPhrase {
		return Session{}, ErrUnsupportedChannel
	}
	session, err := s.newSession(channel)
	if err != nil {
		return Session{}, err
	}
	if err := s.store.Save(ctx, session); err != nil {
		return Session{}, err
	}
	return session, nil
}

// SubmitPhrase verifies a candidate phrase. A match grants recovery for the
// identity holding it; anything else denies. Either way the session ends.
func (s *Service) SubmitPhrase(ctx context.Context, sessionID, phrase string) (Outcome, error) {
	session, err := s.claim(ctx, sessionID, ChannelPhrase, StateStart)
	if err != nil {
		return Outcome{}, err
	}
	if err := session.advance(StatePhraseSubmitted); err != nil {
		return Outcome{}, err
	}
	if err := session.advance(StateVerifying); err != nil {
		return Outcome{}, err
	}

	found, err := s.identities.VerifyPhrase(ctx, phrase)
	if errors.Is(err, identity.ErrNotFound) {
		return s.deny(session)
	}
	if err != nil {
		return Outcome{}, err
	}
	return s.grant(ctx, session, found)
}

// RequestFaceLookup opens a biometric session for the identity. Unknown
// identities and identities without an enrolment both fail with
// ErrFaceNotRegistered, and no session is stored for them.
func (s *Service) RequestFaceLookup(ctx context.Context, kind identity.Kind, displayKey string) (Session, error) {
	found, err := s.identities.LookupByDisplayKey(ctx, kind, displayKey)
	if err != nil && !errors.Is(err, identity.ErrNotFound) {
		return Session{}, err
	}
	if err != nil || !found.BiometricRegistered {
		faceLookupRejections.Inc()
		outcomes.WithLabelValues(string(ChannelBiometric), string(StateDenied)).Inc()
		return Session{}, ErrFaceNotRegistered
	}

	session, err := s.newSession(ChannelBiometric)
	if err != nil {
		return Session{}, err
	}
	if err := session.advance(StateFaceLookupRequested); err != nil {
		return Session{}, err
	}
	if err := session.advance(StateVerifying); err != nil {
		return Session{}, err
	}
	session.IdentityID = found.ID
	session.Kind = found.Kind
	if err := s.store.Save(ctx, session); err != nil {
		return Session{}, err
	}
	s.logger.Info("face lookup accepted", slog.String("session_id", session.ID))
	return session, nil
}

// SubmitCapture scores the captured artifact against the enrolment and ends
// the session as granted or denied.
func (s *Service) SubmitCapture(ctx context.Context, sessionID, artifact string) (Outcome, error) {
	if strings.TrimSpace(artifact) == "" {
		return Outcome{}, ErrEmptyCapture
	}
	session, err := s.claim(ctx, sessionID, ChannelBiometric, StateVerifying)
	if err != nil {
		return Outcome{}, err
	}

	target, err := s.identities.Get(ctx, session.IdentityID)
	if errors.Is(err, identity.ErrNotFound) {
		return s.deny(session)
	}
	if err != nil {
		return Outcome{}, err
	}
	score, err := s.matcher.Match(ctx, target.BiometricReference, artifact)
	if err != nil {
		return Outcome{}, fmt.Errorf("match capture: %w", err)
	}
	if score < s.threshold {
		return s.deny(session)
	}
	return s.grant(ctx, session, target)
}

// Cancel discards a session. Capture cancellation lands here too.
func (s *Service) Cancel(ctx context.Context, sessionID string) error {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return err
	}
	s.logger.Info("recovery cancelled", slog.String("session_id", sessionID))
	return nil
}

// Sweep drops expired sessions from stores that hold them in process.
// Stores with native expiry have nothing to sweep.
func (s *Service) Sweep() int {
	sweeper, ok := s.store.(interface{ Sweep() int })
	if !ok {
		return 0
	}
	n := sweeper.Sweep()
	sweptSessions.Add(float64(n))
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) error {
	if _, ok := s.store.(interface{ Sweep() int }); !ok {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("expired recovery sessions swept", slog.Int("count", n))
			}
		}
	}
}

// claim checks the session is in the expected channel and state, then takes
// it out of the store. A concurrent claimant loses with ErrSessionExpired.
func (s *Service) claim(ctx context.Context, sessionID string, channel Channel, state State) (Session, error) {
	session, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if session.Channel != channel || session.State != state {
		return Session{}, ErrInvalidTransition
	}
	return s.store.Take(ctx, sessionID)
}

func (s *Service) deny(session Session) (Outcome, error) {
	if err := session.advance(StateDenied); err != nil {
		return Outcome{}, err
	}
	outcomes.WithLabelValues(string(session.Channel), string(StateDenied)).Inc()
	s.logger.Info("recovery denied", slog.String("session_id", session.ID), slog.String("channel", string(session.Channel)))
	return Outcome{SessionID: session.ID, State: StateDenied}, nil
}

func (s *Service) grant(ctx context.Context, session Session, target identity.Identity) (Outcome, error) {
	if err := session.advance(StateGranted); err != nil {
		return Outcome{}, err
	}
	grant, err := s.granter.Grant(ctx, target)
	if err != nil {
		return Outcome{}, fmt.Errorf("grant recovery: %w", err)
	}
	outcomes.WithLabelValues(string(session.Channel), string(StateGranted)).Inc()
	s.logger.Info("recovery granted",
		slog.String("session_id", session.ID),
		slog.String("channel", string(session.Channel)),
		slog.String("identity_id", target.ID),
	)
	return Outcome{SessionID: session.ID, State: StateGranted, Grant: &grant}, nil
}
