package recovery

import (
	"errors"
	"time"

	"github.com/trustid/trustid/internal/identity"
)

// Channel is the recovery path a session follows.
type Channel string

const (
	ChannelPhrase    Channel = "phrase"
	ChannelBiometric Channel = "biometric"
)

// State is a recovery session state.
type State string

const (
	StateStart               State = "start"
	StatePhraseSubmitted     State = "phrase_submitted"
	StateFaceLookupRequested State = "face_lookup_requested"
	StateVerifying           State = "verifying"
	StateGranted             State = "granted"
	StateDenied              State = "denied"
)

var (
	ErrSessionExpired     = errors.New("recovery session expired")
	ErrFaceNotRegistered  = errors.New("face not registered")
	ErrInvalidTransition  = errors.New("invalid recovery transition")
	ErrUnsupportedChannel = errors.New("unsupported recovery channel")
	ErrEmptyCapture       = errors.New("capture artifact is required")
)

var transitions = map[State][]State{
	StateStart:               {StatePhraseSubmitted, StateFaceLookupRequested},
	StatePhraseSubmitted:     {StateVerifying},
	StateFaceLookupRequested: {StateVerifying, StateDenied},
	StateVerifying:           {StateGranted, StateDenied},
}

// CanTransition reports whether from may move to to. Terminal states have no
// outgoing edges.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the state ends a session.
func (s State) Terminal() bool {
	return s == StateGranted || s == StateDenied
}

// Session is an in-progress recovery attempt. Its ID is server issued and
// never derived from caller input.
type Session struct {
	ID         string        `json:"id"`
	Channel    Channel       `json:"channel"`
	State      State         `json:"state"`
	IdentityID string        `json:"identity_id,omitempty"`
	Kind       identity.Kind `json:"kind,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	ExpiresAt  time.Time     `json:"expires_at"`
}

func (s *Session) advance(to State) error {
	if !CanTransition(s.State, to) {
		return ErrInvalidTransition
	}
	s.State = to
	return nil
}

// GrantAction names the downstream effect of a granted recovery.
type GrantAction string

const (
	// ActionResetTicketSent means a password-reset ticket went to the
	// identity's email.
	ActionResetTicketSent GrantAction = "reset_ticket_sent"
	// ActionRecoveryToken means a recovery-scoped token was issued to the
	// caller, for identities without an email binding.
	ActionRecoveryToken GrantAction = "recovery_token"
)

// Grant is the result of a granted recovery.
type Grant struct {
	IdentityID    string        `json:"identity_id"`
	Kind          identity.Kind `json:"kind"`
	Action        GrantAction   `json:"action"`
	RecoveryToken string        `json:"recovery_token,omitempty"`
	ExpiresAt     *time.Time    `json:"expires_at,omitempty"`
}

// Outcome reports where a submission left the session.
type Outcome struct {
	SessionID string `json:"session_id"`
	State     State  `json:"state"`
	Grant     *Grant `json:"grant,omitempty"`
}
