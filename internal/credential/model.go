package credential

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates no credential exists for the account.
	ErrNotFound = errors.New("credential not found")

	// ErrWeakPassword rejects passwords below the minimum length.
	ErrWeakPassword = errors.New("password must be at least 8 characters")

	// ErrInvalidTicket covers unknown, expired and already consumed reset tickets.
	ErrInvalidTicket = errors.New("invalid or expired reset ticket")
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// Credential is a stored password hash for one account, addressed by the
// identity kind and display key.
type Credential struct {
	Kind         string
	DisplayKey   string
	PasswordHash []byte
	UpdatedAt    time.Time
}

// Account addresses a credential. It is what a reset ticket resolves to.
type Account struct {
	Kind       string `json:"kind"`
	DisplayKey string `json:"display_key"`
}
