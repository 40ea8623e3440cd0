package ledger

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound occurs when no authorization token carries the given code.
	ErrNotFound = errors.New("authorization token not found")

	// ErrAlreadyUsed indicates the token was consumed by an earlier registration.
	ErrAlreadyUsed = errors.New("authorization token already used")

	// ErrDuplicateCode is returned when provisioning a code that already exists.
	ErrDuplicateCode = errors.New("authorization token already provisioned")

	// ErrInvalidCode rejects blank codes before they reach a backend.
	ErrInvalidCode = errors.New("authorization token code is required")
)

// Token is a single-use code gating institution onboarding.
type Token struct {
	Code       string
	Used       bool
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// Ledger defines the contract implemented by token ledger backends.
//
// Redeem must perform the used=false -> used=true transition as one atomic
// conditional update: of any number of concurrent callers presenting the same
// fresh code, exactly one succeeds.
//
// Release undoes a redemption whose registration was rolled back. It only
// touches a consumed token and reports ErrNotFound otherwise.
type Ledger interface {
	Provision(ctx context.Context, code string, now time.Time) (Token, error)
	Get(ctx context.Context, code string) (Token, error)
	Redeem(ctx context.Context, code string, now time.Time) (Token, error)
	Release(ctx context.Context, code string) error
}

// NormalizeCode trims surrounding whitespace; codes are otherwise opaque and
// compared exactly.
func NormalizeCode(code string) string {
	return strings.TrimSpace(code)
}
