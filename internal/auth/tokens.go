package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token scopes.
const (
	ScopeSession  = "session"
	ScopeRecovery = "recovery"
)

// ErrInvalidToken covers malformed, expired, wrongly scoped and revoked tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims are carried by every token the gateway signs.
type Claims struct {
	Kind  string `json:"kind"`
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// Signer issues and parses HS256 tokens.
type Signer struct {
	secret []byte
	issuer string
}

// NewSigner builds a signer for the given secret.
func NewSigner(secret, issuer string) *Signer {
	return &Signer{secret: []byte(secret), issuer: issuer}
}

// Sign issues a token for the subject with a fresh session id (jti).
func (s *Signer) Sign(subject, kind, scope string, now time.Time, ttl time.Duration) (string, Claims, error) {
	claims := Claims{
		Kind:  kind,
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies signature, issuer, expiry and scope.
func (s *Signer) Parse(token, scope string, now time.Time) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	if claims.Scope != scope || claims.Subject == "" || claims.ID == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
