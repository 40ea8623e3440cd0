package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/trustid/trustid/internal/auth"
	"github.com/trustid/trustid/internal/identity"
)

// Authenticator validates session tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Claims, error)
}

// RequireSession rejects requests without a live session token and exposes
// the identity id to handlers.
func RequireSession(authn Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := auth.BearerToken(c)
		if token == "" {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		claims, err := authn.Authenticate(c.UserContext(), token)
		if errors.Is(err, auth.ErrInvalidToken) {
			return fiber.NewError(http.StatusUnauthorized, "unauthorized")
		}
		if err != nil {
			return fiber.NewError(http.StatusServiceUnavailable, "session check unavailable")
		}
		c.Locals(identity.IdentityIDLocal, claims.Subject)
		return c.Next()
	}
}
