package middleware

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustid/trustid/internal/auth"
	"github.com/trustid/trustid/internal/identity"
)

type staticAuthenticator struct {
	signer *auth.Signer
	err    error
}

func (a staticAuthenticator) Authenticate(_ context.Context, token string) (auth.Claims, error) {
	if a.err != nil {
		return auth.Claims{}, a.err
	}
	return a.signer.Parse(token, auth.ScopeSession, time.Now())
}

func TestRequireSession(t *testing.T) {
	signer := auth.NewSigner("0123456789abcdef0123456789abcdef", "trustid")
	token, _, err := signer.Sign("identity-1", "individual", auth.ScopeSession, time.Now(), time.Hour)
	require.NoError(t, err)

	build := func(authn Authenticator) *fiber.App {
		app := fiber.New()
		app.Get("/me", RequireSession(authn), func(c *fiber.Ctx) error {
			id, _ := c.Locals(identity.IdentityIDLocal).(string)
			return c.SendString(id)
		})
		return app
	}
	call := func(app *fiber.App, header string) int {
		req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set(fiber.HeaderAuthorization, header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	app := build(staticAuthenticator{signer: signer})
	assert.Equal(t, fiber.StatusOK, call(app, "Bearer "+token))
	assert.Equal(t, fiber.StatusOK, call(app, "bearer "+token))
	assert.Equal(t, fiber.StatusUnauthorized, call(app, ""))
	assert.Equal(t, fiber.StatusUnauthorized, call(app, "Bearer garbage"))
	assert.Equal(t, fiber.StatusServiceUnavailable, call(build(staticAuthenticator{err: assert.AnError}), "Bearer "+token))
}

func TestRequireAdminKey(t *testing.T) {
	build := func(key string) *fiber.App {
		app := fiber.New()
		app.Post("/admin", RequireAdminKey(key), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
		return app
	}
	call := func(app *fiber.App, key string) int {
		req := httptest.NewRequest(fiber.MethodPost, "/admin", nil)
		if key != "" {
			req.Header.Set(adminKeyHeader, key)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	app := build("s3cr3t")
	assert.Equal(t, fiber.StatusNoContent, call(app, "s3cr3t"))
	assert.Equal(t, fiber.StatusUnauthorized, call(app, "wrong"))
	assert.Equal(t, fiber.StatusUnauthorized, call(app, ""))
	assert.Equal(t, fiber.StatusNotFound, call(build(""), "anything"))
}
