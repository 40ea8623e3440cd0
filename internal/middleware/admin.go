package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

const adminKeyHeader = "X-Admin-Key"

// RequireAdminKey guards operator endpoints with a static key. An empty
// configured key disables the endpoints entirely.
func RequireAdminKey(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if key == "" {
			return fiber.NewError(http.StatusNotFound, "not found")
		}
		presented := c.Get(adminKeyHeader)
		if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) != 1 {
			return fiber.NewError(http.StatusUnauthorized, "unauthorized")
		}
		return c.Next()
	}
}
