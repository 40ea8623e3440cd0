package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/trustid/trustid/internal/auth"
)

// RegisterAuthRoutes wires authentication endpoints.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, session, rateLimiter fiber.Handler) {
	group := r.Group("/auth")
	group.Post("/login", rateLimiter, h.Login)
	group.Post("/logout", session, h.Logout)
}
