package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/trustid/trustid/internal/ledger"
)

// RegisterAdminRoutes wires operator endpoints behind the admin key.
func RegisterAdminRoutes(r fiber.Router, h *ledger.Handler, adminKey fiber.Handler) {
	group := r.Group("/admin", adminKey)
	group.Post("/tokens", h.Provision)
	group.Get("/tokens/:code", h.Show)
}
