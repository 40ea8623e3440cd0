package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/trustid/trustid/internal/wallet"
)

// RegisterWalletRoutes wires wallet bridge endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler, session fiber.Handler) {
	group := r.Group("/wallet", session)
	group.Post("/connect", h.Connect)
	group.Post("/disconnect", h.Disconnect)
}
