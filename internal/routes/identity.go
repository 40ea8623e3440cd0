package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/trustid/trustid/internal/identity"
)

// RegisterIdentityRoutes wires registration, which requires an
// Idempotency-Key, and the session-scoped profile endpoints. The idempotency
// handler must not store the recovery phrase.
func RegisterIdentityRoutes(r fiber.Router, h *identity.Handler, session, idempotency fiber.Handler) {
	r.Post("/identity/register", idempotency, h.Register)
	r.Post("/identity/biometric", session, h.RegisterBiometric)
	r.Get("/me", session, h.Me)
}
