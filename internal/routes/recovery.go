package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/trustid/trustid/internal/auth"
	"github.com/trustid/trustid/internal/recovery"
)

// RegisterRecoveryRoutes wires the recovery state machine and reset
// completion. Every recovery route shares one per-client rate limit.
func RegisterRecoveryRoutes(r fiber.Router, h *recovery.Handler, authHandler *auth.Handler, rateLimiter fiber.Handler) {
	group := r.Group("/recovery", rateLimiter)
	group.Post("/start", h.Start)
	group.Post("/face", h.RequestFaceLookup)
	group.Post("/reset", authHandler.ResetPassword)
	group.Post("/:sessionId/phrase", h.SubmitPhrase)
	group.Post("/:sessionId/capture", h.SubmitCapture)
	group.Delete("/:sessionId", h.Cancel)
}
