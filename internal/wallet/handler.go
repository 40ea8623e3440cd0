package wallet

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/trustid/trustid/internal/identity"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type connectRequest struct {
	Address string `json:"address"`
}

// Connect binds the wallet address to the authenticated identity.
func (h *Handler) Connect(c *fiber.Ctx) error {
	var req connectRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	id, _ := c.Locals(identity.IdentityIDLocal).(string)
	addr, err := h.service.Connect(c.UserContext(), id, req.Address)
	if errors.Is(err, ErrInvalidAddress) {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return identity.StatusError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"wallet_address": addr})
}

// Disconnect removes the authenticated identity's wallet binding.
func (h *Handler) Disconnect(c *fiber.Ctx) error {
	id, _ := c.Locals(identity.IdentityIDLocal).(string)
	if err := h.service.Disconnect(c.UserContext(), id); err != nil {
		return identity.StatusError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}
