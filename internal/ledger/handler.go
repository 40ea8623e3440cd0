package ledger

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes administrative token endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a token ledger HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type provisionRequest struct {
	Code string `json:"code"`
}

type tokenResponse struct {
	Code       string     `json:"code"`
	Used       bool       `json:"used"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toResponse(t Token) tokenResponse {
	return tokenResponse{Code: t.Code, Used: t.Used, ConsumedAt: t.ConsumedAt, CreatedAt: t.CreatedAt}
}

// Provision pre-provisions an authorization code.
func (h *Handler) Provision(c *fiber.Ctx) error {
	var req provisionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	tok, err := h.service.Provision(c.UserContext(), req.Code)
	switch {
	case errors.Is(err, ErrInvalidCode):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrDuplicateCode):
		return fiber.NewError(http.StatusConflict, err.Error())
	case err != nil:
		return fiber.NewError(http.StatusInternalServerError, "could not provision token")
	}
	return c.Status(http.StatusCreated).JSON(toResponse(tok))
}

// Show returns a token's state.
func (h *Handler) Show(c *fiber.Ctx) error {
	tok, err := h.service.Get(c.UserContext(), c.Params("code"))
	if errors.Is(err, ErrNotFound) {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "could not load token")
	}
	return c.JSON(toResponse(tok))
}
