package recovery

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/trustid/trustid/internal/identity"
)

// Handler exposes the recovery state machine over HTTP.
type Handler struct {
	service *Service
}

// NewHandler constructs a recovery HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type startRequest struct {
	Channel string `json:"channel"`
}

type sessionResponse struct {
	SessionID string    `json:"session_id"`
	Channel   Channel   `json:"channel"`
	State     State     `json:"state"`
	ExpiresAt time.Time `json:"expires_at"`
}

func toSessionResponse(s Session) sessionResponse {
	return sessionResponse{
		SessionID: s.ID,
		Channel:   s.Channel,
		State:     s.State,
		ExpiresAt: s.ExpiresAt.UTC(),
	}
}

// Start opens a phrase recovery session.
func (h *Handler) Start(c *fiber.Ctx) error {
	req := startRequest{Channel: string(ChannelPhrase)}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid request body")
		}
	}
	session, err := h.service.Start(c.UserContext(), Channel(req.Channel))
	if err != nil {
		return statusError(err)
	}
	return c.Status(http.StatusCreated).JSON(toSessionResponse(session))
}

type phraseRequest struct {
	Phrase string `json:"phrase"`
}

// SubmitPhrase verifies the phrase for the session in the path.
func (h *Handler) SubmitPhrase(c *fiber.Ctx) error {
	var req phraseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	outcome, err := h.service.SubmitPhrase(c.UserContext(), c.Params("sessionId"), req.Phrase)
	if err != nil {
		return statusError(err)
	}
	return writeOutcome(c, outcome)
}

type faceLookupRequest struct {
	Kind            string `json:"kind"`
	Email           string `json:"email"`
	InstitutionName string `json:"institution_name"`
	BranchName      string `json:"branch_name"`
}

// RequestFaceLookup opens a biometric session and returns the capture handle.
func (h *Handler) RequestFaceLookup(c *fiber.Ctx) error {
	var req faceLookupRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	kind, err := identity.ParseKind(req.Kind)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	key := identity.DisplayKeyFromParts(kind, req.Email, req.InstitutionName, req.BranchName)
	session, err := h.service.RequestFaceLookup(c.UserContext(), kind, key)
	if err != nil {
		return statusError(err)
	}
	return c.Status(http.StatusCreated).JSON(toSessionResponse(session))
}

type captureRequest struct {
	Artifact string `json:"artifact"`
}

// SubmitCapture delivers a captured artifact for the session in the path.
func (h *Handler) SubmitCapture(c *fiber.Ctx) error {
	var req captureRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	outcome, err := h.service.SubmitCapture(c.UserContext(), c.Params("sessionId"), req.Artifact)
	if err != nil {
		return statusError(err)
	}
	return writeOutcome(c, outcome)
}

// Cancel discards the session in the path.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	if err := h.service.Cancel(c.UserContext(), c.Params("sessionId")); err != nil {
		return statusError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func writeOutcome(c *fiber.Ctx, outcome Outcome) error {
	status := http.StatusOK
	if outcome.State == StateDenied {
		status = http.StatusForbidden
	}
	return c.Status(status).JSON(outcome)
}

func statusError(err error) error {
	switch {
	case errors.Is(err, ErrSessionExpired):
		return fiber.NewError(http.StatusGone, ErrSessionExpired.Error())
	case errors.Is(err, ErrFaceNotRegistered):
		return fiber.NewError(http.StatusNotFound, ErrFaceNotRegistered.Error())
	case errors.Is(err, ErrInvalidTransition):
		return fiber.NewError(http.StatusConflict, ErrInvalidTransition.Error())
	case errors.Is(err, ErrUnsupportedChannel), errors.Is(err, ErrEmptyCapture):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, "internal error")
	}
}
