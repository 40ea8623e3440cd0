package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/trustid/trustid/internal/credential"
	"github.com/trustid/trustid/internal/identity"
)

// Handler exposes login, logout and password reset completion.
type Handler struct {
	svc *Service
}

// NewHandler constructs an auth HTTP handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

type loginRequest struct {
	Kind            string `json:"kind"`
	Email           string `json:"email"`
	InstitutionName string `json:"institution_name"`
	BranchName      string `json:"branch_name"`
	Password        string `json:"password"`
}

// Login authenticates and returns a session token. Every rejection carries
// the same message.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	kind, err := identity.ParseKind(req.Kind)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	key := identity.DisplayKeyFromParts(kind, req.Email, req.InstitutionName, req.BranchName)
	session, err := h.svc.Login(c.UserContext(), kind, key, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		return fiber.NewError(http.StatusUnauthorized, ErrInvalidCredentials.Error())
	}
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(session)
}

// Logout revokes the bearer session.
func (h *Handler) Logout(c *fiber.Ctx) error {
	if err := h.svc.Logout(c.UserContext(), BearerToken(c)); err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return fiber.NewError(http.StatusUnauthorized, "unauthorized")
		}
		return fiber.NewError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(fiber.Map{"status": "logged_out"})
}

type resetRequest struct {
	Ticket      string `json:"ticket"`
	NewPassword string `json:"new_password"`
}

// ResetPassword completes a granted recovery. Individuals present the
// emailed ticket; institutions present their recovery token as a bearer.
func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	var req resetRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	var err error
	switch {
	case req.Ticket != "":
		err = h.svc.CompleteTicketReset(c.UserContext(), req.Ticket, req.NewPassword)
	case BearerToken(c) != "":
		err = h.svc.CompleteRecoveryReset(c.UserContext(), BearerToken(c), req.NewPassword)
	default:
		return fiber.NewError(http.StatusBadRequest, "ticket or recovery token is required")
	}
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"status": "password_reset"})
	case errors.Is(err, credential.ErrWeakPassword):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, credential.ErrInvalidTicket), errors.Is(err, ErrInvalidToken):
		return fiber.NewError(http.StatusForbidden, "invalid or expired reset credential")
	default:
		return fiber.NewError(http.StatusInternalServerError, "internal error")
	}
}
