package identity

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/trustid/trustid/internal/credential"
)

// IdentityIDLocal is the fiber.Ctx local holding the authenticated identity id.
const IdentityIDLocal = "identity_id"

// Handler exposes identity endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	Kind            string `json:"kind"`
	Email           string `json:"email"`
	Name            string `json:"name"`
	Mobile          string `json:"mobile"`
	InstitutionName string `json:"institution_name"`
	BranchName      string `json:"branch_name"`
	IFSCCode        string `json:"ifsc_code"`
	AuthToken       string `json:"auth_token"`
	Password        string `json:"password"`
}

func (r registerRequest) contact(kind Kind) Contact {
	if kind == KindInstitution {
		return InstitutionContact{InstitutionName: r.InstitutionName, BranchName: r.BranchName, IFSCCode: r.IFSCCode}
	}
	return IndividualContact{Email: r.Email, Name: r.Name, Mobile: r.Mobile}
}

// Response is the public view of an identity.
type Response struct {
	ID                  string    `json:"id"`
	Kind                Kind      `json:"kind"`
	DisplayKey          string    `json:"display_key"`
	Email               string    `json:"email,omitempty"`
	Name                string    `json:"name,omitempty"`
	Mobile              string    `json:"mobile,omitempty"`
	InstitutionName     string    `json:"institution_name,omitempty"`
	BranchName          string    `json:"branch_name,omitempty"`
	IFSCCode            string    `json:"ifsc_code,omitempty"`
	WalletAddress       string    `json:"wallet_address,omitempty"`
	BiometricRegistered bool      `json:"biometric_registered"`
	CreatedAt           time.Time `json:"created_at"`
}

// ToResponse renders an identity without its recovery phrase.
func ToResponse(i Identity) Response {
	resp := Response{
		ID:                  i.ID,
		Kind:                i.Kind,
		DisplayKey:          i.DisplayKey,
		WalletAddress:       i.WalletAddress,
		BiometricRegistered: i.BiometricRegistered,
		CreatedAt:           i.CreatedAt,
	}
	switch c := i.Contact.(type) {
	case IndividualContact:
		resp.Email, resp.Name, resp.Mobile = c.Email, c.Name, c.Mobile
	case InstitutionContact:
		resp.InstitutionName, resp.BranchName, resp.IFSCCode = c.InstitutionName, c.BranchName, c.IFSCCode
	}
	return resp
}

// Register handles onboarding. The response carries the recovery phrase; it
// is shown once and never logged.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	kind, err := ParseKind(req.Kind)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	created, err := h.service.Create(c.UserContext(), CreateInput{
		Contact:   req.contact(kind),
		Password:  req.Password,
		AuthToken: req.AuthToken,
	})
	if err != nil {
		return StatusError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"identity":        ToResponse(created),
		"recovery_phrase": created.RecoveryPhrase,
	})
}

// Me returns the authenticated identity.
func (h *Handler) Me(c *fiber.Ctx) error {
	id, _ := c.Locals(IdentityIDLocal).(string)
	found, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	return c.JSON(ToResponse(found))
}

type biometricRequest struct {
	Reference string `json:"reference"`
}

// RegisterBiometric stores the capture reference produced at enrolment.
func (h *Handler) RegisterBiometric(c *fiber.Ctx) error {
	var req biometricRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	id, _ := c.Locals(IdentityIDLocal).(string)
	if err := h.service.SetBiometricRegistered(c.UserContext(), id, req.Reference); err != nil {
		return StatusError(err)
	}
	return c.JSON(fiber.Map{"biometric_registered": true})
}

// StatusError maps identity errors to HTTP errors with fixed messages.
func StatusError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, credential.ErrWeakPassword):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrDuplicateKey):
		return fiber.NewError(http.StatusConflict, ErrDuplicateKey.Error())
	case errors.Is(err, ErrInvalidToken):
		return fiber.NewError(http.StatusForbidden, ErrInvalidToken.Error())
	case errors.Is(err, ErrAddressInUse):
		return fiber.NewError(http.StatusConflict, ErrAddressInUse.Error())
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, ErrNotFound.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, "internal error")
	}
}
