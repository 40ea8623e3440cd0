package identity

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
)

// Kind distinguishes the two identity families.
type Kind string

const (
	KindIndividual  Kind = "individual"
	KindInstitution Kind = "institution"
)

var (
	ErrDuplicateKey     = errors.New("an identity with this key already exists")
	ErrInvalidToken     = errors.New("authorization token is invalid or already used")
	ErrNotFound         = errors.New("identity not found")
	ErrAddressInUse     = errors.New("wallet address is bound to another identity")
	ErrGenerationFailed = errors.New("could not generate a unique recovery phrase")
	ErrInvalidInput     = errors.New("invalid identity input")

	// errPhraseCollision is reported by repositories when the recovery phrase
	// unique constraint fires. The service regenerates on it.
	errPhraseCollision = errors.New("recovery phrase collision")
)

// ParseKind converts a wire value into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindIndividual:
		return KindIndividual, nil
	case KindInstitution:
		return KindInstitution, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidInput, s)
	}
}

// Contact holds the kind-specific attributes of an identity. The set of
// implementations is closed: IndividualContact and InstitutionContact.
type Contact interface {
	Kind() Kind
	sealed()
}

// IndividualContact belongs to identities of KindIndividual.
type IndividualContact struct {
	Email  string
	Name   string
	Mobile string
}

// InstitutionContact belongs to identities of KindInstitution.
type InstitutionContact struct {
	InstitutionName string
	BranchName      string
	IFSCCode        string
	ManagerCodeUsed string
}

func (IndividualContact) Kind() Kind  { return KindIndividual }
func (InstitutionContact) Kind() Kind { return KindInstitution }
func (IndividualContact) sealed()     {}
func (InstitutionContact) sealed()    {}

// Identity is one registered party.
type Identity struct {
	ID                  string
	Kind                Kind
	DisplayKey          string
	Contact             Contact
	RecoveryPhrase      string
	WalletAddress       string
	BiometricRegistered bool
	BiometricReference  string
	CreatedAt           time.Time
}

// NotifyAddress returns where account notices go. Institutions have no
// email binding and return "".
func (i Identity) NotifyAddress() string {
	if c, ok := i.Contact.(IndividualContact); ok {
		return c.Email
	}
	return ""
}

const institutionKeySep = "|"

// IndividualKey canonicalizes an email into a display key.
func IndividualKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// InstitutionKey builds the display key for an (institution, branch) pair.
func InstitutionKey(institutionName, branchName string) string {
	return strings.TrimSpace(institutionName) + institutionKeySep + strings.TrimSpace(branchName)
}

// DisplayKeyFor derives the display key from a contact.
func DisplayKeyFor(c Contact) string {
	switch v := c.(type) {
	case IndividualContact:
		return IndividualKey(v.Email)
	case InstitutionContact:
		return InstitutionKey(v.InstitutionName, v.BranchName)
	default:
		return ""
	}
}

// DisplayKeyFromParts builds the display key from request fields: the email
// for individuals, the institution and branch names for institutions.
func DisplayKeyFromParts(kind Kind, email, institutionName, branchName string) string {
	if kind == KindInstitution {
		return InstitutionKey(institutionName, branchName)
	}
	return IndividualKey(email)
}

var ifscPattern = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)

func validateContact(c Contact) (Contact, error) {
	switch v := c.(type) {
	case IndividualContact:
		v.Email = IndividualKey(v.Email)
		v.Name = strings.TrimSpace(v.Name)
		v.Mobile = strings.TrimSpace(v.Mobile)
		addr, err := mail.ParseAddress(v.Email)
		if err != nil || addr.Address != v.Email {
			return nil, fmt.Errorf("%w: email is not valid", ErrInvalidInput)
		}
		if v.Name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
		}
		return v, nil
	case InstitutionContact:
		v.InstitutionName = strings.TrimSpace(v.InstitutionName)
		v.BranchName = strings.TrimSpace(v.BranchName)
		v.IFSCCode = strings.ToUpper(strings.TrimSpace(v.IFSCCode))
		if v.InstitutionName == "" || v.BranchName == "" {
			return nil, fmt.Errorf("%w: institution and branch names are required", ErrInvalidInput)
		}
		if strings.Contains(v.InstitutionName, institutionKeySep) || strings.Contains(v.BranchName, institutionKeySep) {
			return nil, fmt.Errorf("%w: names must not contain %q", ErrInvalidInput, institutionKeySep)
		}
		if !ifscPattern.MatchString(v.IFSCCode) {
			return nil, fmt.Errorf("%w: ifsc code is not valid", ErrInvalidInput)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: contact details are required", ErrInvalidInput)
	}
}
