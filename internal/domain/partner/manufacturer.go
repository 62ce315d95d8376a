package partner

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/leorit/backend/internal/domain/shared"
)

var manufacturerCodePattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]{1,49}$`)

// Manufacturer is a contract manufacturer that can be assigned orders.
// Only verified, active manufacturers are eligible for assignment.
type Manufacturer struct {
	shared.BaseAggregateRoot
	Code         string
	Name         string
	Email        string
	Phone        string
	City         string
	Capabilities []string
	Verified     bool
	VerifiedAt   *time.Time
	Active       bool
}

// NewManufacturer registers an unverified, active manufacturer
func NewManufacturer(code, name, email string) (*Manufacturer, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !manufacturerCodePattern.MatchString(code) {
		return nil, shared.NewDomainError(shared.CodeValidation, "Manufacturer code must be 2-50 letters, digits, '-' or '_'")
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	m := &Manufacturer{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(time.Now()),
		Code:              code,
		Name:              strings.TrimSpace(name),
		Email:             strings.ToLower(strings.TrimSpace(email)),
		Active:            true,
	}
	m.Raise(NewManufacturerRegisteredEvent(m))
	return m, nil
}

func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError(shared.CodeValidation, "Manufacturer name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewDomainError(shared.CodeValidation, "Manufacturer name cannot exceed 200 characters")
	}
	return nil
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return shared.NewDomainError(shared.CodeValidation, "Invalid manufacturer email")
	}
	return nil
}

// UpdateProfile replaces the contact details
func (m *Manufacturer) UpdateProfile(name, email, phone, city string, capabilities []string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := validateEmail(email); err != nil {
		return err
	}
	m.Name = strings.TrimSpace(name)
	m.Email = strings.ToLower(strings.TrimSpace(email))
	m.Phone = strings.TrimSpace(phone)
	m.City = strings.TrimSpace(city)
	m.Capabilities = normalizeCapabilities(capabilities)
	m.UpdatedAt = time.Now()
	return nil
}

func normalizeCapabilities(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Verify marks the manufacturer as verified by an admin
func (m *Manufacturer) Verify(at time.Time) error {
	if !m.Active {
		return shared.NewDomainError(shared.CodeGuardFailed, "Cannot verify an inactive manufacturer")
	}
	if m.Verified {
		return shared.NewDomainError(shared.CodeGuardFailed, "Manufacturer is already verified")
	}
	t := at
	m.Verified = true
	m.VerifiedAt = &t
	m.UpdatedAt = at
	m.Raise(NewManufacturerStatusChangedEvent(m, "verified"))
	return nil
}

// Deactivate removes the manufacturer from assignment. Orders already
// assigned keep their manufacturer.
func (m *Manufacturer) Deactivate() error {
	if !m.Active {
		return shared.NewDomainError(shared.CodeGuardFailed, "Manufacturer is already inactive")
	}
	m.Active = false
	m.UpdatedAt = time.Now()
	m.Raise(NewManufacturerStatusChangedEvent(m, "deactivated"))
	return nil
}

// Activate re-enables a deactivated manufacturer
func (m *Manufacturer) Activate() error {
	if m.Active {
		return shared.NewDomainError(shared.CodeGuardFailed, "Manufacturer is already active")
	}
	m.Active = true
	m.UpdatedAt = time.Now()
	m.Raise(NewManufacturerStatusChangedEvent(m, "activated"))
	return nil
}

// IsAssignable returns true if orders may be assigned to the manufacturer
func (m *Manufacturer) IsAssignable() bool {
	return m.Verified && m.Active
}
