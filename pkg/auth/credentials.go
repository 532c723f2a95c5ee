package auth

import (
	"regexp"
	"strings"

	"github.com/agentstation/queuelink/pkg/errors"
)

// MinPasswordLength is the shortest password the backend accepts.
const MinPasswordLength = 6

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	phoneStrip   = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
)

// Credentials identify a user by email or phone number.
type Credentials struct {
	Identifier string
	Secret     string
}

// Normalize trims and lower-cases the identifier.
func (c Credentials) Normalize() Credentials {
	c.Identifier = strings.ToLower(strings.TrimSpace(c.Identifier))
	return c
}

// Validate checks the shape of the credentials without contacting the backend.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Identifier) == "" {
		return errors.NewValidationError("identifier", nil, "Email/phone and password are required")
	}
	if c.Secret == "" {
		return errors.NewValidationError("password", nil, "Email/phone and password are required")
	}
	return nil
}

// Profile is a new citizen account.
type Profile struct {
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Address     string `json:"address,omitempty"`
}

// Normalize trims names and lower-cases the email.
func (p Profile) Normalize() Profile {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Phone = phoneStrip.Replace(strings.TrimSpace(p.Phone))
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.DateOfBirth = strings.TrimSpace(p.DateOfBirth)
	p.Address = strings.TrimSpace(p.Address)
	return p
}

// Validate checks required fields and formats. Call it on a normalized profile.
func (p Profile) Validate() error {
	required := []struct{ field, value string }{
		{"email", p.Email},
		{"password", p.Password},
		{"first_name", p.FirstName},
		{"last_name", p.LastName},
		{"phone", p.Phone},
	}
	for _, r := range required {
		if r.value == "" {
			return errors.NewValidationError(r.field, nil, r.field+" is required")
		}
	}
	if !emailPattern.MatchString(p.Email) {
		return errors.NewValidationError("email", p.Email, "Invalid email format")
	}
	if !phonePattern.MatchString(p.Phone) {
		return errors.NewValidationError("phone", p.Phone, "Invalid phone number format")
	}
	if len(p.Password) < MinPasswordLength {
		return errors.NewValidationError("password", nil, "Password must be at least 6 characters long")
	}
	return nil
}
