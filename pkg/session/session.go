// Package session holds the client's single authentication record and the
// store that publishes every change of it to observers.
package session

import (
	"slices"
	"time"

	"github.com/rs/zerolog"
)

// Status is the authentication state of a Session.
type Status int

const (
	// Anonymous means nobody is signed in. The token is absent.
	Anonymous Status = iota
	// Authenticating means a login or registration is in flight.
	Authenticating
	// Authenticated means the token is usable until TokenExpiry.
	Authenticated
	// Refreshing means a token refresh is in flight.
	Refreshing
	// Expired means a refresh failed; it is followed by Anonymous.
	Expired
	// Error means the backend rejected the credentials; it is followed by Anonymous.
	Error
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Refreshing:
		return "refreshing"
	case Expired:
		return "expired"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Role is a role tag granted to a user by the backend.
type Role string

// Known roles.
const (
	RoleCitizen    Role = "citizen"
	RoleStaff      Role = "staff"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Session is an immutable snapshot of who is signed in.
// Treat values as read-only; use Clone before modifying Roles.
type Session struct {
	UserID       string    `yaml:"user_id" json:"user_id"`
	Roles        []Role    `yaml:"roles" json:"roles"`
	Token        string    `yaml:"token" json:"-"`
	RefreshToken string    `yaml:"refresh_token,omitempty" json:"-"`
	TokenExpiry  time.Time `yaml:"token_expiry" json:"token_expiry"`
	Status       Status    `yaml:"-" json:"status"`

	// Message is user-safe text describing the last failure (Error and Expired only).
	Message string `yaml:"-" json:"message,omitempty"`
}

// New returns an Anonymous session.
func New() Session {
	return Session{Status: Anonymous}
}

// IsAuthenticated reports whether the session carries a usable identity.
func (s Session) IsAuthenticated() bool {
	return s.Status == Authenticated && s.Token != ""
}

// HasAnyRole reports whether the session holds at least one of roles.
func (s Session) HasAnyRole(roles ...Role) bool {
	for _, r := range roles {
		if slices.Contains(s.Roles, r) {
			return true
		}
	}
	return false
}

// ExpiresWithin reports whether the token expires within d of now.
func (s Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	return !s.TokenExpiry.After(now.Add(d))
}

// Clone returns a deep copy.
func (s Session) Clone() Session {
	s.Roles = slices.Clone(s.Roles)
	return s
}

// Equal reports whether two snapshots are indistinguishable.
func (s Session) Equal(o Session) bool {
	return s.UserID == o.UserID &&
		s.Token == o.Token &&
		s.RefreshToken == o.RefreshToken &&
		s.TokenExpiry.Equal(o.TokenExpiry) &&
		s.Status == o.Status &&
		s.Message == o.Message &&
		slices.Equal(s.Roles, o.Roles)
}

// MarshalZerologObject logs the session without its tokens.
func (s Session) MarshalZerologObject(e *zerolog.Event) {
	e.Str("status", s.Status.String())
	if s.UserID != "" {
		e.Str("user_id", s.UserID)
	}
	if len(s.Roles) > 0 {
		roles := make([]string, len(s.Roles))
		for i, r := range s.Roles {
			roles[i] = string(r)
		}
		e.Strs("roles", roles)
	}
	if !s.TokenExpiry.IsZero() {
		e.Time("token_expiry", s.TokenExpiry)
	}
}
