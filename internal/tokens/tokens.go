// Package tokens reads claims out of access tokens without verifying them.
// The client never holds the signing key; these claims only decide whether a
// token is worth presenting to the backend at all.
package tokens

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agentstation/queuelink/pkg/errors"
)

// Claims is the subset of access-token claims the client cares about.
type Claims struct {
	Subject   string
	Roles     []string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

type accessClaims struct {
	jwt.RegisteredClaims
	Role  string   `json:"role,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

var parser = jwt.NewParser()

// Inspect parses token and returns its claims. The signature is not checked.
func Inspect(token string) (Claims, error) {
	var ac accessClaims
	if _, _, err := parser.ParseUnverified(token, &ac); err != nil {
		return Claims{}, errors.WrapParse("jwt", "access token", err)
	}

	c := Claims{Subject: ac.Subject, Roles: ac.Roles}
	if ac.Role != "" && len(c.Roles) == 0 {
		c.Roles = []string{ac.Role}
	}
	if ac.ExpiresAt != nil {
		c.ExpiresAt = ac.ExpiresAt.Time
	}
	if ac.IssuedAt != nil {
		c.IssuedAt = ac.IssuedAt.Time
	}
	return c, nil
}

// ExpiresAt returns the token's exp claim, or the zero time if it has none
// or cannot be parsed.
func ExpiresAt(token string) time.Time {
	c, err := Inspect(token)
	if err != nil {
		return time.Time{}
	}
	return c.ExpiresAt
}

// Expired reports whether token states an expiry at or before now.
// Opaque tokens and tokens without exp are never reported expired.
func Expired(token string, now time.Time) bool {
	exp := ExpiresAt(token)
	return !exp.IsZero() && !exp.After(now)
}
