package auth

import (
	"context"
	"time"

	"github.com/agentstation/queuelink/pkg/session"
)

// Backend is the server side of authentication.
//
// Implementations report failures with the pkg/errors taxonomy: a rejected
// login as *errors.CredentialsError, a duplicate email or phone as
// *errors.ConflictError, transport failures as *errors.NetworkError or
// *errors.TimeoutError.
type Backend interface {
	// Login exchanges an email-or-phone identifier and a password for a grant.
	Login(ctx context.Context, identifier, secret string) (Grant, error)
	// Register creates a citizen account and signs it in.
	Register(ctx context.Context, profile Profile) (Grant, error)
	// Refresh issues a new access token. UserID and Roles may be empty.
	Refresh(ctx context.Context, refreshToken string) (Grant, error)
	// Logout invalidates token on the server. Best-effort.
	Logout(ctx context.Context, token string) error
	// Verify checks a token and reports whom it belongs to.
	Verify(ctx context.Context, token string) (Identity, error)
}

// Grant is what the backend returns for a successful login, registration or refresh.
type Grant struct {
	UserID       string
	Roles        []session.Role
	Token        string
	RefreshToken string
	// ExpiresAt may be zero; the token's own exp claim is used then.
	ExpiresAt time.Time
}

// Identity is the owner of a verified token.
type Identity struct {
	UserID string
	Roles  []session.Role
}
