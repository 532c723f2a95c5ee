package transport

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/agentstation/queuelink/pkg/auth"
	"github.com/agentstation/queuelink/pkg/errors"
	"github.com/agentstation/queuelink/pkg/session"
)

// Auth endpoints, relative to the API base URL.
const (
	LoginPath    = "/auth/login"
	RegisterPath = "/auth/register"
	RefreshPath  = "/auth/refresh"
	LogoutPath   = "/auth/logout"
	VerifyPath   = "/auth/verify-token"
)

// Backend implements auth.Backend over the HTTP API.
type Backend struct {
	client *Client
}

var _ auth.Backend = (*Backend)(nil)

// NewBackend creates a Backend that uses client.
func NewBackend(client *Client) *Backend {
	return &Backend{client: client}
}

type userBody struct {
	ID   string   `json:"id"`
	Role string   `json:"role"`
	// Roles is accepted in addition to the single Role field.
	Roles []string `json:"roles"`
}

func (u userBody) roles() []session.Role {
	var out []session.Role
	if u.Role != "" {
		out = append(out, session.Role(u.Role))
	}
	for _, r := range u.Roles {
		if r != "" && r != u.Role {
			out = append(out, session.Role(r))
		}
	}
	return out
}

type grantBody struct {
	User         userBody `json:"user"`
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	// ExpiresIn is seconds until the access token expires. Optional.
	ExpiresIn int `json:"expires_in"`
}

func (g grantBody) grant(now time.Time) auth.Grant {
	out := auth.Grant{
		UserID:       g.User.ID,
		Roles:        g.User.roles(),
		Token:        g.AccessToken,
		RefreshToken: g.RefreshToken,
	}
	if g.ExpiresIn > 0 {
		out.ExpiresAt = now.Add(time.Duration(g.ExpiresIn) * time.Second)
	}
	return out
}

type loginBody struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// Login implements auth.Backend.
func (b *Backend) Login(ctx context.Context, identifier, secret string) (auth.Grant, error) {
	var out grantBody
	err := b.client.Do(ctx, http.MethodPost, LoginPath, "", loginBody{Identifier: identifier, Password: secret}, &out)
	if err != nil {
		return auth.Grant{}, classify("login", err)
	}
	return out.grant(time.Now()), nil
}

// Register implements auth.Backend.
func (b *Backend) Register(ctx context.Context, profile auth.Profile) (auth.Grant, error) {
	var out grantBody
	if err := b.client.Do(ctx, http.MethodPost, RegisterPath, "", profile, &out); err != nil {
		return auth.Grant{}, classify("register", err)
	}
	return out.grant(time.Now()), nil
}

// Refresh implements auth.Backend. The refresh token is presented as the bearer.
func (b *Backend) Refresh(ctx context.Context, refreshToken string) (auth.Grant, error) {
	var out grantBody
	if err := b.client.Do(ctx, http.MethodPost, RefreshPath, refreshToken, nil, &out); err != nil {
		return auth.Grant{}, classify("refresh", err)
	}
	return out.grant(time.Now()), nil
}

// Logout implements auth.Backend.
func (b *Backend) Logout(ctx context.Context, token string) error {
	return b.client.Do(ctx, http.MethodPost, LogoutPath, token, nil, nil)
}

type verifyBody struct {
	Valid bool     `json:"valid"`
	User  userBody `json:"user"`
}

// Verify implements auth.Backend.
func (b *Backend) Verify(ctx context.Context, token string) (auth.Identity, error) {
	var out verifyBody
	if err := b.client.Do(ctx, http.MethodGet, VerifyPath, token, nil, &out); err != nil {
		return auth.Identity{}, err
	}
	if !out.Valid {
		return auth.Identity{}, &errors.AuthorizationExpiredError{Endpoint: VerifyPath}
	}
	return auth.Identity{UserID: out.User.ID, Roles: out.User.roles()}, nil
}

// classify maps backend rejections onto the auth error taxonomy. Transport
// failures and server errors pass through unchanged.
func classify(op string, err error) error {
	var apiErr *errors.APIError
	if !stderrors.As(err, &apiErr) {
		return err
	}

	msg := apiErr.Message
	lower := strings.ToLower(msg)
	switch {
	case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
		if msg == "" {
			msg = "Invalid credentials"
		}
		return &errors.CredentialsError{Operation: op, Message: msg, Err: err}
	case apiErr.StatusCode == http.StatusConflict || strings.Contains(lower, "already registered") || strings.Contains(lower, "already in use"):
		field := ""
		switch {
		case strings.Contains(lower, "email"):
			field = "email"
		case strings.Contains(lower, "phone"):
			field = "phone"
		}
		return &errors.ConflictError{Field: field, Message: msg}
	case apiErr.StatusCode == http.StatusBadRequest:
		return &errors.ValidationError{Message: msg}
	}
	return err
}
