package transport

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/queuelink/pkg/auth"
	"github.com/agentstation/queuelink/pkg/errors"
	"github.com/agentstation/queuelink/pkg/session"
)

func newTestBackend(t *testing.T, h http.HandlerFunc) *Backend {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewBackend(New(srv.URL))
}

func TestBackendLogin(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, LoginPath, r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var in loginBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "ana@example.com", in.Identifier)
		assert.Equal(t, "secret1", in.Password)

		_, _ = w.Write([]byte(`{
			"user": {"id": "u1", "role": "staff", "roles": ["staff", "admin"]},
			"access_token": "at",
			"refresh_token": "rt",
			"expires_in": 900
		}`))
	})

	grant, err := b.Login(context.Background(), "ana@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "u1", grant.UserID)
	assert.Equal(t, []session.Role{session.RoleStaff, session.RoleAdmin}, grant.Roles)
	assert.Equal(t, "at", grant.Token)
	assert.Equal(t, "rt", grant.RefreshToken)
	assert.False(t, grant.ExpiresAt.IsZero())
}

func TestBackendRefreshSendsRefreshToken(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, RefreshPath, r.URL.Path)
		assert.Equal(t, "Bearer rt", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"user":{"id":"u1"},"access_token":"at2"}`))
	})

	grant, err := b.Refresh(context.Background(), "rt")
	require.NoError(t, err)
	assert.Equal(t, "at2", grant.Token)
	assert.True(t, grant.ExpiresAt.IsZero())
}

func TestBackendRegisterConflict(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Phone number already registered"}`))
	})

	_, err := b.Register(context.Background(), auth.Profile{Email: "a@b.co"})
	var conflict *errors.ConflictError
	require.True(t, stderrors.As(err, &conflict))
	assert.Equal(t, "phone", conflict.Field)
	assert.Equal(t, "Phone number already registered", errors.UserMessage(err))
}

func TestBackendVerify(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"valid":true,"user":{"id":"u1","role":"citizen"}}`))
		})
		id, err := b.Verify(context.Background(), "at")
		require.NoError(t, err)
		assert.Equal(t, "u1", id.UserID)
		assert.Equal(t, []session.Role{session.RoleCitizen}, id.Roles)
	})

	t.Run("invalid", func(t *testing.T) {
		b := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"valid":false}`))
		})
		_, err := b.Verify(context.Background(), "at")
		assert.True(t, errors.IsAuthorizationExpired(err))
		assert.False(t, errors.IsRetryable(err))
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(t *testing.T, err error)
	}{
		{
			name: "unauthorized",
			err:  errors.NewAPIError(LoginPath, http.StatusUnauthorized, ""),
			check: func(t *testing.T, err error) {
				assert.True(t, errors.IsCredentials(err))
				assert.Equal(t, "Invalid credentials", errors.UserMessage(err))
			},
		},
		{
			name: "forbidden keeps message",
			err:  errors.NewAPIError(LoginPath, http.StatusForbidden, "Account disabled"),
			check: func(t *testing.T, err error) {
				assert.Equal(t, "Account disabled", errors.UserMessage(err))
			},
		},
		{
			name: "conflict",
			err:  errors.NewAPIError(RegisterPath, http.StatusConflict, "Email already in use"),
			check: func(t *testing.T, err error) {
				var c *errors.ConflictError
				require.True(t, stderrors.As(err, &c))
				assert.Equal(t, "email", c.Field)
			},
		},
		{
			name: "bad request",
			err:  errors.NewAPIError(RegisterPath, http.StatusBadRequest, "Invalid email"),
			check: func(t *testing.T, err error) {
				assert.True(t, errors.IsValidation(err))
			},
		},
		{
			name: "server error passes through",
			err:  errors.NewAPIError(LoginPath, http.StatusServiceUnavailable, "down"),
			check: func(t *testing.T, err error) {
				assert.True(t, errors.IsRetryable(err))
			},
		},
		{
			name: "network passes through",
			err:  errors.WrapNetwork("login", stderrors.New("refused")),
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, errors.ErrNetwork)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, classify("login", tt.err))
		})
	}
}
