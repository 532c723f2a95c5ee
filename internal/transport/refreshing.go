package transport

import (
	"context"
	"net/http"

	"github.com/agentstation/queuelink/pkg/errors"
	"github.com/agentstation/queuelink/pkg/session"
)

// AuthorizationFailureHandler renews credentials after a request was
// refused for an expired token. *auth.Gateway implements it.
type AuthorizationFailureHandler interface {
	HandleAuthorizationFailure(ctx context.Context) error
}

// RefreshingTransport is an http.RoundTripper for authenticated data
// requests. It sends the current session token and, on a 401, refreshes
// once and retries. A second 401 is returned as an
// *errors.AuthorizationExpiredError.
type RefreshingTransport struct {
	Base    http.RoundTripper
	Source  session.Source
	Handler AuthorizationFailureHandler
	Auth    Authenticator
}

// RoundTrip implements http.RoundTripper.
func (t *RefreshingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.send(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	// A body that cannot be replayed cannot be retried.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}
	_ = resp.Body.Close()

	if err := t.Handler.HandleAuthorizationFailure(req.Context()); err != nil {
		return nil, &errors.AuthorizationExpiredError{Endpoint: req.URL.Path, Err: err}
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, errors.WrapIO("read", "request body", err)
		}
		retry.Body = body
	}

	resp, err = t.send(retry)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		_ = resp.Body.Close()
		return nil, &errors.AuthorizationExpiredError{Endpoint: req.URL.Path}
	}
	return resp, nil
}

func (t *RefreshingTransport) send(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	authn := t.Auth
	if authn == nil {
		authn = &BearerAuth{}
	}
	authn.Apply(out, t.Source.Current().Token)

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(out)
}
