// Package transport talks to the queue platform's backend: JSON over HTTP
// for authentication and data requests, a websocket for the event stream.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agentstation/queuelink/pkg/constants"
	"github.com/agentstation/queuelink/pkg/errors"
	"github.com/agentstation/queuelink/pkg/logging"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
var DefaultHTTPTimeout = constants.DefaultRequestTimeout

// Client provides JSON request functionality with authentication.
type Client struct {
	baseURL string
	http    *http.Client
	auth    Authenticator
	logger  *zerolog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithAuthenticator replaces the default BearerAuth.
func WithAuthenticator(auth Authenticator) ClientOption {
	return func(c *Client) {
		c.auth = auth
	}
}

// WithClientLogger sets the logger.
func WithClientLogger(logger *zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultHTTPTimeout},
		auth:    &BearerAuth{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.Component(c.logger, "transport")
	return c
}

// Do sends body as JSON to path and decodes the response into target.
// token may be empty. Transport failures are returned as
// *errors.NetworkError, deadline overruns as *errors.TimeoutError and
// non-2xx responses as *errors.APIError.
func (c *Client) Do(ctx context.Context, method, path, token string, body, target any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.WrapParse("json", path+" request", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.NewConfigError("transport", "invalid request for "+path, err)
	}

	requestID := logging.RequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.auth.Apply(req, token)

	resp, err := c.http.Do(req)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return errors.NewTimeoutError(path, "", err.Error())
		}
		return errors.WrapNetwork(method+" "+path, err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Msg("Backend request")

	return DecodeResponse(resp, path, target)
}
