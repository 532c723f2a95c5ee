package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/agentstation/queuelink/pkg/errors"
	"github.com/agentstation/queuelink/pkg/logging"
)

// errorBody is the backend's error shape.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// DecodeResponse decodes a JSON response into target. Any non-2xx status
// becomes an *errors.APIError carrying the backend's message. A nil target
// discards the body.
func DecodeResponse(resp *http.Response, endpoint string, target any) error {
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to close response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapIO("read", "response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.NewAPIError(endpoint, resp.StatusCode, messageOf(body))
	}

	if target == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapParse("json", endpoint+" response", err)
	}
	return nil
}

// messageOf extracts the backend's message, falling back to the raw body.
func messageOf(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if eb.Message != "" {
			return eb.Message
		}
		if eb.Error != "" {
			return eb.Error
		}
	}
	return strings.TrimSpace(string(body))
}
