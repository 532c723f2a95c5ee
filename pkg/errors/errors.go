// Package errors provides custom error types for the queuelink client.
// Every typed error maps onto a sentinel through Is, so callers can branch
// with the standard errors.Is instead of type assertions.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Common sentinel errors for the queuelink client
var (
	// ErrInvalidInput indicates malformed local input that was never sent over the wire
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidCredentials indicates the backend rejected a login or registration
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAlreadyExists indicates a uniqueness constraint reported by the backend
	ErrAlreadyExists = errors.New("already exists")

	// ErrNetwork indicates a retryable transport failure
	ErrNetwork = errors.New("network failure")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrAuthorizationExpired indicates that the access token is no longer accepted
	ErrAuthorizationExpired = errors.New("authorization expired")

	// ErrChannelExhausted indicates the event channel gave up reconnecting
	ErrChannelExhausted = errors.New("event channel exhausted")

	// ErrSuperseded indicates a pending operation was overtaken by a newer state change
	ErrSuperseded = errors.New("operation superseded")

	// ErrNotAuthenticated indicates an operation needs an authenticated session
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrClosed indicates use of a component after teardown
	ErrClosed = errors.New("closed")
)

// ValidationError represents a validation failure of local input
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// CredentialsError represents a backend-rejected login or registration.
// Message is safe to show to the user.
type CredentialsError struct {
	Operation string // "login", "register", "refresh"
	Message   string
	Err       error
}

// Error implements the error interface
func (e *CredentialsError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *CredentialsError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *CredentialsError) Is(target error) bool {
	return target == ErrInvalidCredentials
}

// ConflictError represents a uniqueness violation reported by the backend,
// such as an email or phone number that is already registered.
type ConflictError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s conflict: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("conflict: %s", e.Message)
}

// Is implements errors.Is support
func (e *ConflictError) Is(target error) bool {
	return target == ErrAlreadyExists
}

// NetworkError represents a retryable transport failure
type NetworkError struct {
	Operation string
	Err       error
}

// Error implements the error interface
func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Operation, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// TimeoutError represents an operation timeout
type TimeoutError struct {
	Operation string
	Duration  string
	Message   string
}

// Error implements the error interface
func (e *TimeoutError) Error() string {
	if e.Duration != "" {
		return fmt.Sprintf("operation %s timed out after %s: %s", e.Operation, e.Duration, e.Message)
	}
	return fmt.Sprintf("operation %s timed out: %s", e.Operation, e.Message)
}

// Is implements errors.Is support
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// NewTimeoutError creates a new TimeoutError
func NewTimeoutError(operation, duration, message string) *TimeoutError {
	return &TimeoutError{
		Operation: operation,
		Duration:  duration,
		Message:   message,
	}
}

// AuthorizationExpiredError signals that a request was refused because the
// access token expired or was revoked. Receiving one triggers a refresh.
type AuthorizationExpiredError struct {
	Endpoint string
	Err      error
}

// Error implements the error interface
func (e *AuthorizationExpiredError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("authorization expired calling %s", e.Endpoint)
	}
	return "authorization expired"
}

// Unwrap implements errors.Unwrap
func (e *AuthorizationExpiredError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *AuthorizationExpiredError) Is(target error) bool {
	return target == ErrAuthorizationExpired
}

// ChannelExhaustedError reports that the event channel exceeded its retry
// budget. It is a degraded-connectivity signal, never fatal to the caller.
type ChannelExhaustedError struct {
	Attempts int
	Err      error
}

// Error implements the error interface
func (e *ChannelExhaustedError) Error() string {
	return fmt.Sprintf("event channel gave up after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *ChannelExhaustedError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ChannelExhaustedError) Is(target error) bool {
	return target == ErrChannelExhausted
}

// APIError represents an unexpected response from the backend
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
	Err        error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("API error from %s (status %d): %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error from %s: %s", e.Endpoint, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *APIError) Is(target error) bool {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return target == ErrAuthorizationExpired
	case e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusGatewayTimeout:
		return target == ErrTimeout
	case e.StatusCode >= 500:
		return target == ErrNetwork
	}
	return false
}

// NewAPIError creates a new APIError
func NewAPIError(endpoint string, statusCode int, message string) *APIError {
	return &APIError{
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Message:    message,
	}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "create", "delete", "open", "close"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// ParseError represents an error when decoding wire or file data
type ParseError struct {
	Format  string // "json", "yaml", "jwt"
	Source  string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s parse error in %s: %s", e.Format, e.Source, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Helper functions for error checking

// IsValidation checks if an error is a local validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsCredentials checks if an error is a backend credential rejection
func IsCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

// IsConflict checks if an error is a uniqueness conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsAuthorizationExpired checks if an error should trigger a token refresh
func IsAuthorizationExpired(err error) bool {
	return errors.Is(err, ErrAuthorizationExpired)
}

// IsRetryable reports whether retrying the same call may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrTimeout)
}

// UserMessage returns text that is safe to show to the person using the app.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var credErr *CredentialsError
	if errors.As(err, &credErr) && credErr.Message != "" {
		return credErr.Message
	}
	var conflictErr *ConflictError
	if errors.As(err, &conflictErr) && conflictErr.Message != "" {
		return conflictErr.Message
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return valErr.Message
	}

	switch {
	case IsTimeout(err):
		return "The server took too long to respond. Please try again."
	case errors.Is(err, ErrNetwork):
		return "Unable to reach the server. Check your connection and try again."
	case IsAuthorizationExpired(err):
		return "Your session has expired. Please sign in again."
	case errors.Is(err, ErrSuperseded):
		return "The request was cancelled."
	case errors.Is(err, ErrNotAuthenticated):
		return "Please sign in first."
	}
	return "Something went wrong. Please try again."
}

// Helper wrapping functions for common patterns

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, source string, err error) error {
	if err == nil {
		return nil
	}
	return &ParseError{Format: format, Source: source, Message: err.Error(), Err: err}
}

// WrapNetwork wraps an error as a NetworkError
func WrapNetwork(operation string, err error) error {
	if err == nil {
		return nil
	}
	return &NetworkError{Operation: operation, Err: err}
}
