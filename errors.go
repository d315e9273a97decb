package secops

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrNoCredentials = errors.New("secops: no credentials configured")
	ErrNoCustomerID  = errors.New("secops: no customer ID configured")
	ErrNoProjectID   = errors.New("secops: no project ID configured")

	// ErrUnclassifiableValue indicates a value could not be classified and
	// no explicit field path or value type override was given.
	ErrUnclassifiableValue = errors.New("secops: value could not be classified")
)

// ParameterError indicates invalid caller-supplied parameters. It is raised
// locally, before any request reaches the transport.
type ParameterError struct {
	Op      string
	Message string

	err error
}

func (e *ParameterError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("secops: %s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("secops: %s", e.Message)
}

// Unwrap exposes the underlying cause, if any, for errors.Is.
func (e *ParameterError) Unwrap() error {
	return e.err
}

// APIError represents a general Chronicle API error.
type APIError struct {
	Op         string `json:"-"`
	StatusCode int    `json:"code"`
	Message    string `json:"message"`
	Status     string `json:"status,omitempty"`
}

func (e *APIError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("secops: %s: API error %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("secops: API error %d: %s", e.StatusCode, e.Message)
}

// AuthenticationError indicates credential resolution failure or token
// rejection by the remote service (401/403).
type AuthenticationError struct {
	APIError
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("secops: authentication failed: %s", e.Message)
}

// As implements error unwrapping for errors.As to match *APIError.
func (e *AuthenticationError) As(target any) bool {
	if t, ok := target.(**APIError); ok {
		*t = &e.APIError
		return true
	}
	return false
}

// NotFoundError indicates the requested resource was not found (404).
type NotFoundError struct {
	APIError
	ResourceType string
	ResourceID   string
}

func (e *NotFoundError) Error() string {
	if e.ResourceType != "" && e.ResourceID != "" {
		return fmt.Sprintf("secops: %s not found: %s", e.ResourceType, e.ResourceID)
	}
	return fmt.Sprintf("secops: resource not found: %s", e.Message)
}

// As implements error unwrapping for errors.As to match *APIError.
func (e *NotFoundError) As(target any) bool {
	if t, ok := target.(**APIError); ok {
		*t = &e.APIError
		return true
	}
	return false
}

// RateLimitError indicates the API rate limit was exceeded (429).
type RateLimitError struct {
	APIError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("secops: rate limit exceeded, retry after %s", e.RetryAfter)
	}
	return "secops: rate limit exceeded"
}

// As implements error unwrapping for errors.As to match *APIError.
func (e *RateLimitError) As(target any) bool {
	if t, ok := target.(**APIError); ok {
		*t = &e.APIError
		return true
	}
	return false
}

// ServerError indicates an internal server error (5xx).
type ServerError struct {
	APIError
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("secops: server error %d: %s", e.StatusCode, e.Message)
}

// As implements error unwrapping for errors.As to match *APIError.
func (e *ServerError) As(target any) bool {
	if t, ok := target.(**APIError); ok {
		*t = &e.APIError
		return true
	}
	return false
}

// googleErrorBody is the standard error envelope returned by Google APIs.
type googleErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// parseError converts an HTTP response into the appropriate error type.
func parseError(op string, statusCode int, body []byte, headers http.Header) error {
	base := APIError{
		Op:         op,
		StatusCode: statusCode,
	}

	// Google APIs nest the error in an "error" envelope; fall back to a flat
	// message, then to the raw body.
	var envelope googleErrorBody
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		base.Message = envelope.Error.Message
		base.Status = envelope.Error.Status
	} else if err := json.Unmarshal(body, &base); err != nil || base.Message == "" {
		base.Message = string(body)
	}
	base.Op = op
	base.StatusCode = statusCode

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &AuthenticationError{APIError: base}
	case statusCode == http.StatusNotFound:
		return &NotFoundError{APIError: base}
	case statusCode == http.StatusTooManyRequests:
		return &RateLimitError{
			APIError:   base,
			RetryAfter: parseRetryAfter(headers.Get("Retry-After")),
		}
	case statusCode >= http.StatusInternalServerError:
		return &ServerError{APIError: base}
	default:
		return &base
	}
}

// parseRetryAfter parses the Retry-After header value.
// It handles both seconds (integer) and HTTP-date formats.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	// Try parsing as seconds first
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(seconds) * time.Second
	}

	// Try parsing as HTTP-date (RFC 1123)
	if t, err := time.Parse(time.RFC1123, value); err == nil {
		duration := time.Until(t)
		if duration > 0 {
			return duration
		}
	}

	return 0
}
