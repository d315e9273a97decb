package secops_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/simonebruzzechesse/secops-wrapper"
)

func TestAPIErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "api error with op",
			err:      &secops.APIError{Op: "search.Events", StatusCode: 400, Message: "invalid query"},
			expected: "secops: search.Events: API error 400: invalid query",
		},
		{
			name:     "api error without op",
			err:      &secops.APIError{StatusCode: 400, Message: "invalid query"},
			expected: "secops: API error 400: invalid query",
		},
		{
			name:     "authentication error",
			err:      &secops.AuthenticationError{APIError: secops.APIError{StatusCode: 401, Message: "token expired"}},
			expected: "secops: authentication failed: token expired",
		},
		{
			name:     "not found with resource",
			err:      &secops.NotFoundError{ResourceType: "rule", ResourceID: "ru_1234"},
			expected: "secops: rule not found: ru_1234",
		},
		{
			name:     "not found without resource",
			err:      &secops.NotFoundError{APIError: secops.APIError{StatusCode: 404, Message: "no such instance"}},
			expected: "secops: resource not found: no such instance",
		},
		{
			name:     "rate limit with retry after",
			err:      &secops.RateLimitError{RetryAfter: 30 * time.Second},
			expected: "secops: rate limit exceeded, retry after 30s",
		},
		{
			name:     "rate limit without retry after",
			err:      &secops.RateLimitError{},
			expected: "secops: rate limit exceeded",
		},
		{
			name:     "server error",
			err:      &secops.ServerError{APIError: secops.APIError{StatusCode: 503, Message: "backend unavailable"}},
			expected: "secops: server error 503: backend unavailable",
		},
		{
			name:     "parameter error with op",
			err:      &secops.ParameterError{Op: "search.Events", Message: "max events must be positive"},
			expected: "secops: search.Events: max events must be positive",
		},
		{
			name:     "parameter error without op",
			err:      &secops.ParameterError{Message: "start time is required"},
			expected: "secops: start time is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestErrorUnwrapsToAPIError(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"authentication", &secops.AuthenticationError{APIError: secops.APIError{StatusCode: 401, Message: "denied"}}},
		{"not found", &secops.NotFoundError{APIError: secops.APIError{StatusCode: 404, Message: "gone"}}},
		{"rate limit", &secops.RateLimitError{APIError: secops.APIError{StatusCode: 429, Message: "slow down"}}},
		{"server", &secops.ServerError{APIError: secops.APIError{StatusCode: 500, Message: "boom"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var apiErr *secops.APIError
			assert.True(t, errors.As(tt.err, &apiErr))
			assert.NotZero(t, apiErr.StatusCode)
		})
	}
}

func TestSentinelErrors(t *testing.T) {
	assert.EqualError(t, secops.ErrNoCredentials, "secops: no credentials configured")
	assert.EqualError(t, secops.ErrNoCustomerID, "secops: no customer ID configured")
	assert.EqualError(t, secops.ErrNoProjectID, "secops: no project ID configured")
	assert.EqualError(t, secops.ErrUnclassifiableValue, "secops: value could not be classified")
}
