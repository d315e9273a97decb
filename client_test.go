package secops_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/simonebruzzechesse/secops-wrapper"
)

const testInstancePath = "/projects/test-project/locations/us/instances/test-customer"

func setupTestServer(t *testing.T, handler http.HandlerFunc) *secops.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := secops.NewClient(
		secops.WithCustomerID("test-customer"),
		secops.WithProjectID("test-project"),
		secops.WithEndpoint(server.URL),
		secops.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"})),
	)
	require.NoError(t, err)

	return client
}

// setupStrictServer returns a client whose server fails the test on any
// request. Used to assert that validation errors never reach the transport.
func setupStrictServer(t *testing.T) *secops.Client {
	t.Helper()
	return setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
	})
}

func TestNewClient(t *testing.T) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"})

	t.Run("success with required options", func(t *testing.T) {
		client, err := secops.NewClient(
			secops.WithCustomerID("test-customer"),
			secops.WithProjectID("test-project"),
			secops.WithTokenSource(ts),
		)
		require.NoError(t, err)
		assert.Equal(t, "https://us-chronicle.googleapis.com/v1alpha", client.BaseURL())
		assert.Equal(t, "projects/test-project/locations/us/instances/test-customer", client.Instance())
	})

	t.Run("region drives base URL and instance path", func(t *testing.T) {
		client, err := secops.NewClient(
			secops.WithCustomerID("test-customer"),
			secops.WithProjectID("test-project"),
			secops.WithRegion("eu"),
			secops.WithTokenSource(ts),
		)
		require.NoError(t, err)
		assert.Equal(t, "https://eu-chronicle.googleapis.com/v1alpha", client.BaseURL())
		assert.Equal(t, "projects/test-project/locations/eu/instances/test-customer", client.Instance())
	})

	t.Run("error without customer ID", func(t *testing.T) {
		_, err := secops.NewClient(
			secops.WithProjectID("test-project"),
			secops.WithTokenSource(ts),
		)
		require.Error(t, err)
		assert.ErrorIs(t, err, secops.ErrNoCustomerID)
	})

	t.Run("error without project ID", func(t *testing.T) {
		_, err := secops.NewClient(
			secops.WithCustomerID("test-customer"),
			secops.WithTokenSource(ts),
		)
		require.Error(t, err)
		assert.ErrorIs(t, err, secops.ErrNoProjectID)
	})

	t.Run("error without credentials", func(t *testing.T) {
		_, err := secops.NewClient(
			secops.WithCustomerID("test-customer"),
			secops.WithProjectID("test-project"),
		)
		require.Error(t, err)
		assert.ErrorIs(t, err, secops.ErrNoCredentials)
	})

	t.Run("invalid credentials JSON is an authentication error", func(t *testing.T) {
		_, err := secops.NewClient(
			secops.WithCustomerID("test-customer"),
			secops.WithProjectID("test-project"),
			secops.WithCredentialsJSON([]byte("{not json")),
		)
		require.Error(t, err)

		var authErr *secops.AuthenticationError
		assert.ErrorAs(t, err, &authErr)
	})

	t.Run("success with custom timeout", func(t *testing.T) {
		client, err := secops.NewClient(
			secops.WithCustomerID("test-customer"),
			secops.WithProjectID("test-project"),
			secops.WithTokenSource(ts),
			secops.WithTimeout(60*time.Second),
		)
		require.NoError(t, err)
		assert.NotNil(t, client)
	})

	t.Run("success with custom HTTP client", func(t *testing.T) {
		customClient := &http.Client{
			Timeout: 90 * time.Second,
		}
		client, err := secops.NewClient(
			secops.WithCustomerID("test-customer"),
			secops.WithProjectID("test-project"),
			secops.WithTokenSource(ts),
			secops.WithHTTPClient(customClient),
		)
		require.NoError(t, err)
		assert.NotNil(t, client)
	})
}

func TestClientAuthHeaders(t *testing.T) {
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		_, err := w.Write([]byte(`{"queryType": "QUERY_TYPE_UDM_QUERY"}`))
		assert.NoError(t, err)
	})

	result, err := client.Search.Validate(context.Background(), `metadata.event_type = "NETWORK_CONNECTION"`)
	require.NoError(t, err)
	assert.True(t, result.OK())
}

func TestClientCustomHeaders(t *testing.T) {
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "req-42", r.Header.Get("X-Request-ID"))

		_, err := w.Write([]byte(`{"queryType": "QUERY_TYPE_UDM_QUERY"}`))
		assert.NoError(t, err)
	})

	_, err := client.Search.Validate(context.Background(), "query", secops.WithRequestID("req-42"))
	require.NoError(t, err)
}
