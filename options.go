package secops

import (
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	customerID string
	projectID  string
	region     string
	endpoint   string

	credentialsFile    string
	credentialsJSON    []byte
	defaultCredentials bool
	tokenSource        oauth2.TokenSource

	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
}

// WithCustomerID sets the Chronicle customer ID (instance UUID). Required.
func WithCustomerID(id string) ClientOption {
	return func(c *clientConfig) {
		c.customerID = id
	}
}

// WithProjectID sets the Google Cloud project ID. Required.
func WithProjectID(id string) ClientOption {
	return func(c *clientConfig) {
		c.projectID = id
	}
}

// WithRegion sets the Chronicle region ("us", "eu", ...). Defaults to "us".
func WithRegion(region string) ClientOption {
	return func(c *clientConfig) {
		c.region = region
	}
}

// WithEndpoint overrides the API base URL derived from the region.
// Intended for testing and private endpoints.
func WithEndpoint(baseURL string) ClientOption {
	return func(c *clientConfig) {
		c.endpoint = baseURL
	}
}

// WithCredentialsFile authenticates with a service account key file.
func WithCredentialsFile(path string) ClientOption {
	return func(c *clientConfig) {
		c.credentialsFile = path
	}
}

// WithCredentialsJSON authenticates with in-memory service account key JSON.
func WithCredentialsJSON(data []byte) ClientOption {
	return func(c *clientConfig) {
		c.credentialsJSON = data
	}
}

// WithDefaultCredentials authenticates with application default credentials
// resolved from the environment.
func WithDefaultCredentials() ClientOption {
	return func(c *clientConfig) {
		c.defaultCredentials = true
	}
}

// WithTokenSource authenticates with a caller-supplied token source,
// bypassing credential resolution entirely.
func WithTokenSource(ts oauth2.TokenSource) ClientOption {
	return func(c *clientConfig) {
		c.tokenSource = ts
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithTimeout sets the default request timeout.
// Note: This option is ignored when WithHTTPClient is used;
// set the timeout directly on the provided client instead.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *clientConfig) {
		c.userAgent = ua
	}
}

// RequestOption configures individual API requests.
type RequestOption func(*requestConfig)

type requestConfig struct {
	headers http.Header
}

func newRequestConfig() *requestConfig {
	return &requestConfig{
		headers: make(http.Header),
	}
}

func (r *requestConfig) apply(opts ...RequestOption) {
	for _, opt := range opts {
		opt(r)
	}
}

// WithHeader adds a custom header to a request.
func WithHeader(key, value string) RequestOption {
	return func(r *requestConfig) {
		r.headers.Set(key, value)
	}
}

// WithHeaders adds multiple custom headers to a request.
func WithHeaders(headers map[string]string) RequestOption {
	return func(r *requestConfig) {
		for k, v := range headers {
			r.headers.Set(k, v)
		}
	}
}

// WithRequestID sets the X-Request-ID header for tracing.
func WithRequestID(id string) RequestOption {
	return WithHeader("X-Request-ID", id)
}
