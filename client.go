// Package secops provides a Go client for the Google SecOps (Chronicle)
// security analytics API.
//
// Basic usage:
//
//	client, err := secops.NewClient(
//	    secops.WithCustomerID("c3c6260f-...-c7e6d32d"),
//	    secops.WithProjectID("my-gcp-project"),
//	    secops.WithCredentialsFile("/path/to/service-account.json"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	events, err := client.Search.Events(ctx,
//	    `metadata.event_type = "NETWORK_CONNECTION"`,
//	    secops.Last(24*time.Hour),
//	)
package secops

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/simonebruzzechesse/secops-wrapper/internal/api"
	"github.com/simonebruzzechesse/secops-wrapper/internal/auth"
)

// Default configuration values.
const (
	defaultTimeout = 30 * time.Second
	defaultRegion  = "us"
)

// Client is the Chronicle API client. Services hold no mutable state between
// calls, so a Client is safe for concurrent use.
type Client struct {
	// Search provides UDM search, stats, CSV export and query validation.
	Search SearchService

	// Entities provides entity summarization with value classification.
	Entities EntityService

	// Cases provides batch case retrieval.
	Cases CaseService

	// Alerts provides alert retrieval with progress reporting.
	Alerts AlertService

	// IoCs provides enterprise-wide IoC match listing.
	IoCs IoCService

	// Rules provides detection rule management.
	Rules RuleService

	// Ingest provides raw log and UDM event ingestion.
	Ingest IngestService

	transport *api.Transport
	instance  string
}

// NewClient creates a new Chronicle client with the given options.
// Exactly one credential option must be supplied: WithCredentialsFile,
// WithCredentialsJSON, WithDefaultCredentials, or WithTokenSource.
func NewClient(opts ...ClientOption) (*Client, error) {
	cfg := &clientConfig{
		timeout: defaultTimeout,
		region:  defaultRegion,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.customerID == "" {
		return nil, ErrNoCustomerID
	}
	if cfg.projectID == "" {
		return nil, ErrNoProjectID
	}

	ts, err := resolveTokenSource(cfg)
	if err != nil {
		return nil, err
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.timeout,
		}
	}

	baseURL := cfg.endpoint
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s-chronicle.googleapis.com/v1alpha", cfg.region)
	}

	transport, err := api.NewTransport(baseURL, ts, httpClient)
	if err != nil {
		return nil, err
	}

	if cfg.userAgent != "" {
		transport.UserAgent = cfg.userAgent
	}

	instance := fmt.Sprintf("projects/%s/locations/%s/instances/%s",
		cfg.projectID, cfg.region, cfg.customerID)

	client := &Client{
		transport: transport,
		instance:  instance,
	}

	// Initialize services
	client.Search = newSearchService(transport, instance)
	client.Entities = newEntityService(transport, instance)
	client.Cases = newCaseService(transport, instance)
	client.Alerts = newAlertService(transport, instance)
	client.IoCs = newIoCService(transport, instance)
	client.Rules = newRuleService(transport, instance)
	client.Ingest = newIngestService(transport, instance)

	return client, nil
}

// resolveTokenSource turns the configured credential option into an oauth2
// token source. An explicit token source wins; ambient default credentials
// are used only when asked for, never as a silent fallback.
func resolveTokenSource(cfg *clientConfig) (oauth2.TokenSource, error) {
	ctx := context.Background()

	var (
		ts  oauth2.TokenSource
		err error
	)
	switch {
	case cfg.tokenSource != nil:
		return cfg.tokenSource, nil
	case len(cfg.credentialsJSON) > 0:
		ts, err = auth.FromJSON(ctx, cfg.credentialsJSON)
	case cfg.credentialsFile != "":
		ts, err = auth.FromFile(ctx, cfg.credentialsFile)
	case cfg.defaultCredentials:
		ts, err = auth.Default(ctx)
	default:
		return nil, ErrNoCredentials
	}
	if err != nil {
		return nil, &AuthenticationError{APIError: APIError{Message: err.Error()}}
	}
	return ts, nil
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.transport.BaseURL.String()
}

// Instance returns the Chronicle instance resource path
// (projects/{project}/locations/{region}/instances/{customer}).
func (c *Client) Instance() string {
	return c.instance
}
