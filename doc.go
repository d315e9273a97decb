// Package secops provides a native Go client for the Google SecOps
// (Chronicle) security analytics REST API: UDM search and statistics,
// entity summarization, case and alert retrieval, IoC listing, detection
// rule management, and log ingestion.
//
// # Features
//
//   - Service-based architecture mirroring the API's endpoint families
//   - Automatic value classification for entity lookups (IP, hash, domain,
//     email, MAC, hostname), with explicit overrides
//   - Typed errors for precise error handling; parameter errors are raised
//     before any request is sent
//   - Functional options for flexible configuration
//   - Go 1.23+ iterators for rule and detection pagination
//
// # Quick Start
//
//	client, err := secops.NewClient(
//	    secops.WithCustomerID("c3c6260f-...-c7e6d32d"),
//	    secops.WithProjectID("my-gcp-project"),
//	    secops.WithRegion("us"),
//	    secops.WithCredentialsFile("/path/to/service-account.json"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Search UDM events from the last 24 hours
//	events, err := client.Search.Events(ctx,
//	    `metadata.event_type = "NETWORK_CONNECTION"`,
//	    secops.Last(24*time.Hour),
//	)
//
//	// Summarize an entity; the value type is detected automatically
//	summary, err := client.Entities.Summarize(ctx, "192.168.1.100",
//	    secops.Last(24*time.Hour),
//	)
//
// # Authentication
//
// Credentials resolve through a service account key file, in-memory key
// JSON, application default credentials, or a caller-supplied token source:
//
//	secops.WithCredentialsFile("/path/to/key.json")
//	secops.WithCredentialsJSON(keyData)
//	secops.WithDefaultCredentials()
//	secops.WithTokenSource(ts)
//
// # Error Handling
//
// The package uses typed errors that can be inspected with errors.As:
//
//	summary, err := client.Entities.Summarize(ctx, value, tr)
//	if err != nil {
//	    var paramErr *secops.ParameterError
//	    if errors.As(err, &paramErr) {
//	        // Invalid input; no request was sent
//	    }
//	    var apiErr *secops.APIError
//	    if errors.As(err, &apiErr) {
//	        // Remote failure with status code and message
//	    }
//	}
//
// # Pagination
//
// Rule and detection listings expose iterators with automatic pagination:
//
//	for rule, err := range client.Rules.List(ctx) {
//	    // ...
//	}
//
//	// Collect all results into a slice
//	rules, err := secops.Collect(client.Rules.List(ctx))
//
//	// Or use manual pagination
//	page, err := client.Rules.ListPage(ctx, &secops.PageOptions{PageSize: 100})
package secops
