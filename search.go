package secops

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/simonebruzzechesse/secops-wrapper/internal/api"
)

// Documented remote maximums for search limits. Out-of-range limits are a
// caller error, rejected before any request is sent.
const (
	maxReturnedEvents  = 10000
	maxValuesPerField  = 60
	defaultMaxEvents   = 10000
	defaultMaxValues   = 60
	defaultPollTries   = 30
	defaultPollBackoff = time.Second
)

// SearchService provides UDM search, statistics, CSV export, query
// validation and natural-language search.
type SearchService interface {
	// Events runs a UDM search and returns matching events.
	Events(ctx context.Context, query string, tr TimeRange, opts ...SearchOption) (*EventSet, error)

	// Stats runs a UDM stats query and returns the aggregated table.
	Stats(ctx context.Context, query string, tr TimeRange, opts ...SearchOption) (*StatsResult, error)

	// ExportCSV runs a UDM search and returns results as CSV text. The
	// header row equals fields, in order.
	ExportCSV(ctx context.Context, query string, tr TimeRange, fields []string, opts ...SearchOption) (string, error)

	// Validate submits a query to the remote validation endpoint. No local
	// syntax checking is performed.
	Validate(ctx context.Context, query string, opts ...RequestOption) (*QueryValidation, error)

	// TranslateNL translates a natural-language prompt into a UDM query.
	TranslateNL(ctx context.Context, text string, opts ...RequestOption) (string, error)

	// EventsFromNL translates a natural-language prompt and runs the
	// resulting UDM search.
	EventsFromNL(ctx context.Context, text string, tr TimeRange, opts ...SearchOption) (*EventSet, error)
}

// SearchOption configures a search operation.
type SearchOption func(*searchConfig)

type searchConfig struct {
	maxEvents     int
	maxValues     int
	caseSensitive bool
	pollTries     int
	pollInterval  time.Duration
}

func newSearchConfig() *searchConfig {
	return &searchConfig{
		maxEvents:    defaultMaxEvents,
		maxValues:    defaultMaxValues,
		pollTries:    defaultPollTries,
		pollInterval: defaultPollBackoff,
	}
}

// WithMaxEvents caps the number of returned events (1..10000).
func WithMaxEvents(n int) SearchOption {
	return func(c *searchConfig) {
		c.maxEvents = n
	}
}

// WithMaxValues caps the number of aggregated values per field in stats
// queries (1..60).
func WithMaxValues(n int) SearchOption {
	return func(c *searchConfig) {
		c.maxValues = n
	}
}

// WithCaseSensitive disables the default case-insensitive matching.
func WithCaseSensitive() SearchOption {
	return func(c *searchConfig) {
		c.caseSensitive = true
	}
}

// WithPolling tunes the operation polling loop: tries attempts spaced by
// interval.
func WithPolling(tries int, interval time.Duration) SearchOption {
	return func(c *searchConfig) {
		c.pollTries = tries
		c.pollInterval = interval
	}
}

func (c *searchConfig) validate(op string) error {
	if c.maxEvents <= 0 || c.maxEvents > maxReturnedEvents {
		return &ParameterError{Op: op, Message: fmt.Sprintf("max events must be in 1..%d, got %d", maxReturnedEvents, c.maxEvents)}
	}
	if c.maxValues <= 0 || c.maxValues > maxValuesPerField {
		return &ParameterError{Op: op, Message: fmt.Sprintf("max values must be in 1..%d, got %d", maxValuesPerField, c.maxValues)}
	}
	if c.pollTries <= 0 {
		return &ParameterError{Op: op, Message: "poll attempts must be positive"}
	}
	return nil
}

// UDMEvent is a single search hit: the event resource name plus its UDM body,
// which this client treats as opaque.
type UDMEvent struct {
	Name string         `json:"name"`
	UDM  map[string]any `json:"udm"`
}

// EventSet is the result of a UDM search.
type EventSet struct {
	Events      []UDMEvent
	TotalEvents int
}

// StatsResult is the reshaped result of a UDM stats query: one row map per
// result row, keyed by column name, in remote order.
type StatsResult struct {
	Columns   []string
	Rows      []map[string]any
	TotalRows int
}

// QueryValidation is the remote validation verdict for a query.
type QueryValidation struct {
	QueryType         string         `json:"queryType"`
	ErrorText         string         `json:"errorText"`
	ErrorType         string         `json:"errorType"`
	ValidationMessage string         `json:"validationMessage"`
	Extra             map[string]any `json:"-"`
}

// OK reports whether the remote service accepted the query.
func (v *QueryValidation) OK() bool {
	return v.QueryType != "" && v.ErrorText == "" && v.ErrorType == ""
}

func (v *QueryValidation) UnmarshalJSON(data []byte) error {
	type alias QueryValidation
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	a.Extra = overflowFields(data, "queryType", "errorText", "errorType", "validationMessage")
	*v = QueryValidation(a)
	return nil
}

// searchService implements SearchService.
type searchService struct {
	transport *api.Transport
	instance  string
}

func newSearchService(transport *api.Transport, instance string) *searchService {
	return &searchService{transport: transport, instance: instance}
}

// legacySearchRequest is the wire shape of legacy:legacyFetchUdmSearchView.
type legacySearchRequest struct {
	BaselineQuery         string       `json:"baselineQuery"`
	BaselineTimeRange     apiTimeRange `json:"baselineTimeRange"`
	CaseInsensitive       bool         `json:"caseInsensitive"`
	ReturnOperationIDOnly bool         `json:"returnOperationIdOnly"`
	EventList             *struct {
		MaxReturnedEvents int `json:"maxReturnedEvents"`
	} `json:"eventList,omitempty"`
	FieldAggregations *struct {
		MaxValuesPerField int `json:"maxValuesPerField"`
	} `json:"fieldAggregations,omitempty"`
}

func newLegacySearchRequest(query string, tr TimeRange, cfg *searchConfig, withStats bool) *legacySearchRequest {
	req := &legacySearchRequest{
		BaselineQuery:         query,
		BaselineTimeRange:     tr.apiMillis(),
		CaseInsensitive:       !cfg.caseSensitive,
		ReturnOperationIDOnly: true,
	}
	req.EventList = &struct {
		MaxReturnedEvents int `json:"maxReturnedEvents"`
	}{MaxReturnedEvents: cfg.maxEvents}
	if withStats {
		req.FieldAggregations = &struct {
			MaxValuesPerField int `json:"maxValuesPerField"`
		}{MaxValuesPerField: cfg.maxValues}
	}
	return req
}

func validateQueryText(op, query string) error {
	if query == "" {
		return &ParameterError{Op: op, Message: "query is required"}
	}
	return nil
}

// Events runs a UDM search and returns matching events.
func (s *searchService) Events(ctx context.Context, query string, tr TimeRange, opts ...SearchOption) (*EventSet, error) {
	const op = "search events"

	cfg := newSearchConfig()
	for _, o := range opts {
		o(cfg)
	}
	if err := validateQueryText(op, query); err != nil {
		return nil, err
	}
	if err := tr.validate(op); err != nil {
		return nil, err
	}
	if err := cfg.validate(op); err != nil {
		return nil, err
	}

	result, err := s.runOperation(ctx, op, newLegacySearchRequest(query, tr, cfg, false), cfg)
	if err != nil {
		return nil, err
	}
	events := result.events()
	return &EventSet{Events: events, TotalEvents: len(events)}, nil
}

// Stats runs a UDM stats query and returns the aggregated table.
func (s *searchService) Stats(ctx context.Context, query string, tr TimeRange, opts ...SearchOption) (*StatsResult, error) {
	const op = "search stats"

	cfg := newSearchConfig()
	for _, o := range opts {
		o(cfg)
	}
	if err := validateQueryText(op, query); err != nil {
		return nil, err
	}
	if err := tr.validate(op); err != nil {
		return nil, err
	}
	if err := cfg.validate(op); err != nil {
		return nil, err
	}

	result, err := s.runOperation(ctx, op, newLegacySearchRequest(query, tr, cfg, true), cfg)
	if err != nil {
		return nil, err
	}
	if result.Stats == nil {
		return nil, &APIError{Op: op, Message: "no stats in completed response"}
	}
	return result.Stats.reshape(), nil
}

// ExportCSV runs a UDM search and returns results as CSV text.
func (s *searchService) ExportCSV(ctx context.Context, query string, tr TimeRange, fields []string, opts ...SearchOption) (string, error) {
	const op = "export csv"

	cfg := newSearchConfig()
	for _, o := range opts {
		o(cfg)
	}
	if err := validateQueryText(op, query); err != nil {
		return "", err
	}
	if err := tr.validate(op); err != nil {
		return "", err
	}
	if len(fields) == 0 {
		return "", &ParameterError{Op: op, Message: "at least one field is required"}
	}
	for _, f := range fields {
		if f == "" {
			return "", &ParameterError{Op: op, Message: "field paths must be non-empty"}
		}
	}

	// Field order is semantic: it determines the CSV column order.
	body := map[string]any{
		"baselineQuery": query,
		"baselineTimeRange": apiTimeRange{
			StartTime: tr.Start.UTC().Format(timeFormatMicros),
			EndTime:   tr.End.UTC().Format(timeFormatMicros),
		},
		"fields": map[string]any{
			"fields": fields,
		},
		"caseInsensitive": !cfg.caseSensitive,
	}

	resp, err := s.transport.Do(ctx, &api.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("%s/legacy:legacyFetchUdmSearchCsv", s.instance),
		Body:   body,
	})
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", parseError(op, resp.StatusCode, resp.Body, resp.Headers)
	}

	return string(resp.Body), nil
}

// Validate submits a query to the remote validation endpoint.
func (s *searchService) Validate(ctx context.Context, query string, opts ...RequestOption) (*QueryValidation, error) {
	const op = "validate query"

	if err := validateQueryText(op, query); err != nil {
		return nil, err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	q := url.Values{}
	q.Set("rawQuery", query)
	q.Set("dialect", "DIALECT_UDM_SEARCH")
	q.Set("allowUnreplacedPlaceholders", "false")

	var result QueryValidation
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodGet,
		Path:    fmt.Sprintf("%s:validateQuery", s.instance),
		Query:   q,
		Headers: reqCfg.headers,
	}, &result)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseError(op, resp.StatusCode, resp.Body, resp.Headers)
	}

	return &result, nil
}

// TranslateNL translates a natural-language prompt into a UDM query.
func (s *searchService) TranslateNL(ctx context.Context, text string, opts ...RequestOption) (string, error) {
	const op = "translate natural language"

	if text == "" {
		return "", &ParameterError{Op: op, Message: "text is required"}
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	var result struct {
		Query string `json:"query"`
	}
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodPost,
		Path:    fmt.Sprintf("%s:translateUdmQuery", s.instance),
		Body:    map[string]string{"text": text},
		Headers: reqCfg.headers,
	}, &result)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", parseError(op, resp.StatusCode, resp.Body, resp.Headers)
	}
	if result.Query == "" {
		return "", &APIError{Op: op, StatusCode: resp.StatusCode, Message: "no valid query could be generated from the text"}
	}

	return result.Query, nil
}

// EventsFromNL translates a prompt and runs the resulting UDM search.
func (s *searchService) EventsFromNL(ctx context.Context, text string, tr TimeRange, opts ...SearchOption) (*EventSet, error) {
	query, err := s.TranslateNL(ctx, text)
	if err != nil {
		return nil, err
	}
	return s.Events(ctx, query, tr, opts...)
}

// operationRef is the envelope returned when starting a legacy search; the
// remote service returns either a bare object or a single-element array.
type operationRef struct {
	Operation string `json:"operation"`
	Name      string `json:"name"`
}

func (r operationRef) id() string {
	if r.Operation != "" {
		return r.Operation
	}
	return r.Name
}

func parseOperationRef(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var refs []operationRef
		if err := json.Unmarshal(trimmed, &refs); err != nil {
			return "", fmt.Errorf("decoding operation reference: %w", err)
		}
		if len(refs) == 0 {
			return "", nil
		}
		return refs[0].id(), nil
	}
	var ref operationRef
	if err := json.Unmarshal(trimmed, &ref); err != nil {
		return "", fmt.Errorf("decoding operation reference: %w", err)
	}
	return ref.id(), nil
}

// pollResponse is the interesting portion of a streamSearch poll result.
// Completion and payloads surface either at the top level or nested under
// "operation", depending on the backend.
type pollResponse struct {
	Complete bool `json:"complete"`
	Progress int  `json:"progress"`
	Events   struct {
		Events []UDMEvent `json:"events"`
	} `json:"events"`
	Stats  *statsPayload `json:"stats"`
	Alerts struct {
		Alerts []Alert `json:"alerts"`
	} `json:"alerts"`
	FieldAggregations struct {
		BaselineAlertsCount int `json:"baselineAlertsCount"`
		FilteredAlertsCount int `json:"filteredAlertsCount"`
	} `json:"fieldAggregations"`
}

type pollEnvelope struct {
	Done      bool `json:"done"`
	Operation struct {
		Done     bool          `json:"done"`
		Response *pollResponse `json:"response"`
	} `json:"operation"`
	Response *pollResponse `json:"response"`
}

func (e *pollEnvelope) done() bool {
	return e.Done || e.Operation.Done || (e.Response != nil && e.Response.Complete)
}

func (e *pollEnvelope) payload() *pollResponse {
	if e.Response != nil {
		return e.Response
	}
	return e.Operation.Response
}

func (p *pollResponse) events() []UDMEvent {
	return p.Events.Events
}

func parsePollEnvelope(body []byte) (*pollEnvelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var envs []pollEnvelope
		if err := json.Unmarshal(trimmed, &envs); err != nil {
			return nil, fmt.Errorf("decoding poll response: %w", err)
		}
		if len(envs) == 0 {
			return &pollEnvelope{}, nil
		}
		return &envs[0], nil
	}
	var env pollEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decoding poll response: %w", err)
	}
	return &env, nil
}

// runOperation starts a legacy search view operation and polls its
// streamSearch endpoint until completion.
func (s *searchService) runOperation(ctx context.Context, op string, body any, cfg *searchConfig) (*pollResponse, error) {
	opID, err := startOperation(ctx, s.transport, s.instance, op, body)
	if err != nil {
		return nil, err
	}
	final, err := pollOperation(ctx, s.transport, op, opID, cfg.pollTries, cfg.pollInterval)
	if err != nil {
		return nil, err
	}
	return final, nil
}

func startOperation(ctx context.Context, transport *api.Transport, instance, op string, body any) (string, error) {
	resp, err := transport.Do(ctx, &api.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("%s/legacy:legacyFetchUdmSearchView", instance),
		Body:   body,
	})
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", parseError(op, resp.StatusCode, resp.Body, resp.Headers)
	}

	opID, err := parseOperationRef(resp.Body)
	if err != nil {
		return "", &APIError{Op: op, StatusCode: resp.StatusCode, Message: err.Error()}
	}
	if opID == "" {
		return "", &APIError{Op: op, StatusCode: resp.StatusCode, Message: "no operation ID in response"}
	}
	return opID, nil
}

// pollOperation polls {operation}:streamSearch until the operation reports
// completion, waiting interval between attempts. The wait is context-aware.
func pollOperation(ctx context.Context, transport *api.Transport, op, opID string, tries int, interval time.Duration) (*pollResponse, error) {
	for attempt := 0; attempt < tries; attempt++ {
		resp, err := transport.Do(ctx, &api.Request{
			Method: http.MethodGet,
			Path:   fmt.Sprintf("%s:streamSearch", opID),
		})
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, parseError(op, resp.StatusCode, resp.Body, resp.Headers)
		}

		env, err := parsePollEnvelope(resp.Body)
		if err != nil {
			return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Message: err.Error()}
		}
		if env.done() {
			payload := env.payload()
			if payload == nil {
				payload = &pollResponse{Complete: true}
			}
			return payload, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
	return nil, &APIError{Op: op, Message: fmt.Sprintf("operation did not complete after %d attempts", tries)}
}

// statsPayload is the raw column-major stats shape returned by the API.
type statsPayload struct {
	Results []struct {
		Column string `json:"column"`
		Values []struct {
			Value struct {
				StringVal *string `json:"stringVal"`
				Int64Val  *string `json:"int64Val"`
			} `json:"value"`
		} `json:"values"`
	} `json:"results"`
}

// reshape pivots the column-major payload into row maps keyed by column name.
func (p *statsPayload) reshape() *StatsResult {
	result := &StatsResult{
		Columns: make([]string, 0, len(p.Results)),
		Rows:    []map[string]any{},
	}

	numRows := 0
	for i, col := range p.Results {
		result.Columns = append(result.Columns, col.Column)
		if i == 0 {
			numRows = len(col.Values)
		}
	}

	for i := 0; i < numRows; i++ {
		row := make(map[string]any, len(p.Results))
		for _, col := range p.Results {
			if i >= len(col.Values) {
				row[col.Column] = nil
				continue
			}
			value := col.Values[i].Value
			switch {
			case value.StringVal != nil:
				row[col.Column] = *value.StringVal
			case value.Int64Val != nil:
				if n, err := strconv.ParseInt(*value.Int64Val, 10, 64); err == nil {
					row[col.Column] = n
				} else {
					row[col.Column] = *value.Int64Val
				}
			default:
				row[col.Column] = nil
			}
		}
		result.Rows = append(result.Rows, row)
	}

	result.TotalRows = len(result.Rows)
	return result
}
