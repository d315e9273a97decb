package secops

import (
	"context"
	"encoding/base64"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/simonebruzzechesse/secops-wrapper/internal/api"
)

// LogEntry is one raw log record to ingest. The payload is opaque: it is
// never interpreted, only base64-encoded for transport.
type LogEntry struct {
	// Data is the log payload. Raw payloads are base64-encoded exactly
	// once before sending; set Encoded when Data is already base64.
	Data string

	// Encoded marks Data as already base64-encoded. A payload marked
	// encoded that does not decode is a ParameterError, not sent.
	Encoded bool

	// LogEntryTime is when the event occurred. Defaults to now.
	LogEntryTime time.Time

	// CollectionTime is when the log was collected. Defaults to now.
	CollectionTime time.Time

	// Labels and Additionals are attached to the record as-is.
	Labels      map[string]string
	Additionals map[string]any
}

// wireLogEntry is the ingestion record wire shape.
type wireLogEntry struct {
	Data           string            `json:"data"`
	LogEntryTime   string            `json:"log_entry_time"`
	CollectionTime string            `json:"collection_time"`
	Labels         map[string]string `json:"labels,omitempty"`
	Additionals    map[string]any    `json:"additionals,omitempty"`
}

func (e LogEntry) wire(op string, now time.Time) (wireLogEntry, error) {
	data := e.Data
	if e.Encoded {
		if _, err := base64.StdEncoding.DecodeString(e.Data); err != nil {
			return wireLogEntry{}, &ParameterError{Op: op, Message: fmt.Sprintf("payload marked encoded is not valid base64: %v", err)}
		}
	} else {
		data = base64.StdEncoding.EncodeToString([]byte(e.Data))
	}

	entryTime := e.LogEntryTime
	if entryTime.IsZero() {
		entryTime = now
	}
	collectionTime := e.CollectionTime
	if collectionTime.IsZero() {
		collectionTime = now
	}

	return wireLogEntry{
		Data:           data,
		LogEntryTime:   entryTime.UTC().Format(time.RFC3339Nano),
		CollectionTime: collectionTime.UTC().Format(time.RFC3339Nano),
		Labels:         e.Labels,
		Additionals:    e.Additionals,
	}, nil
}

// ImportResult references the ingestion operation created by an import.
type ImportResult struct {
	Operation string `json:"operation"`
}

// Forwarder is a log collection endpoint definition.
type Forwarder struct {
	// Name is the full resource name
	// (projects/.../instances/.../forwarders/{id}).
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// LogType is an ingestion log type supported by the instance.
type LogType struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// ID returns the bare log type tag, the trailing segment of Name.
func (t *LogType) ID() string {
	if i := strings.LastIndexByte(t.Name, '/'); i >= 0 {
		return t.Name[i+1:]
	}
	return t.Name
}

// IngestOption configures a log import.
type IngestOption func(*ingestConfig)

type ingestConfig struct {
	forwarder string
}

// WithForwarder attributes imported logs to a forwarder resource name.
func WithForwarder(name string) IngestOption {
	return func(c *ingestConfig) {
		c.forwarder = name
	}
}

// IngestService provides raw log and UDM event ingestion.
type IngestService interface {
	// ImportLogs ingests raw log records under a log type tag. Ingestion
	// is not idempotent: every call appends records. This client never
	// retries it.
	ImportLogs(ctx context.Context, logType string, entries []LogEntry, opts ...IngestOption) (*ImportResult, error)

	// ImportEvents ingests UDM events directly. Events missing
	// metadata.id get a generated ID; inputs are not mutated. Like
	// ImportLogs, this appends on every call and is never retried.
	ImportEvents(ctx context.Context, events ...map[string]any) (*ImportResult, error)

	// ListForwarders returns the instance's forwarders.
	ListForwarders(ctx context.Context, opts ...RequestOption) ([]Forwarder, error)

	// GetOrCreateForwarder finds a forwarder by display name, creating it
	// when absent.
	GetOrCreateForwarder(ctx context.Context, displayName string, opts ...RequestOption) (*Forwarder, error)

	// ListLogTypes returns the log types available for ingestion.
	ListLogTypes(ctx context.Context, opts ...RequestOption) ([]LogType, error)

	// SearchLogTypes returns log types whose ID or display name contains
	// term, case-insensitively.
	SearchLogTypes(ctx context.Context, term string, opts ...RequestOption) ([]LogType, error)
}

// ingestService implements IngestService.
type ingestService struct {
	transport *api.Transport
	instance  string
}

func newIngestService(transport *api.Transport, instance string) *ingestService {
	return &ingestService{transport: transport, instance: instance}
}

// ImportLogs ingests raw log records under a log type tag.
func (s *ingestService) ImportLogs(ctx context.Context, logType string, entries []LogEntry, opts ...IngestOption) (*ImportResult, error) {
	const op = "import logs"

	if logType == "" {
		return nil, &ParameterError{Op: op, Message: "log type is required"}
	}
	if len(entries) == 0 {
		return nil, &ParameterError{Op: op, Message: "at least one log entry is required"}
	}

	cfg := &ingestConfig{}
	for _, o := range opts {
		o(cfg)
	}

	now := time.Now().UTC()
	logs := make([]wireLogEntry, 0, len(entries))
	for _, entry := range entries {
		w, err := entry.wire(op, now)
		if err != nil {
			return nil, err
		}
		logs = append(logs, w)
	}

	inline := map[string]any{"logs": logs}
	if cfg.forwarder != "" {
		inline["forwarder"] = cfg.forwarder
	}

	var result ImportResult
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("%s/logTypes/%s/logs:import", s.instance, url.PathEscape(logType)),
		Body:   map[string]any{"inline_source": inline},
	}, &result)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseError(op, resp.StatusCode, resp.Body, resp.Headers)
	}

	return &result, nil
}

// ImportEvents ingests UDM events directly.
func (s *ingestService) ImportEvents(ctx context.Context, events ...map[string]any) (*ImportResult, error) {
	const op = "import events"

	if len(events) == 0 {
		return nil, &ParameterError{Op: op, Message: "at least one event is required"}
	}

	wireEvents := make([]map[string]any, 0, len(events))
	for _, event := range events {
		wireEvents = append(wireEvents, map[string]any{"udm": withEventID(event)})
	}

	var result ImportResult
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("%s/events:import", s.instance),
		Body:   map[string]any{"inline_source": map[string]any{"events": wireEvents}},
	}, &result)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseError(op, resp.StatusCode, resp.Body, resp.Headers)
	}

	return &result, nil
}

// withEventID returns event with metadata.id set, generating one when
// absent. The caller's maps are copied, not mutated.
func withEventID(event map[string]any) map[string]any {
	metadata, _ := event["metadata"].(map[string]any)
	if id, ok := metadata["id"].(string); ok && id != "" {
		return event
	}

	out := maps.Clone(event)
	if out == nil {
		out = map[string]any{}
	}
	newMetadata := maps.Clone(metadata)
	if newMetadata == nil {
		newMetadata = map[string]any{}
	}
	newMetadata["id"] = uuid.NewString()
	out["metadata"] = newMetadata
	return out
}

// ListForwarders returns the instance's forwarders.
func (s *ingestService) ListForwarders(ctx context.Context, opts ...RequestOption) ([]Forwarder, error) {
	const op = "list forwarders"

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	var result struct {
		Forwarders []Forwarder `json:"forwarders"`
	}
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodGet,
		Path:    fmt.Sprintf("%s/forwarders", s.instance),
		Headers: reqCfg.headers,
	}, &result)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseError(op, resp.StatusCode, resp.Body, resp.Headers)
	}

	return result.Forwarders, nil
}

// GetOrCreateForwarder finds a forwarder by display name, creating it when
// absent.
func (s *ingestService) GetOrCreateForwarder(ctx context.Context, displayName string, opts ...RequestOption) (*Forwarder, error) {
	const op = "get or create forwarder"

	if displayName == "" {
		return nil, &ParameterError{Op: op, Message: "display name is required"}
	}

	forwarders, err := s.ListForwarders(ctx, opts...)
	if err != nil {
		return nil, err
	}
	for i := range forwarders {
		if forwarders[i].DisplayName == displayName {
			return &forwarders[i], nil
		}
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	var created Forwarder
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodPost,
		Path:    fmt.Sprintf("%s/forwarders", s.instance),
		Body:    map[string]string{"displayName": displayName},
		Headers: reqCfg.headers,
	}, &created)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseError(op, resp.StatusCode, resp.Body, resp.Headers)
	}

	return &created, nil
}

// ListLogTypes returns the log types available for ingestion.
func (s *ingestService) ListLogTypes(ctx context.Context, opts ...RequestOption) ([]LogType, error) {
	const op = "list log types"

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	q := url.Values{}
	q.Set("pageSize", "1000")

	// The log type catalog spans multiple pages.
	var all []LogType
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var result struct {
			LogTypes      []LogType `json:"logTypes"`
			NextPageToken string    `json:"nextPageToken"`
		}
		resp, err := s.transport.DoJSON(ctx, &api.Request{
			Method:  http.MethodGet,
			Path:    fmt.Sprintf("%s/logTypes", s.instance),
			Query:   q,
			Headers: reqCfg.headers,
		}, &result)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, parseError(op, resp.StatusCode, resp.Body, resp.Headers)
		}

		all = append(all, result.LogTypes...)
		if result.NextPageToken == "" {
			return all, nil
		}
		q.Set("pageToken", result.NextPageToken)
	}
}

// SearchLogTypes returns log types matching term.
func (s *ingestService) SearchLogTypes(ctx context.Context, term string, opts ...RequestOption) ([]LogType, error) {
	if term == "" {
		return nil, &ParameterError{Op: "search log types", Message: "search term is required"}
	}

	all, err := s.ListLogTypes(ctx, opts...)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(term)
	var matched []LogType
	for _, lt := range all {
		if strings.Contains(strings.ToLower(lt.ID()), needle) ||
			strings.Contains(strings.ToLower(lt.DisplayName), needle) {
			matched = append(matched, lt)
		}
	}
	return matched, nil
}
