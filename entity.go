package secops

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/simonebruzzechesse/secops-wrapper/internal/api"
)

const defaultSummaryPageSize = 1000

// EntityService provides entity summarization.
type EntityService interface {
	// Summarize returns aggregated metadata for a value (IP, hash, domain,
	// email, MAC or hostname). Unless an explicit field path, value type or
	// entity ID override is given, the value is classified automatically;
	// a value that cannot be classified is a ParameterError.
	Summarize(ctx context.Context, value string, tr TimeRange, opts ...SummarizeOption) (*EntitySummary, error)

	// SummarizeFromQuery returns entity summaries for every entity matched
	// by a UDM query, in response order and without deduplication.
	SummarizeFromQuery(ctx context.Context, query string, tr TimeRange, opts ...RequestOption) ([]EntitySummary, error)
}

// SummarizeOption configures an entity summary lookup.
type SummarizeOption func(*summarizeConfig)

type summarizeConfig struct {
	fieldPath        string
	valueType        string
	entityID         string
	entityNamespace  string
	returnAlerts     bool
	returnPrevalence bool
	allUDMTypes      bool
	pageSize         int
	pageToken        string
}

func newSummarizeConfig() *summarizeConfig {
	return &summarizeConfig{
		returnAlerts: true,
		allUDMTypes:  true,
		pageSize:     defaultSummaryPageSize,
	}
}

// WithFieldPath overrides the UDM field path, bypassing classification.
func WithFieldPath(path string) SummarizeOption {
	return func(c *summarizeConfig) {
		c.fieldPath = path
	}
}

// WithValueType overrides the value type tag, bypassing classification.
// Accepts the Chronicle enum names; see ValueType.APIValue.
func WithValueType(valueType string) SummarizeOption {
	return func(c *summarizeConfig) {
		c.valueType = valueType
	}
}

// WithEntityID looks up an entity directly by ID, ignoring the value.
func WithEntityID(id string) SummarizeOption {
	return func(c *summarizeConfig) {
		c.entityID = id
	}
}

// WithEntityNamespace scopes the lookup to an entity namespace.
func WithEntityNamespace(ns string) SummarizeOption {
	return func(c *summarizeConfig) {
		c.entityNamespace = ns
	}
}

// WithoutAlerts omits alert counts from the summary.
func WithoutAlerts() SummarizeOption {
	return func(c *summarizeConfig) {
		c.returnAlerts = false
	}
}

// WithPrevalence includes prevalence data in the summary.
func WithPrevalence() SummarizeOption {
	return func(c *summarizeConfig) {
		c.returnPrevalence = true
	}
}

// WithSummaryPage sets the page size and token for alert pagination.
func WithSummaryPage(size int, token string) SummarizeOption {
	return func(c *summarizeConfig) {
		c.pageSize = size
		c.pageToken = token
	}
}

// Entity is a single entity record in a summary, with its raw body kept
// opaque.
type Entity struct {
	Name     string         `json:"name"`
	Metadata EntityMetadata `json:"metadata"`
	Metric   *EntityMetrics `json:"metric"`
	Entity   map[string]any `json:"entity"`
}

// EntityMetadata carries the entity type and the observed interval.
type EntityMetadata struct {
	EntityType string       `json:"entityType"`
	Interval   TimeInterval `json:"interval"`
}

// EntityMetrics carries first/last seen instants.
type EntityMetrics struct {
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
}

// AlertCount is the number of alerts a rule produced for the entity.
type AlertCount struct {
	Rule  string  `json:"rule"`
	Count flexInt `json:"count"`
}

// TimelineBucket is one bucket of entity activity.
type TimelineBucket struct {
	AlertCount flexInt `json:"alertCount"`
	EventCount flexInt `json:"eventCount"`
}

// Timeline is bucketed entity activity over the summary window.
type Timeline struct {
	Buckets    []TimelineBucket `json:"buckets"`
	BucketSize string           `json:"bucketSize"`
}

// WidgetMetadata carries detection totals for the summary widget.
type WidgetMetadata struct {
	URI        string  `json:"uri"`
	Detections flexInt `json:"detections"`
	Total      flexInt `json:"total"`
}

// EntitySummary is the aggregated result of an entity lookup. Entities are
// order-preserving and never merged client-side.
type EntitySummary struct {
	Entities       []Entity        `json:"entities"`
	AlertCounts    []AlertCount    `json:"alertCounts"`
	Timeline       *Timeline       `json:"timeline"`
	WidgetMetadata *WidgetMetadata `json:"widgetMetadata"`
	HasMoreAlerts  bool            `json:"hasMoreAlerts"`
	NextPageToken  string          `json:"nextPageToken"`
}

// PrimaryEntity returns the first entity of the summary, or nil.
func (s *EntitySummary) PrimaryEntity() *Entity {
	if len(s.Entities) == 0 {
		return nil
	}
	return &s.Entities[0]
}

// RelatedEntities returns every entity after the primary one.
func (s *EntitySummary) RelatedEntities() []Entity {
	if len(s.Entities) <= 1 {
		return nil
	}
	return s.Entities[1:]
}

// entityService implements EntityService.
type entityService struct {
	transport *api.Transport
	instance  string
}

func newEntityService(transport *api.Transport, instance string) *entityService {
	return &entityService{transport: transport, instance: instance}
}

// Summarize returns aggregated metadata for a value.
func (s *entityService) Summarize(ctx context.Context, value string, tr TimeRange, opts ...SummarizeOption) (*EntitySummary, error) {
	const op = "summarize entity"

	cfg := newSummarizeConfig()
	for _, o := range opts {
		o(cfg)
	}
	if err := tr.validate(op); err != nil {
		return nil, err
	}
	if cfg.pageSize <= 0 {
		return nil, &ParameterError{Op: op, Message: "page size must be positive"}
	}

	q := url.Values{}
	q.Set("timeRange.startTime", tr.Start.UTC().Format(timeFormatMicros))
	q.Set("timeRange.endTime", tr.End.UTC().Format(timeFormatMicros))
	q.Set("returnAlerts", strconv.FormatBool(cfg.returnAlerts))
	q.Set("returnPrevalence", strconv.FormatBool(cfg.returnPrevalence))
	q.Set("includeAllUdmEventTypesForFirstLastSeen", strconv.FormatBool(cfg.allUDMTypes))
	q.Set("pageSize", strconv.Itoa(cfg.pageSize))
	if cfg.pageToken != "" {
		q.Set("pageToken", cfg.pageToken)
	}

	if cfg.entityID != "" {
		q.Set("entityId", cfg.entityID)
	} else {
		if err := setFieldAndValue(q, op, value, cfg); err != nil {
			return nil, err
		}
		if cfg.entityNamespace != "" {
			q.Set("fieldAndValue.entityNamespace", cfg.entityNamespace)
		}
	}

	var result EntitySummary
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("%s:summarizeEntity", s.instance),
		Query:  q,
	}, &result)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseError(op, resp.StatusCode, resp.Body, resp.Headers)
	}

	return &result, nil
}

// setFieldAndValue fills the fieldAndValue.* parameters. Explicit overrides
// short-circuit classification entirely; the two paths are kept separate so
// override precedence cannot leak into the detection path.
func setFieldAndValue(q url.Values, op, value string, cfg *summarizeConfig) error {
	if cfg.fieldPath != "" || cfg.valueType != "" {
		if cfg.fieldPath != "" {
			q.Set("fieldAndValue.fieldPath", cfg.fieldPath)
			q.Set("fieldAndValue.value", value)
		} else {
			q.Set("fieldAndValue.value", value)
			q.Set("fieldAndValue.valueType", cfg.valueType)
		}
		return nil
	}

	vt, fieldPath := Classify(value)
	if vt == ValueTypeUnknown {
		return &ParameterError{
			Op:      op,
			Message: fmt.Sprintf("could not determine type for value %q; specify a field path or value type explicitly", value),
			err:     ErrUnclassifiableValue,
		}
	}
	if fieldPath != "" {
		q.Set("fieldAndValue.fieldPath", fieldPath)
		q.Set("fieldAndValue.value", value)
	} else {
		q.Set("fieldAndValue.value", value)
		q.Set("fieldAndValue.valueType", vt.APIValue())
	}
	return nil
}

// SummarizeFromQuery returns entity summaries for every entity matched by a
// UDM query.
func (s *entityService) SummarizeFromQuery(ctx context.Context, query string, tr TimeRange, opts ...RequestOption) ([]EntitySummary, error) {
	const op = "summarize entities from query"

	if err := validateQueryText(op, query); err != nil {
		return nil, err
	}
	if err := tr.validate(op); err != nil {
		return nil, err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	q := url.Values{}
	q.Set("query", query)
	q.Set("timeRange.startTime", tr.Start.UTC().Format(timeFormatMicros))
	q.Set("timeRange.endTime", tr.End.UTC().Format(timeFormatMicros))

	var result struct {
		EntitySummaries []struct {
			Entity []Entity `json:"entity"`
		} `json:"entitySummaries"`
	}
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodGet,
		Path:    fmt.Sprintf("%s:summarizeEntitiesFromQuery", s.instance),
		Query:   q,
		Headers: reqCfg.headers,
	}, &result)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseError(op, resp.StatusCode, resp.Body, resp.Headers)
	}

	summaries := make([]EntitySummary, 0, len(result.EntitySummaries))
	for _, s := range result.EntitySummaries {
		summaries = append(summaries, EntitySummary{Entities: s.Entity})
	}
	return summaries, nil
}
