package secops

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/simonebruzzechesse/secops-wrapper/internal/api"
)

const (
	maxAlertsLimit   = 10000
	defaultMaxAlerts = 1000
)

// AlertService provides alert retrieval.
type AlertService interface {
	// List fetches alerts in the time range. The result carries the remote
	// progress indicator; a Progress below 100 means the result set may be
	// truncated.
	List(ctx context.Context, tr TimeRange, opts ...AlertOption) (*AlertSet, error)
}

// AlertOption configures an alert retrieval.
type AlertOption func(*alertConfig)

type alertConfig struct {
	snapshotQuery string
	baselineQuery string
	maxAlerts     int
	pollTries     int
	pollInterval  time.Duration
}

func newAlertConfig() *alertConfig {
	return &alertConfig{
		maxAlerts:    defaultMaxAlerts,
		pollTries:    defaultPollTries,
		pollInterval: defaultPollBackoff,
	}
}

// WithSnapshotQuery filters alerts with a snapshot query
// (e.g. `feedback_summary.status != "CLOSED"`).
func WithSnapshotQuery(query string) AlertOption {
	return func(c *alertConfig) {
		c.snapshotQuery = query
	}
}

// WithBaselineQuery sets the baseline query whose alert count is reported
// alongside the filtered count.
func WithBaselineQuery(query string) AlertOption {
	return func(c *alertConfig) {
		c.baselineQuery = query
	}
}

// WithMaxAlerts caps the number of returned alerts (1..10000).
func WithMaxAlerts(n int) AlertOption {
	return func(c *alertConfig) {
		c.maxAlerts = n
	}
}

// WithAlertPolling tunes the operation polling loop.
func WithAlertPolling(tries int, interval time.Duration) AlertOption {
	return func(c *alertConfig) {
		c.pollTries = tries
		c.pollInterval = interval
	}
}

// AlertDetection is the detection metadata attached to an alert.
type AlertDetection struct {
	RuleName         string `json:"ruleName"`
	RuleID           string `json:"ruleId"`
	RuleVersion      string `json:"ruleVersion"`
	AlertState       string `json:"alertState"`
	URLBackToProduct string `json:"urlBackToProduct"`
}

// FeedbackSummary is the analyst feedback state of an alert.
type FeedbackSummary struct {
	Status          string `json:"status"`
	Priority        string `json:"priority"`
	SeverityDisplay string `json:"severityDisplay"`
	Verdict         string `json:"verdict"`
}

// Alert is a single alert. CaseName is a weak back-reference to the owning
// case: a lookup key, never ownership. Unknown fields survive in Extra.
type Alert struct {
	ID              string           `json:"id"`
	CaseName        string           `json:"caseName"`
	CreatedTime     time.Time        `json:"createdTime"`
	Detection       []AlertDetection `json:"detection"`
	FeedbackSummary *FeedbackSummary `json:"feedbackSummary"`

	Extra map[string]any `json:"-"`
}

func (a *Alert) UnmarshalJSON(data []byte) error {
	type alias Alert
	var aa alias
	if err := json.Unmarshal(data, &aa); err != nil {
		return err
	}
	aa.Extra = overflowFields(data,
		"id", "caseName", "createdTime", "detection", "feedbackSummary")
	*a = Alert(aa)
	return nil
}

// RuleName returns the rule name from the first detection record, or "".
func (a *Alert) RuleName() string {
	if len(a.Detection) == 0 {
		return ""
	}
	return a.Detection[0].RuleName
}

// AlertSet is the result of an alert retrieval, including the remote
// completion metadata.
type AlertSet struct {
	Alerts []Alert

	// Progress is the remote completion indicator on a 0-100 scale.
	// Below 100 the result set may be truncated.
	Progress int

	// Complete reports whether the remote operation finished.
	Complete bool

	// BaselineCount and FilteredCount are the alert counts before and after
	// the snapshot query was applied.
	BaselineCount int
	FilteredCount int
}

// Truncated reports whether the result set may be incomplete.
func (s *AlertSet) Truncated() bool {
	return !s.Complete || s.Progress < 100
}

// ForCase returns the alerts referencing the given case, preserving order.
func (s *AlertSet) ForCase(caseID string) []Alert {
	var matched []Alert
	for _, a := range s.Alerts {
		if a.CaseName == caseID {
			matched = append(matched, a)
		}
	}
	return matched
}

// alertService implements AlertService.
type alertService struct {
	transport *api.Transport
	instance  string
}

func newAlertService(transport *api.Transport, instance string) *alertService {
	return &alertService{transport: transport, instance: instance}
}

// List fetches alerts in the time range.
func (s *alertService) List(ctx context.Context, tr TimeRange, opts ...AlertOption) (*AlertSet, error) {
	const op = "list alerts"

	cfg := newAlertConfig()
	for _, o := range opts {
		o(cfg)
	}
	if err := tr.validate(op); err != nil {
		return nil, err
	}
	if cfg.maxAlerts <= 0 || cfg.maxAlerts > maxAlertsLimit {
		return nil, &ParameterError{Op: op, Message: fmt.Sprintf("max alerts must be in 1..%d, got %d", maxAlertsLimit, cfg.maxAlerts)}
	}
	if cfg.pollTries <= 0 {
		return nil, &ParameterError{Op: op, Message: "poll attempts must be positive"}
	}

	body := map[string]any{
		"timeRange":             tr.apiMillis(),
		"returnOperationIdOnly": true,
		"alertList": map[string]any{
			"maxReturnedAlerts": cfg.maxAlerts,
		},
	}
	if cfg.snapshotQuery != "" {
		body["snapshotQuery"] = cfg.snapshotQuery
	}
	if cfg.baselineQuery != "" {
		body["baselineQuery"] = cfg.baselineQuery
	}

	resp, err := s.transport.Do(ctx, &api.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("%s/legacy:legacyFetchAlertsView", s.instance),
		Body:   body,
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseError(op, resp.StatusCode, resp.Body, resp.Headers)
	}

	opID, err := parseOperationRef(resp.Body)
	if err != nil {
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Message: err.Error()}
	}
	if opID == "" {
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Message: "no operation ID in response"}
	}

	final, err := pollOperation(ctx, s.transport, op, opID, cfg.pollTries, cfg.pollInterval)
	if err != nil {
		return nil, err
	}

	// pollOperation only returns once the remote reports done; the payload
	// omits progress at that point unless the result was truncated.
	progress := final.Progress
	if progress == 0 {
		progress = 100
	}
	return &AlertSet{
		Alerts:        final.Alerts.Alerts,
		Progress:      progress,
		Complete:      progress == 100,
		BaselineCount: final.FieldAggregations.BaselineAlertsCount,
		FilteredCount: final.FieldAggregations.FilteredAlertsCount,
	}, nil
}
