package secops

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/simonebruzzechesse/secops-wrapper/internal/api"
)

const (
	defaultRulePageSize      = 100
	maxRulePageSize          = 1000
	defaultDetectionPageSize = 100
)

// RuleSeverity is the severity declared in a rule's metadata.
type RuleSeverity struct {
	DisplayName string `json:"displayName"`
}

// Rule is a detection rule.
type Rule struct {
	// Name is the full resource name
	// (projects/.../instances/.../rules/{rule_id}).
	Name             string       `json:"name"`
	RevisionID       string       `json:"revisionId"`
	DisplayName      string       `json:"displayName"`
	Text             string       `json:"text"`
	Author           string       `json:"author"`
	Severity         RuleSeverity `json:"severity"`
	Type             string       `json:"type"`
	CompilationState string       `json:"compilationState"`
	CreateTime       time.Time    `json:"createTime"`
}

// ID returns the bare rule ID, the trailing segment of Name.
func (r *Rule) ID() string {
	if i := strings.LastIndexByte(r.Name, '/'); i >= 0 {
		return r.Name[i+1:]
	}
	return r.Name
}

// RulePage is one page of rule listing results.
type RulePage struct {
	Rules         []*Rule `json:"rules"`
	NextPageToken string  `json:"nextPageToken"`
}

// DiagnosticPosition locates a compiler diagnostic within rule text.
type DiagnosticPosition struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn"`
	EndLine     int `json:"endLine"`
	EndColumn   int `json:"endColumn"`
}

// CompilationDiagnostic is one message from the remote rule compiler.
type CompilationDiagnostic struct {
	Message  string              `json:"message"`
	Position *DiagnosticPosition `json:"position"`
	Severity string              `json:"severity"`
}

// RuleVerification is the remote compiler's verdict on rule text.
type RuleVerification struct {
	Success     bool                    `json:"success"`
	Diagnostics []CompilationDiagnostic `json:"compilationDiagnostics"`
}

// Detection is one match produced by a rule.
type Detection struct {
	ID                 string           `json:"id"`
	RuleID             string           `json:"ruleId"`
	RuleName           string           `json:"ruleName"`
	RuleVersion        string           `json:"ruleVersion"`
	AlertState         string           `json:"alertState"`
	DetectionTime      time.Time        `json:"detectionTime"`
	TimeWindow         *TimeInterval    `json:"timeWindow"`
	CollectionElements []map[string]any `json:"collectionElements"`
}

// DetectionPage is one page of detections for a rule.
type DetectionPage struct {
	Detections    []*Detection `json:"detections"`
	NextPageToken string       `json:"nextPageToken"`
}

// RuleService provides detection rule management.
type RuleService interface {
	// Create creates a rule from source text. The remote compiler rejects
	// invalid text; use Verify for a dry run.
	Create(ctx context.Context, text string, opts ...RequestOption) (*Rule, error)

	// Get retrieves a rule by ID.
	Get(ctx context.Context, id string, opts ...RequestOption) (*Rule, error)

	// ListPage returns a single page of rules for manual pagination.
	ListPage(ctx context.Context, page *PageOptions, opts ...RequestOption) (*RulePage, error)

	// List returns an iterator over all rules, fetching pages lazily.
	List(ctx context.Context, opts ...RequestOption) iter.Seq2[*Rule, error]

	// Update replaces a rule's text, creating a new revision.
	Update(ctx context.Context, id, text string, opts ...RequestOption) (*Rule, error)

	// Delete removes a rule. With force, the rule is deleted even when it
	// has associated retrohunts.
	Delete(ctx context.Context, id string, force bool, opts ...RequestOption) error

	// SetEnabled toggles a rule's live deployment.
	SetEnabled(ctx context.Context, id string, enabled bool, opts ...RequestOption) error

	// Verify submits rule text to the remote compiler without creating a
	// rule. Compiler diagnostics are returned as-is; no local syntax
	// checking is performed.
	Verify(ctx context.Context, text string, opts ...RequestOption) (*RuleVerification, error)

	// ListDetections returns a page of detections produced by a rule in the
	// time range.
	ListDetections(ctx context.Context, ruleID string, tr TimeRange, page *PageOptions, opts ...RequestOption) (*DetectionPage, error)

	// Detections returns an iterator over all detections produced by a rule
	// in the time range.
	Detections(ctx context.Context, ruleID string, tr TimeRange, opts ...RequestOption) iter.Seq2[*Detection, error]
}

// ruleService implements RuleService.
type ruleService struct {
	transport *api.Transport
	instance  string
}

func newRuleService(transport *api.Transport, instance string) *ruleService {
	return &ruleService{transport: transport, instance: instance}
}

func validateRuleID(id string) error {
	if id == "" {
		return &ParameterError{Op: "rules", Message: "rule ID cannot be empty"}
	}
	return nil
}

func validateRuleText(op, text string) error {
	if strings.TrimSpace(text) == "" {
		return &ParameterError{Op: op, Message: "rule text is required"}
	}
	return nil
}

// Create creates a rule from source text.
func (s *ruleService) Create(ctx context.Context, text string, opts ...RequestOption) (*Rule, error) {
	const op = "create rule"

	if err := validateRuleText(op, text); err != nil {
		return nil, err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	var result Rule
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodPost,
		Path:    fmt.Sprintf("%s/rules", s.instance),
		Body:    map[string]string{"text": text},
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

// Get retrieves a rule by ID.
func (s *ruleService) Get(ctx context.Context, id string, opts ...RequestOption) (*Rule, error) {
	const op = "get rule"

	if err := validateRuleID(id); err != nil {
		return nil, err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	var result Rule
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodGet,
		Path:    fmt.Sprintf("%s/rules/%s", s.instance, url.PathEscape(id)),
		Headers: reqCfg.headers,
	}, &result)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, &NotFoundError{
			APIError:     APIError{Op: op, StatusCode: http.StatusNotFound, Message: "rule not found"},
			ResourceType: "rule",
			ResourceID:   id,
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseError(op, resp.StatusCode, resp.Body, resp.Headers)
	}

	return &result, nil
}

// ListPage returns a single page of rules.
func (s *ruleService) ListPage(ctx context.Context, page *PageOptions, opts ...RequestOption) (*RulePage, error) {
	const op = "list rules"

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	// Work on a copy so defaulting never writes back into the caller's
	// options.
	var po PageOptions
	if page != nil {
		po = *page
	}
	if po.PageSize <= 0 {
		po.PageSize = defaultRulePageSize
	}
	if po.PageSize > maxRulePageSize {
		po.PageSize = maxRulePageSize
	}

	q := url.Values{}
	q.Set("pageSize", strconv.Itoa(po.PageSize))
	if po.PageToken != "" {
		q.Set("pageToken", po.PageToken)
	}

	var result RulePage
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodGet,
		Path:    fmt.Sprintf("%s/rules", s.instance),
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

// List returns an iterator over all rules.
func (s *ruleService) List(ctx context.Context, opts ...RequestOption) iter.Seq2[*Rule, error] {
	return func(yield func(*Rule, error) bool) {
		token := ""
		for {
			page, err := s.ListPage(ctx, &PageOptions{PageToken: token}, opts...)
			if err != nil {
				yield(nil, err)
				return
			}

			for _, rule := range page.Rules {
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return
				}
				if !yield(rule, nil) {
					return
				}
			}

			if page.NextPageToken == "" {
				return
			}
			token = page.NextPageToken
		}
	}
}

// Update replaces a rule's text.
func (s *ruleService) Update(ctx context.Context, id, text string, opts ...RequestOption) (*Rule, error) {
	const op = "update rule"

	if err := validateRuleID(id); err != nil {
		return nil, err
	}
	if err := validateRuleText(op, text); err != nil {
		return nil, err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	q := url.Values{}
	q.Set("updateMask", "text")

	var result Rule
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodPatch,
		Path:    fmt.Sprintf("%s/rules/%s", s.instance, url.PathEscape(id)),
		Query:   q,
		Body:    map[string]string{"text": text},
		Headers: reqCfg.headers,
	}, &result)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, &NotFoundError{
			APIError:     APIError{Op: op, StatusCode: http.StatusNotFound, Message: "rule not found"},
			ResourceType: "rule",
			ResourceID:   id,
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseError(op, resp.StatusCode, resp.Body, resp.Headers)
	}

	return &result, nil
}

// Delete removes a rule.
func (s *ruleService) Delete(ctx context.Context, id string, force bool, opts ...RequestOption) error {
	const op = "delete rule"

	if err := validateRuleID(id); err != nil {
		return err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	q := url.Values{}
	if force {
		q.Set("force", "true")
	}

	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodDelete,
		Path:    fmt.Sprintf("%s/rules/%s", s.instance, url.PathEscape(id)),
		Query:   q,
		Headers: reqCfg.headers,
	}, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		return &NotFoundError{
			APIError:     APIError{Op: op, StatusCode: http.StatusNotFound, Message: "rule not found"},
			ResourceType: "rule",
			ResourceID:   id,
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return parseError(op, resp.StatusCode, resp.Body, resp.Headers)
	}

	return nil
}

// SetEnabled toggles a rule's live deployment.
func (s *ruleService) SetEnabled(ctx context.Context, id string, enabled bool, opts ...RequestOption) error {
	const op = "set rule deployment"

	if err := validateRuleID(id); err != nil {
		return err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	q := url.Values{}
	q.Set("updateMask", "enabled")

	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodPatch,
		Path:    fmt.Sprintf("%s/rules/%s/deployment", s.instance, url.PathEscape(id)),
		Query:   q,
		Body:    map[string]bool{"enabled": enabled},
		Headers: reqCfg.headers,
	}, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		return &NotFoundError{
			APIError:     APIError{Op: op, StatusCode: http.StatusNotFound, Message: "rule not found"},
			ResourceType: "rule",
			ResourceID:   id,
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return parseError(op, resp.StatusCode, resp.Body, resp.Headers)
	}

	return nil
}

// Verify submits rule text to the remote compiler.
func (s *ruleService) Verify(ctx context.Context, text string, opts ...RequestOption) (*RuleVerification, error) {
	const op = "verify rule"

	if err := validateRuleText(op, text); err != nil {
		return nil, err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	// Rule text passes through unmodified; diagnostics come back verbatim.
	var result RuleVerification
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodPost,
		Path:    fmt.Sprintf("%s:verifyRuleText", s.instance),
		Body:    map[string]string{"ruleText": text},
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

// ListDetections returns a page of detections produced by a rule.
func (s *ruleService) ListDetections(ctx context.Context, ruleID string, tr TimeRange, page *PageOptions, opts ...RequestOption) (*DetectionPage, error) {
	const op = "list detections"

	if err := validateRuleID(ruleID); err != nil {
		return nil, err
	}
	if err := tr.validate(op); err != nil {
		return nil, err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	var po PageOptions
	if page != nil {
		po = *page
	}
	if po.PageSize <= 0 {
		po.PageSize = defaultDetectionPageSize
	}

	q := url.Values{}
	q.Set("ruleId", ruleID)
	q.Set("startTime", tr.Start.UTC().Format(timeFormatMicros))
	q.Set("endTime", tr.End.UTC().Format(timeFormatMicros))
	q.Set("pageSize", strconv.Itoa(po.PageSize))
	if po.PageToken != "" {
		q.Set("pageToken", po.PageToken)
	}

	var result DetectionPage
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodGet,
		Path:    fmt.Sprintf("%s/legacy:legacySearchDetections", s.instance),
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

// Detections returns an iterator over all detections produced by a rule.
func (s *ruleService) Detections(ctx context.Context, ruleID string, tr TimeRange, opts ...RequestOption) iter.Seq2[*Detection, error] {
	return func(yield func(*Detection, error) bool) {
		token := ""
		for {
			page, err := s.ListDetections(ctx, ruleID, tr, &PageOptions{PageToken: token}, opts...)
			if err != nil {
				yield(nil, err)
				return
			}

			for _, d := range page.Detections {
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return
				}
				if !yield(d, nil) {
					return
				}
			}

			if page.NextPageToken == "" {
				return
			}
			token = page.NextPageToken
		}
	}
}
