package secops

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/simonebruzzechesse/secops-wrapper/internal/api"
)

// CasePriority is a Chronicle case priority.
type CasePriority string

const (
	PriorityUnspecified CasePriority = "PRIORITY_UNSPECIFIED"
	PriorityInfo        CasePriority = "PRIORITY_INFO"
	PriorityLow         CasePriority = "PRIORITY_LOW"
	PriorityMedium      CasePriority = "PRIORITY_MEDIUM"
	PriorityHigh        CasePriority = "PRIORITY_HIGH"
	PriorityCritical    CasePriority = "PRIORITY_CRITICAL"
)

// CaseStatus is a Chronicle case status.
type CaseStatus string

const (
	CaseStatusUnspecified CaseStatus = "STATUS_UNSPECIFIED"
	CaseStatusOpen        CaseStatus = "STATUS_OPEN"
	CaseStatusClosed      CaseStatus = "STATUS_CLOSED"
)

// SOARPlatformInfo references the case on the connected SOAR platform.
type SOARPlatformInfo struct {
	CaseID       string `json:"caseId"`
	PlatformType string `json:"responsePlatformType"`
}

// Case is a Chronicle case. Fields the remote adds later survive in Extra.
type Case struct {
	ID               string            `json:"id"`
	DisplayName      string            `json:"displayName"`
	Priority         CasePriority      `json:"priority"`
	Stage            string            `json:"stage"`
	Status           CaseStatus        `json:"status"`
	SOARPlatformInfo *SOARPlatformInfo `json:"soarPlatformInfo"`
	AlertIDs         []string          `json:"alertIds"`

	Extra map[string]any `json:"-"`
}

func (c *Case) UnmarshalJSON(data []byte) error {
	type alias Case
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	a.Extra = overflowFields(data,
		"id", "displayName", "priority", "stage", "status", "soarPlatformInfo", "alertIds")
	*c = Case(a)
	return nil
}

// CaseList is the result of a batch case retrieval. It preserves response
// order and supports constant-time lookup by ID. Filter operations return
// new lists and never mutate the source.
type CaseList struct {
	cases []Case
	byID  map[string]*Case
}

func newCaseList(cases []Case) *CaseList {
	l := &CaseList{
		cases: cases,
		byID:  make(map[string]*Case, len(cases)),
	}
	for i := range cases {
		l.byID[cases[i].ID] = &cases[i]
	}
	return l
}

// Cases returns the cases in response order.
func (l *CaseList) Cases() []Case {
	return l.cases
}

// Len returns the number of cases in the list.
func (l *CaseList) Len() int {
	return len(l.cases)
}

// Get returns the case with the given ID. The second return value is false
// when the ID is not present; an absent case is not an error.
func (l *CaseList) Get(id string) (*Case, bool) {
	c, ok := l.byID[id]
	return c, ok
}

// FilterByPriority returns the cases matching priority, preserving relative
// order. Filtering an already-filtered list by the same priority is a no-op.
func (l *CaseList) FilterByPriority(priority CasePriority) *CaseList {
	return l.filter(func(c *Case) bool { return c.Priority == priority })
}

// FilterByStatus returns the cases matching status, preserving relative order.
func (l *CaseList) FilterByStatus(status CaseStatus) *CaseList {
	return l.filter(func(c *Case) bool { return c.Status == status })
}

// FilterByStage returns the cases matching stage, preserving relative order.
func (l *CaseList) FilterByStage(stage string) *CaseList {
	return l.filter(func(c *Case) bool { return c.Stage == stage })
}

func (l *CaseList) filter(pred func(*Case) bool) *CaseList {
	matched := make([]Case, 0, len(l.cases))
	for i := range l.cases {
		if pred(&l.cases[i]) {
			matched = append(matched, l.cases[i])
		}
	}
	return newCaseList(matched)
}

// CaseService provides batch case retrieval.
type CaseService interface {
	// Get retrieves cases by ID. IDs the remote service does not resolve
	// are absent from the result rather than reported as errors; use
	// CaseList.Get to distinguish missing from present.
	Get(ctx context.Context, ids []string, opts ...RequestOption) (*CaseList, error)
}

// caseService implements CaseService.
type caseService struct {
	transport *api.Transport
	instance  string
}

func newCaseService(transport *api.Transport, instance string) *caseService {
	return &caseService{transport: transport, instance: instance}
}

// Get retrieves cases by ID.
func (s *caseService) Get(ctx context.Context, ids []string, opts ...RequestOption) (*CaseList, error) {
	const op = "get cases"

	if len(ids) == 0 {
		return nil, &ParameterError{Op: op, Message: "at least one case ID is required"}
	}
	for _, id := range ids {
		if id == "" {
			return nil, &ParameterError{Op: op, Message: "case IDs must be non-empty"}
		}
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	var result struct {
		Cases []Case `json:"cases"`
	}
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodPost,
		Path:    fmt.Sprintf("%s/legacy:legacyBatchGetCases", s.instance),
		Body:    map[string][]string{"names": ids},
		Headers: reqCfg.headers,
	}, &result)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseError(op, resp.StatusCode, resp.Body, resp.Headers)
	}

	return newCaseList(result.Cases), nil
}
