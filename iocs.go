package secops

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/simonebruzzechesse/secops-wrapper/internal/api"
)

const maxIoCMatches = 10000

// IoCMatch is one indicator-of-compromise match against ingested events.
// The indicator itself is a one-entry type→value map as returned by the
// remote service; unknown fields survive in Extra.
type IoCMatch struct {
	ArtifactIndicator map[string]string `json:"artifactIndicator"`
	Sources           []string          `json:"sources"`
	Categories        []string          `json:"categories"`
	AssetIndicators   []map[string]any  `json:"assetIndicators"`
	ConfidenceScore   string            `json:"confidenceScore"`
	RawSeverity       string            `json:"rawSeverity"`
	FirstSeenTime     time.Time         `json:"firstSeenTimestamp"`
	LastSeenTime      time.Time         `json:"lastSeenTimestamp"`
	IngestTime        time.Time         `json:"iocIngestTimestamp"`

	Extra map[string]any `json:"-"`
}

func (m *IoCMatch) UnmarshalJSON(data []byte) error {
	type alias IoCMatch
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	a.Extra = overflowFields(data,
		"artifactIndicator", "sources", "categories", "assetIndicators",
		"confidenceScore", "rawSeverity", "firstSeenTimestamp",
		"lastSeenTimestamp", "iocIngestTimestamp")
	*m = IoCMatch(a)
	return nil
}

// Indicator returns the indicator type and value. The artifact indicator is
// a single-entry map on the wire.
func (m *IoCMatch) Indicator() (indicatorType, value string) {
	for k, v := range m.ArtifactIndicator {
		return k, v
	}
	return "", ""
}

// IoCService provides enterprise-wide IoC match listing.
type IoCService interface {
	// List returns IoC matches observed in the time range, up to maxMatches
	// (1..10000).
	List(ctx context.Context, tr TimeRange, maxMatches int, opts ...RequestOption) ([]IoCMatch, error)
}

// iocService implements IoCService.
type iocService struct {
	transport *api.Transport
	instance  string
}

func newIoCService(transport *api.Transport, instance string) *iocService {
	return &iocService{transport: transport, instance: instance}
}

// List returns IoC matches observed in the time range.
func (s *iocService) List(ctx context.Context, tr TimeRange, maxMatches int, opts ...RequestOption) ([]IoCMatch, error) {
	const op = "list iocs"

	if err := tr.validate(op); err != nil {
		return nil, err
	}
	if maxMatches <= 0 || maxMatches > maxIoCMatches {
		return nil, &ParameterError{Op: op, Message: fmt.Sprintf("max matches must be in 1..%d, got %d", maxIoCMatches, maxMatches)}
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	q := url.Values{}
	q.Set("timestampRange.startTime", tr.Start.UTC().Format(timeFormatMicros))
	q.Set("timestampRange.endTime", tr.End.UTC().Format(timeFormatMicros))
	q.Set("maxMatchesToReturn", strconv.Itoa(maxMatches))

	var result struct {
		Matches []IoCMatch `json:"matches"`
	}
	resp, err := s.transport.DoJSON(ctx, &api.Request{
		Method:  http.MethodGet,
		Path:    fmt.Sprintf("%s/legacy:legacySearchEnterpriseWideIoCs", s.instance),
		Query:   q,
		Headers: reqCfg.headers,
	}, &result)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseError(op, resp.StatusCode, resp.Body, resp.Headers)
	}

	return result.Matches, nil
}
