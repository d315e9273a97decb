package secops

import (
	"encoding/json"
	"strconv"
	"time"
)

// Timestamp formats used by the legacy search endpoints. The remote API is
// strict about the fractional-second width, which differs between the POST
// payloads and the GET query parameters.
const (
	timeFormatMillis = "2006-01-02T15:04:05.000Z"
	timeFormatMicros = "2006-01-02T15:04:05.000000Z"
)

// TimeRange scopes a query to a [Start, End] window. Both instants are
// required and Start must not be after End.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// NewTimeRange builds a TimeRange from explicit instants.
func NewTimeRange(start, end time.Time) TimeRange {
	return TimeRange{Start: start, End: end}
}

// Last returns a TimeRange covering the trailing duration d, ending now.
func Last(d time.Duration) TimeRange {
	end := time.Now().UTC()
	return TimeRange{Start: end.Add(-d), End: end}
}

// Validate reports a ParameterError when either bound is missing or the
// range is inverted. Called by every time-scoped builder before any
// transport call.
func (tr TimeRange) Validate() error {
	return tr.validate("time range")
}

func (tr TimeRange) validate(op string) error {
	switch {
	case tr.Start.IsZero():
		return &ParameterError{Op: op, Message: "start time is required"}
	case tr.End.IsZero():
		return &ParameterError{Op: op, Message: "end time is required"}
	case tr.Start.After(tr.End):
		return &ParameterError{Op: op, Message: "start time must not be after end time"}
	}
	return nil
}

// apiTimeRange is the wire shape shared by the legacy search payloads.
type apiTimeRange struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

func (tr TimeRange) apiMillis() apiTimeRange {
	return apiTimeRange{
		StartTime: tr.Start.UTC().Format(timeFormatMillis),
		EndTime:   tr.End.UTC().Format(timeFormatMillis),
	}
}

// TimeInterval is an observed [start, end] window attached to response
// entities and detections.
type TimeInterval struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// flexInt unmarshals Chronicle numeric fields, which arrive either as JSON
// numbers or as decimal strings (proto int64 encoding).
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	if len(data) > 1 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		*f = flexInt(n)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// PageOptions configures page-token pagination for list requests.
type PageOptions struct {
	PageSize  int
	PageToken string
}

// overflowFields returns any keys present in data but absent from the known
// set. Response models keep these so new remote fields survive round trips
// instead of being dropped.
func overflowFields(data []byte, known ...string) map[string]any {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	for _, k := range known {
		delete(raw, k)
	}
	if len(raw) == 0 {
		return nil
	}
	return raw
}
