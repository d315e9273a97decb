package secops_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonebruzzechesse/secops-wrapper"
)

func TestTimeRangeValidate(t *testing.T) {
	now := time.Now().UTC()

	t.Run("valid range", func(t *testing.T) {
		tr := secops.NewTimeRange(now.Add(-time.Hour), now)
		assert.NoError(t, tr.Validate())
	})

	t.Run("zero-width range is valid", func(t *testing.T) {
		tr := secops.NewTimeRange(now, now)
		assert.NoError(t, tr.Validate())
	})

	t.Run("missing start", func(t *testing.T) {
		tr := secops.TimeRange{End: now}
		err := tr.Validate()
		require.Error(t, err)

		var paramErr *secops.ParameterError
		require.ErrorAs(t, err, &paramErr)
		assert.Contains(t, paramErr.Message, "start time")
	})

	t.Run("missing end", func(t *testing.T) {
		tr := secops.TimeRange{Start: now}
		err := tr.Validate()
		require.Error(t, err)

		var paramErr *secops.ParameterError
		require.ErrorAs(t, err, &paramErr)
		assert.Contains(t, paramErr.Message, "end time")
	})

	t.Run("inverted range", func(t *testing.T) {
		tr := secops.NewTimeRange(now, now.Add(-time.Hour))
		err := tr.Validate()
		require.Error(t, err)

		var paramErr *secops.ParameterError
		require.ErrorAs(t, err, &paramErr)
		assert.Contains(t, paramErr.Message, "start time must not be after end time")
	})
}

func TestLast(t *testing.T) {
	tr := secops.Last(24 * time.Hour)

	require.NoError(t, tr.Validate())
	assert.Equal(t, 24*time.Hour, tr.End.Sub(tr.Start))
	assert.WithinDuration(t, time.Now().UTC(), tr.End, time.Minute)
}

func TestFlexIntDecoding(t *testing.T) {
	t.Run("number", func(t *testing.T) {
		var ac secops.AlertCount
		err := json.Unmarshal([]byte(`{"rule":"r1","count":42}`), &ac)
		require.NoError(t, err)
		assert.EqualValues(t, 42, ac.Count)
	})

	t.Run("decimal string", func(t *testing.T) {
		var ac secops.AlertCount
		err := json.Unmarshal([]byte(`{"rule":"r1","count":"42"}`), &ac)
		require.NoError(t, err)
		assert.EqualValues(t, 42, ac.Count)
	})

	t.Run("malformed string", func(t *testing.T) {
		var ac secops.AlertCount
		err := json.Unmarshal([]byte(`{"rule":"r1","count":"forty-two"}`), &ac)
		assert.Error(t, err)
	})
}

func TestCaseOverflow(t *testing.T) {
	jsonData := `{
		"id": "case-1",
		"displayName": "Suspicious login",
		"priority": "PRIORITY_HIGH",
		"status": "STATUS_OPEN",
		"freshlyAddedField": {"nested": true}
	}`

	var c secops.Case
	err := json.Unmarshal([]byte(jsonData), &c)
	require.NoError(t, err)

	assert.Equal(t, "case-1", c.ID)
	assert.Equal(t, "Suspicious login", c.DisplayName)
	assert.Equal(t, secops.PriorityHigh, c.Priority)
	assert.Contains(t, c.Extra, "freshlyAddedField")
	assert.NotContains(t, c.Extra, "id")
}
