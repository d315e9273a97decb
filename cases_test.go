package secops_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonebruzzechesse/secops-wrapper"
)

func TestCasesGet(t *testing.T) {
	t.Run("retrieves cases by ID", func(t *testing.T) {
		var body map[string][]string
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.True(t, strings.HasSuffix(r.URL.Path, "legacy:legacyBatchGetCases"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			fmt.Fprint(w, `{"cases": [
				{"id": "case-1", "displayName": "Phishing campaign", "priority": "PRIORITY_HIGH", "status": "STATUS_OPEN", "stage": "Triage"},
				{"id": "case-2", "displayName": "Malware on dc01", "priority": "PRIORITY_CRITICAL", "status": "STATUS_OPEN", "stage": "Investigation",
				 "soarPlatformInfo": {"caseId": "soar-77", "responsePlatformType": "RESPONSE_PLATFORM_TYPE_SIEMPLIFY"}}
			]}`)
		})

		cases, err := client.Cases.Get(context.Background(), []string{"case-1", "case-2"})
		require.NoError(t, err)

		assert.Equal(t, []string{"case-1", "case-2"}, body["names"])
		assert.Equal(t, 2, cases.Len())

		c, ok := cases.Get("case-2")
		require.True(t, ok)
		assert.Equal(t, "Malware on dc01", c.DisplayName)
		require.NotNil(t, c.SOARPlatformInfo)
		assert.Equal(t, "soar-77", c.SOARPlatformInfo.CaseID)
	})

	t.Run("unresolved IDs are absent not errors", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"cases": [{"id": "case-1", "displayName": "Only one"}]}`)
		})

		cases, err := client.Cases.Get(context.Background(), []string{"case-1", "case-missing"})
		require.NoError(t, err)

		assert.Equal(t, 1, cases.Len())
		_, ok := cases.Get("case-missing")
		assert.False(t, ok)
	})

	t.Run("requires at least one ID", func(t *testing.T) {
		client := setupStrictServer(t)

		_, err := client.Cases.Get(context.Background(), nil)

		var paramErr *secops.ParameterError
		require.ErrorAs(t, err, &paramErr)
	})

	t.Run("rejects empty IDs", func(t *testing.T) {
		client := setupStrictServer(t)

		_, err := client.Cases.Get(context.Background(), []string{"case-1", ""})

		var paramErr *secops.ParameterError
		require.ErrorAs(t, err, &paramErr)
	})
}

func TestCaseListFilters(t *testing.T) {
	list := func(t *testing.T) *secops.CaseList {
		t.Helper()
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"cases": [
				{"id": "case-1", "priority": "PRIORITY_HIGH", "status": "STATUS_OPEN", "stage": "Triage"},
				{"id": "case-2", "priority": "PRIORITY_LOW", "status": "STATUS_CLOSED", "stage": "Triage"},
				{"id": "case-3", "priority": "PRIORITY_HIGH", "status": "STATUS_OPEN", "stage": "Investigation"}
			]}`)
		})
		cases, err := client.Cases.Get(context.Background(), []string{"case-1", "case-2", "case-3"})
		require.NoError(t, err)
		return cases
	}

	t.Run("by priority preserves order", func(t *testing.T) {
		high := list(t).FilterByPriority(secops.PriorityHigh)
		require.Equal(t, 2, high.Len())
		assert.Equal(t, "case-1", high.Cases()[0].ID)
		assert.Equal(t, "case-3", high.Cases()[1].ID)
	})

	t.Run("filtering is idempotent", func(t *testing.T) {
		once := list(t).FilterByPriority(secops.PriorityHigh)
		twice := once.FilterByPriority(secops.PriorityHigh)
		assert.Equal(t, once.Cases(), twice.Cases())
	})

	t.Run("does not mutate the source list", func(t *testing.T) {
		cases := list(t)
		_ = cases.FilterByStatus(secops.CaseStatusClosed)
		assert.Equal(t, 3, cases.Len())
	})

	t.Run("filters compose", func(t *testing.T) {
		result := list(t).FilterByStatus(secops.CaseStatusOpen).FilterByStage("Triage")
		require.Equal(t, 1, result.Len())
		assert.Equal(t, "case-1", result.Cases()[0].ID)
	})

	t.Run("lookup survives filtering", func(t *testing.T) {
		high := list(t).FilterByPriority(secops.PriorityHigh)
		c, ok := high.Get("case-3")
		require.True(t, ok)
		assert.Equal(t, "Investigation", c.Stage)

		_, ok = high.Get("case-2")
		assert.False(t, ok)
	})
}
