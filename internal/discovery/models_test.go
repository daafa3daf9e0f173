package discovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInput_SearchTerm(t *testing.T) {
	assert.Equal(t, "golang", RunInput{Profile: Profile{Role: "backend engineer", Skills: []string{" ", "golang"}}}.SearchTerm())
	assert.Equal(t, "backend", RunInput{Profile: Profile{Role: "  backend engineer"}}.SearchTerm())
	assert.Equal(t, "", RunInput{}.SearchTerm())

	in := RunInput{
		Queries: []SearchQuery{
			{Platform: SourceRemoteOK, Text: "golang"},
			{Text: "go engineer remote"},
			{Platform: SourceWebSearch, Text: "backend jobs"},
		},
		Profile: Profile{Skills: []string{"python"}},
	}
	assert.Equal(t, "golang", in.TermFor(SourceRemoteOK))
	assert.Equal(t, "python", in.TermFor(SourceHNHiring))
	assert.Equal(t, []string{"go engineer remote", "backend jobs"}, in.WebQueries())
}

func TestRunInput_Normalize(t *testing.T) {
	in := RunInput{Companies: []string{" stripe.com", "Notion", "", "STRIPE.COM", "notion"}}
	assert.Equal(t, []string{"stripe.com", "Notion"}, in.Normalize().Companies)
}

func TestParseSourceTag(t *testing.T) {
	tag, err := ParseSourceTag(" RemoteOK ")
	require.NoError(t, err)
	assert.Equal(t, SourceRemoteOK, tag)
	assert.True(t, SourceWebSearch.SearchBacked())
	assert.False(t, SourceHNHiring.SearchBacked())

	_, err = ParseSourceTag("indeed")
	assert.Error(t, err)
}

func TestAggregationReport_JSONShape(t *testing.T) {
	report := AggregationReport{
		RunID:          "run_1",
		Jobs:           []CanonicalJob{{Title: "Go Engineer", Skills: []string{"go"}, Source: SourceRemoteOK, Sources: []SourceTag{SourceRemoteOK}}},
		SourcesScraped: map[SourceTag]int{SourceRemoteOK: 1, SourceHNHiring: 0},
		TotalJobs:      1,
		Elapsed:        1500 * time.Millisecond,
		SourceResults:  []SourceRunResult{{Source: SourceRemoteOK, Status: StatusOK, Items: 1, Duration: 250 * time.Millisecond}},
	}

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.EqualValues(t, 1500, raw["elapsed_ms"])
	assert.EqualValues(t, 1, raw["total_jobs"])
	assert.Contains(t, raw["sources_scraped"], "hn_hiring")
	job := raw["jobs"].([]interface{})[0].(map[string]interface{})
	assert.Contains(t, job, "skills_required")
	assert.Contains(t, job, "apply_url")
	res := raw["source_results"].([]interface{})[0].(map[string]interface{})
	assert.EqualValues(t, 250, res["duration_ms"])

	var back AggregationReport
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, report.Elapsed, back.Elapsed)
	assert.Equal(t, report.SourceResults[0].Duration, back.SourceResults[0].Duration)
}

func TestSourceError(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("fetch: %w", NewTransientError(SourceRemoteOK, "https://remoteok.com/api", 503, cause))
	assert.True(t, IsTransient(err))
	assert.False(t, IsParseDrift(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "status 503")
	assert.True(t, IsParseDrift(NewParseDriftError(SourceWellfound, "", errors.New("no __NEXT_DATA__"))))
}
