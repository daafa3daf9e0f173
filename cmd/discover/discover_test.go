package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobscout/internal/discovery"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const allDisabled = `
sources:
  disabled: [company_careers, google_search, remoteok, we_work_remotely, wellfound, yc_jobs, hn_hiring, remote_co]
logging:
  level: error
`

const careersOnlyWithoutKey = `
search:
  api_key: ""
sources:
  disabled: [google_search, remoteok, we_work_remotely, wellfound, yc_jobs, hn_hiring, remote_co]
logging:
  level: error
`

func TestOptionsInput(t *testing.T) {
	opts := &discoverOptions{
		role:      "  backend engineer ",
		skills:    []string{"go", "k8s, postgres"},
		companies: []string{"stripe.com"},
		queries:   []string{"golang remote", " "},
	}
	in := opts.input()
	assert.Equal(t, "backend engineer", in.Profile.Role)
	assert.Equal(t, []string{"go", "k8s", "postgres"}, in.Profile.Skills)
	require.Len(t, in.Queries, 1)
	assert.Equal(t, discovery.SourceWebSearch, in.Queries[0].Platform)
	assert.Equal(t, []string{"stripe.com"}, in.Companies)
}

func TestDiscoverCmd_PrintsReport(t *testing.T) {
	var out bytes.Buffer
	cmd := newDiscoverCmd(&out)
	cmd.SetArgs([]string{"--role", "backend engineer", "--skill", "go", "--config", writeConfig(t, allDisabled), "--pretty"})
	require.NoError(t, cmd.Execute())

	var report discovery.AggregationReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, 0, report.TotalJobs)
	assert.NotEmpty(t, report.RunID)
	assert.Contains(t, out.String(), "\n  \"run_id\"")
}

func TestDiscoverCmd_WritesOutFile(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "report.json")
	var out bytes.Buffer
	cmd := newDiscoverCmd(&out)
	cmd.SetArgs([]string{"--skill", "rust", "--config", writeConfig(t, allDisabled), "-o", outFile})
	require.NoError(t, cmd.Execute())

	assert.Empty(t, out.String())
	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\"total_jobs\":0")
}

func TestDiscoverCmd_ConfigurationFault(t *testing.T) {
	t.Setenv("SERPER_API_KEY", "")
	var out bytes.Buffer
	cmd := newDiscoverCmd(&out)
	cmd.SetArgs([]string{"--company", "stripe.com", "--config", writeConfig(t, careersOnlyWithoutKey)})
	err := cmd.Execute()
	require.Error(t, err)

	var fault *configFault
	assert.True(t, errors.As(err, &fault))
	assert.Empty(t, out.String())
}

func TestDiscoverCmd_NeedsSearchTerms(t *testing.T) {
	cmd := newDiscoverCmd(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", writeConfig(t, allDisabled)})
	err := cmd.Execute()
	require.Error(t, err)

	var fault *configFault
	assert.False(t, errors.As(err, &fault))
}
