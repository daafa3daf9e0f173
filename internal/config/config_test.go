package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.Discovery.MaxJobs)
	assert.Equal(t, 60*time.Second, cfg.Discovery.RunDeadline)
	assert.Equal(t, 3, cfg.Discovery.PerCompanyCap)
	assert.Equal(t, 38, cfg.Search.CallsPerRun)
	assert.Equal(t, DefaultPriority, cfg.Sources.Priority)
	assert.Equal(t, 15, cfg.SourceLimit(SourceRemoteOK, 1))
	assert.Equal(t, 7, cfg.SourceLimit("unknown", 7))
	assert.True(t, cfg.SourceEnabled(SourceHNHiring))
}

func TestLoadConfig_YAMLWithEnvExpansion(t *testing.T) {
	t.Setenv("JOBSCOUT_TEST_KEY", "secret-key")
	t.Setenv("JOBSCOUT_TEST_REMOTEOK", "http://127.0.0.1:9999/api")

	path := writeConfig(t, `
discovery:
  max_jobs: 50
search:
  api_key: "${JOBSCOUT_TEST_KEY}"
sources:
  disabled: [wellfound]
  call_timeout: 30s
  urls:
    remoteok: $JOBSCOUT_TEST_REMOTEOK
  limits:
    hn_hiring: 5
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Discovery.MaxJobs)
	assert.Equal(t, "secret-key", cfg.Search.APIKey)
	assert.False(t, cfg.SourceEnabled(SourceWellfound))
	assert.Equal(t, MaxCallTimeout, cfg.Sources.CallTimeout)
	assert.Equal(t, "http://127.0.0.1:9999/api", cfg.SourceURL(SourceRemoteOK))
	// keys absent from the file keep their defaults
	assert.Equal(t, "https://news.ycombinator.com/jobs", cfg.SourceURL(SourceHNHiring))
	assert.Equal(t, 5, cfg.SourceLimit(SourceHNHiring, 20))
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SERPER_API_KEY", "from-env")
	t.Setenv("DISCOVERY_MAX_JOBS", "120")
	t.Setenv("SOURCES_CALL_TIMEOUT", "1s")
	t.Setenv("SOURCES_DISABLED", "remote_co, hn_hiring")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Search.APIKey)
	assert.Equal(t, 120, cfg.Discovery.MaxJobs)
	assert.Equal(t, MinCallTimeout, cfg.Sources.CallTimeout)
	assert.False(t, cfg.SourceEnabled(SourceRemoteCo))
	assert.False(t, cfg.SourceEnabled(SourceHNHiring))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Discovery.MaxJobs = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Sources.Priority = []string{SourceRemoteOK, "myspace"}
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Sources.Priority = []string{SourceHNHiring, SourceHNHiring}
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Sources.Priority = []string{SourceHNHiring, SourceRemoteOK}
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Sources.Priority, len(DefaultPriority))
	assert.Equal(t, SourceHNHiring, cfg.Sources.Priority[0])
	assert.Equal(t, SourceCompanyCareers, cfg.Sources.Priority[2])

	cfg = Default()
	cfg.Runs.Store = "postgres"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Search.QuotaWindow = 0
	assert.Error(t, cfg.Validate())
}

func TestUsesBrowser(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.UsesBrowser(SourceWellfound))
	cfg.Browser.Enabled = true
	assert.True(t, cfg.UsesBrowser(SourceWellfound))
	assert.False(t, cfg.UsesBrowser(SourceRemoteOK))
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("JOBSCOUT_A", "alpha")
	assert.Equal(t, "alpha-alpha-${JOBSCOUT_UNSET_X}", expandEnvVars("${JOBSCOUT_A}-$JOBSCOUT_A-${JOBSCOUT_UNSET_X}"))
}
