package utils

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomError(t *testing.T) {
	err := NewConfigurationError("search provider API key is not set")
	assert.Equal(t, http.StatusInternalServerError, err.Code)
	assert.Equal(t, "Configuration error: search provider API key is not set", err.Error())

	wrapped := fmt.Errorf("run: %w", err)
	ce, ok := AsCustomError(wrapped)
	require.True(t, ok)
	assert.Same(t, err, ce)
	assert.True(t, IsConfigurationError(wrapped))
	assert.False(t, IsConfigurationError(NewBadRequestError("bad")))
	assert.False(t, IsConfigurationError(fmt.Errorf("plain")))
}

func TestGenerateRunID(t *testing.T) {
	a, b := GenerateRunID(), GenerateRunID()
	assert.True(t, strings.HasPrefix(a, "run_"))
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "1.50s", FormatDuration(1500e6))
	assert.Equal(t, "fallback", GetStringOrDefault("  ", "fallback"))
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.True(t, Contains([]string{"a", "b"}, "b"))
}

func TestCaptchaDomainManager(t *testing.T) {
	path := filepath.Join(t.TempDir(), "captcha-domains.txt")

	m := NewCaptchaDomainManager(path, "www.Wellfound.com")
	assert.True(t, m.IsKnownCaptchaDomain("https://wellfound.com/jobs"))
	assert.True(t, m.IsKnownCaptchaDomain("https://jobs.wellfound.com/x"))
	assert.False(t, m.IsKnownCaptchaDomain("https://remoteok.com/api"))
	assert.False(t, m.IsKnownCaptchaDomain("::not a url"))

	require.NoError(t, m.AddCaptchaDomain("https://www.remote.co/remote-jobs/"))
	require.NoError(t, m.AddCaptchaDomain("https://remote.co/other"))
	assert.Equal(t, 2, m.GetDomainsCount())

	reloaded := NewCaptchaDomainManager(path)
	assert.True(t, reloaded.IsKnownCaptchaDomain("https://remote.co/remote-jobs/developer/"))
	assert.True(t, reloaded.IsKnownCaptchaDomain("https://wellfound.com/"))

	memory := NewCaptchaDomainManager("")
	require.NoError(t, memory.AddCaptchaDomain("https://example.org"))
	assert.Equal(t, 1, memory.GetDomainsCount())
	assert.Error(t, memory.AddCaptchaDomain("/relative/path"))
}

func TestNormalizeJobLink(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"view", "https://www.linkedin.com/jobs/view/3912345678/", "https://www.linkedin.com/jobs/view/3912345678"},
		{"slug", "https://uk.linkedin.com/jobs/view/senior-go-engineer-at-acme-3912345678", "https://www.linkedin.com/jobs/view/3912345678"},
		{"collection", "https://www.linkedin.com/jobs/collections/recommended/?currentJobId=3912345678", "https://www.linkedin.com/jobs/view/3912345678"},
		{"company page", "https://www.linkedin.com/company/acme", "https://www.linkedin.com/company/acme"},
		{"other host", " https://boards.greenhouse.io/acme/jobs/123 ", "https://boards.greenhouse.io/acme/jobs/123"},
		{"lookalike host", "https://notlinkedin.com/jobs/view/3912345678", "https://notlinkedin.com/jobs/view/3912345678"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeJobLink(tt.in))
		})
	}

	_, ok := LinkedInJobID("https://www.linkedin.com/jobs/view/abc")
	assert.False(t, ok)
}
