package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobscout/internal/logging"
	"jobscout/pkg/utils"
)

func newTestLimiter(t *testing.T, maxFailures int) *HostLimiter {
	t.Helper()
	hl := NewHostLimiter(LimiterConfig{RequestsPerMinute: 6000, Burst: 100, MaxFailures: maxFailures, ResetTimeout: time.Hour}, logging.NewNopLogger())
	t.Cleanup(hl.Stop)
	return hl
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "jobscout-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><a class="job" href="/jobs/1">Go Engineer</a></body></html>`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client(), newTestLimiter(t, 5), "jobscout-test", logging.NewNopLogger())
	page, err := f.Fetch(context.Background(), srv.URL+"/careers")
	require.NoError(t, err)
	assert.Equal(t, EngineHTTP, page.Engine)
	assert.Equal(t, 200, page.StatusCode)

	doc, err := page.Document()
	require.NoError(t, err)
	assert.Equal(t, "Go Engineer", doc.Find("a.job").Text())
}

func TestHTTPFetcher_StatusAndChallenge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/challenge":
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`<html><title>Just a moment...</title></html>`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client(), nil, "", logging.NewNopLogger())

	_, err := f.Fetch(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
	assert.False(t, IsChallenge(err))

	_, err = f.Fetch(context.Background(), srv.URL+"/challenge")
	require.Error(t, err)
	assert.True(t, IsChallenge(err))

	_, err = f.Fetch(context.Background(), srv.URL+"/down")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.True(t, httpErr.Retryable())
}

func TestHTTPFetcher_GetSkipsChallengeDetection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"description":"apply form uses g-recaptcha"}]`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client(), nil, "", logging.NewNopLogger())
	page, err := f.Get(context.Background(), srv.URL, "application/json")
	require.NoError(t, err)
	assert.Equal(t, "application/json", page.ContentType)
	assert.Contains(t, string(page.Body), "g-recaptcha")

	_, err = f.Fetch(context.Background(), srv.URL)
	assert.True(t, IsChallenge(err))
}

func TestHTTPFetcher_BreakerOpensAfterFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	limiter := newTestLimiter(t, 2)
	f := NewHTTPFetcher(srv.Client(), limiter, "", logging.NewNopLogger())

	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), srv.URL)
		require.Error(t, err)
	}
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.EqualValues(t, 2, hits.Load())
	assert.Equal(t, CircuitOpen, limiter.Breaker(HostOf(srv.URL)).State())
}

func TestHTTPFetcher_ContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client(), nil, "", logging.NewNopLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.Fetch(ctx, srv.URL)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCircuitBreaker_HalfOpen(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)
	assert.True(t, cb.RecordFailure())
	assert.False(t, cb.Allow())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, cb.Allow())
	assert.Equal(t, CircuitHalfOpen, cb.State())

	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestHostLimiter_Cleanup(t *testing.T) {
	hl := newTestLimiter(t, 5)
	require.NoError(t, hl.Wait(context.Background(), "a.example"))
	require.NoError(t, hl.Wait(context.Background(), "b.example"))
	assert.Len(t, hl.Stats(), 2)

	assert.Equal(t, 2, hl.cleanup(time.Now().Add(time.Minute)))
	assert.Empty(t, hl.Stats())
}

func TestDetectChallenge(t *testing.T) {
	assert.Equal(t, "cf-turnstile", DetectChallenge([]byte(`<div class="cf-turnstile"></div>`)))
	assert.Equal(t, "", DetectChallenge([]byte(`<h1>Senior Engineer</h1>`)))
}

type stubFetcher struct {
	name  string
	err   error
	calls int
}

func (s *stubFetcher) Name() string { return s.name }

func (s *stubFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &Page{URL: url, StatusCode: 200, Engine: s.name}, nil
}

func TestHybridFetcher_FallsBackOnChallenge(t *testing.T) {
	primary := &stubFetcher{name: EngineHTTP, err: &ChallengeError{URL: "https://jobs.acme.com/x", Indicator: "just a moment"}}
	fallback := &stubFetcher{name: EngineFirecrawl}
	domains := utils.NewCaptchaDomainManager("")

	h := NewHybridFetcher(primary, fallback, domains, logging.NewNopLogger())
	page, err := h.Fetch(context.Background(), "https://jobs.acme.com/x")
	require.NoError(t, err)
	assert.Equal(t, EngineFirecrawl, page.Engine)
	assert.True(t, domains.IsKnownCaptchaDomain("https://jobs.acme.com/other"))

	// second request skips the primary entirely
	_, err = h.Fetch(context.Background(), "https://jobs.acme.com/y")
	require.NoError(t, err)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 2, fallback.calls)
}

func TestHybridFetcher_NoFallback(t *testing.T) {
	primary := &stubFetcher{name: EngineHTTP, err: &ChallengeError{URL: "https://a.example", Indicator: "g-recaptcha"}}
	h := NewHybridFetcher(primary, nil, nil, logging.NewNopLogger())

	_, err := h.Fetch(context.Background(), "https://a.example")
	assert.True(t, IsChallenge(err))
	assert.Equal(t, EngineHTTP, h.Name())

	other := errors.New("boom")
	primary.err = other
	_, err = h.Fetch(context.Background(), "https://a.example")
	assert.ErrorIs(t, err, other)
}

func TestFirecrawlFetcher_RequiresKey(t *testing.T) {
	_, err := NewFirecrawlFetcher("", "https://api.firecrawl.dev", time.Second, logging.NewNopLogger())
	assert.Error(t, err)
}
