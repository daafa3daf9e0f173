package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobscout/internal/api/handlers"
	"jobscout/internal/background"
	"jobscout/internal/config"
	"jobscout/internal/discovery"
	"jobscout/internal/logging"
	"jobscout/pkg/models"
	"jobscout/pkg/utils"
)

type fakeDiscoverer struct {
	mu      sync.Mutex
	inputs  []discovery.RunInput
	err     error
	sources []discovery.SourceTag
}

func (f *fakeDiscoverer) Run(ctx context.Context, input discovery.RunInput) (*discovery.AggregationReport, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, input)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &discovery.AggregationReport{
		RunID: "run_sync",
		Jobs: []discovery.CanonicalJob{{
			Title: "Backend Engineer", Company: "Stripe", ApplyURL: "https://boards.greenhouse.io/stripe/jobs/1",
			Source: discovery.SourceCompanyCareers, Sources: []discovery.SourceTag{discovery.SourceCompanyCareers},
		}},
		SourcesScraped: map[discovery.SourceTag]int{discovery.SourceCompanyCareers: 1},
		TotalJobs:      1,
		BudgetUsed:     2,
		Elapsed:        1500 * time.Millisecond,
	}, nil
}

func (f *fakeDiscoverer) Sources() []discovery.SourceTag { return f.sources }

func newTestServer(t *testing.T, disc *fakeDiscoverer, exec background.Executor) (*echo.Echo, *background.Manager) {
	t.Helper()
	cfg := config.Default()
	cfg.Runs.CleanupSchedule = ""
	cfg.Runs.Workers = 1

	mgr := background.NewManager(cfg, background.NewInMemoryRunStore(), exec, logging.NewNopLogger())
	mgr.SetCompletionLogger(background.NewRunCompletionLoggerTo(&strings.Builder{}, logging.NewNopLogger()))
	require.NoError(t, mgr.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = mgr.Stop(ctx)
	})

	e := echo.New()
	SetupRoutes(e, &handlers.Dependencies{Config: cfg, Discoverer: disc, Runs: mgr}, logging.NewNopLogger())
	return e, mgr
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

var okExecutor = background.ExecutorFunc(func(ctx context.Context, runID string, input discovery.RunInput) (*discovery.AggregationReport, error) {
	return &discovery.AggregationReport{RunID: runID, TotalJobs: 0, SourcesScraped: map[discovery.SourceTag]int{}}, nil
})

const validBody = `{"queries":[{"platform":"google_search","text":"golang backend engineer"}],
 "companies":["stripe.com","Notion"],
 "profile":{"role":"backend engineer","skills":["go","kubernetes"],"experience":"5 years"}}`

func TestHealthEndpoints(t *testing.T) {
	e, _ := newTestServer(t, &fakeDiscoverer{sources: []discovery.SourceTag{discovery.SourceRemoteOK}}, okExecutor)

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		rec := do(e, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID), path)
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	e, _ := newTestServer(t, &fakeDiscoverer{}, okExecutor)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-from-client")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "req-from-client", rec.Header().Get(echo.HeaderXRequestID))
}

func TestStatusIncludesRunStats(t *testing.T) {
	e, _ := newTestServer(t, &fakeDiscoverer{}, okExecutor)
	rec := do(e, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "operational", body["status"])
	runs, ok := body["runs"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, runs["running"])
}

func TestDiscover_Sync(t *testing.T) {
	disc := &fakeDiscoverer{}
	e, _ := newTestServer(t, disc, okExecutor)

	rec := do(e, http.MethodPost, "/api/v1/discover", validBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report discovery.AggregationReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.TotalJobs)
	assert.Equal(t, 1500*time.Millisecond, report.Elapsed)
	assert.Equal(t, 1, report.SourcesScraped[discovery.SourceCompanyCareers])

	require.Len(t, disc.inputs, 1)
	in := disc.inputs[0]
	assert.Equal(t, discovery.SourceWebSearch, in.Queries[0].Platform)
	assert.Equal(t, []string{"stripe.com", "Notion"}, in.Companies)
	assert.Equal(t, []string{"go", "kubernetes"}, in.Profile.Skills)
}

func TestDiscover_ValidationErrors(t *testing.T) {
	e, _ := newTestServer(t, &fakeDiscoverer{}, okExecutor)

	cases := map[string]string{
		"malformed":        `{"queries":`,
		"unknown platform": `{"queries":[{"platform":"linkedin","text":"go"}]}`,
		"empty query text": `{"queries":[{"text":""}]}`,
		"nothing to do":    `{"profile":{"role":"  "}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(e, http.MethodPost, "/api/v1/discover", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var er models.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er))
			assert.NotEmpty(t, er.Error)
			assert.Equal(t, rec.Header().Get(echo.HeaderXRequestID), er.RequestID)
		})
	}
}

func TestDiscover_ConfigurationFault(t *testing.T) {
	disc := &fakeDiscoverer{err: utils.NewConfigurationError("company_careers: search API key is not set")}
	e, _ := newTestServer(t, disc, okExecutor)

	rec := do(e, http.MethodPost, "/api/v1/discover", validBody)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var er models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er))
	assert.Equal(t, "configuration_error", er.Error)
	assert.Contains(t, er.Message, "search API key")
}

func TestDiscover_AsyncLifecycle(t *testing.T) {
	e, _ := newTestServer(t, &fakeDiscoverer{}, okExecutor)

	rec := do(e, http.MethodPost, "/api/v1/discover/async", validBody)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var accepted models.AsyncDiscoverResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	assert.Equal(t, models.AsyncStatusAccepted, accepted.Status)
	require.NotEmpty(t, accepted.RunID)

	var status models.RunStatusResponse
	require.Eventually(t, func() bool {
		rec := do(e, http.MethodGet, "/api/v1/runs/"+accepted.RunID, "")
		if rec.Code != http.StatusOK {
			return false
		}
		status = models.RunStatusResponse{}
		_ = json.Unmarshal(rec.Body.Bytes(), &status)
		return status.IsCompleted()
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, models.AsyncStatusSuccess, status.Status)
	require.NotNil(t, status.Report)
	assert.Equal(t, accepted.RunID, status.Report.RunID)

	rec = do(e, http.MethodGet, "/api/v1/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list models.RunListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, accepted.RunID, list.Runs[0].RunID)
}

func TestGetRun_NotFound(t *testing.T) {
	e, _ := newTestServer(t, &fakeDiscoverer{}, okExecutor)
	rec := do(e, http.MethodGet, "/api/v1/runs/run_missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDiscoverAsync_StoppedManager(t *testing.T) {
	e, mgr := newTestServer(t, &fakeDiscoverer{}, okExecutor)
	require.NoError(t, mgr.Stop(context.Background()))

	rec := do(e, http.MethodPost, "/api/v1/discover/async", validBody)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = do(e, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSources_PriorityAndEnabledFlags(t *testing.T) {
	disc := &fakeDiscoverer{sources: []discovery.SourceTag{discovery.SourceCompanyCareers, discovery.SourceRemoteOK}}
	e, _ := newTestServer(t, disc, okExecutor)

	rec := do(e, http.MethodGet, "/api/v1/sources", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.SourcesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Sources, len(discovery.DefaultPriority))
	assert.Equal(t, "company_careers", resp.Sources[0].Source)
	assert.True(t, resp.Sources[0].Enabled)
	assert.True(t, resp.Sources[0].SearchBacked)
	assert.Equal(t, "remoteok", resp.Sources[1].Source)
	assert.True(t, resp.Sources[1].Enabled)
	assert.False(t, resp.Sources[2].Enabled)
	assert.Equal(t, 3, resp.Sources[2].Priority)
	assert.Equal(t, 200, resp.MaxJobs)
	assert.Equal(t, 38, resp.CallsPerRun)
}
