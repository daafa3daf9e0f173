package server

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"jobscout/internal/background"
	"jobscout/internal/config"
	"jobscout/internal/discovery"
	"jobscout/internal/logging"
	"jobscout/pkg/utils"
)

type fakeDiscoverer struct {
	err    error
	panics bool
	last   discovery.RunInput
}

func (f *fakeDiscoverer) Run(ctx context.Context, input discovery.RunInput) (*discovery.AggregationReport, error) {
	if f.panics {
		panic("adapter registry corrupted")
	}
	f.last = input
	if f.err != nil {
		return nil, f.err
	}
	return &discovery.AggregationReport{
		RunID: "run_grpc",
		Jobs: []discovery.CanonicalJob{{
			Title: "Platform Engineer", Company: "Notion", ApplyURL: "https://jobs.lever.co/notion/abc",
			Source: discovery.SourceCompanyCareers, Sources: []discovery.SourceTag{discovery.SourceCompanyCareers},
		}},
		SourcesScraped: map[discovery.SourceTag]int{discovery.SourceCompanyCareers: 1},
		TotalJobs:      1,
		BudgetUsed:     4,
	}, nil
}

func dial(t *testing.T, disc Discoverer, runs RunManager) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := NewServer(config.Default(), disc, runs, logging.NewNopLogger())
	go func() { _ = srv.Start(lis) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Stop(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newManager(t *testing.T) *background.Manager {
	t.Helper()
	cfg := config.Default()
	cfg.Runs.CleanupSchedule = ""
	cfg.Runs.Workers = 1
	exec := background.ExecutorFunc(func(ctx context.Context, runID string, input discovery.RunInput) (*discovery.AggregationReport, error) {
		return &discovery.AggregationReport{RunID: runID, TotalJobs: 0, SourcesScraped: map[discovery.SourceTag]int{}}, nil
	})
	m := background.NewManager(cfg, background.NewInMemoryRunStore(), exec, logging.NewNopLogger())
	m.SetCompletionLogger(background.NewRunCompletionLoggerTo(&strings.Builder{}, logging.NewNopLogger()))
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { _ = m.Stop(context.Background()) })
	return m
}

func mustStruct(t *testing.T, m map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

var discoverBody = map[string]interface{}{
	"queries":   []interface{}{map[string]interface{}{"platform": "google_search", "text": "golang engineer"}},
	"companies": []interface{}{"notion.so"},
	"profile":   map[string]interface{}{"role": "platform engineer", "skills": []interface{}{"go"}},
}

func TestDiscover_ReturnsReport(t *testing.T) {
	disc := &fakeDiscoverer{}
	client := NewDiscoveryServiceClient(dial(t, disc, nil))

	var header metadata.MD
	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-request-id", "req-grpc-1")
	out, err := client.Discover(ctx, mustStruct(t, discoverBody), grpc.Header(&header))
	require.NoError(t, err)

	fields := out.GetFields()
	assert.Equal(t, "run_grpc", fields["run_id"].GetStringValue())
	assert.Equal(t, float64(1), fields["total_jobs"].GetNumberValue())
	jobs := fields["jobs"].GetListValue().GetValues()
	require.Len(t, jobs, 1)
	assert.Equal(t, "Notion", jobs[0].GetStructValue().GetFields()["company"].GetStringValue())
	assert.Equal(t, []string{"req-grpc-1"}, header.Get("x-request-id"))

	assert.Equal(t, discovery.SourceWebSearch, disc.last.Queries[0].Platform)
	assert.Equal(t, []string{"notion.so"}, disc.last.Companies)
}

func TestDiscover_ErrorCodes(t *testing.T) {
	cases := []struct {
		name string
		disc *fakeDiscoverer
		body map[string]interface{}
		want codes.Code
	}{
		{"configuration fault", &fakeDiscoverer{err: utils.NewConfigurationError("search API key is not set")}, discoverBody, codes.FailedPrecondition},
		{"invalid platform", &fakeDiscoverer{}, map[string]interface{}{
			"queries": []interface{}{map[string]interface{}{"platform": "monster", "text": "go"}},
		}, codes.InvalidArgument},
		{"empty request", &fakeDiscoverer{}, map[string]interface{}{}, codes.InvalidArgument},
		{"panic", &fakeDiscoverer{panics: true}, discoverBody, codes.Internal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := NewDiscoveryServiceClient(dial(t, tc.disc, nil))
			_, err := client.Discover(context.Background(), mustStruct(t, tc.body))
			require.Error(t, err)
			assert.Equal(t, tc.want, status.Code(err))
		})
	}
}

func TestSubmitDiscoveryAndGetRun(t *testing.T) {
	client := NewDiscoveryServiceClient(dial(t, &fakeDiscoverer{}, newManager(t)))
	ctx := context.Background()

	accepted, err := client.SubmitDiscovery(ctx, mustStruct(t, discoverBody))
	require.NoError(t, err)
	assert.Equal(t, "ACCEPTED", accepted.GetFields()["status"].GetStringValue())
	runID := accepted.GetFields()["runId"].GetStringValue()
	require.NotEmpty(t, runID)

	require.Eventually(t, func() bool {
		out, err := client.GetRun(ctx, mustStruct(t, map[string]interface{}{"runId": runID}))
		return err == nil && out.GetFields()["status"].GetStringValue() == "SUCCESS"
	}, 2*time.Second, 10*time.Millisecond)

	_, err = client.GetRun(ctx, mustStruct(t, map[string]interface{}{"runId": "run_unknown"}))
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.GetRun(ctx, mustStruct(t, map[string]interface{}{}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestAsyncDisabledWithoutManager(t *testing.T) {
	client := NewDiscoveryServiceClient(dial(t, &fakeDiscoverer{}, nil))
	_, err := client.SubmitDiscovery(context.Background(), mustStruct(t, discoverBody))
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}

func TestHealthService(t *testing.T) {
	conn := dial(t, &fakeDiscoverer{}, nil)
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestStatusFromError(t *testing.T) {
	assert.Equal(t, codes.NotFound, status.Code(statusFromError(background.ErrRunNotFound)))
	assert.Equal(t, codes.ResourceExhausted, status.Code(statusFromError(utils.NewQueueFullError("full"))))
	assert.Equal(t, codes.FailedPrecondition, status.Code(statusFromError(utils.NewConfigurationError("x"))))
	assert.Equal(t, codes.DeadlineExceeded, status.Code(statusFromError(context.DeadlineExceeded)))
	assert.Equal(t, codes.Unavailable, status.Code(statusFromError(utils.NewInternalServerError("run manager is not running"))))
}
