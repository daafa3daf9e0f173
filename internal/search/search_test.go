package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobscout/internal/config"
	"jobscout/internal/discovery"
	"jobscout/internal/logging"
)

func testConfig(endpoint string) *config.Config {
	cfg := config.Default()
	cfg.Search.APIKey = "test-key"
	cfg.Search.Endpoint = endpoint
	cfg.Search.RatePerSecond = 10000
	cfg.Search.Burst = 1000
	cfg.Search.Timeout = 2 * time.Second
	return cfg
}

func TestBudget_NeverBelowZero(t *testing.T) {
	b := NewBudget(3)
	for i := 0; i < 3; i++ {
		assert.True(t, b.Acquire())
	}
	assert.False(t, b.Acquire())
	assert.False(t, b.Acquire())
	assert.Equal(t, 3, b.Used())
	assert.Equal(t, 0, b.Remaining())
	assert.Equal(t, 2, b.Skipped())

	assert.Equal(t, 0, NewBudget(-4).Limit())
}

func TestSharedBudget_DrawsFromQuota(t *testing.T) {
	quota := NewQuota(5, time.Hour)
	a := NewSharedBudget(4, quota)
	b := NewSharedBudget(4, quota)

	for i := 0; i < 4; i++ {
		assert.True(t, a.Acquire())
	}
	assert.True(t, b.Acquire())
	// the pool is empty although b has three calls of its own left
	assert.False(t, b.Acquire())

	assert.Equal(t, 4, a.Used())
	assert.Equal(t, 1, b.Used())
	assert.Equal(t, 3, b.Remaining())
	assert.Equal(t, 1, b.Skipped())
	assert.Equal(t, 1, quota.Denied())
	assert.Equal(t, 0, quota.Available())
}

func TestQuota_ConcurrentRuns(t *testing.T) {
	quota := NewQuota(38, time.Hour)
	var granted atomic.Int32
	var wg sync.WaitGroup
	for run := 0; run < 4; run++ {
		budget := NewSharedBudget(38, quota)
		for i := 0; i < 38; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if budget.Acquire() {
					granted.Add(1)
				}
			}()
		}
	}
	wg.Wait()
	assert.EqualValues(t, 38, granted.Load())
	assert.Equal(t, 3*38, quota.Denied())
}

func TestQuota_Empty(t *testing.T) {
	quota := NewQuota(0, time.Minute)
	assert.False(t, NewSharedBudget(38, quota).Acquire())
	assert.Equal(t, 0, quota.Available())
}

func TestBudget_ConcurrentAcquire(t *testing.T) {
	for round := 0; round < 20; round++ {
		b := NewBudget(38)
		var granted atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if b.Acquire() {
					granted.Add(1)
				}
			}()
		}
		wg.Wait()
		require.EqualValues(t, 38, granted.Load())
		require.Equal(t, 62, b.Skipped())
	}
}

func TestSerperClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("X-API-KEY"))

		var body serperRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "site:stripe.com careers jobs", body.Q)
		assert.Equal(t, 5, body.Num)

		_, _ = w.Write([]byte(`{"organic":[{"title":"Backend Engineer - Stripe","link":"https://stripe.com/jobs/listing/backend-engineer/5678901","snippet":"Remote, US. 5+ years experience","position":1}]}`))
	}))
	defer srv.Close()

	c := NewSerperClient(testConfig(srv.URL), srv.Client(), logging.NewNopLogger())
	b := NewBudget(2)

	results, err := c.Search(context.Background(), b, Query{Text: "careers jobs", Domain: "stripe.com", Num: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://stripe.com/jobs/listing/backend-engineer/5678901", results[0].Link)
	assert.Equal(t, 1, results[0].Position)
	assert.Equal(t, 1, b.Used())
}

func TestSerperClient_ExhaustedBudgetMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"organic":[]}`))
	}))
	defer srv.Close()

	c := NewSerperClient(testConfig(srv.URL), srv.Client(), logging.NewNopLogger())
	_, err := c.Search(context.Background(), NewBudget(0), Query{Text: "go engineer"})
	assert.ErrorIs(t, err, ErrBudgetExhausted)
	assert.EqualValues(t, 0, hits.Load())
}

func TestSerperClient_BudgetUnderConcurrency(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"organic":[]}`))
	}))
	defer srv.Close()

	c := NewSerperClient(testConfig(srv.URL), srv.Client(), logging.NewNopLogger())
	b := NewBudget(38)

	var wg sync.WaitGroup
	var exhausted atomic.Int32
	for i := 0; i < 80; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Search(context.Background(), b, Query{Text: "golang"}); err == ErrBudgetExhausted {
				exhausted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 38, hits.Load())
	assert.EqualValues(t, 42, exhausted.Load())
	assert.Equal(t, 38, b.Used())
}

func TestSerperClient_TransientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewSerperClient(testConfig(srv.URL), srv.Client(), logging.NewNopLogger())
	_, err := c.Search(context.Background(), NewBudget(5), Query{Text: "golang"})
	require.Error(t, err)
	assert.True(t, discovery.IsTransient(err))

	var se *discovery.SourceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
}

func TestSerperClient_ParseDrift(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	c := NewSerperClient(testConfig(srv.URL), srv.Client(), logging.NewNopLogger())
	_, err := c.Search(context.Background(), NewBudget(5), Query{Text: "golang"})
	assert.True(t, discovery.IsParseDrift(err))
}

func TestSerperClient_Configured(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Search.APIKey = "  "
	c := NewSerperClient(cfg, nil, logging.NewNopLogger())
	assert.False(t, c.Configured())

	_, err := c.Search(context.Background(), NewBudget(1), Query{Text: "x"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
