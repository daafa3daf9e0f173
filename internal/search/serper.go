package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"jobscout/internal/config"
	"jobscout/internal/discovery"
	"jobscout/internal/fetch"
	"jobscout/internal/logging"
)

// ErrMissingAPIKey is returned by Preflight when no provider key is configured
var ErrMissingAPIKey = errors.New("SERPER_API_KEY is not configured")

// Query is one search request
type Query struct {
	Text   string
	Domain string // restricts results to site:Domain when set
	Num    int
}

// String renders the provider query string
func (q Query) String() string {
	if q.Domain == "" {
		return q.Text
	}
	return fmt.Sprintf("site:%s %s", q.Domain, q.Text)
}

// Result is one organic search hit
type Result struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
}

type serperResponse struct {
	Organic []Result `json:"organic"`
}

// Client is the search surface used by search-backed adapters
type Client interface {
	Search(ctx context.Context, budget discovery.Budget, q Query) ([]Result, error)
	Configured() bool
}

// SerperClient calls the Serper web search API. A single instance is shared
// by all runs so its rate limiter paces the provider process-wide.
type SerperClient struct {
	apiKey   string
	endpoint string
	timeout  time.Duration
	client   *http.Client
	limiter  *rate.Limiter
	breaker  *fetch.CircuitBreaker
	logger   logging.Logger
}

// NewSerperClient builds a client from the search configuration section
func NewSerperClient(cfg *config.Config, httpClient *http.Client, logger logging.Logger) *SerperClient {
	if httpClient == nil {
		httpClient = fetch.NewHTTPClient(cfg.Search.Timeout)
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &SerperClient{
		apiKey:   cfg.Search.APIKey,
		endpoint: cfg.Search.Endpoint,
		timeout:  cfg.Search.Timeout,
		client:   httpClient,
		limiter:  rate.NewLimiter(rate.Limit(cfg.Search.RatePerSecond), cfg.Search.Burst),
		breaker:  fetch.NewCircuitBreaker(5, 30*time.Second),
		logger:   logger.WithField("component", "serper"),
	}
}

// Configured reports whether an API key is present
func (c *SerperClient) Configured() bool {
	return strings.TrimSpace(c.apiKey) != ""
}

// Search runs one query. The budget is charged before anything else, so an
// exhausted budget never produces network traffic.
func (c *SerperClient) Search(ctx context.Context, budget discovery.Budget, q Query) ([]Result, error) {
	if budget == nil || !budget.Acquire() {
		return nil, ErrBudgetExhausted
	}
	if !c.Configured() {
		return nil, ErrMissingAPIKey
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, discovery.NewTransientError(discovery.SourceWebSearch, c.endpoint, 0, err)
	}
	if !c.breaker.Allow() {
		return nil, discovery.NewTransientError(discovery.SourceWebSearch, c.endpoint, 0, fetch.ErrCircuitOpen)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(serperRequest{Q: q.String(), Num: q.Num})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.recordFailure(err)
		return nil, discovery.NewTransientError(discovery.SourceWebSearch, c.endpoint, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		c.recordFailure(err)
		return nil, discovery.NewTransientError(discovery.SourceWebSearch, c.endpoint, resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := fmt.Errorf("search provider returned %d", resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			c.recordFailure(statusErr)
		}
		return nil, discovery.NewTransientError(discovery.SourceWebSearch, c.endpoint, resp.StatusCode, statusErr)
	}
	c.breaker.RecordSuccess()

	var decoded serperResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, discovery.NewParseDriftError(discovery.SourceWebSearch, c.endpoint, err)
	}

	c.logger.Debug("Search completed", map[string]interface{}{
		"query":       q.String(),
		"results":     len(decoded.Organic),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return decoded.Organic, nil
}

func (c *SerperClient) recordFailure(err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	if c.breaker.RecordFailure() {
		c.logger.Warn("Search provider circuit opened", map[string]interface{}{"error": err.Error()})
	}
}
