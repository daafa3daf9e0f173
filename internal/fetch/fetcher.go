package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"jobscout/internal/logging"
)

// maxBodyBytes bounds how much of a response body is read
const maxBodyBytes = 8 << 20

// Engine names recorded on a Page
const (
	EngineHTTP      = "http"
	EngineBrowser   = "browser"
	EngineFirecrawl = "firecrawl"
)

// Page is a fetched document
type Page struct {
	URL         string
	StatusCode  int
	Body        []byte
	ContentType string
	Engine      string
}

// Document parses the page body as HTML
func (p *Page) Document() (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
}

// Fetcher retrieves a page. Implementations honour ctx cancellation.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
	Name() string
}

// HTTPError is a non-2xx response
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Retryable reports whether the status is worth another attempt in a later run
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ChallengeError means the host answered with a bot check instead of content
type ChallengeError struct {
	URL       string
	Indicator string
}

func (e *ChallengeError) Error() string {
	return fmt.Sprintf("bot challenge at %s (%s)", e.URL, e.Indicator)
}

// IsChallenge reports whether err is a ChallengeError
func IsChallenge(err error) bool {
	var ce *ChallengeError
	return errors.As(err, &ce)
}

// StatusCode extracts the HTTP status from err, or 0
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}

var challengeIndicators = []string{
	"cf-challenge",
	"just a moment",
	"please wait while we verify",
	"checking your browser",
	"enable javascript and cookies",
	"cf-browser-verification",
	"__cf_chl_jschl_tk__",
	"performance & security by cloudflare",
	"g-recaptcha",
	"cf-turnstile",
}

// DetectChallenge returns the first bot-check indicator found in body, or ""
func DetectChallenge(body []byte) string {
	// Challenge pages are small; a full job listing that merely embeds a
	// recaptcha widget on its apply form should not count.
	if len(body) > 256<<10 {
		return ""
	}
	lower := strings.ToLower(string(body))
	for _, indicator := range challengeIndicators {
		if strings.Contains(lower, indicator) {
			return indicator
		}
	}
	return ""
}

// NewHTTPClient returns the client shared by all plain HTTP fetchers
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// HTTPFetcher fetches pages with a plain GET, paced by a shared HostLimiter
type HTTPFetcher struct {
	client    *http.Client
	limiter   *HostLimiter
	userAgent string
	logger    logging.Logger
}

// NewHTTPFetcher creates a fetcher. limiter may be nil.
func NewHTTPFetcher(client *http.Client, limiter *HostLimiter, userAgent string, logger logging.Logger) *HTTPFetcher {
	if client == nil {
		client = NewHTTPClient(10 * time.Second)
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &HTTPFetcher{
		client:    client,
		limiter:   limiter,
		userAgent: userAgent,
		logger:    logger.WithField("engine", EngineHTTP),
	}
}

func (f *HTTPFetcher) Name() string { return EngineHTTP }

// Fetch GETs url and fails with ChallengeError when the body is a bot check
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	page, err := f.do(ctx, url, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return nil, err
	}
	if indicator := DetectChallenge(page.Body); indicator != "" {
		return nil, &ChallengeError{URL: url, Indicator: indicator}
	}
	return page, nil
}

// Get GETs url with the given Accept header. No challenge detection is
// applied, which suits JSON APIs.
func (f *HTTPFetcher) Get(ctx context.Context, url, accept string) (*Page, error) {
	return f.do(ctx, url, accept)
}

func (f *HTTPFetcher) do(ctx context.Context, url, accept string) (*Page, error) {
	host := HostOf(url)
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, host); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		f.recordFailure(host, err)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		f.recordFailure(host, err)
		return nil, fmt.Errorf("failed to read body from %s: %w", url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := &HTTPError{URL: url, StatusCode: resp.StatusCode}
		if httpErr.Retryable() {
			f.recordFailure(host, httpErr)
		}
		// Cloudflare answers challenges with 403/503 and a small HTML body
		if indicator := DetectChallenge(body); indicator != "" {
			return nil, &ChallengeError{URL: url, Indicator: indicator}
		}
		return nil, httpErr
	}

	if f.limiter != nil {
		f.limiter.RecordSuccess(host)
	}

	f.logger.Debug("Fetched page", map[string]interface{}{
		"url":         url,
		"status":      resp.StatusCode,
		"bytes":       len(body),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return &Page{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		Engine:      EngineHTTP,
	}, nil
}

func (f *HTTPFetcher) recordFailure(host string, err error) {
	// A cancelled run is not the host's fault
	if errors.Is(err, context.Canceled) {
		return
	}
	if f.limiter != nil {
		f.limiter.RecordFailure(host, err)
	}
}
