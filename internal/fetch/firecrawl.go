package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mendableai/firecrawl-go"

	"jobscout/internal/logging"
)

// ErrFirecrawlEmpty is returned when the rendering service answers without content
var ErrFirecrawlEmpty = errors.New("no content found in Firecrawl response")

// FirecrawlFetcher renders pages through the Firecrawl API. It is the
// fallback for hosts that answer plain requests with a bot challenge.
type FirecrawlFetcher struct {
	app     *firecrawl.FirecrawlApp
	timeout time.Duration
	logger  logging.Logger
}

// NewFirecrawlFetcher creates a fetcher, or returns an error when the API key is missing
func NewFirecrawlFetcher(apiKey, apiURL string, timeout time.Duration, logger logging.Logger) (*FirecrawlFetcher, error) {
	if apiKey == "" {
		return nil, errors.New("firecrawl API key not configured")
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	app, err := firecrawl.NewFirecrawlApp(apiKey, apiURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firecrawl: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &FirecrawlFetcher{
		app:     app,
		timeout: timeout,
		logger:  logger.WithField("engine", EngineFirecrawl),
	}, nil
}

func (f *FirecrawlFetcher) Name() string { return EngineFirecrawl }

type scrapeOutcome struct {
	doc *firecrawl.FirecrawlDocument
	err error
}

// Fetch scrapes url as HTML. The SDK call takes no context, so it runs in
// its own goroutine and is abandoned when ctx ends first.
func (f *FirecrawlFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	params := &firecrawl.ScrapeParams{
		Formats: []string{"html"},
	}

	done := make(chan scrapeOutcome, 1)
	start := time.Now()
	go func() {
		doc, err := f.app.ScrapeURL(url, params)
		done <- scrapeOutcome{doc: doc, err: err}
	}()

	var out scrapeOutcome
	select {
	case out = <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if out.err != nil {
		f.logger.Warn("Firecrawl scrape failed", map[string]interface{}{
			"url":   url,
			"error": out.err.Error(),
		})
		return nil, fmt.Errorf("firecrawl scraping failed: %w", out.err)
	}
	if out.doc == nil {
		return nil, ErrFirecrawlEmpty
	}

	body := out.doc.HTML
	if body == "" {
		body = out.doc.Markdown
	}
	if body == "" {
		return nil, ErrFirecrawlEmpty
	}

	f.logger.Debug("Fetched page", map[string]interface{}{
		"url":         url,
		"bytes":       len(body),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return &Page{
		URL:         url,
		StatusCode:  200,
		Body:        []byte(body),
		ContentType: "text/html",
		Engine:      EngineFirecrawl,
	}, nil
}
