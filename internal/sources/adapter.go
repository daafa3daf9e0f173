package sources

import (
	"context"
	"net/url"
	"time"

	"jobscout/internal/config"
	"jobscout/internal/discovery"
	"jobscout/internal/fetch"
	"jobscout/internal/logging"
	"jobscout/internal/search"
)

// Deps are the shared clients adapters are built on
type Deps struct {
	Search search.Client
	HTTP   *fetch.HTTPFetcher
	// Pages fetches ordinary HTML pages, falling back to rendering on bot challenges
	Pages fetch.Fetcher
	// Rendered fetches pages of sources configured for the browser. Nil means use Pages.
	Rendered fetch.Fetcher
	Logger   logging.Logger
}

func (d Deps) pagesFor(cfg *config.Config, tag string) fetch.Fetcher {
	if d.Rendered != nil && cfg.UsesBrowser(tag) {
		return d.Rendered
	}
	return d.Pages
}

// base holds what every adapter shares
type base struct {
	tag     discovery.SourceTag
	timeout time.Duration
	matcher *Matcher
	logger  logging.Logger
}

func newBase(cfg *config.Config, tag discovery.SourceTag, logger logging.Logger) base {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return base{
		tag:     tag,
		timeout: cfg.Sources.CallTimeout,
		matcher: NewMatcher(cfg.Vocabulary.Locations, cfg.Vocabulary.MaxSkills),
		logger:  logger.WithField("source", string(tag)),
	}
}

func (b *base) Source() discovery.SourceTag { return b.tag }

// callContext bounds one network round trip
func (b *base) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.timeout)
}

// finish tags candidates with the source and fills blank fields from their text
func (b *base) finish(jobs []discovery.CandidateJob, run *discovery.RunContext) []discovery.CandidateJob {
	for i := range jobs {
		jobs[i].Source = b.tag
		jobs[i] = b.matcher.Describe(jobs[i], jobs[i].Title+" "+jobs[i].Snippet, run.Skills)
	}
	return jobs
}

func (b *base) fetchPage(ctx context.Context, t *tracker, pages fetch.Fetcher, pageURL string) *fetch.Page {
	callCtx, cancel := b.callContext(ctx)
	defer cancel()

	page, err := pages.Fetch(callCtx, pageURL)
	t.record(sourceError(b.tag, pageURL, err))
	if err != nil {
		b.logger.Debug("Page fetch failed", map[string]interface{}{
			"url":   pageURL,
			"error": err.Error(),
		})
		return nil
	}
	return page
}

func (b *base) getJSON(ctx context.Context, t *tracker, client *fetch.HTTPFetcher, apiURL string) []byte {
	callCtx, cancel := b.callContext(ctx)
	defer cancel()

	page, err := client.Get(callCtx, apiURL, "application/json")
	t.record(sourceError(b.tag, apiURL, err))
	if err != nil {
		b.logger.Debug("API call failed", map[string]interface{}{
			"url":   apiURL,
			"error": err.Error(),
		})
		return nil
	}
	return page.Body
}

func accepts(run *discovery.RunContext, rawURL string) bool {
	v := run.Validator
	if v == nil {
		v = discovery.NewValidator(nil, nil)
	}
	return v.Accepts(rawURL)
}

func pageBase(page *fetch.Page, fallback *url.URL) *url.URL {
	if u, err := url.Parse(page.URL); err == nil && u.Host != "" {
		return u
	}
	return fallback
}

// NewAdapters builds one adapter per enabled source
func NewAdapters(cfg *config.Config, deps Deps) []discovery.Adapter {
	var adapters []discovery.Adapter
	add := func(tag string, build func() discovery.Adapter) {
		if cfg.SourceEnabled(tag) {
			adapters = append(adapters, build())
		}
	}

	add(config.SourceCompanyCareers, func() discovery.Adapter {
		return NewCareersAdapter(cfg, deps.Search, deps.pagesFor(cfg, config.SourceCompanyCareers), deps.Logger)
	})
	add(config.SourceWebSearch, func() discovery.Adapter {
		return NewWebSearchAdapter(cfg, deps.Search, deps.Logger)
	})
	add(config.SourceRemoteOK, func() discovery.Adapter {
		return NewRemoteOKAdapter(cfg, deps.HTTP, deps.Logger)
	})
	add(config.SourceWeWorkRemotely, func() discovery.Adapter {
		return NewWWRAdapter(cfg, deps.pagesFor(cfg, config.SourceWeWorkRemotely), deps.Logger)
	})
	add(config.SourceWellfound, func() discovery.Adapter {
		return NewWellfoundAdapter(cfg, deps.pagesFor(cfg, config.SourceWellfound), deps.Logger)
	})
	add(config.SourceYCJobs, func() discovery.Adapter {
		return NewYCJobsAdapter(cfg, deps.HTTP, deps.pagesFor(cfg, config.SourceYCJobs), deps.Logger)
	})
	add(config.SourceHNHiring, func() discovery.Adapter {
		return NewHNAdapter(cfg, deps.pagesFor(cfg, config.SourceHNHiring), deps.Logger)
	})
	add(config.SourceRemoteCo, func() discovery.Adapter {
		return NewRemoteCoAdapter(cfg, deps.pagesFor(cfg, config.SourceRemoteCo), deps.Logger)
	})
	return adapters
}
