package sources

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobscout/internal/config"
	"jobscout/internal/discovery"
	"jobscout/internal/fetch"
	"jobscout/internal/logging"
)

var errNoListings = errors.New("listing container not found")

// WWRAdapter scrapes the We Work Remotely search page
type WWRAdapter struct {
	base
	pages     fetch.Fetcher
	searchURL string
	limit     int
}

// NewWWRAdapter creates the We Work Remotely adapter
func NewWWRAdapter(cfg *config.Config, pages fetch.Fetcher, logger logging.Logger) *WWRAdapter {
	return &WWRAdapter{
		base:      newBase(cfg, discovery.SourceWeWorkRemotely, logger),
		pages:     pages,
		searchURL: cfg.SourceURL(config.SourceWeWorkRemotely),
		limit:     cfg.SourceLimit(config.SourceWeWorkRemotely, 15),
	}
}

func (a *WWRAdapter) Fetch(ctx context.Context, run *discovery.RunContext) ([]discovery.CandidateJob, discovery.SourceRunResult) {
	t := newTracker(a.tag)

	term := strings.ReplaceAll(strings.ToLower(run.Input.TermFor(a.tag)), " ", "+")
	pageURL := a.searchURL + "?term=" + term

	page := a.fetchPage(ctx, t, a.pages, pageURL)
	if page == nil {
		return nil, t.result(ctx, 0)
	}
	doc, err := page.Document()
	if err == nil {
		var jobs []discovery.CandidateJob
		if jobs, err = ParseWWR(doc, siteBase(a.searchURL), a.limit); err == nil {
			return a.finish(jobs, run), t.result(ctx, len(jobs))
		}
	}
	t.fail(driftError(a.tag, pageURL, err))
	return nil, t.result(ctx, 0)
}

// ParseWWR reads li.feature rows, falling back to any row under section.jobs
func ParseWWR(doc *goquery.Document, site *url.URL, limit int) ([]discovery.CandidateJob, error) {
	rows := doc.Find("li.feature")
	if rows.Length() == 0 {
		if doc.Find("section.jobs").Length() == 0 {
			return nil, errNoListings
		}
		rows = doc.Find("section.jobs li")
	}

	var jobs []discovery.CandidateJob
	rows.EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if len(jobs) >= limit {
			return false
		}
		title := cleanText(row.Find("span.title").First().Text())
		href, ok := row.Find(`a[href*="/remote-jobs/"]`).First().Attr("href")
		if title == "" || !ok {
			return true
		}
		link := resolve(site, href)
		if link == "" {
			return true
		}
		location := cleanText(row.Find("span.region").First().Text())
		if location == "" {
			location = "Remote (Global)"
		}
		jobs = append(jobs, discovery.CandidateJob{
			URL:      link,
			Title:    title,
			Company:  cleanText(row.Find("span.company").First().Text()),
			Location: location,
		})
		return true
	})
	return jobs, nil
}
