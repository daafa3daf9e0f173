package sources

import (
	"context"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"jobscout/internal/config"
	"jobscout/internal/discovery"
	"jobscout/internal/fetch"
	"jobscout/internal/logging"
)

// RemoteCoAdapter scrapes the remote.co developer listing and filters by term
type RemoteCoAdapter struct {
	base
	pages   fetch.Fetcher
	pageURL string
	limit   int
}

// NewRemoteCoAdapter creates the remote.co adapter
func NewRemoteCoAdapter(cfg *config.Config, pages fetch.Fetcher, logger logging.Logger) *RemoteCoAdapter {
	return &RemoteCoAdapter{
		base:    newBase(cfg, discovery.SourceRemoteCo, logger),
		pages:   pages,
		pageURL: cfg.SourceURL(config.SourceRemoteCo),
		limit:   cfg.SourceLimit(config.SourceRemoteCo, 15),
	}
}

func (a *RemoteCoAdapter) Fetch(ctx context.Context, run *discovery.RunContext) ([]discovery.CandidateJob, discovery.SourceRunResult) {
	t := newTracker(a.tag)

	page := a.fetchPage(ctx, t, a.pages, a.pageURL)
	if page == nil {
		return nil, t.result(ctx, 0)
	}
	doc, err := page.Document()
	if err == nil {
		var jobs []discovery.CandidateJob
		if jobs, err = ParseRemoteCo(doc, siteBase(a.pageURL), run.Input.TermFor(a.tag), a.limit); err == nil {
			return a.finish(jobs, run), t.result(ctx, len(jobs))
		}
	}
	t.fail(driftError(a.tag, a.pageURL, err))
	return nil, t.result(ctx, 0)
}

// ParseRemoteCo reads div.job_listing cards whose title contains term
func ParseRemoteCo(doc *goquery.Document, site *url.URL, term string, limit int) ([]discovery.CandidateJob, error) {
	cards := doc.Find("div.job_listing")
	if cards.Length() == 0 {
		return nil, errNoListings
	}

	var jobs []discovery.CandidateJob
	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if len(jobs) >= limit {
			return false
		}
		a := card.Find("a.font_weight_700").First()
		href, ok := a.Attr("href")
		title := cleanText(a.Text())
		if !ok || title == "" || !containsFold(title, term) {
			return true
		}
		link := resolve(site, href)
		if link == "" {
			return true
		}
		jobs = append(jobs, discovery.CandidateJob{
			URL:      link,
			Title:    title,
			Company:  cleanText(card.Find("p.m-0").First().Text()),
			Location: "Remote (Global)",
		})
		return true
	})
	return jobs, nil
}
