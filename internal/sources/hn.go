package sources

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobscout/internal/config"
	"jobscout/internal/discovery"
	"jobscout/internal/fetch"
	"jobscout/internal/logging"
)

// HNCompanyFallback is used when a job title does not name the company
const HNCompanyFallback = "Various (HN)"

var hnHiring = regexp.MustCompile(`(?i)^(.+?)\s*(\([^)]*\))?\s+(?:is\s+)?hiring\b`)

// HNAdapter scrapes the Hacker News jobs page. It has no search term.
type HNAdapter struct {
	base
	pages   fetch.Fetcher
	pageURL string
	limit   int
}

// NewHNAdapter creates the Hacker News jobs adapter
func NewHNAdapter(cfg *config.Config, pages fetch.Fetcher, logger logging.Logger) *HNAdapter {
	return &HNAdapter{
		base:    newBase(cfg, discovery.SourceHNHiring, logger),
		pages:   pages,
		pageURL: cfg.SourceURL(config.SourceHNHiring),
		limit:   cfg.SourceLimit(config.SourceHNHiring, 20),
	}
}

func (a *HNAdapter) Fetch(ctx context.Context, run *discovery.RunContext) ([]discovery.CandidateJob, discovery.SourceRunResult) {
	t := newTracker(a.tag)

	page := a.fetchPage(ctx, t, a.pages, a.pageURL)
	if page == nil {
		return nil, t.result(ctx, 0)
	}
	doc, err := page.Document()
	if err == nil {
		var jobs []discovery.CandidateJob
		if jobs, err = ParseHN(doc, siteBase(a.pageURL), a.limit); err == nil {
			return a.finish(jobs, run), t.result(ctx, len(jobs))
		}
	}
	t.fail(driftError(a.tag, a.pageURL, err))
	return nil, t.result(ctx, 0)
}

// ParseHN reads tr.athing rows. item?id= links become absolute; other
// relative links are skipped.
func ParseHN(doc *goquery.Document, site *url.URL, limit int) ([]discovery.CandidateJob, error) {
	rows := doc.Find("tr.athing")
	if rows.Length() == 0 {
		return nil, errNoListings
	}

	var jobs []discovery.CandidateJob
	rows.EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if len(jobs) >= limit {
			return false
		}
		a := row.Find("span.titleline > a").First()
		href, ok := a.Attr("href")
		title := cleanText(a.Text())
		if !ok || title == "" {
			return true
		}

		switch {
		case strings.HasPrefix(href, "item?id="):
			href = site.String() + "/" + href
		case strings.HasPrefix(href, "http://"), strings.HasPrefix(href, "https://"):
		default:
			return true
		}

		jobs = append(jobs, discovery.CandidateJob{
			URL:     href,
			Title:   title,
			Company: HNCompany(title),
		})
		return true
	})
	return jobs, nil
}

// HNCompany parses "Acme (YC S21) is hiring ..." into "Acme"
func HNCompany(title string) string {
	if m := hnHiring.FindStringSubmatch(title); m != nil {
		return strings.TrimSpace(m[1])
	}
	return HNCompanyFallback
}
