package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobscout/internal/config"
	"jobscout/internal/discovery"
	"jobscout/internal/fetch"
	"jobscout/internal/logging"
)

// ycScanWindow is how many API jobs are checked against the term
const ycScanWindow = 50

var ycJobPath = regexp.MustCompile(`/jobs/\d+`)

// YCJobsAdapter reads Work at a Startup. The JSON API is tried first, then
// the jobs page's page-data blob, then plain job links.
type YCJobsAdapter struct {
	base
	http    *fetch.HTTPFetcher
	pages   fetch.Fetcher
	siteURL string
	limit   int
}

// NewYCJobsAdapter creates the YC jobs adapter
func NewYCJobsAdapter(cfg *config.Config, client *fetch.HTTPFetcher, pages fetch.Fetcher, logger logging.Logger) *YCJobsAdapter {
	return &YCJobsAdapter{
		base:    newBase(cfg, discovery.SourceYCJobs, logger),
		http:    client,
		pages:   pages,
		siteURL: strings.TrimRight(cfg.SourceURL(config.SourceYCJobs), "/"),
		limit:   cfg.SourceLimit(config.SourceYCJobs, 20),
	}
}

func (a *YCJobsAdapter) Fetch(ctx context.Context, run *discovery.RunContext) ([]discovery.CandidateJob, discovery.SourceRunResult) {
	t := newTracker(a.tag)
	site := siteBase(a.siteURL)
	term := run.Input.TermFor(a.tag)

	apiURL := a.siteURL + "/api/v1/jobs"
	var jobs []discovery.CandidateJob
	if body := a.getJSON(ctx, t, a.http, apiURL); body != nil {
		var err error
		if jobs, err = ParseYCJobsAPI(body, site, term, a.limit); err != nil {
			t.fail(driftError(a.tag, apiURL, err))
		}
	}

	if len(jobs) == 0 && ctx.Err() == nil {
		pageURL := a.siteURL + "/jobs"
		if page := a.fetchPage(ctx, t, a.pages, pageURL); page != nil {
			if doc, err := page.Document(); err == nil {
				jobs = ParseYCJobsPage(doc, site, term, a.limit)
			}
		}
	}
	return a.finish(jobs, run), t.result(ctx, len(jobs))
}

// ParseYCJobsAPI filters the first 50 API jobs by term
func ParseYCJobsAPI(body []byte, site *url.URL, term string, limit int) ([]discovery.CandidateJob, error) {
	var items []map[string]interface{}
	if err := json.Unmarshal(body, &items); err != nil {
		// some deployments wrap the list in {"jobs": [...]}
		var wrapped struct {
			Jobs []map[string]interface{} `json:"jobs"`
		}
		if err2 := json.Unmarshal(body, &wrapped); err2 != nil || wrapped.Jobs == nil {
			return nil, fmt.Errorf("unexpected jobs API payload: %w", err)
		}
		items = wrapped.Jobs
	}
	if len(items) > ycScanWindow {
		items = items[:ycScanWindow]
	}
	return ycListings(items, site, term, limit, "skills"), nil
}

func ycListings(items []map[string]interface{}, site *url.URL, term string, limit int, skillsKey string) []discovery.CandidateJob {
	var jobs []discovery.CandidateJob
	for _, job := range items {
		if len(jobs) >= limit {
			break
		}
		id := str(job, "id")
		title := str(job, "title")
		if id == "" || title == "" || !containsFold(title, term) {
			continue
		}
		jobs = append(jobs, discovery.CandidateJob{
			URL:        site.JoinPath("jobs", id).String(),
			Title:      title,
			Company:    companyOf(job),
			Location:   str(job, "location", "locations"),
			Experience: yearsRange(job, "min_years_experience", "max_years_experience"),
			Skills:     firstN(stringList(job, skillsKey), 5),
		})
	}
	return jobs
}

// ParseYCJobsPage reads the jobs page's page-data blob, then /jobs/<id> links
func ParseYCJobsPage(doc *goquery.Document, site *url.URL, term string, limit int) []discovery.CandidateJob {
	if data, err := nextData(doc); err == nil {
		if jobs := ycListings(listingsFrom(data), site, term, limit, "tags"); len(jobs) > 0 {
			return jobs
		}
	}

	var jobs []discovery.CandidateJob
	seen := make(map[string]bool)
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if len(jobs) >= limit {
			return false
		}
		href, _ := a.Attr("href")
		text := cleanText(a.Text())
		if !ycJobPath.MatchString(href) || len([]rune(text)) <= 10 || !containsFold(text, term) {
			return true
		}
		abs := resolve(site, href)
		if abs == "" || seen[abs] {
			return true
		}
		seen[abs] = true
		jobs = append(jobs, discovery.CandidateJob{URL: abs, Title: text})
		return true
	})
	return jobs
}
