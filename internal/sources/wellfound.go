package sources

import (
	"context"
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

var (
	cardClass      = regexp.MustCompile(`(?i)job|listing|card`)
	titleClass     = regexp.MustCompile(`(?i)title|name|role`)
	companyClass   = regexp.MustCompile(`(?i)company`)
	companyJobPath = regexp.MustCompile(`/company/[^/]+/jobs/`)
)

// WellfoundAdapter reads Wellfound's job search. The page-data blob is
// preferred; job cards and the role landing page are fallbacks.
type WellfoundAdapter struct {
	base
	pages   fetch.Fetcher
	siteURL string
	limit   int
}

// NewWellfoundAdapter creates the Wellfound adapter
func NewWellfoundAdapter(cfg *config.Config, pages fetch.Fetcher, logger logging.Logger) *WellfoundAdapter {
	return &WellfoundAdapter{
		base:    newBase(cfg, discovery.SourceWellfound, logger),
		pages:   pages,
		siteURL: strings.TrimRight(cfg.SourceURL(config.SourceWellfound), "/"),
		limit:   cfg.SourceLimit(config.SourceWellfound, 15),
	}
}

func slugify(term string) string {
	return strings.Join(strings.Fields(strings.ToLower(term)), "-")
}

func (a *WellfoundAdapter) Fetch(ctx context.Context, run *discovery.RunContext) ([]discovery.CandidateJob, discovery.SourceRunResult) {
	t := newTracker(a.tag)
	site := siteBase(a.siteURL)
	slug := slugify(run.Input.TermFor(a.tag))

	searchURL := fmt.Sprintf("%s/jobs?role=%s&remote=true", a.siteURL, url.QueryEscape(slug))
	var jobs []discovery.CandidateJob
	shapeFound := false

	if page := a.fetchPage(ctx, t, a.pages, searchURL); page != nil {
		if doc, err := page.Document(); err == nil {
			if data, err := nextData(doc); err == nil {
				shapeFound = true
				jobs = ParseWellfoundListings(listingsFrom(data), site, a.limit)
			}
			if len(jobs) == 0 {
				cards := ParseWellfoundCards(doc, site, a.limit)
				shapeFound = shapeFound || len(cards) > 0
				jobs = cards
			}
		}
	}

	if len(jobs) == 0 && slug != "" && ctx.Err() == nil {
		roleURL := fmt.Sprintf("%s/role/r/%s", a.siteURL, url.PathEscape(slug))
		if page := a.fetchPage(ctx, t, a.pages, roleURL); page != nil {
			if doc, err := page.Document(); err == nil {
				jobs = ParseWellfoundRolePage(doc, site, a.limit)
				shapeFound = shapeFound || len(jobs) > 0
			}
		}
	}

	if !shapeFound && t.succeeded() {
		t.fail(driftError(a.tag, searchURL, fmt.Errorf("no page data, job cards or role links")))
	}
	return a.finish(jobs, run), t.result(ctx, len(jobs))
}

// ParseWellfoundListings maps page-data listings to candidates. Listings without an id are skipped.
func ParseWellfoundListings(listings []map[string]interface{}, site *url.URL, limit int) []discovery.CandidateJob {
	var jobs []discovery.CandidateJob
	for _, job := range listings {
		if len(jobs) >= limit {
			break
		}
		id := str(job, "id")
		title := str(job, "title", "name")
		if id == "" || title == "" {
			continue
		}
		jobs = append(jobs, discovery.CandidateJob{
			URL:        site.JoinPath("jobs", id).String(),
			Title:      title,
			Company:    companyOf(job),
			Location:   str(job, "locationStr", "location"),
			Experience: yearsRange(job, "minYearsExperience", "maxYearsExperience"),
			Skills:     firstN(stringList(job, "tags"), 5),
		})
	}
	return jobs
}

// yearsRange renders "min-max years" when at least one bound is present
func yearsRange(job map[string]interface{}, minKey, maxKey string) string {
	_, hasMin := job[minKey].(float64)
	_, hasMax := job[maxKey].(float64)
	if !hasMin && !hasMax {
		return ""
	}
	return fmt.Sprintf("%d-%d years", num(job, minKey, 0), num(job, maxKey, 5))
}

// ParseWellfoundCards reads job cards from server-rendered HTML
func ParseWellfoundCards(doc *goquery.Document, site *url.URL, limit int) []discovery.CandidateJob {
	var jobs []discovery.CandidateJob
	seen := make(map[string]bool)

	doc.Find("div[class], article[class]").EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if len(jobs) >= limit {
			return false
		}
		if class, _ := card.Attr("class"); !cardClass.MatchString(class) {
			return true
		}

		title := card.Find("h2, h3, a").FilterFunction(func(_ int, s *goquery.Selection) bool {
			class, _ := s.Attr("class")
			return titleClass.MatchString(class)
		}).First()
		if title.Length() == 0 {
			title = card.Find(`a[href*="/jobs/"]`).First()
		}
		link := card.Find(`a[href*="/jobs/"], a[href*="/company/"]`).First()
		href, ok := link.Attr("href")
		titleText := cleanText(title.Text())
		if !ok || len(titleText) <= 5 {
			return true
		}
		abs := resolve(site, href)
		if abs == "" || seen[abs] {
			return true
		}
		seen[abs] = true

		company := card.Find("div, span").FilterFunction(func(_ int, s *goquery.Selection) bool {
			class, _ := s.Attr("class")
			return companyClass.MatchString(class)
		}).First()

		jobs = append(jobs, discovery.CandidateJob{
			URL:     abs,
			Title:   titleText,
			Company: cleanText(company.Text()),
		})
		return true
	})
	return jobs
}

// ParseWellfoundRolePage collects /company/<name>/jobs/ links from a role landing page
func ParseWellfoundRolePage(doc *goquery.Document, site *url.URL, limit int) []discovery.CandidateJob {
	var jobs []discovery.CandidateJob
	seen := make(map[string]bool)

	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if len(jobs) >= limit {
			return false
		}
		href, _ := a.Attr("href")
		text := cleanText(a.Text())
		if !companyJobPath.MatchString(href) || len(text) <= 5 {
			return true
		}
		abs := resolve(site, href)
		if abs == "" || seen[abs] {
			return true
		}
		seen[abs] = true

		company := ""
		if parts := strings.Split(strings.Trim(strings.SplitN(href, "/company/", 2)[1], "/"), "/"); len(parts) > 0 {
			company = displayName(parts[0])
		}
		jobs = append(jobs, discovery.CandidateJob{URL: abs, Title: text, Company: company})
		return true
	})
	return jobs
}
