package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"jobscout/internal/config"
	"jobscout/internal/discovery"
	"jobscout/internal/fetch"
	"jobscout/internal/logging"
	"jobscout/internal/search"
	"jobscout/pkg/utils"
)

// CareersAdapter finds postings on the careers pages of the input companies.
// Each company costs one search call; when no result is itself a posting,
// the first result is fetched and its posting links are extracted.
type CareersAdapter struct {
	base
	search       search.Client
	pages        fetch.Fetcher
	maxCompanies int
	perCompany   int
	results      int
	concurrency  int
}

// NewCareersAdapter creates the company careers adapter
func NewCareersAdapter(cfg *config.Config, client search.Client, pages fetch.Fetcher, logger logging.Logger) *CareersAdapter {
	return &CareersAdapter{
		base:         newBase(cfg, discovery.SourceCompanyCareers, logger),
		search:       client,
		pages:        pages,
		maxCompanies: cfg.Sources.MaxCompanies,
		perCompany:   cfg.Discovery.PerCompanyCap,
		results:      cfg.Search.CompanyResults,
		concurrency:  cfg.Sources.Concurrency,
	}
}

// Preflight fails when the search provider has no API key
func (a *CareersAdapter) Preflight() error {
	if a.search == nil || !a.search.Configured() {
		return search.ErrMissingAPIKey
	}
	return nil
}

func (a *CareersAdapter) Fetch(ctx context.Context, run *discovery.RunContext) ([]discovery.CandidateJob, discovery.SourceRunResult) {
	t := newTracker(a.tag)

	companies := run.Input.Companies
	if a.maxCompanies > 0 && len(companies) > a.maxCompanies {
		companies = companies[:a.maxCompanies]
	}

	found := make([][]discovery.CandidateJob, len(companies))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, company := range companies {
		g.Go(func() error {
			found[i] = a.company(gctx, run, t, company)
			return nil
		})
	}
	_ = g.Wait()

	var jobs []discovery.CandidateJob
	for _, batch := range found {
		jobs = append(jobs, batch...)
	}
	return a.finish(jobs, run), t.result(ctx, len(jobs))
}

// companyQuery scopes the search to the company's domain when one was given
func companyQuery(company string, num int) search.Query {
	if isDomain(company) {
		return search.Query{Text: "careers jobs", Domain: strings.ToLower(strings.TrimSpace(company)), Num: num}
	}
	return search.Query{Text: fmt.Sprintf("%q careers jobs page", strings.TrimSpace(company)), Num: num}
}

func (a *CareersAdapter) company(ctx context.Context, run *discovery.RunContext, t *tracker, company string) []discovery.CandidateJob {
	if ctx.Err() != nil {
		return nil
	}
	name := CompanyName(company)

	callCtx, cancel := a.callContext(ctx)
	results, err := a.search.Search(callCtx, run.Budget, companyQuery(company, a.results))
	cancel()
	t.record(sourceError(a.tag, "", err))
	if err != nil {
		return nil
	}

	var jobs []discovery.CandidateJob
	careersPage := ""
	for _, r := range results {
		if len(jobs) >= a.perCompany {
			break
		}
		if accepts(run, r.Link) {
			jobs = append(jobs, discovery.CandidateJob{
				URL:     r.Link,
				Title:   utils.Truncate(cleanText(r.Title), maxTitleLen),
				Company: name,
				Snippet: r.Snippet,
			})
			continue
		}
		if careersPage == "" {
			careersPage = r.Link
		}
	}
	if len(jobs) > 0 || careersPage == "" || ctx.Err() != nil {
		return jobs
	}

	page := a.fetchPage(ctx, t, a.pages, careersPage)
	if page == nil {
		return nil
	}
	doc, err := page.Document()
	if err != nil {
		t.fail(driftError(a.tag, careersPage, err))
		return nil
	}

	fallback, _ := url.Parse(careersPage)
	for _, link := range ExtractCareerLinks(doc, pageBase(page, fallback), run.Input.Profile.Role) {
		if len(jobs) >= a.perCompany {
			break
		}
		if !accepts(run, link.URL) {
			continue
		}
		jobs = append(jobs, discovery.CandidateJob{URL: link.URL, Title: link.Title, Company: name})
	}

	a.logger.Debug("Careers page scanned", map[string]interface{}{
		"company": name,
		"url":     careersPage,
		"items":   len(jobs),
	})
	return jobs
}
