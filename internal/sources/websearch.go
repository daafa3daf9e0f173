package sources

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"jobscout/internal/config"
	"jobscout/internal/discovery"
	"jobscout/internal/logging"
	"jobscout/internal/search"
	"jobscout/pkg/utils"
)

// WebSearchAdapter runs the generic web queries through the search provider
type WebSearchAdapter struct {
	base
	search      search.Client
	maxQueries  int
	results     int
	suffix      string
	concurrency int
}

// NewWebSearchAdapter creates the web search adapter
func NewWebSearchAdapter(cfg *config.Config, client search.Client, logger logging.Logger) *WebSearchAdapter {
	return &WebSearchAdapter{
		base:        newBase(cfg, discovery.SourceWebSearch, logger),
		search:      client,
		maxQueries:  cfg.Search.WebQueries,
		results:     cfg.Search.WebResults,
		suffix:      cfg.Search.QuerySuffix,
		concurrency: cfg.Sources.Concurrency,
	}
}

// Preflight fails when the search provider has no API key
func (a *WebSearchAdapter) Preflight() error {
	if a.search == nil || !a.search.Configured() {
		return search.ErrMissingAPIKey
	}
	return nil
}

// webQueries returns the caller's web queries, or ones built from the profile
func webQueries(in discovery.RunInput, max int) []string {
	queries := in.WebQueries()
	if len(queries) == 0 {
		role := strings.TrimSpace(in.Profile.Role)
		if role != "" {
			queries = append(queries, role+" jobs")
		}
		for _, skill := range in.Profile.Skills {
			if skill = strings.TrimSpace(skill); skill == "" {
				continue
			}
			if role != "" {
				queries = append(queries, role+" "+skill)
			} else {
				queries = append(queries, skill+" developer jobs")
			}
			if len(queries) >= 3 {
				break
			}
		}
	}
	if max > 0 && len(queries) > max {
		queries = queries[:max]
	}
	return queries
}

func (a *WebSearchAdapter) Fetch(ctx context.Context, run *discovery.RunContext) ([]discovery.CandidateJob, discovery.SourceRunResult) {
	t := newTracker(a.tag)
	queries := webQueries(run.Input, a.maxQueries)

	found := make([][]discovery.CandidateJob, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, q := range queries {
		g.Go(func() error {
			found[i] = a.query(gctx, run, t, q)
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

func (a *WebSearchAdapter) query(ctx context.Context, run *discovery.RunContext, t *tracker, text string) []discovery.CandidateJob {
	if ctx.Err() != nil {
		return nil
	}
	if a.suffix != "" {
		text = text + " " + a.suffix
	}

	callCtx, cancel := a.callContext(ctx)
	results, err := a.search.Search(callCtx, run.Budget, search.Query{Text: text, Num: a.results})
	cancel()
	t.record(sourceError(a.tag, "", err))
	if err != nil {
		return nil
	}

	jobs := make([]discovery.CandidateJob, 0, len(results))
	for _, r := range results {
		if len(jobs) >= a.results {
			break
		}
		link := utils.NormalizeJobLink(r.Link)
		if link == "" {
			continue
		}
		jobs = append(jobs, discovery.CandidateJob{
			URL:     link,
			Title:   utils.Truncate(cleanText(r.Title), maxTitleLen),
			Company: CompanyFromURL(link),
			Snippet: r.Snippet,
		})
	}
	return jobs
}
