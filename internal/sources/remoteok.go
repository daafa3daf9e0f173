package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"jobscout/internal/config"
	"jobscout/internal/discovery"
	"jobscout/internal/fetch"
	"jobscout/internal/logging"
	"jobscout/pkg/utils"
)

// RemoteOKAdapter reads the RemoteOK public JSON feed
type RemoteOKAdapter struct {
	base
	http   *fetch.HTTPFetcher
	apiURL string
	limit  int
}

// NewRemoteOKAdapter creates the RemoteOK adapter
func NewRemoteOKAdapter(cfg *config.Config, client *fetch.HTTPFetcher, logger logging.Logger) *RemoteOKAdapter {
	return &RemoteOKAdapter{
		base:   newBase(cfg, discovery.SourceRemoteOK, logger),
		http:   client,
		apiURL: cfg.SourceURL(config.SourceRemoteOK),
		limit:  cfg.SourceLimit(config.SourceRemoteOK, 15),
	}
}

func (a *RemoteOKAdapter) Fetch(ctx context.Context, run *discovery.RunContext) ([]discovery.CandidateJob, discovery.SourceRunResult) {
	t := newTracker(a.tag)

	apiURL := a.apiURL
	if term := strings.ToLower(run.Input.TermFor(a.tag)); term != "" {
		apiURL += "?tag=" + url.QueryEscape(term)
	}

	body := a.getJSON(ctx, t, a.http, apiURL)
	if body == nil {
		return nil, t.result(ctx, 0)
	}

	jobs, err := ParseRemoteOK(body, siteBase(a.apiURL), a.limit)
	if err != nil {
		t.fail(driftError(a.tag, apiURL, err))
		return nil, t.result(ctx, 0)
	}
	return a.finish(jobs, run), t.result(ctx, len(jobs))
}

// ParseRemoteOK extracts postings from the feed. The first element of the
// feed is a legal notice without an id and is skipped.
func ParseRemoteOK(body []byte, site *url.URL, limit int) ([]discovery.CandidateJob, error) {
	var items []map[string]interface{}
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("remoteok feed is not a JSON array: %w", err)
	}

	var jobs []discovery.CandidateJob
	for _, item := range items {
		if len(jobs) >= limit {
			break
		}
		id := str(item, "id")
		if id == "" {
			continue
		}
		description := cleanText(str(item, "description"))
		var skills []string
		for _, tag := range stringList(item, "tags") {
			skills = append(skills, strings.ToLower(tag))
		}
		location := str(item, "location")
		if location == "" {
			location = "Remote"
		}

		jobs = append(jobs, discovery.CandidateJob{
			URL:        site.JoinPath("l", id).String(),
			Title:      utils.Truncate(str(item, "position"), maxTitleLen),
			Company:    str(item, "company"),
			Location:   location,
			Experience: MatchExperience(description),
			Skills:     firstN(skills, 5),
			Snippet:    utils.Truncate(description, 200),
		})
	}
	return jobs, nil
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
