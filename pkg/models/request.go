package models

import (
	"strings"

	"jobscout/internal/discovery"
)

// DiscoverRequest is the body of the discover endpoints
type DiscoverRequest struct {
	Queries   []QueryRequest `json:"queries" validate:"max=50,dive"`
	Companies []string       `json:"companies" validate:"max=100,dive,max=200"`
	Profile   ProfileRequest `json:"profile"`
}

// QueryRequest is one search query. An empty platform means the generic web search.
type QueryRequest struct {
	Platform string            `json:"platform,omitempty" validate:"omitempty,source_tag"`
	Text     string            `json:"text" validate:"required,max=300"`
	Params   map[string]string `json:"params,omitempty"`
}

// ProfileRequest carries the keywords used for matching
type ProfileRequest struct {
	Role       string   `json:"role" validate:"max=200"`
	Skills     []string `json:"skills" validate:"max=50,dive,max=60"`
	Experience string   `json:"experience,omitempty" validate:"max=100"`
}

// HasTerms reports whether the request gives any source something to search for
func (r *DiscoverRequest) HasTerms() bool {
	if strings.TrimSpace(r.Profile.Role) != "" || len(r.Queries) > 0 || len(r.Companies) > 0 {
		return true
	}
	for _, s := range r.Profile.Skills {
		if strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}

// ToRunInput converts the request. Platforms must already be validated.
func (r *DiscoverRequest) ToRunInput() discovery.RunInput {
	in := discovery.RunInput{
		Companies: append([]string(nil), r.Companies...),
		Profile: discovery.Profile{
			Role:       r.Profile.Role,
			Skills:     append([]string(nil), r.Profile.Skills...),
			Experience: r.Profile.Experience,
		},
	}
	for _, q := range r.Queries {
		var platform discovery.SourceTag
		if q.Platform != "" {
			platform, _ = discovery.ParseSourceTag(q.Platform)
		}
		in.Queries = append(in.Queries, discovery.SearchQuery{
			Platform: platform,
			Text:     q.Text,
			Params:   q.Params,
		})
	}
	return in
}
