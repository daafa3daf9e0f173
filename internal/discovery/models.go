package discovery

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SourceTag identifies one of the eight job sources
type SourceTag string

const (
	SourceCompanyCareers SourceTag = "company_careers"
	SourceWebSearch      SourceTag = "google_search"
	SourceRemoteOK       SourceTag = "remoteok"
	SourceWeWorkRemotely SourceTag = "we_work_remotely"
	SourceWellfound      SourceTag = "wellfound"
	SourceYCJobs         SourceTag = "yc_jobs"
	SourceHNHiring       SourceTag = "hn_hiring"
	SourceRemoteCo       SourceTag = "remote_co"
)

// DefaultPriority is the merge and output order: company careers, web search,
// then the direct sources.
var DefaultPriority = []SourceTag{
	SourceCompanyCareers,
	SourceWebSearch,
	SourceRemoteOK,
	SourceWeWorkRemotely,
	SourceWellfound,
	SourceYCJobs,
	SourceHNHiring,
	SourceRemoteCo,
}

// Valid reports whether s is one of the eight known sources
func (s SourceTag) Valid() bool {
	for _, known := range DefaultPriority {
		if s == known {
			return true
		}
	}
	return false
}

// SearchBacked reports whether the source spends the shared search call budget
func (s SourceTag) SearchBacked() bool {
	return s == SourceCompanyCareers || s == SourceWebSearch
}

func (s SourceTag) String() string { return string(s) }

// ParseSourceTag converts a configuration or API string to a SourceTag
func ParseSourceTag(s string) (SourceTag, error) {
	tag := SourceTag(strings.ToLower(strings.TrimSpace(s)))
	if !tag.Valid() {
		return "", fmt.Errorf("unknown source %q", s)
	}
	return tag, nil
}

// Field defaults for values a source cannot supply
const (
	DefaultLocation   = "Not specified"
	DefaultExperience = "Not specified"
	DefaultCompany    = "Unknown Company"
	DefaultTitle      = "Unknown Position"
)

// SearchQuery is one unit of search work. An empty Platform means the
// generic web search.
type SearchQuery struct {
	Platform SourceTag         `json:"platform,omitempty"`
	Text     string            `json:"text" validate:"required,max=300"`
	Params   map[string]string `json:"params,omitempty"`
}

// Profile holds the keywords used for skill matching and the direct-source search term
type Profile struct {
	Role       string   `json:"role" validate:"max=200"`
	Skills     []string `json:"skills" validate:"max=50,dive,max=60"`
	Experience string   `json:"experience,omitempty" validate:"max=100"`
}

// RunInput is everything one run needs from the caller
type RunInput struct {
	Queries   []SearchQuery `json:"queries" validate:"max=50,dive"`
	Companies []string      `json:"companies" validate:"max=100,dive,max=200"`
	Profile   Profile       `json:"profile"`
}

// SearchTerm is the keyword sent to the direct sources: the first skill,
// else the first word of the role.
func (in RunInput) SearchTerm() string {
	for _, skill := range in.Profile.Skills {
		if s := strings.TrimSpace(skill); s != "" {
			return s
		}
	}
	if fields := strings.Fields(in.Profile.Role); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// TermFor returns the text of the first query addressed to source, else SearchTerm
func (in RunInput) TermFor(source SourceTag) string {
	for _, q := range in.Queries {
		if q.Platform == source && strings.TrimSpace(q.Text) != "" {
			return strings.TrimSpace(q.Text)
		}
	}
	return in.SearchTerm()
}

// WebQueries returns the query texts for the generic web search, in input order
func (in RunInput) WebQueries() []string {
	var out []string
	for _, q := range in.Queries {
		if q.Platform == "" || q.Platform == SourceWebSearch {
			if text := strings.TrimSpace(q.Text); text != "" {
				out = append(out, text)
			}
		}
	}
	return out
}

// Normalize trims whitespace and drops blank or duplicate companies, keeping rank order
func (in RunInput) Normalize() RunInput {
	out := in
	out.Companies = nil
	seen := make(map[string]bool, len(in.Companies))
	for _, c := range in.Companies {
		c = strings.TrimSpace(c)
		key := strings.ToLower(c)
		if c == "" || seen[key] {
			continue
		}
		seen[key] = true
		out.Companies = append(out.Companies, c)
	}
	out.Profile.Role = strings.TrimSpace(in.Profile.Role)
	return out
}

// CandidateJob is one raw extraction from one adapter call
type CandidateJob struct {
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Company    string    `json:"company"`
	Location   string    `json:"location"`
	Experience string    `json:"experience"`
	Skills     []string  `json:"skills"`
	Source     SourceTag `json:"source"`
	Snippet    string    `json:"snippet,omitempty"`
}

// Validate checks the structural invariants of a candidate
func (c CandidateJob) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("candidate has empty url")
	}
	if !c.Source.Valid() {
		return fmt.Errorf("candidate has unknown source %q", c.Source)
	}
	return nil
}

// WithDefaults fills blank display fields
func (c CandidateJob) WithDefaults() CandidateJob {
	c.Title = defaultIfBlank(c.Title, DefaultTitle)
	c.Company = defaultIfBlank(c.Company, DefaultCompany)
	c.Location = defaultIfBlank(c.Location, DefaultLocation)
	c.Experience = defaultIfBlank(c.Experience, DefaultExperience)
	return c
}

func defaultIfBlank(v, def string) string {
	v = strings.Join(strings.Fields(v), " ")
	if v == "" {
		return def
	}
	return v
}

// CanonicalJob is a deduplicated posting possibly seen via several sources
type CanonicalJob struct {
	Fingerprint string      `json:"fingerprint"`
	Title       string      `json:"title"`
	Company     string      `json:"company"`
	Location    string      `json:"location"`
	Experience  string      `json:"experience"`
	Skills      []string    `json:"skills_required"`
	ApplyURL    string      `json:"apply_url"`
	Source      SourceTag   `json:"source"`
	Sources     []SourceTag `json:"sources"`
}

// RunStatus is the outcome of one adapter invocation
type RunStatus string

const (
	StatusOK       RunStatus = "ok"
	StatusPartial  RunStatus = "partial"
	StatusFailed   RunStatus = "failed"
	StatusTimedOut RunStatus = "timed_out"
)

// SourceRunResult records what one adapter did during a run
type SourceRunResult struct {
	Source        SourceTag     `json:"source"`
	Status        RunStatus     `json:"status"`
	Items         int           `json:"items"`
	Accepted      int           `json:"accepted"`
	Calls         int           `json:"calls"`
	BudgetSkipped int           `json:"budget_skipped"`
	Error         string        `json:"error,omitempty"`
	Duration      time.Duration `json:"-"`
}

// MarshalJSON adds duration_ms
func (r SourceRunResult) MarshalJSON() ([]byte, error) {
	type alias SourceRunResult
	return json.Marshal(struct {
		alias
		DurationMS int64 `json:"duration_ms"`
	}{alias(r), r.Duration.Milliseconds()})
}

// UnmarshalJSON reads duration_ms back into Duration
func (r *SourceRunResult) UnmarshalJSON(data []byte) error {
	type alias SourceRunResult
	aux := struct {
		*alias
		DurationMS int64 `json:"duration_ms"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Duration = time.Duration(aux.DurationMS) * time.Millisecond
	return nil
}

// AggregationReport is the final output of one run
type AggregationReport struct {
	RunID          string            `json:"run_id"`
	Jobs           []CanonicalJob    `json:"jobs"`
	SourcesScraped map[SourceTag]int `json:"sources_scraped"`
	TotalJobs      int               `json:"total_jobs"`
	Elapsed        time.Duration     `json:"-"`
	BudgetUsed     int               `json:"budget_used"`
	SourceResults  []SourceRunResult `json:"source_results"`
}

// MarshalJSON adds elapsed_ms
func (r AggregationReport) MarshalJSON() ([]byte, error) {
	type alias AggregationReport
	return json.Marshal(struct {
		alias
		ElapsedMS int64 `json:"elapsed_ms"`
	}{alias(r), r.Elapsed.Milliseconds()})
}

// UnmarshalJSON reads elapsed_ms back into Elapsed
func (r *AggregationReport) UnmarshalJSON(data []byte) error {
	type alias AggregationReport
	aux := struct {
		*alias
		ElapsedMS int64 `json:"elapsed_ms"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Elapsed = time.Duration(aux.ElapsedMS) * time.Millisecond
	return nil
}

// Result returns the SourceRunResult for source, if present
func (r *AggregationReport) Result(source SourceTag) (SourceRunResult, bool) {
	for _, res := range r.SourceResults {
		if res.Source == source {
			return res, true
		}
	}
	return SourceRunResult{}, false
}
