package discovery

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

var trackingParams = map[string]bool{
	"gclid":         true,
	"fbclid":        true,
	"ref":           true,
	"referrer":      true,
	"source":        true,
	"src":           true,
	"gh_src":        true,
	"lever-source":  true,
	"mc_cid":        true,
	"mc_eid":        true,
	"trk":           true,
	"_ga":           true,
	"lever-origin":  true,
	"ref_src":       true,
	"referralcode":  true,
	"campaign_id":   true,
	"source_detail": true,
}

// CanonicalURL normalises an apply URL for fingerprinting: lowercase host
// without www, no trailing slash, no fragment, tracking parameters removed
// and the remaining parameters sorted.
func CanonicalURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimRight(strings.TrimSpace(raw), "/"))
	}

	host := normalizeHost(u.Hostname())
	path := strings.TrimRight(u.EscapedPath(), "/")

	query := u.Query()
	keys := make([]string, 0, len(query))
	for k := range query {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") || trackingParams[lk] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(host)
	b.WriteString(path)
	for i, k := range keys {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		values := append([]string(nil), query[k]...)
		sort.Strings(values)
		for j, v := range values {
			if j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// Fingerprint identifies a posting by company, title and canonical apply URL
func Fingerprint(c CandidateJob) string {
	key := strings.ToLower(strings.TrimSpace(c.Company)) + "|" +
		strings.ToLower(strings.TrimSpace(c.Title)) + "|" +
		CanonicalURL(c.URL)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16])
}

// AddResult is the outcome of Deduplicator.Add
type AddResult int

const (
	Added AddResult = iota
	Merged
	Capped
)

func (r AddResult) String() string {
	switch r {
	case Added:
		return "added"
	case Merged:
		return "merged"
	default:
		return "capped"
	}
}

// Deduplicator merges candidates into canonical jobs. It is not safe for
// concurrent use; the orchestrator feeds it from one goroutine in source
// priority order, which fixes the output order.
type Deduplicator struct {
	perCompanyCap int
	capped        map[SourceTag]bool
	index         map[string]int
	companyCounts map[string]int
	jobs          []CanonicalJob
}

// NewDeduplicator creates a deduplicator. Jobs first seen from a source in
// cappedSources count towards perCompanyCap; a cap <= 0 disables it.
func NewDeduplicator(perCompanyCap int, cappedSources []SourceTag) *Deduplicator {
	d := &Deduplicator{
		perCompanyCap: perCompanyCap,
		capped:        make(map[SourceTag]bool, len(cappedSources)),
		index:         make(map[string]int),
		companyCounts: make(map[string]int),
	}
	for _, s := range cappedSources {
		d.capped[s] = true
	}
	return d
}

// Add merges c into the set
func (d *Deduplicator) Add(c CandidateJob) AddResult {
	fp := Fingerprint(c)

	if i, ok := d.index[fp]; ok {
		job := &d.jobs[i]
		job.Skills = unionSkills(job.Skills, c.Skills)
		if !containsSource(job.Sources, c.Source) {
			job.Sources = append(job.Sources, c.Source)
		}
		return Merged
	}

	companyKey := strings.ToLower(strings.TrimSpace(c.Company))
	if d.perCompanyCap > 0 && d.capped[c.Source] {
		if d.companyCounts[companyKey] >= d.perCompanyCap {
			return Capped
		}
		d.companyCounts[companyKey]++
	}

	c = c.WithDefaults()
	d.index[fp] = len(d.jobs)
	d.jobs = append(d.jobs, CanonicalJob{
		Fingerprint: fp,
		Title:       c.Title,
		Company:     c.Company,
		Location:    c.Location,
		Experience:  c.Experience,
		Skills:      unionSkills(nil, c.Skills),
		ApplyURL:    c.URL,
		Source:      c.Source,
		Sources:     []SourceTag{c.Source},
	})
	return Added
}

// Len returns the number of canonical jobs
func (d *Deduplicator) Len() int { return len(d.jobs) }

// Jobs returns the canonical jobs in insertion order
func (d *Deduplicator) Jobs() []CanonicalJob {
	out := make([]CanonicalJob, len(d.jobs))
	copy(out, d.jobs)
	return out
}

// unionSkills appends skills not yet present (case-insensitive), keeping first-seen order
func unionSkills(existing, more []string) []string {
	seen := make(map[string]bool, len(existing)+len(more))
	out := make([]string, 0, len(existing)+len(more))
	for _, list := range [][]string{existing, more} {
		for _, s := range list {
			s = strings.TrimSpace(s)
			key := strings.ToLower(s)
			if s == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, s)
		}
	}
	return out
}

func containsSource(list []SourceTag, s SourceTag) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
