package utils

import (
	"net/url"
	"regexp"
	"strings"
)

var linkedInJobID = regexp.MustCompile(`^\d{6,}$`)

// IsLinkedInURL reports whether raw points at a linkedin.com host
func IsLinkedInURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "linkedin.com" || strings.HasSuffix(host, ".linkedin.com")
}

// LinkedInJobID extracts the numeric posting id from a LinkedIn job link.
// It understands /jobs/view/<id>, /jobs/view/<slug>-<id> and the
// currentJobId parameter used by /jobs/collections and /jobs/search.
func LinkedInJobID(raw string) (string, bool) {
	if !IsLinkedInURL(raw) {
		return "", false
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}

	if id := u.Query().Get("currentJobId"); linkedInJobID.MatchString(id) {
		return id, true
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] != "jobs" || parts[i+1] != "view" {
			continue
		}
		seg := parts[i+2]
		if dash := strings.LastIndexByte(seg, '-'); dash >= 0 {
			seg = seg[dash+1:]
		}
		if linkedInJobID.MatchString(seg) {
			return seg, true
		}
	}
	return "", false
}

// NormalizeJobLink rewrites LinkedIn job links to the public
// https://www.linkedin.com/jobs/view/<id> form so that regional hosts,
// slugs and collection pages of one posting share a single URL.
// Anything else is returned trimmed and otherwise unchanged.
func NormalizeJobLink(raw string) string {
	raw = strings.TrimSpace(raw)
	if id, ok := LinkedInJobID(raw); ok {
		return "https://www.linkedin.com/jobs/view/" + id
	}
	return raw
}
