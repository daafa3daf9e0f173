package discovery

import (
	"net/url"
	"regexp"
	"strings"
)

// ReasonCode explains a Verdict
type ReasonCode string

const (
	ReasonATSHost    ReasonCode = "ats_host"
	ReasonJobBoard   ReasonCode = "job_board"
	ReasonJobPath    ReasonCode = "job_path"
	ReasonIDToken    ReasonCode = "id_token"
	ReasonIndexPage  ReasonCode = "index_page"
	ReasonAmbiguous  ReasonCode = "ambiguous"
	ReasonInvalidURL ReasonCode = "invalid_url"
)

// Verdict is the outcome of classifying a URL
type Verdict struct {
	Accept bool       `json:"accept"`
	Reason ReasonCode `json:"reason"`
}

// DefaultATSHosts are applicant tracking systems. Subdomains match too.
var DefaultATSHosts = []string{
	"greenhouse.io",
	"lever.co",
	"myworkdayjobs.com",
	"workday.com",
	"ashbyhq.com",
	"smartrecruiters.com",
	"jobvite.com",
	"breezy.hr",
	"bamboohr.com",
	"workable.com",
	"icims.com",
	"recruitee.com",
	"teamtailor.com",
}

// DefaultJobBoards are aggregator hosts with known posting paths. A board
// URL is accepted only when its path is one of the board's posting shapes;
// category, role and paging pages fall through to the generic rules.
var DefaultJobBoards = []string{
	"remoteok.com",
	"weworkremotely.com",
	"wellfound.com",
	"workatastartup.com",
	"remote.co",
	"ycombinator.com",
}

var boardPostingPaths = map[string][]*regexp.Regexp{
	"remoteok.com": {
		regexp.MustCompile(`^/l/[a-z0-9-]+$`),
		regexp.MustCompile(`^/remote-jobs/\d+[^/]*$`),
	},
	"weworkremotely.com": {
		regexp.MustCompile(`^/remote-jobs/[a-z0-9][a-z0-9-]*$`),
		regexp.MustCompile(`^/listings/[a-z0-9][a-z0-9-]*$`),
	},
	"wellfound.com": {
		regexp.MustCompile(`^/company/[^/]+/jobs/\d+[^/]*$`),
		regexp.MustCompile(`^/jobs/\d+[^/]*$`),
	},
	"workatastartup.com": {
		regexp.MustCompile(`^/jobs/\d+$`),
	},
	"remote.co": {
		regexp.MustCompile(`^/job/[a-z0-9][a-z0-9-]*$`),
		regexp.MustCompile(`^/job-details/[a-z0-9][a-z0-9-]*$`),
	},
	"ycombinator.com": {
		regexp.MustCompile(`^/companies/[^/]+/jobs/[^/]+$`),
	},
}

// boards added through configuration share one posting shape
var genericBoardPosting = []*regexp.Regexp{
	regexp.MustCompile(`^/(l|job|jobs|listing|listings|remote-jobs|job-details)/[a-z0-9][a-z0-9-]*$`),
}

var indexPaths = map[string]bool{
	"":                      true,
	"/careers":              true,
	"/jobs":                 true,
	"/about/careers":        true,
	"/company/careers":      true,
	"/work-with-us":         true,
	"/join-us":              true,
	"/talent":               true,
	"/career-opportunities": true,
	"/remote-jobs/search":   true,
	"/jobs/search":          true,
}

var (
	localeSegment = regexp.MustCompile(`^/[a-z]{2}(-[a-z]{2})?(/|$)`)
	jobPath       = regexp.MustCompile(`/(job|jobs|position|positions|opening|openings|vacancy|vacancies)/[^/]*[0-9][^/]*`)
	idTokens      = []string{"job-id", "jobid", "job_id", "req-", "requisition"}
	idQueryKeys   = []string{"id", "jobid", "job_id", "gh_jid", "req", "reqid"}

	numericSegment = regexp.MustCompile(`^\d{3,}`)
	numericSuffix  = regexp.MustCompile(`-\d{4,}$`)
	uuidSegment    = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	alnumSegment   = regexp.MustCompile(`^[a-z0-9]{8,}$`)
	hasLetter      = regexp.MustCompile(`[a-z]`)
	hasDigit       = regexp.MustCompile(`[0-9]`)
)

// Validator decides whether a URL points at an individual posting.
// Anything it cannot positively identify is rejected.
type Validator struct {
	atsHosts  map[string]bool
	jobBoards map[string]bool
}

// NewValidator builds a validator with the default host sets plus any extras
func NewValidator(extraATSHosts, extraJobBoards []string) *Validator {
	v := &Validator{
		atsHosts:  make(map[string]bool),
		jobBoards: make(map[string]bool),
	}
	for _, h := range append(append([]string(nil), DefaultATSHosts...), extraATSHosts...) {
		v.atsHosts[normalizeHost(h)] = true
	}
	for _, h := range append(append([]string(nil), DefaultJobBoards...), extraJobBoards...) {
		v.jobBoards[normalizeHost(h)] = true
	}
	return v
}

// Classify never fails; unparsable input is a rejection
func (v *Validator) Classify(rawURL string) Verdict {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return Verdict{Reason: ReasonInvalidURL}
	}

	host := normalizeHost(u.Hostname())
	path := strings.ToLower(strings.TrimRight(u.EscapedPath(), "/"))

	if isIndexPath(path) {
		return Verdict{Reason: ReasonIndexPage}
	}

	if v.hostIn(host, v.atsHosts) {
		return Verdict{Accept: true, Reason: ReasonATSHost}
	}

	if board, ok := v.boardOf(host); ok && isBoardPosting(board, path) {
		return Verdict{Accept: true, Reason: ReasonJobBoard}
	}

	if jobPath.MatchString(path) || hasJobSegmentFollowedByID(path) {
		return Verdict{Accept: true, Reason: ReasonJobPath}
	}

	if hasIDToken(u, path) {
		return Verdict{Accept: true, Reason: ReasonIDToken}
	}

	return Verdict{Reason: ReasonAmbiguous}
}

// Accepts is shorthand for Classify(rawURL).Accept
func (v *Validator) Accepts(rawURL string) bool {
	return v.Classify(rawURL).Accept
}

func isIndexPath(path string) bool {
	if indexPaths[path] {
		return true
	}
	// drop a leading locale such as /en or /en-us
	if m := localeSegment.FindString(path); m != "" {
		return indexPaths[strings.TrimRight(path[len(strings.TrimRight(m, "/")):], "/")]
	}
	return false
}

func (v *Validator) hostIn(host string, set map[string]bool) bool {
	_, ok := matchHost(host, set)
	return ok
}

func (v *Validator) boardOf(host string) (string, bool) {
	return matchHost(host, v.jobBoards)
}

// matchHost returns the entry of set that is host or one of its parents
func matchHost(host string, set map[string]bool) (string, bool) {
	for {
		if set[host] {
			return host, true
		}
		dot := strings.IndexByte(host, '.')
		if dot < 0 {
			return "", false
		}
		host = host[dot+1:]
	}
}

func isBoardPosting(board, path string) bool {
	patterns, ok := boardPostingPaths[board]
	if !ok {
		patterns = genericBoardPosting
	}
	for _, re := range patterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// hasJobSegmentFollowedByID covers slugs without digits, e.g. /job/senior-go-engineer-remote-ab12cd34
func hasJobSegmentFollowedByID(path string) bool {
	segs := segments(path)
	for i := 0; i+1 < len(segs); i++ {
		switch segs[i] {
		case "job", "position", "opening", "vacancy":
			if isOpaqueID(segs[i+1]) {
				return true
			}
		}
	}
	return false
}

// hasIDToken looks at the path and query only; a host such as acmejobid.com says nothing
func hasIDToken(u *url.URL, path string) bool {
	lowered := path + "?" + strings.ToLower(u.RawQuery)
	for _, token := range idTokens {
		if strings.Contains(lowered, token) {
			return true
		}
	}

	query := u.Query()
	for _, key := range idQueryKeys {
		if query.Get(key) != "" {
			return true
		}
	}

	for _, seg := range segments(path) {
		if isOpaqueID(seg) {
			return true
		}
	}
	return false
}

func isOpaqueID(seg string) bool {
	if numericSegment.MatchString(seg) || numericSuffix.MatchString(seg) || uuidSegment.MatchString(seg) {
		return true
	}
	return alnumSegment.MatchString(seg) && hasLetter.MatchString(seg) && hasDigit.MatchString(seg)
}

func segments(path string) []string {
	var out []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func normalizeHost(h string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(h)), "www.")
}
