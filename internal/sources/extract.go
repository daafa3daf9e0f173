package sources

import (
	"net/url"
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"

	"jobscout/internal/discovery"
	"jobscout/pkg/utils"
)

const maxTitleLen = 100

type locationTerm struct {
	re      *regexp.Regexp
	display string
}

func newLocationTerm(pattern, display string, caseSensitive bool) locationTerm {
	flags := "(?i)"
	if caseSensitive {
		flags = ""
	}
	return locationTerm{
		re:      regexp.MustCompile(flags + `(^|[^A-Za-z])(?:` + pattern + `)($|[^A-Za-z])`),
		display: display,
	}
}

// Region abbreviations are matched case-sensitively so "us" in prose is not a country.
var defaultLocations = []locationTerm{
	newLocationTerm(`remote`, "Remote", false),
	newLocationTerm(`san francisco|sf bay area|bay area`, "San Francisco, CA", false),
	newLocationTerm(`new york|nyc`, "New York, NY", false),
	newLocationTerm(`seattle`, "Seattle, WA", false),
	newLocationTerm(`austin`, "Austin, TX", false),
	newLocationTerm(`boston`, "Boston, MA", false),
	newLocationTerm(`los angeles`, "Los Angeles, CA", false),
	newLocationTerm(`chicago`, "Chicago, IL", false),
	newLocationTerm(`london`, "London, UK", false),
	newLocationTerm(`berlin`, "Berlin, Germany", false),
	newLocationTerm(`amsterdam`, "Amsterdam, Netherlands", false),
	newLocationTerm(`dublin`, "Dublin, Ireland", false),
	newLocationTerm(`paris`, "Paris, France", false),
	newLocationTerm(`toronto`, "Toronto, Canada", false),
	newLocationTerm(`vancouver`, "Vancouver, Canada", false),
	newLocationTerm(`singapore`, "Singapore", false),
	newLocationTerm(`bangalore|bengaluru`, "Bangalore, India", false),
	newLocationTerm(`sydney`, "Sydney, Australia", false),
	newLocationTerm(`united states|usa`, "USA", false),
	newLocationTerm(`united kingdom`, "UK", false),
	newLocationTerm(`canada`, "Canada", false),
	newLocationTerm(`germany`, "Germany", false),
	newLocationTerm(`india`, "India", false),
	newLocationTerm(`europe`, "Europe", false),
	newLocationTerm(`US`, "USA", true),
	newLocationTerm(`UK`, "UK", true),
	newLocationTerm(`EU`, "Europe", true),
	newLocationTerm(`EMEA`, "EMEA", true),
	newLocationTerm(`APAC`, "APAC", true),
	newLocationTerm(`LATAM`, "LATAM", true),
}

// Matcher extracts location, experience and skills from free text
type Matcher struct {
	locations []locationTerm
	maxSkills int
}

// NewMatcher builds a matcher with the built-in location vocabulary plus extra places
func NewMatcher(extraLocations []string, maxSkills int) *Matcher {
	if maxSkills <= 0 {
		maxSkills = 5
	}
	m := &Matcher{maxSkills: maxSkills}
	for _, loc := range extraLocations {
		loc = strings.TrimSpace(loc)
		if loc == "" {
			continue
		}
		m.locations = append(m.locations, newLocationTerm(regexp.QuoteMeta(loc), loc, false))
	}
	m.locations = append(m.locations, defaultLocations...)
	return m
}

// MatchLocation returns the display form of the earliest location in text, or ""
func (m *Matcher) MatchLocation(text string) string {
	best, bestAt := "", -1
	for _, term := range m.locations {
		loc := term.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		if bestAt < 0 || loc[0] < bestAt {
			best, bestAt = term.display, loc[0]
		}
	}
	return best
}

var experiencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+)\+?\s*years?\s*(of\s*)?experience`),
	regexp.MustCompile(`experience:?\s*(\d+)\+?\s*years?`),
	regexp.MustCompile(`(\d+)\s*-\s*(\d+)\s*years?`),
	regexp.MustCompile(`(\d+)\+\s*years?`),
}

// MatchExperience returns the first experience phrase in text, or ""
func MatchExperience(text string) string {
	lower := strings.ToLower(text)
	for _, re := range experiencePatterns {
		if match := re.FindString(lower); match != "" {
			return strings.TrimSpace(match)
		}
	}
	return ""
}

var (
	skillPatterns sync.Map // skill -> []*regexp.Regexp

	goPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(^|[^a-z0-9])golang($|[^a-z0-9])`),
		regexp.MustCompile(`(^|[^A-Za-z0-9])Go($|[^A-Za-z0-9+#])`),
	}
)

func patternsFor(skill string) []*regexp.Regexp {
	if cached, ok := skillPatterns.Load(skill); ok {
		return cached.([]*regexp.Regexp)
	}
	var patterns []*regexp.Regexp
	switch skill {
	case "go", "golang":
		patterns = goPatterns
	default:
		patterns = []*regexp.Regexp{
			regexp.MustCompile(`(?i)(^|[^a-z0-9+#])` + regexp.QuoteMeta(skill) + `($|[^a-z0-9+#])`),
		}
	}
	skillPatterns.Store(skill, patterns)
	return patterns
}

// MatchSkills returns up to max skills from vocab that occur in text, in vocabulary order
func MatchSkills(text string, vocab []string, max int) []string {
	if text == "" || max <= 0 {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, skill := range vocab {
		key := strings.ToLower(strings.TrimSpace(skill))
		alias := key
		if alias == "go" {
			alias = "golang"
		}
		if key == "" || seen[alias] {
			continue
		}
		for _, re := range patternsFor(key) {
			if re.MatchString(text) {
				seen[alias] = true
				out = append(out, key)
				break
			}
		}
		if len(out) >= max {
			break
		}
	}
	return out
}

// MatchSkills applies the matcher's skill limit
func (m *Matcher) MatchSkills(text string, vocab []string) []string {
	return MatchSkills(text, vocab, m.maxSkills)
}

// Describe fills location, experience and skills of c from text where they are blank
func (m *Matcher) Describe(c discovery.CandidateJob, text string, vocab []string) discovery.CandidateJob {
	if c.Location == "" {
		c.Location = m.MatchLocation(text)
	}
	if c.Experience == "" {
		c.Experience = MatchExperience(text)
	}
	if len(c.Skills) == 0 {
		c.Skills = m.MatchSkills(text, vocab)
	}
	return c
}

// ATS hosts whose first path segment names the company
var pathCompanyHosts = []string{"greenhouse.io", "lever.co", "ashbyhq.com"}

// CompanyFromURL guesses the hiring company from a posting URL
func CompanyFromURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		return discovery.DefaultCompany
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")

	for _, ats := range pathCompanyHosts {
		if host == ats || strings.HasSuffix(host, "."+ats) {
			if seg := firstSegment(u.Path); seg != "" {
				return displayName(seg)
			}
		}
	}
	if strings.HasSuffix(host, ".myworkdayjobs.com") || strings.HasSuffix(host, ".workday.com") {
		return displayName(strings.SplitN(host, ".", 2)[0])
	}

	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return displayName(strings.SplitN(host, ".", 2)[0])
	}
	return displayName(strings.SplitN(registrable, ".", 2)[0])
}

func firstSegment(path string) string {
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			return seg
		}
	}
	return ""
}

// displayName turns "acme-corp" into "Acme Corp"
func displayName(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' || r == '+' })
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	if len(words) == 0 {
		return discovery.DefaultCompany
	}
	return strings.Join(words, " ")
}

// CompanyName returns the display name for a company given by domain or by name
func CompanyName(company string) string {
	if isDomain(company) {
		return CompanyFromURL("https://" + company)
	}
	return strings.TrimSpace(company)
}

func isDomain(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && strings.Contains(s, ".") && !strings.ContainsAny(s, " /")
}

// CareerLink is an anchor on a careers page that likely leads to a posting
type CareerLink struct {
	URL   string
	Title string
}

var careerLinkMarkers = []string{"/job/", "/position/", "/opening/", "greenhouse.io", "lever.co", "workday"}

var roleFallbackMarkers = []string{"job", "career", "position", "opening", "apply"}

// ExtractCareerLinks finds posting links on a careers page. Anchors whose
// href carries a posting marker win; otherwise the first 50 anchors are
// searched for role keywords.
func ExtractCareerLinks(doc *goquery.Document, base *url.URL, role string) []CareerLink {
	var links []CareerLink
	seen := make(map[string]bool)

	add := func(href, text string) {
		abs := resolve(base, href)
		if abs == "" || seen[abs] {
			return
		}
		seen[abs] = true
		links = append(links, CareerLink{URL: abs, Title: utils.Truncate(text, maxTitleLen)})
	}

	anchors := doc.Find("a[href]")
	anchors.Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		text := cleanText(a.Text())
		if len([]rune(text)) < 10 {
			return
		}
		lower := strings.ToLower(href)
		for _, marker := range careerLinkMarkers {
			if strings.Contains(lower, marker) {
				add(href, text)
				return
			}
		}
	})
	if len(links) > 0 {
		return links
	}

	keywords := roleKeywords(role)
	if len(keywords) == 0 {
		return nil
	}
	anchors.Slice(0, min(50, anchors.Length())).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		text := cleanText(a.Text())
		lowerText := strings.ToLower(text)
		matched := false
		for _, k := range keywords {
			if strings.Contains(lowerText, k) {
				matched = true
				break
			}
		}
		if !matched {
			return
		}
		abs := strings.ToLower(resolve(base, href))
		for _, marker := range roleFallbackMarkers {
			if strings.Contains(abs, marker) {
				add(href, text)
				return
			}
		}
	})
	return links
}

func roleKeywords(role string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(role)) {
		if len(w) >= 3 {
			out = append(out, w)
		}
	}
	return out
}

// resolve makes href absolute against base; non-http links give ""
func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := ref
	if base != nil {
		abs = base.ResolveReference(ref)
	}
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return abs.String()
}

// cleanText collapses whitespace
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// siteBase returns scheme://host of rawURL
func siteBase(rawURL string) *url.URL {
	u, err := url.Parse(rawURL)
	if err != nil {
		return &url.URL{Scheme: "https"}
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host}
}

// containsFold reports whether term occurs in s ignoring case; an empty term matches everything
func containsFold(s, term string) bool {
	return term == "" || strings.Contains(strings.ToLower(s), strings.ToLower(term))
}
