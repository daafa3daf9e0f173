package sources

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobscout/internal/discovery"
)

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func fixtureDoc(t *testing.T, name string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(fixture(t, name))))
	require.NoError(t, err)
	return doc
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestMatchLocation(t *testing.T) {
	m := NewMatcher([]string{"Lisbon"}, 5)

	cases := []struct {
		text string
		want string
	}{
		{"Remote, US only", "Remote"},
		{"Based in London or Berlin", "London, UK"},
		{"Join us in Berlin", "Berlin, Germany"},
		{"Hybrid role in NYC", "New York, NY"},
		{"Open to candidates in EMEA", "EMEA"},
		{"Office in Lisbon", "Lisbon"},
		{"Great team, great perks", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, m.MatchLocation(tc.text), tc.text)
	}
}

func TestMatchExperience(t *testing.T) {
	assert.Equal(t, "5+ years of experience", MatchExperience("You have 5+ Years of Experience with Go"))
	assert.Equal(t, "experience: 3 years", MatchExperience("Experience: 3 years minimum"))
	assert.Equal(t, "2-4 years", MatchExperience("2-4 years in a startup"))
	assert.Equal(t, "3+ years", MatchExperience("Senior Go engineer, 3+ years"))
	assert.Equal(t, "", MatchExperience("founded 12 years ago"))
	assert.Equal(t, "", MatchExperience("no numbers here"))
}

func TestMatchSkills(t *testing.T) {
	vocab := discovery.DefaultSkillVocabulary

	assert.Equal(t, []string{"kubernetes", "golang"}, MatchSkills("We use Go, Kubernetes and PostgreSQL", vocab, 5))
	assert.Equal(t, []string{"java", "c++"}, MatchSkills("C++ and Java", vocab, 5))
	assert.Empty(t, MatchSkills("let's go to the javascripts", vocab, 5))
	assert.Len(t, MatchSkills("python java react node aws docker sql", vocab, 5), 5)

	// profile skill "go" is the same skill as golang
	assert.Equal(t, []string{"golang"}, MatchSkills("Golang services", append([]string{"golang"}, "go"), 5))
}

func TestCompanyFromURL(t *testing.T) {
	cases := map[string]string{
		"https://boards.greenhouse.io/acme/jobs/4012345":        "Acme",
		"https://jobs.lever.co/acme-corp/0c2b9a1e":              "Acme Corp",
		"https://jobs.ashbyhq.com/linear/abc":                   "Linear",
		"https://stripe.wd5.myworkdayjobs.com/en-US/External/x": "Stripe",
		"https://careers.notion.so/positions/123":               "Notion",
		"https://www.bbc.co.uk/careers/1":                       "Bbc",
		"not a url":                                             discovery.DefaultCompany,
	}
	for in, want := range cases {
		assert.Equal(t, want, CompanyFromURL(in), in)
	}

	assert.Equal(t, "Stripe", CompanyName("stripe.com"))
	assert.Equal(t, "Notion Labs", CompanyName(" Notion Labs "))
}

func TestExtractCareerLinks(t *testing.T) {
	doc := fixtureDoc(t, "careers_page.html")
	links := ExtractCareerLinks(doc, mustURL(t, "https://acme.com/careers"), "backend engineer")

	require.Len(t, links, 4)
	assert.Equal(t, "https://boards.greenhouse.io/acme/jobs/4012345", links[0].URL)
	assert.Equal(t, "Senior Backend Engineer, Payments", links[0].Title)
	assert.Equal(t, "https://acme.com/careers/job/7731-site-reliability-engineer", links[1].URL)
}

func TestExtractCareerLinks_RoleFallback(t *testing.T) {
	html := `<html><body>
		<a href="/careers/backend-engineer-berlin">Backend Engineer (Berlin)</a>
		<a href="/blog/backend">Backend blog</a>
		<a href="/careers/designer">Designer</a>
	</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	links := ExtractCareerLinks(doc, mustURL(t, "https://acme.com/careers"), "Backend Engineer")
	require.Len(t, links, 1)
	assert.Equal(t, "https://acme.com/careers/backend-engineer-berlin", links[0].URL)

	assert.Empty(t, ExtractCareerLinks(doc, mustURL(t, "https://acme.com/careers"), ""))
}
