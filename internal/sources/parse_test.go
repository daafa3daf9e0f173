package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRemoteOK(t *testing.T) {
	jobs, err := ParseRemoteOK(fixture(t, "remoteok.json"), mustURL(t, "https://remoteok.com"), 15)
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	assert.Equal(t, "https://remoteok.com/l/1093456", jobs[0].URL)
	assert.Equal(t, "Senior Golang Engineer", jobs[0].Title)
	assert.Equal(t, "Acme", jobs[0].Company)
	assert.Equal(t, "Worldwide", jobs[0].Location)
	assert.Equal(t, "5+ years experience", jobs[0].Experience)
	assert.Equal(t, []string{"golang", "kubernetes", "aws"}, jobs[0].Skills)

	assert.Equal(t, "https://remoteok.com/l/1093457", jobs[1].URL)
	assert.Equal(t, "Remote", jobs[1].Location)

	assert.Len(t, jobs[2].Skills, 5)
	assert.Equal(t, "3-5 years", jobs[2].Experience)

	limited, err := ParseRemoteOK(fixture(t, "remoteok.json"), mustURL(t, "https://remoteok.com"), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = ParseRemoteOK([]byte(`{"error":"rate limited"}`), mustURL(t, "https://remoteok.com"), 15)
	assert.Error(t, err)
}

func TestParseWWR(t *testing.T) {
	jobs, err := ParseWWR(fixtureDoc(t, "wwr.html"), mustURL(t, "https://weworkremotely.com"), 15)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, "https://weworkremotely.com/remote-jobs/acme-senior-go-engineer", jobs[0].URL)
	assert.Equal(t, "Senior Go Engineer", jobs[0].Title)
	assert.Equal(t, "Acme", jobs[0].Company)
	assert.Equal(t, "Anywhere in the World", jobs[0].Location)

	assert.Equal(t, "Globex", jobs[1].Company)
	assert.Equal(t, "Remote (Global)", jobs[1].Location)

	_, err = ParseWWR(fixtureDoc(t, "hn.html"), mustURL(t, "https://weworkremotely.com"), 15)
	assert.ErrorIs(t, err, errNoListings)
}

func TestParseHN(t *testing.T) {
	jobs, err := ParseHN(fixtureDoc(t, "hn.html"), mustURL(t, "https://news.ycombinator.com"), 20)
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	assert.Equal(t, "Acme", jobs[0].Company)
	assert.Equal(t, "https://news.ycombinator.com/item?id=40002", jobs[1].URL)
	assert.Equal(t, "Globex", jobs[1].Company)
	assert.Equal(t, "https://initech.com/careers/4471", jobs[2].URL)
	assert.Equal(t, HNCompanyFallback, jobs[2].Company)
}

func TestHNCompany(t *testing.T) {
	assert.Equal(t, "Acme", HNCompany("Acme (YC S21) is hiring a staff engineer"))
	assert.Equal(t, "Rocket Labs", HNCompany("Rocket Labs Is Hiring"))
	assert.Equal(t, HNCompanyFallback, HNCompany("Build compilers with us"))
}

func TestParseRemoteCo(t *testing.T) {
	doc := fixtureDoc(t, "remoteco.html")
	jobs, err := ParseRemoteCo(doc, mustURL(t, "https://remote.co"), "golang", 15)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, "https://remote.co/job-details/senior-golang-developer-4d1f", jobs[0].URL)
	assert.Equal(t, "Acme Cloud", jobs[0].Company)
	assert.Equal(t, "Golang SRE", jobs[1].Title)

	all, err := ParseRemoteCo(doc, mustURL(t, "https://remote.co"), "", 15)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestParseWellfound(t *testing.T) {
	site := mustURL(t, "https://wellfound.com")

	data, err := nextData(fixtureDoc(t, "wellfound_next.html"))
	require.NoError(t, err)
	jobs := ParseWellfoundListings(listingsFrom(data), site, 15)
	require.Len(t, jobs, 2)
	assert.Equal(t, "https://wellfound.com/jobs/2981123", jobs[0].URL)
	assert.Equal(t, "Rocketship", jobs[0].Company)
	assert.Equal(t, "Remote (US)", jobs[0].Location)
	assert.Equal(t, "3-6 years", jobs[0].Experience)
	assert.Equal(t, []string{"golang", "postgres"}, jobs[0].Skills)
	assert.Equal(t, "Infra Engineer", jobs[1].Title)
	assert.Equal(t, "Orbit", jobs[1].Company)
	assert.Equal(t, []string{"kubernetes"}, jobs[1].Skills)

	cards := ParseWellfoundCards(fixtureDoc(t, "wellfound_cards.html"), site, 15)
	require.Len(t, cards, 2)
	assert.Equal(t, "Senior Platform Engineer", cards[0].Title)
	assert.Equal(t, "Nimbus", cards[0].Company)
	assert.Equal(t, "https://wellfound.com/jobs/3001-senior-platform-engineer", cards[0].URL)
	assert.Equal(t, "https://wellfound.com/company/zeta/jobs/3002-ml-engineer", cards[1].URL)

	role := ParseWellfoundRolePage(fixtureDoc(t, "wellfound_role.html"), site, 15)
	require.Len(t, role, 1)
	assert.Equal(t, "Acme Robotics", role[0].Company)
	assert.Equal(t, "Firmware Engineer", role[0].Title)
}

func TestParseYCJobs(t *testing.T) {
	site := mustURL(t, "https://www.workatastartup.com")

	jobs, err := ParseYCJobsAPI(fixture(t, "yc_api.json"), site, "golang", 20)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "https://www.workatastartup.com/jobs/71001", jobs[0].URL)
	assert.Equal(t, "Ledgerly", jobs[0].Company)
	assert.Equal(t, "2-8 years", jobs[0].Experience)
	assert.Equal(t, "Tinybird", jobs[1].Company)

	_, err = ParseYCJobsAPI([]byte(`<html></html>`), site, "golang", 20)
	assert.Error(t, err)

	links := ParseYCJobsPage(fixtureDoc(t, "yc_page.html"), site, "golang", 20)
	require.Len(t, links, 1)
	assert.Equal(t, "https://www.workatastartup.com/jobs/81234", links[0].URL)
}
