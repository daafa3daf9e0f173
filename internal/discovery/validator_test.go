package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidator_Classify(t *testing.T) {
	v := NewValidator(nil, nil)

	tests := []struct {
		url    string
		accept bool
		reason ReasonCode
	}{
		{"https://company.com/careers", false, ReasonIndexPage},
		{"https://company.com/job/12345", true, ReasonJobPath},
		{"https://boards.greenhouse.io/company/jobs/98765", true, ReasonATSHost},
		{"https://company.com/about/careers", false, ReasonIndexPage},
		{"https://company.com/careers/job-id-4532", true, ReasonIDToken},
		{"https://company.com/talent", false, ReasonIndexPage},

		{"https://company.com/careers/", false, ReasonIndexPage},
		{"https://company.com/en-us/careers", false, ReasonIndexPage},
		{"https://company.com/de/jobs/", false, ReasonIndexPage},
		{"https://company.com/", false, ReasonIndexPage},
		{"https://jobs.lever.co/acme/4f1c2a9e-1b2c-4d3e-9f00-112233445566", true, ReasonATSHost},
		{"https://boards.greenhouse.io/", false, ReasonIndexPage},
		{"https://remoteok.com/remote-jobs/123456-senior-go-engineer", true, ReasonJobBoard},
		{"https://remoteok.com/l/123456", true, ReasonJobBoard},
		{"https://weworkremotely.com/remote-jobs/search", false, ReasonIndexPage},
		{"https://www.workatastartup.com/jobs/55120", true, ReasonJobBoard},
		{"https://weworkremotely.com/remote-jobs/acme-senior-go-engineer", true, ReasonJobBoard},
		{"https://wellfound.com/company/acme-robotics/jobs/4455-firmware-engineer", true, ReasonJobBoard},
		{"https://remote.co/job/senior-golang-developer/", true, ReasonJobBoard},
		{"https://remoteok.com/l/99", true, ReasonJobBoard},

		// listing pages on the boards themselves
		{"https://remote.co/remote-jobs/developer/", false, ReasonAmbiguous},
		{"https://weworkremotely.com/categories/remote-back-end-programming-jobs", false, ReasonAmbiguous},
		{"https://wellfound.com/role/r/software-engineer", false, ReasonAmbiguous},
		{"https://remoteok.com/remote-golang-jobs/page2", false, ReasonAmbiguous},
		{"https://www.workatastartup.com/companies/acme", false, ReasonAmbiguous},

		// id tokens only count in the path or query
		{"https://www.freq-systems.com/about/team", false, ReasonAmbiguous},
		{"https://acmejobid.com/careers/engineering", false, ReasonAmbiguous},
		{"https://acme.com/apply?jobId=77", true, ReasonIDToken},
		{"https://company.com/position/backend-engineer-r2d2c3po", true, ReasonJobPath},
		{"https://company.com/careers/openings?gh_jid=4410", true, ReasonIDToken},
		{"https://company.com/careers/REQ-2231", true, ReasonIDToken},
		{"https://company.com/careers/engineering/backend-engineer-20931", true, ReasonIDToken},
		{"https://company.com/careers/engineering", false, ReasonAmbiguous},
		{"https://company.com/blog/we-are-hiring", false, ReasonAmbiguous},
		{"https://company.com/work-with-us", false, ReasonIndexPage},
		{"not a url", false, ReasonInvalidURL},
		{"ftp://company.com/job/1234", false, ReasonInvalidURL},
		{"", false, ReasonInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			verdict := v.Classify(tt.url)
			assert.Equal(t, tt.accept, verdict.Accept)
			assert.Equal(t, tt.reason, verdict.Reason)
		})
	}
}

func TestValidator_ExtraHosts(t *testing.T) {
	v := NewValidator([]string{"jobs.example-ats.com"}, []string{"www.niche-board.io"})

	assert.True(t, v.Accepts("https://jobs.example-ats.com/acme/backend"))
	assert.True(t, v.Accepts("https://niche-board.io/jobs/acme-backend"))
	assert.False(t, v.Accepts("https://niche-board.io/acme/backend"))
	assert.False(t, v.Accepts("https://niche-board.io/acme"))
}
