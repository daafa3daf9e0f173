package discovery

import "time"

// DefaultSkillVocabulary is matched against posting text. Profile skills are added per run.
var DefaultSkillVocabulary = []string{
	"python", "java", "javascript", "typescript", "react", "node",
	"aws", "gcp", "azure", "kubernetes", "docker", "sql", "postgres",
	"mongodb", "redis", "golang", "rust", "c++",
	"machine learning", "ai", "graphql", "terraform",
}

func newReport(runID string, jobs []CanonicalJob, order []SourceTag, collected map[SourceTag]batch, scraped map[SourceTag]int, elapsed time.Duration, budgetUsed int) *AggregationReport {
	if jobs == nil {
		jobs = []CanonicalJob{}
	}

	report := &AggregationReport{
		RunID:          runID,
		Jobs:           jobs,
		SourcesScraped: make(map[SourceTag]int, len(order)),
		TotalJobs:      len(jobs),
		Elapsed:        elapsed,
		BudgetUsed:     budgetUsed,
		SourceResults:  make([]SourceRunResult, 0, len(order)),
	}

	for _, tag := range order {
		report.SourcesScraped[tag] = scraped[tag]
		report.SourceResults = append(report.SourceResults, collected[tag].result)
	}
	return report
}

// FailedSources lists sources that produced nothing because they failed or ran out of time
func (r *AggregationReport) FailedSources() []SourceTag {
	var out []SourceTag
	for _, res := range r.SourceResults {
		if res.Status == StatusFailed || res.Status == StatusTimedOut {
			out = append(out, res.Source)
		}
	}
	return out
}

// CountBySource counts jobs by the first source that contributed them
func (r *AggregationReport) CountBySource() map[SourceTag]int {
	counts := make(map[SourceTag]int)
	for _, j := range r.Jobs {
		counts[j.Source]++
	}
	return counts
}
