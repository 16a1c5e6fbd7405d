package harness

import (
	"time"

	"github.com/roach88/apiprobe/internal/suite"
)

// SuiteResult is the outcome of one suite within a run.
type SuiteResult struct {
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	Duration time.Duration `json:"duration_ns"`

	// Error is set when the suite failed. It carries the panic message for a
	// crashed suite, or a failure tally otherwise.
	Error string `json:"error,omitempty"`

	Warnings int                 `json:"warnings"`
	Checks   []suite.CheckRecord `json:"checks"`
}

// Verdict is the readiness band of a run.
type Verdict string

const (
	VerdictReady       Verdict = "ready"
	VerdictMinorIssues Verdict = "minor_issues"
	VerdictNeedsWork   Verdict = "needs_work"
)

// Band thresholds.
const (
	ReadyThreshold       = 90.0
	MinorIssuesThreshold = 75.0
)

// Band classifies a readiness score.
func Band(score float64) Verdict {
	switch {
	case score >= ReadyThreshold:
		return VerdictReady
	case score >= MinorIssuesThreshold:
		return VerdictMinorIssues
	default:
		return VerdictNeedsWork
	}
}

// Describe returns the human-readable verdict.
func (v Verdict) Describe() string {
	switch v {
	case VerdictReady:
		return "Excellent: the service is ready for deployment"
	case VerdictMinorIssues:
		return "Good: minor issues to address before deployment"
	default:
		return "Needs work: critical issues must be fixed"
	}
}

// Score is the percentage of successful suites. An empty run scores 0.
func Score(successful, total int) float64 {
	if total <= 0 {
		return 0
	}
	if successful < 0 {
		successful = 0
	}
	if successful > total {
		successful = total
	}
	return float64(successful) / float64(total) * 100
}

// RunSummary is the immutable result of a run.
type RunSummary struct {
	RunID            string        `json:"run_id"`
	Target           string        `json:"target"`
	StartedAt        time.Time     `json:"started_at"`
	TotalSuites      int           `json:"total_suites"`
	SuccessfulSuites int           `json:"successful_suites"`
	FailedSuites     int           `json:"failed_suites"`
	ReadinessScore   float64       `json:"readiness_score"`
	Verdict          Verdict       `json:"verdict"`
	Duration         time.Duration `json:"duration_ns"`
	Results          []SuiteResult `json:"results"`
}

// AllPassed reports whether every suite passed. An empty run did not pass.
func (s RunSummary) AllPassed() bool {
	return s.TotalSuites > 0 && s.FailedSuites == 0
}

// FailedNames lists the failed suites in run order.
func (s RunSummary) FailedNames() []string {
	var names []string
	for _, r := range s.Results {
		if !r.Passed {
			names = append(names, r.Name)
		}
	}
	return names
}

// Summarize builds a RunSummary from ordered results.
func Summarize(runID, target string, startedAt time.Time, duration time.Duration, results []SuiteResult) RunSummary {
	successful := 0
	for _, r := range results {
		if r.Passed {
			successful++
		}
	}
	score := Score(successful, len(results))
	return RunSummary{
		RunID:            runID,
		Target:           target,
		StartedAt:        startedAt,
		TotalSuites:      len(results),
		SuccessfulSuites: successful,
		FailedSuites:     len(results) - successful,
		ReadinessScore:   score,
		Verdict:          Band(score),
		Duration:         duration,
		Results:          results,
	}
}
