package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScore_BoundedAndMonotone(t *testing.T) {
	for total := 0; total <= 12; total++ {
		prev := -1.0
		for successful := 0; successful <= total; successful++ {
			score := Score(successful, total)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 100.0)
			assert.GreaterOrEqual(t, score, prev, "total=%d successful=%d", total, successful)
			prev = score
		}
	}
	assert.Equal(t, 100.0, Score(10, 10))
	assert.Equal(t, 0.0, Score(0, 0))
	assert.Equal(t, 100.0, Score(11, 10), "clamped")
	assert.Equal(t, 0.0, Score(-1, 10), "clamped")
}

// Flipping any single failed suite to passed never lowers the score.
func TestSummarize_FlipIncreasesScore(t *testing.T) {
	results := []SuiteResult{
		{Name: "health", Passed: true},
		{Name: "auth", Passed: false},
		{Name: "profile", Passed: false},
		{Name: "tasks", Passed: true},
	}
	base := Summarize("r", "", time.Time{}, 0, results)

	for i := range results {
		if results[i].Passed {
			continue
		}
		flipped := append([]SuiteResult(nil), results...)
		flipped[i].Passed = true
		next := Summarize("r", "", time.Time{}, 0, flipped)
		assert.Greater(t, next.ReadinessScore, base.ReadinessScore)
	}
}

func TestBand(t *testing.T) {
	cases := []struct {
		score float64
		want  Verdict
	}{
		{100, VerdictReady},
		{90, VerdictReady},
		{89.9, VerdictMinorIssues},
		{75, VerdictMinorIssues},
		{74.99, VerdictNeedsWork},
		{0, VerdictNeedsWork},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Band(tc.score), "score %v", tc.score)
	}
	assert.Contains(t, VerdictReady.Describe(), "ready")
	assert.Contains(t, VerdictNeedsWork.Describe(), "Needs work")
}
