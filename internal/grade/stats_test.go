package grade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordWith(student, variant string, percentage float64, answers []AnswerResult) GradeRecord {
	return GradeRecord{
		ID:         "a-1:" + student,
		StudentID:  student,
		VariantID:  variant,
		Percentage: percentage,
		Answers:    answers,
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(nil)
	assert.Equal(t, 0, stats.Count)
	assert.Zero(t, stats.Mean)
}

func TestComputeStatsSummary(t *testing.T) {
	records := []GradeRecord{
		recordWith("s1", "", 50, nil),
		recordWith("s2", "", 70, nil),
		recordWith("s3", "", 90, nil),
	}

	stats := ComputeStats(records)
	assert.Equal(t, 3, stats.Count)
	assert.InDelta(t, 70, stats.Mean, 1e-9)
	assert.InDelta(t, 70, stats.Median, 1e-9)
	assert.InDelta(t, 50, stats.Low, 1e-9)
	assert.InDelta(t, 90, stats.High, 1e-9)
	assert.InDelta(t, 20, stats.StdDev, 1e-9)
}

func TestComputeStatsPerQuestion(t *testing.T) {
	records := []GradeRecord{
		recordWith("s1", "", 100, []AnswerResult{
			{QuestionNumber: 1, Selected: "A", Correct: true},
			{QuestionNumber: 2, Selected: "B", Correct: true},
		}),
		recordWith("s2", "", 0, []AnswerResult{
			{QuestionNumber: 1, Selected: "C"},
			{QuestionNumber: 2},
		}),
	}

	stats := ComputeStats(records)
	require.Len(t, stats.PerQuestion, 2)

	q1 := stats.PerQuestion[0]
	assert.Equal(t, 1, q1.QuestionNumber)
	assert.Equal(t, 1, q1.Correct)
	assert.Equal(t, 1, q1.Incorrect)
	assert.Equal(t, 0, q1.Skipped)
	assert.InDelta(t, 50, q1.PctCorrect, 1e-9)

	q2 := stats.PerQuestion[1]
	assert.Equal(t, 1, q2.Skipped)
	assert.InDelta(t, 100, q2.PctCorrect, 1e-9, "skips don't count against difficulty")
}

func TestComputeStatsPerStandard(t *testing.T) {
	records := []GradeRecord{
		recordWith("s1", "", 100, []AnswerResult{
			{QuestionNumber: 1, Correct: true, Standard: "ALG.1"},
			{QuestionNumber: 2, Correct: true, Standard: "ALG.1"},
			{QuestionNumber: 3, Correct: false, Standard: "GEO.2"},
		}),
		recordWith("s2", "", 50, []AnswerResult{
			{QuestionNumber: 1, Correct: false, Standard: "ALG.1"},
			{QuestionNumber: 3, Correct: true, Standard: "GEO.2"},
		}),
	}

	stats := ComputeStats(records)
	alg := stats.PerStandard["ALG.1"]
	assert.Equal(t, 2, alg.Correct)
	assert.Equal(t, 3, alg.Total)
	assert.InDelta(t, 2.0/3.0*100, alg.Pct, 1e-9)

	geo := stats.PerStandard["GEO.2"]
	assert.Equal(t, 1, geo.Correct)
	assert.Equal(t, 2, geo.Total)
}

func TestComputeStatsPerVariant(t *testing.T) {
	records := []GradeRecord{
		recordWith("s1", "", 80, nil),
		recordWith("s2", "hard", 60, nil),
		recordWith("s3", "hard", 40, nil),
	}

	stats := ComputeStats(records)
	assert.InDelta(t, 80, stats.PerVariant["base"].Mean, 1e-9)
	assert.Equal(t, 1, stats.PerVariant["base"].Count)
	assert.InDelta(t, 50, stats.PerVariant["hard"].Mean, 1e-9)
	assert.Equal(t, 2, stats.PerVariant["hard"].Count)
}
