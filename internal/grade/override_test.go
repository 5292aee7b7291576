package grade

import (
	"testing"

	"markscan/internal/bubble"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradedRun(t *testing.T) (AssignmentGrades, []UnidentifiedPage, *Calculator) {
	t.Helper()
	calc := testCalc()
	pages := []ParsedPage{
		identifiedPage(1, "s1",
			detected(1, "A"), detected(2, "A"), detected(3, "C"), detected(4, "D")),
		identifiedPage(2, "s2",
			detected(1, "B"), detected(2, "B"), detected(3, "C"), detected(4, "D")),
		{PageNumber: 3, Type: PageScantron,
			Questions: []bubble.Question{
				detected(1, "A"), detected(2, "B"), detected(3, "C"), detected(4, "D")}},
	}
	grades, unidentified := calc.Calculate("a-1", pages)
	require.Len(t, grades.Records, 2)
	require.Len(t, unidentified, 1)
	return grades, unidentified, calc
}

func TestApplyOverrideRescoresRecord(t *testing.T) {
	grades, _, _ := gradedRun(t)
	before := grades.Records[0]
	require.Equal(t, 3, before.RawScore) // q2 wrong

	after := ApplyOverrides(grades, []Override{
		{RecordID: "a-1:s1", QuestionNumber: 2, NewAnswer: "B"},
	})

	rec := after.Records[0]
	assert.Equal(t, 4, rec.RawScore)
	assert.InDelta(t, 100, rec.Percentage, 1e-9)
	assert.True(t, rec.Answers[1].Overridden)
	assert.False(t, rec.Answers[1].Unclear)

	// Input aggregate untouched
	assert.Equal(t, 3, grades.Records[0].RawScore)
	// Stats recomputed over all records
	assert.Greater(t, after.Stats.Mean, grades.Stats.Mean)
}

func TestApplyOverrideLaterWins(t *testing.T) {
	grades, _, _ := gradedRun(t)

	after := ApplyOverrides(grades, []Override{
		{RecordID: "a-1:s1", QuestionNumber: 2, NewAnswer: "C"},
		{RecordID: "a-1:s1", QuestionNumber: 2, NewAnswer: "B"},
	})
	assert.Equal(t, "B", after.Records[0].Answers[1].Selected)
	assert.Equal(t, 4, after.Records[0].RawScore)
}

// Overrides on disjoint (record, question) pairs commute: order of
// application cannot change the recomputed stats.
func TestApplyOverrideCommutes(t *testing.T) {
	grades, _, _ := gradedRun(t)

	o1 := Override{RecordID: "a-1:s1", QuestionNumber: 2, NewAnswer: "B"}
	o2 := Override{RecordID: "a-1:s2", QuestionNumber: 1, NewAnswer: "A"}

	ab := ApplyOverrides(ApplyOverrides(grades, []Override{o1}), []Override{o2})
	ba := ApplyOverrides(ApplyOverrides(grades, []Override{o2}), []Override{o1})

	assert.Equal(t, ab.Stats, ba.Stats)
	assert.Equal(t, ab.Records, ba.Records)
}

func TestApplyOverrideClearsReviewMarkers(t *testing.T) {
	calc := testCalc()
	questions := []bubble.Question{
		{Number: 1, Selected: "A", Confidence: 0.95, MultipleDetected: true},
		detected(2, "B"), detected(3, "C"), detected(4, "D"),
	}
	grades, _ := calc.Calculate("a-1", []ParsedPage{identifiedPage(1, "s1", questions...)})
	require.True(t, grades.Records[0].NeedsReview)

	after := ApplyOverrides(grades, []Override{
		{RecordID: "a-1:s1", QuestionNumber: 1, NewAnswer: "A"},
	})
	rec := after.Records[0]
	assert.False(t, rec.NeedsReview)
	assert.NotContains(t, rec.Flags, "multiple_bubbles_q1")
}

func TestAssignUnidentifiedPage(t *testing.T) {
	grades, unidentified, calc := gradedRun(t)

	after, remaining, err := AssignUnidentifiedPage(calc, grades, unidentified, 3, "s3")
	require.NoError(t, err)
	assert.Empty(t, remaining)
	require.Len(t, after.Records, 3)

	rec := after.Records[2]
	assert.Equal(t, "a-1:s3", rec.ID)
	assert.Equal(t, 3, rec.SourcePage)
	assert.Equal(t, 4, rec.RawScore, "scored with the same logic as automatic pages")
	assert.Equal(t, 3, after.Stats.Count)
}

func TestAssignUnidentifiedPageGuards(t *testing.T) {
	grades, unidentified, calc := gradedRun(t)

	_, _, err := AssignUnidentifiedPage(calc, grades, unidentified, 3, "s1")
	assert.ErrorContains(t, err, "already has a grade")

	_, _, err = AssignUnidentifiedPage(calc, grades, unidentified, 99, "s3")
	assert.ErrorContains(t, err, "no unidentified page")

	// Failed assignment leaves both aggregates intact
	assert.Len(t, grades.Records, 2)
	assert.Len(t, unidentified, 1)
}
