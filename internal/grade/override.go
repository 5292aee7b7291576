package grade

import (
	"fmt"
	"strings"
)

// Override is one teacher correction to a detected answer.
type Override struct {
	RecordID       string `json:"record_id"`
	QuestionNumber int    `json:"question_number"`
	NewAnswer      string `json:"new_answer"` // "" clears the selection
}

// ApplyOverrides returns a new aggregate with the overrides applied. The
// input is not mutated. Overrides are idempotent per (record, question); when
// two target the same pair, the later one wins. Each affected record's score
// is recomputed from its full answer set, and stats are recomputed over all
// records.
func ApplyOverrides(grades AssignmentGrades, overrides []Override) AssignmentGrades {
	if len(overrides) == 0 {
		return grades
	}

	// Later override supersedes earlier for the same pair
	type pair struct {
		record   string
		question int
	}
	effective := make(map[pair]Override, len(overrides))
	for _, o := range overrides {
		effective[pair{o.RecordID, o.QuestionNumber}] = o
	}

	out := grades
	out.Records = make([]GradeRecord, len(grades.Records))
	for i, rec := range grades.Records {
		touched := false
		answers := rec.Answers
		for j := range answers {
			o, ok := effective[pair{rec.ID, answers[j].QuestionNumber}]
			if !ok {
				continue
			}
			if !touched {
				answers = append([]AnswerResult(nil), rec.Answers...)
				touched = true
			}
			applyToAnswer(&answers[j], o.NewAnswer)
		}

		if touched {
			rec.Answers = answers
			rec.Flags = append([]string(nil), rec.Flags...)
			finalizeRecord(&rec)
		}
		out.Records[i] = rec
	}

	out.Stats = ComputeStats(out.Records)
	return out
}

// applyToAnswer replaces the detected selection with the teacher's answer.
// The override resolves the ambiguity, so the unclear and multiple-detection
// markers clear and low confidence no longer applies.
func applyToAnswer(a *AnswerResult, newAnswer string) {
	a.Selected = strings.ToUpper(strings.TrimSpace(newAnswer))
	a.Unclear = false
	a.MultipleDetected = false
	a.Confidence = 1
	a.Overridden = true

	a.Correct = a.Selected != "" && strings.EqualFold(a.Selected, a.CorrectChoice)
	if a.Correct {
		a.Points = a.MaxPoints
	} else {
		a.Points = 0
	}
}

// AssignUnidentifiedPage converts one unidentified page into a GradeRecord
// for the given student and removes it from the unidentified set. Both
// aggregates are returned as new values. Assigning a student who already has
// a record is a validation error, never a silent overwrite.
func AssignUnidentifiedPage(c *Calculator, grades AssignmentGrades, unidentified []UnidentifiedPage, pageNumber int, studentID string) (AssignmentGrades, []UnidentifiedPage, error) {
	idx := -1
	for i, u := range unidentified {
		if u.PageNumber == pageNumber {
			idx = i
			break
		}
	}
	if idx < 0 {
		return grades, unidentified, fmt.Errorf("no unidentified page %d", pageNumber)
	}
	if grades.RecordForStudent(studentID) >= 0 {
		return grades, unidentified, fmt.Errorf("student %s already has a grade in this run", studentID)
	}

	u := unidentified[idx]
	rec := GradeRecord{
		ID:           fmt.Sprintf("%s:%s", grades.AssignmentID, studentID),
		StudentID:    studentID,
		AssignmentID: grades.AssignmentID,
		SourcePage:   u.PageNumber,
	}
	if _, ok := c.Roster.ByID(studentID); !ok {
		rec.Flags = append(rec.Flags, FlagStudentNotFound)
	}
	rec.Answers = scoreAnswers(c.Assessment.AnswerKey(""), u.Questions)
	finalizeRecord(&rec)

	out := grades
	out.Records = append(append([]GradeRecord(nil), grades.Records...), rec)
	out.Stats = ComputeStats(out.Records)

	remaining := make([]UnidentifiedPage, 0, len(unidentified)-1)
	remaining = append(remaining, unidentified[:idx]...)
	remaining = append(remaining, unidentified[idx+1:]...)
	return out, remaining, nil
}
