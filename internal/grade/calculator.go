package grade

import (
	"fmt"
	"strings"

	"markscan/internal/assess"
	"markscan/internal/bubble"
)

// ConfidenceFloor is the acceptance floor below which a question's best-guess
// answer is flagged low-confidence.
const ConfidenceFloor = 0.60

// Calculator scores parsed pages for one assessment and roster.
type Calculator struct {
	Assessment *assess.Assessment
	Roster     assess.Roster
	SectionID  string
}

// Calculate scores every parsed page. Identified pages become GradeRecords;
// unmatched scantron pages become UnidentifiedPages. No page is discarded.
// Pages must arrive in batch order so the not-yet-graded candidate set
// shrinks correctly across the run.
func (c *Calculator) Calculate(assignmentID string, pages []ParsedPage) (AssignmentGrades, []UnidentifiedPage) {
	grades := AssignmentGrades{
		AssignmentID: assignmentID,
		SectionID:    c.SectionID,
		AssessmentID: c.Assessment.ID,
	}

	graded := make(map[string]bool)
	var unidentified []UnidentifiedPage

	for _, p := range pages {
		if p.Identity == nil {
			unidentified = append(unidentified, c.unidentifiedFrom(p, graded))
			continue
		}

		if graded[p.Identity.StudentID] {
			// A second page resolving to an already-graded student is a
			// rescan or a duplicated code. Record ids are one per student
			// per assignment, so the later page goes to review instead.
			u := c.unidentifiedFrom(p, graded)
			u.DecodedStudentID = p.Identity.StudentID
			unidentified = append(unidentified, u)
			continue
		}

		rec := c.scorePage(assignmentID, p)
		graded[rec.StudentID] = true
		grades.Records = append(grades.Records, rec)
	}

	grades.Stats = ComputeStats(grades.Records)
	return grades, unidentified
}

// scorePage builds one GradeRecord from an identified page.
func (c *Calculator) scorePage(assignmentID string, p ParsedPage) GradeRecord {
	id := p.Identity
	key := c.Assessment.AnswerKey(id.Variant)

	rec := GradeRecord{
		ID:           fmt.Sprintf("%s:%s", assignmentID, id.StudentID),
		StudentID:    id.StudentID,
		AssignmentID: assignmentID,
		VariantID:    id.Variant,
		SourcePage:   p.PageNumber,
		Flags:        append([]string(nil), p.Flags...),
	}

	if _, ok := c.Roster.ByID(id.StudentID); !ok {
		// Keep the record for review rather than dropping a real page:
		// roster drift happens when students transfer mid-term.
		rec.Flags = append(rec.Flags, FlagStudentNotFound)
	}

	rec.Answers = scoreAnswers(key, p.Questions)
	finalizeRecord(&rec)
	return rec
}

// scoreAnswers matches detected selections against the answer key.
func scoreAnswers(key []assess.AnswerKeyEntry, questions []bubble.Question) []AnswerResult {
	byNumber := make(map[int]bubble.Question, len(questions))
	for _, q := range questions {
		byNumber[q.Number] = q
	}

	answers := make([]AnswerResult, len(key))
	for i, entry := range key {
		a := AnswerResult{
			QuestionNumber: entry.QuestionNumber,
			QuestionID:     entry.QuestionID,
			CorrectChoice:  entry.CorrectChoice,
			MaxPoints:      entry.Points,
			Standard:       entry.Standard,
			Confidence:     1,
		}

		if q, ok := byNumber[entry.QuestionNumber]; ok {
			a.Selected = q.Selected
			a.MultipleDetected = q.MultipleDetected
			a.Confidence = q.Confidence
			a.Unclear = q.Selected != "" && q.Confidence < ConfidenceFloor
		}

		if a.Selected != "" && strings.EqualFold(a.Selected, entry.CorrectChoice) {
			a.Correct = true
			a.Points = entry.Points
		}
		answers[i] = a
	}
	return answers
}

// finalizeRecord recomputes the derived fields of a record from its answers.
// Shared by initial scoring, overrides, and manual page assignment so the
// three paths can never diverge.
func finalizeRecord(rec *GradeRecord) {
	rec.TotalQuestions = len(rec.Answers)
	rec.RawScore = 0
	rec.Points = 0
	rec.MaxPoints = 0

	answered := 0
	anyMultiple := false
	anyUnclear := false

	// Rebuild per-question flags; record-level flags (dimension, rotation,
	// roster) survive from detection.
	flags := rec.Flags[:0]
	for _, f := range rec.Flags {
		if !strings.HasPrefix(f, "multiple_bubbles_q") &&
			!strings.HasPrefix(f, "no_answer_q") &&
			f != FlagLowConfidence {
			flags = append(flags, f)
		}
	}

	for _, a := range rec.Answers {
		rec.MaxPoints += a.MaxPoints
		if a.Selected != "" {
			answered++
		} else {
			flags = append(flags, FlagNoAnswer(a.QuestionNumber))
		}
		if a.Correct {
			rec.RawScore++
			rec.Points += a.Points
		}
		if a.MultipleDetected {
			flags = append(flags, FlagMultipleBubbles(a.QuestionNumber))
			anyMultiple = true
		}
		if a.Unclear {
			anyUnclear = true
		}
	}
	if anyUnclear {
		flags = append(flags, FlagLowConfidence)
	}
	rec.Flags = flags

	if answered > 0 {
		rec.Percentage = float64(rec.RawScore) / float64(answered) * 100
	} else {
		rec.Percentage = 0
	}

	studentNotFound := false
	for _, f := range rec.Flags {
		if f == FlagStudentNotFound {
			studentNotFound = true
		}
	}
	rec.NeedsReview = studentNotFound || anyMultiple || anyUnclear
}

// unidentifiedFrom builds the review record for an unmatched page.
func (c *Calculator) unidentifiedFrom(p ParsedPage, graded map[string]bool) UnidentifiedPage {
	var candidates []string
	for _, s := range c.Roster {
		if !graded[s.ID] {
			candidates = append(candidates, s.ID)
		}
	}

	pageType := p.Type
	if pageType == "" {
		pageType = PageScantron
	}

	return UnidentifiedPage{
		PageNumber: p.PageNumber,
		Type:       pageType,
		Confidence: p.Confidence,
		Questions:  p.Questions,
		OCRName:    p.OCRName,
		Suggested:  p.Suggestions,
		Candidates: candidates,
	}
}
