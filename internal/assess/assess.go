// Package assess defines the assessment, roster, and answer-key model the
// grading pipeline scores against. Course storage is an external collaborator;
// these types are the in-memory view a caller supplies per grading run.
package assess

import "strings"

// Student is one roster entry.
type Student struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// FullName returns "First Last" with single spacing.
func (s Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// Roster is the set of students a run may match pages against.
type Roster []Student

// ByID returns the student with the given id, if present.
func (r Roster) ByID(id string) (Student, bool) {
	for _, s := range r {
		if s.ID == id {
			return s, true
		}
	}
	return Student{}, false
}

// Question is one scored item on an assessment.
type Question struct {
	ID            string  `json:"id"`
	Number        int     `json:"number"`
	CorrectChoice string  `json:"correct_choice"`
	Points        float64 `json:"points"`
	Standard      string  `json:"standard,omitempty"` // curriculum standard reference
}

// Variant is an alternate question set assigned to a subset of students,
// keyed by the variant tag carried in the printed code.
type Variant struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// Assessment is the base question list plus any variants.
type Assessment struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
	Variants  []Variant  `json:"variants,omitempty"`
}

// AnswerKeyEntry is one row of the derived answer key.
type AnswerKeyEntry struct {
	QuestionNumber int     `json:"question_number"`
	QuestionID     string  `json:"question_id"`
	CorrectChoice  string  `json:"correct_choice"`
	Points         float64 `json:"points"`
	Standard       string  `json:"standard,omitempty"`
}

// AnswerKey derives the key for a student's variant. An empty or unknown
// variant id falls back to the base question list, so students printed before
// a variant was introduced still grade correctly.
func (a *Assessment) AnswerKey(variantID string) []AnswerKeyEntry {
	questions := a.Questions
	if variantID != "" {
		for _, v := range a.Variants {
			if v.ID == variantID {
				questions = v.Questions
				break
			}
		}
	}
	return keyFromQuestions(questions)
}

func keyFromQuestions(questions []Question) []AnswerKeyEntry {
	key := make([]AnswerKeyEntry, len(questions))
	for i, q := range questions {
		number := q.Number
		if number == 0 {
			number = i + 1
		}
		points := q.Points
		if points == 0 {
			points = 1
		}
		key[i] = AnswerKeyEntry{
			QuestionNumber: number,
			QuestionID:     q.ID,
			CorrectChoice:  strings.ToUpper(q.CorrectChoice),
			Points:         points,
			Standard:       q.Standard,
		}
	}
	return key
}
