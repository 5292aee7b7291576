// Package grade scores detected answers against answer keys and maintains
// the aggregate results of a grading run.
package grade

import (
	"fmt"

	"markscan/internal/bubble"
	"markscan/internal/identify"
)

// Flag strings attached to records and pages. Per-question flags carry the
// question number so each ambiguity is independently surfaced in review.
const (
	FlagQRError               = "qr_error"
	FlagStudentNotFound       = "student_not_found"
	FlagLowConfidence         = "low_confidence"
	FlagNonStandardDimensions = "non_standard_dimensions"
	FlagRotated180            = "rotated_180"
)

// FlagMultipleBubbles returns the per-question multiple-selection flag.
func FlagMultipleBubbles(question int) string {
	return fmt.Sprintf("multiple_bubbles_q%d", question)
}

// FlagNoAnswer returns the per-question no-answer flag.
func FlagNoAnswer(question int) string {
	return fmt.Sprintf("no_answer_q%d", question)
}

// PageType classifies what a scanned page turned out to be.
type PageType string

const (
	PageScantron PageType = "scantron"
	PageBlank    PageType = "blank"
	PageUnknown  PageType = "unknown"
)

// ParsedPage is the immutable detection-stage output for one input page.
type ParsedPage struct {
	PageNumber    int                `json:"page_number"`
	Type          PageType           `json:"type"`
	Identity      *identify.Identity `json:"identity,omitempty"`
	IdentityError string             `json:"identity_error,omitempty"`
	OCRName       string             `json:"ocr_name,omitempty"`
	Suggestions   []identify.Suggestion
	Questions     []bubble.Question `json:"questions"`
	Confidence    float64           `json:"confidence"`
	Flags         []string          `json:"flags,omitempty"`
	ImageWidth    int               `json:"image_width"`
	ImageHeight   int               `json:"image_height"`
}

// AnswerResult is one scored answer.
type AnswerResult struct {
	QuestionNumber int    `json:"question_number"`
	QuestionID     string `json:"question_id,omitempty"`
	Selected       string `json:"selected,omitempty"` // "" = no answer
	CorrectChoice  string `json:"correct_choice"`
	Correct        bool   `json:"correct"`
	Points         float64 `json:"points"`
	MaxPoints      float64 `json:"max_points"`
	Standard       string  `json:"standard,omitempty"`

	MultipleDetected bool    `json:"multiple_detected,omitempty"`
	Unclear          bool    `json:"unclear,omitempty"` // confidence below floor
	Confidence       float64 `json:"confidence"`
	Overridden       bool    `json:"overridden,omitempty"`
}

// GradeRecord is one identified student's scored page. Records mutate only
// through overrides, which produce a new value; detection data is never
// edited in place.
type GradeRecord struct {
	ID             string         `json:"id"` // "<assignmentId>:<studentId>"
	StudentID      string         `json:"student_id"`
	AssignmentID   string         `json:"assignment_id"`
	VariantID      string         `json:"variant_id,omitempty"`
	RawScore       int            `json:"raw_score"`
	TotalQuestions int            `json:"total_questions"`
	Percentage     float64        `json:"percentage"`
	Points         float64        `json:"points"`
	MaxPoints      float64        `json:"max_points"`
	Answers        []AnswerResult `json:"answers"`
	Flags          []string       `json:"flags,omitempty"`
	NeedsReview    bool           `json:"needs_review"`
	SourcePage     int            `json:"source_page"`
}

// UnidentifiedPage is a page that could not be matched to a student. It is
// never dropped; a manual assignment converts it into a GradeRecord.
type UnidentifiedPage struct {
	PageNumber int      `json:"page_number"`
	Type       PageType `json:"type"`
	Confidence float64  `json:"confidence"`

	Questions []bubble.Question `json:"questions"`
	OCRName   string            `json:"ocr_name,omitempty"`

	// DecodedStudentID is set when the page's code resolved to a student who
	// already has a graded page in this run, i.e. a rescan or duplicate.
	DecodedStudentID string `json:"decoded_student_id,omitempty"`

	// Suggested are scored fuzzy-match candidates from the OCR name.
	Suggested []identify.Suggestion `json:"suggested,omitempty"`

	// Candidates are the roster students not yet graded when this page
	// was processed, giving review a closed, shrinking choice set.
	Candidates []string `json:"candidates,omitempty"`
}

// GradeStats is a derived view over the current record set. It is recomputed
// in full after every change, never incrementally patched.
type GradeStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	StdDev float64 `json:"std_dev"`

	PerQuestion []QuestionStats          `json:"per_question,omitempty"`
	PerStandard map[string]StandardStats `json:"per_standard,omitempty"`
	PerVariant  map[string]VariantStats  `json:"per_variant,omitempty"`
}

// QuestionStats summarizes one question across all records.
type QuestionStats struct {
	QuestionNumber int     `json:"question_number"`
	QuestionID     string  `json:"question_id,omitempty"`
	Correct        int     `json:"correct"`
	Incorrect      int     `json:"incorrect"`
	Skipped        int     `json:"skipped"`
	PctCorrect     float64 `json:"pct_correct"`
}

// StandardStats summarizes correctness for one curriculum standard.
type StandardStats struct {
	Correct int     `json:"correct"`
	Total   int     `json:"total"`
	Pct     float64 `json:"pct"`
}

// VariantStats groups results by question-set variant.
type VariantStats struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
}

// AssignmentGrades is the aggregate root for one grading run.
type AssignmentGrades struct {
	AssignmentID string        `json:"assignment_id"`
	SectionID    string        `json:"section_id,omitempty"`
	AssessmentID string        `json:"assessment_id"`
	Records      []GradeRecord `json:"records"`
	Stats        GradeStats    `json:"stats"`
}

// RecordForStudent returns the index of a student's record, or -1.
func (g *AssignmentGrades) RecordForStudent(studentID string) int {
	for i := range g.Records {
		if g.Records[i].StudentID == studentID {
			return i
		}
	}
	return -1
}
