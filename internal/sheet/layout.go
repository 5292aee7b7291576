// Package sheet provides printed answer-sheet layout definitions and management.
// All layout constants are expressed in canonical 72-DPI page units; the
// generator that prints the sheets and the scan pipeline that reads them share
// these coordinates.
package sheet

import (
	"fmt"

	"markscan/pkg/geometry"
)

// Canonical page dimensions: US Letter at 72 DPI.
const (
	CanonicalWidth  = 612.0
	CanonicalHeight = 792.0
)

// DimensionTolerance is the allowed relative deviation of a scanned page's
// aspect ratio from the canonical layout before positions become unreliable.
const DimensionTolerance = 0.03

// Layout defines the printed geometry of one answer-sheet format.
type Layout struct {
	Name string `json:"name"`

	// Orientation marks: a filled square at the top-left and a filled
	// circle at the bottom-right, mirror-symmetric about the page center.
	CornerInset    float64 `json:"corner_inset"`
	CornerMarkSize float64 `json:"corner_mark_size"`

	// Identity regions
	CodeRegion geometry.Rect `json:"code_region"` // printed QR symbol
	NameRegion geometry.Rect `json:"name_region"` // handwritten/printed student name

	// Bubble grid
	QuestionCount      int     `json:"question_count"`
	ChoiceCount        int     `json:"choice_count"`
	QuestionsPerColumn int     `json:"questions_per_column"`
	FirstColumnX       float64 `json:"first_column_x"` // center of choice A, column 0, row 0
	FirstRowY          float64 `json:"first_row_y"`
	ColumnWidth        float64 `json:"column_width"`
	RowHeight          float64 `json:"row_height"`
	ChoiceSpacing      float64 `json:"choice_spacing"`
	BubbleWindow       float64 `json:"bubble_window"` // square sample window side
}

// ChoiceLabels are the printed labels for answer choices, in column order.
var ChoiceLabels = []string{"A", "B", "C", "D", "E"}

// Validate checks the layout for internal consistency.
func (l *Layout) Validate() error {
	if l.Name == "" {
		return fmt.Errorf("layout name is required")
	}
	if l.QuestionCount <= 0 || l.ChoiceCount <= 0 {
		return fmt.Errorf("layout %q: question and choice counts must be positive", l.Name)
	}
	if l.ChoiceCount > len(ChoiceLabels) {
		return fmt.Errorf("layout %q: %d choices exceeds available labels", l.Name, l.ChoiceCount)
	}
	if l.QuestionsPerColumn <= 0 {
		return fmt.Errorf("layout %q: questions per column must be positive", l.Name)
	}
	lastColumn := (l.QuestionCount - 1) / l.QuestionsPerColumn
	rightmost := l.FirstColumnX + float64(lastColumn)*l.ColumnWidth +
		float64(l.ChoiceCount-1)*l.ChoiceSpacing
	if rightmost > CanonicalWidth {
		return fmt.Errorf("layout %q: bubble grid exceeds page width", l.Name)
	}
	return nil
}

// Scale returns the pixel-per-unit factor for an image of the given width.
func (l *Layout) Scale(imageWidth int) float64 {
	return float64(imageWidth) / CanonicalWidth
}

// BubbleCenter returns the canonical-unit center of one bubble.
// Questions are numbered from 1 and fill columns top to bottom.
func (l *Layout) BubbleCenter(questionNumber, choice int) geometry.Point2D {
	idx := questionNumber - 1
	column := idx / l.QuestionsPerColumn
	row := idx % l.QuestionsPerColumn
	return geometry.Point2D{
		X: l.FirstColumnX + float64(column)*l.ColumnWidth + float64(choice)*l.ChoiceSpacing,
		Y: l.FirstRowY + float64(row)*l.RowHeight,
	}
}

// SquareMarkRegion returns the canonical bounds of the top-left square mark.
func (l *Layout) SquareMarkRegion() geometry.Rect {
	return geometry.Rect{
		X:      l.CornerInset,
		Y:      l.CornerInset,
		Width:  l.CornerMarkSize,
		Height: l.CornerMarkSize,
	}
}

// CircleMarkRegion returns the canonical bounds of the bottom-right circle mark.
func (l *Layout) CircleMarkRegion() geometry.Rect {
	return geometry.Rect{
		X:      CanonicalWidth - l.CornerInset - l.CornerMarkSize,
		Y:      CanonicalHeight - l.CornerInset - l.CornerMarkSize,
		Width:  l.CornerMarkSize,
		Height: l.CornerMarkSize,
	}
}

// CheckDimensions reports whether a scanned image's aspect ratio is within
// tolerance of the canonical page. Out-of-tolerance pages are still processed,
// but derived positions carry reduced confidence.
func CheckDimensions(width, height int) bool {
	if width <= 0 || height <= 0 {
		return false
	}
	aspect := float64(height) / float64(width)
	canonical := CanonicalHeight / CanonicalWidth
	diff := aspect/canonical - 1
	if diff < 0 {
		diff = -diff
	}
	return diff <= DimensionTolerance
}
