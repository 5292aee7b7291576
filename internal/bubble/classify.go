// Package bubble samples answer-bubble positions on a normalized page and
// classifies which choice was marked for every question.
package bubble

import (
	"sort"

	"markscan/pkg/geometry"
)

// Sample is one bubble's measurement. Intensity is mean luminance (0-255,
// lower is darker) over the sample window.
type Sample struct {
	QuestionNumber int               `json:"question_number"`
	Choice         string            `json:"choice"`
	Position       geometry.PointInt `json:"position"`
	Intensity      float64           `json:"intensity"`
	Filled         bool              `json:"filled"`
	Confidence     float64           `json:"confidence"`
}

// Question aggregates one question's samples with the derived selection.
type Question struct {
	Number  int      `json:"number"`
	Samples []Sample `json:"samples"`

	// Selected is the chosen label, or "" when no bubble is filled.
	Selected string `json:"selected,omitempty"`

	// MultipleDetected is set when more than one bubble reads filled.
	// The darkest bubble wins as best guess, but the flag persists
	// through to review; it is never silently resolved.
	MultipleDetected bool `json:"multiple_detected"`

	// Confidence is the minimum confidence across the question's samples.
	Confidence float64 `json:"confidence"`
}

// Threshold classification constants.
const (
	// veryDarkLevel: a sample this dark is a filled mark regardless of
	// the page's adaptive threshold.
	veryDarkLevel = 60.0

	// ambiguousMargin: samples within this distance of the threshold sit
	// in the ambiguous zone.
	ambiguousMargin = 20.0

	// minSeparation is the minimum gap between the filled and empty
	// populations before the adaptive threshold is trusted.
	minSeparation = 20.0

	// lenientThreshold is the fixed fallback split for pages with no
	// clear separation, e.g. very light pencil marks.
	lenientThreshold = 140.0
)

// Threshold is the per-page fill classification split.
type Threshold struct {
	Value float64

	// Lenient is set when the adaptive derivation found no clear
	// separation and the fixed fallback applies.
	Lenient bool
}

// DeriveThreshold computes the adaptive per-page threshold from all sampled
// intensities. Sorted darkest-first, the darkest expectedFilled samples (one
// per question) are assumed filled and the rest empty; the split goes at the
// midpoint between the two populations. Fixed thresholds fail across varying
// print and scan contrast, which is why this is a two-pass design.
func DeriveThreshold(intensities []float64, expectedFilled int) Threshold {
	if len(intensities) == 0 || expectedFilled <= 0 || expectedFilled >= len(intensities) {
		return Threshold{Value: lenientThreshold, Lenient: true}
	}

	sorted := make([]float64, len(intensities))
	copy(sorted, intensities)
	sort.Float64s(sorted)

	lightestFilled := sorted[expectedFilled-1]
	darkestEmpty := sorted[expectedFilled]

	if darkestEmpty-lightestFilled < minSeparation {
		return Threshold{Value: lenientThreshold, Lenient: true}
	}
	return Threshold{Value: (lightestFilled + darkestEmpty) / 2}
}

// Classify fills in Filled and Confidence for a sample against the threshold.
func (t Threshold) Classify(s *Sample) {
	s.Filled = s.Intensity < t.Value

	switch {
	case s.Intensity < veryDarkLevel:
		s.Confidence = 0.95
	case s.Intensity < t.Value-ambiguousMargin:
		s.Confidence = 0.90
	case s.Intensity <= t.Value+ambiguousMargin:
		s.Confidence = 0.5
	case s.Intensity > t.Value+ambiguousMargin:
		s.Confidence = 0.95
	default:
		s.Confidence = 0.8
	}
}

// Aggregate derives a question's selection from its classified samples.
// Zero filled bubbles yields no selection; multiple filled picks the darkest
// as best guess and sets MultipleDetected. Confidence is the weakest link.
func Aggregate(number int, samples []Sample) Question {
	q := Question{Number: number, Samples: samples}
	if len(samples) == 0 {
		return q
	}

	q.Confidence = samples[0].Confidence
	filled := 0
	darkest := -1
	for i, s := range samples {
		if s.Confidence < q.Confidence {
			q.Confidence = s.Confidence
		}
		if s.Filled {
			filled++
			if darkest < 0 || s.Intensity < samples[darkest].Intensity {
				darkest = i
			}
		}
	}

	if filled > 0 {
		q.Selected = samples[darkest].Choice
	}
	q.MultipleDetected = filled > 1
	return q
}
